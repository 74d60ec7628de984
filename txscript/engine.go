// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2018 The Decred developers
// Copyright (c) 2025 The bitwire developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"fmt"
)

// ScriptFlags is a bitmask defining additional operations or tests that will be
// done when executing a script pair.
type ScriptFlags uint32

const (
	// ScriptVerifyMinimalData defines that scripts only push minimal data.
	ScriptVerifyMinimalData ScriptFlags = 1 << iota

	// ScriptBip17CheckHashVerify interprets OP_NOP2 as
	// OP_CHECKHASHVERIFY, the BIP-17 script hash commitment opcode.  The
	// wider ecosystem later repurposed the same byte, so the behavior is
	// kept behind a consensus-rules flag rather than hard-wired.
	ScriptBip17CheckHashVerify

	// ScriptDiscourageUpgradableNops defines whether to verify that
	// OP_NOP1 through OP_NOP10 (other than the CHECKHASHVERIFY alias) are
	// reserved for future soft-fork upgrades.  This flag must not be used
	// for consensus critical code nor applied to blocks as this flag is
	// only for stricter standard transaction checks.
	ScriptDiscourageUpgradableNops
)

// StandardVerifyFlags are the script flags applied when executing transaction
// scripts to enforce the checks a node requires of relayed transactions.
const StandardVerifyFlags = ScriptVerifyMinimalData |
	ScriptBip17CheckHashVerify

// OpCondFalse, OpCondTrue, and OpCondSkip represent the branch execution
// states the conditional stack can hold.
const (
	OpCondFalse = 0
	OpCondTrue  = 1
	OpCondSkip  = 2
)

// VerifySigFn is the signature verification callback supplied by the caller.
// It receives the raw serialized public key, the signature with the hash type
// byte already stripped, and that hash type byte.  It returns whether the
// signature is valid for whatever message the caller has bound the callback
// to (typically the transaction digest of the spending input).
//
// The engine is deliberately ignorant of the elliptic curve math; divergent
// implementations of it live behind this callback.
type VerifySigFn func(pubKey, sig []byte, hashType byte) bool

// Engine is the virtual machine that executes scripts.
type Engine struct {
	scripts     [][]parsedOpcode
	scriptIdx   int
	scriptOff   int
	lastCodeSep int
	dstack      stack // data stack
	astack      stack // alt stack
	condStack   []int
	numOps      int
	flags       ScriptFlags
	sigVerifier VerifySigFn
}

// hasFlag returns whether the script engine instance has the passed flag set.
func (vm *Engine) hasFlag(flag ScriptFlags) bool {
	return vm.flags&flag == flag
}

// isBranchExecuting returns whether or not the current conditional branch is
// actively executing.  For example, when the data stack has an OP_FALSE on it
// and an OP_IF is encountered, the branch is inactive until an OP_ELSE or
// OP_ENDIF is encountered.  It properly handles nested conditionals.
func (vm *Engine) isBranchExecuting() bool {
	if len(vm.condStack) == 0 {
		return true
	}
	return vm.condStack[len(vm.condStack)-1] == OpCondTrue
}

// verifySig invokes the signature verification callback.  A missing callback
// simply fails every signature, which keeps scripts executable in contexts
// with no key material such as template analysis.
func (vm *Engine) verifySig(pubKey, sig []byte, hashType byte) bool {
	if vm.sigVerifier == nil {
		return false
	}
	return vm.sigVerifier(pubKey, sig, hashType)
}

// executeOpcode peforms execution on the passed opcode.  It takes into account
// whether or not it is hidden by conditionals, but some rules still must be
// tested in this case.
func (vm *Engine) executeOpcode(pop *parsedOpcode) error {
	// Disabled opcodes are fail on program counter.
	if pop.isDisabled() {
		str := fmt.Sprintf("attempt to execute disabled opcode %s",
			pop.opcode.name)
		return scriptError(ErrDisabledOpcode, str)
	}

	// Always-illegal opcodes are fail on program counter.
	if pop.alwaysIllegal() {
		str := fmt.Sprintf("attempt to execute reserved opcode %s",
			pop.opcode.name)
		return scriptError(ErrReservedOpcode, str)
	}

	// Note that this includes OP_RESERVED which counts as a push operation.
	if pop.opcode.value > OP_16 {
		vm.numOps++
		if vm.numOps > MaxOpsPerScript {
			str := fmt.Sprintf("exceeded max operation limit of %d",
				MaxOpsPerScript)
			return scriptError(ErrTooManyOperations, str)
		}

	} else if len(pop.data) > MaxScriptElementSize {
		str := fmt.Sprintf("element size %d exceeds max allowed size %d",
			len(pop.data), MaxScriptElementSize)
		return scriptError(ErrElementTooBig, str)
	}

	// Nothing left to do when this is not a conditional opcode and it is
	// not in an executing branch.
	if !vm.isBranchExecuting() && !pop.isConditional() {
		return nil
	}

	// Ensure all executed data push opcodes use the minimal encoding when
	// the minimal data verification flag is set.
	if vm.dstack.verifyMinimalData && vm.isBranchExecuting() &&
		pop.opcode.value <= OP_PUSHDATA4 {

		if err := pop.checkMinimalDataPush(); err != nil {
			return err
		}
	}

	return pop.opcode.opfunc(pop, vm)
}

// validPC returns an error if the current script position is not valid for
// execution, nil otherwise.
func (vm *Engine) validPC() error {
	if vm.scriptIdx >= len(vm.scripts) {
		str := fmt.Sprintf("past input scripts %v:%v %v:xxxx",
			vm.scriptIdx, vm.scriptOff, len(vm.scripts))
		return scriptError(ErrInvalidProgramCounter, str)
	}
	if vm.scriptOff >= len(vm.scripts[vm.scriptIdx]) {
		str := fmt.Sprintf("past input scripts %v:%v %v:%04d",
			vm.scriptIdx, vm.scriptOff, vm.scriptIdx,
			len(vm.scripts[vm.scriptIdx]))
		return scriptError(ErrInvalidProgramCounter, str)
	}
	return nil
}

// DisasmPC returns the string for the disassembly of the opcode that will be
// next to execute when Step() is called.
func (vm *Engine) DisasmPC() (string, error) {
	if err := vm.validPC(); err != nil {
		return "", err
	}
	return fmt.Sprintf("%02x:%04x: %s", vm.scriptIdx, vm.scriptOff,
		vm.scripts[vm.scriptIdx][vm.scriptOff].print(false)), nil
}

// CheckErrorCondition returns nil if the running script has ended and was
// successful, leaving a true boolean on the stack.  An error otherwise,
// including if the script has not finished.
func (vm *Engine) CheckErrorCondition(finalScript bool) error {
	// Check execution is actually done.
	if vm.scriptIdx < len(vm.scripts) {
		return scriptError(ErrScriptUnfinished,
			"error check when script unfinished")
	}

	// The final script must end with at least one data stack item.  An
	// empty stack is a failure.
	if finalScript && vm.dstack.Depth() < 1 {
		return scriptError(ErrEmptyStack,
			"stack empty at end of script execution")
	}

	v, err := vm.dstack.PopBool()
	if err != nil {
		return err
	}
	if !v {
		// Log interesting data.
		log.Tracef("scripts failed: script0: %s\n script1: %s",
			vm.DisasmScript(0), vm.DisasmScript(1))
		return scriptError(ErrEvalFalse,
			"false stack entry at end of script execution")
	}
	return nil
}

// Step will execute the next instruction and move the program counter to the
// next opcode in the script, or the next script if the current has ended.
// Step will return true in the case that the last opcode was successfully
// executed.
//
// The result of calling Step or any other method is undefined if an error is
// returned.
func (vm *Engine) Step() (done bool, err error) {
	// Verify that it is pointing to a valid script address.
	err = vm.validPC()
	if err != nil {
		return true, err
	}
	opcode := &vm.scripts[vm.scriptIdx][vm.scriptOff]
	vm.scriptOff++

	// Execute the opcode while taking into account several things such as
	// disabled opcodes, illegal opcodes, maximum allowed operations per
	// script, maximum script element sizes, and conditionals.
	err = vm.executeOpcode(opcode)
	if err != nil {
		return true, err
	}

	// The number of elements in the combination of the data and alt stacks
	// must not exceed the maximum number of stack elements allowed.
	combinedStackSize := vm.dstack.Depth() + vm.astack.Depth()
	if combinedStackSize > MaxStackSize {
		str := fmt.Sprintf("combined stack size %d > max allowed %d",
			combinedStackSize, MaxStackSize)
		return false, scriptError(ErrStackOverflow, str)
	}

	// Prepare for next instruction.
	if vm.scriptOff >= len(vm.scripts[vm.scriptIdx]) {
		// Illegal to have an `if' that straddles two scripts.
		if len(vm.condStack) != 0 {
			return false, scriptError(ErrUnbalancedConditional,
				"end of script reached in conditional execution")
		}

		// Alt stack doesn't persist.
		_ = vm.astack.DropN(vm.astack.Depth())

		vm.numOps = 0 // number of ops is per script.
		vm.scriptOff = 0
		vm.lastCodeSep = 0
		vm.scriptIdx++

		// there are zero length scripts in the wild
		if vm.scriptIdx < len(vm.scripts) && vm.scriptOff >= len(vm.scripts[vm.scriptIdx]) {
			vm.scriptIdx++
		}
		if vm.scriptIdx >= len(vm.scripts) {
			return true, nil
		}
	}

	return false, nil
}

// Execute will execute all scripts in the script engine and return either nil
// for successful validation or an error if one occurred.
func (vm *Engine) Execute() (err error) {
	done := false
	for !done {
		done, err = vm.Step()
		if err != nil {
			return err
		}
	}

	return vm.CheckErrorCondition(true)
}

// subScriptBeforeOpcode returns the serialized bytes of the current script
// from the most recent OP_CODESEPARATOR (or the script start) up to, but not
// including, the opcode being executed.  The separator itself is removed from
// the result.
func (vm *Engine) subScriptBeforeOpcode() ([]byte, error) {
	// The program counter was already advanced past the executing opcode,
	// so back off by one to exclude it.
	end := vm.scriptOff - 1
	if end < vm.lastCodeSep {
		end = vm.lastCodeSep
	}
	subScript := vm.scripts[vm.scriptIdx][vm.lastCodeSep:end]
	subScript = removeOpcode(subScript, OP_CODESEPARATOR)
	return unparseScript(subScript)
}

// GetStack returns the contents of the primary stack as an array where the
// last item in the array is the top of the stack.
func (vm *Engine) GetStack() [][]byte {
	return getStack(&vm.dstack)
}

// SetStack sets the contents of the primary stack to the contents of the
// provided array where the last item in the array will be the top of the
// stack.
func (vm *Engine) SetStack(data [][]byte) {
	setStack(&vm.dstack, data)
}

// GetAltStack returns the contents of the alternate stack as an array where
// the last item in the array is the top of the stack.
func (vm *Engine) GetAltStack() [][]byte {
	return getStack(&vm.astack)
}

// getStack returns the contents of stack as a byte array bottom up
func getStack(stack *stack) [][]byte {
	array := make([][]byte, stack.Depth())
	for i := range array {
		// PeekByteArray can't fail due to overflow, already checked
		array[len(array)-i-1], _ = stack.PeekByteArray(int32(i))
	}
	return array
}

// setStack sets the stack to the contents of the array where the last item in
// the array is the top item in the stack.
func setStack(stack *stack, data [][]byte) {
	// This can not error. Only errors are for invalid arguments.
	_ = stack.DropN(stack.Depth())

	for i := range data {
		stack.PushByteArray(data[i])
	}
}

// DisasmScript returns the disassembly string for the script at the requested
// offset index.  Index 0 is the signature script and 1 is the public key
// script.  An empty string is returned when the index is out of range; this
// is only used for diagnostics.
func (vm *Engine) DisasmScript(idx int) string {
	if idx < 0 || idx >= len(vm.scripts) {
		return ""
	}

	var disstr string
	for _, pop := range vm.scripts[idx] {
		disstr = disstr + pop.print(false) + " "
	}
	return disstr
}

// NewEngine returns a new script engine for the provided signature script and
// public key script pair.  The signature script executes first with the data
// stack carried over into the public key script, matching the transaction
// validation order.  The verifier callback handles every signature check the
// scripts request; see VerifySigFn.
func NewEngine(scriptSig, scriptPubKey []byte, flags ScriptFlags,
	verifier VerifySigFn) (*Engine, error) {

	vm := Engine{flags: flags, sigVerifier: verifier}

	// The engine stores the scripts in parsed form using a slice.  This
	// allows multiple scripts to be executed in sequence.  Only the two
	// scripts passed in are ever executed; a pay-to-script-hash redeem
	// script is not run as a third script.
	scripts := [][]byte{scriptSig, scriptPubKey}
	vm.scripts = make([][]parsedOpcode, len(scripts))
	for i, scr := range scripts {
		if len(scr) > MaxScriptSize {
			str := fmt.Sprintf("script size %d is larger than max "+
				"allowed size %d", len(scr), MaxScriptSize)
			return nil, scriptError(ErrScriptTooBig, str)
		}
		var err error
		vm.scripts[i], err = parseScript(scr)
		if err != nil {
			return nil, err
		}
	}

	// Advance the program counter to the public key script if the signature
	// script is empty since there is nothing to execute for it in that
	// case.
	if len(scripts[0]) == 0 {
		vm.scriptIdx++
	}

	if vm.hasFlag(ScriptVerifyMinimalData) {
		vm.dstack.verifyMinimalData = true
		vm.astack.verifyMinimalData = true
	}

	return &vm, nil
}
