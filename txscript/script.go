// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2025 The bitwire developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Bip16Activation is the timestamp where BIP0016 is valid to use in the
// blockchain.  To be used to determine if BIP0016 should be called for or not.
// This timestamp corresponds to Sun Apr 1 00:00:00 UTC 2012.
const Bip16Activation = 1333238400

// These are the constants specified for maximums in individual scripts.
const (
	// MaxOpsPerScript is the max number of non-push operations.
	MaxOpsPerScript = 201

	// MaxPubKeysPerMultiSig is the max number of public keys for an
	// OP_CHECKMULTISIG.
	MaxPubKeysPerMultiSig = 20

	// MaxScriptElementSize is the max bytes pushable to the stack.
	MaxScriptElementSize = 520

	// MaxScriptSize is the max size in bytes of a script after the codec
	// has decoded it.
	MaxScriptSize = 10000

	// MaxStackSize is the max combined size of the data and alt stacks
	// during execution.
	MaxStackSize = 1000
)

// isSmallInt returns whether or not the opcode is considered a small integer,
// which is an OP_0, or OP_1 through OP_16.
func isSmallInt(op *opcode) bool {
	if op.value == OP_0 || (op.value >= OP_1 && op.value <= OP_16) {
		return true
	}
	return false
}

// asSmallInt returns the passed opcode, which must be true according to
// isSmallInt(), as an integer.
func asSmallInt(op *opcode) int {
	if op.value == OP_0 {
		return 0
	}

	return int(op.value - (OP_1 - 1))
}

// isNumber returns whether the opcode is either a small integer opcode or a
// data push whose payload decodes as a script number.
func isNumber(pop parsedOpcode) bool {
	if isSmallInt(pop.opcode) {
		return true
	}
	_, err := makeScriptNum(pop.data, false, 5)
	return err == nil
}

// parseScriptTemplate is the same as parseScript but allows the passing of the
// template list for testing purposes.  When there are parse errors, it returns
// the list of parsed opcodes up to the point of failure along with the error.
func parseScriptTemplate(script []byte, opcodes *[256]opcode) ([]parsedOpcode, error) {
	retScript := make([]parsedOpcode, 0, len(script))
	for i := 0; i < len(script); {
		instr := script[i]
		op := &opcodes[instr]
		pop := parsedOpcode{opcode: op}

		// Parse data out of instruction.
		switch {
		// No additional data.  Note that some of the opcodes, notably
		// OP_1NEGATE, OP_0, and OP_[1-16] represent the data
		// themselves.
		case op.length == 1:
			i++

		// Data pushes of specific lengths -- OP_DATA_[1-75].
		case op.length > 1:
			if len(script[i:]) < op.length {
				str := fmt.Sprintf("opcode %s requires %d "+
					"bytes, but script only has %d remaining",
					op.name, op.length, len(script[i:]))
				return retScript, scriptError(ErrMalformedPush,
					str)
			}

			// Slice out the data.
			pop.data = script[i+1 : i+op.length]
			i += op.length

		// Data pushes with parsed lengths -- OP_PUSHDATAP{1,2,4}.
		case op.length < 0:
			var l uint
			off := i + 1

			if len(script[off:]) < -op.length {
				str := fmt.Sprintf("opcode %s requires %d "+
					"bytes, but script only has %d remaining",
					op.name, -op.length, len(script[off:]))
				return retScript, scriptError(ErrMalformedPush,
					str)
			}

			// Next -length bytes are little endian length of data.
			switch op.length {
			case -1:
				l = uint(script[off])
			case -2:
				l = ((uint(script[off+1]) << 8) |
					uint(script[off]))
			case -4:
				l = ((uint(script[off+3]) << 24) |
					(uint(script[off+2]) << 16) |
					(uint(script[off+1]) << 8) |
					uint(script[off]))
			default:
				str := fmt.Sprintf("invalid opcode length %d",
					op.length)
				return retScript, scriptError(ErrMalformedPush,
					str)
			}

			// Move offset to beginning of the data.
			off += -op.length

			// Disallow entries that do not fit script or were
			// sign extended.
			if int(l) > len(script[off:]) || int(l) < 0 {
				str := fmt.Sprintf("opcode %s pushes %d bytes, "+
					"but script only has %d remaining",
					op.name, int(l), len(script[off:]))
				return retScript, scriptError(ErrMalformedPush,
					str)
			}

			pop.data = script[off : off+int(l)]
			i += 1 - op.length + int(l)
		}

		retScript = append(retScript, pop)
	}

	return retScript, nil
}

// parseScript preparses the script in bytes into a list of parsedOpcodes while
// applying a number of sanity checks.
func parseScript(script []byte) ([]parsedOpcode, error) {
	return parseScriptTemplate(script, &opcodeArray)
}

// unparseScript reversed the action of parseScript and returns the
// parsedOpcodes as a list of bytes
func unparseScript(pops []parsedOpcode) ([]byte, error) {
	script := make([]byte, 0, len(pops))
	for _, pop := range pops {
		b, err := pop.bytes()
		if err != nil {
			return nil, err
		}
		script = append(script, b...)
	}
	return script, nil
}

// DisasmString formats a disassembled script for one line printing.  When the
// script fails to parse, the returned string will contain the disassembled
// script up to the point the failure occurred along with the string '[error]'
// appended.  In addition, the reason the script failed to parse is returned
// if the caller wants more information about the failure.
//
// Data pushes print as lowercase hex, small integers print as their value,
// and unknown opcodes print as "(opcode N)" tokens so the output is lossless.
func DisasmString(buf []byte) (string, error) {
	var disbuf strings.Builder
	opcodes, err := parseScript(buf)
	for _, pop := range opcodes {
		disbuf.WriteString(pop.print(true))
		disbuf.WriteByte(' ')
	}
	disbufStr := disbuf.String()
	if len(disbufStr) > 0 {
		disbufStr = disbufStr[:len(disbufStr)-1]
	}
	if err != nil {
		disbufStr += "[error]"
	}
	return disbufStr, err
}

// opcodeByName is a map of opcode names to their opcode table entry, built
// once for parsing the textual script form.  Small integer replacements used
// by the one-line disassembly are included so parsing is the exact inverse of
// DisasmString.
var opcodeByName = func() map[string]*opcode {
	byName := make(map[string]*opcode, 300)
	for i := range opcodeArray {
		op := &opcodeArray[i]
		byName[op.name] = op
	}
	for name, repl := range opcodeOnelineRepls {
		byName[repl] = byName[name]
	}
	// OP_FALSE and OP_TRUE are aliases that do not appear in the table.
	byName["OP_FALSE"] = &opcodeArray[OP_FALSE]
	byName["OP_TRUE"] = &opcodeArray[OP_TRUE]
	byName["OP_NOP2"] = &opcodeArray[OP_NOP2]
	return byName
}()

// ParseDisasmString parses the one-line textual script notation produced by
// DisasmString back into a script.  Tokens are either opcode names
// ("OP_DUP"), small integers ("0".."16", "-1"), unknown opcode tokens in the
// form "(opcode N)", or lowercase hex data which is encoded as the narrowest
// plain push for its length (no small-integer substitution).
//
// ParseDisasmString(DisasmString(s)) == s holds for every script s that
// parses and whose data pushes each use that same narrowest plain push
// (OP_DATA_N up to 75 bytes, then OP_PUSHDATA1, OP_PUSHDATA2, OP_PUSHDATA4).
func ParseDisasmString(disasm string) ([]byte, error) {
	script := make([]byte, 0, len(disasm)/2)

	tokens := strings.Fields(disasm)
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]

		// Unknown opcodes disassemble as the two tokens
		// "(opcode" and "N)".
		if tok == "(opcode" && i+1 < len(tokens) {
			numTok := strings.TrimSuffix(tokens[i+1], ")")
			var opVal int
			if _, err := fmt.Sscanf(numTok, "%d", &opVal); err != nil || opVal < 0 || opVal > 255 {
				str := fmt.Sprintf("invalid opcode token %q %q",
					tok, tokens[i+1])
				return nil, scriptError(ErrUnknownOpcodeName, str)
			}
			script = append(script, byte(opVal))
			i++
			continue
		}

		if op, ok := opcodeByName[tok]; ok {
			script = append(script, op.value)
			continue
		}

		// Remaining tokens must be hex data.  A data push always
		// disassembles to an even number of lowercase hex digits.  The
		// bytes are re-encoded as a plain push of matching width so
		// that the text form round-trips: small-integer substitution
		// would turn "05" into OP_5, which prints as "5" instead.
		if len(tok)%2 == 0 && isHexToken(tok) {
			data, err := hex.DecodeString(tok)
			if err == nil {
				script = appendDataPush(script, data)
				continue
			}
		}

		str := fmt.Sprintf("unknown script token %q", tok)
		return nil, scriptError(ErrUnknownOpcodeName, str)
	}

	if len(script) > MaxScriptSize {
		str := fmt.Sprintf("parsed script is %d bytes which exceeds "+
			"the max allowed of %d", len(script), MaxScriptSize)
		return nil, scriptError(ErrScriptTooBig, str)
	}
	return script, nil
}

// appendDataPush appends the smallest width plain data push of data to the
// script.
func appendDataPush(script []byte, data []byte) []byte {
	dataLen := len(data)
	switch {
	case dataLen == 0:
		return append(script, OP_0)
	case dataLen <= OP_DATA_75:
		script = append(script, byte(dataLen))
	case dataLen <= 0xff:
		script = append(script, OP_PUSHDATA1, byte(dataLen))
	case dataLen <= 0xffff:
		script = append(script, OP_PUSHDATA2, byte(dataLen&0xff),
			byte(dataLen>>8))
	default:
		script = append(script, OP_PUSHDATA4, byte(dataLen&0xff),
			byte((dataLen>>8)&0xff), byte((dataLen>>16)&0xff),
			byte(dataLen>>24))
	}
	return append(script, data...)
}

// isHexToken reports whether the token consists solely of lowercase hex
// digits.
func isHexToken(tok string) bool {
	if len(tok) == 0 {
		return false
	}
	for _, r := range tok {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

// canonicalPush returns true if the object is either not a push instruction
// or the push instruction contained wherein is matches the canonical form
// or using the smallest instruction to do the job.  False otherwise.
func canonicalPush(pop parsedOpcode) bool {
	opcode := pop.opcode.value
	data := pop.data
	dataLen := len(pop.data)
	if opcode > OP_16 {
		return true
	}

	if opcode < OP_PUSHDATA1 && opcode > OP_0 && (dataLen == 1 && data[0] <= 16) {
		return false
	}
	if opcode == OP_PUSHDATA1 && dataLen < OP_PUSHDATA1 {
		return false
	}
	if opcode == OP_PUSHDATA2 && dataLen <= 0xff {
		return false
	}
	if opcode == OP_PUSHDATA4 && dataLen <= 0xffff {
		return false
	}
	return true
}

// IsPushOnlyScript returns whether or not the passed script only pushes data.
//
// False will be returned when the script does not parse.
func IsPushOnlyScript(script []byte) bool {
	pops, err := parseScript(script)
	if err != nil {
		return false
	}
	return isPushOnly(pops)
}

// isPushOnly returns true if the script only pushes data, false otherwise.
func isPushOnly(pops []parsedOpcode) bool {
	// NOTE: This function does NOT verify opcodes directly since it is
	// internal and is only called with parsed opcodes for scripts that did
	// not have any parse errors.  Thus, consensus is properly maintained.
	for _, pop := range pops {
		// All opcodes up to OP_16 are data push instructions.
		// NOTE: This does consider OP_RESERVED to be a data push
		// instruction, but execution of OP_RESERVED will fail anyways
		// and matches the behavior required by consensus.
		if pop.opcode.value > OP_16 {
			return false
		}
	}
	return true
}

// GetSigOpCount provides a quick count of the number of signature operations
// in a script.  A CHECKSIG operations counts for 1, and a CHECK_MULTISIG for
// 20.  If the script fails to parse, then the count up to the point of failure
// is returned.
func GetSigOpCount(script []byte) int {
	// Don't check error since parseScript returns the parsed-up-to-error
	// list of pops.
	pops, _ := parseScript(script)
	return getSigOpCount(pops, false)
}

// getSigOpCount is the implementation function for counting the number of
// signature operations in the script provided by pops.  If precise mode is
// requested then we attempt to count the number of operations for a multisig
// op.  Otherwise we use the maximum.
func getSigOpCount(pops []parsedOpcode, precise bool) int {
	nSigs := 0
	for i, pop := range pops {
		switch pop.opcode.value {
		case OP_CHECKSIG:
			fallthrough
		case OP_CHECKSIGVERIFY:
			nSigs++
		case OP_CHECKMULTISIG:
			fallthrough
		case OP_CHECKMULTISIGVERIFY:
			// If we are being precise then look for familiar
			// patterns for multisig, for now all we recognize is
			// OP_1 - OP_16 to signify the number of pubkeys.
			// Otherwise, we use the max of 20.
			if precise && i > 0 &&
				pops[i-1].opcode.value >= OP_1 &&
				pops[i-1].opcode.value <= OP_16 {
				nSigs += asSmallInt(pops[i-1].opcode)
			} else {
				nSigs += MaxPubKeysPerMultiSig
			}
		default:
			// Not a sigop.
		}
	}

	return nSigs
}

// removeOpcode will remove any opcode matching ``opcode'' from the opcode
// stream in pkscript.
func removeOpcode(pkscript []parsedOpcode, opcode byte) []parsedOpcode {
	retScript := make([]parsedOpcode, 0, len(pkscript))
	for _, pop := range pkscript {
		if pop.opcode.value != opcode {
			retScript = append(retScript, pop)
		}
	}
	return retScript
}

