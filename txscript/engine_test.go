// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2025 The bitwire developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/bitwire/core/chainutil"
	"gitlab.com/bitwire/core/types/chainhash"
)

// sigHashAll mirrors the default hash type byte appended to signatures.
const sigHashAll = 0x01

// fakeSign deterministically derives the one signature the test verifier
// accepts for a public key.  Real elliptic curve verification lives behind
// the engine's callback, so the tests substitute a keyed hash.
func fakeSign(pubKey []byte) []byte {
	return chainhash.DoubleHashB(append([]byte("sig:"), pubKey...))
}

// fakeVerifier accepts exactly the signatures produced by fakeSign with the
// sigHashAll hash type.
func fakeVerifier(pubKey, sig []byte, hashType byte) bool {
	return hashType == sigHashAll && bytes.Equal(sig, fakeSign(pubKey))
}

// fakePubKey returns a well-formed compressed public key filled with the
// given byte.
func fakePubKey(fill byte) []byte {
	pubKey := bytes.Repeat([]byte{fill}, 33)
	pubKey[0] = 0x02
	return pubKey
}

// executeScriptPair is a convenience that runs the signature and public key
// script pair through a fresh engine.
func executeScriptPair(t *testing.T, scriptSig, scriptPubKey []byte,
	flags ScriptFlags, verifier VerifySigFn) error {
	t.Helper()

	vm, err := NewEngine(scriptSig, scriptPubKey, flags, verifier)
	require.NoError(t, err)
	return vm.Execute()
}

func TestEngineCheckSig(t *testing.T) {
	pubKey := fakePubKey(0xab)
	goodSig := append(fakeSign(pubKey), sigHashAll)

	pkScript, err := payToPubKeyScript(pubKey)
	require.NoError(t, err)

	scriptSig, err := NewScriptBuilder().AddData(goodSig).Script()
	require.NoError(t, err)

	// A valid (pubkey, signature) pair evaluates to true.
	err = executeScriptPair(t, scriptSig, pkScript, StandardVerifyFlags,
		fakeVerifier)
	assert.NoError(t, err)

	// Corrupting any byte of the signature fails the script.
	for _, i := range []int{0, len(goodSig) / 2, len(goodSig) - 2} {
		badSig := make([]byte, len(goodSig))
		copy(badSig, goodSig)
		badSig[i] ^= 0x01
		badScriptSig, err := NewScriptBuilder().AddData(badSig).Script()
		require.NoError(t, err)

		err = executeScriptPair(t, badScriptSig, pkScript,
			StandardVerifyFlags, fakeVerifier)
		assert.Truef(t, IsErrorCode(err, ErrEvalFalse),
			"corrupt sig byte %d: %v", i, err)
	}

	// Corrupting the hash type byte fails the script.
	badSig := append(fakeSign(pubKey), 0x03)
	badScriptSig, err := NewScriptBuilder().AddData(badSig).Script()
	require.NoError(t, err)
	err = executeScriptPair(t, badScriptSig, pkScript, StandardVerifyFlags,
		fakeVerifier)
	assert.True(t, IsErrorCode(err, ErrEvalFalse))

	// Corrupting the public key fails the script.
	badPkScript, err := payToPubKeyScript(fakePubKey(0xac))
	require.NoError(t, err)
	err = executeScriptPair(t, scriptSig, badPkScript, StandardVerifyFlags,
		fakeVerifier)
	assert.True(t, IsErrorCode(err, ErrEvalFalse))
}

func TestEngineP2PKH(t *testing.T) {
	pubKey := fakePubKey(0x77)
	sig := append(fakeSign(pubKey), sigHashAll)

	pkScript, err := payToPubKeyHashScript(hash160(pubKey))
	require.NoError(t, err)

	scriptSig, err := NewScriptBuilder().AddData(sig).AddData(pubKey).Script()
	require.NoError(t, err)

	err = executeScriptPair(t, scriptSig, pkScript, StandardVerifyFlags,
		fakeVerifier)
	assert.NoError(t, err)

	// A different pubkey fails at OP_EQUALVERIFY.
	wrongKey := fakePubKey(0x78)
	wrongSig := append(fakeSign(wrongKey), sigHashAll)
	scriptSig, err = NewScriptBuilder().AddData(wrongSig).AddData(wrongKey).Script()
	require.NoError(t, err)

	err = executeScriptPair(t, scriptSig, pkScript, StandardVerifyFlags,
		fakeVerifier)
	assert.True(t, IsErrorCode(err, ErrEqualVerify))
}

// TestEngineCheckMultiSig covers the 2-of-3 success path, the monotonic
// ordering requirement, and the historical extra dummy pop.
func TestEngineCheckMultiSig(t *testing.T) {
	k1, k2, k3 := fakePubKey(0x11), fakePubKey(0x22), fakePubKey(0x33)
	s1 := append(fakeSign(k1), sigHashAll)
	s2 := append(fakeSign(k2), sigHashAll)
	s3 := append(fakeSign(k3), sigHashAll)

	pkScript, err := NewScriptBuilder().
		AddOp(OP_2).
		AddData(k1).AddData(k2).AddData(k3).
		AddOp(OP_3).
		AddOp(OP_CHECKMULTISIG).
		Script()
	require.NoError(t, err)

	makeSigScript := func(sigs ...[]byte) []byte {
		builder := NewScriptBuilder().AddOp(OP_0)
		for _, sig := range sigs {
			builder.AddData(sig)
		}
		script, err := builder.Script()
		require.NoError(t, err)
		return script
	}

	// 0 <s1> <s2> 2 <k1> <k2> <k3> 3 OP_CHECKMULTISIG runs to true.
	err = executeScriptPair(t, makeSigScript(s1, s2), pkScript,
		StandardVerifyFlags, fakeVerifier)
	assert.NoError(t, err)

	// Any monotone pairing works: (s1, s3) and (s2, s3).
	err = executeScriptPair(t, makeSigScript(s1, s3), pkScript,
		StandardVerifyFlags, fakeVerifier)
	assert.NoError(t, err)
	err = executeScriptPair(t, makeSigScript(s2, s3), pkScript,
		StandardVerifyFlags, fakeVerifier)
	assert.NoError(t, err)

	// Signatures out of key order fail: s2 before s1 can not match
	// monotonically.
	err = executeScriptPair(t, makeSigScript(s2, s1), pkScript,
		StandardVerifyFlags, fakeVerifier)
	assert.True(t, IsErrorCode(err, ErrEvalFalse))

	// A signature by an unknown key fails.
	sX := append(fakeSign(fakePubKey(0x44)), sigHashAll)
	err = executeScriptPair(t, makeSigScript(s1, sX), pkScript,
		StandardVerifyFlags, fakeVerifier)
	assert.True(t, IsErrorCode(err, ErrEvalFalse))

	// The dummy element is consumed unconditionally: omitting it
	// underflows the stack.
	noDummy, err := NewScriptBuilder().AddData(s1).AddData(s2).Script()
	require.NoError(t, err)
	err = executeScriptPair(t, noDummy, pkScript, StandardVerifyFlags,
		fakeVerifier)
	assert.True(t, IsErrorCode(err, ErrInvalidStackOperation))
}

func TestEngineStackOps(t *testing.T) {
	tests := []struct {
		name      string
		scriptSig string
		pkScript  string
		valid     bool
	}{
		{"dup", "1", "OP_DUP OP_EQUAL", true},
		{"drop", "1 2", "OP_DROP", true},
		{"swap", "0 1", "OP_SWAP OP_DROP", true},
		{"tuck+alt", "2 0", "OP_TOALTSTACK OP_DUP OP_TUCK OP_DROP " +
			"OP_2DROP OP_FROMALTSTACK OP_NOT", true},
		{"altstack", "7", "OP_TOALTSTACK OP_FROMALTSTACK 7 OP_NUMEQUAL", true},
		{"arith", "3 4", "OP_ADD 7 OP_NUMEQUAL", true},
		{"sub", "5 3", "OP_SUB 2 OP_EQUAL", true},
		{"booland", "1 5", "OP_BOOLAND", true},
		{"gte", "5 5", "OP_GREATERTHANOREQUAL", true},
		{"within", "3 2 5", "OP_WITHIN", true},
		{"verify ok", "1", "OP_VERIFY 1", true},
		{"verify fail", "0", "OP_VERIFY 1", false},
		{"empty final stack", "1", "OP_DROP", false},
		{"false final stack", "0", "OP_NOP", false},
		{"early return", "1", "OP_RETURN", false},
		{"underflow", "", "OP_DUP", false},
		{"conditional true", "1", "OP_IF 1 OP_ELSE 0 OP_ENDIF", true},
		{"conditional false", "0", "OP_IF 0 OP_ELSE 1 OP_ENDIF", true},
		{"unbalanced", "1", "OP_IF 1", false},
		{"disabled", "1", "OP_CAT", false},
		{"depth", "1 1", "OP_DEPTH 2 OP_NUMEQUAL OP_NIP OP_NIP", true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			scriptSig := mustParseShortForm(t, test.scriptSig)
			pkScript := mustParseShortForm(t, test.pkScript)

			err := executeScriptPair(t, scriptSig, pkScript, 0, nil)
			if test.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestEngineHashOpcodes(t *testing.T) {
	data := []byte("hello world")

	tests := []struct {
		name   string
		opcode byte
		want   []byte
	}{
		{"sha256", OP_SHA256, chainhash.HashB(data)},
		{"hash256", OP_HASH256, chainhash.DoubleHashB(data)},
		{"hash160", OP_HASH160, chainutil.Hash160(data)},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			scriptSig, err := NewScriptBuilder().AddData(data).Script()
			require.NoError(t, err)
			pkScript, err := NewScriptBuilder().
				AddOp(test.opcode).
				AddData(test.want).
				AddOp(OP_EQUAL).
				Script()
			require.NoError(t, err)

			err = executeScriptPair(t, scriptSig, pkScript,
				StandardVerifyFlags, nil)
			assert.NoError(t, err)
		})
	}
}

func TestEngineScriptTooBig(t *testing.T) {
	bigScript := make([]byte, MaxScriptSize+1)
	_, err := NewEngine(nil, bigScript, 0, nil)
	assert.True(t, IsErrorCode(err, ErrScriptTooBig), "err: %v", err)
}

func TestEngineStackOverflow(t *testing.T) {
	// 1001 pushes exceeds the combined stack limit.
	script := bytes.Repeat([]byte{OP_1}, MaxStackSize+1)

	err := executeScriptPair(t, nil, script, 0, nil)
	assert.True(t, IsErrorCode(err, ErrStackOverflow), "err: %v", err)
}

func TestEngineElementTooBig(t *testing.T) {
	data := make([]byte, MaxScriptElementSize+1)
	script, err := NewScriptBuilder().AddFullData(data).Script()
	require.NoError(t, err)

	err = executeScriptPair(t, nil, script, 0, nil)
	assert.True(t, IsErrorCode(err, ErrElementTooBig), "err: %v", err)
}

func TestEngineTooManyOperations(t *testing.T) {
	script := bytes.Repeat([]byte{OP_NOP}, MaxOpsPerScript+1)

	err := executeScriptPair(t, nil, script, 0, nil)
	assert.True(t, IsErrorCode(err, ErrTooManyOperations), "err: %v", err)
}

// TestEngineCheckHashVerify exercises the BIP-17 commitment opcode behind its
// consensus flag, including the OP_NOP2 fallback when the flag is off.
func TestEngineCheckHashVerify(t *testing.T) {
	// The committed span is everything in the public key script before
	// the OP_CHECKHASHVERIFY: here OP_DUP OP_DROP.
	span := []byte{OP_DUP, OP_DROP}
	commitment := hash160(span)

	pkScript := append(append([]byte{}, span...), OP_CHECKHASHVERIFY, OP_1)
	scriptSig, err := NewScriptBuilder().AddData(commitment).Script()
	require.NoError(t, err)

	// Matching commitment verifies.
	err = executeScriptPair(t, scriptSig, pkScript,
		ScriptBip17CheckHashVerify, nil)
	assert.NoError(t, err)

	// A wrong commitment fails.
	badCommitment := make([]byte, 20)
	badScriptSig, err := NewScriptBuilder().AddData(badCommitment).Script()
	require.NoError(t, err)
	err = executeScriptPair(t, badScriptSig, pkScript,
		ScriptBip17CheckHashVerify, nil)
	assert.True(t, IsErrorCode(err, ErrCheckHashVerify), "err: %v", err)

	// A commitment that is not 20 bytes fails.
	shortScriptSig, err := NewScriptBuilder().AddData([]byte{0x01}).Script()
	require.NoError(t, err)
	err = executeScriptPair(t, shortScriptSig, pkScript,
		ScriptBip17CheckHashVerify, nil)
	assert.True(t, IsErrorCode(err, ErrCheckHashVerify), "err: %v", err)

	// Without the flag the byte is a plain OP_NOP2: the commitment stays
	// on the stack untouched and the trailing OP_1 leaves true on top.
	err = executeScriptPair(t, scriptSig, pkScript, 0, nil)
	assert.NoError(t, err)

	// A OP_CODESEPARATOR restarts the committed span.
	sepSpan := []byte{OP_SWAP, OP_DROP}
	sepCommitment := hash160(sepSpan)
	sepPkScript := []byte{OP_NOP, OP_CODESEPARATOR}
	sepPkScript = append(sepPkScript, sepSpan...)
	sepPkScript = append(sepPkScript, OP_CHECKHASHVERIFY, OP_1)

	sepScriptSig, err := NewScriptBuilder().
		AddOp(OP_1).
		AddData(sepCommitment).
		Script()
	require.NoError(t, err)
	err = executeScriptPair(t, sepScriptSig, sepPkScript,
		ScriptBip17CheckHashVerify, nil)
	assert.NoError(t, err)
}

// TestEngineMinimalData ensures non-minimal pushes fail only when the flag is
// set.
func TestEngineMinimalData(t *testing.T) {
	// OP_DATA_1 0x05 is the non-minimal form of OP_5.
	scriptSig := []byte{OP_DATA_1, 0x05}
	pkScript := mustParseShortForm(t, "5 OP_NUMEQUAL")

	err := executeScriptPair(t, scriptSig, pkScript, 0, nil)
	assert.NoError(t, err)

	err = executeScriptPair(t, scriptSig, pkScript, ScriptVerifyMinimalData, nil)
	assert.True(t, IsErrorCode(err, ErrMalformedPush), "err: %v", err)
}

// TestEngineNoVerifier ensures signature opcodes fail closed when no callback
// was provided.
func TestEngineNoVerifier(t *testing.T) {
	pubKey := fakePubKey(0x55)
	sig := append(fakeSign(pubKey), sigHashAll)

	pkScript, err := payToPubKeyScript(pubKey)
	require.NoError(t, err)
	scriptSig, err := NewScriptBuilder().AddData(sig).Script()
	require.NoError(t, err)

	err = executeScriptPair(t, scriptSig, pkScript, 0, nil)
	assert.True(t, IsErrorCode(err, ErrEvalFalse), "err: %v", err)
}
