// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2025 The bitwire developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mustParseShortForm wraps ParseDisasmString for tests with known-good input.
func mustParseShortForm(t *testing.T, script string) []byte {
	t.Helper()
	parsed, err := ParseDisasmString(script)
	require.NoErrorf(t, err, "invalid script %q", script)
	return parsed
}

func TestScriptParseUnparseRoundTrip(t *testing.T) {
	tests := []string{
		// P2PKH.
		"76a91417977bca1b6287a5e6559c57ef4b6525e9d7ded688ac",
		// Pay-to-pubkey (compressed key).
		"21021aeaf2f8638a129a3156fbe7e5ef635226b0bafd495ff03afe2c843d7e3a4b51ac",
		// OP_RETURN with data.
		"6a0b68656c6c6f20776f726c64",
		// Pushdata1.
		"4c50" + hex.EncodeToString(bytes.Repeat([]byte{0xaa}, 80)),
		// Empty script.
		"",
	}

	for i, test := range tests {
		script, err := hex.DecodeString(test)
		require.NoErrorf(t, err, "test #%d", i)

		pops, err := parseScript(script)
		require.NoErrorf(t, err, "test #%d", i)

		unparsed, err := unparseScript(pops)
		require.NoErrorf(t, err, "test #%d", i)
		if len(script) == 0 {
			assert.Empty(t, unparsed)
			continue
		}
		assert.Equalf(t, script, unparsed, "test #%d", i)
	}
}

func TestScriptParseMalformedPush(t *testing.T) {
	tests := [][]byte{
		// OP_DATA_5 with only 3 bytes of data.
		{0x05, 0x01, 0x02, 0x03},
		// OP_PUSHDATA1 missing the length byte.
		{OP_PUSHDATA1},
		// OP_PUSHDATA1 claiming more data than present.
		{OP_PUSHDATA1, 0x10, 0x01},
		// OP_PUSHDATA2 truncated length.
		{OP_PUSHDATA2, 0x01},
		// OP_PUSHDATA4 claiming more data than present.
		{OP_PUSHDATA4, 0xff, 0xff, 0xff, 0x7f},
	}

	for i, script := range tests {
		_, err := parseScript(script)
		require.Errorf(t, err, "test #%d", i)
		assert.Truef(t, IsErrorCode(err, ErrMalformedPush), "test #%d: %v", i, err)
	}
}

// TestDisasmStringRoundTrip verifies that the one-line textual notation
// parses back to the identical script and prints back to the identical text.
func TestDisasmStringRoundTrip(t *testing.T) {
	tests := []string{
		"2 OP_TOALTSTACK 0 OP_TOALTSTACK OP_TUCK OP_CHECKSIG OP_SWAP " +
			"OP_HASH160 3cd1def404e12a85ead2b4d3f5f9f817fb0d46ef OP_EQUAL " +
			"OP_BOOLAND OP_FROMALTSTACK OP_ADD",
		"OP_DUP OP_HASH160 17977bca1b6287a5e6559c57ef4b6525e9d7ded6 " +
			"OP_EQUALVERIFY OP_CHECKSIG",
		"1 02192d74d0cb94344c9569c2e77901573d8d7903c3ebec3a957724895dca52c6b4 " +
			"1 OP_CHECKMULTISIG",
		"OP_RETURN 64617461",
		"0",
		"-1 1 16 OP_ADD",
		"(opcode 186) (opcode 250)",
		"OP_NOP1 OP_CHECKHASHVERIFY OP_NOP3",
		"",
	}

	for i, text := range tests {
		script, err := ParseDisasmString(text)
		require.NoErrorf(t, err, "test #%d", i)

		// to_text(parse(text)) == text
		disasm, err := DisasmString(script)
		require.NoErrorf(t, err, "test #%d", i)
		assert.Equalf(t, text, disasm, "test #%d", i)

		// parse(to_text(parse(text))) == parse(text)
		reparsed, err := ParseDisasmString(disasm)
		require.NoErrorf(t, err, "test #%d", i)
		assert.Equalf(t, script, reparsed, "test #%d", i)
	}
}

// TestDisasmFromBytesRoundTrip starts from raw script bytes and verifies
// parse(to_text(s)) == s for scripts using plain pushes.
func TestDisasmFromBytesRoundTrip(t *testing.T) {
	rawScripts := []string{
		"76a91417977bca1b6287a5e6559c57ef4b6525e9d7ded688ac",
		"6a0b68656c6c6f20776f726c64",
		// Unknown opcodes must be preserved.
		"ba51fa",
	}

	for i, rawHex := range rawScripts {
		raw, err := hex.DecodeString(rawHex)
		require.NoErrorf(t, err, "test #%d", i)

		text, err := DisasmString(raw)
		require.NoErrorf(t, err, "test #%d", i)

		parsed, err := ParseDisasmString(text)
		require.NoErrorf(t, err, "test #%d", i)
		assert.Equalf(t, raw, parsed, "test #%d: text %q", i, text)
	}
}

func TestParseDisasmStringErrors(t *testing.T) {
	tests := []string{
		"OP_BOGUS",
		"zz",             // odd characters, not hex
		"abc",            // odd length hex
		"(opcode 999)",   // opcode out of range
		"(opcode xyz)",   // opcode not a number
		"OP_DUP OP_WHAT", // second token bogus
	}

	for i, text := range tests {
		_, err := ParseDisasmString(text)
		require.Errorf(t, err, "test #%d: %q", i, text)
		assert.Truef(t, IsErrorCode(err, ErrUnknownOpcodeName),
			"test #%d: %v", i, err)
	}
}

func TestIsPushOnlyScript(t *testing.T) {
	assert.True(t, IsPushOnlyScript(mustParseShortForm(t,
		"0 1 2 3cd1def404e12a85ead2b4d3f5f9f817fb0d46ef")))
	assert.False(t, IsPushOnlyScript(mustParseShortForm(t, "OP_DUP")))
	// Unparsable scripts are not push only.
	assert.False(t, IsPushOnlyScript([]byte{OP_PUSHDATA1}))
}

func TestGetSigOpCount(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   int
	}{
		{"p2pkh", "OP_DUP OP_HASH160 " +
			"3cd1def404e12a85ead2b4d3f5f9f817fb0d46ef OP_EQUALVERIFY " +
			"OP_CHECKSIG", 1},
		{"checksigverify", "OP_CHECKSIGVERIFY", 1},
		{"multisig imprecise", "OP_CHECKMULTISIG", 20},
		{"nulldata", "OP_RETURN 64617461", 0},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			script := mustParseShortForm(t, test.script)
			assert.Equal(t, test.want, GetSigOpCount(script))
		})
	}
}
