// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2025 The bitwire developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/bitwire/core/chaincfg"
	"gitlab.com/bitwire/core/chainutil"
)

func TestGetScriptClass(t *testing.T) {
	tests := []struct {
		name   string
		script string
		class  ScriptClass
	}{
		{
			"p2pkh",
			"OP_DUP OP_HASH160 17977bca1b6287a5e6559c57ef4b6525e9d7ded6 " +
				"OP_EQUALVERIFY OP_CHECKSIG",
			PubKeyHashTy,
		},
		{
			"p2pk compressed",
			"02192d74d0cb94344c9569c2e77901573d8d7903c3ebec3a957724895dca52c6b4 " +
				"OP_CHECKSIG",
			PubKeyTy,
		},
		{
			"p2sh",
			"OP_HASH160 17977bca1b6287a5e6559c57ef4b6525e9d7ded6 OP_EQUAL",
			ScriptHashTy,
		},
		{
			"1-of-1 multisig",
			"1 02192d74d0cb94344c9569c2e77901573d8d7903c3ebec3a957724895dca52c6b4 " +
				"1 OP_CHECKMULTISIG",
			MultiSigTy,
		},
		{
			"nulldata",
			"OP_RETURN 64617461",
			NullDataTy,
		},
		{
			// A 19-byte push is not a P2PKH template.
			"p2pkh short hash",
			"OP_DUP OP_HASH160 977bca1b6287a5e6559c57ef4b6525e9d7ded6 " +
				"OP_EQUALVERIFY OP_CHECKSIG",
			NonStandardTy,
		},
		{
			// Requiring more signatures than there are pubkeys
			// keeps this nonstandard.
			"multisig count mismatch",
			"2 02192d74d0cb94344c9569c2e77901573d8d7903c3ebec3a957724895dca52c6b4 " +
				"1 OP_CHECKMULTISIG",
			NonStandardTy,
		},
		{
			"nonsense",
			"OP_ADD OP_ADD",
			NonStandardTy,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			script := mustParseShortForm(t, test.script)
			assert.Equal(t, test.class, GetScriptClass(script))
			assert.Equal(t, test.class.String(),
				GetScriptClass(script).String())
		})
	}
}

// TestExtractPkScriptAddrsP2PKH covers the canonical address extraction
// scenario: the script hex decodes to a P2PKH template whose derived mainnet
// address is known.
func TestExtractPkScriptAddrsP2PKH(t *testing.T) {
	script, err := hex.DecodeString(
		"76a91417977bca1b6287a5e6559c57ef4b6525e9d7ded688ac")
	require.NoError(t, err)

	class, addrs, reqSigs, err := ExtractPkScriptAddrs(script,
		&chaincfg.MainNetParams)
	require.NoError(t, err)
	assert.Equal(t, PubKeyHashTy, class)
	assert.Equal(t, 1, reqSigs)
	require.Len(t, addrs, 1)
	assert.Equal(t, "139k1g5rtTsL4aGZbcASH3Fv3fUh9yBEdW",
		addrs[0].EncodeAddress())
}

func TestExtractPkScriptAddrsPubKey(t *testing.T) {
	pubKeyHex := "02192d74d0cb94344c9569c2e77901573d8d7903c3ebec3a957724895dca52c6b4"
	script := mustParseShortForm(t, pubKeyHex+" OP_CHECKSIG")

	class, addrs, reqSigs, err := ExtractPkScriptAddrs(script,
		&chaincfg.MainNetParams)
	require.NoError(t, err)
	assert.Equal(t, PubKeyTy, class)
	assert.Equal(t, 1, reqSigs)
	require.Len(t, addrs, 1)

	pubKey, err := hex.DecodeString(pubKeyHex)
	require.NoError(t, err)
	assert.Equal(t, pubKey, addrs[0].ScriptAddress())
}

func TestExtractPkScriptAddrsMultiSig(t *testing.T) {
	k1 := "02192d74d0cb94344c9569c2e77901573d8d7903c3ebec3a957724895dca52c6b4"
	k2 := "03b0bd634234abbb1ba1e986e884185c61cf43e001f9137f23c2c409273eb16e65"
	script := mustParseShortForm(t, "1 "+k1+" "+k2+" 2 OP_CHECKMULTISIG")

	class, addrs, reqSigs, err := ExtractPkScriptAddrs(script,
		&chaincfg.MainNetParams)
	require.NoError(t, err)
	assert.Equal(t, MultiSigTy, class)
	assert.Equal(t, 1, reqSigs)
	assert.Len(t, addrs, 2)

	numPubKeys, numSigs, err := CalcMultiSigStats(script)
	require.NoError(t, err)
	assert.Equal(t, 2, numPubKeys)
	assert.Equal(t, 1, numSigs)

	// A non-multisig script errors.
	_, _, err = CalcMultiSigStats(mustParseShortForm(t, "OP_DUP"))
	assert.True(t, IsErrorCode(err, ErrNotMultisigScript))
}

func TestPayToAddrScript(t *testing.T) {
	pkHash, err := hex.DecodeString("17977bca1b6287a5e6559c57ef4b6525e9d7ded6")
	require.NoError(t, err)

	p2pkhAddr, err := chainutil.NewAddressPubKeyHash(pkHash, &chaincfg.MainNetParams)
	require.NoError(t, err)

	script, err := PayToAddrScript(p2pkhAddr)
	require.NoError(t, err)
	assert.Equal(t, "76a91417977bca1b6287a5e6559c57ef4b6525e9d7ded688ac",
		hex.EncodeToString(script))
	assert.Equal(t, PubKeyHashTy, GetScriptClass(script))

	// Pay-to-pubkey.
	pubKey, err := hex.DecodeString(
		"02192d74d0cb94344c9569c2e77901573d8d7903c3ebec3a957724895dca52c6b4")
	require.NoError(t, err)
	pkAddr, err := chainutil.NewAddressPubKey(pubKey, &chaincfg.MainNetParams)
	require.NoError(t, err)

	script, err = PayToAddrScript(pkAddr)
	require.NoError(t, err)
	assert.Equal(t, PubKeyTy, GetScriptClass(script))

	// Pay-to-script-hash.
	scriptAddr, err := chainutil.NewAddressScriptHash([]byte{OP_1}, &chaincfg.MainNetParams)
	require.NoError(t, err)
	script, err = PayToAddrScript(scriptAddr)
	require.NoError(t, err)
	assert.Equal(t, ScriptHashTy, GetScriptClass(script))

	// Unsupported address type.
	_, err = PayToAddrScript(nil)
	assert.True(t, IsErrorCode(err, ErrUnsupportedAddress))
}

func TestMultiSigScript(t *testing.T) {
	pubKey, err := hex.DecodeString(
		"02192d74d0cb94344c9569c2e77901573d8d7903c3ebec3a957724895dca52c6b4")
	require.NoError(t, err)
	addr, err := chainutil.NewAddressPubKey(pubKey, &chaincfg.MainNetParams)
	require.NoError(t, err)

	script, err := MultiSigScript([]*chainutil.AddressPubKey{addr, addr}, 2)
	require.NoError(t, err)
	assert.Equal(t, MultiSigTy, GetScriptClass(script))

	// Requiring more signatures than keys is rejected.
	_, err = MultiSigScript([]*chainutil.AddressPubKey{addr}, 2)
	assert.True(t, IsErrorCode(err, ErrInvalidSignatureCount))
}

func TestPushedData(t *testing.T) {
	script := mustParseShortForm(t, "0 OP_IF 64617461 OP_ENDIF")
	data, err := PushedData(script)
	require.NoError(t, err)
	require.Len(t, data, 2)
	assert.Nil(t, data[0])
	assert.Equal(t, []byte("data"), data[1])

	_, err = PushedData([]byte{OP_PUSHDATA1})
	assert.Error(t, err)
}

func TestNullDataScript(t *testing.T) {
	script, err := NullDataScript([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, NullDataTy, GetScriptClass(script))

	_, err = NullDataScript(make([]byte, MaxDataCarrierSize+1))
	assert.True(t, IsErrorCode(err, ErrElementTooBig))
}
