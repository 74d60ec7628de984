// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2025 The bitwire developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainutil_test

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/bitwire/core/chaincfg"
	"gitlab.com/bitwire/core/chainutil"
)

func TestAddressPubKeyHash(t *testing.T) {
	pkHash, err := hex.DecodeString("17977bca1b6287a5e6559c57ef4b6525e9d7ded6")
	require.NoError(t, err)

	addr, err := chainutil.NewAddressPubKeyHash(pkHash, &chaincfg.MainNetParams)
	require.NoError(t, err)

	assert.Equal(t, "139k1g5rtTsL4aGZbcASH3Fv3fUh9yBEdW", addr.EncodeAddress())
	assert.Equal(t, addr.EncodeAddress(), addr.String())
	assert.Equal(t, pkHash, addr.ScriptAddress())
	assert.True(t, addr.IsForNet(&chaincfg.MainNetParams))
	assert.False(t, addr.IsForNet(&chaincfg.TestNet3Params))

	// Round trip through the decoder.
	decoded, err := chainutil.DecodeAddress(addr.EncodeAddress(), &chaincfg.MainNetParams)
	require.NoError(t, err)
	assert.Equal(t, addr.ScriptAddress(), decoded.ScriptAddress())

	// Wrong hash size.
	_, err = chainutil.NewAddressPubKeyHash(pkHash[:19], &chaincfg.MainNetParams)
	assert.Error(t, err)

	// Corrupt checksum.
	_, err = chainutil.DecodeAddress("139k1g5rtTsL4aGZbcASH3Fv3fUh9yBEdX", &chaincfg.MainNetParams)
	assert.Equal(t, chainutil.ErrChecksumMismatch, err)
}

func TestAddressPubKey(t *testing.T) {
	// An uncompressed pubkey (the genesis coinbase output key).
	serialized, err := hex.DecodeString("04678afdb0fe5548271967f1a67130b710" +
		"5cd6a828e03909a67962e0ea1f61deb649f6bc3f4cef38c4f35504e51ec112de5c38" +
		"4df7ba0b8d578a4c702b6bf11d5f")
	require.NoError(t, err)

	addr, err := chainutil.NewAddressPubKey(serialized, &chaincfg.MainNetParams)
	require.NoError(t, err)
	assert.Equal(t, serialized, addr.ScriptAddress())
	assert.Equal(t, "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", addr.EncodeAddress())
	assert.Equal(t, addr.EncodeAddress(), addr.AddressPubKeyHash().EncodeAddress())

	// A compressed key with a bad magic must be rejected.
	bad := make([]byte, 33)
	bad[0] = 0x05
	_, err = chainutil.NewAddressPubKey(bad, &chaincfg.MainNetParams)
	assert.Error(t, err)

	// Bad length.
	_, err = chainutil.NewAddressPubKey(serialized[:64], &chaincfg.MainNetParams)
	assert.Error(t, err)
}

func TestAddressScriptHash(t *testing.T) {
	script := []byte{0x51} // OP_1
	addr, err := chainutil.NewAddressScriptHash(script, &chaincfg.MainNetParams)
	require.NoError(t, err)
	assert.Len(t, addr.ScriptAddress(), 20)
	assert.True(t, addr.IsForNet(&chaincfg.MainNetParams))

	decoded, err := chainutil.DecodeAddress(addr.EncodeAddress(), &chaincfg.MainNetParams)
	require.NoError(t, err)
	assert.Equal(t, addr.ScriptAddress(), decoded.ScriptAddress())
}
