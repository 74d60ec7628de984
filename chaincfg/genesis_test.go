// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2025 The bitwire developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"bytes"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/bitwire/core/types/chainhash"
	"gitlab.com/bitwire/core/types/wire"
)

// TestGenesisBlock tests the genesis block of the main network for validity by
// checking the encoded hash and merkle root.
func TestGenesisBlock(t *testing.T) {
	// Check hash of the block against expected hash.
	hash := MainNetParams.GenesisBlock.BlockHash()
	assert.Equal(t, *MainNetParams.GenesisHash, hash,
		"TestGenesisBlock: Genesis block hash does not appear valid - got %v",
		spew.Sdump(hash))
	assert.Equal(t,
		"000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f",
		hash.String())

	// The merkle root of a single-transaction block is the transaction
	// hash itself.
	require.Len(t, MainNetParams.GenesisBlock.Transactions, 1)
	coinbase := MainNetParams.GenesisBlock.Transactions[0]
	assert.True(t, coinbase.IsCoinBase())
	assert.Equal(t, MainNetParams.GenesisBlock.Header.MerkleRoot,
		coinbase.TxHash())
	assert.Equal(t, chainhash.MerkleTreeRoot([]chainhash.Hash{coinbase.TxHash()}),
		MainNetParams.GenesisBlock.Header.MerkleRoot)

	// Genesis header fields per the original chain.
	header := MainNetParams.GenesisBlock.Header
	assert.Equal(t, chainhash.ZeroHash, header.PrevBlock)
	assert.Equal(t, int64(1231006505), header.Timestamp.Unix())
	assert.Equal(t, uint32(0x1d00ffff), header.Bits)
	assert.Equal(t, uint32(2083236893), header.Nonce)
}

// TestRegTestGenesisBlock tests the genesis block of the regression test
// network for validity by checking the encoded hash.
func TestRegTestGenesisBlock(t *testing.T) {
	hash := RegressionNetParams.GenesisBlock.BlockHash()
	assert.Equal(t, *RegressionNetParams.GenesisHash, hash,
		"TestRegTestGenesisBlock: Genesis block hash does not appear valid - got %v",
		spew.Sdump(hash))
}

// TestTestNet3GenesisBlock tests the genesis block of the test network
// (version 3) for validity by checking the encoded hash.
func TestTestNet3GenesisBlock(t *testing.T) {
	hash := TestNet3Params.GenesisBlock.BlockHash()
	assert.Equal(t, *TestNet3Params.GenesisHash, hash,
		"TestTestNet3GenesisBlock: Genesis block hash does not appear valid - got %v",
		spew.Sdump(hash))
}

// TestGenesisRoundTrip ensures the genesis block round-trips through the
// wire codec byte-exactly.
func TestGenesisRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, MainNetParams.GenesisBlock.Serialize(&buf))

	decoded, err := wire.BlockFromBytes(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, MainNetParams.GenesisBlock.BlockHash(), decoded.BlockHash())

	var buf2 bytes.Buffer
	require.NoError(t, decoded.Serialize(&buf2))
	assert.Equal(t, buf.Bytes(), buf2.Bytes())
}

// TestParamsLookup exercises the net and name registries.
func TestParamsLookup(t *testing.T) {
	params, err := ParamsForNet(wire.MainNet)
	require.NoError(t, err)
	assert.Equal(t, &MainNetParams, params)

	params, err = ParamsForName("regtest")
	require.NoError(t, err)
	assert.Equal(t, &RegressionNetParams, params)

	_, err = ParamsForNet(wire.BitcoinNet(0xdeadbeef))
	assert.Equal(t, ErrUnknownNet, err)

	_, err = ParamsForName("bogus")
	assert.Equal(t, ErrUnknownNet, err)
}
