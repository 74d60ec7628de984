// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2025 The bitwire developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mainNetGenesisBlockHex is the complete serialized bitcoin mainnet genesis
// block: 80-byte header, transaction count, and the single coinbase
// transaction.
const mainNetGenesisBlockHex = mainNetGenesisHeaderHex + "01" + genesisCoinbaseTxHex

func TestBlockGenesisRoundTrip(t *testing.T) {
	raw, err := hex.DecodeString(mainNetGenesisBlockHex)
	require.NoError(t, err)

	block, err := BlockFromBytes(raw)
	require.NoError(t, err)

	require.Len(t, block.Transactions, 1)
	assert.True(t, block.Transactions[0].IsCoinBase())
	assert.Equal(t,
		"000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f",
		block.BlockHash().String())

	// A block with a single transaction has a merkle root equal to that
	// transaction's hash.
	assert.Equal(t, block.Transactions[0].TxHash(), block.MerkleRoot())
	assert.Equal(t, block.Header.MerkleRoot, block.MerkleRoot())

	// encode(decode(raw)) == raw.
	var buf bytes.Buffer
	require.NoError(t, block.Serialize(&buf))
	assert.Equal(t, raw, buf.Bytes())

	// decode(encode(block)).hash == block.hash.
	reblock, err := BlockFromBytes(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, block.BlockHash(), reblock.BlockHash())
}

func TestBlockTooManyTxs(t *testing.T) {
	raw, err := hex.DecodeString(mainNetGenesisHeaderHex)
	require.NoError(t, err)

	var buf bytes.Buffer
	buf.Write(raw)
	WriteVarInt(&buf, maxTxPerBlock+1)

	_, err = BlockFromBytes(buf.Bytes())
	var msgErr *MessageError
	require.ErrorAs(t, err, &msgErr)
}

func TestBlockTruncated(t *testing.T) {
	raw, err := hex.DecodeString(mainNetGenesisBlockHex)
	require.NoError(t, err)

	// Chopping anywhere inside the transaction area must fail, never
	// silently recover.
	for _, cut := range []int{81, 100, len(raw) - 1} {
		_, err := BlockFromBytes(raw[:cut])
		assert.Errorf(t, err, "cut at %d", cut)
	}
}
