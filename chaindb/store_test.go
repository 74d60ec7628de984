// Copyright (c) 2025 The bitwire developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaindb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/bitwire/core/chaincfg"
	"gitlab.com/bitwire/core/chainutil"
	"gitlab.com/bitwire/core/types/chainhash"
	"gitlab.com/bitwire/core/types/wire"
)

// makeTestBlock builds a minimal valid block on top of the given predecessor.
// The nonce differentiates blocks built at the same position.
func makeTestBlock(prevHash chainhash.Hash, nonce uint32) *chainutil.Block {
	coinbase := wire.NewMsgTx(wire.TxVersion)
	coinbase.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{
			Hash:  chainhash.ZeroHash,
			Index: wire.MaxPrevOutIndex,
		},
		SignatureScript: []byte{0x04, byte(nonce), 0x01, 0x02, 0x03},
		Sequence:        wire.MaxTxInSequenceNum,
	})
	coinbase.AddTxOut(&wire.TxOut{Value: 50 * chainutil.SatoshiPerBitcoin, PkScript: []byte{0x51}})

	header := wire.BlockHeader{
		Version:    1,
		PrevBlock:  prevHash,
		MerkleRoot: coinbase.TxHash(),
		Timestamp:  time.Unix(0x495fab29, 0),
		Bits:       chaincfg.RegressionNetParams.PowLimitBits,
		Nonce:      nonce,
	}

	block := wire.NewMsgBlock(&header)
	block.AddTransaction(coinbase)
	return chainutil.NewBlock(block)
}

// makeTestChain builds n blocks extending from genesis (a zero previous
// hash).
func makeTestChain(n int) []*chainutil.Block {
	blocks := make([]*chainutil.Block, 0, n)
	prev := chainhash.ZeroHash
	for i := 0; i < n; i++ {
		block := makeTestBlock(prev, uint32(i+1))
		blocks = append(blocks, block)
		prev = *block.Hash()
	}
	return blocks
}

// testStoreContract runs the conformance suite every Store implementation
// must pass.
func testStoreContract(t *testing.T, store Store) {
	blocks := makeTestChain(5)

	// Empty store has no head.
	_, err := store.Head()
	assert.Equal(t, ErrNotFound, err)

	// Store the chain in order.
	for i, block := range blocks {
		status, err := store.StoreBlock(block)
		require.NoErrorf(t, err, "block %d", i)
		assert.Equalf(t, BlockNew, status, "block %d", i)
	}

	// Resubmission is idempotent.
	status, err := store.StoreBlock(blocks[2])
	require.NoError(t, err)
	assert.Equal(t, BlockExisting, status)

	// Head is the last stored block.
	head, err := store.Head()
	require.NoError(t, err)
	assert.Equal(t, *blocks[4].Hash(), *head.Hash())
	assert.Equal(t, int32(4), head.Height())

	// Lookups by hash and height agree, and the height invariant holds:
	// the block at height h-1 is the block referenced by PrevBlock.
	for i, block := range blocks {
		byHash, err := store.Block(block.Hash())
		require.NoErrorf(t, err, "block %d", i)
		assert.Equalf(t, *block.Hash(), *byHash.Hash(), "block %d", i)

		byHeight, err := store.BlockAtHeight(int32(i))
		require.NoErrorf(t, err, "height %d", i)
		assert.Equalf(t, *block.Hash(), *byHeight.Hash(), "height %d", i)

		if i > 0 {
			parent, err := store.BlockAtHeight(int32(i - 1))
			require.NoError(t, err)
			assert.Equal(t, *parent.Hash(),
				byHeight.MsgBlock().Header.PrevBlock)
		}
	}

	// Linear traversal from genesis visits every block.
	cursor, err := store.BlockAtHeight(0)
	require.NoError(t, err)
	visited := 1
	for {
		next, err := store.NextBlock(cursor.Hash())
		if err == ErrNotFound {
			break
		}
		require.NoError(t, err)
		visited++
		cursor = next
	}
	assert.Equal(t, len(blocks), visited)

	// Unknown lookups fail with ErrNotFound.
	bogus := chainhash.HashH([]byte("missing"))
	_, err = store.Block(&bogus)
	assert.Equal(t, ErrNotFound, err)
	_, err = store.BlockAtHeight(100)
	assert.Equal(t, ErrNotFound, err)
	_, err = store.NextBlock(head.Hash())
	assert.Equal(t, ErrNotFound, err)

	// Has agrees with the lookups.
	assert.True(t, store.Has(wire.InvTypeBlock, blocks[0].Hash()))
	assert.False(t, store.Has(wire.InvTypeBlock, &bogus))

	// Loose transactions are idempotent and retrievable.
	tx := chainutil.NewTx(wire.NewMsgTx(wire.TxVersion))
	tx.MsgTx().AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: *blocks[0].Hash(), Index: 0},
		SignatureScript:  []byte{0x51},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	tx.MsgTx().AddTxOut(&wire.TxOut{Value: 1000, PkScript: []byte{0x51}})

	txStatus, err := store.StoreTx(tx)
	require.NoError(t, err)
	assert.Equal(t, TxNew, txStatus)
	txStatus, err = store.StoreTx(tx)
	require.NoError(t, err)
	assert.Equal(t, TxExisting, txStatus)

	gotTx, err := store.Tx(tx.Hash())
	require.NoError(t, err)
	assert.Equal(t, *tx.Hash(), *gotTx.Hash())
	assert.True(t, store.Has(wire.InvTypeTx, tx.Hash()))

	// Transactions confirmed in blocks are found as well.
	coinbaseHash := blocks[1].Transactions()[0].Hash()
	gotTx, err = store.Tx(coinbaseHash)
	require.NoError(t, err)
	assert.Equal(t, *coinbaseHash, *gotTx.Hash())
}

// testStoreOrphans runs the orphan adoption portion of the conformance
// suite.
func testStoreOrphans(t *testing.T, store Store, orphanCount func() int) {
	blocks := makeTestChain(4)

	// Deliver out of order: 2, 3 first become orphans.
	status, err := store.StoreBlock(blocks[2])
	require.NoError(t, err)
	assert.Equal(t, BlockOrphan, status)
	status, err = store.StoreBlock(blocks[3])
	require.NoError(t, err)
	assert.Equal(t, BlockOrphan, status)
	assert.Equal(t, 2, orphanCount())

	// Orphans count as present so peers are not asked again.
	assert.True(t, store.Has(wire.InvTypeBlock, blocks[2].Hash()))

	// Resubmitting an orphan is idempotent.
	status, err = store.StoreBlock(blocks[2])
	require.NoError(t, err)
	assert.Equal(t, BlockExisting, status)

	// Genesis connects, but its successor is still missing.
	status, err = store.StoreBlock(blocks[0])
	require.NoError(t, err)
	assert.Equal(t, BlockNew, status)
	assert.Equal(t, 2, orphanCount())

	// Block 1 arrives and the whole orphan chain cascades in.
	status, err = store.StoreBlock(blocks[1])
	require.NoError(t, err)
	assert.Equal(t, BlockNew, status)
	assert.Equal(t, 0, orphanCount())

	head, err := store.Head()
	require.NoError(t, err)
	assert.Equal(t, *blocks[3].Hash(), *head.Hash())
	assert.Equal(t, int32(3), head.Height())
}

// testStoreInvalid verifies the merkle commitment sanity check.
func testStoreInvalid(t *testing.T, store Store) {
	block := makeTestBlock(chainhash.ZeroHash, 99)
	block.MsgBlock().Header.MerkleRoot = chainhash.HashH([]byte("wrong"))

	status, err := store.StoreBlock(chainutil.NewBlock(block.MsgBlock()))
	require.NoError(t, err)
	assert.Equal(t, BlockInvalid, status)
}

func TestMemStoreContract(t *testing.T) {
	store := NewMemStore()
	defer store.Close()
	testStoreContract(t, store)
}

func TestMemStoreOrphans(t *testing.T) {
	store := NewMemStore()
	defer store.Close()
	testStoreOrphans(t, store, store.OrphanCount)
}

func TestMemStoreInvalid(t *testing.T) {
	store := NewMemStore()
	defer store.Close()
	testStoreInvalid(t, store)
}

func TestBadgerStoreContract(t *testing.T) {
	store, err := OpenBadgerStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()
	testStoreContract(t, store)
}

func TestBadgerStoreOrphans(t *testing.T) {
	store, err := OpenBadgerStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()
	testStoreOrphans(t, store, store.OrphanCount)
}

func TestBadgerStoreInvalid(t *testing.T) {
	store, err := OpenBadgerStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()
	testStoreInvalid(t, store)
}

// TestBadgerStorePersistence ensures the chain survives a close and reopen.
func TestBadgerStorePersistence(t *testing.T) {
	dir := t.TempDir()

	store, err := OpenBadgerStore(dir)
	require.NoError(t, err)

	blocks := makeTestChain(3)
	for _, block := range blocks {
		status, err := store.StoreBlock(block)
		require.NoError(t, err)
		require.Equal(t, BlockNew, status)
	}
	require.NoError(t, store.Close())

	reopened, err := OpenBadgerStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	head, err := reopened.Head()
	require.NoError(t, err)
	assert.Equal(t, *blocks[2].Hash(), *head.Hash())
	assert.Equal(t, int32(2), head.Height())

	status, err := reopened.StoreBlock(blocks[1])
	require.NoError(t, err)
	assert.Equal(t, BlockExisting, status)
}
