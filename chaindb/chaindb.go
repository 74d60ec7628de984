// Copyright (c) 2025 The bitwire developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chaindb defines the logical block and transaction store the node
// runs against, along with a reference in-memory implementation and a
// badger-backed file implementation.  Both satisfy the same contract and are
// exercised by the same conformance tests.
package chaindb

import (
	"errors"

	"gitlab.com/bitwire/core/chainutil"
	"gitlab.com/bitwire/core/types/chainhash"
	"gitlab.com/bitwire/core/types/wire"
)

// ErrNotFound is returned when a requested block or transaction does not
// exist in the store.
var ErrNotFound = errors.New("chaindb: not found")

// BlockStatus describes the outcome of submitting a block to the store.
type BlockStatus int

// The possible outcomes of StoreBlock.
const (
	// BlockNew means the block extended the chain and was stored.
	BlockNew BlockStatus = iota

	// BlockExisting means the block was already present.  Resubmission is
	// idempotent.
	BlockExisting

	// BlockOrphan means the block's predecessor has not been observed yet.
	// The block is retained in a side pool and re-evaluated when its
	// predecessor arrives.
	BlockOrphan

	// BlockInvalid means the block failed the store's sanity checks, such
	// as a merkle root that does not commit to its transactions.
	BlockInvalid
)

// String returns the BlockStatus in human-readable form.
func (s BlockStatus) String() string {
	switch s {
	case BlockNew:
		return "new"
	case BlockExisting:
		return "existing"
	case BlockOrphan:
		return "orphan"
	case BlockInvalid:
		return "invalid"
	}
	return "unknown"
}

// TxStatus describes the outcome of submitting a transaction to the store.
type TxStatus int

// The possible outcomes of StoreTx.
const (
	// TxNew means the transaction was stored.
	TxNew TxStatus = iota

	// TxExisting means the transaction was already present.
	TxExisting
)

// String returns the TxStatus in human-readable form.
func (s TxStatus) String() string {
	switch s {
	case TxNew:
		return "new"
	case TxExisting:
		return "existing"
	}
	return "unknown"
}

// Store persists the blockchain and answers the lookups the network node
// needs.  Implementations must be safe for concurrent use: the node applies
// objects from worker goroutines while serving queries from others.
//
// For every stored non-orphan block at height h > 0, the block at height h-1
// exists and is the block referenced by its PrevBlock header field.
type Store interface {
	// StoreBlock submits a block.  It is idempotent on the block hash.
	StoreBlock(block *chainutil.Block) (BlockStatus, error)

	// StoreTx submits a loose transaction.  It is idempotent on the
	// transaction hash.
	StoreTx(tx *chainutil.Tx) (TxStatus, error)

	// Block fetches a block by hash.  Returns ErrNotFound when absent.
	Block(hash *chainhash.Hash) (*chainutil.Block, error)

	// Tx fetches a transaction by hash.  Both loose transactions and
	// transactions confirmed in stored blocks are found.  Returns
	// ErrNotFound when absent.
	Tx(hash *chainhash.Hash) (*chainutil.Tx, error)

	// BlockAtHeight fetches the block at the given height on the main
	// chain.  Returns ErrNotFound when the height is beyond the tip.
	BlockAtHeight(height int32) (*chainutil.Block, error)

	// Head returns the current chain tip.  Returns ErrNotFound when the
	// store is empty.
	Head() (*chainutil.Block, error)

	// Has returns whether an object of the given inventory kind and hash
	// is present.  Orphan blocks count as present so they are not
	// re-requested from peers.
	Has(kind wire.InvType, hash *chainhash.Hash) bool

	// NextBlock returns the main-chain successor of the block with the
	// given hash, for linear traversal from genesis.  Returns ErrNotFound
	// at the tip.
	NextBlock(hash *chainhash.Hash) (*chainutil.Block, error)

	// Close releases the store's resources.
	Close() error
}

// checkBlockSanity applies the structural checks every implementation makes
// before connecting a block: the merkle root must commit to the block's
// transactions.  A block without transactions is a bare header from a
// headers-only sync and carries no commitment to check.
func checkBlockSanity(block *chainutil.Block) bool {
	msgBlock := block.MsgBlock()
	if len(msgBlock.Transactions) == 0 {
		return true
	}

	hashes := make([]chainhash.Hash, len(msgBlock.Transactions))
	for i, tx := range block.Transactions() {
		hashes[i] = *tx.Hash()
	}
	return chainhash.MerkleTreeRoot(hashes) == msgBlock.Header.MerkleRoot
}
