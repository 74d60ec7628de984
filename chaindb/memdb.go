// Copyright (c) 2025 The bitwire developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaindb

import (
	"sync"

	"gitlab.com/bitwire/core/chainutil"
	"gitlab.com/bitwire/core/types/chainhash"
	"gitlab.com/bitwire/core/types/wire"
)

// MemStore is the reference in-memory Store implementation.  All mutations
// run under a single critical section, which makes it the store of choice for
// tests and for nodes that do not need persistence.
type MemStore struct {
	mtx sync.RWMutex

	blocks  map[chainhash.Hash]*chainutil.Block
	heights []chainhash.Hash
	txs     map[chainhash.Hash]*chainutil.Tx

	// orphans holds blocks keyed by their own hash; orphansByPrev indexes
	// them by the predecessor they are waiting for.
	orphans       map[chainhash.Hash]*chainutil.Block
	orphansByPrev map[chainhash.Hash][]*chainutil.Block
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		blocks:        make(map[chainhash.Hash]*chainutil.Block),
		txs:           make(map[chainhash.Hash]*chainutil.Tx),
		orphans:       make(map[chainhash.Hash]*chainutil.Block),
		orphansByPrev: make(map[chainhash.Hash][]*chainutil.Block),
	}
}

// StoreBlock submits a block.  Part of the Store interface.
func (s *MemStore) StoreBlock(block *chainutil.Block) (BlockStatus, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return s.storeBlock(block)
}

// storeBlock is the locked implementation of StoreBlock.  It recurses through
// the orphan pool when a newly connected block adopts waiting successors.
func (s *MemStore) storeBlock(block *chainutil.Block) (BlockStatus, error) {
	hash := *block.Hash()
	if _, ok := s.blocks[hash]; ok {
		return BlockExisting, nil
	}
	if _, ok := s.orphans[hash]; ok {
		return BlockExisting, nil
	}

	if !checkBlockSanity(block) {
		return BlockInvalid, nil
	}

	prevHash := block.MsgBlock().Header.PrevBlock
	isGenesis := len(s.heights) == 0 && prevHash == chainhash.ZeroHash
	if !isGenesis {
		prev, ok := s.blocks[prevHash]
		if !ok {
			s.orphans[hash] = block
			s.orphansByPrev[prevHash] = append(s.orphansByPrev[prevHash], block)
			return BlockOrphan, nil
		}
		if prev.Height() != int32(len(s.heights))-1 {
			// Side chains are not tracked; the block neither
			// extends the tip nor is an orphan.
			return BlockInvalid, nil
		}
	}

	block.SetHeight(int32(len(s.heights)))
	s.blocks[hash] = block
	s.heights = append(s.heights, hash)

	// Connecting a block may free orphans that were waiting on it.
	if waiting, ok := s.orphansByPrev[hash]; ok {
		delete(s.orphansByPrev, hash)
		for _, orphan := range waiting {
			delete(s.orphans, *orphan.Hash())
			s.storeBlock(orphan)
		}
	}

	return BlockNew, nil
}

// StoreTx submits a loose transaction.  Part of the Store interface.
func (s *MemStore) StoreTx(tx *chainutil.Tx) (TxStatus, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	hash := *tx.Hash()
	if _, ok := s.txs[hash]; ok {
		return TxExisting, nil
	}
	s.txs[hash] = tx
	return TxNew, nil
}

// Block fetches a block by hash.  Part of the Store interface.
func (s *MemStore) Block(hash *chainhash.Hash) (*chainutil.Block, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	block, ok := s.blocks[*hash]
	if !ok {
		return nil, ErrNotFound
	}
	return block, nil
}

// Tx fetches a transaction by hash.  Part of the Store interface.
func (s *MemStore) Tx(hash *chainhash.Hash) (*chainutil.Tx, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	if tx, ok := s.txs[*hash]; ok {
		return tx, nil
	}

	// Fall back to transactions confirmed in stored blocks.
	for _, block := range s.blocks {
		for _, tx := range block.Transactions() {
			if *tx.Hash() == *hash {
				return tx, nil
			}
		}
	}
	return nil, ErrNotFound
}

// BlockAtHeight fetches a main-chain block by height.  Part of the Store
// interface.
func (s *MemStore) BlockAtHeight(height int32) (*chainutil.Block, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	if height < 0 || int(height) >= len(s.heights) {
		return nil, ErrNotFound
	}
	return s.blocks[s.heights[height]], nil
}

// Head returns the chain tip.  Part of the Store interface.
func (s *MemStore) Head() (*chainutil.Block, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	if len(s.heights) == 0 {
		return nil, ErrNotFound
	}
	return s.blocks[s.heights[len(s.heights)-1]], nil
}

// Has returns whether the object is present.  Part of the Store interface.
func (s *MemStore) Has(kind wire.InvType, hash *chainhash.Hash) bool {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	switch kind {
	case wire.InvTypeBlock:
		if _, ok := s.blocks[*hash]; ok {
			return true
		}
		_, ok := s.orphans[*hash]
		return ok
	case wire.InvTypeTx:
		_, ok := s.txs[*hash]
		return ok
	}
	return false
}

// NextBlock returns the main-chain successor of the given block.  Part of the
// Store interface.
func (s *MemStore) NextBlock(hash *chainhash.Hash) (*chainutil.Block, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	block, ok := s.blocks[*hash]
	if !ok {
		return nil, ErrNotFound
	}
	next := block.Height() + 1
	if int(next) >= len(s.heights) {
		return nil, ErrNotFound
	}
	return s.blocks[s.heights[next]], nil
}

// OrphanCount returns the number of blocks waiting in the orphan pool.
func (s *MemStore) OrphanCount() int {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	return len(s.orphans)
}

// Close releases the store.  Part of the Store interface.
func (s *MemStore) Close() error {
	return nil
}
