// Copyright (c) 2025 The bitwire developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaindb

import (
	"bytes"
	"encoding/binary"
	"sync"

	"github.com/dgraph-io/badger"
	"github.com/pkg/errors"

	"gitlab.com/bitwire/core/chainutil"
	"gitlab.com/bitwire/core/types/chainhash"
	"gitlab.com/bitwire/core/types/wire"
)

// Key prefixes for the badger keyspace.
var (
	blockKeyPrefix  = []byte("b/") // b/<hash> -> height(4 BE) || block bytes
	txKeyPrefix     = []byte("t/") // t/<hash> -> tx bytes
	heightKeyPrefix = []byte("h/") // h/<height 4 BE> -> hash
	tipKey          = []byte("m/tip")
)

// BadgerStore is a file-backed Store implementation over badger.  The orphan
// side pool is kept in memory; orphans are transient by nature and are either
// adopted or dropped on restart.
type BadgerStore struct {
	mtx sync.RWMutex
	db  *badger.DB

	orphans       map[chainhash.Hash]*chainutil.Block
	orphansByPrev map[chainhash.Hash][]*chainutil.Block
}

// OpenBadgerStore opens (creating when necessary) a badger-backed store in
// the given directory.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "chaindb: can't open badger store at %s", dir)
	}

	return &BadgerStore{
		db:            db,
		orphans:       make(map[chainhash.Hash]*chainutil.Block),
		orphansByPrev: make(map[chainhash.Hash][]*chainutil.Block),
	}, nil
}

func blockKey(hash *chainhash.Hash) []byte {
	return append(blockKeyPrefix, hash[:]...)
}

func txKey(hash *chainhash.Hash) []byte {
	return append(txKeyPrefix, hash[:]...)
}

func heightKey(height int32) []byte {
	key := make([]byte, len(heightKeyPrefix)+4)
	copy(key, heightKeyPrefix)
	binary.BigEndian.PutUint32(key[len(heightKeyPrefix):], uint32(height))
	return key
}

// get fetches a key within a view transaction, returning ErrNotFound when the
// key is absent.
func (s *BadgerStore) get(key []byte) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "chaindb: badger read")
	}
	return value, nil
}

// tipHeight returns the current tip height or -1 when the store is empty.
func (s *BadgerStore) tipHeight() (int32, error) {
	value, err := s.get(tipKey)
	if err == ErrNotFound {
		return -1, nil
	}
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(value)), nil
}

// decodeBlockRecord splits a stored block record into its height and block.
func decodeBlockRecord(record []byte) (*chainutil.Block, error) {
	if len(record) < 4 {
		return nil, errors.New("chaindb: short block record")
	}
	height := int32(binary.BigEndian.Uint32(record[:4]))
	block, err := chainutil.NewBlockFromBytes(record[4:])
	if err != nil {
		return nil, err
	}
	block.SetHeight(height)
	return block, nil
}

// StoreBlock submits a block.  Part of the Store interface.
func (s *BadgerStore) StoreBlock(block *chainutil.Block) (BlockStatus, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return s.storeBlock(block)
}

func (s *BadgerStore) storeBlock(block *chainutil.Block) (BlockStatus, error) {
	hash := *block.Hash()
	if _, err := s.get(blockKey(&hash)); err == nil {
		return BlockExisting, nil
	}
	if _, ok := s.orphans[hash]; ok {
		return BlockExisting, nil
	}

	if !checkBlockSanity(block) {
		return BlockInvalid, nil
	}

	tip, err := s.tipHeight()
	if err != nil {
		return BlockInvalid, err
	}

	prevHash := block.MsgBlock().Header.PrevBlock
	height := int32(0)
	if tip >= 0 || prevHash != chainhash.ZeroHash {
		record, err := s.get(blockKey(&prevHash))
		if err == ErrNotFound {
			s.orphans[hash] = block
			s.orphansByPrev[prevHash] = append(s.orphansByPrev[prevHash], block)
			return BlockOrphan, nil
		}
		if err != nil {
			return BlockInvalid, err
		}
		prevHeight := int32(binary.BigEndian.Uint32(record[:4]))
		if prevHeight != tip {
			return BlockInvalid, nil
		}
		height = prevHeight + 1
	}

	raw, err := block.Bytes()
	if err != nil {
		return BlockInvalid, err
	}
	record := make([]byte, 4+len(raw))
	binary.BigEndian.PutUint32(record[:4], uint32(height))
	copy(record[4:], raw)

	var tipValue [4]byte
	binary.BigEndian.PutUint32(tipValue[:], uint32(height))

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(blockKey(&hash), record); err != nil {
			return err
		}
		if err := txn.Set(heightKey(height), hash[:]); err != nil {
			return err
		}
		return txn.Set(tipKey, tipValue[:])
	})
	if err != nil {
		return BlockInvalid, errors.Wrap(err, "chaindb: badger write")
	}
	block.SetHeight(height)

	// Connecting a block may free orphans that were waiting on it.
	if waiting, ok := s.orphansByPrev[hash]; ok {
		delete(s.orphansByPrev, hash)
		for _, orphan := range waiting {
			delete(s.orphans, *orphan.Hash())
			if _, err := s.storeBlock(orphan); err != nil {
				return BlockNew, err
			}
		}
	}

	return BlockNew, nil
}

// StoreTx submits a loose transaction.  Part of the Store interface.
func (s *BadgerStore) StoreTx(tx *chainutil.Tx) (TxStatus, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	hash := *tx.Hash()
	if _, err := s.get(txKey(&hash)); err == nil {
		return TxExisting, nil
	}

	var buf bytes.Buffer
	if err := tx.MsgTx().Serialize(&buf); err != nil {
		return TxExisting, err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(txKey(&hash), buf.Bytes())
	})
	if err != nil {
		return TxExisting, errors.Wrap(err, "chaindb: badger write")
	}
	return TxNew, nil
}

// Block fetches a block by hash.  Part of the Store interface.
func (s *BadgerStore) Block(hash *chainhash.Hash) (*chainutil.Block, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	record, err := s.get(blockKey(hash))
	if err != nil {
		return nil, err
	}
	return decodeBlockRecord(record)
}

// Tx fetches a transaction by hash.  Part of the Store interface.
func (s *BadgerStore) Tx(hash *chainhash.Hash) (*chainutil.Tx, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	raw, err := s.get(txKey(hash))
	if err == nil {
		return chainutil.NewTxFromBytes(raw)
	}
	if err != ErrNotFound {
		return nil, err
	}

	// Fall back to scanning stored blocks for confirmed transactions.
	var found *chainutil.Tx
	err = s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(blockKeyPrefix); it.ValidForPrefix(blockKeyPrefix); it.Next() {
			record, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			block, err := decodeBlockRecord(record)
			if err != nil {
				return err
			}
			for _, tx := range block.Transactions() {
				if *tx.Hash() == *hash {
					found = tx
					return nil
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "chaindb: badger scan")
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

// BlockAtHeight fetches a main-chain block by height.  Part of the Store
// interface.
func (s *BadgerStore) BlockAtHeight(height int32) (*chainutil.Block, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	return s.blockAtHeight(height)
}

func (s *BadgerStore) blockAtHeight(height int32) (*chainutil.Block, error) {
	if height < 0 {
		return nil, ErrNotFound
	}
	hashRaw, err := s.get(heightKey(height))
	if err != nil {
		return nil, err
	}
	hash, err := chainhash.NewHash(hashRaw)
	if err != nil {
		return nil, err
	}
	record, err := s.get(blockKey(hash))
	if err != nil {
		return nil, err
	}
	return decodeBlockRecord(record)
}

// Head returns the chain tip.  Part of the Store interface.
func (s *BadgerStore) Head() (*chainutil.Block, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	tip, err := s.tipHeight()
	if err != nil {
		return nil, err
	}
	if tip < 0 {
		return nil, ErrNotFound
	}
	return s.blockAtHeight(tip)
}

// Has returns whether the object is present.  Part of the Store interface.
func (s *BadgerStore) Has(kind wire.InvType, hash *chainhash.Hash) bool {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	switch kind {
	case wire.InvTypeBlock:
		if _, err := s.get(blockKey(hash)); err == nil {
			return true
		}
		_, ok := s.orphans[*hash]
		return ok
	case wire.InvTypeTx:
		_, err := s.get(txKey(hash))
		return err == nil
	}
	return false
}

// NextBlock returns the main-chain successor of the given block.  Part of the
// Store interface.
func (s *BadgerStore) NextBlock(hash *chainhash.Hash) (*chainutil.Block, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	record, err := s.get(blockKey(hash))
	if err != nil {
		return nil, err
	}
	height := int32(binary.BigEndian.Uint32(record[:4]))
	return s.blockAtHeight(height + 1)
}

// OrphanCount returns the number of blocks waiting in the orphan pool.
func (s *BadgerStore) OrphanCount() int {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	return len(s.orphans)
}

// Close releases the store.  Part of the Store interface.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
