// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2025 The bitwire developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package p2p

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/bitwire/core/chaincfg"
	"gitlab.com/bitwire/core/chaindb"
	"gitlab.com/bitwire/core/chainutil"
	"gitlab.com/bitwire/core/network/addrmgr"
	"gitlab.com/bitwire/core/types/chainhash"
	"gitlab.com/bitwire/core/types/wire"
)

// makeTestBlock builds a minimal valid block on top of the given predecessor.
func makeTestBlock(prevHash chainhash.Hash, nonce uint32) *chainutil.Block {
	coinbase := wire.NewMsgTx(wire.TxVersion)
	coinbase.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{
			Hash:  chainhash.ZeroHash,
			Index: wire.MaxPrevOutIndex,
		},
		SignatureScript: []byte{0x04, byte(nonce), byte(nonce >> 8), 0x01},
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

// makeTestChain builds n blocks extending from a zero previous hash.
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

// slowStore wraps a Store and delays every block application, emulating an
// expensive validation/persistence step.
type slowStore struct {
	chaindb.Store
	delay time.Duration
}

func (s *slowStore) StoreBlock(block *chainutil.Block) (chaindb.BlockStatus, error) {
	time.Sleep(s.delay)
	return s.Store.StoreBlock(block)
}

// testIntervals are aggressive cadences so integration tests converge fast.
var testIntervals = IntervalsConfig{
	Queue:    Duration(20 * time.Millisecond),
	InvQueue: Duration(20 * time.Millisecond),
	Addrs:    Duration(time.Hour),
	Connect:  Duration(50 * time.Millisecond),
}

// newTestServer builds a started server listening on a free localhost port.
func newTestServer(t *testing.T, store chaindb.Store, mutate func(*Config)) (*Server, string) {
	t.Helper()

	port, err := GetFreePort()
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Listen = ListenConfig{Host: "127.0.0.1", Port: uint16(port)}
	cfg.DNS = false
	cfg.Intervals = testIntervals
	if mutate != nil {
		mutate(&cfg)
	}

	server, err := NewServer(cfg, &chaincfg.RegressionNetParams, store,
		addrmgr.New("", cfg.Max.Addr), nil)
	require.NoError(t, err)
	server.Start()
	t.Cleanup(server.Stop)

	return server, fmt.Sprintf("127.0.0.1:%d", port)
}

// waitForHeight polls the store until the chain tip reaches the wanted
// height.
func waitForHeight(t *testing.T, store chaindb.Store, height int32, within time.Duration) {
	t.Helper()

	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		head, err := store.Head()
		if err == nil && head.Height() >= height {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	head, err := store.Head()
	if err != nil {
		t.Fatalf("store never reached height %d: no head (%v)", height, err)
	}
	t.Fatalf("store never reached height %d: stuck at %d", height, head.Height())
}

// seedStore fills a store with the given chain.
func seedStore(t *testing.T, store chaindb.Store, blocks []*chainutil.Block) {
	t.Helper()
	for _, block := range blocks {
		status, err := store.StoreBlock(block)
		require.NoError(t, err)
		require.Equal(t, chaindb.BlockNew, status)
	}
}

// TestServerSync connects an empty node to a seeded node and waits for the
// block-download pipeline to converge on the seeded tip.
func TestServerSync(t *testing.T) {
	blocks := makeTestChain(8)

	seededStore := chaindb.NewMemStore()
	seedStore(t, seededStore, blocks)
	_, seedAddr := newTestServer(t, seededStore, nil)

	emptyStore := chaindb.NewMemStore()
	syncer, _ := newTestServer(t, emptyStore, func(cfg *Config) {
		cfg.Connect = []string{seedAddr}
	})

	sub := syncer.Subscribe()
	defer sub.Cancel()

	waitForHeight(t, emptyStore, int32(len(blocks)-1), 15*time.Second)

	head, err := emptyStore.Head()
	require.NoError(t, err)
	assert.Equal(t, *blocks[len(blocks)-1].Hash(), *head.Hash())

	// A block notification arrived for every depth of the chain.
	seen := make(map[int32]bool)
	timeout := time.After(5 * time.Second)
	for len(seen) < len(blocks) {
		select {
		case n := <-sub.C:
			if n.Type == NTBlockAccepted {
				seen[n.Depth] = true
			}
		case <-timeout:
			t.Fatalf("only %d of %d block notifications", len(seen), len(blocks))
		}
	}

	// The inventory cache stays within its bound.
	assert.LessOrEqual(t, syncer.invCache.Len(), syncer.cfg.Max.InvCache)
}

// TestServerHeadersOnlySync verifies a headers-only node converges to the
// peer's announced tip height without downloading transaction data.
func TestServerHeadersOnlySync(t *testing.T) {
	blocks := makeTestChain(6)

	seededStore := chaindb.NewMemStore()
	seedStore(t, seededStore, blocks)
	_, seedAddr := newTestServer(t, seededStore, nil)

	headerStore := chaindb.NewMemStore()
	newTestServer(t, headerStore, func(cfg *Config) {
		cfg.Connect = []string{seedAddr}
		cfg.HeadersOnly = true
	})

	waitForHeight(t, headerStore, int32(len(blocks)-1), 15*time.Second)

	// The stored chain carries bare headers with matching identities.
	for i, block := range blocks {
		stored, err := headerStore.BlockAtHeight(int32(i))
		require.NoError(t, err)
		assert.Equal(t, *block.Hash(), *stored.Hash())
		assert.Empty(t, stored.MsgBlock().Transactions)
	}
}

// TestServerBackpressure feeds far more announcements than the object queue
// holds against a store that is slow to apply, and verifies the bounded
// queue never overflows while nothing is lost.
func TestServerBackpressure(t *testing.T) {
	const maxQueue = 4
	blocks := makeTestChain(10 * maxQueue)

	seededStore := chaindb.NewMemStore()
	seedStore(t, seededStore, blocks)
	_, seedAddr := newTestServer(t, seededStore, nil)

	slow := &slowStore{Store: chaindb.NewMemStore(), delay: 10 * time.Millisecond}
	syncer, _ := newTestServer(t, slow, func(cfg *Config) {
		cfg.Connect = []string{seedAddr}
		cfg.Max.Queue = maxQueue
	})

	// Sample the object queue depth while the sync runs.
	samplerDone := make(chan int, 1)
	go func() {
		maxSeen := 0
		for i := 0; i < 1000; i++ {
			if depth := len(syncer.objQueue); depth > maxSeen {
				maxSeen = depth
			}
			time.Sleep(5 * time.Millisecond)
		}
		samplerDone <- maxSeen
	}()

	waitForHeight(t, slow, int32(len(blocks)-1), 30*time.Second)

	maxSeen := <-samplerDone
	assert.LessOrEqual(t, maxSeen, maxQueue,
		"object queue exceeded its bound under backpressure")

	// Nothing was dropped: every announced block was eventually stored.
	for i := range blocks {
		_, err := slow.Store.BlockAtHeight(int32(i))
		assert.NoErrorf(t, err, "block %d missing after backpressure sync", i)
	}
}

// TestServerTxRelay submits a transaction locally and verifies it propagates
// to a connected peer via inv/getdata.
func TestServerTxRelay(t *testing.T) {
	blocks := makeTestChain(2)

	storeA := chaindb.NewMemStore()
	seedStore(t, storeA, blocks)
	_, addrA := newTestServer(t, storeA, nil)

	storeB := chaindb.NewMemStore()
	serverB, _ := newTestServer(t, storeB, func(cfg *Config) {
		cfg.Connect = []string{addrA}
	})

	// Wait for the cohort to form.
	deadline := time.Now().Add(10 * time.Second)
	for serverB.ConnectedCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	require.NotZero(t, serverB.ConnectedCount(), "peers never connected")

	// Submit a transaction on B; it must arrive in A's store.
	msgTx := wire.NewMsgTx(wire.TxVersion)
	msgTx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: *blocks[0].Hash(), Index: 0},
		SignatureScript:  []byte{0x51},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	msgTx.AddTxOut(&wire.TxOut{Value: 1000, PkScript: []byte{0x51}})
	tx := chainutil.NewTx(msgTx)

	require.NoError(t, serverB.SubmitTx(tx))

	// Resubmission reports the duplicate.
	assert.Error(t, serverB.SubmitTx(tx))

	txDeadline := time.Now().Add(10 * time.Second)
	for !storeA.Has(wire.InvTypeTx, tx.Hash()) && time.Now().Before(txDeadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.True(t, storeA.Has(wire.InvTypeTx, tx.Hash()),
		"transaction never propagated")
}

// TestServerNoDuplicateRequests verifies the recent-inventory cache prevents
// a second announcement of the same object from being re-enqueued.  The
// server is deliberately not started so the inventory queue can be observed
// without the drain worker racing the test.
func TestServerNoDuplicateRequests(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Listen.Disabled = true
	cfg.DNS = false

	server, err := NewServer(cfg, &chaincfg.RegressionNetParams,
		chaindb.NewMemStore(), addrmgr.New("", cfg.Max.Addr), nil)
	require.NoError(t, err)

	hash := chainhash.HashH([]byte("announced once"))
	iv := wire.NewInvVect(wire.InvTypeBlock, &hash)

	peerA := newPeerBase(server.newPeerConfig(), true)
	peerB := newPeerBase(server.newPeerConfig(), true)
	msg := wire.NewMsgInv()
	require.NoError(t, msg.AddInvVect(iv))

	server.onInv(peerA, msg)
	assert.Equal(t, 1, len(server.invQueue))

	// Announcements of the same item, from the same or another peer, hit
	// the LRU and are not enqueued again.
	server.onInv(peerA, msg)
	server.onInv(peerB, msg)
	assert.Equal(t, 1, len(server.invQueue))

	// An object already present in the store is never enqueued.
	blocks := makeTestChain(1)
	_, err = server.store.StoreBlock(blocks[0])
	require.NoError(t, err)
	stored := wire.NewMsgInv()
	require.NoError(t, stored.AddInvVect(
		wire.NewInvVect(wire.InvTypeBlock, blocks[0].Hash())))
	server.onInv(peerB, stored)
	assert.Equal(t, 1, len(server.invQueue))
}
