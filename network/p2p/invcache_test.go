// Copyright (c) 2025 The bitwire developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package p2p

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gitlab.com/bitwire/core/types/chainhash"
	"gitlab.com/bitwire/core/types/wire"
)

func testInv(i int) *wire.InvVect {
	hash := chainhash.HashH([]byte(fmt.Sprintf("inv %d", i)))
	return wire.NewInvVect(wire.InvTypeBlock, &hash)
}

func TestInvCacheExists(t *testing.T) {
	cache := newInvCache(16)

	iv := testInv(0)
	assert.False(t, cache.Exists(iv))

	cache.Add(iv)
	assert.True(t, cache.Exists(iv))
	assert.Equal(t, 1, cache.Len())

	// Re-adding is idempotent.
	cache.Add(iv)
	assert.Equal(t, 1, cache.Len())
}

func TestInvCacheBound(t *testing.T) {
	const limit = 1024
	cache := newInvCache(limit)

	for i := 0; i < limit*3; i++ {
		cache.Add(testInv(i))
		assert.LessOrEqual(t, cache.Len(), limit)
	}
}

func TestInvCacheBatchEviction(t *testing.T) {
	const limit = 1024
	cache := newInvCache(limit)

	for i := 0; i < limit; i++ {
		cache.Add(testInv(i))
	}
	assert.Equal(t, limit, cache.Len())

	// The next insert evicts a full batch of the oldest entries.
	cache.Add(testInv(limit))
	assert.Equal(t, limit-invCacheEvictBatch+1, cache.Len())

	// The oldest items are gone; the newest survive.
	assert.False(t, cache.Exists(testInv(0)))
	assert.False(t, cache.Exists(testInv(invCacheEvictBatch-1)))
	assert.True(t, cache.Exists(testInv(invCacheEvictBatch)))
	assert.True(t, cache.Exists(testInv(limit)))
}

func TestInvCacheRecency(t *testing.T) {
	const limit = 256
	cache := newInvCache(limit)

	for i := 0; i < limit; i++ {
		cache.Add(testInv(i))
	}

	// Touch the oldest entry, making it the most recently used.
	assert.True(t, cache.Exists(testInv(0)))

	// Trigger a batch eviction; the touched entry must survive.
	cache.Add(testInv(limit))
	assert.True(t, cache.Exists(testInv(0)))
	assert.False(t, cache.Exists(testInv(1)))
}
