// Copyright (c) 2025 The bitwire developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package p2p

import (
	"container/list"
	"sync"

	"gitlab.com/bitwire/core/types/wire"
)

// invCacheEvictBatch is how many of the oldest entries are dropped at once
// when the cache reaches its limit.  Evicting in batches keeps the hot path
// from paying an eviction on every insert once the cache is warm.
const invCacheEvictBatch = 128

// invCache is a least-recently-used cache of inventory vectors the node has
// recently seen.  An item present in the cache will not be re-enqueued for
// download, which prevents duplicate getdata storms when several peers
// announce the same object.
type invCache struct {
	mtx   sync.Mutex
	limit int
	items map[wire.InvVect]*list.Element
	order *list.List
}

// newInvCache returns an inventory cache bounded to limit entries.
func newInvCache(limit int) *invCache {
	return &invCache{
		limit: limit,
		items: make(map[wire.InvVect]*list.Element),
		order: list.New(),
	}
}

// Exists returns whether the inventory vector is in the cache and marks it
// most recently used when it is.
func (c *invCache) Exists(iv *wire.InvVect) bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	node, ok := c.items[*iv]
	if ok {
		c.order.MoveToFront(node)
	}
	return ok
}

// Add inserts the inventory vector, evicting a batch of the oldest entries
// when the cache is full.
func (c *invCache) Add(iv *wire.InvVect) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if node, ok := c.items[*iv]; ok {
		c.order.MoveToFront(node)
		return
	}

	if c.order.Len() >= c.limit {
		for i := 0; i < invCacheEvictBatch && c.order.Len() > 0; i++ {
			oldest := c.order.Back()
			delete(c.items, oldest.Value.(wire.InvVect))
			c.order.Remove(oldest)
		}
	}

	c.items[*iv] = c.order.PushFront(*iv)
}

// Len returns the number of entries in the cache.
func (c *invCache) Len() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	return c.order.Len()
}
