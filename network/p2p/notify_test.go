// Copyright (c) 2025 The bitwire developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package p2p

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifierBroadcastOrder(t *testing.T) {
	n := newNotifier()
	subA := n.subscribe()
	subB := n.subscribe()
	defer subA.Cancel()
	defer subB.Cancel()

	for i := 0; i < 10; i++ {
		n.publish(Notification{Type: NTBlockAccepted, Depth: int32(i)})
	}

	// Every subscriber receives every event in publish order.
	for _, sub := range []*Subscription{subA, subB} {
		for i := 0; i < 10; i++ {
			notification := <-sub.C
			assert.Equal(t, NTBlockAccepted, notification.Type)
			assert.Equal(t, int32(i), notification.Depth)
		}
	}
}

func TestNotifierSlowSubscriberDropsOldest(t *testing.T) {
	n := newNotifier()
	slow := n.subscribe()
	defer slow.Cancel()

	// Publish twice the buffer size without consuming; the publisher must
	// never block and the oldest events are dropped.
	total := notificationBufferSize * 2
	for i := 0; i < total; i++ {
		n.publish(Notification{Type: NTBlockAccepted, Depth: int32(i)})
	}

	received := make([]int32, 0, notificationBufferSize)
	for len(slow.C) > 0 {
		received = append(received, (<-slow.C).Depth)
	}
	require.Len(t, received, notificationBufferSize)

	// What remains is the most recent window, still in order.
	for i, depth := range received {
		assert.Equal(t, int32(total-notificationBufferSize+i), depth)
	}
}

func TestNotifierCancel(t *testing.T) {
	n := newNotifier()
	sub := n.subscribe()
	sub.Cancel()

	// The channel is closed and publishing does not panic.
	_, ok := <-sub.C
	assert.False(t, ok)
	n.publish(Notification{Type: NTTxAccepted})

	// Double cancel is harmless.
	sub.Cancel()
}
