// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2025 The bitwire developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package p2p

import (
	"sync"

	"gitlab.com/bitwire/core/chainutil"
)

// NotificationType represents the type of a notification message.
type NotificationType int

// Constants for the types of notifications published to subscribers.
const (
	// NTBlockAccepted indicates the associated block was accepted into
	// the block chain.
	NTBlockAccepted NotificationType = iota

	// NTTxAccepted indicates the associated transaction was accepted into
	// the transaction pool.
	NTTxAccepted
)

// notificationTypeStrings is a map of notification types back to their
// constant names for pretty printing.
var notificationTypeStrings = map[NotificationType]string{
	NTBlockAccepted: "NTBlockAccepted",
	NTTxAccepted:    "NTTxAccepted",
}

// String returns the NotificationType in human-readable form.
func (n NotificationType) String() string {
	if s, ok := notificationTypeStrings[n]; ok {
		return s
	}
	return "Unknown Notification Type"
}

// Notification defines an accepted block or transaction event.  Consumers
// receive objects by identity: the block or transaction carried here is the
// stored object, never a shared mutable handle into node state.
type Notification struct {
	Type  NotificationType
	Block *chainutil.Block
	Tx    *chainutil.Tx

	// Depth is the height of an accepted block.
	Depth int32
}

// notificationBufferSize is the per-subscriber buffer.  A subscriber that
// falls further behind than this loses its oldest events rather than
// blocking the publisher.
const notificationBufferSize = 64

// Subscription is a single consumer of node notifications.
type Subscription struct {
	// C carries the notifications in publish order.
	C <-chan Notification

	c        chan Notification
	notifier *notifier
}

// Cancel removes the subscription; its channel is closed.
func (s *Subscription) Cancel() {
	s.notifier.unsubscribe(s)
}

// notifier is a multi-consumer broadcaster: every subscriber receives every
// event in order, and slow subscribers do not block the publisher.
type notifier struct {
	mtx  sync.Mutex
	subs map[*Subscription]struct{}
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[*Subscription]struct{})}
}

// subscribe registers a new consumer.
func (n *notifier) subscribe() *Subscription {
	n.mtx.Lock()
	defer n.mtx.Unlock()

	sub := &Subscription{
		c:        make(chan Notification, notificationBufferSize),
		notifier: n,
	}
	sub.C = sub.c
	n.subs[sub] = struct{}{}
	return sub
}

// unsubscribe removes a consumer.
func (n *notifier) unsubscribe(sub *Subscription) {
	n.mtx.Lock()
	defer n.mtx.Unlock()

	if _, ok := n.subs[sub]; ok {
		delete(n.subs, sub)
		close(sub.c)
	}
}

// publish delivers the notification to every subscriber.  When a subscriber's
// buffer is full its oldest event is dropped to make room, so a stalled
// consumer can never stall the pipeline.
func (n *notifier) publish(notification Notification) {
	n.mtx.Lock()
	defer n.mtx.Unlock()

	for sub := range n.subs {
		select {
		case sub.c <- notification:
			continue
		default:
		}

		// Buffer full: drop the oldest event and retry once.  The
		// second send can only fail if a consumer raced a receive in
		// between, in which case there is room next time around.
		select {
		case <-sub.c:
		default:
		}
		select {
		case sub.c <- notification:
		default:
		}
	}
}
