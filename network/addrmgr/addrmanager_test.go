// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2025 The bitwire developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package addrmgr

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/bitwire/core/types/wire"
)

func testNetAddress(i int, lastSeen time.Time) *wire.NetAddress {
	ip := net.ParseIP(fmt.Sprintf("10.0.%d.%d", i/256, i%256))
	return wire.NewNetAddressTimestamp(lastSeen, wire.SFNodeNetwork, ip, 8333)
}

func TestAddAddress(t *testing.T) {
	am := New("", 8)

	now := time.Now()
	for i := 0; i < 4; i++ {
		am.AddAddress(testNetAddress(i, now))
	}
	assert.Equal(t, 4, am.Count())
	assert.True(t, am.NeedMoreAddresses())

	// Duplicates only refresh the timestamp.
	am.AddAddress(testNetAddress(0, now.Add(time.Minute)))
	assert.Equal(t, 4, am.Count())

	// Unspecified addresses are rejected.
	am.AddAddress(wire.NewNetAddressTimestamp(now, 0, net.IPv4zero, 8333))
	assert.Equal(t, 4, am.Count())
}

func TestPoolBound(t *testing.T) {
	am := New("", 4)

	now := time.Now()
	for i := 0; i < 10; i++ {
		am.AddAddress(testNetAddress(i, now))
	}
	// The pool never exceeds its bound.
	assert.Equal(t, 4, am.Count())
	assert.False(t, am.NeedMoreAddresses())
}

func TestPurgeExpired(t *testing.T) {
	am := New("", 8)

	now := time.Now()
	am.AddAddress(testNetAddress(0, now))
	am.AddAddress(testNetAddress(1, now.Add(-25*time.Hour)))
	am.AddAddress(testNetAddress(2, now.Add(-48*time.Hour)))

	removed := am.PurgeExpired()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, am.Count())
}

func TestPurgeMakesRoomWhenFull(t *testing.T) {
	am := New("", 2)

	now := time.Now()
	am.AddAddress(testNetAddress(0, now.Add(-48*time.Hour)))
	am.AddAddress(testNetAddress(1, now))
	require.Equal(t, 2, am.Count())

	// Adding to the full pool purges the stale entry to make room.
	am.AddAddress(testNetAddress(2, now))
	assert.Equal(t, 2, am.Count())

	keys := make(map[string]bool)
	for _, na := range am.AddressCache() {
		keys[na.IP.String()] = true
	}
	assert.False(t, keys["10.0.0.0"], "stale address should have been purged")
}

func TestPickAddressesWeighting(t *testing.T) {
	am := New("", 64)

	// One very fresh address; the rest progressively staler.
	now := time.Now()
	am.AddAddress(testNetAddress(0, now))
	for i := 1; i < 20; i++ {
		am.AddAddress(testNetAddress(i, now.Add(-time.Duration(i)*time.Hour)))
	}

	// A single pick samples from the recent half of the pool, so the
	// stalest address can never be the first choice, while the freshest
	// shows up routinely.
	freshHits := 0
	for i := 0; i < 100; i++ {
		picked := am.PickAddresses(1)
		require.Len(t, picked, 1)
		ip := picked[0].IP.String()
		assert.NotEqual(t, "10.0.0.19", ip,
			"stalest address chosen by a single weighted pick")
		if ip == "10.0.0.0" {
			freshHits++
		}
	}
	assert.NotZero(t, freshHits, "freshest address never chosen")

	// Picking more than the pool holds returns the whole pool.
	picked := am.PickAddresses(100)
	assert.Len(t, picked, 20)
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()

	am := New(dir, 16)
	now := time.Now()
	for i := 0; i < 5; i++ {
		am.AddAddress(testNetAddress(i, now))
	}
	require.NoError(t, am.Save())

	reloaded := New(dir, 16)
	assert.Equal(t, 5, reloaded.Count())

	// The reloaded pool still respects its bound.
	small := New(dir, 3)
	assert.Equal(t, 3, small.Count())
}
