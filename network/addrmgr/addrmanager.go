// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2025 The bitwire developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package addrmgr implements the bounded peer address book used by the
// network node to pick outbound connection candidates.
package addrmgr

import (
	"math/rand"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"gitlab.com/bitwire/core/types/wire"
)

const (
	// DefaultMaxAddresses is the pool size used when the caller does not
	// override it.
	DefaultMaxAddresses = 256

	// addrExpiry is how long an address is considered fresh.  Addresses
	// older than this are purged when the pool is full.
	addrExpiry = 24 * time.Hour

	// peersFileName is the name of the CSV file the pool is persisted to.
	peersFileName = "peers.csv"
)

// KnownAddress tracks a peer address along with the last time it was seen.
type KnownAddress struct {
	IP       string `csv:"ip"`
	Port     uint16 `csv:"port"`
	LastSeen int64  `csv:"last_seen"`
}

// NetAddress converts the known address to its wire form.
func (ka *KnownAddress) NetAddress() *wire.NetAddress {
	return wire.NewNetAddressTimestamp(time.Unix(ka.LastSeen, 0),
		wire.SFNodeNetwork, net.ParseIP(ka.IP), ka.Port)
}

// Key returns the map key for the address in "host:port" form.
func (ka *KnownAddress) Key() string {
	return net.JoinHostPort(ka.IP, strconv.Itoa(int(ka.Port)))
}

// AddrManager provides a concurrency safe address manager for caching
// potential peers on the network.  The pool is bounded: when it is full,
// expired addresses are purged before new ones are admitted.
type AddrManager struct {
	mtx      sync.Mutex
	addrs    map[string]*KnownAddress
	maxAddrs int
	dataDir  string
	rng      *rand.Rand
}

// New returns a new address manager bounded to maxAddrs entries.  When
// dataDir is non-empty the pool is loaded from and saved to a peers.csv file
// inside it.
func New(dataDir string, maxAddrs int) *AddrManager {
	if maxAddrs <= 0 {
		maxAddrs = DefaultMaxAddresses
	}
	am := &AddrManager{
		addrs:    make(map[string]*KnownAddress),
		maxAddrs: maxAddrs,
		dataDir:  dataDir,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if dataDir != "" {
		if err := am.load(); err != nil {
			log.Warnf("Can't load peer addresses: %v", err)
		}
	}
	return am
}

// AddAddress inserts or refreshes an address in the pool.  When the pool is
// full, expired entries are purged first; the address is dropped if there is
// still no room.
func (am *AddrManager) AddAddress(na *wire.NetAddress) {
	am.mtx.Lock()
	defer am.mtx.Unlock()

	am.addAddress(na)
}

// AddAddresses inserts multiple addresses.
func (am *AddrManager) AddAddresses(addrs []*wire.NetAddress) {
	am.mtx.Lock()
	defer am.mtx.Unlock()

	for _, na := range addrs {
		am.addAddress(na)
	}
}

func (am *AddrManager) addAddress(na *wire.NetAddress) {
	if na.IP == nil || na.IP.IsUnspecified() {
		return
	}

	ka := &KnownAddress{
		IP:       na.IP.String(),
		Port:     na.Port,
		LastSeen: na.Timestamp.Unix(),
	}
	key := ka.Key()

	if existing, ok := am.addrs[key]; ok {
		if ka.LastSeen > existing.LastSeen {
			existing.LastSeen = ka.LastSeen
		}
		return
	}

	if len(am.addrs) >= am.maxAddrs {
		am.purgeExpired()
		if len(am.addrs) >= am.maxAddrs {
			return
		}
	}
	am.addrs[key] = ka
}

// Connected marks the address as seen now.
func (am *AddrManager) Connected(na *wire.NetAddress) {
	am.mtx.Lock()
	defer am.mtx.Unlock()

	ka := &KnownAddress{IP: na.IP.String(), Port: na.Port}
	if existing, ok := am.addrs[ka.Key()]; ok {
		existing.LastSeen = time.Now().Unix()
	}
}

// NeedMoreAddresses returns whether the pool has room left.
func (am *AddrManager) NeedMoreAddresses() bool {
	am.mtx.Lock()
	defer am.mtx.Unlock()

	return len(am.addrs) < am.maxAddrs
}

// Count returns the number of addresses in the pool.
func (am *AddrManager) Count() int {
	am.mtx.Lock()
	defer am.mtx.Unlock()

	return len(am.addrs)
}

// PurgeExpired removes addresses last seen longer than the expiry ago.  It
// returns the number of removed entries.
func (am *AddrManager) PurgeExpired() int {
	am.mtx.Lock()
	defer am.mtx.Unlock()

	return am.purgeExpired()
}

func (am *AddrManager) purgeExpired() int {
	deadline := time.Now().Add(-addrExpiry).Unix()
	removed := 0
	for key, ka := range am.addrs {
		if ka.LastSeen < deadline {
			delete(am.addrs, key)
			removed++
		}
	}
	return removed
}

// PickAddresses returns up to count candidate addresses for outbound
// connections, sampled randomly with a weight toward recently seen entries.
func (am *AddrManager) PickAddresses(count int) []*wire.NetAddress {
	am.mtx.Lock()
	defer am.mtx.Unlock()

	if count <= 0 || len(am.addrs) == 0 {
		return nil
	}

	// Sort newest first, then sample with a bias: each pick chooses a
	// random index into the first half of what remains, so recent entries
	// win more often without starving the tail.
	sorted := make([]*KnownAddress, 0, len(am.addrs))
	for _, ka := range am.addrs {
		sorted = append(sorted, ka)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].LastSeen > sorted[j].LastSeen
	})

	if count > len(sorted) {
		count = len(sorted)
	}
	picked := make([]*wire.NetAddress, 0, count)
	for len(picked) < count {
		window := (len(sorted) + 1) / 2
		idx := am.rng.Intn(window)
		picked = append(picked, sorted[idx].NetAddress())
		sorted = append(sorted[:idx], sorted[idx+1:]...)
	}
	return picked
}

// AddressCache returns all addresses in the pool in wire form, for serving
// getaddr requests.
func (am *AddrManager) AddressCache() []*wire.NetAddress {
	am.mtx.Lock()
	defer am.mtx.Unlock()

	addrs := make([]*wire.NetAddress, 0, len(am.addrs))
	for _, ka := range am.addrs {
		addrs = append(addrs, ka.NetAddress())
	}
	return addrs
}

// load reads the persisted pool from peers.csv.
func (am *AddrManager) load() error {
	path := filepath.Join(am.dataDir, peersFileName)
	fi, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "addrmgr: open peers file")
	}
	defer fi.Close()

	var known []*KnownAddress
	if err := gocsv.UnmarshalFile(fi, &known); err != nil {
		return errors.Wrap(err, "addrmgr: parse peers file")
	}
	for _, ka := range known {
		if len(am.addrs) >= am.maxAddrs {
			break
		}
		am.addrs[ka.Key()] = ka
	}
	log.Debugf("Loaded %d peer addresses from %s", len(am.addrs), path)
	return nil
}

// Save persists the pool to peers.csv in the manager's data directory.  It
// is a no-op for managers constructed without one.
func (am *AddrManager) Save() error {
	am.mtx.Lock()
	defer am.mtx.Unlock()

	if am.dataDir == "" {
		return nil
	}

	known := make([]*KnownAddress, 0, len(am.addrs))
	for _, ka := range am.addrs {
		known = append(known, ka)
	}
	sort.Slice(known, func(i, j int) bool {
		return known[i].LastSeen > known[j].LastSeen
	})

	path := filepath.Join(am.dataDir, peersFileName)
	fi, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "addrmgr: create peers file")
	}
	defer fi.Close()

	if err := gocsv.MarshalFile(&known, fi); err != nil {
		return errors.Wrap(err, "addrmgr: write peers file")
	}
	return nil
}
