// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2025 The bitwire developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"errors"

	"gitlab.com/bitwire/core/types/chainhash"
	"gitlab.com/bitwire/core/types/wire"
)

// ErrUnknownNet describes an error where the network parameters for a
// network cannot be looked up because the network is unknown.
var ErrUnknownNet = errors.New("unknown bitcoin network")

// DNSSeed identifies a DNS seed.
type DNSSeed struct {
	// Host defines the hostname of the seed.
	Host string

	// HasFiltering defines whether the seed supports filtering
	// by service flags (wire.ServiceFlag).
	HasFiltering bool
}

// String returns the hostname of the DNS seed in human-readable form.
func (d DNSSeed) String() string {
	return d.Host
}

// Params defines a bitcoin network by its parameters.  These parameters may be
// used by applications to differentiate networks as well as addresses
// and keys for one network from those intended for use on another network.
type Params struct {
	// Name defines a human-readable identifier for the network.
	Name string

	// Net defines the magic bytes used to identify the network.
	Net wire.BitcoinNet

	// DefaultPort defines the default peer-to-peer port for the network.
	DefaultPort string

	// DNSSeeds defines a list of DNS seeds for the network that are used
	// as one method to discover peers.
	DNSSeeds []DNSSeed

	// GenesisBlock defines the first block of the chain.
	GenesisBlock *wire.MsgBlock

	// GenesisHash is the starting block hash.
	GenesisHash *chainhash.Hash

	// PowLimitBits defines the highest allowed proof of work value for a
	// block in compact form.
	PowLimitBits uint32

	// Address encoding magics.
	PubKeyHashAddrID byte // First byte of a P2PKH address
	ScriptHashAddrID byte // First byte of a P2SH address
	PrivateKeyID     byte // First byte of a WIF private key
}

// MainNetParams defines the network parameters for the main bitcoin network.
var MainNetParams = Params{
	Name:        "mainnet",
	Net:         wire.MainNet,
	DefaultPort: "8333",
	DNSSeeds: []DNSSeed{
		{"seed.bitcoin.sipa.be", true},
		{"dnsseed.bluematt.me", true},
		{"dnsseed.bitcoin.dashjr.org", false},
		{"seed.bitcoinstats.com", true},
		{"seed.bitnodes.io", false},
	},

	// Chain parameters.
	GenesisBlock: &genesisBlock,
	GenesisHash:  &genesisHash,
	PowLimitBits: 0x1d00ffff,

	// Address encoding magics.
	PubKeyHashAddrID: 0x00, // starts with 1
	ScriptHashAddrID: 0x05, // starts with 3
	PrivateKeyID:     0x80, // starts with 5 (uncompressed) or K (compressed)
}

// RegressionNetParams defines the network parameters for the regression test
// bitcoin network.  Not to be confused with the test network (version 3),
// this network is sometimes simply called "testnet".
var RegressionNetParams = Params{
	Name:        "regtest",
	Net:         wire.RegNet,
	DefaultPort: "18444",
	DNSSeeds:    []DNSSeed{},

	// Chain parameters.
	GenesisBlock: &regTestGenesisBlock,
	GenesisHash:  &regTestGenesisHash,
	PowLimitBits: 0x207fffff,

	// Address encoding magics.
	PubKeyHashAddrID: 0x6f, // starts with m or n
	ScriptHashAddrID: 0xc4, // starts with 2
	PrivateKeyID:     0xef, // starts with 9 (uncompressed) or c (compressed)
}

// TestNet3Params defines the network parameters for the test bitcoin network
// (version 3).  Not to be confused with the regression test network, this
// network is sometimes simply called "testnet".
var TestNet3Params = Params{
	Name:        "testnet3",
	Net:         wire.TestNet3,
	DefaultPort: "18333",
	DNSSeeds: []DNSSeed{
		{"testnet-seed.bitcoin.jonasschnelli.ch", true},
		{"testnet-seed.bitcoin.schildbach.de", false},
		{"seed.tbtc.petertodd.org", true},
	},

	// Chain parameters.
	GenesisBlock: &testNet3GenesisBlock,
	GenesisHash:  &testNet3GenesisHash,
	PowLimitBits: 0x1d00ffff,

	// Address encoding magics.
	PubKeyHashAddrID: 0x6f, // starts with m or n
	ScriptHashAddrID: 0xc4, // starts with 2
	PrivateKeyID:     0xef, // starts with 9 (uncompressed) or c (compressed)
}

// registeredNets keeps the known networks for ParamsForNet lookups.
var registeredNets = map[wire.BitcoinNet]*Params{
	MainNetParams.Net:       &MainNetParams,
	TestNet3Params.Net:      &TestNet3Params,
	RegressionNetParams.Net: &RegressionNetParams,
}

// registeredNames keeps the known networks keyed by name.
var registeredNames = map[string]*Params{
	MainNetParams.Name:       &MainNetParams,
	TestNet3Params.Name:      &TestNet3Params,
	RegressionNetParams.Name: &RegressionNetParams,
}

// ParamsForNet returns the network parameters for the given network magic.
func ParamsForNet(net wire.BitcoinNet) (*Params, error) {
	params, ok := registeredNets[net]
	if !ok {
		return nil, ErrUnknownNet
	}
	return params, nil
}

// ParamsForName returns the network parameters for the given network name.
func ParamsForName(name string) (*Params, error) {
	params, ok := registeredNames[name]
	if !ok {
		return nil, ErrUnknownNet
	}
	return params, nil
}
