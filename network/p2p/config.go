// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2025 The bitwire developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package p2p

import (
	"fmt"
	"net"
	"time"

	"github.com/btcsuite/go-socks/socks"
	"gopkg.in/yaml.v3"
)

const (
	// defaultConnectTimeout is the dial timeout for outbound connections.
	defaultConnectTimeout = 5 * time.Second

	// maxConnectBatch is the largest number of outbound connection
	// attempts the connect worker makes per tick.
	maxConnectBatch = 32
)

// ListenConfig describes the listening socket.
type ListenConfig struct {
	// Host is the interface to bind.  An empty host binds all interfaces.
	Host string `yaml:"host"`

	// Port is the TCP port to listen on.  Zero selects the network's
	// default port.
	Port uint16 `yaml:"port"`

	// Disabled turns off listening for inbound connections entirely.
	Disabled bool `yaml:"disabled"`
}

// LimitsConfig bounds the node's resources.
type LimitsConfig struct {
	// Connections is the target number of peer connections.
	Connections int `yaml:"connections"`

	// Addr is the size of the known-address pool.
	Addr int `yaml:"addr"`

	// Queue is the capacity of the decoded object queue.
	Queue int `yaml:"queue"`

	// Inv is the capacity of the inventory request queue.
	Inv int `yaml:"inv"`

	// InvCache is the capacity of the recent-inventory cache.
	InvCache int `yaml:"inv_cache"`
}

// Duration is a time.Duration that unmarshals from yaml either as a Go
// duration string ("500ms", "1m") or as a bare number of seconds, which is
// how the interval options are documented.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw interface{}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %v", v, err)
		}
		*d = Duration(parsed)
	case int:
		*d = Duration(time.Duration(v) * time.Second)
	case float64:
		*d = Duration(v * float64(time.Second))
	default:
		return fmt.Errorf("invalid duration value %v", raw)
	}
	return nil
}

// Duration converts to the standard library type.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// IntervalsConfig holds the periodic worker cadences, in seconds.
type IntervalsConfig struct {
	// Queue is the idle interval of the object queue worker.
	Queue Duration `yaml:"queue"`

	// InvQueue is the drain interval of the inventory queue worker.
	InvQueue Duration `yaml:"inv_queue"`

	// Addrs is the interval of the address pool maintenance worker.
	Addrs Duration `yaml:"addrs"`

	// Connect is the interval of the outbound connection worker.
	Connect Duration `yaml:"connect"`
}

// Config holds the recognized node options.  Unrecognized keys in the
// configuration file are warned about and ignored by the config loader.
type Config struct {
	Listen      ListenConfig    `yaml:"listen"`
	Connect     []string        `yaml:"connect"`
	DNS         bool            `yaml:"dns"`
	Max         LimitsConfig    `yaml:"max"`
	Intervals   IntervalsConfig `yaml:"intervals"`
	HeadersOnly bool            `yaml:"headers_only"`

	// Proxy optionally connects through a SOCKS5 proxy
	// (e.g. 127.0.0.1:9050).
	Proxy     string `yaml:"proxy"`
	ProxyUser string `yaml:"proxy_user"`
	ProxyPass string `yaml:"proxy_pass"`

	// Dial and Lookup allow tests and embedders to override networking.
	// They are filled with the proxy-aware defaults when nil.
	Dial   func(network, addr string, timeout time.Duration) (net.Conn, error) `yaml:"-"`
	Lookup func(host string) ([]net.IP, error)                                 `yaml:"-"`
}

// DefaultConfig returns the node configuration used when the config file does
// not override it.
func DefaultConfig() Config {
	return Config{
		Listen: ListenConfig{},
		DNS:    true,
		Max: LimitsConfig{
			Connections: 8,
			Addr:        256,
			Queue:       64,
			Inv:         128,
			InvCache:    1024,
		},
		Intervals: IntervalsConfig{
			Queue:    Duration(5 * time.Second),
			InvQueue: Duration(5 * time.Second),
			Addrs:    Duration(5 * time.Minute),
			Connect:  Duration(15 * time.Second),
		},
	}
}

// GetFreePort asks the kernel for a free open port that is ready to use.
func GetFreePort() (int, error) {
	ln, err := net.Listen("tcp", "[::]:0")
	if err != nil {
		return -1, err
	}
	port := ln.Addr().(*net.TCPAddr).Port
	err = ln.Close()
	return port, err
}

// normalize fills in the callable fields and replaces nonsensical values with
// their defaults so a partially specified config stays usable.
func (cfg *Config) normalize() {
	defaults := DefaultConfig()
	if cfg.Max.Connections <= 0 {
		cfg.Max.Connections = defaults.Max.Connections
	}
	if cfg.Max.Addr <= 0 {
		cfg.Max.Addr = defaults.Max.Addr
	}
	if cfg.Max.Queue <= 0 {
		cfg.Max.Queue = defaults.Max.Queue
	}
	if cfg.Max.Inv <= 0 {
		cfg.Max.Inv = defaults.Max.Inv
	}
	if cfg.Max.InvCache <= 0 {
		cfg.Max.InvCache = defaults.Max.InvCache
	}
	if cfg.Intervals.Queue <= 0 {
		cfg.Intervals.Queue = defaults.Intervals.Queue
	}
	if cfg.Intervals.InvQueue <= 0 {
		cfg.Intervals.InvQueue = defaults.Intervals.InvQueue
	}
	if cfg.Intervals.Addrs <= 0 {
		cfg.Intervals.Addrs = defaults.Intervals.Addrs
	}
	if cfg.Intervals.Connect <= 0 {
		cfg.Intervals.Connect = defaults.Intervals.Connect
	}

	if cfg.Dial == nil {
		if cfg.Proxy != "" {
			proxy := &socks.Proxy{
				Addr:     cfg.Proxy,
				Username: cfg.ProxyUser,
				Password: cfg.ProxyPass,
			}
			cfg.Dial = proxy.DialTimeout
		} else {
			cfg.Dial = net.DialTimeout
		}
	}
	if cfg.Lookup == nil {
		cfg.Lookup = net.LookupIP
	}
}
