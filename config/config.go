// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2025 The bitwire developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package config loads the node configuration: defaults deep-merged with the
// yaml configuration file, with unrecognized keys warned about and ignored.
package config

import (
	"bytes"
	"io/ioutil"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"gitlab.com/bitwire/core/chaincfg"
	"gitlab.com/bitwire/core/corelog"
	"gitlab.com/bitwire/core/network/p2p"
)

// Storage backend selectors.
const (
	StorageMemory = "memory"
	StorageBadger = "badger"
)

// Config is the top level node configuration.
type Config struct {
	// Net selects the network: mainnet, testnet3, or regtest.
	Net string `yaml:"net"`

	// DataDir is where the chain database and peer address book live.
	DataDir string `yaml:"data_dir"`

	// Storage selects the chain store backend: memory or badger.
	Storage string `yaml:"storage"`

	Log  corelog.Config `yaml:"log"`
	Node p2p.Config     `yaml:"node"`
}

// Default returns the configuration used when no config file overrides it.
func Default() Config {
	return Config{
		Net:     "mainnet",
		DataDir: "data",
		Storage: StorageBadger,
		Log:     corelog.Config{}.Default(),
		Node:    p2p.DefaultConfig(),
	}
}

// NetParams resolves the configured network name.
func (cfg *Config) NetParams() (*chaincfg.Params, error) {
	return chaincfg.ParamsForName(cfg.Net)
}

// Load reads the yaml file at path and deep-merges it over the defaults:
// absent keys keep their default values.  A missing file yields the plain
// defaults.  Unrecognized keys are reported through warn and otherwise
// ignored.
func Load(path string, warn func(format string, params ...interface{})) (Config, error) {
	cfg := Default()

	rawFile, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, errors.Wrap(err, "unable to read configuration")
	}

	// Unmarshalling into the populated defaults struct merges the file
	// over them: only keys present in the file are overwritten.
	if err = yaml.Unmarshal(rawFile, &cfg); err != nil {
		return cfg, errors.Wrap(err, "unable to decode configuration")
	}

	// A second, strict decode surfaces unrecognized keys.  They are not
	// fatal: the first pass already ignored them.
	if warn != nil {
		strict := yaml.NewDecoder(bytes.NewReader(rawFile))
		strict.KnownFields(true)
		var probe Config
		if err := strict.Decode(&probe); err != nil {
			warn("configuration contains unrecognized options: %v", err)
		}
	}

	return cfg, nil
}
