// Copyright (c) 2025 The bitwire developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/bitwire/core/chaincfg"
	"gitlab.com/bitwire/core/network/p2p"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bitwired.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 8, cfg.Node.Max.Connections)
	assert.Equal(t, 1024, cfg.Node.Max.InvCache)

	params, err := cfg.NetParams()
	require.NoError(t, err)
	assert.Equal(t, &chaincfg.MainNetParams, params)
}

func TestLoadDeepMerge(t *testing.T) {
	path := writeConfig(t, `
net: regtest
node:
  headers_only: true
  max:
    queue: 16
  intervals:
    inv_queue: 1s
    addrs: 60
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	// Overridden keys.
	assert.Equal(t, "regtest", cfg.Net)
	assert.True(t, cfg.Node.HeadersOnly)
	assert.Equal(t, 16, cfg.Node.Max.Queue)
	assert.Equal(t, p2p.Duration(time.Second), cfg.Node.Intervals.InvQueue)
	// Bare numbers are seconds.
	assert.Equal(t, p2p.Duration(time.Minute), cfg.Node.Intervals.Addrs)

	// Untouched keys keep their defaults.
	assert.Equal(t, 8, cfg.Node.Max.Connections)
	assert.Equal(t, 256, cfg.Node.Max.Addr)
	assert.Equal(t, 128, cfg.Node.Max.Inv)
	assert.Equal(t, StorageBadger, cfg.Storage)
}

func TestLoadWarnsOnUnknownKeys(t *testing.T) {
	path := writeConfig(t, `
net: regtest
frobnicate: true
node:
  bogus_option: 7
`)

	var warnings []string
	warn := func(format string, params ...interface{}) {
		warnings = append(warnings, fmt.Sprintf(format, params...))
	}

	cfg, err := Load(path, warn)
	require.NoError(t, err)

	// The recognized keys still apply and the unknown ones are reported.
	assert.Equal(t, "regtest", cfg.Net)
	assert.NotEmpty(t, warnings)
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeConfig(t, "net: [this is: not valid yaml")
	_, err := Load(path, nil)
	assert.Error(t, err)
}

func TestNetParamsUnknown(t *testing.T) {
	cfg := Default()
	cfg.Net = "bogusnet"
	_, err := cfg.NetParams()
	assert.Equal(t, chaincfg.ErrUnknownNet, err)
}
