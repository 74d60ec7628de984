// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2025 The bitwire developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	flags "github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"gitlab.com/bitwire/core/chaindb"
	"gitlab.com/bitwire/core/config"
	"gitlab.com/bitwire/core/corelog"
	"gitlab.com/bitwire/core/network/addrmgr"
	"gitlab.com/bitwire/core/network/p2p"
	"gitlab.com/bitwire/core/txscript"
)

// cliOptions are the command line options layered over the configuration
// file.
type cliOptions struct {
	ConfigFile  string   `short:"C" long:"configfile" description:"Path to configuration file" default:"bitwired.yaml"`
	DataDir     string   `short:"b" long:"datadir" description:"Directory to store data"`
	Net         string   `long:"net" description:"Network to run on: mainnet, testnet3 or regtest"`
	Listen      string   `long:"listen" description:"Listen address in host:port form"`
	Connect     []string `long:"connect" description:"Connect only to the specified peers at startup"`
	NoListen    bool     `long:"nolisten" description:"Disable listening for inbound connections"`
	NoDNSSeed   bool     `long:"nodnsseed" description:"Disable DNS seeding for peers"`
	HeadersOnly bool     `long:"headersonly" description:"Request headers rather than full blocks"`
	MemStore    bool     `long:"memstore" description:"Keep the chain in memory instead of on disk"`
	Debug       bool     `short:"d" long:"debug" description:"Log at debug level"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var opts cliOptions
	if _, err := flags.Parse(&opts); err != nil {
		if flagErr, ok := err.(*flags.Error); ok && flagErr.Type == flags.ErrHelp {
			return nil
		}
		return err
	}

	bootstrapLog := corelog.New("MAIN", corelog.Config{}.Default())
	cfg, err := config.Load(opts.ConfigFile, corelog.Adapter(bootstrapLog).Warnf)
	if err != nil {
		return err
	}
	applyOptions(&cfg, &opts)

	// Configuration invalid at startup is fatal.
	params, err := cfg.NetParams()
	if err != nil {
		return fmt.Errorf("invalid network %q: %v", cfg.Net, err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return err
	}

	backendLog := corelog.New("MAIN", cfg.Log)
	defer backendLog.Sync()
	log := corelog.Adapter(backendLog)

	subsystem := func(unit string) corelog.ILogger {
		return corelog.Adapter(backendLog.With(zap.String("app.unit", unit)))
	}
	txscript.UseLogger(subsystem("SCRP"))
	addrmgr.UseLogger(subsystem("AMGR"))
	p2p.UseLogger(subsystem("PEER"))

	var store chaindb.Store
	if cfg.Storage == config.StorageMemory {
		store = chaindb.NewMemStore()
	} else {
		store, err = chaindb.OpenBadgerStore(filepath.Join(cfg.DataDir, "chain"))
		if err != nil {
			return err
		}
	}
	defer store.Close()

	amgr := addrmgr.New(cfg.DataDir, cfg.Node.Max.Addr)

	server, err := p2p.NewServer(cfg.Node, params, store, amgr, subsystem("SRVR"))
	if err != nil {
		return err
	}

	log.Infof("bitwired starting on %s", params.Name)
	server.Start()

	// Surface accepted objects in the log; this keeps a node useful to
	// watch even with no other consumer attached.
	sub := server.Subscribe()
	go func() {
		for notification := range sub.C {
			switch notification.Type {
			case p2p.NTBlockAccepted:
				log.Infof("Accepted block %s at height %d",
					notification.Block.Hash(), notification.Depth)
			case p2p.NTTxAccepted:
				log.Debugf("Accepted tx %s", notification.Tx.Hash())
			}
		}
	}()

	<-interruptListener(log)
	sub.Cancel()
	server.Stop()
	log.Infof("bitwired shut down")
	return nil
}

// applyOptions overlays the command line options on the loaded configuration.
func applyOptions(cfg *config.Config, opts *cliOptions) {
	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}
	if opts.Net != "" {
		cfg.Net = opts.Net
	}
	if opts.Listen != "" {
		host, port, found := splitHostPort(opts.Listen)
		if found {
			cfg.Node.Listen.Host = host
			cfg.Node.Listen.Port = port
		}
	}
	if len(opts.Connect) > 0 {
		cfg.Node.Connect = opts.Connect
	}
	if opts.NoListen {
		cfg.Node.Listen.Disabled = true
	}
	if opts.NoDNSSeed {
		cfg.Node.DNS = false
	}
	if opts.HeadersOnly {
		cfg.Node.HeadersOnly = true
	}
	if opts.MemStore {
		cfg.Storage = config.StorageMemory
	}
	if opts.Debug {
		cfg.Log.Level = "debug"
	}
}

// splitHostPort splits "host:port" without requiring a resolvable host.
func splitHostPort(addr string) (string, uint16, bool) {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return addr, 0, true
	}
	var port int
	if _, err := fmt.Sscanf(addr[idx+1:], "%d", &port); err != nil || port < 0 || port > 65535 {
		return "", 0, false
	}
	return addr[:idx], uint16(port), true
}
