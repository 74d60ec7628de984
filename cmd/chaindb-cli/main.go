// Copyright (c) 2025 The bitwire developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// chaindb-cli inspects a bitwired chain database offline: show the tip,
// fetch blocks by hash or height, and walk the chain from genesis.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"gitlab.com/bitwire/core/chaindb"
	"gitlab.com/bitwire/core/chainutil"
	"gitlab.com/bitwire/core/types/chainhash"
)

func main() {
	app := &cli.App{
		Name:  "chaindb-cli",
		Usage: "inspect a bitwired chain database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "datadir",
				Aliases: []string{"b"},
				Value:   "data",
				Usage:   "node data directory",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "head",
				Usage:  "show the chain tip",
				Action: headCmd,
			},
			{
				Name:  "block",
				Usage: "fetch one block",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "hash", Usage: "block hash"},
					&cli.Int64Flag{Name: "height", Value: -1, Usage: "block height"},
					&cli.BoolFlag{Name: "raw", Usage: "dump the serialized block as hex"},
				},
				Action: blockCmd,
			},
			{
				Name:  "walk",
				Usage: "walk the chain from genesis",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "count", Value: 32, Usage: "number of blocks to print"},
				},
				Action: walkCmd,
			},
			{
				Name:  "tx",
				Usage: "fetch one transaction",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "hash", Required: true, Usage: "transaction hash"},
				},
				Action: txCmd,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openStore(ctx *cli.Context) (*chaindb.BadgerStore, error) {
	return chaindb.OpenBadgerStore(filepath.Join(ctx.String("datadir"), "chain"))
}

func printBlock(block *chainutil.Block) {
	header := block.MsgBlock().Header
	fmt.Printf("hash:    %s\n", block.Hash())
	fmt.Printf("height:  %d\n", block.Height())
	fmt.Printf("version: %d\n", header.Version)
	fmt.Printf("prev:    %s\n", header.PrevBlock)
	fmt.Printf("merkle:  %s\n", header.MerkleRoot)
	fmt.Printf("time:    %s\n", header.Timestamp)
	fmt.Printf("bits:    %08x\n", header.Bits)
	fmt.Printf("nonce:   %d\n", header.Nonce)
	fmt.Printf("txs:     %d\n", len(block.MsgBlock().Transactions))
}

func headCmd(ctx *cli.Context) error {
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	head, err := store.Head()
	if err == chaindb.ErrNotFound {
		return cli.Exit("store is empty", 1)
	}
	if err != nil {
		return err
	}
	printBlock(head)
	return nil
}

func blockCmd(ctx *cli.Context) error {
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	var block *chainutil.Block
	switch {
	case ctx.String("hash") != "":
		hash, err := chainhash.NewHashFromStr(ctx.String("hash"))
		if err != nil {
			return err
		}
		block, err = store.Block(hash)
		if err != nil {
			return err
		}
	case ctx.Int64("height") >= 0:
		block, err = store.BlockAtHeight(int32(ctx.Int64("height")))
		if err != nil {
			return err
		}
	default:
		return cli.Exit("either --hash or --height is required", 1)
	}

	if ctx.Bool("raw") {
		raw, err := block.Bytes()
		if err != nil {
			return err
		}
		fmt.Println(hex.EncodeToString(raw))
		return nil
	}
	printBlock(block)
	return nil
}

func walkCmd(ctx *cli.Context) error {
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	block, err := store.BlockAtHeight(0)
	if err == chaindb.ErrNotFound {
		return cli.Exit("store is empty", 1)
	}
	if err != nil {
		return err
	}

	count := ctx.Int("count")
	for i := 0; i < count; i++ {
		fmt.Printf("%6d  %s  %d txs\n", block.Height(), block.Hash(),
			len(block.MsgBlock().Transactions))
		block, err = store.NextBlock(block.Hash())
		if err == chaindb.ErrNotFound {
			break
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func txCmd(ctx *cli.Context) error {
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	hash, err := chainhash.NewHashFromStr(ctx.String("hash"))
	if err != nil {
		return err
	}
	tx, err := store.Tx(hash)
	if err != nil {
		return err
	}

	msgTx := tx.MsgTx()
	fmt.Printf("hash:     %s\n", tx.Hash())
	fmt.Printf("version:  %d\n", msgTx.Version)
	fmt.Printf("locktime: %d\n", msgTx.LockTime)
	fmt.Printf("coinbase: %v\n", msgTx.IsCoinBase())
	for i, txIn := range msgTx.TxIn {
		fmt.Printf("in  %2d: %s seq=%08x\n", i,
			txIn.PreviousOutPoint, txIn.Sequence)
	}
	for i, txOut := range msgTx.TxOut {
		fmt.Printf("out %2d: %s script=%x\n", i,
			chainutil.Amount(txOut.Value), txOut.PkScript)
	}
	return nil
}
