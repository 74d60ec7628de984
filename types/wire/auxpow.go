// Copyright (c) 2025 The bitwire developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"

	"gitlab.com/bitwire/core/types/chainhash"
)

// MerkleBranch is a partial merkle path used by the auxiliary proof-of-work
// structure.  SideMask holds the left/right bitmask for the branch hashes.
type MerkleBranch struct {
	Hashes   []chainhash.Hash
	SideMask int32
}

// Deserialize decodes a merkle branch from r.
func (mb *MerkleBranch) Deserialize(r io.Reader) error {
	hashes, err := ReadHashArray(r)
	if err != nil {
		return err
	}
	mb.Hashes = hashes

	return ReadElement(r, &mb.SideMask)
}

// Serialize encodes a merkle branch to w.
func (mb *MerkleBranch) Serialize(w io.Writer) error {
	if err := WriteHashArray(w, mb.Hashes); err != nil {
		return err
	}
	return WriteElement(w, mb.SideMask)
}

// AuxPow is the auxiliary proof-of-work structure carried by merge-mined
// blocks.  The decoder retains the full structure so the encoder can
// reproduce the original bytes exactly; the fields are not otherwise
// interpreted by this package.
type AuxPow struct {
	// CoinbaseTx is the coinbase transaction of the parent chain block
	// that commits to the merge-mined block.
	CoinbaseTx MsgTx

	// ParentHash is the hash of the parent chain block header.
	ParentHash chainhash.Hash

	// CoinbaseBranch links the coinbase transaction to the parent block's
	// merkle root.
	CoinbaseBranch MerkleBranch

	// BlockchainBranch links the merge-mined block hash to the commitment
	// in the coinbase transaction.
	BlockchainBranch MerkleBranch

	// ParentHeader is the parent chain block header.  It is carried as a
	// plain 80-byte header; a parent header never nests another auxpow.
	ParentHeader BlockHeader
}

// Deserialize decodes an auxpow structure from r.
func (ap *AuxPow) Deserialize(r io.Reader) error {
	if err := ap.CoinbaseTx.Deserialize(r); err != nil {
		return err
	}
	if err := ReadElement(r, &ap.ParentHash); err != nil {
		return err
	}
	if err := ap.CoinbaseBranch.Deserialize(r); err != nil {
		return err
	}
	if err := ap.BlockchainBranch.Deserialize(r); err != nil {
		return err
	}
	return readBlockHeader(r, &ap.ParentHeader)
}

// Serialize encodes an auxpow structure to w.
func (ap *AuxPow) Serialize(w io.Writer) error {
	if err := ap.CoinbaseTx.Serialize(w); err != nil {
		return err
	}
	if err := WriteElement(w, &ap.ParentHash); err != nil {
		return err
	}
	if err := ap.CoinbaseBranch.Serialize(w); err != nil {
		return err
	}
	if err := ap.BlockchainBranch.Serialize(w); err != nil {
		return err
	}
	return writeBlockHeader(w, &ap.ParentHeader)
}

// SerializeSize returns the number of bytes it would take to serialize the
// auxpow structure.
func (ap *AuxPow) SerializeSize() int {
	n := ap.CoinbaseTx.SerializeSize() + chainhash.HashSize +
		MaxBlockHeaderPayload

	n += VarIntSerializeSize(uint64(len(ap.CoinbaseBranch.Hashes))) +
		len(ap.CoinbaseBranch.Hashes)*chainhash.HashSize + 4
	n += VarIntSerializeSize(uint64(len(ap.BlockchainBranch.Hashes))) +
		len(ap.BlockchainBranch.Hashes)*chainhash.HashSize + 4

	return n
}
