// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2025 The bitwire developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"io"
	"time"

	"gitlab.com/bitwire/core/types/chainhash"
)

// MaxBlockHeaderPayload is the maximum number of bytes a block header can be.
// Version 4 bytes + Timestamp 4 bytes + Bits 4 bytes + Nonce 4 bytes +
// PrevBlock and MerkleRoot hashes.
const MaxBlockHeaderPayload = 16 + (chainhash.HashSize * 2)

// VersionAuxPow is the bit set in the block version of merge-mined blocks.
// When present, an auxiliary proof-of-work structure follows the 80-byte
// header on the wire.
const VersionAuxPow int32 = 0x100

// BlockHeader defines information about a block and is used in the bitcoin
// block (MsgBlock) and headers (MsgHeaders) messages.
type BlockHeader struct {
	// Version of the block.  This is not the same as the protocol version.
	Version int32

	// Hash of the previous block header in the block chain.
	PrevBlock chainhash.Hash

	// Merkle tree reference to hash of all transactions for the block.
	MerkleRoot chainhash.Hash

	// Time the block was created.  This is, unfortunately, encoded as a
	// uint32 on the wire and therefore is limited to 2106.
	Timestamp time.Time

	// Difficulty target for the block.
	Bits uint32

	// Nonce used to generate the block.
	Nonce uint32

	// AuxPow holds the merged-mining proof when VersionAuxPow is set in
	// Version.  It is carried between the fixed header and the transaction
	// count on the wire and is excluded from BlockHash.
	AuxPow *AuxPow
}

// HasAuxPow returns whether the header version flags an auxiliary
// proof-of-work structure.
func (h *BlockHeader) HasAuxPow() bool {
	return h.Version&VersionAuxPow != 0
}

// BlockHash computes the block identifier hash for the given block header.
func (h *BlockHeader) BlockHash() chainhash.Hash {
	// Encode the header and double sha256 everything prior to the number of
	// transactions.  Ignore the error returns since there is no way the
	// encode could fail except being out of memory which would cause a
	// run-time panic.  The auxpow is not part of the identifier.
	buf := bytes.NewBuffer(make([]byte, 0, MaxBlockHeaderPayload))
	_ = writeBlockHeader(buf, h)

	return chainhash.DoubleHashH(buf.Bytes())
}

// BtcDecode decodes r using the bitcoin protocol encoding into the receiver.
// This is part of the Message interface implementation.
// See Deserialize for decoding block headers stored to disk, such as in a
// database, as opposed to decoding block headers from the wire.
func (h *BlockHeader) BtcDecode(r io.Reader, pver uint32, _ MessageEncoding) error {
	return readBlockHeaderAux(r, h)
}

// BtcEncode encodes the receiver to w using the bitcoin protocol encoding.
// This is part of the Message interface implementation.
// See Serialize for encoding block headers to be stored to disk, such as in a
// database, as opposed to encoding block headers for the wire.
func (h *BlockHeader) BtcEncode(w io.Writer, pver uint32, _ MessageEncoding) error {
	return writeBlockHeaderAux(w, h)
}

// Deserialize decodes a block header from r into the receiver using a format
// that is suitable for long-term storage such as a database.
func (h *BlockHeader) Deserialize(r io.Reader) error {
	// At the current time, there is no difference between the wire encoding
	// and the stable long-term storage format.
	return readBlockHeaderAux(r, h)
}

// Serialize encodes a block header from the receiver to w using a format
// that is suitable for long-term storage such as a database.
func (h *BlockHeader) Serialize(w io.Writer) error {
	// At the current time, there is no difference between the wire encoding
	// and the stable long-term storage format.
	return writeBlockHeaderAux(w, h)
}

// NewBlockHeader returns a new BlockHeader using the provided version,
// previous block hash, merkle root hash, difficulty bits, and nonce used to
// generate the block with defaults for the remaining fields.
func NewBlockHeader(version int32, prevHash, merkleRootHash *chainhash.Hash,
	bits uint32, nonce uint32) *BlockHeader {

	// Limit the timestamp to one second precision since the protocol
	// doesn't support better.
	return &BlockHeader{
		Version:    version,
		PrevBlock:  *prevHash,
		MerkleRoot: *merkleRootHash,
		Timestamp:  time.Unix(time.Now().Unix(), 0),
		Bits:       bits,
		Nonce:      nonce,
	}
}

// readBlockHeader reads the fixed 80 bytes of a bitcoin block header from r.
func readBlockHeader(r io.Reader, bh *BlockHeader) error {
	return ReadElements(r, &bh.Version, &bh.PrevBlock, &bh.MerkleRoot,
		(*Uint32Time)(&bh.Timestamp), &bh.Bits, &bh.Nonce)
}

// writeBlockHeader writes the fixed 80 bytes of a bitcoin block header to w.
func writeBlockHeader(w io.Writer, bh *BlockHeader) error {
	sec := uint32(bh.Timestamp.Unix())
	return WriteElements(w, bh.Version, &bh.PrevBlock, &bh.MerkleRoot,
		sec, bh.Bits, bh.Nonce)
}

// readBlockHeaderAux reads a block header from r followed by the auxiliary
// proof-of-work structure when the version flags one.
func readBlockHeaderAux(r io.Reader, bh *BlockHeader) error {
	if err := readBlockHeader(r, bh); err != nil {
		return err
	}

	bh.AuxPow = nil
	if bh.HasAuxPow() {
		aux := new(AuxPow)
		if err := aux.Deserialize(r); err != nil {
			return err
		}
		bh.AuxPow = aux
	}
	return nil
}

// writeBlockHeaderAux writes a block header to w followed by the auxiliary
// proof-of-work structure when the version flags one.
func writeBlockHeaderAux(w io.Writer, bh *BlockHeader) error {
	if err := writeBlockHeader(w, bh); err != nil {
		return err
	}

	if bh.HasAuxPow() {
		if bh.AuxPow == nil {
			return Error("writeBlockHeaderAux",
				"version flags auxpow but none is attached")
		}
		return bh.AuxPow.Serialize(w)
	}
	return nil
}
