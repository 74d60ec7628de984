// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2025 The bitwire developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/bitwire/core/types/chainhash"
)

// mainNetGenesisHeaderHex is the raw 80-byte header of the bitcoin mainnet
// genesis block.
const mainNetGenesisHeaderHex = "01000000000000000000000000000000000000000000" +
	"00000000000000000000000000003ba3edfd7a7b12b27ac72c3e67768f617fc81bc388" +
	"8a51323a9fb8aa4b1e5e4a29ab5f49ffff001d1dac2b7c"

func TestBlockHeaderGenesis(t *testing.T) {
	raw, err := hex.DecodeString(mainNetGenesisHeaderHex)
	require.NoError(t, err)
	require.Len(t, raw, MaxBlockHeaderPayload)

	var header BlockHeader
	require.NoError(t, header.Deserialize(bytes.NewReader(raw)))

	assert.Equal(t, int32(1), header.Version)
	assert.Equal(t, chainhash.ZeroHash, header.PrevBlock)
	assert.Equal(t,
		"4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b",
		header.MerkleRoot.String())
	assert.Equal(t, int64(1231006505), header.Timestamp.Unix())
	assert.Equal(t, uint32(0x1d00ffff), header.Bits)
	assert.Equal(t, uint32(2083236893), header.Nonce)

	// The block identifier is the double sha256 of the 80 header bytes,
	// displayed reversed.
	assert.Equal(t,
		"000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f",
		header.BlockHash().String())

	// Byte-exact round trip.
	var buf bytes.Buffer
	require.NoError(t, header.Serialize(&buf))
	assert.Equal(t, raw, buf.Bytes())
}

func TestBlockHeaderWire(t *testing.T) {
	nonce := uint32(123123) // 0x1e0f3
	prevHash, err := chainhash.NewHashFromStr("000000000002e7ad7b9eef9479e4aabc65cb831269cc20d2632c13684406dee6")
	require.NoError(t, err)
	merkleHash, err := chainhash.NewHashFromStr("932caf63d7856b0a9e8b6dcfca1cd06e8ee7e722018f9b0a7b0bcad2b730de33")
	require.NoError(t, err)

	bits := uint32(0x1d00ffff)
	header := NewBlockHeader(1, prevHash, merkleHash, bits, nonce)
	header.Timestamp = time.Unix(0x495fab29, 0)

	var buf bytes.Buffer
	require.NoError(t, header.BtcEncode(&buf, ProtocolVersion, BaseEncoding))
	assert.Len(t, buf.Bytes(), MaxBlockHeaderPayload)

	var decoded BlockHeader
	require.NoError(t, decoded.BtcDecode(bytes.NewReader(buf.Bytes()),
		ProtocolVersion, BaseEncoding))
	assert.Equal(t, *header, decoded)
	assert.Equal(t, header.BlockHash(), decoded.BlockHash())
}

func TestBlockHeaderTruncated(t *testing.T) {
	raw, err := hex.DecodeString(mainNetGenesisHeaderHex)
	require.NoError(t, err)

	for _, cut := range []int{0, 1, 35, 67, 79} {
		var header BlockHeader
		err := header.Deserialize(bytes.NewReader(raw[:cut]))
		assert.Errorf(t, err, "cut at %d", cut)
	}
}

func TestBlockHeaderAuxPowRoundTrip(t *testing.T) {
	parentPrev, _ := chainhash.NewHashFromStr("01")
	parentMerkle, _ := chainhash.NewHashFromStr("02")

	coinbase := NewMsgTx(TxVersion)
	coinbase.AddTxIn(&TxIn{
		PreviousOutPoint: OutPoint{Hash: chainhash.ZeroHash, Index: MaxPrevOutIndex},
		SignatureScript:  []byte{0x04, 0xff, 0xff, 0x00, 0x1d},
		Sequence:         MaxTxInSequenceNum,
	})
	coinbase.AddTxOut(&TxOut{Value: 5000000000, PkScript: []byte{0x51}})

	prevHash, _ := chainhash.NewHashFromStr("aa")
	merkleHash, _ := chainhash.NewHashFromStr("bb")
	header := NewBlockHeader(1|VersionAuxPow, prevHash, merkleHash, 0x1d00ffff, 42)
	header.Timestamp = time.Unix(0x5f000000, 0)
	header.AuxPow = &AuxPow{
		CoinbaseTx: *coinbase,
		ParentHash: chainhash.HashH([]byte("parent")),
		CoinbaseBranch: MerkleBranch{
			Hashes:   []chainhash.Hash{chainhash.HashH([]byte("cb"))},
			SideMask: 1,
		},
		BlockchainBranch: MerkleBranch{},
		ParentHeader: BlockHeader{
			Version:    1,
			PrevBlock:  *parentPrev,
			MerkleRoot: *parentMerkle,
			Timestamp:  time.Unix(0x5f000001, 0),
			Bits:       0x1d00ffff,
			Nonce:      7,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, header.Serialize(&buf))

	var decoded BlockHeader
	require.NoError(t, decoded.Deserialize(bytes.NewReader(buf.Bytes())))
	require.NotNil(t, decoded.AuxPow)
	assert.Equal(t, *header, decoded)

	// The encoder must reproduce the auxpow bytes verbatim.
	var buf2 bytes.Buffer
	require.NoError(t, decoded.Serialize(&buf2))
	assert.Equal(t, buf.Bytes(), buf2.Bytes())

	// The block identifier does not cover the auxpow.
	plain := *header
	plain.AuxPow = nil
	assert.Equal(t, plain.BlockHash(), header.BlockHash())
}

func TestBlockHeaderAuxPowMissing(t *testing.T) {
	prevHash, _ := chainhash.NewHashFromStr("aa")
	merkleHash, _ := chainhash.NewHashFromStr("bb")
	header := NewBlockHeader(1|VersionAuxPow, prevHash, merkleHash, 0x1d00ffff, 42)

	var buf bytes.Buffer
	err := header.Serialize(&buf)
	var msgErr *MessageError
	require.ErrorAs(t, err, &msgErr)
}
