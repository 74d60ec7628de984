// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2025 The bitwire developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/bitwire/core/types/chainhash"
)

// genesisCoinbaseTxHex is the canonical serialization of the bitcoin mainnet
// genesis coinbase transaction.
const genesisCoinbaseTxHex = "01000000010000000000000000000000000000000000" +
	"000000000000000000000000000000ffffffff4d04ffff001d0104455468652054696d" +
	"65732030332f4a616e2f32303039204368616e63656c6c6f72206f6e206272696e6b20" +
	"6f66207365636f6e64206261696c6f757420666f722062616e6b73ffffffff0100f205" +
	"2a01000000434104678afdb0fe5548271967f1a67130b7105cd6a828e03909a67962e0" +
	"ea1f61deb649f6bc3f4cef38c4f35504e51ec112de5c384df7ba0b8d578a4c702b6bf1" +
	"1d5fac00000000"

func TestTxGenesisRoundTrip(t *testing.T) {
	raw, err := hex.DecodeString(genesisCoinbaseTxHex)
	require.NoError(t, err)

	tx, err := TxFromBytes(raw)
	require.NoError(t, err)

	assert.Equal(t, int32(1), tx.Version)
	assert.Equal(t, uint32(0), tx.LockTime)
	require.Len(t, tx.TxIn, 1)
	require.Len(t, tx.TxOut, 1)
	assert.Equal(t, int64(5000000000), tx.TxOut[0].Value)
	assert.True(t, tx.IsCoinBase())

	assert.Equal(t,
		"4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b",
		tx.TxHash().String())

	var buf bytes.Buffer
	require.NoError(t, tx.Serialize(&buf))
	assert.Equal(t, raw, buf.Bytes(), spew.Sdump(tx))
	assert.Equal(t, len(raw), tx.SerializeSize())
}

func TestTxWire(t *testing.T) {
	prevHash := chainhash.HashH([]byte("prev tx"))
	tx := NewMsgTx(TxVersion)
	tx.AddTxIn(NewTxIn(NewOutPoint(&prevHash, 3), []byte{0x04, 0x31, 0xdc, 0x00, 0x1b, 0x01, 0x62}))
	tx.AddTxOut(NewTxOut(0x12a05f200, []byte{
		0x76, // OP_DUP
		0xa9, // OP_HASH160
		0x14, // OP_DATA_20
		0xc3, 0x98, 0xef, 0xa9, 0xc3, 0x92, 0xba, 0x60,
		0x13, 0xc5, 0xe0, 0x4e, 0xe7, 0x29, 0x75, 0x5e,
		0xf7, 0xf5, 0x8b, 0x32,
		0x88, // OP_EQUALVERIFY
		0xac, // OP_CHECKSIG
	}))
	tx.AddTxOut(NewTxOut(0, nil))
	tx.LockTime = 250000

	var buf bytes.Buffer
	require.NoError(t, tx.BtcEncode(&buf, ProtocolVersion, BaseEncoding))
	assert.Equal(t, tx.SerializeSize(), buf.Len())

	var decoded MsgTx
	require.NoError(t, decoded.BtcDecode(bytes.NewReader(buf.Bytes()),
		ProtocolVersion, BaseEncoding))

	assert.Equal(t, tx.TxHash(), decoded.TxHash())
	assert.False(t, decoded.IsCoinBase())
	require.Len(t, decoded.TxOut, 2)
	assert.Equal(t, tx.TxOut[0].PkScript, decoded.TxOut[0].PkScript)

	// A deep copy must be independent of the original.
	clone := decoded.Copy()
	assert.Equal(t, decoded.TxHash(), clone.TxHash())
	clone.TxIn[0].SignatureScript[0] ^= 0xff
	assert.NotEqual(t, decoded.TxIn[0].SignatureScript[0],
		clone.TxIn[0].SignatureScript[0])
}

func TestTxCoinbasePredicate(t *testing.T) {
	coinbaseIn := &TxIn{
		PreviousOutPoint: OutPoint{Hash: chainhash.ZeroHash, Index: MaxPrevOutIndex},
		Sequence:         MaxTxInSequenceNum,
	}

	// Exactly one input spending the zero outpoint with max index.
	tx := NewMsgTx(TxVersion)
	tx.AddTxIn(coinbaseIn)
	assert.True(t, tx.IsCoinBase())

	// Wrong index.
	tx = NewMsgTx(TxVersion)
	tx.AddTxIn(&TxIn{PreviousOutPoint: OutPoint{Hash: chainhash.ZeroHash, Index: 0}})
	assert.False(t, tx.IsCoinBase())

	// Non-zero hash.
	tx = NewMsgTx(TxVersion)
	hash := chainhash.HashH([]byte("spend"))
	tx.AddTxIn(&TxIn{PreviousOutPoint: OutPoint{Hash: hash, Index: MaxPrevOutIndex}})
	assert.False(t, tx.IsCoinBase())

	// More than one input.
	tx = NewMsgTx(TxVersion)
	tx.AddTxIn(coinbaseIn)
	tx.AddTxIn(coinbaseIn)
	assert.False(t, tx.IsCoinBase())
}

func TestTxOversizeScript(t *testing.T) {
	// A script claiming 10001 bytes must be rejected during decode.
	var buf bytes.Buffer
	buf.Write([]byte{0x01, 0x00, 0x00, 0x00}) // version
	buf.WriteByte(0x01)                       // one input
	buf.Write(make([]byte, 36))               // outpoint
	WriteVarInt(&buf, MaxScriptSize+1)        // script length
	buf.Write(make([]byte, MaxScriptSize+1))

	var tx MsgTx
	err := tx.BtcDecode(bytes.NewReader(buf.Bytes()), ProtocolVersion, BaseEncoding)
	var msgErr *MessageError
	require.ErrorAs(t, err, &msgErr)
}
