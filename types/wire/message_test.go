// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2025 The bitwire developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/bitwire/core/types/chainhash"
)

// TestMessage tests the Read/WriteMessage API against all supported messages.
func TestMessage(t *testing.T) {
	pver := ProtocolVersion

	// Create the various types of messages to test.
	you := NewNetAddress(&net.TCPAddr{IP: net.ParseIP("192.168.0.1"), Port: 8333}, SFNodeNetwork)
	you.Timestamp = time.Time{} // Version message has zero value timestamp.
	me := NewNetAddress(&net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 8333}, SFNodeNetwork)
	me.Timestamp = time.Time{} // Version message has zero value timestamp.

	msgVersion := NewMsgVersion(me, you, 123123, 0)
	msgVerack := NewMsgVerAck()
	msgGetAddr := NewMsgGetAddr()
	msgAddr := NewMsgAddr()
	msgInv := NewMsgInv()
	msgGetData := NewMsgGetData()
	msgNotFound := NewMsgNotFound()
	msgPing := NewMsgPing(123123)
	msgPong := NewMsgPong(123123)
	msgGetBlocks := NewMsgGetBlocks(&chainhash.ZeroHash)
	msgGetHeaders := NewMsgGetHeaders()
	msgHeaders := NewMsgHeaders()

	hash := chainhash.HashH([]byte("inv"))
	require.NoError(t, msgInv.AddInvVect(NewInvVect(InvTypeBlock, &hash)))
	require.NoError(t, msgGetData.AddInvVect(NewInvVect(InvTypeTx, &hash)))

	tests := []struct {
		in    Message    // Value to encode
		out   Message    // Expected decoded value
		bytes int        // Expected num bytes read/written
		net   BitcoinNet // Network to use for wire encoding
	}{
		{msgVersion, msgVersion, 125, MainNet},
		{msgVerack, msgVerack, 24, MainNet},
		{msgGetAddr, msgGetAddr, 24, MainNet},
		{msgAddr, msgAddr, 25, MainNet},
		{msgInv, msgInv, 61, MainNet},
		{msgGetData, msgGetData, 61, MainNet},
		{msgNotFound, msgNotFound, 25, MainNet},
		{msgPing, msgPing, 32, MainNet},
		{msgPong, msgPong, 32, MainNet},
		{msgGetBlocks, msgGetBlocks, 61, MainNet},
		{msgGetHeaders, msgGetHeaders, 61, MainNet},
		{msgHeaders, msgHeaders, 25, MainNet},
	}

	for i, test := range tests {
		// Encode to wire format.
		var buf bytes.Buffer
		nw, err := WriteMessageN(&buf, test.in, pver, test.net)
		require.NoErrorf(t, err, "WriteMessage #%d", i)
		assert.Equalf(t, test.bytes, nw, "WriteMessage #%d", i)

		// Decode from wire format.
		rbuf := bytes.NewReader(buf.Bytes())
		nr, msg, _, err := ReadMessageN(rbuf, pver, test.net)
		require.NoErrorf(t, err, "ReadMessage #%d (%s)", i, test.in.Command())
		assert.Equalf(t, test.bytes, nr, "ReadMessage #%d", i)
		assert.Equalf(t, test.out.Command(), msg.Command(), "ReadMessage #%d", i)
	}
}

// TestReadMessageWrongNetwork ensures messages from another network are
// rejected.
func TestReadMessageWrongNetwork(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, NewMsgVerAck(), ProtocolVersion, MainNet))

	_, _, err := ReadMessage(bytes.NewReader(buf.Bytes()), ProtocolVersion, TestNet3)
	var msgErr *MessageError
	require.ErrorAs(t, err, &msgErr)
}

// TestReadMessageCorruptChecksum ensures messages with an invalid payload
// checksum are rejected.
func TestReadMessageCorruptChecksum(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, NewMsgPing(1), ProtocolVersion, MainNet))

	raw := buf.Bytes()
	raw[len(raw)-1] ^= 0xff // flip a payload byte

	_, _, err := ReadMessage(bytes.NewReader(raw), ProtocolVersion, MainNet)
	var msgErr *MessageError
	require.ErrorAs(t, err, &msgErr)
}

// TestReadMessageUnknownCommand ensures messages with an unhandled command are
// rejected and the payload is consumed.
func TestReadMessageUnknownCommand(t *testing.T) {
	var buf bytes.Buffer
	WriteElements(&buf, MainNet)
	var command [CommandSize]byte
	copy(command[:], "bogus")
	WriteElements(&buf, command, uint32(0))
	buf.Write(chainhash.DoubleHashB(nil)[0:4])

	_, _, err := ReadMessage(bytes.NewReader(buf.Bytes()), ProtocolVersion, MainNet)
	var msgErr *MessageError
	require.ErrorAs(t, err, &msgErr)
}
