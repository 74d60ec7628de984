// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2025 The bitwire developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package p2p

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/bitwire/core/chaincfg"
	"gitlab.com/bitwire/core/types/chainhash"
	"gitlab.com/bitwire/core/types/wire"
)

// handshakePeers connects an inbound and an outbound peer over an in-memory
// pipe and waits for both handshakes to complete.
func handshakePeers(t *testing.T, inCfg, outCfg *PeerConfig) (*Peer, *Peer) {
	t.Helper()

	inDone := make(chan struct{}, 1)
	outDone := make(chan struct{}, 1)

	wrapVerAck := func(done chan struct{}, next func(*Peer, *wire.MsgVerAck)) func(*Peer, *wire.MsgVerAck) {
		return func(p *Peer, msg *wire.MsgVerAck) {
			done <- struct{}{}
			if next != nil {
				next(p, msg)
			}
		}
	}
	inCfg.Listeners.OnVerAck = wrapVerAck(inDone, inCfg.Listeners.OnVerAck)
	outCfg.Listeners.OnVerAck = wrapVerAck(outDone, outCfg.Listeners.OnVerAck)

	inConn, outConn := net.Pipe()
	inPeer := NewInboundPeer(inCfg)
	outPeer, err := NewOutboundPeer(outCfg, "10.0.0.1:8333")
	require.NoError(t, err)

	assert.Equal(t, StateConnecting, inPeer.State())
	assert.Equal(t, StateConnecting, outPeer.State())

	inPeer.AssociateConnection(inConn)
	outPeer.AssociateConnection(outConn)

	for i, done := range []chan struct{}{inDone, outDone} {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("handshake %d timed out", i)
		}
	}

	return inPeer, outPeer
}

func testPeerConfig() *PeerConfig {
	return &PeerConfig{
		UserAgentName:    "peer-test",
		UserAgentVersion: "1.0.0",
		Params:           &chaincfg.RegressionNetParams,
		Services:         wire.SFNodeNetwork,
	}
}

func TestPeerHandshake(t *testing.T) {
	versionReceived := make(chan *wire.MsgVersion, 1)
	inCfg := testPeerConfig()
	inCfg.Listeners.OnVersion = func(p *Peer, msg *wire.MsgVersion) {
		versionReceived <- msg
	}

	outCfg := testPeerConfig()
	outCfg.NewestBlock = func() (*chainhash.Hash, int32, error) {
		return &chainhash.ZeroHash, 1234, nil
	}

	inPeer, outPeer := handshakePeers(t, inCfg, outCfg)
	defer inPeer.Disconnect()
	defer outPeer.Disconnect()

	// Handshake completes on mutual version/verack exchange.
	assert.Equal(t, StateConnected, inPeer.State())
	assert.Equal(t, StateConnected, outPeer.State())
	assert.True(t, inPeer.VersionKnown())
	assert.True(t, outPeer.VersionKnown())
	assert.True(t, inPeer.Inbound())
	assert.False(t, outPeer.Inbound())

	// The version message carried the advertised chain height.
	select {
	case msg := <-versionReceived:
		assert.Equal(t, int32(1234), msg.LastBlock)
	case <-time.After(time.Second):
		t.Fatal("no version message received")
	}
	assert.Equal(t, int32(1234), inPeer.StartingHeight())

	// Disconnecting is terminal.
	outPeer.Disconnect()
	outPeer.WaitForDisconnect()
	assert.Equal(t, StateClosing, outPeer.State())
	assert.False(t, outPeer.Connected())
}

func TestPeerPingPong(t *testing.T) {
	pongReceived := make(chan uint64, 1)
	inCfg := testPeerConfig()
	outCfg := testPeerConfig()
	outCfg.Listeners.OnPong = func(p *Peer, msg *wire.MsgPong) {
		pongReceived <- msg.Nonce
	}

	inPeer, outPeer := handshakePeers(t, inCfg, outCfg)
	defer inPeer.Disconnect()
	defer outPeer.Disconnect()

	// A ping is answered with a pong carrying the same nonce.
	outPeer.QueueMessage(wire.NewMsgPing(42))
	select {
	case nonce := <-pongReceived:
		assert.Equal(t, uint64(42), nonce)
	case <-time.After(5 * time.Second):
		t.Fatal("no pong received")
	}
}

func TestPeerInvListener(t *testing.T) {
	invReceived := make(chan *wire.MsgInv, 1)
	inCfg := testPeerConfig()
	inCfg.Listeners.OnInv = func(p *Peer, msg *wire.MsgInv) {
		invReceived <- msg
	}
	outCfg := testPeerConfig()

	inPeer, outPeer := handshakePeers(t, inCfg, outCfg)
	defer inPeer.Disconnect()
	defer outPeer.Disconnect()

	hash := chainhash.HashH([]byte("announce"))
	iv := wire.NewInvVect(wire.InvTypeTx, &hash)
	outPeer.QueueInventory(iv)

	select {
	case msg := <-invReceived:
		require.Len(t, msg.InvList, 1)
		assert.Equal(t, *iv, *msg.InvList[0])
	case <-time.After(5 * time.Second):
		t.Fatal("no inv received")
	}

	// The peer remembers what it announced and does not repeat it.
	assert.True(t, outPeer.IsKnownInventory(iv))
	outPeer.QueueInventory(iv)
	select {
	case <-invReceived:
		t.Fatal("duplicate inv was relayed")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPeerKnownInventory(t *testing.T) {
	p := newPeerBase(testPeerConfig(), false)

	hash := chainhash.HashH([]byte("known"))
	iv := wire.NewInvVect(wire.InvTypeBlock, &hash)
	assert.False(t, p.IsKnownInventory(iv))
	p.AddKnownInventory(iv)
	assert.True(t, p.IsKnownInventory(iv))
}

func TestPeerMalformedMessageDisconnects(t *testing.T) {
	inCfg := testPeerConfig()
	outCfg := testPeerConfig()

	inPeer, outPeer := handshakePeers(t, inCfg, outCfg)
	defer inPeer.Disconnect()

	// Writing garbage violates the wire protocol and the reading peer
	// drops the connection.
	outPeer.conn.Write([]byte("this is not a bitcoin message at all....."))
	outPeer.conn.Close()

	inPeer.WaitForDisconnect()
	assert.Equal(t, StateClosing, inPeer.State())
}
