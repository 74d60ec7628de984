// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2016-2018 The Decred developers
// Copyright (c) 2025 The bitwire developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package p2p

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/decred/dcrd/lru"

	"gitlab.com/bitwire/core/chaincfg"
	"gitlab.com/bitwire/core/types/chainhash"
	"gitlab.com/bitwire/core/types/wire"
)

const (
	// outputBufferSize is the number of elements the output channels use.
	outputBufferSize = 50

	// negotiateTimeout is the duration of inactivity before we timeout a
	// peer that hasn't completed the initial version negotiation.
	negotiateTimeout = 30 * time.Second

	// DefaultIdleTimeout is the duration of inactivity before we time out
	// a peer when no override is configured.
	DefaultIdleTimeout = 5 * time.Minute

	// pingInterval is the interval of time to wait in between sending ping
	// messages.
	pingInterval = 2 * time.Minute

	// maxKnownInventory is the maximum number of items to keep in the
	// per-peer known inventory cache.
	maxKnownInventory = 1000
)

// State describes the lifecycle of a peer connection.  The only state that
// participates in inventory and block requests is StateConnected; StateClosing
// is terminal.
type State int32

// The peer states, in lifecycle order.
const (
	StateConnecting State = iota
	StateHandshaking
	StateConnected
	StateClosing
)

// String returns the State in human-readable form.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	}
	return "unknown"
}

// nodeCount is the total number of peer connections made since startup and is
// used to assign an id to a peer.
var nodeCount int32

// MessageListeners defines callback function pointers to invoke with message
// listeners for a peer.  Any listener which is not set to a concrete callback
// during peer initialization is ignored.  Execution of multiple message
// listeners occurs serially, so one callback blocks the handling of the next
// message from the peer.
type MessageListeners struct {
	// OnVersion is invoked when a peer receives a version bitcoin message.
	OnVersion func(p *Peer, msg *wire.MsgVersion)

	// OnVerAck is invoked when the handshake completes with the mutual
	// version/verack exchange.
	OnVerAck func(p *Peer, msg *wire.MsgVerAck)

	// OnInv is invoked when a peer receives an inv bitcoin message.
	OnInv func(p *Peer, msg *wire.MsgInv)

	// OnBlock is invoked when a peer receives a block bitcoin message.
	OnBlock func(p *Peer, msg *wire.MsgBlock, buf []byte)

	// OnTx is invoked when a peer receives a tx bitcoin message.
	OnTx func(p *Peer, msg *wire.MsgTx)

	// OnHeaders is invoked when a peer receives a headers bitcoin message.
	OnHeaders func(p *Peer, msg *wire.MsgHeaders)

	// OnAddr is invoked when a peer receives an addr bitcoin message.
	OnAddr func(p *Peer, msg *wire.MsgAddr)

	// OnGetAddr is invoked when a peer receives a getaddr bitcoin message.
	OnGetAddr func(p *Peer, msg *wire.MsgGetAddr)

	// OnGetData is invoked when a peer receives a getdata bitcoin message.
	OnGetData func(p *Peer, msg *wire.MsgGetData)

	// OnGetBlocks is invoked when a peer receives a getblocks bitcoin
	// message.
	OnGetBlocks func(p *Peer, msg *wire.MsgGetBlocks)

	// OnGetHeaders is invoked when a peer receives a getheaders bitcoin
	// message.
	OnGetHeaders func(p *Peer, msg *wire.MsgGetHeaders)

	// OnNotFound is invoked when a peer receives a notfound bitcoin
	// message.
	OnNotFound func(p *Peer, msg *wire.MsgNotFound)

	// OnPing is invoked when a peer receives a ping bitcoin message.
	OnPing func(p *Peer, msg *wire.MsgPing)

	// OnPong is invoked when a peer receives a pong bitcoin message.
	OnPong func(p *Peer, msg *wire.MsgPong)
}

// PeerConfig is the configuration for a peer.
type PeerConfig struct {
	// Listeners houses callback functions to be invoked on receiving peer
	// messages.
	Listeners MessageListeners

	// UserAgentName specifies the user agent name to advertise.  It is
	// highly recommended to specify this value.
	UserAgentName string

	// UserAgentVersion specifies the user agent version to advertise.  It
	// is highly recommended to specify this value and that it follows the
	// form "major.minor.revision" e.g. "2.6.41".
	UserAgentVersion string

	// Params identifies the network the peer is associated with.
	Params *chaincfg.Params

	// Services specifies which services to advertise as supported by the
	// local peer.
	Services wire.ServiceFlag

	// NewestBlock specifies a callback which provides the newest block
	// details to the peer as needed.  This can be nil in which case the
	// peer will report a block height of 0.
	NewestBlock func() (hash *chainhash.Hash, height int32, err error)

	// IdleTimeout is the duration of inactivity before the connection is
	// timed out.  Zero selects DefaultIdleTimeout.
	IdleTimeout time.Duration
}

// Peer provides a bitcoin peer for handling bitcoin communications via the
// peer-to-peer protocol.  It provides full duplex reading and writing, message
// sequencing, and the initial handshake negotiation.
type Peer struct {
	// The following variables must only be used atomically.
	connected  int32
	disconnect int32
	state      int32

	conn net.Conn

	// These fields are set at creation time and never modified afterwards,
	// so they are safe to read from concurrently without a mutex.
	addr    string
	cfg     PeerConfig
	inbound bool
	id      int32

	flagsMtx        sync.Mutex
	na              *wire.NetAddress
	versionKnown    bool
	protocolVersion uint32
	startingHeight  int32

	knownInventory lru.Cache

	outputQueue chan wire.Message
	quit        chan struct{}
	wg          sync.WaitGroup
}

// newPeerBase returns a new base bitcoin peer based on the inbound flag.
func newPeerBase(cfg *PeerConfig, inbound bool) *Peer {
	peerCfg := *cfg
	if peerCfg.IdleTimeout == 0 {
		peerCfg.IdleTimeout = DefaultIdleTimeout
	}

	return &Peer{
		cfg:             peerCfg,
		inbound:         inbound,
		id:              atomic.AddInt32(&nodeCount, 1),
		state:           int32(StateConnecting),
		protocolVersion: wire.ProtocolVersion,
		knownInventory:  lru.NewCache(maxKnownInventory),
		outputQueue:     make(chan wire.Message, outputBufferSize),
		quit:            make(chan struct{}),
	}
}

// NewInboundPeer returns a new inbound bitcoin peer.  Use AssociateConnection
// to start it.
func NewInboundPeer(cfg *PeerConfig) *Peer {
	return newPeerBase(cfg, true)
}

// NewOutboundPeer returns a new outbound bitcoin peer.  Use
// AssociateConnection to start it.
func NewOutboundPeer(cfg *PeerConfig, addr string) (*Peer, error) {
	p := newPeerBase(cfg, false)
	p.addr = addr

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, err
	}
	if ip := net.ParseIP(host); ip != nil {
		p.na = wire.NewNetAddressIPPort(ip, uint16(port), cfg.Services)
	}

	return p, nil
}

// ID returns the peer id.
func (p *Peer) ID() int32 {
	return p.id
}

// Addr returns the peer address.
func (p *Peer) Addr() string {
	return p.addr
}

// Inbound returns whether the peer is inbound.
func (p *Peer) Inbound() bool {
	return p.inbound
}

// String returns the peer's address and directionality as a human-readable
// string.
func (p *Peer) String() string {
	direction := "outbound"
	if p.inbound {
		direction = "inbound"
	}
	return fmt.Sprintf("%s (%s)", p.addr, direction)
}

// State returns the peer's current lifecycle state.
func (p *Peer) State() State {
	return State(atomic.LoadInt32(&p.state))
}

func (p *Peer) setState(state State) {
	atomic.StoreInt32(&p.state, int32(state))
}

// NA returns the peer network address.
func (p *Peer) NA() *wire.NetAddress {
	p.flagsMtx.Lock()
	defer p.flagsMtx.Unlock()

	return p.na
}

// StartingHeight returns the last block height the peer announced in its
// version message.
func (p *Peer) StartingHeight() int32 {
	p.flagsMtx.Lock()
	defer p.flagsMtx.Unlock()

	return p.startingHeight
}

// VersionKnown returns whether the version handshake reached the point of
// knowing the remote version.
func (p *Peer) VersionKnown() bool {
	p.flagsMtx.Lock()
	defer p.flagsMtx.Unlock()

	return p.versionKnown
}

// ProtocolVersion returns the negotiated protocol version.
func (p *Peer) ProtocolVersion() uint32 {
	p.flagsMtx.Lock()
	defer p.flagsMtx.Unlock()

	return p.protocolVersion
}

// AddKnownInventory adds the passed inventory to the cache of known inventory
// for the peer.
func (p *Peer) AddKnownInventory(iv *wire.InvVect) {
	p.knownInventory.Add(*iv)
}

// IsKnownInventory returns whether the peer is known to have the passed
// inventory.
func (p *Peer) IsKnownInventory(iv *wire.InvVect) bool {
	return p.knownInventory.Contains(*iv)
}

// Connected returns whether or not the peer is currently connected.
func (p *Peer) Connected() bool {
	return atomic.LoadInt32(&p.connected) != 0 &&
		atomic.LoadInt32(&p.disconnect) == 0
}

// Disconnect disconnects the peer by closing the connection.  Calling this
// function when the peer is already disconnected or in the process of
// disconnecting will have no effect.
func (p *Peer) Disconnect() {
	if atomic.AddInt32(&p.disconnect, 1) != 1 {
		return
	}

	p.setState(StateClosing)
	if atomic.LoadInt32(&p.connected) != 0 {
		p.conn.Close()
	}
	close(p.quit)
}

// WaitForDisconnect waits until the peer has completely disconnected and all
// resources are cleaned up.  This will happen if either the local or remote
// side has been disconnected or the peer is forcibly disconnected via
// Disconnect.
func (p *Peer) WaitForDisconnect() {
	<-p.quit
	p.wg.Wait()
}

// AssociateConnection associates the given conn to the peer.  Calling this
// function when the peer is already connected will have no effect.
func (p *Peer) AssociateConnection(conn net.Conn) {
	// Already connected?
	if !atomic.CompareAndSwapInt32(&p.connected, 0, 1) {
		return
	}

	p.conn = conn
	if p.inbound {
		p.addr = p.conn.RemoteAddr().String()

		// Set up a NetAddress for the peer to be used with the address
		// manager.
		if tcpAddr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
			p.flagsMtx.Lock()
			p.na = wire.NewNetAddress(tcpAddr, p.cfg.Services)
			p.flagsMtx.Unlock()
		}
	}

	go func() {
		if err := p.start(); err != nil {
			log.Debugf("Can't start peer %v: %v", p, err)
			p.Disconnect()
		}
	}()
}

// start begins processing input and output messages.
func (p *Peer) start() error {
	log.Tracef("Starting peer %s", p)
	p.setState(StateHandshaking)

	negotiateErr := make(chan error, 1)
	go func() {
		if p.inbound {
			negotiateErr <- p.negotiateInbound()
		} else {
			negotiateErr <- p.negotiateOutbound()
		}
	}()

	// Negotiate the protocol within the specified negotiateTimeout.
	select {
	case err := <-negotiateErr:
		if err != nil {
			p.Disconnect()
			return err
		}
	case <-time.After(negotiateTimeout):
		p.Disconnect()
		return fmt.Errorf("protocol negotiation timeout")
	}
	log.Debugf("Connected to %s", p.Addr())

	p.setState(StateConnected)

	// The protocol has been negotiated successfully so start processing
	// input and output messages.
	p.wg.Add(3)
	go p.inHandler()
	go p.outHandler()
	go p.pingHandler()

	if p.cfg.Listeners.OnVerAck != nil {
		p.cfg.Listeners.OnVerAck(p, wire.NewMsgVerAck())
	}
	return nil
}

// localVersionMsg creates a version message that can be used to send to the
// remote peer.
func (p *Peer) localVersionMsg() (*wire.MsgVersion, error) {
	var blockNum int32
	if p.cfg.NewestBlock != nil {
		var err error
		_, blockNum, err = p.cfg.NewestBlock()
		if err != nil {
			return nil, err
		}
	}

	theirNA := p.NA()
	if theirNA == nil {
		theirNA = wire.NewNetAddressIPPort(net.IP([]byte{0, 0, 0, 0}), 0, 0)
	}

	// Version message.
	nonce, err := wire.RandomUint64()
	if err != nil {
		return nil, err
	}
	ourNA := wire.NewNetAddressIPPort(net.IP([]byte{0, 0, 0, 0}), 0,
		p.cfg.Services)
	msg := wire.NewMsgVersion(ourNA, theirNA, nonce, blockNum)
	msg.AddUserAgent(p.cfg.UserAgentName, p.cfg.UserAgentVersion)
	msg.Services = p.cfg.Services
	msg.ProtocolVersion = int32(wire.ProtocolVersion)
	return msg, nil
}

// handleRemoteVersionMsg is invoked when a version bitcoin message is received
// from the remote peer.  It will return an error if the remote peer's version
// is not compatible with ours.
func (p *Peer) handleRemoteVersionMsg(msg *wire.MsgVersion) error {
	// Updating a bunch of stats including block based stats, and the
	// peer's time offset.
	p.flagsMtx.Lock()
	p.versionKnown = true
	p.startingHeight = msg.LastBlock
	if uint32(msg.ProtocolVersion) < p.protocolVersion {
		p.protocolVersion = uint32(msg.ProtocolVersion)
	}
	p.flagsMtx.Unlock()

	if p.cfg.Listeners.OnVersion != nil {
		p.cfg.Listeners.OnVersion(p, msg)
	}
	return nil
}

// readRemoteVersionMsg waits for the next message to arrive from the remote
// peer.  If the next message is not a version message or the version is not
// acceptable then return an error.
func (p *Peer) readRemoteVersionMsg() error {
	msg, _, err := p.readMessage()
	if err != nil {
		return err
	}

	remoteVerMsg, ok := msg.(*wire.MsgVersion)
	if !ok {
		return fmt.Errorf("a version message must precede all others")
	}

	return p.handleRemoteVersionMsg(remoteVerMsg)
}

// readRemoteVerAckMsg waits for the next message to arrive from the remote
// peer and enforces that it is a verack.
func (p *Peer) readRemoteVerAckMsg() error {
	msg, _, err := p.readMessage()
	if err != nil {
		return err
	}

	if _, ok := msg.(*wire.MsgVerAck); !ok {
		return fmt.Errorf("a verack message must complete the handshake")
	}
	return nil
}

// writeLocalVersionMsg writes our version message to the remote peer.
func (p *Peer) writeLocalVersionMsg() error {
	localVerMsg, err := p.localVersionMsg()
	if err != nil {
		return err
	}

	return p.writeMessage(localVerMsg)
}

// negotiateInbound performs the negotiation protocol for an inbound peer.
// The events must occur in the following order, otherwise the peer is
// disconnected:
//
//  1. Remote peer sends their version.
//  2. We send our version.
//  3. We send our verack.
//  4. Remote peer sends their verack.
func (p *Peer) negotiateInbound() error {
	if err := p.readRemoteVersionMsg(); err != nil {
		return err
	}
	if err := p.writeLocalVersionMsg(); err != nil {
		return err
	}
	if err := p.writeMessage(wire.NewMsgVerAck()); err != nil {
		return err
	}
	return p.readRemoteVerAckMsg()
}

// negotiateOutbound performs the negotiation protocol for an outbound peer,
// mirroring negotiateInbound.
func (p *Peer) negotiateOutbound() error {
	if err := p.writeLocalVersionMsg(); err != nil {
		return err
	}
	if err := p.readRemoteVersionMsg(); err != nil {
		return err
	}
	if err := p.readRemoteVerAckMsg(); err != nil {
		return err
	}
	return p.writeMessage(wire.NewMsgVerAck())
}

// readMessage reads the next bitcoin message from the peer with the idle
// deadline applied.
func (p *Peer) readMessage() (wire.Message, []byte, error) {
	idleDeadline := time.Now().Add(p.cfg.IdleTimeout)
	if err := p.conn.SetReadDeadline(idleDeadline); err != nil {
		return nil, nil, err
	}

	msg, buf, err := wire.ReadMessage(p.conn, p.ProtocolVersion(),
		p.cfg.Params.Net)
	if err != nil {
		return nil, nil, err
	}
	log.Tracef("Received %v from %s", msg.Command(), p)
	return msg, buf, nil
}

// writeMessage sends a bitcoin message to the peer.
func (p *Peer) writeMessage(msg wire.Message) error {
	// Don't do anything if we're disconnecting.
	if atomic.LoadInt32(&p.disconnect) != 0 {
		return nil
	}

	log.Tracef("Sending %v to %s", msg.Command(), p)
	return wire.WriteMessage(p.conn, msg, p.ProtocolVersion(),
		p.cfg.Params.Net)
}

// inHandler handles all incoming messages for the peer.  It must be run as a
// goroutine.
func (p *Peer) inHandler() {
out:
	for atomic.LoadInt32(&p.disconnect) == 0 {
		rmsg, buf, err := p.readMessage()
		if err != nil {
			// Only log the error if the local peer is not forcibly
			// disconnecting and the remote peer has not
			// disconnected.
			if p.shouldHandleReadError(err) {
				log.Debugf("Can't read message from %s: %v", p, err)
			}
			break out
		}

		// Handle each supported message type.  Messages are dispatched
		// through an explicit type switch so unknown commands fall
		// through to the codec's unhandled-command error above.
		switch msg := rmsg.(type) {
		case *wire.MsgVersion:
			// A peer must not send a version message after the
			// handshake.
			log.Debugf("Duplicate version message from %s", p)
			break out

		case *wire.MsgVerAck:
			// Stray veracks after the handshake are ignored.

		case *wire.MsgPing:
			p.handlePingMsg(msg)
			if p.cfg.Listeners.OnPing != nil {
				p.cfg.Listeners.OnPing(p, msg)
			}

		case *wire.MsgPong:
			if p.cfg.Listeners.OnPong != nil {
				p.cfg.Listeners.OnPong(p, msg)
			}

		case *wire.MsgInv:
			if p.cfg.Listeners.OnInv != nil {
				p.cfg.Listeners.OnInv(p, msg)
			}

		case *wire.MsgBlock:
			if p.cfg.Listeners.OnBlock != nil {
				p.cfg.Listeners.OnBlock(p, msg, buf)
			}

		case *wire.MsgTx:
			if p.cfg.Listeners.OnTx != nil {
				p.cfg.Listeners.OnTx(p, msg)
			}

		case *wire.MsgHeaders:
			if p.cfg.Listeners.OnHeaders != nil {
				p.cfg.Listeners.OnHeaders(p, msg)
			}

		case *wire.MsgAddr:
			if p.cfg.Listeners.OnAddr != nil {
				p.cfg.Listeners.OnAddr(p, msg)
			}

		case *wire.MsgGetAddr:
			if p.cfg.Listeners.OnGetAddr != nil {
				p.cfg.Listeners.OnGetAddr(p, msg)
			}

		case *wire.MsgGetData:
			if p.cfg.Listeners.OnGetData != nil {
				p.cfg.Listeners.OnGetData(p, msg)
			}

		case *wire.MsgGetBlocks:
			if p.cfg.Listeners.OnGetBlocks != nil {
				p.cfg.Listeners.OnGetBlocks(p, msg)
			}

		case *wire.MsgGetHeaders:
			if p.cfg.Listeners.OnGetHeaders != nil {
				p.cfg.Listeners.OnGetHeaders(p, msg)
			}

		case *wire.MsgNotFound:
			if p.cfg.Listeners.OnNotFound != nil {
				p.cfg.Listeners.OnNotFound(p, msg)
			}

		default:
			log.Debugf("Received unhandled message of type %v "+
				"from %v", rmsg.Command(), p)
		}
	}

	p.Disconnect()
	p.wg.Done()
	log.Tracef("Peer input handler done for %s", p)
}

// handlePingMsg replies to a ping with a pong carrying the same nonce.
func (p *Peer) handlePingMsg(msg *wire.MsgPing) {
	p.QueueMessage(wire.NewMsgPong(msg.Nonce))
}

// shouldHandleReadError returns whether or not the passed error, which is
// expected to have come from reading from the remote peer in the inHandler,
// should be logged.
func (p *Peer) shouldHandleReadError(err error) bool {
	// No logging when the peer is being forcibly disconnected.
	if atomic.LoadInt32(&p.disconnect) != 0 {
		return false
	}

	// No logging when the remote peer has been disconnected.
	if err == io.EOF {
		return false
	}
	if opErr, ok := err.(*net.OpError); ok && !opErr.Temporary() {
		return false
	}

	return true
}

// outHandler handles all outgoing messages for the peer.  It must be run as a
// goroutine.  It uses a buffered channel to serialize output messages while
// allowing the sender to continue running asynchronously.
func (p *Peer) outHandler() {
out:
	for {
		select {
		case msg := <-p.outputQueue:
			if err := p.writeMessage(msg); err != nil {
				log.Debugf("Can't send message to %s: %v", p, err)
				p.Disconnect()
				break out
			}

		case <-p.quit:
			break out
		}
	}

	p.wg.Done()
	log.Tracef("Peer output handler done for %s", p)
}

// pingHandler periodically pings the peer.  It must be run as a goroutine.
func (p *Peer) pingHandler() {
	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

out:
	for {
		select {
		case <-pingTicker.C:
			nonce, err := wire.RandomUint64()
			if err != nil {
				log.Errorf("Not sending ping to %s: %v", p, err)
				continue
			}
			p.QueueMessage(wire.NewMsgPing(nonce))

		case <-p.quit:
			break out
		}
	}

	p.wg.Done()
}

// QueueMessage adds the passed bitcoin message to the peer output queue.  It
// returns immediately; delivery is not guaranteed when the peer disconnects.
func (p *Peer) QueueMessage(msg wire.Message) {
	if !p.Connected() {
		return
	}
	select {
	case p.outputQueue <- msg:
	case <-p.quit:
	}
}

// QueueInventory queues the passed inventory for relay to the peer unless the
// peer is already known to have it.
func (p *Peer) QueueInventory(iv *wire.InvVect) {
	if p.IsKnownInventory(iv) {
		return
	}
	p.AddKnownInventory(iv)

	invMsg := wire.NewMsgInvSizeHint(1)
	invMsg.AddInvVect(iv)
	p.QueueMessage(invMsg)
}

// PushGetBlocksMsg sends a getblocks message for the provided block locator
// and stop hash.
func (p *Peer) PushGetBlocksMsg(locator []*chainhash.Hash, stopHash *chainhash.Hash) error {
	msg := wire.NewMsgGetBlocks(stopHash)
	for _, hash := range locator {
		if err := msg.AddBlockLocatorHash(hash); err != nil {
			return err
		}
	}
	p.QueueMessage(msg)
	return nil
}

// PushGetHeadersMsg sends a getheaders message for the provided block locator
// and stop hash.
func (p *Peer) PushGetHeadersMsg(locator []*chainhash.Hash, stopHash *chainhash.Hash) error {
	msg := wire.NewMsgGetHeaders()
	msg.ProtocolVersion = p.ProtocolVersion()
	msg.HashStop = *stopHash
	for _, hash := range locator {
		if err := msg.AddBlockLocatorHash(hash); err != nil {
			return err
		}
	}
	p.QueueMessage(msg)
	return nil
}

// PushAddrMsg sends an addr message to the peer with at most MaxAddrPerMsg
// entries.
func (p *Peer) PushAddrMsg(addresses []*wire.NetAddress) error {
	count := len(addresses)
	if count == 0 {
		return nil
	}
	if count > wire.MaxAddrPerMsg {
		addresses = addresses[:wire.MaxAddrPerMsg]
	}

	msg := wire.NewMsgAddr()
	if err := msg.AddAddresses(addresses...); err != nil {
		return err
	}
	p.QueueMessage(msg)
	return nil
}
