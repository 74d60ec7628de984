// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2018 The Decred developers
// Copyright (c) 2025 The bitwire developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package p2p

import (
	"fmt"
	"math/rand"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"gitlab.com/bitwire/core/chaincfg"
	"gitlab.com/bitwire/core/chaindb"
	"gitlab.com/bitwire/core/chainutil"
	"gitlab.com/bitwire/core/corelog"
	"gitlab.com/bitwire/core/network/addrmgr"
	"gitlab.com/bitwire/core/types/chainhash"
	"gitlab.com/bitwire/core/types/wire"
)

// userAgentName and userAgentVersion are advertised in the version message.
const (
	userAgentName    = "bitwired"
	userAgentVersion = "0.1.0"
)

// shutdownDrainTimeout bounds how long a graceful shutdown waits for the
// object queue to drain.
const shutdownDrainTimeout = 5 * time.Second

// invRequest pairs an announced inventory vector with the peer that announced
// it so the fetch is directed back at the announcer.
type invRequest struct {
	inv  wire.InvVect
	peer *Peer
}

// object is a fully decoded block or transaction waiting to be applied to the
// store.  Exactly one of block and tx is set.
type object struct {
	block *chainutil.Block
	tx    *chainutil.Tx
	peer  *Peer
}

// getPeersMsg requests the current cohort snapshot from the peer handler.
type getPeersMsg struct {
	reply chan []*Peer
}

// Server is the peer-to-peer node.  It maintains the cohort of peer
// connections and keeps the store converging toward the network's best chain
// through the two-queue download pipeline.
//
// All cohort mutations happen on the peerHandler goroutine; the workers
// communicate with it over channels.  The store is the only resource shared
// across worker goroutines and provides its own serialization.
type Server struct {
	// The following variables must only be used atomically.
	started  int32
	shutdown int32

	cfg         Config
	params      *chaincfg.Params
	store       chaindb.Store
	addrManager *addrmgr.AddrManager
	notifier    *notifier
	logger      corelog.ILogger

	invCache *invCache
	invQueue chan invRequest
	objQueue chan *object

	newPeers  chan *Peer
	donePeers chan *Peer
	query     chan interface{}

	listener net.Listener
	wg       sync.WaitGroup
	quit     chan struct{}
}

// NewServer returns a new node server for the given network backed by the
// given store.  Use Start to begin accepting and making connections.
func NewServer(cfg Config, params *chaincfg.Params, store chaindb.Store,
	amgr *addrmgr.AddrManager, logger corelog.ILogger) (*Server, error) {

	if logger == nil {
		logger = corelog.Disabled
	}
	cfg.normalize()

	s := &Server{
		cfg:         cfg,
		params:      params,
		store:       store,
		addrManager: amgr,
		notifier:    newNotifier(),
		logger:      logger,
		invCache:    newInvCache(cfg.Max.InvCache),
		invQueue:    make(chan invRequest, cfg.Max.Inv),
		objQueue:    make(chan *object, cfg.Max.Queue),
		newPeers:    make(chan *Peer, cfg.Max.Connections),
		donePeers:   make(chan *Peer, cfg.Max.Connections),
		query:       make(chan interface{}),
		quit:        make(chan struct{}),
	}

	if !cfg.Listen.Disabled {
		addr := net.JoinHostPort(cfg.Listen.Host,
			strconv.Itoa(int(cfg.Listen.Port)))
		if cfg.Listen.Port == 0 {
			addr = net.JoinHostPort(cfg.Listen.Host, params.DefaultPort)
		}
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, err
		}
		s.listener = listener
	}

	return s, nil
}

// Subscribe registers a new notification consumer.  Every subscriber receives
// every event in publish order; a slow subscriber loses its oldest events
// instead of blocking the pipeline.
func (s *Server) Subscribe() *Subscription {
	return s.notifier.subscribe()
}

// Store returns the store the node applies objects to.
func (s *Server) Store() chaindb.Store {
	return s.store
}

// Start begins accepting connections and running the download pipeline.
func (s *Server) Start() {
	// Already started?
	if atomic.AddInt32(&s.started, 1) != 1 {
		return
	}

	s.logger.Infof("Server starting on %s", s.params.Name)

	s.wg.Add(1)
	go s.peerHandler()

	if s.listener != nil {
		s.wg.Add(1)
		go s.acceptHandler()
	}

	s.wg.Add(4)
	go s.invQueueWorker()
	go s.objQueueWorker()
	go s.connectWorker()
	go s.addrsWorker()

	// Connect to any explicitly requested peers right away.
	for _, addr := range s.cfg.Connect {
		go s.connectPeer(addr)
	}
}

// Stop gracefully shuts the server down: new work is no longer accepted, the
// object queue is drained with a deadline, and the peers are closed.
func (s *Server) Stop() {
	// Make sure this only happens once.
	if atomic.AddInt32(&s.shutdown, 1) != 1 {
		s.logger.Infof("Server is already in the process of shutting down")
		return
	}

	s.logger.Infof("Server shutting down")

	if s.listener != nil {
		s.listener.Close()
	}

	// Drain the object queue with a deadline so already-downloaded blocks
	// are not thrown away on shutdown.
	deadline := time.After(shutdownDrainTimeout)
drain:
	for {
		select {
		case obj := <-s.objQueue:
			s.applyObject(obj)
		case <-deadline:
			s.logger.Warnf("Shutdown drain deadline reached with %d "+
				"objects pending", len(s.objQueue))
			break drain
		default:
			break drain
		}
	}

	close(s.quit)
	s.wg.Wait()

	if err := s.addrManager.Save(); err != nil {
		s.logger.Warnf("Can't save address book: %v", err)
	}
	s.logger.Infof("Server stopped")
}

// acceptHandler accepts inbound connections.  It must be run as a goroutine.
func (s *Server) acceptHandler() {
	defer s.wg.Done()

	for atomic.LoadInt32(&s.shutdown) == 0 {
		conn, err := s.listener.Accept()
		if err != nil {
			// The listener is closed during shutdown.
			if atomic.LoadInt32(&s.shutdown) == 0 {
				s.logger.Debugf("Accept failed: %v", err)
			}
			return
		}

		peer := NewInboundPeer(s.newPeerConfig())
		peer.AssociateConnection(conn)
		go s.peerDoneHandler(peer)
	}
}

// connectPeer dials the given address and performs the handshake.
func (s *Server) connectPeer(addr string) {
	peer, err := NewOutboundPeer(s.newPeerConfig(), addr)
	if err != nil {
		s.logger.Debugf("Can't create outbound peer %s: %v", addr, err)
		return
	}

	conn, err := s.cfg.Dial("tcp", addr, defaultConnectTimeout)
	if err != nil {
		s.logger.Debugf("Can't connect to %s: %v", addr, err)
		return
	}

	peer.AssociateConnection(conn)
	go s.peerDoneHandler(peer)
}

// peerDoneHandler handles peer disconnects by notifying the peer handler.
func (s *Server) peerDoneHandler(p *Peer) {
	p.WaitForDisconnect()
	select {
	case s.donePeers <- p:
	case <-s.quit:
	}
}

// newPeerConfig returns the configuration for a new server peer.
func (s *Server) newPeerConfig() *PeerConfig {
	return &PeerConfig{
		Listeners: MessageListeners{
			OnVerAck:     s.onVerAck,
			OnInv:        s.onInv,
			OnBlock:      s.onBlock,
			OnTx:         s.onTx,
			OnHeaders:    s.onHeaders,
			OnAddr:       s.onAddr,
			OnGetAddr:    s.onGetAddr,
			OnGetData:    s.onGetData,
			OnGetBlocks:  s.onGetBlocks,
			OnGetHeaders: s.onGetHeaders,
		},
		UserAgentName:    userAgentName,
		UserAgentVersion: userAgentVersion,
		Params:           s.params,
		Services:         wire.SFNodeNetwork,
		NewestBlock:      s.newestBlock,
	}
}

// newestBlock reports the store head to peers during the version handshake.
func (s *Server) newestBlock() (*chainhash.Hash, int32, error) {
	head, err := s.store.Head()
	if err == chaindb.ErrNotFound {
		return &s.params.GenesisBlock.Header.PrevBlock, -1, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return head.Hash(), head.Height(), nil
}

// peerHandler owns the peer cohort.  All additions and removals run here, so
// the cohort needs no locking.  It must be run as a goroutine.
func (s *Server) peerHandler() {
	defer s.wg.Done()

	peers := make(map[int32]*Peer)

out:
	for {
		select {
		case p := <-s.newPeers:
			if len(peers) >= s.cfg.Max.Connections {
				s.logger.Debugf("Max peers reached [%d] - "+
					"disconnecting peer %s",
					s.cfg.Max.Connections, p)
				p.Disconnect()
				continue
			}
			peers[p.ID()] = p
			s.logger.Debugf("New peer %s, %d connected", p, len(peers))
			if na := p.NA(); na != nil {
				s.addrManager.Connected(na)
			}

		case p := <-s.donePeers:
			if _, ok := peers[p.ID()]; ok {
				delete(peers, p.ID())
				s.logger.Debugf("Removed peer %s, %d connected",
					p, len(peers))
			}

		case qmsg := <-s.query:
			switch msg := qmsg.(type) {
			case getPeersMsg:
				snapshot := make([]*Peer, 0, len(peers))
				for _, p := range peers {
					if p.Connected() {
						snapshot = append(snapshot, p)
					}
				}
				msg.reply <- snapshot
			}

		case <-s.quit:
			for _, p := range peers {
				p.Disconnect()
			}
			break out
		}
	}

	// Drain channels before exiting so nothing is left waiting around to
	// send.
cleanup:
	for {
		select {
		case <-s.newPeers:
		case <-s.donePeers:
		case <-s.query:
		default:
			break cleanup
		}
	}
	s.logger.Tracef("Peer handler done")
}

// ConnectedPeers returns a snapshot of the currently connected peers.
func (s *Server) ConnectedPeers() []*Peer {
	reply := make(chan []*Peer)
	select {
	case s.query <- getPeersMsg{reply: reply}:
		return <-reply
	case <-s.quit:
		return nil
	}
}

// ConnectedCount returns the number of currently connected peers.
func (s *Server) ConnectedCount() int {
	return len(s.ConnectedPeers())
}

// randomPeer picks a connected peer uniformly at random for opportunistic
// actions.
func (s *Server) randomPeer() *Peer {
	peers := s.ConnectedPeers()
	if len(peers) == 0 {
		return nil
	}
	return peers[rand.Intn(len(peers))]
}

// onVerAck marks the handshake complete and adds the peer to the cohort.
func (s *Server) onVerAck(p *Peer, _ *wire.MsgVerAck) {
	select {
	case s.newPeers <- p:
	case <-s.quit:
		p.Disconnect()
	}
}

// onInv is invoked when a peer announces inventory.  Each item that is not
// in the recent-inventory cache is recorded there and enqueued for download
// from the announcing peer.
func (s *Server) onInv(p *Peer, msg *wire.MsgInv) {
	for _, iv := range msg.InvList {
		if iv.Type != wire.InvTypeTx && iv.Type != wire.InvTypeBlock {
			continue
		}
		p.AddKnownInventory(iv)

		if s.invCache.Exists(iv) {
			continue
		}
		if s.store.Has(iv.Type, &iv.Hash) {
			s.invCache.Add(iv)
			continue
		}
		s.invCache.Add(iv)

		// A full inventory queue blocks the peer's input handler,
		// which is the desired backpressure.
		select {
		case s.invQueue <- invRequest{inv: *iv, peer: p}:
		case <-s.quit:
			return
		}
	}
}

// onBlock is invoked when a peer delivers a block.  The decoded block goes on
// the object queue; a full queue blocks the peer's input handler.
func (s *Server) onBlock(p *Peer, msg *wire.MsgBlock, buf []byte) {
	block := chainutil.NewBlockFromBlockAndBytes(msg, buf)
	select {
	case s.objQueue <- &object{block: block, peer: p}:
	case <-s.quit:
	}
}

// onTx is invoked when a peer delivers a transaction.
func (s *Server) onTx(p *Peer, msg *wire.MsgTx) {
	select {
	case s.objQueue <- &object{tx: chainutil.NewTx(msg), peer: p}:
	case <-s.quit:
	}
}

// onHeaders is invoked when a peer delivers headers in headers-only mode.
// Each header is applied as a transaction-less block.
func (s *Server) onHeaders(p *Peer, msg *wire.MsgHeaders) {
	for _, header := range msg.Headers {
		block := chainutil.NewBlock(&wire.MsgBlock{Header: *header})
		select {
		case s.objQueue <- &object{block: block, peer: p}:
		case <-s.quit:
			return
		}
	}
}

// onAddr adds announced addresses to the pool.
func (s *Server) onAddr(p *Peer, msg *wire.MsgAddr) {
	s.addrManager.AddAddresses(msg.AddrList)
}

// onGetAddr serves the address pool to the peer.
func (s *Server) onGetAddr(p *Peer, _ *wire.MsgGetAddr) {
	if err := p.PushAddrMsg(s.addrManager.AddressCache()); err != nil {
		s.logger.Debugf("Can't push addresses to %s: %v", p, err)
	}
}

// onGetData serves requested blocks and transactions from the store.
// Missing objects are reported back with a notfound message.
func (s *Server) onGetData(p *Peer, msg *wire.MsgGetData) {
	notFound := wire.NewMsgNotFound()
	for _, iv := range msg.InvList {
		switch iv.Type {
		case wire.InvTypeBlock:
			block, err := s.store.Block(&iv.Hash)
			if err != nil {
				notFound.AddInvVect(iv)
				continue
			}
			p.QueueMessage(block.MsgBlock())

		case wire.InvTypeTx:
			tx, err := s.store.Tx(&iv.Hash)
			if err != nil {
				notFound.AddInvVect(iv)
				continue
			}
			p.QueueMessage(tx.MsgTx())

		default:
			notFound.AddInvVect(iv)
		}
	}
	if len(notFound.InvList) > 0 {
		p.QueueMessage(notFound)
	}
}

// blocksAfterLocator walks the main chain from the first block the locator
// and the local chain share, returning up to max successor blocks.  When no
// locator hash is known, the walk starts at genesis inclusively so a fresh
// peer receives the whole chain.
func (s *Server) blocksAfterLocator(locator []*chainhash.Hash,
	stopHash *chainhash.Hash, max int) []*chainutil.Block {

	var cursor *chainutil.Block
	for _, hash := range locator {
		if block, err := s.store.Block(hash); err == nil {
			cursor = block
			break
		}
	}

	blocks := make([]*chainutil.Block, 0, max)
	if cursor == nil {
		genesis, err := s.store.BlockAtHeight(0)
		if err != nil {
			return nil
		}
		blocks = append(blocks, genesis)
		cursor = genesis
	}

	for len(blocks) < max {
		next, err := s.store.NextBlock(cursor.Hash())
		if err != nil {
			break
		}
		blocks = append(blocks, next)
		if *next.Hash() == *stopHash {
			break
		}
		cursor = next
	}
	return blocks
}

// onGetBlocks answers a getblocks request with an inv of up to 500 block
// hashes following the locator.
func (s *Server) onGetBlocks(p *Peer, msg *wire.MsgGetBlocks) {
	blocks := s.blocksAfterLocator(msg.BlockLocatorHashes, &msg.HashStop,
		wire.MaxBlockLocatorsPerMsg)
	if len(blocks) == 0 {
		return
	}

	invMsg := wire.NewMsgInvSizeHint(uint(len(blocks)))
	for _, block := range blocks {
		invMsg.AddInvVect(wire.NewInvVect(wire.InvTypeBlock, block.Hash()))
	}
	p.QueueMessage(invMsg)
}

// onGetHeaders answers a getheaders request with up to 2000 headers following
// the locator.
func (s *Server) onGetHeaders(p *Peer, msg *wire.MsgGetHeaders) {
	blocks := s.blocksAfterLocator(msg.BlockLocatorHashes, &msg.HashStop,
		wire.MaxBlockHeadersPerMsg)

	headersMsg := wire.NewMsgHeaders()
	for _, block := range blocks {
		header := block.MsgBlock().Header
		headersMsg.AddBlockHeader(&header)
	}
	p.QueueMessage(headersMsg)
}

// invQueueWorker drains the inventory queue at the configured interval,
// issuing getdata requests back to the announcing peers.  It pauses whenever
// the object queue is at capacity, providing backpressure toward the
// announcers.
func (s *Server) invQueueWorker() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Intervals.InvQueue.Duration())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.drainInvQueue()
		case <-s.quit:
			return
		}
	}
}

// drainInvQueue moves queued inventory into getdata requests while the object
// queue has room.
func (s *Server) drainInvQueue() {
	requests := make(map[*Peer]*wire.MsgGetData)

	for len(s.objQueue) < s.cfg.Max.Queue {
		select {
		case req := <-s.invQueue:
			msg := requests[req.peer]
			if msg == nil {
				msg = wire.NewMsgGetDataSizeHint(uint(s.cfg.Max.Inv))
				requests[req.peer] = msg
			}
			iv := req.inv
			msg.AddInvVect(&iv)
		default:
			// Queue drained.
			goto send
		}
	}
	s.logger.Tracef("Object queue full, pausing inventory drain")

send:
	for peer, msg := range requests {
		if len(msg.InvList) == 0 {
			continue
		}
		s.logger.Debugf("Requesting %d %s from %s",
			len(msg.InvList),
			pickNoun(uint64(len(msg.InvList)), "object", "objects"),
			peer)
		peer.QueueMessage(msg)
	}
}

// objQueueWorker applies decoded objects to the store one at a time and
// publishes notifications for accepted objects.  It idles until work arrives.
func (s *Server) objQueueWorker() {
	defer s.wg.Done()

	downloadTicker := time.NewTicker(s.cfg.Intervals.Queue.Duration())
	defer downloadTicker.Stop()

	for {
		select {
		case obj := <-s.objQueue:
			s.applyObject(obj)

		case <-downloadTicker.C:
			// Both queues idle: opportunistically ask a random
			// peer for more of the chain.
			if len(s.objQueue) == 0 && len(s.invQueue) == 0 {
				s.requestBlocks()
			}

		case <-s.quit:
			return
		}
	}
}

// applyObject stores a single block or transaction and publishes the
// corresponding notification.
func (s *Server) applyObject(obj *object) {
	switch {
	case obj.block != nil:
		status, err := s.store.StoreBlock(obj.block)
		if err != nil {
			s.logger.Errorf("Can't store block %s: %v",
				obj.block.Hash(), err)
			return
		}
		switch status {
		case chaindb.BlockNew:
			s.logger.Debugf("Stored block %s at height %d",
				obj.block.Hash(), obj.block.Height())
			s.notifier.publish(Notification{
				Type:  NTBlockAccepted,
				Block: obj.block,
				Depth: obj.block.Height(),
			})
		case chaindb.BlockOrphan:
			s.logger.Debugf("Orphan block %s", obj.block.Hash())
		case chaindb.BlockInvalid:
			s.logger.Warnf("Invalid block %s from %s",
				obj.block.Hash(), obj.peer)
			if obj.peer != nil {
				obj.peer.Disconnect()
			}
		}

	case obj.tx != nil:
		status, err := s.store.StoreTx(obj.tx)
		if err != nil {
			s.logger.Errorf("Can't store tx %s: %v", obj.tx.Hash(), err)
			return
		}
		if status == chaindb.TxNew {
			s.notifier.publish(Notification{
				Type: NTTxAccepted,
				Tx:   obj.tx,
			})
		}
	}
}

// blockLocator builds a coarse locator for the local chain: the head hash
// followed by the genesis hash.
func (s *Server) blockLocator() []*chainhash.Hash {
	locator := make([]*chainhash.Hash, 0, 2)
	if head, err := s.store.Head(); err == nil {
		locator = append(locator, head.Hash())
	}
	locator = append(locator, s.params.GenesisHash)
	return locator
}

// requestBlocks asks a random connected peer for the continuation of the
// chain, honoring headers-only mode.
func (s *Server) requestBlocks() {
	peer := s.randomPeer()
	if peer == nil {
		return
	}

	locator := s.blockLocator()
	var err error
	if s.cfg.HeadersOnly {
		err = peer.PushGetHeadersMsg(locator, &chainhash.ZeroHash)
	} else {
		err = peer.PushGetBlocksMsg(locator, &chainhash.ZeroHash)
	}
	if err != nil {
		s.logger.Debugf("Can't request blocks from %s: %v", peer, err)
	}
}

// connectWorker tops up the cohort to the connection target.  Candidates come
// from the address pool weighted toward recently seen addresses, falling back
// to DNS seeds when the pool is empty.
func (s *Server) connectWorker() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Intervals.Connect.Duration())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.maintainConnections()
		case <-s.quit:
			return
		}
	}
}

// maintainConnections performs a single connect worker pass.
func (s *Server) maintainConnections() {
	connected := s.ConnectedCount()
	if connected >= s.cfg.Max.Connections {
		return
	}

	want := s.cfg.Max.Connections - connected
	if want > maxConnectBatch {
		want = maxConnectBatch
	}

	candidates := s.addrManager.PickAddresses(want)
	if len(candidates) == 0 {
		// Re-dial explicitly configured peers that dropped out.
		connected := make(map[string]bool)
		for _, p := range s.ConnectedPeers() {
			connected[p.Addr()] = true
		}
		for _, addr := range s.cfg.Connect {
			if !connected[addr] {
				go s.connectPeer(addr)
			}
		}

		if s.cfg.DNS {
			s.logger.Debugf("Address pool empty, querying DNS seeds")
			SeedFromDNS(s.params, s.cfg.Lookup, func(addrs []*wire.NetAddress) {
				s.addrManager.AddAddresses(addrs)
			})
		}
		return
	}

	for _, na := range candidates {
		addr := net.JoinHostPort(na.IP.String(), strconv.Itoa(int(na.Port)))
		go s.connectPeer(addr)
	}
}

// addrsWorker maintains the address pool: when the pool is full it purges
// expired entries, otherwise it asks a random connected peer for more
// addresses.
func (s *Server) addrsWorker() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Intervals.Addrs.Duration())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !s.addrManager.NeedMoreAddresses() {
				if removed := s.addrManager.PurgeExpired(); removed > 0 {
					s.logger.Debugf("Purged %d expired %s",
						removed, pickNoun(uint64(removed),
							"address", "addresses"))
				}
				continue
			}
			if peer := s.randomPeer(); peer != nil {
				peer.QueueMessage(wire.NewMsgGetAddr())
			}

		case <-s.quit:
			return
		}
	}
}

// SubmitTx stores a locally submitted transaction and relays an inv for it
// to a majority of the connected peers.
func (s *Server) SubmitTx(tx *chainutil.Tx) error {
	status, err := s.store.StoreTx(tx)
	if err != nil {
		return err
	}
	if status == chaindb.TxExisting {
		return fmt.Errorf("transaction %s already known", tx.Hash())
	}

	s.notifier.publish(Notification{Type: NTTxAccepted, Tx: tx})

	iv := wire.NewInvVect(wire.InvTypeTx, tx.Hash())
	s.invCache.Add(iv)

	peers := s.ConnectedPeers()
	if len(peers) == 0 {
		return nil
	}

	// Relay to a random majority of the cohort.
	rand.Shuffle(len(peers), func(i, j int) {
		peers[i], peers[j] = peers[j], peers[i]
	})
	majority := len(peers)/2 + 1
	for _, peer := range peers[:majority] {
		peer.QueueInventory(iv)
	}
	s.logger.Debugf("Relayed tx %s to %d peers", tx.Hash(), majority)
	return nil
}
