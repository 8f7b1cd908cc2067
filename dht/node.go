// Package dht implements a Chord-style distributed hash table: one
// process per ring member, owning a contiguous hash range, serving
// client get/put requests, maintaining a bounded routing table,
// optionally caching results, and supporting ring join and graceful
// leave with key handoff.
package dht

import (
	"fmt"
	"net"
	"sync"

	"github.com/cse473/overlay/internal/wire"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Node is a single DHT ring member, driven by one processing
// goroutine (run). The map, cache, and rteTbl fields are touched only
// from that goroutine; the socket reader goroutine and any signal
// handler communicate with it exclusively through pktCh and leaveCh.
type Node struct {
	logger *zap.Logger
	conn   *net.UDPConn
	myAddr wire.Addr

	numRoutes int
	cacheOn   bool
	debug     bool

	data  map[string]string
	cache *resultCache

	rteTbl []wire.NodeInfo

	myInfo     wire.NodeInfo
	predAddr   wire.Addr
	predInfo   wire.NodeInfo
	succInfo   wire.NodeInfo
	hashRange  wire.HashRange

	sendTag uint32

	pktCh   chan inbound
	leaveCh chan struct{}
	wg      errgroup.Group

	// leaveSeen is set once this node's own leave packet has circled
	// back around the ring, unblocking waitForLeaveToCircle.
	leaveSeen chan struct{}

	mu sync.Mutex // guards sendTag, touched by both Join (pre-run) and run()
}

// New binds a UDP socket on cfg.MyIP (OS-assigned port) and
// constructs a solo Node owning the full hash range [0, MaxHashValue].
// Call Join before Start to join an existing ring instead.
func New(cfg Config) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP(cfg.MyIP), Port: 0})
	if err != nil {
		return nil, fmt.Errorf("dht: opening socket: %w", err)
	}
	local := conn.LocalAddr().(*net.UDPAddr)
	myAddr := wire.Addr{IP: cfg.MyIP, Port: local.Port}

	cache, err := newResultCache(cfg.CacheOn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	n := &Node{
		logger:    cfg.Logger,
		conn:      conn,
		myAddr:    myAddr,
		numRoutes: cfg.NumRoutes,
		cacheOn:   cfg.CacheOn,
		debug:     cfg.Debug,
		data:      make(map[string]string),
		cache:     cache,
		hashRange: wire.HashRange{Lo: 0, Hi: wire.MaxHashValue},
		sendTag:   1,
		pktCh:     make(chan inbound, 1000),
		leaveCh:   make(chan struct{}),
		leaveSeen: make(chan struct{}),
	}
	n.myInfo = wire.NodeInfo{Addr: myAddr, FirstHash: 0}
	n.succInfo = n.myInfo
	n.predInfo = n.myInfo
	return n, nil
}

// LocalAddr returns the address this node's socket is bound to, for
// writing a cfgFile.
func (n *Node) LocalAddr() wire.Addr {
	return n.myAddr
}

// Start launches the socket reader and the single processing
// goroutine, tracked together in an errgroup so Stop/RequestLeave can
// wait for both to actually exit rather than just the first.
func (n *Node) Start() {
	n.wg.Go(func() error {
		n.readLoop()
		return nil
	})
	n.wg.Go(func() error {
		n.run()
		return nil
	})
}

// Stop closes the socket (unblocking the reader) and waits for both
// goroutines to exit, without running the leave protocol. Use
// RequestLeave for a graceful departure.
func (n *Node) Stop() {
	n.conn.Close()
	n.wg.Wait()
}

// RequestLeave asks the processing goroutine to run the graceful
// leave protocol and then stop. The request is posted onto the
// goroutine's own input rather than run from a separate
// signal-handling goroutine, so there is no race with handlePacket.
func (n *Node) RequestLeave() {
	close(n.leaveCh)
	n.wg.Wait()
}

func (n *Node) nextTag() uint32 {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sendTag++
	return n.sendTag
}

// run is the node's single processing goroutine: it dispatches
// incoming packets until asked to leave.
func (n *Node) run() {
	for {
		select {
		case <-n.leaveCh:
			n.leave()
			n.conn.Close()
			n.drainAfterClose()
			return
		case in, ok := <-n.pktCh:
			if !ok {
				return
			}
			n.handlePacket(in.pkt, in.sender)
		}
	}
}

// drainAfterClose empties pktCh once the socket has been closed, so
// the reader goroutine's deferred close(n.pktCh) cannot block it on
// an unread send.
func (n *Node) drainAfterClose() {
	for range n.pktCh {
	}
}

// handlePacket is the single dispatch point for every packet this
// node receives: it warms the routing table with the sender's address
// (skipped for "leave", which carries its own routing-table
// bookkeeping) before dispatching by type.
func (n *Node) handlePacket(p *wire.DHTPacket, sender wire.Addr) {
	p.TTL--
	if p.TTL < 0 {
		return
	}
	if !p.Sender.IsZero() && p.Type != wire.DHTLeave {
		n.addRoute(p.Sender)
	}
	switch p.Type {
	case wire.DHTGet:
		n.handleGet(p, sender)
	case wire.DHTPut:
		n.handlePut(p, sender)
	case wire.DHTTransfer:
		n.handleTransfer(p)
	case wire.DHTSuccess, wire.DHTNoMatch, wire.DHTFailure:
		n.handleReply(p)
	case wire.DHTJoin:
		n.handleJoin(p, sender)
	case wire.DHTUpdate:
		n.handleUpdate(p)
	case wire.DHTLeave:
		n.handleLeave(p)
	default:
		n.logger.Warn("dropping dht packet with unknown type", zap.String("type", string(p.Type)))
	}
}

func (n *Node) printTable() {
	n.printRouteTable()
}
