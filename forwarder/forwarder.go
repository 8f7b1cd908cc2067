// Package forwarder implements an overlay packet forwarder: it owns
// the forwarding table and moves packets between the substrate, a
// local application queue, and the Router, using four bounded FIFO
// queues for inter-goroutine isolation.
package forwarder

import (
	"time"

	"github.com/cse473/overlay/internal/queue"
	"github.com/cse473/overlay/internal/substrate"
	"github.com/cse473/overlay/internal/wire"

	"go.uber.org/zap"
)

// routerItem pairs a packet with the link it is destined for (outgoing)
// or arrived on (incoming).
type routerItem struct {
	pkt  *wire.OverlayPacket
	link substrate.Link
}

// Forwarder is the packet forwarder's worker. It is driven by a
// single goroutine (run); the application and the Router interact
// with it only through the bounded queues and the forwarding table's
// own mutex.
type Forwarder struct {
	logger *zap.Logger
	myIP   uint32
	sub    substrate.Substrate
	debug  bool

	table *fwdTable

	fromSrc *queue.Bounded[*wire.OverlayPacket]
	toSnk   *queue.Bounded[*wire.OverlayPacket]
	fromRtr *queue.Bounded[routerItem]
	toRtr   *queue.Bounded[routerItem]

	stop    chan struct{}
	stopped chan struct{}
}

// New constructs a Forwarder from cfg. Call Start to begin running
// it.
func New(cfg Config) (*Forwarder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	f := &Forwarder{
		logger:  cfg.Logger,
		myIP:    cfg.MyIP,
		sub:     cfg.Substrate,
		debug:   cfg.Debug,
		table:   newFwdTable(cfg.Logger, cfg.Debug),
		fromSrc: queue.NewBounded[*wire.OverlayPacket](1000),
		toSnk:   queue.NewBounded[*wire.OverlayPacket](1000),
		fromRtr: queue.NewBounded[routerItem](1000),
		toRtr:   queue.NewBounded[routerItem](1000),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	return f, nil
}

// Start launches the forwarder's worker goroutine.
func (f *Forwarder) Start() {
	go f.run()
}

// Stop requests shutdown and waits for the worker to exit.
func (f *Forwarder) Stop() {
	close(f.stop)
	<-f.stopped
}

// AddRoute inserts or updates a forwarding table entry. Exposed so
// the Router can maintain the forwarding table it derives from its
// routing table.
func (f *Forwarder) AddRoute(prefix wire.Prefix, link substrate.Link) {
	f.table.addRoute(prefix, link)
}

// GetLink returns the link currently bound to prefix, if any.
func (f *Forwarder) GetLink(prefix wire.Prefix) (substrate.Link, bool) {
	return f.table.getLink(prefix)
}

// PrintTable renders the forwarding table for debugging.
func (f *Forwarder) PrintTable() {
	f.table.printTable()
}

// Send queues an application payload for destAdr, wrapping it in a
// protocol-1 packet with TTL 100.
func (f *Forwarder) Send(payload []byte, destAdr uint32) {
	f.fromSrc.Put(&wire.OverlayPacket{
		SrcAdr:   f.myIP,
		DestAdr:  destAdr,
		Protocol: 1,
		TTL:      100,
		Payload:  payload,
	})
}

// Ready reports whether Send would not block.
func (f *Forwarder) Ready() bool {
	return f.fromSrc.RemainingCapacity() > 0
}

// Receive blocks until the next application-layer packet destined for
// this node arrives, returning its payload and source address.
func (f *Forwarder) Receive() ([]byte, uint32) {
	p := f.toSnk.Take()
	return p.Payload, p.SrcAdr
}

// Incoming reports whether Receive would not block.
func (f *Forwarder) Incoming() bool {
	return f.toSnk.Len() > 0
}

// SendPkt queues a control packet for the Router to send on link.
func (f *Forwarder) SendPkt(pkt *wire.OverlayPacket, link substrate.Link) {
	f.fromRtr.Put(routerItem{pkt: pkt, link: link})
	if f.debug {
		f.logger.Debug("router packet queued",
			zap.Uint32("src", pkt.SrcAdr), zap.Uint32("dst", pkt.DestAdr), zap.Int("link", int(link)))
	}
}

// Ready4Pkt reports whether SendPkt would not block.
func (f *Forwarder) Ready4Pkt() bool {
	return f.fromRtr.RemainingCapacity() > 0
}

// ReceivePkt blocks until a control packet destined for the Router
// arrives, returning it along with the link it arrived on.
func (f *Forwarder) ReceivePkt() (*wire.OverlayPacket, substrate.Link) {
	item := f.toRtr.Take()
	return item.pkt, item.link
}

// IncomingPkt reports whether ReceivePkt would not block.
func (f *Forwarder) IncomingPkt() bool {
	return f.toRtr.Len() > 0
}

// run is the forwarder's main loop: one action per tick, checked in
// priority order, sleeping 1ms when idle.
func (f *Forwarder) run() {
	defer close(f.stopped)
	for {
		select {
		case <-f.stop:
			return
		default:
		}

		switch {
		case f.sub.Incoming():
			f.handleIncoming()
		case f.tryForwardFromRouter():
			// handled inside
		case f.tryForwardFromSrc():
			// handled inside
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func (f *Forwarder) handleIncoming() {
	raw, link, ok := f.sub.Receive()
	if !ok {
		return
	}
	p, err := wire.DecodeOverlayPacket(raw)
	if err != nil {
		f.logger.Warn("dropping malformed overlay packet", zap.Error(err))
		return
	}
	p.TTL--

	if p.DestAdr == f.myIP {
		switch p.Protocol {
		case 1:
			f.toSnk.TryPut(p)
		case 2:
			f.toRtr.TryPut(routerItem{pkt: p, link: link})
		}
		return
	}
	if p.TTL <= 0 {
		return
	}
	link, ok = f.table.lookup(p.DestAdr)
	if !ok || !f.sub.Ready(link) {
		return
	}
	f.sub.Send(link, p.Encode())
}

func (f *Forwarder) tryForwardFromRouter() bool {
	item, ok := f.fromRtr.Peek()
	if !ok {
		return false
	}
	if !f.sub.Ready(item.link) {
		return false
	}
	f.fromRtr.Drop()
	f.sub.Send(item.link, item.pkt.Encode())
	return true
}

func (f *Forwarder) tryForwardFromSrc() bool {
	p, ok := f.fromSrc.Peek()
	if !ok {
		return false
	}
	link, hasRoute := f.table.lookup(p.DestAdr)
	if !hasRoute || !f.sub.Ready(link) {
		return false
	}
	f.fromSrc.Drop()
	f.sub.Send(link, p.Encode())
	return true
}
