// Package router implements a path-vector overlay router: it
// advertises the prefixes it owns, maintains a routing table derived
// from path-vector advertisements received from its neighbors, tracks
// neighbor liveness and cost with periodic hello probes, and keeps the
// Forwarder's forwarding table in sync with its own routing decisions.
package router

import (
	"time"

	"github.com/cse473/overlay/forwarder"
	"github.com/cse473/overlay/internal/substrate"
	"github.com/cse473/overlay/internal/wire"

	"go.uber.org/zap"
)

// Router is a single path-vector routing process, driven by its own
// worker goroutine. All mutable state (rteTbl, links) is owned by that
// goroutine; nothing outside run() touches it, so no extra locking is
// needed.
type Router struct {
	logger *zap.Logger
	myIP   uint32
	fwdr   *forwarder.Forwarder

	prefixes  []wire.Prefix
	neighbors []Neighbor

	helloInterval  time.Duration
	advertInterval time.Duration
	debug          bool
	enableFAdvert  bool

	rteTbl []*route
	links  []*linkInfo

	start time.Time

	stop    chan struct{}
	stopped chan struct{}
}

// New constructs a Router from cfg. Call Start to begin running it.
func New(cfg Config) (*Router, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	links := make([]*linkInfo, len(cfg.Neighbors))
	for i, n := range cfg.Neighbors {
		links[i] = newLinkInfo(n.IP, n.Delay)
	}
	r := &Router{
		logger:         cfg.Logger,
		myIP:           cfg.MyIP,
		fwdr:           cfg.Fwdr,
		prefixes:       cfg.Prefixes,
		neighbors:      cfg.Neighbors,
		helloInterval:  cfg.HelloInterval,
		advertInterval: cfg.AdvertInterval,
		debug:          cfg.Debug,
		enableFAdvert:  cfg.EnableFailureAdvert,
		links:          links,
		start:          time.Now(),
		stop:           make(chan struct{}),
		stopped:        make(chan struct{}),
	}
	return r, nil
}

// Start launches the router's worker goroutine.
func (r *Router) Start() {
	go r.run()
}

// Stop requests shutdown and waits for the worker to exit.
func (r *Router) Stop() {
	close(r.stop)
	<-r.stopped
}

// PrintTable renders the routing table for debugging.
func (r *Router) PrintTable() {
	r.printTable()
}

func (r *Router) now() float64 {
	return time.Since(r.start).Seconds()
}

// run is the router's main loop: send hellos on their configured
// cadence, send path vectors on theirs, otherwise drain one control
// packet from the Forwarder if any is waiting, else sleep 1ms.
func (r *Router) run() {
	defer close(r.stopped)

	nextHello := time.Now().Add(r.helloInterval)
	nextAdvert := time.Now().Add(r.advertInterval)

	for {
		select {
		case <-r.stop:
			return
		default:
		}

		now := time.Now()
		switch {
		case !now.Before(nextHello):
			r.sendHellos()
			nextHello = now.Add(r.helloInterval)
		case !now.Before(nextAdvert):
			r.sendPathVecs()
			nextAdvert = now.Add(r.advertInterval)
		case r.fwdr.IncomingPkt():
			pkt, link := r.fwdr.ReceivePkt()
			r.handleIncoming(pkt, link)
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

// sendHellos probes every neighbor link. A link that has gone three
// hellos without a reply is marked down: every route using it is
// invalidated and, if link-failure advertising is on, a failure
// advertisement is sent.
func (r *Router) sendHellos() {
	for i, nb := range r.neighbors {
		link := substrate.Link(i)
		li := r.links[i]
		if !li.gotReply && li.helloState > 0 {
			li.helloState--
			if li.helloState == 0 {
				changed := false
				for _, rte := range r.rteTbl {
					if rte.outLink == link {
						rte.valid = false
						changed = true
					}
				}
				if r.debug && changed {
					r.printTable()
				}
				if r.enableFAdvert {
					r.sendFailureAdvert(link)
				}
			}
		}
		li.gotReply = false
		payload := []byte(wire.EncodeHello(wire.RouterHello, r.now()))
		r.sendPkt(payload, nb.IP, link)
	}
}

// sendPathVecs advertises each owned prefix to every neighbor whose
// link is up, skipping a neighbor if the route this router knows for
// that prefix is currently invalid. The path always starts out as
// just this router's own IP; it grows by one hop every time a
// recipient re-advertises it onward (see handleAdvert).
func (r *Router) sendPathVecs() {
	for _, pfx := range r.prefixes {
		rte := r.lookupRoute(pfx)
		invalid := rte != nil && !rte.valid
		if invalid {
			continue
		}
		v := wire.PathVec{Prefix: pfx, Timestamp: r.now(), Cost: 0, Path: []uint32{r.myIP}}
		payload := []byte(wire.EncodeAdvert(v))
		for i, nb := range r.neighbors {
			if r.links[i].down() {
				continue
			}
			r.sendPkt(payload, nb.IP, substrate.Link(i))
		}
	}
}

func (r *Router) sendFailureAdvert(lnk substrate.Link) {
	i := int(lnk)
	if i < 0 || i >= len(r.neighbors) {
		return
	}
	failIP := r.neighbors[i].IP
	f := wire.LinkFail{From: r.myIP, To: failIP, Timestamp: r.now(), Path: []uint32{r.myIP}}
	payload := []byte(wire.EncodeFAdvert(f))
	for j := range r.neighbors {
		if r.links[j].down() {
			continue
		}
		r.sendPkt(payload, r.neighbors[j].IP, substrate.Link(j))
	}
}

func (r *Router) sendPkt(payload []byte, destIP uint32, link substrate.Link) {
	pkt := &wire.OverlayPacket{SrcAdr: r.myIP, DestAdr: destIP, Protocol: 2, TTL: 100, Payload: payload}
	r.fwdr.SendPkt(pkt, link)
}

func (r *Router) handleIncoming(pkt *wire.OverlayPacket, link substrate.Link) {
	typ, lines, err := wire.DecodeRouterType(string(pkt.Payload))
	if err != nil {
		r.logger.Warn("dropping malformed router packet", zap.Error(err))
		return
	}
	switch typ {
	case wire.RouterHello:
		r.handleHello(lines, pkt.SrcAdr, link)
	case wire.RouterHello2U:
		r.handleHello2u(lines, link)
	case wire.RouterAdvert:
		r.handleAdvert(lines, link)
	case wire.RouterFAdvert:
		r.handleFailureAdvert(lines, link)
	default:
		r.logger.Warn("unknown router packet type", zap.String("type", string(typ)))
	}
}

func (r *Router) handleHello(lines []string, srcIP uint32, link substrate.Link) {
	ts, err := wire.DecodeTimestamp(lines)
	if err != nil {
		r.logger.Warn("dropping malformed hello", zap.Error(err))
		return
	}
	payload := []byte(wire.EncodeHello(wire.RouterHello2U, ts))
	r.sendPkt(payload, srcIP, link)
}

func (r *Router) handleHello2u(lines []string, link substrate.Link) {
	sentAt, err := wire.DecodeTimestamp(lines)
	if err != nil {
		r.logger.Warn("dropping malformed hello2u", zap.Error(err))
		return
	}
	i := int(link)
	if i < 0 || i >= len(r.links) {
		return
	}
	c := (r.now() - sentAt) / 2
	r.links[i].recordSample(c)
}

// handleAdvert stores the received path verbatim (it already carries
// every hop up to the originator, since each router prepends its own
// IP before re-sending); only cost accrues the arriving link's cost.
// After adding or updating the route, the router unconditionally
// re-advertises its current knowledge of the prefix to every other
// neighbor, regardless of whether updateRoute actually changed
// anything -- the re-advertised timestamp/cost come from the
// just-received vector, while the path comes from whatever is now
// stored.
func (r *Router) handleAdvert(lines []string, link substrate.Link) {
	v, err := wire.DecodePathVec(lines)
	if err != nil {
		r.logger.Warn("dropping malformed advert", zap.Error(err))
		return
	}
	for _, hop := range v.Path {
		if hop == r.myIP {
			return
		}
	}

	i := int(link)
	if i < 0 || i >= len(r.links) {
		r.logger.Warn("advert on unknown link", zap.Int("link", i))
		return
	}
	nu := &route{
		pfx:       v.Prefix,
		timestamp: v.Timestamp,
		cost:      r.links[i].cost + v.Cost,
		path:      v.Path,
		outLink:   link,
		valid:     true,
	}

	rte := r.lookupRoute(v.Prefix)
	prevLink, hasPrevLink := r.fwdr.GetLink(v.Prefix)
	if rte == nil {
		r.addRoute(nu)
		if r.debug {
			r.printTable()
		}
		r.fwdr.AddRoute(nu.pfx, nu.outLink)
	} else {
		prevPath := append([]uint32(nil), rte.path...)
		if r.updateRoute(rte, nu) {
			if r.debug && !pathsEqual(prevPath, rte.path) {
				r.printTable()
			}
			if !hasPrevLink || prevLink != nu.outLink {
				r.fwdr.AddRoute(rte.pfx, nu.outLink)
			}
		}
	}

	stored := r.lookupRoute(v.Prefix)
	outPath := append([]uint32{r.myIP}, stored.path...)
	readvert := wire.PathVec{Prefix: v.Prefix, Timestamp: nu.timestamp, Cost: nu.cost, Path: outPath}
	payload := []byte(wire.EncodeAdvert(readvert))
	for j := range r.neighbors {
		if substrate.Link(j) == link {
			continue
		}
		r.sendPkt(payload, r.neighbors[j].IP, substrate.Link(j))
	}
}

// handleFailureAdvert treats a route as affected if its stored path
// contains From and To at adjacent positions. If any route was
// invalidated, the advertisement is re-sent -- with this router's own
// IP prepended -- to every neighbor, including the one it arrived on.
func (r *Router) handleFailureAdvert(lines []string, link substrate.Link) {
	f, err := wire.DecodeLinkFail(lines)
	if err != nil {
		r.logger.Warn("dropping malformed fadvert", zap.Error(err))
		return
	}
	for _, hop := range f.Path {
		if hop == r.myIP {
			return
		}
	}

	changed := false
	for _, rte := range r.rteTbl {
		idx1 := indexOf(rte.path, f.From)
		idx2 := indexOf(rte.path, f.To)
		if idx1 < 0 || idx2 < 0 {
			continue
		}
		if abs(idx1-idx2) != 1 {
			continue
		}
		rte.valid = false
		rte.timestamp = f.Timestamp
		changed = true
	}
	if !changed {
		return
	}
	if r.debug {
		r.printTable()
	}

	outPath := append([]uint32{r.myIP}, f.Path...)
	nf := wire.LinkFail{From: f.From, To: f.To, Timestamp: f.Timestamp, Path: outPath}
	payload := []byte(wire.EncodeFAdvert(nf))
	for j := range r.neighbors {
		r.sendPkt(payload, r.neighbors[j].IP, substrate.Link(j))
	}
}

func indexOf(path []uint32, ip uint32) int {
	for i, v := range path {
		if v == ip {
			return i
		}
	}
	return -1
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
