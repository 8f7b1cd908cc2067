package router

import (
	"testing"
	"time"

	"github.com/cse473/overlay/forwarder"
	"github.com/cse473/overlay/internal/substrate"
	"github.com/cse473/overlay/internal/wire"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// multiLink fans a single Forwarder's substrate out across several
// independent point-to-point Lossy connections, one per link index, so
// a node with more than one neighbor can be exercised without a real
// UDP socket.
type multiLink struct {
	subs []*substrate.Lossy
}

func (m *multiLink) Send(link substrate.Link, payload []byte) error {
	return m.subs[link].Send(0, payload)
}

func (m *multiLink) Ready(link substrate.Link) bool {
	return m.subs[link].Ready(0)
}

func (m *multiLink) Incoming() bool {
	for _, s := range m.subs {
		if s.Incoming() {
			return true
		}
	}
	return false
}

func (m *multiLink) Receive() ([]byte, substrate.Link, bool) {
	for i, s := range m.subs {
		if s.Incoming() {
			payload, _, ok := s.Receive()
			return payload, substrate.Link(i), ok
		}
	}
	return nil, 0, false
}

// TestLinearTopologyConverges sets up three routers in a line, A-B-C,
// A and C each advertising its own prefix, and checks that after
// convergence A has learned a route to C's prefix via B.
func TestLinearTopologyConverges(t *testing.T) {
	logger := zaptest.NewLogger(t)

	aIP, err := wire.ParseIP("10.0.0.1")
	require.NoError(t, err)
	bIP, err := wire.ParseIP("10.0.1.1")
	require.NoError(t, err)
	cIP, err := wire.ParseIP("10.0.2.1")
	require.NoError(t, err)

	pfxA, err := wire.ParsePrefix("10.0.0.0/24")
	require.NoError(t, err)
	pfxC, err := wire.ParsePrefix("10.0.2.0/24")
	require.NoError(t, err)

	aToB := substrate.NewLossy(0, 0, 1)
	bToA := substrate.NewLossy(0, 0, 2)
	substrate.Pipe(aToB, bToA)

	bToC := substrate.NewLossy(0, 0, 3)
	cToB := substrate.NewLossy(0, 0, 4)
	substrate.Pipe(bToC, cToB)

	fa, err := forwarder.New(forwarder.Config{Logger: logger, MyIP: aIP, Substrate: &multiLink{subs: []*substrate.Lossy{aToB}}, NumLinks: 1})
	require.NoError(t, err)
	fb, err := forwarder.New(forwarder.Config{Logger: logger, MyIP: bIP, Substrate: &multiLink{subs: []*substrate.Lossy{bToA, bToC}}, NumLinks: 2})
	require.NoError(t, err)
	fc, err := forwarder.New(forwarder.Config{Logger: logger, MyIP: cIP, Substrate: &multiLink{subs: []*substrate.Lossy{cToB}}, NumLinks: 1})
	require.NoError(t, err)

	fa.Start()
	fb.Start()
	fc.Start()
	defer fa.Stop()
	defer fb.Stop()
	defer fc.Stop()

	interval := 10 * time.Millisecond

	ra, err := New(Config{
		Logger: logger, MyIP: aIP, Fwdr: fa,
		Prefixes:       []wire.Prefix{pfxA},
		Neighbors:      []Neighbor{{IP: bIP, Delay: 0.01}},
		HelloInterval:  interval,
		AdvertInterval: interval,
	})
	require.NoError(t, err)

	rb, err := New(Config{
		Logger: logger, MyIP: bIP, Fwdr: fb,
		Neighbors:      []Neighbor{{IP: aIP, Delay: 0.01}, {IP: cIP, Delay: 0.01}},
		HelloInterval:  interval,
		AdvertInterval: interval,
	})
	require.NoError(t, err)

	rc, err := New(Config{
		Logger: logger, MyIP: cIP, Fwdr: fc,
		Prefixes:       []wire.Prefix{pfxC},
		Neighbors:      []Neighbor{{IP: bIP, Delay: 0.01}},
		HelloInterval:  interval,
		AdvertInterval: interval,
	})
	require.NoError(t, err)

	ra.Start()
	rb.Start()
	rc.Start()
	defer ra.Stop()
	defer rb.Stop()
	defer rc.Stop()

	deadline := time.After(2 * time.Second)
	for {
		rte := ra.lookupRoute(pfxC)
		if rte != nil && rte.valid {
			require.EqualValues(t, 0, rte.outLink)
			require.Equal(t, []uint32{bIP, cIP}, rte.path)
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for route to converge")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// TestLinkFailureInvalidatesAndPropagates sets up the same A-B-C
// linear topology, waits for convergence, then severs the B-C link in
// both directions. Once B's hello counter for that link reaches zero
// it should invalidate its own route to C's prefix and advertise the
// failure to A, which should invalidate its route to C's prefix too.
func TestLinkFailureInvalidatesAndPropagates(t *testing.T) {
	logger := zaptest.NewLogger(t)

	aIP, err := wire.ParseIP("10.0.0.1")
	require.NoError(t, err)
	bIP, err := wire.ParseIP("10.0.1.1")
	require.NoError(t, err)
	cIP, err := wire.ParseIP("10.0.2.1")
	require.NoError(t, err)

	pfxA, err := wire.ParsePrefix("10.0.0.0/24")
	require.NoError(t, err)
	pfxC, err := wire.ParsePrefix("10.0.2.0/24")
	require.NoError(t, err)

	aToB := substrate.NewLossy(0, 0, 1)
	bToA := substrate.NewLossy(0, 0, 2)
	substrate.Pipe(aToB, bToA)

	bToC := substrate.NewLossy(0, 0, 3)
	cToB := substrate.NewLossy(0, 0, 4)
	substrate.Pipe(bToC, cToB)

	fa, err := forwarder.New(forwarder.Config{Logger: logger, MyIP: aIP, Substrate: &multiLink{subs: []*substrate.Lossy{aToB}}, NumLinks: 1})
	require.NoError(t, err)
	fb, err := forwarder.New(forwarder.Config{Logger: logger, MyIP: bIP, Substrate: &multiLink{subs: []*substrate.Lossy{bToA, bToC}}, NumLinks: 2})
	require.NoError(t, err)
	fc, err := forwarder.New(forwarder.Config{Logger: logger, MyIP: cIP, Substrate: &multiLink{subs: []*substrate.Lossy{cToB}}, NumLinks: 1})
	require.NoError(t, err)

	fa.Start()
	fb.Start()
	fc.Start()
	defer fa.Stop()
	defer fb.Stop()
	defer fc.Stop()

	interval := 10 * time.Millisecond

	ra, err := New(Config{
		Logger: logger, MyIP: aIP, Fwdr: fa,
		Prefixes:            []wire.Prefix{pfxA},
		Neighbors:           []Neighbor{{IP: bIP, Delay: 0.01}},
		HelloInterval:       interval,
		AdvertInterval:      interval,
		EnableFailureAdvert: true,
	})
	require.NoError(t, err)

	rb, err := New(Config{
		Logger: logger, MyIP: bIP, Fwdr: fb,
		Neighbors:           []Neighbor{{IP: aIP, Delay: 0.01}, {IP: cIP, Delay: 0.01}},
		HelloInterval:       interval,
		AdvertInterval:      interval,
		EnableFailureAdvert: true,
	})
	require.NoError(t, err)

	rc, err := New(Config{
		Logger: logger, MyIP: cIP, Fwdr: fc,
		Prefixes:            []wire.Prefix{pfxC},
		Neighbors:           []Neighbor{{IP: bIP, Delay: 0.01}},
		HelloInterval:       interval,
		AdvertInterval:      interval,
		EnableFailureAdvert: true,
	})
	require.NoError(t, err)

	ra.Start()
	rb.Start()
	rc.Start()
	defer ra.Stop()
	defer rb.Stop()
	defer rc.Stop()

	waitFor := func(t *testing.T, cond func() bool) {
		t.Helper()
		deadline := time.After(2 * time.Second)
		for {
			if cond() {
				return
			}
			select {
			case <-deadline:
				t.Fatal("timed out waiting for condition")
			case <-time.After(5 * time.Millisecond):
			}
		}
	}

	waitFor(t, func() bool {
		rte := ra.lookupRoute(pfxC)
		return rte != nil && rte.valid
	})

	bToC.Sever()
	cToB.Sever()

	waitFor(t, func() bool {
		rte := rb.lookupRoute(pfxC)
		return rte != nil && !rte.valid
	})
	waitFor(t, func() bool {
		rte := ra.lookupRoute(pfxC)
		return rte != nil && !rte.valid
	})
}

func TestUpdateRoutePrecedence(t *testing.T) {
	r := &Router{
		links: []*linkInfo{newLinkInfo(1, 1)},
	}

	rte := &route{path: []uint32{9}, valid: false, cost: 5, timestamp: 1, outLink: 0}
	nu := &route{path: []uint32{1, 2}, valid: true, cost: 3, timestamp: 2, outLink: 0}

	changed := r.updateRoute(rte, nu)
	require.True(t, changed)
	require.True(t, rte.valid)
	require.Equal(t, []uint32{1, 2}, rte.path)

	same := &route{path: []uint32{1, 2}, valid: true, cost: 4, timestamp: 5, outLink: 0}
	changed = r.updateRoute(rte, same)
	require.True(t, changed)
	require.Equal(t, 4.0, rte.cost)

	worse := &route{path: []uint32{1, 2, 3}, valid: true, cost: 4.5, timestamp: 6, outLink: 0}
	changed = r.updateRoute(rte, worse)
	require.False(t, changed)
}
