package substrate

import (
	"math/rand"
	"sync"
	"time"
)

// Lossy is an in-memory Substrate used by tests. Two Lossy instances
// are wired together with Pipe to form a duplex channel with
// independently configurable loss and propagation delay in each
// direction.
type Lossy struct {
	lossRate float64
	delay    time.Duration
	rng      *rand.Rand

	mu      sync.Mutex
	peer    *Lossy
	pending []packet
}

// NewLossy creates a Lossy substrate that drops each outgoing
// datagram independently with probability lossRate, delivering
// surviving datagrams after delay.
func NewLossy(lossRate float64, delay time.Duration, seed int64) *Lossy {
	return &Lossy{
		lossRate: lossRate,
		delay:    delay,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Pipe connects a and b so that sends on one arrive (subject to loss)
// as receives on the other, each using Link(0).
func Pipe(a, b *Lossy) {
	a.peer = b
	b.peer = a
}

// Sever makes every future Send on l drop its payload, simulating a
// link going down mid-test.
func (l *Lossy) Sever() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lossRate = 1
}

func (l *Lossy) Send(_ Link, payload []byte) error {
	l.mu.Lock()
	drop := l.rng.Float64() < l.lossRate
	l.mu.Unlock()
	if drop {
		return nil
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	deliver := func() {
		l.peer.mu.Lock()
		l.peer.pending = append(l.peer.pending, packet{payload: cp, link: 0})
		l.peer.mu.Unlock()
	}
	if l.delay <= 0 {
		deliver()
	} else {
		time.AfterFunc(l.delay, deliver)
	}
	return nil
}

func (l *Lossy) Ready(_ Link) bool { return true }

func (l *Lossy) Incoming() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending) > 0
}

func (l *Lossy) Receive() ([]byte, Link, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pending) == 0 {
		return nil, 0, false
	}
	p := l.pending[0]
	l.pending = l.pending[1:]
	return p.payload, p.link, true
}
