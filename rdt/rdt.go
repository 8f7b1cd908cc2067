// Package rdt implements a Go-Back-N reliable data transport over an
// unreliable substrate: a sliding-window sender with cumulative ACKs,
// a retransmission timer, and fast retransmit on four consecutive
// duplicate ACKs for sendBase-1.
package rdt

import (
	"sync"
	"time"

	"github.com/cse473/overlay/internal/queue"
	"github.com/cse473/overlay/internal/substrate"

	"go.uber.org/zap"
)

// Transport is a single Go-Back-N worker: one goroutine interleaving
// sender and receiver logic in a single run() loop.
type Transport struct {
	logger  *zap.Logger
	sub     substrate.Substrate
	wSize   int
	seqMod  uint16 // 2*wSize
	timeout time.Duration

	fromSrc *queue.Bounded[[]byte]
	toSnk   *queue.Bounded[[]byte]

	stop    chan struct{}
	stopped chan struct{}
	quit    bool
	mu      sync.Mutex
}

// New constructs a Transport from cfg. Call Start to begin running
// it.
func New(cfg Config) (*Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	wSize := cfg.windowSize()
	t := &Transport{
		logger:  cfg.Logger,
		sub:     cfg.Substrate,
		wSize:   wSize,
		seqMod:  uint16(2 * wSize),
		timeout: cfg.Timeout,
		fromSrc: queue.NewBounded[[]byte](1000),
		toSnk:   queue.NewBounded[[]byte](1000),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	return t, nil
}

// Send queues payload for delivery, blocking if the application-layer
// queue is full.
func (t *Transport) Send(payload []byte) {
	t.fromSrc.Put(payload)
}

// Ready reports whether Send would not need to block.
func (t *Transport) Ready() bool {
	return t.fromSrc.RemainingCapacity() > 0
}

// Receive blocks until the next in-order payload is available.
func (t *Transport) Receive() []byte {
	return t.toSnk.Take()
}

// Incoming reports whether Receive would not block.
func (t *Transport) Incoming() bool {
	return t.toSnk.Len() > 0
}

// Start launches the worker goroutine.
func (t *Transport) Start() {
	go t.run()
}

// Stop requests shutdown. The worker flushes any in-flight send
// window before exiting: it keeps running until sendBuf[sendBase] is
// empty.
func (t *Transport) Stop() {
	t.mu.Lock()
	if !t.quit {
		t.quit = true
		close(t.stop)
	}
	t.mu.Unlock()
	<-t.stopped
}

func (t *Transport) incr(x uint16) uint16 {
	x++
	if x < t.seqMod {
		return x
	}
	return 0
}

func (t *Transport) decr(x uint16) uint16 {
	if x == 0 {
		return t.seqMod - 1
	}
	return x - 1
}

// diff returns the clockwise distance from y to x in the sequence
// space, i.e. (x-y) mod seqMod.
func (t *Transport) diff(x, y uint16) int {
	if x >= y {
		return int(x - y)
	}
	return int(x) + int(t.seqMod) - int(y)
}

func (t *Transport) run() {
	defer close(t.stopped)

	sendBuf := make([]*packet, t.seqMod)
	recvBuf := make([]*packet, t.seqMod)

	var (
		sendBase   uint16
		sendSeqNum uint16
		dupAcks    int

		recvBase  uint16
		expSeq    uint16
		lastRcvd  int32 = -1
	)

	var (
		sendAgain     time.Time
		stopTimer     = true
		enableDupAck  = true
		haveDeadline  bool
	)

	quitRequested := func() bool {
		select {
		case <-t.stop:
			return true
		default:
			return false
		}
	}

	for {
		if quitRequested() && sendBuf[sendBase] == nil {
			return
		}

		now := time.Now()

		switch {
		case recvBuf[recvBase] != nil:
			p := recvBuf[recvBase]
			t.toSnk.Put(p.payload)
			recvBuf[recvBase] = nil
			recvBase = t.incr(recvBase)

		case t.sub.Incoming():
			raw, _, ok := t.sub.Receive()
			if !ok {
				break
			}
			p, err := decodePacket(raw)
			if err != nil {
				t.logger.Warn("dropping malformed rdt packet", zap.Error(err))
				break
			}
			switch p.typ {
			case typeData:
				if p.seqNum == expSeq {
					recvBuf[expSeq] = p
					lastRcvd = int32(expSeq)
					ack := &packet{typ: typeAck, seqNum: expSeq}
					expSeq = t.incr(expSeq)
					enableDupAck = true
					t.sub.Send(0, ack.encode())
				} else if lastRcvd != -1 {
					ack := &packet{typ: typeAck, seqNum: uint16(lastRcvd)}
					t.sub.Send(0, ack.encode())
				}
			case typeAck:
				switch {
				case p.seqNum == t.decr(sendBase):
					dupAcks++
					if dupAcks >= 4 && enableDupAck {
						t.retransmitWindow(sendBuf, sendBase, sendSeqNum)
						sendAgain = now.Add(t.timeout)
						haveDeadline = true
						dupAcks = 0
						enableDupAck = false
					}
				case t.diff(p.seqNum, sendBase) < t.wSize && sendBuf[p.seqNum] != nil:
					dupAcks = 0
					for sendBase != t.incr(p.seqNum) {
						sendBuf[sendBase] = nil
						sendBase = t.incr(sendBase)
					}
					sendAgain = now.Add(t.timeout)
					haveDeadline = true
					if sendBuf[sendBase] == nil {
						stopTimer = true
					}
				}
			}

		case haveDeadline && !now.Before(sendAgain) && sendBase != sendSeqNum && !stopTimer:
			t.retransmitWindow(sendBuf, sendBase, sendSeqNum)
			sendAgain = now.Add(t.timeout)
			enableDupAck = true

		default:
			if payload, ok := t.fromSrc.Peek(); ok && t.sub.Ready(0) && t.diff(sendSeqNum, sendBase) < t.wSize {
				t.fromSrc.Drop()
				p := &packet{typ: typeData, seqNum: sendSeqNum, payload: payload}
				sendBuf[sendSeqNum] = p
				if !haveDeadline {
					haveDeadline = true
					sendAgain = now.Add(t.timeout)
				}
				sendSeqNum = t.incr(sendSeqNum)
				t.sub.Send(0, p.encode())
				stopTimer = false
				sendAgain = now.Add(t.timeout)
			} else {
				time.Sleep(time.Millisecond)
			}
		}
	}
}

// retransmitWindow resends every unacked packet currently in the send
// window, waiting on substrate readiness between stalls.
func (t *Transport) retransmitWindow(sendBuf []*packet, sendBase, sendSeqNum uint16) {
	temp := sendBase
	n := t.diff(sendSeqNum, sendBase)
	for i := 0; i < n; i++ {
		for !t.sub.Ready(0) {
			time.Sleep(time.Millisecond)
		}
		t.sub.Send(0, sendBuf[temp].encode())
		temp = t.incr(temp)
	}
}
