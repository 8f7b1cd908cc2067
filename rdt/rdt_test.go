package rdt

import (
	"fmt"
	"testing"
	"time"

	"github.com/cse473/overlay/internal/substrate"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// TestDeliversInOrderUnderLoss checks that with a 30% independent
// per-direction loss rate and wSize=8, sending 1000 payloads through
// RDT yields exactly those payloads, in order, on the peer.
func TestDeliversInOrderUnderLoss(t *testing.T) {
	aSub := substrate.NewLossy(0.3, 0, 1)
	bSub := substrate.NewLossy(0.3, 0, 2)
	substrate.Pipe(aSub, bSub)

	logger := zaptest.NewLogger(t)

	a, err := New(Config{Logger: logger, Substrate: aSub, WindowSize: 8, Timeout: 20 * time.Millisecond})
	require.NoError(t, err)
	b, err := New(Config{Logger: logger, Substrate: bSub, WindowSize: 8, Timeout: 20 * time.Millisecond})
	require.NoError(t, err)

	a.Start()
	b.Start()
	defer a.Stop()
	defer b.Stop()

	const n = 1000
	go func() {
		for i := 0; i < n; i++ {
			a.Send([]byte(fmt.Sprintf("msg-%d", i)))
		}
	}()

	for i := 0; i < n; i++ {
		got := b.Receive()
		require.Equal(t, fmt.Sprintf("msg-%d", i), string(got))
	}
}

func TestSequenceArithmetic(t *testing.T) {
	tr := &Transport{wSize: 8, seqMod: 16}
	require.Equal(t, uint16(1), tr.incr(0))
	require.Equal(t, uint16(0), tr.incr(15))
	require.Equal(t, uint16(15), tr.decr(0))
	require.Equal(t, uint16(0), tr.decr(1))
	require.Equal(t, 1, tr.diff(1, 0))
	require.Equal(t, 15, tr.diff(0, 1))
}
