package forwarder

import (
	"testing"
	"time"

	"github.com/cse473/overlay/internal/substrate"
	"github.com/cse473/overlay/internal/wire"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestTableLongestPrefixMatch(t *testing.T) {
	logger := zaptest.NewLogger(t)
	tbl := newFwdTable(logger, false)

	narrow, err := wire.ParsePrefix("10.0.1.0/24")
	require.NoError(t, err)
	wide, err := wire.ParsePrefix("10.0.0.0/16")
	require.NoError(t, err)

	tbl.addRoute(wide, 1)
	tbl.addRoute(narrow, 2)

	ip, err := wire.ParseIP("10.0.1.5")
	require.NoError(t, err)
	link, ok := tbl.lookup(ip)
	require.True(t, ok)
	require.EqualValues(t, 2, link)

	other, err := wire.ParseIP("10.0.2.5")
	require.NoError(t, err)
	link, ok = tbl.lookup(other)
	require.True(t, ok)
	require.EqualValues(t, 1, link)
}

func TestAddRouteUpdatesExistingPrefix(t *testing.T) {
	logger := zaptest.NewLogger(t)
	tbl := newFwdTable(logger, false)
	pfx, err := wire.ParsePrefix("192.168.0.0/16")
	require.NoError(t, err)

	tbl.addRoute(pfx, 1)
	tbl.addRoute(pfx, 3)

	link, ok := tbl.getLink(pfx)
	require.True(t, ok)
	require.EqualValues(t, 3, link)

	count := 0
	for _, r := range tbl.routes {
		if r.prefix.Equal(pfx) {
			count++
		}
	}
	require.Equal(t, 1, count, "at most one entry per prefix")
}

func TestForwarderDeliversApplicationPayload(t *testing.T) {
	logger := zaptest.NewLogger(t)

	subA := substrate.NewLossy(0, 0, 1)
	subB := substrate.NewLossy(0, 0, 2)
	substrate.Pipe(subA, subB)

	ipA, err := wire.ParseIP("10.0.0.1")
	require.NoError(t, err)
	ipB, err := wire.ParseIP("10.0.0.2")
	require.NoError(t, err)

	fa, err := New(Config{Logger: logger, MyIP: ipA, Substrate: subA, NumLinks: 1})
	require.NoError(t, err)
	fb, err := New(Config{Logger: logger, MyIP: ipB, Substrate: subB, NumLinks: 1})
	require.NoError(t, err)

	fa.Start()
	fb.Start()
	defer fa.Stop()
	defer fb.Stop()

	fa.Send([]byte("hello"), ipB)

	deadline := time.After(time.Second)
	for {
		if fb.Incoming() {
			payload, src := fb.Receive()
			require.Equal(t, "hello", string(payload))
			require.Equal(t, ipA, src)
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for delivery")
		case <-time.After(time.Millisecond):
		}
	}
}
