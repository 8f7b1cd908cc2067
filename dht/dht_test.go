package dht

import (
	"net"
	"testing"
	"time"

	"github.com/cse473/overlay/internal/wire"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// testClient is a minimal stand-in for DhtClient: it sends one DHT
// packet and waits for exactly one reply, with a bounded timeout so a
// dropped test assertion fails fast instead of hanging.
type testClient struct {
	conn *net.UDPConn
}

func newTestClient(t *testing.T) *testClient {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &testClient{conn: conn}
}

func (c *testClient) roundTrip(t *testing.T, to wire.Addr, req *wire.DHTPacket) *wire.DHTPacket {
	t.Helper()
	addr, err := to.UDPAddr()
	require.NoError(t, err)
	_, err = c.conn.WriteToUDP([]byte(req.Encode()), addr)
	require.NoError(t, err)

	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 64*1024)
	nr, _, err := c.conn.ReadFromUDP(buf)
	require.NoError(t, err)
	resp, err := wire.DecodeDHTPacket(string(buf[:nr]))
	require.NoError(t, err)
	return resp
}

func newTestNode(t *testing.T, cacheOn bool) *Node {
	t.Helper()
	n, err := New(Config{
		Logger:    zaptest.NewLogger(t),
		MyIP:      "127.0.0.1",
		NumRoutes: 3,
		CacheOn:   cacheOn,
	})
	require.NoError(t, err)
	n.Start()
	t.Cleanup(n.Stop)
	return n
}

// TestSoloRing exercises a single-node ring answering get/put directly.
func TestSoloRing(t *testing.T) {
	n := newTestNode(t, false)
	c := newTestClient(t)

	put := c.roundTrip(t, n.LocalAddr(), &wire.DHTPacket{Type: wire.DHTPut, Key: "dungeons", Value: "dragons", HasValue: true, Tag: 1, TTL: 100})
	require.Equal(t, wire.DHTSuccess, put.Type)

	get := c.roundTrip(t, n.LocalAddr(), &wire.DHTPacket{Type: wire.DHTGet, Key: "dungeons", Tag: 2, TTL: 100})
	require.Equal(t, wire.DHTSuccess, get.Type)
	require.Equal(t, "dragons", get.Value)

	miss := c.roundTrip(t, n.LocalAddr(), &wire.DHTPacket{Type: wire.DHTGet, Key: "unknown", Tag: 3, TTL: 100})
	require.Equal(t, wire.DHTNoMatch, miss.Type)
}

// TestTwoNodeForwardsAndRelays checks that a put and a get for a key
// owned by B, both sent to A, succeed: A records itself as relay,
// forwards each request to B, and passes B's reply back to the client.
func TestTwoNodeForwardsAndRelays(t *testing.T) {
	a := newTestNode(t, false)
	b := newTestNode(t, false)
	require.NoError(t, b.Join(a.LocalAddr()))
	time.Sleep(50 * time.Millisecond)

	require.Equal(t, int32(0), a.hashRange.Lo)
	require.Equal(t, b.hashRange.Lo, a.hashRange.Hi+1)
	require.Equal(t, int32(wire.MaxHashValue), b.hashRange.Hi)

	var keyForB string
	for i := 0; ; i++ {
		k := "k" + string(rune('a'+i))
		if b.hashRange.Contains(wire.Hash(k)) {
			keyForB = k
			break
		}
	}

	c := newTestClient(t)
	put := c.roundTrip(t, a.LocalAddr(), &wire.DHTPacket{Type: wire.DHTPut, Key: keyForB, Value: "v", HasValue: true, Tag: 1, TTL: 100})
	require.Equal(t, wire.DHTSuccess, put.Type)

	get := c.roundTrip(t, a.LocalAddr(), &wire.DHTPacket{Type: wire.DHTGet, Key: keyForB, Tag: 2, TTL: 100})
	require.Equal(t, wire.DHTSuccess, get.Type)
	require.Equal(t, "v", get.Value)
}

// TestCacheServesWithoutForward checks that a relay caches the pair
// carried by a successful relayed reply (here, the put's) and serves
// later gets for the same key locally.
func TestCacheServesWithoutForward(t *testing.T) {
	a := newTestNode(t, true)
	b := newTestNode(t, true)
	require.NoError(t, b.Join(a.LocalAddr()))
	time.Sleep(50 * time.Millisecond)

	var keyForB string
	for i := 0; ; i++ {
		k := "c" + string(rune('a'+i))
		if b.hashRange.Contains(wire.Hash(k)) {
			keyForB = k
			break
		}
	}
	c := newTestClient(t)
	put := c.roundTrip(t, a.LocalAddr(), &wire.DHTPacket{Type: wire.DHTPut, Key: keyForB, Value: "cached", HasValue: true, Tag: 1, TTL: 100})
	require.Equal(t, wire.DHTSuccess, put.Type)

	get1 := c.roundTrip(t, a.LocalAddr(), &wire.DHTPacket{Type: wire.DHTGet, Key: keyForB, Tag: 2, TTL: 100})
	require.Equal(t, wire.DHTSuccess, get1.Type)
	time.Sleep(20 * time.Millisecond)

	_, cached := a.cache.get(keyForB)
	require.True(t, cached, "A should have cached the pair from the relayed success reply")

	get2 := c.roundTrip(t, a.LocalAddr(), &wire.DHTPacket{Type: wire.DHTGet, Key: keyForB, Tag: 3, TTL: 100})
	require.Equal(t, wire.DHTSuccess, get2.Type)
	require.Equal(t, "cached", get2.Value)
}

// TestGracefulLeaveHandsOffKeysAndRoutes builds a three-node ring
// A -> B -> C -> A, has B leave, and checks that afterward A's
// successor is C, C's predecessor is A, B's keys are on A, and B is
// gone from both A's and C's routing tables.
func TestGracefulLeaveHandsOffKeysAndRoutes(t *testing.T) {
	a := newTestNode(t, false)
	b := newTestNode(t, false)
	require.NoError(t, b.Join(a.LocalAddr()))
	time.Sleep(30 * time.Millisecond)

	c := newTestNode(t, false)
	require.NoError(t, c.Join(b.LocalAddr()))
	time.Sleep(30 * time.Millisecond)

	// place a key that lands in B's range so we can confirm handoff to A.
	var keyForB string
	for i := 0; ; i++ {
		k := "leave" + string(rune('a'+i))
		if b.hashRange.Contains(wire.Hash(k)) {
			keyForB = k
			break
		}
	}
	client := newTestClient(t)
	put := client.roundTrip(t, a.LocalAddr(), &wire.DHTPacket{Type: wire.DHTPut, Key: keyForB, Value: "v", HasValue: true, Tag: 1, TTL: 100})
	require.Equal(t, wire.DHTSuccess, put.Type)

	b.RequestLeave()
	time.Sleep(100 * time.Millisecond)

	require.True(t, a.succInfo.Addr == c.LocalAddr())
	require.True(t, c.predInfo.Addr == a.LocalAddr())
	require.Equal(t, "v", a.data[keyForB])

	for _, r := range a.rteTbl {
		require.NotEqual(t, b.LocalAddr(), r.Addr)
	}
	for _, r := range c.rteTbl {
		require.NotEqual(t, b.LocalAddr(), r.Addr)
	}
}
