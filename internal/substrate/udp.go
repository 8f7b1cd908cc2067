package substrate

import (
	"net"
	"sync"
)

// UDP is a Substrate backed by a single UDP socket, with each Link
// bound to a fixed peer address (the overlay's neighbor links are
// static for the lifetime of a process).
type UDP struct {
	conn  *net.UDPConn
	peers []*net.UDPAddr

	mu      sync.Mutex
	pending []packet
}

type packet struct {
	payload []byte
	link    Link
}

// NewUDP opens a UDP socket on listenAddr and wires up one Link per
// entry in peers, in order.
func NewUDP(listenAddr string, peers []string) (*UDP, error) {
	laddr, err := net.ResolveUDPAddr("udp", listenAddr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, err
	}
	u := &UDP{conn: conn}
	for _, p := range peers {
		addr, err := net.ResolveUDPAddr("udp", p)
		if err != nil {
			conn.Close()
			return nil, err
		}
		u.peers = append(u.peers, addr)
	}
	go u.readLoop()
	return u, nil
}

func (u *UDP) readLoop() {
	buf := make([]byte, 65535)
	for {
		n, addr, err := u.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		link := u.linkOf(addr)
		u.mu.Lock()
		u.pending = append(u.pending, packet{payload: payload, link: link})
		u.mu.Unlock()
	}
}

func (u *UDP) linkOf(addr *net.UDPAddr) Link {
	for i, p := range u.peers {
		if p.IP.Equal(addr.IP) && p.Port == addr.Port {
			return Link(i)
		}
	}
	return Link(-1)
}

func (u *UDP) Send(link Link, payload []byte) error {
	if int(link) < 0 || int(link) >= len(u.peers) {
		return net.InvalidAddrError("unknown link")
	}
	_, err := u.conn.WriteToUDP(payload, u.peers[link])
	return err
}

func (u *UDP) Ready(link Link) bool {
	return true
}

func (u *UDP) Incoming() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.pending) > 0
}

func (u *UDP) Receive() ([]byte, Link, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.pending) == 0 {
		return nil, 0, false
	}
	p := u.pending[0]
	u.pending = u.pending[1:]
	return p.payload, p.link, true
}

// Close shuts down the underlying socket.
func (u *UDP) Close() error {
	return u.conn.Close()
}
