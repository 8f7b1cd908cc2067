package dht

import (
	"github.com/cse473/overlay/internal/wire"

	"go.uber.org/zap"
)

// inbound pairs a decoded packet with the address it arrived from.
type inbound struct {
	pkt    *wire.DHTPacket
	sender wire.Addr
}

// sendPacket encodes p and writes it to to's UDP address. Debug mode
// logs every packet sent.
func (n *Node) sendPacket(p *wire.DHTPacket, to wire.Addr) error {
	addr, err := to.UDPAddr()
	if err != nil {
		return err
	}
	payload := p.Encode()
	if n.debug {
		n.logger.Debug("dht send", zap.String("to", to.String()), zap.String("payload", payload))
	}
	_, err = n.conn.WriteToUDP([]byte(payload), addr)
	return err
}

// readLoop is the socket reader goroutine. It runs independently of
// the node's single processing goroutine so that a graceful leave can
// interrupt the blocking read by closing the socket -- the sentinel
// here is the closed conn itself, which unblocks ReadFromUDP with a
// deterministic error.
func (n *Node) readLoop() {
	defer close(n.pktCh)
	buf := make([]byte, 64*1024)
	for {
		nr, raddr, err := n.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		sender := wire.Addr{IP: raddr.IP.String(), Port: raddr.Port}
		payload := string(buf[:nr])
		if n.debug {
			n.logger.Debug("dht recv", zap.String("from", sender.String()), zap.String("payload", payload))
		}
		p, err := wire.DecodeDHTPacket(payload)
		if err != nil {
			n.logger.Warn("dropping malformed dht packet", zap.Error(err), zap.String("from", sender.String()))
			n.sendPacket(&wire.DHTPacket{Type: wire.DHTFailure, Reason: err.Error()}, sender)
			continue
		}
		n.pktCh <- inbound{pkt: p, sender: sender}
	}
}
