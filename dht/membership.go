package dht

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/cse473/overlay/internal/wire"

	"go.uber.org/zap"
)

// joinReplyTimeout bounds how long Join waits for predAddr to answer,
// after which it reports ErrJoinTimeout so a caller (cmd/dhtserver's
// retry-go wrapper) can decide whether to try again.
const joinReplyTimeout = 5 * time.Second

// Join contacts predAddr, an existing ring member, and blocks until
// it has replied with this node's new hash range, successor and
// predecessor. Call it before Start; the node has no routing table or
// range of its own until it returns. Packets arriving from anyone
// other than predAddr while waiting are discarded.
func (n *Node) Join(predAddr wire.Addr) error {
	tag := n.nextTag()
	req := &wire.DHTPacket{Type: wire.DHTJoin, Tag: tag, TTL: 100}
	if err := n.sendPacket(req, predAddr); err != nil {
		return fmt.Errorf("dht: sending join request: %w", err)
	}

	if err := n.conn.SetReadDeadline(time.Now().Add(joinReplyTimeout)); err != nil {
		return fmt.Errorf("dht: setting join deadline: %w", err)
	}
	defer n.conn.SetReadDeadline(time.Time{})

	buf := make([]byte, 64*1024)
	var resp *wire.DHTPacket
	for {
		nr, raddr, err := n.conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return ErrJoinTimeout
			}
			return fmt.Errorf("dht: waiting for join reply: %w", err)
		}
		if raddr.IP.String() != predAddr.IP || raddr.Port != predAddr.Port {
			continue
		}
		resp, err = wire.DecodeDHTPacket(string(buf[:nr]))
		if err != nil {
			return fmt.Errorf("dht: malformed join reply: %w", err)
		}
		break
	}

	if resp.Type != wire.DHTSuccess || resp.Tag != tag {
		return ErrJoinRejected
	}

	n.succInfo = resp.Succ
	n.hashRange = resp.HashRange
	n.addRoute(n.succInfo)
	n.myInfo = wire.NodeInfo{Addr: n.myAddr, FirstHash: resp.HashRange.Lo}
	n.predInfo = resp.Pred
	n.predAddr = predAddr
	return nil
}

// handleJoin answers a join request from a prospective successor by
// splitting this node's hash range in half, handing the top half to
// the joiner, and transferring every key that now belongs there.
func (n *Node) handleJoin(p *wire.DHTPacket, joinerAddr wire.Addr) {
	low, high := n.hashRange.Lo, n.hashRange.Hi
	mid := (high - low) / 2
	n.hashRange.Hi = low + mid

	firstHash := low + mid + 1
	reply := &wire.DHTPacket{
		Type:      wire.DHTSuccess,
		Tag:       p.Tag,
		TTL:       p.TTL,
		HashRange: wire.HashRange{Lo: firstHash, Hi: high},
		HasRange:  true,
		Succ:      n.succInfo,
		Pred:      n.myInfo,
	}

	n.succInfo = wire.NodeInfo{Addr: joinerAddr, FirstHash: firstHash}
	n.addRoute(n.succInfo)
	if err := n.sendPacket(reply, joinerAddr); err != nil {
		n.logger.Warn("replying to join", zap.Error(err))
		return
	}

	for key, val := range n.data {
		if wire.Hash(key) >= firstHash {
			xfer := &wire.DHTPacket{Type: wire.DHTTransfer, Tag: n.nextTag(), TTL: 100, Key: key, Value: val, HasValue: true}
			if err := n.sendPacket(xfer, joinerAddr); err != nil {
				n.logger.Warn("transferring key to new successor", zap.Error(err), zap.String("key", key))
				continue
			}
			delete(n.data, key)
		}
	}
}

// handleUpdate applies whichever fields are present in an update
// packet. A new succInfo is also folded into the routing table.
func (n *Node) handleUpdate(p *wire.DHTPacket) {
	if !p.Pred.IsZero() {
		n.predInfo = p.Pred
	}
	if !p.Succ.IsZero() {
		n.succInfo = p.Succ
		n.addRoute(n.succInfo)
	}
	if p.HasRange {
		n.hashRange = p.HashRange
	}
}

// handleLeave relays a leaving node's announcement around the ring,
// removing the leaver from the routing table, until it reaches back
// to the leaver itself.
func (n *Node) handleLeave(p *wire.DHTPacket) {
	if p.Sender.Equal(n.myInfo) {
		close(n.leaveSeen)
		return
	}
	if err := n.sendPacket(p, n.succInfo.Addr); err != nil {
		n.logger.Warn("relaying leave packet", zap.Error(err))
	}
	n.removeRoute(p.Sender)
}

// leave runs the graceful-departure protocol: send a leave
// announcement around the ring and wait for it to circle back, hand
// the merged hash range and new successor to the predecessor, hand
// the new predecessor to the successor, transfer every owned key to
// the predecessor, and clear local state. The solo node (hashRange
// starting at 0) short-circuits and does nothing.
func (n *Node) leave() {
	if n.hashRange.Lo == 0 {
		return
	}

	leavePkt := &wire.DHTPacket{Type: wire.DHTLeave, Tag: n.nextTag(), TTL: 100, Sender: n.myInfo}
	if err := n.sendPacket(leavePkt, n.succInfo.Addr); err != nil {
		n.logger.Warn("sending leave packet", zap.Error(err))
		return
	}

	n.waitForLeaveToCircle()

	update1 := &wire.DHTPacket{
		Type: wire.DHTUpdate, Tag: n.nextTag(), TTL: 100,
		Succ:      n.succInfo,
		HashRange: wire.HashRange{Lo: n.predInfo.FirstHash, Hi: n.hashRange.Hi}, HasRange: true,
	}
	if err := n.sendPacket(update1, n.predAddr); err != nil {
		n.logger.Warn("sending leave update to predecessor", zap.Error(err))
	}

	// Neither update carries senderInfo: handlePacket would otherwise add
	// this departing node back into the receivers' routing tables.
	update2 := &wire.DHTPacket{Type: wire.DHTUpdate, Tag: n.nextTag(), TTL: 100, Pred: n.predInfo}
	if err := n.sendPacket(update2, n.succInfo.Addr); err != nil {
		n.logger.Warn("sending leave update to successor", zap.Error(err))
	}

	for key, val := range n.data {
		xfer := &wire.DHTPacket{Type: wire.DHTTransfer, Tag: n.nextTag(), TTL: 100, Key: key, Value: val, HasValue: true}
		if err := n.sendPacket(xfer, n.predAddr); err != nil {
			n.logger.Warn("transferring key on leave", zap.Error(err), zap.String("key", key))
			continue
		}
		delete(n.data, key)
	}

	n.cache, _ = newResultCache(false)
	n.rteTbl = nil
}

// waitForLeaveToCircle drains packets off pktCh, processing each one
// normally, until this node's own leave packet reaches handleLeave
// and closes leaveSeen. This keeps the ring's handleLeave relaying
// working even while the departing node waits, rather than stalling
// the whole ring on a blocked send.
func (n *Node) waitForLeaveToCircle() {
	for {
		select {
		case <-n.leaveSeen:
			return
		case in, ok := <-n.pktCh:
			if !ok {
				return
			}
			n.handlePacket(in.pkt, in.sender)
		}
	}
}
