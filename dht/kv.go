package dht

import (
	"github.com/cse473/overlay/internal/wire"

	"go.uber.org/zap"
)

// replyTarget returns the address a response to p should go to: the
// relay if one was recorded, or the direct sender otherwise. When
// replying through a relay, senderInfo is stamped with this node's
// address and the low end of its hash range so the relay can add
// this node to its routing table; the relay sends the reply on to the
// client recorded in clientAdr.
func (n *Node) replyTarget(p *wire.DHTPacket, sender wire.Addr) wire.Addr {
	if p.RelayAdr.IsZero() {
		return sender
	}
	p.Sender = wire.NodeInfo{Addr: n.myAddr, FirstHash: n.hashRange.Lo}
	return p.RelayAdr
}

// handleGet resolves a lookup one of three ways: serve authoritatively
// if the key falls in this node's hash range, serve from the local
// cache if it's a hit, or forward toward the owning node otherwise.
func (n *Node) handleGet(p *wire.DHTPacket, sender wire.Addr) {
	hash := wire.Hash(p.Key)

	if n.hashRange.Contains(hash) {
		replyAddr := n.replyTarget(p, sender)
		if val, ok := n.data[p.Key]; ok {
			p.Type, p.Value, p.HasValue = wire.DHTSuccess, val, true
		} else {
			p.Type, p.HasValue = wire.DHTNoMatch, false
		}
		if err := n.sendPacket(p, replyAddr); err != nil {
			n.logger.Warn("replying to get", zap.Error(err))
		}
		return
	}

	if n.cacheOn {
		if val, ok := n.cache.get(p.Key); ok {
			replyAddr := n.replyTarget(p, sender)
			p.Type, p.Value, p.HasValue = wire.DHTSuccess, val, true
			if err := n.sendPacket(p, replyAddr); err != nil {
				n.logger.Warn("replying to get from cache", zap.Error(err))
			}
			return
		}
	}

	if p.RelayAdr.IsZero() {
		p.RelayAdr = n.myAddr
		p.ClientAdr = sender
	}
	if err := n.forward(p, hash); err != nil {
		n.logger.Warn("dropping get with no forwarding route", zap.Error(err))
	}
}

// handlePut stores the pair if the key falls in this node's hash
// range (or fails, if the value is absent), and otherwise forwards
// toward the owning node, recording the relay on first touch.
func (n *Node) handlePut(p *wire.DHTPacket, sender wire.Addr) {
	hash := wire.Hash(p.Key)

	if n.hashRange.Contains(hash) {
		replyAddr := n.replyTarget(p, sender)
		if p.HasValue {
			n.data[p.Key] = p.Value
			p.Type = wire.DHTSuccess
		} else {
			// An absent value is a malformed put, not a remove
			// request: reply failure rather than deleting the key.
			p.Type = wire.DHTFailure
			p.Reason = "put requires a value field"
		}
		if err := n.sendPacket(p, replyAddr); err != nil {
			n.logger.Warn("replying to put", zap.Error(err))
		}
		return
	}

	if p.RelayAdr.IsZero() {
		p.RelayAdr = n.myAddr
		p.ClientAdr = sender
	}
	if err := n.forward(p, hash); err != nil {
		n.logger.Warn("dropping put with no forwarding route", zap.Error(err))
	}
}

// handleTransfer accepts a (key,value) pair transferred during a join
// or leave, only if it actually belongs in this node's current hash
// range -- a stale transfer after further ring changes is silently
// dropped.
func (n *Node) handleTransfer(p *wire.DHTPacket) {
	if !p.HasValue {
		return
	}
	if n.hashRange.Contains(wire.Hash(p.Key)) {
		n.data[p.Key] = p.Value
	}
}

// handleReply assumes this node is the relay for p: it strips the
// bookkeeping fields, forwards the reply to the client, and -- if
// caching is on and the result was a success -- caches the pair.
func (n *Node) handleReply(p *wire.DHTPacket) {
	client := p.ClientAdr
	p.ClientAdr = wire.Addr{}
	p.RelayAdr = wire.Addr{}
	p.Sender = wire.NodeInfo{}
	if err := n.sendPacket(p, client); err != nil {
		n.logger.Warn("relaying reply to client", zap.Error(err))
	}
	if n.cacheOn && p.Type == wire.DHTSuccess && p.Key != "" && p.HasValue {
		n.cache.set(p.Key, p.Value)
	}
}
