package dht

import "github.com/cse473/overlay/internal/wire"

// addRoute inserts newRoute into the routing table if it is not
// already present, evicting the oldest non-successor entry once the
// table exceeds numRoutes. Growth that keeps the table at or under
// capacity always counts as a change; growth that triggers an
// eviction counts as a change only if the evicted entry is not the
// entry being added. The eviction scan takes the first non-successor
// entry, so it evicts newRoute itself only when numRoutes is 1 and the
// table's other entry is the successor; newRoute is then not kept and
// nothing counts as changed.
func (n *Node) addRoute(newRoute wire.NodeInfo) {
	for _, cur := range n.rteTbl {
		if cur.Equal(newRoute) {
			return
		}
	}
	n.rteTbl = append(n.rteTbl, newRoute)

	changed := false
	if len(n.rteTbl) <= n.numRoutes {
		changed = true
	} else {
		for i, cur := range n.rteTbl {
			if !cur.Equal(n.succInfo) {
				changed = !cur.Equal(newRoute)
				n.rteTbl = append(n.rteTbl[:i], n.rteTbl[i+1:]...)
				break
			}
		}
	}
	if n.debug && changed {
		n.printTable()
	}
}

// removeRoute deletes every entry equal to rmRoute from the routing
// table, using a collect-then-keep pass rather than mutating the
// slice while iterating it.
func (n *Node) removeRoute(rmRoute wire.NodeInfo) {
	changed := false
	kept := n.rteTbl[:0:0]
	for _, cur := range n.rteTbl {
		if cur.Equal(rmRoute) {
			changed = true
			continue
		}
		kept = append(kept, cur)
	}
	n.rteTbl = kept
	if n.debug && changed {
		n.printTable()
	}
}

// forward selects the routing table entry whose firstHash minimizes
// the clockwise distance to hash, and sends p to it verbatim.
func (n *Node) forward(p *wire.DHTPacket, hash int32) error {
	if len(n.rteTbl) == 0 {
		return ErrNoRoute
	}
	selected := n.rteTbl[0]
	best := wire.ClockwiseDistance(int64(hash), int64(selected.FirstHash), wire.MaxHash)
	for _, cur := range n.rteTbl[1:] {
		diff := wire.ClockwiseDistance(int64(hash), int64(cur.FirstHash), wire.MaxHash)
		if diff < best {
			selected = cur
			best = diff
		}
	}
	return n.sendPacket(p, selected.Addr)
}
