package router

import (
	"fmt"

	"github.com/cse473/overlay/internal/wire"

	"github.com/dominikbraun/graph"
	"github.com/jedib0t/go-pretty/v6/table"
	"go.uber.org/zap"
)

// printTable renders the routing table and, alongside it, each link's
// cost sample stats and a topology loop cross-check, matching
// fwdTable.printTable in the forwarder package.
func (r *Router) printTable() {
	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"prefix", "valid", "cost", "outLink", "path"})
	for _, rte := range r.rteTbl {
		tw.AppendRow(table.Row{rte.pfx.String(), rte.valid, fmt.Sprintf("%.4f", rte.cost), int(rte.outLink), pathString(rte.path)})
	}
	r.logger.Debug("routing table\n" + tw.Render())

	lt := table.NewWriter()
	lt.AppendHeader(table.Row{"link", "peerIP", "count", "avg", "min", "max"})
	for i, li := range r.links {
		s := li.stats()
		lt.AppendRow(table.Row{i, wire.IPString(li.peerIP), s.Count, fmt.Sprintf("%.4f", s.Average), fmt.Sprintf("%.4f", s.Min), fmt.Sprintf("%.4f", s.Max)})
	}
	r.logger.Debug("link stats\n" + lt.Render())

	r.CheckTopology()
}

func ipHash(ip uint32) uint32 { return ip }

func pathString(path []uint32) string {
	s := ""
	for i, ip := range path {
		if i > 0 {
			s += " "
		}
		s += wire.IPString(ip)
	}
	return s
}

// topologyMirror builds an independent directed-graph view of the
// network as implied by the current routing table's advertised
// paths, and reports whether any valid route's path revisits a node.
// This exists purely as a debug/consistency cross-check alongside the
// loop-suppression check already applied in handleAdvert/
// handleFailureAdvert; it does not feed back into routing decisions.
func (r *Router) topologyMirror() (graph.Graph[uint32, uint32], []wire.Prefix) {
	g := graph.New(ipHash, graph.Directed())
	var looped []wire.Prefix

	for _, rte := range r.rteTbl {
		if !rte.valid {
			continue
		}
		seen := make(map[uint32]bool, len(rte.path))
		for _, ip := range rte.path {
			_ = g.AddVertex(ip)
			if seen[ip] {
				looped = append(looped, rte.pfx)
			}
			seen[ip] = true
		}
		for i := 0; i+1 < len(rte.path); i++ {
			_ = g.AddEdge(rte.path[i+1], rte.path[i])
		}
	}
	return g, looped
}

// CheckTopology runs the graph-based loop cross-check and logs any
// prefix whose advertised path revisits a node.
func (r *Router) CheckTopology() {
	_, looped := r.topologyMirror()
	for _, pfx := range looped {
		r.logger.Warn("loop cross-check: path revisits a node", zap.String("prefix", pfx.String()))
	}
}
