package dht

import (
	"github.com/jedib0t/go-pretty/v6/table"
)

// printRouteTable renders the routing table with go-pretty. Called
// whenever debug is on and addRoute or removeRoute reports a change.
func (n *Node) printRouteTable() {
	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"addr", "firstHash"})
	for _, r := range n.rteTbl {
		tw.AppendRow(table.Row{r.Addr.String(), r.FirstHash})
	}
	n.logger.Debug("routing table\n" + tw.Render())
}
