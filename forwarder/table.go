package forwarder

import (
	"fmt"
	"sync"

	"github.com/cse473/overlay/internal/substrate"
	"github.com/cse473/overlay/internal/wire"

	"github.com/jedib0t/go-pretty/v6/table"
	"go.uber.org/zap"
)

// route is one (prefix, outgoing link) entry in the forwarding table.
type route struct {
	prefix wire.Prefix
	link   substrate.Link
}

// fwdTable is the forwarding table: an ordered list of (Prefix,
// linkIndex) pairs, at most one entry per prefix, looked up by
// longest-prefix match with ties broken by insertion order. All access
// is serialized under a single mutex.
type fwdTable struct {
	mu     sync.Mutex
	logger *zap.Logger
	debug  bool
	routes []route
}

func newFwdTable(logger *zap.Logger, debug bool) *fwdTable {
	t := &fwdTable{logger: logger, debug: debug}
	// length-0 prefix matches everything: default route, initially to
	// link 0.
	t.routes = []route{{prefix: wire.NewPrefix(0, 0), link: 0}}
	return t
}

// addRoute inserts or updates the entry for prefix. There is no
// removal API: a link that goes away is left pointing at a stale
// route until something re-advertises over it.
func (t *fwdTable) addRoute(prefix wire.Prefix, link substrate.Link) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.routes {
		if t.routes[i].prefix.Equal(prefix) {
			t.routes[i].link = link
			if t.debug {
				t.printTableLocked()
			}
			return
		}
	}
	t.routes = append(t.routes, route{prefix: prefix, link: link})
	if t.debug {
		t.printTableLocked()
	}
}

// lookup returns the link of the longest prefix matching ip, or false
// if none match.
func (t *fwdTable) lookup(ip uint32) (substrate.Link, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	best := -1
	var link substrate.Link
	for _, r := range t.routes {
		if r.prefix.Matches(ip) && r.prefix.Len > best {
			best = r.prefix.Len
			link = r.link
		}
	}
	return link, best >= 0
}

// getLink returns the link currently associated with an exact
// prefix match, or false if the prefix is not in the table.
func (t *fwdTable) getLink(prefix wire.Prefix) (substrate.Link, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range t.routes {
		if r.prefix.Equal(prefix) {
			return r.link, true
		}
	}
	return 0, false
}

// printTable renders the forwarding table with go-pretty.
func (t *fwdTable) printTable() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.printTableLocked()
}

func (t *fwdTable) printTableLocked() {
	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"prefix", "link"})
	for _, r := range t.routes {
		tw.AppendRow(table.Row{r.prefix.String(), fmt.Sprint(r.link)})
	}
	t.logger.Debug("forwarding table\n" + tw.Render())
}
