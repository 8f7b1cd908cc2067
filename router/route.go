package router

import (
	"github.com/cse473/overlay/internal/substrate"
	"github.com/cse473/overlay/internal/wire"
)

// route is a routing table entry. Path ends at the originating
// router. valid=false means the route is currently suppressed but
// retained for comparison.
type route struct {
	pfx       wire.Prefix
	timestamp float64
	cost      float64
	path      []uint32
	outLink   substrate.Link
	valid     bool
}

func pathsEqual(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// lookupRoute returns the route for pfx, if any.
func (r *Router) lookupRoute(pfx wire.Prefix) *route {
	for _, rte := range r.rteTbl {
		if rte.pfx.Equal(pfx) {
			return rte
		}
	}
	return nil
}

// addRoute appends a new route without checking for conflicts; the
// caller (handleAdvert) has already confirmed none exists.
func (r *Router) addRoute(rte *route) {
	r.rteTbl = append(r.rteTbl, rte)
}

// linkDown reports whether link is currently considered disabled.
// A negative link identifies a locally-originated route, which is
// never down.
func (r *Router) linkDown(link substrate.Link) bool {
	if link < 0 {
		return false
	}
	return r.links[link].down()
}

// updateRoute folds nu into rte in place, reporting whether anything
// changed. The update is skipped entirely if nu's outgoing link is
// currently down.
func (r *Router) updateRoute(rte, nu *route) bool {
	if r.linkDown(nu.outLink) {
		return false
	}

	// Rule 1: existing invalid, new valid, paths differ -> replace and mark valid.
	if !rte.valid && nu.valid && !pathsEqual(rte.path, nu.path) {
		rte.path = nu.path
		rte.outLink = nu.outLink
		rte.timestamp = nu.timestamp
		rte.cost = nu.cost
		rte.valid = true
		return true
	}

	// Rule 2: same path and outlink -> refresh timestamp/cost only.
	if pathsEqual(rte.path, nu.path) && rte.outLink == nu.outLink {
		rte.timestamp = nu.timestamp
		rte.cost = nu.cost
		return true
	}

	// Rule 3: meaningfully better/newer route, or current link disabled -> replace.
	if nu.cost < 0.9*rte.cost || nu.timestamp > rte.timestamp+20 || r.linkDown(rte.outLink) {
		rte.path = nu.path
		rte.outLink = nu.outLink
		rte.timestamp = nu.timestamp
		rte.cost = nu.cost
		return true
	}

	return false
}
