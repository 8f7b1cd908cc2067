// Package substrate defines the abstract lossy datagram transport
// that sits underneath the overlay router and underneath the RDT
// layer. It is intentionally narrow: send/receive/incoming/ready.
package substrate

// Link identifies one of a node's outbound connections (a neighbor
// link for the Router/Forwarder, or the single peer for the RDT).
type Link int

// Substrate is the abstract unreliable datagram transport both the
// Forwarder and the RDT run on top of.
type Substrate interface {
	// Send transmits payload on the given link. The Forwarder/Router
	// substrate is multi-link; the RDT substrate has exactly one link
	// and callers pass Link(0).
	Send(link Link, payload []byte) error
	// Ready reports whether Send would not block on the given link.
	Ready(link Link) bool
	// Incoming reports whether a datagram is available to Receive.
	Incoming() bool
	// Receive returns the next available datagram and the link it
	// arrived on.
	Receive() ([]byte, Link, bool)
}
