package wire

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Addr is a network address (IP and UDP port) as it appears on the
// wire, e.g. "123.45.67.89:51349".
type Addr struct {
	IP   string
	Port int
}

func (a Addr) String() string {
	return fmt.Sprintf("%s:%d", a.IP, a.Port)
}

// IsZero reports whether a is the empty Addr value, used throughout
// the DHT node to mean "field absent" (spec's optional fields).
func (a Addr) IsZero() bool {
	return a.IP == "" && a.Port == 0
}

// UDPAddr converts a into a *net.UDPAddr for socket operations.
func (a Addr) UDPAddr() (*net.UDPAddr, error) {
	return net.ResolveUDPAddr("udp", a.String())
}

// ParseAddr parses "ip:port" into an Addr.
func ParseAddr(s string) (Addr, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Addr{}, fmt.Errorf("parsing address %q: %w", s, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Addr{}, fmt.Errorf("parsing port in %q: %w", s, err)
	}
	return Addr{IP: host, Port: port}, nil
}

// NodeInfo is the (address, firstHash) pair used in senderInfo,
// succInfo and predInfo fields throughout the DHT wire format.
type NodeInfo struct {
	Addr      Addr
	FirstHash int32
}

func (n NodeInfo) String() string {
	return fmt.Sprintf("%s:%d", n.Addr, n.FirstHash)
}

// IsZero reports whether n is the empty NodeInfo value.
func (n NodeInfo) IsZero() bool {
	return n.Addr.IsZero() && n.FirstHash == 0
}

// Equal reports whether two NodeInfo values refer to the same node.
// firstHash does not participate: the DHT routing table compares
// entries by address alone.
func (n NodeInfo) Equal(o NodeInfo) bool {
	return n.Addr == o.Addr
}

// ParseNodeInfo parses "ip:port:firstHash".
func ParseNodeInfo(s string) (NodeInfo, error) {
	idx := strings.LastIndex(s, ":")
	if idx < 0 {
		return NodeInfo{}, fmt.Errorf("malformed node info %q", s)
	}
	addrPart, hashPart := s[:idx], s[idx+1:]
	addr, err := ParseAddr(addrPart)
	if err != nil {
		return NodeInfo{}, err
	}
	h, err := strconv.ParseInt(hashPart, 10, 64)
	if err != nil {
		return NodeInfo{}, fmt.Errorf("parsing firstHash in %q: %w", s, err)
	}
	return NodeInfo{Addr: addr, FirstHash: int32(h)}, nil
}

// HashRange is the closed interval [Lo, Hi] of hash values a DHT node
// owns.
type HashRange struct {
	Lo, Hi int32
}

func (r HashRange) String() string {
	return fmt.Sprintf("%d:%d", r.Lo, r.Hi)
}

// Contains reports whether h lies within the closed range [Lo, Hi].
func (r HashRange) Contains(h int32) bool {
	return r.Lo <= h && h <= r.Hi
}

// ParseHashRange parses "lo:hi".
func ParseHashRange(s string) (HashRange, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return HashRange{}, fmt.Errorf("malformed hash range %q", s)
	}
	lo, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return HashRange{}, fmt.Errorf("parsing lo in %q: %w", s, err)
	}
	hi, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return HashRange{}, fmt.Errorf("parsing hi in %q: %w", s, err)
	}
	return HashRange{Lo: int32(lo), Hi: int32(hi)}, nil
}
