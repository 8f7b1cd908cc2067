package wire

import (
	"fmt"
	"strconv"
	"strings"
)

// RouterMagic is the required first line of every router control
// packet.
const RouterMagic = "RPv0"

// RouterType enumerates the kinds of router control packets.
type RouterType string

const (
	RouterHello    RouterType = "hello"
	RouterHello2U  RouterType = "hello2u"
	RouterAdvert   RouterType = "advert"
	RouterFAdvert  RouterType = "fadvert"
)

// PathVec is the payload of an "advert" packet: an advertised prefix,
// the timestamp and cost of the vector, and the path of router IPs it
// has traversed, ending with the originating router.
type PathVec struct {
	Prefix    Prefix
	Timestamp float64
	Cost      float64
	Path      []uint32
}

// LinkFail is the payload of a "fadvert" packet: the two endpoints of
// the failed link, a timestamp, and the path of router IPs the
// advertisement has traversed.
type LinkFail struct {
	From, To  uint32
	Timestamp float64
	Path      []uint32
}

// EncodeHello renders a hello/hello2u packet carrying ts.
func EncodeHello(typ RouterType, ts float64) string {
	return fmt.Sprintf("%s\ntype: %s\ntimestamp: %.4f\n", RouterMagic, typ, ts)
}

// EncodeAdvert renders an "advert" packet.
func EncodeAdvert(v PathVec) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\ntype: advert\npathvec: %s %.3f %.4f", RouterMagic, v.Prefix, v.Timestamp, v.Cost)
	for _, ip := range v.Path {
		fmt.Fprintf(&b, " %s", IPString(ip))
	}
	b.WriteByte('\n')
	return b.String()
}

// EncodeFAdvert renders a "fadvert" packet.
func EncodeFAdvert(f LinkFail) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\ntype: fadvert\nlinkfail: %s %s %.3f", RouterMagic, IPString(f.From), IPString(f.To), f.Timestamp)
	for _, ip := range f.Path {
		fmt.Fprintf(&b, " %s", IPString(ip))
	}
	b.WriteByte('\n')
	return b.String()
}

// DecodeRouterType returns the RPv0 packet's type field, or an error
// if the magic line or type line is malformed.
func DecodeRouterType(payload string) (RouterType, []string, error) {
	lines := strings.Split(payload, "\n")
	if len(lines) < 2 || lines[0] != RouterMagic {
		return "", nil, fmt.Errorf("missing or invalid RPv0 magic line")
	}
	chunks := strings.SplitN(lines[1], ":", 2)
	if len(chunks) != 2 || chunks[0] != "type" {
		return "", nil, fmt.Errorf("malformed type line %q", lines[1])
	}
	return RouterType(strings.TrimSpace(chunks[1])), lines, nil
}

// DecodeTimestamp extracts the timestamp field from a hello/hello2u
// packet's third line.
func DecodeTimestamp(lines []string) (float64, error) {
	if len(lines) < 3 {
		return 0, fmt.Errorf("missing timestamp line")
	}
	chunks := strings.SplitN(lines[2], ":", 2)
	if len(chunks) != 2 || strings.TrimSpace(chunks[0]) != "timestamp" {
		return 0, fmt.Errorf("malformed timestamp line %q", lines[2])
	}
	return strconv.ParseFloat(strings.TrimSpace(chunks[1]), 64)
}

// DecodePathVec extracts and parses the "pathvec" field from an
// advert packet's third line.
func DecodePathVec(lines []string) (PathVec, error) {
	if len(lines) < 3 {
		return PathVec{}, fmt.Errorf("missing pathvec line")
	}
	chunks := strings.SplitN(lines[2], ":", 2)
	if len(chunks) != 2 || strings.TrimSpace(chunks[0]) != "pathvec" {
		return PathVec{}, fmt.Errorf("malformed pathvec line %q", lines[2])
	}
	fields := strings.Fields(strings.TrimSpace(chunks[1]))
	if len(fields) < 3 {
		return PathVec{}, fmt.Errorf("pathvec has too few fields")
	}
	pfx, err := ParsePrefix(fields[0])
	if err != nil {
		return PathVec{}, err
	}
	ts, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return PathVec{}, fmt.Errorf("parsing pathvec timestamp: %w", err)
	}
	cost, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return PathVec{}, fmt.Errorf("parsing pathvec cost: %w", err)
	}
	path := make([]uint32, 0, len(fields)-3)
	for _, f := range fields[3:] {
		ip, err := ParseIP(f)
		if err != nil {
			return PathVec{}, err
		}
		path = append(path, ip)
	}
	return PathVec{Prefix: pfx, Timestamp: ts, Cost: cost, Path: path}, nil
}

// DecodeLinkFail extracts and parses the "linkfail" field from a
// fadvert packet's third line.
func DecodeLinkFail(lines []string) (LinkFail, error) {
	if len(lines) < 3 {
		return LinkFail{}, fmt.Errorf("missing linkfail line")
	}
	chunks := strings.SplitN(lines[2], ":", 2)
	if len(chunks) != 2 || strings.TrimSpace(chunks[0]) != "linkfail" {
		return LinkFail{}, fmt.Errorf("malformed linkfail line %q", lines[2])
	}
	fields := strings.Fields(strings.TrimSpace(chunks[1]))
	if len(fields) < 3 {
		return LinkFail{}, fmt.Errorf("linkfail has too few fields")
	}
	from, err := ParseIP(fields[0])
	if err != nil {
		return LinkFail{}, err
	}
	to, err := ParseIP(fields[1])
	if err != nil {
		return LinkFail{}, err
	}
	ts, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return LinkFail{}, fmt.Errorf("parsing linkfail timestamp: %w", err)
	}
	path := make([]uint32, 0, len(fields)-3)
	for _, f := range fields[3:] {
		ip, err := ParseIP(f)
		if err != nil {
			return LinkFail{}, err
		}
		path = append(path, ip)
	}
	return LinkFail{From: from, To: to, Timestamp: ts, Path: path}, nil
}
