package wire

import (
	"fmt"
	"strconv"
	"strings"
)

// DHTMagic is the required first line of every DHT packet.
const DHTMagic = "CSE473 DHTPv0.1"

// DHTType enumerates the kinds of packets exchanged on the DHT ring.
type DHTType string

const (
	DHTGet      DHTType = "get"
	DHTPut      DHTType = "put"
	DHTSuccess  DHTType = "success"
	DHTNoMatch  DHTType = "no match"
	DHTFailure  DHTType = "failure"
	DHTJoin     DHTType = "join"
	DHTLeave    DHTType = "leave"
	DHTTransfer DHTType = "transfer"
	DHTUpdate   DHTType = "update"
)

// DHTPacket is the wire envelope for DHT ring traffic. Every field
// besides Type and Tag/TTL is optional; the zero value means "absent".
type DHTPacket struct {
	Type      DHTType
	Key       string
	Value     string
	HasValue  bool
	Reason    string
	Tag       uint32
	TTL       int32
	ClientAdr Addr
	RelayAdr  Addr
	Sender    NodeInfo
	Succ      NodeInfo
	Pred      NodeInfo
	HashRange HashRange
	HasRange  bool
}

// Encode renders p in the ASCII keyword-tagged wire format.
func (p *DHTPacket) Encode() string {
	var b strings.Builder
	b.WriteString(DHTMagic)
	b.WriteByte('\n')
	fmt.Fprintf(&b, "type:%s\n", p.Type)
	if p.Key != "" {
		fmt.Fprintf(&b, "key:%s\n", p.Key)
	}
	if p.HasValue {
		fmt.Fprintf(&b, "value:%s\n", p.Value)
	}
	fmt.Fprintf(&b, "tag:%d\n", p.Tag)
	fmt.Fprintf(&b, "ttl:%d\n", p.TTL)
	if !p.ClientAdr.IsZero() {
		fmt.Fprintf(&b, "clientAdr:%s\n", p.ClientAdr)
	}
	if !p.RelayAdr.IsZero() {
		fmt.Fprintf(&b, "relayAdr:%s\n", p.RelayAdr)
	}
	if !p.Sender.IsZero() {
		fmt.Fprintf(&b, "senderInfo:%s\n", p.Sender)
	}
	if !p.Succ.IsZero() {
		fmt.Fprintf(&b, "succInfo:%s\n", p.Succ)
	}
	if !p.Pred.IsZero() {
		fmt.Fprintf(&b, "predInfo:%s\n", p.Pred)
	}
	if p.HasRange {
		fmt.Fprintf(&b, "hashRange:%s\n", p.HashRange)
	}
	if p.Reason != "" {
		fmt.Fprintf(&b, "reason:%s\n", p.Reason)
	}
	return b.String()
}

// DecodeDHTPacket parses the ASCII wire format. A packet missing the
// magic line, or carrying an unknown keyword or unparsable integer, is
// rejected with an error; the caller replies with a "failure" packet
// carrying the error text as the reason field.
func DecodeDHTPacket(s string) (*DHTPacket, error) {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) == 0 || lines[0] != DHTMagic {
		return nil, fmt.Errorf("missing or invalid magic line")
	}

	p := &DHTPacket{}
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		idx := strings.Index(line, ":")
		if idx < 0 {
			return nil, fmt.Errorf("malformed field %q", line)
		}
		key, val := line[:idx], line[idx+1:]
		var err error
		switch key {
		case "type":
			p.Type = DHTType(val)
		case "key":
			p.Key = val
		case "value":
			p.Value = val
			p.HasValue = true
		case "reason":
			p.Reason = val
		case "tag":
			var n uint64
			n, err = strconv.ParseUint(val, 10, 32)
			p.Tag = uint32(n)
		case "ttl":
			var n int64
			n, err = strconv.ParseInt(val, 10, 32)
			p.TTL = int32(n)
		case "clientAdr":
			p.ClientAdr, err = ParseAddr(val)
		case "relayAdr":
			p.RelayAdr, err = ParseAddr(val)
		case "senderInfo":
			p.Sender, err = ParseNodeInfo(val)
		case "succInfo":
			p.Succ, err = ParseNodeInfo(val)
		case "predInfo":
			p.Pred, err = ParseNodeInfo(val)
		case "hashRange":
			p.HashRange, err = ParseHashRange(val)
			p.HasRange = true
		default:
			return nil, fmt.Errorf("unknown field %q", key)
		}
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
	}
	if p.Type == "" {
		return nil, fmt.Errorf("missing type field")
	}
	return p, nil
}
