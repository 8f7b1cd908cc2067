package rdt

import (
	"encoding/binary"
	"fmt"
)

// packetType distinguishes a data packet from an acknowledgment.
type packetType uint8

const (
	typeData packetType = 0
	typeAck  packetType = 1
)

// packet is the opaque unit exchanged with the substrate: a type, a
// 15-bit sequence number, and (for data packets) a payload.
type packet struct {
	typ     packetType
	seqNum  uint16
	payload []byte
}

// encode serializes a packet to bytes for transmission. The substrate
// is assumed to preserve this blob end-to-end.
func (p *packet) encode() []byte {
	buf := make([]byte, 3+len(p.payload))
	buf[0] = byte(p.typ)
	binary.BigEndian.PutUint16(buf[1:3], p.seqNum)
	copy(buf[3:], p.payload)
	return buf
}

func decodePacket(b []byte) (*packet, error) {
	if len(b) < 3 {
		return nil, fmt.Errorf("rdt: packet too short (%d bytes)", len(b))
	}
	p := &packet{
		typ:    packetType(b[0]),
		seqNum: binary.BigEndian.Uint16(b[1:3]),
	}
	if len(b) > 3 {
		p.payload = append([]byte(nil), b[3:]...)
	}
	return p, nil
}
