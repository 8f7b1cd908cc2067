package wire

import (
	"encoding/binary"
	"fmt"
)

// OverlayPacket is the packet exchanged between overlay nodes over
// the substrate: a source/destination pair in the overlay's own IP
// space, a protocol discriminator (1 = application payload routed to
// the local application queue, 2 = control packet routed to the Router), a
// TTL, and an opaque payload.
type OverlayPacket struct {
	SrcAdr   uint32
	DestAdr  uint32
	Protocol int
	TTL      int
	Payload  []byte
}

// Encode serializes p for transmission over the substrate.
func (p *OverlayPacket) Encode() []byte {
	buf := make([]byte, 13+len(p.Payload))
	binary.BigEndian.PutUint32(buf[0:4], p.SrcAdr)
	binary.BigEndian.PutUint32(buf[4:8], p.DestAdr)
	buf[8] = byte(p.Protocol)
	binary.BigEndian.PutUint32(buf[9:13], uint32(int32(p.TTL)))
	copy(buf[13:], p.Payload)
	return buf
}

// DecodeOverlayPacket parses the wire form produced by Encode.
func DecodeOverlayPacket(b []byte) (*OverlayPacket, error) {
	if len(b) < 13 {
		return nil, fmt.Errorf("overlay packet too short (%d bytes)", len(b))
	}
	p := &OverlayPacket{
		SrcAdr:   binary.BigEndian.Uint32(b[0:4]),
		DestAdr:  binary.BigEndian.Uint32(b[4:8]),
		Protocol: int(b[8]),
		TTL:      int(int32(binary.BigEndian.Uint32(b[9:13]))),
	}
	if len(b) > 13 {
		p.Payload = append([]byte(nil), b[13:]...)
	}
	return p, nil
}
