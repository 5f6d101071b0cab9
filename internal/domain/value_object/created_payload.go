package value_object

import (
	"encoding/binary"
	"fmt"
)

// Created2Payload is HLEN(2) | HDATA. RELAY_EXTENDED2 carries the same
// layout in its relay data.
type Created2Payload struct {
	HData []byte
}

func (p Created2Payload) MarshalBinary() ([]byte, error) {
	if len(p.HData) > CellPayloadLen-2 {
		return nil, fmt.Errorf("handshake data too big: %d > %d", len(p.HData), CellPayloadLen-2)
	}
	b := make([]byte, 2+len(p.HData))
	binary.BigEndian.PutUint16(b, uint16(len(p.HData)))
	copy(b[2:], p.HData)
	return b, nil
}

// ParseCreated2Payload decodes a CREATED2 body or EXTENDED2 relay data.
func ParseCreated2Payload(b []byte) (Created2Payload, error) {
	if len(b) < 2 {
		return Created2Payload{}, fmt.Errorf("created2 payload too short: %d", len(b))
	}
	hlen := int(binary.BigEndian.Uint16(b))
	if 2+hlen > len(b) {
		return Created2Payload{}, fmt.Errorf("created2 hlen %d exceeds payload", hlen)
	}
	return Created2Payload{HData: append([]byte(nil), b[2:2+hlen]...)}, nil
}
