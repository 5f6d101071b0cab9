package value_object

import (
	"encoding/binary"
	"fmt"
)

// HandshakeType is the HTYPE field of CREATE2 and EXTEND2.
type HandshakeType uint16

const (
	HandshakeTAP  HandshakeType = 0x0000
	HandshakeNtor HandshakeType = 0x0002
)

func (h HandshakeType) String() string {
	switch h {
	case HandshakeTAP:
		return "tap"
	case HandshakeNtor:
		return "ntor"
	default:
		return fmt.Sprintf("htype(%#04x)", uint16(h))
	}
}

// Create2Payload is HTYPE(2) | HLEN(2) | HDATA. The same bytes are embedded
// at the end of an EXTEND2 body.
type Create2Payload struct {
	HType HandshakeType
	HData []byte
}

func (p Create2Payload) MarshalBinary() ([]byte, error) {
	if len(p.HData) > CellPayloadLen-4 {
		return nil, fmt.Errorf("handshake data too big: %d > %d", len(p.HData), CellPayloadLen-4)
	}
	b := make([]byte, 4+len(p.HData))
	binary.BigEndian.PutUint16(b[0:], uint16(p.HType))
	binary.BigEndian.PutUint16(b[2:], uint16(len(p.HData)))
	copy(b[4:], p.HData)
	return b, nil
}

// ParseCreate2Payload reads a CREATE2 body. Bytes after HDATA are padding.
func ParseCreate2Payload(b []byte) (Create2Payload, error) {
	if len(b) < 4 {
		return Create2Payload{}, fmt.Errorf("create2 payload too short: %d", len(b))
	}
	hlen := int(binary.BigEndian.Uint16(b[2:]))
	if 4+hlen > len(b) {
		return Create2Payload{}, fmt.Errorf("create2 hlen %d exceeds payload", hlen)
	}
	return Create2Payload{
		HType: HandshakeType(binary.BigEndian.Uint16(b)),
		HData: append([]byte(nil), b[4:4+hlen]...),
	}, nil
}
