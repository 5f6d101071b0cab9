package value_object

import (
	"encoding/binary"
	"fmt"
	"io"
)

// CircuitID identifies a circuit on one link. Zero is reserved for
// link-level cells and never names a circuit.
type CircuitID uint32

// NewCircuitID draws a random circuit id from r. The initiator of a link
// always sets the most significant bit of the id width the link version
// uses, so the id can never collide with one chosen by the responder.
func NewCircuitID(r io.Reader, v LinkVersion) (CircuitID, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("read circuit id: %w", err)
	}
	if v.CircIDLen() == 2 {
		return CircuitID(binary.BigEndian.Uint16(b[:2]) | 0x8000), nil
	}
	return CircuitID(binary.BigEndian.Uint32(b[:]) | 0x80000000), nil
}

func (c CircuitID) IsZero() bool   { return c == 0 }
func (c CircuitID) String() string { return fmt.Sprintf("%08x", uint32(c)) }
