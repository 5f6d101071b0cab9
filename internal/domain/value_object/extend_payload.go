package value_object

import (
	"fmt"
)

// Extend2Payload carries the information needed to extend a circuit to
// the next hop: where it is and the handshake addressed to it.
type Extend2Payload struct {
	Specifiers []LinkSpecifier
	Handshake  Create2Payload
}

// MarshalBinary encodes NSPEC | (LSTYPE LSLEN LSPEC)* | HTYPE | HLEN | HDATA.
func (p Extend2Payload) MarshalBinary() ([]byte, error) {
	if len(p.Specifiers) == 0 || len(p.Specifiers) > 0xff {
		return nil, fmt.Errorf("extend2 needs 1..255 link specifiers, got %d", len(p.Specifiers))
	}
	b := []byte{byte(len(p.Specifiers))}
	for _, ls := range p.Specifiers {
		if err := ls.validate(); err != nil {
			return nil, err
		}
		b = append(b, byte(ls.Type), byte(len(ls.Data)))
		b = append(b, ls.Data...)
	}
	hs, err := p.Handshake.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return append(b, hs...), nil
}

// ParseExtend2Payload decodes an EXTEND2 body. Unknown specifier types are
// kept as-is.
func ParseExtend2Payload(b []byte) (Extend2Payload, error) {
	if len(b) < 1 {
		return Extend2Payload{}, fmt.Errorf("extend2 payload empty")
	}
	n := int(b[0])
	rest := b[1:]
	specs := make([]LinkSpecifier, 0, n)
	for i := 0; i < n; i++ {
		if len(rest) < 2 {
			return Extend2Payload{}, fmt.Errorf("extend2 link specifier %d truncated", i)
		}
		t, l := LinkSpecifierType(rest[0]), int(rest[1])
		if len(rest) < 2+l {
			return Extend2Payload{}, fmt.Errorf("extend2 link specifier %d truncated", i)
		}
		ls := LinkSpecifier{Type: t, Data: append([]byte(nil), rest[2:2+l]...)}
		if err := ls.validate(); err != nil {
			return Extend2Payload{}, err
		}
		specs = append(specs, ls)
		rest = rest[2+l:]
	}
	hs, err := ParseCreate2Payload(rest)
	if err != nil {
		return Extend2Payload{}, fmt.Errorf("extend2 handshake: %w", err)
	}
	return Extend2Payload{Specifiers: specs, Handshake: hs}, nil
}

// Fingerprint returns the legacy identity specifier, if present.
func (p Extend2Payload) Fingerprint() (Fingerprint, bool) {
	for _, ls := range p.Specifiers {
		if ls.Type == LinkSpecLegacyID {
			fp, err := FingerprintFromBytes(ls.Data)
			return fp, err == nil
		}
	}
	return Fingerprint{}, false
}
