package value_object

import (
	"encoding/binary"
	"fmt"
)

// CertType identifies a certificate inside a CERTS cell.
type CertType byte

const (
	CertTypeLink        CertType = 1 // X.509 TLS link key, signed by the identity key
	CertTypeRSAIdentity CertType = 2 // self-signed X.509 RSA identity
	CertTypeRSAAuth     CertType = 3
	CertTypeEd25519Sign CertType = 4
	CertTypeEd25519Link CertType = 5
	CertTypeEd25519Auth CertType = 6
	CertTypeRSACrossEd  CertType = 7
)

type CertEntry struct {
	Type CertType
	Body []byte
}

// CertsPayload is the body of a CERTS cell.
type CertsPayload struct {
	Certs []CertEntry
}

func (p CertsPayload) MarshalBinary() ([]byte, error) {
	if len(p.Certs) > 0xff {
		return nil, fmt.Errorf("too many certificates: %d", len(p.Certs))
	}
	b := []byte{byte(len(p.Certs))}
	for _, c := range p.Certs {
		if len(c.Body) > 0xffff {
			return nil, fmt.Errorf("certificate type %d too long: %d", c.Type, len(c.Body))
		}
		var hdr [3]byte
		hdr[0] = byte(c.Type)
		binary.BigEndian.PutUint16(hdr[1:], uint16(len(c.Body)))
		b = append(b, hdr[:]...)
		b = append(b, c.Body...)
	}
	return b, nil
}

func ParseCertsPayload(b []byte) (CertsPayload, error) {
	if len(b) < 1 {
		return CertsPayload{}, fmt.Errorf("certs payload empty")
	}
	n := int(b[0])
	rest := b[1:]
	out := CertsPayload{Certs: make([]CertEntry, 0, n)}
	for i := 0; i < n; i++ {
		if len(rest) < 3 {
			return CertsPayload{}, fmt.Errorf("certificate %d truncated", i)
		}
		l := int(binary.BigEndian.Uint16(rest[1:]))
		if len(rest) < 3+l {
			return CertsPayload{}, fmt.Errorf("certificate %d truncated", i)
		}
		out.Certs = append(out.Certs, CertEntry{
			Type: CertType(rest[0]),
			Body: append([]byte(nil), rest[3:3+l]...),
		})
		rest = rest[3+l:]
	}
	return out, nil
}

// Find returns the single certificate of type t. Duplicates are an error.
func (p CertsPayload) Find(t CertType) ([]byte, error) {
	var found []byte
	for _, c := range p.Certs {
		if c.Type != t {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("duplicate certificate type %d", t)
		}
		found = c.Body
	}
	if found == nil {
		return nil, fmt.Errorf("missing certificate type %d", t)
	}
	return found, nil
}
