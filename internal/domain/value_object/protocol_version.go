package value_object

import (
	"encoding/binary"
	"fmt"
)

// LinkVersion is a negotiated link protocol version.
type LinkVersion uint16

const (
	LinkV3 LinkVersion = 3
	LinkV4 LinkVersion = 4
	LinkV5 LinkVersion = 5
)

// SupportedLinkVersions are the versions we offer in our VERSIONS cell.
// Both use 4-byte circuit ids.
var SupportedLinkVersions = []LinkVersion{LinkV4, LinkV5}

// String returns the string representation of the link version
func (v LinkVersion) String() string { return fmt.Sprintf("v%d", uint16(v)) }

// IsSupported checks if the link version is one we speak
func (v LinkVersion) IsSupported() bool {
	for _, s := range SupportedLinkVersions {
		if s == v {
			return true
		}
	}
	return false
}

// CircIDLen is the width of the circuit id field in cells of this version.
func (v LinkVersion) CircIDLen() int {
	if v < LinkV4 {
		return 2
	}
	return 4
}

// NegotiateLinkVersion returns the highest version present in both lists.
func NegotiateLinkVersion(ours, theirs []LinkVersion) (LinkVersion, bool) {
	var best LinkVersion
	for _, o := range ours {
		for _, t := range theirs {
			if o == t && o > best {
				best = o
			}
		}
	}
	return best, best != 0
}

// EncodeVersions builds a VERSIONS cell body.
func EncodeVersions(vs []LinkVersion) []byte {
	b := make([]byte, 2*len(vs))
	for i, v := range vs {
		binary.BigEndian.PutUint16(b[2*i:], uint16(v))
	}
	return b
}

// DecodeVersions parses a VERSIONS cell body.
func DecodeVersions(b []byte) ([]LinkVersion, error) {
	if len(b)%2 != 0 {
		return nil, fmt.Errorf("versions payload has odd length %d", len(b))
	}
	vs := make([]LinkVersion, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		vs = append(vs, LinkVersion(binary.BigEndian.Uint16(b[i:])))
	}
	return vs, nil
}
