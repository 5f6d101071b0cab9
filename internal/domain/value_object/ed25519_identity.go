package value_object

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const Ed25519IdentitySize = 32

// Ed25519Identity is a relay's long-term ed25519 identity key. It is
// optional in a descriptor and only used as an EXTEND2 link specifier.
type Ed25519Identity [Ed25519IdentitySize]byte

func Ed25519IdentityFromBase64(s string) (Ed25519Identity, error) {
	var id Ed25519Identity
	b, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(strings.TrimSpace(s), "="))
	if err != nil {
		return id, fmt.Errorf("decode ed25519 identity: %w", err)
	}
	if len(b) != Ed25519IdentitySize {
		return id, fmt.Errorf("ed25519 identity must be %d bytes, got %d", Ed25519IdentitySize, len(b))
	}
	copy(id[:], b)
	return id, nil
}

func (id Ed25519Identity) IsZero() bool   { return id == Ed25519Identity{} }
func (id Ed25519Identity) String() string { return base64.RawStdEncoding.EncodeToString(id[:]) }
