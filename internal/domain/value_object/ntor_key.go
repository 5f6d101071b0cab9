package value_object

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const NtorKeySize = 32

// NtorOnionKey is a relay's curve25519 onion key, B in the ntor handshake.
type NtorOnionKey [NtorKeySize]byte

// NtorOnionKeyFromBase64 decodes a base64 key. Directory documents publish
// it without padding, so both padded and unpadded input are accepted.
func NtorOnionKeyFromBase64(s string) (NtorOnionKey, error) {
	raw := strings.TrimRight(strings.TrimSpace(s), "=")
	b, err := base64.RawStdEncoding.DecodeString(raw)
	if err != nil {
		return NtorOnionKey{}, fmt.Errorf("decode ntor onion key: %w", err)
	}
	return NtorOnionKeyFromBytes(b)
}

func NtorOnionKeyFromBytes(b []byte) (NtorOnionKey, error) {
	var k NtorOnionKey
	if len(b) != NtorKeySize {
		return k, fmt.Errorf("ntor onion key must be %d bytes, got %d", NtorKeySize, len(b))
	}
	copy(k[:], b)
	return k, nil
}

func (k NtorOnionKey) IsZero() bool   { return k == NtorOnionKey{} }
func (k NtorOnionKey) Bytes() []byte  { return append([]byte(nil), k[:]...) }
func (k NtorOnionKey) String() string { return base64.RawStdEncoding.EncodeToString(k[:]) }
