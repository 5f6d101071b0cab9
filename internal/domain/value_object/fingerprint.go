package value_object

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

const FingerprintSize = 20

// Fingerprint is the SHA-1 digest of a relay's RSA identity key.
type Fingerprint [FingerprintSize]byte

// FingerprintFromHex accepts the usual "$ABCD..." or spaced forms.
func FingerprintFromHex(s string) (Fingerprint, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "$")
	s = strings.ReplaceAll(s, " ", "")
	b, err := hex.DecodeString(s)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("decode fingerprint: %w", err)
	}
	return FingerprintFromBytes(b)
}

// FingerprintFromBase64 decodes the unpadded base64 form used in consensus
// documents. Padding is tolerated.
func FingerprintFromBase64(s string) (Fingerprint, error) {
	b, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(strings.TrimSpace(s), "="))
	if err != nil {
		return Fingerprint{}, fmt.Errorf("decode fingerprint: %w", err)
	}
	return FingerprintFromBytes(b)
}

func FingerprintFromBytes(b []byte) (Fingerprint, error) {
	var f Fingerprint
	if len(b) != FingerprintSize {
		return f, fmt.Errorf("fingerprint must be %d bytes, got %d", FingerprintSize, len(b))
	}
	copy(f[:], b)
	return f, nil
}

func (f Fingerprint) IsZero() bool   { return f == Fingerprint{} }
func (f Fingerprint) String() string { return strings.ToUpper(hex.EncodeToString(f[:])) }
