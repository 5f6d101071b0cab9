package service

// CryptoService provides the primitives the ntor handshake is built from.
type CryptoService interface {
	// X25519Generate returns a new private/public key pair for X25519.
	X25519Generate() (priv, pub [32]byte, err error)
	// X25519Shared derives a shared secret between priv and pub. Low-order
	// points that would produce an all-zero secret are rejected.
	X25519Shared(priv, pub [32]byte) ([32]byte, error)
	// HMACSHA256 computes HMAC-SHA256(key, msg).
	HMACSHA256(key, msg []byte) []byte
	// HKDFExpand expands a pseudorandom key into n bytes of key material.
	HKDFExpand(prk, info []byte, n int) ([]byte, error)
}
