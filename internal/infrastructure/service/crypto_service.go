package service

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"ikedadada/go-torcircuit/internal/domain/service"
)

// cryptoServiceImpl implements service.CryptoService with x/crypto.
type cryptoServiceImpl struct {
	rand io.Reader
}

// NewCryptoService returns a CryptoService backed by crypto/rand.
func NewCryptoService() service.CryptoService { return &cryptoServiceImpl{rand: rand.Reader} }

// NewCryptoServiceWithRand draws key material from r. Tests use it to
// make handshakes reproducible.
func NewCryptoServiceWithRand(r io.Reader) service.CryptoService {
	return &cryptoServiceImpl{rand: r}
}

func (c *cryptoServiceImpl) X25519Generate() (priv, pub [32]byte, err error) {
	if _, err = io.ReadFull(c.rand, priv[:]); err != nil {
		return priv, pub, fmt.Errorf("x25519 keygen: %w", err)
	}
	p, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return priv, pub, err
	}
	copy(pub[:], p)
	return priv, pub, nil
}

func (c *cryptoServiceImpl) X25519Shared(priv, pub [32]byte) ([32]byte, error) {
	var out [32]byte
	s, err := curve25519.X25519(priv[:], pub[:])
	if err != nil {
		return out, fmt.Errorf("x25519: %w", err)
	}
	copy(out[:], s)
	return out, nil
}

func (c *cryptoServiceImpl) HMACSHA256(key, msg []byte) []byte {
	m := hmac.New(sha256.New, key)
	m.Write(msg)
	return m.Sum(nil)
}

func (c *cryptoServiceImpl) HKDFExpand(prk, info []byte, n int) ([]byte, error) {
	out := make([]byte, n)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, prk, info), out); err != nil {
		return nil, fmt.Errorf("hkdf expand: %w", err)
	}
	return out, nil
}
