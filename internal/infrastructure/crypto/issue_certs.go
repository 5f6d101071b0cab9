package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"time"

	"github.com/pkg/errors"

	vo "ikedadada/go-torcircuit/internal/domain/value_object"
)

// IdentityKeyBits matches the RSA-1024 identity keys relays publish.
const IdentityKeyBits = 1024

// RelayCredentials are the link-layer secrets of a relay we operate.
type RelayCredentials struct {
	IdentityKey  *rsa.PrivateKey
	IdentityCert []byte // DER, self-signed
	LinkCert     []byte // DER, signed by IdentityKey
	TLS          tls.Certificate
}

// Fingerprint is the identity digest clients expect.
func (c *RelayCredentials) Fingerprint() vo.Fingerprint {
	return vo.RSAPubKey{PublicKey: &c.IdentityKey.PublicKey}.Fingerprint()
}

// Certs builds the CERTS cell body announcing these credentials.
func (c *RelayCredentials) Certs() vo.CertsPayload {
	return vo.CertsPayload{Certs: []vo.CertEntry{
		{Type: vo.CertTypeLink, Body: c.LinkCert},
		{Type: vo.CertTypeRSAIdentity, Body: c.IdentityCert},
	}}
}

// NewRelayCredentials creates a fresh identity key, its self-signed
// certificate, and a TLS link key certified by the identity.
func NewRelayCredentials(nickname string, lifetime time.Duration) (*RelayCredentials, error) {
	idKey, err := rsa.GenerateKey(rand.Reader, IdentityKeyBits)
	if err != nil {
		return nil, errors.Wrap(err, "generate identity key")
	}
	return IssueRelayCredentials(idKey, nickname, lifetime)
}

// IssueRelayCredentials certifies a new link key under an existing
// identity key.
func IssueRelayCredentials(idKey *rsa.PrivateKey, nickname string, lifetime time.Duration) (*RelayCredentials, error) {
	now := time.Now().Add(-time.Minute)
	idTmpl := &x509.Certificate{
		SerialNumber:       serial(),
		Subject:            pkix.Name{CommonName: nickname + " identity"},
		NotBefore:          now,
		NotAfter:           now.Add(lifetime),
		SignatureAlgorithm: x509.SHA256WithRSA,
	}
	idDER, err := x509.CreateCertificate(rand.Reader, idTmpl, idTmpl, &idKey.PublicKey, idKey)
	if err != nil {
		return nil, errors.Wrap(err, "self-sign identity certificate")
	}
	idCert, err := x509.ParseCertificate(idDER)
	if err != nil {
		return nil, err
	}

	linkKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "generate link key")
	}
	linkTmpl := &x509.Certificate{
		SerialNumber:       serial(),
		Subject:            pkix.Name{CommonName: nickname + " link"},
		NotBefore:          now,
		NotAfter:           now.Add(lifetime),
		SignatureAlgorithm: x509.SHA256WithRSA,
	}
	linkDER, err := x509.CreateCertificate(rand.Reader, linkTmpl, idCert, &linkKey.PublicKey, idKey)
	if err != nil {
		return nil, errors.Wrap(err, "sign link certificate")
	}
	return &RelayCredentials{
		IdentityKey:  idKey,
		IdentityCert: idDER,
		LinkCert:     linkDER,
		TLS:          tls.Certificate{Certificate: [][]byte{linkDER}, PrivateKey: linkKey},
	}, nil
}

func serial() *big.Int {
	n, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return big.NewInt(time.Now().UnixNano())
	}
	return n
}
