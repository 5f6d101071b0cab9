// Package crypto holds the X.509 handling of the link handshake: checking
// the certificates a relay presents in its CERTS cell, and issuing such
// certificates for relays we run ourselves.
package crypto

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"time"

	"github.com/pkg/errors"

	"ikedadada/go-torcircuit/internal/domain"
	vo "ikedadada/go-torcircuit/internal/domain/value_object"
)

// VerifyLinkCerts checks a responder's CERTS cell against the TLS peer
// certificate and the identity we expect to reach. It returns the proven
// identity.
//
// The RSA identity certificate must be self-signed and hash to expected;
// the link certificate must be signed by it and certify the key the TLS
// session was made with. Ed25519 certificates are not examined.
func VerifyLinkCerts(p vo.CertsPayload, tlsLeaf *x509.Certificate, expected vo.Fingerprint, now time.Time) (vo.Fingerprint, error) {
	idDER, err := p.Find(vo.CertTypeRSAIdentity)
	if err != nil {
		return vo.Fingerprint{}, errors.Wrap(domain.ErrIdentityMismatch, err.Error())
	}
	linkDER, err := p.Find(vo.CertTypeLink)
	if err != nil {
		return vo.Fingerprint{}, errors.Wrap(domain.ErrIdentityMismatch, err.Error())
	}
	idCert, err := x509.ParseCertificate(idDER)
	if err != nil {
		return vo.Fingerprint{}, errors.Wrap(err, "parse identity certificate")
	}
	idPub, ok := idCert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return vo.Fingerprint{}, errors.Wrap(domain.ErrIdentityMismatch, "identity certificate is not RSA")
	}
	if err := checkSignedBy(idCert, idPub); err != nil {
		return vo.Fingerprint{}, errors.Wrap(domain.ErrIdentityMismatch, "identity certificate not self-signed: "+err.Error())
	}
	got := vo.RSAPubKey{PublicKey: idPub}.Fingerprint()
	if got != expected {
		return got, errors.Wrapf(domain.ErrIdentityMismatch, "relay proved %s, want %s", got, expected)
	}

	linkCert, err := x509.ParseCertificate(linkDER)
	if err != nil {
		return got, errors.Wrap(err, "parse link certificate")
	}
	if err := checkSignedBy(linkCert, idPub); err != nil {
		return got, errors.Wrap(domain.ErrIdentityMismatch, "link certificate not signed by identity: "+err.Error())
	}
	if tlsLeaf == nil || !bytes.Equal(linkCert.RawSubjectPublicKeyInfo, tlsLeaf.RawSubjectPublicKeyInfo) {
		return got, errors.Wrap(domain.ErrIdentityMismatch, "link certificate does not match TLS key")
	}
	for _, c := range []*x509.Certificate{idCert, linkCert} {
		if now.Before(c.NotBefore) || now.After(c.NotAfter) {
			return got, errors.Wrapf(domain.ErrIdentityMismatch, "certificate %q outside validity period", c.Subject.CommonName)
		}
	}
	return got, nil
}

// checkSignedBy verifies cert's signature with pub. Relays still sign with
// SHA-1, which x509.Certificate.CheckSignature refuses, and the identity
// certificate is not a CA, so the check is done by hand.
func checkSignedBy(cert *x509.Certificate, pub *rsa.PublicKey) error {
	var (
		h      crypto.Hash
		digest []byte
	)
	switch cert.SignatureAlgorithm {
	case x509.SHA1WithRSA:
		sum := sha1.Sum(cert.RawTBSCertificate)
		h, digest = crypto.SHA1, sum[:]
	case x509.SHA256WithRSA:
		sum := sha256.Sum256(cert.RawTBSCertificate)
		h, digest = crypto.SHA256, sum[:]
	default:
		return errors.Errorf("unsupported signature algorithm %s", cert.SignatureAlgorithm)
	}
	return rsa.VerifyPKCS1v15(pub, h, digest, cert.Signature)
}
