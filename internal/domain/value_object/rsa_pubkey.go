package value_object

import (
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/pem"
	"errors"
)

// RSAPubKey is a relay's RSA identity key (or a link key signed by it).
type RSAPubKey struct{ *rsa.PublicKey }

func RSAPubKeyFromPEM(pemBytes []byte) (RSAPubKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return RSAPubKey{}, errors.New("no PEM data")
	}
	if block.Type == "RSA PUBLIC KEY" {
		return RSAPubKeyFromPKCS1(block.Bytes)
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return RSAPubKey{}, err
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return RSAPubKey{}, errors.New("not RSA key")
	}
	return RSAPubKey{PublicKey: rsaPub}, nil
}

func RSAPubKeyFromPKCS1(der []byte) (RSAPubKey, error) {
	pub, err := x509.ParsePKCS1PublicKey(der)
	if err != nil {
		return RSAPubKey{}, err
	}
	return RSAPubKey{PublicKey: pub}, nil
}

// Fingerprint is SHA-1 over the PKCS#1 DER encoding of the key.
func (k RSAPubKey) Fingerprint() Fingerprint {
	return Fingerprint(sha1.Sum(x509.MarshalPKCS1PublicKey(k.PublicKey)))
}

func (k RSAPubKey) ToPEM() []byte {
	b := x509.MarshalPKCS1PublicKey(k.PublicKey)
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: b})
}
