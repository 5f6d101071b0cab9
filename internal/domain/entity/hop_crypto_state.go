package entity

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1"
	"crypto/subtle"
	"encoding"
	"fmt"
	"hash"

	vo "ikedadada/go-torcircuit/internal/domain/value_object"
)

const (
	HopDigestKeyLen = sha1.Size
	HopCipherKeyLen = 16
	// HopKeyMaterialLen is Df | Db | Kf | Kb as produced by the handshake KDF.
	HopKeyMaterialLen = 2*HopDigestKeyLen + 2*HopCipherKeyLen
)

// HopKeys is the symmetric material negotiated with one relay.
type HopKeys struct {
	Df, Db [HopDigestKeyLen]byte
	Kf, Kb [HopCipherKeyLen]byte
}

// HopKeysFromMaterial splits KDF output into digest seeds and cipher keys.
func HopKeysFromMaterial(k []byte) (HopKeys, error) {
	var hk HopKeys
	if len(k) < HopKeyMaterialLen {
		return hk, fmt.Errorf("key material too short: %d < %d", len(k), HopKeyMaterialLen)
	}
	copy(hk.Df[:], k[0:20])
	copy(hk.Db[:], k[20:40])
	copy(hk.Kf[:], k[40:56])
	copy(hk.Kb[:], k[56:72])
	return hk, nil
}

// Wipe zeroes the key material.
func (k *HopKeys) Wipe() { *k = HopKeys{} }

// HopCryptoState is the per-hop onion layer: an AES-128-CTR stream and a
// running SHA-1 digest in each direction. The same type serves both ends
// of a hop; the client seals forward and verifies backward, a relay does
// the opposite.
type HopCryptoState struct {
	relay vo.Fingerprint

	fwdCipher cipher.Stream
	bwdCipher cipher.Stream
	fwdDigest hash.Hash
	bwdDigest hash.Hash
}

// NewHopCryptoState initialises both directions from negotiated keys.
func NewHopCryptoState(relay vo.Fingerprint, k HopKeys) (*HopCryptoState, error) {
	fwd, err := newCTR(k.Kf[:])
	if err != nil {
		return nil, err
	}
	bwd, err := newCTR(k.Kb[:])
	if err != nil {
		return nil, err
	}
	h := &HopCryptoState{
		relay:     relay,
		fwdCipher: fwd,
		bwdCipher: bwd,
		fwdDigest: sha1.New(),
		bwdDigest: sha1.New(),
	}
	h.fwdDigest.Write(k.Df[:])
	h.bwdDigest.Write(k.Db[:])
	return h, nil
}

func newCTR(key []byte) (cipher.Stream, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewCTR(block, make([]byte, aes.BlockSize)), nil
}

// Relay is the identity of the relay these keys were negotiated with.
func (h *HopCryptoState) Relay() vo.Fingerprint { return h.relay }

// ApplyForward adds or removes this hop's forward layer in place.
func (h *HopCryptoState) ApplyForward(body []byte) { h.fwdCipher.XORKeyStream(body, body) }

// ApplyBackward adds or removes this hop's backward layer in place.
func (h *HopCryptoState) ApplyBackward(body []byte) { h.bwdCipher.XORKeyStream(body, body) }

// SealForward stamps the forward digest into a plaintext relay body whose
// digest field is zero, advancing the forward digest.
func (h *HopCryptoState) SealForward(body []byte) { seal(h.fwdDigest, body) }

// SealBackward is SealForward for cells travelling towards the client.
func (h *HopCryptoState) SealBackward(body []byte) { seal(h.bwdDigest, body) }

// VerifyForward checks a decrypted body against the forward digest. The
// digest only advances when the check passes.
func (h *HopCryptoState) VerifyForward(body []byte) bool { return verify(&h.fwdDigest, body) }

// VerifyBackward checks a decrypted body against the backward digest. The
// digest only advances when the check passes.
func (h *HopCryptoState) VerifyBackward(body []byte) bool { return verify(&h.bwdDigest, body) }

// Wipe drops the cipher and digest state; the hop is unusable afterwards.
func (h *HopCryptoState) Wipe() {
	h.fwdCipher, h.bwdCipher = nil, nil
	h.fwdDigest, h.bwdDigest = nil, nil
}

func seal(d hash.Hash, body []byte) {
	clear(body[relayDigestOff : relayDigestOff+relayDigestLen])
	d.Write(body)
	sum := d.Sum(nil)
	copy(body[relayDigestOff:], sum[:relayDigestLen])
}

func verify(d *hash.Hash, body []byte) bool {
	if len(body) != vo.CellPayloadLen || !IsRecognized(body) {
		return false
	}
	var got [relayDigestLen]byte
	copy(got[:], body[relayDigestOff:])

	tmp := make([]byte, len(body))
	copy(tmp, body)
	clear(tmp[relayDigestOff : relayDigestOff+relayDigestLen])

	c, err := cloneDigest(*d)
	if err != nil {
		return false
	}
	c.Write(tmp)
	sum := c.Sum(nil)
	if subtle.ConstantTimeCompare(got[:], sum[:relayDigestLen]) != 1 {
		return false
	}
	*d = c
	return true
}

func cloneDigest(d hash.Hash) (hash.Hash, error) {
	m, ok := d.(encoding.BinaryMarshaler)
	if !ok {
		return nil, fmt.Errorf("digest state is not marshalable")
	}
	state, err := m.MarshalBinary()
	if err != nil {
		return nil, err
	}
	c := sha1.New()
	if err := c.(encoding.BinaryUnmarshaler).UnmarshalBinary(state); err != nil {
		return nil, err
	}
	return c, nil
}
