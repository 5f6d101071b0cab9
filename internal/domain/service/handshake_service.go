package service

import (
	"ikedadada/go-torcircuit/internal/domain/entity"
	vo "ikedadada/go-torcircuit/internal/domain/value_object"
)

// ntor constants (tor-spec 5.1.4).
const (
	NtorProtoID = "ntor-curve25519-sha256-1"

	ntorTMac    = NtorProtoID + ":mac"
	ntorTKey    = NtorProtoID + ":key_extract"
	ntorTVerify = NtorProtoID + ":verify"
	ntorMExpand = NtorProtoID + ":key_expand"

	// NtorClientHandshakeLen is ID | B | X.
	NtorClientHandshakeLen = vo.FingerprintSize + 2*32
	// NtorServerHandshakeLen is Y | AUTH.
	NtorServerHandshakeLen = 2 * 32
)

// NtorClientState is what the client keeps between sending CREATE2 (or
// EXTEND2) and receiving the reply. It is single use.
type NtorClientState struct {
	relay    vo.Fingerprint
	onionKey vo.NtorOnionKey
	x        [32]byte
	X        [32]byte
	used     bool
}

// Relay is the identity the handshake was addressed to.
func (s *NtorClientState) Relay() vo.Fingerprint { return s.relay }

// Wipe zeroes the ephemeral secret.
func (s *NtorClientState) Wipe() {
	s.x = [32]byte{}
	s.used = true
}

// HandshakeService is the client side of the ntor handshake.
type HandshakeService interface {
	// BuildCreate2 generates a fresh ephemeral key and the CREATE2-shaped
	// handshake addressed to desc.
	BuildCreate2(desc *entity.RelayDescriptor) (vo.Create2Payload, *NtorClientState, error)
	// CompleteHandshake authenticates the relay's reply and derives the hop
	// keys. The state is wiped whatever the outcome.
	CompleteHandshake(desc *entity.RelayDescriptor, st *NtorClientState, reply vo.Created2Payload) (*entity.HopCryptoState, error)
}

// NtorServerKeys is a relay's long-term material as the responder sees it.
type NtorServerKeys struct {
	Identity  vo.Fingerprint
	OnionKey  vo.NtorOnionKey
	OnionPriv [32]byte
}

// HandshakeResponder is the relay side of the ntor handshake.
type HandshakeResponder interface {
	// ServerHandshake answers a client handshake and returns the reply with
	// the hop state the relay keeps for the circuit.
	ServerHandshake(keys NtorServerKeys, req vo.Create2Payload) (vo.Created2Payload, *entity.HopCryptoState, error)
}
