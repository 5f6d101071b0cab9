package service

import (
	"bytes"
	"crypto/subtle"
	"errors"
	"fmt"

	"ikedadada/go-torcircuit/internal/domain"
	"ikedadada/go-torcircuit/internal/domain/entity"
	vo "ikedadada/go-torcircuit/internal/domain/value_object"
)

var (
	errNtorReplayedState = errors.New("ntor client state already used")
	errNtorZeroSecret    = errors.New("ntor produced an all-zero shared secret")
)

// ntorHandshakeServiceImpl implements HandshakeService and HandshakeResponder
type ntorHandshakeServiceImpl struct {
	crypto CryptoService
}

// NewHandshakeService returns the ntor client.
func NewHandshakeService(c CryptoService) HandshakeService {
	return &ntorHandshakeServiceImpl{crypto: c}
}

// NewHandshakeResponder returns the ntor responder.
func NewHandshakeResponder(c CryptoService) HandshakeResponder {
	return &ntorHandshakeServiceImpl{crypto: c}
}

func (s *ntorHandshakeServiceImpl) BuildCreate2(desc *entity.RelayDescriptor) (vo.Create2Payload, *NtorClientState, error) {
	x, X, err := s.crypto.X25519Generate()
	if err != nil {
		return vo.Create2Payload{}, nil, fmt.Errorf("generate ephemeral key: %w", err)
	}
	st := &NtorClientState{
		relay:    desc.Fingerprint(),
		onionKey: desc.NtorOnionKey(),
		x:        x,
		X:        X,
	}
	hdata := make([]byte, 0, NtorClientHandshakeLen)
	hdata = append(hdata, st.relay[:]...)
	hdata = append(hdata, st.onionKey[:]...)
	hdata = append(hdata, X[:]...)
	return vo.Create2Payload{HType: vo.HandshakeNtor, HData: hdata}, st, nil
}

func (s *ntorHandshakeServiceImpl) CompleteHandshake(desc *entity.RelayDescriptor, st *NtorClientState, reply vo.Created2Payload) (*entity.HopCryptoState, error) {
	const op = "ntor handshake"
	relay := desc.Fingerprint()
	if st == nil || st.used {
		return nil, domain.NewProtocolError(op, relay, errNtorReplayedState)
	}
	defer st.Wipe()
	if st.relay != relay || st.onionKey != desc.NtorOnionKey() {
		return nil, domain.NewProtocolError(op, relay, fmt.Errorf("reply for %s answered by %s", st.relay, relay))
	}
	if len(reply.HData) != NtorServerHandshakeLen {
		return nil, domain.NewProtocolError(op, relay, fmt.Errorf("server handshake is %d bytes, want %d", len(reply.HData), NtorServerHandshakeLen))
	}
	var Y [32]byte
	copy(Y[:], reply.HData[:32])
	auth := reply.HData[32:]

	xy, err := s.crypto.X25519Shared(st.x, Y)
	if err != nil {
		return nil, domain.NewProtocolError(op, relay, err)
	}
	xb, err := s.crypto.X25519Shared(st.x, st.onionKey)
	if err != nil {
		return nil, domain.NewProtocolError(op, relay, err)
	}
	keys, expected, err := s.derive(xy, xb, relay, st.onionKey, st.X, Y)
	if err != nil {
		return nil, domain.NewProtocolError(op, relay, err)
	}
	if subtle.ConstantTimeCompare(expected, auth) != 1 {
		keys.Wipe()
		return nil, domain.NewHandshakeAuthError(op, relay, errors.New("server AUTH does not match"))
	}
	defer keys.Wipe()
	return entity.NewHopCryptoState(relay, keys)
}

func (s *ntorHandshakeServiceImpl) ServerHandshake(k NtorServerKeys, req vo.Create2Payload) (vo.Created2Payload, *entity.HopCryptoState, error) {
	const op = "ntor responder"
	if req.HType != vo.HandshakeNtor {
		return vo.Created2Payload{}, nil, domain.NewProtocolError(op, k.Identity, fmt.Errorf("unsupported handshake type %s", req.HType))
	}
	if len(req.HData) != NtorClientHandshakeLen {
		return vo.Created2Payload{}, nil, domain.NewProtocolError(op, k.Identity, fmt.Errorf("client handshake is %d bytes, want %d", len(req.HData), NtorClientHandshakeLen))
	}
	if !bytes.Equal(req.HData[:20], k.Identity[:]) || !bytes.Equal(req.HData[20:52], k.OnionKey[:]) {
		return vo.Created2Payload{}, nil, domain.NewProtocolError(op, k.Identity, errors.New("handshake addressed to another relay"))
	}
	var X [32]byte
	copy(X[:], req.HData[52:])

	y, Y, err := s.crypto.X25519Generate()
	if err != nil {
		return vo.Created2Payload{}, nil, err
	}
	defer func() { y = [32]byte{} }()
	xy, err := s.crypto.X25519Shared(y, X)
	if err != nil {
		return vo.Created2Payload{}, nil, domain.NewProtocolError(op, k.Identity, err)
	}
	xb, err := s.crypto.X25519Shared(k.OnionPriv, X)
	if err != nil {
		return vo.Created2Payload{}, nil, domain.NewProtocolError(op, k.Identity, err)
	}
	keys, auth, err := s.derive(xy, xb, k.Identity, k.OnionKey, X, Y)
	if err != nil {
		return vo.Created2Payload{}, nil, err
	}
	defer keys.Wipe()
	hop, err := entity.NewHopCryptoState(k.Identity, keys)
	if err != nil {
		return vo.Created2Payload{}, nil, err
	}
	hdata := make([]byte, 0, NtorServerHandshakeLen)
	hdata = append(hdata, Y[:]...)
	hdata = append(hdata, auth...)
	return vo.Created2Payload{HData: hdata}, hop, nil
}

// derive computes the hop keys and the AUTH value both sides agree on.
//
//	secret_input = EXP(Y,x) | EXP(B,x) | ID | B | X | Y | PROTOID
//	KEY_SEED     = H(secret_input, t_key)
//	verify       = H(secret_input, t_verify)
//	auth_input   = verify | ID | B | Y | X | PROTOID | "Server"
//	AUTH         = H(auth_input, t_mac)
func (s *ntorHandshakeServiceImpl) derive(xy, xb [32]byte, id vo.Fingerprint, B vo.NtorOnionKey, X, Y [32]byte) (entity.HopKeys, []byte, error) {
	var zero [32]byte
	if xy == zero || xb == zero {
		return entity.HopKeys{}, nil, errNtorZeroSecret
	}
	secret := make([]byte, 0, 32*5+len(id)+len(NtorProtoID))
	secret = append(secret, xy[:]...)
	secret = append(secret, xb[:]...)
	secret = append(secret, id[:]...)
	secret = append(secret, B[:]...)
	secret = append(secret, X[:]...)
	secret = append(secret, Y[:]...)
	secret = append(secret, NtorProtoID...)
	defer clear(secret)

	keySeed := s.crypto.HMACSHA256([]byte(ntorTKey), secret)
	defer clear(keySeed)
	verify := s.crypto.HMACSHA256([]byte(ntorTVerify), secret)

	authInput := make([]byte, 0, len(verify)+len(id)+32*3+len(NtorProtoID)+6)
	authInput = append(authInput, verify...)
	authInput = append(authInput, id[:]...)
	authInput = append(authInput, B[:]...)
	authInput = append(authInput, Y[:]...)
	authInput = append(authInput, X[:]...)
	authInput = append(authInput, NtorProtoID...)
	authInput = append(authInput, "Server"...)
	auth := s.crypto.HMACSHA256([]byte(ntorTMac), authInput)

	material, err := s.crypto.HKDFExpand(keySeed, []byte(ntorMExpand), entity.HopKeyMaterialLen)
	if err != nil {
		return entity.HopKeys{}, nil, err
	}
	defer clear(material)
	keys, err := entity.HopKeysFromMaterial(material)
	return keys, auth, err
}
