package service_test

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/curve25519"

	"ikedadada/go-torcircuit/internal/domain"
	"ikedadada/go-torcircuit/internal/domain/entity"
	"ikedadada/go-torcircuit/internal/domain/service"
	vo "ikedadada/go-torcircuit/internal/domain/value_object"
	infra "ikedadada/go-torcircuit/internal/infrastructure/service"
)

// fixedCrypto hands out a scripted sequence of X25519 private keys.
type fixedCrypto struct {
	service.CryptoService
	privs [][32]byte
}

func (f *fixedCrypto) X25519Generate() (priv, pub [32]byte, err error) {
	priv, f.privs = f.privs[0], f.privs[1:]
	p, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	copy(pub[:], p)
	return priv, pub, err
}

func key(b byte) [32]byte {
	var k [32]byte
	for i := range k {
		k[i] = b + byte(i)
	}
	return k
}

type testRelay struct {
	desc *entity.RelayDescriptor
	keys service.NtorServerKeys
}

func newTestRelay(t *testing.T, onionPriv [32]byte) testRelay {
	t.Helper()
	pub, err := curve25519.X25519(onionPriv[:], curve25519.Basepoint)
	require.NoError(t, err)
	var fp vo.Fingerprint
	copy(fp[:], bytes.Repeat([]byte{0x5a}, vo.FingerprintSize))
	onion, err := vo.NtorOnionKeyFromBytes(pub)
	require.NoError(t, err)
	d, err := entity.NewRelayDescriptor(entity.RelayDescriptorParams{
		Nickname:     "fixed",
		Address:      "127.0.0.1",
		ORPort:       9001,
		Fingerprint:  fp.String(),
		NtorOnionKey: onion.String(),
	})
	require.NoError(t, err)
	return testRelay{desc: d, keys: service.NtorServerKeys{Identity: fp, OnionKey: onion, OnionPriv: onionPriv}}
}

// handshake runs one full exchange and returns the reply and both hop
// states.
func handshake(t *testing.T, cs service.CryptoService, r testRelay) (vo.Create2Payload, vo.Created2Payload, *entity.HopCryptoState, *entity.HopCryptoState) {
	t.Helper()
	client := service.NewHandshakeService(cs)
	server := service.NewHandshakeResponder(cs)

	req, st, err := client.BuildCreate2(r.desc)
	require.NoError(t, err)
	require.Len(t, req.HData, service.NtorClientHandshakeLen)
	reply, serverHop, err := server.ServerHandshake(r.keys, req)
	require.NoError(t, err)
	require.Len(t, reply.HData, service.NtorServerHandshakeLen)
	clientHop, err := client.CompleteHandshake(r.desc, st, reply)
	require.NoError(t, err)
	return req, reply, clientHop, serverHop
}

func TestNtor_DeterministicWithFixedKeys(t *testing.T) {
	r := newTestRelay(t, key(0x40))
	run := func() (vo.Create2Payload, vo.Created2Payload, []byte) {
		cs := &fixedCrypto{CryptoService: infra.NewCryptoService(), privs: [][32]byte{key(0x10), key(0x20)}}
		req, reply, clientHop, serverHop := handshake(t, cs, r)

		body, err := entity.RelayCell{Cmd: vo.RelayData, StreamID: 1, Data: []byte("hello")}.Encode(bytes.NewReader(make([]byte, 512)))
		require.NoError(t, err)
		clientHop.SealForward(body)
		clientHop.ApplyForward(body)
		wire := append([]byte(nil), body...)

		serverHop.ApplyForward(body)
		require.True(t, serverHop.VerifyForward(body))
		rc, err := entity.DecodeRelayCell(body)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(rc.Data))
		return req, reply, wire
	}

	req1, reply1, wire1 := run()
	req2, reply2, wire2 := run()
	assert.Equal(t, req1.HData, req2.HData)
	assert.Equal(t, reply1.HData, reply2.HData)
	assert.Equal(t, wire1, wire2)

	// HDATA is ID | B | X.
	assert.Equal(t, r.keys.Identity[:], req1.HData[:20])
	assert.Equal(t, r.keys.OnionKey[:], req1.HData[20:52])
}

// Known answers for x = key(0x10), y = key(0x20), b = key(0x40) and
// ID = 5a*20, computed with a separate tor-spec 5.1.4 implementation.
const (
	katX    = "d89e3bad79437dbed9f843418304f460ff05c7fe81fe4a9577a804cb9367ff66"
	katY    = "358072d6365880d1aeea329adf9121383851ed21a28e3b75e965d0d2cd166254"
	katB    = "79a631eede1bf9c98f12032cdeadd0e7a079398fc786b88cc846ec89af85a51a"
	katAuth = "6d59b018ebeaf66ba81dc85c9ec45924449f51645c19db91a06909b00d580b3b"
	katDf   = "8085fb484d28edef4af517280b047a622f3d61f6"
	katDb   = "76a14133086f393faf4a936af5a409ca7f75891a"
	katKf   = "eeba4d2e71798471fab967ba262a0e66"
	katKb   = "b702ed810c58d8d1446fe0a395fab172"
)

func TestNtor_KnownAnswer(t *testing.T) {
	unhex := func(s string) []byte {
		b, err := hex.DecodeString(s)
		require.NoError(t, err)
		return b
	}
	r := newTestRelay(t, key(0x40))
	require.Equal(t, unhex(katB), r.keys.OnionKey[:])

	cs := &fixedCrypto{CryptoService: infra.NewCryptoService(), privs: [][32]byte{key(0x10), key(0x20)}}
	req, reply, clientHop, serverHop := handshake(t, cs, r)
	assert.Equal(t, unhex(katX), req.HData[52:])
	assert.Equal(t, unhex(katY), reply.HData[:32])
	assert.Equal(t, unhex(katAuth), reply.HData[32:])

	var keys entity.HopKeys
	copy(keys.Df[:], unhex(katDf))
	copy(keys.Db[:], unhex(katDb))
	copy(keys.Kf[:], unhex(katKf))
	copy(keys.Kb[:], unhex(katKb))
	want, err := entity.NewHopCryptoState(r.keys.Identity, keys)
	require.NoError(t, err)

	cell := func() []byte {
		body, err := entity.RelayCell{Cmd: vo.RelayData, StreamID: 1, Data: []byte("kat")}.Encode(bytes.NewReader(make([]byte, 512)))
		require.NoError(t, err)
		return body
	}

	// Forward: Df and Kf.
	got, exp := cell(), cell()
	clientHop.SealForward(got)
	clientHop.ApplyForward(got)
	want.SealForward(exp)
	want.ApplyForward(exp)
	assert.Equal(t, exp, got)

	// Backward: Db and Kb.
	back := cell()
	serverHop.SealBackward(back)
	serverHop.ApplyBackward(back)
	want.ApplyBackward(back)
	require.True(t, want.VerifyBackward(back))
}

func TestNtor_BackwardDirection(t *testing.T) {
	r := newTestRelay(t, key(0x40))
	_, _, clientHop, serverHop := handshake(t, infra.NewCryptoService(), r)

	body, err := entity.RelayCell{Cmd: vo.RelayExtended2, Data: []byte{0, 0}}.Encode(rand.Reader)
	require.NoError(t, err)
	serverHop.SealBackward(body)
	serverHop.ApplyBackward(body)

	clientHop.ApplyBackward(body)
	assert.True(t, clientHop.VerifyBackward(body))
}

func TestNtor_AuthBitFlipRejected(t *testing.T) {
	r := newTestRelay(t, key(0x40))
	cs := infra.NewCryptoService()
	client := service.NewHandshakeService(cs)
	server := service.NewHandshakeResponder(cs)

	for bit := 0; bit < 32*8; bit += 7 {
		req, st, err := client.BuildCreate2(r.desc)
		require.NoError(t, err)
		reply, _, err := server.ServerHandshake(r.keys, req)
		require.NoError(t, err)

		reply.HData[32+bit/8] ^= 1 << (bit % 8)
		_, err = client.CompleteHandshake(r.desc, st, reply)
		require.Error(t, err, "bit %d", bit)
		assert.True(t, domain.IsKind(err, domain.KindHandshakeAuth), "bit %d: %v", bit, err)
	}
}

func TestNtor_ClientStateIsSingleUse(t *testing.T) {
	r := newTestRelay(t, key(0x40))
	cs := infra.NewCryptoService()
	client := service.NewHandshakeService(cs)
	req, st, err := client.BuildCreate2(r.desc)
	require.NoError(t, err)
	reply, _, err := service.NewHandshakeResponder(cs).ServerHandshake(r.keys, req)
	require.NoError(t, err)

	_, err = client.CompleteHandshake(r.desc, st, reply)
	require.NoError(t, err)
	_, err = client.CompleteHandshake(r.desc, st, reply)
	assert.True(t, domain.IsKind(err, domain.KindProtocol))
}

func TestNtor_MalformedReplies(t *testing.T) {
	r := newTestRelay(t, key(0x40))
	other := newTestRelay(t, key(0x60))
	cs := infra.NewCryptoService()
	client := service.NewHandshakeService(cs)

	tests := []struct {
		name  string
		desc  *entity.RelayDescriptor
		reply vo.Created2Payload
	}{
		{"short reply", r.desc, vo.Created2Payload{HData: make([]byte, 40)}},
		{"long reply", r.desc, vo.Created2Payload{HData: make([]byte, 80)}},
		{"zero Y", r.desc, vo.Created2Payload{HData: make([]byte, 64)}},
		{"answered by another relay", other.desc, vo.Created2Payload{HData: make([]byte, 64)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, st, err := client.BuildCreate2(r.desc)
			require.NoError(t, err)
			_, err = client.CompleteHandshake(tt.desc, st, tt.reply)
			require.Error(t, err)
			assert.True(t, domain.IsKind(err, domain.KindProtocol), "%v", err)
		})
	}
}

func TestNtor_ResponderRejects(t *testing.T) {
	r := newTestRelay(t, key(0x40))
	other := newTestRelay(t, key(0x60))
	cs := infra.NewCryptoService()
	req, _, err := service.NewHandshakeService(cs).BuildCreate2(r.desc)
	require.NoError(t, err)
	server := service.NewHandshakeResponder(cs)

	tests := []struct {
		name string
		keys service.NtorServerKeys
		req  vo.Create2Payload
	}{
		{"wrong onion key", other.keys, req},
		{"short hdata", r.keys, vo.Create2Payload{HType: vo.HandshakeNtor, HData: req.HData[:60]}},
		{"tap handshake", r.keys, vo.Create2Payload{HType: vo.HandshakeTAP, HData: req.HData}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := server.ServerHandshake(tt.keys, tt.req)
			assert.True(t, domain.IsKind(err, domain.KindProtocol), "%v", err)
		})
	}
}
