package relaysim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ikedadada/go-torcircuit/internal/domain/entity"
	"ikedadada/go-torcircuit/internal/domain/service"
	vo "ikedadada/go-torcircuit/internal/domain/value_object"
	infra "ikedadada/go-torcircuit/internal/infrastructure/service"
)

func TestNetwork_Registry(t *testing.T) {
	n := NewNetwork(nil)
	defer n.Close()

	a, err := n.AddRelay(RelayConfig{Nickname: "alpha", Flags: []string{"Guard"}})
	require.NoError(t, err)
	b, err := n.AddRelay(RelayConfig{Nickname: "beta"})
	require.NoError(t, err)

	assert.Same(t, a, n.Lookup(a.Fingerprint()))
	assert.Equal(t, uint16(firstSimPort), a.Descriptor().ORPort())
	assert.Equal(t, uint16(firstSimPort+1), b.Descriptor().ORPort())
	assert.True(t, a.Descriptor().HasFlags(vo.FlagGuard))

	ds := n.Descriptors()
	require.Len(t, ds, 2)
	assert.Equal(t, "alpha", ds[0].Nickname())

	n.Remove(a.Fingerprint())
	assert.Nil(t, n.Lookup(a.Fingerprint()))
	assert.Len(t, n.Descriptors(), 1)
}

func TestRelay_ListenTLSUpdatesDescriptor(t *testing.T) {
	n := NewNetwork(nil)
	defer n.Close()
	r, err := n.AddRelay(RelayConfig{Nickname: "tls"})
	require.NoError(t, err)
	require.NoError(t, n.ListenTLS())
	assert.NotEqual(t, uint16(firstSimPort), r.Descriptor().ORPort())
	assert.Equal(t, "127.0.0.1", r.Descriptor().Addr().String())
}

// serveOne runs r on an in-memory link and returns the client end.
func serveOne(t *testing.T, r *Relay) service.LinkConnection {
	t.Helper()
	client, relay := infra.NewMemLinkPair(r.Fingerprint(), vo.LinkV5, nil)
	go r.ServeLink(relay)
	t.Cleanup(func() { client.Close() })
	return client
}

func create2(t *testing.T, r *Relay) (*entity.Cell, service.HandshakeService, *service.NtorClientState) {
	t.Helper()
	hs := service.NewHandshakeService(infra.NewCryptoService())
	req, st, err := hs.BuildCreate2(r.Descriptor())
	require.NoError(t, err)
	body, err := req.MarshalBinary()
	require.NoError(t, err)
	return &entity.Cell{CircID: 0x80000001, Cmd: vo.CmdCreate2, Payload: body}, hs, st
}

func TestServeLink_Create2(t *testing.T) {
	n := NewNetwork(nil)
	defer n.Close()
	r, err := n.AddRelay(RelayConfig{Nickname: "r"})
	require.NoError(t, err)
	link := serveOne(t, r)

	cell, hs, st := create2(t, r)
	require.NoError(t, link.SendCell(cell))
	got, err := link.RecvCell(5 * time.Second)
	require.NoError(t, err)
	require.Equal(t, vo.CmdCreated2, got.Cmd)
	reply, err := vo.ParseCreated2Payload(got.Payload)
	require.NoError(t, err)
	_, err = hs.CompleteHandshake(r.Descriptor(), st, reply)
	require.NoError(t, err)

	// Reusing the circuit id is a protocol violation.
	dup, _, _ := create2(t, r)
	require.NoError(t, link.SendCell(dup))
	got, err = link.RecvCell(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, vo.CmdDestroy, got.Cmd)
	assert.Equal(t, vo.DestroyProtocol, vo.DestroyReasonFromPayload(got.Payload))
}

func TestServeLink_DestroyOnCreate(t *testing.T) {
	n := NewNetwork(nil)
	defer n.Close()
	r, err := n.AddRelay(RelayConfig{Nickname: "r", Behavior: Behavior{DestroyOnCreate: vo.DestroyResourceLimit}})
	require.NoError(t, err)
	link := serveOne(t, r)

	cell, _, _ := create2(t, r)
	require.NoError(t, link.SendCell(cell))
	got, err := link.RecvCell(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, vo.CmdDestroy, got.Cmd)
	assert.Equal(t, vo.DestroyResourceLimit, vo.DestroyReasonFromPayload(got.Payload))
}

func TestServeLink_MalformedCreate(t *testing.T) {
	n := NewNetwork(nil)
	defer n.Close()
	r, err := n.AddRelay(RelayConfig{Nickname: "r"})
	require.NoError(t, err)
	link := serveOne(t, r)

	require.NoError(t, link.SendCell(&entity.Cell{CircID: 0x80000002, Cmd: vo.CmdCreate2, Payload: []byte{0, 2, 0xff, 0xff}}))
	got, err := link.RecvCell(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, vo.CmdDestroy, got.Cmd)
	assert.Equal(t, vo.CircuitID(0x80000002), got.CircID)
}
