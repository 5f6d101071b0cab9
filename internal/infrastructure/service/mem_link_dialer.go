package service

import (
	"context"
	"net"

	"gopkg.in/op/go-logging.v1"

	"ikedadada/go-torcircuit/internal/domain"
	"ikedadada/go-torcircuit/internal/domain/entity"
	"ikedadada/go-torcircuit/internal/domain/service"
	vo "ikedadada/go-torcircuit/internal/domain/value_object"
)

// LinkAcceptor takes the relay end of an in-memory link.
type LinkAcceptor func(relay vo.Fingerprint, link service.LinkConnection) error

// MemLinkDialer connects links over net.Pipe without a TLS handshake, for
// tests and demos.
type MemLinkDialer struct {
	Version vo.LinkVersion
	Accept  LinkAcceptor
	Log     *logging.Logger
}

// NewMemLinkDialer returns a LinkDialer handing relay ends to accept.
func NewMemLinkDialer(accept LinkAcceptor) *MemLinkDialer {
	return &MemLinkDialer{Version: vo.LinkV4, Accept: accept, Log: logging.MustGetLogger("memlink")}
}

// NewMemLinkPair returns both ends of an in-memory link. The client end
// reports peer as its proven identity.
func NewMemLinkPair(peer vo.Fingerprint, v vo.LinkVersion, log *logging.Logger) (client, relay service.LinkConnection) {
	a, b := net.Pipe()
	return newLinkConnection(a, v, peer, log), newLinkConnection(b, v, vo.Fingerprint{}, log)
}

func (d *MemLinkDialer) Connect(ctx context.Context, desc *entity.RelayDescriptor) (service.LinkConnection, error) {
	fp := desc.Fingerprint()
	if err := ctx.Err(); err != nil {
		return nil, domain.NewConnectionError("dial "+desc.Endpoint().String(), fp, err)
	}
	client, relay := NewMemLinkPair(fp, d.Version, d.Log)
	if err := d.Accept(fp, relay); err != nil {
		client.Close()
		relay.Close()
		return nil, domain.NewConnectionError("dial "+desc.Endpoint().String(), fp, err)
	}
	return client, nil
}
