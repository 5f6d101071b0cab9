package service

import (
	"context"
	"time"

	"ikedadada/go-torcircuit/internal/domain/entity"
	vo "ikedadada/go-torcircuit/internal/domain/value_object"
)

// LinkConnection is an authenticated, negotiated link to one relay.
type LinkConnection interface {
	// SendCell frames and writes one cell.
	SendCell(c *entity.Cell) error
	// RecvCell blocks for the next non-padding cell, at most timeout.
	RecvCell(timeout time.Duration) (*entity.Cell, error)
	// ClaimCircuitID reserves id on this link. It reports false if the id
	// is already in use.
	ClaimCircuitID(id vo.CircuitID) bool
	ReleaseCircuitID(id vo.CircuitID)
	Version() vo.LinkVersion
	// PeerIdentity is the identity proven during the link handshake.
	PeerIdentity() vo.Fingerprint
	Close() error
}

// LinkDialer opens links. Connect returns only after the link handshake
// has completed and the peer has proven the descriptor's identity.
type LinkDialer interface {
	Connect(ctx context.Context, desc *entity.RelayDescriptor) (LinkConnection, error)
}
