// Package domain holds the error taxonomy shared by every layer that
// builds circuits. Remote and transport failures are *CircuitError values
// classified by Kind; local misuse of the API is reported through plain
// sentinel errors and never as a CircuitError.
package domain

import (
	"context"
	"errors"
	"fmt"

	vo "ikedadada/go-torcircuit/internal/domain/value_object"
)

// ---- Sentinels ----

var (
	// ErrInvalidState is returned when an operation is not allowed in the
	// circuit's current state (Extend before Create, Create twice, ...).
	ErrInvalidState = errors.New("operation not allowed in current circuit state")

	// ErrRelayEarlyExhausted means the circuit already sent its quota of
	// RELAY_EARLY cells and cannot be extended further.
	ErrRelayEarlyExhausted = errors.New("relay_early budget exhausted")

	// ErrEncoding is returned by the cell codec for payloads that do not fit.
	ErrEncoding = errors.New("cell encoding")

	// ErrInvalidDescriptor rejects relay descriptors missing required fields.
	ErrInvalidDescriptor = errors.New("invalid relay descriptor")

	// ErrIdentityMismatch is the cause of a ConnectionError when the peer's
	// certificates do not prove the expected identity.
	ErrIdentityMismatch = errors.New("relay identity mismatch")

	// ErrDigestMismatch is the cause of a ProtocolError when no hop
	// recognises an inbound relay cell.
	ErrDigestMismatch = errors.New("relay cell not recognised by any hop")

	// ErrLinkClosed is returned for I/O on a link that was closed locally.
	ErrLinkClosed = errors.New("link closed")
)

// ---- Taxonomy ----

// ErrorKind classifies a CircuitError.
type ErrorKind uint8

const (
	KindConnection ErrorKind = iota + 1
	KindLinkTimeout
	KindMalformedCell
	KindHandshakeAuth
	KindProtocol
	KindRemoteDestroy
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindLinkTimeout:
		return "link timeout"
	case KindMalformedCell:
		return "malformed cell"
	case KindHandshakeAuth:
		return "handshake auth"
	case KindProtocol:
		return "protocol"
	case KindRemoteDestroy:
		return "remote destroy"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// IsRemote reports whether the failure was decided by a relay rather than
// observed locally.
func (k ErrorKind) IsRemote() bool { return k == KindRemoteDestroy }

// CircuitError is the error type returned by link and circuit operations.
type CircuitError struct {
	Op     string
	Kind   ErrorKind
	Relay  vo.Fingerprint   // zero when not attributable to one relay
	Reason vo.DestroyReason // set for KindRemoteDestroy
	Err    error
}

func (e *CircuitError) Error() string {
	msg := e.Op + ": " + e.Kind.String()
	if !e.Relay.IsZero() {
		msg += " (relay " + e.Relay.String() + ")"
	}
	if e.Kind == KindRemoteDestroy {
		msg += ": reason " + e.Reason.String()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CircuitError) Unwrap() error { return e.Err }

func NewConnectionError(op string, relay vo.Fingerprint, err error) *CircuitError {
	return &CircuitError{Op: op, Kind: KindConnection, Relay: relay, Err: err}
}

func NewLinkTimeoutError(op string, relay vo.Fingerprint, err error) *CircuitError {
	return &CircuitError{Op: op, Kind: KindLinkTimeout, Relay: relay, Err: err}
}

func NewMalformedCellError(op string, err error) *CircuitError {
	return &CircuitError{Op: op, Kind: KindMalformedCell, Err: err}
}

func NewHandshakeAuthError(op string, relay vo.Fingerprint, err error) *CircuitError {
	return &CircuitError{Op: op, Kind: KindHandshakeAuth, Relay: relay, Err: err}
}

func NewProtocolError(op string, relay vo.Fingerprint, err error) *CircuitError {
	return &CircuitError{Op: op, Kind: KindProtocol, Relay: relay, Err: err}
}

func NewRemoteDestroyError(op string, relay vo.Fingerprint, reason vo.DestroyReason) *CircuitError {
	return &CircuitError{Op: op, Kind: KindRemoteDestroy, Relay: relay, Reason: reason}
}

// NewContextError classifies the end of a context: an expired deadline is
// a link timeout, anything else is a connection failure.
func NewContextError(op string, relay vo.Fingerprint, err error) *CircuitError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewLinkTimeoutError(op, relay, err)
	}
	return NewConnectionError(op, relay, err)
}

// KindOf extracts the classification of err, if it carries one.
func KindOf(err error) (ErrorKind, bool) {
	var ce *CircuitError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return 0, false
}

// IsKind reports whether err is a CircuitError of kind k.
func IsKind(err error, k ErrorKind) bool {
	got, ok := KindOf(err)
	return ok && got == k
}

// AsCircuitError is errors.As for *CircuitError.
func AsCircuitError(err error) (*CircuitError, bool) {
	var ce *CircuitError
	ok := errors.As(err, &ce)
	return ce, ok
}
