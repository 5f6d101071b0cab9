package domain_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ikedadada/go-torcircuit/internal/domain"
	vo "ikedadada/go-torcircuit/internal/domain/value_object"
)

func TestCircuitError_Classification(t *testing.T) {
	relay := vo.Fingerprint{1, 2, 3}
	tests := []struct {
		name   string
		err    error
		kind   domain.ErrorKind
		remote bool
	}{
		{"connection", domain.NewConnectionError("dial", relay, errors.New("refused")), domain.KindConnection, false},
		{"timeout", domain.NewLinkTimeoutError("recv", relay, nil), domain.KindLinkTimeout, false},
		{"malformed", domain.NewMalformedCellError("decode", nil), domain.KindMalformedCell, false},
		{"auth", domain.NewHandshakeAuthError("ntor", relay, nil), domain.KindHandshakeAuth, false},
		{"protocol", domain.NewProtocolError("extend", relay, domain.ErrDigestMismatch), domain.KindProtocol, false},
		{"remote", domain.NewRemoteDestroyError("create", relay, vo.DestroyResourceLimit), domain.KindRemoteDestroy, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("circuit: %w", tt.err)
			k, ok := domain.KindOf(wrapped)
			require.True(t, ok)
			assert.Equal(t, tt.kind, k)
			assert.Equal(t, tt.remote, k.IsRemote())
			assert.True(t, domain.IsKind(wrapped, tt.kind))
		})
	}
}

func TestCircuitError_Message(t *testing.T) {
	relay := vo.Fingerprint{0xab}
	err := domain.NewRemoteDestroyError("extend", relay, vo.DestroyConnectFailed)
	assert.Contains(t, err.Error(), "remote destroy")
	assert.Contains(t, err.Error(), "connectfailed")
	assert.Contains(t, err.Error(), relay.String())

	perr := domain.NewProtocolError("extend", relay, domain.ErrDigestMismatch)
	assert.ErrorIs(t, perr, domain.ErrDigestMismatch)
}

func TestSentinelsAreNotClassified(t *testing.T) {
	_, ok := domain.KindOf(domain.ErrInvalidState)
	assert.False(t, ok)
	_, ok = domain.KindOf(nil)
	assert.False(t, ok)
}

func TestNewContextError(t *testing.T) {
	relay := vo.Fingerprint{4}
	tests := []struct {
		name string
		err  error
		kind domain.ErrorKind
	}{
		{"deadline", context.DeadlineExceeded, domain.KindLinkTimeout},
		{"cancelled", context.Canceled, domain.KindConnection},
		{"other cause", errors.New("torn down"), domain.KindConnection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := domain.NewContextError("create", relay, tt.err)
			assert.Equal(t, tt.kind, err.Kind)
			assert.Equal(t, relay, err.Relay)
			require.ErrorIs(t, err, tt.err)
		})
	}
}
