package usecase

import (
	"context"
	"errors"

	"ikedadada/go-torcircuit/internal/domain"
)

// FailureDTO is a circuit failure broken down for display.
type FailureDTO struct {
	Kind string `json:"kind"`
	// Remote is true when a relay decided to tear the circuit down.
	Remote  bool   `json:"remote"`
	Relay   string `json:"relay,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
}

// DescribeFailure classifies err. Errors that are not circuit failures
// (bad input, local misuse) are reported with kind "local".
func DescribeFailure(err error) FailureDTO {
	if err == nil {
		return FailureDTO{}
	}
	out := FailureDTO{Kind: "local", Message: err.Error()}
	ce, ok := domain.AsCircuitError(err)
	if !ok {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			out.Kind = "cancelled"
		}
		return out
	}
	out.Kind = ce.Kind.String()
	out.Remote = ce.Kind.IsRemote()
	if !ce.Relay.IsZero() {
		out.Relay = ce.Relay.String()
	}
	if ce.Kind == domain.KindRemoteDestroy {
		out.Reason = ce.Reason.String()
	}
	return out
}
