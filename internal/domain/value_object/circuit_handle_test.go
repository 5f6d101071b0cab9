package value_object_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	vo "ikedadada/go-torcircuit/internal/domain/value_object"
)

func TestCircuitHandleFrom_Table(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		expectsErr bool
	}{
		{"valid uuid", "123e4567-e89b-12d3-a456-426614174000", false},
		{"invalid uuid", "not-a-uuid", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := vo.CircuitHandleFrom(tt.input)
			if tt.expectsErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.input, h.String())
		})
	}
}

func TestCircuitState(t *testing.T) {
	assert.True(t, vo.CircuitOneHop.CanExtend())
	assert.True(t, vo.CircuitNHops.CanExtend())
	assert.False(t, vo.CircuitEmpty.CanExtend())
	assert.False(t, vo.CircuitExtending.CanExtend())
	assert.True(t, vo.CircuitDestroyed.IsTerminal())
	assert.Equal(t, "n-hops", vo.CircuitNHops.String())
	assert.False(t, vo.NewCircuitHandle().IsZero())
}
