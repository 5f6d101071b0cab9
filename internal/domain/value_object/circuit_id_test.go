package value_object_test

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	vo "ikedadada/go-torcircuit/internal/domain/value_object"
)

func TestNewCircuitID_Table(t *testing.T) {
	tests := []struct {
		name    string
		version vo.LinkVersion
		seed    []byte
		want    vo.CircuitID
	}{
		{"v4 sets top bit", vo.LinkV4, []byte{0x00, 0x00, 0x00, 0x01}, 0x80000001},
		{"v5 keeps set bit", vo.LinkV5, []byte{0xff, 0x00, 0x00, 0x00}, 0xff000000},
		{"v3 uses two bytes", vo.LinkV3, []byte{0x12, 0x34, 0x56, 0x78}, 0x9234},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := vo.NewCircuitID(bytes.NewReader(tt.seed), tt.version)
			require.NoError(t, err)
			require.Equal(t, tt.want, id)
			require.False(t, id.IsZero())
		})
	}
}

func TestNewCircuitID_Random(t *testing.T) {
	for i := 0; i < 64; i++ {
		id, err := vo.NewCircuitID(rand.Reader, vo.LinkV4)
		require.NoError(t, err)
		require.NotZero(t, uint32(id)&0x80000000)
	}
}

func TestNewCircuitID_ShortRead(t *testing.T) {
	_, err := vo.NewCircuitID(bytes.NewReader([]byte{1, 2}), vo.LinkV4)
	require.Error(t, err)
}
