package entity_test

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ikedadada/go-torcircuit/internal/domain"
	"ikedadada/go-torcircuit/internal/domain/entity"
	vo "ikedadada/go-torcircuit/internal/domain/value_object"
)

const testFP = "9695DFC35FFEB861329B9F1AB04C46397020CE31"

func validParams() entity.RelayDescriptorParams {
	key := make([]byte, 32)
	key[0] = 9
	return entity.RelayDescriptorParams{
		Nickname:     "moria1",
		Address:      "128.31.0.34",
		ORPort:       9101,
		DirPort:      9131,
		Fingerprint:  testFP,
		NtorOnionKey: base64.StdEncoding.EncodeToString(key),
		Flags:        []string{"Fast", "Guard", "Running", "Stable", "Valid"},
	}
}

func TestNewRelayDescriptor_Valid(t *testing.T) {
	d, err := entity.NewRelayDescriptor(validParams())
	require.NoError(t, err)
	assert.Equal(t, "moria1", d.Nickname())
	assert.Equal(t, "128.31.0.34:9101", d.Endpoint().String())
	assert.Equal(t, uint16(9131), d.DirPort())
	assert.Equal(t, testFP, d.Fingerprint().String())
	assert.True(t, d.HasFlags(vo.FlagGuard|vo.FlagFast))
	_, hasEd := d.Ed25519ID()
	assert.False(t, hasEd)

	specs := d.LinkSpecifiers()
	require.Len(t, specs, 2)
	assert.Equal(t, vo.LinkSpecIPv4, specs[0].Type)
	assert.Equal(t, vo.LinkSpecLegacyID, specs[1].Type)

	again, err := entity.RelayInfoFrom(d).Descriptor()
	require.NoError(t, err)
	assert.Equal(t, d, again)
}

func TestNewRelayDescriptor_Ed25519AndIPv6(t *testing.T) {
	p := validParams()
	p.Address = "2001:db8::7"
	p.Ed25519ID = base64.RawStdEncoding.EncodeToString([]byte(strings.Repeat("e", 32)))
	d, err := entity.NewRelayDescriptor(p)
	require.NoError(t, err)
	specs := d.LinkSpecifiers()
	require.Len(t, specs, 3)
	assert.Equal(t, vo.LinkSpecIPv6, specs[0].Type)
	assert.Equal(t, vo.LinkSpecEd25519, specs[2].Type)
}

func TestNewRelayDescriptor_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*entity.RelayDescriptorParams)
	}{
		{"empty nickname", func(p *entity.RelayDescriptorParams) { p.Nickname = "" }},
		{"long nickname", func(p *entity.RelayDescriptorParams) { p.Nickname = strings.Repeat("a", 20) }},
		{"hostname", func(p *entity.RelayDescriptorParams) { p.Address = "moria.example" }},
		{"zero port", func(p *entity.RelayDescriptorParams) { p.ORPort = 0 }},
		{"missing fingerprint", func(p *entity.RelayDescriptorParams) { p.Fingerprint = "" }},
		{"zero fingerprint", func(p *entity.RelayDescriptorParams) { p.Fingerprint = strings.Repeat("0", 40) }},
		{"missing ntor key", func(p *entity.RelayDescriptorParams) { p.NtorOnionKey = "" }},
		{"zero ntor key", func(p *entity.RelayDescriptorParams) {
			p.NtorOnionKey = base64.StdEncoding.EncodeToString(make([]byte, 32))
		}},
		{"short ntor key", func(p *entity.RelayDescriptorParams) { p.NtorOnionKey = "AAAA" }},
		{"bad ed25519", func(p *entity.RelayDescriptorParams) { p.Ed25519ID = "AAAA" }},
		{"unknown flag", func(p *entity.RelayDescriptorParams) { p.Flags = []string{"Guard", "Sparkly"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mutate(&p)
			_, err := entity.NewRelayDescriptor(p)
			require.ErrorIs(t, err, domain.ErrInvalidDescriptor)
		})
	}
}
