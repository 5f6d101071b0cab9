package entity

import (
	"fmt"
	"net/netip"
	"regexp"

	"ikedadada/go-torcircuit/internal/domain"
	vo "ikedadada/go-torcircuit/internal/domain/value_object"
)

var nicknameRe = regexp.MustCompile(`^[A-Za-z0-9]{1,19}$`)

// RelayDescriptorParams is the untrusted input a descriptor is built from.
type RelayDescriptorParams struct {
	Nickname     string
	Address      string // literal IPv4 or IPv6
	ORPort       uint16
	DirPort      uint16
	Fingerprint  string // hex RSA identity digest
	NtorOnionKey string // base64, padding optional
	Ed25519ID    string // base64, optional
	Flags        []string
}

// RelayDescriptor is the immutable routing information for one relay.
type RelayDescriptor struct {
	nickname    string
	endpoint    vo.Endpoint
	dirPort     uint16
	fingerprint vo.Fingerprint
	ntorKey     vo.NtorOnionKey
	ed25519ID   vo.Ed25519Identity
	flags       vo.RelayFlags
}

// NewRelayDescriptor validates p. Every rejection wraps
// domain.ErrInvalidDescriptor.
func NewRelayDescriptor(p RelayDescriptorParams) (*RelayDescriptor, error) {
	invalid := func(format string, a ...any) error {
		return fmt.Errorf("%w: %s", domain.ErrInvalidDescriptor, fmt.Sprintf(format, a...))
	}
	if !nicknameRe.MatchString(p.Nickname) {
		return nil, invalid("bad nickname %q", p.Nickname)
	}
	ep, err := vo.ParseEndpoint(p.Address, p.ORPort)
	if err != nil {
		return nil, invalid("%s: %v", p.Nickname, err)
	}
	fp, err := vo.FingerprintFromHex(p.Fingerprint)
	if err != nil {
		return nil, invalid("%s: %v", p.Nickname, err)
	}
	if fp.IsZero() {
		return nil, invalid("%s: zero fingerprint", p.Nickname)
	}
	if p.NtorOnionKey == "" {
		return nil, invalid("%s: missing ntor onion key", p.Nickname)
	}
	key, err := vo.NtorOnionKeyFromBase64(p.NtorOnionKey)
	if err != nil {
		return nil, invalid("%s: %v", p.Nickname, err)
	}
	if key.IsZero() {
		return nil, invalid("%s: zero ntor onion key", p.Nickname)
	}
	var ed vo.Ed25519Identity
	if p.Ed25519ID != "" {
		if ed, err = vo.Ed25519IdentityFromBase64(p.Ed25519ID); err != nil {
			return nil, invalid("%s: %v", p.Nickname, err)
		}
	}
	flags, err := vo.ParseRelayFlags(p.Flags)
	if err != nil {
		return nil, invalid("%s: %v", p.Nickname, err)
	}
	return &RelayDescriptor{
		nickname:    p.Nickname,
		endpoint:    ep,
		dirPort:     p.DirPort,
		fingerprint: fp,
		ntorKey:     key,
		ed25519ID:   ed,
		flags:       flags,
	}, nil
}

func (d *RelayDescriptor) Nickname() string                { return d.nickname }
func (d *RelayDescriptor) Endpoint() vo.Endpoint           { return d.endpoint }
func (d *RelayDescriptor) Addr() netip.Addr                { return d.endpoint.Addr() }
func (d *RelayDescriptor) ORPort() uint16                  { return d.endpoint.Port() }
func (d *RelayDescriptor) DirPort() uint16                 { return d.dirPort }
func (d *RelayDescriptor) Fingerprint() vo.Fingerprint     { return d.fingerprint }
func (d *RelayDescriptor) NtorOnionKey() vo.NtorOnionKey   { return d.ntorKey }
func (d *RelayDescriptor) Flags() vo.RelayFlags            { return d.flags }
func (d *RelayDescriptor) HasFlags(f vo.RelayFlags) bool   { return d.flags.Has(f) }
func (d *RelayDescriptor) Ed25519ID() (vo.Ed25519Identity, bool) {
	return d.ed25519ID, !d.ed25519ID.IsZero()
}

// LinkSpecifiers lists how a previous hop reaches and authenticates this
// relay in an EXTEND2.
func (d *RelayDescriptor) LinkSpecifiers() []vo.LinkSpecifier {
	specs := []vo.LinkSpecifier{
		vo.LinkSpecifierFromAddrPort(d.endpoint.AddrPort()),
		vo.LinkSpecifierFromFingerprint(d.fingerprint),
	}
	if ed, ok := d.Ed25519ID(); ok {
		specs = append(specs, vo.LinkSpecifierFromEd25519(ed))
	}
	return specs
}

// Params returns the input that reproduces this descriptor.
func (d *RelayDescriptor) Params() RelayDescriptorParams {
	p := RelayDescriptorParams{
		Nickname:     d.nickname,
		Address:      d.endpoint.Addr().String(),
		ORPort:       d.endpoint.Port(),
		DirPort:      d.dirPort,
		Fingerprint:  d.fingerprint.String(),
		NtorOnionKey: d.ntorKey.String(),
		Flags:        d.flags.Names(),
	}
	if ed, ok := d.Ed25519ID(); ok {
		p.Ed25519ID = ed.String()
	}
	return p
}

func (d *RelayDescriptor) String() string {
	return fmt.Sprintf("%s(%s %s)", d.nickname, d.fingerprint, d.endpoint)
}
