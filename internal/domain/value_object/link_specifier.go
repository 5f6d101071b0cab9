package value_object

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

// LinkSpecifierType identifies the kind of an EXTEND2 link specifier.
type LinkSpecifierType byte

const (
	LinkSpecIPv4     LinkSpecifierType = 0
	LinkSpecIPv6     LinkSpecifierType = 1
	LinkSpecLegacyID LinkSpecifierType = 2
	LinkSpecEd25519  LinkSpecifierType = 3
)

// LinkSpecifier tells the extending relay how to reach and authenticate
// the next hop.
type LinkSpecifier struct {
	Type LinkSpecifierType
	Data []byte
}

func (t LinkSpecifierType) size() int {
	switch t {
	case LinkSpecIPv4:
		return 6
	case LinkSpecIPv6:
		return 18
	case LinkSpecLegacyID:
		return FingerprintSize
	case LinkSpecEd25519:
		return Ed25519IdentitySize
	}
	return -1
}

func LinkSpecifierFromAddrPort(ap netip.AddrPort) LinkSpecifier {
	addr := ap.Addr().Unmap()
	if addr.Is4() {
		a := addr.As4()
		d := make([]byte, 6)
		copy(d, a[:])
		binary.BigEndian.PutUint16(d[4:], ap.Port())
		return LinkSpecifier{Type: LinkSpecIPv4, Data: d}
	}
	a := addr.As16()
	d := make([]byte, 18)
	copy(d, a[:])
	binary.BigEndian.PutUint16(d[16:], ap.Port())
	return LinkSpecifier{Type: LinkSpecIPv6, Data: d}
}

func LinkSpecifierFromFingerprint(fp Fingerprint) LinkSpecifier {
	return LinkSpecifier{Type: LinkSpecLegacyID, Data: append([]byte(nil), fp[:]...)}
}

func LinkSpecifierFromEd25519(id Ed25519Identity) LinkSpecifier {
	return LinkSpecifier{Type: LinkSpecEd25519, Data: append([]byte(nil), id[:]...)}
}

// AddrPort returns the address carried by an IPv4 or IPv6 specifier.
func (ls LinkSpecifier) AddrPort() (netip.AddrPort, bool) {
	switch {
	case ls.Type == LinkSpecIPv4 && len(ls.Data) == 6:
		a := netip.AddrFrom4([4]byte(ls.Data[:4]))
		return netip.AddrPortFrom(a, binary.BigEndian.Uint16(ls.Data[4:])), true
	case ls.Type == LinkSpecIPv6 && len(ls.Data) == 18:
		a := netip.AddrFrom16([16]byte(ls.Data[:16]))
		return netip.AddrPortFrom(a, binary.BigEndian.Uint16(ls.Data[16:])), true
	}
	return netip.AddrPort{}, false
}

func (ls LinkSpecifier) validate() error {
	if n := ls.Type.size(); n >= 0 && len(ls.Data) != n {
		return fmt.Errorf("link specifier type %d: want %d bytes, got %d", ls.Type, n, len(ls.Data))
	}
	if len(ls.Data) > 0xff {
		return fmt.Errorf("link specifier type %d too long: %d", ls.Type, len(ls.Data))
	}
	return nil
}
