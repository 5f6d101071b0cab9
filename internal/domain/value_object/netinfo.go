package value_object

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

const (
	netinfoAddrIPv4 = 4
	netinfoAddrIPv6 = 6
)

// NetInfo is the body of a NETINFO cell.
type NetInfo struct {
	Time      uint32
	OtherAddr netip.Addr
	MyAddrs   []netip.Addr
}

func appendNetinfoAddr(b []byte, a netip.Addr) []byte {
	a = a.Unmap()
	switch {
	case a.Is4():
		v := a.As4()
		return append(append(b, netinfoAddrIPv4, 4), v[:]...)
	case a.Is6():
		v := a.As16()
		return append(append(b, netinfoAddrIPv6, 16), v[:]...)
	default:
		// Unknown address: type 0, length 0.
		return append(b, 0, 0)
	}
}

func (n NetInfo) MarshalBinary() ([]byte, error) {
	if len(n.MyAddrs) > 0xff {
		return nil, fmt.Errorf("too many addresses: %d", len(n.MyAddrs))
	}
	b := binary.BigEndian.AppendUint32(nil, n.Time)
	b = appendNetinfoAddr(b, n.OtherAddr)
	b = append(b, byte(len(n.MyAddrs)))
	for _, a := range n.MyAddrs {
		b = appendNetinfoAddr(b, a)
	}
	return b, nil
}

func parseNetinfoAddr(b []byte) (netip.Addr, []byte, error) {
	if len(b) < 2 {
		return netip.Addr{}, nil, fmt.Errorf("netinfo address truncated")
	}
	t, l := b[0], int(b[1])
	if len(b) < 2+l {
		return netip.Addr{}, nil, fmt.Errorf("netinfo address truncated")
	}
	v := b[2 : 2+l]
	rest := b[2+l:]
	switch {
	case t == netinfoAddrIPv4 && l == 4:
		return netip.AddrFrom4([4]byte(v)), rest, nil
	case t == netinfoAddrIPv6 && l == 16:
		return netip.AddrFrom16([16]byte(v)), rest, nil
	}
	// Other types are skipped.
	return netip.Addr{}, rest, nil
}

// ParseNetInfo decodes a NETINFO body. Trailing padding is ignored.
func ParseNetInfo(b []byte) (NetInfo, error) {
	if len(b) < 4 {
		return NetInfo{}, fmt.Errorf("netinfo too short: %d", len(b))
	}
	n := NetInfo{Time: binary.BigEndian.Uint32(b)}
	other, rest, err := parseNetinfoAddr(b[4:])
	if err != nil {
		return NetInfo{}, err
	}
	n.OtherAddr = other
	if len(rest) < 1 {
		return NetInfo{}, fmt.Errorf("netinfo missing address count")
	}
	count := int(rest[0])
	rest = rest[1:]
	for i := 0; i < count; i++ {
		var a netip.Addr
		if a, rest, err = parseNetinfoAddr(rest); err != nil {
			return NetInfo{}, err
		}
		if a.IsValid() {
			n.MyAddrs = append(n.MyAddrs, a)
		}
	}
	return n, nil
}
