package value_object

import (
	"fmt"
	"net/netip"
)

// Endpoint は OR ポートのアドレスを表す値オブジェクト
type Endpoint struct {
	addr netip.Addr
	port uint16
}

func NewEndpoint(addr netip.Addr, port uint16) (Endpoint, error) {
	if port == 0 {
		return Endpoint{}, fmt.Errorf("invalid port: %d", port)
	}
	if !addr.IsValid() || addr.IsUnspecified() {
		return Endpoint{}, fmt.Errorf("invalid address: %v", addr)
	}
	return Endpoint{addr.Unmap(), port}, nil
}

// ParseEndpoint parses a literal IPv4 or IPv6 host. Hostnames are rejected:
// relays are always addressed by IP.
func ParseEndpoint(host string, port uint16) (Endpoint, error) {
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid host %q: %w", host, err)
	}
	return NewEndpoint(addr, port)
}

func (e Endpoint) Addr() netip.Addr         { return e.addr }
func (e Endpoint) Port() uint16             { return e.port }
func (e Endpoint) AddrPort() netip.AddrPort { return netip.AddrPortFrom(e.addr, e.port) }
func (e Endpoint) IsIPv6() bool             { return e.addr.Is6() }
func (e Endpoint) String() string           { return e.AddrPort().String() }
