// Package proxy implements the support for an upstream (outgoing) proxy
// that relay links are dialed through.
package proxy

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"strings"

	"golang.org/x/net/proxy"

	"ikedadada/go-torcircuit/internal/infrastructure/util"
)

const (
	typeNone      = "none"
	typeTorSocks5 = "tor+socks5"
	typeSocks5    = "socks5"

	netUnix = "unix"
	netTCP  = "tcp"

	maxSocks5AuthLen = 255
)

// Config is the proxy configuration.
type Config struct {
	// Type is the proxy type (Eg: "none", "socks5", "tor+socks5").
	Type string

	// Network is the proxy address' network (`unix`, `tcp`).
	Network string

	// Address is the proxy's address.
	Address string

	// User is the optional proxy username.
	User string

	// Password is the optional proxy password.
	Password string

	auth *proxy.Auth
}

// FixupAndValidate applies defaults to config entries and validates the
// supplied configuration.
func (cfg *Config) FixupAndValidate() error {
	cfg.Type = strings.ToLower(cfg.Type)
	switch cfg.Type {
	case "":
		cfg.Type = typeNone
	case typeNone:
	case typeSocks5, typeTorSocks5:
		uLen, pLen := len(cfg.User), len(cfg.Password)
		if uLen > maxSocks5AuthLen {
			return fmt.Errorf("proxy/config: User too long")
		}
		if pLen > maxSocks5AuthLen {
			return fmt.Errorf("proxy/config: Password too long")
		}
		if uLen != 0 && pLen == 0 || uLen == 0 && pLen != 0 {
			return fmt.Errorf("proxy/config: Both User and Password must be specified")
		}
		if uLen != 0 && pLen != 0 {
			if cfg.Type == typeTorSocks5 {
				return fmt.Errorf("proxy/config: Tor SOCKS5 conflicts with setting User/Password")
			}
			cfg.auth = &proxy.Auth{
				User:     cfg.User,
				Password: cfg.Password,
			}
		}

		cfg.Network = strings.ToLower(cfg.Network)
		switch cfg.Network {
		case netTCP:
			if err := util.ValidateEndpoint(cfg.Address, "Address"); err != nil {
				return fmt.Errorf("proxy/config: Address '%v' is invalid: %v", cfg.Address, err)
			}
		case netUnix:
			fi, err := os.Lstat(cfg.Address)
			if err != nil {
				return fmt.Errorf("proxy/config: Address '%v' failed to stat(): %v", cfg.Address, err)
			}
			if fi.Mode()&os.ModeSocket == 0 {
				return fmt.Errorf("proxy/config: Address '%v' does not appear to be a socket", cfg.Address)
			}
		default:
			return fmt.Errorf("proxy/config: Network '%v' is invalid", cfg.Network)
		}
	default:
		return fmt.Errorf("proxy/config: Type '%v' is invalid", cfg.Type)
	}
	return nil
}

// ContextDialer returns a dialer that goes through the configured proxy,
// or nil iff no proxy is configured. With tor+socks5, tag selects a
// stream isolation bucket.
func (cfg *Config) ContextDialer(tag string) (proxy.ContextDialer, error) {
	switch cfg.Type {
	case typeNone:
		return nil, nil
	case typeSocks5, typeTorSocks5:
	default:
		return nil, fmt.Errorf("proxy: invalid type: %v", cfg.Type)
	}

	auth := cfg.auth
	if cfg.Type == typeTorSocks5 {
		// Jam an isolation tag into the User/Password.
		sum := sha512.Sum512_256([]byte(tag))
		auth = &proxy.Auth{
			User:     hex.EncodeToString(sum[:16]),
			Password: string([]byte{0x00}),
		}
	}
	d, err := proxy.SOCKS5(cfg.Network, cfg.Address, auth, &net.Dialer{})
	if err != nil {
		return nil, err
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("proxy: %T cannot dial with a context", d)
	}
	return cd, nil
}
