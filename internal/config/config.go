// Package config implements the configuration for the circuit client.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	vo "ikedadada/go-torcircuit/internal/domain/value_object"
	"ikedadada/go-torcircuit/internal/infrastructure/util"
	"ikedadada/go-torcircuit/internal/proxy"
)

const (
	defaultLogLevel         = "NOTICE"
	defaultConnectTimeout   = 10 * 1000 // 10 sec.
	defaultHandshakeTimeout = 20 * 1000 // 20 sec.
	defaultReplyTimeout     = 20 * 1000 // 20 sec.
	defaultHops             = 2

	maxTimeout = 5 * time.Minute
)

var defaultLogging = Logging{
	Disable: false,
	File:    "",
	Level:   defaultLogLevel,
}

// Logging is the logging configuration.
type Logging struct {
	// Disable disables logging entirely.
	Disable bool

	// File specifies the log file, if omitted stdout will be used.
	File string

	// Level specifies the log level.
	Level string
}

func (lCfg *Logging) validate() error {
	lvl := strings.ToUpper(lCfg.Level)
	switch lvl {
	case "ERROR", "WARNING", "NOTICE", "INFO", "DEBUG":
	case "":
		lvl = defaultLogLevel
	default:
		return fmt.Errorf("config: Logging: Level '%v' is invalid", lCfg.Level)
	}
	lCfg.Level = lvl // Force uppercase.
	return nil
}

// Link is the relay link and circuit timing configuration. Timeouts are
// in milliseconds.
type Link struct {
	// ConnectTimeout bounds the TCP connect to a relay.
	ConnectTimeout int

	// HandshakeTimeout bounds TLS plus the link protocol handshake.
	HandshakeTimeout int

	// ReplyTimeout bounds the wait for CREATED2 and EXTENDED2.
	ReplyTimeout int

	// LinkVersions are the link protocol versions offered, best first.
	LinkVersions []int

	// Hops is the default circuit length when no path is given.
	Hops int
}

func (l *Link) fixup() {
	if l.ConnectTimeout == 0 {
		l.ConnectTimeout = defaultConnectTimeout
	}
	if l.HandshakeTimeout == 0 {
		l.HandshakeTimeout = defaultHandshakeTimeout
	}
	if l.ReplyTimeout == 0 {
		l.ReplyTimeout = defaultReplyTimeout
	}
	if l.Hops == 0 {
		l.Hops = defaultHops
	}
}

func (l *Link) validate() error {
	for _, v := range []struct {
		ms   int
		name string
	}{
		{l.ConnectTimeout, "Link.ConnectTimeout"},
		{l.HandshakeTimeout, "Link.HandshakeTimeout"},
		{l.ReplyTimeout, "Link.ReplyTimeout"},
	} {
		if err := util.ValidateDuration(ms(v.ms), time.Millisecond, maxTimeout, v.name); err != nil {
			return fmt.Errorf("config: %v", err)
		}
	}
	if err := util.ValidatePositive(l.Hops, "Link.Hops"); err != nil {
		return fmt.Errorf("config: %v", err)
	}
	for _, v := range l.LinkVersions {
		if !vo.LinkVersion(v).IsSupported() {
			return fmt.Errorf("config: Link: version %d is not supported", v)
		}
	}
	return nil
}

// Versions returns the configured link versions, or nil for the defaults.
func (l *Link) Versions() []vo.LinkVersion {
	if len(l.LinkVersions) == 0 {
		return nil
	}
	out := make([]vo.LinkVersion, len(l.LinkVersions))
	for i, v := range l.LinkVersions {
		out[i] = vo.LinkVersion(v)
	}
	return out
}

func (l *Link) ConnectTimeoutDuration() time.Duration   { return ms(l.ConnectTimeout) }
func (l *Link) HandshakeTimeoutDuration() time.Duration { return ms(l.HandshakeTimeout) }
func (l *Link) ReplyTimeoutDuration() time.Duration     { return ms(l.ReplyTimeout) }

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// UpstreamProxy is the outgoing connection proxy configuration.
type UpstreamProxy struct {
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
}

func (uCfg *UpstreamProxy) toProxyConfig() (*proxy.Config, error) {
	cfg := &proxy.Config{}
	if uCfg != nil {
		cfg.Type = uCfg.Type
		cfg.Network = uCfg.Network
		cfg.Address = uCfg.Address
		cfg.User = uCfg.User
		cfg.Password = uCfg.Password
	}
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Catalog says where relay descriptors come from.
type Catalog struct {
	// File is a JSON relay catalog on disk.
	File string

	// URL is a directory base URL serving <URL>/relays.
	URL string

	// Cache is an optional bolt database the catalog is persisted to and
	// read from when neither File nor URL is reachable.
	Cache string
}

func (c *Catalog) validate() error {
	if c.File == "" && c.URL == "" && c.Cache == "" {
		return fmt.Errorf("config: Catalog: one of File, URL or Cache is required")
	}
	if c.File != "" {
		if _, err := os.Stat(c.File); err != nil {
			return fmt.Errorf("config: Catalog: File '%v' is unreadable: %v", c.File, err)
		}
	}
	return nil
}

// Metrics is the prometheus exporter configuration.
type Metrics struct {
	// Address to serve /metrics on. Empty disables the exporter.
	Address string
}

func (m *Metrics) validate() error {
	if m.Address == "" {
		return nil
	}
	if err := util.ValidateEndpoint(m.Address, "Metrics.Address"); err != nil {
		return fmt.Errorf("config: %v", err)
	}
	return nil
}

// Config is the top level client configuration.
type Config struct {
	Logging       *Logging
	Link          *Link
	UpstreamProxy *UpstreamProxy
	Catalog       *Catalog
	Metrics       *Metrics

	upstreamProxy *proxy.Config
}

// UpstreamProxyConfig returns the configured upstream proxy, suitable for
// internal use.
func (c *Config) UpstreamProxyConfig() *proxy.Config {
	return c.upstreamProxy
}

// FixupAndValidate applies defaults to config entries and validates the
// configuration sections.
func (c *Config) FixupAndValidate() error {
	// Handle missing sections if possible.
	if c.Logging == nil {
		l := defaultLogging
		c.Logging = &l
	}
	if c.Link == nil {
		c.Link = &Link{}
	}
	c.Link.fixup()
	if c.Catalog == nil {
		return fmt.Errorf("config: No Catalog block was present")
	}
	if c.Metrics == nil {
		c.Metrics = &Metrics{}
	}

	// Validate/fixup the various sections.
	if err := c.Logging.validate(); err != nil {
		return err
	}
	if err := c.Link.validate(); err != nil {
		return err
	}
	uCfg, err := c.UpstreamProxy.toProxyConfig()
	if err != nil {
		return err
	}
	c.upstreamProxy = uCfg
	if err := c.Catalog.validate(); err != nil {
		return err
	}
	return c.Metrics.validate()
}

// Load parses and validates the provided buffer b as a config file body and
// returns the Config.
func Load(b []byte) (*Config, error) {
	cfg := new(Config)
	md, err := toml.Decode(string(b), cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return nil, fmt.Errorf("config: Undecoded keys in config file: %v", undecoded)
	}
	if err := cfg.FixupAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads, parses, and validates the provided file and returns the
// Config.
func LoadFile(f string) (*Config, error) {
	b, err := os.ReadFile(f)
	if err != nil {
		return nil, err
	}
	return Load(b)
}
