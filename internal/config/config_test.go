package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vo "ikedadada/go-torcircuit/internal/domain/value_object"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load([]byte(`
[Catalog]
  URL = "http://127.0.0.1:8081"
`))
	require.NoError(t, err)

	assert.Equal(t, "NOTICE", cfg.Logging.Level)
	assert.Equal(t, 10*time.Second, cfg.Link.ConnectTimeoutDuration())
	assert.Equal(t, 20*time.Second, cfg.Link.HandshakeTimeoutDuration())
	assert.Equal(t, 20*time.Second, cfg.Link.ReplyTimeoutDuration())
	assert.Equal(t, 2, cfg.Link.Hops)
	assert.Nil(t, cfg.Link.Versions())
	assert.Equal(t, "none", cfg.UpstreamProxyConfig().Type)
	assert.Empty(t, cfg.Metrics.Address)
}

func TestLoadFile_Full(t *testing.T) {
	dir := t.TempDir()
	catalog := filepath.Join(dir, "relays.json")
	require.NoError(t, os.WriteFile(catalog, []byte(`{"relays":[]}`), 0600))
	path := filepath.Join(dir, "client.toml")
	body := `
[Logging]
  Disable = false
  File = ""
  Level = "debug"

[Link]
  ConnectTimeout = 1500
  HandshakeTimeout = 3000
  ReplyTimeout = 4000
  LinkVersions = [ 4 ]
  Hops = 3

[UpstreamProxy]
  Type = "socks5"
  Network = "tcp"
  Address = "127.0.0.1:9050"

[Catalog]
  File = "` + catalog + `"
  Cache = "` + filepath.Join(dir, "relays.db") + `"

[Metrics]
  Address = "127.0.0.1:9100"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, 1500*time.Millisecond, cfg.Link.ConnectTimeoutDuration())
	assert.Equal(t, []vo.LinkVersion{vo.LinkV4}, cfg.Link.Versions())
	assert.Equal(t, 3, cfg.Link.Hops)
	assert.Equal(t, "socks5", cfg.UpstreamProxyConfig().Type)
	assert.Equal(t, "127.0.0.1:9100", cfg.Metrics.Address)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no catalog", `[Logging]
  Level = "INFO"`},
		{"empty catalog", `[Catalog]`},
		{"missing catalog file", `[Catalog]
  File = "/nonexistent/relays.json"`},
		{"bad level", `[Logging]
  Level = "LOUD"
[Catalog]
  URL = "http://x"`},
		{"undecoded key", `Bogus = 1
[Catalog]
  URL = "http://x"`},
		{"unsupported version", `[Link]
  LinkVersions = [ 3 ]
[Catalog]
  URL = "http://x"`},
		{"negative timeout", `[Link]
  ReplyTimeout = -5
[Catalog]
  URL = "http://x"`},
		{"bad proxy", `[UpstreamProxy]
  Type = "http"
[Catalog]
  URL = "http://x"`},
		{"bad metrics address", `[Metrics]
  Address = "nowhere"
[Catalog]
  URL = "http://x"`},
		{"not toml", `[[[`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.body))
			assert.Error(t, err)
		})
	}
}
