package proxy

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixupAndValidate(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "not-a-socket")

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"empty is none", Config{}, false},
		{"none", Config{Type: "NONE"}, false},
		{"socks5 tcp", Config{Type: "socks5", Network: "TCP", Address: "127.0.0.1:1080"}, false},
		{"socks5 auth", Config{Type: "socks5", Network: "tcp", Address: "127.0.0.1:1080", User: "u", Password: "p"}, false},
		{"user without password", Config{Type: "socks5", Network: "tcp", Address: "127.0.0.1:1080", User: "u"}, true},
		{"tor with auth", Config{Type: "tor+socks5", Network: "tcp", Address: "127.0.0.1:9050", User: "u", Password: "p"}, true},
		{"bad address", Config{Type: "socks5", Network: "tcp", Address: "localhost"}, true},
		{"missing unix socket", Config{Type: "socks5", Network: "unix", Address: sock}, true},
		{"bad network", Config{Type: "socks5", Network: "udp", Address: "127.0.0.1:1080"}, true},
		{"bad type", Config{Type: "http"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.FixupAndValidate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestContextDialer_None(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.FixupAndValidate())
	d, err := cfg.ContextDialer("x")
	require.NoError(t, err)
	assert.Nil(t, d)
}

// serveSOCKS5 accepts one no-auth CONNECT and splices it to the target.
func serveSOCKS5(t *testing.T, ln net.Listener, got chan<- string) {
	t.Helper()
	conn, err := ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	hdr := make([]byte, 2)
	if _, err := io.ReadFull(conn, hdr); err != nil {
		return
	}
	methods := make([]byte, hdr[1])
	io.ReadFull(conn, methods)
	conn.Write([]byte{0x05, 0x00})

	req := make([]byte, 4)
	if _, err := io.ReadFull(conn, req); err != nil || req[3] != 0x01 {
		return
	}
	addr := make([]byte, 6)
	io.ReadFull(conn, addr)
	target := net.JoinHostPort(net.IP(addr[:4]).String(), strconv.Itoa(int(binary.BigEndian.Uint16(addr[4:]))))
	got <- target

	up, err := net.Dial("tcp", target)
	if err != nil {
		conn.Write([]byte{0x05, 0x05, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
		return
	}
	defer up.Close()
	conn.Write([]byte{0x05, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
	go io.Copy(up, conn)
	io.Copy(conn, up)
}

func TestContextDialer_SOCKS5(t *testing.T) {
	echo, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer echo.Close()
	go func() {
		c, err := echo.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		io.Copy(c, c)
	}()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	got := make(chan string, 1)
	go serveSOCKS5(t, ln, got)

	cfg := &Config{Type: "socks5", Network: "tcp", Address: ln.Addr().String()}
	require.NoError(t, cfg.FixupAndValidate())
	d, err := cfg.ContextDialer("circuit")
	require.NoError(t, err)
	require.NotNil(t, d)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := d.DialContext(ctx, "tcp", echo.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, echo.Addr().String(), <-got)

	_, err = conn.Write([]byte("ping"))
	require.NoError(t, err)
	buf := make([]byte, 4)
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))
}
