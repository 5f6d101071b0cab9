package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/op/go-logging.v1"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want logging.Level
		err  bool
	}{
		{"debug", logging.DEBUG, false},
		{"NOTICE", logging.NOTICE, false},
		{"Warning", logging.WARNING, false},
		{"chatty", logging.CRITICAL, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestBackend_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.log")
	b, err := New(path, "INFO", false)
	require.NoError(t, err)

	l := b.GetLogger("circuit")
	l.Info("built circuit")
	l.Debug("hidden at INFO")
	require.NoError(t, b.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(raw)
	require.Contains(t, out, "INFO circuit: built circuit")
	require.False(t, strings.Contains(out, "hidden at INFO"))
}

func TestNew_BadLevel(t *testing.T) {
	_, err := New("", "LOUD", false)
	require.Error(t, err)
}

func TestBackend_Rotate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.log")
	b, err := New(path, "NOTICE", false)
	require.NoError(t, err)
	defer b.Close()

	l := b.GetLogger("rotate")
	l.Notice("before")
	require.NoError(t, os.Rename(path, filepath.Join(dir, "client.log.1")))
	require.NoError(t, b.Rotate())
	l.Notice("after")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), "after")
	require.NotContains(t, string(raw), "before")
}

func TestNewDiscard(t *testing.T) {
	b := NewDiscard()
	require.False(t, b.IsEnabledFor(logging.INFO, "x"))
	b.GetLogger("x").Error("dropped")
	require.NoError(t, b.Close())
}
