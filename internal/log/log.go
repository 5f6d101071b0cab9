// Package log provides the logging backend shared by every component,
// based around the go-logging package.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"gopkg.in/op/go-logging.v1"
)

const logFormat = "%{time:15:04:05.000} %{level:.4s} %{module}: %{message}"

// Backend is a leveled log backend writing to stdout, a file or nowhere.
type Backend struct {
	sync.RWMutex

	backend logging.LeveledBackend
	w       io.Writer
	closer  io.Closer

	file    string
	level   logging.Level
	disable bool
}

// New initializes a logging backend.
func New(file, level string, disable bool) (*Backend, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	b := &Backend{file: file, level: lvl, disable: disable}
	if err := b.open(); err != nil {
		return nil, err
	}
	return b, nil
}

// NewDiscard returns a backend that drops everything. Used by tests.
func NewDiscard() *Backend {
	b, _ := New("", "ERROR", true)
	return b
}

func (b *Backend) open() error {
	switch {
	case b.disable:
		b.w = io.Discard
	case b.file == "":
		b.w = os.Stdout
	default:
		f, err := os.OpenFile(b.file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return fmt.Errorf("log: failed to open log file: %w", err)
		}
		b.w, b.closer = f, f
	}
	base := logging.NewLogBackend(b.w, "", 0)
	formatted := logging.NewBackendFormatter(base, logging.MustStringFormatter(logFormat))
	b.backend = logging.AddModuleLevel(formatted)
	b.backend.SetLevel(b.level, "")
	return nil
}

// Log implements logging.Backend.
func (b *Backend) Log(level logging.Level, calldepth int, rec *logging.Record) error {
	b.RLock()
	defer b.RUnlock()
	return b.backend.Log(level, calldepth, rec)
}

// GetLevel implements logging.Leveled.
func (b *Backend) GetLevel(module string) logging.Level {
	b.RLock()
	defer b.RUnlock()
	return b.backend.GetLevel(module)
}

// SetLevel implements logging.Leveled.
func (b *Backend) SetLevel(level logging.Level, module string) {
	b.RLock()
	defer b.RUnlock()
	b.backend.SetLevel(level, module)
}

// IsEnabledFor implements logging.Leveled.
func (b *Backend) IsEnabledFor(level logging.Level, module string) bool {
	b.RLock()
	defer b.RUnlock()
	return b.backend.IsEnabledFor(level, module)
}

// GetLogger returns a per-module logger that writes to the backend.
func (b *Backend) GetLogger(module string) *logging.Logger {
	l := logging.MustGetLogger(module)
	l.SetBackend(b)
	return l
}

// Rotate reopens the log file, for use from a SIGHUP handler.
func (b *Backend) Rotate() error {
	b.Lock()
	defer b.Unlock()
	if b.closer != nil {
		if err := b.closer.Close(); err != nil {
			return err
		}
		b.closer = nil
	}
	return b.open()
}

// Close releases the log file, if any.
func (b *Backend) Close() error {
	b.Lock()
	defer b.Unlock()
	if b.closer == nil {
		return nil
	}
	err := b.closer.Close()
	b.closer = nil
	return err
}

// ParseLevel maps ERROR, WARNING, NOTICE, INFO and DEBUG (any case) to a
// go-logging level.
func ParseLevel(l string) (logging.Level, error) {
	switch strings.ToUpper(l) {
	case "ERROR":
		return logging.ERROR, nil
	case "WARNING":
		return logging.WARNING, nil
	case "NOTICE":
		return logging.NOTICE, nil
	case "INFO":
		return logging.INFO, nil
	case "DEBUG":
		return logging.DEBUG, nil
	default:
		return logging.CRITICAL, fmt.Errorf("log: invalid level: '%v'", l)
	}
}
