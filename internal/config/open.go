package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/lockline/lockline-go/pkg/log"
	"github.com/lockline/lockline-go/pkg/persistence"
	"github.com/lockline/lockline-go/pkg/transport"
)

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("%w: log level %q", ErrInvalid, s)
}

// NewLogger returns the operational logger writing to w.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(l.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ProtocolLogger returns the protocol trace logger and a closer for it.
// Without a protocol file, debug-level trace events go to logger and the
// closer is a no-op.
func (l LogConfig) ProtocolLogger(logger *slog.Logger) (log.Logger, io.Closer, error) {
	console := log.NewSlogAdapter(logger)
	if l.ProtocolFile == "" {
		return console, nopCloser{}, nil
	}
	file, err := log.NewFileLogger(l.ProtocolFile)
	if err != nil {
		return nil, nil, fmt.Errorf("config: protocol log: %w", err)
	}
	return log.NewMultiLogger(console, file), file, nil
}

// Open opens the configured store. Close the returned closer on shutdown.
func (s StoreConfig) Open() (persistence.Memory, io.Closer, error) {
	switch s.Kind {
	case StoreMemory:
		return persistence.NewMemMemory(s.Size), nopCloser{}, nil
	case StoreSQLite:
		m, err := persistence.OpenSQLiteMemory(s.Path, s.Size)
		if err != nil {
			return nil, nil, err
		}
		return m, m, nil
	case StoreFile:
		m, err := persistence.OpenFileMemory(s.Path, s.Size)
		if err != nil {
			return nil, nil, err
		}
		return m, m, nil
	}
	return nil, nil, fmt.Errorf("%w: store kind %q", ErrInvalid, s.Kind)
}

// OpenSerial opens the serial link.
func (l LinkConfig) OpenSerial() (transport.Link, error) {
	return transport.OpenSerial(l.Serial())
}

// DialPanel connects the panel to the controller over TCP, browsing mDNS
// when no address is configured.
func (l LinkConfig) DialPanel(ctx context.Context) (transport.Link, error) {
	addr := l.Address
	if addr == "" {
		found, err := transport.Browse(ctx)
		if err != nil {
			return nil, err
		}
		addr = found
	}
	return transport.Dial(ctx, addr)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
