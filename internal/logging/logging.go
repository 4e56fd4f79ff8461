// Package logging provides the daemon's structured logger, bootstrapped
// to stderr before configuration is available and upgraded to fan out
// to stderr plus a JSON log file once it is.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	slogmulti "github.com/samber/slog-multi"
)

// Manager owns the daemon's logger across its bootstrap-to-full
// transition. Components obtain a logger via Logger() once, at
// construction, and keep using it: Upgrade swaps the handler
// underneath without invalidating that reference.
type Manager struct {
	handler *SwappableHandler
	logger  *slog.Logger
	logFile *os.File
	level   *slog.LevelVar
	mu      sync.Mutex
}

// NewManager creates a Manager in bootstrap mode: text to stderr only,
// at DefaultLevel. Call Upgrade once the config file has been loaded.
func NewManager() *Manager {
	level := new(slog.LevelVar)
	level.Set(DefaultLevel)

	bootstrap := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	handler := NewSwappableHandler(bootstrap)

	return &Manager{
		handler: handler,
		logger:  slog.New(handler),
		level:   level,
	}
}

// Logger returns the manager's logger. The reference is stable across
// Upgrade and SetLevel calls.
func (m *Manager) Logger() *slog.Logger {
	return m.logger
}

// Upgrade transitions to full mode: stderr text plus JSON appended to
// logFilePath, at the given level. Creates the parent directory if
// needed.
func (m *Manager) Upgrade(logFilePath string, level slog.Level) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	dir := filepath.Dir(logFilePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create log directory %q: %w", dir, err)
	}

	file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file %q: %w", logFilePath, err)
	}

	if m.logFile != nil {
		_ = m.logFile.Close()
	}
	m.logFile = file
	m.level.Set(level)

	opts := &slog.HandlerOptions{Level: m.level}
	full := slogmulti.Fanout(
		slog.NewTextHandler(os.Stderr, opts),
		slog.NewJSONHandler(file, opts),
	)
	m.handler.Swap(full)
	return nil
}

// SetLevel changes the active log level immediately.
func (m *Manager) SetLevel(level slog.Level) {
	m.level.Set(level)
}

// Close closes the log file, if one is open.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.logFile != nil {
		err := m.logFile.Close()
		m.logFile = nil
		return err
	}
	return nil
}
