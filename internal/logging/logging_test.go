package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewManager_BootstrapMode(t *testing.T) {
	mgr := NewManager()
	defer mgr.Close()

	if mgr.Logger() == nil {
		t.Fatal("Logger() returned nil")
	}
}

func TestManager_Logger_Stable(t *testing.T) {
	mgr := NewManager()
	defer mgr.Close()

	if mgr.Logger() != mgr.Logger() {
		t.Error("Logger() should return the same instance across calls")
	}
}

func TestManager_Upgrade_CreatesLogFile(t *testing.T) {
	mgr := NewManager()
	defer mgr.Close()

	logFile := filepath.Join(t.TempDir(), "daemon.log")
	if err := mgr.Upgrade(logFile, slog.LevelInfo); err != nil {
		t.Fatalf("Upgrade() error = %v", err)
	}

	mgr.Logger().Info("scan complete", "files", 42)

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &entry); err != nil {
		t.Fatalf("log file content is not valid JSON: %v\ncontent: %s", err, content)
	}
	if entry["msg"] != "scan complete" {
		t.Errorf("unexpected msg: %v", entry["msg"])
	}
}

func TestManager_Upgrade_CreatesParentDirs(t *testing.T) {
	mgr := NewManager()
	defer mgr.Close()

	logFile := filepath.Join(t.TempDir(), "nested", "dirs", "daemon.log")
	if err := mgr.Upgrade(logFile, slog.LevelInfo); err != nil {
		t.Fatalf("Upgrade() should create parent directories, got: %v", err)
	}
	if _, err := os.Stat(logFile); err != nil {
		t.Errorf("log file was not created: %v", err)
	}
}

func TestManager_Close_IsIdempotent(t *testing.T) {
	mgr := NewManager()
	logFile := filepath.Join(t.TempDir(), "daemon.log")
	if err := mgr.Upgrade(logFile, slog.LevelInfo); err != nil {
		t.Fatalf("Upgrade() error = %v", err)
	}
	if err := mgr.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := mgr.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestManager_SetLevel_AppliesImmediately(t *testing.T) {
	mgr := NewManager()
	defer mgr.Close()

	logFile := filepath.Join(t.TempDir(), "daemon.log")
	if err := mgr.Upgrade(logFile, slog.LevelInfo); err != nil {
		t.Fatalf("Upgrade() error = %v", err)
	}

	mgr.Logger().Debug("suppressed")
	mgr.SetLevel(slog.LevelDebug)
	mgr.Logger().Debug("visible")

	content, _ := os.ReadFile(logFile)
	output := string(content)
	if strings.Contains(output, "suppressed") {
		t.Error("debug message logged before SetLevel(Debug) should be suppressed")
	}
	if !strings.Contains(output, "visible") {
		t.Error("debug message logged after SetLevel(Debug) should appear")
	}
}

func TestManager_Upgrade_PathIsDirectory(t *testing.T) {
	mgr := NewManager()
	defer mgr.Close()

	if err := mgr.Upgrade(t.TempDir(), slog.LevelInfo); err == nil {
		t.Error("expected error upgrading to a directory path")
	}
}

func TestParseLevelOrDefault(t *testing.T) {
	cases := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
	}
	for _, c := range cases {
		if got := ParseLevelOrDefault(c.input); got != c.want {
			t.Errorf("ParseLevelOrDefault(%q) = %v, want %v", c.input, got, c.want)
		}
	}
}

func TestLogger_With_CreatesChild(t *testing.T) {
	mgr := NewManager()
	defer mgr.Close()

	logFile := filepath.Join(t.TempDir(), "daemon.log")
	if err := mgr.Upgrade(logFile, slog.LevelInfo); err != nil {
		t.Fatalf("Upgrade() error = %v", err)
	}

	child := mgr.Logger().With("component", "scanner")
	if child == mgr.Logger() {
		t.Error("With() should return a distinct logger instance")
	}
	child.Info("scan started")

	content, _ := os.ReadFile(logFile)
	if !strings.Contains(string(content), "scan started") {
		t.Error("child logger message should appear in the log file")
	}
}
