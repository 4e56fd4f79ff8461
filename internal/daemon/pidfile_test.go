package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestPIDFile_WriteAndReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")
	pf := NewPIDFile(path)

	if err := pf.Write(); err != nil {
		t.Fatalf("Write: %v", err)
	}

	pid, err := pf.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if pid != os.Getpid() {
		t.Fatalf("got pid %d, want %d", pid, os.Getpid())
	}
}

func TestPIDFile_RunningTrueForCurrentProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")
	pf := NewPIDFile(path)
	if err := pf.Write(); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !pf.Running() {
		t.Fatal("expected Running to be true for own pid")
	}
}

func TestPIDFile_RunningFalseWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")
	pf := NewPIDFile(path)
	if pf.Running() {
		t.Fatal("expected Running to be false for missing pid file")
	}
}

func TestPIDFile_RunningFalseForDeadProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")
	// PID unlikely to exist; large value outside typical PID space.
	if err := os.WriteFile(path, []byte(strconv.Itoa(1<<30)), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	pf := NewPIDFile(path)
	if pf.Running() {
		t.Fatal("expected Running to be false for nonexistent pid")
	}
}

func TestPIDFile_CheckAndClaimSucceedsWhenAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")
	pf := NewPIDFile(path)
	if err := pf.CheckAndClaim(); err != nil {
		t.Fatalf("CheckAndClaim: %v", err)
	}
	if !pf.Running() {
		t.Fatal("expected pid file to be claimed and live")
	}
}

func TestPIDFile_CheckAndClaimReplacesStaleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")
	if err := os.WriteFile(path, []byte(strconv.Itoa(1<<30)), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	pf := NewPIDFile(path)
	if err := pf.CheckAndClaim(); err != nil {
		t.Fatalf("CheckAndClaim: %v", err)
	}
	pid, err := pf.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if pid != os.Getpid() {
		t.Fatalf("got pid %d, want %d", pid, os.Getpid())
	}
}

func TestPIDFile_RemoveIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")
	pf := NewPIDFile(path)
	if err := pf.Remove(); err != nil {
		t.Fatalf("Remove on missing file: %v", err)
	}
	if err := pf.Write(); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := pf.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := pf.Remove(); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
}
