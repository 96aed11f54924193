package process

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kubernix/kubernix/internal/kubernixerr"
	"github.com/kubernix/kubernix/internal/logging"
)

func TestSpawnWaitReadyAndStop(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "test.log")

	h, err := Spawn("sleeper", []string{"sh", "-c", "echo booted; sleep 30"}, os.Environ(), dir, logPath, logging.Discard())
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.WaitReady(ctx, LogContains(logPath, "booted"), 5*time.Second, 20*time.Millisecond); err != nil {
		t.Fatalf("WaitReady failed: %v", err)
	}
	if h.Status() != Ready {
		t.Errorf("expected status Ready, got %s", h.Status())
	}

	if err := h.Stop(2 * time.Second); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	select {
	case <-h.Done():
	default:
		t.Errorf("expected process to be reaped after Stop")
	}
}

func TestWaitReadyTimesOutWhenPredicateNeverTrue(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "test.log")

	h, err := Spawn("sleeper", []string{"sleep", "30"}, os.Environ(), dir, logPath, logging.Discard())
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	defer h.Stop(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err = h.WaitReady(ctx, func(context.Context) (bool, error) { return false, nil }, 200*time.Millisecond, 20*time.Millisecond)
	if err == nil {
		t.Fatal("expected a ReadyTimeout error")
	}
	if !kubernixerr.Is(err, kubernixerr.ReadyTimeout) {
		t.Errorf("expected ReadyTimeout kind, got %v", err)
	}
}

func TestWaitReadyFailsWhenProcessExitsEarly(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "test.log")

	h, err := Spawn("quick", []string{"sh", "-c", "exit 1"}, os.Environ(), dir, logPath, logging.Discard())
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err = h.WaitReady(ctx, func(context.Context) (bool, error) { return false, nil }, 2*time.Second, 20*time.Millisecond)
	if err == nil {
		t.Fatal("expected an error when the process exits before becoming ready")
	}
}

func TestTailLinesReturnsLastN(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "test.log")
	content := "one\ntwo\nthree\nfour\nfive\n"
	if err := os.WriteFile(logPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	lines, err := TailLines(logPath, 2)
	if err != nil {
		t.Fatalf("TailLines failed: %v", err)
	}
	if len(lines) != 2 || lines[0] != "four" || lines[1] != "five" {
		t.Errorf("expected last 2 lines [four five], got %v", lines)
	}
}
