package shellrun

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRunReturnsNonZeroExitCode(t *testing.T) {
	dir := t.TempDir()
	code, err := Run("false", dir, os.Environ(), nil)
	if err != nil {
		t.Fatalf("Run should not itself error on a non-zero exit: %v", err)
	}
	if code != 1 {
		t.Errorf("expected exit code 1, got %d", code)
	}
}

func TestRunAbortSignalsShell(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "sleeper.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nsleep 30\n"), 0o755); err != nil {
		t.Fatalf("writing test script: %v", err)
	}

	abort := make(chan struct{})
	close(abort)

	code, err := Run(script, dir, os.Environ(), abort)
	if err != nil {
		t.Fatalf("Run should not error when aborted: %v", err)
	}
	if code == 0 {
		t.Errorf("expected a non-zero exit code from a SIGHUP'd shell, got 0")
	}
}
