// Package process wraps a single supervised subprocess: spawn into its own
// process group, stream stdout+stderr to a log file, poll a readiness
// predicate, and stop gracefully with a SIGKILL fallback (spec.md §4.5).
// The exec.Command/timeout-kill-goroutine shape is grounded in the teacher
// CLI's internal/kubectl/executer.go; process-group signaling generalizes
// that single-shot timeout into a full supervised lifecycle.
package process

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/kubernix/kubernix/internal/kubernixerr"
	"github.com/kubernix/kubernix/internal/logging"
)

// Status is a process's lifecycle state (spec.md §4.8's per-process state
// machine, without separate Stopping or Stopped states: a process that
// exits after Stop's SIGTERM ends up Exited if it had become Ready and
// Failed otherwise, and one that needed SIGKILL ends up Killed).
type Status int

const (
	Spawning Status = iota
	Ready
	Exited
	Killed
	Failed
)

func (s Status) String() string {
	switch s {
	case Spawning:
		return "spawning"
	case Ready:
		return "ready"
	case Exited:
		return "exited"
	case Killed:
		return "killed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Handle is a live supervised process.
type Handle struct {
	Name    string
	Argv    []string
	Env     []string
	Cwd     string
	LogPath string

	mu       sync.Mutex
	cmd      *exec.Cmd
	logFile  *os.File
	status   Status
	exitCode int
	waitErr  error
	waitDone chan struct{}

	log logging.Logger
}

// Spawn opens logPath append-only, forks argv[0] with stdout+stderr
// redirected to it in a fresh process group, and records the pid.
func Spawn(name string, argv, env []string, cwd, logPath string, log logging.Logger) (*Handle, error) {
	if len(argv) == 0 {
		return nil, kubernixerr.New(kubernixerr.ProcessSpawnError, name, fmt.Errorf("empty argv"))
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, kubernixerr.New(kubernixerr.ProcessSpawnError, name, fmt.Errorf("creating log dir: %w", err))
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, kubernixerr.New(kubernixerr.ProcessSpawnError, name, fmt.Errorf("opening log file: %w", err))
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = env
	cmd.Dir = cwd
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return nil, kubernixerr.New(kubernixerr.ProcessSpawnError, name, fmt.Errorf("starting %s: %w", argv[0], err))
	}

	h := &Handle{
		Name:     name,
		Argv:     argv,
		Env:      env,
		Cwd:      cwd,
		LogPath:  logPath,
		cmd:      cmd,
		logFile:  logFile,
		status:   Spawning,
		waitDone: make(chan struct{}),
		log:      log,
	}

	go h.reap()

	return h, nil
}

func (h *Handle) reap() {
	err := h.cmd.Wait()
	h.mu.Lock()
	h.waitErr = err
	if h.status == Ready {
		h.status = Exited
	} else if h.status != Killed {
		h.status = Failed
	}
	if h.cmd.ProcessState != nil {
		h.exitCode = h.cmd.ProcessState.ExitCode()
	}
	h.logFile.Close()
	h.mu.Unlock()
	close(h.waitDone)
}

// Predicate is polled by WaitReady until it returns true or the deadline
// passes. It must be safe to call repeatedly and should not block long.
type Predicate func(ctx context.Context) (bool, error)

// WaitReady polls predicate at pollInterval until it reports true, the
// process exits early, or timeout elapses.
func (h *Handle) WaitReady(ctx context.Context, predicate Predicate, timeout, pollInterval time.Duration) error {
	if pollInterval <= 0 {
		pollInterval = 100 * time.Millisecond
	}
	deadline := time.Now().Add(timeout)

	for {
		select {
		case <-h.waitDone:
			h.mu.Lock()
			status := h.status
			h.mu.Unlock()
			if status != Ready {
				return kubernixerr.New(kubernixerr.ProcessSpawnError, h.Name, fmt.Errorf("process exited before becoming ready"))
			}
			return nil
		case <-ctx.Done():
			return kubernixerr.New(kubernixerr.ReadyTimeout, h.Name, ctx.Err())
		default:
		}

		ok, err := predicate(ctx)
		if err == nil && ok {
			h.mu.Lock()
			h.status = Ready
			h.mu.Unlock()
			return nil
		}

		if time.Now().After(deadline) {
			return kubernixerr.New(kubernixerr.ReadyTimeout, h.Name, fmt.Errorf("timed out after %s waiting for readiness", timeout))
		}
		select {
		case <-time.After(pollInterval):
		case <-h.waitDone:
		case <-ctx.Done():
			return kubernixerr.New(kubernixerr.ReadyTimeout, h.Name, ctx.Err())
		}
	}
}

// Stop sends SIGTERM to the process group, waits up to grace, and escalates
// to SIGKILL if the process has not exited by then. Always reaps.
func (h *Handle) Stop(grace time.Duration) error {
	h.mu.Lock()
	pid := h.cmd.Process.Pid
	h.mu.Unlock()

	if err := unix.Kill(-pid, syscall.SIGTERM); err != nil && err != unix.ESRCH {
		if h.log != nil {
			h.log.Warn("%s: sigterm failed, will escalate to sigkill: %v", h.Name, err)
		}
	}

	select {
	case <-h.waitDone:
		return nil
	case <-time.After(grace):
	}

	h.mu.Lock()
	h.status = Killed
	h.mu.Unlock()
	if err := unix.Kill(-pid, syscall.SIGKILL); err != nil && err != unix.ESRCH {
		<-h.waitDone
		return kubernixerr.New(kubernixerr.TeardownError, h.Name, fmt.Errorf("sigkill failed: %w", err))
	}
	<-h.waitDone
	return nil
}

// Status returns a non-blocking snapshot of the process's current state.
func (h *Handle) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Pid returns the spawned process's pid.
func (h *Handle) Pid() int {
	return h.cmd.Process.Pid
}

// ExitCode returns the process's exit code once it has exited; 0 while
// still running.
func (h *Handle) ExitCode() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode
}

// Done returns a channel closed once the process has been reaped.
func (h *Handle) Done() <-chan struct{} { return h.waitDone }
