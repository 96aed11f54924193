// Package shellrun launches the user's shell in the foreground once the
// cluster is ready, with its environment pointed at the cluster, and
// blocks until it exits (spec.md §4.9).
package shellrun

import (
	"os"
	"os/exec"
	"syscall"

	"github.com/kubernix/kubernix/internal/kubernixerr"
)

// Run execs shellPath as a foreground child with cwd and env, attaching
// its stdio to the current process's, and waits for it to exit. The
// returned exit code is the shell's; a non-zero code is not itself an
// error, since the user choosing to exit a shell with status 1 isn't a
// KuberNix failure.
//
// abort, if it fires before the shell exits on its own, delivers SIGHUP to
// the shell (spec.md §7: a supervised component dying mid-session aborts
// the shell rather than leaving it attached to a half-torn-down cluster).
func Run(shellPath, cwd string, env []string, abort <-chan struct{}) (int, error) {
	cmd := exec.Command(shellPath)
	cmd.Dir = cwd
	cmd.Env = env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return -1, kubernixerr.New(kubernixerr.ProcessSpawnError, "shell", err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-abort:
			if cmd.Process != nil {
				cmd.Process.Signal(syscall.SIGHUP)
			}
		case <-done:
		}
	}()

	err := cmd.Wait()
	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return -1, kubernixerr.New(kubernixerr.ProcessSpawnError, "shell", err)
}
