// Package runtime drives a Docker-compatible container runtime (default
// podman) to host worker nodes beyond node 0 (spec.md §4.7). Every call
// shells out to the configured runtime binary the same way the teacher
// CLI's internal/system and internal/kubectl packages shell out to
// external tools via os/exec.
package runtime

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/kubernix/kubernix/internal/kubernixerr"
)

// Driver shells out to a single Docker-compatible runtime binary.
type Driver struct {
	Bin string // e.g. "podman"
}

func New(bin string) Driver { return Driver{Bin: bin} }

// Mount is a bind mount from the host into the container.
type Mount struct {
	Source string
	Target string
}

// Create launches a privileged, host-networked container named name from
// image, with mounts bound in and env applied, and returns its id.
func (d Driver) Create(ctx context.Context, name, image string, mounts []Mount, env map[string]string) (string, error) {
	args := []string{
		"run", "-d",
		"--name", name,
		"--privileged",
		"--network", "host",
		"--pid", "host",
	}
	for _, m := range mounts {
		args = append(args, "-v", fmt.Sprintf("%s:%s", m.Source, m.Target))
	}
	for k, v := range env {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, v))
	}
	args = append(args, image, "sleep", "infinity")

	out, err := exec.CommandContext(ctx, d.Bin, args...).CombinedOutput()
	if err != nil {
		return "", kubernixerr.New(kubernixerr.RuntimeDriverError, name, fmt.Errorf("creating node container: %w: %s", err, out))
	}
	return strings.TrimSpace(string(out)), nil
}

// ExecArgv returns the argv that runs argv inside the container named id,
// for callers that hand the result to their own process supervision (e.g.
// node.Manager.WrapArgv) instead of running it through Exec directly.
func (d Driver) ExecArgv(id string, argv []string) []string {
	return append([]string{d.Bin, "exec", id}, argv...)
}

// Exec runs argv inside the container named id and waits for it to finish,
// returning combined output. Used for one-shot smoke checks, not for
// long-running adapters, which are launched via ExecArgv and
// process.Spawn so they stay under the same supervision every host
// component gets.
func (d Driver) Exec(ctx context.Context, id string, argv []string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, d.Bin, d.ExecArgv(id, argv)[1:]...).CombinedOutput()
	if err != nil {
		return out, kubernixerr.New(kubernixerr.RuntimeDriverError, id, fmt.Errorf("exec failed: %w", err))
	}
	return out, nil
}

// Remove force-removes the container named id, ignoring a not-found error
// since teardown must proceed regardless.
func (d Driver) Remove(ctx context.Context, id string) error {
	out, err := exec.CommandContext(ctx, d.Bin, "rm", "-f", id).CombinedOutput()
	if err != nil && !strings.Contains(string(out), "no such container") {
		return kubernixerr.New(kubernixerr.TeardownError, id, fmt.Errorf("removing node container: %w: %s", err, out))
	}
	return nil
}
