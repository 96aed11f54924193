// Package node manages the container lifecycle for worker nodes beyond
// node 0 (spec.md §4.7). Node 0 always runs its kubelet/proxy/CRI-O
// directly on the host; nodes 1..N-1 get a privileged, host-networked
// container created lazily on first use and removed by Teardown.
package node

import (
	"context"
	"fmt"
	"sync"

	"github.com/kubernix/kubernix/internal/paths"
	"github.com/kubernix/kubernix/internal/runtime"
)

// Manager tracks the one container created per non-zero node index.
type Manager struct {
	driver runtime.Driver
	paths  paths.Paths
	image  string

	mu         sync.Mutex
	containers map[int]string // node index -> container id
}

func NewManager(driver runtime.Driver, p paths.Paths, image string) *Manager {
	return &Manager{driver: driver, paths: p, image: image, containers: make(map[int]string)}
}

// Ensure creates node i's container if it doesn't exist yet. A no-op for
// node 0, which runs on the host.
func (m *Manager) Ensure(ctx context.Context, i int) error {
	if i == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.containers[i]; ok {
		return nil
	}

	name := fmt.Sprintf("kubernix-node-%d", i)
	mounts := []runtime.Mount{{Source: m.paths.Root, Target: m.paths.Root}}
	id, err := m.driver.Create(ctx, name, m.image, mounts, nil)
	if err != nil {
		return err
	}
	if _, err := m.driver.Exec(ctx, id, []string{"true"}); err != nil {
		return err
	}
	m.containers[i] = id
	return nil
}

// WrapArgv returns argv unchanged for node 0 (host execution); for other
// nodes it prefixes argv with the runtime's exec invocation against that
// node's container, so the result can still be handed to process.Spawn as
// an ordinary local command.
func (m *Manager) WrapArgv(i int, argv []string) []string {
	if i == 0 {
		return argv
	}
	m.mu.Lock()
	id := m.containers[i]
	m.mu.Unlock()
	return m.driver.ExecArgv(id, argv)
}

// Teardown removes every container this manager created, in no particular
// order, continuing past individual failures.
func (m *Manager) Teardown(ctx context.Context) []error {
	m.mu.Lock()
	ids := make(map[int]string, len(m.containers))
	for i, id := range m.containers {
		ids[i] = id
	}
	m.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := m.driver.Remove(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
