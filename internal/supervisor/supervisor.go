// Package supervisor orchestrates component adapters into a running
// cluster: it topologically layers the dependency DAG, starts each layer
// in parallel, fans in readiness results, and tears everything down in
// reverse start order on any failure or shutdown signal (spec.md §4.8).
// The fan-out/fan-in-over-a-channel shape is grounded in the teacher CLI's
// bubbletea Update loop, which drives concurrent work through tea.Msg
// channels rather than shared mutable state; here it drives process starts
// instead of UI messages.
package supervisor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kubernix/kubernix/internal/components"
	"github.com/kubernix/kubernix/internal/kubernixerr"
	"github.com/kubernix/kubernix/internal/logging"
	"github.com/kubernix/kubernix/internal/process"
	"github.com/kubernix/kubernix/internal/rundescriptor"
	"github.com/kubernix/kubernix/internal/sysprep"
)

// result is what a single adapter's start attempt reports on the fan-in
// channel: its name and whatever error (nil on success) it produced.
type result struct {
	name string
	err  error
}

// Event is a component state transition, published on the channel returned
// by Events for the optional progress dashboard (spec.md §4.11) to render.
// It never participates in readiness decisions — the supervisor's own
// fan-in channel already drives that.
type Event struct {
	Name  string
	State process.Status
	Err   error
}

const eventBacklog = 64

// Supervisor runs a set of adapters to completion and owns their process
// handles until teardown.
type Supervisor struct {
	adapters map[string]components.Adapter
	layers   [][]string
	env      components.Env
	log      logging.Logger

	mu       sync.Mutex
	handles  map[string]*process.Handle
	started  []string // names in the exact order Ready was observed, for reverse teardown

	shutdown chan struct{}
	once     sync.Once

	events chan Event
}

// New builds a Supervisor from a full adapter list, computing topological
// layers up front. Returns an error if the DAG has a cycle or references
// an unknown dependency.
func New(adapters []components.Adapter, env components.Env, log logging.Logger) (*Supervisor, error) {
	byName := make(map[string]components.Adapter, len(adapters))
	for _, a := range adapters {
		byName[a.Name] = a
	}
	layers, err := topoLayers(byName)
	if err != nil {
		return nil, err
	}
	return &Supervisor{
		adapters: byName,
		layers:   layers,
		env:      env,
		log:      log,
		handles:  make(map[string]*process.Handle),
		shutdown: make(chan struct{}),
		events:   make(chan Event, eventBacklog),
	}, nil
}

// Events returns the channel of component state transitions. The dashboard
// is the only consumer in practice; if nothing drains it, emit drops events
// once the backlog fills rather than blocking the supervisor.
func (s *Supervisor) Events() <-chan Event { return s.events }

func (s *Supervisor) emit(name string, state process.Status, err error) {
	select {
	case s.events <- Event{Name: name, State: state, Err: err}:
	default:
	}
}

// Shutdown broadcasts the single shutdown token (spec.md §5's cancellation
// model). Safe to call more than once and from any goroutine.
func (s *Supervisor) Shutdown() {
	s.once.Do(func() { close(s.shutdown) })
}

// ShutdownRequested reports whether Shutdown has been called.
func (s *Supervisor) ShutdownRequested() bool {
	select {
	case <-s.shutdown:
		return true
	default:
		return false
	}
}

// Handle returns the process handle for a started component, if any.
func (s *Supervisor) Handle(name string) (*process.Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handles[name]
	return h, ok
}

// WatchExits fans in every currently-started component's Done() channel and
// reports the first one to fire by name, for callers that need to notice a
// mid-session death (spec.md §7: a ProcessExited while the shell has control
// aborts it). The returned channel is never closed; it is abandoned once ctx
// is done.
func (s *Supervisor) WatchExits(ctx context.Context) <-chan string {
	s.mu.Lock()
	handles := make(map[string]*process.Handle, len(s.handles))
	for name, h := range s.handles {
		handles[name] = h
	}
	s.mu.Unlock()

	ch := make(chan string, 1)
	for name, h := range handles {
		name, h := name, h
		go func() {
			select {
			case <-h.Done():
				select {
				case ch <- name:
				default:
				}
			case <-ctx.Done():
			}
		}()
	}
	return ch
}

// Start runs every layer in order, starting all members of a layer in
// parallel and blocking until every member of that layer is Ready before
// moving to the next. On any failure it tears down everything started so
// far and returns StartFailed-shaped error.
func (s *Supervisor) Start(ctx context.Context) error {
	defer close(s.events)
	for _, layer := range s.layers {
		if err := s.startLayer(ctx, layer); err != nil {
			s.log.Error("start failed, tearing down: %v", err)
			s.Teardown(10 * time.Second)
			return err
		}
	}
	return nil
}

func (s *Supervisor) startLayer(ctx context.Context, layer []string) error {
	layerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan result, len(layer))
	for _, name := range layer {
		name := name
		go func() {
			results <- result{name: name, err: s.startOne(layerCtx, name)}
		}()
	}

	var firstErr error
	for range layer {
		r := <-results
		if r.err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", r.name, r.err)
			cancel() // cancel any still-in-flight siblings in this layer
			s.log.Error("%s failed: %v", r.name, r.err)
			if lines, err := process.TailLines(s.adapters[r.name].LogPath(s.env), 20); err == nil {
				for _, line := range lines {
					s.log.Error("%s | %s", r.name, line)
				}
			}
		}
	}
	return firstErr
}

func (s *Supervisor) startOne(ctx context.Context, name string) error {
	adapter := s.adapters[name]
	logPath := adapter.LogPath(s.env)

	s.emit(name, process.Spawning, nil)

	if adapter.BuildArgv == nil {
		// Apply-only component (CoreDNS): no process to spawn, just run
		// PostStart and poll readiness.
		if adapter.PostStart != nil {
			if err := adapter.PostStart(ctx, s.env); err != nil {
				s.emit(name, process.Failed, err)
				return kubernixerr.New(kubernixerr.KubectlError, name, err)
			}
		}
		if adapter.Readiness != nil {
			if err := waitPredicate(ctx, adapter.Readiness(s.env), adapter.ReadyTimeout); err != nil {
				s.emit(name, process.Failed, err)
				return err
			}
		}
		s.mu.Lock()
		s.started = append(s.started, name)
		s.mu.Unlock()
		s.emit(name, process.Ready, nil)
		return nil
	}

	if adapter.PreStart != nil {
		if err := adapter.PreStart(ctx, s.env); err != nil {
			s.emit(name, process.Failed, err)
			return kubernixerr.New(kubernixerr.RuntimeDriverError, name, err)
		}
	}

	argv, err := adapter.BuildArgv(s.env)
	if err != nil {
		s.emit(name, process.Failed, err)
		return kubernixerr.New(kubernixerr.ConfigError, name, err)
	}

	componentDir := adapter.ComponentDir(s.env)
	cwd := s.env.Paths.ComponentDir(componentDir)

	h, err := process.Spawn(name, argv, nil, cwd, logPath, s.log.WithComponent(name))
	if err != nil {
		s.emit(name, process.Failed, err)
		return err
	}

	s.mu.Lock()
	s.handles[name] = h
	s.mu.Unlock()

	if err := rundescriptor.Write(s.env.Paths.RunDescriptor(componentDir), argv, nil); err != nil {
		s.log.Warn("%s: failed to persist run descriptor: %v", name, err)
	}

	if adapter.Readiness != nil {
		if err := h.WaitReady(ctx, adapter.Readiness(s.env), adapter.ReadyTimeout, 100*time.Millisecond); err != nil {
			s.emit(name, process.Failed, err)
			return err
		}
	}

	if adapter.PostStart != nil {
		if err := adapter.PostStart(ctx, s.env); err != nil {
			s.emit(name, process.Failed, err)
			return err
		}
	}

	s.mu.Lock()
	s.started = append(s.started, name)
	s.mu.Unlock()
	s.emit(name, process.Ready, nil)
	return nil
}

func waitPredicate(ctx context.Context, predicate process.Predicate, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := predicate(ctx)
		if err == nil && ok {
			return nil
		}
		if time.Now().After(deadline) {
			return kubernixerr.New(kubernixerr.ReadyTimeout, "", fmt.Errorf("timed out after %s waiting for readiness", timeout))
		}
		select {
		case <-time.After(100 * time.Millisecond):
		case <-ctx.Done():
			return kubernixerr.New(kubernixerr.ReadyTimeout, "", ctx.Err())
		}
	}
}

// Teardown stops every spawned process (first those that never became
// Ready, then the rest in strict reverse start order), removes any node
// containers, and unmounts anything left under the run root (spec.md §4.7,
// §4.8), collecting (but never aborting on) failures, then logs a summary.
func (s *Supervisor) Teardown(grace time.Duration) {
	s.mu.Lock()
	started := append([]string(nil), s.started...)
	isReady := make(map[string]bool, len(started))
	for _, name := range started {
		isReady[name] = true
	}
	var unready []string
	for name := range s.handles {
		if !isReady[name] {
			unready = append(unready, name)
		}
	}
	s.mu.Unlock()
	// Spawned-but-never-Ready processes come from the latest layer, so they
	// go last in start order and are stopped first.
	sort.Strings(unready)
	started = append(started, unready...)

	var failures []string
	for i := len(started) - 1; i >= 0; i-- {
		name := started[i]
		s.mu.Lock()
		h, ok := s.handles[name]
		s.mu.Unlock()
		if !ok {
			continue // apply-only component, nothing to stop
		}
		if err := h.Stop(grace); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", name, err))
		}
	}

	if s.env.NodeManager != nil {
		ctx, cancel := context.WithTimeout(context.Background(), grace)
		nodeErrs := s.env.NodeManager.Teardown(ctx)
		cancel()
		for _, err := range nodeErrs {
			failures = append(failures, fmt.Sprintf("node teardown: %v", err))
		}
	}

	mounts, err := sysprep.MountsUnder(s.env.Paths.Root)
	if err != nil {
		failures = append(failures, fmt.Sprintf("listing mounts under %s: %v", s.env.Paths.Root, err))
	} else {
		for _, err := range sysprep.UnmountAll(mounts) {
			failures = append(failures, fmt.Sprintf("unmount: %v", err))
		}
	}

	if len(failures) == 0 {
		s.log.Info("teardown complete, %d component(s) stopped", len(started))
	} else {
		s.log.Error("teardown finished with %d failure(s): %v", len(failures), failures)
	}
}

// topoLayers computes Kahn's-algorithm layers (all nodes with satisfied
// dependencies at once) so the caller can start each layer in parallel.
func topoLayers(byName map[string]components.Adapter) ([][]string, error) {
	indegree := make(map[string]int, len(byName))
	dependents := make(map[string][]string, len(byName))

	for name, a := range byName {
		if _, ok := indegree[name]; !ok {
			indegree[name] = 0
		}
		for _, dep := range a.Dependencies {
			if _, ok := byName[dep]; !ok {
				return nil, kubernixerr.New(kubernixerr.ConfigError, name, fmt.Errorf("unknown dependency %q", dep))
			}
			indegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var layers [][]string
	remaining := len(byName)
	for remaining > 0 {
		var layer []string
		for name, deg := range indegree {
			if deg == 0 {
				layer = append(layer, name)
			}
		}
		if len(layer) == 0 {
			return nil, kubernixerr.New(kubernixerr.ConfigError, "", fmt.Errorf("dependency cycle detected among components"))
		}
		sort.Strings(layer) // deterministic ordering for tests/logs
		for _, name := range layer {
			delete(indegree, name)
			remaining--
			for _, dep := range dependents[name] {
				indegree[dep]--
			}
		}
		layers = append(layers, layer)
	}
	return layers, nil
}
