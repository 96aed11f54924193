package supervisor

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kubernix/kubernix/internal/components"
	"github.com/kubernix/kubernix/internal/kubernixerr"
	"github.com/kubernix/kubernix/internal/logging"
	"github.com/kubernix/kubernix/internal/process"
)

// fakeAdapter builds an apply-only adapter (nil BuildArgv) that records its
// start in order, optionally failing, without spawning a real
// process — enough surface to exercise layering, fan-in, and teardown.
func fakeAdapter(name string, deps []string, order *orderTracker, fail bool) components.Adapter {
	return components.Adapter{
		Name:         name,
		Dependencies: deps,
		ComponentDir: func(components.Env) string { return name },
		LogPath:      func(components.Env) string { return "" },
		BuildArgv:    nil,
		PostStart: func(ctx context.Context, env components.Env) error {
			order.record(name)
			if fail {
				return fmt.Errorf("simulated failure in %s", name)
			}
			return nil
		},
		ReadyTimeout: time.Second,
	}
}

type orderTracker struct {
	mu    sync.Mutex
	names []string
}

func (o *orderTracker) record(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.names = append(o.names, name)
}

func (o *orderTracker) snapshot() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.names...)
}

func TestStartRespectsDependencyOrder(t *testing.T) {
	order := &orderTracker{}
	adapters := []components.Adapter{
		fakeAdapter("a", nil, order, false),
		fakeAdapter("b", []string{"a"}, order, false),
		fakeAdapter("c", []string{"a"}, order, false),
		fakeAdapter("d", []string{"b", "c"}, order, false),
	}

	sup, err := New(adapters, components.Env{}, logging.Discard())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	names := order.snapshot()
	pos := make(map[string]int, len(names))
	for i, n := range names {
		pos[n] = i
	}
	if pos["a"] >= pos["b"] || pos["a"] >= pos["c"] {
		t.Errorf("a must start before b and c, got order %v", names)
	}
	if pos["b"] >= pos["d"] || pos["c"] >= pos["d"] {
		t.Errorf("d must start after both b and c, got order %v", names)
	}
}

func TestStartTearsDownOnFailure(t *testing.T) {
	order := &orderTracker{}
	adapters := []components.Adapter{
		fakeAdapter("a", nil, order, false),
		fakeAdapter("b", []string{"a"}, order, true),
	}

	sup, err := New(adapters, components.Env{}, logging.Discard())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	err = sup.Start(context.Background())
	if err == nil {
		t.Fatal("expected Start to fail when an adapter's PostStart errors")
	}
}

func TestNewRejectsCycle(t *testing.T) {
	adapters := []components.Adapter{
		{Name: "a", Dependencies: []string{"b"}},
		{Name: "b", Dependencies: []string{"a"}},
	}
	_, err := New(adapters, components.Env{}, logging.Discard())
	if err == nil {
		t.Fatal("expected an error for a dependency cycle")
	}
	if !kubernixerr.Is(err, kubernixerr.ConfigError) {
		t.Errorf("expected ConfigError kind, got %v", err)
	}
}

func TestStartEmitsSpawningThenReadyPerComponent(t *testing.T) {
	order := &orderTracker{}
	adapters := []components.Adapter{
		fakeAdapter("a", nil, order, false),
	}

	sup, err := New(adapters, components.Env{}, logging.Discard())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var seen []process.Status
	done := make(chan struct{})
	go func() {
		for ev := range sup.Events() {
			seen = append(seen, ev.State)
		}
		close(done)
	}()

	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	<-done

	if len(seen) != 2 || seen[0] != process.Spawning || seen[1] != process.Ready {
		t.Errorf("expected [Spawning Ready], got %v", seen)
	}
}

func TestNewRejectsUnknownDependency(t *testing.T) {
	adapters := []components.Adapter{
		{Name: "a", Dependencies: []string{"ghost"}},
	}
	_, err := New(adapters, components.Env{}, logging.Discard())
	if err == nil {
		t.Fatal("expected an error for an unknown dependency")
	}
}
