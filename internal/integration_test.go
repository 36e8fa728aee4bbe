// Package internal contains integration tests that verify the supervisor
// packages compose correctly: the agent registry reporting through the
// event bus, the swarm executor fanning out over a real registry, and
// checkpoint operations sharing the same bus as the agent lifecycle.
package internal

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/RyanLisse/opencode-rs/internal/agent"
	"github.com/RyanLisse/opencode-rs/internal/checkpoint"
	"github.com/RyanLisse/opencode-rs/internal/config"
	"github.com/RyanLisse/opencode-rs/internal/event"
	"github.com/RyanLisse/opencode-rs/internal/profile"
	"github.com/RyanLisse/opencode-rs/internal/sandbox"
	"github.com/RyanLisse/opencode-rs/internal/swarm"
)

// blockingRunner holds every agent task open until its context is
// canceled, imitating a long-lived sandbox session.
type blockingRunner struct{}

var _ sandbox.Runner = blockingRunner{}

func (blockingRunner) Probe() error { return nil }

func (blockingRunner) Run(ctx context.Context, branch, command string) error {
	<-ctx.Done()
	return ctx.Err()
}

// failingRunner makes every agent task fail immediately.
type failingRunner struct{ err error }

var _ sandbox.Runner = failingRunner{}

func (f failingRunner) Probe() error { return nil }

func (f failingRunner) Run(ctx context.Context, branch, command string) error {
	return f.err
}

// okGit approves every git invocation, so checkpoint operations succeed
// without a repository.
type okGit struct{}

var _ checkpoint.CommandExecutor = okGit{}

func (okGit) Run(dir string, name string, args ...string) ([]byte, error) { return nil, nil }
func (okGit) RunQuiet(dir string, name string, args ...string) error      { return nil }

// collector gathers events from the bus. Swarm sub-tasks publish from
// worker goroutines, so access is guarded.
type collector struct {
	mu     sync.Mutex
	events []event.Event
}

func (c *collector) add(e event.Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
}

func (c *collector) all() []event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]event.Event{}, c.events...)
}

func (c *collector) types() []string {
	var types []string
	for _, e := range c.all() {
		types = append(types, e.EventType())
	}
	return types
}

func newRegistry(t *testing.T, runner sandbox.Runner, bus *event.Bus) *agent.Registry {
	t.Helper()

	r := agent.New(runner, profile.NewTable(nil), config.Default(), nil, bus)
	t.Cleanup(r.Shutdown)
	return r
}

func waitForStatus(t *testing.T, r *agent.Registry, id string, want agent.Status) agent.Record {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if rec, ok := r.Get(id); ok && rec.Status == want {
			return rec
		}
		time.Sleep(5 * time.Millisecond)
	}
	rec, _ := r.Get(id)
	t.Fatalf("agent %q status = %v, want %v", id, rec.Status, want)
	return agent.Record{}
}

// TestEventBusIntegration drives a real registry and checks that exact and
// pattern subscribers both observe the lifecycle, the way an interactive
// front end would.
func TestEventBusIntegration(t *testing.T) {
	bus := event.NewBus()
	registry := newRegistry(t, blockingRunner{}, bus)

	var spawned []event.AgentSpawnedEvent
	bus.Subscribe("agent.spawned", func(e event.Event) {
		if evt, ok := e.(event.AgentSpawnedEvent); ok {
			spawned = append(spawned, evt)
		}
	})

	wildcard := &collector{}
	bus.Subscribe("agent.*", wildcard.add)

	if err := registry.Spawn("alice", "rusty"); err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}
	if err := registry.Stop("alice"); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if len(spawned) != 1 {
		t.Fatalf("spawned subscriber got %d events, want 1", len(spawned))
	}
	evt := spawned[0]
	if evt.AgentID != "alice" || evt.Profile != "rusty" || evt.Branch != "agent/alice" {
		t.Errorf("spawned event = %+v, want alice/rusty on agent/alice", evt)
	}

	// Stop publishes synchronously, so by now the pattern subscriber has
	// seen at least spawned and stopped in that order. The task goroutine
	// may add its own events later; only the prefix is asserted.
	types := wildcard.types()
	if len(types) < 2 || types[0] != "agent.spawned" || types[1] != "agent.stopped" {
		t.Errorf("wildcard events = %v, want [agent.spawned agent.stopped ...]", types)
	}

	stopped, ok := wildcard.all()[1].(event.AgentStoppedEvent)
	if !ok {
		t.Fatalf("second event is %T, want AgentStoppedEvent", wildcard.all()[1])
	}
	if stopped.AgentID != "alice" || stopped.Reason != "requested" {
		t.Errorf("stopped event = %+v, want alice/requested", stopped)
	}
}

// TestAgentFailurePropagation verifies a crashing sandbox task surfaces as
// a failed record and an agent.failed event.
func TestAgentFailurePropagation(t *testing.T) {
	bus := event.NewBus()
	registry := newRegistry(t, failingRunner{err: os.ErrPermission}, bus)

	failed := make(chan event.AgentFailedEvent, 1)
	bus.Subscribe("agent.failed", func(e event.Event) {
		if evt, ok := e.(event.AgentFailedEvent); ok {
			failed <- evt
		}
	})

	if err := registry.Spawn("alice", "rusty"); err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}

	rec := waitForStatus(t, registry, "alice", agent.StatusFailed)
	if rec.FailureReason == "" {
		t.Error("failed record has no failure reason")
	}

	select {
	case evt := <-failed:
		if evt.AgentID != "alice" {
			t.Errorf("failed event agent = %q, want alice", evt.AgentID)
		}
		if !strings.Contains(evt.Reason, os.ErrPermission.Error()) {
			t.Errorf("failed event reason = %q, want the runner error", evt.Reason)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no agent.failed event published")
	}
}

// TestSwarmBuildIntegration plans a real workspace manifest and executes
// it against a real registry, checking progress reporting end to end.
func TestSwarmBuildIntegration(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "Cargo.toml")
	content := "[workspace]\nmembers = [\"crates/auth\", \"crates/billing\", \"crates/search\"]\n"
	if err := os.WriteFile(manifest, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}

	plan, err := swarm.PlanBuild(manifest)
	if err != nil {
		t.Fatalf("PlanBuild() error = %v", err)
	}
	if plan.Total() != 3 {
		t.Fatalf("plan has %d tasks, want 3", plan.Total())
	}

	bus := event.NewBus()
	registry := newRegistry(t, blockingRunner{}, bus)

	swarmEvents := &collector{}
	bus.Subscribe("swarm.*", swarmEvents.add)

	executor := swarm.NewExecutor(registry, config.Default(), bus, nil)
	if err := executor.Execute(context.Background(), plan); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	for _, id := range []string{"builder-crates-auth", "builder-crates-billing", "builder-crates-search"} {
		rec, ok := registry.Get(id)
		if !ok {
			t.Errorf("agent %q not in registry", id)
			continue
		}
		if rec.Status != agent.StatusRunning {
			t.Errorf("agent %q status = %v, want running", id, rec.Status)
		}
	}

	// One initial progress event, one per settled sub-task, one completion.
	events := swarmEvents.all()
	if len(events) != 5 {
		t.Fatalf("got %d swarm events, want 5: %v", len(events), swarmEvents.types())
	}

	prev := -1
	for _, e := range events[:4] {
		progress, ok := e.(event.SwarmProgressEvent)
		if !ok {
			t.Fatalf("event %T, want SwarmProgressEvent", e)
		}
		if progress.Total != 3 {
			t.Errorf("progress total = %d, want 3", progress.Total)
		}
		if progress.Completed <= prev {
			t.Errorf("progress completed %d after %d, want increasing", progress.Completed, prev)
		}
		prev = progress.Completed
	}
	if prev != 3 {
		t.Errorf("final progress completed = %d, want 3", prev)
	}

	done, ok := events[4].(event.SwarmCompletedEvent)
	if !ok {
		t.Fatalf("last event %T, want SwarmCompletedEvent", events[4])
	}
	if !done.Success || done.Succeeded != 3 || done.Failed != 0 {
		t.Errorf("completion event = %+v, want 3 succeeded", done)
	}
}

// TestCheckpointRestoreFlow walks the full save/restore/respawn sequence
// across the registry, the checkpoint manager, and the bus.
func TestCheckpointRestoreFlow(t *testing.T) {
	bus := event.NewBus()
	registry := newRegistry(t, blockingRunner{}, bus)
	manager := checkpoint.NewManagerWithExecutor(t.TempDir(), "agent", bus, nil, okGit{})

	all := &collector{}
	bus.SubscribeAll(all.add)

	if err := registry.Spawn("alice", "rusty"); err != nil {
		t.Fatalf("Spawn() error = %v", err)
	}
	rec, _ := registry.Get("alice")

	tag, err := manager.Save(rec.Branch, "alice", "before refactor")
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	newBranch, err := manager.Restore(tag, "alice-2")
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if newBranch != "agent/alice-2" {
		t.Fatalf("Restore() branch = %q, want agent/alice-2", newBranch)
	}

	// Restore only creates the branch; running an agent on it is a
	// separate spawn.
	if _, ok := registry.Get("alice-2"); ok {
		t.Fatal("restore spawned an agent, want branch only")
	}
	if err := registry.Spawn("alice-2", "rusty"); err != nil {
		t.Fatalf("Spawn() after restore error = %v", err)
	}

	want := []string{"agent.spawned", "checkpoint.saved", "checkpoint.restored", "agent.spawned"}
	got := all.types()
	if len(got) != len(want) {
		t.Fatalf("event sequence = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event sequence = %v, want %v", got, want)
		}
	}

	saved, ok := all.all()[1].(event.CheckpointSavedEvent)
	if !ok {
		t.Fatalf("second event %T, want CheckpointSavedEvent", all.all()[1])
	}
	if saved.AgentID != "alice" || saved.Tag != tag || saved.Branch != "agent/alice" {
		t.Errorf("saved event = %+v, want alice's tag on agent/alice", saved)
	}

	restored, ok := all.all()[2].(event.CheckpointRestoredEvent)
	if !ok {
		t.Fatalf("third event %T, want CheckpointRestoredEvent", all.all()[2])
	}
	if restored.Tag != tag || restored.AgentID != "alice-2" || restored.NewBranch != "agent/alice-2" {
		t.Errorf("restored event = %+v, want %s forked to agent/alice-2", restored, tag)
	}
}
