// Package agent supervises the lifecycle of sandboxed agents.
//
// The Registry is the single source of truth for which agents exist and
// whether they are running. Each running agent is one goroutine delegating to
// the sandbox runner; the Registry observes completion and failure and keeps
// the record map and the task-handle map in lock-step under one mutex.
package agent

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/RyanLisse/opencode-rs/internal/config"
	"github.com/RyanLisse/opencode-rs/internal/errors"
	"github.com/RyanLisse/opencode-rs/internal/event"
	"github.com/RyanLisse/opencode-rs/internal/logging"
	"github.com/RyanLisse/opencode-rs/internal/profile"
	"github.com/RyanLisse/opencode-rs/internal/sandbox"
)

// keepAliveCommand keeps an agent's sandbox environment alive until the agent
// is stopped. Work is driven into the environment by other tools; the
// supervisor only owns the lifecycle.
const keepAliveCommand = "sleep infinity"

// shutdownTimeout bounds how long Shutdown waits for agent tasks to exit.
const shutdownTimeout = 5 * time.Second

// taskHandle tracks cancellation and completion of one agent's background
// task. Handles exist exactly for records with StatusRunning.
type taskHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Registry tracks agents and their background tasks.
//
// Registry is responsible for:
//   - Enforcing id uniqueness and profile validity at spawn
//   - Launching one goroutine per agent that runs the sandbox command
//   - Observing task completion and recording Stopped/Failed transitions
//   - Keeping records and live task handles consistent under a single mutex
//
// All methods are safe for concurrent use.
type Registry struct {
	runner   sandbox.Runner
	profiles *profile.Table
	cfg      *config.Config
	logger   *logging.Logger
	bus      *event.Bus

	mu      sync.Mutex
	records map[string]*Record
	handles map[string]*taskHandle
	wg      sync.WaitGroup
}

// New creates a Registry. A nil cfg falls back to defaults, a nil logger
// discards output, and a nil bus disables event publishing.
func New(runner sandbox.Runner, profiles *profile.Table, cfg *config.Config, logger *logging.Logger, bus *event.Bus) *Registry {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Registry{
		runner:   runner,
		profiles: profiles,
		cfg:      cfg,
		logger:   logger.WithComponent("agent"),
		bus:      bus,
		records:  make(map[string]*Record),
		handles:  make(map[string]*taskHandle),
	}
}

// Spawn registers a new agent and launches its background task on a dedicated
// branch. It returns once the task goroutine is launched; it never waits for
// the sandbox command to finish. Fails if the id is taken, the profile is
// unknown, or the sandbox tool is unavailable.
func (r *Registry) Spawn(id, profileName string) error {
	if id == "" {
		return errors.NewAgentError("agent id required", errors.ErrInvalidInput)
	}

	if _, ok := r.profiles.Get(profileName); !ok {
		return errors.NewAgentError("unknown profile", errors.ErrUnknownProfile).
			WithAgentID(id).
			WithProfile(profileName)
	}

	// Probing is cached after the first call, so every spawn may check.
	if err := r.runner.Probe(); err != nil {
		return err
	}

	branch := r.cfg.Branch.Prefix + "/" + id

	r.mu.Lock()
	if _, exists := r.records[id]; exists {
		r.mu.Unlock()
		return errors.NewAgentError("agent already exists", errors.ErrAgentExists).
			WithAgentID(id)
	}

	ctx, cancel := context.WithCancel(context.Background())
	handle := &taskHandle{cancel: cancel, done: make(chan struct{})}
	r.records[id] = &Record{
		ID:      id,
		Profile: profileName,
		Status:  StatusRunning,
		Branch:  branch,
	}
	r.handles[id] = handle
	r.mu.Unlock()

	r.logger.Info("agent spawned", "agent_id", id, "profile", profileName, "branch", branch)
	if r.bus != nil {
		r.bus.Publish(event.NewAgentSpawnedEvent(id, profileName, branch))
	}

	r.wg.Add(1)
	go r.runTask(ctx, id, branch, handle)

	return nil
}

// runTask executes the agent's sandbox command and records the outcome. The
// handle comparison ensures a task that was already stopped (its handle
// removed) does not overwrite the Stopped status recorded by Stop.
func (r *Registry) runTask(ctx context.Context, id, branch string, handle *taskHandle) {
	defer r.wg.Done()
	defer close(handle.done)

	err := r.runner.Run(ctx, branch, keepAliveCommand)
	clean := err == nil || errors.Is(err, context.Canceled)

	r.mu.Lock()
	owner := r.handles[id] == handle
	if owner {
		delete(r.handles, id)
		rec := r.records[id]
		if clean {
			rec.Status = StatusStopped
		} else {
			rec.Status = StatusFailed
			rec.FailureReason = err.Error()
		}
	}
	r.mu.Unlock()

	if !owner {
		return
	}
	if clean {
		r.logger.Info("agent completed", "agent_id", id)
		if r.bus != nil {
			r.bus.Publish(event.NewAgentStoppedEvent(id, "completed"))
		}
		return
	}
	r.logger.Warn("agent failed", "agent_id", id, "error", err)
	if r.bus != nil {
		r.bus.Publish(event.NewAgentFailedEvent(id, err.Error()))
	}
}

// Stop requests cancellation of a running agent's task and marks the record
// Stopped. It returns once cancellation is requested; it does not wait for
// the sandbox child to exit. The record is retained for later inspection.
func (r *Registry) Stop(id string) error {
	r.mu.Lock()
	rec, exists := r.records[id]
	if !exists {
		r.mu.Unlock()
		return errors.NewAgentError("agent not found", errors.ErrAgentNotFound).
			WithAgentID(id)
	}
	handle, live := r.handles[id]
	if !live {
		r.mu.Unlock()
		return errors.NewAgentError("agent is not running", errors.ErrAgentNotRunning).
			WithAgentID(id)
	}
	delete(r.handles, id)
	rec.Status = StatusStopped
	r.mu.Unlock()

	handle.cancel()

	r.logger.Info("agent stopped", "agent_id", id)
	if r.bus != nil {
		r.bus.Publish(event.NewAgentStoppedEvent(id, "requested"))
	}
	return nil
}

// List returns a point-in-time snapshot of all agent records, sorted by id.
func (r *Registry) List() []Record {
	r.mu.Lock()
	records := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		records = append(records, *rec)
	}
	r.mu.Unlock()

	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records
}

// Get returns a snapshot of a single agent record.
func (r *Registry) Get(id string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Remove drops the record of an agent that is no longer running. Stop keeps
// records around for inspection; Remove is the explicit forget.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, exists := r.records[id]
	if !exists {
		return errors.NewAgentError("agent not found", errors.ErrAgentNotFound).
			WithAgentID(id)
	}
	if rec.Status == StatusRunning {
		return errors.NewAgentError("agent is still running", errors.ErrAgentRunning).
			WithAgentID(id)
	}
	delete(r.records, id)
	return nil
}

// Shutdown cancels every live agent task and waits for the task goroutines
// to finish, up to a bounded grace period. Records are marked Stopped.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	stopped := make([]string, 0, len(r.handles))
	handles := make([]*taskHandle, 0, len(r.handles))
	for id, handle := range r.handles {
		delete(r.handles, id)
		r.records[id].Status = StatusStopped
		stopped = append(stopped, id)
		handles = append(handles, handle)
	}
	r.mu.Unlock()

	for _, handle := range handles {
		handle.cancel()
	}
	for _, id := range stopped {
		if r.bus != nil {
			r.bus.Publish(event.NewAgentStoppedEvent(id, "shutdown"))
		}
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		r.logger.Warn("shutdown timed out waiting for agent tasks")
	}

	if len(stopped) > 0 {
		r.logger.Info("registry shut down", "stopped", len(stopped))
	}
}
