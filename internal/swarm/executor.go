package swarm

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/RyanLisse/opencode-rs/internal/agent"
	"github.com/RyanLisse/opencode-rs/internal/config"
	"github.com/RyanLisse/opencode-rs/internal/errors"
	"github.com/RyanLisse/opencode-rs/internal/event"
	"github.com/RyanLisse/opencode-rs/internal/logging"
)

// Spawner spawns one agent per sub-task. *agent.Registry satisfies it.
type Spawner interface {
	Spawn(id, profileName string) error
}

var _ Spawner = (*agent.Registry)(nil)

// Executor fans a plan out over the agent registry with bounded
// parallelism. Sub-task failures are collected rather than aborting the
// run; the combined error is reported once every spawn has settled.
type Executor struct {
	spawner Spawner
	cfg     *config.Config
	bus     *event.Bus
	logger  *logging.Logger
}

// NewExecutor creates an executor that spawns agents through spawner.
// A nil cfg falls back to defaults and a nil logger disables logging.
func NewExecutor(spawner Spawner, cfg *config.Config, bus *event.Bus, logger *logging.Logger) *Executor {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Executor{
		spawner: spawner,
		cfg:     cfg,
		bus:     bus,
		logger:  logger.WithComponent("swarm"),
	}
}

// Execute spawns one agent per sub-task of plan, at most
// cfg.Swarm.MaxParallel at a time, each with the configured default
// profile. A progress event with Completed == 0 is published before the
// first spawn and one more after each spawn settles; the final progress
// event carries Completed == Total. A sub-task settles when its Spawn
// call returns: agents are long-lived and their exit is not awaited here.
// Spawn failures do not abort the run; they are joined into the returned
// error once every sub-task has settled. Canceling ctx fails sub-tasks
// that have not started yet.
func (e *Executor) Execute(ctx context.Context, plan *Plan) error {
	if plan == nil || len(plan.Tasks) == 0 {
		return errors.NewPlanError("plan has no sub-tasks", errors.ErrInvalidInput)
	}

	total := len(plan.Tasks)
	profileName := e.cfg.Profile.Default
	limit := e.cfg.Swarm.MaxParallel
	if limit < 1 {
		limit = 1
	}

	e.logger.Info("starting swarm build",
		"manifest", plan.ManifestPath,
		"tasks", total,
		"max_parallel", limit,
	)
	if e.bus != nil {
		e.bus.Publish(event.NewSwarmProgressEvent(total, 0, "starting"))
	}

	var (
		mu        sync.Mutex
		completed int
		errs      []error
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, task := range plan.Tasks {
		task := task
		g.Go(func() error {
			err := e.spawnTask(ctx, task, profileName)

			// Progress is published under the counter mutex so observers
			// see Completed values in increasing order.
			mu.Lock()
			completed++
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", task.Name, err))
			}
			if e.bus != nil {
				e.bus.Publish(event.NewSwarmProgressEvent(total, completed, task.Name))
			}
			mu.Unlock()

			// Failures are collected, not returned: a non-nil return
			// would cancel the group and abort the remaining sub-tasks.
			return nil
		})
	}

	_ = g.Wait()

	failed := len(errs)
	if e.bus != nil {
		e.bus.Publish(event.NewSwarmCompletedEvent(total, total-failed, failed))
	}

	if failed > 0 {
		e.logger.Warn("swarm build finished with failures", "failed", failed, "total", total)
		return errors.NewPlanError(
			fmt.Sprintf("%d of %d spawns failed", failed, total),
			errors.Join(errs...),
		).WithManifest(plan.ManifestPath)
	}

	e.logger.Info("swarm build finished", "total", total)
	return nil
}

// spawnTask runs one sub-task spawn. A sub-task whose turn arrives after
// ctx is done fails with the context error instead of spawning.
func (e *Executor) spawnTask(ctx context.Context, task SubTask, profileName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.spawner.Spawn(task.AgentID, profileName); err != nil {
		e.logger.Error("sub-task spawn failed",
			"task", task.Name,
			"agent_id", task.AgentID,
			"error", err,
		)
		return err
	}
	e.logger.Debug("sub-task spawned", "task", task.Name, "agent_id", task.AgentID)
	return nil
}
