package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RyanLisse/opencode-rs/internal/event"
	"github.com/RyanLisse/opencode-rs/internal/swarm"
)

func newSwarmCmd(app *App) *cobra.Command {
	swarmCmd := &cobra.Command{
		Use:   "swarm <manifest-path>",
		Short: "Spawn a builder agent per workspace member",
		Long: `Spawn one builder agent per member of a workspace manifest.

The manifest's members list is expanded into sub-tasks, glob patterns
included, and a builder agent is spawned for each with the configured
default profile. Spawns run concurrently up to swarm.max_parallel;
failures are collected and reported together at the end.`,
		Args: cobra.ExactArgs(1),
		RunE: app.runSwarm,
	}
	return swarmCmd
}

func (a *App) runSwarm(cmd *cobra.Command, args []string) error {
	plan, err := swarm.PlanBuild(args[0])
	if err != nil {
		return fmt.Errorf("failed to plan swarm build: %w", err)
	}

	fmt.Printf("Executing swarm build with %d tasks.\n", plan.Total())

	// The executor reports through the bus; print each event as it lands.
	subID := a.Bus.Subscribe("swarm.*", func(evt event.Event) {
		switch e := evt.(type) {
		case event.SwarmProgressEvent:
			if e.Completed == 0 {
				fmt.Println("Starting swarm build...")
				return
			}
			fmt.Printf("[%d/%d] Completed build for '%s'\n", e.Completed, e.Total, e.Task)
		case event.SwarmCompletedEvent:
			if e.Success {
				fmt.Println("Swarm build finished!")
			} else {
				fmt.Printf("Swarm build finished with %d failed task(s).\n", e.Failed)
			}
		}
	})
	defer a.Bus.Unsubscribe(subID)

	executor := swarm.NewExecutor(a.Registry, a.Config, a.Bus, a.Logger)
	if err := executor.Execute(cmd.Context(), plan); err != nil {
		return fmt.Errorf("swarm build failed: %w", err)
	}
	return nil
}
