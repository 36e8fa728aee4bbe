package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RyanLisse/opencode-rs/internal/errors"
)

func newAgentCmd(app *App) *cobra.Command {
	agentCmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage sandboxed agents",
		Long: `Manage the lifecycle of sandboxed agents.

Each agent runs inside an isolated sandbox environment on a dedicated
git branch named <prefix>/<id>. Agents keep running until stopped or
until their sandbox process exits.`,
	}

	spawnCmd := &cobra.Command{
		Use:   "spawn <id>",
		Short: "Spawn a new agent",
		Long: `Spawn a new agent in an isolated sandbox environment.

The agent works on branch <prefix>/<id> and stays alive until stopped.
The --profile flag selects the behavioral profile; without it the
configured default profile is used.`,
		Args: cobra.ExactArgs(1),
		RunE: app.runAgentSpawn,
	}
	spawnCmd.Flags().StringP("profile", "p", "", "profile to spawn the agent with (default from config)")

	lsCmd := &cobra.Command{
		Use:   "ls",
		Short: "List all agents",
		Args:  cobra.NoArgs,
		RunE:  app.runAgentLs,
	}

	stopCmd := &cobra.Command{
		Use:   "stop <id>",
		Short: "Stop a running agent",
		Long: `Stop a running agent.

Cancellation is requested immediately; the sandbox process may take a
moment to exit. The agent's record is kept with status Stopped until
removed with 'agent rm'.`,
		Args: cobra.ExactArgs(1),
		RunE: app.runAgentStop,
	}

	statusCmd := &cobra.Command{
		Use:   "status <id>",
		Short: "Show the status of one agent",
		Args:  cobra.ExactArgs(1),
		RunE:  app.runAgentStatus,
	}

	rmCmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a stopped agent's record",
		Args:  cobra.ExactArgs(1),
		RunE:  app.runAgentRm,
	}

	agentCmd.AddCommand(spawnCmd, lsCmd, stopCmd, statusCmd, rmCmd)
	return agentCmd
}

func (a *App) runAgentSpawn(cmd *cobra.Command, args []string) error {
	id := args[0]
	profileName, _ := cmd.Flags().GetString("profile")
	if profileName == "" {
		profileName = a.Config.Profile.Default
	}

	if err := a.Registry.Spawn(id, profileName); err != nil {
		return fmt.Errorf("failed to spawn agent '%s' with profile '%s': %w", id, profileName, err)
	}

	fmt.Printf("Spawned agent '%s' with profile '%s'\n", id, profileName)
	return nil
}

func (a *App) runAgentLs(cmd *cobra.Command, args []string) error {
	records := a.Registry.List()
	if len(records) == 0 {
		fmt.Println("No agents running.")
		return nil
	}

	fmt.Println(strings.Repeat("─", 70))
	fmt.Printf("Agents (%d)\n", len(records))
	fmt.Println(strings.Repeat("─", 70))
	fmt.Printf("  %-16s %-12s %-24s %s\n", "ID", "PROFILE", "BRANCH", "STATUS")
	for _, record := range records {
		fmt.Printf("  %-16s %-12s %-24s %s\n", record.ID, record.Profile, record.Branch, record.StatusDisplay())
	}
	return nil
}

func (a *App) runAgentStop(cmd *cobra.Command, args []string) error {
	id := args[0]
	if err := a.Registry.Stop(id); err != nil {
		return fmt.Errorf("failed to stop agent '%s': %w", id, err)
	}

	fmt.Printf("Stopped agent '%s'\n", id)
	return nil
}

func (a *App) runAgentStatus(cmd *cobra.Command, args []string) error {
	id := args[0]
	record, ok := a.Registry.Get(id)
	if !ok {
		return errors.NewAgentError("agent not found", errors.ErrAgentNotFound).WithAgentID(id)
	}

	fmt.Printf("Agent '%s' status: %s\n", id, record.StatusDisplay())
	fmt.Printf("  Profile: %s\n", record.Profile)
	fmt.Printf("  Branch:  %s\n", record.Branch)
	return nil
}

func (a *App) runAgentRm(cmd *cobra.Command, args []string) error {
	id := args[0]
	if err := a.Registry.Remove(id); err != nil {
		return fmt.Errorf("failed to remove agent '%s': %w", id, err)
	}

	fmt.Printf("Removed agent '%s'\n", id)
	return nil
}
