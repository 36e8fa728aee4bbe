package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckpointCmd(app *App) *cobra.Command {
	checkpointCmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Save, list, and restore branch checkpoints",
		Long: `Save, list, and restore branch checkpoints.

A checkpoint is a commit plus an annotated tag on an agent's branch.
Restoring forks a new branch at the tagged commit; the branch the
checkpoint was saved from is never touched.`,
	}

	saveCmd := &cobra.Command{
		Use:   "save <agent-id>",
		Short: "Checkpoint an agent's branch",
		Long: `Checkpoint the current state of an agent's branch.

Everything in the working tree is committed (an empty commit if nothing
changed) and the commit is marked with an annotated tag in the agent's
checkpoint namespace.`,
		Args: cobra.ExactArgs(1),
		RunE: app.runCheckpointSave,
	}
	saveCmd.Flags().StringP("message", "m", "", "checkpoint message")
	_ = saveCmd.MarkFlagRequired("message")

	listCmd := &cobra.Command{
		Use:   "list <agent-id>",
		Short: "List an agent's checkpoint tags",
		Args:  cobra.ExactArgs(1),
		RunE:  app.runCheckpointList,
	}

	restoreCmd := &cobra.Command{
		Use:   "restore <tag> <new-agent-id>",
		Short: "Fork a new branch from a checkpoint",
		Long: `Fork a new branch from a checkpoint tag.

The new branch is named <prefix>/<new-agent-id> and points at the
checkpointed commit. Restore does not spawn an agent on the branch;
that is a separate step.`,
		Args: cobra.ExactArgs(2),
		RunE: app.runCheckpointRestore,
	}

	checkpointCmd.AddCommand(saveCmd, listCmd, restoreCmd)
	return checkpointCmd
}

func (a *App) runCheckpointSave(cmd *cobra.Command, args []string) error {
	agentID := args[0]
	message, _ := cmd.Flags().GetString("message")

	tag, err := a.Checkpoints.Save(a.agentBranch(agentID), agentID, message)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint for agent '%s': %w", agentID, err)
	}

	fmt.Printf("Saved checkpoint %s\n", tag)
	return nil
}

func (a *App) runCheckpointList(cmd *cobra.Command, args []string) error {
	agentID := args[0]

	tags, err := a.Checkpoints.List(agentID)
	if err != nil {
		return fmt.Errorf("failed to list checkpoints for agent '%s': %w", agentID, err)
	}

	if len(tags) == 0 {
		fmt.Printf("No checkpoints for agent '%s'.\n", agentID)
		return nil
	}
	for _, tag := range tags {
		fmt.Println(tag)
	}
	return nil
}

func (a *App) runCheckpointRestore(cmd *cobra.Command, args []string) error {
	tag := args[0]
	newAgentID := args[1]

	newBranch, err := a.Checkpoints.Restore(tag, newAgentID)
	if err != nil {
		return fmt.Errorf("failed to restore checkpoint '%s': %w", tag, err)
	}

	fmt.Printf("Restored checkpoint %s to branch '%s'\n", tag, newBranch)
	fmt.Printf("Run 'opencode agent spawn %s' to start an agent on it.\n", newAgentID)
	return nil
}

// agentBranch resolves the branch for an agent id. A live registry record
// wins; otherwise the branch is derived the same way spawn derives it.
func (a *App) agentBranch(id string) string {
	if record, ok := a.Registry.Get(id); ok {
		return record.Branch
	}
	return a.Config.Branch.Prefix + "/" + id
}
