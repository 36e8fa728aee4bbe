package cmd

import (
	"github.com/spf13/cobra"
)

// NewRootCmd builds the opencode command tree around app.
func NewRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "opencode",
		Short: "Supervisor for sandboxed coding agents",
		Long: `OpenCode supervises sandboxed coding agents.

Each agent runs inside an isolated sandbox environment bound to its own
git branch. Spawn and stop agents, checkpoint their work as git tags,
fan a workspace build out across parallel agents, or ask a model
directly. Running opencode without a subcommand starts the interactive
REPL.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.Init()
		},
		RunE: app.runRepl,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&app.ConfigPath, "config", "c", "", "config file (default is $XDG_CONFIG_HOME/opencode/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&app.Verbose, "verbose", "v", false, "enable verbose logging")

	rootCmd.AddCommand(
		newAgentCmd(app),
		newCheckpointCmd(app),
		newSwarmCmd(app),
		newAskCmd(app),
		newReplCmd(app),
		newConfigCmd(app),
		newVersionCmd(app),
	)

	return rootCmd
}
