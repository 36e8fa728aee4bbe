package cmd

import (
	"github.com/spf13/cobra"

	"github.com/RyanLisse/opencode-rs/internal/provider"
	"github.com/RyanLisse/opencode-rs/internal/repl"
)

func newReplCmd(app *App) *cobra.Command {
	replCmd := &cobra.Command{
		Use:   "repl",
		Short: "Start the interactive REPL",
		Long: `Start the interactive REPL.

Plain lines are sent to the model with the active profile's system
prompt; slash commands control the session. Type /help inside the REPL
for the command list.`,
		Args: cobra.NoArgs,
		RunE: app.runRepl,
	}
	return replCmd
}

func (a *App) runRepl(cmd *cobra.Command, args []string) error {
	// A missing API key must not block the REPL: slash commands still
	// work, and each ask reports the error instead.
	var prov provider.Provider
	if openai, err := provider.FromConfig(a.Config, a.Logger); err == nil {
		prov = openai
	} else {
		a.Logger.Warn("provider unavailable", "error", err)
		prov = provider.Unavailable(err)
	}

	engine := repl.NewEngine(a.Registry, a.Profiles, prov, a.Config, a.Logger)
	return repl.Run(engine)
}
