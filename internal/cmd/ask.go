package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RyanLisse/opencode-rs/internal/errors"
	"github.com/RyanLisse/opencode-rs/internal/provider"
)

func newAskCmd(app *App) *cobra.Command {
	askCmd := &cobra.Command{
		Use:   "ask <prompt>",
		Short: "Ask the model a question",
		Long: `Send a one-shot prompt to the configured model provider.

The selected profile's system prompt is prepended to the request and
the model's response is printed to standard output.`,
		Args: cobra.ExactArgs(1),
		RunE: app.runAsk,
	}
	askCmd.Flags().StringP("profile", "p", "", "profile whose system prompt to use (default from config)")
	return askCmd
}

func (a *App) runAsk(cmd *cobra.Command, args []string) error {
	prompt := args[0]
	profileName, _ := cmd.Flags().GetString("profile")
	if profileName == "" {
		profileName = a.Config.Profile.Default
	}

	prof, ok := a.Profiles.Get(profileName)
	if !ok {
		return fmt.Errorf("unknown profile '%s': %w", profileName, errors.ErrUnknownProfile)
	}

	prov, err := provider.FromConfig(a.Config, a.Logger)
	if err != nil {
		return err
	}

	req := provider.NewAskRequest(a.Config.Provider.Model, prof.SystemPrompt, prompt)
	resp, err := prov.Complete(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("failed to get response: %w", err)
	}

	fmt.Println(resp.Content)
	return nil
}
