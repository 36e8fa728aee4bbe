package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newConfigCmd(app *App) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "View opencode configuration",
		Long: `View opencode configuration.

Without arguments, displays the resolved configuration after defaults,
the config file, and OPENCODE_* environment overrides are applied.`,
		Args: cobra.NoArgs,
		RunE: app.runConfigShow,
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		Args:  cobra.NoArgs,
		RunE:  app.runConfigShow,
	}

	configCmd.AddCommand(showCmd)
	return configCmd
}

func (a *App) runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := a.Config

	fmt.Println("Current configuration:")
	fmt.Println()

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Printf("Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Printf("Config file: (none - using defaults)\n")
	}
	fmt.Println()

	fmt.Println("branch:")
	fmt.Printf("  prefix: %s\n", cfg.Branch.Prefix)

	fmt.Println("profile:")
	fmt.Printf("  default: %s\n", cfg.Profile.Default)
	fmt.Printf("  path: %s\n", cfg.Profile.Path)

	fmt.Println("swarm:")
	fmt.Printf("  max_parallel: %d\n", cfg.Swarm.MaxParallel)

	fmt.Println("sandbox:")
	fmt.Printf("  tool: %s\n", cfg.Sandbox.Tool)

	fmt.Println("provider:")
	fmt.Printf("  api_base: %s\n", cfg.Provider.APIBase)
	fmt.Printf("  model: %s\n", cfg.Provider.Model)
	fmt.Printf("  api_key_env: %s\n", cfg.Provider.APIKeyEnv)
	fmt.Printf("  timeout_seconds: %d\n", cfg.Provider.TimeoutSeconds)

	fmt.Println("logging:")
	fmt.Printf("  level: %s\n", cfg.Logging.Level)
	fmt.Printf("  dir: %s\n", cfg.Logging.Dir)

	return nil
}
