package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the semantic version, overridden at build time via
// -ldflags "-X github.com/RyanLisse/opencode-rs/internal/cmd.Version=v...".
var Version = "0.1.0"

func newVersionCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		// Version must print even when the configuration is broken, so
		// it skips the root command's initialization.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("OpenCode-RS CLI v%s\n", Version)
			return nil
		},
	}
}
