// Package cli wires together the loopctl root Cobra command and its
// subcommands.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"loopctl/internal/cli/commands"
)

// NewRootCommand constructs the loopctl root command.
func NewRootCommand() *cobra.Command {
	version := os.Getenv("LOOPCTL_VERSION")
	if version == "" {
		version = "0.0.0-dev"
	}

	cmd := &cobra.Command{
		Use:           "loopctl",
		Short:         "loopctl drives an autonomous goal-achievement loop to completion",
		Long:          "loopctl runs the outer retry loop over a plan/step/verify inner loop until the goal is achieved, the plan is aborted, or the time budget runs out.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("config", "", "path to a JSON config file (overrides LOOPCTL_CONFIG_PATH)")
	cmd.PersistentFlags().String("log-level", "", "debug, info, warn, or error (overrides config)")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the loopctl version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version)
		},
	})

	cmd.AddCommand(commands.NewReplayCommand())
	cmd.AddCommand(commands.NewRunCommand())

	return cmd
}
