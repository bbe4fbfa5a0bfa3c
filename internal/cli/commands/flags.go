// Package commands contains the Cobra subcommands for the loopctl CLI.
package commands

import (
	"os"

	"github.com/spf13/cobra"

	"loopctl/internal/config"
)

// loadConfig resolves Config from the environment/file defaults, then
// applies the root command's --config and --log-level overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		os.Setenv("LOOPCTL_CONFIG_PATH", path)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		os.Setenv("LOOPCTL_LOG_LEVEL", level)
	}
	return config.Load()
}

// exitError pairs an error with the process exit code it should
// produce, so RunE can return ordinary errors while main still gets a
// closed set of outer-loop-outcome exit codes rather than Cobra's
// blanket exit(1).
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// ExitCode reports the process exit code for err: the code carried by
// an *exitError, or 1 for any other non-nil error, or 0 for nil.
func ExitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	if ee, ok := err.(*exitError); ok {
		return ee.code
	}
	return 1
}

// internalError wraps err as an exitInternalError exitError, so a
// scripted caller can tell "loopctl itself failed" apart from
// exitVerificationFailed's "the loop ran to completion but did not
// achieve the goal".
func internalError(err error) error {
	return &exitError{code: exitInternalError, err: err}
}
