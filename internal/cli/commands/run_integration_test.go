package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func newTestRunCommand() *cobra.Command {
	cmd := NewRunCommand()
	cmd.Flags().String("config", "", "")
	cmd.Flags().String("log-level", "", "")
	return cmd
}

func TestRunCommandSucceedsEndToEndWithStaticAdapters(t *testing.T) {
	cmd := newTestRunCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{
		"--goal", "write the report",
		"--max-attempts", "1",
		"--overall-time-limit", "10m",
	})

	err := cmd.Execute()
	if err != nil {
		t.Fatalf("expected a goal achieved by the Static adapters to succeed, got error: %v", err)
	}
	if !strings.Contains(out.String(), `"TotalAttempts": 1`) {
		t.Fatalf("expected final report JSON on stdout, got:\n%s", out.String())
	}
}

func TestRunCommandExitsNonZeroWhenGoalMissing(t *testing.T) {
	cmd := newTestRunCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--overall-time-limit", "1m"})

	err := cmd.Execute()
	if err == nil {
		t.Fatalf("expected an error when --goal is omitted")
	}
	if got := ExitCode(err); got != exitInternalError {
		t.Fatalf("expected exitInternalError, got %d", got)
	}
}
