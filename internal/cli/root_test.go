package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestRootCommandListsSubcommands(t *testing.T) {
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--help"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	help := out.String()
	for _, name := range []string{"run", "replay", "version"} {
		if !strings.Contains(help, name) {
			t.Fatalf("expected help output to mention %q, got:\n%s", name, help)
		}
	}
}

func TestRunCommandRequiresGoal(t *testing.T) {
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"run"})

	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected an error when --goal is omitted")
	}
}
