package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	loopErrors "loopctl/internal/errors"
)

// subprocessEnvelope is the JSON payload written to the worker
// subprocess's stdin — the wire contract for a CLI-style subprocess
// worker. A real LLM-backed agent binary reads one of these from
// stdin and writes a subprocessOutcome JSON object to stdout.
type subprocessEnvelope struct {
	Goal               string `json:"goal"`
	StepNumber         int    `json:"stepNumber"`
	StepDescription    string `json:"stepDescription"`
	AccumulatedContext string `json:"accumulatedContext"`
}

type subprocessOutcome struct {
	Status       StepStatus `json:"status"`
	Output       string     `json:"output"`
	FailReason   string     `json:"failReason"`
	Verification string     `json:"verification"`
}

// Subprocess is the reference Worker adapter: it shells out to a
// configured binary once per step, passing the request on stdin as
// JSON and reading a StepResult as JSON from stdout. Grounded on
// services/runner/internal/sandbox/sandbox.go's capability-gated
// subprocess boundary — ResolveWorkspacePath's traversal guard is
// reused here to keep WorkingDirectory pinned under Root.
type Subprocess struct {
	// Command is the executable invoked per step, e.g. the path to an
	// agent CLI. Args are appended after Command's own configured args.
	Command string
	Args    []string
	// Root bounds WorkingDirectory: requests whose WorkingDirectory
	// would resolve outside Root are rejected before exec.
	Root string
}

func (s Subprocess) ExecuteStep(ctx context.Context, req StepRequest) (StepResult, error) {
	workDir, err := s.resolveWorkDir(req.WorkingDirectory)
	if err != nil {
		return StepResult{}, err
	}

	var description string
	if step, ok := req.Plan.StepByNumber(req.StepNumber); ok {
		description = step.Description
	}

	payload, err := json.Marshal(subprocessEnvelope{
		Goal:               req.Goal,
		StepNumber:         req.StepNumber,
		StepDescription:    description,
		AccumulatedContext: req.AccumulatedContext,
	})
	if err != nil {
		return StepResult{}, loopErrors.New(loopErrors.CodeWorkerStepError, "failed to marshal step envelope").WithCause(err)
	}

	cmd := exec.CommandContext(ctx, s.Command, s.Args...)
	cmd.Dir = workDir
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Run the worker in its own process group so cancellation reaches
	// any children it spawns, not just the immediate process.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return StepResult{}, loopErrors.New(loopErrors.CodeWorkerStepError, "worker subprocess cancelled").
				WithCause(ctx.Err()).SetRetryable(true)
		}
		return StepResult{Status: StatusFailed, FailReason: strings.TrimSpace(stderr.String())}, nil
	}

	var outcome subprocessOutcome
	if err := json.Unmarshal(stdout.Bytes(), &outcome); err != nil {
		return StepResult{}, loopErrors.New(loopErrors.CodeWorkerStepError, "failed to parse worker subprocess output").WithCause(err)
	}

	return StepResult{
		Status:       outcome.Status,
		Output:       outcome.Output,
		FailReason:   outcome.FailReason,
		Verification: outcome.Verification,
	}, nil
}

// resolveWorkDir mirrors sandbox.EnforcementLayer.ResolveWorkspacePath's
// traversal guard: dir must resolve to a path within Root.
func (s Subprocess) resolveWorkDir(dir string) (string, error) {
	if s.Root == "" {
		return dir, nil
	}
	clean := filepath.Clean(dir)
	full := filepath.Join(s.Root, clean)
	rel, err := filepath.Rel(s.Root, full)
	if err != nil {
		return "", loopErrors.New(loopErrors.CodeInvalidArgument, "failed to resolve working directory").WithCause(err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", loopErrors.New(loopErrors.CodeInvalidArgument, fmt.Sprintf("working directory escapes sandbox root: %s", dir))
	}
	return full, nil
}
