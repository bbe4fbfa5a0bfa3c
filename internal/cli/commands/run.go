package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"loopctl/internal/bus"
	"loopctl/internal/gateway"
	"loopctl/internal/planner"
	"loopctl/internal/retry"
	"loopctl/internal/state"
	"loopctl/internal/supervisor"
	"loopctl/internal/telemetry"
	"loopctl/internal/verifier"
	"loopctl/internal/worker"
)

// Exit codes for the `run` subcommand. 0 is success; every other
// value names one closed outcome of the outer retry loop so a caller
// can script against it without parsing output.
const (
	exitSuccess            = 0
	exitVerificationFailed = 1
	exitAbortedOrEscalated = 2
	exitTimeExhausted      = 3
	exitInternalError      = 4
)

// NewRunCommand returns the `loopctl run` command: it drives the Retry
// Controller to completion and reports the FinalReport.
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the retry loop until the goal is achieved, aborted, or time runs out",
		RunE:  runRun,
	}

	cmd.Flags().String("goal", "", "the primary goal to achieve (required)")
	cmd.Flags().StringArray("sub-goal", nil, "a sub-goal; repeat the flag to set more than one")
	cmd.Flags().String("context", "", "initial context available to the first attempt")
	cmd.Flags().Int("max-attempts", 0, "override the configured maximum attempt count")
	cmd.Flags().Duration("overall-time-limit", 0, "override the configured overall time budget, e.g. 45m")
	cmd.Flags().String("working-dir", "", "working directory passed to the Worker adapter")
	cmd.Flags().String("worker-command", "", "path to a subprocess worker binary; omitted uses a no-op static worker")
	cmd.Flags().String("sandbox-root", "", "bounds --working-dir for the subprocess worker; empty means unbounded")
	cmd.Flags().String("record", "", "path to write the run's event stream to as newline-delimited JSON; an existing file is overwritten")

	return cmd
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return internalError(fmt.Errorf("loading config: %w", err))
	}

	goal, _ := cmd.Flags().GetString("goal")
	if goal == "" {
		return internalError(fmt.Errorf("--goal is required"))
	}
	subGoals, _ := cmd.Flags().GetStringArray("sub-goal")
	initialContext, _ := cmd.Flags().GetString("context")
	workingDir, _ := cmd.Flags().GetString("working-dir")
	workerCommand, _ := cmd.Flags().GetString("worker-command")
	sandboxRoot, _ := cmd.Flags().GetString("sandbox-root")
	recordPath, _ := cmd.Flags().GetString("record")

	if maxAttempts, _ := cmd.Flags().GetInt("max-attempts"); maxAttempts > 0 {
		cfg.Retry.MaxAttempts = maxAttempts
	}
	if overall, _ := cmd.Flags().GetDuration("overall-time-limit"); overall > 0 {
		cfg.Retry.OverallTimeLimit = overall
	}

	logLevel := telemetry.LevelInfo
	switch cfg.Telemetry.Level {
	case "debug":
		logLevel = telemetry.LevelDebug
	case "warn":
		logLevel = telemetry.LevelWarn
	case "error":
		logLevel = telemetry.LevelError
	}
	logger := telemetry.NewLogger(cmd.ErrOrStderr(), logLevel).WithComponent("loopctl")

	evtBus := bus.New(cfg.Bus.HistoryCapacity, cfg.Bus.SubscriberQueue)
	hub := state.New(evtBus)
	sessionID := uuid.NewString()
	hub.Initialize(goal, subGoals, initialContext, sessionID, time.Now())

	baseCtx := cmd.Context()
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(baseCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var w worker.Worker = worker.Static{}
	if workerCommand != "" {
		w = worker.Subprocess{Command: workerCommand, Root: sandboxRoot}
	}

	var recordFile *os.File
	var recordDone chan struct{}
	var cancelRecord context.CancelFunc
	if recordPath != "" {
		recordFile, err = os.Create(recordPath)
		if err != nil {
			return internalError(fmt.Errorf("creating record file: %w", err))
		}
		var recordCtx context.Context
		recordCtx, cancelRecord = context.WithCancel(context.Background())
		gw := &gateway.Gateway{
			Hub:               hub,
			Bus:               evtBus,
			HistoryLimit:      cfg.Bus.HistoryCapacity,
			HeartbeatInterval: cfg.Gateway.HeartbeatInterval,
		}
		recordDone = make(chan struct{})
		go func() {
			defer close(recordDone)
			_ = gw.Attach(recordCtx, gateway.NewNDJSONSink(recordFile))
		}()
	}

	ctrl := &retry.Controller{
		Hub:                  hub,
		Bus:                  evtBus,
		Planner:              planner.Static{},
		Worker:               w,
		Verifier:             verifier.Static{},
		Supervisor:           supervisor.Static{},
		SupervisionThreshold: 0,
		RePlanEveryK:         cfg.Attempt.ReplanEveryIterations,
		Logger:               logger,
	}
	ctrl.Initialize(retry.Params{
		Goal:             goal,
		SubGoals:         subGoals,
		InitialContext:   initialContext,
		MaxAttempts:      cfg.Retry.MaxAttempts,
		OverallTimeLimit: cfg.Retry.OverallTimeLimit,
		WorkingDirectory: workingDir,
	})

	go func() {
		<-ctx.Done()
		ctrl.Stop()
	}()

	report := ctrl.Run(ctx)

	if cancelRecord != nil {
		cancelRecord()
		<-recordDone
		if closeErr := recordFile.Close(); closeErr != nil {
			logger.Warn("failed to close record file")
		}
	}

	body, marshalErr := json.MarshalIndent(report, "", "  ")
	if marshalErr != nil {
		return internalError(fmt.Errorf("marshaling final report: %w", marshalErr))
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(body))

	if code := exitCodeFor(report); code != exitSuccess {
		return &exitError{code: code, err: fmt.Errorf("run did not succeed (exit %d); see the final report above", code)}
	}
	return nil
}

// exitCodeFor maps a FinalReport onto the closed set of run outcomes:
// time exhaustion takes priority (it can co-occur with a failed final
// verification), then an aborted last attempt, then the verifier's
// HIGH-confidence/goal-achieved or passed verdicts, and otherwise a
// plain verification failure.
func exitCodeFor(r retry.FinalReport) int {
	if r.RetryInfo.TimeExhausted {
		return exitTimeExhausted
	}
	if n := len(r.AttemptHistory); n > 0 && r.AttemptHistory[n-1].Status == state.RunAborted {
		return exitAbortedOrEscalated
	}
	if r.FinalVerification != nil {
		if r.FinalVerification.Confidence == state.ConfidenceHigh && r.FinalVerification.GoalAchieved {
			return exitSuccess
		}
		if r.FinalVerification.Passed {
			return exitSuccess
		}
	}
	return exitVerificationFailed
}
