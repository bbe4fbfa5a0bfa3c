package commands

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"loopctl/internal/bus"
)

// NewReplayCommand returns the `loopctl replay` command: it reads a
// newline-delimited JSON event stream captured by `run --record` and
// re-emits it to stdout, optionally pacing playback by the original
// inter-event delay.
func NewReplayCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <file>",
		Short: "Replay a recorded event stream",
		Args:  cobra.ExactArgs(1),
		RunE:  runReplay,
	}

	cmd.Flags().Float64("speed", 0, "playback speed multiplier relative to original timing; 0 replays as fast as possible")

	return cmd
}

func runReplay(cmd *cobra.Command, args []string) error {
	speed, _ := cmd.Flags().GetFloat64("speed")

	events, err := readNDJSON(args[0])
	if err != nil {
		return internalError(fmt.Errorf("reading recorded events: %w", err))
	}

	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)

	var prevTimestamp int64
	for i, evt := range events {
		if speed > 0 && i > 0 && prevTimestamp > 0 && evt.Timestamp > prevTimestamp {
			delay := time.Duration(float64(evt.Timestamp-prevTimestamp)/speed) * time.Millisecond
			time.Sleep(delay)
		}
		prevTimestamp = evt.Timestamp
		if err := enc.Encode(evt); err != nil {
			return fmt.Errorf("writing event: %w", err)
		}
	}
	return nil
}

func readNDJSON(path string) ([]bus.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var events []bus.Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var evt bus.Event
		if err := json.Unmarshal(line, &evt); err != nil {
			return nil, fmt.Errorf("parsing line: %w", err)
		}
		events = append(events, evt)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
