// Package timebudget parses and formats the duration strings used by
// the control plane and tracks elapsed/remaining time against a wall
// clock budget.
package timebudget

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	loopErrors "loopctl/internal/errors"
)

var durationPattern = regexp.MustCompile(`^(\d+)([hms])$`)

// ParseDuration accepts strings matching ^\d+[hms]$ (e.g. "4h", "30m",
// "45s"). Anything else returns a CodeBadDuration error.
func ParseDuration(s string) (time.Duration, error) {
	m := durationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, loopErrors.New(loopErrors.CodeBadDuration, fmt.Sprintf("invalid duration %q: want \\d+[hms]", s))
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, loopErrors.New(loopErrors.CodeBadDuration, fmt.Sprintf("invalid duration %q", s)).WithCause(err)
	}
	switch m[2] {
	case "h":
		return time.Duration(n) * time.Hour, nil
	case "m":
		return time.Duration(n) * time.Minute, nil
	case "s":
		return time.Duration(n) * time.Second, nil
	default:
		return 0, loopErrors.New(loopErrors.CodeBadDuration, fmt.Sprintf("invalid duration unit in %q", s))
	}
}

// FormatDuration emits the most coarse-grained NhMmSs form that is
// exact to the second: "2h", "90m" when mixed hours and minutes don't
// divide evenly into hours, "45s" when under a minute. Any sub-second
// remainder is dropped.
func FormatDuration(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	if d == 0 {
		return "0s"
	}
	totalSeconds := int64(d / time.Second)
	if totalSeconds%3600 == 0 {
		return fmt.Sprintf("%dh", totalSeconds/3600)
	}
	if totalSeconds%60 == 0 {
		return fmt.Sprintf("%dm", totalSeconds/60)
	}
	return fmt.Sprintf("%ds", totalSeconds)
}
