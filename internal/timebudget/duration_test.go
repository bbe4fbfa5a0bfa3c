package timebudget

import (
	"testing"
	"time"

	loopErrors "loopctl/internal/errors"
)

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"4h", 4 * time.Hour},
		{"30m", 30 * time.Minute},
		{"45s", 45 * time.Second},
		{"0s", 0},
	}
	for _, c := range cases {
		got, err := ParseDuration(c.in)
		if err != nil {
			t.Fatalf("ParseDuration(%q) unexpected error: %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("ParseDuration(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestParseDurationBad(t *testing.T) {
	bad := []string{"", "4", "h4", "4 h", "-4h", "4H", "4.5h"}
	for _, in := range bad {
		_, err := ParseDuration(in)
		if err == nil {
			t.Fatalf("ParseDuration(%q) expected error, got nil", in)
		}
		code, ok := loopErrors.CodeOf(err)
		if !ok || code != loopErrors.CodeBadDuration {
			t.Errorf("ParseDuration(%q) expected CodeBadDuration, got %v", in, err)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		ms   int64
		want string
	}{
		{int64(2 * time.Hour / time.Millisecond), "2h"},
		{int64(90 * time.Minute / time.Millisecond), "90m"},
		{int64(45 * time.Second / time.Millisecond), "45s"},
		{int64(61 * time.Second / time.Millisecond), "61s"},
		{0, "0s"},
	}
	for _, c := range cases {
		got := FormatDuration(c.ms)
		if got != c.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", c.ms, got, c.want)
		}
	}
}

func TestBudgetElapsedRemaining(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := start
	b := NewAt(start, time.Hour, func() time.Time { return clock })

	if b.Elapsed() != 0 {
		t.Fatalf("expected zero elapsed at start, got %v", b.Elapsed())
	}
	if b.Remaining() != time.Hour {
		t.Fatalf("expected full remaining at start, got %v", b.Remaining())
	}

	clock = start.Add(20 * time.Minute)
	if b.Elapsed() != 20*time.Minute {
		t.Fatalf("expected 20m elapsed, got %v", b.Elapsed())
	}
	if b.Remaining() != 40*time.Minute {
		t.Fatalf("expected 40m remaining, got %v", b.Remaining())
	}
	if b.Exhausted() {
		t.Fatalf("should not be exhausted yet")
	}

	clock = start.Add(2 * time.Hour)
	if !b.Exhausted() {
		t.Fatalf("expected exhausted after overrun")
	}
	if b.Remaining() != 0 {
		t.Fatalf("expected remaining floored at zero, got %v", b.Remaining())
	}
}
