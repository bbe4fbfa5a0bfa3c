package config

import "fmt"

// Validate rejects configurations that would make the control plane's
// invariants impossible to satisfy.
func Validate(cfg Config) error {
	if cfg.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be positive, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.OverallTimeLimit <= 0 {
		return fmt.Errorf("retry.overall_time_limit must be positive, got %s", cfg.Retry.OverallTimeLimit)
	}
	if cfg.Bus.HistoryCapacity <= 0 {
		return fmt.Errorf("bus.history_capacity must be positive, got %d", cfg.Bus.HistoryCapacity)
	}
	if cfg.Bus.SubscriberQueue <= 0 {
		return fmt.Errorf("bus.subscriber_queue must be positive, got %d", cfg.Bus.SubscriberQueue)
	}
	switch cfg.Telemetry.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("telemetry.level must be one of debug/info/warn/error, got %q", cfg.Telemetry.Level)
	}
	return nil
}
