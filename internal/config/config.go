// Package config provides typed, validated configuration for the
// control plane.
//
// Resolution order (highest priority first):
//  1. Environment variables (LOOPCTL_*)
//  2. Config file (path from LOOPCTL_CONFIG_PATH, JSON)
//  3. Defaults
package config

import "time"

// Config is the top-level configuration structure.
type Config struct {
	Retry     RetryConfig     `json:"retry"`
	Attempt   AttemptConfig   `json:"attempt"`
	Bus       BusConfig       `json:"bus"`
	Gateway   GatewayConfig   `json:"gateway"`
	Telemetry TelemetryConfig `json:"telemetry"`
}

// RetryConfig controls the outer Retry Controller loop.
type RetryConfig struct {
	MaxAttempts      int           `json:"max_attempts"`
	OverallTimeLimit time.Duration `json:"overall_time_limit"`
	MinAttemptLimit  time.Duration `json:"min_attempt_limit"`
}

// AttemptConfig controls the inner Attempt Engine loop.
type AttemptConfig struct {
	ReplanEveryIterations int `json:"replan_every_iterations"`
}

// BusConfig controls the Event Bus.
type BusConfig struct {
	HistoryCapacity  int `json:"history_capacity"`
	SubscriberQueue  int `json:"subscriber_queue"`
}

// GatewayConfig controls Connection Gateway sessions.
type GatewayConfig struct {
	HeartbeatInterval time.Duration `json:"heartbeat_interval"`
}

// TelemetryConfig controls logging.
type TelemetryConfig struct {
	Level string `json:"level"`
}

// Default returns the zero-configuration defaults (history ring 1024,
// subscriber queue 256, supervision threshold handled in
// internal/supervision, min attempt 5 minutes).
func Default() Config {
	return Config{
		Retry: RetryConfig{
			MaxAttempts:      3,
			OverallTimeLimit: time.Hour,
			MinAttemptLimit:  5 * time.Minute,
		},
		Attempt: AttemptConfig{
			ReplanEveryIterations: 1,
		},
		Bus: BusConfig{
			HistoryCapacity: 1024,
			SubscriberQueue: 256,
		},
		Gateway: GatewayConfig{
			HeartbeatInterval: 15 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Level: "info",
		},
	}
}
