package config

import (
	"encoding/json"
	"os"
	"strconv"
	"time"
)

// Load resolves Config from environment variables over an optional
// JSON config file over Default(), using an env-over-file-over-defaults
// precedence.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("LOOPCTL_CONFIG_PATH"); path != "" {
		body, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := json.Unmarshal(body, &cfg); err != nil {
			return cfg, err
		}
	}

	applyEnvOverrides(&cfg)

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOOPCTL_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Retry.MaxAttempts = n
		}
	}
	if v := os.Getenv("LOOPCTL_OVERALL_TIME_LIMIT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Retry.OverallTimeLimit = d
		}
	}
	if v := os.Getenv("LOOPCTL_HISTORY_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Bus.HistoryCapacity = n
		}
	}
	if v := os.Getenv("LOOPCTL_LOG_LEVEL"); v != "" {
		cfg.Telemetry.Level = v
	}
}
