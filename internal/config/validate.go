package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate checks a configuration for values the application cannot
// start with.
//
// Ensures:
//   - list caps are positive
//   - the log level is recognized
//   - sync timing is positive when sync is enabled
//   - the desktop listener stays on localhost
func Validate(cfg Config) error {
	if cfg.History.MaxHistoryItems <= 0 {
		return errors.New("history.max_history_items must be positive")
	}
	if cfg.History.MaxFavorites <= 0 {
		return errors.New("history.max_favorites must be positive")
	}

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q: must be debug, info, warn, or error", cfg.Logging.Level)
	}

	if cfg.Sync.Enabled {
		if cfg.Sync.IntervalMinutes <= 0 {
			return errors.New("sync.interval_minutes must be positive when sync is enabled")
		}
		if cfg.Sync.MaxRetries < 0 {
			return errors.New("sync.max_retries must not be negative")
		}
		if cfg.Sync.BatchSize <= 0 {
			return errors.New("sync.batch_size must be positive when sync is enabled")
		}
	}

	if cfg.Backend.TimeoutSeconds <= 0 {
		return errors.New("backend.timeout_seconds must be positive")
	}

	switch strings.ToLower(cfg.Export.Schedule) {
	case "", "manual", "daily", "weekly", "monthly":
	default:
		return fmt.Errorf("invalid export.schedule %q: must be manual, daily, weekly, or monthly", cfg.Export.Schedule)
	}

	if cfg.Desktop.ListenAddr != "" {
		if err := validateLoopback(cfg.Desktop.ListenAddr); err != nil {
			return err
		}
	}

	return nil
}

// validateLoopback rejects listen addresses that would expose the
// desktop API beyond the local machine.
func validateLoopback(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid desktop.listen_addr %q: %w", addr, err)
	}
	if host == "localhost" {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("desktop.listen_addr %q must bind a loopback address", addr)
	}
	return nil
}
