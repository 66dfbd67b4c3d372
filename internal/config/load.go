package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML configuration file, layers it over Default(), and
// applies environment overrides. A missing file is not an error when
// path is empty; a named file that does not exist is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		// Clean the path to prevent directory traversal
		cleanPath := filepath.Clean(path)
		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return cfg, err
	}

	if err := Validate(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables
// if set. Returns an error for unparseable values to fail fast.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("DIET_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("DIET_BACKEND_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("DIET_BACKEND_API_KEY"); v != "" {
		cfg.Backend.APIKey = v
	}
	if v := os.Getenv("DIET_LISTEN_ADDR"); v != "" {
		cfg.Desktop.ListenAddr = v
	}
	if v := os.Getenv("DIET_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("DIET_EXPORT_DIR"); v != "" {
		cfg.Export.Dir = v
	}
	if v := os.Getenv("DIET_EXPORT_SCHEDULE"); v != "" {
		cfg.Export.Schedule = v
	}

	if v := os.Getenv("DIET_MAX_HISTORY_ITEMS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DIET_MAX_HISTORY_ITEMS %q: %w", v, err)
		}
		cfg.History.MaxHistoryItems = n
	}
	if v := os.Getenv("DIET_MAX_FAVORITES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DIET_MAX_FAVORITES %q: %w", v, err)
		}
		cfg.History.MaxFavorites = n
	}
	if v := os.Getenv("DIET_AUTO_SAVE_OFFLINE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid DIET_AUTO_SAVE_OFFLINE %q: %w", v, err)
		}
		cfg.History.AutoSaveOffline = b
	}
	if v := os.Getenv("DIET_SYNC_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid DIET_SYNC_ENABLED %q: %w", v, err)
		}
		cfg.Sync.Enabled = b
	}
	if v := os.Getenv("DIET_SYNC_INTERVAL_MINUTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DIET_SYNC_INTERVAL_MINUTES %q: %w", v, err)
		}
		cfg.Sync.IntervalMinutes = n
	}
	if v := os.Getenv("DIET_TELEMETRY_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid DIET_TELEMETRY_ENABLED %q: %w", v, err)
		}
		cfg.Telemetry.Enabled = b
	}

	return nil
}
