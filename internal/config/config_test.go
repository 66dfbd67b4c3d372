package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.History.MaxHistoryItems != 100 {
		t.Errorf("MaxHistoryItems = %d, want 100", cfg.History.MaxHistoryItems)
	}
	if cfg.History.MaxFavorites != 50 {
		t.Errorf("MaxFavorites = %d, want 50", cfg.History.MaxFavorites)
	}
	if !cfg.History.AutoSaveOffline {
		t.Error("AutoSaveOffline should default to true")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.Telemetry.Enabled {
		t.Error("Telemetry should default to disabled")
	}
	if cfg.Desktop.ListenAddr != "127.0.0.1:8090" {
		t.Errorf("ListenAddr = %q, want %q", cfg.Desktop.ListenAddr, "127.0.0.1:8090")
	}

	if err := Validate(cfg); err != nil {
		t.Errorf("Default() config should validate, got %v", err)
	}
}

func TestLoad_emptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.History.MaxHistoryItems != 100 {
		t.Errorf("MaxHistoryItems = %d, want default 100", cfg.History.MaxHistoryItems)
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() with a named missing file should fail")
	}
}

func TestLoad_fileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
history:
  max_history_items: 3
  max_favorites: 2
backend:
  base_url: https://api.example.com
  timeout_seconds: 10
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.History.MaxHistoryItems != 3 {
		t.Errorf("MaxHistoryItems = %d, want 3", cfg.History.MaxHistoryItems)
	}
	if cfg.History.MaxFavorites != 2 {
		t.Errorf("MaxFavorites = %d, want 2", cfg.History.MaxFavorites)
	}
	// Fields absent from the file keep their defaults
	if !cfg.History.AutoSaveOffline {
		t.Error("AutoSaveOffline should keep its default when absent from the file")
	}
	if cfg.Sync.IntervalMinutes != 15 {
		t.Errorf("Sync.IntervalMinutes = %d, want default 15", cfg.Sync.IntervalMinutes)
	}
	if cfg.Backend.BaseURL != "https://api.example.com" {
		t.Errorf("Backend.BaseURL = %q", cfg.Backend.BaseURL)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoad_malformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("history: [not a map"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Load() should reject malformed YAML")
	}
}

func TestLoad_envOverrides(t *testing.T) {
	t.Setenv("DIET_MAX_HISTORY_ITEMS", "7")
	t.Setenv("DIET_AUTO_SAVE_OFFLINE", "false")
	t.Setenv("DIET_LOG_LEVEL", "warn")
	t.Setenv("DIET_BACKEND_URL", "https://env.example.com")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.History.MaxHistoryItems != 7 {
		t.Errorf("MaxHistoryItems = %d, want 7", cfg.History.MaxHistoryItems)
	}
	if cfg.History.AutoSaveOffline {
		t.Error("AutoSaveOffline should be overridden to false")
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
	if cfg.Backend.BaseURL != "https://env.example.com" {
		t.Errorf("Backend.BaseURL = %q", cfg.Backend.BaseURL)
	}
}

func TestLoad_invalidEnvValue(t *testing.T) {
	t.Setenv("DIET_MAX_FAVORITES", "lots")

	if _, err := Load(""); err == nil {
		t.Error("Load() should reject a non-numeric DIET_MAX_FAVORITES")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"zero history cap", func(c *Config) { c.History.MaxHistoryItems = 0 }, true},
		{"negative favorites cap", func(c *Config) { c.History.MaxFavorites = -1 }, true},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }, true},
		{"uppercase log level", func(c *Config) { c.Logging.Level = "INFO" }, false},
		{"sync enabled zero interval", func(c *Config) {
			c.Sync.Enabled = true
			c.Sync.IntervalMinutes = 0
		}, true},
		{"sync disabled zero interval", func(c *Config) {
			c.Sync.Enabled = false
			c.Sync.IntervalMinutes = 0
		}, false},
		{"zero backend timeout", func(c *Config) { c.Backend.TimeoutSeconds = 0 }, true},
		{"localhost listener", func(c *Config) { c.Desktop.ListenAddr = "localhost:9000" }, false},
		{"public listener", func(c *Config) { c.Desktop.ListenAddr = "0.0.0.0:8090" }, true},
		{"lan listener", func(c *Config) { c.Desktop.ListenAddr = "192.168.1.4:8090" }, true},
		{"empty listener", func(c *Config) { c.Desktop.ListenAddr = "" }, false},
		{"weekly export schedule", func(c *Config) { c.Export.Schedule = "weekly" }, false},
		{"unknown export schedule", func(c *Config) { c.Export.Schedule = "hourly" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
