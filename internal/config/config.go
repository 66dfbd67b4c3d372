// Package config defines the application configuration shared by the
// desktop server, the mobile FFI bridge, and the CLI. Values come from
// built-in defaults, an optional YAML file, and environment overrides,
// applied in that order.
package config

// HistorySection bounds the per-user scan history and favorites lists.
type HistorySection struct {
	// MaxHistoryItems caps the scan history list. Oldest entries are
	// evicted when the cap is exceeded.
	MaxHistoryItems int `yaml:"max_history_items"`

	// MaxFavorites caps the favorites list. The oldest added entries
	// are evicted when the cap is exceeded.
	MaxFavorites int `yaml:"max_favorites"`

	// AutoSaveOffline mirrors scanned products into the local product
	// cache so their details stay available without connectivity.
	AutoSaveOffline bool `yaml:"auto_save_offline"`
}

// DatabaseSection configures the local SQLite database.
type DatabaseSection struct {
	// Path is the SQLite file location. The directory is created on open.
	Path string `yaml:"path"`
}

// BackendSection configures the remote API client.
type BackendSection struct {
	// BaseURL is the backend origin, e.g. "https://api.example.com".
	// Empty means the app runs offline-only.
	BaseURL string `yaml:"base_url"`

	// APIKey is sent as the anon key header on every request.
	APIKey string `yaml:"api_key"`

	// TimeoutSeconds bounds each HTTP request.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// CacheTTLMinutes is how long product lookups are served from
	// the in-process cache before hitting the network again.
	CacheTTLMinutes int `yaml:"cache_ttl_minutes"`
}

// SyncSection configures background synchronization of scan events.
type SyncSection struct {
	Enabled         bool `yaml:"enabled"`
	IntervalMinutes int  `yaml:"interval_minutes"`
	MaxRetries      int  `yaml:"max_retries"`
	BatchSize       int  `yaml:"batch_size"`
}

// ExportSection configures data export archives.
type ExportSection struct {
	// Dir is where export archives are written.
	Dir string `yaml:"dir"`

	// MaxArchives bounds how many scheduled archives are retained.
	MaxArchives int `yaml:"max_archives"`

	// Schedule is the automatic export cadence: "manual", "daily",
	// "weekly", or "monthly".
	Schedule string `yaml:"schedule"`
}

// DesktopSection configures the localhost desktop server.
type DesktopSection struct {
	// ListenAddr must stay on a loopback interface.
	ListenAddr string `yaml:"listen_addr"`
}

// LoggingSection configures structured logging.
type LoggingSection struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `yaml:"level"`
}

// TelemetrySection configures anonymous usage counters. Disabled unless
// the user opts in.
type TelemetrySection struct {
	Enabled bool `yaml:"enabled"`
}

// Config is the full application configuration.
type Config struct {
	History   HistorySection   `yaml:"history"`
	Database  DatabaseSection  `yaml:"database"`
	Backend   BackendSection   `yaml:"backend"`
	Sync      SyncSection      `yaml:"sync"`
	Export    ExportSection    `yaml:"export"`
	Desktop   DesktopSection   `yaml:"desktop"`
	Logging   LoggingSection   `yaml:"logging"`
	Telemetry TelemetrySection `yaml:"telemetry"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() Config {
	return Config{
		History: HistorySection{
			MaxHistoryItems: 100,
			MaxFavorites:    50,
			AutoSaveOffline: true,
		},
		Database: DatabaseSection{
			Path: "./data/restricted-diet.db",
		},
		Backend: BackendSection{
			TimeoutSeconds:  30,
			CacheTTLMinutes: 15,
		},
		Sync: SyncSection{
			Enabled:         false,
			IntervalMinutes: 15,
			MaxRetries:      5,
			BatchSize:       50,
		},
		Export: ExportSection{
			Dir:         "./exports",
			MaxArchives: 5,
			Schedule:    "manual",
		},
		Desktop: DesktopSection{
			ListenAddr: "127.0.0.1:8090",
		},
		Logging: LoggingSection{
			Level: "info",
		},
		Telemetry: TelemetrySection{
			Enabled: false,
		},
	}
}
