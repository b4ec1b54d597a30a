package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/mediaforge/pkg/adapter/web"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values (0, "", false, nil) are replaced with defaults; explicit
// values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyShutdownTimeoutDefaults(cfg)
	applyServerDefaults(&cfg.Server)
	applyDatabaseDefaults(&cfg.Database)
	cfg.Accounts.ApplyDefaults()
	cfg.Transcode.ApplyDefaults()
	applyMetricsDefaults(&cfg.Metrics)
	cfg.API.ApplyDefaults()
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	applyProfilingDefaults(&cfg.Profiling)
}

func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{"cpu", "inuse_space", "goroutines"}
	}
}

func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyServerDefaults fills the web server section. Unlike web.Config,
// a zero port from the file means "use the default port".
func applyServerDefaults(cfg *web.Config) {
	if cfg.Port == 0 {
		cfg.Port = web.DefaultPort
	}
	cfg.ApplyDefaults()
}

func applyDatabaseDefaults(cfg *DatabaseConfig) {
	if cfg.Type == "" {
		cfg.Type = DatabaseSQLite
	}

	switch cfg.Type {
	case DatabaseSQLite, DatabasePostgres:
		sql := cfg.SQL()
		sql.ApplyDefaults()
		cfg.SQLite = sql.SQLite
		cfg.Postgres = sql.Postgres
	case DatabaseBadger:
		if cfg.Badger.Path == "" {
			cfg.Badger.Path = filepath.Join(getConfigDir(), "badger")
		}
	}
}

// applyMetricsDefaults sets the metrics port when metrics are enabled.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Database: DatabaseConfig{Type: DatabaseSQLite},
	}
	ApplyDefaults(cfg)
	return cfg
}
