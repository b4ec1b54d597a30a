package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configHeader = `# mediaforge Configuration File
#
# Every key can be overridden from the environment with the MEDIAFORGE_
# prefix, dots becoming underscores: MEDIAFORGE_SERVER_PORT=8080.
#
# Sections:
#   logging     log level, format and destination (level reloads live)
#   telemetry   OpenTelemetry tracing and Pyroscope profiling
#   server      media web server (uploads, HLS playback, static files)
#   database    media store: sqlite, postgres, badger or memory
#   transcode   ffmpeg HLS pipeline and optional S3 publishing
#   metrics     Prometheus endpoint
#   api         admin REST API

`

// InitConfig writes the default configuration to the default location.
// An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	return path, InitConfigToPath(path, force)
}

// InitConfigToPath writes the default configuration to path.
func InitConfigToPath(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(GetDefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, append([]byte(configHeader), data...), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
