package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/marmos91/mediaforge/pkg/pathsafe"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags and the cross-field rules tags cannot
// express. It never modifies cfg.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return formatValidationErrors(verrs)
		}
		return err
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry.endpoint is required when telemetry is enabled")
	}
	if cfg.Telemetry.Profiling.Enabled && cfg.Telemetry.Profiling.Endpoint == "" {
		return fmt.Errorf("telemetry.profiling.endpoint is required when profiling is enabled")
	}

	if err := cfg.Server.Validate(); err != nil {
		return err
	}

	if err := validateDatabase(&cfg.Database); err != nil {
		return err
	}

	if err := validateTranscode(cfg); err != nil {
		return err
	}

	if cfg.Metrics.Enabled && cfg.API.IsEnabled() && cfg.Metrics.Port == cfg.API.Port {
		return fmt.Errorf("metrics.port and api.port are both %d", cfg.Metrics.Port)
	}
	if cfg.API.IsEnabled() && cfg.API.Port == cfg.Server.Port {
		return fmt.Errorf("api.port and server.port are both %d", cfg.API.Port)
	}

	return nil
}

func validateDatabase(cfg *DatabaseConfig) error {
	switch cfg.Type {
	case DatabaseSQLite, DatabasePostgres:
		if err := cfg.SQL().Validate(); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	case DatabaseBadger:
		if cfg.Badger.Path == "" {
			return fmt.Errorf("database.badger.path is required")
		}
	}
	return nil
}

func validateTranscode(cfg *Config) error {
	seen := make(map[string]bool, len(cfg.Transcode.Variants))
	for _, v := range cfg.Transcode.Variants {
		// Variant names become directory names under every output.
		if _, err := pathsafe.Sanitize(v.Name); err != nil {
			return fmt.Errorf("transcode variant %q: %w", v.Name, err)
		}
		if strings.Contains(v.Name, "/") || strings.Trim(v.Name, ".") == "" {
			return fmt.Errorf("transcode variant %q is not a single directory name", v.Name)
		}
		if seen[v.Name] {
			return fmt.Errorf("transcode variant %q is listed twice", v.Name)
		}
		seen[v.Name] = true
	}
	return nil
}

// formatValidationErrors flattens validator errors into one message naming
// each field and the tag it failed.
func formatValidationErrors(verrs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}
