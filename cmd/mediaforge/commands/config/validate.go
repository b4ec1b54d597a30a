package config

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/mediaforge/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the mediaforge configuration file.

Checks for syntax errors, missing required fields and invalid values, then
warns about settings that are valid but probably unintended.

Examples:
  # Validate default config
  mediaforge config validate

  # Validate specific config file
  mediaforge config validate --config /etc/mediaforge/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file: %s\n", displayPath)
	_, _ = fmt.Fprintln(out, "Validation: OK")

	if warnings := configWarnings(cfg); len(warnings) > 0 {
		_, _ = fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			_, _ = fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	_, _ = fmt.Fprintf(out, "\nConfiguration summary:\n")
	_, _ = fmt.Fprintf(out, "  HTTP port:       %d\n", cfg.Server.Port)
	_, _ = fmt.Fprintf(out, "  Source dir:      %s\n", cfg.Server.SrcDir)
	_, _ = fmt.Fprintf(out, "  Database type:   %s\n", cfg.Database.Type)
	_, _ = fmt.Fprintf(out, "  Transcoding:     %t (%d variants)\n", cfg.Transcode.Enabled, len(cfg.Transcode.Variants))
	if cfg.API.IsEnabled() {
		_, _ = fmt.Fprintf(out, "  API port:        %d\n", cfg.API.Port)
	}
	_, _ = fmt.Fprintf(out, "  Log level:       %s\n", cfg.Logging.Level)
	return nil
}

func configWarnings(cfg *config.Config) []string {
	var warnings []string
	if cfg.API.IsEnabled() && cfg.API.JWT.Secret == "" {
		warnings = append(warnings, "api.jwt.secret not set - the media API is unauthenticated")
	}
	if _, err := os.Stat(cfg.Server.SrcDir); err != nil {
		warnings = append(warnings, fmt.Sprintf("server.src_dir %q is not accessible: %v", cfg.Server.SrcDir, err))
	}
	if cfg.Database.Type == config.DatabaseMemory {
		warnings = append(warnings, "database.type is memory - media records are lost on restart")
	}
	if !cfg.Transcode.Enabled {
		warnings = append(warnings, "transcode.enabled is false - uploads are stored but never become playable")
	}
	return warnings
}
