package config

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/mediaforge/internal/cli/output"
	"github.com/marmos91/mediaforge/pkg/config"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective configuration",
	Long: `Display the configuration after defaults and environment overrides.

Examples:
  # Show as YAML
  mediaforge config show

  # Show as JSON
  mediaforge config show --output json`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}
	for _, secret := range []*string{
		&cfg.API.JWT.Secret,
		&cfg.Database.Postgres.Password,
		&cfg.Transcode.Publish.S3.SecretAccessKey,
	} {
		if *secret != "" {
			*secret = "<redacted>"
		}
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(cmd.OutOrStdout(), cfg)
	default:
		return output.PrintYAML(cmd.OutOrStdout(), cfg)
	}
}
