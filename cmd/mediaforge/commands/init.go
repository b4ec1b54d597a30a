package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/mediaforge/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample mediaforge configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/mediaforge/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  mediaforge init

  # Initialize with custom path
  mediaforge init --config /etc/mediaforge/config.yaml

  # Force overwrite existing config
  mediaforge init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	var configPath string
	var err error
	if configFile != "" {
		err = config.InitConfigToPath(configFile, initForce)
		configPath = configFile
	} else {
		configPath, err = config.InitConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file created at: %s\n", configPath)
	_, _ = fmt.Fprintln(out, "\nNext steps:")
	_, _ = fmt.Fprintln(out, "  1. Set server.src_dir to the directory holding index.html")
	_, _ = fmt.Fprintln(out, "  2. Check transcode.ffmpeg_path points at an ffmpeg binary")
	_, _ = fmt.Fprintf(out, "  3. Start the server with: mediaforge start --config %s\n", configPath)
	_, _ = fmt.Fprintln(out, "\nTo protect the media API, set api.jwt.secret (32+ characters):")
	_, _ = fmt.Fprintf(out, "    export %s_API_JWT_SECRET=$(openssl rand -hex 32)\n", config.EnvPrefix)
	return nil
}
