package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/mediaforge/internal/logger"
	"github.com/marmos91/mediaforge/internal/telemetry"
	"github.com/marmos91/mediaforge/pkg/adapter/web"
	"github.com/marmos91/mediaforge/pkg/api"
	"github.com/marmos91/mediaforge/pkg/api/auth"
	"github.com/marmos91/mediaforge/pkg/config"
	"github.com/marmos91/mediaforge/pkg/media"
	"github.com/marmos91/mediaforge/pkg/media/store/instrumented"
	"github.com/marmos91/mediaforge/pkg/metrics"
	"github.com/marmos91/mediaforge/pkg/metrics/prometheus"
	"github.com/marmos91/mediaforge/pkg/server"
)

var pidFile string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the mediaforge server",
	Long: `Start the mediaforge server in the foreground.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/mediaforge/config.yaml.

Examples:
  # Start with default config
  mediaforge start

  # Start with custom config file
  mediaforge start --config /etc/mediaforge/config.yaml

  # Start with environment variable overrides
  MEDIAFORGE_LOGGING_LEVEL=DEBUG mediaforge start`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Write the process ID to this file while running")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "mediaforge",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown error", logger.KeyError, err)
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "mediaforge",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", logger.KeyError, err)
		}
	}()

	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint)
	}

	// Metrics must be initialized before the components that record them.
	var (
		httpMetrics      metrics.HTTPMetrics
		transcodeMetrics metrics.TranscodeMetrics
		storeMetrics     metrics.StoreMetrics
		metricsServer    *metrics.Server
	)
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		httpMetrics = prometheus.NewHTTPMetrics()
		transcodeMetrics = prometheus.NewTranscodeMetrics()
		storeMetrics = prometheus.NewStoreMetrics()
		metricsServer = metrics.NewServer(cfg.Metrics.Port)
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	}

	rawStore, err := config.CreateMediaStore(ctx, &cfg.Database)
	if err != nil {
		return err
	}
	store := instrumented.Wrap(rawStore, cfg.Database.Type, storeMetrics)
	logger.Info("Media store opened", logger.KeyStore, cfg.Database.Type)

	srv := server.New(store, cfg.ShutdownTimeout)
	if metricsServer != nil {
		srv.SetMetricsServer(metricsServer)
	}

	deps := web.Deps{
		Lookup:  media.NewLookup(store),
		Metrics: httpMetrics,
	}
	apiDeps := api.Deps{Store: store}

	// Users live in the unwrapped backend; the instrumented wrapper only
	// exposes media.Store.
	if accounts := config.CreateAccountService(&cfg.Accounts, rawStore); accounts != nil {
		deps.Accounts = accounts
		logger.Info("Form authentication enabled", logger.KeyStore, cfg.Database.Type)
	}

	if cfg.Transcode.Enabled {
		pipeline, err := config.CreatePipeline(ctx, cfg, store, nil, transcodeMetrics)
		if err != nil {
			_ = store.Close()
			return err
		}
		srv.SetPipeline(pipeline)
		deps.Pipeline = pipeline
		apiDeps.Pipeline = pipeline
		logger.Info("Transcoding enabled", "workers", cfg.Transcode.Workers, "variants", len(cfg.Transcode.Variants))
	} else {
		logger.Info("Transcoding disabled, uploads are stored only")
	}

	if cfg.API.IsEnabled() {
		if cfg.API.JWT.Secret != "" {
			jwtSvc, err := auth.NewJWTService(cfg.API.JWT.Secret, cfg.API.JWT.Issuer)
			if err != nil {
				_ = store.Close()
				return err
			}
			apiDeps.JWT = jwtSvc
		} else {
			logger.Warn("api.jwt.secret is not set, the media API is unauthenticated")
		}
		srv.SetAPIServer(api.NewServer(cfg.API, apiDeps))
		logger.Info("API server enabled", "port", cfg.API.Port)
	}

	httpAdapter := web.New(cfg.Server, deps)
	if err := srv.AddAdapter(httpAdapter); err != nil {
		_ = store.Close()
		return err
	}
	logger.Info("Adapter enabled", "protocol", httpAdapter.Protocol(), "port", cfg.Server.Port,
		"edge_triggered", cfg.Server.EdgeTriggered, "workers", cfg.Server.Workers)

	if path := configPathForWatch(); path != "" {
		config.Watch(path, func(updated *config.Config) {
			if updated.Logging.Level != logger.GetLevel() {
				logger.Info("Log level changed", "level", updated.Logging.Level)
				logger.SetLevel(updated.Logging.Level)
			}
		}, func(err error) {
			logger.Warn("Ignoring invalid configuration change", logger.KeyError, err)
		})
	}

	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
			_ = store.Close()
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error", logger.KeyError, err)
			return err
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("Server error", logger.KeyError, err)
			return err
		}
		logger.Info("Server stopped")
	}

	return nil
}

// configPathForWatch returns the file to watch for runtime changes, or ""
// when running from defaults.
func configPathForWatch() string {
	if f := GetConfigFile(); f != "" {
		return f
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return ""
}
