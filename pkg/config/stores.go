package config

import (
	"context"
	"fmt"

	"github.com/marmos91/mediaforge/pkg/account"
	"github.com/marmos91/mediaforge/pkg/media"
	"github.com/marmos91/mediaforge/pkg/media/store/badger"
	"github.com/marmos91/mediaforge/pkg/media/store/database"
	"github.com/marmos91/mediaforge/pkg/media/store/memory"
	"github.com/marmos91/mediaforge/pkg/metrics"
	"github.com/marmos91/mediaforge/pkg/transcode"
)

// CreateMediaStore opens the media store selected by cfg.Type.
func CreateMediaStore(ctx context.Context, cfg *DatabaseConfig) (media.Store, error) {
	switch cfg.Type {
	case DatabaseSQLite, DatabasePostgres:
		store, err := database.New(ctx, cfg.SQL())
		if err != nil {
			return nil, fmt.Errorf("failed to open %s media store: %w", cfg.Type, err)
		}
		return store, nil
	case DatabaseBadger:
		store, err := badger.New(cfg.Badger)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger media store: %w", err)
		}
		return store, nil
	case DatabaseMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown database type: %q", cfg.Type)
	}
}

// CreateAccountService returns the form authentication service over store,
// or nil when the backend keeps no users.
func CreateAccountService(cfg *account.Config, store media.Store) *account.Service {
	users, ok := store.(account.Store)
	if !ok {
		return nil
	}
	return account.NewService(users, *cfg)
}

// CreatePublisher builds the optional remote publisher. It returns nil
// when publishing is disabled.
func CreatePublisher(ctx context.Context, cfg *transcode.PublishConfig, m metrics.TranscodeMetrics) (transcode.Publisher, error) {
	if !cfg.S3.Enabled {
		return nil, nil
	}
	p, err := transcode.NewS3Publisher(ctx, cfg.S3, m)
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 publisher: %w", err)
	}
	return p, nil
}

// CreatePipeline builds the transcode pipeline over store. runner may be
// nil to execute ffmpeg from cfg.Transcode.FFmpegPath. The pipeline is not
// started.
func CreatePipeline(ctx context.Context, cfg *Config, store media.Store, runner transcode.Runner, m metrics.TranscodeMetrics) (*transcode.Pipeline, error) {
	publisher, err := CreatePublisher(ctx, &cfg.Transcode.Publish, m)
	if err != nil {
		return nil, err
	}
	return transcode.New(cfg.Transcode, store, runner, publisher, m), nil
}
