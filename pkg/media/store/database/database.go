// Package database persists media records and user accounts in SQLite or
// PostgreSQL through GORM. SQLite databases are created with AutoMigrate;
// PostgreSQL schemas are managed by versioned migrations.
package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/marmos91/mediaforge/pkg/account"
	"github.com/marmos91/mediaforge/pkg/media"
)

// pgUniqueViolation is the SQLSTATE for a duplicate key.
const pgUniqueViolation = "23505"

// Store implements media.Store on top of GORM.
type Store struct {
	db *gorm.DB
}

// New opens the configured database and brings its schema up to date.
func New(ctx context.Context, cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	dialector, err := openDialector(ctx, cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Type, err)
	}

	if err := configurePool(db, cfg); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// openDialector prepares the backend. PostgreSQL is migrated before GORM
// connects so the schema is never created by AutoMigrate there.
func openDialector(ctx context.Context, cfg *Config) (gorm.Dialector, error) {
	if cfg.Type == DatabaseTypePostgres {
		if err := RunMigrations(ctx, &cfg.Postgres); err != nil {
			return nil, err
		}
		return postgres.Open(cfg.Postgres.DSN()), nil
	}

	path := cfg.SQLite.Path
	if path != SQLiteMemory {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	// WAL lets the admin API read while pipeline workers write.
	return sqlite.Open(path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"), nil
}

func configurePool(db *gorm.DB, cfg *Config) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}

	if cfg.Type == DatabaseTypePostgres {
		sqlDB.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
		return nil
	}

	// A single writer. An in-memory database also only exists on the
	// connection that created it.
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&media.Record{}, &account.User{}); err != nil {
		_ = sqlDB.Close()
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// DB returns the underlying GORM handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) Healthcheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// isDuplicateKey recognises a primary key collision from either driver.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	// glebarez/sqlite reports constraint failures as plain text.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// notFound maps gorm.ErrRecordNotFound onto the domain sentinel.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return media.ErrMediaNotFound
	}
	return err
}
