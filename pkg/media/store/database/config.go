package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DatabaseType selects the SQL backend.
type DatabaseType string

const (
	DatabaseTypeSQLite   DatabaseType = "sqlite"
	DatabaseTypePostgres DatabaseType = "postgres"
)

// SQLiteMemory keeps the whole database inside the process.
const SQLiteMemory = ":memory:"

const (
	defaultPostgresPort = 5432
	defaultMaxOpenConns = 25
	defaultMaxIdleConns = 5
)

// SQLiteConfig configures the single-node backend.
type SQLiteConfig struct {
	// Path is the database file, or SQLiteMemory.
	// Default: $XDG_CONFIG_HOME/mediaforge/media.db
	Path string `mapstructure:"path" yaml:"path"`
}

// PostgresConfig configures a shared PostgreSQL catalogue.
type PostgresConfig struct {
	Host         string `mapstructure:"host" yaml:"host"`
	Port         int    `mapstructure:"port" yaml:"port"`
	Database     string `mapstructure:"database" yaml:"database"`
	User         string `mapstructure:"user" yaml:"user"`
	Password     string `mapstructure:"password" yaml:"password,omitempty"`
	SSLMode      string `mapstructure:"sslmode" yaml:"sslmode"` // disable, require, verify-ca, verify-full
	SSLRootCert  string `mapstructure:"sslrootcert" yaml:"sslrootcert,omitempty"`
	MaxOpenConns int    `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
}

// DSN renders the keyword/value connection string understood by pgx and
// lib/pq. Values containing spaces or quotes are single-quoted.
func (c *PostgresConfig) DSN() string {
	pairs := [][2]string{
		{"host", c.Host},
		{"port", strconv.Itoa(c.Port)},
		{"user", c.User},
		{"password", c.Password},
		{"dbname", c.Database},
		{"sslmode", c.SSLMode},
		{"sslrootcert", c.SSLRootCert},
	}
	parts := make([]string, 0, len(pairs))
	for i, kv := range pairs {
		// The first five are always present so the string stays stable.
		if i >= 5 && kv[1] == "" {
			continue
		}
		parts = append(parts, kv[0]+"="+dsnQuote(kv[1]))
	}
	return strings.Join(parts, " ")
}

func dsnQuote(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// Config selects and configures the SQL backend.
type Config struct {
	Type     DatabaseType   `mapstructure:"type" yaml:"type"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite" yaml:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
}

// ApplyDefaults fills zero values for the selected backend.
func (c *Config) ApplyDefaults() {
	if c.Type == "" {
		c.Type = DatabaseTypeSQLite
	}

	switch c.Type {
	case DatabaseTypeSQLite:
		if c.SQLite.Path == "" {
			c.SQLite.Path = defaultSQLitePath()
		}
	case DatabaseTypePostgres:
		p := &c.Postgres
		if p.Port == 0 {
			p.Port = defaultPostgresPort
		}
		if p.SSLMode == "" {
			p.SSLMode = "disable"
		}
		if p.MaxOpenConns == 0 {
			p.MaxOpenConns = defaultMaxOpenConns
		}
		if p.MaxIdleConns == 0 {
			p.MaxIdleConns = defaultMaxIdleConns
		}
	}
}

func defaultSQLitePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "mediaforge", "media.db")
}

// Validate reports every missing required field of the selected backend.
func (c *Config) Validate() error {
	var errs []error
	required := func(name, value string) {
		if value == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}

	switch c.Type {
	case DatabaseTypeSQLite:
		required("sqlite path", c.SQLite.Path)
	case DatabaseTypePostgres:
		required("postgres host", c.Postgres.Host)
		required("postgres database", c.Postgres.Database)
		required("postgres user", c.Postgres.User)
	default:
		return fmt.Errorf("unsupported database type: %q", c.Type)
	}
	return errors.Join(errs...)
}
