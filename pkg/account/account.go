// Package account backs the form login and registration pages. Users are
// a name and a bcrypt hash; the web front end only learns whether a
// credential check passed.
package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/marmos91/mediaforge/internal/logger"
)

// DefaultBcryptCost is used when Config.BcryptCost is zero.
const DefaultBcryptCost = 10

// bcrypt ignores input past 72 bytes, so longer passwords are refused.
const (
	MaxUsernameLength = 64
	MaxPasswordLength = 72
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateUser      = errors.New("user already exists")
	ErrEmptyCredentials   = errors.New("username and password are required")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrCredentialTooLong  = errors.New("username or password too long")
)

// User is one registered account.
type User struct {
	Username     string    `json:"username" gorm:"primaryKey;size:64"`
	PasswordHash string    `json:"-" gorm:"size:60;not null"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName pins the table name for GORM.
func (User) TableName() string { return "users" }

// Store persists users. Every media store backend implements it next to
// media.Store.
type Store interface {
	// CreateUser inserts u. ErrDuplicateUser if the name is taken.
	CreateUser(ctx context.Context, u *User) error

	// GetUser returns one user or ErrUserNotFound.
	GetUser(ctx context.Context, username string) (*User, error)
}

// Config tunes password hashing.
type Config struct {
	// BcryptCost is the bcrypt work factor, 4 to 31.
	BcryptCost int `mapstructure:"bcrypt_cost" validate:"omitempty,min=4,max=31" yaml:"bcrypt_cost"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.BcryptCost == 0 {
		c.BcryptCost = DefaultBcryptCost
	}
}

// Service checks and registers credentials against a Store.
type Service struct {
	store Store
	cost  int
}

// NewService returns a Service over store. Defaults are applied to cfg.
func NewService(store Store, cfg Config) *Service {
	cfg.ApplyDefaults()
	return &Service{store: store, cost: cfg.BcryptCost}
}

func checkCredentials(username, password string) error {
	if username == "" || password == "" {
		return ErrEmptyCredentials
	}
	if len(username) > MaxUsernameLength || len(password) > MaxPasswordLength {
		return ErrCredentialTooLong
	}
	return nil
}

// Register creates username with a bcrypt hash of password.
func (s *Service) Register(ctx context.Context, username, password string) error {
	if err := checkCredentials(username, password); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.CreateUser(ctx, &User{Username: username, PasswordHash: string(hash)}); err != nil {
		return err
	}
	logger.InfoCtx(ctx, "User registered", logger.KeyUser, username)
	return nil
}

// Login reports ErrInvalidCredentials for an unknown user or a wrong
// password; callers cannot tell the two apart.
func (s *Service) Login(ctx context.Context, username, password string) error {
	if err := checkCredentials(username, password); err != nil {
		return err
	}

	u, err := s.store.GetUser(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("compare password: %w", err)
	}
	return nil
}
