package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx driver with database/sql
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var EmbedMigrations embed.FS

// ProcessState is the per-user dispersal state.
type ProcessState string

const (
	ProcessNone   ProcessState = "none"   // never requested
	ProcessSent   ProcessState = "sent"   // last request succeeded
	ProcessDoing  ProcessState = "doing"  // request in flight
	ProcessFailed ProcessState = "failed" // last request failed
)

// UserRecord is one row of faucet_users.
type UserRecord struct {
	ID         string
	LastHit    *time.Time
	LastAmount *float64
	Process    ProcessState
}

// ClaimStatus is the outcome of an atomic claim attempt.
type ClaimStatus int

const (
	ClaimGranted ClaimStatus = iota
	ClaimDeniedBusy
	ClaimDeniedCooldown
)

type Config struct {
	Logger  *slog.Logger
	ConnStr string

	MaxConns int32
	MinConns int32
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.ConnStr == "" {
		return errors.New("connection string is required")
	}
	if cfg.MaxConns == 0 {
		cfg.MaxConns = 10
	}
	if cfg.MinConns == 0 {
		cfg.MinConns = 2
	}
	return nil
}

// Store is the Postgres-backed persistent store for user records and the
// dispersal counter.
type Store struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

// Connect creates the connection pool and optionally runs migrations.
func Connect(ctx context.Context, cfg Config, runMigrations bool) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(pingCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	if runMigrations {
		if err := RunMigrations(cfg.ConnStr); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	cfg.Logger.Info("connected to postgres")
	return NewWithPool(cfg.Logger, pool), nil
}

// NewWithPool wraps an existing pool; the caller keeps ownership of it.
func NewWithPool(log *slog.Logger, pool *pgxpool.Pool) *Store {
	return &Store{log: log, pool: pool}
}

// RunMigrations runs database migrations using goose.
func RunMigrations(connStr string) error {
	goose.SetBaseFS(EmbedMigrations)

	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
