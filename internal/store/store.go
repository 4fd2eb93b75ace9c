// Package store is the application-level persistence layer: reminder records,
// timezone preferences, polls and custom commands, all in a single SQLite
// database. The job scheduler keeps its own task table (internal/jobs) and is
// deliberately not reachable through this package.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/asmahdi08/Theseus-Bot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

var (
	ErrDuplicateJobID = errors.New("reminder with this job id already exists")
	ErrNotFound       = errors.New("record not found")
	ErrCommandExists  = errors.New("custom command already exists")
)

type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// Store wraps the SQLite database and exposes the collection-style operations
// the bot uses.
type Store struct {
	db  *sql.DB
	log logx.Logger
}

// Open opens (or creates) the database at cfg.Path, applies pragmas and runs
// migrations.
func Open(ctx context.Context, cfg Config, log logx.Logger) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("database path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite is a single-writer engine; keep the pool tiny.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db, log: log}
	if err := s.applyPragmas(ctx, cfg); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return s, nil
}

func (s *Store) applyPragmas(ctx context.Context, cfg Config) error {
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		fmt.Sprintf("PRAGMA busy_timeout=%d;", busy.Milliseconds()),
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := s.db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

// DB exposes the underlying handle so the job scheduler can keep its own table
// in the same database file. The scheduler's schema stays private to
// internal/jobs.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
