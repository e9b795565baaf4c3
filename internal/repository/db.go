package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/spec-matcher/internal/common"
)

type Config struct {
	Path            string // file path, or ":memory:"
	BusyTimeout     time.Duration
	MaxOpenConns    int
	ConnMaxIdleTime time.Duration
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	filename        TEXT NOT NULL,
	model           TEXT NOT NULL,
	source          TEXT NOT NULL,
	content_hash    TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL,
	page_count      INTEGER NOT NULL DEFAULT 0,
	retained_pages  INTEGER NOT NULL DEFAULT 0,
	fallback        INTEGER NOT NULL DEFAULT 0,
	batches         INTEGER NOT NULL DEFAULT 0,
	skipped_batches INTEGER NOT NULL DEFAULT 0,
	failed_batches  INTEGER NOT NULL DEFAULT 0,
	item_count      INTEGER NOT NULL DEFAULT 0,
	excel_file      TEXT,
	error_message   TEXT,
	started_at      TIMESTAMP NOT NULL,
	finished_at     TIMESTAMP
);
CREATE INDEX IF NOT EXISTS runs_started_at_idx ON runs (started_at DESC);
`

// Open opens (creating if needed) the SQLite run store and applies the schema.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*sql.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	logger.Info("opening run store", "path", cfg.Path)

	dsn := cfg.Path
	if cfg.Path != ":memory:" {
		if dir := filepath.Dir(cfg.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, common.WrapError(fmt.Errorf("%w: %v", common.ErrDatabase, err), "create db dir")
			}
		}
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
			cfg.Path, cfg.BusyTimeout.Milliseconds())
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		logger.Error("failed to open run store", "error", err)
		return nil, common.WrapError(err, "open run store")
	}
	if cfg.Path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		logger.Error("failed to apply run store schema", "error", err)
		return nil, common.WrapError(fmt.Errorf("%w: %v", common.ErrDatabase, err), "apply schema")
	}
	logger.Info("run store ready")
	return db, nil
}

// Close closes the database connections gracefully
func Close(db *sql.DB, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("closing run store")
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		logger.Error("failed to close run store", "error", err)
	}
}

// HealthCheck pings the store, bounded by timeout when it is positive.
func HealthCheck(ctx context.Context, db *sql.DB, timeout time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		logger.Error("run store ping failed", "error", err)
		return err
	}
	logger.Debug("run store ping successful")
	return nil
}
