package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	// sqlite driver
	_ "modernc.org/sqlite"
)

type Config struct {
	// Path is a file path or ":memory:".
	Path        string
	BusyTimeout time.Duration
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS expenses (
		id TEXT PRIMARY KEY,
		category TEXT NOT NULL,
		amount TEXT NOT NULL,
		date INTEGER NOT NULL,
		icon_name TEXT NOT NULL DEFAULT '',
		user_id TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		sync_status INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS expenses_date_idx ON expenses (date DESC)`,
	`CREATE INDEX IF NOT EXISTS expenses_sync_status_idx ON expenses (sync_status)`,
}

// Open opens the on-device cache and migrates its schema.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*sql.DB, error) {
	logger.Info("opening local store", "path", cfg.Path)
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		logger.Error("failed to open local store", "error", err)
		return nil, err
	}

	// One connection: serializes writers and keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		logger.Error("failed to ping local store", "error", err)
		_ = db.Close()
		return nil, err
	}

	if cfg.BusyTimeout > 0 {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds())); err != nil {
			logger.Warn("failed to set busy timeout", "error", err)
		}
	}

	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			logger.Error("local store migration failed", "error", err)
			_ = db.Close()
			return nil, err
		}
	}

	logger.Info("local store ready")
	return db, nil
}

// Close closes the local store gracefully
func Close(db *sql.DB, logger *slog.Logger) {
	if db == nil {
		return
	}
	logger.Info("closing local store")
	if err := db.Close(); err != nil {
		logger.Error("failed to close local store", "error", err)
	}
}
