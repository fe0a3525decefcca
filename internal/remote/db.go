package remote

import (
	"context"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Config struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// Open creates the pgx pool used by the remote client. The pool connects
// lazily, so an offline start succeeds.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	logger.Info("configuring remote store pool")
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse remote store dsn", "error", err)
		return nil, err
	}

	pc.MaxConns = cfg.MaxConns
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	if cfg.DialTimeout > 0 {
		pc.ConnConfig.ConnectTimeout = cfg.DialTimeout
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "expense-sync"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = cfg.StatementTimeout.String()
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		logger.Error("failed to create remote store pool", "error", err)
		return nil, err
	}

	logger.Info("remote store pool ready", "host", pc.ConnConfig.Host, "port", pc.ConnConfig.Port)
	return pool, nil
}

// ProbeAddr derives the host:port a reachability probe should dial from a
// connection string.
func ProbeAddr(dsn string) (string, error) {
	cc, err := pgconn.ParseConfig(dsn)
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(cc.Host, strconv.Itoa(int(cc.Port))), nil
}

// Close closes the pool gracefully
func Close(pool *pgxpool.Pool, logger *slog.Logger) {
	if pool == nil {
		return
	}
	logger.Info("closing remote store pool")
	pool.Close()
	logger.Info("remote store pool closed")
}

// HealthCheck pings the remote store.
func HealthCheck(ctx context.Context, pool *pgxpool.Pool, timeout time.Duration, logger *slog.Logger) error {
	logger.Debug("pinging remote store")
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Error("remote store ping failed", "error", err)
		return classify("ping", err)
	}
	logger.Debug("remote store ping successful")
	return nil
}

var ddl = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		id text PRIMARY KEY,
		email text NOT NULL UNIQUE,
		first_name text NOT NULL DEFAULT '',
		last_name text NOT NULL DEFAULT '',
		phone_number text,
		date_of_birth timestamptz,
		profile_image_url text,
		currency char(3) NOT NULL,
		timezone text NOT NULL DEFAULT 'UTC',
		created_at timestamptz NOT NULL DEFAULT now(),
		updated_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS expenses (
		id uuid PRIMARY KEY,
		category text NOT NULL,
		amount numeric(12,2) NOT NULL,
		date timestamptz NOT NULL,
		icon_name text NOT NULL DEFAULT '',
		user_id text NOT NULL,
		created_at timestamptz NOT NULL DEFAULT now(),
		updated_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS expenses_user_created_idx ON expenses (user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS expenses_user_date_idx ON expenses (user_id, date DESC)`,
}

// Migrate creates the remote tables when they are missing.
func Migrate(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	for _, stmt := range ddl {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			logger.Error("remote migration failed", "error", err)
			return classify("migrate", err)
		}
	}
	logger.Info("remote schema up to date")
	return nil
}
