package storage

import (
	"context"
	_ "embed"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/TheYonk/robomonkey/internal/config"
	"github.com/TheYonk/robomonkey/pkg/errors"
	"github.com/TheYonk/robomonkey/pkg/logger"
	"github.com/TheYonk/robomonkey/pkg/retry"
)

// ControlSchema is the fixed name of the control namespace
const ControlSchema = "robomonkey_control"

// RepoSchemaPrefix prefixes every per-repo namespace
const RepoSchemaPrefix = "robomonkey_"

//go:embed ddl/control.sql
var controlDDL string

// Open establishes the shared connection pool against the control store.
// Connectivity is retried briefly; a store that stays unreachable is fatal
// for the caller.
func Open(ctx context.Context, cfg config.DatabaseConfig, log logger.Logger) (*sqlx.DB, error) {
	if cfg.PoolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.PoolTimeout)*time.Second)
		defer cancel()
	}

	var db *sqlx.DB

	err := retry.DoWithContext(ctx, func(ctx context.Context) error {
		conn, err := sqlx.ConnectContext(ctx, "postgres", cfg.ControlDSN)
		if err != nil {
			log.Warn("store connection failed, retrying", "error", err)
			return errors.Wrap(err, "failed to connect to store").
				WithCode(errors.CodeStoreUnreachable)
		}

		db = conn
		return nil
	},
		retry.WithMaxAttempts(5),
		retry.WithBackoffStrategy(retry.NewExponentialBackoff(
			retry.WithInitialDelay(time.Second),
		)),
	)
	if err != nil {
		return nil, errors.Wrap(err, "store unreachable").
			WithCode(errors.CodeStoreUnreachable).
			WithHint("check database.control_dsn and that PostgreSQL is running")
	}

	db.SetMaxOpenConns(cfg.PoolSize)
	db.SetMaxIdleConns(min(cfg.PoolSize, 5))
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// Ping verifies store connectivity
func Ping(ctx context.Context, db *sqlx.DB) error {
	if err := db.PingContext(ctx); err != nil {
		return errors.Wrap(err, "store ping failed").
			WithCode(errors.CodeStoreUnreachable)
	}

	return nil
}

// EnsureControlSchema installs the control namespace DDL. All statements are
// idempotent, so this runs unconditionally at startup.
func EnsureControlSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, controlDDL); err != nil {
		return errors.Wrap(err, "failed to install control schema DDL").
			WithCode(errors.CodeDatabase)
	}

	return nil
}
