package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/ridopark/chanlun-engine/internal/config"
	"github.com/ridopark/chanlun-engine/internal/logger"
)

// DB pools a connection to the optional confirmed-record sink. Nothing in
// the analytical core opens one directly; cmd/server wires it only when
// config.DatabaseConfig.Enabled is set. BSPRepository writes through the
// pool, cmd/cli's migrate command runs migrations through it, and
// HealthHandler reads its Status.
type DB struct {
	conn   *sql.DB
	logger zerolog.Logger
}

// NewConnection opens and verifies a pooled connection to the confirmed-
// record store.
func NewConnection(cfg config.DatabaseConfig) (*DB, error) {
	log := logger.NewContextLogger("database")

	conn, err := sql.Open("postgres", buildConnectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	conn.SetMaxOpenConns(cfg.MaxConnections)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Name).
		Int("max_connections", cfg.MaxConnections).
		Msg("bsp sink connection established")

	return &DB{conn: conn, logger: log}, nil
}

// Close releases the pool.
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Ping checks reachability without touching pool statistics.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// ExecContext runs a statement (or, for the simple query protocol lib/pq
// uses when called with no args, a semicolon-separated batch of them —
// exactly the shape of the migrations/*.sql files) against the pool.
// cmd/cli's migrate command is the only caller outside this package.
func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return db.conn.ExecContext(ctx, query, args...)
}

// QueryContext runs a read query against the pool. Used by cmd/cli's
// migrate command to read the schema_migrations bookkeeping table.
func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return db.conn.QueryContext(ctx, query, args...)
}

// ExecuteInTransaction runs fn inside a transaction, rolling back on error
// or panic and committing otherwise. BSPRepository.InsertBatch is the one
// caller: a batch of confirmed points for one series lands together or not
// at all.
func (db *DB) ExecuteInTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				db.logger.Error().Err(rbErr).Msg("failed to roll back bsp transaction")
			}
		} else if commitErr := tx.Commit(); commitErr != nil {
			db.logger.Error().Err(commitErr).Msg("failed to commit bsp transaction")
			err = commitErr
		}
	}()

	err = fn(tx)
	return err
}

// Status reports pool occupancy for the Health check operation's
// Components map; HealthHandler calls this only when a sink is configured.
func (db *DB) Status(ctx context.Context) map[string]interface{} {
	if err := db.Ping(ctx); err != nil {
		return map[string]interface{}{
			"status":               "unhealthy",
			"error":                err.Error(),
			"connection_transient": IsConnectionError(err),
		}
	}

	stats := db.conn.Stats()
	return map[string]interface{}{
		"status":           "healthy",
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
		"wait_count":       stats.WaitCount,
		"wait_duration":    stats.WaitDuration.String(),
	}
}

// buildConnectionString assembles the libpq key=value DSN from the bound
// config fields.
func buildConnectionString(cfg config.DatabaseConfig) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode,
	)
}

// IsConnectionError reports whether err is a transient libpq connection
// failure (as opposed to a constraint violation or bad query) worth a
// retry at the caller. BSPRepository logs this distinction on every insert
// failure so an operator can tell "the sink is down" from "the record was
// malformed" without reading the wrapped driver error.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "08000", "08003", "08006", "08001", "08004":
			return true
		}
	}

	return err == context.DeadlineExceeded || err == context.Canceled
}
