// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"booking-workers/internal/common/config"

	"github.com/lib/pq"
)

// SQLSTATE codes the data layer reacts to.
const (
	sqlStateUndefinedTable        = "42P01"
	sqlStateInsufficientPrivilege = "42501"
)

// PostgresClient wraps the SQL database connection
type PostgresClient struct {
	DB  *sql.DB
	dsn string
}

// NewPostgres creates a new PostgreSQL client
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	dsn := cfg.GetDSN()

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db, dsn: dsn}, nil
}

// Ping tests the database connection
func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

// Close closes the database connection
func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// GetDB returns the underlying *sql.DB
func (c *PostgresClient) GetDB() *sql.DB {
	return c.DB
}

// NewListener opens a dedicated LISTEN/NOTIFY connection on the same DSN.
// eventCallback receives connection state changes (pq.ListenerEventConnected etc.).
func (c *PostgresClient) NewListener(minReconnect, maxReconnect time.Duration, eventCallback pq.EventCallbackType) *pq.Listener {
	return pq.NewListener(c.dsn, minReconnect, maxReconnect, eventCallback)
}

// IsUndefinedTable reports whether err is Postgres 42P01, a table that has not been migrated yet.
func IsUndefinedTable(err error) bool {
	return hasSQLState(err, sqlStateUndefinedTable)
}

// IsPermissionDenied reports whether err is Postgres 42501 (row-level or grant failure).
func IsPermissionDenied(err error) bool {
	return hasSQLState(err, sqlStateInsufficientPrivilege)
}

func hasSQLState(err error, code string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == code
	}
	return false
}
