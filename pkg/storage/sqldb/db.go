package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Dialect selects the SQL flavour a DB speaks
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite3"
)

// ParseDialect maps a driver name from configuration to a Dialect
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "postgresql", "pq":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Querier is the subset of *sql.DB and *sql.Tx used by stores, so that a
// store method can run either standalone or inside a caller's transaction
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Config holds database connection configuration
type Config struct {
	Driver         string
	URL            string
	MaxConns       int
	MinConns       int
	ConnectTimeout time.Duration
	MaxLifetime    time.Duration
	MaxIdleTime    time.Duration
	// LockTimeout bounds how long a transaction waits for a row or advisory
	// lock before failing with a Busy error. Postgres only.
	LockTimeout time.Duration
}

// DB wraps the shared store with its dialect and transaction policy
type DB struct {
	db          *sql.DB
	dialect     Dialect
	lockTimeout time.Duration
}

// Open connects to the configured database and verifies the connection
func Open(ctx context.Context, config Config) (*DB, error) {
	dialect, err := ParseDialect(config.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(string(dialect), config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", dialect, err)
	}

	if config.MaxConns > 0 {
		db.SetMaxOpenConns(config.MaxConns)
	}
	if config.MinConns > 0 {
		db.SetMaxIdleConns(config.MinConns)
	}
	db.SetConnMaxLifetime(config.MaxLifetime)
	db.SetConnMaxIdleTime(config.MaxIdleTime)

	timeout := config.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", dialect, err)
	}

	return New(db, dialect, config.LockTimeout), nil
}

// New wraps an already open *sql.DB
func New(db *sql.DB, dialect Dialect, lockTimeout time.Duration) *DB {
	return &DB{db: db, dialect: dialect, lockTimeout: lockTimeout}
}

// SQL returns the underlying pool
func (d *DB) SQL() *sql.DB {
	return d.db
}

// Dialect returns the SQL flavour of the store
func (d *DB) Dialect() Dialect {
	return d.dialect
}

// HealthCheck pings the store
func (d *DB) HealthCheck(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database unhealthy: %w", err)
	}
	return nil
}

// Stats returns connection pool statistics
func (d *DB) Stats() sql.DBStats {
	return d.db.Stats()
}

// Close closes the pool
func (d *DB) Close() error {
	return d.db.Close()
}

// ForUpdate returns the row lock clause for the dialect. SQLite serializes
// writers at BEGIN IMMEDIATE so the clause renders empty there.
func (d *DB) ForUpdate() string {
	if d.dialect == DialectPostgres {
		return " FOR UPDATE"
	}
	return ""
}
