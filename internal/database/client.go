// Package database provides the relational storage client for geostore:
// connection pooling, dialect handling for PostgreSQL, MySQL and SQLite,
// schema creation, transactions and driver error classification.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect identifies the SQL flavour spoken by the backing store
type Dialect string

// Supported dialects; each value is also the database/sql driver name
const (
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
	SQLite   Dialect = "sqlite"
)

// ParseDialect maps a driver name to a Dialect
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pq":
		return Postgres, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", name)
}

// Querier is satisfied by *sql.DB and *sql.Tx
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Client wraps a database connection pool
type Client struct {
	db      *sql.DB
	dialect Dialect
}

// NewClient opens a connection pool for the given dialect and verifies it
func NewClient(dialect Dialect, dsn string) (*Client, error) {
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	configurePool(db, dialect)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (also failed to close: %w)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if dialect == SQLite {
		// Enforce declared foreign keys and wait on locks instead of failing
		for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("failed to configure sqlite: %w", err)
			}
		}
	}

	return &Client{db: db, dialect: dialect}, nil
}

// configurePool tunes the pool per dialect
func configurePool(db *sql.DB, dialect Dialect) {
	if dialect == SQLite {
		// A single long-lived connection serializes writers and keeps
		// in-memory databases alive for the lifetime of the pool
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
		return
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.db.Close()
}

// DB returns the underlying pool
func (c *Client) DB() *sql.DB {
	return c.db
}

// Dialect returns the SQL flavour of the backing store
func (c *Client) Dialect() Dialect {
	return c.dialect
}

// HealthCheck verifies database connectivity
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Rebind rewrites '?' placeholders into the dialect's bind syntax.
// Queries must not contain literal question marks.
func (c *Client) Rebind(query string) string {
	if c.dialect != Postgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back on error or panic. Errors are classified.
func (c *Client) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return Classify(fmt.Errorf("begin transaction: %w", err))
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback() // nolint:errcheck // original error takes precedence
		}
	}()

	if err = fn(tx); err != nil {
		return Classify(err)
	}

	if err = tx.Commit(); err != nil {
		return Classify(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// InsertID executes an INSERT and returns the generated id of idColumn.
// PostgreSQL uses RETURNING; MySQL and SQLite use LastInsertId.
func (c *Client) InsertID(ctx context.Context, q Querier, query, idColumn string, args ...any) (int64, error) {
	if c.dialect == Postgres {
		var id int64
		err := q.QueryRowContext(ctx, c.Rebind(query+" RETURNING "+idColumn), args...).Scan(&id)
		if err != nil {
			return 0, err
		}
		return id, nil
	}

	res, err := q.ExecContext(ctx, c.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
