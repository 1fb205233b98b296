package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// Scope is the statement surface handed to WithConnection callbacks.
type Scope interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Conn is one unpooled connection with an open transaction.
type Conn interface {
	Scope
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Close(ctx context.Context) error
}

// Opener acquires a fresh Conn. It is called once per attempt.
type Opener func(ctx context.Context) (Conn, error)

type Config struct {
	DSN            string
	MaxRetries     int
	RetryDelay     time.Duration
	ConnectTimeout time.Duration
}

type DB struct {
	open  Opener
	retry RetryPolicy
}

func NewDB(cfg Config) *DB {
	return NewDBWithOpener(pgxOpener(cfg.DSN, cfg.ConnectTimeout), RetryPolicy{
		MaxRetries: cfg.MaxRetries,
		Delay:      cfg.RetryDelay,
	})
}

// NewDBWithOpener wires a custom opener and retry policy, used by tests to
// inject faults.
func NewDBWithOpener(open Opener, retry RetryPolicy) *DB {
	return &DB{open: open, retry: retry}
}

func pgxOpener(dsn string, connectTimeout time.Duration) Opener {
	return func(ctx context.Context) (Conn, error) {
		cfg, err := pgx.ParseConfig(dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to parse database config: %w", err)
		}
		if connectTimeout > 0 {
			cfg.ConnectTimeout = connectTimeout
		}

		conn, err := pgx.ConnectConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect: %w", err)
		}

		tx, err := conn.Begin(ctx)
		if err != nil {
			conn.Close(ctx)
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}
		return &pgxConn{conn: conn, tx: tx}, nil
	}
}

type pgxConn struct {
	conn *pgx.Conn
	tx   pgx.Tx
}

func (c *pgxConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return c.tx.Exec(ctx, sql, args...)
}

func (c *pgxConn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return c.tx.Query(ctx, sql, args...)
}

func (c *pgxConn) Commit(ctx context.Context) error   { return c.tx.Commit(ctx) }
func (c *pgxConn) Rollback(ctx context.Context) error { return c.tx.Rollback(ctx) }
func (c *pgxConn) Close(ctx context.Context) error    { return c.conn.Close(ctx) }

// WithConnection acquires a connection (retrying per the DB's policy), runs
// fn inside its transaction and commits when fn returns nil. Errors and
// panics roll back. The connection is always closed.
func (db *DB) WithConnection(ctx context.Context, fn func(s Scope) error) (err error) {
	var conn Conn
	err = db.retry.Do(ctx, func(ctx context.Context) error {
		c, err := db.open(ctx)
		if err != nil {
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return err
	}

	cleanup := context.WithoutCancel(ctx)
	defer conn.Close(cleanup)

	defer func() {
		if p := recover(); p != nil {
			conn.Rollback(cleanup)
			panic(p)
		}
	}()

	if err = fn(conn); err != nil {
		if rbErr := conn.Rollback(cleanup); rbErr != nil {
			logf("rollback failed: %v", rbErr)
		}
		return err
	}

	if err = conn.Commit(ctx); err != nil {
		return &QueryError{Query: "COMMIT", Err: err}
	}
	return nil
}

// Execute runs a statement that returns no rows.
func (db *DB) Execute(ctx context.Context, query string, args ...any) error {
	return db.WithConnection(ctx, func(s Scope) error {
		if _, err := s.Exec(ctx, query, args...); err != nil {
			return &QueryError{Query: query, Err: err}
		}
		return nil
	})
}

// FetchAll returns every row as a column-name keyed map. An empty result is
// an empty, non-nil slice.
func (db *DB) FetchAll(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	var out []map[string]any
	err := db.WithConnection(ctx, func(s Scope) error {
		rows, err := s.Query(ctx, query, args...)
		if err != nil {
			return &QueryError{Query: query, Err: err}
		}
		out, err = pgx.CollectRows(rows, pgx.RowToMap)
		if err != nil {
			return &QueryError{Query: query, Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if out == nil {
		out = []map[string]any{}
	}
	for _, row := range out {
		normalizeRow(row)
	}
	return out, nil
}

// FetchOne returns the first row, or nil when the query matched nothing.
func (db *DB) FetchOne(ctx context.Context, query string, args ...any) (map[string]any, error) {
	var out map[string]any
	err := db.WithConnection(ctx, func(s Scope) error {
		rows, err := s.Query(ctx, query, args...)
		if err != nil {
			return &QueryError{Query: query, Err: err}
		}
		row, err := pgx.CollectOneRow(rows, pgx.RowToMap)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return &QueryError{Query: query, Err: err}
		}
		out = row
		return nil
	})
	if err != nil {
		return nil, err
	}

	normalizeRow(out)
	return out, nil
}

// TestConnection runs a trivial round trip with a single attempt. Any error
// reports false.
func (db *DB) TestConnection(ctx context.Context) bool {
	probe := &DB{open: db.open, retry: RetryPolicy{MaxRetries: 1, Sleep: db.retry.Sleep}}
	err := probe.WithConnection(ctx, func(s Scope) error {
		_, err := s.Exec(ctx, "SELECT 1")
		return err
	})
	if err != nil {
		logf("connection test failed: %v", err)
		return false
	}
	return true
}

// normalizeRow converts driver-specific numeric types into float64 so the
// dashboard can treat every aggregate the same way.
func normalizeRow(row map[string]any) {
	for k, v := range row {
		row[k] = normalizeValue(v)
	}
}

func normalizeValue(v any) any {
	switch n := v.(type) {
	case pgtype.Numeric:
		if !n.Valid {
			return nil
		}
		f, err := n.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case float32:
		return float64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case int:
		return int64(n)
	default:
		return v
	}
}

// RunMigrations applies numbered .sql files from migrationsDir that are not
// yet recorded in schema_migrations. Each file runs in its own scope.
func RunMigrations(ctx context.Context, db *DB, migrationsDir string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Create migrations tracking table
	err := db.Execute(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}

		// "001_rental_schema.sql" → 1
		name := entry.Name()
		if len(name) < 4 {
			continue
		}
		version := 0
		fmt.Sscanf(name[:3], "%d", &version)
		if version == 0 {
			continue
		}

		row, err := db.FetchOne(ctx, "SELECT version FROM schema_migrations WHERE version = $1", version)
		if err != nil {
			return fmt.Errorf("failed to check migration %d: %w", version, err)
		}
		if row != nil {
			continue
		}

		content, err := os.ReadFile(filepath.Join(migrationsDir, name))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		err = db.WithConnection(ctx, func(s Scope) error {
			if _, err := s.Exec(ctx, string(content)); err != nil {
				return &QueryError{Query: name, Err: err}
			}
			if _, err := s.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
				return &QueryError{Query: "record migration", Err: err}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", version, err)
		}

		logf("applied migration %03d: %s", version, name)
	}

	return nil
}

func logf(format string, args ...any) {
	log.Printf("[db] "+format, args...)
}
