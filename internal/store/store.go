package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"text/template"
	"time"
)

//go:embed schema/postgres.sql
var postgresSchema string

//go:embed schema/sqlite.sql
var sqliteSchema string

// Default connector timeouts.
const (
	DefaultConnectTimeout = 15 * time.Second
	DefaultProbeTimeout   = 10 * time.Second
)

// ConnectOptions bounds the two stages of Connect. ProbeTimeout also bounds
// the gate count and schema creation on the resulting Conn.
type ConnectOptions struct {
	ConnectTimeout time.Duration
	ProbeTimeout   time.Duration
}

func (o ConnectOptions) withDefaults() ConnectOptions {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = DefaultProbeTimeout
	}
	return o
}

// Conn is a connection to the destination store scoped to one artifact.
//
// The underlying pool is capped at a single connection, so nothing is
// multiplexed. If that connection breaks mid-upload, database/sql replaces
// it on the next attempt; it never outlives Close.
type Conn struct {
	db           *sql.DB
	dialect      Dialect
	queryTimeout time.Duration
}

// Connect opens a fresh connection and proves it is live.
//
// The connection itself must be established within ConnectTimeout, and a
// trivial SELECT 1 must succeed within ProbeTimeout. Failures come back as
// a *ConnectError so the caller can fail the current artifact and move on.
func Connect(ctx context.Context, addr string, opts ConnectOptions) (*Conn, error) {
	opts = opts.withDefaults()

	dialect, dsn, err := ParseAddress(addr)
	if err != nil {
		return nil, &ConnectError{Kind: KindInvalidAddress, Err: err}
	}

	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, &ConnectError{Kind: KindInvalidAddress, Err: err}
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	connectCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(connectCtx); err != nil {
		db.Close()
		return nil, &ConnectError{Kind: classifyConnect(connectCtx, err), Err: err}
	}

	c := &Conn{db: db, dialect: dialect, queryTimeout: opts.ProbeTimeout}
	if dialect.Name == SQLite.Name {
		if err := c.applyPragmas(connectCtx); err != nil {
			db.Close()
			return nil, &ConnectError{Kind: KindConnectRefused, Err: err}
		}
	}

	if err := c.Probe(ctx, opts.ProbeTimeout); err != nil {
		db.Close()
		return nil, &ConnectError{Kind: KindProbeFailed, Err: err}
	}
	return c, nil
}

// Probe runs a liveness query under its own deadline.
func (c *Conn) Probe(ctx context.Context, timeout time.Duration) error {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var one int
	if err := c.db.QueryRowContext(probeCtx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("liveness probe: %w", err)
	}
	if one != 1 {
		return fmt.Errorf("liveness probe: unexpected result %d", one)
	}
	return nil
}

// bounded limits a single metadata query to the probe timeout.
func (c *Conn) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.queryTimeout)
}

// Close releases the connection. Safe to call more than once.
func (c *Conn) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

// Dialect returns the dialect chosen from the store address.
func (c *Conn) Dialect() Dialect {
	return c.dialect
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Conn methods when available.
func (c *Conn) DB() *sql.DB {
	return c.db
}

// EnsureSchema creates the destination table if it does not exist.
// The (index, recipient) primary key is what makes ON CONFLICT DO NOTHING
// meaningful; without it re-runs would duplicate rows.
func (c *Conn) EnsureSchema(ctx context.Context, table string) error {
	ddl, err := renderSchema(c.dialect, table)
	if err != nil {
		return err
	}
	ctx, cancel := c.bounded(ctx)
	defer cancel()
	if _, err := c.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

func renderSchema(d Dialect, table string) (string, error) {
	quoted, err := QuoteTable(table)
	if err != nil {
		return "", err
	}
	tmpl, err := template.New(d.Name).Parse(d.schema)
	if err != nil {
		return "", fmt.Errorf("parse %s schema: %w", d.Name, err)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, struct{ Table string }{quoted}); err != nil {
		return "", fmt.Errorf("render %s schema: %w", d.Name, err)
	}
	return b.String(), nil
}

// applyPragmas sets SQLite configuration for a writer that may contend
// with readers of the same file.
func (c *Conn) applyPragmas(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := c.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}
