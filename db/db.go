// Package db is the SQL-first persistence toolkit behind the product catalog.
// It is NOT an ORM: all SQL is explicit, built per dialect, and executed
// through a thin wrapper around database/sql that adds hooks, unified error
// mapping and per-operation connection handling.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Config
// ─────────────────────────────────────────────────────────────────────────────

// Config holds all options for opening and managing the connection pool.
type Config struct {
	// DSN is the driver-specific data-source name.
	DSN string

	// DriverName is "postgres", "mysql" or "sqlite3". It must match a
	// registered Driver so the matching Dialect can be resolved.
	DriverName string

	// Pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// Default query timeout applied when no deadline is set on the context.
	// Zero means no default timeout.
	DefaultTimeout time.Duration

	// PingTimeout bounds the connectivity check done by Open. Defaults to 5s.
	PingTimeout time.Duration

	// LazyConnect skips the connectivity check in Open. Connections are then
	// established on first use and an unreachable server surfaces as
	// ErrConnectionFailed from Acquire or the statement helpers.
	LazyConnect bool

	// Hooks executed around every statement (logging, metrics, tracing).
	// nil entries are silently skipped.
	Hooks []Hook
}

// ─────────────────────────────────────────────────────────────────────────────
// DB: the central type
// ─────────────────────────────────────────────────────────────────────────────

// DB is a concurrency-safe wrapper around *sql.DB bound to exactly one
// Dialect. The dialect is chosen once, when the DB is opened, and every
// repository built on top of it reads it from here instead of re-checking the
// environment.
type DB struct {
	sqldb   *sql.DB
	cfg     Config
	hooks   hookChain
	errMap  ErrorMapper
	dialect Dialect
}

// Open opens the database described by cfg and, unless cfg.LazyConnect is
// set, verifies connectivity with Ping. A failed ping is reported as
// ErrConnectionFailed and is not retried.
func Open(cfg Config) (*DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("catalog/db: DSN must not be empty")
	}
	if cfg.DriverName == "" {
		return nil, fmt.Errorf("catalog/db: DriverName must not be empty")
	}

	drv, err := LookupDriver(cfg.DriverName)
	if err != nil {
		return nil, err
	}

	sqldb, err := sql.Open(cfg.DriverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("catalog/db: open: %w", err)
	}

	// Pool tuning
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqldb.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	d := &DB{
		sqldb:   sqldb,
		cfg:     cfg,
		hooks:   newHookChain(cfg.Hooks),
		errMap:  ChainMapper(drv.ErrorMapper(), DefaultErrorMapper()),
		dialect: drv.Dialect(),
	}

	if cfg.LazyConnect {
		return d, nil
	}

	pingTimeout := cfg.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := sqldb.PingContext(ctx); err != nil {
		_ = sqldb.Close()
		return nil, connectionError(fmt.Sprintf("ping %s", drv.Name()), err)
	}

	return d, nil
}

// Raw returns the underlying *sql.DB for advanced use cases.
// Prefer the wrapper methods where possible.
func (d *DB) Raw() *sql.DB { return d.sqldb }

// Dialect returns the SQL dialect strategy the database was opened with.
func (d *DB) Dialect() Dialect { return d.dialect }

// Close closes all pooled connections and frees resources.
func (d *DB) Close() error { return d.sqldb.Close() }

// Ping verifies that the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	ctx, cancel := withDefaultTimeout(ctx, d.cfg.DefaultTimeout)
	defer cancel()
	if err := d.sqldb.PingContext(ctx); err != nil {
		return connectionError("ping", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Acquire: one connection per operation
// ─────────────────────────────────────────────────────────────────────────────

// Acquire checks a single connection out of the pool. The caller owns it
// until Close is called and MUST close it on every exit path:
//
//	conn, err := database.Acquire(ctx)
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
func (d *DB) Acquire(ctx context.Context) (*Conn, error) {
	raw, err := d.sqldb.Conn(ctx)
	if err != nil {
		return nil, connectionError("acquire", err)
	}
	return &Conn{raw: raw, hooks: d.hooks, errMap: d.errMap, cfg: d.cfg}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Query execution helpers
// ─────────────────────────────────────────────────────────────────────────────

// Exec executes a statement that returns no rows (INSERT, UPDATE, DELETE, DDL).
func (d *DB) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, cancel := withDefaultTimeout(ctx, d.cfg.DefaultTimeout)
	defer cancel()
	start := time.Now()
	ctx = d.hooks.Before(ctx, query, args)
	res, err := d.sqldb.ExecContext(ctx, query, args...)
	err = d.mapErr(err)
	d.hooks.After(ctx, query, args, time.Since(start), err)
	return res, err
}

// Query executes a query that returns rows.
// The caller MUST close the returned *Rows; closing also releases the
// statement's default timeout.
func (d *DB) Query(ctx context.Context, query string, args ...any) (*Rows, error) {
	ctx, cancel := withDefaultTimeout(ctx, d.cfg.DefaultTimeout)
	start := time.Now()
	ctx = d.hooks.Before(ctx, query, args)
	rows, err := d.sqldb.QueryContext(ctx, query, args...)
	err = d.mapErr(err)
	d.hooks.After(ctx, query, args, time.Since(start), err)
	if err != nil {
		cancel()
		return nil, err
	}
	return &Rows{Rows: rows, cancel: cancel}, nil
}

// QueryRow executes a query expected to return at most one row.
// ErrNotFound is returned from Scan when no row matches. Hooks see the
// statement finish when Scan is called, so the returned Row must be scanned.
func (d *DB) QueryRow(ctx context.Context, query string, args ...any) *Row {
	ctx, cancel := withDefaultTimeout(ctx, d.cfg.DefaultTimeout)
	start := time.Now()
	ctx = d.hooks.Before(ctx, query, args)
	return &Row{
		raw:    d.sqldb.QueryRowContext(ctx, query, args...),
		errMap: d.errMap,
		hooks:  d.hooks,
		ctx:    ctx,
		query:  query,
		args:   args,
		start:  start,
		cancel: cancel,
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ─────────────────────────────────────────────────────────────────────────────

// withDefaultTimeout applies timeout when ctx carries no deadline. The
// returned cancel func is never nil.
func withDefaultTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout == 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {} // caller already set a deadline
	}
	return context.WithTimeout(ctx, timeout)
}

func (d *DB) mapErr(err error) error {
	if err == nil {
		return nil
	}
	return d.errMap.Map(err)
}

// ─────────────────────────────────────────────────────────────────────────────
// Row and Rows: result wrappers
// ─────────────────────────────────────────────────────────────────────────────

// Row wraps *sql.Row and maps errors through the unified error mapper.
// The statement's AfterQuery hooks run from Scan, once the outcome is known.
type Row struct {
	raw    *sql.Row
	errMap ErrorMapper

	hooks  hookChain
	ctx    context.Context
	query  string
	args   []any
	start  time.Time
	cancel context.CancelFunc
}

// Scan copies columns from the matched row into dest values.
// ErrNotFound is returned when no row was found.
func (r *Row) Scan(dest ...any) error {
	defer r.cancel()
	err := r.raw.Scan(dest...)
	if err != nil {
		err = r.errMap.Map(err)
	}
	r.hooks.After(r.ctx, r.query, r.args, time.Since(r.start), err)
	return err
}

// Rows wraps *sql.Rows so that Close also releases the statement context.
type Rows struct {
	*sql.Rows
	cancel context.CancelFunc
}

// Close closes the result set and cancels its context.
func (r *Rows) Close() error {
	err := r.Rows.Close()
	r.cancel()
	return err
}
