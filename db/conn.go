package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Conn: a single checked-out connection
// ─────────────────────────────────────────────────────────────────────────────

// Conn is a connection obtained from DB.Acquire. It mirrors the DB API
// surface so repository code can run against it through Querier.
type Conn struct {
	raw    *sql.Conn
	hooks  hookChain
	errMap ErrorMapper
	cfg    Config
}

// Close returns the connection to the pool. Safe to call more than once.
func (c *Conn) Close() error {
	err := c.raw.Close()
	if errors.Is(err, sql.ErrConnDone) {
		return nil
	}
	return err
}

// Exec executes a statement that does not return rows.
func (c *Conn) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, cancel := withDefaultTimeout(ctx, c.cfg.DefaultTimeout)
	defer cancel()
	start := time.Now()
	ctx = c.hooks.Before(ctx, query, args)
	res, err := c.raw.ExecContext(ctx, query, args...)
	err = c.mapErr(err)
	c.hooks.After(ctx, query, args, time.Since(start), err)
	return res, err
}

// Query executes a query returning rows. The caller MUST close *Rows.
func (c *Conn) Query(ctx context.Context, query string, args ...any) (*Rows, error) {
	ctx, cancel := withDefaultTimeout(ctx, c.cfg.DefaultTimeout)
	start := time.Now()
	ctx = c.hooks.Before(ctx, query, args)
	rows, err := c.raw.QueryContext(ctx, query, args...)
	err = c.mapErr(err)
	c.hooks.After(ctx, query, args, time.Since(start), err)
	if err != nil {
		cancel()
		return nil, err
	}
	return &Rows{Rows: rows, cancel: cancel}, nil
}

// QueryRow executes a query expected to return at most one row.
func (c *Conn) QueryRow(ctx context.Context, query string, args ...any) *Row {
	ctx, cancel := withDefaultTimeout(ctx, c.cfg.DefaultTimeout)
	start := time.Now()
	ctx = c.hooks.Before(ctx, query, args)
	return &Row{
		raw:    c.raw.QueryRowContext(ctx, query, args...),
		errMap: c.errMap,
		hooks:  c.hooks,
		ctx:    ctx,
		query:  query,
		args:   args,
		start:  start,
		cancel: cancel,
	}
}

func (c *Conn) mapErr(err error) error {
	if err == nil {
		return nil
	}
	return c.errMap.Map(err)
}

// ─────────────────────────────────────────────────────────────────────────────
// Tx: transaction wrapper
// ─────────────────────────────────────────────────────────────────────────────

// Tx is a thin wrapper around *sql.Tx so that code written against Querier
// runs unchanged inside a transaction.
type Tx struct {
	sqltx  *sql.Tx
	hooks  hookChain
	errMap ErrorMapper
}

// Exec executes a statement that does not return rows.
func (t *Tx) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	ctx = t.hooks.Before(ctx, query, args)
	res, err := t.sqltx.ExecContext(ctx, query, args...)
	err = t.mapErr(err)
	t.hooks.After(ctx, query, args, time.Since(start), err)
	return res, err
}

// Query executes a query returning rows. The caller MUST close *Rows.
func (t *Tx) Query(ctx context.Context, query string, args ...any) (*Rows, error) {
	start := time.Now()
	ctx = t.hooks.Before(ctx, query, args)
	rows, err := t.sqltx.QueryContext(ctx, query, args...)
	err = t.mapErr(err)
	t.hooks.After(ctx, query, args, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return &Rows{Rows: rows, cancel: func() {}}, nil
}

// QueryRow executes a query expected to return at most one row.
func (t *Tx) QueryRow(ctx context.Context, query string, args ...any) *Row {
	start := time.Now()
	ctx = t.hooks.Before(ctx, query, args)
	return &Row{
		raw:    t.sqltx.QueryRowContext(ctx, query, args...),
		errMap: t.errMap,
		hooks:  t.hooks,
		ctx:    ctx,
		query:  query,
		args:   args,
		start:  start,
		cancel: func() {},
	}
}

func (t *Tx) mapErr(err error) error {
	if err == nil {
		return nil
	}
	return t.errMap.Map(err)
}

// ─────────────────────────────────────────────────────────────────────────────
// ExecTx
// ─────────────────────────────────────────────────────────────────────────────

// ExecTx starts a transaction on the checked-out connection, executes fn, and
// commits on success or rolls back on error or panic.
//
//	err := conn.ExecTx(ctx, func(tx *db.Tx) error {
//	    _, err := tx.Exec(ctx, ddl)
//	    return err
//	})
func (c *Conn) ExecTx(ctx context.Context, fn func(*Tx) error) (err error) {
	ctx, cancel := withDefaultTimeout(ctx, c.cfg.DefaultTimeout)
	defer cancel()

	sqltx, err := c.raw.BeginTx(ctx, nil)
	if err != nil {
		return c.mapErr(err)
	}

	tx := &Tx{sqltx: sqltx, hooks: c.hooks, errMap: c.errMap}

	defer func() {
		if p := recover(); p != nil {
			_ = sqltx.Rollback()
			panic(p) // re-panic after rollback
		}
		if err != nil {
			if rbErr := sqltx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = fmt.Errorf("catalog/db: rollback failed (%v) after original error: %w", rbErr, err)
			}
		}
	}()

	if err = fn(tx); err != nil {
		return c.mapErr(err) // rollback handled by defer
	}
	if err = sqltx.Commit(); err != nil {
		return c.mapErr(err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Querier: the shared interface accepted by repositories
// ─────────────────────────────────────────────────────────────────────────────

// Querier is the minimal statement surface shared by *DB, *Conn and *Tx.
type Querier interface {
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	Query(ctx context.Context, query string, args ...any) (*Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) *Row
}

var (
	_ Querier = (*DB)(nil)
	_ Querier = (*Conn)(nil)
	_ Querier = (*Tx)(nil)
)
