package db

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// Dialect is the only place the SQL differences between the supported
// engines live. One Dialect is chosen when the DB is opened and injected
// into every repository.
type Dialect interface {
	// Name is "sqlite3", "postgres" or "mysql". It also keys the embedded
	// schema files in package migrations.
	Name() string

	// PlaceholderFormat is the bind-parameter style: ? or $n.
	PlaceholderFormat() sq.PlaceholderFormat

	// ContainsOperator is the case-insensitive pattern operator.
	ContainsOperator() string

	// InsertReturningID executes ins and returns the generated value of
	// idColumn, either inline (RETURNING) or via the driver's last insert id.
	InsertReturningID(ctx context.Context, q Querier, ins sq.InsertBuilder, idColumn string) (int64, error)
}

// Builder returns a squirrel statement builder bound to d's placeholder style.
func Builder(d Dialect) sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(d.PlaceholderFormat())
}

// likeEscape is the ESCAPE character used by Contains. '!' is chosen over a
// backslash because backslash literals are interpreted differently by
// PostgreSQL and MySQL.
const likeEscape = '!'

// Contains returns a predicate matching rows whose column contains term as a
// case-insensitive substring. Wildcards in term match literally.
func Contains(d Dialect, column, term string) sq.Sqlizer {
	return sq.Expr(
		fmt.Sprintf("%s %s ? ESCAPE '%c'", column, d.ContainsOperator(), likeEscape),
		"%"+escapeLike(term)+"%",
	)
}

func escapeLike(term string) string {
	var b strings.Builder
	b.Grow(len(term))
	for _, r := range term {
		switch r {
		case likeEscape, '%', '_':
			b.WriteRune(likeEscape)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ─────────────────────────────────────────────────────────────────────────────
// Strategies
// ─────────────────────────────────────────────────────────────────────────────

// SQLiteDialect targets the embedded file engine. SQLite's LIKE is
// case-insensitive for ASCII.
type SQLiteDialect struct{}

func (SQLiteDialect) Name() string                            { return "sqlite3" }
func (SQLiteDialect) PlaceholderFormat() sq.PlaceholderFormat { return sq.Question }
func (SQLiteDialect) ContainsOperator() string                { return "LIKE" }

func (SQLiteDialect) InsertReturningID(ctx context.Context, q Querier, ins sq.InsertBuilder, _ string) (int64, error) {
	return execLastInsertID(ctx, q, ins)
}

// PostgresDialect targets the client-server engine.
type PostgresDialect struct{}

func (PostgresDialect) Name() string                            { return "postgres" }
func (PostgresDialect) PlaceholderFormat() sq.PlaceholderFormat { return sq.Dollar }
func (PostgresDialect) ContainsOperator() string                { return "ILIKE" }

func (PostgresDialect) InsertReturningID(ctx context.Context, q Querier, ins sq.InsertBuilder, idColumn string) (int64, error) {
	query, args, err := ins.Suffix("RETURNING " + idColumn).ToSql()
	if err != nil {
		return 0, fmt.Errorf("catalog/db: build insert: %w", err)
	}
	var id int64
	if err := q.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// MySQLDialect targets MySQL 8. LIKE is case-insensitive under the default
// collation.
type MySQLDialect struct{}

func (MySQLDialect) Name() string                            { return "mysql" }
func (MySQLDialect) PlaceholderFormat() sq.PlaceholderFormat { return sq.Question }
func (MySQLDialect) ContainsOperator() string                { return "LIKE" }

func (MySQLDialect) InsertReturningID(ctx context.Context, q Querier, ins sq.InsertBuilder, _ string) (int64, error) {
	return execLastInsertID(ctx, q, ins)
}

func execLastInsertID(ctx context.Context, q Querier, ins sq.InsertBuilder) (int64, error) {
	query, args, err := ins.ToSql()
	if err != nil {
		return 0, fmt.Errorf("catalog/db: build insert: %w", err)
	}
	res, err := q.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("catalog/db: last insert id: %w", err)
	}
	return id, nil
}

var (
	_ Dialect = SQLiteDialect{}
	_ Dialect = PostgresDialect{}
	_ Dialect = MySQLDialect{}
)
