package ledger

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"modernc.org/sqlite"

	"github.com/invoicely/invoicely/internal/platform/db"
)

// rows is the cursor subset shared by pgx.Rows and *sql.Rows.
type rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// conn hides the driver so one set of ?-placeholder queries serves both dialects.
type conn interface {
	Query(ctx context.Context, query string, args ...any) (rows, error)
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	InTx(ctx context.Context, fn func(conn) error) error
	uniqueViolation(err error) bool
}

type pgQuerier interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
}

type pgConn struct {
	pool *pgxpool.Pool
	q    pgQuerier
}

func (c pgConn) Query(ctx context.Context, query string, args ...any) (rows, error) {
	r, err := c.q.Query(ctx, rebindDollar(query), args...)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (c pgConn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := c.q.Exec(ctx, rebindDollar(query), args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (c pgConn) InTx(ctx context.Context, fn func(conn) error) error {
	if c.pool == nil {
		return fn(c)
	}
	return db.WithTx(ctx, c.pool, func(tx pgx.Tx) error {
		return fn(pgConn{q: tx})
	})
}

func (pgConn) uniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type sqliteConn struct {
	db *sql.DB
	q  sqlQuerier
}

type sqlRows struct{ *sql.Rows }

func (r sqlRows) Close() { _ = r.Rows.Close() }

func (c sqliteConn) Query(ctx context.Context, query string, args ...any) (rows, error) {
	r, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{r}, nil
}

func (c sqliteConn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := c.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (c sqliteConn) InTx(ctx context.Context, fn func(conn) error) error {
	if c.db == nil {
		return fn(c)
	}
	return db.WithSQLTx(ctx, c.db, func(tx *sql.Tx) error {
		return fn(sqliteConn{q: tx})
	})
}

func (sqliteConn) uniqueViolation(err error) bool {
	var sqErr *sqlite.Error
	if !errors.As(err, &sqErr) {
		return false
	}
	return strings.Contains(sqErr.Error(), "UNIQUE constraint failed")
}

// scanOne reads the first row into dest; found is false when there is none.
func scanOne(ctx context.Context, c conn, query string, args []any, dest ...any) (bool, error) {
	r, err := c.Query(ctx, query, args...)
	if err != nil {
		return false, err
	}
	defer r.Close()
	if !r.Next() {
		return false, r.Err()
	}
	if err := r.Scan(dest...); err != nil {
		return false, err
	}
	return true, r.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
