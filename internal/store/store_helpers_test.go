package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
)

type stubDB struct {
	getFn    func(ctx context.Context, dest any, query string, args ...any) error
	selectFn func(ctx context.Context, dest any, query string, args ...any) error
	execFn   func(ctx context.Context, query string, args ...any) (sql.Result, error)
	queryFn  func(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
}

func (s stubDB) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	if s.getFn == nil {
		return nil
	}
	return s.getFn(ctx, dest, query, args...)
}

func (s stubDB) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	if s.selectFn == nil {
		return nil
	}
	return s.selectFn(ctx, dest, query, args...)
}

func (s stubDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if s.execFn == nil {
		return stubResult{}, nil
	}
	return s.execFn(ctx, query, args...)
}

func (s stubDB) QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error) {
	if s.queryFn == nil {
		return nil, errors.New("no query stub")
	}
	return s.queryFn(ctx, query, args...)
}

type stubExecer struct {
	execFn func(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s stubExecer) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if s.execFn == nil {
		return stubResult{}, nil
	}
	return s.execFn(ctx, query, args...)
}

type stubGetter struct {
	getFn func(ctx context.Context, dest any, query string, args ...any) error
}

func (s stubGetter) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	if s.getFn == nil {
		return nil
	}
	return s.getFn(ctx, dest, query, args...)
}

type stubResult struct {
	rows int64
	err  error
}

func (r stubResult) LastInsertId() (int64, error) {
	return 0, r.err
}

func (r stubResult) RowsAffected() (int64, error) {
	return r.rows, r.err
}

// rowsDriver serves a fixed result set for every query so that code built on
// QueryxContext can be exercised without a database.
type rowsDriver struct {
	columns []string
	values  [][]driver.Value
	err     error
}

var (
	rowsDriverMu  sync.Mutex
	rowsDriverSeq int
)

func openRows(t *testing.T, d *rowsDriver) *sqlx.DB {
	t.Helper()
	rowsDriverMu.Lock()
	rowsDriverSeq++
	name := fmt.Sprintf("store-rows-%d", rowsDriverSeq)
	rowsDriverMu.Unlock()
	sql.Register(name, d)
	conn, err := sql.Open(name, "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return sqlx.NewDb(conn, "postgres")
}

func (d *rowsDriver) Open(string) (driver.Conn, error) {
	return &rowsConn{d: d}, nil
}

type rowsConn struct {
	d *rowsDriver
}

func (c *rowsConn) Prepare(string) (driver.Stmt, error) {
	return &rowsStmt{d: c.d}, nil
}

func (c *rowsConn) Close() error { return nil }

func (c *rowsConn) Begin() (driver.Tx, error) {
	return nil, errors.New("transactions not supported")
}

type rowsStmt struct {
	d *rowsDriver
}

func (s *rowsStmt) Close() error  { return nil }
func (s *rowsStmt) NumInput() int { return -1 }

func (s *rowsStmt) Exec([]driver.Value) (driver.Result, error) {
	return driver.RowsAffected(0), nil
}

func (s *rowsStmt) Query([]driver.Value) (driver.Rows, error) {
	if s.d.err != nil {
		return nil, s.d.err
	}
	return &rowsIter{columns: s.d.columns, values: s.d.values}, nil
}

type rowsIter struct {
	columns []string
	values  [][]driver.Value
	pos     int
}

func (r *rowsIter) Columns() []string { return r.columns }
func (r *rowsIter) Close() error      { return nil }

func (r *rowsIter) Next(dest []driver.Value) error {
	if r.pos >= len(r.values) {
		return io.EOF
	}
	copy(dest, r.values[r.pos])
	r.pos++
	return nil
}
