package dbdriver

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jkantaria/dbgateway/internal/config"
	"github.com/jkantaria/dbgateway/internal/gwerrors"
)

// baseConn holds the state shared by every engine implementation: the
// underlying sqlx handle, the optional in-flight transaction, and the
// query timeout. Engine structs embed it and only supply Connect,
// Version, GetTables, and GetFields.
type baseConn struct {
	mu     sync.Mutex
	cfg    config.ConnectionConfig
	db     *sqlx.DB
	tx     *sqlx.Tx
	timeoutSec int
}

func newBaseConn(cfg config.ConnectionConfig) baseConn {
	return baseConn{cfg: cfg, timeoutSec: cfg.CommandTimeoutSec}
}

func (b *baseConn) Name() string { return b.cfg.Name }

func (b *baseConn) Engine() config.Engine { return b.cfg.Engine }

func (b *baseConn) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.db != nil
}

func (b *baseConn) Disconnect() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		return nil
	}
	if b.tx != nil {
		_ = b.tx.Rollback()
		b.tx = nil
	}
	err := b.db.Close()
	b.db = nil
	if err != nil {
		return gwerrors.ConnectionError(err, "closing connection %q", b.cfg.Name)
	}
	return nil
}

func (b *baseConn) SetQueryTimeout(sec int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.timeoutSec = sec
}

func (b *baseConn) GetQueryTimeout() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.timeoutSec
}

func (b *baseConn) InTransaction() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tx != nil
}

func (b *baseConn) StartTransaction(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		return gwerrors.ConnectionError(nil, "connection %q is not connected", b.cfg.Name)
	}
	if b.tx != nil {
		return gwerrors.CommandError(nil, "connection %q already has an active transaction", b.cfg.Name)
	}
	tx, err := b.db.BeginTxx(ctx, nil)
	if err != nil {
		return gwerrors.CommandError(err, "starting transaction on %q", b.cfg.Name)
	}
	b.tx = tx
	return nil
}

func (b *baseConn) Commit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tx == nil {
		return gwerrors.CommandError(nil, "connection %q has no active transaction to commit", b.cfg.Name)
	}
	err := b.tx.Commit()
	b.tx = nil
	if err != nil {
		return gwerrors.CommandError(err, "committing transaction on %q", b.cfg.Name)
	}
	return nil
}

func (b *baseConn) Rollback() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tx == nil {
		return gwerrors.CommandError(nil, "connection %q has no active transaction to roll back", b.cfg.Name)
	}
	err := b.tx.Rollback()
	b.tx = nil
	if err != nil {
		return gwerrors.CommandError(err, "rolling back transaction on %q", b.cfg.Name)
	}
	return nil
}

// execer is satisfied by both *sqlx.DB and *sqlx.Tx, letting Execute/
// ExecuteScalar/ExecuteReader run identically whether or not a
// transaction is active.
type execer interface {
	sqlx.ExtContext
}

func (b *baseConn) currentExecer() (execer, int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		return nil, 0, gwerrors.ConnectionError(nil, "connection %q is not connected", b.cfg.Name)
	}
	if b.tx != nil {
		return b.tx, b.timeoutSec, nil
	}
	return b.db, b.timeoutSec, nil
}

func (b *baseConn) Execute(ctx context.Context, query string, params Params) (int64, error) {
	ex, timeout, err := b.currentExecer()
	if err != nil {
		return 0, err
	}
	ctx, cancel := queryTimeoutContext(ctx, timeout)
	defer cancel()

	stmt, args, err := bindNamed(ex, query, params)
	if err != nil {
		return 0, err
	}
	res, err := ex.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, gwerrors.CommandError(err, "executing statement on %q", b.cfg.Name)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, gwerrors.CommandError(err, "reading rows affected on %q", b.cfg.Name)
	}
	return n, nil
}

func (b *baseConn) ExecuteScalar(ctx context.Context, query string, params Params) (any, error) {
	ex, timeout, err := b.currentExecer()
	if err != nil {
		return nil, err
	}
	ctx, cancel := queryTimeoutContext(ctx, timeout)
	defer cancel()

	stmt, args, err := bindNamed(ex, query, params)
	if err != nil {
		return nil, err
	}
	var result any
	row := ex.QueryRowxContext(ctx, stmt, args...)
	if err := row.Scan(&result); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, gwerrors.CommandError(err, "executing scalar query on %q", b.cfg.Name)
	}
	return result, nil
}

func (b *baseConn) ExecuteReader(ctx context.Context, query string, params Params) (*ResultSet, error) {
	ex, timeout, err := b.currentExecer()
	if err != nil {
		return nil, err
	}
	ctx, cancel := queryTimeoutContext(ctx, timeout)
	defer cancel()

	stmt, args, err := bindNamed(ex, query, params)
	if err != nil {
		return nil, err
	}
	rows, err := ex.QueryxContext(ctx, stmt, args...)
	if err != nil {
		return nil, gwerrors.CommandError(err, "executing reader query on %q", b.cfg.Name)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, gwerrors.CommandError(err, "reading columns on %q", b.cfg.Name)
	}

	rs := &ResultSet{Columns: cols, Rows: make([]Row, 0)}
	for rows.Next() {
		row := make(map[string]any, len(cols))
		if err := rows.MapScan(row); err != nil {
			return nil, gwerrors.CommandError(err, "scanning row on %q", b.cfg.Name)
		}
		rs.Rows = append(rs.Rows, normalizeRow(row))
	}
	if err := rows.Err(); err != nil {
		return nil, gwerrors.CommandError(err, "iterating rows on %q", b.cfg.Name)
	}
	return rs, nil
}

func (b *baseConn) ExecuteJSON(ctx context.Context, query string, params Params) (string, error) {
	rs, err := b.ExecuteReader(ctx, query, params)
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(rs.Rows)
	if err != nil {
		return "", gwerrors.CommandError(err, "marshaling result set to JSON on %q", b.cfg.Name)
	}
	return string(out), nil
}

// normalizeRow converts driver-specific byte-slice text values (common
// with the mysql and pgx drivers for unregistered column types) into
// plain strings, and time.Time values into UTC (so ExecuteJSON renders
// them as ISO-8601 UTC), so ExecuteJSON and ExecuteReader callers see
// consistent Go types regardless of engine.
func normalizeRow(row map[string]any) Row {
	out := make(Row, len(row))
	for k, v := range row {
		switch tv := v.(type) {
		case []byte:
			out[k] = string(tv)
		case time.Time:
			out[k] = tv.UTC()
		default:
			out[k] = v
		}
	}
	return out
}

// bindNamed rewrites a `:name` style query into the target driver's
// positional bind syntax ($1, ?, @p1) via sqlx's per-driver BindNamed,
// which covers the MSSQL/Postgres/MySQL dialect differences uniformly.
func bindNamed(ex execer, query string, params Params) (string, []any, error) {
	stmt, args, err := ex.BindNamed(query, map[string]any(params))
	if err != nil {
		return "", nil, gwerrors.CommandError(err, "binding named parameters")
	}
	return stmt, args, nil
}
