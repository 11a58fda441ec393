// Package dbdriver implements the polyglot DBConnection abstraction
// (spec.md §4.1): a uniform session interface over SQL Server,
// PostgreSQL, and MySQL, backed by database/sql and the three
// engine-specific drivers registered by the blank imports in drivers.go.
package dbdriver

import (
	"context"
	"time"

	"github.com/jkantaria/dbgateway/internal/config"
)

// Row is a single materialized result row keyed by column name.
type Row map[string]any

// ResultSet is a fully materialized query result, returned by
// ExecuteReader. The caller owns it; it is not safe for concurrent use.
type ResultSet struct {
	Columns []string
	Rows    []Row
}

// Params is the uniform named-parameter bag accepted by every
// DBConnection operation. Drivers translate it to their own bind
// syntax; callers never embed values directly in SQL text.
type Params map[string]any

// DBConnection represents one live database session. MSSQL, PostgreSQL,
// and MySQL implementations share this exact surface (spec.md §4.1).
type DBConnection interface {
	// Connect establishes the session and applies the engine's session
	// initialization statements. Idempotent: calling Connect on an
	// already-connected session is a no-op.
	Connect(ctx context.Context) error
	// Disconnect closes the session. Idempotent.
	Disconnect() error
	IsConnected() bool

	// StartTransaction begins a transaction. At most one transaction
	// may be active per connection; a nested call fails with
	// gwerrors.CommandError.
	StartTransaction(ctx context.Context) error
	Commit() error
	Rollback() error
	InTransaction() bool

	Execute(ctx context.Context, sql string, params Params) (rowsAffected int64, err error)
	ExecuteScalar(ctx context.Context, sql string, params Params) (any, error)
	ExecuteReader(ctx context.Context, sql string, params Params) (*ResultSet, error)
	ExecuteJSON(ctx context.Context, sql string, params Params) (string, error)

	Version(ctx context.Context) (string, error)
	GetTables(ctx context.Context) ([]string, error)
	GetFields(ctx context.Context, table string) ([]string, error)

	SetQueryTimeout(sec int)
	GetQueryTimeout() int

	// Engine identifies which dialect this connection speaks.
	Engine() config.Engine
	// Name is the owning ConnectionConfig's name, used for diagnostics.
	Name() string
}

// New constructs a DBConnection for cfg.Engine. The connection is not
// yet connected; call Connect before use.
func New(cfg config.ConnectionConfig) (DBConnection, error) {
	base := newBaseConn(cfg)
	switch cfg.Engine {
	case config.EngineMSSQL:
		return &mssqlConn{baseConn: base}, nil
	case config.EnginePostgres:
		return &postgresConn{baseConn: base}, nil
	case config.EngineMySQL:
		return &mysqlConn{baseConn: base}, nil
	default:
		return nil, unsupportedEngineErr(cfg.Engine)
	}
}

func queryTimeoutContext(ctx context.Context, sec int) (context.Context, context.CancelFunc) {
	if sec <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(sec)*time.Second)
}
