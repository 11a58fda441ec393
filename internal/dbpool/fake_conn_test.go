package dbpool

import (
	"context"
	"sync/atomic"

	"github.com/jkantaria/dbgateway/internal/config"
	"github.com/jkantaria/dbgateway/internal/dbdriver"
)

// fakeConn is a minimal in-memory dbdriver.DBConnection used to drive
// SingleDBPool's acquire/release/cleanup logic without a live database.
type fakeConn struct {
	name      string
	connected bool
	closed    bool
	failPing  *atomic.Bool
}

func newFakeConn(name string) *fakeConn {
	return &fakeConn{name: name, failPing: &atomic.Bool{}}
}

func (f *fakeConn) Connect(ctx context.Context) error { f.connected = true; return nil }
func (f *fakeConn) Disconnect() error                 { f.connected = false; f.closed = true; return nil }
func (f *fakeConn) IsConnected() bool                 { return f.connected }

func (f *fakeConn) StartTransaction(ctx context.Context) error { return nil }
func (f *fakeConn) Commit() error                               { return nil }
func (f *fakeConn) Rollback() error                             { return nil }
func (f *fakeConn) InTransaction() bool                         { return false }

func (f *fakeConn) Execute(ctx context.Context, sql string, params dbdriver.Params) (int64, error) {
	return 0, nil
}

func (f *fakeConn) ExecuteScalar(ctx context.Context, sql string, params dbdriver.Params) (any, error) {
	if f.failPing.Load() {
		return nil, errPing
	}
	return int64(1), nil
}

func (f *fakeConn) ExecuteReader(ctx context.Context, sql string, params dbdriver.Params) (*dbdriver.ResultSet, error) {
	return &dbdriver.ResultSet{}, nil
}

func (f *fakeConn) ExecuteJSON(ctx context.Context, sql string, params dbdriver.Params) (string, error) {
	return "[]", nil
}

func (f *fakeConn) Version(ctx context.Context) (string, error)                 { return "fake", nil }
func (f *fakeConn) GetTables(ctx context.Context) ([]string, error)             { return nil, nil }
func (f *fakeConn) GetFields(ctx context.Context, table string) ([]string, error) {
	return nil, nil
}

func (f *fakeConn) SetQueryTimeout(sec int) {}
func (f *fakeConn) GetQueryTimeout() int    { return 0 }

func (f *fakeConn) Engine() config.Engine { return config.EnginePostgres }
func (f *fakeConn) Name() string          { return f.name }

var errPing = &pingError{}

type pingError struct{}

func (*pingError) Error() string { return "ping failed" }
