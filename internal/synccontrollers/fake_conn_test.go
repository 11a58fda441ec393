package synccontrollers

import (
	"context"

	"github.com/jkantaria/dbgateway/internal/config"
	"github.com/jkantaria/dbgateway/internal/dbdriver"
)

// fakeConn is a minimal in-memory dbdriver.DBConnection: every id is
// treated as new (so Sync always takes the insert path), enough to
// exercise the controller's request/response translation without
// exercising syncengine's own upsert logic (covered in its own tests).
type fakeConn struct {
	changesJSON string
}

func newFakeConn() *fakeConn { return &fakeConn{changesJSON: `[{"id":1}]`} }

func (f *fakeConn) Connect(ctx context.Context) error          { return nil }
func (f *fakeConn) Disconnect() error                          { return nil }
func (f *fakeConn) IsConnected() bool                          { return true }
func (f *fakeConn) StartTransaction(ctx context.Context) error { return nil }
func (f *fakeConn) Commit() error                              { return nil }
func (f *fakeConn) Rollback() error                            { return nil }
func (f *fakeConn) InTransaction() bool                        { return false }

func (f *fakeConn) Execute(ctx context.Context, sql string, params dbdriver.Params) (int64, error) {
	return 1, nil
}

func (f *fakeConn) ExecuteScalar(ctx context.Context, sql string, params dbdriver.Params) (any, error) {
	return nil, nil // every id looks new
}

func (f *fakeConn) ExecuteReader(ctx context.Context, sql string, params dbdriver.Params) (*dbdriver.ResultSet, error) {
	return &dbdriver.ResultSet{}, nil
}

func (f *fakeConn) ExecuteJSON(ctx context.Context, sql string, params dbdriver.Params) (string, error) {
	return f.changesJSON, nil
}

func (f *fakeConn) Version(ctx context.Context) (string, error)     { return "fake", nil }
func (f *fakeConn) GetTables(ctx context.Context) ([]string, error) { return nil, nil }
func (f *fakeConn) GetFields(ctx context.Context, table string) ([]string, error) {
	return nil, nil
}

func (f *fakeConn) SetQueryTimeout(sec int) {}
func (f *fakeConn) GetQueryTimeout() int    { return 0 }

func (f *fakeConn) Engine() config.Engine { return config.EnginePostgres }
func (f *fakeConn) Name() string          { return "fake" }

type fakeAcquirer struct {
	conn dbdriver.DBConnection
}

func (f fakeAcquirer) AcquireConn(ctx context.Context, pool string, timeoutMs int) (dbdriver.DBConnection, func(), error) {
	return f.conn, func() {}, nil
}
