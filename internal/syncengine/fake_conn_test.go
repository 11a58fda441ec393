package syncengine

import (
	"context"
	"fmt"

	"github.com/jkantaria/dbgateway/internal/config"
	"github.com/jkantaria/dbgateway/internal/dbdriver"
)

// fakeConn is a minimal in-memory dbdriver.DBConnection that tracks
// which ids exist per table and records every Execute call, enough to
// exercise syncengine's existence-check-then-branch upsert logic and
// its batch-atomic commit/rollback policy without a live database.
type fakeConn struct {
	engine config.Engine

	existingIDs map[int]bool // ids considered pre-existing before the run

	inTx      bool
	pending   []execCall
	committed []execCall

	// failIDs forces Execute to fail for statements binding this id.
	failIDs map[int]bool

	changesJSON string
}

type execCall struct {
	sql    string
	params dbdriver.Params
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		engine:      config.EnginePostgres,
		existingIDs: map[int]bool{},
		failIDs:     map[int]bool{},
		changesJSON: "[]",
	}
}

func (f *fakeConn) Connect(ctx context.Context) error { return nil }
func (f *fakeConn) Disconnect() error                 { return nil }
func (f *fakeConn) IsConnected() bool                 { return true }

func (f *fakeConn) StartTransaction(ctx context.Context) error {
	f.inTx = true
	f.pending = nil
	return nil
}

func (f *fakeConn) Commit() error {
	f.committed = append(f.committed, f.pending...)
	for _, c := range f.pending {
		if id, ok := c.params["id"].(int); ok {
			f.existingIDs[id] = true
		}
	}
	f.pending = nil
	f.inTx = false
	return nil
}

func (f *fakeConn) Rollback() error {
	f.pending = nil
	f.inTx = false
	return nil
}

func (f *fakeConn) InTransaction() bool { return f.inTx }

func (f *fakeConn) Execute(ctx context.Context, sql string, params dbdriver.Params) (int64, error) {
	if id, ok := params["id"].(int); ok && f.failIDs[id] {
		return 0, fmt.Errorf("simulated failure for id %d", id)
	}
	f.pending = append(f.pending, execCall{sql: sql, params: params})
	return 1, nil
}

func (f *fakeConn) ExecuteScalar(ctx context.Context, sql string, params dbdriver.Params) (any, error) {
	id, _ := params["id"].(int)
	if f.existingIDs[id] {
		return int64(id), nil
	}
	return nil, nil
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

func (f *fakeConn) Engine() config.Engine { return f.engine }
func (f *fakeConn) Name() string          { return "fake" }
