package customers

import (
	"context"
	"strings"

	"github.com/jkantaria/dbgateway/internal/config"
	"github.com/jkantaria/dbgateway/internal/dbdriver"
)

// fakeConn is a minimal in-memory customers table, enough to exercise
// the handlers' SQL shape (insert/update/select-by-id/soft-delete)
// without a live database, in the same spirit as syncengine's fakeConn.
type fakeConn struct {
	engine config.Engine
	rows   map[int]dbdriver.Row
	nextID int64
}

func newFakeConn() *fakeConn {
	return &fakeConn{engine: config.EnginePostgres, rows: map[int]dbdriver.Row{}, nextID: 1}
}

func (f *fakeConn) Connect(ctx context.Context) error                    { return nil }
func (f *fakeConn) Disconnect() error                                    { return nil }
func (f *fakeConn) IsConnected() bool                                    { return true }
func (f *fakeConn) StartTransaction(ctx context.Context) error           { return nil }
func (f *fakeConn) Commit() error                                        { return nil }
func (f *fakeConn) Rollback() error                                      { return nil }
func (f *fakeConn) InTransaction() bool                                  { return false }
func (f *fakeConn) Version(ctx context.Context) (string, error)          { return "fake", nil }
func (f *fakeConn) GetTables(ctx context.Context) ([]string, error)      { return nil, nil }
func (f *fakeConn) GetFields(ctx context.Context, t string) ([]string, error) {
	return nil, nil
}
func (f *fakeConn) SetQueryTimeout(sec int) {}
func (f *fakeConn) GetQueryTimeout() int    { return 0 }
func (f *fakeConn) Engine() config.Engine   { return f.engine }
func (f *fakeConn) Name() string            { return "fake" }

func (f *fakeConn) doInsert(params dbdriver.Params) int64 {
	id := f.nextID
	f.nextID++
	f.rows[int(id)] = dbdriver.Row{
		"id": id, "name": params["name"], "email": params["email"],
		"phone": params["phone"], "address": params["address"], "active": true,
	}
	return id
}

func (f *fakeConn) Execute(ctx context.Context, sql string, params dbdriver.Params) (int64, error) {
	switch {
	case strings.Contains(sql, "INSERT INTO"):
		f.doInsert(params)
		return 1, nil
	case strings.Contains(sql, "UPDATE"):
		id, _ := params["id"].(int)
		row, exists := f.rows[id]
		if !exists || row["active"] != true {
			return 0, nil
		}
		if newActive, ok := params["newActive"]; ok {
			row["active"] = newActive
		} else {
			row["name"] = params["name"]
			row["email"] = params["email"]
			row["phone"] = params["phone"]
			row["address"] = params["address"]
		}
		f.rows[id] = row
		return 1, nil
	default:
		return 0, nil
	}
}

func (f *fakeConn) ExecuteScalar(ctx context.Context, sql string, params dbdriver.Params) (any, error) {
	if strings.Contains(sql, "INSERT INTO") {
		return f.doInsert(params), nil
	}
	return nil, nil
}

func (f *fakeConn) ExecuteReader(ctx context.Context, sql string, params dbdriver.Params) (*dbdriver.ResultSet, error) {
	if id, ok := params["id"].(int); ok {
		row, exists := f.rows[id]
		if !exists || row["active"] != true {
			return &dbdriver.ResultSet{}, nil
		}
		return &dbdriver.ResultSet{Rows: []dbdriver.Row{row}}, nil
	}

	var out []dbdriver.Row
	for _, row := range f.rows {
		if row["active"] == true {
			out = append(out, row)
		}
	}
	return &dbdriver.ResultSet{Rows: out}, nil
}

func (f *fakeConn) ExecuteJSON(ctx context.Context, sql string, params dbdriver.Params) (string, error) {
	return "[]", nil
}

type fakeAcquirer struct {
	conn dbdriver.DBConnection
	err  error
}

func (f fakeAcquirer) AcquireConn(ctx context.Context, pool string, timeoutMs int) (dbdriver.DBConnection, func(), error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.conn, func() {}, nil
}
