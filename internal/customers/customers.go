// Package customers implements the customer CRUD surface (spec.md
// §6.1/§6.2/§8.2 item 8): listing through internal/querybuilder, and
// single-row create/read/update/soft-delete directly against
// internal/dbdriver, grounded on the teacher's tenant CRUD handlers in
// internal/api/server.go generalized from an in-memory router to a
// real table behind internal/dbpool.
package customers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/jkantaria/dbgateway/internal/config"
	"github.com/jkantaria/dbgateway/internal/dbdriver"
	"github.com/jkantaria/dbgateway/internal/dbpool"
	"github.com/jkantaria/dbgateway/internal/gwerrors"
	"github.com/jkantaria/dbgateway/internal/httpresponse"
	"github.com/jkantaria/dbgateway/internal/querybuilder"
)

// listWhitelist is the set of fields a caller may filter or sort
// customers by. "active" is deliberately absent: soft-delete
// visibility is enforced below, never left to caller-supplied filters.
var listWhitelist = map[string]bool{
	"id": true, "name": true, "email": true, "phone": true,
	"address": true, "created_at": true, "updated_at": true,
}

const table = "customers"

// Handlers serves the customer CRUD routes against a single named pool.
type Handlers struct {
	pool     dbpool.Acquirer
	poolName string
}

// NewHandlers builds customer handlers against the given pool.
func NewHandlers(pool dbpool.Acquirer, poolName string) *Handlers {
	return &Handlers{pool: pool, poolName: poolName}
}

func (h *Handlers) acquire(ctx context.Context) (dbdriver.DBConnection, func(), error) {
	return h.pool.AcquireConn(ctx, h.poolName, 0)
}

type customerRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

func parseID(r *http.Request) (int, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, gwerrors.InvalidParameter("id must be a positive integer")
	}
	return id, nil
}

func parseFilterKey(key string) (string, querybuilder.Op) {
	open := strings.Index(key, "[")
	if open < 0 || !strings.HasSuffix(key, "]") {
		return key, querybuilder.OpEq
	}
	return key[:open], querybuilder.ParseOp(key[open+1 : len(key)-1])
}

// List handles GET /customers. Per spec.md §8.3 item 10, an explicit
// _limit=0 is a valid request for zero rows, short-circuited before
// ever reaching the database (querybuilder treats limit<=0 as "no
// bound requested", which would otherwise return everything).
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("_limit") == "0" {
		httpresponse.WriteJSON(w, http.StatusOK, []dbdriver.Row{})
		return
	}

	var filters []querybuilder.Filter
	for key, values := range q {
		if key == "_sort" || key == "_limit" || key == "_offset" || len(values) == 0 {
			continue
		}
		field, op := parseFilterKey(key)
		var value any = values[0]
		if op == querybuilder.OpIn {
			value = strings.Split(values[0], ",")
		}
		filters = append(filters, querybuilder.Filter{Field: field, Op: op, Value: value})
	}
	sorts := querybuilder.ParseSort(q.Get("_sort"))
	filters, sorts = querybuilder.DropUnknown(filters, sorts, listWhitelist)
	filters = append(filters, querybuilder.Filter{Field: "active", Op: querybuilder.OpEq, Value: true})

	ctx := r.Context()
	conn, release, err := h.acquire(ctx)
	if err != nil {
		httpresponse.HandleError(w, err)
		return
	}
	defer release()

	frag, err := querybuilder.Build(conn.Engine(), querybuilder.Query{
		Filters: filters,
		Sort:    sorts,
		Limit:   querybuilder.ParseIntParam(q.Get("_limit")),
		Offset:  querybuilder.ParseIntParam(q.Get("_offset")),
	})
	if err != nil {
		httpresponse.HandleError(w, err)
		return
	}

	quotedTable, err := dbdriver.QuoteIdentifier(conn.Engine(), table)
	if err != nil {
		httpresponse.HandleError(w, err)
		return
	}
	sql := strings.Join(filterEmpty([]string{
		"SELECT * FROM " + quotedTable, frag.Where, frag.OrderBy, frag.Paginate,
	}), " ")

	rs, err := conn.ExecuteReader(ctx, sql, frag.BindArgs)
	if err != nil {
		httpresponse.HandleError(w, gwerrors.CommandError(err, "listing customers"))
		return
	}
	httpresponse.WriteJSON(w, http.StatusOK, rs.Rows)
}

func filterEmpty(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Get handles GET /customers/:id. A soft-deleted row is indistinguishable
// from an absent one: both yield 404 (spec.md §8.2 item 8).
func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpresponse.HandleError(w, err)
		return
	}

	ctx := r.Context()
	conn, release, err := h.acquire(ctx)
	if err != nil {
		httpresponse.HandleError(w, err)
		return
	}
	defer release()

	quotedTable, err := dbdriver.QuoteIdentifier(conn.Engine(), table)
	if err != nil {
		httpresponse.HandleError(w, err)
		return
	}
	sql := fmt.Sprintf("SELECT * FROM %s WHERE id = :id AND active = :active", quotedTable)
	rs, err := conn.ExecuteReader(ctx, sql, dbdriver.Params{"id": id, "active": true})
	if err != nil {
		httpresponse.HandleError(w, gwerrors.CommandError(err, "fetching customer"))
		return
	}
	if len(rs.Rows) == 0 {
		httpresponse.WriteFailure(w, http.StatusNotFound, "customer not found")
		return
	}
	httpresponse.WriteJSON(w, http.StatusOK, rs.Rows[0])
}

// Create handles POST /customers.
func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpresponse.HandleError(w, gwerrors.InvalidRequest("request body must be a JSON object: %v", err))
		return
	}
	if req.Name == "" || req.Email == "" {
		httpresponse.HandleError(w, gwerrors.MissingParameter("name and email are required"))
		return
	}

	ctx := r.Context()
	conn, release, err := h.acquire(ctx)
	if err != nil {
		httpresponse.HandleError(w, err)
		return
	}
	defer release()

	id, err := insertCustomer(ctx, conn, dbdriver.Params{
		"name": req.Name, "email": req.Email, "phone": req.Phone, "address": req.Address,
	})
	if err != nil {
		httpresponse.HandleError(w, gwerrors.CommandError(err, "creating customer"))
		return
	}

	httpresponse.WriteJSON(w, http.StatusCreated, map[string]any{
		"id": id, "name": req.Name, "email": req.Email,
		"phone": req.Phone, "address": req.Address, "active": true,
	})
}

// Update handles PUT /customers/:id.
func (h *Handlers) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpresponse.HandleError(w, err)
		return
	}

	var req customerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpresponse.HandleError(w, gwerrors.InvalidRequest("request body must be a JSON object: %v", err))
		return
	}
	if req.Name == "" || req.Email == "" {
		httpresponse.HandleError(w, gwerrors.MissingParameter("name and email are required"))
		return
	}

	ctx := r.Context()
	conn, release, err := h.acquire(ctx)
	if err != nil {
		httpresponse.HandleError(w, err)
		return
	}
	defer release()

	quotedTable, err := dbdriver.QuoteIdentifier(conn.Engine(), table)
	if err != nil {
		httpresponse.HandleError(w, err)
		return
	}
	sql := fmt.Sprintf(
		"UPDATE %s SET name = :name, email = :email, phone = :phone, address = :address, updated_at = CURRENT_TIMESTAMP WHERE id = :id AND active = :active",
		quotedTable,
	)
	rows, err := conn.Execute(ctx, sql, dbdriver.Params{
		"name": req.Name, "email": req.Email, "phone": req.Phone, "address": req.Address,
		"id": id, "active": true,
	})
	if err != nil {
		httpresponse.HandleError(w, gwerrors.CommandError(err, "updating customer"))
		return
	}
	if rows == 0 {
		httpresponse.WriteFailure(w, http.StatusNotFound, "customer not found")
		return
	}

	httpresponse.WriteJSON(w, http.StatusOK, map[string]any{
		"id": id, "name": req.Name, "email": req.Email,
		"phone": req.Phone, "address": req.Address, "active": true,
	})
}

// Delete handles DELETE /customers/:id: a soft-delete that flips
// active to false, never a physical row removal.
func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpresponse.HandleError(w, err)
		return
	}

	ctx := r.Context()
	conn, release, err := h.acquire(ctx)
	if err != nil {
		httpresponse.HandleError(w, err)
		return
	}
	defer release()

	quotedTable, err := dbdriver.QuoteIdentifier(conn.Engine(), table)
	if err != nil {
		httpresponse.HandleError(w, err)
		return
	}
	sql := fmt.Sprintf(
		"UPDATE %s SET active = :newActive, updated_at = CURRENT_TIMESTAMP WHERE id = :id AND active = :active",
		quotedTable,
	)
	rows, err := conn.Execute(ctx, sql, dbdriver.Params{"newActive": false, "id": id, "active": true})
	if err != nil {
		httpresponse.HandleError(w, gwerrors.CommandError(err, "deleting customer"))
		return
	}
	if rows == 0 {
		httpresponse.WriteFailure(w, http.StatusNotFound, "customer not found")
		return
	}

	httpresponse.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "message": "customer deleted"})
}

// insertCustomer inserts a new row and returns its generated id. The
// three branches mirror the per-engine dialect split already
// established by querybuilder.buildPaginate and syncengine.changesQuery:
// Postgres supports RETURNING directly, MySQL and MSSQL require a
// follow-up scalar query on the same session.
func insertCustomer(ctx context.Context, conn dbdriver.DBConnection, values dbdriver.Params) (int64, error) {
	quotedTable, err := dbdriver.QuoteIdentifier(conn.Engine(), table)
	if err != nil {
		return 0, err
	}

	insertSQL := fmt.Sprintf(
		"INSERT INTO %s (name, email, phone, address, active, created_at, updated_at) "+
			"VALUES (:name, :email, :phone, :address, true, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)",
		quotedTable,
	)

	switch conn.Engine() {
	case config.EnginePostgres:
		v, err := conn.ExecuteScalar(ctx, insertSQL+" RETURNING id", values)
		if err != nil {
			return 0, err
		}
		return toInt64(v), nil
	case config.EngineMySQL:
		if _, err := conn.Execute(ctx, insertSQL, values); err != nil {
			return 0, err
		}
		v, err := conn.ExecuteScalar(ctx, "SELECT LAST_INSERT_ID()", nil)
		if err != nil {
			return 0, err
		}
		return toInt64(v), nil
	default: // MSSQL
		if _, err := conn.Execute(ctx, insertSQL, values); err != nil {
			return 0, err
		}
		v, err := conn.ExecuteScalar(ctx, "SELECT SCOPE_IDENTITY()", nil)
		if err != nil {
			return 0, err
		}
		return toInt64(v), nil
	}
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
