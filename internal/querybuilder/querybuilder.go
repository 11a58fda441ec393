// Package querybuilder translates a whitelisted filter/sort/paginate
// parameter set into SQL fragments with named bind parameters,
// dialect-aware pagination, and no value ever embedded directly in
// SQL text.
package querybuilder

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/jkantaria/dbgateway/internal/config"
	"github.com/jkantaria/dbgateway/internal/dbdriver"
)

// Op identifies a comparison operator accepted in a `field[op]=value` token.
type Op string

const (
	OpEq   Op = "eq"
	OpNe   Op = "ne"
	OpLt   Op = "lt"
	OpLe   Op = "le"
	OpGt   Op = "gt"
	OpGe   Op = "ge"
	OpLike Op = "like"
	OpIn   Op = "in"
	OpNn   Op = "nn" // not null
)

var sqlOp = map[Op]string{
	OpEq:   "=",
	OpNe:   "<>",
	OpLt:   "<",
	OpLe:   "<=",
	OpGt:   ">",
	OpGe:   ">=",
	OpLike: "LIKE",
}

// Filter is a single parsed `field[op]=value` condition.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Sort is a single parsed `_sort` token.
type Sort struct {
	Field string
	Desc  bool
}

// Query is the full parsed, whitelisted request: filters, sort order,
// and pagination bounds, ready to be rendered into SQL fragments.
type Query struct {
	Filters []Filter
	Sort    []Sort
	Limit   int
	Offset  int
}

// Fragments is the rendered SQL, ready to be appended after a base
// SELECT statement.
type Fragments struct {
	Where     string // "" or "WHERE ..."
	OrderBy   string // "" or "ORDER BY ..."
	Paginate  string
	BindArgs  dbdriver.Params
}

// Build renders a Query into engine-specific SQL fragments. Every
// field name in q must already be present in whitelist; anything
// else is a programming error on the caller's part (the controller is
// responsible for dropping non-whitelisted fields before reaching
// here — see DropUnknown). Whitelisting alone isn't the whole story:
// spec.md §9's "whitelist check then an engine-specific quoter" also
// requires every surviving field name to pass through
// dbdriver.QuoteIdentifier before it reaches SQL text.
func Build(engine config.Engine, q Query) (Fragments, error) {
	args := dbdriver.Params{}

	where, err := buildWhere(engine, q.Filters, args)
	if err != nil {
		return Fragments{}, err
	}
	orderBy, err := buildOrderBy(engine, q.Sort)
	if err != nil {
		return Fragments{}, err
	}
	paginate := buildPaginate(engine, q.Limit, q.Offset, orderBy != "")

	if orderBy == "" && engine == config.EngineMSSQL && paginate != "" {
		orderBy = "ORDER BY (SELECT 1)"
	}

	return Fragments{Where: where, OrderBy: orderBy, Paginate: paginate, BindArgs: args}, nil
}

func buildWhere(engine config.Engine, filters []Filter, args dbdriver.Params) (string, error) {
	if len(filters) == 0 {
		return "", nil
	}
	clauses := make([]string, 0, len(filters))
	for i, f := range filters {
		field, err := dbdriver.QuoteIdentifier(engine, f.Field)
		if err != nil {
			return "", err
		}
		bindName := fmt.Sprintf("qb_%s_%d", sanitizeBindName(f.Field), i)
		switch f.Op {
		case OpNn:
			clauses = append(clauses, fmt.Sprintf("%s IS NOT NULL", field))
		case OpIn:
			values, _ := f.Value.([]string)
			if len(values) == 0 {
				clauses = append(clauses, "1=0")
				continue
			}
			names := make([]string, 0, len(values))
			for j, v := range values {
				n := fmt.Sprintf("%s_%d", bindName, j)
				names = append(names, ":"+n)
				args[n] = v
			}
			clauses = append(clauses, fmt.Sprintf("%s IN (%s)", field, strings.Join(names, ", ")))
		default:
			op, ok := sqlOp[f.Op]
			if !ok {
				op = "="
			}
			clauses = append(clauses, fmt.Sprintf("%s %s :%s", field, op, bindName))
			args[bindName] = f.Value
		}
	}
	return "WHERE " + strings.Join(clauses, " AND "), nil
}

func buildOrderBy(engine config.Engine, sorts []Sort) (string, error) {
	if len(sorts) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(sorts))
	for _, s := range sorts {
		field, err := dbdriver.QuoteIdentifier(engine, s.Field)
		if err != nil {
			return "", err
		}
		dir := "ASC"
		if s.Desc {
			dir = "DESC"
		}
		parts = append(parts, fmt.Sprintf("%s %s", field, dir))
	}
	return "ORDER BY " + strings.Join(parts, ", "), nil
}

func buildPaginate(engine config.Engine, limit, offset int, hasOrderBy bool) string {
	if limit <= 0 && offset <= 0 {
		return ""
	}
	switch engine {
	case config.EngineMSSQL:
		return fmt.Sprintf("OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", offset, limitOrDefault(limit))
	default:
		return fmt.Sprintf("LIMIT %d OFFSET %d", limitOrDefault(limit), offset)
	}
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return 1 << 30 // effectively unbounded when only _offset was supplied
	}
	return limit
}

func sanitizeBindName(field string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '_'
	}, field)
}

// ParseSortToken parses a single comma-separated _sort entry,
// recognizing a leading "-"/"+" or a trailing "_desc"/"_asc" as the
// direction marker.
func ParseSortToken(token string) Sort {
	token = strings.TrimSpace(token)
	switch {
	case strings.HasPrefix(token, "-"):
		return Sort{Field: strings.TrimPrefix(token, "-"), Desc: true}
	case strings.HasPrefix(token, "+"):
		return Sort{Field: strings.TrimPrefix(token, "+"), Desc: false}
	case strings.HasSuffix(token, "_desc"):
		return Sort{Field: strings.TrimSuffix(token, "_desc"), Desc: true}
	case strings.HasSuffix(token, "_asc"):
		return Sort{Field: strings.TrimSuffix(token, "_asc"), Desc: false}
	default:
		return Sort{Field: token, Desc: false}
	}
}

// ParseSort splits a full _sort query value ("f1,-f2,f3_desc") into
// its component Sort tokens.
func ParseSort(value string) []Sort {
	if value == "" {
		return nil
	}
	tokens := strings.Split(value, ",")
	out := make([]Sort, 0, len(tokens))
	for _, t := range tokens {
		if strings.TrimSpace(t) == "" {
			continue
		}
		out = append(out, ParseSortToken(t))
	}
	return out
}

// DropUnknown filters fields (the keys of filters and every Sort's
// Field) down to those present in whitelist, logging a warning for
// every field dropped. This implements the security invariant: a
// caller-supplied field name is never embedded in SQL unless the
// controller has vetted it in advance.
func DropUnknown(filters []Filter, sorts []Sort, whitelist map[string]bool) ([]Filter, []Sort) {
	keptFilters := make([]Filter, 0, len(filters))
	for _, f := range filters {
		if whitelist[f.Field] {
			keptFilters = append(keptFilters, f)
		} else {
			slog.Warn("dropping non-whitelisted filter field", "field", f.Field)
		}
	}
	keptSorts := make([]Sort, 0, len(sorts))
	for _, s := range sorts {
		if whitelist[s.Field] {
			keptSorts = append(keptSorts, s)
		} else {
			slog.Warn("dropping non-whitelisted sort field", "field", s.Field)
		}
	}
	return keptFilters, keptSorts
}

// ParseOp converts a query-string operator token (e.g. the "op" in
// "field[op]=value") into an Op, defaulting to OpEq for an empty or
// unrecognized token so a bare "field=value" behaves as equality.
func ParseOp(raw string) Op {
	switch Op(raw) {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpLike, OpIn, OpNn:
		return Op(raw)
	default:
		return OpEq
	}
}

// ParseIntParam parses a non-negative integer pagination parameter
// (_limit/_offset), returning 0 (meaning "unset") on empty or invalid
// input rather than erroring — callers treat 0 as "no bound requested".
func ParseIntParam(raw string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// sortedFields is a small helper used by tests to get deterministic
// whitelist iteration order.
func sortedFields(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
