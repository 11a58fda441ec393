package querybuilder

import (
	"strings"
	"testing"

	"github.com/jkantaria/dbgateway/internal/config"
)

func TestParseSortToken(t *testing.T) {
	cases := []struct {
		in   string
		want Sort
	}{
		{"-name", Sort{Field: "name", Desc: true}},
		{"+name", Sort{Field: "name", Desc: false}},
		{"name_desc", Sort{Field: "name", Desc: true}},
		{"name_asc", Sort{Field: "name", Desc: false}},
		{"name", Sort{Field: "name", Desc: false}},
	}
	for _, c := range cases {
		got := ParseSortToken(c.in)
		if got != c.want {
			t.Errorf("ParseSortToken(%q) = %+v, want %+v", c.in, got, c.want)
		}
	}
}

func TestParseSort(t *testing.T) {
	got := ParseSort("name,-age,email_desc")
	want := []Sort{{"name", false}, {"age", true}, {"email", true}}
	if len(got) != len(want) {
		t.Fatalf("got %d sort tokens, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sort[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestDropUnknownDropsNonWhitelistedFields(t *testing.T) {
	whitelist := map[string]bool{"name": true, "email": true}
	filters := []Filter{{Field: "name", Op: OpEq, Value: "x"}, {Field: "password", Op: OpEq, Value: "y"}}
	sorts := []Sort{{Field: "email"}, {Field: "ssn"}}

	keptFilters, keptSorts := DropUnknown(filters, sorts, whitelist)

	if len(keptFilters) != 1 || keptFilters[0].Field != "name" {
		t.Errorf("expected only 'name' filter to survive, got %+v", keptFilters)
	}
	if len(keptSorts) != 1 || keptSorts[0].Field != "email" {
		t.Errorf("expected only 'email' sort to survive, got %+v", keptSorts)
	}
}

func TestBuildWhereUsesNamedBindParameters(t *testing.T) {
	q := Query{Filters: []Filter{{Field: "name", Op: OpEq, Value: "Ada"}}}
	frags, err := Build(config.EnginePostgres, q)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if !strings.Contains(frags.Where, `"name" =`) {
		t.Errorf("expected quoted equality clause, got %q", frags.Where)
	}
	if strings.Contains(frags.Where, "Ada") {
		t.Error("value must never appear in SQL text")
	}
	found := false
	for _, v := range frags.BindArgs {
		if v == "Ada" {
			found = true
		}
	}
	if !found {
		t.Error("expected value bound as a parameter")
	}
}

func TestBuildWhereOperators(t *testing.T) {
	q := Query{Filters: []Filter{
		{Field: "age", Op: OpGe, Value: 18},
		{Field: "email", Op: OpNn},
		{Field: "status", Op: OpIn, Value: []string{"a", "b"}},
	}}
	frags, err := Build(config.EnginePostgres, q)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if !strings.Contains(frags.Where, `"age" >=`) {
		t.Errorf("expected >= clause, got %q", frags.Where)
	}
	if !strings.Contains(frags.Where, `"email" IS NOT NULL`) {
		t.Errorf("expected IS NOT NULL clause, got %q", frags.Where)
	}
	if !strings.Contains(frags.Where, `"status" IN (`) {
		t.Errorf("expected IN clause, got %q", frags.Where)
	}
}

func TestBuildRejectsAnInvalidIdentifier(t *testing.T) {
	q := Query{Filters: []Filter{{Field: "name; DROP TABLE x", Op: OpEq, Value: "x"}}}
	if _, err := Build(config.EnginePostgres, q); err == nil {
		t.Error("expected Build to reject a non-identifier field")
	}
}

func TestBuildPaginateMSSQLRequiresOrderBy(t *testing.T) {
	q := Query{Limit: 10, Offset: 20}
	frags, err := Build(config.EngineMSSQL, q)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if frags.OrderBy != "ORDER BY (SELECT 1)" {
		t.Errorf("expected MSSQL fallback ORDER BY, got %q", frags.OrderBy)
	}
	if !strings.Contains(frags.Paginate, "OFFSET 20 ROWS FETCH NEXT 10 ROWS ONLY") {
		t.Errorf("unexpected MSSQL pagination clause: %q", frags.Paginate)
	}
}

func TestBuildPaginateMSSQLKeepsExplicitOrderBy(t *testing.T) {
	q := Query{Sort: []Sort{{Field: "name"}}, Limit: 10, Offset: 0}
	frags, err := Build(config.EngineMSSQL, q)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if frags.OrderBy != "ORDER BY [name] ASC" {
		t.Errorf("expected explicit quoted ORDER BY preserved, got %q", frags.OrderBy)
	}
}

func TestBuildPaginatePostgresAndMySQL(t *testing.T) {
	q := Query{Limit: 10, Offset: 20}
	for _, engine := range []config.Engine{config.EnginePostgres, config.EngineMySQL} {
		frags, err := Build(engine, q)
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		if frags.Paginate != "LIMIT 10 OFFSET 20" {
			t.Errorf("engine %v: unexpected pagination clause: %q", engine, frags.Paginate)
		}
	}
}

func TestBuildNoPaginationWhenUnset(t *testing.T) {
	frags, err := Build(config.EnginePostgres, Query{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if frags.Paginate != "" {
		t.Errorf("expected empty pagination clause, got %q", frags.Paginate)
	}
}

func TestParseIntParam(t *testing.T) {
	cases := map[string]int{"": 0, "10": 10, "-1": 0, "abc": 0, "0": 0}
	for in, want := range cases {
		if got := ParseIntParam(in); got != want {
			t.Errorf("ParseIntParam(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestParseOpDefaultsToEq(t *testing.T) {
	if ParseOp("") != OpEq {
		t.Error("expected empty op to default to eq")
	}
	if ParseOp("bogus") != OpEq {
		t.Error("expected unrecognized op to default to eq")
	}
	if ParseOp("like") != OpLike {
		t.Error("expected recognized op to round-trip")
	}
}

func TestSortedFieldsHelperIsDeterministic(t *testing.T) {
	got := sortedFields(map[string]bool{"b": true, "a": true, "c": true})
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sortedFields = %v, want %v", got, want)
		}
	}
}
