package dbdriver

import "fmt"

// scalarToString renders an ExecuteScalar result for Version(), which
// drivers return as either a string or a []byte depending on engine.
func scalarToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// columnStrings extracts a single string column from a ResultSet,
// used by GetTables/GetFields across all three engines.
func columnStrings(rs *ResultSet, column string) []string {
	out := make([]string, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		if v, ok := row[column]; ok {
			out = append(out, scalarToString(v))
		}
	}
	return out
}
