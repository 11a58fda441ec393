package dbdriver

import (
	"regexp"
	"strings"

	"github.com/jkantaria/dbgateway/internal/config"
	"github.com/jkantaria/dbgateway/internal/gwerrors"
)

// identifierPattern whitelists identifiers accepted for quoting: table
// and column names must look like SQL identifiers before they are ever
// interpolated into a statement. Anything else is rejected rather than
// quoted, since quoting alone does not stop a crafted identifier from
// escaping its delimiter on some engines.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// QuoteIdentifier validates ident against identifierPattern and wraps it
// in the engine's native quoting style. Callers must never build SQL by
// concatenating raw user input; this is the one sanctioned path from a
// table/column name to SQL text.
func QuoteIdentifier(engine config.Engine, ident string) (string, error) {
	if !identifierPattern.MatchString(ident) {
		return "", gwerrors.InvalidParameter("identifier %q is not a valid SQL identifier", ident)
	}
	switch engine {
	case config.EngineMSSQL:
		return "[" + ident + "]", nil
	case config.EnginePostgres:
		return `"` + ident + `"`, nil
	case config.EngineMySQL:
		return "`" + ident + "`", nil
	default:
		return "", gwerrors.InvalidParameter("unsupported engine for identifier quoting")
	}
}

// QualifyIdentifier quotes a dotted identifier (schema.table) component
// by component.
func QualifyIdentifier(engine config.Engine, dotted string) (string, error) {
	parts := strings.Split(dotted, ".")
	quoted := make([]string, 0, len(parts))
	for _, p := range parts {
		q, err := QuoteIdentifier(engine, p)
		if err != nil {
			return "", err
		}
		quoted = append(quoted, q)
	}
	return strings.Join(quoted, "."), nil
}

func unsupportedEngineErr(e config.Engine) error {
	return gwerrors.ConfigError("unsupported database engine %q", e.String())
}
