package introspect

import (
	"strings"
)

// DialectCapabilities is chosen once per connection. Quality and extraction
// code branch on these flags, never on the dialect name.
type DialectCapabilities struct {
	Name string
	// QuoteStyle is the identifier quote character.
	QuoteStyle byte
	// SupportsStddev means STDDEV_POP is available. Otherwise stddev is
	// derived from a variance query.
	SupportsStddev bool
	// FloatCast is appended to aggregate expressions so drivers return float8.
	FloatCast string
	// NumericTypes are matched exactly, or as substrings when NumericAffinity
	// is set (SQLite's type affinity rules).
	NumericTypes    []string
	NumericAffinity bool
}

var (
	SQLiteDialect = DialectCapabilities{
		Name:            "sqlite",
		QuoteStyle:      '"',
		SupportsStddev:  false,
		NumericTypes:    []string{"int", "real", "numeric", "float", "double", "decimal"},
		NumericAffinity: true,
	}
	PostgresDialect = DialectCapabilities{
		Name:           "postgres",
		QuoteStyle:     '"',
		SupportsStddev: true,
		FloatCast:      "::float8",
		NumericTypes: []string{
			"smallint", "integer", "bigint", "numeric", "decimal",
			"real", "double precision",
		},
	}
)

// DialectFor resolves a configured dialect name.
func DialectFor(name string) (DialectCapabilities, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlite", "sqlite3":
		return SQLiteDialect, true
	case "postgres", "postgresql", "pg":
		return PostgresDialect, true
	default:
		return DialectCapabilities{}, false
	}
}

// Quote renders ident as a quoted identifier, doubling embedded quotes.
func (d DialectCapabilities) Quote(ident string) string {
	q := string(d.QuoteStyle)
	return q + strings.ReplaceAll(ident, q, q+q) + q
}

func (d DialectCapabilities) IsNumeric(declaredType string) bool {
	t := strings.ToLower(strings.TrimSpace(declaredType))
	if t == "" {
		return false
	}
	for _, n := range d.NumericTypes {
		if d.NumericAffinity && strings.Contains(t, n) {
			return true
		}
		if t == n {
			return true
		}
	}
	return false
}
