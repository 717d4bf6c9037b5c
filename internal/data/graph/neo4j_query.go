package graph

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Reader runs read-only queries. *neo4jdb.Client implements it.
type Reader interface {
	Read(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)
}

const defaultRowLimit = 50

// SchemaDescription documents the labels, properties and relationships that
// UpsertSchemaGraph writes. Query generation prompts embed it verbatim.
const SchemaDescription = `Node labels and properties:
  (:Database) { name, updatedAt }
  (:Table)    { fqn, name, database, primaryKey, rowCount }
  (:Column)   { fqn, name, type, tableFqn, isPrimaryKey,
                completeness, statMin, statMax, statAvg, statStddev }

Relationship types:
  (:Database)-[:HAS_TABLE]->(:Table)
  (:Table)-[:HAS_COLUMN]->(:Column)
  (:Table)-[:RELATES_TO { viaColumn, referredColumn }]->(:Table)
  (:Column)-[:IS_PK_OF]->(:Table)
  (:Column)-[:IS_FK_TO { referredColumn }]->(:Table)

RELATES_TO always points from the referencing table to the referenced table.`

var (
	ErrWriteQuery = errors.New("graph: query contains a write clause")
	ErrEmptyQuery = errors.New("graph: empty query")

	writeClause   = regexp.MustCompile(`(?i)\b(CREATE|MERGE|DELETE|DETACH|SET|REMOVE|DROP|FOREACH|LOAD\s+CSV|CALL)\b`)
	stringLiteral = regexp.MustCompile(`'(?:[^'\\]|\\.)*'|"(?:[^"\\]|\\.)*"`)
	limitClause   = regexp.MustCompile(`(?i)\bLIMIT\s+\d+\s*$`)
	codeFence     = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
)

// CleanQuery strips markdown fences and a trailing semicolon from generated
// Cypher, rejects anything that could write, and caps unbounded queries.
func CleanQuery(raw string) (string, error) {
	q := strings.TrimSpace(raw)
	if m := codeFence.FindStringSubmatch(q); m != nil {
		q = strings.TrimSpace(m[1])
	}
	q = strings.TrimSpace(strings.TrimSuffix(q, ";"))
	if q == "" {
		return "", ErrEmptyQuery
	}
	if writeClause.MatchString(stringLiteral.ReplaceAllString(q, "''")) {
		return "", ErrWriteQuery
	}
	if !limitClause.MatchString(q) {
		q = fmt.Sprintf("%s\nLIMIT %d", q, defaultRowLimit)
	}
	return q, nil
}

// RunReadOnlyQuery validates and executes a generated query.
func RunReadOnlyQuery(ctx context.Context, r Reader, raw string, params map[string]any) ([]map[string]any, error) {
	if r == nil {
		return nil, fmt.Errorf("graph reader required")
	}
	q, err := CleanQuery(raw)
	if err != nil {
		return nil, err
	}
	return r.Read(ctx, q, params)
}

// FormatRows renders rows one per line as "key: value" pairs in key order.
func FormatRows(rows []map[string]any) string {
	var b strings.Builder
	for i, row := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		keys := make([]string, 0, len(row))
		for k := range row {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %s", k, formatValue(row[k])))
		}
		b.WriteString("- ")
		b.WriteString(strings.Join(parts, ", "))
	}
	return b.String()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case []any:
		parts := make([]string, 0, len(x))
		for _, e := range x {
			parts = append(parts, formatValue(e))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprint(x)
	}
}
