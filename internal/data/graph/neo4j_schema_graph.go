package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/yungbote/dbdict-backend/internal/domain/schema"
	"github.com/yungbote/dbdict-backend/internal/platform/logger"
	"github.com/yungbote/dbdict-backend/internal/platform/neo4jdb"
)

// Writer applies statements atomically. *neo4jdb.Client implements it.
type Writer interface {
	Write(ctx context.Context, stmts []neo4jdb.Statement) error
	Exec(ctx context.Context, stmts []string)
}

var schemaConstraints = []string{
	`CREATE CONSTRAINT dbdict_database_name_unique IF NOT EXISTS FOR (d:Database) REQUIRE d.name IS UNIQUE`,
	`CREATE CONSTRAINT dbdict_table_fqn_unique IF NOT EXISTS FOR (t:Table) REQUIRE t.fqn IS UNIQUE`,
	`CREATE CONSTRAINT dbdict_column_fqn_unique IF NOT EXISTS FOR (c:Column) REQUIRE c.fqn IS UNIQUE`,
}

const (
	cypherUpsertDatabase = `
MERGE (d:Database {name: $database})
SET d.updatedAt = $now
`
	cypherUpsertTables = `
UNWIND $tables AS t
MERGE (n:Table {fqn: t.fqn})
SET n.name = t.name, n.database = t.database, n.primaryKey = t.primaryKey
WITH n
MATCH (d:Database {name: $database})
MERGE (d)-[:HAS_TABLE]->(n)
`
	cypherUpsertColumns = `
UNWIND $columns AS c
MERGE (n:Column {fqn: c.fqn})
SET n.name = c.name, n.type = c.type, n.tableFqn = c.tableFqn, n.isPrimaryKey = c.isPrimaryKey
WITH n, c
MATCH (t:Table {fqn: c.tableFqn})
MERGE (t)-[:HAS_COLUMN]->(n)
FOREACH (_ IN CASE WHEN c.isPrimaryKey THEN [1] ELSE [] END |
  MERGE (n)-[:IS_PK_OF]->(t)
)
`
	cypherUpsertRelates = `
UNWIND $relates AS r
MATCH (a:Table {fqn: r.fromFqn})
MATCH (b:Table {fqn: r.toFqn})
MERGE (a)-[e:RELATES_TO {viaColumn: r.viaColumn}]->(b)
SET e.referredColumn = r.referredColumn
`
	cypherUpsertForeignKeys = `
UNWIND $fks AS f
MATCH (c:Column {fqn: f.columnFqn})
MATCH (t:Table {fqn: f.tableFqn})
MERGE (c)-[e:IS_FK_TO {referredColumn: f.referredColumn}]->(t)
`
	cypherPatchTableStats = `
UNWIND $stats AS s
MATCH (t:Table {fqn: s.fqn})
SET t.rowCount = s.rowCount
`
	// += with a null value removes that property.
	cypherPatchColumnStats = `
UNWIND $stats AS s
MATCH (c:Column {fqn: s.fqn})
SET c += s.props
`
)

// SchemaStatements renders a plan as ordered, individually idempotent Cypher
// statements. Stats statements only MATCH, so they never create nodes.
func SchemaStatements(plan SchemaPlan, now time.Time) []neo4jdb.Statement {
	tables := make([]map[string]any, 0, len(plan.Tables))
	for _, t := range plan.Tables {
		tables = append(tables, map[string]any{
			"fqn":        t.FQN,
			"name":       t.Name,
			"database":   t.Database,
			"primaryKey": t.PrimaryKey,
		})
	}
	columns := make([]map[string]any, 0, len(plan.Columns))
	for _, c := range plan.Columns {
		columns = append(columns, map[string]any{
			"fqn":          c.FQN,
			"name":         c.Name,
			"type":         c.Type,
			"tableFqn":     c.TableFQN,
			"isPrimaryKey": c.IsPrimaryKey,
		})
	}
	relates := make([]map[string]any, 0, len(plan.Relates))
	for _, r := range plan.Relates {
		relates = append(relates, map[string]any{
			"fromFqn":        r.FromFQN,
			"toFqn":          r.ToFQN,
			"viaColumn":      r.ViaColumn,
			"referredColumn": r.ReferredColumn,
		})
	}
	fks := make([]map[string]any, 0, len(plan.ForeignKeys))
	for _, f := range plan.ForeignKeys {
		fks = append(fks, map[string]any{
			"columnFqn":      f.ColumnFQN,
			"tableFqn":       f.TableFQN,
			"referredColumn": f.ReferredColumn,
		})
	}

	stmts := []neo4jdb.Statement{
		{Cypher: cypherUpsertDatabase, Params: map[string]any{"database": plan.Database, "now": now.UTC().Format(time.RFC3339Nano)}},
		{Cypher: cypherUpsertTables, Params: map[string]any{"database": plan.Database, "tables": tables}},
		{Cypher: cypherUpsertColumns, Params: map[string]any{"columns": columns}},
		{Cypher: cypherUpsertRelates, Params: map[string]any{"relates": relates}},
		{Cypher: cypherUpsertForeignKeys, Params: map[string]any{"fks": fks}},
	}

	if len(plan.TableStats) > 0 || len(plan.ColumnStats) > 0 {
		tstats := make([]map[string]any, 0, len(plan.TableStats))
		for _, s := range plan.TableStats {
			tstats = append(tstats, map[string]any{"fqn": s.FQN, "rowCount": s.RowCount})
		}
		cstats := make([]map[string]any, 0, len(plan.ColumnStats))
		for _, s := range plan.ColumnStats {
			cstats = append(cstats, map[string]any{"fqn": s.FQN, "props": s.Props})
		}
		stmts = append(stmts,
			neo4jdb.Statement{Cypher: cypherPatchTableStats, Params: map[string]any{"stats": tstats}},
			neo4jdb.Statement{Cypher: cypherPatchColumnStats, Params: map[string]any{"stats": cstats}},
		)
	}
	return stmts
}

// UpsertSchemaGraph merges the database's schema graph in one transaction. A
// failure rolls the whole run back; callers retry the full build.
func UpsertSchemaGraph(
	ctx context.Context,
	w Writer,
	log *logger.Logger,
	db schema.Database,
	quality schema.Quality,
) (SchemaPlan, error) {
	if w == nil {
		return SchemaPlan{}, fmt.Errorf("graph writer required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	plan, err := PlanSchemaGraph(db, quality)
	if err != nil {
		return SchemaPlan{}, err
	}

	// Best-effort schema init.
	w.Exec(ctx, schemaConstraints)

	if err := w.Write(ctx, SchemaStatements(plan, time.Now())); err != nil {
		return SchemaPlan{}, fmt.Errorf("upsert schema graph %q: %w", plan.Database, err)
	}
	if log != nil {
		log.Info("schema graph upserted",
			"database", plan.Database,
			"tables", len(plan.Tables),
			"columns", len(plan.Columns),
			"relationships", len(plan.Relates),
			"with_quality", len(plan.TableStats) > 0,
		)
	}
	return plan, nil
}
