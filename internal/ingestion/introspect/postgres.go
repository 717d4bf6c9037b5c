package introspect

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yungbote/dbdict-backend/internal/domain/schema"
	"github.com/yungbote/dbdict-backend/internal/platform/logger"
)

type Postgres struct {
	log         *logger.Logger
	pool        *pgxpool.Pool
	name        string
	schemaName  string
	parallelism int
}

func OpenPostgres(ctx context.Context, log *logger.Logger, name, dsn, schemaName string, parallelism int) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if strings.TrimSpace(schemaName) == "" {
		schemaName = "public"
	}
	return &Postgres{
		log:         log.With("service", "PostgresIntrospector", "database", name),
		pool:        pool,
		name:        name,
		schemaName:  schemaName,
		parallelism: parallelism,
	}, nil
}

func (p *Postgres) Dialect() DialectCapabilities { return PostgresDialect }

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) Ping(ctx context.Context) (time.Duration, error) { return ping(ctx, p) }

func (p *Postgres) firstRow(ctx context.Context, query string) ([]any, error) {
	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, pgx.ErrNoRows
	}
	return rows.Values()
}

func (p *Postgres) tableRef(table string) string {
	return pgx.Identifier{p.schemaName, table}.Sanitize()
}

const (
	pgTablesQuery = `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = $1 AND table_type = 'BASE TABLE'
ORDER BY table_name`

	pgColumnsQuery = `
SELECT table_name, column_name, data_type
FROM information_schema.columns
WHERE table_schema = $1
ORDER BY table_name, ordinal_position`

	pgPrimaryKeysQuery = `
SELECT tc.table_name, kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name
 AND tc.table_schema = kcu.table_schema
WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = $1
ORDER BY tc.table_name, kcu.ordinal_position`

	// pg_constraint keeps composite key columns index-aligned.
	pgForeignKeysQuery = `
SELECT cl.relname, rf.relname,
       array_agg(a.attname::text ORDER BY k.ord),
       array_agg(af.attname::text ORDER BY k.ord)
FROM pg_constraint c
JOIN pg_class cl ON cl.oid = c.conrelid
JOIN pg_namespace n ON n.oid = cl.relnamespace
JOIN pg_class rf ON rf.oid = c.confrelid
CROSS JOIN LATERAL unnest(c.conkey, c.confkey) WITH ORDINALITY AS k(attnum, refattnum, ord)
JOIN pg_attribute a ON a.attrelid = c.conrelid AND a.attnum = k.attnum
JOIN pg_attribute af ON af.attrelid = c.confrelid AND af.attnum = k.refattnum
WHERE c.contype = 'f' AND n.nspname = $1
GROUP BY c.conname, cl.relname, rf.relname
ORDER BY cl.relname, c.conname`
)

func (p *Postgres) Extract(ctx context.Context) (schema.Database, error) {
	out := schema.Database{Name: p.name}
	index := map[string]int{}

	rows, err := p.pool.Query(ctx, pgTablesQuery, p.schemaName)
	if err != nil {
		return out, fmt.Errorf("list tables: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return out, fmt.Errorf("list tables: %w", err)
	}
	for _, n := range names {
		index[n] = len(out.Tables)
		out.Tables = append(out.Tables, schema.Table{Name: n})
	}

	rows, err = p.pool.Query(ctx, pgColumnsQuery, p.schemaName)
	if err != nil {
		return out, fmt.Errorf("list columns: %w", err)
	}
	var table, col, typ string
	_, err = pgx.ForEachRow(rows, []any{&table, &col, &typ}, func() error {
		if i, ok := index[table]; ok {
			out.Tables[i].Columns = append(out.Tables[i].Columns, schema.Column{Name: col, Type: typ})
		}
		return nil
	})
	if err != nil {
		return out, fmt.Errorf("list columns: %w", err)
	}

	rows, err = p.pool.Query(ctx, pgPrimaryKeysQuery, p.schemaName)
	if err != nil {
		return out, fmt.Errorf("list primary keys: %w", err)
	}
	_, err = pgx.ForEachRow(rows, []any{&table, &col}, func() error {
		if i, ok := index[table]; ok {
			out.Tables[i].PrimaryKey = append(out.Tables[i].PrimaryKey, col)
		}
		return nil
	})
	if err != nil {
		return out, fmt.Errorf("list primary keys: %w", err)
	}

	rows, err = p.pool.Query(ctx, pgForeignKeysQuery, p.schemaName)
	if err != nil {
		return out, fmt.Errorf("list foreign keys: %w", err)
	}
	var (
		refTable           string
		localCols, refCols []string
	)
	_, err = pgx.ForEachRow(rows, []any{&table, &refTable, &localCols, &refCols}, func() error {
		if i, ok := index[table]; ok {
			out.Tables[i].ForeignKeys = append(out.Tables[i].ForeignKeys, schema.ForeignKey{
				Columns:    append([]string(nil), localCols...),
				RefTable:   refTable,
				RefColumns: append([]string(nil), refCols...),
			})
		}
		return nil
	})
	if err != nil {
		return out, fmt.Errorf("list foreign keys: %w", err)
	}

	out.Normalize()
	if err := out.Validate(); err != nil {
		return schema.Database{}, err
	}
	p.log.Info("schema extracted", "tables", len(out.Tables), "foreign_keys", out.ForeignKeyCount())
	return out, nil
}

func (p *Postgres) CollectQuality(ctx context.Context, db schema.Database) (schema.Quality, error) {
	db = db.Clone()
	db.Normalize()
	return collectQuality(ctx, p, PostgresDialect, p.tableRef, db, p.parallelism)
}
