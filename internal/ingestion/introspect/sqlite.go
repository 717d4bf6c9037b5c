package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/yungbote/dbdict-backend/internal/domain/schema"
	"github.com/yungbote/dbdict-backend/internal/platform/logger"
)

type SQLite struct {
	log         *logger.Logger
	db          *sql.DB
	name        string
	parallelism int
}

// OpenSQLite opens path read-only. name becomes the schema's database name.
func OpenSQLite(log *logger.Logger, name, path string, parallelism int) (*SQLite, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("sqlite path required")
	}
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return &SQLite{
		log:         log.With("service", "SQLiteIntrospector", "database", name),
		db:          db,
		name:        name,
		parallelism: parallelism,
	}, nil
}

func (s *SQLite) Dialect() DialectCapabilities { return SQLiteDialect }

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Ping(ctx context.Context) (time.Duration, error) { return ping(ctx, s) }

func (s *SQLite) firstRow(ctx context.Context, query string) ([]any, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, sql.ErrNoRows
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	return vals, rows.Err()
}

func (s *SQLite) Extract(ctx context.Context) (schema.Database, error) {
	names, err := s.tableNames(ctx)
	if err != nil {
		return schema.Database{}, err
	}
	out := schema.Database{Name: s.name}
	for _, name := range names {
		t, err := s.table(ctx, name)
		if err != nil {
			return schema.Database{}, fmt.Errorf("introspect %s: %w", name, err)
		}
		out.Tables = append(out.Tables, t)
	}
	resolveImplicitRefColumns(&out)
	out.Normalize()
	if err := out.Validate(); err != nil {
		return schema.Database{}, err
	}
	s.log.Info("schema extracted", "tables", len(out.Tables), "foreign_keys", out.ForeignKeyCount())
	return out, nil
}

func (s *SQLite) CollectQuality(ctx context.Context, db schema.Database) (schema.Quality, error) {
	db = db.Clone()
	db.Normalize()
	return collectQuality(ctx, s, SQLiteDialect, SQLiteDialect.Quote, db, s.parallelism)
}

func (s *SQLite) tableNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *SQLite) table(ctx context.Context, name string) (schema.Table, error) {
	t := schema.Table{Name: name}
	quoted := SQLiteDialect.Quote(name)

	// cid, name, type, notnull, dflt_value, pk
	rows, err := s.db.QueryContext(ctx, "PRAGMA table_info("+quoted+")")
	if err != nil {
		return t, err
	}
	type pkCol struct {
		pos  int
		name string
	}
	var pks []pkCol
	for rows.Next() {
		var (
			cid, notNull, pk int
			colName, typ     string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &colName, &typ, &notNull, &dflt, &pk); err != nil {
			rows.Close()
			return t, err
		}
		t.Columns = append(t.Columns, schema.Column{Name: colName, Type: typ})
		if pk > 0 {
			pks = append(pks, pkCol{pos: pk, name: colName})
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return t, err
	}
	rows.Close()
	sort.Slice(pks, func(i, j int) bool { return pks[i].pos < pks[j].pos })
	for _, p := range pks {
		t.PrimaryKey = append(t.PrimaryKey, p.name)
	}

	// id, seq, table, from, to, on_update, on_delete, match
	rows, err = s.db.QueryContext(ctx, "PRAGMA foreign_key_list("+quoted+")")
	if err != nil {
		return t, err
	}
	defer rows.Close()
	byID := map[int]*schema.ForeignKey{}
	var order []int
	for rows.Next() {
		var (
			id, seq                      int
			refTable, from               string
			to                           sql.NullString
			onUpdate, onDelete, matchStr string
		)
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &matchStr); err != nil {
			return t, err
		}
		fk, ok := byID[id]
		if !ok {
			fk = &schema.ForeignKey{RefTable: refTable}
			byID[id] = fk
			order = append(order, id)
		}
		fk.Columns = append(fk.Columns, from)
		fk.RefColumns = append(fk.RefColumns, to.String)
	}
	if err := rows.Err(); err != nil {
		return t, err
	}
	sort.Ints(order)
	for _, id := range order {
		t.ForeignKeys = append(t.ForeignKeys, *byID[id])
	}
	return t, nil
}

// resolveImplicitRefColumns fills references declared without target columns
// ("REFERENCES parent") with the parent's primary key.
func resolveImplicitRefColumns(db *schema.Database) {
	for ti := range db.Tables {
		for fi := range db.Tables[ti].ForeignKeys {
			fk := &db.Tables[ti].ForeignKeys[fi]
			parent := db.Table(fk.RefTable)
			if parent == nil {
				continue
			}
			for i, rc := range fk.RefColumns {
				if rc == "" && i < len(parent.PrimaryKey) {
					fk.RefColumns[i] = parent.PrimaryKey[i]
				}
			}
		}
	}
}
