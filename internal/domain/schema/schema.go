package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Database is the normalized structure of one documented database. Tables are
// kept sorted by name so every derived artifact is deterministic.
type Database struct {
	Name   string
	Tables []Table
}

type Table struct {
	Name        string
	Columns     []Column
	PrimaryKey  []string
	ForeignKeys []ForeignKey
}

type Column struct {
	Name         string
	Type         string
	IsPrimaryKey bool
	IsForeignKey bool
}

// ForeignKey columns are index-aligned: Columns[i] references RefColumns[i].
type ForeignKey struct {
	Columns    []string
	RefTable   string
	RefColumns []string
}

func TableFQN(database, table string) string {
	return database + "." + table
}

func ColumnFQN(database, table, column string) string {
	return database + "." + table + "." + column
}

// Table returns the named table, or nil.
func (d *Database) Table(name string) *Table {
	if d == nil {
		return nil
	}
	for i := range d.Tables {
		if d.Tables[i].Name == name {
			return &d.Tables[i]
		}
	}
	return nil
}

func (d *Database) TableNames() []string {
	if d == nil {
		return nil
	}
	out := make([]string, 0, len(d.Tables))
	for _, t := range d.Tables {
		out = append(out, t.Name)
	}
	return out
}

// ForeignKeyCount is the total number of foreign keys across all tables.
func (d *Database) ForeignKeyCount() int {
	n := 0
	for _, t := range d.Tables {
		n += len(t.ForeignKeys)
	}
	return n
}

func (t *Table) Column(name string) *Column {
	if t == nil {
		return nil
	}
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// RelatedTables lists referenced tables in foreign-key order without repeats.
func (t *Table) RelatedTables() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, fk := range t.ForeignKeys {
		if _, ok := seen[fk.RefTable]; ok {
			continue
		}
		seen[fk.RefTable] = struct{}{}
		out = append(out, fk.RefTable)
	}
	return out
}

// Clone returns a copy that shares no slices with d.
func (d Database) Clone() Database {
	out := Database{Name: d.Name, Tables: make([]Table, len(d.Tables))}
	for i, t := range d.Tables {
		ct := Table{
			Name:       t.Name,
			Columns:    append([]Column(nil), t.Columns...),
			PrimaryKey: append([]string(nil), t.PrimaryKey...),
		}
		for _, fk := range t.ForeignKeys {
			ct.ForeignKeys = append(ct.ForeignKeys, ForeignKey{
				Columns:    append([]string(nil), fk.Columns...),
				RefTable:   fk.RefTable,
				RefColumns: append([]string(nil), fk.RefColumns...),
			})
		}
		out.Tables[i] = ct
	}
	return out
}

// Normalize sorts tables by name and derives the per-column key flags from the
// table's primary key and foreign keys.
func (d *Database) Normalize() {
	sort.SliceStable(d.Tables, func(i, j int) bool { return d.Tables[i].Name < d.Tables[j].Name })
	for ti := range d.Tables {
		t := &d.Tables[ti]
		pk := toSet(t.PrimaryKey)
		fk := map[string]struct{}{}
		for _, f := range t.ForeignKeys {
			for _, c := range f.Columns {
				fk[c] = struct{}{}
			}
		}
		for ci := range t.Columns {
			_, t.Columns[ci].IsPrimaryKey = pk[t.Columns[ci].Name]
			_, t.Columns[ci].IsForeignKey = fk[t.Columns[ci].Name]
		}
	}
}

// ValidationError lists every structural inconsistency found in a schema.
type ValidationError struct {
	Database string
	Problems []string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Problems) == 0 {
		return "schema invalid"
	}
	return fmt.Sprintf("schema %q invalid: %s", e.Database, strings.Join(e.Problems, "; "))
}

// Validate reports problems instead of repairing them: unknown key columns,
// dangling references and misaligned composite keys.
func (d *Database) Validate() error {
	if d == nil {
		return &ValidationError{Problems: []string{"nil schema"}}
	}
	var problems []string
	if strings.TrimSpace(d.Name) == "" {
		problems = append(problems, "database name is empty")
	}
	tables := map[string]*Table{}
	for i := range d.Tables {
		t := &d.Tables[i]
		if strings.TrimSpace(t.Name) == "" {
			problems = append(problems, fmt.Sprintf("table #%d has no name", i))
			continue
		}
		if _, dup := tables[t.Name]; dup {
			problems = append(problems, fmt.Sprintf("duplicate table %s", t.Name))
		}
		tables[t.Name] = t
	}
	for i := range d.Tables {
		t := &d.Tables[i]
		cols := map[string]struct{}{}
		for _, c := range t.Columns {
			if _, dup := cols[c.Name]; dup {
				problems = append(problems, fmt.Sprintf("%s: duplicate column %s", t.Name, c.Name))
			}
			cols[c.Name] = struct{}{}
		}
		for _, pk := range t.PrimaryKey {
			if _, ok := cols[pk]; !ok {
				problems = append(problems, fmt.Sprintf("%s: primary key column %s does not exist", t.Name, pk))
			}
		}
		for _, fk := range t.ForeignKeys {
			label := fmt.Sprintf("%s(%s) -> %s(%s)", t.Name, strings.Join(fk.Columns, ","), fk.RefTable, strings.Join(fk.RefColumns, ","))
			if len(fk.Columns) == 0 {
				problems = append(problems, label+": no local columns")
			}
			if len(fk.Columns) != len(fk.RefColumns) {
				problems = append(problems, label+": column count mismatch")
			}
			for _, c := range fk.Columns {
				if _, ok := cols[c]; !ok {
					problems = append(problems, fmt.Sprintf("%s: local column %s does not exist", label, c))
				}
			}
			ref, ok := tables[fk.RefTable]
			if !ok {
				problems = append(problems, label+": referenced table does not exist")
				continue
			}
			for _, rc := range fk.RefColumns {
				if ref.Column(rc) == nil {
					problems = append(problems, fmt.Sprintf("%s: referenced column %s does not exist", label, rc))
				}
			}
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Database: d.Name, Problems: problems}
	}
	return nil
}

func toSet(in []string) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for _, v := range in {
		out[v] = struct{}{}
	}
	return out
}

// ---- artifact codec ----
//
// On disk a schema is {"database": ..., "tables": {name: {...}}}, which keeps
// artifacts compatible with the extraction tooling that produced them.

type fileSchema struct {
	Database string               `json:"database"`
	Tables   map[string]fileTable `json:"tables"`
}

type fileTable struct {
	Columns     []fileColumn     `json:"columns"`
	PrimaryKey  []string         `json:"primary_key"`
	ForeignKeys []fileForeignKey `json:"foreign_keys"`
}

type fileColumn struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type fileForeignKey struct {
	Column          []string `json:"column"`
	ReferredTable   string   `json:"referred_table"`
	ReferredColumns []string `json:"referred_columns"`
}

func (d Database) MarshalJSON() ([]byte, error) {
	out := fileSchema{Database: d.Name, Tables: make(map[string]fileTable, len(d.Tables))}
	for _, t := range d.Tables {
		ft := fileTable{
			Columns:     make([]fileColumn, 0, len(t.Columns)),
			PrimaryKey:  nonNil(t.PrimaryKey),
			ForeignKeys: make([]fileForeignKey, 0, len(t.ForeignKeys)),
		}
		for _, c := range t.Columns {
			ft.Columns = append(ft.Columns, fileColumn{Name: c.Name, Type: c.Type})
		}
		for _, fk := range t.ForeignKeys {
			ft.ForeignKeys = append(ft.ForeignKeys, fileForeignKey{
				Column:          nonNil(fk.Columns),
				ReferredTable:   fk.RefTable,
				ReferredColumns: nonNil(fk.RefColumns),
			})
		}
		out.Tables[t.Name] = ft
	}
	return json.Marshal(out)
}

func (d *Database) UnmarshalJSON(b []byte) error {
	var in fileSchema
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	d.Name = in.Database
	d.Tables = make([]Table, 0, len(in.Tables))
	for name, ft := range in.Tables {
		t := Table{Name: name, PrimaryKey: ft.PrimaryKey}
		for _, c := range ft.Columns {
			t.Columns = append(t.Columns, Column{Name: c.Name, Type: c.Type})
		}
		for _, fk := range ft.ForeignKeys {
			t.ForeignKeys = append(t.ForeignKeys, ForeignKey{
				Columns:    fk.Column,
				RefTable:   fk.ReferredTable,
				RefColumns: fk.ReferredColumns,
			})
		}
		d.Tables = append(d.Tables, t)
	}
	d.Normalize()
	return nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
