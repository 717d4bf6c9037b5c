package graph

import (
	"strings"

	"github.com/yungbote/dbdict-backend/internal/domain/schema"
)

// SchemaPlan is the full set of node and edge upserts for one database. It is
// a pure function of the schema and quality inputs.
type SchemaPlan struct {
	Database    string
	Tables      []TableNode
	Columns     []ColumnNode
	Relates     []RelatesEdge
	ForeignKeys []ForeignKeyEdge
	TableStats  []TableStat
	ColumnStats []ColumnStat
}

type TableNode struct {
	FQN        string
	Name       string
	Database   string
	PrimaryKey []string
}

type ColumnNode struct {
	FQN          string
	Name         string
	Type         string
	TableFQN     string
	IsPrimaryKey bool
}

// RelatesEdge runs from the referencing table to the referenced table, one per
// foreign key. Composite keys join their column names with ", ".
type RelatesEdge struct {
	FromFQN        string
	ToFQN          string
	ViaColumn      string
	ReferredColumn string
}

// ForeignKeyEdge links one referencing column to the referenced table.
type ForeignKeyEdge struct {
	ColumnFQN      string
	TableFQN       string
	ReferredColumn string
}

type TableStat struct {
	FQN      string
	RowCount int64
}

// ColumnStat carries every stat key for one column; nil values clear the
// property on the node.
type ColumnStat struct {
	FQN   string
	Props map[string]any
}

// PlanSchemaGraph validates db and derives its graph plan. Quality entries for
// tables or columns missing from db are ignored so stats never create nodes.
// Every column of a measured table is patched, so stats a later run no longer
// reports are removed.
func PlanSchemaGraph(db schema.Database, quality schema.Quality) (SchemaPlan, error) {
	db = db.Clone()
	db.Normalize()
	if err := db.Validate(); err != nil {
		return SchemaPlan{}, err
	}

	plan := SchemaPlan{Database: db.Name}
	for _, t := range db.Tables {
		tfqn := schema.TableFQN(db.Name, t.Name)
		plan.Tables = append(plan.Tables, TableNode{
			FQN:        tfqn,
			Name:       t.Name,
			Database:   db.Name,
			PrimaryKey: append([]string{}, t.PrimaryKey...),
		})
		for _, c := range t.Columns {
			plan.Columns = append(plan.Columns, ColumnNode{
				FQN:          schema.ColumnFQN(db.Name, t.Name, c.Name),
				Name:         c.Name,
				Type:         c.Type,
				TableFQN:     tfqn,
				IsPrimaryKey: c.IsPrimaryKey,
			})
		}
		for _, fk := range t.ForeignKeys {
			refFQN := schema.TableFQN(db.Name, fk.RefTable)
			plan.Relates = append(plan.Relates, RelatesEdge{
				FromFQN:        tfqn,
				ToFQN:          refFQN,
				ViaColumn:      strings.Join(fk.Columns, ", "),
				ReferredColumn: strings.Join(fk.RefColumns, ", "),
			})
			for i, col := range fk.Columns {
				plan.ForeignKeys = append(plan.ForeignKeys, ForeignKeyEdge{
					ColumnFQN:      schema.ColumnFQN(db.Name, t.Name, col),
					TableFQN:       refFQN,
					ReferredColumn: fk.RefColumns[i],
				})
			}
		}

		tq, ok := quality[t.Name]
		if !ok {
			continue
		}
		plan.TableStats = append(plan.TableStats, TableStat{FQN: tfqn, RowCount: tq.RowCount})
		for _, c := range t.Columns {
			plan.ColumnStats = append(plan.ColumnStats, ColumnStat{
				FQN:   schema.ColumnFQN(db.Name, t.Name, c.Name),
				Props: columnStatProps(tq.Columns, c.Name),
			})
		}
	}
	return plan, nil
}

// columnStatProps always carries every stat key. Unmeasured values are nil so
// the patch removes what an earlier run left behind.
func columnStatProps(cols map[string]schema.ColumnQuality, name string) map[string]any {
	props := map[string]any{
		"completeness": nil,
		"statAvg":      nil,
		"statStddev":   nil,
		"statMin":      nil,
		"statMax":      nil,
	}
	cq, ok := cols[name]
	if !ok {
		return props
	}
	props["completeness"] = cq.Completeness()
	putFloat(props, "statAvg", cq.Mean)
	putFloat(props, "statStddev", cq.Stddev)
	putFloat(props, "statMin", cq.Min)
	putFloat(props, "statMax", cq.Max)
	return props
}

func putFloat(m map[string]any, key string, v *float64) {
	if v != nil {
		m[key] = schema.Round4(*v)
	}
}
