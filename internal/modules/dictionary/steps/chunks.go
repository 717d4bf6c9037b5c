package steps

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yungbote/dbdict-backend/internal/domain/schema"
	"github.com/yungbote/dbdict-backend/internal/platform/qdrant"
)

// Chunk is one table's retrievable text with its metadata.
type Chunk struct {
	ID       string
	Table    string
	Text     string
	Metadata map[string]string
}

func (c Chunk) Document() qdrant.Document {
	meta := make(map[string]any, len(c.Metadata))
	for k, v := range c.Metadata {
		meta[k] = v
	}
	return qdrant.Document{ID: c.ID, Text: c.Text, Metadata: meta}
}

// BuildTableChunks renders one chunk per table in table-name order. Output is
// a pure function of the inputs; quality and summaries may be nil.
func BuildTableChunks(db schema.Database, quality schema.Quality, summaries schema.Summaries) []Chunk {
	db = db.Clone()
	db.Normalize()

	out := make([]Chunk, 0, len(db.Tables))
	for _, t := range db.Tables {
		pk := orNone(strings.Join(t.PrimaryKey, ", "), "None")
		lines := []string{
			"TABLE: " + t.Name,
			"Primary Key: " + pk,
			"Columns:",
		}
		for _, c := range t.Columns {
			lines = append(lines, fmt.Sprintf("  - %s (%s)", c.Name, c.Type))
		}

		fkDetails := foreignKeyLines(t)
		if len(fkDetails) > 0 {
			lines = append(lines, "Foreign Keys:")
			for _, d := range fkDetails {
				lines = append(lines, "  - "+d)
			}
		}

		if tq, ok := quality[t.Name]; ok {
			lines = append(lines, fmt.Sprintf("Row Count: %d", tq.RowCount))
			if low := tq.IncompleteColumns(); len(low) > 0 {
				lines = append(lines, "Incomplete columns: "+strings.Join(low, ", "))
			}
		}

		if s, ok := summaries[t.Name]; ok {
			lines = append(lines, "Business Description: "+s.Description)
			if notes := strings.TrimSpace(s.DataQualityNotes); notes != "" && notes != "None" {
				lines = append(lines, "Quality Notes: "+notes)
			}
		}

		out = append(out, Chunk{
			ID:    db.Name + "_" + t.Name,
			Table: t.Name,
			Text:  strings.Join(lines, "\n"),
			Metadata: map[string]string{
				"table":       t.Name,
				"chunk_type":  ChunkTypeTable,
				"primary_key": pk,
				"related_to":  orNone(strings.Join(t.RelatedTables(), ", "), "none"),
				"fk_details":  orNone(strings.Join(fkDetails, "; "), "none"),
			},
		})
	}
	return out
}

// foreignKeyLines renders "child.cols → parent.cols" per foreign key.
func foreignKeyLines(t schema.Table) []string {
	out := make([]string, 0, len(t.ForeignKeys))
	for _, fk := range t.ForeignKeys {
		out = append(out, fmt.Sprintf("%s.%s → %s.%s",
			t.Name, strings.Join(fk.Columns, ", "), fk.RefTable, strings.Join(fk.RefColumns, ", ")))
	}
	return out
}

// RenderCompactSchema is the token-lean schema text used for global context
// and the llm-schema artifact.
func RenderCompactSchema(db schema.Database) string {
	db = db.Clone()
	db.Normalize()

	var lines []string
	for _, t := range db.Tables {
		lines = append(lines, "TABLE "+t.Name)
		for _, c := range t.Columns {
			pk := ""
			if c.IsPrimaryKey {
				pk = " (PK)"
			}
			lines = append(lines, fmt.Sprintf("  - %s%s %s", c.Name, pk, c.Type))
		}
		if fks := foreignKeyLines(t); len(fks) > 0 {
			lines = append(lines, "  RELATIONSHIPS")
			for _, l := range fks {
				lines = append(lines, "    "+l)
			}
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// RenderSummaries renders table summaries as markdown in table-name order.
func RenderSummaries(summaries schema.Summaries) string {
	if len(summaries) == 0 {
		return ""
	}
	names := make([]string, 0, len(summaries))
	for name := range summaries {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := []string{"# AI-Generated Table Summaries", ""}
	for _, name := range names {
		s := summaries[name]
		lines = append(lines, "## "+name, "", s.Description, "")
		if len(s.ColumnDescriptions) > 0 {
			lines = append(lines, "### Column Descriptions", "")
			cols := make([]string, 0, len(s.ColumnDescriptions))
			for c := range s.ColumnDescriptions {
				cols = append(cols, c)
			}
			sort.Strings(cols)
			for _, c := range cols {
				lines = append(lines, fmt.Sprintf("- **%s**: %s", c, s.ColumnDescriptions[c]))
			}
		}
		if r := strings.TrimSpace(s.RelationshipsSummary); r != "" && r != "None" {
			lines = append(lines, "", "### Relationships", r)
		}
		if q := strings.TrimSpace(s.DataQualityNotes); q != "" && q != "None" {
			lines = append(lines, "", "### Data Quality Notes", q)
		}
		lines = append(lines, "", "---", "")
	}
	return strings.Join(lines, "\n")
}

// BuildGlobalContext joins the compact schema with every table summary.
func BuildGlobalContext(db schema.Database, summaries schema.Summaries) string {
	return "=== SCHEMA ===\n" + RenderCompactSchema(db) + "\n\n=== AI SUMMARIES ===\n" + RenderSummaries(summaries)
}

func orNone(s, none string) string {
	if strings.TrimSpace(s) == "" {
		return none
	}
	return s
}
