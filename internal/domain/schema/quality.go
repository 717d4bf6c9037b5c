package schema

// Quality holds one extraction run's metrics, keyed by table name. A new run
// replaces a table's entry wholesale.
type Quality map[string]TableQuality

type TableQuality struct {
	RowCount int64                    `json:"row_count"`
	Columns  map[string]ColumnQuality `json:"columns"`
}

// ColumnQuality carries numeric stats only for numeric columns.
type ColumnQuality struct {
	NullFraction float64  `json:"null_pct"`
	Mean         *float64 `json:"mean,omitempty"`
	Stddev       *float64 `json:"stddev,omitempty"`
	Min          *float64 `json:"min,omitempty"`
	Max          *float64 `json:"max,omitempty"`
}

// Completeness is the non-null share of a column rounded to four places.
func (c ColumnQuality) Completeness() float64 {
	return Round4(1 - c.NullFraction)
}

func (c ColumnQuality) IsNumeric() bool {
	return c.Mean != nil || c.Min != nil || c.Max != nil || c.Stddev != nil
}

// IncompleteColumns lists columns with any nulls, sorted by name.
func (t TableQuality) IncompleteColumns() []string {
	var out []string
	for _, name := range sortedKeys(t.Columns) {
		if t.Columns[name].NullFraction > 0 {
			out = append(out, name)
		}
	}
	return out
}

// Summary is the generated business description for one table.
type Summary struct {
	Description          string            `json:"description"`
	ColumnDescriptions   map[string]string `json:"column_descriptions"`
	RelationshipsSummary string            `json:"relationships_summary"`
	DataQualityNotes     string            `json:"data_quality_notes"`
}

const SummaryUnavailable = "Summary unavailable."

// FallbackSummary is stored when generation fails for a table.
func FallbackSummary() Summary {
	return Summary{
		Description:          SummaryUnavailable,
		ColumnDescriptions:   map[string]string{},
		RelationshipsSummary: "None",
		DataQualityNotes:     "None",
	}
}

// Summaries maps table name to its summary.
type Summaries map[string]Summary
