package steps

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/dbdict-backend/internal/domain/schema"
	"github.com/yungbote/dbdict-backend/internal/ingestion/artifacts"
	"github.com/yungbote/dbdict-backend/internal/observability"
	"github.com/yungbote/dbdict-backend/internal/platform/logger"
)

type SummarizeDeps struct {
	Log       *logger.Logger
	AI        Generator
	Artifacts artifacts.Store
	// Parallelism bounds concurrent generator calls. Defaults to 4.
	Parallelism int
}

type SummarizeInput struct {
	DBName string
	// Tables restricts generation to these tables; empty means all. Existing
	// summaries for other tables are kept.
	Tables []string
}

type SummarizeOutput struct {
	Summaries schema.Summaries
	Failed    []string
}

// Summarize generates a business summary per table. A table whose generation
// fails gets the fallback summary instead of failing the run.
func Summarize(ctx context.Context, deps SummarizeDeps, in SummarizeInput) (SummarizeOutput, error) {
	out := SummarizeOutput{}
	if deps.AI == nil {
		return out, fmt.Errorf("summarize: generator required")
	}
	if err := artifacts.ValidateName(in.DBName); err != nil {
		return out, newError(ErrValidation, StageSummarize, in.DBName, "", err)
	}
	db, err := deps.Artifacts.ReadSchema(in.DBName)
	if err != nil {
		return out, artifactError(StageSummarize, in.DBName, err)
	}
	quality, err := deps.Artifacts.ReadQuality(in.DBName)
	if err != nil {
		return out, artifactError(StageSummarize, in.DBName, err)
	}
	existing, err := deps.Artifacts.ReadSummaries(in.DBName)
	if err != nil {
		return out, artifactError(StageSummarize, in.DBName, err)
	}

	want := map[string]bool{}
	for _, t := range in.Tables {
		if db.Table(t) == nil {
			return out, newError(ErrNotFound, StageSummarize, in.DBName, "", fmt.Errorf("table %q", t))
		}
		want[t] = true
	}

	summaries := schema.Summaries{}
	for k, v := range existing {
		if db.Table(k) != nil {
			summaries[k] = v
		}
	}

	limit := deps.Parallelism
	if limit <= 0 {
		limit = 4
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, t := range db.Tables {
		t := t
		if len(want) > 0 && !want[t.Name] {
			continue
		}
		g.Go(func() error {
			s, err := summarizeTable(gctx, deps.AI, t, quality)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if deps.Log != nil {
					deps.Log.Warn("table summary failed", "database", in.DBName, "table", t.Name, "error", err)
				}
				s = schema.FallbackSummary()
				out.Failed = append(out.Failed, t.Name)
			}
			summaries[t.Name] = s
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return out, err
	}

	if err := deps.Artifacts.WriteSummaries(in.DBName, summaries); err != nil {
		observability.Current().IncIngest(StageSummarize, observability.OutcomeError)
		return out, newError(ErrGeneration, StageSummarize, in.DBName, "", err)
	}
	observability.Current().IncIngest(StageSummarize, observability.OutcomeSuccess)
	if deps.Log != nil {
		deps.Log.Info("summaries written", "database", in.DBName, "tables", len(summaries), "failed", len(out.Failed))
	}
	out.Summaries = summaries
	return out, nil
}

func summarizeTable(ctx context.Context, ai Generator, t schema.Table, quality schema.Quality) (schema.Summary, error) {
	system, user := promptTableSummary(tableSummaryContext(t, quality))
	obj, err := ai.GenerateJSON(ctx, system, user, "table_summary_v1", schemaTableSummary())
	if err != nil {
		return schema.Summary{}, err
	}
	s := schema.Summary{
		Description:          strings.TrimSpace(stringField(obj, "description")),
		ColumnDescriptions:   map[string]string{},
		RelationshipsSummary: orNone(strings.TrimSpace(stringField(obj, "relationships_summary")), "None"),
		DataQualityNotes:     orNone(strings.TrimSpace(stringField(obj, "data_quality_notes")), "None"),
	}
	if s.Description == "" {
		return schema.Summary{}, fmt.Errorf("empty description")
	}
	// Column descriptions arrive as [{column, description}]; unknown columns are dropped.
	items, _ := obj["column_descriptions"].([]any)
	for _, it := range items {
		entry, ok := it.(map[string]any)
		if !ok {
			continue
		}
		name := strings.TrimSpace(stringField(entry, "column"))
		if name == "" || t.Column(name) == nil {
			continue
		}
		s.ColumnDescriptions[name] = strings.TrimSpace(stringField(entry, "description"))
	}
	return s, nil
}

// tableSummaryContext is the metadata block the generator summarizes.
func tableSummaryContext(t schema.Table, quality schema.Quality) string {
	lines := []string{
		"Table: " + t.Name,
		"Primary Key: " + orNone(strings.Join(t.PrimaryKey, ", "), "None"),
		"Columns:",
	}
	for _, c := range t.Columns {
		lines = append(lines, fmt.Sprintf("  - %s (%s)", c.Name, c.Type))
	}
	if len(t.ForeignKeys) > 0 {
		lines = append(lines, "Relationships:")
		for _, fk := range t.ForeignKeys {
			lines = append(lines, fmt.Sprintf("  - %s → %s(%s)",
				strings.Join(fk.Columns, ", "), fk.RefTable, strings.Join(fk.RefColumns, ", ")))
		}
	}
	if tq, ok := quality[t.Name]; ok {
		lines = append(lines, fmt.Sprintf("Row Count: %d", tq.RowCount))
		if low := tq.IncompleteColumns(); len(low) > 0 {
			lines = append(lines, "Columns with missing values: "+strings.Join(low, ", "))
		} else {
			lines = append(lines, "All columns fully complete (no nulls).")
		}
	}
	return strings.Join(lines, "\n")
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

func artifactError(stage, db string, err error) error {
	switch {
	case errors.Is(err, artifacts.ErrNotFound):
		return newError(ErrNotFound, stage, db, "", err)
	case errors.Is(err, artifacts.ErrInvalidName):
		return newError(ErrValidation, stage, db, "", err)
	}
	return newError(ErrRetrieval, stage, db, "", err)
}
