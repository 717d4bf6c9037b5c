package steps

import (
	"context"
	"errors"
	"fmt"

	"github.com/yungbote/dbdict-backend/internal/data/graph"
	"github.com/yungbote/dbdict-backend/internal/domain/schema"
	"github.com/yungbote/dbdict-backend/internal/ingestion/artifacts"
	"github.com/yungbote/dbdict-backend/internal/observability"
	"github.com/yungbote/dbdict-backend/internal/platform/logger"
)

type BuildGraphDeps struct {
	Log       *logger.Logger
	Graph     graph.Writer
	Artifacts artifacts.Store
}

type BuildGraphInput struct {
	DBName string
}

type BuildGraphOutput struct {
	Tables        int
	Columns       int
	Relationships int
	WithQuality   bool
}

// BuildGraph merges the stored schema, and quality when present, into the
// knowledge graph.
func BuildGraph(ctx context.Context, deps BuildGraphDeps, in BuildGraphInput) (out BuildGraphOutput, err error) {
	defer func() {
		status := observability.OutcomeSuccess
		if err != nil {
			status = observability.OutcomeError
		}
		observability.Current().IncIngest(StageGraph, status)
	}()
	if deps.Graph == nil {
		return out, fmt.Errorf("build graph: graph writer required")
	}
	if err := artifacts.ValidateName(in.DBName); err != nil {
		return out, newError(ErrValidation, StageGraph, in.DBName, "", err)
	}
	db, err := deps.Artifacts.ReadSchema(in.DBName)
	if err != nil {
		return out, artifactError(StageGraph, in.DBName, err)
	}
	quality, err := deps.Artifacts.ReadQuality(in.DBName)
	if err != nil {
		return out, artifactError(StageGraph, in.DBName, err)
	}

	plan, err := graph.UpsertSchemaGraph(ctx, deps.Graph, deps.Log, db, quality)
	if err != nil {
		var verr *schema.ValidationError
		if errors.As(err, &verr) {
			return out, newError(ErrValidation, StageGraph, in.DBName, "", err)
		}
		return out, newError(ErrRetrieval, StageGraph, in.DBName, "", err)
	}
	return BuildGraphOutput{
		Tables:        len(plan.Tables),
		Columns:       len(plan.Columns),
		Relationships: len(plan.Relates),
		WithQuality:   len(plan.TableStats) > 0,
	}, nil
}
