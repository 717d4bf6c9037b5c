package steps

import (
	"context"
	"fmt"

	"github.com/yungbote/dbdict-backend/internal/domain/schema"
	"github.com/yungbote/dbdict-backend/internal/ingestion/artifacts"
	"github.com/yungbote/dbdict-backend/internal/ingestion/introspect"
	"github.com/yungbote/dbdict-backend/internal/observability"
	"github.com/yungbote/dbdict-backend/internal/platform/logger"
)

type ExtractDeps struct {
	Log       *logger.Logger
	Source    introspect.Introspector
	Artifacts artifacts.Store
}

type ExtractInput struct {
	// DBName names the artifacts; the extracted schema is stored under it.
	DBName      string
	SkipQuality bool
}

type ExtractOutput struct {
	Schema  schema.Database
	Quality schema.Quality
}

// Extract reads structure and, unless skipped, quality metrics from a live
// connection and stores them as artifacts.
func Extract(ctx context.Context, deps ExtractDeps, in ExtractInput) (out ExtractOutput, err error) {
	defer func() {
		status := observability.OutcomeSuccess
		if err != nil {
			status = observability.OutcomeError
		}
		observability.Current().IncIngest(StageExtract, status)
	}()
	if deps.Source == nil {
		return out, fmt.Errorf("extract: source required")
	}
	if err := artifacts.ValidateName(in.DBName); err != nil {
		return out, newError(ErrValidation, StageExtract, in.DBName, "", err)
	}

	db, err := deps.Source.Extract(ctx)
	if err != nil {
		return out, newError(ErrRetrieval, StageExtract, in.DBName, "", err)
	}
	db.Name = in.DBName
	if err := deps.Artifacts.WriteSchema(in.DBName, db); err != nil {
		return out, writeError(StageExtract, in.DBName, "schema", err)
	}
	if err := deps.Artifacts.WriteCompactSchema(in.DBName, RenderCompactSchema(db)); err != nil {
		return out, writeError(StageExtract, in.DBName, "compact schema", err)
	}
	out.Schema = db

	if !in.SkipQuality {
		q, err := deps.Source.CollectQuality(ctx, db)
		if err != nil {
			return out, newError(ErrRetrieval, StageExtract, in.DBName, "", err)
		}
		if err := deps.Artifacts.WriteQuality(in.DBName, q); err != nil {
			return out, writeError(StageExtract, in.DBName, "quality", err)
		}
		out.Quality = q
	}
	if deps.Log != nil {
		deps.Log.Info("schema extracted",
			"database", in.DBName,
			"dialect", deps.Source.Dialect().Name,
			"tables", len(db.Tables),
			"foreign_keys", db.ForeignKeyCount(),
			"quality", out.Quality != nil,
		)
	}
	return out, nil
}
