package steps

import (
	"context"
	"fmt"

	"github.com/yungbote/dbdict-backend/internal/ingestion/artifacts"
	"github.com/yungbote/dbdict-backend/internal/observability"
	"github.com/yungbote/dbdict-backend/internal/platform/logger"
	"github.com/yungbote/dbdict-backend/internal/platform/qdrant"
)

type IngestDeps struct {
	Log       *logger.Logger
	Index     Index
	Artifacts artifacts.Store
}

type IngestInput struct {
	DBName string
}

type IngestOutput struct {
	Chunks int
	Tables []string
}

// Ingest rebuilds the database's chunk collection and its derived text
// artifacts from the stored schema, quality and summaries.
func Ingest(ctx context.Context, deps IngestDeps, in IngestInput) (out IngestOutput, err error) {
	defer func() {
		status := observability.OutcomeSuccess
		if err != nil {
			status = observability.OutcomeError
		}
		observability.Current().IncIngest(StageIngest, status)
	}()
	if deps.Index == nil {
		return out, fmt.Errorf("ingest: index required")
	}
	if err := artifacts.ValidateName(in.DBName); err != nil {
		return out, newError(ErrValidation, StageIngest, in.DBName, "", err)
	}

	db, err := deps.Artifacts.ReadSchema(in.DBName)
	if err != nil {
		return out, artifactError(StageIngest, in.DBName, err)
	}
	if err := db.Validate(); err != nil {
		return out, newError(ErrValidation, StageIngest, in.DBName, "", err)
	}
	quality, err := deps.Artifacts.ReadQuality(in.DBName)
	if err != nil {
		return out, artifactError(StageIngest, in.DBName, err)
	}
	summaries, err := deps.Artifacts.ReadSummaries(in.DBName)
	if err != nil {
		return out, artifactError(StageIngest, in.DBName, err)
	}

	chunks := BuildTableChunks(db, quality, summaries)
	docs := make([]qdrant.Document, 0, len(chunks))
	for _, c := range chunks {
		docs = append(docs, c.Document())
		out.Tables = append(out.Tables, c.Table)
	}
	if err := deps.Index.Replace(ctx, in.DBName, docs); err != nil {
		return out, newError(ErrRetrieval, StageIngest, in.DBName, "", err)
	}
	out.Chunks = len(docs)

	// Text artifacts follow the index so a failed replace leaves them matching
	// the chunks still stored.
	if err := deps.Artifacts.WriteCompactSchema(in.DBName, RenderCompactSchema(db)); err != nil {
		return out, writeError(StageIngest, in.DBName, "compact schema", err)
	}
	if err := deps.Artifacts.WriteGlobalContext(in.DBName, BuildGlobalContext(db, summaries)); err != nil {
		return out, writeError(StageIngest, in.DBName, "global context", err)
	}
	if deps.Log != nil {
		deps.Log.Info("database ingested", "database", in.DBName, "chunks", out.Chunks, "summaries", len(summaries))
	}
	return out, nil
}
