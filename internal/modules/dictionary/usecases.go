package dictionary

import (
	"context"
	"time"

	"github.com/yungbote/dbdict-backend/internal/data/graph"
	"github.com/yungbote/dbdict-backend/internal/data/sessions"
	"github.com/yungbote/dbdict-backend/internal/ingestion/artifacts"
	"github.com/yungbote/dbdict-backend/internal/ingestion/introspect"
	"github.com/yungbote/dbdict-backend/internal/modules/dictionary/steps"
	"github.com/yungbote/dbdict-backend/internal/platform/logger"
)

// GraphStore reads and writes the schema knowledge graph. *neo4jdb.Client
// satisfies it.
type GraphStore interface {
	graph.Reader
	graph.Writer
}

type UsecasesDeps struct {
	Log *logger.Logger

	AI        steps.Generator
	Index     steps.Index
	Graph     GraphStore
	Sessions  sessions.Store
	Artifacts artifacts.Store

	AnswerTimeout        time.Duration
	RelationalSummarize  bool
	SummarizeParallelism int
}

type Usecases struct {
	deps UsecasesDeps
}

func New(deps UsecasesDeps) Usecases { return Usecases{deps: deps} }

func (u Usecases) WithLog(log *logger.Logger) Usecases {
	u.deps.Log = log
	return u
}

func (u Usecases) WithSessions(store sessions.Store) Usecases {
	u.deps.Sessions = store
	return u
}

type (
	Intent = steps.Intent

	AnswerInput  = steps.AnswerInput
	AnswerOutput = steps.AnswerOutput

	ChatInput  = steps.ChatInput
	ChatOutput = steps.ChatOutput

	IngestInput  = steps.IngestInput
	IngestOutput = steps.IngestOutput

	BuildGraphInput  = steps.BuildGraphInput
	BuildGraphOutput = steps.BuildGraphOutput

	SummarizeInput  = steps.SummarizeInput
	SummarizeOutput = steps.SummarizeOutput

	ExtractInput  = steps.ExtractInput
	ExtractOutput = steps.ExtractOutput

	Error = steps.Error
)

var (
	ErrValidation     = steps.ErrValidation
	ErrNotFound       = steps.ErrNotFound
	ErrClassification = steps.ErrClassification
	ErrRetrieval      = steps.ErrRetrieval
	ErrGeneration     = steps.ErrGeneration
)

func (u Usecases) answerDeps() steps.AnswerDeps {
	d := steps.AnswerDeps{
		Log:                 u.deps.Log,
		AI:                  u.deps.AI,
		Index:               u.deps.Index,
		Artifacts:           u.deps.Artifacts,
		Timeout:             u.deps.AnswerTimeout,
		RelationalSummarize: u.deps.RelationalSummarize,
	}
	// Keep a nil interface when no graph is configured so retrieval skips it.
	if u.deps.Graph != nil {
		d.Graph = u.deps.Graph
	}
	return d
}

func (u Usecases) Answer(ctx context.Context, in AnswerInput) (AnswerOutput, error) {
	return steps.Answer(ctx, u.answerDeps(), steps.AnswerInput(in))
}

func (u Usecases) Chat(ctx context.Context, in ChatInput) (ChatOutput, error) {
	return steps.Chat(ctx, steps.ChatDeps{
		Answer:   u.answerDeps(),
		Sessions: u.deps.Sessions,
	}, steps.ChatInput(in))
}

func (u Usecases) NewSession(ctx context.Context) (sessions.Session, error) {
	return steps.NewSession(ctx, u.deps.Sessions)
}

func (u Usecases) History(ctx context.Context, sessionID string) (sessions.Session, error) {
	return steps.History(ctx, u.deps.Sessions, sessionID)
}

func (u Usecases) ClearSession(ctx context.Context, sessionID string) error {
	return steps.ClearSession(ctx, u.deps.Sessions, sessionID)
}

func (u Usecases) ListDatabases(ctx context.Context) ([]string, error) {
	return steps.ListDatabases(ctx, u.deps.Index)
}

func (u Usecases) Ingest(ctx context.Context, in IngestInput) (IngestOutput, error) {
	return steps.Ingest(ctx, steps.IngestDeps{
		Log:       u.deps.Log,
		Index:     u.deps.Index,
		Artifacts: u.deps.Artifacts,
	}, steps.IngestInput(in))
}

func (u Usecases) BuildGraph(ctx context.Context, in BuildGraphInput) (BuildGraphOutput, error) {
	d := steps.BuildGraphDeps{
		Log:       u.deps.Log,
		Artifacts: u.deps.Artifacts,
	}
	if u.deps.Graph != nil {
		d.Graph = u.deps.Graph
	}
	return steps.BuildGraph(ctx, d, steps.BuildGraphInput(in))
}

func (u Usecases) Summarize(ctx context.Context, in SummarizeInput) (SummarizeOutput, error) {
	return steps.Summarize(ctx, steps.SummarizeDeps{
		Log:         u.deps.Log,
		AI:          u.deps.AI,
		Artifacts:   u.deps.Artifacts,
		Parallelism: u.deps.SummarizeParallelism,
	}, steps.SummarizeInput(in))
}

// Extract reads a live connection into artifacts. The caller owns src.
func (u Usecases) Extract(ctx context.Context, src introspect.Introspector, in ExtractInput) (ExtractOutput, error) {
	return steps.Extract(ctx, steps.ExtractDeps{
		Log:       u.deps.Log,
		Source:    src,
		Artifacts: u.deps.Artifacts,
	}, steps.ExtractInput(in))
}

func (u Usecases) Artifacts() artifacts.Store { return u.deps.Artifacts }
