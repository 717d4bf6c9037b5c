package steps

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/dbdict-backend/internal/data/graph"
	"github.com/yungbote/dbdict-backend/internal/data/sessions"
	"github.com/yungbote/dbdict-backend/internal/ingestion/artifacts"
	"github.com/yungbote/dbdict-backend/internal/observability"
	"github.com/yungbote/dbdict-backend/internal/platform/logger"
	"github.com/yungbote/dbdict-backend/internal/platform/qdrant"
)

type AnswerDeps struct {
	Log       *logger.Logger
	AI        Generator
	Index     Index
	Graph     graph.Reader
	Artifacts artifacts.Store

	// Timeout bounds the whole request. Zero leaves the caller's deadline.
	Timeout             time.Duration
	RelationalSummarize bool
}

type AnswerInput struct {
	DBName   string
	Question string
	History  []sessions.Turn
}

type AnswerOutput struct {
	Answer   string `json:"answer"`
	Intent   Intent `json:"query_type"`
	DBName   string `json:"db_name"`
	Strategy string `json:"-"`
}

// Answer classifies the question, gathers context for its intent and asks the
// generator once. An empty question fails before any backend is called.
func Answer(ctx context.Context, deps AnswerDeps, in AnswerInput) (out AnswerOutput, err error) {
	dbName := strings.TrimSpace(in.DBName)
	question := strings.TrimSpace(in.Question)
	out.DBName = dbName
	if question == "" {
		return out, newError(ErrValidation, StageValidate, dbName, "", fmt.Errorf("question cannot be empty"))
	}
	if dbName == "" {
		return out, newError(ErrValidation, StageValidate, "", "", fmt.Errorf("database name required"))
	}
	if deps.AI == nil || deps.Index == nil {
		return out, fmt.Errorf("dictionary answer: missing deps")
	}

	if deps.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deps.Timeout)
		defer cancel()
	}
	ctx, span := observability.StartSpan(ctx, "dictionary.answer", attribute.String("dbdict.database", dbName))
	start := time.Now()
	defer func() {
		status := observability.OutcomeSuccess
		if err != nil {
			status = observability.OutcomeError
		}
		observability.Current().ObserveAnswer(string(out.Intent), status, time.Since(start))
		observability.EndSpan(span, err)
	}()

	if err := ensureIngested(ctx, deps.Index, dbName); err != nil {
		return out, err
	}

	intent, _ := Classify(ctx, deps.AI, deps.Log, question)
	out.Intent = intent
	span.SetAttributes(attribute.String("dbdict.intent", string(intent)))

	var system, user string
	if intent == IntentConversational {
		system, user = promptConversational(FormatHistory(in.History), question)
	} else {
		ret, err := Retrieve(ctx, RetrieveDeps{
			Log:                 deps.Log,
			AI:                  deps.AI,
			Index:               deps.Index,
			Graph:               deps.Graph,
			Artifacts:           deps.Artifacts,
			RelationalSummarize: deps.RelationalSummarize,
		}, RetrieveInput{DBName: dbName, Question: question, Intent: intent, History: in.History})
		if err != nil {
			return out, err
		}
		out.Strategy = ret.Strategy
		system, user = promptAnswer(dbName, intent, FormatHistory(in.History), ret.Context, question)
	}

	text, err := deps.AI.GenerateText(ctx, system, user)
	if err != nil {
		return out, newError(ErrGeneration, StageGenerate, dbName, intent, err)
	}
	out.Answer = strings.TrimSpace(text)
	return out, nil
}

// ensureIngested fails with ErrNotFound unless the database has a non-empty
// chunk index.
func ensureIngested(ctx context.Context, idx Index, dbName string) error {
	n, err := idx.Count(ctx, dbName)
	if err != nil {
		if qdrant.IsNotFound(err) {
			return newError(ErrNotFound, StageLookup, dbName, "", fmt.Errorf("database %q not ingested", dbName))
		}
		return newError(ErrRetrieval, StageLookup, dbName, "", err)
	}
	if n == 0 {
		return newError(ErrNotFound, StageLookup, dbName, "", fmt.Errorf("database %q not ingested", dbName))
	}
	return nil
}

// ListDatabases returns the ingested databases in name order.
func ListDatabases(ctx context.Context, idx Index) ([]string, error) {
	if idx == nil {
		return nil, fmt.Errorf("index not configured")
	}
	dbs, err := idx.Databases(ctx)
	if err != nil {
		return nil, newError(ErrRetrieval, StageLookup, "", "", err)
	}
	if dbs == nil {
		dbs = []string{}
	}
	return dbs, nil
}
