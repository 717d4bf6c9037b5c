package steps

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/dbdict-backend/internal/data/graph"
	"github.com/yungbote/dbdict-backend/internal/data/sessions"
	"github.com/yungbote/dbdict-backend/internal/ingestion/artifacts"
	"github.com/yungbote/dbdict-backend/internal/observability"
	"github.com/yungbote/dbdict-backend/internal/platform/logger"
	"github.com/yungbote/dbdict-backend/internal/platform/qdrant"
)

const resultDivider = "\n\n---\n\n"

var (
	errEmptyResult      = errors.New("empty result")
	errGraphUnavailable = errors.New("graph store not configured")
)

type RetrieveDeps struct {
	Log       *logger.Logger
	AI        Generator
	Index     Index
	Graph     graph.Reader
	Artifacts artifacts.Store

	// RelationalSummarize turns graph rows into prose before they are used as
	// context.
	RelationalSummarize bool
}

type RetrieveInput struct {
	DBName   string
	Question string
	Intent   Intent
	History  []sessions.Turn
}

// Attempt records one strategy run. Outcome is observability.Outcome*.
type Attempt struct {
	Strategy string
	Outcome  string
	Err      error
}

type RetrieveOutput struct {
	Context  string
	Strategy string
	Attempts []Attempt
}

// strategy is one retrieval method. It returns errEmptyResult when the
// backend answered with nothing.
type strategy struct {
	name string
	run  func(ctx context.Context, deps RetrieveDeps, req *retrievalRequest) (string, error)
}

var (
	globalDocument = strategy{name: "global_document", run: runGlobalDocument}
	graphTraversal = strategy{name: "graph", run: runGraphTraversal}
	vectorRelated  = strategy{name: "vector_related", run: vectorSearch(" related to tables: ")}
	vectorSpecific = strategy{name: "vector", run: vectorSearch(" context: ")}
)

// retrievalPlans lists strategies per intent in the order they are tried.
// Later entries only run when earlier ones fail or come back empty.
var retrievalPlans = map[Intent][]strategy{
	IntentGlobal:     {globalDocument},
	IntentRelational: {graphTraversal, vectorRelated},
	IntentSpecific:   {vectorSpecific},
}

type retrievalRequest struct {
	RetrieveInput
	known    []string
	resolved bool
}

// historyTables resolves known table names from the index once per request
// and returns those mentioned in recent history.
func (r *retrievalRequest) historyTables(ctx context.Context, deps RetrieveDeps) []string {
	if !r.resolved {
		r.resolved = true
		if len(r.History) > 0 {
			known, err := deps.Index.TableNames(ctx, r.DBName)
			if err != nil && deps.Log != nil {
				deps.Log.Warn("known tables unavailable; skipping history augmentation", "database", r.DBName, "error", err)
			}
			r.known = known
		}
	}
	return TablesInHistory(r.History, r.known)
}

// Retrieve runs the intent's strategies in order and returns the first
// non-empty context. Conversational questions never reach here.
func Retrieve(ctx context.Context, deps RetrieveDeps, in RetrieveInput) (RetrieveOutput, error) {
	out := RetrieveOutput{}
	plan, ok := retrievalPlans[in.Intent]
	if !ok {
		return out, newError(ErrRetrieval, StageRetrieve, in.DBName, in.Intent, fmt.Errorf("no retrieval plan for intent %q", in.Intent))
	}
	if deps.Index == nil {
		return out, newError(ErrRetrieval, StageRetrieve, in.DBName, in.Intent, fmt.Errorf("index not configured"))
	}

	ctx, span := observability.StartSpan(ctx, "dictionary.retrieve",
		attribute.String("dbdict.database", in.DBName),
		attribute.String("dbdict.intent", string(in.Intent)),
	)
	var retErr error
	defer func() { observability.EndSpan(span, retErr) }()

	m := observability.Current()
	req := &retrievalRequest{RetrieveInput: in}
	var lastErr error
	for i, s := range plan {
		text, err := s.run(ctx, deps, req)
		if err == nil && strings.TrimSpace(text) == "" {
			err = errEmptyResult
		}
		outcome := observability.OutcomeSuccess
		switch {
		case errors.Is(err, errEmptyResult):
			outcome = observability.OutcomeEmpty
		case err != nil:
			outcome = observability.OutcomeError
		}
		out.Attempts = append(out.Attempts, Attempt{Strategy: s.name, Outcome: outcome, Err: err})
		m.ObserveRetrieval(string(in.Intent), s.name, outcome)

		if err == nil {
			out.Context = text
			out.Strategy = s.name
			return out, nil
		}
		lastErr = err
		if isNotFound(err) {
			retErr = newError(ErrNotFound, StageRetrieve, in.DBName, in.Intent, err)
			return out, retErr
		}
		if i < len(plan)-1 {
			m.IncFallback(string(in.Intent), outcome)
			if deps.Log != nil {
				deps.Log.Info("retrieval strategy failed; falling back",
					"database", in.DBName,
					"intent", in.Intent,
					"strategy", s.name,
					"next", plan[i+1].name,
					"outcome", outcome,
					"error", err,
				)
			}
		}
	}
	retErr = newError(ErrRetrieval, StageRetrieve, in.DBName, in.Intent, lastErr)
	return out, retErr
}

func isNotFound(err error) bool {
	return errors.Is(err, artifacts.ErrNotFound) || qdrant.IsNotFound(err)
}

func runGlobalDocument(ctx context.Context, deps RetrieveDeps, req *retrievalRequest) (string, error) {
	return deps.Artifacts.ReadGlobalContext(req.DBName)
}

func runGraphTraversal(ctx context.Context, deps RetrieveDeps, req *retrievalRequest) (string, error) {
	if deps.Graph == nil {
		return "", errGraphUnavailable
	}
	if deps.AI == nil {
		return "", fmt.Errorf("generator not configured")
	}
	question := req.Question
	if tables := req.historyTables(ctx, deps); len(tables) > 0 {
		question = fmt.Sprintf("%s (context: tables %s)", question, strings.Join(tables, ", "))
	}

	system, user := promptCypher(req.DBName, question)
	raw, err := deps.AI.GenerateText(ctx, system, user)
	if err != nil {
		return "", fmt.Errorf("generate cypher: %w", err)
	}
	rows, err := graph.RunReadOnlyQuery(ctx, deps.Graph, raw, map[string]any{"database": req.DBName})
	if err != nil {
		return "", fmt.Errorf("run cypher: %w", err)
	}
	if len(rows) == 0 {
		return "", errEmptyResult
	}
	text := graph.FormatRows(rows)
	if !deps.RelationalSummarize {
		return text, nil
	}
	system, user = promptGraphAnswer(question, text)
	summary, err := deps.AI.GenerateText(ctx, system, user)
	if err != nil || strings.TrimSpace(summary) == "" {
		if deps.Log != nil {
			deps.Log.Warn("graph result summary failed; using raw rows", "database", req.DBName, "error", err)
		}
		return text, nil
	}
	return strings.TrimSpace(summary), nil
}

// vectorSearch widens the question with history tables using framing and
// asks for at most maxSpecificResults chunks.
func vectorSearch(framing string) func(context.Context, RetrieveDeps, *retrievalRequest) (string, error) {
	return func(ctx context.Context, deps RetrieveDeps, req *retrievalRequest) (string, error) {
		count, err := deps.Index.Count(ctx, req.DBName)
		if err != nil {
			return "", err
		}
		k := min(maxSpecificResults, count)
		if k <= 0 {
			return "", errEmptyResult
		}
		query := req.Question
		if tables := req.historyTables(ctx, deps); len(tables) > 0 {
			query = query + framing + strings.Join(tables, ", ")
		}
		matches, err := deps.Index.Query(ctx, req.DBName, query, k, nil)
		if err != nil {
			return "", err
		}
		if len(matches) == 0 {
			return "", errEmptyResult
		}
		return FormatMatches(matches), nil
	}
}

// FormatMatches renders "[Table: name]" blocks separated by a divider.
func FormatMatches(matches []qdrant.Match) string {
	blocks := make([]string, 0, len(matches))
	for _, m := range matches {
		table, _ := m.Metadata["table"].(string)
		if table == "" {
			table = "unknown"
		}
		blocks = append(blocks, "[Table: "+table+"]\n"+m.Text)
	}
	return strings.Join(blocks, resultDivider)
}
