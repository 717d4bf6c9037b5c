package steps

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/yungbote/dbdict-backend/internal/data/sessions"
	"github.com/yungbote/dbdict-backend/internal/ingestion/artifacts"
	"github.com/yungbote/dbdict-backend/internal/observability"
)

func itemsHistory() []sessions.Turn {
	return []sessions.Turn{
		{Role: sessions.RoleUser, Content: "what is order_items?"},
		{Role: sessions.RoleAssistant, Content: "It holds one row per item in a purchase."},
	}
}

func TestRetrieveRelationalFallsBackToVector(t *testing.T) {
	cases := []struct {
		name        string
		reader      readerFunc
		wantOutcome string
	}{
		{
			name: "graph empty",
			reader: func(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
				return nil, nil
			},
			wantOutcome: observability.OutcomeEmpty,
		},
		{
			name: "graph error",
			reader: func(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
				return nil, fmt.Errorf("connection refused")
			},
			wantOutcome: observability.OutcomeError,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			idx := seededIndex()
			gen := &fakeGenerator{text: func(system, user string) (string, error) {
				return "MATCH (t:Table {database: $database}) RETURN t.name", nil
			}}
			out, err := Retrieve(context.Background(), RetrieveDeps{
				Log:   newTestLogger(t),
				AI:    gen,
				Index: idx,
				Graph: tc.reader,
			}, RetrieveInput{DBName: "shop", Question: "what depends on it?", Intent: IntentRelational, History: itemsHistory()})
			if err != nil {
				t.Fatalf("Retrieve: %v", err)
			}
			if out.Strategy != "vector_related" {
				t.Fatalf("strategy: want=vector_related got=%s", out.Strategy)
			}
			if len(out.Attempts) != 2 || out.Attempts[0].Strategy != "graph" || out.Attempts[0].Outcome != tc.wantOutcome {
				t.Fatalf("attempts: got=%+v", out.Attempts)
			}
			if len(idx.queries) != 1 {
				t.Fatalf("vector queries: want=1 got=%d", len(idx.queries))
			}
			q := idx.queries[0]
			if !strings.Contains(q.Text, "related to tables: order_items") {
				t.Fatalf("fallback query: got=%q", q.Text)
			}
			if q.TopK != 3 {
				t.Fatalf("topK: want=min(5,3) got=%d", q.TopK)
			}
			if !strings.Contains(gen.textCalls[0].User, "(context: tables order_items)") {
				t.Fatalf("cypher prompt missing history tables: %q", gen.textCalls[0].User)
			}
		})
	}
}

func TestRetrieveRelationalGraphSuccess(t *testing.T) {
	idx := seededIndex()
	var gotParams map[string]any
	reader := readerFunc(func(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
		gotParams = params
		if !strings.HasSuffix(cypher, "LIMIT 50") {
			t.Fatalf("cypher not limited: %q", cypher)
		}
		return []map[string]any{{"table": "order_items", "via": "order_id"}}, nil
	})
	gen := &fakeGenerator{text: func(system, user string) (string, error) {
		return "MATCH (a:Table)-[r:RELATES_TO]->(b:Table {name: 'orders'}) RETURN a.name AS table, r.viaColumn AS via", nil
	}}
	out, err := Retrieve(context.Background(), RetrieveDeps{AI: gen, Index: idx, Graph: reader},
		RetrieveInput{DBName: "shop", Question: "what references orders?", Intent: IntentRelational})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if out.Strategy != "graph" || out.Context != "- table: order_items, via: order_id" {
		t.Fatalf("graph context: got=%s %q", out.Strategy, out.Context)
	}
	if gotParams["database"] != "shop" {
		t.Fatalf("cypher params: got=%v", gotParams)
	}
	if len(idx.queries) != 0 {
		t.Fatalf("vector search ran after graph success")
	}
}

func TestRetrieveRelationalSummarizesRows(t *testing.T) {
	reader := readerFunc(func(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
		return []map[string]any{{"table": "order_items", "via": "order_id"}}, nil
	})
	gen := &fakeGenerator{text: func(system, user string) (string, error) {
		if strings.Contains(user, "Cypher results:") {
			if !strings.Contains(user, "- table: order_items, via: order_id") {
				t.Fatalf("summary prompt missing rows: %q", user)
			}
			return "  order_items references orders through order_id.\n", nil
		}
		return "MATCH (a:Table)-[r:RELATES_TO]->(b:Table) RETURN a.name AS table, r.viaColumn AS via", nil
	}}
	out, err := Retrieve(context.Background(), RetrieveDeps{AI: gen, Index: seededIndex(), Graph: reader, RelationalSummarize: true},
		RetrieveInput{DBName: "shop", Question: "what references orders?", Intent: IntentRelational})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if out.Context != "order_items references orders through order_id." {
		t.Fatalf("summarized context: got=%q", out.Context)
	}
	if n := gen.calls(); n != 2 {
		t.Fatalf("generator calls: want=2 got=%d", n)
	}
}

func TestRetrieveRejectsGeneratedWrites(t *testing.T) {
	idx := seededIndex()
	reads := 0
	reader := readerFunc(func(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
		reads++
		return nil, nil
	})
	gen := &fakeGenerator{text: func(system, user string) (string, error) {
		return "MATCH (n) DETACH DELETE n", nil
	}}
	out, err := Retrieve(context.Background(), RetrieveDeps{AI: gen, Index: idx, Graph: reader},
		RetrieveInput{DBName: "shop", Question: "drop everything", Intent: IntentRelational})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if reads != 0 {
		t.Fatalf("write query reached the graph")
	}
	if out.Strategy != "vector_related" {
		t.Fatalf("strategy: got=%s", out.Strategy)
	}
}

func TestRetrieveWithoutGraphUsesVector(t *testing.T) {
	idx := seededIndex()
	out, err := Retrieve(context.Background(), RetrieveDeps{AI: &fakeGenerator{}, Index: idx},
		RetrieveInput{DBName: "shop", Question: "how do orders connect?", Intent: IntentRelational})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if out.Strategy != "vector_related" || !errors.Is(out.Attempts[0].Err, errGraphUnavailable) {
		t.Fatalf("attempts: got=%+v", out.Attempts)
	}
	if idx.queries[0].Text != "how do orders connect?" {
		t.Fatalf("query without history must be unaugmented: got=%q", idx.queries[0].Text)
	}
}

func TestRetrieveSpecific(t *testing.T) {
	idx := seededIndex()
	out, err := Retrieve(context.Background(), RetrieveDeps{Index: idx},
		RetrieveInput{DBName: "shop", Question: "what columns does it have?", Intent: IntentSpecific, History: itemsHistory()})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if idx.queries[0].Text != "what columns does it have? context: order_items" {
		t.Fatalf("specific query: got=%q", idx.queries[0].Text)
	}
	blocks := strings.Split(out.Context, "\n\n---\n\n")
	if len(blocks) != 3 || !strings.HasPrefix(blocks[0], "[Table: customers]\nTABLE: customers") {
		t.Fatalf("context blocks: got=%q", out.Context)
	}
}

func TestRetrieveGlobal(t *testing.T) {
	store := artifacts.New(t.TempDir())
	if err := store.WriteGlobalContext("shop", "=== SCHEMA ===\nTABLE orders"); err != nil {
		t.Fatalf("WriteGlobalContext: %v", err)
	}
	idx := seededIndex()
	out, err := Retrieve(context.Background(), RetrieveDeps{Index: idx, Artifacts: store},
		RetrieveInput{DBName: "shop", Question: "show me everything", Intent: IntentGlobal})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if out.Context != "=== SCHEMA ===\nTABLE orders" || len(idx.queries) != 0 {
		t.Fatalf("global: got=%q queries=%d", out.Context, len(idx.queries))
	}

	_, err = Retrieve(context.Background(), RetrieveDeps{Index: idx, Artifacts: store},
		RetrieveInput{DBName: "other", Question: "show me everything", Intent: IntentGlobal})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing global document: want ErrNotFound got=%v", err)
	}
}

func TestRetrieveNoPlanForConversational(t *testing.T) {
	_, err := Retrieve(context.Background(), RetrieveDeps{Index: seededIndex()},
		RetrieveInput{DBName: "shop", Question: "recap", Intent: IntentConversational})
	if !errors.Is(err, ErrRetrieval) {
		t.Fatalf("Retrieve: want ErrRetrieval got=%v", err)
	}
}
