package steps

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/yungbote/dbdict-backend/internal/domain/schema"
	"github.com/yungbote/dbdict-backend/internal/platform/logger"
	"github.com/yungbote/dbdict-backend/internal/platform/qdrant"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(func() {
		log.Sync()
	})
	return log
}

type textCall struct {
	System string
	User   string
}

// fakeGenerator answers classification with label (or jsonErr) and text
// prompts through text.
type fakeGenerator struct {
	mu       sync.Mutex
	label    string
	jsonErr  error
	jsonFunc func(schemaName, user string) (map[string]any, error)
	text     func(system, user string) (string, error)

	jsonCalls int
	textCalls []textCall
}

func (f *fakeGenerator) GenerateJSON(ctx context.Context, system, user, schemaName string, s map[string]any) (map[string]any, error) {
	f.mu.Lock()
	f.jsonCalls++
	f.mu.Unlock()
	if f.jsonFunc != nil {
		return f.jsonFunc(schemaName, user)
	}
	if f.jsonErr != nil {
		return nil, f.jsonErr
	}
	return map[string]any{"intent": f.label}, nil
}

func (f *fakeGenerator) GenerateText(ctx context.Context, system, user string) (string, error) {
	f.mu.Lock()
	f.textCalls = append(f.textCalls, textCall{System: system, User: user})
	f.mu.Unlock()
	if f.text == nil {
		return "ok", nil
	}
	return f.text(system, user)
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jsonCalls + len(f.textCalls)
}

type queryCall struct {
	DBName string
	Text   string
	TopK   int
}

// fakeIndex keeps documents per database and records every query.
type fakeIndex struct {
	mu      sync.Mutex
	docs    map[string][]qdrant.Document
	queries []queryCall
	calls   int

	replaceErr error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{docs: map[string][]qdrant.Document{}}
}

func notFound(db string) error {
	return &qdrant.OperationError{Code: qdrant.OperationErrorNotFound, Operation: "count", Message: fmt.Sprintf("collection for %q missing", db)}
}

func (f *fakeIndex) Databases(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	var out []string
	for db := range f.docs {
		out = append(out, db)
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeIndex) Count(ctx context.Context, db string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	docs, ok := f.docs[db]
	if !ok {
		return 0, notFound(db)
	}
	return len(docs), nil
}

func (f *fakeIndex) Query(ctx context.Context, db, text string, topK int, filter *qdrant.Filter) ([]qdrant.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.queries = append(f.queries, queryCall{DBName: db, Text: text, TopK: topK})
	docs, ok := f.docs[db]
	if !ok {
		return nil, notFound(db)
	}
	var out []qdrant.Match
	for i, d := range docs {
		if i >= topK {
			break
		}
		out = append(out, qdrant.Match{ID: d.ID, Text: d.Text, Metadata: d.Metadata, Score: 1})
	}
	return out, nil
}

func (f *fakeIndex) TableNames(ctx context.Context, db string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	var out []string
	for _, d := range f.docs[db] {
		if t, ok := d.Metadata["table"].(string); ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeIndex) Replace(ctx context.Context, db string, docs []qdrant.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.docs[db] = append([]qdrant.Document(nil), docs...)
	return nil
}

func (f *fakeIndex) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type readerFunc func(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error)

func (f readerFunc) Read(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	return f(ctx, cypher, params)
}

func shopSchema() schema.Database {
	return schema.Database{
		Name: "shop",
		Tables: []schema.Table{
			{
				Name:       "orders",
				Columns:    []schema.Column{{Name: "order_id", Type: "INTEGER"}, {Name: "customer_id", Type: "INTEGER"}, {Name: "total", Type: "REAL"}},
				PrimaryKey: []string{"order_id"},
				ForeignKeys: []schema.ForeignKey{
					{Columns: []string{"customer_id"}, RefTable: "customers", RefColumns: []string{"id"}},
				},
			},
			{
				Name:       "order_items",
				Columns:    []schema.Column{{Name: "order_id", Type: "INTEGER"}, {Name: "item_id", Type: "INTEGER"}},
				PrimaryKey: []string{"order_id", "item_id"},
				ForeignKeys: []schema.ForeignKey{
					{Columns: []string{"order_id"}, RefTable: "orders", RefColumns: []string{"order_id"}},
				},
			},
			{
				Name:       "customers",
				Columns:    []schema.Column{{Name: "id", Type: "INTEGER"}, {Name: "email", Type: "TEXT"}},
				PrimaryKey: []string{"id"},
			},
		},
	}
}

// seededIndex holds the shop chunks as ingest would write them.
func seededIndex() *fakeIndex {
	idx := newFakeIndex()
	for _, c := range BuildTableChunks(shopSchema(), nil, nil) {
		idx.docs["shop"] = append(idx.docs["shop"], c.Document())
	}
	return idx
}
