package steps

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/dbdict-backend/internal/domain/schema"
	"github.com/yungbote/dbdict-backend/internal/ingestion/artifacts"
	"github.com/yungbote/dbdict-backend/internal/ingestion/introspect"
	"github.com/yungbote/dbdict-backend/internal/platform/neo4jdb"
)

func TestBuildTableChunks(t *testing.T) {
	quality := schema.Quality{"orders": {RowCount: 4, Columns: map[string]schema.ColumnQuality{
		"total":       {NullFraction: 0.25},
		"customer_id": {NullFraction: 0},
	}}}
	summaries := schema.Summaries{"orders": {Description: "Customer purchases.", DataQualityNotes: "None"}}
	db := shopSchema()

	chunks := BuildTableChunks(db, quality, summaries)
	if len(chunks) != 3 {
		t.Fatalf("chunks: want=3 got=%d", len(chunks))
	}
	if chunks[0].Table != "customers" || chunks[2].Table != "orders" {
		t.Fatalf("chunk order: got=%s..%s", chunks[0].Table, chunks[2].Table)
	}
	orders := chunks[2]
	if orders.ID != "shop_orders" {
		t.Fatalf("id: got=%s", orders.ID)
	}
	for _, want := range []string{
		"TABLE: orders",
		"Primary Key: order_id",
		"  - total (REAL)",
		"orders.customer_id → customers.id",
		"Row Count: 4",
		"Incomplete columns: total",
		"Business Description: Customer purchases.",
	} {
		if !strings.Contains(orders.Text, want) {
			t.Fatalf("orders chunk missing %q:\n%s", want, orders.Text)
		}
	}
	if strings.Contains(orders.Text, "Quality Notes") {
		t.Fatalf("None quality notes must be omitted")
	}
	if orders.Metadata["related_to"] != "customers" || orders.Metadata["chunk_type"] != ChunkTypeTable {
		t.Fatalf("metadata: got=%v", orders.Metadata)
	}
	if chunks[0].Metadata["fk_details"] != "none" || chunks[0].Metadata["related_to"] != "none" {
		t.Fatalf("customers metadata: got=%v", chunks[0].Metadata)
	}

	again := BuildTableChunks(db, quality, summaries)
	for i := range chunks {
		if chunks[i].Text != again[i].Text {
			t.Fatalf("chunk %d not deterministic", i)
		}
	}
	if db.Tables[0].Name != "orders" {
		t.Fatalf("input schema reordered")
	}
}

func TestRenderCompactSchema(t *testing.T) {
	got := RenderCompactSchema(shopSchema())
	for _, want := range []string{
		"TABLE order_items\n  - order_id (PK) INTEGER\n  - item_id (PK) INTEGER\n  RELATIONSHIPS\n    order_items.order_id → orders.order_id\n",
		"TABLE customers\n  - id (PK) INTEGER\n  - email TEXT\n",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("compact schema missing %q:\n%s", want, got)
		}
	}
}

func TestRenderSummaries(t *testing.T) {
	got := RenderSummaries(schema.Summaries{
		"orders": {
			Description:          "Purchases.",
			ColumnDescriptions:   map[string]string{"total": "Order value.", "order_id": "Key."},
			RelationshipsSummary: "Belongs to a customer.",
			DataQualityNotes:     "None",
		},
	})
	want := "# AI-Generated Table Summaries\n\n## orders\n\nPurchases.\n\n### Column Descriptions\n\n- **order_id**: Key.\n- **total**: Order value.\n\n### Relationships\nBelongs to a customer.\n\n---\n"
	if got != want {
		t.Fatalf("RenderSummaries:\nwant=%q\ngot=%q", want, got)
	}
}

func writeShop(t *testing.T) artifacts.Store {
	t.Helper()
	store := artifacts.New(t.TempDir())
	if err := store.WriteSchema("shop", shopSchema()); err != nil {
		t.Fatalf("WriteSchema: %v", err)
	}
	return store
}

func TestIngest(t *testing.T) {
	store := writeShop(t)
	if err := store.WriteSummaries("shop", schema.Summaries{"orders": {Description: "Purchases."}}); err != nil {
		t.Fatalf("WriteSummaries: %v", err)
	}
	idx := newFakeIndex()

	out, err := Ingest(context.Background(), IngestDeps{Log: newTestLogger(t), Index: idx, Artifacts: store}, IngestInput{DBName: "shop"})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if out.Chunks != 3 || len(idx.docs["shop"]) != 3 {
		t.Fatalf("chunks: out=%d stored=%d", out.Chunks, len(idx.docs["shop"]))
	}
	global, err := store.ReadGlobalContext("shop")
	if err != nil {
		t.Fatalf("ReadGlobalContext: %v", err)
	}
	if !strings.HasPrefix(global, "=== SCHEMA ===\nTABLE customers") || !strings.Contains(global, "=== AI SUMMARIES ===\n# AI-Generated Table Summaries") {
		t.Fatalf("global context: got=%q", global)
	}
	if _, err := store.ReadCompactSchema("shop"); err != nil {
		t.Fatalf("ReadCompactSchema: %v", err)
	}

	if _, err := Ingest(context.Background(), IngestDeps{Index: idx, Artifacts: store}, IngestInput{DBName: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Ingest missing: want ErrNotFound got=%v", err)
	}
	if _, err := Ingest(context.Background(), IngestDeps{Index: idx, Artifacts: store}, IngestInput{DBName: "../x"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("Ingest bad name: want ErrValidation got=%v", err)
	}
}

func TestIngestReplaceFailureKeepsTextArtifacts(t *testing.T) {
	store := writeShop(t)
	idx := newFakeIndex()
	idx.replaceErr = fmt.Errorf("qdrant down")

	_, err := Ingest(context.Background(), IngestDeps{Index: idx, Artifacts: store}, IngestInput{DBName: "shop"})
	if !errors.Is(err, ErrRetrieval) {
		t.Fatalf("Ingest: want ErrRetrieval got=%v", err)
	}
	if _, err := store.ReadGlobalContext("shop"); !errors.Is(err, artifacts.ErrNotFound) {
		t.Fatalf("global context written before index replace: err=%v", err)
	}
}

func TestIngestArtifactWriteFailureIsInternal(t *testing.T) {
	store := writeShop(t)
	// A non-empty directory at the global context path makes the rename fail.
	blocker := filepath.Join(store.GlobalContextPath("shop"), "keep")
	if err := os.MkdirAll(blocker, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	idx := newFakeIndex()

	_, err := Ingest(context.Background(), IngestDeps{Index: idx, Artifacts: store}, IngestInput{DBName: "shop"})
	if err == nil {
		t.Fatalf("Ingest: want error")
	}
	if kind := KindOf(err); kind != nil {
		t.Fatalf("kind: want=<nil> got=%v", kind)
	}
	if errors.Is(err, ErrRetrieval) {
		t.Fatalf("artifact write tagged as retrieval failure: %v", err)
	}
	if len(idx.docs["shop"]) != 3 {
		t.Fatalf("chunks: want=3 got=%d", len(idx.docs["shop"]))
	}
}

func TestSummarizeFallsBackPerTable(t *testing.T) {
	store := writeShop(t)
	gen := &fakeGenerator{jsonFunc: func(schemaName, user string) (map[string]any, error) {
		if schemaName != "table_summary_v1" {
			return nil, fmt.Errorf("unexpected schema %s", schemaName)
		}
		if strings.Contains(user, "Table: customers") {
			return nil, fmt.Errorf("rate limited")
		}
		return map[string]any{
			"description": "Line items.",
			"column_descriptions": []any{
				map[string]any{"column": "order_id", "description": " Parent order. "},
				map[string]any{"column": "ghost", "description": "dropped"},
			},
			"relationships_summary": "",
			"data_quality_notes":    "None",
		}, nil
	}}
	out, err := Summarize(context.Background(), SummarizeDeps{Log: newTestLogger(t), AI: gen, Artifacts: store, Parallelism: 2}, SummarizeInput{DBName: "shop"})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if len(out.Failed) != 1 || out.Failed[0] != "customers" {
		t.Fatalf("failed: got=%v", out.Failed)
	}
	stored, err := store.ReadSummaries("shop")
	if err != nil {
		t.Fatalf("ReadSummaries: %v", err)
	}
	if stored["customers"].Description != schema.SummaryUnavailable {
		t.Fatalf("fallback: got=%+v", stored["customers"])
	}
	items := stored["order_items"]
	if items.Description != "Line items." || items.RelationshipsSummary != "None" {
		t.Fatalf("order_items summary: got=%+v", items)
	}
	if _, ok := items.ColumnDescriptions["ghost"]; ok {
		t.Fatalf("unknown column kept in summary")
	}
	if items.ColumnDescriptions["order_id"] != "Parent order." {
		t.Fatalf("column description: want=%q got=%q", "Parent order.", items.ColumnDescriptions["order_id"])
	}

	if _, err := Summarize(context.Background(), SummarizeDeps{AI: gen, Artifacts: store}, SummarizeInput{DBName: "shop", Tables: []string{"nope"}}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Summarize unknown table: want ErrNotFound got=%v", err)
	}
}

func TestTableSummaryContext(t *testing.T) {
	db := shopSchema()
	got := tableSummaryContext(*db.Table("orders"), schema.Quality{"orders": {RowCount: 2, Columns: map[string]schema.ColumnQuality{}}})
	want := "Table: orders\nPrimary Key: order_id\nColumns:\n  - order_id (INTEGER)\n  - customer_id (INTEGER)\n  - total (REAL)\nRelationships:\n  - customer_id → customers(id)\nRow Count: 2\nAll columns fully complete (no nulls)."
	if got != want {
		t.Fatalf("tableSummaryContext:\nwant=%q\ngot=%q", want, got)
	}
}

type graphWriter struct {
	stmts []neo4jdb.Statement
}

func (w *graphWriter) Write(ctx context.Context, stmts []neo4jdb.Statement) error {
	w.stmts = append(w.stmts, stmts...)
	return nil
}

func (w *graphWriter) Exec(ctx context.Context, stmts []string) {}

func TestBuildGraph(t *testing.T) {
	store := writeShop(t)
	w := &graphWriter{}
	out, err := BuildGraph(context.Background(), BuildGraphDeps{Graph: w, Artifacts: store}, BuildGraphInput{DBName: "shop"})
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}
	if out.Tables != 3 || out.Relationships != 2 || out.WithQuality {
		t.Fatalf("BuildGraph: got=%+v", out)
	}
	if len(w.stmts) == 0 {
		t.Fatalf("no statements written")
	}

	bad := shopSchema()
	bad.Tables[0].ForeignKeys[0].RefTable = "ghost"
	if err := store.WriteSchema("bad", bad); err != nil {
		t.Fatalf("WriteSchema: %v", err)
	}
	if _, err := BuildGraph(context.Background(), BuildGraphDeps{Graph: w, Artifacts: store}, BuildGraphInput{DBName: "bad"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("BuildGraph invalid: want ErrValidation got=%v", err)
	}
}

type fakeSource struct {
	db      schema.Database
	quality schema.Quality
	err     error
}

func (f fakeSource) Dialect() introspect.DialectCapabilities { return introspect.SQLiteDialect }

func (f fakeSource) Extract(ctx context.Context) (schema.Database, error) { return f.db, f.err }

func (f fakeSource) CollectQuality(ctx context.Context, db schema.Database) (schema.Quality, error) {
	return f.quality, nil
}

func (f fakeSource) Ping(ctx context.Context) (time.Duration, error) { return time.Millisecond, nil }

func (f fakeSource) Close() error { return nil }

func TestExtract(t *testing.T) {
	store := artifacts.New(t.TempDir())
	src := fakeSource{db: shopSchema(), quality: schema.Quality{"orders": {RowCount: 9}}}
	src.db.Name = "main"
	out, err := Extract(context.Background(), ExtractDeps{Source: src, Artifacts: store}, ExtractInput{DBName: "shop"})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if out.Schema.Name != "shop" {
		t.Fatalf("schema name: got=%s", out.Schema.Name)
	}
	q, err := store.ReadQuality("shop")
	if err != nil || q["orders"].RowCount != 9 {
		t.Fatalf("stored quality: got=%v err=%v", q, err)
	}
	db, err := store.ReadSchema("shop")
	if err != nil || len(db.Tables) != 3 {
		t.Fatalf("stored schema: got=%d tables err=%v", len(db.Tables), err)
	}

	src.err = fmt.Errorf("locked")
	if _, err := Extract(context.Background(), ExtractDeps{Source: src, Artifacts: store}, ExtractInput{DBName: "shop"}); !errors.Is(err, ErrRetrieval) {
		t.Fatalf("Extract failure: want ErrRetrieval got=%v", err)
	}
}
