package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/dbdict-backend/internal/domain/schema"
	"github.com/yungbote/dbdict-backend/internal/ingestion/artifacts"
)

func TestDocsEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := artifacts.New(t.TempDir())
	db := schema.Database{Name: "shop", Tables: []schema.Table{{
		Name:       "orders",
		Columns:    []schema.Column{{Name: "order_id", Type: "INTEGER"}},
		PrimaryKey: []string{"order_id"},
	}}}
	if err := store.WriteSchema("shop", db); err != nil {
		t.Fatalf("WriteSchema: %v", err)
	}
	if err := store.WriteSummaries("shop", schema.Summaries{"orders": {Description: "Purchases."}}); err != nil {
		t.Fatalf("WriteSummaries: %v", err)
	}

	h := NewDocsHandler(store)
	r := gin.New()
	docs := r.Group("/docs/:db")
	docs.GET("/files", h.ListFiles)
	docs.GET("/schema.json", h.SchemaJSON)
	docs.GET("/quality.json", h.QualityJSON)
	docs.GET("/summary", h.SummaryMarkdown)

	rec := do(r, http.MethodGet, "/docs/shop/files", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"files":["shop_ai_summary.json","shop_schema.json"]`) {
		t.Fatalf("files: got=%d %s", rec.Code, rec.Body.String())
	}

	rec = do(r, http.MethodGet, "/docs/shop/schema.json", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"database": "shop"`) {
		t.Fatalf("schema.json: got=%d %s", rec.Code, rec.Body.String())
	}

	rec = do(r, http.MethodGet, "/docs/shop/summary", "")
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), "# AI-Generated Table Summaries") {
		t.Fatalf("summary: got=%d %s", rec.Code, rec.Body.String())
	}

	if rec = do(r, http.MethodGet, "/docs/shop/quality.json", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing quality: want=404 got=%d", rec.Code)
	}
	if rec = do(r, http.MethodGet, "/docs/other/files", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown db files: want=404 got=%d", rec.Code)
	}
	if rec = do(r, http.MethodGet, "/docs/..%2Fetc/schema.json", ""); rec.Code != http.StatusBadRequest && rec.Code != http.StatusNotFound {
		t.Fatalf("traversal: got=%d", rec.Code)
	}
}
