package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/dbdict-backend/internal/http/response"
	"github.com/yungbote/dbdict-backend/internal/ingestion/artifacts"
	"github.com/yungbote/dbdict-backend/internal/modules/dictionary/steps"
)

// DocsHandler serves stored artifacts for one database.
type DocsHandler struct {
	store artifacts.Store
}

func NewDocsHandler(store artifacts.Store) *DocsHandler {
	return &DocsHandler{store: store}
}

// GET /docs/:db/files
func (h *DocsHandler) ListFiles(c *gin.Context) {
	db := c.Param("db")
	if err := artifacts.ValidateName(db); err != nil {
		response.RespondAPIError(c, toAPIError(err, "invalid_request"))
		return
	}
	var files []string
	entries, err := os.ReadDir(h.store.Dir(db))
	if err != nil && !os.IsNotExist(err) {
		response.RespondError(c, http.StatusInternalServerError, "list_files_failed", err)
		return
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), db) {
			files = append(files, e.Name())
		}
	}
	if _, err := os.Stat(h.store.GlobalContextPath(db)); err == nil {
		files = append(files, filepath.Base(h.store.GlobalContextPath(db)))
	}
	if len(files) == 0 {
		response.RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("no artifacts found for %q", db))
		return
	}
	sort.Strings(files)
	response.RespondOK(c, gin.H{"db_name": db, "files": files})
}

// GET /docs/:db/schema.json
func (h *DocsHandler) SchemaJSON(c *gin.Context) {
	h.raw(c, h.store.SchemaPath, "application/json; charset=utf-8")
}

// GET /docs/:db/quality.json
func (h *DocsHandler) QualityJSON(c *gin.Context) {
	h.raw(c, h.store.QualityPath, "application/json; charset=utf-8")
}

// GET /docs/:db/summary.json
func (h *DocsHandler) SummaryJSON(c *gin.Context) {
	h.raw(c, h.store.SummaryPath, "application/json; charset=utf-8")
}

// GET /docs/:db/llm-schema
func (h *DocsHandler) CompactSchema(c *gin.Context) {
	h.raw(c, h.store.CompactSchemaPath, "text/plain; charset=utf-8")
}

// GET /docs/:db/summary renders the stored summaries as markdown.
func (h *DocsHandler) SummaryMarkdown(c *gin.Context) {
	db := c.Param("db")
	sums, err := h.store.ReadSummaries(db)
	if err != nil {
		response.RespondAPIError(c, toAPIError(err, "read_summary_failed"))
		return
	}
	if len(sums) == 0 {
		response.RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("AI summary not found"))
		return
	}
	response.RespondText(c, "text/markdown; charset=utf-8", steps.RenderSummaries(sums))
}

func (h *DocsHandler) raw(c *gin.Context, pathFor func(string) string, contentType string) {
	db := c.Param("db")
	raw, err := h.store.ReadRaw(db, pathFor(db))
	if err != nil {
		response.RespondAPIError(c, toAPIError(err, "read_artifact_failed"))
		return
	}
	c.Data(http.StatusOK, contentType, raw)
}
