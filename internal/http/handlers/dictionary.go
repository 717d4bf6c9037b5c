package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/dbdict-backend/internal/data/sessions"
	"github.com/yungbote/dbdict-backend/internal/http/response"
	"github.com/yungbote/dbdict-backend/internal/modules/dictionary"
	"github.com/yungbote/dbdict-backend/internal/platform/logger"
)

// DictionaryService is the subset of dictionary.Usecases the API serves.
type DictionaryService interface {
	ListDatabases(ctx context.Context) ([]string, error)
	Chat(ctx context.Context, in dictionary.ChatInput) (dictionary.ChatOutput, error)
	NewSession(ctx context.Context) (sessions.Session, error)
	History(ctx context.Context, sessionID string) (sessions.Session, error)
	ClearSession(ctx context.Context, sessionID string) error
	Ingest(ctx context.Context, in dictionary.IngestInput) (dictionary.IngestOutput, error)
}

type DictionaryHandlerDeps struct {
	Log        *logger.Logger
	Dictionary DictionaryService
}

type DictionaryHandler struct {
	log  *logger.Logger
	dict DictionaryService
}

func NewDictionaryHandler(deps DictionaryHandlerDeps) *DictionaryHandler {
	h := &DictionaryHandler{dict: deps.Dictionary}
	if deps.Log != nil {
		h.log = deps.Log.With("handler", "DictionaryHandler")
	}
	return h
}

// GET /databases
func (h *DictionaryHandler) ListDatabases(c *gin.Context) {
	dbs, err := h.dict.ListDatabases(c.Request.Context())
	if err != nil {
		h.fail(c, err, "list_databases_failed")
		return
	}
	response.RespondOK(c, gin.H{"databases": dbs})
}

// POST /session
func (h *DictionaryHandler) CreateSession(c *gin.Context) {
	sess, err := h.dict.NewSession(c.Request.Context())
	if err != nil {
		h.fail(c, err, "create_session_failed")
		return
	}
	response.RespondOK(c, gin.H{"session_id": sess.ID})
}

// DELETE /session/:id
func (h *DictionaryHandler) ClearSession(c *gin.Context) {
	id := c.Param("id")
	if err := h.dict.ClearSession(c.Request.Context(), id); err != nil {
		h.fail(c, err, "clear_session_failed")
		return
	}
	response.RespondOK(c, gin.H{"cleared": true, "session_id": id})
}

// GET /session/:id/history
func (h *DictionaryHandler) History(c *gin.Context) {
	sess, err := h.dict.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "history_failed")
		return
	}
	history := sess.History
	if history == nil {
		history = []sessions.Turn{}
	}
	response.RespondOK(c, gin.H{"session_id": sess.ID, "history": history})
}

type chatReq struct {
	DBName    string `json:"db_name"`
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
}

// POST /chat
func (h *DictionaryHandler) Chat(c *gin.Context) {
	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("question cannot be empty"))
		return
	}
	out, err := h.dict.Chat(c.Request.Context(), dictionary.ChatInput{
		DBName:    req.DBName,
		Question:  req.Question,
		SessionID: req.SessionID,
	})
	if err != nil {
		h.fail(c, err, "chat_failed")
		return
	}
	response.RespondOK(c, out)
}

// POST /ingest/:db
func (h *DictionaryHandler) Ingest(c *gin.Context) {
	db := c.Param("db")
	out, err := h.dict.Ingest(c.Request.Context(), dictionary.IngestInput{DBName: db})
	if err != nil {
		h.fail(c, err, "ingest_failed")
		return
	}
	response.RespondOK(c, gin.H{"db_name": db, "chunks": out.Chunks, "tables": out.Tables})
}

func (h *DictionaryHandler) fail(c *gin.Context, err error, code string) {
	ae := toAPIError(err, code)
	if h.log != nil && ae.Status >= http.StatusInternalServerError {
		h.log.Error("request failed", "path", c.FullPath(), "code", ae.Code, "error", err)
	}
	response.RespondAPIError(c, ae)
}

var _ DictionaryService = dictionary.Usecases{}
