package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/dbdict-backend/internal/data/healthstore"
	"github.com/yungbote/dbdict-backend/internal/domain/health"
	"github.com/yungbote/dbdict-backend/internal/http/response"
	"github.com/yungbote/dbdict-backend/internal/ingestion/introspect"
	"github.com/yungbote/dbdict-backend/internal/jobs/monitor"
)

// HealthChecker runs an on-demand check. *monitor.Monitor satisfies it.
type HealthChecker interface {
	CheckByName(ctx context.Context, name, kind string) (*health.Report, error)
}

type HealthHandlerDeps struct {
	Registry introspect.Registry
	Reports  healthstore.ReportRepo
	Checker  HealthChecker
}

type HealthHandler struct {
	registry introspect.Registry
	reports  healthstore.ReportRepo
	checker  HealthChecker
}

func NewHealthHandler(deps HealthHandlerDeps) *HealthHandler {
	return &HealthHandler{registry: deps.Registry, reports: deps.Reports, checker: deps.Checker}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// GET /health/:connection?refresh=light|deep
func (h *HealthHandler) Connection(c *gin.Context) {
	name := c.Param("connection")
	if _, err := h.registry.Get(name); err != nil {
		response.RespondAPIError(c, toAPIError(err, "not_found"))
		return
	}
	if kind := strings.TrimSpace(c.Query("refresh")); kind != "" {
		if kind != health.KindLight && kind != health.KindDeep {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("refresh must be light or deep"))
			return
		}
		if h.checker == nil {
			response.RespondError(c, http.StatusServiceUnavailable, "monitor_disabled", fmt.Errorf("health monitor not configured"))
			return
		}
		if _, err := h.checker.CheckByName(c.Request.Context(), name, kind); err != nil {
			response.RespondError(c, http.StatusInternalServerError, "health_check_failed", err)
			return
		}
	}
	if h.reports == nil {
		response.RespondError(c, http.StatusServiceUnavailable, "monitor_disabled", fmt.Errorf("health store not configured"))
		return
	}
	light, deep, err := monitor.Latest(c.Request.Context(), h.reports, name)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "health_lookup_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"connection": name, "light": light, "deep": deep})
}
