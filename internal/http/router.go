package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/dbdict-backend/internal/http/handlers"
	httpMW "github.com/yungbote/dbdict-backend/internal/http/middleware"
	"github.com/yungbote/dbdict-backend/internal/observability"
	"github.com/yungbote/dbdict-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	// Tracing adds otelgin spans per request.
	Tracing bool

	DictionaryHandler *httpH.DictionaryHandler
	DocsHandler       *httpH.DocsHandler
	HealthHandler     *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Tracing {
		name := cfg.ServiceName
		if name == "" {
			name = "dbdict-api"
		}
		r.Use(otelgin.Middleware(name))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.CORS())
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.RequestLogger(cfg.Log))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/health/:connection", cfg.HealthHandler.Connection)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	// Chat
	if cfg.DictionaryHandler != nil {
		r.GET("/databases", cfg.DictionaryHandler.ListDatabases)
		r.POST("/session", cfg.DictionaryHandler.CreateSession)
		r.DELETE("/session/:id", cfg.DictionaryHandler.ClearSession)
		r.GET("/session/:id/history", cfg.DictionaryHandler.History)
		r.POST("/chat", cfg.DictionaryHandler.Chat)
		r.POST("/ingest/:db", cfg.DictionaryHandler.Ingest)
	}

	// Docs
	if cfg.DocsHandler != nil {
		docs := r.Group("/docs/:db")
		docs.GET("/files", cfg.DocsHandler.ListFiles)
		docs.GET("/schema.json", cfg.DocsHandler.SchemaJSON)
		docs.GET("/quality.json", cfg.DocsHandler.QualityJSON)
		docs.GET("/summary", cfg.DocsHandler.SummaryMarkdown)
		docs.GET("/summary.json", cfg.DocsHandler.SummaryJSON)
		docs.GET("/llm-schema", cfg.DocsHandler.CompactSchema)
	}

	return r
}
