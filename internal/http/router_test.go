package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	httpH "github.com/yungbote/dbdict-backend/internal/http/handlers"
	"github.com/yungbote/dbdict-backend/internal/observability"
	"github.com/yungbote/dbdict-backend/internal/platform/logger"
)

func newTestRouter(t *testing.T, metrics *observability.Metrics) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return NewRouter(RouterConfig{
		Log:           log,
		Metrics:       metrics,
		HealthHandler: httpH.NewHealthHandler(httpH.HealthHandlerDeps{}),
	})
}

func TestRouterHealthcheck(t *testing.T) {
	r := newTestRouter(t, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("healthcheck: want=200 ok got=%d %q", w.Code, w.Body.String())
	}
}

func TestRouterMetricsOnlyWhenEnabled(t *testing.T) {
	w := httptest.NewRecorder()
	newTestRouter(t, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("metrics disabled: want=404 got=%d", w.Code)
	}

	r := newTestRouter(t, observability.NewMetrics())
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("metrics enabled: want=200 got=%d", w.Code)
	}
}

func TestRouterUnwiredHandlersHaveNoRoutes(t *testing.T) {
	w := httptest.NewRecorder()
	newTestRouter(t, nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/databases", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("databases without handler: want=404 got=%d", w.Code)
	}
}
