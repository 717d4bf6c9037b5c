package observability

import (
	"context"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yungbote/dbdict-backend/internal/platform/logger"
)

// Retrieval outcomes. "empty" and "error" are kept apart so a backend that
// answered with nothing is not confused with one that failed.
const (
	OutcomeSuccess = "success"
	OutcomeEmpty   = "empty"
	OutcomeError   = "error"
)

type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	llmRequests *prometheus.CounterVec
	llmLatency  *prometheus.HistogramVec
	llmTokens   *prometheus.CounterVec

	intents       *prometheus.CounterVec
	retrievals    *prometheus.CounterVec
	fallbacks     *prometheus.CounterVec
	answerLatency *prometheus.HistogramVec
	ingestRuns    *prometheus.CounterVec
	healthChecks  *prometheus.CounterVec
	healthLatency *prometheus.GaugeVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	v := strings.TrimSpace(os.Getenv("METRICS_ENABLED"))
	if v == "" {
		return false
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

// Current returns the process metrics, or nil when metrics are disabled.
// Every Observe method is nil-safe.
func Current() *Metrics {
	return instance
}

func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = NewMetrics()
		if log != nil {
			log.Info("prometheus metrics enabled")
		}
	})
	return instance
}

// NewMetrics builds an independent metric set on its own registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := &Metrics{
		registry: reg,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dbdict_api_requests_total",
			Help: "Total API requests by method/route/status.",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dbdict_api_request_duration_seconds",
			Help:    "API request latency in seconds by method/route/status.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"method", "route", "status"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dbdict_api_inflight_requests",
			Help: "In-flight API requests.",
		}),
		llmRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dbdict_llm_requests_total",
			Help: "LLM requests by model/endpoint/status.",
		}, []string{"model", "endpoint", "status"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dbdict_llm_request_duration_seconds",
			Help:    "LLM request latency in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"model", "endpoint", "status"}),
		llmTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dbdict_llm_tokens_total",
			Help: "LLM tokens by model and direction.",
		}, []string{"model", "direction"}),
		intents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dbdict_intents_total",
			Help: "Classified questions by intent and whether the classifier fell back.",
		}, []string{"intent", "fallback"}),
		retrievals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dbdict_retrieval_attempts_total",
			Help: "Retrieval strategy attempts by intent/strategy/outcome.",
		}, []string{"intent", "strategy", "outcome"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dbdict_retrieval_fallbacks_total",
			Help: "Retrieval fallbacks by intent and the reason the previous strategy gave up.",
		}, []string{"intent", "reason"}),
		answerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dbdict_answer_duration_seconds",
			Help:    "End-to-end answer latency by intent and status.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
		}, []string{"intent", "status"}),
		ingestRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dbdict_ingest_runs_total",
			Help: "Ingestion runs by stage and status.",
		}, []string{"stage", "status"}),
		healthChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dbdict_health_checks_total",
			Help: "Source database health checks by connection/kind/status.",
		}, []string{"connection", "kind", "status"}),
		healthLatency: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dbdict_health_ping_seconds",
			Help: "Latest light-check latency per connection.",
		}, []string{"connection"}),
	}
	reg.MustRegister(
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.llmRequests, m.llmLatency, m.llmTokens,
		m.intents, m.retrievals, m.fallbacks, m.answerLatency,
		m.ingestRuns, m.healthChecks, m.healthLatency,
	)
	return m
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry for tests and custom exporters.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	method = orDefault(method, "UNKNOWN")
	route = orDefault(route, "unknown")
	status = orDefault(status, "0")
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route, status).Observe(dur.Seconds())
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveLLMRequest(model, endpoint, status string, dur time.Duration, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	model = orDefault(model, "unknown")
	endpoint = orDefault(endpoint, "unknown")
	status = orDefault(status, "0")
	m.llmRequests.WithLabelValues(model, endpoint, status).Inc()
	if dur > 0 {
		m.llmLatency.WithLabelValues(model, endpoint, status).Observe(dur.Seconds())
	}
	if inputTokens > 0 {
		m.llmTokens.WithLabelValues(model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		m.llmTokens.WithLabelValues(model, "output").Add(float64(outputTokens))
	}
}

func (m *Metrics) ObserveIntent(intent string, fellBack bool) {
	if m == nil {
		return
	}
	fb := "false"
	if fellBack {
		fb = "true"
	}
	m.intents.WithLabelValues(orDefault(intent, "unknown"), fb).Inc()
}

func (m *Metrics) ObserveRetrieval(intent, strategy, outcome string) {
	if m == nil {
		return
	}
	m.retrievals.WithLabelValues(orDefault(intent, "unknown"), orDefault(strategy, "unknown"), orDefault(outcome, OutcomeError)).Inc()
}

func (m *Metrics) IncFallback(intent, reason string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(orDefault(intent, "unknown"), orDefault(reason, OutcomeError)).Inc()
}

func (m *Metrics) ObserveAnswer(intent, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.answerLatency.WithLabelValues(orDefault(intent, "none"), orDefault(status, "ok")).Observe(dur.Seconds())
}

func (m *Metrics) IncIngest(stage, status string) {
	if m == nil {
		return
	}
	m.ingestRuns.WithLabelValues(orDefault(stage, "unknown"), orDefault(status, "ok")).Inc()
}

func (m *Metrics) ObserveHealthCheck(connection, kind, status string, latency time.Duration) {
	if m == nil {
		return
	}
	m.healthChecks.WithLabelValues(orDefault(connection, "unknown"), orDefault(kind, "light"), orDefault(status, "ok")).Inc()
	if kind == "light" && latency > 0 {
		m.healthLatency.WithLabelValues(orDefault(connection, "unknown")).Set(latency.Seconds())
	}
}

func orDefault(v, def string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	return v
}
