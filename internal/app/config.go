package app

import (
	"strings"
	"time"

	"github.com/yungbote/dbdict-backend/internal/platform/envutil"
	"github.com/yungbote/dbdict-backend/internal/platform/logger"
)

const (
	SessionsBackendRedis = "redis"
	SessionsBackendFile  = "file"
)

type Config struct {
	Port        string
	Environment string
	ServiceName string
	Version     string

	ArtifactsDir    string
	ConnectionsPath string

	// SessionsBackend is "redis" or "file". Empty picks redis when REDIS_ADDR
	// is set.
	SessionsBackend string
	SessionsDir     string

	AnswerTimeout        time.Duration
	RelationalSummarize  bool
	SummarizeParallelism int

	HealthMonitorEnabled bool
	MetricsAddr          string
}

func LoadConfig(log *logger.Logger) Config {
	backend := strings.ToLower(envutil.String("SESSIONS_BACKEND", ""))
	if backend == "" {
		backend = SessionsBackendFile
		if envutil.String("REDIS_ADDR", "") != "" {
			backend = SessionsBackendRedis
		}
	}
	cfg := Config{
		Port:                 envutil.String("PORT", "8080"),
		Environment:          envutil.String("APP_ENV", "development"),
		ServiceName:          envutil.String("OTEL_SERVICE_NAME", "dbdict-api"),
		Version:              envutil.String("APP_VERSION", "dev"),
		ArtifactsDir:         envutil.String("ARTIFACTS_DIR", "artifacts"),
		ConnectionsPath:      envutil.String("DBDICT_CONNECTIONS", "connections.yaml"),
		SessionsBackend:      backend,
		SessionsDir:          envutil.String("SESSIONS_DIR", "sessions"),
		AnswerTimeout:        envutil.Seconds("REQUEST_TIMEOUT_SECONDS", 60*time.Second),
		RelationalSummarize:  envutil.Bool("RELATIONAL_SUMMARIZE", false),
		SummarizeParallelism: envutil.Int("SUMMARIZE_PARALLELISM", 4),
		HealthMonitorEnabled: envutil.Bool("HEALTH_MONITOR_ENABLED", true),
		MetricsAddr:          envutil.String("METRICS_ADDR", ""),
	}
	if log != nil {
		log.Info(
			"Config loaded",
			"port", cfg.Port,
			"env", cfg.Environment,
			"artifacts_dir", cfg.ArtifactsDir,
			"connections", cfg.ConnectionsPath,
			"sessions_backend", cfg.SessionsBackend,
			"relational_summarize", cfg.RelationalSummarize,
		)
	}
	return cfg
}
