package app

import (
	"fmt"

	"github.com/yungbote/dbdict-backend/internal/ingestion/artifacts"
	"github.com/yungbote/dbdict-backend/internal/ingestion/introspect"
	"github.com/yungbote/dbdict-backend/internal/jobs/monitor"
	"github.com/yungbote/dbdict-backend/internal/modules/dictionary"
	"github.com/yungbote/dbdict-backend/internal/platform/logger"
)

type Services struct {
	Dictionary dictionary.Usecases
	Registry   introspect.Registry
	Monitor    *monitor.Monitor
}

func wireServices(log *logger.Logger, cfg Config, clients Clients, reposet Repos) (Services, error) {
	log.Info("Wiring services...")

	store := artifacts.New(cfg.ArtifactsDir)
	deps := dictionary.UsecasesDeps{
		Log:                  log,
		AI:                   clients.OpenaiClient,
		Index:                clients.Index,
		Sessions:             clients.Sessions,
		Artifacts:            store,
		AnswerTimeout:        cfg.AnswerTimeout,
		RelationalSummarize:  cfg.RelationalSummarize,
		SummarizeParallelism: cfg.SummarizeParallelism,
	}
	if clients.Graph != nil {
		deps.Graph = clients.Graph
	}

	registry, err := introspect.LoadRegistry(cfg.ConnectionsPath)
	if err != nil {
		return Services{}, fmt.Errorf("load connections %s: %w", cfg.ConnectionsPath, err)
	}
	log.Info("Connections loaded", "path", cfg.ConnectionsPath, "connections", registry.Names())

	opts := monitor.OptionsFromEnv()
	opts.Artifacts = &store

	return Services{
		Dictionary: dictionary.New(deps),
		Registry:   registry,
		Monitor:    monitor.New(log, registry, reposet.HealthReports, opts),
	}, nil
}
