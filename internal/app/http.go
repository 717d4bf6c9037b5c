package app

import (
	apphttp "github.com/yungbote/dbdict-backend/internal/http"
	httpH "github.com/yungbote/dbdict-backend/internal/http/handlers"
	"github.com/yungbote/dbdict-backend/internal/observability"
	"github.com/yungbote/dbdict-backend/internal/platform/logger"
)

type Handlers struct {
	Health     *httpH.HealthHandler
	Dictionary *httpH.DictionaryHandler
	Docs       *httpH.DocsHandler
}

func wireHandlers(log *logger.Logger, services Services, reposet Repos) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health: httpH.NewHealthHandler(httpH.HealthHandlerDeps{
			Registry: services.Registry,
			Reports:  reposet.HealthReports,
			Checker:  services.Monitor,
		}),
		Dictionary: httpH.NewDictionaryHandler(httpH.DictionaryHandlerDeps{
			Log:        log,
			Dictionary: services.Dictionary,
		}),
		Docs: httpH.NewDocsHandler(services.Dictionary.Artifacts()),
	}
}

func wireServer(log *logger.Logger, cfg Config, handlers Handlers, metrics *observability.Metrics, tracing bool) *apphttp.Server {
	return apphttp.NewServer(apphttp.RouterConfig{
		Log:               log,
		Metrics:           metrics,
		ServiceName:       cfg.ServiceName,
		Tracing:           tracing,
		DictionaryHandler: handlers.Dictionary,
		DocsHandler:       handlers.Docs,
		HealthHandler:     handlers.Health,
	})
}
