package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/yungbote/dbdict-backend/internal/app"
	"github.com/yungbote/dbdict-backend/internal/data/healthstore"
	"github.com/yungbote/dbdict-backend/internal/ingestion/artifacts"
	"github.com/yungbote/dbdict-backend/internal/ingestion/introspect"
	"github.com/yungbote/dbdict-backend/internal/modules/dictionary"
	"github.com/yungbote/dbdict-backend/internal/platform/logger"
	"github.com/yungbote/dbdict-backend/internal/platform/neo4jdb"
	"github.com/yungbote/dbdict-backend/internal/platform/openai"
)

// needs selects which backends a command connects to.
type needs struct {
	ai    bool
	index bool
	graph bool
}

// cliEnv holds what one command invocation connected to.
type cliEnv struct {
	log   *logger.Logger
	cfg   app.Config
	graph *neo4jdb.Client
}

func newEnv() (*cliEnv, error) {
	log, err := app.NewLogger()
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	cfg := app.LoadConfig(nil)
	if connectionsPath != "" {
		cfg.ConnectionsPath = connectionsPath
	}
	if artifactsDir != "" {
		cfg.ArtifactsDir = artifactsDir
	}
	return &cliEnv{log: log, cfg: cfg}, nil
}

func (e *cliEnv) close() {
	if e.graph != nil {
		_ = e.graph.Close(context.Background())
	}
	e.log.Sync()
}

func (e *cliEnv) artifacts() artifacts.Store { return artifacts.New(e.cfg.ArtifactsDir) }

func (e *cliEnv) registry() (introspect.Registry, error) {
	reg, err := introspect.LoadRegistry(e.cfg.ConnectionsPath)
	if err != nil {
		return introspect.Registry{}, fmt.Errorf("load connections %s: %w", e.cfg.ConnectionsPath, err)
	}
	return reg, nil
}

func (e *cliEnv) dictionary(n needs) (dictionary.Usecases, error) {
	deps := dictionary.UsecasesDeps{
		Log:                  e.log,
		Artifacts:            e.artifacts(),
		AnswerTimeout:        e.cfg.AnswerTimeout,
		RelationalSummarize:  e.cfg.RelationalSummarize,
		SummarizeParallelism: e.cfg.SummarizeParallelism,
	}
	var ai openai.Client
	if n.ai || n.index {
		c, err := openai.NewClient(e.log)
		if err != nil {
			return dictionary.Usecases{}, fmt.Errorf("init openai client: %w", err)
		}
		ai = c
		deps.AI = c
	}
	if n.index {
		idx, err := app.ResolveVectorIndex(e.log, ai)
		if err != nil {
			return dictionary.Usecases{}, err
		}
		deps.Index = idx
	}
	if n.graph {
		g, err := neo4jdb.NewFromEnv(e.log)
		if err != nil {
			return dictionary.Usecases{}, fmt.Errorf("init neo4j client: %w", err)
		}
		if g != nil {
			e.graph = g
			deps.Graph = g
		}
	}
	return dictionary.New(deps), nil
}

func (e *cliEnv) healthReports() (healthstore.ReportRepo, error) {
	db, err := healthstore.OpenFromEnv(e.log)
	if err != nil {
		return nil, err
	}
	return healthstore.NewReportRepo(db, e.log), nil
}

// emit prints v as indented JSON when --json is set, otherwise calls human.
func emit(v any, human func()) error {
	if !jsonOutput {
		human()
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
