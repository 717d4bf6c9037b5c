package app

import (
	"context"
	"fmt"

	"github.com/yungbote/dbdict-backend/internal/data/sessions"
	"github.com/yungbote/dbdict-backend/internal/platform/logger"
	"github.com/yungbote/dbdict-backend/internal/platform/neo4jdb"
	"github.com/yungbote/dbdict-backend/internal/platform/openai"
	"github.com/yungbote/dbdict-backend/internal/platform/qdrant"
)

type Clients struct {
	OpenaiClient openai.Client
	Index        *qdrant.CollectionStore
	// Graph is nil when NEO4J_URI is unset.
	Graph    *neo4jdb.Client
	Sessions sessions.Store

	redisSessions *sessions.RedisStore
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	// Openai
	openaiClient, err := openai.NewClient(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init openai client: %w", err)
	}

	// Qdrant
	index, err := ResolveVectorIndex(log, openaiClient)
	if err != nil {
		return Clients{}, err
	}

	// Neo4j
	graphClient, err := neo4jdb.NewFromEnv(log)
	if err != nil {
		return Clients{}, fmt.Errorf("init neo4j client: %w", err)
	}
	if graphClient == nil {
		log.Warn("NEO4J_URI not set; relational questions use vector search only")
	}

	// Sessions
	out := Clients{OpenaiClient: openaiClient, Index: index, Graph: graphClient}
	switch cfg.SessionsBackend {
	case SessionsBackendRedis:
		rs, err := sessions.NewRedisStoreFromEnv(log)
		if err != nil {
			out.Close(context.Background())
			return Clients{}, fmt.Errorf("init redis session store: %w", err)
		}
		out.Sessions = rs
		out.redisSessions = rs
	case SessionsBackendFile:
		fs, err := sessions.NewFileStore(log, cfg.SessionsDir)
		if err != nil {
			out.Close(context.Background())
			return Clients{}, fmt.Errorf("init file session store: %w", err)
		}
		out.Sessions = fs
	default:
		out.Close(context.Background())
		return Clients{}, fmt.Errorf("unsupported SESSIONS_BACKEND %q", cfg.SessionsBackend)
	}
	return out, nil
}

func (c *Clients) Close(ctx context.Context) {
	if c == nil {
		return
	}
	if c.redisSessions != nil {
		_ = c.redisSessions.Close()
	}
	if c.Graph != nil {
		_ = c.Graph.Close(ctx)
	}
}
