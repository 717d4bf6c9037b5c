package app

import (
	"errors"
	"fmt"

	"github.com/yungbote/dbdict-backend/internal/platform/logger"
	"github.com/yungbote/dbdict-backend/internal/platform/qdrant"
)

var (
	resolveQdrantConfig  = qdrant.ResolveConfigFromEnv
	newQdrantCollections = qdrant.NewCollectionStore
)

type VectorProviderBootstrapErrorCode string

const (
	VectorProviderBootstrapErrorMissingURL       VectorProviderBootstrapErrorCode = "missing_qdrant_url"
	VectorProviderBootstrapErrorInvalidURL       VectorProviderBootstrapErrorCode = "invalid_qdrant_url"
	VectorProviderBootstrapErrorMissingVector    VectorProviderBootstrapErrorCode = "missing_qdrant_vector_dim"
	VectorProviderBootstrapErrorInvalidVector    VectorProviderBootstrapErrorCode = "invalid_qdrant_vector_dim"
	VectorProviderBootstrapErrorConfigFailed     VectorProviderBootstrapErrorCode = "qdrant_config_failed"
	VectorProviderBootstrapErrorConnectFailed    VectorProviderBootstrapErrorCode = "connect_failed"
	VectorProviderBootstrapErrorProviderInitFail VectorProviderBootstrapErrorCode = "provider_init_failed"
)

type VectorProviderBootstrapError struct {
	Code  VectorProviderBootstrapErrorCode
	Cause error
}

func (e *VectorProviderBootstrapError) Error() string {
	if e == nil {
		return "vector index bootstrap failed"
	}
	return fmt.Sprintf("vector index bootstrap failed (code=%s): %v", e.Code, e.Cause)
}

func (e *VectorProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// ResolveVectorIndex builds the per-database Qdrant collection store from
// QDRANT_* env. Every failure is returned as *VectorProviderBootstrapError.
func ResolveVectorIndex(log *logger.Logger, embedder qdrant.Embedder) (*qdrant.CollectionStore, error) {
	cfg, err := resolveQdrantConfig()
	if err != nil {
		classified := classifyVectorProviderBootstrapError(err)
		log.Error("Vector index config invalid", "error_code", vectorProviderBootstrapErrorCode(classified), "error", classified)
		return nil, classified
	}
	log.Info(
		"Selecting vector index",
		"provider", "qdrant",
		"qdrant_url", cfg.URL,
		"collection_prefix", cfg.CollectionPrefix,
		"vector_dim", cfg.VectorDim,
	)
	store, err := newQdrantCollections(log, cfg, embedder)
	if err != nil {
		classified := classifyVectorProviderBootstrapError(err)
		log.Error("Vector index bootstrap failed", "error_code", vectorProviderBootstrapErrorCode(classified), "error", classified)
		return nil, classified
	}
	return store, nil
}

func classifyVectorProviderBootstrapError(err error) error {
	if err == nil {
		return nil
	}
	var already *VectorProviderBootstrapError
	if errors.As(err, &already) {
		return err
	}
	code := VectorProviderBootstrapErrorProviderInitFail
	var cfgErr *qdrant.ConfigError
	var opErr *qdrant.OperationError
	switch {
	case errors.As(err, &cfgErr):
		switch cfgErr.Code {
		case qdrant.ConfigErrorMissingURL:
			code = VectorProviderBootstrapErrorMissingURL
		case qdrant.ConfigErrorInvalidURL:
			code = VectorProviderBootstrapErrorInvalidURL
		case qdrant.ConfigErrorMissingVectorDim:
			code = VectorProviderBootstrapErrorMissingVector
		case qdrant.ConfigErrorInvalidVectorDim:
			code = VectorProviderBootstrapErrorInvalidVector
		default:
			code = VectorProviderBootstrapErrorConfigFailed
		}
	case errors.As(err, &opErr):
		code = VectorProviderBootstrapErrorConnectFailed
	}
	return &VectorProviderBootstrapError{Code: code, Cause: err}
}

func vectorProviderBootstrapErrorCode(err error) VectorProviderBootstrapErrorCode {
	var bootstrapErr *VectorProviderBootstrapError
	if errors.As(err, &bootstrapErr) && bootstrapErr != nil {
		return bootstrapErr.Code
	}
	return ""
}
