package app

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/dbdict-backend/internal/platform/logger"
	"github.com/yungbote/dbdict-backend/internal/platform/qdrant"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func stubVectorIndex(t *testing.T, cfg qdrant.Config, cfgErr error, storeErr error) *qdrant.Config {
	t.Helper()
	origCfg, origStore := resolveQdrantConfig, newQdrantCollections
	t.Cleanup(func() {
		resolveQdrantConfig = origCfg
		newQdrantCollections = origStore
	})
	var captured qdrant.Config
	resolveQdrantConfig = func() (qdrant.Config, error) { return cfg, cfgErr }
	newQdrantCollections = func(_ *logger.Logger, c qdrant.Config, _ qdrant.Embedder) (*qdrant.CollectionStore, error) {
		captured = c
		if storeErr != nil {
			return nil, storeErr
		}
		return &qdrant.CollectionStore{}, nil
	}
	return &captured
}

func TestResolveVectorIndexSelected(t *testing.T) {
	cfg := qdrant.Config{URL: "http://qdrant:6333", CollectionPrefix: "dbdict", VectorDim: 3}
	captured := stubVectorIndex(t, cfg, nil, nil)

	store, err := ResolveVectorIndex(newTestLogger(t), stubEmbedder{})
	if err != nil {
		t.Fatalf("ResolveVectorIndex: %v", err)
	}
	if store == nil {
		t.Fatalf("store: expected non-nil")
	}
	if captured.URL != cfg.URL || captured.CollectionPrefix != "dbdict" || captured.VectorDim != 3 {
		t.Fatalf("config: want=%+v got=%+v", cfg, *captured)
	}
}

func TestResolveVectorIndexClassifiesErrors(t *testing.T) {
	cases := []struct {
		name     string
		cfgErr   error
		storeErr error
		want     VectorProviderBootstrapErrorCode
	}{
		{
			name:   "missing url",
			cfgErr: &qdrant.ConfigError{Code: qdrant.ConfigErrorMissingURL},
			want:   VectorProviderBootstrapErrorMissingURL,
		},
		{
			name:   "invalid vector dim",
			cfgErr: &qdrant.ConfigError{Code: qdrant.ConfigErrorInvalidVectorDim, Value: "abc"},
			want:   VectorProviderBootstrapErrorInvalidVector,
		},
		{
			name:     "unreachable",
			storeErr: &qdrant.OperationError{Code: qdrant.OperationErrorTransportFailed, Operation: "readyz"},
			want:     VectorProviderBootstrapErrorConnectFailed,
		},
		{
			name:     "other",
			storeErr: errors.New("embedder required"),
			want:     VectorProviderBootstrapErrorProviderInitFail,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stubVectorIndex(t, qdrant.Config{URL: "http://qdrant:6333", VectorDim: 3}, tc.cfgErr, tc.storeErr)
			store, err := ResolveVectorIndex(newTestLogger(t), stubEmbedder{})
			if store != nil {
				t.Fatalf("store: want nil on error")
			}
			var bootstrapErr *VectorProviderBootstrapError
			if !errors.As(err, &bootstrapErr) {
				t.Fatalf("error type: want *VectorProviderBootstrapError got=%T", err)
			}
			if bootstrapErr.Code != tc.want {
				t.Fatalf("code: want=%s got=%s", tc.want, bootstrapErr.Code)
			}
			cause := tc.cfgErr
			if cause == nil {
				cause = tc.storeErr
			}
			if !errors.Is(err, cause) {
				t.Fatalf("cause not preserved: %v", err)
			}
		})
	}
}
