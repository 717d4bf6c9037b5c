package qdrant

import (
	"errors"
	"testing"
	"time"
)

func TestResolveConfigFromEnvValid(t *testing.T) {
	t.Setenv("QDRANT_URL", "http://qdrant:6333")
	t.Setenv("QDRANT_COLLECTION_PREFIX", "dd")
	t.Setenv("QDRANT_VECTOR_DIM", "1536")
	t.Setenv("QDRANT_TIMEOUT_SECONDS", "3")

	cfg, err := ResolveConfigFromEnv()
	if err != nil {
		t.Fatalf("ResolveConfigFromEnv: %v", err)
	}
	if cfg.URL != "http://qdrant:6333" {
		t.Fatalf("URL: want=%q got=%q", "http://qdrant:6333", cfg.URL)
	}
	if cfg.CollectionPrefix != "dd" {
		t.Fatalf("CollectionPrefix: want=%q got=%q", "dd", cfg.CollectionPrefix)
	}
	if cfg.VectorDim != 1536 {
		t.Fatalf("VectorDim: want=%d got=%d", 1536, cfg.VectorDim)
	}
	if cfg.Timeout != 3*time.Second {
		t.Fatalf("Timeout: want=%s got=%s", 3*time.Second, cfg.Timeout)
	}
}

func TestResolveConfigFromEnvDefaultsPrefix(t *testing.T) {
	t.Setenv("QDRANT_URL", "http://qdrant:6333")
	t.Setenv("QDRANT_COLLECTION_PREFIX", "")
	t.Setenv("QDRANT_VECTOR_DIM", "8")

	cfg, err := ResolveConfigFromEnv()
	if err != nil {
		t.Fatalf("ResolveConfigFromEnv: %v", err)
	}
	if cfg.CollectionPrefix != "dbdict" {
		t.Fatalf("CollectionPrefix: want=%q got=%q", "dbdict", cfg.CollectionPrefix)
	}
}

func TestResolveConfigFromEnvErrors(t *testing.T) {
	cases := []struct {
		name   string
		url    string
		prefix string
		dim    string
		want   ConfigErrorCode
	}{
		{name: "missing url", url: "", prefix: "dd", dim: "8", want: ConfigErrorMissingURL},
		{name: "invalid url", url: "qdrant:6333", prefix: "dd", dim: "8", want: ConfigErrorInvalidURL},
		{name: "invalid prefix", url: "http://qdrant:6333", prefix: "bad prefix", dim: "8", want: ConfigErrorInvalidPrefix},
		{name: "missing dim", url: "http://qdrant:6333", prefix: "dd", dim: "", want: ConfigErrorMissingVectorDim},
		{name: "invalid dim", url: "http://qdrant:6333", prefix: "dd", dim: "abc", want: ConfigErrorInvalidVectorDim},
		{name: "zero dim", url: "http://qdrant:6333", prefix: "dd", dim: "0", want: ConfigErrorInvalidVectorDim},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("QDRANT_URL", tc.url)
			t.Setenv("QDRANT_COLLECTION_PREFIX", tc.prefix)
			t.Setenv("QDRANT_VECTOR_DIM", tc.dim)

			_, err := ResolveConfigFromEnv()
			if err == nil {
				t.Fatalf("ResolveConfigFromEnv: expected error, got nil")
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got=%T", err)
			}
			if cfgErr.Code != tc.want {
				t.Fatalf("code: want=%q got=%q", tc.want, cfgErr.Code)
			}
		})
	}
}
