package handlers

import (
	"testing"

	"github.com/yungbote/dbdict-backend/internal/platform/logger"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

func TestNewDictionaryHandlerWithDeps(t *testing.T) {
	h := NewDictionaryHandler(DictionaryHandlerDeps{Log: newTestLogger(t)})
	if h == nil {
		t.Fatal("expected non-nil handler")
	}
}

func TestNewHealthHandlerWithDeps(t *testing.T) {
	h := NewHealthHandler(HealthHandlerDeps{})
	if h == nil {
		t.Fatal("expected non-nil handler")
	}
}
