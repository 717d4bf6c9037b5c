package promptstyle

import (
	"strings"
	"testing"
)

func TestApplySystemIsIdempotent(t *testing.T) {
	once := ApplySystem("Classify the question.", "json")
	twice := ApplySystem(once, "json")
	if once != twice {
		t.Fatalf("ApplySystem not idempotent:\n%s\n---\n%s", once, twice)
	}
	if !strings.HasSuffix(once, "Classify the question.") {
		t.Fatalf("base prompt not preserved: %q", once)
	}
}

func TestApplySystemEmpty(t *testing.T) {
	if got := ApplySystem("   ", "text"); got != "" {
		t.Fatalf("want empty, got %q", got)
	}
}
