package steps

import (
	"context"

	"github.com/yungbote/dbdict-backend/internal/platform/qdrant"
)

// Generator is the generative text collaborator. openai.Client satisfies it.
type Generator interface {
	GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error)
	GenerateText(ctx context.Context, system string, user string) (string, error)
}

// Index is the per-database chunk index. *qdrant.CollectionStore satisfies it.
type Index interface {
	Databases(ctx context.Context) ([]string, error)
	Count(ctx context.Context, dbName string) (int, error)
	Query(ctx context.Context, dbName, text string, topK int, filter *qdrant.Filter) ([]qdrant.Match, error)
	TableNames(ctx context.Context, dbName string) ([]string, error)
	Replace(ctx context.Context, dbName string, docs []qdrant.Document) error
}

type Intent string

const (
	IntentGlobal         Intent = "global"
	IntentRelational     Intent = "relational"
	IntentSpecific       Intent = "specific"
	IntentConversational Intent = "conversational"
)

var intents = []Intent{IntentGlobal, IntentRelational, IntentSpecific, IntentConversational}

// ParseIntent accepts a label case-insensitively, ignoring surrounding
// whitespace and quotes.
func ParseIntent(raw string) (Intent, bool) {
	s := Intent(normalizeLabel(raw))
	for _, in := range intents {
		if s == in {
			return in, true
		}
	}
	return "", false
}

const (
	ChunkTypeTable = "table"

	// historyWindow is how many recent history entries feed prompts and
	// table-name augmentation.
	historyWindow = 6
	// maxSpecificResults caps similarity search results.
	maxSpecificResults = 5
)
