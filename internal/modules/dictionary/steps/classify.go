package steps

import (
	"context"
	"strings"

	"github.com/yungbote/dbdict-backend/internal/observability"
	"github.com/yungbote/dbdict-backend/internal/platform/logger"
)

// Classify assigns an intent. It never fails: a generator error or an
// unrecognized label yields IntentSpecific with fellBack set.
func Classify(ctx context.Context, gen Generator, log *logger.Logger, question string) (intent Intent, fellBack bool) {
	ctx, span := observability.StartSpan(ctx, "dictionary.classify")
	defer func() {
		observability.Current().ObserveIntent(string(intent), fellBack)
		span.End()
	}()

	if gen == nil {
		return IntentSpecific, true
	}
	system, user := promptClassify(strings.TrimSpace(question))
	obj, err := gen.GenerateJSON(ctx, system, user, "query_intent_v1", schemaClassify())
	if err != nil {
		if log != nil {
			log.Warn("classification failed; defaulting to specific", "error", err)
		}
		return IntentSpecific, true
	}
	label, _ := obj["intent"].(string)
	parsed, ok := ParseIntent(label)
	if !ok {
		if log != nil {
			log.Warn("unrecognized intent label; defaulting to specific", "label", label)
		}
		return IntentSpecific, true
	}
	return parsed, false
}
