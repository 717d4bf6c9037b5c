package steps

import (
	"strings"

	"github.com/yungbote/dbdict-backend/internal/data/sessions"
)

func recentHistory(history []sessions.Turn) []sessions.Turn {
	if len(history) > historyWindow {
		return history[len(history)-historyWindow:]
	}
	return history
}

// FormatHistory renders the last few turns as "User:"/"Assistant:" lines.
func FormatHistory(history []sessions.Turn) string {
	recent := recentHistory(history)
	if len(recent) == 0 {
		return "No previous conversation."
	}
	lines := make([]string, 0, len(recent))
	for _, t := range recent {
		role := "Assistant"
		if t.Role == sessions.RoleUser {
			role = "User"
		}
		lines = append(lines, role+": "+t.Content)
	}
	return strings.Join(lines, "\n")
}

// TablesInHistory returns the known tables mentioned in recent history, in
// knownTables order. Matching is a case-insensitive substring test.
func TablesInHistory(history []sessions.Turn, knownTables []string) []string {
	recent := recentHistory(history)
	if len(recent) == 0 || len(knownTables) == 0 {
		return nil
	}
	parts := make([]string, 0, len(recent))
	for _, t := range recent {
		parts = append(parts, strings.ToLower(t.Content))
	}
	text := strings.Join(parts, " ")
	var out []string
	for _, name := range knownTables {
		if name != "" && strings.Contains(text, strings.ToLower(name)) {
			out = append(out, name)
		}
	}
	return out
}
