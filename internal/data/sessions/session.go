package sessions

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// MaxHistory bounds persisted history: 10 user/assistant exchanges.
const MaxHistory = 20

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	ErrNotFound  = errors.New("session not found")
	ErrInvalidID = errors.New("invalid session id")

	idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)
)

type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Session struct {
	ID         string    `json:"session_id"`
	DBName     string    `json:"db_name,omitempty"`
	History    []Turn    `json:"history"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

// Append adds one user/assistant exchange.
func (s *Session) Append(question, answer string) {
	s.History = append(s.History,
		Turn{Role: RoleUser, Content: question},
		Turn{Role: RoleAssistant, Content: answer},
	)
}

// Store persists sessions. Concurrent saves for one id are last-write-wins.
type Store interface {
	// Load returns the session, or a fresh empty one when id is unknown.
	Load(ctx context.Context, id string) (Session, error)
	// Save trims history to MaxHistory and refreshes LastActive.
	Save(ctx context.Context, s Session) (Session, error)
	Delete(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (bool, error)
}

// Trim keeps the most recent MaxHistory turns.
func Trim(history []Turn) []Turn {
	if len(history) <= MaxHistory {
		return history
	}
	out := make([]Turn, MaxHistory)
	copy(out, history[len(history)-MaxHistory:])
	return out
}

// ValidateID rejects ids that are unsafe as file names or redis key parts.
func ValidateID(id string) error {
	if !idPattern.MatchString(strings.TrimSpace(id)) || strings.TrimSpace(id) != id {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

func newSession(id string, now time.Time) Session {
	return Session{ID: id, History: []Turn{}, CreatedAt: now, LastActive: now}
}

func prepareSave(s Session, now time.Time) (Session, error) {
	if err := ValidateID(s.ID); err != nil {
		return Session{}, err
	}
	s.History = Trim(s.History)
	if s.History == nil {
		s.History = []Turn{}
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.LastActive = now
	return s, nil
}
