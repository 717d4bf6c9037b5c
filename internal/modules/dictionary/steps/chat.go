package steps

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/dbdict-backend/internal/data/sessions"
)

type ChatDeps struct {
	Answer   AnswerDeps
	Sessions sessions.Store
}

type ChatInput struct {
	DBName    string
	Question  string
	SessionID string
}

type ChatOutput struct {
	Answer    string `json:"answer"`
	Intent    Intent `json:"query_type"`
	DBName    string `json:"db_name"`
	SessionID string `json:"session_id"`
}

// Chat answers one question inside a session. The exchange is appended only
// after a successful answer, so a failed turn leaves history untouched.
func Chat(ctx context.Context, deps ChatDeps, in ChatInput) (ChatOutput, error) {
	out := ChatOutput{DBName: strings.TrimSpace(in.DBName)}
	if strings.TrimSpace(in.Question) == "" {
		return out, newError(ErrValidation, StageValidate, out.DBName, "", fmt.Errorf("question cannot be empty"))
	}
	if out.DBName == "" {
		return out, newError(ErrValidation, StageValidate, "", "", fmt.Errorf("database name required"))
	}
	if deps.Sessions == nil {
		return out, fmt.Errorf("dictionary chat: missing session store")
	}

	id := strings.TrimSpace(in.SessionID)
	if id == "" {
		id = uuid.NewString()
	}
	if err := sessions.ValidateID(id); err != nil {
		return out, newError(ErrValidation, StageSession, out.DBName, "", err)
	}
	out.SessionID = id

	sess, err := deps.Sessions.Load(ctx, id)
	if err != nil {
		return out, sessionError(out.DBName, err)
	}

	ans, err := Answer(ctx, deps.Answer, AnswerInput{
		DBName:   in.DBName,
		Question: in.Question,
		History:  sess.History,
	})
	out.Intent = ans.Intent
	if err != nil {
		return out, err
	}
	out.Answer = ans.Answer

	sess.Append(strings.TrimSpace(in.Question), ans.Answer)
	sess.DBName = out.DBName
	if _, err := deps.Sessions.Save(ctx, sess); err != nil {
		return out, sessionError(out.DBName, err)
	}
	return out, nil
}

// NewSession stores an empty session under a fresh id.
func NewSession(ctx context.Context, store sessions.Store) (sessions.Session, error) {
	if store == nil {
		return sessions.Session{}, fmt.Errorf("dictionary session: missing session store")
	}
	sess, err := store.Load(ctx, uuid.NewString())
	if err != nil {
		return sessions.Session{}, sessionError("", err)
	}
	saved, err := store.Save(ctx, sess)
	if err != nil {
		return sessions.Session{}, sessionError("", err)
	}
	return saved, nil
}

// History returns the stored turns for id, or ErrNotFound.
func History(ctx context.Context, store sessions.Store, id string) (sessions.Session, error) {
	if err := sessions.ValidateID(id); err != nil {
		return sessions.Session{}, newError(ErrValidation, StageSession, "", "", err)
	}
	ok, err := store.Exists(ctx, id)
	if err != nil {
		return sessions.Session{}, sessionError("", err)
	}
	if !ok {
		return sessions.Session{}, newError(ErrNotFound, StageSession, "", "", fmt.Errorf("session %q", id))
	}
	sess, err := store.Load(ctx, id)
	if err != nil {
		return sessions.Session{}, sessionError("", err)
	}
	return sess, nil
}

// ClearSession deletes id. Clearing an unknown session succeeds.
func ClearSession(ctx context.Context, store sessions.Store, id string) error {
	if err := sessions.ValidateID(id); err != nil {
		return newError(ErrValidation, StageSession, "", "", err)
	}
	if err := store.Delete(ctx, id); err != nil {
		return sessionError("", err)
	}
	return nil
}

func sessionError(db string, err error) error {
	switch {
	case errors.Is(err, sessions.ErrInvalidID):
		return newError(ErrValidation, StageSession, db, "", err)
	case errors.Is(err, sessions.ErrNotFound):
		return newError(ErrNotFound, StageSession, db, "", err)
	}
	return newError(ErrRetrieval, StageSession, db, "", err)
}
