package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/yungbote/dbdict-backend/internal/platform/logger"
)

// FileStore keeps one JSON document per session under dir.
type FileStore struct {
	log *logger.Logger
	dir string
	now func() time.Time
}

func NewFileStore(log *logger.Logger, dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("sessions dir required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sessions dir: %w", err)
	}
	return &FileStore{log: log.With("service", "FileSessionStore"), dir: dir, now: time.Now}, nil
}

func (s *FileStore) path(id string) string { return filepath.Join(s.dir, id+".json") }

func (s *FileStore) Load(ctx context.Context, id string) (Session, error) {
	if err := ValidateID(id); err != nil {
		return Session{}, err
	}
	raw, err := os.ReadFile(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return newSession(id, s.now().UTC()), nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("read session: %w", err)
	}
	return decodeSession(id, raw)
}

func (s *FileStore) Save(ctx context.Context, in Session) (Session, error) {
	out, err := prepareSave(in, s.now().UTC())
	if err != nil {
		return Session{}, err
	}
	raw, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return Session{}, fmt.Errorf("encode session: %w", err)
	}
	// Write-then-rename so readers never see a torn file.
	tmp, err := os.CreateTemp(s.dir, out.ID+".*.tmp")
	if err != nil {
		return Session{}, fmt.Errorf("write session: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return Session{}, fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return Session{}, fmt.Errorf("write session: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(out.ID)); err != nil {
		_ = os.Remove(tmp.Name())
		return Session{}, fmt.Errorf("write session: %w", err)
	}
	return out, nil
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if err := os.Remove(s.path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *FileStore) Exists(ctx context.Context, id string) (bool, error) {
	if err := ValidateID(id); err != nil {
		return false, err
	}
	_, err := os.Stat(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat session: %w", err)
	}
	return true, nil
}
