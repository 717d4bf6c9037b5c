package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/yungbote/dbdict-backend/internal/domain/schema"
)

var (
	ErrNotFound    = errors.New("artifact not found")
	ErrInvalidName = errors.New("invalid database name")

	dbNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
)

// Store lays out per-database files under Root:
//
//	<root>/<db>/<db>_schema.json
//	<root>/<db>/<db>_health_deep.json
//	<root>/<db>/<db>_ai_summary.json
//	<root>/<db>/<db>_llm_schema.txt
//	<root>/<db>_global_context.txt
type Store struct {
	Root string
}

func New(root string) Store { return Store{Root: root} }

func ValidateName(db string) error {
	if !dbNamePattern.MatchString(db) || db == "." || db == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, db)
	}
	return nil
}

func (s Store) Dir(db string) string { return filepath.Join(s.Root, db) }

func (s Store) SchemaPath(db string) string {
	return filepath.Join(s.Dir(db), db+"_schema.json")
}

func (s Store) QualityPath(db string) string {
	return filepath.Join(s.Dir(db), db+"_health_deep.json")
}

func (s Store) SummaryPath(db string) string {
	return filepath.Join(s.Dir(db), db+"_ai_summary.json")
}

func (s Store) CompactSchemaPath(db string) string {
	return filepath.Join(s.Dir(db), db+"_llm_schema.txt")
}

func (s Store) GlobalContextPath(db string) string {
	return filepath.Join(s.Root, db+"_global_context.txt")
}

func (s Store) ReadSchema(db string) (schema.Database, error) {
	var out schema.Database
	if err := s.readJSON(db, s.SchemaPath(db), &out); err != nil {
		return schema.Database{}, err
	}
	if out.Name == "" {
		out.Name = db
	}
	return out, nil
}

func (s Store) WriteSchema(db string, d schema.Database) error {
	return s.writeJSON(db, s.SchemaPath(db), d)
}

// ReadQuality returns nil, nil when no quality run exists.
func (s Store) ReadQuality(db string) (schema.Quality, error) {
	var out schema.Quality
	err := s.readJSON(db, s.QualityPath(db), &out)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return out, err
}

func (s Store) WriteQuality(db string, q schema.Quality) error {
	return s.writeJSON(db, s.QualityPath(db), q)
}

// ReadSummaries returns nil, nil when summaries were never generated.
func (s Store) ReadSummaries(db string) (schema.Summaries, error) {
	var out schema.Summaries
	err := s.readJSON(db, s.SummaryPath(db), &out)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return out, err
}

func (s Store) WriteSummaries(db string, sums schema.Summaries) error {
	return s.writeJSON(db, s.SummaryPath(db), sums)
}

func (s Store) ReadCompactSchema(db string) (string, error) {
	return s.readText(db, s.CompactSchemaPath(db))
}

func (s Store) WriteCompactSchema(db, text string) error {
	return s.writeText(db, s.CompactSchemaPath(db), text)
}

func (s Store) ReadGlobalContext(db string) (string, error) {
	return s.readText(db, s.GlobalContextPath(db))
}

func (s Store) WriteGlobalContext(db, text string) error {
	return s.writeText(db, s.GlobalContextPath(db), text)
}

// ReadRaw returns a file's bytes for serving as-is.
func (s Store) ReadRaw(db, path string) ([]byte, error) {
	if err := ValidateName(db); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(path))
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return raw, nil
}

func (s Store) readJSON(db, path string, out any) error {
	raw, err := s.ReadRaw(db, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (s Store) readText(db, path string) (string, error) {
	raw, err := s.ReadRaw(db, path)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (s Store) writeJSON(db, path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return s.write(db, path, raw)
}

func (s Store) writeText(db, path, text string) error {
	return s.write(db, path, []byte(text))
}

// write replaces path atomically so readers see the old or the new file.
func (s Store) write(db, path string, raw []byte) error {
	if err := ValidateName(db); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
