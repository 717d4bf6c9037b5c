package introspect

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/dbdict-backend/internal/platform/logger"
)

var ErrUnknownConnection = errors.New("unknown connection")

// Connection is an explicit handle to one source database. Callers open it per
// operation; nothing holds a process-wide active connection.
type Connection struct {
	Name    string `yaml:"name" json:"name"`
	Dialect string `yaml:"dialect" json:"dialect"`
	// DSN is a file path for sqlite and a connection URL for postgres.
	DSN         string `yaml:"dsn" json:"-"`
	Schema      string `yaml:"schema,omitempty" json:"schema,omitempty"`
	Parallelism int    `yaml:"parallelism,omitempty" json:"parallelism,omitempty"`
}

type Registry struct {
	Connections []Connection `yaml:"connections"`
}

// LoadRegistry reads a YAML connections file. ${VAR} references in dsn values
// are expanded from the environment. A missing file yields an empty registry.
func LoadRegistry(path string) (Registry, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Registry{}, nil
	}
	if err != nil {
		return Registry{}, fmt.Errorf("read connections: %w", err)
	}
	return ParseRegistry(raw)
}

func ParseRegistry(raw []byte) (Registry, error) {
	var reg Registry
	if err := yaml.Unmarshal(raw, &reg); err != nil {
		return Registry{}, fmt.Errorf("parse connections: %w", err)
	}
	seen := map[string]struct{}{}
	for i := range reg.Connections {
		c := &reg.Connections[i]
		c.Name = strings.TrimSpace(c.Name)
		c.DSN = os.ExpandEnv(strings.TrimSpace(c.DSN))
		if c.Name == "" {
			return Registry{}, fmt.Errorf("connection #%d: name required", i)
		}
		if _, dup := seen[c.Name]; dup {
			return Registry{}, fmt.Errorf("connection %s: duplicate name", c.Name)
		}
		seen[c.Name] = struct{}{}
		if _, ok := DialectFor(c.Dialect); !ok {
			return Registry{}, fmt.Errorf("connection %s: unsupported dialect %q", c.Name, c.Dialect)
		}
		if c.DSN == "" {
			return Registry{}, fmt.Errorf("connection %s: dsn required", c.Name)
		}
	}
	sort.Slice(reg.Connections, func(i, j int) bool { return reg.Connections[i].Name < reg.Connections[j].Name })
	return reg, nil
}

func (r Registry) Get(name string) (Connection, error) {
	for _, c := range r.Connections {
		if c.Name == name {
			return c, nil
		}
	}
	return Connection{}, fmt.Errorf("%w: %s", ErrUnknownConnection, name)
}

func (r Registry) Names() []string {
	out := make([]string, 0, len(r.Connections))
	for _, c := range r.Connections {
		out = append(out, c.Name)
	}
	return out
}

// Open returns an introspector for c. The caller closes it.
func Open(ctx context.Context, log *logger.Logger, c Connection) (Introspector, error) {
	d, ok := DialectFor(c.Dialect)
	if !ok {
		return nil, fmt.Errorf("connection %s: unsupported dialect %q", c.Name, c.Dialect)
	}
	switch d.Name {
	case SQLiteDialect.Name:
		return OpenSQLite(log, c.Name, c.DSN, c.Parallelism)
	case PostgresDialect.Name:
		return OpenPostgres(ctx, log, c.Name, c.DSN, c.Schema, c.Parallelism)
	default:
		return nil, fmt.Errorf("connection %s: no introspector for %s", c.Name, d.Name)
	}
}
