package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/yungbote/dbdict-backend/internal/domain/health"
	"github.com/yungbote/dbdict-backend/internal/domain/schema"
	"github.com/yungbote/dbdict-backend/internal/ingestion/artifacts"
	"github.com/yungbote/dbdict-backend/internal/ingestion/introspect"
	"github.com/yungbote/dbdict-backend/internal/pkg/dbctx"
	"github.com/yungbote/dbdict-backend/internal/platform/logger"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

type memReports struct {
	mu   sync.Mutex
	rows []*health.Report
}

func (m *memReports) Create(dbc dbctx.Context, r *health.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, r)
	return nil
}

func (m *memReports) Latest(dbc dbctx.Context, connection, kind string) (*health.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out *health.Report
	for _, r := range m.rows {
		if r.Connection == connection && r.Kind == kind && (out == nil || !r.CheckedAt.Before(out.CheckedAt)) {
			out = r
		}
	}
	return out, nil
}

func (m *memReports) ListRecent(dbc dbctx.Context, connection string, limit int) ([]*health.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*health.Report
	for _, r := range m.rows {
		if r.Connection == connection {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CheckedAt.After(out[j].CheckedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memReports) count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.rows {
		if r.Kind == kind {
			n++
		}
	}
	return n
}

type fakeSource struct {
	pingErr error
}

func (f fakeSource) Dialect() introspect.DialectCapabilities { return introspect.SQLiteDialect }

func (f fakeSource) Extract(ctx context.Context) (schema.Database, error) {
	return schema.Database{Name: "main", Tables: []schema.Table{{Name: "orders", Columns: []schema.Column{{Name: "id", Type: "INTEGER"}}}}}, nil
}

func (f fakeSource) CollectQuality(ctx context.Context, db schema.Database) (schema.Quality, error) {
	return schema.Quality{"orders": {RowCount: 7, Columns: map[string]schema.ColumnQuality{"id": {NullFraction: 0}}}}, nil
}

func (f fakeSource) Ping(ctx context.Context) (time.Duration, error) {
	return 1500 * time.Microsecond, f.pingErr
}

func (f fakeSource) Close() error { return nil }

func testRegistry() introspect.Registry {
	return introspect.Registry{Connections: []introspect.Connection{
		{Name: "down", Dialect: "sqlite", DSN: "down.db"},
		{Name: "shop", Dialect: "sqlite", DSN: "shop.db"},
	}}
}

func fakeOpen(ctx context.Context, log *logger.Logger, c introspect.Connection) (introspect.Introspector, error) {
	if c.Name == "down" {
		return fakeSource{pingErr: fmt.Errorf("connection refused")}, nil
	}
	return fakeSource{}, nil
}

func TestCheckLightAndDeep(t *testing.T) {
	reports := &memReports{}
	store := artifacts.New(t.TempDir())
	m := New(newTestLogger(t), testRegistry(), reports, Options{Open: fakeOpen, Artifacts: &store})

	light, err := m.CheckByName(context.Background(), "shop", health.KindLight)
	if err != nil {
		t.Fatalf("CheckByName light: %v", err)
	}
	if light.Status != health.StatusOK || light.LatencyMS != 1.5 || light.Payload != nil {
		t.Fatalf("light report: got=%+v", light)
	}

	deep, err := m.CheckByName(context.Background(), "shop", health.KindDeep)
	if err != nil {
		t.Fatalf("CheckByName deep: %v", err)
	}
	if deep.Status != health.StatusOK || string(deep.Payload) != `{"orders":{"row_count":7,"columns":{"id":{"null_pct":0}}}}` {
		t.Fatalf("deep report: got=%+v payload=%s", deep, deep.Payload)
	}
	q, err := store.ReadQuality("shop")
	if err != nil || q["orders"].RowCount != 7 {
		t.Fatalf("quality artifact: got=%v err=%v", q, err)
	}

	down, err := m.CheckByName(context.Background(), "down", health.KindLight)
	if err != nil {
		t.Fatalf("CheckByName down: %v", err)
	}
	if down.Status != health.StatusError || down.Error != "connection refused" {
		t.Fatalf("down report: got=%+v", down)
	}

	if _, err := m.CheckByName(context.Background(), "nope", health.KindLight); !errors.Is(err, introspect.ErrUnknownConnection) {
		t.Fatalf("CheckByName unknown: want ErrUnknownConnection got=%v", err)
	}

	gotLight, gotDeep, err := Latest(context.Background(), reports, "shop")
	if err != nil || gotLight != light || gotDeep != deep {
		t.Fatalf("Latest: light=%v deep=%v err=%v", gotLight, gotDeep, err)
	}
}

func TestRunSchedulesTasksIndependently(t *testing.T) {
	reports := &memReports{}
	m := New(newTestLogger(t), testRegistry(), reports, Options{
		LightInterval: 20 * time.Millisecond,
		DeepInterval:  time.Hour,
		Open:          fakeOpen,
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	start := time.Now()
	go func() { done <- m.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for reports.count(health.KindLight) < 6 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not stop after cancel")
	}

	if n := reports.count(health.KindLight); n < 6 {
		t.Fatalf("light reports: want>=6 got=%d", n)
	}
	if n := reports.count(health.KindDeep); n != 2 {
		t.Fatalf("deep reports: want=2 (one per connection) got=%d", n)
	}
	if due := m.NextDue(health.KindDeep); due.Before(start.Add(59 * time.Minute)) {
		t.Fatalf("deep next due: got=%v", due)
	}
}
