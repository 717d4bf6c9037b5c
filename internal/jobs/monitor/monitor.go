package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/yungbote/dbdict-backend/internal/data/healthstore"
	"github.com/yungbote/dbdict-backend/internal/domain/health"
	"github.com/yungbote/dbdict-backend/internal/domain/schema"
	"github.com/yungbote/dbdict-backend/internal/ingestion/artifacts"
	"github.com/yungbote/dbdict-backend/internal/ingestion/introspect"
	"github.com/yungbote/dbdict-backend/internal/observability"
	"github.com/yungbote/dbdict-backend/internal/pkg/dbctx"
	"github.com/yungbote/dbdict-backend/internal/platform/envutil"
	"github.com/yungbote/dbdict-backend/internal/platform/logger"
)

const (
	DefaultLightInterval = 10 * time.Minute
	DefaultDeepInterval  = 24 * time.Hour
)

// OpenFunc opens a connection for one check. introspect.Open satisfies it.
type OpenFunc func(ctx context.Context, log *logger.Logger, c introspect.Connection) (introspect.Introspector, error)

type Options struct {
	LightInterval time.Duration
	DeepInterval  time.Duration
	// Parallelism bounds connections checked at once. Defaults to 2.
	Parallelism int
	Open        OpenFunc
	// Artifacts, when set, receives each successful deep report as the
	// connection's quality artifact.
	Artifacts *artifacts.Store
}

// OptionsFromEnv reads HEALTH_LIGHT_INTERVAL_SECONDS and
// HEALTH_DEEP_INTERVAL_SECONDS.
func OptionsFromEnv() Options {
	return Options{
		LightInterval: envutil.Seconds("HEALTH_LIGHT_INTERVAL_SECONDS", DefaultLightInterval),
		DeepInterval:  envutil.Seconds("HEALTH_DEEP_INTERVAL_SECONDS", DefaultDeepInterval),
		Parallelism:   envutil.Int("HEALTH_PARALLELISM", 2),
	}
}

// Monitor runs light and deep checks against every registered connection on
// independent schedules and persists one report per connection per run.
type Monitor struct {
	log      *logger.Logger
	registry introspect.Registry
	reports  healthstore.ReportRepo
	opts     Options
	now      func() time.Time

	mu   sync.Mutex
	next map[string]time.Time
}

func New(baseLog *logger.Logger, registry introspect.Registry, reports healthstore.ReportRepo, opts Options) *Monitor {
	if opts.LightInterval <= 0 {
		opts.LightInterval = DefaultLightInterval
	}
	if opts.DeepInterval <= 0 {
		opts.DeepInterval = DefaultDeepInterval
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 2
	}
	if opts.Open == nil {
		opts.Open = introspect.Open
	}
	return &Monitor{
		log:      baseLog.With("component", "HealthMonitor"),
		registry: registry,
		reports:  reports,
		opts:     opts,
		now:      time.Now,
		next:     map[string]time.Time{},
	}
}

// Run blocks until ctx is cancelled. Both tasks are due immediately.
func (m *Monitor) Run(ctx context.Context) error {
	if len(m.registry.Connections) == 0 {
		m.log.Info("No connections registered; health monitor idle")
		<-ctx.Done()
		return nil
	}
	m.log.Info("Starting health monitor",
		"connections", len(m.registry.Connections),
		"light_interval", m.opts.LightInterval.String(),
		"deep_interval", m.opts.DeepInterval.String(),
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.loop(gctx, health.KindLight, m.opts.LightInterval) })
	g.Go(func() error { return m.loop(gctx, health.KindDeep, m.opts.DeepInterval) })
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// NextDue reports when kind is next scheduled, or zero before the first run.
func (m *Monitor) NextDue(kind string) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.next[kind]
}

func (m *Monitor) loop(ctx context.Context, kind string, interval time.Duration) error {
	m.setNext(kind, m.now())
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			m.log.Info("Health task stopped", "kind", kind)
			return ctx.Err()
		case <-timer.C:
		}
		started := m.now()
		m.RunAll(ctx, kind)
		due := started.Add(interval)
		m.setNext(kind, due)
		wait := due.Sub(m.now())
		if wait < 0 {
			wait = 0
		}
		timer.Reset(wait)
	}
}

func (m *Monitor) setNext(kind string, t time.Time) {
	m.mu.Lock()
	m.next[kind] = t
	m.mu.Unlock()
}

// RunAll checks every connection once. Individual failures are recorded as
// error reports, never returned.
func (m *Monitor) RunAll(ctx context.Context, kind string) []*health.Report {
	conns := m.registry.Connections
	out := make([]*health.Report, len(conns))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Parallelism)
	for i, c := range conns {
		i, c := i, c
		g.Go(func() error {
			rep, err := m.Check(gctx, c, kind)
			if err != nil {
				m.log.Warn("Health report not persisted", "connection", c.Name, "kind", kind, "error", err)
			}
			out[i] = rep
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// CheckByName runs one check for a registered connection.
func (m *Monitor) CheckByName(ctx context.Context, name, kind string) (*health.Report, error) {
	c, err := m.registry.Get(name)
	if err != nil {
		return nil, err
	}
	return m.Check(ctx, c, kind)
}

// Check runs one check and persists its report. The returned error covers
// persistence only; a failed check yields a report with StatusError.
func (m *Monitor) Check(ctx context.Context, c introspect.Connection, kind string) (*health.Report, error) {
	if kind != health.KindLight && kind != health.KindDeep {
		return nil, fmt.Errorf("unknown check kind %q", kind)
	}
	rep := &health.Report{Connection: c.Name, Kind: kind, Status: health.StatusOK, CheckedAt: m.now().UTC()}

	latency, quality, err := m.probe(ctx, c, kind)
	rep.LatencyMS = float64(latency.Microseconds()) / 1000
	if err != nil {
		rep.Status = health.StatusError
		rep.Error = err.Error()
	}
	if quality != nil {
		raw, mErr := json.Marshal(quality)
		if mErr == nil {
			rep.Payload = datatypes.JSON(raw)
		}
		if m.opts.Artifacts != nil && err == nil {
			if wErr := m.opts.Artifacts.WriteQuality(c.Name, quality); wErr != nil {
				m.log.Warn("Quality artifact not written", "connection", c.Name, "error", wErr)
			}
		}
	}
	observability.Current().ObserveHealthCheck(c.Name, kind, rep.Status, latency)

	if m.reports == nil {
		return rep, nil
	}
	if err := m.reports.Create(dbctx.Context{Ctx: context.WithoutCancel(ctx)}, rep); err != nil {
		return rep, fmt.Errorf("persist %s report for %s: %w", kind, c.Name, err)
	}
	return rep, nil
}

func (m *Monitor) probe(ctx context.Context, c introspect.Connection, kind string) (time.Duration, schema.Quality, error) {
	src, err := m.opts.Open(ctx, m.log, c)
	if err != nil {
		return 0, nil, err
	}
	defer src.Close()

	latency, err := src.Ping(ctx)
	if err != nil || kind == health.KindLight {
		return latency, nil, err
	}
	db, err := src.Extract(ctx)
	if err != nil {
		return latency, nil, err
	}
	q, err := src.CollectQuality(ctx, db)
	return latency, q, err
}

// Latest returns the newest light and deep reports for a connection. Missing
// kinds are nil.
func Latest(ctx context.Context, reports healthstore.ReportRepo, connection string) (light, deep *health.Report, err error) {
	dbc := dbctx.Context{Ctx: ctx}
	if light, err = reports.Latest(dbc, connection, health.KindLight); err != nil {
		return nil, nil, err
	}
	if deep, err = reports.Latest(dbc, connection, health.KindDeep); err != nil {
		return nil, nil, err
	}
	return light, deep, nil
}
