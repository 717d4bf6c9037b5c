package introspect

import (
	"context"
	"fmt"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/dbdict-backend/internal/domain/schema"
)

const defaultQualityParallelism = 4

// collectQuality computes row counts for every table and, for non-key columns,
// null fractions plus numeric stats. tableRef renders a quoted table reference.
func collectQuality(
	ctx context.Context,
	q rowQuerier,
	d DialectCapabilities,
	tableRef func(string) string,
	db schema.Database,
	parallelism int,
) (schema.Quality, error) {
	if parallelism <= 0 {
		parallelism = defaultQualityParallelism
	}
	var (
		mu  sync.Mutex
		out = make(schema.Quality, len(db.Tables))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for _, t := range db.Tables {
		t := t
		g.Go(func() error {
			tq, err := tableQuality(gctx, q, d, tableRef(t.Name), t)
			if err != nil {
				return fmt.Errorf("quality %s: %w", t.Name, err)
			}
			mu.Lock()
			out[t.Name] = tq
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func tableQuality(ctx context.Context, q rowQuerier, d DialectCapabilities, ref string, t schema.Table) (schema.TableQuality, error) {
	row, err := q.firstRow(ctx, "SELECT COUNT(*) FROM "+ref)
	if err != nil {
		return schema.TableQuality{}, err
	}
	rowCount, err := toInt64(row[0])
	if err != nil {
		return schema.TableQuality{}, err
	}

	tq := schema.TableQuality{RowCount: rowCount, Columns: map[string]schema.ColumnQuality{}}
	for _, c := range t.Columns {
		// Key columns are identifiers; their distribution says nothing.
		if c.IsPrimaryKey || c.IsForeignKey {
			continue
		}
		col := d.Quote(c.Name)
		row, err := q.firstRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IS NULL", ref, col))
		if err != nil {
			return schema.TableQuality{}, err
		}
		nulls, err := toInt64(row[0])
		if err != nil {
			return schema.TableQuality{}, err
		}
		cq := schema.ColumnQuality{}
		if rowCount > 0 {
			cq.NullFraction = schema.Round4(float64(nulls) / float64(rowCount))
		}
		if d.IsNumeric(c.Type) {
			if err := numericStats(ctx, q, d, ref, col, &cq); err != nil {
				return schema.TableQuality{}, err
			}
		}
		tq.Columns[c.Name] = cq
	}
	return tq, nil
}

func numericStats(ctx context.Context, q rowQuerier, d DialectCapabilities, ref, col string, cq *schema.ColumnQuality) error {
	agg := func(fn string) string { return fmt.Sprintf("%s(%s)%s", fn, col, d.FloatCast) }
	if d.SupportsStddev {
		row, err := q.firstRow(ctx, fmt.Sprintf("SELECT %s, %s, %s, %s FROM %s",
			agg("AVG"), agg("STDDEV_POP"), agg("MIN"), agg("MAX"), ref))
		if err != nil {
			return err
		}
		cq.Mean, cq.Stddev, cq.Min, cq.Max = toFloat(row[0]), toFloat(row[1]), toFloat(row[2]), toFloat(row[3])
		return nil
	}

	row, err := q.firstRow(ctx, fmt.Sprintf("SELECT %s, %s, %s FROM %s", agg("AVG"), agg("MIN"), agg("MAX"), ref))
	if err != nil {
		return err
	}
	cq.Mean, cq.Min, cq.Max = toFloat(row[0]), toFloat(row[1]), toFloat(row[2])

	variance := fmt.Sprintf(
		"SELECT AVG((%[1]s - (SELECT AVG(%[1]s) FROM %[2]s)) * (%[1]s - (SELECT AVG(%[1]s) FROM %[2]s))) FROM %[2]s WHERE %[1]s IS NOT NULL",
		col, ref,
	)
	row, err = q.firstRow(ctx, variance)
	if err != nil {
		return err
	}
	if v := toFloat(row[0]); v != nil && *v >= 0 {
		sd := math.Sqrt(*v)
		cq.Stddev = &sd
	}
	return nil
}
