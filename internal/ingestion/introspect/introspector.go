package introspect

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/yungbote/dbdict-backend/internal/domain/schema"
)

// Introspector reads structure and statistics from one live connection.
type Introspector interface {
	Dialect() DialectCapabilities
	Extract(ctx context.Context) (schema.Database, error)
	CollectQuality(ctx context.Context, db schema.Database) (schema.Quality, error)
	// Ping runs SELECT 1 and reports its latency.
	Ping(ctx context.Context) (time.Duration, error)
	Close() error
}

// rowQuerier returns the first row of a query as driver values.
type rowQuerier interface {
	firstRow(ctx context.Context, query string) ([]any, error)
}

func ping(ctx context.Context, q rowQuerier) (time.Duration, error) {
	start := time.Now()
	if _, err := q.firstRow(ctx, "SELECT 1"); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int32:
		return int64(x), nil
	case int:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case []byte:
		return strconv.ParseInt(string(x), 10, 64)
	case string:
		return strconv.ParseInt(x, 10, 64)
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("unexpected count type %T", v)
	}
}

// toFloat converts an aggregate value. Non-numeric values become nil so a
// text value stored in a numeric column does not fail the whole run.
func toFloat(v any) *float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int64:
		f = float64(x)
	case int32:
		f = float64(x)
	case int:
		f = float64(x)
	case []byte:
		p, err := strconv.ParseFloat(string(x), 64)
		if err != nil {
			return nil
		}
		f = p
	case string:
		p, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return nil
		}
		f = p
	default:
		return nil
	}
	return &f
}
