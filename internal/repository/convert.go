package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// Querier is the read side of the database layer.
type Querier interface {
	FetchAll(ctx context.Context, query string, args ...any) ([]map[string]any, error)
	FetchOne(ctx context.Context, query string, args ...any) (map[string]any, error)
}

// safeFloat reads a numeric column, treating NULL and unparsable values as 0.
func safeFloat(v any) float64 {
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	case int:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func safeInt(v any) int64 {
	switch n := v.(type) {
	case nil:
		return 0
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0
		}
		return i
	default:
		return 0
	}
}

func optFloat(v any) *float64 {
	if v == nil {
		return nil
	}
	f := safeFloat(v)
	return &f
}

func safeString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case time.Time:
		return s.Format("2006-01-02")
	default:
		return fmt.Sprint(s)
	}
}

func safeTime(v any) time.Time {
	t, _ := v.(time.Time)
	return t
}
