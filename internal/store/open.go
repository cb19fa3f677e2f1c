package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrUnsupportedDSN = errors.New("unsupported store DSN")

// KV is what every backend in this package provides.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	SetMany(ctx context.Context, values map[string]string) error
	Close() error
}

// Open picks a backend from the DSN:
//
//	memory
//	file:/path/to/state.json   (or a bare path ending in .json)
//	sqlite:/path/to/state.db
//	redis://[:password@]host:port/db
func Open(ctx context.Context, dsn string) (KV, error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case dsn == "memory" || dsn == "memory:":
		return NewMemory(), nil
	case strings.HasPrefix(dsn, "file:"):
		return NewFile(strings.TrimPrefix(dsn, "file:"))
	case strings.HasPrefix(dsn, "sqlite:"):
		return NewSQLite(ctx, strings.TrimPrefix(dsn, "sqlite:"))
	case strings.HasPrefix(dsn, "redis://"), strings.HasPrefix(dsn, "rediss://"):
		return NewRedis(ctx, dsn, DefaultRedisPrefix)
	case strings.HasSuffix(dsn, ".json"):
		return NewFile(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDSN, dsn)
	}
}
