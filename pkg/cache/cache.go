package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
	ErrClosed    = errors.New("cache: closed")
)

// Service is a key-value store with per-key expiry. Values are stored raw
// when they are strings or byte slices and as JSON otherwise.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	MSet(ctx context.Context, values map[string]interface{}, ttl time.Duration) error
	// MGet returns the encoded values of the keys that exist.
	MGet(ctx context.Context, keys ...string) (map[string][]byte, error)
	Ping(ctx context.Context) error
	Close() error
}

// MGetTyped fetches keys and decodes each value into T.
// Values that do not decode are skipped.
func MGetTyped[T any](ctx context.Context, c Service, keys ...string) (map[string]T, error) {
	out := make(map[string]T, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	raw, err := c.MGet(ctx, keys...)
	if err != nil {
		return nil, err
	}
	for key, data := range raw {
		var v T
		if err := decode(data, &v); err != nil {
			continue
		}
		out[key] = v
	}
	return out, nil
}

// Key joins parts with ':' the way every cache key in the service is built.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}
