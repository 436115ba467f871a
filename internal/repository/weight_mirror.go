package repository

import (
	"context"
	"fmt"
	"time"

	"SignalForge/internal/domain/models"
	domrepo "SignalForge/internal/domain/repository"
	"SignalForge/pkg/cache"
)

const weightKeyPrefix = "weights"

// RedisWeightMirror publishes current weights to Redis for downstream readers.
// Each source is stored as JSON under weights:<source_id>.
type RedisWeightMirror struct {
	cache cache.Service
	ttl   time.Duration
}

var _ domrepo.WeightMirror = (*RedisWeightMirror)(nil)

func NewRedisWeightMirror(c cache.Service, ttl time.Duration) *RedisWeightMirror {
	return &RedisWeightMirror{cache: c, ttl: ttl}
}

func weightKey(sourceID string) string { return cache.Key(weightKeyPrefix, sourceID) }

func (m *RedisWeightMirror) PutBatch(ctx context.Context, ws []models.SignalWeight) error {
	if len(ws) == 0 {
		return nil
	}
	values := make(map[string]interface{}, len(ws))
	for _, w := range ws {
		values[weightKey(w.SourceID)] = w
	}
	if err := m.cache.MSet(ctx, values, m.ttl); err != nil {
		return fmt.Errorf("mirror %d weights: %w", len(ws), err)
	}
	return nil
}
