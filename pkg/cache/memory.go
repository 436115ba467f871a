package cache

import (
	"context"
	"sync"
	"time"
)

type memoryItem struct {
	value    []byte
	expireAt time.Time
	lastUsed time.Time
}

// MemoryCache implements Service in process. It holds the same encoded
// bytes RedisCache would, so the two are interchangeable behind Service.
type MemoryCache struct {
	mu      sync.Mutex
	items   map[string]*memoryItem
	maxSize int
	now     func() time.Time

	ticker    *time.Ticker
	done      chan struct{}
	closeOnce sync.Once
}

func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := MemoryConfig{
		MaxSize:         1000,
		CleanupInterval: 5 * time.Minute,
		Now:             time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.MaxSize < 1 {
		cfg.MaxSize = 1
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	mc := &MemoryCache{
		items:   make(map[string]*memoryItem),
		maxSize: cfg.MaxSize,
		now:     cfg.Now,
		ticker:  time.NewTicker(cfg.CleanupInterval),
		done:    make(chan struct{}),
	}
	go mc.sweep()
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.put(key, data, ttl)
	return nil
}

// put stores data under key. A zero ttl means no expiry.
func (mc *MemoryCache) put(key string, data []byte, ttl time.Duration) {
	now := mc.now()
	if _, ok := mc.items[key]; !ok && len(mc.items) >= mc.maxSize {
		mc.evictLRU()
	}
	it := &memoryItem{value: data, lastUsed: now}
	if ttl > 0 {
		it.expireAt = now.Add(ttl)
	}
	mc.items[key] = it
}

// live returns the item under key, dropping it if it has expired. Callers hold mu.
func (mc *MemoryCache) live(key string, now time.Time) (*memoryItem, bool) {
	it, ok := mc.items[key]
	if !ok {
		return nil, false
	}
	if !it.expireAt.IsZero() && !now.Before(it.expireAt) {
		delete(mc.items, key)
		return nil, false
	}
	return it, true
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mu.Lock()
	now := mc.now()
	it, ok := mc.live(key, now)
	if !ok {
		mc.mu.Unlock()
		return ErrCacheMiss
	}
	it.lastUsed = now
	data := it.value
	mc.mu.Unlock()
	return decode(data, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, k := range keys {
		delete(mc.items, k)
	}
	return nil
}

func (mc *MemoryCache) MSet(_ context.Context, values map[string]interface{}, ttl time.Duration) error {
	encoded := make(map[string][]byte, len(values))
	for k, v := range values {
		data, err := encode(v)
		if err != nil {
			return err
		}
		encoded[k] = data
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for k, data := range encoded {
		mc.put(k, data, ttl)
	}
	return nil
}

func (mc *MemoryCache) MGet(_ context.Context, keys ...string) (map[string][]byte, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	now := mc.now()
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if it, ok := mc.live(k, now); ok {
			it.lastUsed = now
			out[k] = it.value
		}
	}
	return out, nil
}

func (mc *MemoryCache) Ping(context.Context) error {
	select {
	case <-mc.done:
		return ErrClosed
	default:
		return nil
	}
}

func (mc *MemoryCache) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return len(mc.items)
}

func (mc *MemoryCache) evictLRU() {
	var (
		oldest string
		at     time.Time
	)
	for k, it := range mc.items {
		if oldest == "" || it.lastUsed.Before(at) {
			oldest, at = k, it.lastUsed
		}
	}
	delete(mc.items, oldest)
}

func (mc *MemoryCache) sweep() {
	for {
		select {
		case <-mc.done:
			return
		case <-mc.ticker.C:
		}
		mc.mu.Lock()
		now := mc.now()
		for k := range mc.items {
			mc.live(k, now)
		}
		mc.mu.Unlock()
	}
}

// Close stops the sweeper. The cache stays readable.
func (mc *MemoryCache) Close() error {
	mc.closeOnce.Do(func() {
		mc.ticker.Stop()
		close(mc.done)
	})
	return nil
}
