package weights

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalForge/internal/domain/models"
	applogger "SignalForge/pkg/logger"
)

type memRepo struct {
	mu       sync.Mutex
	rows     map[string]models.SignalWeight
	failures int
	calls    int
}

func newMemRepo() *memRepo { return &memRepo{rows: map[string]models.SignalWeight{}} }

func (r *memRepo) Init(context.Context) error { return nil }

func (r *memRepo) UpsertBatch(_ context.Context, ws []models.SignalWeight) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.failures > 0 {
		r.failures--
		return errors.New("clickhouse unavailable")
	}
	for _, w := range ws {
		r.rows[w.SourceID] = w
	}
	return nil
}

func (r *memRepo) LoadLatest(context.Context) ([]models.SignalWeight, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.SignalWeight, 0, len(r.rows))
	for _, w := range r.rows {
		out = append(out, w)
	}
	return out, nil
}

func (r *memRepo) Health(context.Context) error { return nil }

func TestPersistRoundTripRestoresIdenticalState(t *testing.T) {
	repo := newMemRepo()
	p := NewPersister(repo)
	store := NewStore()
	u := NewUpdater(store, DefaultUpdaterConfig(), WithClock(fixedClock{now}), WithPersistence(p))

	ctx := context.Background()
	for i, c := range []float64{1, 0, 0.5, 1, 1} {
		_, err := u.Apply(ctx, models.PerformanceObservation{SourceID: "A", Correctness: c})
		require.NoError(t, err, "update %d", i)
	}
	_, err := u.Apply(ctx, models.PerformanceObservation{SourceID: "B", Correctness: 0.2})
	require.NoError(t, err)
	store.Ensure("C", now)

	assert.Equal(t, 2, p.Flush(ctx))

	restored := NewStore()
	n, err := Warm(ctx, repo, restored)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	for _, id := range []string{"A", "B"} {
		want, _ := store.Get(id)
		got, ok := restored.Get(id)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestPersisterRetriesTransientFailures(t *testing.T) {
	repo := newMemRepo()
	repo.failures = 2
	p := NewPersister(repo, WithRetry(3, time.Millisecond, 2*time.Millisecond))
	p.Enqueue(models.SignalWeight{SourceID: "A", Weight: 0.7, Accuracy: null.FloatFrom(0.9), Observations: 3, LastUpdated: now})

	assert.Equal(t, 1, p.Flush(context.Background()))
	assert.Equal(t, 3, repo.calls)
	rows, _ := repo.LoadLatest(context.Background())
	require.Len(t, rows, 1)
	assert.Equal(t, 0.7, rows[0].Weight)
}

func TestPersisterGivesUpWithoutTouchingMemory(t *testing.T) {
	repo := newMemRepo()
	repo.failures = 100
	p := NewPersister(repo, WithRetry(1, time.Millisecond, time.Millisecond))
	store := NewStore()
	u := NewUpdater(store, DefaultUpdaterConfig(), WithClock(fixedClock{now}), WithPersistence(p))
	w, err := u.Apply(context.Background(), models.PerformanceObservation{SourceID: "A", Correctness: 1})
	require.NoError(t, err)

	assert.Equal(t, 0, p.Flush(context.Background()))
	assert.Equal(t, 2, repo.calls)
	got, _ := store.Get("A")
	assert.Equal(t, w, got)
}

func TestPersisterBackgroundLoopFlushesOnStop(t *testing.T) {
	repo := newMemRepo()
	p := NewPersister(repo)
	p.Start(context.Background())
	p.Enqueue(models.SignalWeight{SourceID: "A", Weight: 0.6, LastUpdated: now})
	p.Enqueue(models.SignalWeight{SourceID: "A", Weight: 0.65, LastUpdated: now})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Stop(ctx))

	rows, _ := repo.LoadLatest(context.Background())
	require.Len(t, rows, 1)
	assert.Equal(t, 0.65, rows[0].Weight)
}

func TestPersisterCancelledContextFlushesAndReportsLateWeights(t *testing.T) {
	repo := newMemRepo()
	var logs bytes.Buffer
	p := NewPersister(repo, WithPersisterLogger(applogger.NewWithWriter(&logs)))
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	p.Enqueue(models.SignalWeight{SourceID: "A", Weight: 0.6, LastUpdated: now})
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	require.NoError(t, p.Stop(stopCtx))

	p.Enqueue(models.SignalWeight{SourceID: "B", Weight: 0.7, LastUpdated: now})
	assert.Equal(t, 0, p.Flush(context.Background()))

	rows, _ := repo.LoadLatest(context.Background())
	require.Len(t, rows, 1)
	assert.Equal(t, "A", rows[0].SourceID)
	assert.Contains(t, logs.String(), "weights.persist_after_stop")
	assert.Contains(t, logs.String(), `"source_id":"B"`)
}
