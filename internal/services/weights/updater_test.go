package weights

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalForge/internal/domain/models"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var now = time.Date(2024, 10, 10, 10, 0, 0, 0, time.UTC)

type recordingPersistence struct {
	mu  sync.Mutex
	got []models.SignalWeight
}

func (r *recordingPersistence) Enqueue(w models.SignalWeight) {
	r.mu.Lock()
	r.got = append(r.got, w)
	r.mu.Unlock()
}

func newTestUpdater() (*Updater, *Store, *recordingPersistence) {
	store := NewStore()
	rec := &recordingPersistence{}
	u := NewUpdater(store, DefaultUpdaterConfig(), WithClock(fixedClock{now}), WithPersistence(rec))
	return u, store, rec
}

func TestNewSourceFirstObservationStaysNeutral(t *testing.T) {
	u, _, rec := newTestUpdater()
	w, err := u.Apply(context.Background(), models.PerformanceObservation{SourceID: "S", Correctness: 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, w.Weight, 1e-12)
	assert.Equal(t, int64(1), w.Observations)
	require.True(t, w.Accuracy.Valid)
	assert.Equal(t, 1.0, w.Accuracy.Float64)
	assert.Equal(t, now, w.LastUpdated)
	require.Len(t, rec.got, 1)
}

func TestShrinkageReleasesAfterPriorObservations(t *testing.T) {
	u, store, _ := newTestUpdater()
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		_, err := u.Apply(ctx, models.PerformanceObservation{SourceID: "S", Correctness: 1})
		require.NoError(t, err)
	}
	before, ok := store.Get("S")
	require.True(t, ok)
	require.Equal(t, int64(10), before.Observations)
	assert.Equal(t, 1.0, EffectiveAccuracy(before.Observations, 1, 10, 0.5))

	prev := before.Weight
	for i := 0; i < 50; i++ {
		w, err := u.Apply(ctx, models.PerformanceObservation{SourceID: "S", Correctness: 1})
		require.NoError(t, err)
		assert.InDelta(t, 0.9*prev+0.1, w.Weight, 1e-12)
		prev = w.Weight
	}
	assert.Greater(t, prev, 0.99)
}

func TestEffectiveAccuracyMonotonicShrinkage(t *testing.T) {
	for _, c := range []float64{0, 0.2, 0.8, 1} {
		prevGap := -1.0
		for n := int64(0); n <= 20; n++ {
			gap := abs(EffectiveAccuracy(n, c, 10, 0.5) - 0.5)
			assert.GreaterOrEqual(t, gap, prevGap, "c=%v n=%d", c, n)
			prevGap = gap
		}
		assert.InDelta(t, abs(c-0.5), prevGap, 1e-12)
	}
}

func TestWeightAndAccuracyStayBounded(t *testing.T) {
	u, _, _ := newTestUpdater()
	rng := rand.New(rand.NewSource(7))
	ctx := context.Background()
	for i := 0; i < 2000; i++ {
		c := rng.Float64()
		switch i % 7 {
		case 0:
			c = 0
		case 1:
			c = 1
		}
		w, err := u.Apply(ctx, models.PerformanceObservation{SourceID: "S", Correctness: c})
		require.NoError(t, err)
		require.GreaterOrEqual(t, w.Weight, 0.0)
		require.LessOrEqual(t, w.Weight, 1.0)
		require.GreaterOrEqual(t, w.Accuracy.Float64, 0.0)
		require.LessOrEqual(t, w.Accuracy.Float64, 1.0)
	}
}

func TestApplyRejectsInvalidObservations(t *testing.T) {
	u, store, rec := newTestUpdater()
	ctx := context.Background()
	_, err := u.Apply(ctx, models.PerformanceObservation{SourceID: "S", Correctness: 1.5})
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = u.Apply(ctx, models.PerformanceObservation{Correctness: 0.5})
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Equal(t, 0, store.Len())
	assert.Empty(t, rec.got)
}

func TestConcurrentUpdatesAreNotLost(t *testing.T) {
	u, store, _ := newTestUpdater()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = u.Apply(context.Background(), models.PerformanceObservation{SourceID: "S", Correctness: 1})
		}()
	}
	wg.Wait()
	w, ok := store.Get("S")
	require.True(t, ok)
	assert.Equal(t, int64(100), w.Observations)
}

func TestStoreEnsureIsLazyAndStable(t *testing.T) {
	s := NewStore()
	assert.Equal(t, models.NeutralWeight, s.Weight("unknown"))
	w, created := s.Ensure("A", now)
	assert.True(t, created)
	assert.Equal(t, models.NeutralWeight, w.Weight)
	assert.False(t, w.Accuracy.Valid)
	_, created = s.Ensure("A", now.Add(time.Hour))
	assert.False(t, created)
	assert.Len(t, s.Snapshot(), 1)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
