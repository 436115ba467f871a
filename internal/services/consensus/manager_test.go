package consensus

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalForge/internal/domain/models"
)

var t0 = time.Date(2024, 10, 10, 10, 0, 0, 0, time.UTC)

type countingEvaluator struct {
	agg   *Aggregator
	calls map[string]int
}

func (c *countingEvaluator) Evaluate(w *Window, at time.Time) models.ConsensusResult {
	c.calls[w.ID]++
	return c.agg.Evaluate(w, at)
}

func newTestManager() (*Manager, *countingEvaluator) {
	ev := &countingEvaluator{agg: defaultAggregator(staticWeights{}), calls: map[string]int{}}
	n := 0
	m := NewManager(5*time.Second, ev, WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("w%d", n)
	}))
	return m, ev
}

func TestManagerSupersedesSameSource(t *testing.T) {
	m, _ := newTestManager()
	_, opened := m.Add(sig("A", "BTC", models.DirectionLong, 0.2), t0)
	assert.True(t, opened)
	_, opened = m.Add(sig("A", "BTC", models.DirectionShort, 0.9), t0.Add(time.Second))
	assert.False(t, opened)
	m.Add(sig("B", "BTC", models.DirectionLong, 1), t0.Add(2*time.Second))

	w, ok := m.Window("BTC")
	require.True(t, ok)
	require.Equal(t, 2, w.Len())
	signals := w.Signals()
	assert.Equal(t, models.DirectionShort, signals[0].Direction)
	assert.Equal(t, 0.9, signals[0].Strength)
}

func TestManagerExpireProducesOneResultPerWindow(t *testing.T) {
	m, ev := newTestManager()
	m.Add(sig("A", "BTC", models.DirectionLong, 1), t0)
	m.Add(sig("A", "ETH", models.DirectionLong, 1), t0.Add(time.Second))

	next, ok := m.NextDeadline()
	require.True(t, ok)
	assert.Equal(t, t0.Add(5*time.Second), next)

	assert.Empty(t, m.Expire(t0.Add(4*time.Second)))
	res := m.Expire(t0.Add(5 * time.Second))
	require.Len(t, res, 1)
	assert.Equal(t, "BTC", res[0].Token)
	assert.Equal(t, models.DecisionInsufficientSources, res[0].Decision)

	res = m.Expire(t0.Add(time.Minute))
	require.Len(t, res, 1)
	assert.Equal(t, "ETH", res[0].Token)
	assert.Empty(t, m.Expire(t0.Add(time.Hour)))
	assert.Equal(t, 0, m.Open())
	for id, n := range ev.calls {
		assert.Equal(t, 1, n, "window %s evaluated %d times", id, n)
	}
}

func TestManagerBoundarySignalOpensNextWindow(t *testing.T) {
	m, _ := newTestManager()
	m.Add(sig("A", "BTC", models.DirectionLong, 1), t0)
	m.Add(sig("B", "BTC", models.DirectionLong, 1), t0.Add(4999*time.Millisecond))

	closed, opened := m.Add(sig("C", "BTC", models.DirectionLong, 1), t0.Add(5*time.Second))
	require.Len(t, closed, 1)
	assert.True(t, opened)
	assert.Equal(t, "w1", closed[0].WindowID)
	assert.Equal(t, []string{"A", "B"}, closed[0].ContributingSources)

	w, ok := m.Window("BTC")
	require.True(t, ok)
	assert.Equal(t, "w2", w.ID)
	assert.Equal(t, 1, w.Len())
	assert.Equal(t, t0.Add(10*time.Second), w.Deadline)

	// stale heap entry for w1 must not fire
	assert.Empty(t, m.Expire(t0.Add(6*time.Second)))
}

func TestManagerDoubleEvaluationIsNoop(t *testing.T) {
	m, ev := newTestManager()
	m.Add(sig("A", "BTC", models.DirectionLong, 1), t0)
	w, _ := m.Window("BTC")

	_, ok := m.Close("BTC", t0.Add(time.Second))
	require.True(t, ok)
	_, ok = m.Close("BTC", t0.Add(time.Second))
	assert.False(t, ok)
	_, ok = m.evaluate(w, t0.Add(2*time.Second))
	assert.False(t, ok)
	assert.Empty(t, m.Expire(t0.Add(time.Minute)))

	assert.Equal(t, 1, ev.calls[w.ID])
	assert.Equal(t, WindowClosed, w.State())
}

func TestManagerDrainAndAbandon(t *testing.T) {
	m, _ := newTestManager()
	m.Add(sig("A", "BTC", models.DirectionLong, 1), t0)
	m.Add(sig("A", "ETH", models.DirectionLong, 1), t0)
	res := m.Drain(t0.Add(time.Second))
	assert.Len(t, res, 2)
	assert.Equal(t, 0, m.Open())
	_, ok := m.NextDeadline()
	assert.False(t, ok)

	m.Add(sig("A", "SOL", models.DirectionLong, 1), t0)
	assert.Equal(t, 1, m.Abandon())
	assert.Empty(t, m.Expire(t0.Add(time.Hour)))
}
