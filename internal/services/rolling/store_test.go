package rolling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalForge/internal/domain/models"
)

func TestRingEvictsOldest(t *testing.T) {
	r := NewRing[int](3)
	for i := 1; i <= 3; i++ {
		assert.False(t, r.Push(i))
	}
	assert.True(t, r.Push(4))
	assert.Equal(t, []int{2, 3, 4}, r.Slice())
	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, 4, last)
}

func TestStoreHistoryBounded(t *testing.T) {
	s := NewStore(Config{HistorySize: 4, PairSamples: 4, SampleInterval: time.Second})
	base := time.Unix(1700000000, 0)
	for i := 0; i < 10; i++ {
		s.Record(models.Observation{Token: "BTC", Price: float64(i), Timestamp: base.Add(time.Duration(i) * time.Second)})
	}
	assert.Equal(t, []float64{6, 7, 8, 9}, s.Prices("BTC"))
	assert.Nil(t, s.Prices("ETH"))
	assert.Equal(t, 1, s.Tokens())
}

func TestCanonicalPair(t *testing.T) {
	k1, ok := CanonicalPair("ETH", "BTC")
	require.True(t, ok)
	k2, _ := CanonicalPair("BTC", "ETH")
	assert.Equal(t, k1, k2)
	assert.Equal(t, "BTC", k1.A)
	_, ok = CanonicalPair("BTC", "BTC")
	assert.False(t, ok)
}

func TestPairSamplingWaitsForBothLegsAndInterval(t *testing.T) {
	s := NewStore(Config{HistorySize: 4, PairSamples: 8, SampleInterval: time.Minute})
	key, _ := CanonicalPair("BTC", "ETH")
	s.TrackPair(key)
	base := time.Unix(1700000000, 0)

	assert.False(t, s.RecordPairTick(key, models.Observation{Token: "BTC", Price: 100, Timestamp: base}))
	assert.True(t, s.RecordPairTick(key, models.Observation{Token: "ETH", Price: 10, Timestamp: base.Add(time.Second)}))
	assert.False(t, s.RecordPairTick(key, models.Observation{Token: "BTC", Price: 101, Timestamp: base.Add(30 * time.Second)}))
	assert.True(t, s.RecordPairTick(key, models.Observation{Token: "ETH", Price: 11, Timestamp: base.Add(2 * time.Minute)}))

	p, ok := s.Pair(key)
	require.True(t, ok)
	a, b := p.Prices()
	assert.Equal(t, []float64{100, 101}, a)
	assert.Equal(t, []float64{10, 11}, b)
	assert.False(t, s.RecordPairTick(PairKey{A: "X", B: "Y"}, models.Observation{Token: "X", Price: 1}))
}
