package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalForge/internal/domain/models"
)

func obsEvent(token string, price float64) Event {
	return Event{Kind: EventObservation, Observation: models.Observation{Token: token, Price: price}}
}

func TestQueueDropsOldestWhenFull(t *testing.T) {
	q := NewQueue(2)
	for i := 1; i <= 2; i++ {
		evicted, err := q.Push(obsEvent("BTC", float64(i)))
		require.NoError(t, err)
		assert.False(t, evicted)
	}
	evicted, err := q.Push(obsEvent("BTC", 3))
	require.NoError(t, err)
	assert.True(t, evicted)
	assert.Equal(t, int64(1), q.Dropped())
	assert.Equal(t, 2, q.Len())

	first := <-q.C()
	second := <-q.C()
	assert.Equal(t, 2.0, first.Observation.Price)
	assert.Equal(t, 3.0, second.Observation.Price)
}

func TestQueueRejectsAfterClose(t *testing.T) {
	q := NewQueue(4)
	_, err := q.Push(obsEvent("BTC", 1))
	require.NoError(t, err)
	q.Close()
	_, err = q.Push(obsEvent("BTC", 2))
	assert.ErrorIs(t, err, models.ErrEngineStopped)
	assert.Equal(t, 1, q.Len())
}
