package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalForge/internal/domain/models"
	"SignalForge/pkg/metrics"
)

type stubRouter struct {
	got []models.Observation
	err error
}

func (r *stubRouter) RouteObservation(o models.Observation) error {
	if r.err != nil {
		return r.err
	}
	r.got = append(r.got, o)
	return nil
}

type stepClock struct{ t time.Time }

func (c *stepClock) Now() time.Time { return c.t }

func obs(token string, price float64, at time.Time) models.Observation {
	return models.Observation{Token: token, Timestamp: at, Price: price, Volume: 1}
}

func TestPipelineRejectsInvalid(t *testing.T) {
	r := &stubRouter{}
	p := NewObservationPipeline(r, metrics.Nop{})
	now := time.Unix(1700000000, 0)

	err := p.Process(context.Background(), obs("", 1, now))
	assert.True(t, models.IsValidation(err))
	err = p.Process(context.Background(), obs("BTC", 0, now))
	assert.True(t, models.IsValidation(err))
	err = p.Process(context.Background(), obs("BTC", 1, time.Time{}))
	assert.True(t, models.IsValidation(err))
	assert.Empty(t, r.got)
}

func TestPipelineThrottlesPerToken(t *testing.T) {
	r := &stubRouter{}
	clk := &stepClock{t: time.Unix(1700000000, 0)}
	p := NewObservationPipeline(r, metrics.Nop{}, WithMaxRPS(10), WithPipelineClock(clk))
	ctx := context.Background()

	require.NoError(t, p.Process(ctx, obs("BTC", 1, clk.t)))
	require.NoError(t, p.Process(ctx, obs("BTC", 2, clk.t)))
	require.NoError(t, p.Process(ctx, obs("ETH", 3, clk.t)))
	clk.t = clk.t.Add(100 * time.Millisecond)
	require.NoError(t, p.Process(ctx, obs("BTC", 4, clk.t)))

	require.Len(t, r.got, 3)
	assert.Equal(t, 1.0, r.got[0].Price)
	assert.Equal(t, "ETH", r.got[1].Token)
	assert.Equal(t, 4.0, r.got[2].Price)
}

func TestPipelineTransformAndDownstreamError(t *testing.T) {
	r := &stubRouter{}
	p := NewObservationPipeline(r, metrics.Nop{}, WithMaxRPS(0), WithTransform(func(o models.Observation) models.Observation {
		o.Token = "X" + o.Token
		return o
	}))
	now := time.Unix(1700000000, 0)
	require.NoError(t, p.Process(context.Background(), obs("BTC", 1, now)))
	assert.Equal(t, "XBTC", r.got[0].Token)

	r.err = models.ErrEngineStopped
	err := p.Process(context.Background(), obs("BTC", 1, now))
	assert.True(t, errors.Is(err, models.ErrEngineStopped))
}
