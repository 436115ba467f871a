package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalForge/internal/domain/models"
)

type fakeWeights struct{ ws []models.SignalWeight }

func (f fakeWeights) Snapshot() []models.SignalWeight {
	out := make([]models.SignalWeight, len(f.ws))
	copy(out, f.ws)
	return out
}

func (f fakeWeights) Get(id string) (models.SignalWeight, bool) {
	for _, w := range f.ws {
		if w.SourceID == id {
			return w, true
		}
	}
	return models.SignalWeight{}, false
}

type fakeEngine struct{}

func (fakeEngine) Status() models.EngineStatus {
	return models.EngineStatus{Shards: 2, Processed: 7}
}

type fakeArchive struct {
	token string
	since time.Time
	limit int
	err   error
}

func (f *fakeArchive) Store(context.Context, models.ConsensusResult) error { return nil }

func (f *fakeArchive) Recent(_ context.Context, token string, since time.Time, limit int) ([]models.ConsensusResult, error) {
	f.token, f.since, f.limit = token, since, limit
	if f.err != nil {
		return nil, f.err
	}
	return []models.ConsensusResult{{
		Token:    token,
		WindowID: "w1",
		Decision: models.DecisionApproved,
		Score:    null.FloatFrom(0.9),
	}}, nil
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, opts ...Option) *echo.Echo {
	t.Helper()
	ws := fakeWeights{ws: []models.SignalWeight{
		{SourceID: "a", Weight: 0.4, Observations: 30},
		{SourceID: "c", Weight: 0.9, Observations: 5},
		{SourceID: "b", Weight: 0.6, Observations: 12},
	}}
	h := NewStatusHandler(nil, ws, fakeEngine{}, opts...)
	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func do(e *echo.Echo, target string) (*httptest.ResponseRecorder, envelope) {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestWeightsSortedAndLimited(t *testing.T) {
	e := newTestServer(t)

	rec, env := do(e, "/api/weights?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Rows  []models.SignalWeight `json:"rows"`
		Total int64                 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, int64(3), list.Total)
	require.Len(t, list.Rows, 2)
	assert.Equal(t, "c", list.Rows[0].SourceID)
	assert.Equal(t, "b", list.Rows[1].SourceID)

	rec, env = do(e, "/api/weights?sort=source")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Rows, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{list.Rows[0].SourceID, list.Rows[1].SourceID, list.Rows[2].SourceID})

	rec, _ = do(e, "/api/weights?sort=newest")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = do(e, "/api/weights?limit=5000")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWeightBySource(t *testing.T) {
	e := newTestServer(t)

	rec, env := do(e, "/api/weights/b")
	require.Equal(t, http.StatusOK, rec.Code)
	var w models.SignalWeight
	require.NoError(t, json.Unmarshal(env.Data, &w))
	assert.Equal(t, 0.6, w.Weight)

	rec, _ = do(e, "/api/weights/zzz")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEngineStatus(t *testing.T) {
	e := newTestServer(t)
	rec, env := do(e, "/api/engine")
	require.Equal(t, http.StatusOK, rec.Code)
	var st models.EngineStatus
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, 2, st.Shards)
	assert.Equal(t, int64(7), st.Processed)
}

func TestConsensusHistory(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	arch := &fakeArchive{}
	e := newTestServer(t, WithArchive(arch), WithNow(func() time.Time { return now }))

	rec, env := do(e, "/api/consensus/btc-usd?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "BTC-USD", arch.token)
	assert.Equal(t, 5, arch.limit)
	assert.Equal(t, now.Add(-24*time.Hour), arch.since)

	var list struct {
		Rows []models.ConsensusMessage `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Rows, 1)
	assert.Equal(t, models.DecisionApproved, list.Rows[0].Decision)
	assert.Equal(t, []string{}, list.Rows[0].ContributingSources)

	arch.err = errors.New("boom")
	rec, _ = do(e, "/api/consensus/BTC-USD")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestConsensusRouteRequiresArchive(t *testing.T) {
	e := newTestServer(t)
	rec, _ := do(e, "/api/consensus/BTC-USD")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	healthy := newTestServer(t, WithHealthCheck("clickhouse", func(context.Context) error { return nil }))
	rec, _ := do(healthy, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	down := newTestServer(t,
		WithHealthCheck("clickhouse", func(context.Context) error { return nil }),
		WithHealthCheck("kafka", func(context.Context) error { return errors.New("no brokers") }),
	)
	rec, env := do(down, "/health")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var hs models.HealthStatus
	require.NoError(t, json.Unmarshal(env.Data, &hs))
	assert.Equal(t, "degraded", hs.Status)
	assert.Equal(t, "no brokers", hs.Dependencies["kafka"])
	assert.Equal(t, "ok", hs.Dependencies["clickhouse"])
}
