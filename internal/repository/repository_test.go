package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalForge/internal/domain/models"
	"SignalForge/pkg/cache"
	pkgch "SignalForge/pkg/clickhouse"
)

type execCall struct {
	query string
	args  []any
}

type fakeDB struct {
	execs []execCall
	err   error
}

func (f *fakeDB) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	f.execs = append(f.execs, execCall{query: query, args: args})
	return nil, f.err
}

func (f *fakeDB) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errors.New("not supported")
}

func (f *fakeDB) PingContext(context.Context) error { return f.err }

var testTables = pkgch.Tables{Database: "sf", Weights: "signal_weights", Consensus: "consensus_results"}

func TestInsertQuery(t *testing.T) {
	q := insertQuery("t", []string{"a", "b"}, 2)
	assert.Equal(t, "INSERT INTO t (a, b) VALUES (?, ?),(?, ?)", q)
}

func TestWeightUpsertBatchChunks(t *testing.T) {
	db := &fakeDB{}
	repo := newCHWeightRepository(db, testTables, nil)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	ws := make([]models.SignalWeight, insertChunk+1)
	for i := range ws {
		ws[i] = models.SignalWeight{SourceID: "s", Weight: 0.5, Observations: int64(i), LastUpdated: now}
	}
	require.NoError(t, repo.UpsertBatch(context.Background(), ws))
	require.Len(t, db.execs, 2)
	assert.True(t, strings.HasPrefix(db.execs[0].query, "INSERT INTO sf.signal_weights (time, source_id, weight, accuracy, observations)"))
	assert.Len(t, db.execs[0].args, insertChunk*len(weightColumns))
	assert.Len(t, db.execs[1].args, len(weightColumns))
	assert.Equal(t, uint64(insertChunk), db.execs[1].args[4])

	require.NoError(t, repo.UpsertBatch(context.Background(), nil))
	assert.Len(t, db.execs, 2)
}

func TestWeightUpsertWrapsError(t *testing.T) {
	db := &fakeDB{err: errors.New("down")}
	repo := newCHWeightRepository(db, testTables, nil)
	err := repo.UpsertBatch(context.Background(), []models.SignalWeight{models.NewSignalWeight("a", time.Now())})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sf.signal_weights")
}

func TestWeightInitRunsSchema(t *testing.T) {
	db := &fakeDB{}
	repo := newCHWeightRepository(db, testTables, nil)
	require.NoError(t, repo.Init(context.Background()))
	assert.Len(t, db.execs, 3)
}

func TestConsensusArchiveRow(t *testing.T) {
	db := &fakeDB{}
	a := newCHConsensusArchive(db, testTables, nil)
	r := models.ConsensusResult{
		Token:    "BTC",
		WindowID: "w1",
		Decision: models.DecisionInsufficientSources,
	}
	require.NoError(t, a.Store(context.Background(), r))
	require.Len(t, db.execs, 1)
	args := db.execs[0].args
	require.Len(t, args, len(consensusColumns))
	assert.Equal(t, "INSUFFICIENT_SOURCES", args[4])
	assert.False(t, args[5].(null.Float).Valid)
	assert.Equal(t, []string{}, args[6])
}

type recordedMsg struct {
	topic string
	key   string
	value interface{}
}

type fakeProducer struct {
	msgs   []recordedMsg
	closed bool
}

func (f *fakeProducer) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	f.msgs = append(f.msgs, recordedMsg{topic: topic, key: string(key), value: value})
	return nil
}

func (f *fakeProducer) Close() error {
	f.closed = true
	return nil
}

func TestPublisherRoutesByDecision(t *testing.T) {
	prod := &fakeProducer{}
	p := NewKafkaConsensusPublisher(prod, "consensus.approved", "consensus.failed")
	ctx := context.Background()

	require.NoError(t, p.Publish(ctx, models.ConsensusResult{Token: "BTC", Decision: models.DecisionApproved, Score: null.FloatFrom(81.05)}))
	require.NoError(t, p.Publish(ctx, models.ConsensusResult{Token: "ETH", Decision: models.DecisionBelowThreshold}))
	require.NoError(t, p.Publish(ctx, models.ConsensusResult{Token: "SOL", Decision: models.DecisionInsufficientSources}))

	require.Len(t, prod.msgs, 3)
	assert.Equal(t, "consensus.approved", prod.msgs[0].topic)
	assert.Equal(t, "BTC", prod.msgs[0].key)
	assert.Equal(t, "consensus.failed", prod.msgs[1].topic)
	assert.Equal(t, "consensus.failed", prod.msgs[2].topic)

	msg, ok := prod.msgs[0].value.(models.ConsensusMessage)
	require.True(t, ok)
	assert.InDelta(t, 81.05, msg.Score.Float64, 1e-9)

	require.NoError(t, p.Close())
	assert.True(t, prod.closed)
}

func TestRedisWeightMirrorRoundTrip(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	m := NewRedisWeightMirror(mc, time.Hour)
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	a := models.SignalWeight{SourceID: "a", Weight: 0.7, Accuracy: null.FloatFrom(0.8), Observations: 12, LastUpdated: now}
	b := models.NewSignalWeight("b", now)
	require.NoError(t, m.PutBatch(ctx, []models.SignalWeight{a, b}))
	require.NoError(t, m.PutBatch(ctx, nil))

	got, err := cache.MGetTyped[models.SignalWeight](ctx, mc, "weights:a", "weights:b", "weights:c")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, a.Weight, got["weights:a"].Weight)
	assert.Equal(t, a.Accuracy, got["weights:a"].Accuracy)
	assert.True(t, a.LastUpdated.Equal(got["weights:a"].LastUpdated))
	assert.False(t, got["weights:b"].Accuracy.Valid)
}
