package repository

import (
	"context"
	"time"

	"SignalForge/internal/domain/models"
)

type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan models.Observation, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// ConsensusPublisher emits closed-window results to downstream consumers.
type ConsensusPublisher interface {
	Publish(ctx context.Context, r models.ConsensusResult) error
	Close() error
}

// ConsensusArchive keeps a queryable history of results.
type ConsensusArchive interface {
	Store(ctx context.Context, r models.ConsensusResult) error
	Recent(ctx context.Context, token string, since time.Time, limit int) ([]models.ConsensusResult, error)
}

// WeightRepository is the durable store for learned source weights.
type WeightRepository interface {
	Init(ctx context.Context) error
	UpsertBatch(ctx context.Context, ws []models.SignalWeight) error
	LoadLatest(ctx context.Context) ([]models.SignalWeight, error)
	Health(ctx context.Context) error
}

// WeightMirror publishes current weights for readers outside the process.
type WeightMirror interface {
	PutBatch(ctx context.Context, ws []models.SignalWeight) error
}

type Metrics interface {
	RecordObservation(token string)
	RecordSignal(signalType, origin string)
	RecordRejected(kind string)
	RecordWindowOpened()
	RecordDecision(decision string)
	RecordQueueDrop(shard string)
	RecordQueueDepth(shard string, depth int)
	RecordWeight(sourceID string, weight float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
