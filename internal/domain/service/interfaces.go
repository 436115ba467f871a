package service

import (
	"context"
	"time"

	"SignalForge/internal/domain/models"
)

// Clock abstracts wall time so window boundaries can be driven in tests.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// WeightReader resolves the current weight of a source.
// Unknown sources resolve to the neutral prior.
type WeightReader interface {
	Weight(sourceID string) float64
}

// WeightRegistry lazily creates a weight entry on first sight of a source.
type WeightRegistry interface {
	WeightReader
	Ensure(sourceID string, now time.Time) (models.SignalWeight, bool)
}

// FeedbackApplier folds a performance observation into a source weight.
type FeedbackApplier interface {
	Apply(ctx context.Context, obs models.PerformanceObservation) (models.SignalWeight, error)
}

// SignalRouter hands input to the shard that owns its token.
type SignalRouter interface {
	RouteObservation(o models.Observation) error
	RouteSignal(s models.Signal) error
}

// ResultSink receives every closed window exactly once.
type ResultSink interface {
	Handle(ctx context.Context, r models.ConsensusResult) error
}
