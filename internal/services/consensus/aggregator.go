package consensus

import (
	"sort"
	"time"

	"github.com/guregu/null/v6"

	"SignalForge/internal/domain/models"
	"SignalForge/internal/domain/service"
)

type AggregatorConfig struct {
	MinSources   int
	ThresholdPct float64
}

// Aggregator scores the signals of a closed window against the current source weights.
type Aggregator struct {
	cfg     AggregatorConfig
	weights service.WeightReader
}

func NewAggregator(cfg AggregatorConfig, weights service.WeightReader) *Aggregator {
	if cfg.MinSources < 1 {
		cfg.MinSources = 1
	}
	return &Aggregator{cfg: cfg, weights: weights}
}

// Aggregate computes the decision for a set of signals holding at most one signal per source.
func (a *Aggregator) Aggregate(token string, signals []models.Signal) (models.Decision, null.Float, []string) {
	sorted := make([]models.Signal, len(signals))
	copy(sorted, signals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SourceID < sorted[j].SourceID })

	sources := make([]string, 0, len(sorted))
	for _, s := range sorted {
		sources = append(sources, s.SourceID)
	}
	if len(sorted) < a.cfg.MinSources {
		return models.DecisionInsufficientSources, null.Float{}, sources
	}

	var sumW, sumVW float64
	for _, s := range sorted {
		w := a.weights.Weight(s.SourceID)
		sumW += w
		sumVW += s.Vote() * w
	}
	score := 0.0
	if sumW > 0 {
		score = 100 * sumVW / sumW
	}
	decision := models.DecisionBelowThreshold
	if score > a.cfg.ThresholdPct {
		decision = models.DecisionApproved
	}
	return decision, null.FloatFrom(score), sources
}

// Evaluate turns a closing window into its result.
func (a *Aggregator) Evaluate(w *Window, at time.Time) models.ConsensusResult {
	signals := w.Signals()
	decision, score, sources := a.Aggregate(w.Token, signals)
	ids := make([]string, 0, len(signals))
	for _, s := range signals {
		ids = append(ids, s.ID)
	}
	return models.ConsensusResult{
		Token:               w.Token,
		WindowID:            w.ID,
		Decision:            decision,
		Score:               score,
		ContributingSources: sources,
		SignalIDs:           ids,
		OpenedAt:            w.OpenedAt,
		Timestamp:           at,
		CorrelationID:       w.CorrelationID,
	}
}
