package detector

import (
	"time"

	"SignalForge/internal/domain/models"
	"SignalForge/internal/services/rolling"
)

// Set is the fixed collection of detectors run by a shard.
type Set struct {
	token []Detector
	pair  []Detector
}

func NewSet(cfg Config) *Set {
	return &Set{
		token: []Detector{NewMeanReversion(cfg), NewAutocorrelation(cfg)},
		pair:  []Detector{NewCorrelationAnomaly(cfg)},
	}
}

// Sources lists the source ids of every detector in the set.
func (s *Set) Sources() []string {
	out := make([]string, 0, len(s.token)+len(s.pair))
	for _, d := range s.token {
		out = append(out, d.SourceID())
	}
	for _, d := range s.pair {
		out = append(out, d.SourceID())
	}
	return out
}

// EvaluateToken runs the single-token detectors on the history of token.
func (s *Set) EvaluateToken(token string, store *rolling.Store, now time.Time) []models.Signal {
	st := State{Token: token, Now: now, Prices: store.Prices(token)}
	var out []models.Signal
	for _, d := range s.token {
		if sig, ok := d.Evaluate(st); ok {
			out = append(out, sig)
		}
	}
	return out
}

// EvaluatePair runs the pair detectors on a tracked pair.
func (s *Set) EvaluatePair(key rolling.PairKey, store *rolling.Store, now time.Time) []models.Signal {
	p, ok := store.Pair(key)
	if !ok {
		return nil
	}
	a, b := p.Prices()
	st := State{Token: key.A, Now: now, Pair: &key, PairA: a, PairB: b}
	var out []models.Signal
	for _, d := range s.pair {
		if sig, ok := d.Evaluate(st); ok {
			out = append(out, sig)
		}
	}
	return out
}
