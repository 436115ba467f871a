package rolling

import (
	"time"

	"SignalForge/internal/domain/models"
)

type Config struct {
	// HistorySize bounds the per-token observation history.
	HistorySize int
	// PairSamples bounds each pair series; detectors need two windows of returns.
	PairSamples int
	// SampleInterval is the minimum spacing of pair co-observations.
	SampleInterval time.Duration
}

// Store holds the rolling state owned by a single shard.
// It is not safe for concurrent use.
type Store struct {
	cfg       Config
	histories map[string]*Ring[models.Observation]
	pairs     map[PairKey]*PairSeries
}

func NewStore(cfg Config) *Store {
	if cfg.HistorySize < 2 {
		cfg.HistorySize = 2
	}
	if cfg.PairSamples < 2 {
		cfg.PairSamples = 2
	}
	return &Store{
		cfg:       cfg,
		histories: make(map[string]*Ring[models.Observation]),
		pairs:     make(map[PairKey]*PairSeries),
	}
}

// Record appends an observation to its token history, evicting the oldest when full.
func (s *Store) Record(o models.Observation) {
	h, ok := s.histories[o.Token]
	if !ok {
		h = NewRing[models.Observation](s.cfg.HistorySize)
		s.histories[o.Token] = h
	}
	h.Push(o)
}

// Prices returns the price history of token, oldest first.
func (s *Store) Prices(token string) []float64 {
	h, ok := s.histories[token]
	if !ok {
		return nil
	}
	out := make([]float64, h.Len())
	for i := range out {
		out[i] = h.At(i).Price
	}
	return out
}

// History returns the observations of token, oldest first.
func (s *Store) History(token string) []models.Observation {
	h, ok := s.histories[token]
	if !ok {
		return nil
	}
	return h.Slice()
}

// TrackPair registers a pair so ticks for either leg are sampled.
func (s *Store) TrackPair(key PairKey) {
	if _, ok := s.pairs[key]; ok {
		return
	}
	s.pairs[key] = newPairSeries(key, s.cfg.PairSamples, s.cfg.SampleInterval)
}

// RecordPairTick updates one leg of a tracked pair and reports whether a new sample was taken.
func (s *Store) RecordPairTick(key PairKey, o models.Observation) bool {
	p, ok := s.pairs[key]
	if !ok {
		return false
	}
	return p.Tick(o.Token, o.Price, o.Timestamp)
}

// Pair returns a tracked pair series.
func (s *Store) Pair(key PairKey) (*PairSeries, bool) {
	p, ok := s.pairs[key]
	return p, ok
}

func (s *Store) Tokens() int { return len(s.histories) }

func (s *Store) Pairs() int { return len(s.pairs) }
