package detector

import (
	"math"
	"time"

	"github.com/google/uuid"

	"SignalForge/internal/domain/models"
	"SignalForge/internal/services/rolling"
)

// State is the read-only view a detector evaluates.
type State struct {
	Token  string
	Now    time.Time
	Prices []float64
	// Pair is set only for pair evaluation; PairA/PairB are the co-observed prices.
	Pair  *rolling.PairKey
	PairA []float64
	PairB []float64
}

// Detector turns rolling state into at most one signal.
// Evaluate must not retain or mutate the state.
type Detector interface {
	Type() models.SignalType
	SourceID() string
	Evaluate(st State) (models.Signal, bool)
}

type Config struct {
	SourcePrefix               string
	SigmaThreshold             float64
	PValueThreshold            float64
	Window                     int
	MinWindow                  int
	Lags                       []int
	CorrelationChangeThreshold float64
	PairWindow                 int
	MinPairWindow              int
}

func DefaultConfig() Config {
	return Config{
		SourcePrefix:               "signalforge",
		SigmaThreshold:             2.0,
		PValueThreshold:            0.05,
		Window:                     50,
		MinWindow:                  20,
		Lags:                       []int{1},
		CorrelationChangeThreshold: 0.3,
		PairWindow:                 168,
		MinPairWindow:              10,
	}
}

// HistorySize is the per-token ring size the detectors need.
func (c Config) HistorySize() int {
	return c.Window + 1
}

// PairSamples is the pair ring size holding a current and a previous window of returns.
func (c Config) PairSamples() int {
	return 2*c.PairWindow + 1
}

type base struct {
	cfg      Config
	kind     models.SignalType
	sourceID string
	newID    func() string
}

func newBase(cfg Config, kind models.SignalType) base {
	prefix := cfg.SourcePrefix
	if prefix == "" {
		prefix = "signalforge"
	}
	return base{cfg: cfg, kind: kind, sourceID: prefix + "." + string(kind), newID: uuid.NewString}
}

func (b base) Type() models.SignalType { return b.kind }

func (b base) SourceID() string { return b.sourceID }

func (b base) signal(token string, dir models.Direction, strength, significance float64, now time.Time) models.Signal {
	return models.Signal{
		ID:           b.newID(),
		SourceID:     b.sourceID,
		Token:        token,
		Type:         b.kind,
		Direction:    dir,
		Strength:     clamp01(strength),
		Significance: clamp01(significance),
		Timestamp:    now,
	}
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	return math.Max(0, math.Min(1, x))
}
