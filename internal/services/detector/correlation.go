package detector

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"SignalForge/internal/domain/models"
	"SignalForge/internal/services/features"
)

// maxAbsCorrelation keeps atanh finite.
const maxAbsCorrelation = 0.9999

// CorrelationAnomaly compares the return correlation of a pair across two
// consecutive windows and flags a break in the relationship.
type CorrelationAnomaly struct {
	base
	normal distuv.Normal
}

func NewCorrelationAnomaly(cfg Config) *CorrelationAnomaly {
	return &CorrelationAnomaly{
		base:   newBase(cfg, models.SignalCorrelationAnomaly),
		normal: distuv.Normal{Mu: 0, Sigma: 1},
	}
}

func (d *CorrelationAnomaly) Evaluate(st State) (models.Signal, bool) {
	if st.Pair == nil {
		return models.Signal{}, false
	}
	ra := features.LogReturns(st.PairA)
	rb := features.LogReturns(st.PairB)
	if len(ra) != len(rb) {
		return models.Signal{}, false
	}
	w := len(ra) / 2
	if d.cfg.PairWindow > 0 && w > d.cfg.PairWindow {
		w = d.cfg.PairWindow
	}
	if w < d.cfg.MinPairWindow || w < 4 {
		return models.Signal{}, false
	}
	n := len(ra)
	prevA, curA := ra[n-2*w:n-w], ra[n-w:]
	prevB, curB := rb[n-2*w:n-w], rb[n-w:]

	rPrev, ok := features.Correlation(prevA, prevB)
	if !ok {
		return models.Signal{}, false
	}
	rNow, ok := features.Correlation(curA, curB)
	if !ok {
		return models.Signal{}, false
	}
	dr := rNow - rPrev
	if math.Abs(dr) <= d.cfg.CorrelationChangeThreshold {
		return models.Signal{}, false
	}

	se := math.Sqrt(2 / float64(w-3))
	zDiff := (fisher(rNow) - fisher(rPrev)) / se
	p := 2 * (1 - d.normal.CDF(math.Abs(zDiff)))
	if p >= d.cfg.PValueThreshold {
		return models.Signal{}, false
	}

	spread := features.Sum(curB) - features.Sum(curA)
	dir := models.DirectionOf(spread)
	if dir == 0 {
		return models.Signal{}, false
	}
	strength := math.Abs(dr) / (2 * d.cfg.CorrelationChangeThreshold)
	return d.signal(st.Pair.A, dir, strength, p, st.Now), true
}

func fisher(r float64) float64 {
	return math.Atanh(math.Max(-maxAbsCorrelation, math.Min(maxAbsCorrelation, r)))
}
