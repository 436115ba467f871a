package detector

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"SignalForge/internal/domain/models"
	"SignalForge/internal/services/features"
)

// bandZ is the two-sided 95% normal quantile.
const bandZ = 1.96

// Autocorrelation looks for serial dependence in log returns. Positive
// dependence is read as momentum, negative as reversion.
type Autocorrelation struct {
	base
	normal distuv.Normal
}

func NewAutocorrelation(cfg Config) *Autocorrelation {
	if len(cfg.Lags) == 0 {
		cfg.Lags = []int{1}
	}
	return &Autocorrelation{
		base:   newBase(cfg, models.SignalAutocorrelation),
		normal: distuv.Normal{Mu: 0, Sigma: 1},
	}
}

func (d *Autocorrelation) Evaluate(st State) (models.Signal, bool) {
	prices := st.Prices
	if d.cfg.Window > 0 && len(prices) > d.cfg.Window+1 {
		prices = prices[len(prices)-d.cfg.Window-1:]
	}
	rets := features.LogReturns(prices)
	n := len(rets)
	if n < d.cfg.MinWindow || n < 3 {
		return models.Signal{}, false
	}
	latest := rets[n-1]
	if latest == 0 {
		return models.Signal{}, false
	}

	band := bandZ / math.Sqrt(float64(n))
	var (
		best  float64
		found bool
	)
	for _, lag := range d.cfg.Lags {
		acf, ok := features.Autocorrelation(rets, lag)
		if !ok {
			continue
		}
		if !found || math.Abs(acf) > math.Abs(best) {
			best, found = acf, true
		}
	}
	if !found || math.Abs(best) <= band {
		return models.Signal{}, false
	}

	p := 2 * (1 - d.normal.CDF(math.Abs(best)*math.Sqrt(float64(n))))
	if p >= d.cfg.PValueThreshold {
		return models.Signal{}, false
	}

	dir := models.DirectionOf(latest)
	if best < 0 {
		dir = -dir
	}
	return d.signal(st.Token, dir, math.Abs(best), p, st.Now), true
}
