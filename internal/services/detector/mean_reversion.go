package detector

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"SignalForge/internal/domain/models"
	"SignalForge/internal/services/features"
)

// MeanReversion flags prices that sit far outside the band of the preceding window
// and bets on a return toward the mean.
type MeanReversion struct {
	base
}

func NewMeanReversion(cfg Config) *MeanReversion {
	return &MeanReversion{base: newBase(cfg, models.SignalMeanReversion)}
}

func (d *MeanReversion) Evaluate(st State) (models.Signal, bool) {
	n := len(st.Prices)
	if n < d.cfg.MinWindow+1 || n < 3 {
		return models.Signal{}, false
	}
	w := n - 1
	if d.cfg.Window > 0 && w > d.cfg.Window {
		w = d.cfg.Window
	}
	window := st.Prices[n-1-w : n-1]
	latest := st.Prices[n-1]

	mean, std := features.PopulationMeanStd(window)
	if std == 0 {
		return models.Signal{}, false
	}
	z := (latest - mean) / std
	if math.Abs(z) <= d.cfg.SigmaThreshold {
		return models.Signal{}, false
	}

	m := float64(len(window))
	t := z / math.Sqrt(1+1/m)
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: m - 1}
	p := 2 * (1 - dist.CDF(math.Abs(t)))
	if p >= d.cfg.PValueThreshold {
		return models.Signal{}, false
	}

	strength := math.Abs(z) / (2 * d.cfg.SigmaThreshold)
	return d.signal(st.Token, models.DirectionOf(-z), strength, p, st.Now), true
}
