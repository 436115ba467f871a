package weights

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/guregu/null/v6"

	"SignalForge/internal/domain/models"
	"SignalForge/internal/domain/repository"
	"SignalForge/internal/domain/service"
	applogger "SignalForge/pkg/logger"
)

type UpdaterConfig struct {
	Alpha             float64
	Prior             float64
	PriorObservations int
}

func DefaultUpdaterConfig() UpdaterConfig {
	return UpdaterConfig{Alpha: 0.1, Prior: models.NeutralWeight, PriorObservations: models.PriorObservations}
}

// EffectiveAccuracy shrinks correctness toward the prior while a source has
// fewer than priorN observations.
func EffectiveAccuracy(observations int64, correctness float64, priorN int, prior float64) float64 {
	if priorN <= 0 {
		return correctness
	}
	k := math.Min(float64(observations), float64(priorN)) / float64(priorN)
	return k*correctness + (1-k)*prior
}

// Step folds one correctness value into w. It is pure.
func Step(w models.SignalWeight, correctness float64, cfg UpdaterConfig, now time.Time) models.SignalWeight {
	eff := EffectiveAccuracy(w.Observations, correctness, cfg.PriorObservations, cfg.Prior)
	w.Weight = clamp01((1-cfg.Alpha)*w.Weight + cfg.Alpha*eff)
	if w.Accuracy.Valid {
		w.Accuracy = null.FloatFrom(clamp01((1-cfg.Alpha)*w.Accuracy.Float64 + cfg.Alpha*correctness))
	} else {
		w.Accuracy = null.FloatFrom(clamp01(correctness))
	}
	w.Observations++
	w.LastUpdated = now
	return w
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

// Persistence receives every updated weight for out-of-band storage.
type Persistence interface {
	Enqueue(w models.SignalWeight)
}

type UpdaterOption func(*Updater)

func WithPersistence(p Persistence) UpdaterOption {
	return func(u *Updater) { u.persist = p }
}

func WithClock(c service.Clock) UpdaterOption {
	return func(u *Updater) { u.clock = c }
}

func WithMetrics(m repository.Metrics) UpdaterOption {
	return func(u *Updater) { u.metrics = m }
}

func WithLogger(l *applogger.Logger) UpdaterOption {
	return func(u *Updater) { u.l = l }
}

// Updater is the only writer of learned weights.
type Updater struct {
	store   *Store
	cfg     UpdaterConfig
	persist Persistence
	clock   service.Clock
	metrics repository.Metrics
	l       *applogger.Logger
}

func NewUpdater(store *Store, cfg UpdaterConfig, opts ...UpdaterOption) *Updater {
	if cfg.Alpha <= 0 || cfg.Alpha > 1 {
		cfg.Alpha = 0.1
	}
	u := &Updater{store: store, cfg: cfg, clock: service.SystemClock{}}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Apply folds a performance observation into the weight of its source.
func (u *Updater) Apply(ctx context.Context, obs models.PerformanceObservation) (models.SignalWeight, error) {
	if obs.SourceID == "" {
		return models.SignalWeight{}, fmt.Errorf("%w: source_id is required", models.ErrValidation)
	}
	if math.IsNaN(obs.Correctness) || obs.Correctness < 0 || obs.Correctness > 1 {
		return models.SignalWeight{}, fmt.Errorf("%w: correctness %v out of [0,1]", models.ErrValidation, obs.Correctness)
	}
	if err := ctx.Err(); err != nil {
		return models.SignalWeight{}, err
	}
	now := u.clock.Now()
	w := u.store.Update(obs.SourceID, now, func(cur models.SignalWeight) models.SignalWeight {
		return Step(cur, obs.Correctness, u.cfg, now)
	})
	if u.metrics != nil {
		u.metrics.RecordWeight(w.SourceID, w.Weight)
	}
	if u.l != nil {
		u.l.Debug("weights.updated",
			applogger.String("source_id", w.SourceID),
			applogger.Float64("weight", w.Weight),
			applogger.Float64("correctness", obs.Correctness),
			applogger.Int64("observations", w.Observations),
		)
	}
	if u.persist != nil {
		u.persist.Enqueue(w)
	}
	return w, nil
}
