package middleware

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"SignalForge/internal/domain/models"
	domrepo "SignalForge/internal/domain/repository"
	"SignalForge/internal/domain/service"
	applogger "SignalForge/pkg/logger"
)

// Router is the downstream of the pipeline, normally the engine.
type Router interface {
	RouteObservation(o models.Observation) error
}

// ObservationPipeline sits between the market feeds and the engine.
// It validates, throttles per token and optionally transforms observations.
type ObservationPipeline struct {
	router    Router
	metrics   domrepo.Metrics
	clock     service.Clock
	l         *applogger.Logger
	maxRPS    int
	transform func(models.Observation) models.Observation

	mu       sync.Mutex
	lastSeen map[string]time.Time // per-token last accepted time
}

type PipelineOption func(*ObservationPipeline)

// WithMaxRPS sets the max observations per second per token. Zero disables throttling.
func WithMaxRPS(n int) PipelineOption {
	return func(p *ObservationPipeline) {
		if n >= 0 {
			p.maxRPS = n
		}
	}
}

// WithTransform sets a hook applied to every valid observation before routing.
func WithTransform(fn func(models.Observation) models.Observation) PipelineOption {
	return func(p *ObservationPipeline) { p.transform = fn }
}

func WithPipelineClock(c service.Clock) PipelineOption {
	return func(p *ObservationPipeline) { p.clock = c }
}

func WithPipelineLogger(l *applogger.Logger) PipelineOption {
	return func(p *ObservationPipeline) { p.l = l }
}

// NewObservationPipeline creates a new pipeline.
func NewObservationPipeline(router Router, metrics domrepo.Metrics, opts ...PipelineOption) *ObservationPipeline {
	p := &ObservationPipeline{
		router:   router,
		metrics:  metrics,
		clock:    service.SystemClock{},
		l:        applogger.Nop(),
		maxRPS:   20,
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process validates, throttles and forwards an observation.
// Throttled observations are dropped without error.
func (p *ObservationPipeline) Process(ctx context.Context, o models.Observation) error {
	start := p.clock.Now()
	if err := validateObservation(o); err != nil {
		p.metrics.RecordRejected("observation")
		return err
	}
	if p.transform != nil {
		o = p.transform(o)
		if err := validateObservation(o); err != nil {
			p.metrics.RecordError("pipeline_transform_invalid")
			return err
		}
	}
	if !p.allow(o.Token, start) {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.router.RouteObservation(o); err != nil {
		p.metrics.RecordError("pipeline_route")
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", p.clock.Now().Sub(start).Seconds())
	return nil
}

func validateObservation(o models.Observation) error {
	switch {
	case o.Token == "":
		return fmt.Errorf("%w: token empty", models.ErrValidation)
	case o.Timestamp.IsZero():
		return fmt.Errorf("%w: timestamp missing", models.ErrValidation)
	case !(o.Price > 0) || math.IsInf(o.Price, 0):
		return fmt.Errorf("%w: price %v not positive", models.ErrValidation, o.Price)
	case o.Volume < 0:
		return fmt.Errorf("%w: negative volume", models.ErrValidation)
	}
	return nil
}

func (p *ObservationPipeline) allow(token string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last, ok := p.lastSeen[token]
	if ok && now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[token] = now
	return true
}
