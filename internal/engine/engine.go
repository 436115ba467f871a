package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"SignalForge/internal/domain/models"
	"SignalForge/internal/domain/repository"
	"SignalForge/internal/domain/service"
	"SignalForge/internal/services/consensus"
	"SignalForge/internal/services/detector"
	"SignalForge/internal/services/rolling"
	applogger "SignalForge/pkg/logger"
	"SignalForge/pkg/metrics"
	"SignalForge/pkg/util"
)

type Config struct {
	Shards          int
	QueueCapacity   int
	OutputBuffer    int
	WindowDuration  time.Duration
	MinSources      int
	ThresholdPct    float64
	DrainOnShutdown bool
	Detectors       detector.Config
	SampleInterval  time.Duration
	Pairs           [][]string
}

type Option func(*Engine)

func WithClock(c service.Clock) Option { return func(e *Engine) { e.clock = c } }

func WithMetrics(m repository.Metrics) Option { return func(e *Engine) { e.metrics = m } }

func WithLogger(l *applogger.Logger) Option { return func(e *Engine) { e.l = l } }

// WithWindowIDs overrides window id generation, used by tests.
func WithWindowIDs(fn func() string) Option { return func(e *Engine) { e.windowIDs = fn } }

// Engine partitions tokens over shards and forwards every closed window to the sink.
type Engine struct {
	cfg       Config
	weights   service.WeightRegistry
	sink      service.ResultSink
	clock     service.Clock
	metrics   repository.Metrics
	l         *applogger.Logger
	windowIDs func() string

	shards []*Shard
	router *Router
	out    chan models.ConsensusResult

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	err       error
}

func New(cfg Config, weights service.WeightRegistry, sink service.ResultSink, opts ...Option) (*Engine, error) {
	if cfg.Shards < 1 {
		cfg.Shards = 1
	}
	if cfg.OutputBuffer < 1 {
		cfg.OutputBuffer = 1
	}
	if cfg.WindowDuration <= 0 {
		return nil, fmt.Errorf("window duration must be positive, got %v", cfg.WindowDuration)
	}
	if cfg.MinSources < 1 {
		return nil, fmt.Errorf("min sources must be >= 1, got %d", cfg.MinSources)
	}
	if cfg.ThresholdPct <= 0 || cfg.ThresholdPct > 100 {
		return nil, fmt.Errorf("threshold must be in (0,100], got %v", cfg.ThresholdPct)
	}

	e := &Engine{
		cfg:     cfg,
		weights: weights,
		sink:    sink,
		clock:   service.SystemClock{},
		metrics: metrics.Nop{},
		l:       applogger.Nop(),
		out:     make(chan models.ConsensusResult, cfg.OutputBuffer),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	pairs, err := canonicalPairs(cfg.Pairs)
	if err != nil {
		return nil, err
	}

	agg := consensus.NewAggregator(consensus.AggregatorConfig{MinSources: cfg.MinSources, ThresholdPct: cfg.ThresholdPct}, weights)
	set := detector.NewSet(cfg.Detectors)
	rcfg := rolling.Config{
		HistorySize:    cfg.Detectors.HistorySize(),
		PairSamples:    cfg.Detectors.PairSamples(),
		SampleInterval: cfg.SampleInterval,
	}

	e.shards = make([]*Shard, cfg.Shards)
	for i := range e.shards {
		var mopts []consensus.ManagerOption
		if e.windowIDs != nil {
			mopts = append(mopts, consensus.WithIDGenerator(e.windowIDs))
		}
		e.shards[i] = newShard(i, shardDeps{
			queueCapacity: cfg.QueueCapacity,
			drain:         cfg.DrainOnShutdown,
			rolling:       rcfg,
			detectors:     set,
			windows:       consensus.NewManager(cfg.WindowDuration, agg, mopts...),
			weights:       weights,
			clock:         e.clock,
			metrics:       e.metrics,
			l:             e.l,
			out:           e.out,
		})
	}
	for _, k := range pairs {
		e.shards[ShardIndex(k.A, len(e.shards))].store.TrackPair(k)
	}
	e.router = NewRouter(e.shards, pairs, e.clock)
	return e, nil
}

func canonicalPairs(raw [][]string) ([]rolling.PairKey, error) {
	seen := make(map[rolling.PairKey]struct{}, len(raw))
	out := make([]rolling.PairKey, 0, len(raw))
	for _, p := range raw {
		if len(p) != 2 {
			return nil, fmt.Errorf("correlation pair must have two tokens, got %v", p)
		}
		k, ok := rolling.CanonicalPair(util.NormalizeToken(p[0]), util.NormalizeToken(p[1]))
		if !ok {
			return nil, fmt.Errorf("correlation pair %v pairs a token with itself", p)
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out, nil
}

// Start launches the shard workers and the result publisher.
func (e *Engine) Start(ctx context.Context) {
	e.startOnce.Do(func() {
		g, gctx := errgroup.WithContext(ctx)
		for _, sh := range e.shards {
			sh := sh
			g.Go(func() error { return sh.Run(gctx) })
		}

		published := make(chan struct{})
		go func() {
			defer close(published)
			for res := range e.out {
				e.publish(res)
			}
		}()

		go func() {
			e.err = g.Wait()
			close(e.out)
			<-published
			close(e.done)
		}()
		e.l.Info("engine.started", applogger.Int("shards", len(e.shards)))
	})
}

func (e *Engine) publish(res models.ConsensusResult) {
	if e.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.sink.Handle(ctx, res); err != nil {
		e.metrics.RecordError("consensus_sink")
		e.l.Error("engine.sink_failed",
			applogger.String("token", res.Token),
			applogger.String("window_id", res.WindowID),
			applogger.Error(err),
		)
	}
}

// Stop closes every inbox, lets shards finish their queues and windows, and
// waits until all results have been handed to the sink.
func (e *Engine) Stop(ctx context.Context) error {
	e.stopOnce.Do(func() {
		for _, sh := range e.shards {
			sh.Stop()
		}
	})
	select {
	case <-e.done:
		return e.err
	case <-ctx.Done():
		return fmt.Errorf("engine stop: %w", ctx.Err())
	}
}

// Done is closed once the engine has fully stopped.
func (e *Engine) Done() <-chan struct{} { return e.done }

func (e *Engine) RouteObservation(o models.Observation) error { return e.router.RouteObservation(o) }

func (e *Engine) RouteSignal(s models.Signal) error { return e.router.RouteSignal(s) }

// Status is safe to call from any goroutine.
func (e *Engine) Status() models.EngineStatus {
	st := models.EngineStatus{Shards: len(e.shards), ShardStatus: make([]models.ShardStatus, 0, len(e.shards))}
	for _, sh := range e.shards {
		ss := sh.status()
		st.ShardStatus = append(st.ShardStatus, ss)
		st.OpenWindows += ss.OpenWindows
		st.Processed += ss.Processed
		st.Dropped += ss.Dropped
		st.Results += sh.results.Load()
		st.TrackedTokens += sh.tokens.Load()
	}
	return st
}
