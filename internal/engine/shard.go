package engine

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"SignalForge/internal/domain/models"
	"SignalForge/internal/domain/repository"
	"SignalForge/internal/domain/service"
	"SignalForge/internal/services/consensus"
	"SignalForge/internal/services/detector"
	"SignalForge/internal/services/rolling"
	applogger "SignalForge/pkg/logger"
)

// Shard is the single owner of the rolling state and consensus windows for
// its tokens. Everything it owns is touched only from Run.
type Shard struct {
	id    int
	label string

	queue     *Queue
	store     *rolling.Store
	detectors *detector.Set
	windows   *consensus.Manager
	weights   service.WeightRegistry
	clock     service.Clock
	metrics   repository.Metrics
	l         *applogger.Logger
	out       chan<- models.ConsensusResult
	drain     bool

	stop     chan struct{}
	stopOnce sync.Once

	openWindows atomic.Int64
	processed   atomic.Int64
	results     atomic.Int64
	tokens      atomic.Int64
}

type shardDeps struct {
	queueCapacity int
	drain         bool
	rolling       rolling.Config
	detectors     *detector.Set
	windows       *consensus.Manager
	weights       service.WeightRegistry
	clock         service.Clock
	metrics       repository.Metrics
	l             *applogger.Logger
	out           chan<- models.ConsensusResult
}

func newShard(id int, d shardDeps) *Shard {
	return &Shard{
		id:        id,
		label:     strconv.Itoa(id),
		queue:     NewQueue(d.queueCapacity),
		store:     rolling.NewStore(d.rolling),
		detectors: d.detectors,
		windows:   d.windows,
		weights:   d.weights,
		clock:     d.clock,
		metrics:   d.metrics,
		l:         d.l.With(applogger.Int("shard", id)),
		out:       d.out,
		drain:     d.drain,
		stop:      make(chan struct{}),
	}
}

// Submit hands ev to the shard without blocking.
func (s *Shard) Submit(ev Event) error {
	evicted, err := s.queue.Push(ev)
	if err != nil {
		return err
	}
	if evicted {
		s.metrics.RecordQueueDrop(s.label)
	}
	return nil
}

// Run processes events and window deadlines until ctx is cancelled or Stop
// is called. Either way the inbox is closed and everything already queued is
// handled before the open windows are drained or abandoned.
func (s *Shard) Run(ctx context.Context) error {
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		s.armTimer(timer)
		select {
		case <-ctx.Done():
			s.queue.Close()
			s.drainQueue()
			s.finish()
			return nil
		case <-s.stop:
			s.drainQueue()
			s.finish()
			return nil
		case ev := <-s.queue.C():
			s.handle(ev)
		case <-timer.C:
			s.expire(s.clock.Now())
		}
	}
}

// Stop closes the inbox; queued events are still processed before Run returns.
func (s *Shard) Stop() {
	s.stopOnce.Do(func() {
		s.queue.Close()
		close(s.stop)
	})
}

func (s *Shard) armTimer(timer *time.Timer) {
	timer.Stop()
	next, ok := s.windows.NextDeadline()
	if !ok {
		return
	}
	d := next.Sub(s.clock.Now())
	if d < 0 {
		d = 0
	}
	timer.Reset(d)
}

func (s *Shard) drainQueue() {
	for {
		select {
		case ev := <-s.queue.C():
			s.handle(ev)
		default:
			return
		}
	}
}

func (s *Shard) handle(ev Event) {
	switch ev.Kind {
	case EventObservation:
		o := ev.Observation
		s.store.Record(o)
		s.tokens.Store(int64(s.store.Tokens()))
		s.metrics.RecordObservation(o.Token)
		for _, sig := range s.detectors.EvaluateToken(o.Token, s.store, ev.Received) {
			s.record(sig, "detector", ev.Received)
		}
	case EventPairTick:
		if s.store.RecordPairTick(ev.Pair, ev.Observation) {
			for _, sig := range s.detectors.EvaluatePair(ev.Pair, s.store, ev.Received) {
				s.record(sig, "detector", ev.Received)
			}
		}
	case EventSignal:
		s.record(ev.Signal, "bus", ev.Received)
	}
	s.processed.Add(1)
	s.metrics.RecordQueueDepth(s.label, s.queue.Len())
}

func (s *Shard) record(sig models.Signal, origin string, at time.Time) {
	if _, created := s.weights.Ensure(sig.SourceID, at); created {
		s.l.Info("weights.source_registered", applogger.String("source_id", sig.SourceID))
	}
	closed, opened := s.windows.Add(sig, at)
	for _, res := range closed {
		s.emit(res)
	}
	if opened {
		s.metrics.RecordWindowOpened()
	}
	s.metrics.RecordSignal(string(sig.Type), origin)
	s.openWindows.Store(int64(s.windows.Open()))
}

func (s *Shard) expire(now time.Time) {
	for _, res := range s.windows.Expire(now) {
		s.emit(res)
	}
	s.openWindows.Store(int64(s.windows.Open()))
}

func (s *Shard) emit(res models.ConsensusResult) {
	s.metrics.RecordDecision(string(res.Decision))
	s.results.Add(1)
	s.out <- res
}

func (s *Shard) finish() {
	if s.drain {
		results := s.windows.Drain(s.clock.Now())
		for _, res := range results {
			s.emit(res)
		}
		if len(results) > 0 {
			s.l.Info("engine.shard_drained", applogger.Int("windows", len(results)))
		}
	} else if n := s.windows.Abandon(); n > 0 {
		s.l.Warn("engine.shard_abandoned", applogger.Int("windows", n))
	}
	s.openWindows.Store(0)
}

func (s *Shard) status() models.ShardStatus {
	return models.ShardStatus{
		ID:          s.id,
		QueueDepth:  s.queue.Len(),
		OpenWindows: s.openWindows.Load(),
		Processed:   s.processed.Load(),
		Dropped:     s.queue.Dropped(),
	}
}
