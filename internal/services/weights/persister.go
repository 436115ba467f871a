package weights

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"SignalForge/internal/domain/models"
	"SignalForge/internal/domain/repository"
	applogger "SignalForge/pkg/logger"
	"SignalForge/pkg/util"
)

type PersisterOption func(*Persister)

func WithMirror(m repository.WeightMirror) PersisterOption {
	return func(p *Persister) { p.mirror = m }
}

func WithRetry(max int, backoffMin, backoffMax time.Duration) PersisterOption {
	return func(p *Persister) {
		p.retryMax = max
		p.backoffMin = backoffMin
		p.backoffMax = backoffMax
	}
}

func WithPersisterLogger(l *applogger.Logger) PersisterOption {
	return func(p *Persister) { p.l = l }
}

func WithPersisterMetrics(m repository.Metrics) PersisterOption {
	return func(p *Persister) { p.metrics = m }
}

// Persister writes weights to the repository in the background. Updates that
// arrive while a write is in flight are coalesced to the latest value per source.
// Memory stays authoritative: a write that exhausts its retries is logged and dropped.
type Persister struct {
	repo       repository.WeightRepository
	mirror     repository.WeightMirror
	retryMax   int
	backoffMin time.Duration
	backoffMax time.Duration
	l          *applogger.Logger
	metrics    repository.Metrics

	mu      sync.Mutex
	pending map[string]models.SignalWeight
	closed  bool
	notify  chan struct{}
	done    chan struct{}
	stop    sync.Once
	wg      sync.WaitGroup
}

func NewPersister(repo repository.WeightRepository, opts ...PersisterOption) *Persister {
	p := &Persister{
		repo:       repo,
		retryMax:   5,
		backoffMin: 200 * time.Millisecond,
		backoffMax: 10 * time.Second,
		pending:    make(map[string]models.SignalWeight),
		notify:     make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Enqueue schedules w for persistence. It never blocks. After the writer has
// made its final flush the weight is only kept in memory and the loss is logged.
func (p *Persister) Enqueue(w models.SignalWeight) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		if p.l != nil {
			p.l.Error("weights.persist_after_stop",
				applogger.String("source_id", w.SourceID),
				applogger.Float64("weight", w.Weight),
			)
		}
		if p.metrics != nil {
			p.metrics.RecordError("weights_persist")
		}
		return
	}
	p.pending[w.SourceID] = w
	p.mu.Unlock()
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// Start launches the background writer.
func (p *Persister) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-ctx.Done():
				p.finalFlush()
				return
			case <-p.done:
				p.finalFlush()
				return
			case <-p.notify:
				p.Flush(ctx)
			}
		}
	}()
}

// Stop flushes pending weights and waits for the writer to exit.
func (p *Persister) Stop(ctx context.Context) error {
	p.stop.Do(func() { close(p.done) })
	ch := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(ch)
	}()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("persister stop: %w", ctx.Err())
	}
}

// finalFlush closes the persister to new weights, then writes what is pending.
func (p *Persister) finalFlush() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p.Flush(ctx)
}

// Flush writes everything pending and reports how many weights were stored.
func (p *Persister) Flush(ctx context.Context) int {
	p.mu.Lock()
	if len(p.pending) == 0 {
		p.mu.Unlock()
		return 0
	}
	batch := make([]models.SignalWeight, 0, len(p.pending))
	for _, w := range p.pending {
		batch = append(batch, w)
	}
	p.pending = make(map[string]models.SignalWeight)
	p.mu.Unlock()
	sort.Slice(batch, func(i, j int) bool { return batch[i].SourceID < batch[j].SourceID })

	start := time.Now()
	if err := p.writeWithRetry(ctx, batch); err != nil {
		if p.l != nil {
			p.l.Error("weights.persist_failed", applogger.Error(err), applogger.Int("batch", len(batch)))
		}
		if p.metrics != nil {
			p.metrics.RecordError("weights_persist")
		}
		return 0
	}
	if p.metrics != nil {
		p.metrics.RecordLatency("weights_persist", time.Since(start).Seconds())
	}
	p.mirrorAll(ctx, batch)
	return len(batch)
}

func (p *Persister) writeWithRetry(ctx context.Context, batch []models.SignalWeight) error {
	var err error
	for attempt := 1; ; attempt++ {
		if err = p.repo.UpsertBatch(ctx, batch); err == nil {
			return nil
		}
		if attempt > p.retryMax {
			return fmt.Errorf("upsert %d weights after %d attempts: %w", len(batch), attempt, err)
		}
		if p.l != nil {
			p.l.Warn("weights.persist_retry", applogger.Error(err), applogger.Int("attempt", attempt))
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("upsert weights: %w", ctx.Err())
		case <-time.After(util.BackoffWithJitter(p.backoffMin, p.backoffMax, attempt)):
		}
	}
}

func (p *Persister) mirrorAll(ctx context.Context, batch []models.SignalWeight) {
	if p.mirror == nil {
		return
	}
	if err := p.mirror.PutBatch(ctx, batch); err != nil {
		if p.l != nil {
			p.l.Warn("weights.mirror_failed", applogger.Int("count", len(batch)), applogger.Error(err))
		}
		if p.metrics != nil {
			p.metrics.RecordError("weights_mirror")
		}
	}
}

// Warm loads the latest persisted weight per source into the store.
func Warm(ctx context.Context, repo repository.WeightRepository, store *Store) (int, error) {
	ws, err := repo.LoadLatest(ctx)
	if err != nil {
		return 0, fmt.Errorf("load weights: %w", err)
	}
	return store.Warm(ws), nil
}
