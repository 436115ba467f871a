package usecase

import (
	"context"
	"sync"
	"time"

	"SignalForge/internal/domain/models"
	drepo "SignalForge/internal/domain/repository"
	applogger "SignalForge/pkg/logger"
	"SignalForge/pkg/util"
)

// ObservationCollector pumps a market stream into the ingest pipeline and
// reconnects with backoff when the stream fails.
type ObservationCollector struct {
	stream  drepo.MarketStream
	pipe    ObservationProcessor
	metrics drepo.Metrics
	l       *applogger.Logger

	maxBackoff time.Duration
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

func NewObservationCollector(stream drepo.MarketStream, pipe ObservationProcessor, metrics drepo.Metrics, l *applogger.Logger) *ObservationCollector {
	if l == nil {
		l = applogger.Nop()
	}
	return &ObservationCollector{stream: stream, pipe: pipe, metrics: metrics, l: l, maxBackoff: time.Minute}
}

// IsConnected returns true if the market stream is connected.
func (c *ObservationCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

// Start connects, subscribes and runs the read loop in the background.
func (c *ObservationCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		_ = c.stream.Close()
		return err
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(ctx)
	}()
	return nil
}

func (c *ObservationCollector) run(ctx context.Context) {
	attempt := 1
	for {
		obsCh, errCh := c.stream.Read(ctx)
		if c.consume(ctx, obsCh, errCh) {
			attempt = 1
		}
		if ctx.Err() != nil {
			return
		}
		c.metrics.RecordError("stream")
		for ctx.Err() == nil {
			if err := c.stream.Reconnect(ctx); err != nil {
				c.l.Warn("collector.reconnect_failed", applogger.Int("attempt", attempt), applogger.Error(err))
				attempt++
				select {
				case <-ctx.Done():
				case <-time.After(util.BackoffWithJitter(time.Second, c.maxBackoff, attempt)):
				}
				continue
			}
			c.l.Info("collector.reconnected", applogger.Int("attempt", attempt))
			break
		}
	}
}

// consume drains the stream until it ends. It reports whether anything was received.
func (c *ObservationCollector) consume(ctx context.Context, obsCh <-chan models.Observation, errCh <-chan error) bool {
	received := false
	for {
		select {
		case <-ctx.Done():
			return received
		case err, ok := <-errCh:
			if ok && err != nil {
				c.l.Warn("collector.stream_error", applogger.Error(err))
			}
			errCh = nil
		case o, ok := <-obsCh:
			if !ok {
				return received
			}
			received = true
			if err := c.pipe.Process(ctx, o); err != nil {
				c.metrics.RecordError("collector_process")
			}
		}
	}
}

// Shutdown stops the read loop and closes the stream.
func (c *ObservationCollector) Shutdown(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	err := c.stream.Close()
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}
