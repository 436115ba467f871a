package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"SignalForge/internal/engine"
	"SignalForge/internal/repository"
	"SignalForge/internal/services/weights"
	"SignalForge/internal/usecase"
	pkgch "SignalForge/pkg/clickhouse"
	"SignalForge/pkg/config"
	xhttp "SignalForge/pkg/http"
	pkgkafka "SignalForge/pkg/kafka"
	applogger "SignalForge/pkg/logger"
)

// KafkaHandlers is the set of topic handlers attached to the consumer.
type KafkaHandlers []pkgkafka.MessageHandler

// Components holds everything App drives. Optional parts may be nil.
type Components struct {
	Config     *config.Config
	Logger     *applogger.Logger
	ClickHouse *pkgch.Client
	WeightRepo *repository.CHWeightRepository
	Store      *weights.Store
	Persister  *weights.Persister
	Engine     *engine.Engine
	Consumer   *pkgkafka.Consumer
	Handlers   KafkaHandlers
	Collector  *usecase.ObservationCollector
	Producer   *pkgkafka.Producer
	Cache      io.Closer
	HTTP       *xhttp.Server
}

// App encapsulates the entire application lifecycle.
type App struct {
	Components
	l       *applogger.Logger
	cancel  context.CancelFunc
	started bool
}

// New creates a new App instance with all dependencies.
func New(c Components) *App {
	l := c.Logger
	if l == nil {
		l = applogger.Nop()
	}
	return &App{Components: c, l: l}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		defer cancel()
		_ = a.Shutdown(shutdownCtx)
		return err
	}

	select {
	case <-ctx.Done():
		a.l.Info("app.shutdown_signal")
	case <-a.Engine.Done():
		a.l.Warn("app.engine_exited")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()
	return a.Shutdown(shutdownCtx)
}

// Start brings components up from storage outward. It returns once
// everything is running. The persister and engine run detached from ctx so
// that cancelling it only stops the inputs; Shutdown ends them in order.
func (a *App) Start(ctx context.Context) error {
	core, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel

	if a.WeightRepo != nil {
		initCtx, initCancel := context.WithTimeout(ctx, 30*time.Second)
		defer initCancel()
		if err := a.WeightRepo.Init(initCtx); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
		if a.Config.Weights.WarmOnStart {
			n, err := weights.Warm(initCtx, a.WeightRepo, a.Store)
			if err != nil {
				// A cold store still works from neutral priors.
				a.l.Warn("app.warm_failed", applogger.Error(err))
			} else {
				a.l.Info("app.weights_warmed", applogger.Int("sources", n))
			}
		}
	}

	if a.Persister != nil {
		a.Persister.Start(core)
	}
	a.Engine.Start(core)
	a.started = true

	if a.Consumer != nil && len(a.Handlers) > 0 {
		for _, h := range a.Handlers {
			a.Consumer.RegisterHandler(h)
		}
		if err := a.Consumer.Start(); err != nil {
			return fmt.Errorf("kafka consumer: %w", err)
		}
	}

	if a.Collector != nil {
		if err := a.Collector.Start(ctx); err != nil {
			return fmt.Errorf("collector: %w", err)
		}
		a.l.Info("app.collector_started", applogger.Strings("symbols", a.Config.Finnhub.Symbols))
	}

	if a.HTTP != nil {
		if err := a.HTTP.Start(); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	a.l.Info("app.started", applogger.String("environment", a.Config.Environment))
	return nil
}

// Shutdown stops inputs first, drains the engine, then flushes and closes
// outputs. Every step runs even when an earlier one fails.
func (a *App) Shutdown(ctx context.Context) error {
	a.l.Info("app.shutting_down")
	var errs []error
	step := func(name string, err error) {
		if err != nil {
			a.l.Warn("app.stop_failed", applogger.String("component", name), applogger.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if a.Collector != nil {
		step("collector", a.Collector.Shutdown(ctx))
	}
	if a.Consumer != nil {
		step("kafka consumer", a.Consumer.Stop(ctx))
	}
	if a.Engine != nil && a.started {
		step("engine", a.Engine.Stop(ctx))
	}
	if a.Persister != nil {
		step("persister", a.Persister.Stop(ctx))
	}
	if a.cancel != nil {
		a.cancel()
	}
	if a.HTTP != nil {
		step("http", a.HTTP.Stop(ctx))
	}
	// The log collector publishes through the producer, so flush it first.
	a.l.RemoveCollector()
	if a.Producer != nil {
		step("kafka producer", a.Producer.Close())
	}
	if a.Cache != nil {
		step("cache", a.Cache.Close())
	}
	if a.ClickHouse != nil {
		step("clickhouse", a.ClickHouse.Close())
	}

	a.l.Info("app.stopped")
	return errors.Join(errs...)
}
