package di

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/prometheus/client_golang/prometheus"

	"SignalForge/internal/domain/repository"
	"SignalForge/internal/domain/service"
	"SignalForge/internal/engine"
	"SignalForge/internal/handler/api"
	mid "SignalForge/internal/middleware"
	internalrepo "SignalForge/internal/repository"
	"SignalForge/internal/service/finnhub"
	"SignalForge/internal/service/ratelimit"
	"SignalForge/internal/services/detector"
	"SignalForge/internal/services/weights"
	"SignalForge/internal/usecase"
	"SignalForge/pkg/cache"
	pkgch "SignalForge/pkg/clickhouse"
	"SignalForge/pkg/config"
	xhttp "SignalForge/pkg/http"
	pkgkafka "SignalForge/pkg/kafka"
	applogger "SignalForge/pkg/logger"
	"SignalForge/pkg/metrics"
	"SignalForge/pkg/server"
)

const serviceName = "signalforge"

// ProvideLogger builds the application logger. When the collector is enabled,
// aggregated errors are published to Kafka through the producer.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if c := cfg.Logging.Collector; c.Enabled {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   c.Interval,
			CountThreshold: c.Threshold,
			Topic:          c.Topic,
			Service:        serviceName,
			Publisher:      producer,
		}, c.CollectWarn)
	}
	return l.With(applogger.String("service", serviceName)), nil
}

func ProvideRegisterer() prometheus.Registerer {
	return prometheus.DefaultRegisterer
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg prometheus.Registerer) repository.Metrics {
	return metrics.New(reg)
}

func ProvideClock() service.Clock {
	return service.SystemClock{}
}

// ProvideClickHouseClient connects to the default database; every table is
// qualified with the configured database, which Init creates.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase("default"),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithCompression(cfg.ClickHouse.Compress),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

func ProvideTables(cfg *config.Config) pkgch.Tables {
	return pkgch.Tables{
		Database:  cfg.ClickHouse.Database,
		Weights:   cfg.ClickHouse.WeightsTable,
		Consensus: cfg.ClickHouse.ConsensusTable,
	}
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config, reg prometheus.Registerer) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithProducerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideCache returns the Redis cache backing the weight mirror, or nil when Redis is disabled.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	c, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, 2),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return c, nil
}

func ProvideCacheCloser(c cache.Service) io.Closer {
	if c == nil {
		return nil
	}
	return c
}

func ProvideWeightMirror(c cache.Service, cfg *config.Config) repository.WeightMirror {
	if c == nil {
		return nil
	}
	return internalrepo.NewRedisWeightMirror(c, cfg.Redis.TTL)
}

func ProvideWeightRepository(ch *pkgch.Client, tables pkgch.Tables, l *applogger.Logger) *internalrepo.CHWeightRepository {
	return internalrepo.NewCHWeightRepository(ch, tables, l)
}

// ProvideConsensusArchive returns nil when archiving is turned off.
func ProvideConsensusArchive(ch *pkgch.Client, tables pkgch.Tables, cfg *config.Config, l *applogger.Logger) repository.ConsensusArchive {
	if !cfg.ClickHouse.ArchiveResults {
		return nil
	}
	return internalrepo.NewCHConsensusArchive(ch, tables, l)
}

func ProvideConsensusPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.ConsensusPublisher {
	return internalrepo.NewKafkaConsensusPublisher(producer, cfg.Kafka.Topics.Approved, cfg.Kafka.Topics.Failed)
}

func ProvideWeightStore() *weights.Store {
	return weights.NewStore()
}

func ProvidePersister(
	repo *internalrepo.CHWeightRepository,
	mirror repository.WeightMirror,
	m repository.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) *weights.Persister {
	opts := []weights.PersisterOption{
		weights.WithRetry(cfg.Weights.RetryMax, cfg.Weights.BackoffMin, cfg.Weights.BackoffMax),
		weights.WithPersisterLogger(l),
		weights.WithPersisterMetrics(m),
	}
	if mirror != nil {
		opts = append(opts, weights.WithMirror(mirror))
	}
	return weights.NewPersister(repo, opts...)
}

func ProvideUpdater(
	store *weights.Store,
	persister *weights.Persister,
	m repository.Metrics,
	clock service.Clock,
	cfg *config.Config,
	l *applogger.Logger,
) *weights.Updater {
	return weights.NewUpdater(store, weights.UpdaterConfig{
		Alpha:             cfg.Weights.Alpha,
		Prior:             cfg.Weights.Prior,
		PriorObservations: cfg.Weights.PriorObservations,
	},
		weights.WithPersistence(persister),
		weights.WithClock(clock),
		weights.WithMetrics(m),
		weights.WithLogger(l),
	)
}

func ProvideConsensusSink(
	publisher repository.ConsensusPublisher,
	archive repository.ConsensusArchive,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.ConsensusSink {
	return usecase.NewConsensusSink(publisher, archive, m, l)
}

// ProvideEngine maps configuration onto the sharded consensus engine.
func ProvideEngine(
	cfg *config.Config,
	store *weights.Store,
	sink *usecase.ConsensusSink,
	m repository.Metrics,
	clock service.Clock,
	l *applogger.Logger,
) (*engine.Engine, error) {
	d := cfg.Detectors
	e, err := engine.New(engine.Config{
		Shards:          cfg.Engine.Shards,
		QueueCapacity:   cfg.Engine.QueueCapacity,
		OutputBuffer:    cfg.Engine.OutputBuffer,
		WindowDuration:  cfg.Consensus.WindowDuration(),
		MinSources:      cfg.Consensus.MinSources,
		ThresholdPct:    cfg.Consensus.ThresholdPct,
		DrainOnShutdown: cfg.Consensus.DrainOnShutdown,
		Detectors: detector.Config{
			SourcePrefix:               d.SourcePrefix,
			SigmaThreshold:             d.SigmaThreshold,
			PValueThreshold:            d.PValueThreshold,
			Window:                     d.RollingWindowSize,
			MinWindow:                  d.MinWindowSize,
			Lags:                       d.AutocorrelationLags,
			CorrelationChangeThreshold: d.CorrelationChangeThreshold,
			PairWindow:                 d.PairWindowSamples(),
			MinPairWindow:              d.MinPairWindow,
		},
		SampleInterval: d.CorrelationSampleInterval,
		Pairs:          d.CorrelationPairs,
	}, store, sink,
		engine.WithClock(clock),
		engine.WithMetrics(m),
		engine.WithLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	return e, nil
}

func ProvideRejectionLogger(cfg *config.Config, m repository.Metrics, l *applogger.Logger) *usecase.RejectionLogger {
	return usecase.NewRejectionLogger(l, m, cfg.Ingest.RejectLogPerSecond, ratelimit.New())
}

func maxRPS(perSecond float64) int {
	if perSecond <= 0 {
		return 0
	}
	return int(math.Ceil(perSecond))
}

// ProvideKafkaHandlers builds one handler per input topic. Bus observations
// pass through their own pipeline straight into the engine.
func ProvideKafkaHandlers(
	cfg *config.Config,
	eng *engine.Engine,
	updater *weights.Updater,
	rejects *usecase.RejectionLogger,
	m repository.Metrics,
	clock service.Clock,
	l *applogger.Logger,
) server.KafkaHandlers {
	pipe := mid.NewObservationPipeline(eng, m,
		mid.WithMaxRPS(maxRPS(cfg.Ingest.MaxTicksPerSecond)),
		mid.WithPipelineClock(clock),
		mid.WithPipelineLogger(l),
	)
	return server.KafkaHandlers{
		usecase.NewObservationsHandler(cfg.Kafka.Topics.Observations, pipe, clock, rejects),
		usecase.NewSignalsHandler(cfg.Kafka.Topics.Signals, eng, clock, rejects),
		usecase.NewFeedbackHandler(cfg.Kafka.Topics.Feedback, updater, clock, rejects),
	}
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config, reg prometheus.Registerer, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
		pkgkafka.WithConsumerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(
		pkgkafka.TraceHook(),
		pkgkafka.JSONHook(cfg.Kafka.Consumer.MaxBytes),
	))
	return consumer, nil
}

// ProvideObservationCollector returns nil when the live feed is disabled.
// With publish_observations set, ticks go to the observations topic instead
// of straight into the engine.
func ProvideObservationCollector(
	cfg *config.Config,
	eng *engine.Engine,
	producer *pkgkafka.Producer,
	m repository.Metrics,
	clock service.Clock,
	l *applogger.Logger,
) *usecase.ObservationCollector {
	if !cfg.Finnhub.Enabled {
		return nil
	}
	stream := finnhub.New(
		cfg.Finnhub.APIKey,
		cfg.Finnhub.WebSocketURL,
		cfg.Finnhub.Symbols,
		cfg.Finnhub.ReconnectDelay,
		cfg.Finnhub.PingInterval,
		finnhub.WithLogger(l),
	)
	var router mid.Router = eng
	if cfg.Ingest.PublishObservations {
		router = usecase.NewObservationForwarder(producer, cfg.Kafka.Topics.Observations)
	}
	pipe := mid.NewObservationPipeline(router, m,
		mid.WithMaxRPS(maxRPS(cfg.Ingest.MaxTicksPerSecond)),
		mid.WithPipelineClock(clock),
		mid.WithPipelineLogger(l),
	)
	return usecase.NewObservationCollector(stream, pipe, m, l)
}

// ProvideStatusHandler exposes weights, engine state and consensus history.
func ProvideStatusHandler(
	l *applogger.Logger,
	store *weights.Store,
	eng *engine.Engine,
	archive repository.ConsensusArchive,
	ch *pkgch.Client,
	c cache.Service,
	collector *usecase.ObservationCollector,
) *api.StatusHandler {
	opts := []api.Option{
		api.WithHealthCheck("clickhouse", ch.Health),
		api.WithHealthCheck("engine", func(context.Context) error {
			select {
			case <-eng.Done():
				return fmt.Errorf("engine stopped")
			default:
				return nil
			}
		}),
	}
	if archive != nil {
		opts = append(opts, api.WithArchive(archive))
	}
	if c != nil {
		opts = append(opts, api.WithHealthCheck("redis", c.Ping))
	}
	if collector != nil {
		opts = append(opts, api.WithHealthCheck("market_stream", func(context.Context) error {
			if !collector.IsConnected() {
				return fmt.Errorf("disconnected")
			}
			return nil
		}))
	}
	return api.NewStatusHandler(l, store, eng, opts...)
}

func ProvideHTTPServer(cfg *config.Config, h *api.StatusHandler, reg prometheus.Registerer, l *applogger.Logger) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(l),
	}
	if len(cfg.Server.AllowOrigins) > 0 {
		opts = append(opts, xhttp.WithCORS(cfg.Server.AllowOrigins))
	}
	path := cfg.Metrics.Path
	if !cfg.Metrics.Enabled {
		path = ""
	}
	opts = append(opts, xhttp.WithMetrics(path, reg, prometheus.DefaultGatherer))
	return xhttp.NewServer(h, opts...)
}

// ProvideApp creates the application server.
func ProvideApp(c server.Components) *server.App {
	return server.New(c)
}
