//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"SignalForge/pkg/config"
	"SignalForge/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideRegisterer,
		ProvideMetrics,
		ProvideClock,
		ProvideLogger,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideTables,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideCache,
		ProvideCacheCloser,

		// Repositories
		ProvideWeightRepository,
		ProvideWeightMirror,
		ProvideConsensusArchive,
		ProvideConsensusPublisher,

		// Weights and engine
		ProvideWeightStore,
		ProvidePersister,
		ProvideUpdater,
		ProvideConsensusSink,
		ProvideEngine,

		// Use cases
		ProvideRejectionLogger,
		ProvideKafkaHandlers,
		ProvideObservationCollector,

		// HTTP
		ProvideStatusHandler,
		ProvideHTTPServer,

		// Application server
		wire.Struct(new(server.Components), "*"),
		ProvideApp,
	)
	return &server.App{}, nil
}
