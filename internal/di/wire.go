//go:build wireinject
// +build wireinject

package di

import (
	"SolGate/pkg/config"
	"SolGate/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideCacheBackend,
		ProvideAlertQueue,

		// Domain services
		ProvideRegistry,
		ProvideAlertNotifier,
		ProvideUsageTracker,
		ProvideCacheStore,
		ProvideRouter,
		ProvideExtractor,
		ProvideIngestor,
		ProvideSignalArchive,
		ProvideUsageStore,
		ProvidePublisher,

		// Use cases
		ProvideGateway,
		ProvideStreamCollector,

		// HTTP surface and application
		ProvideHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
