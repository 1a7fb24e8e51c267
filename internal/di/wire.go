//go:build wireinject
// +build wireinject

package di

import (
	"CollarPulse/pkg/config"
	"CollarPulse/pkg/server"

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
		ProvideKafkaConsumer,
		ProvideRedisCache,

		// Repositories
		ProvideTelemetryStorage,
		ProvideTelemetryPublisher,
		ProvideCollarStream,
		ProvideTelemetryStore,
		ProvideEventStore,
		ProvideFeedbackStore,
		ProvideRuleSetStore,

		// Domain services
		ProvideInterpreter,
		ProvideOptimizer,
		ProvideNotifier,

		// Use cases
		ProvideTelemetryProcessor,
		ProvideTelemetryCollector,
		ProvideKafkaTelemetryHandler,
		ProvideBehaviorAnalyzer,
		ProvideOptimizationUseCase,
		ProvideEventsUseCase,
		ProvideFeedbackQueue,

		// HTTP
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
