//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"Shootdown/pkg/config"
	"Shootdown/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		ProvideLogCollector,
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideSource,
		ProvideCache,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideViewCache,
		ProvideViewPublisher,

		// Use cases
		ProvideResidualViewUseCase,
		ProvideRecomputeHandler,

		// HTTP
		ProvideRateLimiter,
		ProvideResidualValueHandler,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}
