//go:build wireinject
// +build wireinject

package di

import (
	"FuturesHist/internal/usecase"
	"FuturesHist/pkg/config"
	"FuturesHist/pkg/server"

	"github.com/google/wire"
)

var fetchSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideRateLimiter,
	ProvideHTTPClient,
	ProvideAdapters,
	ProvideFetchEngine,
	ProvideRedisCache,
	ProvideCheckpointCache,
	ProvideCheckpointer,
	ProvideAggregator,
)

var sinkSet = wire.NewSet(
	ProvideClickHouseClient,
	ProvideStorage,
	ProvideKafkaProducer,
	ProvidePublisher,
	ProvideBackfillService,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		fetchSet,
		sinkSet,

		// Jobs and ingest
		ProvideLocker,
		ProvideBackfillJob,
		ProvideQueue,
		ProvideKafkaConsumer,
		ProvideKafkaRecordsHandler,

		// HTTP
		ProvideSeriesHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil, nil
}

// InitializeBackfill wires the one-shot backfill used by cmd/backfill.
func InitializeBackfill(cfg *config.Config) (*usecase.BackfillService, func(), error) {
	wire.Build(fetchSet, sinkSet)
	return &usecase.BackfillService{}, nil, nil
}
