//go:build wireinject
// +build wireinject

package di

import (
	domsvc "StockCast/internal/domain/service"
	"StockCast/internal/usecase"
	"StockCast/pkg/config"
	"StockCast/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideSQLiteClient,
		ProvideRedisClient,

		// Repositories
		ProvideBarStore,
		ProvideModelStore,
		ProvideBarSource,

		// Use cases
		ProvideTrainSettings,
		ProvideTrainPipeline,
		ProvideForecastUseCase,
		ProvideSummaryUseCase,
		ProvideBarsUseCase,
		ProvideRefreshUseCase,
		wire.Bind(new(domsvc.Trainer), new(*usecase.TrainPipeline)),
		wire.Bind(new(domsvc.Forecaster), new(*usecase.ForecastUseCase)),
		wire.Bind(new(domsvc.HistoryRefresher), new(*usecase.HistoryRefreshUseCase)),

		// Background work
		ProvideQueue,
		ProvideScheduler,

		// HTTP surface
		ProvideHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
