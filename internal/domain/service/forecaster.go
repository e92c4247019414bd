package service

import (
	"context"
	"time"

	"StockCast/internal/domain/models"
	"StockCast/internal/domain/repository"
)

// Forecaster serves price forecasts from loaded model artifacts.
type Forecaster interface {
	// Predict forecasts the next h closing prices for ticker. When history
	// is nil the implementation reads the input window from the bar store.
	Predict(ctx context.Context, ticker string, h repository.Horizon, history []models.Bar) (*models.Forecast, error)

	// Metadata returns the artifact metadata loaded for ticker, one entry
	// per trained horizon.
	Metadata(ctx context.Context, ticker string) ([]models.ModelMetadata, error)
}

// Trainer runs the full training pipeline for a ticker and persists the
// resulting artifacts.
type Trainer interface {
	Train(ctx context.Context, ticker string, horizons []repository.Horizon, from, to time.Time) (*models.TrainingReport, error)
}

// HistoryRefresher tops up stored bars from the market-data source.
type HistoryRefresher interface {
	Refresh(ctx context.Context, ticker string) (int, error)
}
