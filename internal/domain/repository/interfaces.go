package repository

import (
	"context"
	"time"

	"StockCast/internal/domain/models"
)

// BarSource pulls daily bars from an external market-data provider.
type BarSource interface {
	FetchDailyBars(ctx context.Context, ticker string, from, to time.Time) ([]models.Bar, error)
}

// ModelStore persists and reloads trained model artifacts. Artifacts are
// written whole, once per training run, and are immutable afterward.
type ModelStore interface {
	Save(ctx context.Context, art *models.ModelArtifact) error
	Load(ctx context.Context, ticker string, h Horizon) (*models.ModelArtifact, error)
	List(ctx context.Context, ticker string) ([]models.ModelMetadata, error)
}

type Metrics interface {
	RecordBarsStored(source, ticker string, n int)
	RecordError(kind string)
	RecordLastClose(ticker string, price float64)
	RecordLatency(op string, seconds float64)
	RecordModelScore(ticker string, horizon int, split string, mae, rmse float64)
}
