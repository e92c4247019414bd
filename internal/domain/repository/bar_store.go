package repository

import (
	"context"
	"time"

	"StockCast/internal/domain/models"
)

// BarStore provides access to stored daily bars for training and inference.
type BarStore interface {
	GetBars(ctx context.Context, ticker string, from, to time.Time) ([]models.Bar, error)
	GetLatestNBars(ctx context.Context, ticker string, n int) ([]models.Bar, error)
	LastDate(ctx context.Context, ticker string) (time.Time, bool, error)
	UpsertBars(ctx context.Context, bars []models.Bar) (int, error)
	Health(ctx context.Context) error
	Close() error
}
