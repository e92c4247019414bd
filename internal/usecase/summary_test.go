package usecase

import (
	"context"
	"errors"
	"testing"

	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
)

type stubForecaster struct {
	forecasts map[domrepo.Horizon]*models.Forecast
	errs      map[domrepo.Horizon]error
}

func (s *stubForecaster) Predict(ctx context.Context, ticker string, h domrepo.Horizon, history []models.Bar) (*models.Forecast, error) {
	if err := s.errs[h]; err != nil {
		return nil, err
	}
	return s.forecasts[h], nil
}

func (s *stubForecaster) Metadata(ctx context.Context, ticker string) ([]models.ModelMetadata, error) {
	return nil, nil
}

func TestGetSummaryBothHorizons(t *testing.T) {
	fc := &stubForecaster{
		forecasts: map[domrepo.Horizon]*models.Forecast{
			domrepo.HorizonNextDay:  {Ticker: "AAPL", Horizon: 1, Predictions: []float64{190.1}},
			domrepo.HorizonNextWeek: {Ticker: "AAPL", Horizon: 5, Predictions: []float64{190, 191, 192, 193, 194}},
		},
	}
	uc := NewForecastSummaryUseCase(fc)

	sum, err := uc.GetSummary(context.Background(), "aapl")
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if sum.Ticker != "AAPL" {
		t.Errorf("ticker = %q", sum.Ticker)
	}
	if sum.NextDay == nil || sum.NextDay.Horizon != 1 {
		t.Errorf("next day = %+v", sum.NextDay)
	}
	if sum.NextWeek == nil || len(sum.NextWeek.Predictions) != 5 {
		t.Errorf("next week = %+v", sum.NextWeek)
	}
	if sum.Errors != nil {
		t.Errorf("errors = %v, want nil", sum.Errors)
	}
}

func TestGetSummaryPartialFailure(t *testing.T) {
	fc := &stubForecaster{
		forecasts: map[domrepo.Horizon]*models.Forecast{
			domrepo.HorizonNextDay: {Ticker: "AAPL", Horizon: 1, Predictions: []float64{190.1}},
		},
		errs: map[domrepo.Horizon]error{
			domrepo.HorizonNextWeek: errors.New("weights unreadable"),
		},
	}
	uc := NewForecastSummaryUseCase(fc)

	sum, err := uc.GetSummary(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if sum.NextDay == nil {
		t.Error("next day missing")
	}
	if sum.NextWeek != nil {
		t.Errorf("next week = %+v, want nil", sum.NextWeek)
	}
	if sum.Errors["next_week"] != "weights unreadable" {
		t.Errorf("errors = %v", sum.Errors)
	}
}

func TestGetSummaryEmptyTicker(t *testing.T) {
	uc := NewForecastSummaryUseCase(&stubForecaster{})
	if _, err := uc.GetSummary(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty ticker")
	}
}
