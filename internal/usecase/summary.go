package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
	domsvc "StockCast/internal/domain/service"
)

// ForecastSummaryUseCase runs every trained horizon for a ticker in parallel
// and consolidates the results. A horizon that fails lands in the Errors map
// instead of failing the whole summary.
type ForecastSummaryUseCase struct {
	fc      domsvc.Forecaster
	timeout time.Duration
}

func NewForecastSummaryUseCase(fc domsvc.Forecaster) *ForecastSummaryUseCase {
	return &ForecastSummaryUseCase{fc: fc, timeout: 10 * time.Second}
}

func (uc *ForecastSummaryUseCase) GetSummary(ctx context.Context, ticker string) (*models.ForecastSummary, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, fmt.Errorf("ticker required")
	}

	// Overall timeout
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	res := &models.ForecastSummary{
		Ticker:    ticker,
		Timestamp: time.Now().UTC(),
		Errors:    map[string]string{},
	}

	type item struct {
		name string
		fc   *models.Forecast
		err  error
	}
	ch := make(chan item, len(domrepo.SupportedHorizons()))
	var wg sync.WaitGroup

	for _, h := range domrepo.SupportedHorizons() {
		wg.Add(1)
		go func(h domrepo.Horizon) {
			defer wg.Done()
			f, err := uc.fc.Predict(ctx, ticker, h, nil)
			ch <- item{horizonLabel(h), f, err}
		}(h)
	}

	go func() { wg.Wait(); close(ch) }()

	for it := range ch {
		if it.err != nil {
			res.Errors[it.name] = it.err.Error()
			continue
		}
		switch it.name {
		case "next_day":
			res.NextDay = it.fc
		case "next_week":
			res.NextWeek = it.fc
		}
	}

	if len(res.Errors) == 0 {
		res.Errors = nil
	}
	return res, nil
}

func horizonLabel(h domrepo.Horizon) string {
	switch h {
	case domrepo.HorizonNextWeek:
		return "next_week"
	default:
		return "next_day"
	}
}
