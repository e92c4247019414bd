package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
)

// BarsUseCase provides business logic for retrieving stored daily bars.
type BarsUseCase struct {
	store domrepo.BarStore
}

func NewBarsUseCase(store domrepo.BarStore) *BarsUseCase {
	return &BarsUseCase{store: store}
}

type GetBarsParams struct {
	Ticker string
	From   time.Time
	To     time.Time
	Limit  int
}

type GetBarsResult struct {
	Ticker string
	From   time.Time
	To     time.Time
	Count  int
	Bars   []models.Bar
}

// GetBars returns bars in ascending date order. With no explicit range the
// latest Limit bars come back; with a range the limit keeps the most recent
// rows inside it.
func (uc *BarsUseCase) GetBars(ctx context.Context, p GetBarsParams) (*GetBarsResult, error) {
	ticker := strings.ToUpper(strings.TrimSpace(p.Ticker))
	if ticker == "" {
		return nil, fmt.Errorf("ticker required")
	}
	if p.Limit <= 0 {
		p.Limit = 500
	}
	if p.Limit > 5000 {
		p.Limit = 5000
	}

	var bars []models.Bar
	var err error
	if p.From.IsZero() && p.To.IsZero() {
		bars, err = uc.store.GetLatestNBars(ctx, ticker, p.Limit)
	} else {
		if p.To.IsZero() {
			p.To = time.Now().UTC()
		}
		if p.From.After(p.To) {
			return nil, fmt.Errorf("from must be <= to")
		}
		bars, err = uc.store.GetBars(ctx, ticker, p.From, p.To)
	}
	if err != nil {
		return nil, fmt.Errorf("get bars: %w", err)
	}
	if len(bars) > p.Limit {
		bars = bars[len(bars)-p.Limit:]
	}

	res := &GetBarsResult{
		Ticker: ticker,
		From:   p.From,
		To:     p.To,
		Count:  len(bars),
		Bars:   bars,
	}
	if len(bars) > 0 {
		res.From = bars[0].Date
		res.To = bars[len(bars)-1].Date
	}
	return res, nil
}
