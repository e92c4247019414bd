package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	domrepo "StockCast/internal/domain/repository"
	domsvc "StockCast/internal/domain/service"
	applogger "StockCast/pkg/logger"
	"StockCast/pkg/util"
)

var _ domsvc.HistoryRefresher = (*HistoryRefreshUseCase)(nil)

// HistoryRefreshUseCase tops up stored bars from the market-data source,
// resuming after the last stored trading day.
type HistoryRefreshUseCase struct {
	store    domrepo.BarStore
	source   domrepo.BarSource
	metrics  domrepo.Metrics
	l        *applogger.Logger
	provider string
	start    time.Time
}

// NewHistoryRefreshUseCase creates a refresher. start bounds the initial
// backfill when the store holds nothing for a ticker yet.
func NewHistoryRefreshUseCase(
	store domrepo.BarStore,
	source domrepo.BarSource,
	metrics domrepo.Metrics,
	l *applogger.Logger,
	provider string,
	start time.Time,
) *HistoryRefreshUseCase {
	if start.IsZero() {
		start = time.Now().UTC().AddDate(-2, 0, 0)
	}
	return &HistoryRefreshUseCase{
		store:    store,
		source:   source,
		metrics:  metrics,
		l:        l,
		provider: provider,
		start:    util.DayStart(start),
	}
}

// Refresh implements service.HistoryRefresher. It returns how many bars were
// written; zero when the store is already current.
func (uc *HistoryRefreshUseCase) Refresh(ctx context.Context, ticker string) (int, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return 0, fmt.Errorf("ticker required")
	}

	from := uc.start
	last, ok, err := uc.store.LastDate(ctx, ticker)
	if err != nil {
		uc.metrics.RecordError("refresh")
		return 0, fmt.Errorf("last stored date for %s: %w", ticker, err)
	}
	if ok {
		from = last.AddDate(0, 0, 1)
	}
	to := util.DayStart(time.Now())
	if from.After(to) {
		return 0, nil
	}

	bars, err := uc.source.FetchDailyBars(ctx, ticker, from, to)
	if err != nil {
		uc.metrics.RecordError("refresh")
		return 0, fmt.Errorf("fetch bars for %s: %w", ticker, err)
	}
	if len(bars) == 0 {
		return 0, nil
	}

	n, err := uc.store.UpsertBars(ctx, bars)
	if err != nil {
		uc.metrics.RecordError("refresh")
		return 0, fmt.Errorf("store bars for %s: %w", ticker, err)
	}
	uc.metrics.RecordBarsStored(uc.provider, ticker, n)
	uc.metrics.RecordLastClose(ticker, bars[len(bars)-1].Close)
	uc.l.Info("history refreshed",
		applogger.String("ticker", ticker),
		applogger.String("from", util.FormatDate(from)),
		applogger.String("to", util.FormatDate(to)),
		applogger.Int("bars", n))
	return n, nil
}
