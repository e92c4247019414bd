package usecase

import (
	"context"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
	applogger "StockCast/pkg/logger"
)

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

// memBarStore is an in-memory BarStore keeping bars per ticker in ascending
// date order.
type memBarStore struct {
	mu   sync.Mutex
	bars map[string][]models.Bar
}

func newMemBarStore() *memBarStore {
	return &memBarStore{bars: make(map[string][]models.Bar)}
}

func (s *memBarStore) seed(ticker string, bars []models.Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bars[ticker] = append([]models.Bar(nil), bars...)
}

func (s *memBarStore) GetBars(ctx context.Context, ticker string, from, to time.Time) ([]models.Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Bar
	for _, b := range s.bars[ticker] {
		if !from.IsZero() && b.Date.Before(from) {
			continue
		}
		if !to.IsZero() && b.Date.After(to) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *memBarStore) GetLatestNBars(ctx context.Context, ticker string, n int) ([]models.Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.bars[ticker]
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return append([]models.Bar(nil), all...), nil
}

func (s *memBarStore) LastDate(ctx context.Context, ticker string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.bars[ticker]
	if len(all) == 0 {
		return time.Time{}, false, nil
	}
	return all[len(all)-1].Date, true, nil
}

func (s *memBarStore) UpsertBars(ctx context.Context, bars []models.Bar) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range bars {
		cur := s.bars[b.Ticker]
		replaced := false
		for i := range cur {
			if cur[i].Date.Equal(b.Date) {
				cur[i] = b
				replaced = true
				break
			}
		}
		if !replaced {
			cur = append(cur, b)
			sort.Slice(cur, func(i, j int) bool { return cur[i].Date.Before(cur[j].Date) })
		}
		s.bars[b.Ticker] = cur
	}
	return len(bars), nil
}

func (s *memBarStore) Health(ctx context.Context) error { return nil }
func (s *memBarStore) Close() error                     { return nil }

var _ domrepo.BarStore = (*memBarStore)(nil)

// nopMetrics satisfies the metrics interface without recording anything.
type nopMetrics struct{}

func (nopMetrics) RecordBarsStored(source, ticker string, n int) {}
func (nopMetrics) RecordError(kind string)                       {}
func (nopMetrics) RecordLastClose(ticker string, price float64)  {}
func (nopMetrics) RecordLatency(op string, seconds float64)      {}

func (nopMetrics) RecordModelScore(ticker string, horizon int, split string, mae, rmse float64) {}

// fakeSource records the requested range and returns canned bars.
type fakeSource struct {
	mu       sync.Mutex
	bars     []models.Bar
	err      error
	lastFrom time.Time
	lastTo   time.Time
	calls    int
}

func (f *fakeSource) FetchDailyBars(ctx context.Context, ticker string, from, to time.Time) ([]models.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastFrom, f.lastTo = from, to
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.Bar(nil), f.bars...), nil
}

// sineBars builds n daily bars whose closes oscillate around 120. The swing
// widens after day 70, so the early rows never reach the extremes of the
// whole run.
func sineBars(ticker string, n int) []models.Bar {
	bars := make([]models.Bar, n)
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		amp := 5.0
		if i >= 70 {
			amp = 9.0
		}
		c := 120 + amp*math.Sin(2*math.Pi*float64(i)/20)
		bars[i] = models.Bar{
			Date:   day.AddDate(0, 0, i),
			Ticker: ticker,
			Open:   c - 0.4,
			High:   c + 1.1,
			Low:    c - 1.2,
			Close:  c,
			Volume: 1_000_000 + float64(i%7)*1500,
		}
	}
	return bars
}

func closeBounds(bars []models.Bar) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, b := range bars {
		lo = math.Min(lo, b.Close)
		hi = math.Max(hi, b.Close)
	}
	return lo, hi
}
