package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"StockCast/internal/domain/models"
)

func TestRefreshResumesAfterLastBar(t *testing.T) {
	store := newMemBarStore()
	have := sineBars("AAPL", 5)
	store.seed("AAPL", have)

	next := sineBars("AAPL", 7)[5:]
	source := &fakeSource{bars: next}
	uc := NewHistoryRefreshUseCase(store, source, nopMetrics{}, testLogger(t), "yahoo", time.Time{})

	n, err := uc.Refresh(context.Background(), "aapl")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if n != 2 {
		t.Errorf("stored %d bars, want 2", n)
	}
	wantFrom := have[4].Date.AddDate(0, 0, 1)
	if !source.lastFrom.Equal(wantFrom) {
		t.Errorf("fetched from %s, want %s", source.lastFrom, wantFrom)
	}
	all, _ := store.GetLatestNBars(context.Background(), "AAPL", 100)
	if len(all) != 7 {
		t.Errorf("store has %d bars, want 7", len(all))
	}
}

func TestRefreshEmptyStoreUsesStart(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	source := &fakeSource{bars: sineBars("MSFT", 3)}
	uc := NewHistoryRefreshUseCase(newMemBarStore(), source, nopMetrics{}, testLogger(t), "yahoo", start)

	n, err := uc.Refresh(context.Background(), "MSFT")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if n != 3 {
		t.Errorf("stored %d bars, want 3", n)
	}
	if !source.lastFrom.Equal(start) {
		t.Errorf("fetched from %s, want %s", source.lastFrom, start)
	}
}

func TestRefreshNothingNew(t *testing.T) {
	store := newMemBarStore()
	today := time.Now().UTC()
	store.seed("AAPL", []models.Bar{{
		Date: today, Ticker: "AAPL",
		Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 1,
	}})
	source := &fakeSource{}
	uc := NewHistoryRefreshUseCase(store, source, nopMetrics{}, testLogger(t), "yahoo", time.Time{})

	n, err := uc.Refresh(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if n != 0 {
		t.Errorf("stored %d bars, want 0", n)
	}
	if source.calls != 0 {
		t.Errorf("source called %d times, want 0", source.calls)
	}
}

func TestRefreshSourceError(t *testing.T) {
	source := &fakeSource{err: errors.New("rate limited")}
	uc := NewHistoryRefreshUseCase(newMemBarStore(), source, nopMetrics{}, testLogger(t), "yahoo", time.Time{})

	if _, err := uc.Refresh(context.Background(), "AAPL"); err == nil {
		t.Fatal("expected error")
	}
}
