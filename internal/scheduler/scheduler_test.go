package scheduler

import (
	"context"
	"testing"
	"time"

	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
	"StockCast/internal/usecase"
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

type stubRefresher struct {
	calls  int
	ticker string
}

func (s *stubRefresher) Refresh(_ context.Context, ticker string) (int, error) {
	s.calls++
	s.ticker = ticker
	return 3, nil
}

type stubTrainer struct {
	calls    int
	ticker   string
	horizons []domrepo.Horizon
}

func (s *stubTrainer) Train(_ context.Context, ticker string, horizons []domrepo.Horizon, from, to time.Time) (*models.TrainingReport, error) {
	s.calls++
	s.ticker = ticker
	s.horizons = horizons
	return &models.TrainingReport{Ticker: ticker}, nil
}

type stubQueue struct {
	msgTypes []string
	payloads []interface{}
}

func (s *stubQueue) PublishMessage(_ context.Context, msgType string, payload interface{}) (string, error) {
	s.msgTypes = append(s.msgTypes, msgType)
	s.payloads = append(s.payloads, payload)
	return "job-1", nil
}

func TestScheduleRejectsBadSpec(t *testing.T) {
	s := New(testLogger(t), &stubRefresher{}, &stubTrainer{})
	err := s.Schedule(Config{Ticker: "AAPL", RefreshSpec: "not a cron spec"})
	if err == nil {
		t.Fatal("expected error for invalid spec")
	}
}

func TestScheduleAcceptsSixFieldSpecs(t *testing.T) {
	s := New(testLogger(t), &stubRefresher{}, &stubTrainer{})
	err := s.Schedule(Config{
		Ticker:      "AAPL",
		RefreshSpec: "0 30 22 * * MON-FRI",
		TrainSpec:   "0 0 23 * * FRI",
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
}

func TestRefreshRunsInlineWithoutQueue(t *testing.T) {
	ref := &stubRefresher{}
	s := New(testLogger(t), ref, &stubTrainer{})
	if err := s.Schedule(Config{Ticker: "AAPL"}); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	s.runRefresh()
	if ref.calls != 1 || ref.ticker != "AAPL" {
		t.Errorf("refresher calls=%d ticker=%q", ref.calls, ref.ticker)
	}
}

func TestTrainRunsInlineWithoutQueue(t *testing.T) {
	tr := &stubTrainer{}
	s := New(testLogger(t), &stubRefresher{}, tr)
	if err := s.Schedule(Config{Ticker: "AAPL"}); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	s.runTrain()
	if tr.calls != 1 || tr.ticker != "AAPL" {
		t.Errorf("trainer calls=%d ticker=%q", tr.calls, tr.ticker)
	}
	if tr.horizons != nil {
		t.Errorf("horizons = %v, want nil for all supported", tr.horizons)
	}
}

func TestJobsEnqueueWhenQueuePresent(t *testing.T) {
	ref := &stubRefresher{}
	tr := &stubTrainer{}
	q := &stubQueue{}
	s := New(testLogger(t), ref, tr)
	s.SetQueue(q)
	if err := s.Schedule(Config{Ticker: "MSFT"}); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	s.runRefresh()
	s.runTrain()

	if ref.calls != 0 || tr.calls != 0 {
		t.Errorf("inline runs happened despite queue: refresh=%d train=%d", ref.calls, tr.calls)
	}
	if len(q.msgTypes) != 2 {
		t.Fatalf("enqueued %d messages, want 2", len(q.msgTypes))
	}
	if q.msgTypes[0] != usecase.JobTypeRefreshHistory || q.msgTypes[1] != usecase.JobTypeTrainModel {
		t.Errorf("msgTypes = %v", q.msgTypes)
	}
	p, ok := q.payloads[0].(usecase.RefreshJobPayload)
	if !ok || p.Ticker != "MSFT" {
		t.Errorf("refresh payload = %#v", q.payloads[0])
	}
}
