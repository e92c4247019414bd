package scheduler

import (
	"context"
	"fmt"
	"time"

	domsvc "StockCast/internal/domain/service"
	"StockCast/internal/usecase"
	applogger "StockCast/pkg/logger"
	"StockCast/pkg/queue"

	"github.com/robfig/cron/v3"
)

// Scheduler drives the periodic history refresh and retrain runs for the
// configured ticker. With a queue attached the jobs are enqueued for the
// workers; without one they run inline on the cron goroutine.
type Scheduler struct {
	cron      *cron.Cron
	l         *applogger.Logger
	refresher domsvc.HistoryRefresher
	trainer   domsvc.Trainer
	q         queue.QueueService
	ticker    string
}

// Config holds the cron specs. Specs use six fields with leading seconds;
// an empty spec disables that job.
type Config struct {
	Ticker      string
	RefreshSpec string
	TrainSpec   string
}

func New(l *applogger.Logger, refresher domsvc.HistoryRefresher, trainer domsvc.Trainer) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC)),
		l:         l,
		refresher: refresher,
		trainer:   trainer,
	}
}

// SetQueue switches the scheduler from inline runs to enqueueing.
func (s *Scheduler) SetQueue(q queue.QueueService) { s.q = q }

// Schedule registers the cron entries.
func (s *Scheduler) Schedule(cfg Config) error {
	s.ticker = cfg.Ticker
	if cfg.RefreshSpec != "" {
		if _, err := s.cron.AddFunc(cfg.RefreshSpec, s.runRefresh); err != nil {
			return fmt.Errorf("refresh spec %q: %w", cfg.RefreshSpec, err)
		}
	}
	if cfg.TrainSpec != "" {
		if _, err := s.cron.AddFunc(cfg.TrainSpec, s.runTrain); err != nil {
			return fmt.Errorf("train spec %q: %w", cfg.TrainSpec, err)
		}
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.l.Info("scheduler started",
		applogger.String("ticker", s.ticker),
		applogger.Int("entries", len(s.cron.Entries())))
}

// Stop halts the cron loop and waits for running jobs, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.l.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

func (s *Scheduler) runRefresh() {
	if s.q != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		payload := usecase.RefreshJobPayload{Ticker: s.ticker}
		id, err := s.q.PublishMessage(ctx, usecase.JobTypeRefreshHistory, payload)
		if err != nil {
			s.l.Error("enqueue refresh failed", applogger.String("ticker", s.ticker), applogger.Error(err))
			return
		}
		s.l.Debug("refresh job enqueued", applogger.String("ticker", s.ticker), applogger.String("job_id", id))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	n, err := s.refresher.Refresh(ctx, s.ticker)
	if err != nil {
		s.l.Error("scheduled refresh failed", applogger.String("ticker", s.ticker), applogger.Error(err))
		return
	}
	s.l.Info("scheduled refresh complete", applogger.String("ticker", s.ticker), applogger.Int("bars", n))
}

func (s *Scheduler) runTrain() {
	if s.q != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		payload := usecase.TrainJobPayload{Ticker: s.ticker}
		id, err := s.q.PublishMessage(ctx, usecase.JobTypeTrainModel, payload)
		if err != nil {
			s.l.Error("enqueue train failed", applogger.String("ticker", s.ticker), applogger.Error(err))
			return
		}
		s.l.Debug("train job enqueued", applogger.String("ticker", s.ticker), applogger.String("job_id", id))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	report, err := s.trainer.Train(ctx, s.ticker, nil, time.Time{}, time.Time{})
	if err != nil {
		s.l.Error("scheduled training failed", applogger.String("ticker", s.ticker), applogger.Error(err))
		return
	}
	s.l.Info("scheduled training complete",
		applogger.String("ticker", s.ticker),
		applogger.Int("models", len(report.Results)),
		applogger.Int("failures", len(report.Errors)))
}
