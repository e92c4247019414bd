package usecase

import (
	"context"
	"time"

	domrepo "StockCast/internal/domain/repository"
	domsvc "StockCast/internal/domain/service"
	applogger "StockCast/pkg/logger"
	"StockCast/pkg/queue"
	"StockCast/pkg/util"
)

// Queue message types.
const (
	JobTypeTrainModel     = "train_model"
	JobTypeRefreshHistory = "refresh_history"
)

// TrainJobPayload asks the worker to train models for one ticker. Empty
// horizons mean every supported horizon; dates are YYYY-MM-DD.
type TrainJobPayload struct {
	Ticker   string `json:"ticker"`
	Horizons []int  `json:"horizons,omitempty"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
}

// TrainModelJob runs the training pipeline from queued requests.
type TrainModelJob struct {
	trainer domsvc.Trainer
	l       *applogger.Logger
}

func NewTrainModelJob(trainer domsvc.Trainer, l *applogger.Logger) *TrainModelJob {
	return &TrainModelJob{trainer: trainer, l: l}
}

func (j *TrainModelJob) Name() string { return "train-model" }
func (j *TrainModelJob) Type() string { return JobTypeTrainModel }

func (j *TrainModelJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[TrainJobPayload](payload)
	if err != nil {
		return err
	}
	horizons := make([]domrepo.Horizon, 0, len(p.Horizons))
	for _, h := range p.Horizons {
		horizons = append(horizons, domrepo.Horizon(h))
	}
	from := util.ParseDateDefault(p.From, time.Time{})
	to := util.ParseDateDefault(p.To, time.Time{})

	report, err := j.trainer.Train(ctx, p.Ticker, horizons, from, to)
	if err != nil {
		return err
	}
	if len(report.Errors) > 0 {
		j.l.Warn("training job finished with errors",
			applogger.String("ticker", report.Ticker),
			applogger.Any("errors", report.Errors))
	}
	j.l.Info("training job finished",
		applogger.String("ticker", report.Ticker),
		applogger.Int("models", len(report.Results)),
		applogger.Int64("duration_ms", report.DurationMS))
	return nil
}

// RefreshJobPayload asks the worker to top up bars for one ticker.
type RefreshJobPayload struct {
	Ticker string `json:"ticker"`
}

// RefreshHistoryJob tops up stored bars from queued requests.
type RefreshHistoryJob struct {
	refresher domsvc.HistoryRefresher
	l         *applogger.Logger
}

func NewRefreshHistoryJob(refresher domsvc.HistoryRefresher, l *applogger.Logger) *RefreshHistoryJob {
	return &RefreshHistoryJob{refresher: refresher, l: l}
}

func (j *RefreshHistoryJob) Name() string { return "refresh-history" }
func (j *RefreshHistoryJob) Type() string { return JobTypeRefreshHistory }

func (j *RefreshHistoryJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[RefreshJobPayload](payload)
	if err != nil {
		return err
	}
	n, err := j.refresher.Refresh(ctx, p.Ticker)
	if err != nil {
		return err
	}
	j.l.Info("refresh job finished",
		applogger.String("ticker", p.Ticker),
		applogger.Int("bars", n))
	return nil
}

var (
	_ queue.Job = (*TrainModelJob)(nil)
	_ queue.Job = (*RefreshHistoryJob)(nil)
)
