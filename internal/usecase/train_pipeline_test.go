package usecase

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
	"StockCast/internal/repository"
	"StockCast/pkg/util"
)

func testSettings() TrainSettings {
	return TrainSettings{
		Window:       60,
		HiddenSize:   8,
		Epochs:       25,
		LearningRate: 0.01,
		Patience:     30,
		Seed:         7,
	}
}

// Full pipeline over 100 synthetic days: train both horizons, persist the
// artifacts, reload them and predict.
func TestTrainAndPredictEndToEnd(t *testing.T) {
	ctx := context.Background()
	bars := sineBars("SYN", 100)
	barStore := newMemBarStore()
	barStore.seed("SYN", bars)
	modelStore := repository.NewFSModelStore(t.TempDir())

	pipe := NewTrainPipeline(barStore, nil, modelStore, nopMetrics{}, testLogger(t), testSettings())
	report, err := pipe.Train(ctx, "syn", nil, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if report.Errors != nil {
		t.Fatalf("unexpected errors: %v", report.Errors)
	}
	if len(report.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(report.Results))
	}

	day := report.Results[1]
	if day == nil {
		t.Fatal("no next-day metadata")
	}
	if got := day.Metrics["train"].Windows; got != 10 {
		t.Errorf("next-day train windows = %d, want 10", got)
	}

	week := report.Results[5]
	if week == nil {
		t.Fatal("no next-week metadata")
	}
	if week.SchemaVersion != models.SchemaVersion {
		t.Errorf("schema = %q, want %q", week.SchemaVersion, models.SchemaVersion)
	}
	if week.Window != 60 || week.Horizon != 5 {
		t.Errorf("window/horizon = %d/%d, want 60/5", week.Window, week.Horizon)
	}
	// 70 training rows fit exactly 70-60-5+1 windows; 15-row val and test
	// ranges fit none.
	if got := week.Metrics["train"].Windows; got != 6 {
		t.Errorf("train windows = %d, want 6", got)
	}
	if got := week.Metrics["val"].Windows; got != 0 {
		t.Errorf("val windows = %d, want 0", got)
	}
	if got := week.Metrics["test"].Windows; got != 0 {
		t.Errorf("test windows = %d, want 0", got)
	}
	if week.EpochsRun != 25 {
		t.Errorf("epochs run = %d, want 25", week.EpochsRun)
	}
	if week.TrainingRange.From != "2024-01-01" || week.TrainingRange.To != util.FormatDate(bars[99].Date) {
		t.Errorf("training range = %+v", week.TrainingRange)
	}
	if week.Split.TrainStart != "2024-01-01" || week.Split.TrainEnd != util.FormatDate(bars[69].Date) {
		t.Errorf("train split = %q..%q", week.Split.TrainStart, week.Split.TrainEnd)
	}
	if week.Split.ValStart != util.FormatDate(bars[70].Date) {
		t.Errorf("val split starts %q", week.Split.ValStart)
	}
	if week.WeightsSHA256 == "" {
		t.Error("empty weights checksum")
	}

	// Reload verifies the checksum on the way in.
	if _, err := modelStore.Load(ctx, "SYN", domrepo.HorizonNextWeek); err != nil {
		t.Fatalf("Load after train: %v", err)
	}

	fc := NewForecastUseCase(modelStore, barStore, nopMetrics{})
	forecast, err := fc.Predict(ctx, "SYN", domrepo.HorizonNextWeek, nil)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(forecast.Predictions) != 5 {
		t.Fatalf("got %d predictions, want 5", len(forecast.Predictions))
	}
	if forecast.LastDate != util.FormatDate(bars[99].Date) {
		t.Errorf("last date = %q, want %q", forecast.LastDate, util.FormatDate(bars[99].Date))
	}
	lo, hi := closeBounds(bars)
	for i, p := range forecast.Predictions {
		if p < lo || p > hi {
			t.Errorf("prediction %d = %.4f outside observed closes [%.4f, %.4f]", i, p, lo, hi)
		}
	}

	again, err := fc.Predict(ctx, "SYN", domrepo.HorizonNextWeek, nil)
	if err != nil {
		t.Fatalf("second Predict: %v", err)
	}
	if !reflect.DeepEqual(forecast.Predictions, again.Predictions) {
		t.Errorf("predictions changed between calls:\n%v\n%v", forecast.Predictions, again.Predictions)
	}
}

func TestTrainTooFewBars(t *testing.T) {
	barStore := newMemBarStore()
	barStore.seed("SYN", sineBars("SYN", 50))
	pipe := NewTrainPipeline(barStore, nil, repository.NewFSModelStore(t.TempDir()), nopMetrics{}, testLogger(t), testSettings())

	_, err := pipe.Train(context.Background(), "SYN", []domrepo.Horizon{domrepo.HorizonNextWeek}, time.Time{}, time.Time{})
	if !errors.Is(err, models.ErrInsufficientData) {
		t.Fatalf("err = %v, want ErrInsufficientData", err)
	}
}

func TestTrainRejectsUnorderedBars(t *testing.T) {
	bars := sineBars("SYN", 100)
	bars[10], bars[11] = bars[11], bars[10]
	barStore := newMemBarStore()
	barStore.bars["SYN"] = bars
	pipe := NewTrainPipeline(barStore, nil, repository.NewFSModelStore(t.TempDir()), nopMetrics{}, testLogger(t), testSettings())

	_, err := pipe.Train(context.Background(), "SYN", []domrepo.Horizon{domrepo.HorizonNextDay}, time.Time{}, time.Time{})
	if !errors.Is(err, models.ErrDataIntegrity) {
		t.Fatalf("err = %v, want ErrDataIntegrity", err)
	}
}

func TestTrainBackfillsFromSource(t *testing.T) {
	barStore := newMemBarStore()
	source := &fakeSource{bars: sineBars("SYN", 100)}
	pipe := NewTrainPipeline(barStore, source, repository.NewFSModelStore(t.TempDir()), nopMetrics{}, testLogger(t), testSettings())

	report, err := pipe.Train(context.Background(), "SYN", []domrepo.Horizon{domrepo.HorizonNextDay}, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if source.calls != 1 {
		t.Errorf("source called %d times, want 1", source.calls)
	}
	stored, _ := barStore.GetLatestNBars(context.Background(), "SYN", 200)
	if len(stored) != 100 {
		t.Errorf("stored %d bars, want 100", len(stored))
	}
	if report.Results[1] == nil {
		t.Error("no next-day metadata")
	}
}

func TestTrainCancelled(t *testing.T) {
	barStore := newMemBarStore()
	barStore.seed("SYN", sineBars("SYN", 100))
	pipe := NewTrainPipeline(barStore, nil, repository.NewFSModelStore(t.TempDir()), nopMetrics{}, testLogger(t), testSettings())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := pipe.Train(ctx, "SYN", nil, time.Time{}, time.Time{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

// invalidateRecorder captures cache flush calls from the pipeline.
type invalidateRecorder struct {
	tickers []string
}

func (r *invalidateRecorder) Invalidate(ticker string) {
	r.tickers = append(r.tickers, ticker)
}

func TestTrainInvalidatesEngines(t *testing.T) {
	barStore := newMemBarStore()
	barStore.seed("SYN", sineBars("SYN", 100))
	pipe := NewTrainPipeline(barStore, nil, repository.NewFSModelStore(t.TempDir()), nopMetrics{}, testLogger(t), testSettings())
	rec := &invalidateRecorder{}
	pipe.SetInvalidator(rec)

	if _, err := pipe.Train(context.Background(), "syn", []domrepo.Horizon{domrepo.HorizonNextDay}, time.Time{}, time.Time{}); err != nil {
		t.Fatalf("Train: %v", err)
	}
	if !reflect.DeepEqual(rec.tickers, []string{"SYN"}) {
		t.Errorf("invalidated %v, want [SYN]", rec.tickers)
	}
}

func TestTrainFailedRunKeepsEngines(t *testing.T) {
	barStore := newMemBarStore()
	barStore.seed("SYN", sineBars("SYN", 50))
	pipe := NewTrainPipeline(barStore, nil, repository.NewFSModelStore(t.TempDir()), nopMetrics{}, testLogger(t), testSettings())
	rec := &invalidateRecorder{}
	pipe.SetInvalidator(rec)

	if _, err := pipe.Train(context.Background(), "SYN", []domrepo.Horizon{domrepo.HorizonNextWeek}, time.Time{}, time.Time{}); err == nil {
		t.Fatal("expected error for short history")
	}
	if len(rec.tickers) != 0 {
		t.Errorf("invalidated %v after a run that trained nothing", rec.tickers)
	}
}
