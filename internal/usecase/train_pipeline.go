package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
	domsvc "StockCast/internal/domain/service"
	"StockCast/internal/services/lstm"
	"StockCast/internal/services/timeseries"
	applogger "StockCast/pkg/logger"
)

var _ domsvc.Trainer = (*TrainPipeline)(nil)

// TrainSettings fixes the model and optimization shape for a pipeline. Zero
// fields fall back to the package defaults.
type TrainSettings struct {
	Window       int
	Features     []string
	Target       string
	Scaler       string
	HiddenSize   int
	Epochs       int
	LearningRate float64
	Patience     int
	Seed         int64
}

func (s TrainSettings) withDefaults() TrainSettings {
	if s.Window <= 0 {
		s.Window = 60
	}
	if len(s.Features) == 0 {
		s.Features = models.AllFeatures()
	}
	if s.Target == "" {
		s.Target = models.FeatureClose
	}
	if s.Scaler == "" {
		s.Scaler = string(timeseries.ScalerMinMax)
	}
	if s.HiddenSize <= 0 {
		s.HiddenSize = 64
	}
	if s.Patience <= 0 {
		s.Patience = 8
	}
	return s
}

// ModelInvalidator drops cached inference engines after artifacts change.
type ModelInvalidator interface {
	Invalidate(ticker string)
}

// TrainPipeline runs the whole training flow for a ticker: load bars, split
// temporally, fit the scaler on the training range, window, optimize, score
// each split and persist the artifact. Concurrent runs for the same ticker
// and horizon serialize on a per-key lock.
type TrainPipeline struct {
	bars       domrepo.BarStore
	source     domrepo.BarSource
	store      domrepo.ModelStore
	metrics    domrepo.Metrics
	l          *applogger.Logger
	set        TrainSettings
	policy     timeseries.SplitPolicy
	invalidate ModelInvalidator

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewTrainPipeline creates a pipeline. source may be nil; then training uses
// stored bars only.
func NewTrainPipeline(
	bars domrepo.BarStore,
	source domrepo.BarSource,
	store domrepo.ModelStore,
	metrics domrepo.Metrics,
	l *applogger.Logger,
	set TrainSettings,
) *TrainPipeline {
	return &TrainPipeline{
		bars:    bars,
		source:  source,
		store:   store,
		metrics: metrics,
		l:       l,
		set:     set.withDefaults(),
		policy:  timeseries.DefaultSplitPolicy(),
		locks:   make(map[string]*sync.Mutex),
	}
}

// SetInvalidator registers the inference engine cache to flush after a
// successful run.
func (uc *TrainPipeline) SetInvalidator(inv ModelInvalidator) {
	uc.invalidate = inv
}

func (uc *TrainPipeline) lockFor(key string) *sync.Mutex {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if _, ok := uc.locks[key]; !ok {
		uc.locks[key] = &sync.Mutex{}
	}
	return uc.locks[key]
}

// Train implements service.Trainer. A zero `to` means now. When every
// requested horizon fails the first failure is returned as the error; partial
// failures land in the report's Errors map.
func (uc *TrainPipeline) Train(ctx context.Context, ticker string, horizons []domrepo.Horizon, from, to time.Time) (*models.TrainingReport, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, fmt.Errorf("ticker required")
	}
	if len(horizons) == 0 {
		horizons = domrepo.SupportedHorizons()
	}
	if to.IsZero() {
		to = time.Now().UTC()
	}

	start := time.Now()
	series, err := uc.loadSeries(ctx, ticker, from, to)
	if err != nil {
		uc.metrics.RecordError("train")
		return nil, err
	}

	report := &models.TrainingReport{
		Ticker:    ticker,
		StartedAt: start.UTC(),
		Results:   make(map[int]*models.ModelMetadata),
		Errors:    make(map[string]string),
	}
	var firstErr error
	for _, h := range dedupeHorizons(horizons) {
		meta, err := uc.trainOne(ctx, ticker, series, h)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			uc.metrics.RecordError("train")
			report.Errors[strconv.Itoa(int(h))] = err.Error()
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		report.Results[int(h)] = meta
	}
	report.DurationMS = time.Since(start).Milliseconds()
	if len(report.Errors) == 0 {
		report.Errors = nil
	}
	if len(report.Results) == 0 && firstErr != nil {
		return nil, fmt.Errorf("train %s: %w", ticker, firstErr)
	}
	if len(report.Results) > 0 && uc.invalidate != nil {
		uc.invalidate.Invalidate(ticker)
	}
	uc.metrics.RecordLatency("train", time.Since(start).Seconds())
	return report, nil
}

// loadSeries reads bars from the store, pulling from the market-data source
// first when the store has nothing for the range.
func (uc *TrainPipeline) loadSeries(ctx context.Context, ticker string, from, to time.Time) (*timeseries.Series, error) {
	bars, err := uc.bars.GetBars(ctx, ticker, from, to)
	if err != nil {
		return nil, fmt.Errorf("read bars for %s: %w", ticker, err)
	}
	if len(bars) == 0 && uc.source != nil {
		fetched, err := uc.source.FetchDailyBars(ctx, ticker, from, to)
		if err != nil {
			return nil, fmt.Errorf("fetch bars for %s: %w", ticker, err)
		}
		if len(fetched) > 0 {
			n, err := uc.bars.UpsertBars(ctx, fetched)
			if err != nil {
				return nil, fmt.Errorf("store bars for %s: %w", ticker, err)
			}
			uc.metrics.RecordBarsStored("backfill", ticker, n)
		}
		bars = fetched
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars for %s in range: %w", ticker, models.ErrInsufficientData)
	}
	return timeseries.New(bars)
}

func (uc *TrainPipeline) trainOne(ctx context.Context, ticker string, series *timeseries.Series, h domrepo.Horizon) (*models.ModelMetadata, error) {
	if !domrepo.IsValidHorizon(h) {
		return nil, fmt.Errorf("horizon %d: %w", h, models.ErrUnsupportedHorizon)
	}
	lock := uc.lockFor(fmt.Sprintf("%s/h%d", ticker, h))
	lock.Lock()
	defer lock.Unlock()

	set := uc.set
	uc.l.Info("training model",
		applogger.String("ticker", ticker),
		applogger.Int("horizon", int(h)),
		applogger.Int("window", set.Window),
		applogger.Int("bars", series.Len()))
	start := time.Now()

	split, err := uc.policy.Split(series.Len(), set.Window, int(h))
	if err != nil {
		return nil, err
	}
	matrix, err := series.Matrix(set.Features)
	if err != nil {
		return nil, err
	}
	targetCol := -1
	for i, f := range set.Features {
		if f == set.Target {
			targetCol = i
		}
	}
	if targetCol < 0 {
		return nil, fmt.Errorf("target %q not among features %v: %w", set.Target, set.Features, models.ErrDataIntegrity)
	}

	// The scaler sees training rows only; later rows stay unseen until
	// transform time.
	scaler, err := timeseries.NewScaler(timeseries.ScalerKind(set.Scaler))
	if err != nil {
		return nil, err
	}
	if err := scaler.Fit(matrix[split.Train.Start:split.Train.End]); err != nil {
		return nil, err
	}
	scaled, err := scaler.Transform(matrix)
	if err != nil {
		return nil, err
	}

	gen := timeseries.WindowGenerator{Window: set.Window, Horizon: int(h), TargetCol: targetCol}
	trainW, err := gen.Generate(scaled[split.Train.Start:split.Train.End])
	if err != nil {
		return nil, err
	}
	valW, err := gen.Generate(scaled[split.Val.Start:split.Val.End])
	if err != nil {
		return nil, err
	}
	testW, err := gen.Generate(scaled[split.Test.Start:split.Test.End])
	if err != nil {
		return nil, err
	}

	net, err := lstm.New(lstm.Config{
		InputSize:  len(set.Features),
		HiddenSize: set.HiddenSize,
		Steps:      set.Window,
		Outputs:    int(h),
		Seed:       set.Seed,
	})
	if err != nil {
		return nil, err
	}
	hist, err := net.Train(ctx, trainW, valW, lstm.TrainConfig{
		LearningRate: set.LearningRate,
		Epochs:       set.Epochs,
		Patience:     set.Patience,
		Seed:         set.Seed,
	})
	if err != nil {
		return nil, err
	}

	metrics := make(map[string]models.SplitMetrics, 3)
	for name, wins := range map[string][]timeseries.Window{"train": trainW, "val": valW, "test": testW} {
		sm, err := scoreSplit(net, scaler, targetCol, wins)
		if err != nil {
			return nil, fmt.Errorf("score %s split: %w", name, err)
		}
		metrics[name] = sm
		uc.metrics.RecordModelScore(ticker, int(h), name, sm.MAE, sm.RMSE)
	}

	weights, err := net.MarshalWeights()
	if err != nil {
		return nil, err
	}
	scalerBlob, err := json.Marshal(scaler)
	if err != nil {
		return nil, fmt.Errorf("encode scaler state: %w", err)
	}

	meta := models.ModelMetadata{
		SchemaVersion: models.SchemaVersion,
		Ticker:        ticker,
		Horizon:       int(h),
		Window:        set.Window,
		Features:      set.Features,
		Target:        set.Target,
		ScalerKind:    set.Scaler,
		TrainingRange: models.DateRange{
			From: series.First().Date.Format(timeseries.DateLayout),
			To:   series.Last().Date.Format(timeseries.DateLayout),
		},
		Split:         splitBounds(series, split),
		Metrics:       metrics,
		EpochsRun:     hist.EpochsRun(),
		TrainedAt:     time.Now().UTC(),
		WeightsSHA256: models.WeightsChecksum(weights),
	}
	art := &models.ModelArtifact{Metadata: meta, Scaler: scalerBlob, Weights: weights}
	if err := uc.store.Save(ctx, art); err != nil {
		return nil, fmt.Errorf("save artifact %s horizon %d: %w", ticker, h, err)
	}

	uc.l.Info("model trained",
		applogger.String("ticker", ticker),
		applogger.Int("horizon", int(h)),
		applogger.Int("epochs", hist.EpochsRun()),
		applogger.Int("train_windows", metrics["train"].Windows),
		applogger.Float64("val_loss", metrics["val"].Loss),
		applogger.Duration("duration_ms", time.Since(start)))
	return &meta, nil
}

// scoreSplit evaluates one split: MSE in scaled space plus MAE/RMSE/MAPE in
// original price scale. Empty splits score zero.
func scoreSplit(net *lstm.Network, scaler *timeseries.Scaler, targetCol int, wins []timeseries.Window) (models.SplitMetrics, error) {
	sm := models.SplitMetrics{Windows: len(wins)}
	if len(wins) == 0 {
		return sm, nil
	}
	sm.Loss = net.EvaluateLoss(wins)

	var absSum, sqSum, pctSum float64
	var n, pctN int
	for _, w := range wins {
		raw, err := net.Predict(w.Input)
		if err != nil {
			return sm, err
		}
		preds, err := scaler.InverseColumn(targetCol, raw)
		if err != nil {
			return sm, err
		}
		actual, err := scaler.InverseColumn(targetCol, w.Target)
		if err != nil {
			return sm, err
		}
		for k := range preds {
			diff := preds[k] - actual[k]
			absSum += math.Abs(diff)
			sqSum += diff * diff
			if math.Abs(actual[k]) > 1e-9 {
				pctSum += math.Abs(diff / actual[k])
				pctN++
			}
			n++
		}
	}
	sm.MAE = absSum / float64(n)
	sm.RMSE = math.Sqrt(sqSum / float64(n))
	if pctN > 0 {
		sm.MAPE = pctSum / float64(pctN) * 100
	}
	return sm, nil
}

func splitBounds(series *timeseries.Series, split timeseries.SplitRanges) models.SplitBounds {
	var b models.SplitBounds
	if from, to, ok := timeseries.RangeDates(series, split.Train); ok {
		b.TrainStart, b.TrainEnd = from, to
	}
	if from, to, ok := timeseries.RangeDates(series, split.Val); ok {
		b.ValStart, b.ValEnd = from, to
	}
	if from, to, ok := timeseries.RangeDates(series, split.Test); ok {
		b.TestStart, b.TestEnd = from, to
	}
	return b
}

func dedupeHorizons(hs []domrepo.Horizon) []domrepo.Horizon {
	seen := make(map[domrepo.Horizon]bool, len(hs))
	out := make([]domrepo.Horizon, 0, len(hs))
	for _, h := range hs {
		if seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	return out
}
