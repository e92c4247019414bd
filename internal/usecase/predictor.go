package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"

	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
	domsvc "StockCast/internal/domain/service"
	"StockCast/internal/services/lstm"
	"StockCast/internal/services/timeseries"
)

var _ domsvc.Forecaster = (*ForecastUseCase)(nil)

// ForecastUseCase serves price forecasts from persisted model artifacts. An
// artifact is loaded once, rehydrated into an immutable engine and shared by
// every request for that ticker and horizon; the hot path does no artifact
// I/O. Invalidate drops a ticker's engines after a retrain.
type ForecastUseCase struct {
	modelStore domrepo.ModelStore
	barStore   domrepo.BarStore
	metrics    domrepo.Metrics

	mu      sync.RWMutex
	engines map[string]*engine
}

func NewForecastUseCase(modelStore domrepo.ModelStore, barStore domrepo.BarStore, metrics domrepo.Metrics) *ForecastUseCase {
	return &ForecastUseCase{
		modelStore: modelStore,
		barStore:   barStore,
		metrics:    metrics,
		engines:    make(map[string]*engine),
	}
}

type PredictParams struct {
	Ticker  string
	Horizon domrepo.Horizon
	// Window, when set, must match the window the artifact was trained on.
	Window  int
	History []models.Bar
}

// Forecast predicts the next Horizon closing prices for the ticker. With no
// explicit history the input window comes from the bar store.
func (uc *ForecastUseCase) Forecast(ctx context.Context, p PredictParams) (*models.Forecast, error) {
	ticker := strings.ToUpper(strings.TrimSpace(p.Ticker))
	if ticker == "" {
		return nil, fmt.Errorf("ticker required")
	}
	if !domrepo.IsValidHorizon(p.Horizon) {
		return nil, fmt.Errorf("horizon %d: %w", p.Horizon, models.ErrUnsupportedHorizon)
	}

	start := time.Now()
	eng, err := uc.engineFor(ctx, ticker, p.Horizon)
	if err != nil {
		return nil, err
	}
	if p.Window > 0 && p.Window != eng.meta.Window {
		return nil, fmt.Errorf("requested window %d, model trained on %d: %w",
			p.Window, eng.meta.Window, models.ErrShapeMismatch)
	}

	bars := p.History
	if len(bars) == 0 {
		bars, err = uc.barStore.GetLatestNBars(ctx, ticker, eng.meta.Window)
		if err != nil {
			uc.metrics.RecordError("bars_read")
			return nil, fmt.Errorf("read bars for %s: %w", ticker, err)
		}
	}
	series, err := timeseries.New(bars)
	if err != nil {
		return nil, err
	}
	if series.Len() < eng.meta.Window {
		return nil, fmt.Errorf("%s has %d bars, model needs %d: %w",
			ticker, series.Len(), eng.meta.Window, models.ErrInsufficientHistory)
	}

	forecast, err := eng.run(series)
	if err != nil {
		uc.metrics.RecordError("predict")
		return nil, err
	}
	uc.metrics.RecordLastClose(ticker, series.Last().Close)
	uc.metrics.RecordLatency("predict", time.Since(start).Seconds())
	return forecast, nil
}

// engineFor returns the cached engine for ticker and horizon, loading and
// rehydrating the artifact on first use. Failed loads are not cached.
func (uc *ForecastUseCase) engineFor(ctx context.Context, ticker string, h domrepo.Horizon) (*engine, error) {
	key := fmt.Sprintf("%s/h%d", ticker, h)
	uc.mu.RLock()
	eng := uc.engines[key]
	uc.mu.RUnlock()
	if eng != nil {
		return eng, nil
	}

	art, err := uc.modelStore.Load(ctx, ticker, h)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			uc.metrics.RecordError("model_missing")
			return nil, fmt.Errorf("no trained model for %s horizon %d: %w", ticker, h, models.ErrUnsupportedHorizon)
		}
		uc.metrics.RecordError("model_load")
		return nil, fmt.Errorf("load model %s horizon %d: %w", ticker, h, err)
	}
	fresh, err := newEngine(art)
	if err != nil {
		uc.metrics.RecordError("model_load")
		return nil, err
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()
	if cached := uc.engines[key]; cached != nil {
		return cached, nil
	}
	uc.engines[key] = fresh
	return fresh, nil
}

// Invalidate drops the ticker's cached engines so the next request rehydrates
// freshly written artifacts.
func (uc *ForecastUseCase) Invalidate(ticker string) {
	prefix := strings.ToUpper(strings.TrimSpace(ticker)) + "/"
	uc.mu.Lock()
	defer uc.mu.Unlock()
	for key := range uc.engines {
		if strings.HasPrefix(key, prefix) {
			delete(uc.engines, key)
		}
	}
}

// Predict implements service.Forecaster.
func (uc *ForecastUseCase) Predict(ctx context.Context, ticker string, h domrepo.Horizon, history []models.Bar) (*models.Forecast, error) {
	return uc.Forecast(ctx, PredictParams{Ticker: ticker, Horizon: h, History: history})
}

// Metadata implements service.Forecaster. An untrained ticker yields an empty
// slice, not an error.
func (uc *ForecastUseCase) Metadata(ctx context.Context, ticker string) ([]models.ModelMetadata, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, fmt.Errorf("ticker required")
	}
	return uc.modelStore.List(ctx, ticker)
}

// engine is one rehydrated artifact: scaler, network and window layout,
// ready to replay the training-time transform chain on fresh bars.
type engine struct {
	meta   models.ModelMetadata
	scaler *timeseries.Scaler
	net    *lstm.Network
	gen    timeseries.WindowGenerator
	target int
}

func newEngine(art *models.ModelArtifact) (*engine, error) {
	scaler, err := timeseries.LoadScaler(art.Scaler)
	if err != nil {
		return nil, err
	}
	net, err := lstm.LoadNetwork(art.Weights)
	if err != nil {
		return nil, err
	}
	target := -1
	for i, f := range art.Metadata.Features {
		if f == art.Metadata.Target {
			target = i
		}
	}
	if target < 0 {
		return nil, fmt.Errorf("target %q not among features %v: %w",
			art.Metadata.Target, art.Metadata.Features, models.ErrDataIntegrity)
	}
	cfg := net.Config()
	if cfg.Steps != art.Metadata.Window || cfg.InputSize != len(art.Metadata.Features) || cfg.Outputs != art.Metadata.Horizon {
		return nil, fmt.Errorf("weights shaped %dx%dx%d, metadata says window=%d features=%d horizon=%d: %w",
			cfg.Steps, cfg.InputSize, cfg.Outputs,
			art.Metadata.Window, len(art.Metadata.Features), art.Metadata.Horizon, models.ErrDataIntegrity)
	}
	return &engine{
		meta:   art.Metadata,
		scaler: scaler,
		net:    net,
		gen: timeseries.WindowGenerator{
			Window:    art.Metadata.Window,
			Horizon:   art.Metadata.Horizon,
			TargetCol: target,
		},
		target: target,
	}, nil
}

// run replays the transform chain on the series tail: feature matrix, scale,
// last window, forward pass, inverse-scale the target column.
func (e *engine) run(s *timeseries.Series) (*models.Forecast, error) {
	matrix, err := s.Matrix(e.meta.Features)
	if err != nil {
		return nil, err
	}
	scaled, err := e.scaler.Transform(matrix)
	if err != nil {
		return nil, err
	}
	window, err := e.gen.LastWindow(scaled)
	if err != nil {
		return nil, err
	}
	raw, err := e.net.Predict(window)
	if err != nil {
		return nil, err
	}
	preds, err := e.scaler.InverseColumn(e.target, raw)
	if err != nil {
		return nil, err
	}
	return &models.Forecast{
		Ticker:      e.meta.Ticker,
		Horizon:     e.meta.Horizon,
		Window:      e.meta.Window,
		Predictions: preds,
		LastDate:    s.Last().Date.Format(timeseries.DateLayout),
		GeneratedAt: time.Now().UTC(),
	}, nil
}
