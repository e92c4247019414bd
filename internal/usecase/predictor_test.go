package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
	"StockCast/internal/repository"
	"StockCast/internal/services/lstm"
	"StockCast/internal/services/timeseries"
)

// fixtureStore persists one small next-day artifact for FIX (window 4) and
// seeds six bars of history.
func fixtureStore(t *testing.T) (*repository.FSModelStore, *memBarStore, []models.Bar) {
	t.Helper()
	bars := sineBars("FIX", 6)

	series, err := timeseries.New(bars)
	if err != nil {
		t.Fatalf("series: %v", err)
	}
	matrix, err := series.Matrix(models.AllFeatures())
	if err != nil {
		t.Fatalf("matrix: %v", err)
	}
	scaler, err := timeseries.NewScaler(timeseries.ScalerMinMax)
	if err != nil {
		t.Fatalf("scaler: %v", err)
	}
	if err := scaler.Fit(matrix); err != nil {
		t.Fatalf("fit: %v", err)
	}
	scalerBlob, err := json.Marshal(scaler)
	if err != nil {
		t.Fatalf("marshal scaler: %v", err)
	}

	net, err := lstm.New(lstm.Config{InputSize: 5, HiddenSize: 4, Steps: 4, Outputs: 1, Seed: 3})
	if err != nil {
		t.Fatalf("network: %v", err)
	}
	weights, err := net.MarshalWeights()
	if err != nil {
		t.Fatalf("marshal weights: %v", err)
	}

	store := repository.NewFSModelStore(t.TempDir())
	art := &models.ModelArtifact{
		Metadata: models.ModelMetadata{
			SchemaVersion: models.SchemaVersion,
			Ticker:        "FIX",
			Horizon:       1,
			Window:        4,
			Features:      models.AllFeatures(),
			Target:        models.FeatureClose,
			ScalerKind:    string(timeseries.ScalerMinMax),
			TrainingRange: models.DateRange{From: "2024-01-01", To: "2024-01-06"},
			Metrics:       map[string]models.SplitMetrics{},
			TrainedAt:     time.Now().UTC(),
			WeightsSHA256: models.WeightsChecksum(weights),
		},
		Scaler:  scalerBlob,
		Weights: weights,
	}
	if err := store.Save(context.Background(), art); err != nil {
		t.Fatalf("save artifact: %v", err)
	}

	barStore := newMemBarStore()
	barStore.seed("FIX", bars)
	return store, barStore, bars
}

func TestPredictUnsupportedHorizon(t *testing.T) {
	store, barStore, _ := fixtureStore(t)
	uc := NewForecastUseCase(store, barStore, nopMetrics{})

	_, err := uc.Predict(context.Background(), "FIX", domrepo.Horizon(3), nil)
	if !errors.Is(err, models.ErrUnsupportedHorizon) {
		t.Fatalf("err = %v, want ErrUnsupportedHorizon", err)
	}
}

func TestPredictUntrainedTicker(t *testing.T) {
	store, barStore, _ := fixtureStore(t)
	uc := NewForecastUseCase(store, barStore, nopMetrics{})

	_, err := uc.Predict(context.Background(), "NOPE", domrepo.HorizonNextDay, nil)
	if !errors.Is(err, models.ErrUnsupportedHorizon) {
		t.Fatalf("err = %v, want ErrUnsupportedHorizon", err)
	}
}

func TestPredictWindowMismatch(t *testing.T) {
	store, barStore, _ := fixtureStore(t)
	uc := NewForecastUseCase(store, barStore, nopMetrics{})

	_, err := uc.Forecast(context.Background(), PredictParams{
		Ticker:  "FIX",
		Horizon: domrepo.HorizonNextDay,
		Window:  9,
	})
	if !errors.Is(err, models.ErrShapeMismatch) {
		t.Fatalf("err = %v, want ErrShapeMismatch", err)
	}
}

func TestPredictShortHistory(t *testing.T) {
	store, barStore, bars := fixtureStore(t)
	uc := NewForecastUseCase(store, barStore, nopMetrics{})

	_, err := uc.Predict(context.Background(), "FIX", domrepo.HorizonNextDay, bars[:3])
	if !errors.Is(err, models.ErrInsufficientHistory) {
		t.Fatalf("err = %v, want ErrInsufficientHistory", err)
	}
}

func TestPredictHistoryOutOfOrder(t *testing.T) {
	store, barStore, bars := fixtureStore(t)
	uc := NewForecastUseCase(store, barStore, nopMetrics{})

	history := append([]models.Bar(nil), bars[:4]...)
	history[1], history[2] = history[2], history[1]
	_, err := uc.Predict(context.Background(), "FIX", domrepo.HorizonNextDay, history)
	if !errors.Is(err, models.ErrDataIntegrity) {
		t.Fatalf("err = %v, want ErrDataIntegrity", err)
	}
}

func TestPredictFromStore(t *testing.T) {
	store, barStore, bars := fixtureStore(t)
	uc := NewForecastUseCase(store, barStore, nopMetrics{})

	forecast, err := uc.Predict(context.Background(), "fix", domrepo.HorizonNextDay, nil)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(forecast.Predictions) != 1 {
		t.Fatalf("got %d predictions, want 1", len(forecast.Predictions))
	}
	if forecast.Ticker != "FIX" || forecast.Window != 4 || forecast.Horizon != 1 {
		t.Errorf("forecast header = %+v", forecast)
	}
	if want := bars[len(bars)-1].Date.Format(timeseries.DateLayout); forecast.LastDate != want {
		t.Errorf("last date = %q, want %q", forecast.LastDate, want)
	}

	// Explicit history equal to the stored tail must reproduce the same
	// prediction.
	explicit, err := uc.Predict(context.Background(), "FIX", domrepo.HorizonNextDay, bars[len(bars)-4:])
	if err != nil {
		t.Fatalf("Predict with history: %v", err)
	}
	if !reflect.DeepEqual(forecast.Predictions, explicit.Predictions) {
		t.Errorf("store path %v != history path %v", forecast.Predictions, explicit.Predictions)
	}
}

// countingModelStore counts artifact loads to observe engine caching.
type countingModelStore struct {
	domrepo.ModelStore
	loads int
}

func (c *countingModelStore) Load(ctx context.Context, ticker string, h domrepo.Horizon) (*models.ModelArtifact, error) {
	c.loads++
	return c.ModelStore.Load(ctx, ticker, h)
}

func TestPredictLoadsArtifactOnce(t *testing.T) {
	store, barStore, _ := fixtureStore(t)
	counting := &countingModelStore{ModelStore: store}
	uc := NewForecastUseCase(counting, barStore, nopMetrics{})

	for i := 0; i < 3; i++ {
		if _, err := uc.Predict(context.Background(), "FIX", domrepo.HorizonNextDay, nil); err != nil {
			t.Fatalf("Predict %d: %v", i, err)
		}
	}
	if counting.loads != 1 {
		t.Errorf("artifact loaded %d times across 3 predictions, want 1", counting.loads)
	}

	uc.Invalidate("fix")
	if _, err := uc.Predict(context.Background(), "FIX", domrepo.HorizonNextDay, nil); err != nil {
		t.Fatalf("Predict after invalidate: %v", err)
	}
	if counting.loads != 2 {
		t.Errorf("artifact loaded %d times after invalidate, want 2", counting.loads)
	}
}

func TestMetadataListing(t *testing.T) {
	store, barStore, _ := fixtureStore(t)
	uc := NewForecastUseCase(store, barStore, nopMetrics{})

	metas, err := uc.Metadata(context.Background(), "fix")
	if err != nil {
		t.Fatalf("Metadata: %v", err)
	}
	if len(metas) != 1 {
		t.Fatalf("got %d entries, want 1", len(metas))
	}
	if metas[0].Horizon != 1 || metas[0].SchemaVersion != models.SchemaVersion {
		t.Errorf("metadata = %+v", metas[0])
	}

	empty, err := uc.Metadata(context.Background(), "NOPE")
	if err != nil {
		t.Fatalf("Metadata for untrained ticker: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("got %d entries for untrained ticker, want 0", len(empty))
	}
}
