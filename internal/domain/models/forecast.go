package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// SchemaVersion is the artifact layout this build reads and writes.
// Loading any other version fails with ErrSchemaVersion.
const SchemaVersion = "1.0.0"

// WeightsChecksum returns the hex SHA-256 of a weights blob, the value
// recorded in artifact metadata.
func WeightsChecksum(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Forecast is one model's prediction for a ticker: the next Horizon closing
// prices in original scale, ordered nearest first.
type Forecast struct {
	Ticker      string    `json:"ticker"`
	Horizon     int       `json:"horizon"`
	Window      int       `json:"window"`
	Predictions []float64 `json:"predictions"`
	LastDate    string    `json:"last_date"` // date of the final input bar, YYYY-MM-DD
	GeneratedAt time.Time `json:"generated_at"`
}

// ForecastSummary consolidates forecasts across all trained horizons.
type ForecastSummary struct {
	Ticker    string            `json:"ticker"`
	Timestamp time.Time         `json:"timestamp"`
	NextDay   *Forecast         `json:"next_day,omitempty"`
	NextWeek  *Forecast         `json:"next_week,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// DateRange bounds a span of trading days, inclusive, as YYYY-MM-DD.
type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// SplitBounds records where the temporal split fell, as YYYY-MM-DD dates.
// Val/test bounds are empty when the corresponding range got no rows.
type SplitBounds struct {
	TrainStart string `json:"train_start"`
	TrainEnd   string `json:"train_end"`
	ValStart   string `json:"val_start,omitempty"`
	ValEnd     string `json:"val_end,omitempty"`
	TestStart  string `json:"test_start,omitempty"`
	TestEnd    string `json:"test_end,omitempty"`
}

// SplitMetrics holds evaluation results on one split, in original price scale
// except Loss which is scaled-space MSE.
type SplitMetrics struct {
	Loss    float64 `json:"loss"`
	MAE     float64 `json:"mae"`
	RMSE    float64 `json:"rmse"`
	MAPE    float64 `json:"mape"`
	Windows int     `json:"windows"`
}

// ModelMetadata describes a persisted model artifact. It is written once per
// training run and never mutated.
type ModelMetadata struct {
	SchemaVersion string                  `json:"schema_version"`
	Ticker        string                  `json:"ticker"`
	Horizon       int                     `json:"horizon"`
	Window        int                     `json:"window"`
	Features      []string                `json:"features"`
	Target        string                  `json:"target"`
	ScalerKind    string                  `json:"scaler_kind"`
	TrainingRange DateRange               `json:"training_range"`
	Split         SplitBounds             `json:"split"`
	Metrics       map[string]SplitMetrics `json:"metrics"`
	EpochsRun     int                     `json:"epochs_run"`
	TrainedAt     time.Time               `json:"trained_at"`
	WeightsSHA256 string                  `json:"weights_sha256"`
}

// ModelArtifact bundles everything needed to reload a trained model: the
// metadata document plus the serialized scaler state and network weights.
type ModelArtifact struct {
	Metadata ModelMetadata
	Scaler   []byte
	Weights  []byte
}

// TrainingReport summarizes one training run across the requested horizons.
type TrainingReport struct {
	Ticker     string                 `json:"ticker"`
	StartedAt  time.Time              `json:"started_at"`
	DurationMS int64                  `json:"duration_ms"`
	Results    map[int]*ModelMetadata `json:"results"`
	Errors     map[string]string      `json:"errors,omitempty"`
}
