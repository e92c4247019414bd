package timeseries

import (
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"StockCast/internal/domain/models"
)

// ScalerKind selects the normalization applied before training and inference.
type ScalerKind string

const (
	ScalerMinMax ScalerKind = "minmax"
	ScalerZScore ScalerKind = "zscore"
)

// IsValidScalerKind returns true if k is a supported scaler kind.
func IsValidScalerKind(k ScalerKind) bool {
	return k == ScalerMinMax || k == ScalerZScore
}

// Scaler normalizes feature matrices column-wise. Fit learns parameters from
// training rows only; Transform and InverseTransform are pure once fitted
// and fail with models.ErrNotFitted before. The state is the exported
// fields; it serializes to JSON and reloads bit-exact.
type Scaler struct {
	Kind   ScalerKind `json:"kind"`
	Mins   []float64  `json:"mins,omitempty"`
	Maxs   []float64  `json:"maxs,omitempty"`
	Means  []float64  `json:"means,omitempty"`
	Stds   []float64  `json:"stds,omitempty"`
	Fitted bool       `json:"fitted"`
}

// NewScaler returns an unfitted scaler of the given kind.
func NewScaler(kind ScalerKind) (*Scaler, error) {
	if !IsValidScalerKind(kind) {
		return nil, fmt.Errorf("unknown scaler kind %q", kind)
	}
	return &Scaler{Kind: kind}, nil
}

// LoadScaler restores a fitted scaler from its JSON state. Unknown kinds and
// unfitted or inconsistent state fail with models.ErrDataIntegrity.
func LoadScaler(blob []byte) (*Scaler, error) {
	var s Scaler
	if err := json.Unmarshal(blob, &s); err != nil {
		return nil, fmt.Errorf("decode scaler state: %w", models.ErrDataIntegrity)
	}
	if !IsValidScalerKind(s.Kind) || !s.Fitted {
		return nil, fmt.Errorf("scaler state kind=%q fitted=%t: %w", s.Kind, s.Fitted, models.ErrDataIntegrity)
	}
	if s.width() == 0 {
		return nil, fmt.Errorf("scaler state has no columns: %w", models.ErrDataIntegrity)
	}
	return &s, nil
}

func (s *Scaler) width() int {
	if s.Kind == ScalerMinMax {
		if len(s.Mins) != len(s.Maxs) {
			return 0
		}
		return len(s.Mins)
	}
	if len(s.Means) != len(s.Stds) {
		return 0
	}
	return len(s.Means)
}

// Fit learns per-column parameters from rows. Rows must be rectangular and
// non-empty. Refitting replaces the previous state.
func (s *Scaler) Fit(rows [][]float64) error {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return fmt.Errorf("fit on empty matrix: %w", models.ErrInsufficientData)
	}
	cols := len(rows[0])
	col := make([]float64, len(rows))
	switch s.Kind {
	case ScalerMinMax:
		s.Mins = make([]float64, cols)
		s.Maxs = make([]float64, cols)
		s.Means, s.Stds = nil, nil
		for j := 0; j < cols; j++ {
			if err := fillColumn(col, rows, j); err != nil {
				return err
			}
			s.Mins[j] = floats.Min(col)
			s.Maxs[j] = floats.Max(col)
		}
	case ScalerZScore:
		s.Means = make([]float64, cols)
		s.Stds = make([]float64, cols)
		s.Mins, s.Maxs = nil, nil
		for j := 0; j < cols; j++ {
			if err := fillColumn(col, rows, j); err != nil {
				return err
			}
			mean, std := stat.MeanStdDev(col, nil)
			s.Means[j] = mean
			s.Stds[j] = std
		}
	default:
		return fmt.Errorf("unknown scaler kind %q", s.Kind)
	}
	s.Fitted = true
	return nil
}

func fillColumn(dst []float64, rows [][]float64, j int) error {
	for i, row := range rows {
		if len(row) != len(rows[0]) {
			return fmt.Errorf("ragged matrix at row %d: %w", i, models.ErrShapeMismatch)
		}
		dst[i] = row[j]
	}
	return nil
}

// Transform scales rows into model space without touching the input.
func (s *Scaler) Transform(rows [][]float64) ([][]float64, error) {
	if err := s.check(rows); err != nil {
		return nil, err
	}
	out := make([][]float64, len(rows))
	for i, row := range rows {
		o := make([]float64, len(row))
		for j, v := range row {
			o[j] = s.scale(j, v)
		}
		out[i] = o
	}
	return out, nil
}

// InverseTransform maps scaled rows back to original scale.
func (s *Scaler) InverseTransform(rows [][]float64) ([][]float64, error) {
	if err := s.check(rows); err != nil {
		return nil, err
	}
	out := make([][]float64, len(rows))
	for i, row := range rows {
		o := make([]float64, len(row))
		for j, v := range row {
			o[j] = s.unscale(j, v)
		}
		out[i] = o
	}
	return out, nil
}

// InverseColumn maps scaled values of one column back to original scale.
// Model outputs are target-column values, so this is the inference path.
func (s *Scaler) InverseColumn(col int, vals []float64) ([]float64, error) {
	if !s.Fitted {
		return nil, models.ErrNotFitted
	}
	if col < 0 || col >= s.width() {
		return nil, fmt.Errorf("column %d outside fitted width %d: %w", col, s.width(), models.ErrShapeMismatch)
	}
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = s.unscale(col, v)
	}
	return out, nil
}

func (s *Scaler) check(rows [][]float64) error {
	if !s.Fitted {
		return models.ErrNotFitted
	}
	w := s.width()
	for i, row := range rows {
		if len(row) != w {
			return fmt.Errorf("row %d has %d columns, scaler fitted on %d: %w", i, len(row), w, models.ErrShapeMismatch)
		}
	}
	return nil
}

// A degenerate column (zero span or zero spread) scales to 0 and inverts
// back to the fitted constant.
func (s *Scaler) scale(j int, v float64) float64 {
	if s.Kind == ScalerMinMax {
		span := s.Maxs[j] - s.Mins[j]
		if span == 0 {
			return 0
		}
		return (v - s.Mins[j]) / span
	}
	if s.Stds[j] == 0 {
		return 0
	}
	return (v - s.Means[j]) / s.Stds[j]
}

func (s *Scaler) unscale(j int, v float64) float64 {
	if s.Kind == ScalerMinMax {
		span := s.Maxs[j] - s.Mins[j]
		if span == 0 {
			return s.Mins[j]
		}
		return v*span + s.Mins[j]
	}
	if s.Stds[j] == 0 {
		return s.Means[j]
	}
	return v*s.Stds[j] + s.Means[j]
}
