package timeseries

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"StockCast/internal/domain/models"
)

func sampleMatrix() [][]float64 {
	return [][]float64{
		{10, 100, 1000},
		{12, 90, 1500},
		{11, 95, 800},
		{15, 120, 2000},
		{13, 110, 1200},
	}
}

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestScalerRoundTrip(t *testing.T) {
	for _, kind := range []ScalerKind{ScalerMinMax, ScalerZScore} {
		t.Run(string(kind), func(t *testing.T) {
			s, err := NewScaler(kind)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			rows := sampleMatrix()
			if err := s.Fit(rows); err != nil {
				t.Fatalf("fit: %v", err)
			}
			scaled, err := s.Transform(rows)
			if err != nil {
				t.Fatalf("transform: %v", err)
			}
			back, err := s.InverseTransform(scaled)
			if err != nil {
				t.Fatalf("inverse: %v", err)
			}
			for i := range rows {
				for j := range rows[i] {
					if !almostEqual(back[i][j], rows[i][j], 1e-9) {
						t.Fatalf("round trip [%d][%d]: got %v, want %v", i, j, back[i][j], rows[i][j])
					}
				}
			}
		})
	}
}

func TestMinMaxBounds(t *testing.T) {
	s, _ := NewScaler(ScalerMinMax)
	rows := sampleMatrix()
	if err := s.Fit(rows); err != nil {
		t.Fatalf("fit: %v", err)
	}
	scaled, err := s.Transform(rows)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	for i := range scaled {
		for j := range scaled[i] {
			if scaled[i][j] < 0 || scaled[i][j] > 1 {
				t.Fatalf("train value [%d][%d] = %v outside [0,1]", i, j, scaled[i][j])
			}
		}
	}
}

func TestTransformBeforeFit(t *testing.T) {
	s, _ := NewScaler(ScalerMinMax)
	if _, err := s.Transform(sampleMatrix()); !errors.Is(err, models.ErrNotFitted) {
		t.Fatalf("expected not fitted error, got %v", err)
	}
	if _, err := s.InverseTransform(sampleMatrix()); !errors.Is(err, models.ErrNotFitted) {
		t.Fatalf("expected not fitted error, got %v", err)
	}
	if _, err := s.InverseColumn(0, []float64{0.5}); !errors.Is(err, models.ErrNotFitted) {
		t.Fatalf("expected not fitted error, got %v", err)
	}
}

// Fitted parameters must come from the training rows alone: a validation
// value above the training maximum scales past 1 instead of moving the
// bounds.
func TestFitIgnoresLaterRows(t *testing.T) {
	s, _ := NewScaler(ScalerMinMax)
	train := [][]float64{{10}, {20}, {30}}
	if err := s.Fit(train); err != nil {
		t.Fatalf("fit: %v", err)
	}
	val := [][]float64{{40}, {5}}
	scaled, err := s.Transform(val)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if scaled[0][0] <= 1 {
		t.Fatalf("value above train max scaled to %v, want > 1", scaled[0][0])
	}
	if scaled[1][0] >= 0 {
		t.Fatalf("value below train min scaled to %v, want < 0", scaled[1][0])
	}

	// Same train rows again: identical parameters, bit for bit.
	s2, _ := NewScaler(ScalerMinMax)
	if err := s2.Fit(train); err != nil {
		t.Fatalf("fit: %v", err)
	}
	if s.Mins[0] != s2.Mins[0] || s.Maxs[0] != s2.Maxs[0] {
		t.Fatalf("refitting the same rows changed parameters")
	}
}

func TestDegenerateColumn(t *testing.T) {
	for _, kind := range []ScalerKind{ScalerMinMax, ScalerZScore} {
		s, _ := NewScaler(kind)
		rows := [][]float64{{5, 1}, {5, 2}, {5, 3}}
		if err := s.Fit(rows); err != nil {
			t.Fatalf("%s fit: %v", kind, err)
		}
		scaled, err := s.Transform(rows)
		if err != nil {
			t.Fatalf("%s transform: %v", kind, err)
		}
		for i := range scaled {
			if scaled[i][0] != 0 {
				t.Fatalf("%s: constant column scaled to %v, want 0", kind, scaled[i][0])
			}
		}
		back, err := s.InverseTransform(scaled)
		if err != nil {
			t.Fatalf("%s inverse: %v", kind, err)
		}
		for i := range back {
			if !almostEqual(back[i][0], 5, 1e-9) {
				t.Fatalf("%s: constant column inverted to %v, want 5", kind, back[i][0])
			}
		}
	}
}

func TestScalerStateRoundTrip(t *testing.T) {
	s, _ := NewScaler(ScalerZScore)
	if err := s.Fit(sampleMatrix()); err != nil {
		t.Fatalf("fit: %v", err)
	}
	blob, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	restored, err := LoadScaler(blob)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	in := [][]float64{{11.5, 104, 1100}}
	a, err := s.Transform(in)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	b, err := restored.Transform(in)
	if err != nil {
		t.Fatalf("restored transform: %v", err)
	}
	for j := range a[0] {
		if a[0][j] != b[0][j] {
			t.Fatalf("restored scaler differs at col %d: %v vs %v", j, a[0][j], b[0][j])
		}
	}
}

func TestLoadScalerRejectsBadState(t *testing.T) {
	cases := []struct {
		name string
		blob string
	}{
		{"unfitted", `{"kind":"minmax","fitted":false}`},
		{"unknown kind", `{"kind":"robust","fitted":true,"mins":[1],"maxs":[2]}`},
		{"no columns", `{"kind":"minmax","fitted":true}`},
		{"garbage", `{"kind":`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadScaler([]byte(tc.blob)); !errors.Is(err, models.ErrDataIntegrity) {
				t.Fatalf("expected data integrity error, got %v", err)
			}
		})
	}
}

func TestTransformShapeMismatch(t *testing.T) {
	s, _ := NewScaler(ScalerMinMax)
	if err := s.Fit(sampleMatrix()); err != nil {
		t.Fatalf("fit: %v", err)
	}
	if _, err := s.Transform([][]float64{{1, 2}}); !errors.Is(err, models.ErrShapeMismatch) {
		t.Fatalf("expected shape mismatch, got %v", err)
	}
	if _, err := s.InverseColumn(7, []float64{0.1}); !errors.Is(err, models.ErrShapeMismatch) {
		t.Fatalf("expected shape mismatch, got %v", err)
	}
}
