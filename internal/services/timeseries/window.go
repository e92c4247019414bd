package timeseries

import (
	"fmt"

	"StockCast/internal/domain/models"
)

// Window pairs one supervised sample: Input covers scaled rows [t-w, t),
// Target holds the target column for rows [t, t+h). End is t, the series
// index of the first predicted row.
type Window struct {
	Input  [][]float64
	Target []float64
	End    int
}

// WindowGenerator slices a scaled matrix into supervised windows of fixed
// length. A matrix of n rows yields exactly max(0, n-w-h+1) windows; the
// last target never reaches past the matrix end.
type WindowGenerator struct {
	Window    int
	Horizon   int
	TargetCol int
}

// Count returns how many windows n rows yield.
func (g WindowGenerator) Count(n int) int {
	c := n - g.Window - g.Horizon + 1
	if c < 0 {
		return 0
	}
	return c
}

// Generate emits every complete window in chronological order. Zero windows
// is a valid result, not an error. Inputs alias the given rows; callers must
// not mutate either.
func (g WindowGenerator) Generate(rows [][]float64) ([]Window, error) {
	if g.Window <= 0 || g.Horizon <= 0 {
		return nil, fmt.Errorf("invalid window=%d horizon=%d", g.Window, g.Horizon)
	}
	if len(rows) > 0 && (g.TargetCol < 0 || g.TargetCol >= len(rows[0])) {
		return nil, fmt.Errorf("target column %d outside %d feature columns: %w",
			g.TargetCol, len(rows[0]), models.ErrShapeMismatch)
	}
	n := len(rows)
	out := make([]Window, 0, g.Count(n))
	for t := g.Window; t+g.Horizon <= n; t++ {
		target := make([]float64, g.Horizon)
		for k := 0; k < g.Horizon; k++ {
			target[k] = rows[t+k][g.TargetCol]
		}
		out = append(out, Window{
			Input:  rows[t-g.Window : t],
			Target: target,
			End:    t,
		})
	}
	return out, nil
}

// LastWindow returns the inference input: the most recent Window rows.
// Fewer rows than the window fail with models.ErrInsufficientHistory.
func (g WindowGenerator) LastWindow(rows [][]float64) ([][]float64, error) {
	if g.Window <= 0 {
		return nil, fmt.Errorf("invalid window=%d", g.Window)
	}
	if len(rows) < g.Window {
		return nil, fmt.Errorf("have %d rows, window needs %d: %w",
			len(rows), g.Window, models.ErrInsufficientHistory)
	}
	return rows[len(rows)-g.Window:], nil
}
