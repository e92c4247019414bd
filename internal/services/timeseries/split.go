package timeseries

import (
	"fmt"
	"math"

	"StockCast/internal/domain/models"
)

// IndexRange is a half-open [Start, End) run of series indices.
type IndexRange struct {
	Start int
	End   int
}

// Len returns the number of rows the range covers.
func (r IndexRange) Len() int { return r.End - r.Start }

// SplitRanges partitions [0, n) into three contiguous temporal ranges:
// training first, then validation, then test. The ranges never overlap and
// together cover every row exactly once.
type SplitRanges struct {
	Train IndexRange
	Val   IndexRange
	Test  IndexRange
}

// SplitPolicy divides a series by position, never randomly: the earliest
// TrainFrac of rows train, the next ValFrac validate, the remainder tests.
type SplitPolicy struct {
	TrainFrac float64
	ValFrac   float64
}

// DefaultSplitPolicy returns the 70/15/15 split.
func DefaultSplitPolicy() SplitPolicy { return SplitPolicy{TrainFrac: 0.70, ValFrac: 0.15} }

// Split computes the ranges for n rows. The training range must fit at least
// window+horizon rows or the split fails with models.ErrInsufficientData.
// Validation and test ranges may come out empty or too short to window; that
// is not an error here.
func (p SplitPolicy) Split(n, window, horizon int) (SplitRanges, error) {
	if p.TrainFrac <= 0 || p.ValFrac < 0 || p.TrainFrac+p.ValFrac > 1 {
		return SplitRanges{}, fmt.Errorf("invalid split fractions train=%.3f val=%.3f", p.TrainFrac, p.ValFrac)
	}
	if window <= 0 || horizon <= 0 {
		return SplitRanges{}, fmt.Errorf("invalid window=%d horizon=%d", window, horizon)
	}
	trainEnd := int(math.Floor(float64(n) * p.TrainFrac))
	valEnd := trainEnd + int(math.Floor(float64(n)*p.ValFrac))
	if valEnd > n {
		valEnd = n
	}
	if trainEnd < window+horizon {
		return SplitRanges{}, fmt.Errorf("train range has %d rows, window %d + horizon %d needs more: %w",
			trainEnd, window, horizon, models.ErrInsufficientData)
	}
	return SplitRanges{
		Train: IndexRange{Start: 0, End: trainEnd},
		Val:   IndexRange{Start: trainEnd, End: valEnd},
		Test:  IndexRange{Start: valEnd, End: n},
	}, nil
}

// RangeDates returns the first and last trading days the range covers within
// the series, or ok=false for an empty range.
func RangeDates(s *Series, r IndexRange) (from, to string, ok bool) {
	if r.Len() <= 0 {
		return "", "", false
	}
	return s.Date(r.Start).Format(DateLayout), s.Date(r.End - 1).Format(DateLayout), true
}
