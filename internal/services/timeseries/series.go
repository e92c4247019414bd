// Package timeseries holds the data plumbing between raw daily bars and
// model tensors: ordered series, temporal splits, feature scaling and
// window generation.
package timeseries

import (
	"fmt"
	"math"
	"time"

	"StockCast/internal/domain/models"
)

// Series is an ordered, gap-tolerant run of daily bars for one ticker.
// Construction validates the records once; the series never changes after.
type Series struct {
	bars []models.Bar
}

// New builds a series from records already in chronological order. Dates are
// normalized to UTC midnight. Out-of-order or duplicate dates, non-finite
// values, non-positive prices and negative volume all fail with a wrapped
// models.ErrDataIntegrity. Records are copied, so later mutation of the
// input does not reach the series.
func New(records []models.Bar) (*Series, error) {
	bars := make([]models.Bar, len(records))
	copy(bars, records)
	for i := range bars {
		bars[i].Date = DayUTC(bars[i].Date)
		if err := validateBar(bars[i]); err != nil {
			return nil, err
		}
		if i == 0 {
			continue
		}
		prev, cur := bars[i-1].Date, bars[i].Date
		if cur.Equal(prev) {
			return nil, fmt.Errorf("duplicate date %s: %w", cur.Format(DateLayout), models.ErrDataIntegrity)
		}
		if cur.Before(prev) {
			return nil, fmt.Errorf("dates out of order at %s: %w", cur.Format(DateLayout), models.ErrDataIntegrity)
		}
	}
	return &Series{bars: bars}, nil
}

// DateLayout is the wire format for trading-day dates.
const DateLayout = "2006-01-02"

// DayUTC truncates t to its UTC calendar day.
func DayUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func validateBar(b models.Bar) error {
	day := b.Date.Format(DateLayout)
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("non-finite value on %s: %w", day, models.ErrDataIntegrity)
		}
	}
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return fmt.Errorf("non-positive price on %s: %w", day, models.ErrDataIntegrity)
	}
	if b.Volume < 0 {
		return fmt.Errorf("negative volume on %s: %w", day, models.ErrDataIntegrity)
	}
	return nil
}

// Len returns the number of bars in the series.
func (s *Series) Len() int { return len(s.bars) }

// At returns the bar at index i.
func (s *Series) At(i int) models.Bar { return s.bars[i] }

// Date returns the trading day at index i.
func (s *Series) Date(i int) time.Time { return s.bars[i].Date }

// First returns the earliest bar. The series must be non-empty.
func (s *Series) First() models.Bar { return s.bars[0] }

// Last returns the latest bar. The series must be non-empty.
func (s *Series) Last() models.Bar { return s.bars[len(s.bars)-1] }

// Bars returns a copy of the underlying records.
func (s *Series) Bars() []models.Bar {
	out := make([]models.Bar, len(s.bars))
	copy(out, s.bars)
	return out
}

// Slice returns the sub-series covering [from, to] inclusive, by calendar
// day. An empty result is valid.
func (s *Series) Slice(from, to time.Time) (*Series, error) {
	from, to = DayUTC(from), DayUTC(to)
	if to.Before(from) {
		return nil, fmt.Errorf("range end %s before start %s: %w",
			to.Format(DateLayout), from.Format(DateLayout), models.ErrDataIntegrity)
	}
	lo := 0
	for lo < len(s.bars) && s.bars[lo].Date.Before(from) {
		lo++
	}
	hi := lo
	for hi < len(s.bars) && !s.bars[hi].Date.After(to) {
		hi++
	}
	return &Series{bars: s.bars[lo:hi]}, nil
}

// Range returns the sub-series for the half-open index range [i, j).
func (s *Series) Range(i, j int) *Series {
	return &Series{bars: s.bars[i:j]}
}

// Matrix lays the series out row-per-day, one column per feature in the
// given order. Unknown feature names fail with models.ErrDataIntegrity.
func (s *Series) Matrix(features []string) ([][]float64, error) {
	if len(features) == 0 {
		return nil, fmt.Errorf("no features selected: %w", models.ErrDataIntegrity)
	}
	rows := make([][]float64, len(s.bars))
	for i, b := range s.bars {
		row := make([]float64, len(features))
		for j, name := range features {
			v, ok := b.Feature(name)
			if !ok {
				return nil, fmt.Errorf("unknown feature %q: %w", name, models.ErrDataIntegrity)
			}
			row[j] = v
		}
		rows[i] = row
	}
	return rows, nil
}
