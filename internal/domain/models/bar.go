package models

import "time"

// Feature names accepted by the forecasting pipeline.
const (
	FeatureOpen   = "open"
	FeatureHigh   = "high"
	FeatureLow    = "low"
	FeatureClose  = "close"
	FeatureVolume = "volume"
)

// AllFeatures lists every bar feature in canonical order.
func AllFeatures() []string {
	return []string{FeatureOpen, FeatureHigh, FeatureLow, FeatureClose, FeatureVolume}
}

// Bar represents one daily OHLCV record for a ticker.
type Bar struct {
	Date   time.Time `json:"date"`
	Ticker string    `json:"ticker"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Feature returns the named OHLCV component of the bar.
func (b Bar) Feature(name string) (float64, bool) {
	switch name {
	case FeatureOpen:
		return b.Open, true
	case FeatureHigh:
		return b.High, true
	case FeatureLow:
		return b.Low, true
	case FeatureClose:
		return b.Close, true
	case FeatureVolume:
		return b.Volume, true
	default:
		return 0, false
	}
}

// IsValidFeature reports whether name is a known bar feature.
func IsValidFeature(name string) bool {
	switch name {
	case FeatureOpen, FeatureHigh, FeatureLow, FeatureClose, FeatureVolume:
		return true
	default:
		return false
	}
}
