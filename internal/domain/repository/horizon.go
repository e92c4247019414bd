package repository

// Horizon is the number of future trading days a model predicts jointly.
type Horizon int

const (
	HorizonNextDay  Horizon = 1
	HorizonNextWeek Horizon = 5
)

// IsValidHorizon returns true if h has a trainable model.
func IsValidHorizon(h Horizon) bool {
	switch h {
	case HorizonNextDay, HorizonNextWeek:
		return true
	default:
		return false
	}
}

// DefaultHorizon returns the default forecast horizon.
func DefaultHorizon() Horizon { return HorizonNextDay }

// SupportedHorizons lists every trainable horizon in ascending order.
func SupportedHorizons() []Horizon {
	return []Horizon{HorizonNextDay, HorizonNextWeek}
}

// NormalizeHorizon converts a raw request value to a valid horizon (or default).
func NormalizeHorizon(n int) Horizon {
	if n == 0 {
		return DefaultHorizon()
	}
	h := Horizon(n)
	if IsValidHorizon(h) {
		return h
	}
	return DefaultHorizon()
}
