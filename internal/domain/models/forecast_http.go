package models

// Requests for forecast HTTP endpoints. Defined in domain for consistency and reuse.

// BarPayload is one client-supplied history row. Dates are YYYY-MM-DD.
type BarPayload struct {
	Date   string  `json:"date" validate:"required"`
	Open   float64 `json:"open" validate:"gt=0"`
	High   float64 `json:"high" validate:"gt=0"`
	Low    float64 `json:"low" validate:"gt=0"`
	Close  float64 `json:"close" validate:"gt=0"`
	Volume float64 `json:"volume" validate:"gte=0"`
}

// PredictRequest asks for a forecast. When History is empty the server reads
// the last window bars from the store; an empty Ticker falls back to the
// configured default. Window, when sent, must match the trained model.
type PredictRequest struct {
	Ticker  string       `query:"ticker" json:"ticker"`
	Horizon int          `query:"horizon" json:"horizon" default:"1" validate:"oneof=1 5"`
	Window  int          `query:"window" json:"window" validate:"omitempty,gte=1,lte=512"`
	History []BarPayload `json:"history" validate:"omitempty,dive"`
}

type MetadataRequest struct {
	Ticker string `query:"ticker" json:"ticker"`
}

type SummaryRequest struct {
	Ticker string `query:"ticker" json:"ticker"`
}

type BarsRequest struct {
	Ticker string `query:"ticker" json:"ticker"`
	From   string `query:"from" json:"from"`
	To     string `query:"to" json:"to"`
	Limit  int    `query:"limit" json:"limit" default:"500" validate:"gte=1,lte=5000"`
}

// TrainRequest triggers a training run. Empty Horizons means every supported
// horizon; From/To narrow the bar range used for the run.
type TrainRequest struct {
	Ticker   string `json:"ticker"`
	Horizons []int  `json:"horizons" validate:"omitempty,dive,oneof=1 5"`
	From     string `json:"from"`
	To       string `json:"to"`
}
