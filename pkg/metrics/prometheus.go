package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	barsStored  *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	lastClose   *prometheus.GaugeVec
	latency     *prometheus.HistogramVec
	modelMAE    *prometheus.GaugeVec
	modelRMSE   *prometheus.GaugeVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		barsStored: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockcast_bars_stored_total",
				Help: "Total number of daily bars written to the store",
			},
			[]string{"source", "ticker"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockcast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastClose: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stockcast_last_close",
				Help: "Last observed closing price for a ticker",
			},
			[]string{"ticker"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockcast_operation_duration_seconds",
				Help:    "Duration of pipeline operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		modelMAE: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stockcast_model_mae",
				Help: "Mean absolute error of the last training run, in price units",
			},
			[]string{"ticker", "horizon", "split"},
		),
		modelRMSE: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stockcast_model_rmse",
				Help: "Root mean squared error of the last training run, in price units",
			},
			[]string{"ticker", "horizon", "split"},
		),
	}
}

// RecordBarsStored records bars persisted from a source.
func (r *Recorder) RecordBarsStored(source, ticker string, n int) {
	r.barsStored.WithLabelValues(source, ticker).Add(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastClose records the last closing price for a ticker.
func (r *Recorder) RecordLastClose(ticker string, price float64) {
	r.lastClose.WithLabelValues(ticker).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordModelScore records a trained model's per-split error metrics.
func (r *Recorder) RecordModelScore(ticker string, horizon int, split string, mae, rmse float64) {
	h := strconv.Itoa(horizon)
	r.modelMAE.WithLabelValues(ticker, h, split).Set(mae)
	r.modelRMSE.WithLabelValues(ticker, h, split).Set(rmse)
}
