package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
	domsvc "StockCast/internal/domain/service"
	icache "StockCast/internal/service/cache"
	"StockCast/internal/service/metrics"
	"StockCast/internal/service/ratelimit"
	"StockCast/internal/usecase"
	xhttp "StockCast/pkg/http"
	applogger "StockCast/pkg/logger"
	"StockCast/pkg/queue"
	"StockCast/pkg/util"

	"github.com/labstack/echo/v4"
)

// Forecaster is the slice of the forecast usecase the API needs.
type Forecaster interface {
	Forecast(ctx context.Context, p usecase.PredictParams) (*models.Forecast, error)
	Metadata(ctx context.Context, ticker string) ([]models.ModelMetadata, error)
}

// ForecastHandler exposes the forecasting API over Echo.
type ForecastHandler struct {
	l        *applogger.Logger
	fc       Forecaster
	summary  *usecase.ForecastSummaryUseCase
	bars     *usecase.BarsUseCase
	trainer  domsvc.Trainer
	barStore domrepo.BarStore

	// Optional collaborators. Without a queue, train requests run inline;
	// without a cache every request hits the model.
	q     queue.QueueService
	cache icache.BytesCache
	rl    *ratelimit.Limiter

	defaultTicker string
}

func NewForecastHandler(
	l *applogger.Logger,
	fc Forecaster,
	summary *usecase.ForecastSummaryUseCase,
	bars *usecase.BarsUseCase,
	trainer domsvc.Trainer,
	barStore domrepo.BarStore,
	defaultTicker string,
) *ForecastHandler {
	metrics.Register()
	return &ForecastHandler{
		l:             l,
		fc:            fc,
		summary:       summary,
		bars:          bars,
		trainer:       trainer,
		barStore:      barStore,
		rl:            ratelimit.New(),
		defaultTicker: strings.ToUpper(strings.TrimSpace(defaultTicker)),
	}
}

// SetCache injects a response cache.
func (h *ForecastHandler) SetCache(c icache.BytesCache) { h.cache = c }

// SetQueue injects a job queue for asynchronous training.
func (h *ForecastHandler) SetQueue(q queue.QueueService) { h.q = q }

func (h *ForecastHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	g := e.Group("/api/v1")
	g.POST("/predict", h.Predict)
	g.GET("/metadata", h.Metadata)
	g.GET("/forecast/summary", h.Summary)
	g.GET("/candles", h.Candles)
	g.POST("/models/train", h.Train)
}

// Health reports whether the bar store is reachable, how many trained models
// are loadable for the default ticker and which cache backs responses. Unlike
// the API routes this endpoint uses real HTTP status codes so probes can act
// on them.
func (h *ForecastHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if err := h.barStore.Health(ctx); err != nil {
		if h.l != nil {
			h.l.Error("api.health store unreachable", applogger.Error(err))
		}
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"error":  err.Error(),
		})
	}

	loaded := 0
	if metas, err := h.fc.Metadata(ctx, h.defaultTicker); err == nil {
		loaded = len(metas)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "ok",
		"models": loaded,
		"cache":  h.cacheStatus(),
	})
}

func (h *ForecastHandler) cacheStatus() string {
	switch h.cache.(type) {
	case *icache.RedisCache:
		return "redis"
	case *icache.TTLCache:
		return "memory"
	case nil:
		return "off"
	default:
		return "on"
	}
}

func (h *ForecastHandler) Predict(c echo.Context) error {
	start := time.Now()
	endpoint := "predict"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ticker := h.resolveTicker(req.Ticker)
	if ticker == "" {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("ticker is required"))
	}
	if !h.allow(c, endpoint, 10, 5) {
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limited")
	}

	history, err := historyBars(ticker, req.History)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	// Client-supplied history makes the response request-specific, so only
	// store-backed predictions are cached. The key carries the store's last
	// date; a refresh changes the key.
	cacheKey := ""
	if len(history) == 0 && h.cache != nil {
		if last, ok, err := h.barStore.LastDate(c.Request().Context(), ticker); err == nil && ok {
			cacheKey = "predict:" + ticker + ":" + strconv.Itoa(req.Horizon) + ":" + util.FormatDate(last)
			if b, ok := h.cacheGet(endpoint, cacheKey); ok {
				return xhttp.SuccessResponse(c, b)
			}
		}
	}

	res, err := h.fc.Forecast(c.Request().Context(), usecase.PredictParams{
		Ticker:  ticker,
		Horizon: domrepo.Horizon(req.Horizon),
		Window:  req.Window,
		History: history,
	})
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		if h.l != nil {
			h.l.Error("api.predict error", applogger.String("ticker", ticker), applogger.Error(err))
		}
		return xhttp.AppErrorResponse(c, mapDomainErr(err))
	}
	if cacheKey != "" {
		h.cacheSet(endpoint, cacheKey, res, 30*time.Second)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ForecastHandler) Metadata(c echo.Context) error {
	start := time.Now()
	endpoint := "metadata"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.MetadataRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ticker := h.resolveTicker(req.Ticker)
	if ticker == "" {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("ticker is required"))
	}
	if !h.allow(c, endpoint, 10, 5) {
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limited")
	}

	metas, err := h.fc.Metadata(c.Request().Context(), ticker)
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		if h.l != nil {
			h.l.Error("api.metadata error", applogger.String("ticker", ticker), applogger.Error(err))
		}
		return xhttp.AppErrorResponse(c, mapDomainErr(err))
	}
	if len(metas) == 0 {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no trained models for %s", ticker))
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"ticker": ticker,
		"models": metas,
	})
}

func (h *ForecastHandler) Summary(c echo.Context) error {
	start := time.Now()
	endpoint := "summary"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.SummaryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ticker := h.resolveTicker(req.Ticker)
	if ticker == "" {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("ticker is required"))
	}
	if !h.allow(c, endpoint, 5, 2) {
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limited")
	}

	cacheKey := "summary:" + ticker
	if b, ok := h.cacheGet(endpoint, cacheKey); ok {
		return xhttp.SuccessResponse(c, b)
	}

	res, err := h.summary.GetSummary(c.Request().Context(), ticker)
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		if h.l != nil {
			h.l.Error("api.summary error", applogger.String("ticker", ticker), applogger.Error(err))
		}
		return xhttp.AppErrorResponse(c, mapDomainErr(err))
	}
	h.cacheSet(endpoint, cacheKey, res, 30*time.Second)
	return xhttp.SuccessResponse(c, res)
}

type candleRow struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

type candlesResponse struct {
	Ticker string      `json:"ticker"`
	From   string      `json:"from,omitempty"`
	To     string      `json:"to,omitempty"`
	Count  int         `json:"count"`
	Rows   []candleRow `json:"rows"`
}

func (h *ForecastHandler) Candles(c echo.Context) error {
	start := time.Now()
	endpoint := "candles"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.BarsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ticker := h.resolveTicker(req.Ticker)
	if ticker == "" {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("ticker is required"))
	}
	from, ok := parseDay(req.From)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("invalid from date %q, want YYYY-MM-DD", req.From))
	}
	to, ok := parseDay(req.To)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("invalid to date %q, want YYYY-MM-DD", req.To))
	}
	if !h.allow(c, endpoint, 20, 10) {
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limited")
	}

	cacheKey := "candles:" + ticker + ":" + req.From + ":" + req.To + ":" + strconv.Itoa(req.Limit)
	if b, ok := h.cacheGet(endpoint, cacheKey); ok {
		return xhttp.SuccessResponse(c, b)
	}

	res, err := h.bars.GetBars(c.Request().Context(), usecase.GetBarsParams{
		Ticker: ticker,
		From:   from,
		To:     to,
		Limit:  req.Limit,
	})
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		if h.l != nil {
			h.l.Error("api.candles error", applogger.String("ticker", ticker), applogger.Error(err))
		}
		return xhttp.AppErrorResponse(c, mapDomainErr(err))
	}

	out := &candlesResponse{
		Ticker: res.Ticker,
		Count:  res.Count,
		Rows:   make([]candleRow, 0, len(res.Bars)),
	}
	if res.Count > 0 {
		out.From = util.FormatDate(res.From)
		out.To = util.FormatDate(res.To)
	}
	for _, b := range res.Bars {
		out.Rows = append(out.Rows, candleRow{
			Date:   util.FormatDate(b.Date),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		})
	}
	h.cacheSet(endpoint, cacheKey, out, 60*time.Second)
	return xhttp.SuccessResponse(c, out)
}

func (h *ForecastHandler) Train(c echo.Context) error {
	start := time.Now()
	endpoint := "train"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.TrainRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ticker := h.resolveTicker(req.Ticker)
	if ticker == "" {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("ticker is required"))
	}
	from, ok := parseDay(req.From)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("invalid from date %q, want YYYY-MM-DD", req.From))
	}
	to, ok := parseDay(req.To)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("invalid to date %q, want YYYY-MM-DD", req.To))
	}
	if !h.allow(c, endpoint, 2, 0.2) {
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limited")
	}

	if h.q != nil {
		payload := usecase.TrainJobPayload{
			Ticker:   ticker,
			Horizons: req.Horizons,
			From:     req.From,
			To:       req.To,
		}
		id, err := h.q.PublishMessage(c.Request().Context(), usecase.JobTypeTrainModel, payload)
		if err != nil {
			metrics.APIErrors.WithLabelValues(endpoint).Inc()
			if h.l != nil {
				h.l.Error("api.train enqueue error", applogger.String("ticker", ticker), applogger.Error(err))
			}
			return xhttp.AppErrorResponse(c, err)
		}
		if h.l != nil {
			h.l.Info("api.train queued", applogger.String("ticker", ticker), applogger.String("job_id", id))
		}
		return xhttp.DataResponse(c, http.StatusAccepted, map[string]interface{}{
			"status":   "queued",
			"job_id":   id,
			"ticker":   ticker,
			"horizons": req.Horizons,
		})
	}

	horizons := make([]domrepo.Horizon, 0, len(req.Horizons))
	for _, n := range req.Horizons {
		horizons = append(horizons, domrepo.Horizon(n))
	}
	report, err := h.trainer.Train(c.Request().Context(), ticker, horizons, from, to)
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		if h.l != nil {
			h.l.Error("api.train error", applogger.String("ticker", ticker), applogger.Error(err))
		}
		return xhttp.AppErrorResponse(c, mapDomainErr(err))
	}
	return xhttp.SuccessResponse(c, report)
}

// resolveTicker applies the configured default when the request omits one.
func (h *ForecastHandler) resolveTicker(raw string) string {
	t := strings.ToUpper(strings.TrimSpace(raw))
	if t == "" {
		return h.defaultTicker
	}
	return t
}

func (h *ForecastHandler) allow(c echo.Context, endpoint string, capacity, refillPerSec float64) bool {
	if h.rl.Allow(c.RealIP()+":"+endpoint, capacity, refillPerSec) {
		return true
	}
	if h.l != nil {
		h.l.Warn("api."+endpoint+" rate_limited", applogger.String("remote", c.RealIP()))
	}
	return false
}

func (h *ForecastHandler) cacheGet(endpoint, key string) (json.RawMessage, bool) {
	if h.cache == nil {
		return nil, false
	}
	b, ok, err := h.cache.GetBytes(key)
	if err != nil {
		if h.l != nil {
			h.l.Warn("api."+endpoint+" cache_get_error", applogger.Error(err))
		}
		return nil, false
	}
	if !ok {
		if h.l != nil {
			h.l.Debug("api."+endpoint+" cache_miss", applogger.String("key", key))
		}
		return nil, false
	}
	metrics.CacheHits.WithLabelValues(endpoint).Inc()
	if h.l != nil {
		h.l.Debug("api."+endpoint+" cache_hit", applogger.String("key", key))
	}
	return json.RawMessage(b), true
}

func (h *ForecastHandler) cacheSet(endpoint, key string, v interface{}, ttl time.Duration) {
	if h.cache == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := h.cache.SetBytes(key, b, ttl); err != nil && h.l != nil {
		h.l.Warn("api."+endpoint+" cache_set_error", applogger.Error(err))
	}
}

// historyBars converts client-sent rows into domain bars. Ordering and field
// validity are enforced downstream by the series constructor.
func historyBars(ticker string, rows []models.BarPayload) ([]models.Bar, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	bars := make([]models.Bar, 0, len(rows))
	for i, r := range rows {
		day, ok := util.ParseDate(r.Date)
		if !ok {
			return nil, xhttp.BadRequestErrorf("history[%d]: invalid date %q, want YYYY-MM-DD", i, r.Date)
		}
		bars = append(bars, models.Bar{
			Date:   day,
			Ticker: ticker,
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		})
	}
	return bars, nil
}

// parseDay parses an optional YYYY-MM-DD value. Empty input is fine and
// yields the zero time.
func parseDay(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, true
	}
	return util.ParseDate(s)
}

// mapDomainErr turns pipeline sentinels into transport errors. Anything
// unrecognized falls through and surfaces as a 500.
func mapDomainErr(err error) error {
	switch {
	case errors.Is(err, models.ErrUnsupportedHorizon):
		return xhttp.NotFoundError(err.Error())
	case errors.Is(err, models.ErrInsufficientHistory),
		errors.Is(err, models.ErrInsufficientData),
		errors.Is(err, models.ErrShapeMismatch),
		errors.Is(err, models.ErrDataIntegrity):
		return xhttp.BadRequestError(err.Error())
	default:
		return err
	}
}
