package yahoo

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
	xhttp "StockCast/pkg/http"
	applogger "StockCast/pkg/logger"
	"StockCast/pkg/util"
)

const defaultBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// Option configures Client.
type Option func(*Client)

// WithBaseURL overrides the chart API endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithUserAgent sets the User-Agent header sent to the API.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger injects a structured logger.
func WithLogger(l *applogger.Logger) Option {
	return func(c *Client) { c.l = l }
}

// Client implements a BarSource backed by the Yahoo Finance chart API.
type Client struct {
	baseURL   string
	userAgent string
	timeout   time.Duration
	http      *xhttp.Client
	l         *applogger.Logger
}

// New creates a new Yahoo BarSource.
func New(opts ...Option) domrepo.BarSource {
	c := &Client{
		baseURL:   defaultBaseURL,
		userAgent: "Mozilla/5.0",
		timeout:   30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http = xhttp.NewClient(xhttp.WithTimeout(c.timeout))
	return c
}

// chartResponse is the chart API payload. Quote arrays carry null for
// holidays and halted days.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchDailyBars pulls daily bars for [from, to] inclusive. Null bars are
// dropped; the result is ascending by date.
func (c *Client) FetchDailyBars(ctx context.Context, ticker string, from, to time.Time) ([]models.Bar, error) {
	start := time.Now()

	var chart chartResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/" + url.PathEscape(ticker),
		Headers: map[string]string{
			"User-Agent": c.userAgent,
		},
		QueryParams: map[string][]string{
			"interval": {"1d"},
			"period1":  {strconv.FormatInt(util.DayStart(from).Unix(), 10)},
			"period2":  {strconv.FormatInt(util.DayStart(to).AddDate(0, 0, 1).Unix(), 10)},
		},
	}, &chart)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}

	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo: no data for %s", ticker)
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	bars := make([]models.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Open) || i >= len(quote.High) || i >= len(quote.Low) || i >= len(quote.Close) {
			break
		}
		// skip null bars (holidays etc.)
		if quote.Open[i] == nil || quote.High[i] == nil || quote.Low[i] == nil || quote.Close[i] == nil {
			continue
		}
		vol := 0.0
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			vol = *quote.Volume[i]
		}
		bars = append(bars, models.Bar{
			Date:   util.DayStart(time.Unix(ts, 0)),
			Ticker: strings.ToUpper(ticker),
			Open:   *quote.Open[i],
			High:   *quote.High[i],
			Low:    *quote.Low[i],
			Close:  *quote.Close[i],
			Volume: vol,
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })

	if c.l != nil {
		c.l.Info("yahoo daily bars fetched",
			applogger.String("ticker", ticker),
			applogger.Int("bars", len(bars)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return bars, nil
}
