// Command train runs the training pipeline from the command line. Bars come
// from the SQLite store, an imported CSV file, or a backfill fetch when the
// store has nothing for the range.
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
	internalrepo "StockCast/internal/repository"
	"StockCast/internal/service/yahoo"
	"StockCast/internal/usecase"
	"StockCast/pkg/config"
	applogger "StockCast/pkg/logger"
	pkgmetrics "StockCast/pkg/metrics"
	pkgsqlite "StockCast/pkg/sqlite"
	"StockCast/pkg/util"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	ticker := flag.String("ticker", "", "ticker to train (default: config ticker)")
	horizons := flag.String("horizons", "", "comma-separated horizons, e.g. 1,5 (default: all)")
	from := flag.String("from", "", "training range start, YYYY-MM-DD")
	to := flag.String("to", "", "training range end, YYYY-MM-DD (default: today)")
	csvPath := flag.String("csv", "", "import date,open,high,low,close,volume rows before training")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Output: cfg.Logger.Output,
	})
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}

	if err := run(cfg, l, *ticker, *horizons, *from, *to, *csvPath); err != nil {
		l.Error("training failed", applogger.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, l *applogger.Logger, ticker, horizonsFlag, fromFlag, toFlag, csvPath string) error {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		ticker = cfg.Data.Ticker
	}

	horizons, err := parseHorizons(horizonsFlag)
	if err != nil {
		return err
	}
	from, err := parseDay("from", fromFlag)
	if err != nil {
		return err
	}
	to, err := parseDay("to", toFlag)
	if err != nil {
		return err
	}

	cli, err := pkgsqlite.NewClient(pkgsqlite.WithPath(cfg.Data.SQLitePath))
	if err != nil {
		return fmt.Errorf("sqlite client: %w", err)
	}
	defer cli.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.InitSchema(ctx, internalrepo.BarSchema()); err != nil {
		return fmt.Errorf("sqlite schema: %w", err)
	}
	store := internalrepo.NewSQLiteBarStore(cli)
	store.SetLogger(l)

	if csvPath != "" {
		bars, err := importCSV(csvPath, ticker)
		if err != nil {
			return err
		}
		n, err := store.UpsertBars(ctx, bars)
		if err != nil {
			return fmt.Errorf("store csv bars: %w", err)
		}
		l.Info("csv imported",
			applogger.String("file", csvPath),
			applogger.String("ticker", ticker),
			applogger.Int("bars", n))
	}

	pipeline := usecase.NewTrainPipeline(
		store,
		yahoo.New(yahoo.WithLogger(l)),
		internalrepo.NewFSModelStore(cfg.Model.Dir),
		pkgmetrics.New(),
		l,
		usecase.TrainSettings{
			Window:       cfg.Model.Window,
			Scaler:       cfg.Model.Scaler,
			HiddenSize:   cfg.Model.HiddenSize,
			Epochs:       cfg.Model.Epochs,
			LearningRate: cfg.Model.LearningRate,
			Patience:     cfg.Model.Patience,
			Seed:         cfg.Model.Seed,
		},
	)

	report, err := pipeline.Train(ctx, ticker, horizons, from, to)
	if err != nil {
		return err
	}

	for h, meta := range report.Results {
		test := meta.Metrics["test"]
		l.Info("artifact written",
			applogger.String("ticker", report.Ticker),
			applogger.Int("horizon", h),
			applogger.Int("epochs", meta.EpochsRun),
			applogger.Int("train_windows", meta.Metrics["train"].Windows),
			applogger.Float64("test_rmse", test.RMSE),
			applogger.Float64("test_mape", test.MAPE))
	}
	for h, msg := range report.Errors {
		l.Warn("horizon failed",
			applogger.String("horizon", h),
			applogger.String("error", msg))
	}
	l.Info("training complete",
		applogger.String("ticker", report.Ticker),
		applogger.Int("models", len(report.Results)),
		applogger.Int64("duration_ms", report.DurationMS))
	return nil
}

func parseHorizons(s string) ([]domrepo.Horizon, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	hs := make([]domrepo.Horizon, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("horizon %q: %w", p, err)
		}
		h := domrepo.Horizon(n)
		if !domrepo.IsValidHorizon(h) {
			return nil, fmt.Errorf("horizon %d: %w", n, models.ErrUnsupportedHorizon)
		}
		hs = append(hs, h)
	}
	return hs, nil
}

func parseDay(name, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, ok := util.ParseDate(s)
	if !ok {
		return time.Time{}, fmt.Errorf("-%s: invalid date %q, want YYYY-MM-DD", name, s)
	}
	return t, nil
}

// importCSV reads date,open,high,low,close,volume rows. A first row whose
// date column does not parse is treated as a header and skipped.
func importCSV(path, ticker string) ([]models.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 6
	r.TrimLeadingSpace = true

	var bars []models.Bar
	row := 0
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		row++
		day, ok := util.ParseDate(rec[0])
		if !ok {
			if row == 1 {
				continue
			}
			return nil, fmt.Errorf("%s row %d: invalid date %q, want YYYY-MM-DD", path, row, rec[0])
		}
		var vals [5]float64
		for i := range vals {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[i+1]), 64)
			if err != nil {
				return nil, fmt.Errorf("%s row %d column %d: %w", path, row, i+2, err)
			}
			vals[i] = v
		}
		bars = append(bars, models.Bar{
			Date:   day,
			Ticker: ticker,
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s: no data rows", path)
	}
	return bars, nil
}
