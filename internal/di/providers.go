package di

import (
	"context"
	"fmt"
	"time"

	domrepo "StockCast/internal/domain/repository"
	domsvc "StockCast/internal/domain/service"
	"StockCast/internal/handler/api"
	internalrepo "StockCast/internal/repository"
	"StockCast/internal/scheduler"
	icache "StockCast/internal/service/cache"
	"StockCast/internal/service/yahoo"
	"StockCast/internal/usecase"
	"StockCast/pkg/config"
	xhttp "StockCast/pkg/http"
	applogger "StockCast/pkg/logger"
	pkgmetrics "StockCast/pkg/metrics"
	"StockCast/pkg/queue"
	"StockCast/pkg/server"
	pkgsqlite "StockCast/pkg/sqlite"

	"github.com/redis/go-redis/v9"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Output: cfg.Logger.Output,
	})
}

// ProvideSQLiteClient opens the bar database and ensures the schema.
func ProvideSQLiteClient(cfg *config.Config) (*pkgsqlite.Client, error) {
	cli, err := pkgsqlite.NewClient(pkgsqlite.WithPath(cfg.Data.SQLitePath))
	if err != nil {
		return nil, fmt.Errorf("sqlite client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := cli.InitSchema(ctx, internalrepo.BarSchema()); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return cli, nil
}

// ProvideBarStore creates the SQLite-backed bar store.
func ProvideBarStore(cli *pkgsqlite.Client, l *applogger.Logger) domrepo.BarStore {
	s := internalrepo.NewSQLiteBarStore(cli)
	s.SetLogger(l)
	return s
}

// ProvideModelStore creates the filesystem model artifact store.
func ProvideModelStore(cfg *config.Config) domrepo.ModelStore {
	return internalrepo.NewFSModelStore(cfg.Model.Dir)
}

// ProvideBarSource creates the Yahoo daily bar source.
func ProvideBarSource(l *applogger.Logger) domrepo.BarSource {
	return yahoo.New(yahoo.WithLogger(l))
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return pkgmetrics.New()
}

// ProvideTrainSettings maps model config onto pipeline settings.
func ProvideTrainSettings(cfg *config.Config) usecase.TrainSettings {
	return usecase.TrainSettings{
		Window:       cfg.Model.Window,
		Scaler:       cfg.Model.Scaler,
		HiddenSize:   cfg.Model.HiddenSize,
		Epochs:       cfg.Model.Epochs,
		LearningRate: cfg.Model.LearningRate,
		Patience:     cfg.Model.Patience,
		Seed:         cfg.Model.Seed,
	}
}

// ProvideTrainPipeline creates the training pipeline use case. Successful runs
// flush the forecast engine cache so new artifacts serve immediately.
func ProvideTrainPipeline(
	bars domrepo.BarStore,
	source domrepo.BarSource,
	store domrepo.ModelStore,
	metrics domrepo.Metrics,
	l *applogger.Logger,
	set usecase.TrainSettings,
	fc *usecase.ForecastUseCase,
) *usecase.TrainPipeline {
	p := usecase.NewTrainPipeline(bars, source, store, metrics, l, set)
	p.SetInvalidator(fc)
	return p
}

// ProvideForecastUseCase creates the forecast use case.
func ProvideForecastUseCase(store domrepo.ModelStore, bars domrepo.BarStore, metrics domrepo.Metrics) *usecase.ForecastUseCase {
	return usecase.NewForecastUseCase(store, bars, metrics)
}

// ProvideSummaryUseCase creates the multi-horizon summary use case.
func ProvideSummaryUseCase(fc domsvc.Forecaster) *usecase.ForecastSummaryUseCase {
	return usecase.NewForecastSummaryUseCase(fc)
}

// ProvideBarsUseCase creates the candle retrieval use case.
func ProvideBarsUseCase(bars domrepo.BarStore) *usecase.BarsUseCase {
	return usecase.NewBarsUseCase(bars)
}

// ProvideRefreshUseCase creates the history refresh use case.
func ProvideRefreshUseCase(
	cfg *config.Config,
	bars domrepo.BarStore,
	source domrepo.BarSource,
	metrics domrepo.Metrics,
	l *applogger.Logger,
) *usecase.HistoryRefreshUseCase {
	return usecase.NewHistoryRefreshUseCase(bars, source, metrics, l, cfg.Data.Provider, cfg.StartDay())
}

// ProvideRedisClient creates a shared Redis client, or nil when disabled.
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ProvideQueue creates the Redis job queue with training and refresh jobs
// registered, or nil when Redis is disabled.
func ProvideQueue(
	cfg *config.Config,
	l *applogger.Logger,
	cli *redis.Client,
	trainer domsvc.Trainer,
	refresher domsvc.HistoryRefresher,
) *queue.RedisQueue {
	if cli == nil {
		return nil
	}
	q := queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		QueueSize:  cfg.Queue.QueueSize,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, cli, queue.ModeProducerConsumer)
	q.RegisterJobs([]queue.Job{
		usecase.NewTrainModelJob(trainer, l),
		usecase.NewRefreshHistoryJob(refresher, l),
	})
	return q
}

// ProvideHandler assembles the API handler with its cache and queue.
func ProvideHandler(
	cfg *config.Config,
	l *applogger.Logger,
	fc *usecase.ForecastUseCase,
	summary *usecase.ForecastSummaryUseCase,
	bars *usecase.BarsUseCase,
	trainer domsvc.Trainer,
	barStore domrepo.BarStore,
	q *queue.RedisQueue,
	redisCli *redis.Client,
) xhttp.Handler {
	h := api.NewForecastHandler(l, fc, summary, bars, trainer, barStore, cfg.Data.Ticker)
	if redisCli != nil {
		h.SetCache(icache.NewRedisCache(redisCli))
	} else {
		h.SetCache(icache.NewTTLCache())
	}
	if q != nil {
		h.SetQueue(q)
	}
	return h
}

// ProvideScheduler creates the cron scheduler, or nil when disabled.
func ProvideScheduler(
	cfg *config.Config,
	l *applogger.Logger,
	refresher domsvc.HistoryRefresher,
	trainer domsvc.Trainer,
	q *queue.RedisQueue,
) (*scheduler.Scheduler, error) {
	if !cfg.Scheduler.Enabled {
		return nil, nil
	}
	s := scheduler.New(l, refresher, trainer)
	if q != nil {
		s.SetQueue(q)
	}
	if err := s.Schedule(scheduler.Config{
		Ticker:      cfg.Data.Ticker,
		RefreshSpec: cfg.Scheduler.RefreshSpec,
		TrainSpec:   cfg.Scheduler.TrainSpec,
	}); err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	return s, nil
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler xhttp.Handler,
	sched *scheduler.Scheduler,
	q *queue.RedisQueue,
	sqliteCli *pkgsqlite.Client,
	redisCli *redis.Client,
) *server.App {
	return server.New(cfg, l, handler, sched, q, sqliteCli, redisCli)
}
