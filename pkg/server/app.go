package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"StockCast/internal/scheduler"
	"StockCast/pkg/config"
	xhttp "StockCast/pkg/http"
	applogger "StockCast/pkg/logger"
	"StockCast/pkg/queue"
	pkgsqlite "StockCast/pkg/sqlite"

	"github.com/redis/go-redis/v9"
)

// App encapsulates the entire application lifecycle: queue workers,
// scheduler, HTTP server and the clients they share.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	handler    xhttp.Handler
	httpServer *xhttp.Server
	sched      *scheduler.Scheduler
	q          *queue.RedisQueue
	sqlite     *pkgsqlite.Client
	redis      *redis.Client
}

// New creates a new App instance with all dependencies. Scheduler, queue
// and redis may be nil when disabled by config.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	handler xhttp.Handler,
	sched *scheduler.Scheduler,
	q *queue.RedisQueue,
	sqliteCli *pkgsqlite.Client,
	redisCli *redis.Client,
) *App {
	return &App{
		cfg:     cfg,
		l:       l,
		handler: handler,
		sched:   sched,
		q:       q,
		sqlite:  sqliteCli,
		redis:   redisCli,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	// Queue workers come up before the scheduler so enqueued jobs have
	// consumers from the first tick.
	if a.q != nil {
		if err := a.q.Start(); err != nil {
			return fmt.Errorf("queue start: %w", err)
		}
	}
	if a.sched != nil {
		a.sched.Start()
	}

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithHost(a.cfg.Server.Host),
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(a.cfg.Server.CORS),
		xhttp.WithLogger(a.l),
	)
	if err := a.httpServer.Start(); err != nil {
		return fmt.Errorf("http start: %w", err)
	}
	a.l.Info("stockcast started",
		applogger.String("env", a.cfg.Environment),
		applogger.String("ticker", a.cfg.Data.Ticker),
		applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown gracefully stops all services in reverse start order.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
		}
	}
	if a.sched != nil {
		if err := a.sched.Stop(ctx); err != nil {
			a.l.Warn("scheduler stop error", applogger.Error(err))
		}
	}
	if a.q != nil {
		if err := a.q.Stop(ctx); err != nil {
			a.l.Warn("queue stop error", applogger.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.l.Warn("redis close error", applogger.Error(err))
		}
	}
	if a.sqlite != nil {
		if err := a.sqlite.Close(); err != nil {
			a.l.Warn("sqlite close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
