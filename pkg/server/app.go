package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"FuturesHist/pkg/config"
	xhttp "FuturesHist/pkg/http"
	pkgkafka "FuturesHist/pkg/kafka"
	applogger "FuturesHist/pkg/logger"
)

// Runner is a background component started and stopped with the app.
type Runner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// App encapsulates the service lifecycle: HTTP API, job workers and the
// Kafka ingest consumer.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	httpServer *xhttp.Server
	queue      Runner
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, httpServer *xhttp.Server) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{cfg: cfg, logger: l, httpServer: httpServer}
}

// SetQueue attaches the job queue workers.
func (a *App) SetQueue(q Runner) { a.queue = q }

// SetConsumer attaches the Kafka consumer and its handler.
func (a *App) SetConsumer(c *pkgkafka.Consumer, h pkgkafka.MessageHandler) {
	a.consumer = c
	a.kh = h
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	a.logger.Info("shutdown signal received")
	return a.Shutdown(context.Background())
}

// Start launches every configured component without blocking.
func (a *App) Start(ctx context.Context) error {
	if a.queue != nil {
		if err := a.queue.Start(ctx); err != nil {
			a.logger.Error("job queue start error", applogger.Error(err))
			return err
		}
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(ctx); err != nil {
			a.logger.Error("kafka consumer start error", applogger.Error(err))
			return err
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}
	a.logger.Info("service started",
		applogger.String("env", a.cfg.Environment),
		applogger.String("sink", a.cfg.Sink.Type),
		applogger.String("checkpoint", a.cfg.Checkpoint.Type),
		applogger.Bool("queue", a.queue != nil),
		applogger.Bool("consumer", a.consumer != nil))
	return nil
}

// Shutdown stops the HTTP server first so no new jobs arrive, then the
// workers and the consumer.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.httpServer.ShutdownTimeout())
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}
	if a.queue != nil {
		if err := a.queue.Stop(shutdownCtx); err != nil {
			a.logger.Warn("job queue stop error", applogger.Error(err))
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.logger.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	a.logger.Info("shutdown complete")
	return nil
}
