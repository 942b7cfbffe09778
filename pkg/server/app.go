package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"Shootdown/pkg/config"
	xhttp "Shootdown/pkg/http"
	pkgkafka "Shootdown/pkg/kafka"
	applogger "Shootdown/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	handler    xhttp.Handler
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies. consumer may be nil.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	handler xhttp.Handler,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
) *App {
	if l == nil {
		l = applogger.NewNop()
	}
	a := &App{
		cfg:      cfg,
		l:        l,
		handler:  handler,
		consumer: consumer,
		kh:       kh,
	}
	a.httpServer = xhttp.NewServer([]xhttp.Handler{handler},
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(a.metricsPath()),
		xhttp.WithLogger(l),
	)
	return a
}

// HTTPServer exposes the HTTP server, e.g. for tests.
func (a *App) HTTPServer() *xhttp.Server { return a.httpServer }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts the application and blocks until ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	if err := a.start(); err != nil {
		return err
	}
	<-ctx.Done()

	a.l.Info("shutdown signal received")
	return a.shutdown(context.WithoutCancel(ctx))
}

func (a *App) start() error {
	// Start consumer if configured
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			a.l.Error("kafka consumer error", applogger.Error(err))
			return err
		}
		a.l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		a.stopConsumer(context.Background())
		return err
	}
	a.l.Info("residual value service started",
		applogger.String("backend", a.cfg.Source.Backend),
		applogger.Int("port", a.cfg.Server.Port),
	)
	return nil
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	a.l.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}

	a.stopConsumer(shutdownCtx)

	a.l.Info("shutdown complete")
	return nil
}

func (a *App) stopConsumer(ctx context.Context) {
	if a.consumer == nil {
		return
	}
	if err := a.consumer.Stop(ctx); err != nil {
		a.l.Warn("kafka consumer stop error", applogger.Error(err))
	}
}

func (a *App) metricsPath() string {
	if !a.cfg.Metrics.Enabled {
		return ""
	}
	return a.cfg.Metrics.Path
}
