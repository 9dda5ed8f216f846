package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PriceShaper/pkg/config"
	xhttp "PriceShaper/pkg/http"
	pkgkafka "PriceShaper/pkg/kafka"
	applogger "PriceShaper/pkg/logger"
)

// Collector is the live ingest loop started with the app.
type Collector interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	collector  Collector
	consumer   *pkgkafka.Consumer
	handlers   []pkgkafka.MessageHandler
	handler    xhttp.Handler
	httpServer *xhttp.Server
	janitors   []janitor
	workers    []Worker
}

// Worker is a background component with its own start/stop lifecycle.
type Worker interface {
	Start() error
	Stop(ctx context.Context) error
}

type janitor struct {
	name     string
	interval time.Duration
	fn       func()
}

type AppOption func(*App)

// WithConsumer starts c with the given handlers. A nil consumer is ignored.
func WithConsumer(c *pkgkafka.Consumer, handlers ...pkgkafka.MessageHandler) AppOption {
	return func(a *App) {
		if c == nil {
			return
		}
		a.consumer = c
		a.handlers = append(a.handlers, handlers...)
	}
}

// WithWorker starts w with the app and stops it on shutdown.
func WithWorker(w Worker) AppOption {
	return func(a *App) {
		if w != nil {
			a.workers = append(a.workers, w)
		}
	}
}

// WithJanitor runs fn every interval until shutdown.
func WithJanitor(name string, interval time.Duration, fn func()) AppOption {
	return func(a *App) {
		if interval > 0 && fn != nil {
			a.janitors = append(a.janitors, janitor{name: name, interval: interval, fn: fn})
		}
	}
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, collector Collector, handler xhttp.Handler, opts ...AppOption) *App {
	if l == nil {
		l = applogger.Nop()
	}
	a := &App{cfg: cfg, l: l, collector: collector, handler: handler}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts the application and blocks until ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsPath := ""
	if a.cfg.Metrics.Enabled {
		metricsPath = a.cfg.Metrics.Path
	}
	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout),
		xhttp.WithCORS(a.cfg.Server.CORSOrigins...),
		xhttp.WithMetrics(metricsPath, time.Second),
		xhttp.WithLogger(a.l),
	)

	if err := a.collector.Start(runCtx); err != nil {
		// the stream reconnects on its own once reading; a failed first dial is logged, not fatal
		a.l.Error("collector start error", applogger.Error(err))
	} else {
		a.l.Info("collector started", applogger.Strings("symbols", a.cfg.Finnhub.Symbols))
	}

	if a.consumer != nil && len(a.handlers) > 0 {
		for _, h := range a.handlers {
			a.consumer.RegisterHandler(h)
		}
		if err := a.consumer.Start(); err != nil {
			a.l.Error("kafka consumer error", applogger.Error(err))
		} else {
			a.l.Info("kafka consumer started", applogger.Int("handlers", len(a.handlers)))
		}
	}

	for _, w := range a.workers {
		if err := w.Start(); err != nil {
			a.l.Error("worker start error", applogger.Error(err))
		}
	}

	for _, j := range a.janitors {
		go a.runJanitor(runCtx, j)
	}

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}

	<-ctx.Done()
	a.l.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

func (a *App) runJanitor(ctx context.Context, j janitor) {
	t := time.NewTicker(j.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			j.fn()
		}
	}
}

// shutdown stops ingest first, then the HTTP server and the consumer.
// Infrastructure clients are closed by the DI cleanup.
func (a *App) shutdown() error {
	a.l.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.collector.Shutdown(ctx); err != nil {
		a.l.Warn("collector stop error", applogger.Error(err))
	}

	if err := a.httpServer.Stop(ctx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	for _, w := range a.workers {
		if err := w.Stop(ctx); err != nil {
			a.l.Warn("worker stop error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
