package server

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"CollarPulse/internal/usecase"
	pkgch "CollarPulse/pkg/clickhouse"
	"CollarPulse/pkg/config"
	xhttp "CollarPulse/pkg/http"
	pkgkafka "CollarPulse/pkg/kafka"
	applogger "CollarPulse/pkg/logger"
	"CollarPulse/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg           *config.Config
	collector     *usecase.TelemetryCollector
	consumer      *pkgkafka.Consumer
	kh            pkgkafka.MessageHandler
	chClient      *pkgch.Client
	feedbackQueue *queue.RedisQueue
	httpServer    *xhttp.Server
	httpHandler   xhttp.Handler
	TelemetryProc *usecase.TelemetryProcessor
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	collector *usecase.TelemetryCollector,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:       cfg,
		collector: collector,
		consumer:  consumer,
		kh:        kh,
		chClient:  chClient,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// SetFeedbackQueue allows DI to inject the feedback intake queue.
func (a *App) SetFeedbackQueue(q *queue.RedisQueue) { a.feedbackQueue = q }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// init app logger (console info by default)
	l, _ := applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// Start collector
	go func() {
		if err := a.collector.Start(ctx); err != nil {
			l.Error("collector error", applogger.Error(err))
		}
	}()
	l.Info("collector started", applogger.Strings("collars", a.cfg.Gateway.CollarIDs))

	// Start consumer if configured
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	// Start feedback intake workers
	if a.feedbackQueue != nil {
		if err := a.feedbackQueue.Start(); err != nil {
			l.Error("feedback queue start error", applogger.Error(err))
		} else {
			l.Info("feedback queue started")
		}
	}

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	l, err := applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})
	if err != nil {
		log.Printf("failed to create logger: %v", err)
		return err
	}
	l.Info("shutting down...")

	// Stop collector (pipeline + stream)
	if err := a.collector.Shutdown(ctx); err != nil {
		l.Warn("collector stop error", applogger.Error(err))
	}

	// Shutdown HTTP server
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	// Stop feedback intake
	if a.feedbackQueue != nil {
		if err := a.feedbackQueue.Stop(ctx); err != nil {
			l.Warn("feedback queue stop error", applogger.Error(err))
		}
	}

	// Stop consumer
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// Close infrastructure clients
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	// Close telemetry processor resources (publisher/storage)
	if a.TelemetryProc != nil {
		a.TelemetryProc.Close()
	}

	l.Info("shutdown complete")
	return nil
}
