package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"MarketForge/internal/domain/repository"
	"MarketForge/internal/handler/api"
	"MarketForge/internal/usecase"
	pkgch "MarketForge/pkg/clickhouse"
	"MarketForge/pkg/config"
	xhttp "MarketForge/pkg/http"
	pkgkafka "MarketForge/pkg/kafka"
	applogger "MarketForge/pkg/logger"
	"MarketForge/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	handler    *api.PipelineHandler
	hub        *api.LiveHub
	runQueue   *queue.MemoryQueue
	consumer   *pkgkafka.Consumer
	kh         *usecase.KafkaBarsHandler
	chClient   *pkgch.Client
	publisher  repository.Publisher
	httpServer *xhttp.Server
	l          *applogger.Logger
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	handler *api.PipelineHandler,
	hub *api.LiveHub,
	runQueue *queue.MemoryQueue,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaBarsHandler,
	chClient *pkgch.Client,
	publisher repository.Publisher,
	l *applogger.Logger,
) *App {
	return &App{
		cfg:       cfg,
		handler:   handler,
		hub:       hub,
		runQueue:  runQueue,
		consumer:  consumer,
		kh:        kh,
		chClient:  chClient,
		publisher: publisher,
		l:         l,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.runQueue.Start(); err != nil {
		a.l.Error("run queue start error", applogger.Error(err))
		return err
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	a.l.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}
	a.hub.Close()

	// Drain the queue before touching storage: an in-flight run must finish
	// or time out before its stores are closed.
	if err := a.runQueue.Stop(shutdownCtx); err != nil {
		a.l.Warn("run queue stop error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.l.Warn("publisher close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
