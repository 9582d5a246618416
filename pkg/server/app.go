package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	domrepo "github.com/Maiki02/trading-bot-sub000/internal/domain/repository"
	"github.com/Maiki02/trading-bot-sub000/internal/usecase"
	"github.com/Maiki02/trading-bot-sub000/pkg/config"
	xhttp "github.com/Maiki02/trading-bot-sub000/pkg/http"
	"github.com/Maiki02/trading-bot-sub000/pkg/logger"
)

// App encapsulates the application lifecycle: the ingestion engine plus
// the ops HTTP server.
type App struct {
	cfg      *config.Config
	engine   *usecase.Engine
	notifier domrepo.Notifier
	store    domrepo.SignalStore
	cache    domrepo.SnapshotCache
	log      *logger.Logger

	opsServer *xhttp.Server
}

// New creates an App with all dependencies.
func New(
	cfg *config.Config,
	engine *usecase.Engine,
	notifier domrepo.Notifier,
	store domrepo.SignalStore,
	cache domrepo.SnapshotCache,
	log *logger.Logger,
) *App {
	return &App{
		cfg:      cfg,
		engine:   engine,
		notifier: notifier,
		store:    store,
		cache:    cache,
		log:      log,
	}
}

// Run starts everything and blocks until a signal, a fatal stream error,
// or a start failure.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.opsServer = xhttp.NewServer(xhttp.Probes{
		Health: a.store.Health,
		Ready:  a.engine.Ready,
		Stats:  func() interface{} { return a.engine.Snapshot() },
	}, a.log,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	if err := a.opsServer.Start(); err != nil {
		return err
	}
	a.log.Info("ops server listening", logger.Int("port", a.cfg.Server.Port))

	if err := a.engine.Start(ctx); err != nil {
		_ = a.shutdown(ctx)
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.log.Info("shutdown signal received", logger.String("signal", sig.String()))
		return a.shutdown(ctx)
	case err := <-a.engine.Fatal():
		a.log.Error("engine halted on fatal error", logger.Error(err))
		_ = a.shutdown(ctx)
		return err
	}
}

// shutdown stops components in dependency order.
func (a *App) shutdown(ctx context.Context) error {
	a.log.Info("shutting down")

	if err := a.engine.Stop(); err != nil {
		a.log.Warn("engine stop error", logger.Error(err))
	}

	if err := a.opsServer.Stop(ctx); err != nil {
		a.log.Warn("ops server stop error", logger.Error(err))
	}

	if err := a.notifier.Close(); err != nil {
		a.log.Warn("notifier close error", logger.Error(err))
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("signal store close error", logger.Error(err))
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.log.Warn("snapshot cache close error", logger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
