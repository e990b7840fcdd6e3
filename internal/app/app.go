// Package app initializes and orchestrates the main components of the archnet
// service. It wires together the configuration, server, and background workers.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/sevigo/archnet/internal/auth"
	"github.com/sevigo/archnet/internal/billing"
	"github.com/sevigo/archnet/internal/config"
	"github.com/sevigo/archnet/internal/jobs"
	"github.com/sevigo/archnet/internal/scorer"
	"github.com/sevigo/archnet/internal/server"
	"github.com/sevigo/archnet/internal/storage"
)

// App holds the main application components. The CLI uses the exported
// services directly.
type App struct {
	Cfg        *config.Config
	Store      storage.Store
	Scorer     *scorer.Scorer
	Executor   *jobs.Executor
	Dispatcher *jobs.Dispatcher
	Auth       *auth.Service
	Billing    *billing.Service

	server *server.Server
	logger *slog.Logger
}

// NewApp sets up the application with all its dependencies.
func NewApp(
	cfg *config.Config,
	store storage.Store,
	sc *scorer.Scorer,
	executor *jobs.Executor,
	dispatcher *jobs.Dispatcher,
	authService *auth.Service,
	billingService *billing.Service,
	srv *server.Server,
	logger *slog.Logger,
) *App {
	logger.Info("archnet application initialized",
		"store", cfg.Database.Driver,
		"max_workers", cfg.Jobs.MaxWorkers,
		"datasets", len(sc.Datasets()))

	return &App{
		Cfg:        cfg,
		Store:      store,
		Scorer:     sc,
		Executor:   executor,
		Dispatcher: dispatcher,
		Auth:       authService,
		Billing:    billingService,
		server:     srv,
		logger:     logger,
	}
}

// Start recovers jobs interrupted by a previous run, then serves HTTP and runs
// the stale-job sweep until ctx is cancelled or one of them fails.
func (a *App) Start(ctx context.Context) error {
	a.logger.Info("starting archnet",
		"server_port", a.Cfg.Server.Port,
		"worker_endpoints", a.Cfg.Server.WorkerToken != "")

	if err := a.Executor.Recover(ctx); err != nil {
		return fmt.Errorf("failed to recover jobs: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(a.server.Start)
	g.Go(func() error {
		return a.Executor.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		return a.server.Stop()
	})

	if err := g.Wait(); err != nil {
		a.logger.Error("archnet stopped with errors", "error", err)
		return err
	}
	return nil
}

// Stop waits for queued and in-flight jobs. The HTTP server is shut down by
// Start when its context ends.
func (a *App) Stop() {
	a.logger.Info("shutting down archnet services")
	a.Executor.Stop()
	a.logger.Info("archnet stopped successfully")
}
