package wire

import (
	"io"
	"log/slog"

	"github.com/google/wire"

	"github.com/sevigo/archnet/internal/app"
	"github.com/sevigo/archnet/internal/auth"
	"github.com/sevigo/archnet/internal/billing"
	"github.com/sevigo/archnet/internal/config"
	"github.com/sevigo/archnet/internal/core"
	"github.com/sevigo/archnet/internal/db"
	"github.com/sevigo/archnet/internal/jobs"
	"github.com/sevigo/archnet/internal/logger"
	"github.com/sevigo/archnet/internal/scorer"
	"github.com/sevigo/archnet/internal/server"
	"github.com/sevigo/archnet/internal/storage"
)

var AppSet = wire.NewSet(
	app.NewApp,
	server.NewServer,
	wire.Struct(new(server.Services), "*"),
	config.LoadConfig,
	scorer.New,
	jobs.NewExecutor,
	jobs.NewDispatcher,
	auth.NewService,
	billing.NewService,
	billing.NewGateway,
	billing.NewWebhookVerifier,
	provideStore,
	provideLoggerConfig,
	provideLogWriter,
	provideSlogLogger,
	provideDBConfig,
	provideJobsConfig,
	provideScorerConfig,
	provideAuthConfig,
	provideBillingConfig,
	wire.Bind(new(core.Scorer), new(*scorer.Scorer)),
	wire.Bind(new(core.Executor), new(*jobs.Executor)),
	wire.Bind(new(storage.JobStore), new(storage.Store)),
	wire.Bind(new(storage.Ledger), new(storage.Store)),
)

// provideStore opens the configured store. The memory driver keeps
// everything in process and is meant for local runs and demos.
func provideStore(cfg *config.DBConfig, logger *slog.Logger) (storage.Store, func(), error) {
	if cfg.Driver == config.StoreDriverMemory {
		logger.Warn("using in-memory store, data is lost on restart")
		return storage.NewMemoryStore(), func() {}, nil
	}

	conn, cleanup, err := db.NewDatabase(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return storage.NewStore(conn.DB), cleanup, nil
}

func provideLoggerConfig(cfg *config.Config) logger.Config {
	return cfg.Logging
}

func provideLogWriter(cfg *config.Config) io.Writer {
	return logger.Writer(cfg.Logging)
}

func provideSlogLogger(loggerConfig logger.Config, writer io.Writer) *slog.Logger {
	return logger.NewLogger(loggerConfig, writer)
}

func provideDBConfig(cfg *config.Config) *config.DBConfig {
	return &cfg.Database
}

func provideJobsConfig(cfg *config.Config) *config.JobsConfig {
	return &cfg.Jobs
}

func provideScorerConfig(cfg *config.Config) *config.ScorerConfig {
	return &cfg.Scorer
}

func provideAuthConfig(cfg *config.Config) *config.AuthConfig {
	return &cfg.Auth
}

func provideBillingConfig(cfg *config.Config) *config.BillingConfig {
	return &cfg.Billing
}
