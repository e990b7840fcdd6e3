package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sevigo/archnet/internal/auth"
	"github.com/sevigo/archnet/internal/billing"
	"github.com/sevigo/archnet/internal/config"
	"github.com/sevigo/archnet/internal/core"
	"github.com/sevigo/archnet/internal/jobs"
	"github.com/sevigo/archnet/internal/server/handler"
	"github.com/sevigo/archnet/internal/storage"
)

// Services bundles what the HTTP layer calls into.
type Services struct {
	Store      storage.Store
	Scorer     core.Scorer
	Dispatcher *jobs.Dispatcher
	Executor   core.Executor
	Auth       *auth.Service
	Billing    *billing.Service
}

// NewRouter creates and configures a new HTTP router with middleware and API routes.
func NewRouter(cfg *config.Config, svc *Services, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := svc.Store.Ping(ctx); err != nil {
			logger.Error("health check failed", "error", err)
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	account := handler.NewAccountHandler(svc.Auth, svc.Store, logger)
	jobsHandler := handler.NewJobsHandler(svc.Dispatcher, svc.Executor, svc.Store, svc.Scorer, logger)
	billingHandler := handler.NewBillingHandler(svc.Billing, logger)
	callbacks := handler.NewPaymentCallbackHandler(svc.Billing, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", account.Login)
		r.Get("/datasets", jobsHandler.Datasets)
		r.Get("/billing/packages", billingHandler.Packages)
		r.Post("/billing/webhook", callbacks.Webhook)

		r.Group(func(r chi.Router) {
			r.Use(handler.RequireUser(svc.Auth, logger))
			r.Get("/me", account.Me)
			r.Post("/jobs", jobsHandler.Submit)
			r.Get("/jobs", jobsHandler.List)
			r.Get("/jobs/{id}", jobsHandler.Get)
			r.Post("/billing/checkout", billingHandler.Checkout)
		})

		r.Group(func(r chi.Router) {
			r.Use(handler.RequireWorker(cfg.Server.WorkerToken, logger))
			r.Post("/billing/checkout/{reference}/complete", callbacks.Complete)
			r.Post("/internal/jobs/{id}/execute", jobsHandler.Execute)
		})
	})

	return r
}
