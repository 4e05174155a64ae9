// Package server exposes the subscription and operational HTTP API.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"garden-notifier/pkg/notifier"
	"garden-notifier/registry"
)

// Mailer sends the lifecycle emails the API triggers.
type Mailer interface {
	SendVerification(ctx context.Context, to, token string) error
	SendWelcome(ctx context.Context, sub *notifier.Subscription) error
}

// CatalogService is the catalog surface the API needs.
type CatalogService interface {
	Loaded() bool
	Refresh(ctx context.Context) error
}

// Server wires the registry, mailer, and catalog behind an HTTP router.
type Server struct {
	registry *registry.Registry
	mailer   Mailer
	catalog  CatalogService
	logger   *slog.Logger
	router   *chi.Mux
}

// New creates the server and its router.
func New(reg *registry.Registry, mailer Mailer, cat CatalogService, logger *slog.Logger) *Server {
	s := &Server{
		registry: reg,
		mailer:   mailer,
		catalog:  cat,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(Recovery(logger))
	r.Use(RequestID)
	r.Use(Logging(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Post("/subscribe", s.handleSubscribe)
	r.Get("/verify", s.handleVerify)
	r.Post("/confirm", s.handleConfirm)
	r.Get("/unsubscribe", s.handleUnsubscribe)
	r.Post("/unsubscribe", s.handleUnsubscribe)
	r.Post("/catalog/refresh", s.handleCatalogRefresh)
	r.Get("/healthz", s.handleHealth)

	s.router = r
	return s
}

// Handler returns the root handler for http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}
