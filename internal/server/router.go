package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/ragcore/internal/api"
	"github.com/cloo-solutions/ragcore/internal/api/handlers"
	"github.com/cloo-solutions/ragcore/internal/api/middleware"
)

const DefaultMaxBodyBytes int64 = 5 * 1024 * 1024

type RouterConfig struct {
	// Prefix is prepended to every route except /health.
	Prefix       string
	MaxBodyBytes int64
	Logger       *slog.Logger

	SearchHandler *handlers.SearchHandler
	IndexHandler  *handlers.IndexHandler
	// IngestHandler is optional; without it the ingest routes are not mounted.
	IngestHandler *handlers.IngestHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	maxBodyBytes := cfg.MaxBodyBytes
	if maxBodyBytes == 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "/"
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog(cfg.Logger))
	r.Use(middleware.LimitBody(maxBodyBytes))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		api.Error(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		api.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", cfg.IndexHandler.Health)

	r.Route(prefix, func(r chi.Router) {
		r.Post("/embed", cfg.SearchHandler.Embed)
		r.Post("/search", cfg.SearchHandler.Search)
		r.Post("/rag", cfg.SearchHandler.RAG)
		r.Post("/evaluate", cfg.SearchHandler.Evaluate)

		r.Get("/chunks", cfg.IndexHandler.ListChunks)
		r.Get("/stats", cfg.IndexHandler.Stats)

		if cfg.IngestHandler != nil {
			r.Route("/ingest", func(r chi.Router) {
				r.Post("/", cfg.IngestHandler.Submit)
				r.Get("/{id}", cfg.IngestHandler.Get)
			})
		}
	})

	return r
}
