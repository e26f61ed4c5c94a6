package server

import (
	"net/http"

	"github.com/DylanDHubert/edu-sub002/internal/api"
	"github.com/DylanDHubert/edu-sub002/internal/api/handlers"
	"github.com/DylanDHubert/edu-sub002/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	DocumentHandler *handlers.DocumentHandler
	SearchHandler   *handlers.SearchHandler
	CitationHandler *handlers.CitationHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Document uploads carry file content; everything else is small JSON.
	const maxBodyBytes int64 = 60 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/documents", func(r chi.Router) {
		r.Post("/", cfg.DocumentHandler.Submit)
		r.Get("/{id}/status", cfg.DocumentHandler.Status)
		r.Get("/{id}/download", cfg.DocumentHandler.Download)
		r.Post("/{id}/retry", cfg.DocumentHandler.Retry)
	})

	r.Route("/groups/{groupID}", func(r chi.Router) {
		r.Get("/status", cfg.DocumentHandler.GroupStatus)
		r.Get("/documents", cfg.DocumentHandler.GroupDocuments)
	})

	r.Post("/search", cfg.SearchHandler.Search)
	r.Post("/citations", cfg.CitationHandler.Extract)

	return r
}
