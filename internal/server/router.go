package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/corpusworks/corpusd/internal/api"
	"github.com/corpusworks/corpusd/internal/api/handlers"
	"github.com/corpusworks/corpusd/internal/api/middleware"
)

type RouterConfig struct {
	IngestHandler   *handlers.IngestHandler
	SearchHandler   *handlers.SearchHandler
	DocumentHandler *handlers.DocumentHandler
	MaxBodyBytes    int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	maxBodyBytes := cfg.MaxBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = 50 * 1024 * 1024
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/ingest", func(r chi.Router) {
		r.Post("/file", cfg.IngestHandler.IngestFile)
		r.Post("/url", cfg.IngestHandler.IngestURL)
		r.Post("/content", cfg.IngestHandler.IngestContent)
		r.Post("/folder", cfg.IngestHandler.IngestFolder)
	})

	r.Post("/search", cfg.SearchHandler.Search)

	r.Route("/documents", func(r chi.Router) {
		r.Get("/", cfg.DocumentHandler.List)
		r.Get("/{docID}", cfg.DocumentHandler.Get)
		r.Delete("/{docID}", cfg.DocumentHandler.Delete)
	})

	r.Get("/libraries", cfg.DocumentHandler.ListLibraries)

	return r
}
