// Package main provides the API router setup.
package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ridewise-ai/ridewise/cmd/ridewise-api/handlers"
	"github.com/ridewise-ai/ridewise/internal/casebase"
	"github.com/ridewise-ai/ridewise/internal/catalog"
	"github.com/ridewise-ai/ridewise/internal/config"
)

// NewRouter creates the main API router with all routes configured.
func NewRouter(logger zerolog.Logger, cfg *config.Config, cat *catalog.Catalog, memory *casebase.Memory) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(cfg.Server.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"ridewise"}`))
	})

	catalogHandler := handlers.NewCatalogHandler(logger, cat)
	recommendHandler := handlers.NewRecommendHandler(logger, cat, memory, cfg.Recommend.TopN)
	casesHandler := handlers.NewCasesHandler(logger, memory)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/catalog", func(r chi.Router) {
			r.Get("/attributes", catalogHandler.Attributes)
			r.Get("/models", catalogHandler.Models)
		})

		r.Post("/recommend", recommendHandler.Recommend)

		r.Route("/cases", func(r chi.Router) {
			r.Get("/", casesHandler.List)
			r.Post("/", casesHandler.Create)
		})
	})

	return r
}
