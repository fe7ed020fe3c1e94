// Package main provides the API router setup.
package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/spherical/doc-converter/cmd/docconvert-api/handlers"
	"github.com/spherical/doc-converter/cmd/docconvert-api/middleware"
	"github.com/spherical/doc-converter/internal/artifact"
	"github.com/spherical/doc-converter/internal/config"
	"github.com/spherical/doc-converter/internal/observability"
)

// Dependencies are the services the router hands to its handlers.
type Dependencies struct {
	Converter handlers.Converter
	Store     *artifact.Store
	Engines   []handlers.Engine
	// Metrics serves /metrics; nil disables the route.
	Metrics http.Handler
}

// NewRouter creates the main API router with all routes configured.
func NewRouter(logger *observability.Logger, deps Dependencies, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	conversionHandler := handlers.NewConversionHandler(logger, deps.Converter, deps.Store, handlers.ConversionConfig{
		ScratchDir:     cfg.Storage.ScratchDir,
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
	})
	healthHandler := handlers.NewHealthHandler(deps.Store, deps.Engines...)

	r.Get("/health", healthHandler.Health)
	r.Post("/upload", conversionHandler.Upload)
	r.Get("/download/{id}", conversionHandler.Download)
	r.Get("/status/{id}", conversionHandler.Status)

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	return r
}
