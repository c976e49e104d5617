package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/spherical-ai/spherical/libs/shop-assistant/cmd/shop-assistant-api/handlers"
	"github.com/spherical-ai/spherical/libs/shop-assistant/cmd/shop-assistant-api/middleware"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/observability"
)

// RouterDeps are the services the router dispatches to.
type RouterDeps struct {
	Searcher handlers.Searcher
	Answerer handlers.Answerer
	// Ready reports dependency health for /ready. Nil means always ready.
	Ready func(ctx context.Context) error
	// MCP, when set, is mounted at /mcp.
	MCP http.Handler
}

// AppConfig holds router configuration.
type AppConfig struct {
	RequestTimeout time.Duration
	AllowedOrigins []string
}

// DefaultAppConfig returns default router configuration.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		RequestTimeout: 60 * time.Second,
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates the API router with all routes configured.
func NewRouter(logger *observability.Logger, deps RouterDeps, cfg AppConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Trace)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"shop-assistant"}`))
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if deps.Ready != nil {
			if err := deps.Ready(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "not_ready", "detail": err.Error()})
				return
			}
		}
		w.Write([]byte(`{"status":"ready"}`))
	})

	shopHandler := handlers.NewShopHandler(logger, deps.Searcher, deps.Answerer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
		r.Post("/search", shopHandler.Search)
		r.Post("/chat", shopHandler.Chat)
	})

	if deps.MCP != nil {
		r.Handle("/mcp", deps.MCP)
	}

	return r
}
