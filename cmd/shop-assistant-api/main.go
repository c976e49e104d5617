// Package main provides the shop assistant API server entrypoint.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/app"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/config"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/mcpserver"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/observability"
)

var version = "dev"

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if len(os.Args) > 2 && os.Args[1] == "--config" {
		cfgPath = os.Args[2]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})

	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("vector", cfg.Vector.Adapter).
		Str("cache", cfg.Cache.Driver).
		Msg("Starting shop assistant API")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize components")
		os.Exit(1)
	}
	defer components.Close()

	if _, err := components.Guard.Check(ctx); err != nil {
		logger.Warn().Err(err).Msg("Embedding model check failed")
	}

	// Drop cached contexts whenever a sync lands, including syncs run by other processes.
	if err := components.ContextCache.WatchCatalogSync(ctx, components.Notifier); err != nil {
		logger.Warn().Err(err).Msg("Catalog sync watch disabled")
	}

	mcp := mcpserver.New("shop-assistant", version, components.Pipeline, components, logger)

	router := NewRouter(logger, RouterDeps{
		Searcher: components.Pipeline,
		Answerer: components,
		Ready:    components.Ready,
		MCP:      mcp.HTTPHandler(),
	}, AppConfig{
		RequestTimeout: cfg.Server.WriteTimeout,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	addr := cfg.Addr()
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("HTTP server listening")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error().Err(err).Msg("Server error")
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("Forced shutdown failed")
		}
	}

	logger.Info().Msg("Server stopped")
}
