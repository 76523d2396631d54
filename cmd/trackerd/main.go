// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/shelfmark/internal/api"
	"github.com/tomtom215/shelfmark/internal/config"
	"github.com/tomtom215/shelfmark/internal/logging"
	"github.com/tomtom215/shelfmark/internal/supervisor"
	"github.com/tomtom215/shelfmark/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(cfg.Logging.Logger())
	defer func() {
		if err := logging.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing log file")
		}
	}()

	logging.Info().
		Str("store_path", cfg.Tracker.Path).
		Bool("in_memory", cfg.Tracker.InMemory).
		Str("endpoint", cfg.Dispatch.Endpoint).
		Dur("interval", cfg.Dispatch.Interval).
		Msg("Starting Shelfmark tracker agent")

	a, err := newAgent(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize tracker agent")
	}
	defer func() {
		if err := a.store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing tracker store")
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	treeCfg := supervisor.DefaultTreeConfig()
	treeCfg.Name = "shelfmark-tracker"
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), treeCfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	router := api.NewCaptureRouter(
		api.NewCaptureHandler(a.store, a.dispatcher),
		api.NewChiMiddleware(api.ChiMiddlewareConfigFromSecurity(&cfg.Security)),
	)
	server := &http.Server{
		Addr:         cfg.CaptureAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	tree.AddDataService(services.NewCompactorService(a.compactor))
	tree.AddMessagingService(services.NewDispatcherService(a.dispatcher))
	tree.AddAPIService(services.NewHTTPServerService("capture-server", server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("Capture server service added")

	logging.Info().Msg("Starting supervisor tree...")
	for _, name := range tree.Run(ctx) {
		logging.Warn().Str("service", name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Tracker agent stopped gracefully")
}
