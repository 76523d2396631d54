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
	"github.com/tomtom215/shelfmark/internal/database"
	"github.com/tomtom215/shelfmark/internal/events"
	"github.com/tomtom215/shelfmark/internal/logging"
	"github.com/tomtom215/shelfmark/internal/sentiment"
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
		Str("db_path", cfg.Database.Path).
		Str("events_transport", cfg.Events.Transport).
		Str("environment", cfg.Server.Environment).
		Msg("Starting Shelfmark server with supervisor tree")

	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("CORS allows any origin outside development; set CORS_ORIGINS")
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized successfully")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	engine := sentiment.NewEngine(db, sentiment.EngineOptions{
		CacheSize: cfg.Sentiment.CacheSize,
		CacheTTL:  cfg.Sentiment.CacheTTL,
	})
	if _, err := seedThresholds(ctx, engine, &cfg.Sentiment); err != nil {
		logging.Fatal().Err(err).Msg("Failed to seed threshold tables")
	}

	bus, err := events.NewBus(ctx, events.Options{
		Transport:      cfg.Events.Transport,
		URL:            cfg.Events.URL,
		EmbeddedServer: cfg.Events.EmbeddedServer,
		StoreDir:       cfg.Events.StoreDir,
		DurableName:    cfg.Events.DurableName,
		InstanceID:     cfg.Events.InstanceID,
		RetryCount:     cfg.Events.RouterRetryCount,
		RetryInterval:  cfg.Events.RouterRetryInterval,
		CloseTimeout:   cfg.Events.CloseTimeout,
	}, logging.NewWatermillAdapter())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize event bus")
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()
	events.RegisterInvalidation(bus, engine)
	events.RegisterEngagementLog(bus)

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	handler := api.NewHandler(db, engine, bus)
	router := api.NewServerRouter(handler, api.NewChiMiddleware(api.ChiMiddlewareConfigFromSecurity(&cfg.Security)))

	server := &http.Server{
		Addr:         cfg.ServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	tree.AddMessagingService(services.NewEventBusService(bus))
	tree.AddAPIService(services.NewHTTPServerService("api-server", server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	logging.Info().Msg("Starting supervisor tree...")
	for _, name := range tree.Run(ctx) {
		logging.Warn().Str("service", name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Application stopped gracefully")
}
