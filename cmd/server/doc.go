// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

/*
Package main is the entry point for the Shelfmark ingestion and sentiment server.

The server accepts impressions, click-throughs and ratings from tracker agents
and clients, stores them in DuckDB, and classifies per-criterion rating counts
into sentiment levels using count-gated threshold tables.

# Application Architecture

	RootSupervisor ("shelfmark")
	├── DataSupervisor ("data-layer")
	├── MessagingSupervisor ("messaging-layer")
	│   └── Event bus router (cache invalidation, engagement log)
	└── APISupervisor ("api-layer")
	    └── HTTP Server (ingestion, sentiment, health, metrics)

Component initialization order:

 1. Configuration: Koanf v2 with config file, .env and environment variables
 2. Logging: zerolog with JSON/console output and optional rotating file
 3. Database: DuckDB with engagement, rating and threshold tables
 4. Sentiment engine: threshold tables seeded from a YAML file or defaults
 5. Event bus: Watermill over GoChannel or NATS JetStream
 6. Supervisor tree and HTTP server: Chi router with middleware stack

# Configuration

	HTTP_PORT=3857               # HTTP server port
	DUCKDB_PATH=/data/shelfmark.duckdb
	SENTIMENT_THRESHOLDS_FILE=   # optional YAML thresholds file
	SENTIMENT_SEED_DEFAULTS=true # seed the default bands into empty tables
	EVENTS_TRANSPORT=memory      # memory or nats
	LOG_LEVEL=info               # trace, debug, info, warn, error
	LOG_FORMAT=json              # json or console

# Graceful Shutdown

SIGINT and SIGTERM cancel the root context. The supervisor tree stops its
services, then the event bus and the database are closed.
*/
package main
