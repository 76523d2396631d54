// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

/*
Package main is the Shelfmark tracker agent.

The agent runs next to a client, captures impressions and click-throughs
through a loopback HTTP API, keeps them in a local BadgerDB store, and
dispatches them to the ingestion server in batches.

	RootSupervisor ("shelfmark-tracker")
	├── DataSupervisor ("data-layer")
	│   └── Compactor (cron: dead-letter cleanup, value-log GC)
	├── MessagingSupervisor ("messaging-layer")
	│   └── Dispatcher (periodic and click-triggered flushes)
	└── APISupervisor ("api-layer")
	    └── Capture HTTP Server (loopback only by default)

Records stay queued until the ingestion server acknowledges them. Flushes
are triggered every SYNC_INTERVAL, after each click-through, and on demand
through POST /track/flush.
*/
package main
