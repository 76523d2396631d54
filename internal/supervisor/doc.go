// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

/*
Package supervisor provides process supervision for Shelfmark using suture v4.

Both binaries build the same three-layer tree:

	RootSupervisor ("shelfmark-server" / "shelfmark-trackerd")
	├── DataSupervisor ("data-layer")
	│   └── CompactorService (trackerd)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── EventBusService (server)
	│   └── DispatcherService (trackerd)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService (API server or capture server)

Crashed services restart with suture's backoff; context cancellation shuts
the tree down in order. Supervisor events are logged through sutureslog and
the zerolog-backed slog handler from the logging package.

Service wrappers live in the services subpackage.
*/
package supervisor
