// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package events

import (
	"context"
	"testing"
	"time"
)

func TestEmbeddedServerProvisionsStream(t *testing.T) {
	if testing.Short() {
		t.Skip("starts a NATS server")
	}

	srv, err := NewEmbeddedServer("127.0.0.1", -1, t.TempDir())
	if err != nil {
		t.Fatalf("NewEmbeddedServer() error: %v", err)
	}
	defer srv.Shutdown()

	if !srv.JetStreamEnabled() {
		t.Fatal("expected JetStream to be enabled")
	}
	if srv.ClientURL() == "" {
		t.Fatal("expected a client URL")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// First call creates the stream, the second updates it in place.
	if err := ensureStream(ctx, srv.ClientURL()); err != nil {
		t.Fatalf("ensureStream() create error: %v", err)
	}
	if err := ensureStream(ctx, srv.ClientURL()); err != nil {
		t.Fatalf("ensureStream() update error: %v", err)
	}
}
