// Shelfmark - Book Engagement Tracking and Sentiment Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfmark

package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/tomtom215/shelfmark/internal/logging"
	"github.com/tomtom215/shelfmark/internal/metrics"
)

// Transports accepted by Options.Transport.
const (
	TransportMemory = "memory"
	TransportNATS   = "nats"
)

// Options configures a Bus.
type Options struct {
	Transport string

	// NATS settings. With EmbeddedServer set, URL is ignored and an
	// in-process server stores JetStream data under StoreDir.
	URL            string
	EmbeddedServer bool
	StoreDir       string
	DurableName    string
	// InstanceID distinguishes this process's durable consumers from other
	// replicas'. Empty uses the hostname.
	InstanceID string

	RetryCount    int
	RetryInterval time.Duration
	CloseTimeout  time.Duration
}

// HandlerFunc processes one message. A returned error triggers the
// router's retry middleware.
type HandlerFunc func(ctx context.Context, msg *message.Message) error

// Bus publishes domain events and routes them to registered handlers.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	router     *message.Router
	server     *EmbeddedServer
	logger     watermill.LoggerAdapter

	closeOnce sync.Once
}

// NewBus creates a bus over the configured transport.
func NewBus(ctx context.Context, opts Options, logger watermill.LoggerAdapter) (*Bus, error) {
	if logger == nil {
		logger = logging.NewWatermillAdapter()
	}
	if opts.CloseTimeout <= 0 {
		opts.CloseTimeout = 30 * time.Second
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 100 * time.Millisecond
	}

	b := &Bus{logger: logger}

	switch opts.Transport {
	case "", TransportMemory:
		pubsub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger)
		b.publisher, b.subscriber = pubsub, pubsub

	case TransportNATS:
		url := opts.URL
		if opts.EmbeddedServer {
			srv, err := NewEmbeddedServer("127.0.0.1", -1, opts.StoreDir)
			if err != nil {
				return nil, err
			}
			b.server = srv
			url = srv.ClientURL()
		}
		if err := ensureStream(ctx, url); err != nil {
			b.shutdownServer()
			return nil, err
		}
		prefix := opts.DurableName
		if prefix == "" {
			prefix = "shelfmark"
		}
		durable := instanceDurable(prefix, opts.InstanceID)
		pub, sub, err := newNATSPubSub(url, durable, opts.CloseTimeout, logger)
		if err != nil {
			b.shutdownServer()
			return nil, err
		}
		b.publisher, b.subscriber = pub, sub

	default:
		return nil, fmt.Errorf("unknown event transport %q", opts.Transport)
	}

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: opts.CloseTimeout}, logger)
	if err != nil {
		_ = b.closePubSub()
		b.shutdownServer()
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	// Outer to inner: correlation ID propagation, panic recovery, retry.
	router.AddMiddleware(
		middleware.CorrelationID,
		middleware.Recoverer,
		middleware.Retry{
			MaxRetries:      opts.RetryCount,
			InitialInterval: opts.RetryInterval,
			MaxInterval:     10 * opts.RetryInterval,
			Multiplier:      2,
			Logger:          logger,
		}.Middleware,
	)
	b.router = router

	logging.Info().Str("transport", opts.Transport).Bool("embedded", b.server != nil).Msg("Event bus created")
	return b, nil
}

// Publish encodes payload as JSON and publishes it on topic. The request's
// correlation ID travels in the message metadata.
func (b *Bus) Publish(ctx context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		metrics.RecordBusPublish(topic, err)
		return fmt.Errorf("encode %s event: %w", topic, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		middleware.SetCorrelationID(id, msg)
	}

	err = b.publisher.Publish(topic, msg)
	metrics.RecordBusPublish(topic, err)
	if err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// AddHandler registers fn for topic. Handlers must be added before Run.
func (b *Bus) AddHandler(name, topic string, fn HandlerFunc) {
	b.router.AddConsumerHandler(name, topic, b.subscriber, func(msg *message.Message) error {
		ctx := msg.Context()
		if id := middleware.MessageCorrelationID(msg); id != "" {
			ctx = logging.ContextWithCorrelationID(ctx, id)
		}
		err := fn(ctx, msg)
		metrics.RecordBusHandled(topic, err)
		return err
	})
}

// Run starts the router and blocks until ctx is done or the bus is closed.
func (b *Bus) Run(ctx context.Context) error {
	return b.router.Run(ctx)
}

// Running is closed once the router's handlers are subscribed.
func (b *Bus) Running() chan struct{} {
	return b.router.Running()
}

// Close stops the router, the transport and any embedded server.
func (b *Bus) Close() error {
	var err error
	b.closeOnce.Do(func() {
		if rerr := b.router.Close(); rerr != nil {
			err = fmt.Errorf("close router: %w", rerr)
		}
		if perr := b.closePubSub(); perr != nil && err == nil {
			err = perr
		}
		b.shutdownServer()
	})
	return err
}

func (b *Bus) closePubSub() error {
	if err := b.publisher.Close(); err != nil {
		return fmt.Errorf("close publisher: %w", err)
	}
	// GoChannel is both publisher and subscriber.
	if closer, ok := b.subscriber.(message.Publisher); ok && closer == b.publisher {
		return nil
	}
	if err := b.subscriber.Close(); err != nil {
		return fmt.Errorf("close subscriber: %w", err)
	}
	return nil
}

func (b *Bus) shutdownServer() {
	if b.server != nil {
		b.server.Shutdown()
		b.server = nil
	}
}
