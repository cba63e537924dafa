// HERD - Farm Class Marketplace
// Copyright 2026 JP Dougherty (jpdougherty96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jpdougherty96/herd

package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/jpdougherty96/herd/internal/metrics"
)

// EventPublisher is the producing side of the booking event bus. The
// booking service holds this interface; errors are for logging only and
// must never roll back a booking transition.
type EventPublisher interface {
	PublishBookingEvent(ctx context.Context, evt *Event) error
}

// Bus is an in-process Watermill pub/sub for booking events, with
// circuit breaker protection on publishes. A tripped breaker sheds
// notification load without ever touching booking state.
type Bus struct {
	pubsub         *gochannel.GoChannel
	circuitBreaker *gobreaker.CircuitBreaker[interface{}]
	mu             sync.RWMutex
	closed         bool
}

// BusConfig controls buffering and breaker behavior.
type BusConfig struct {
	// BufferSize is the per-subscriber channel buffer. Publishes to a
	// full buffer block, so this bounds how far delivery may lag.
	BufferSize int64

	// BreakerFailureThreshold is the consecutive publish failures that
	// trip the breaker. Zero disables the breaker.
	BreakerFailureThreshold uint32

	// BreakerTimeout is how long the breaker stays open before
	// probing again.
	BreakerTimeout time.Duration
}

// DefaultBusConfig returns production defaults.
func DefaultBusConfig() BusConfig {
	return BusConfig{
		BufferSize:              256,
		BreakerFailureThreshold: 5,
		BreakerTimeout:          30 * time.Second,
	}
}

// NewBus creates the event bus.
func NewBus(cfg BusConfig, logger watermill.LoggerAdapter) *Bus {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: cfg.BufferSize,
	}, logger)

	bus := &Bus{pubsub: pubsub}

	if cfg.BreakerFailureThreshold > 0 {
		bus.circuitBreaker = gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
			Name:    "notify-publisher",
			Timeout: cfg.BreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.BreakerFailureThreshold
			},
		})
	}

	return bus
}

// PublishBookingEvent serializes and publishes an event to the booking
// topic.
func (b *Bus) PublishBookingEvent(ctx context.Context, evt *Event) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return fmt.Errorf("event bus is closed")
	}
	b.mu.RUnlock()

	data, err := SerializeEvent(evt)
	if err != nil {
		return err
	}

	msg := message.NewMessage(uuid.New().String(), data)
	msg.Metadata.Set("event_type", string(evt.Type))
	msg.Metadata.Set("booking_id", evt.Booking.ID)

	if b.circuitBreaker != nil {
		_, err = b.circuitBreaker.Execute(func() (interface{}, error) {
			return nil, b.pubsub.Publish(BookingTopic, msg)
		})
	} else {
		err = b.pubsub.Publish(BookingTopic, msg)
	}

	if err == nil {
		metrics.RecordNotificationPublished(string(evt.Type))
	}

	return err
}

// Subscribe returns the stream of booking events for the dispatcher.
func (b *Bus) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, BookingTopic)
}

// BreakerState reports the circuit breaker state for monitoring, or ""
// when no breaker is configured.
func (b *Bus) BreakerState() string {
	if b.circuitBreaker == nil {
		return ""
	}
	return b.circuitBreaker.State().String()
}

// Close shuts down the bus. Subscribers' channels are closed.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	return b.pubsub.Close()
}
