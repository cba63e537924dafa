// HERD - Farm Class Marketplace
// Copyright 2026 JP Dougherty (jpdougherty96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jpdougherty96/herd

// Package notify delivers booking lifecycle notifications over an
// in-process Watermill event bus. The bus sits beside the booking core:
// publishes are fire-and-forget and delivery failures are logged, never
// fed back into booking state.
package notify

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/jpdougherty96/herd/internal/models"
)

// BookingTopic is the Watermill topic carrying booking lifecycle events.
const BookingTopic = "bookings"

// EventType identifies a booking lifecycle transition.
type EventType string

const (
	// EventBookingRequested fires when a host-mediated booking is
	// created and awaits the host's decision.
	EventBookingRequested EventType = "booking.requested"

	// EventBookingConfirmed fires after a booking settles and is
	// confirmed, on either the instant or host-approval path.
	EventBookingConfirmed EventType = "booking.confirmed"

	// EventBookingDenied fires when a host declines a pending booking.
	EventBookingDenied EventType = "booking.denied"
)

// Event is the payload published for every booking transition. The
// booking is embedded whole so the dispatcher never reads the store.
type Event struct {
	Type       EventType      `json:"type"`
	Booking    models.Booking `json:"booking"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// SerializeEvent encodes an event for the wire.
func SerializeEvent(evt *Event) ([]byte, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("serialize event: %w", err)
	}
	return data, nil
}

// DeserializeEvent decodes an event payload.
func DeserializeEvent(data []byte) (*Event, error) {
	var evt Event
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, fmt.Errorf("deserialize event: %w", err)
	}
	return &evt, nil
}
