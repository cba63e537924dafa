// HERD - Farm Class Marketplace
// Copyright 2026 JP Dougherty (jpdougherty96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jpdougherty96/herd

package notify

import (
	"context"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/jpdougherty96/herd/internal/logging"
	"github.com/jpdougherty96/herd/internal/metrics"
)

// Dispatcher consumes booking events and sends the matching emails.
// Every message is acked regardless of delivery outcome: a failed email
// is logged and dropped, never retried into a booking rollback.
//
// Dispatcher implements suture.Service via Serve.
type Dispatcher struct {
	bus     *Bus
	mailer  Mailer
	baseURL string
	logger  zerolog.Logger
}

// NewDispatcher creates a dispatcher reading from bus and delivering
// through mailer. baseURL is used for dashboard links in emails.
func NewDispatcher(bus *Bus, mailer Mailer, baseURL string) *Dispatcher {
	return &Dispatcher{
		bus:     bus,
		mailer:  mailer,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logging.WithComponent("notify"),
	}
}

// Serve consumes events until the context is canceled or the bus
// closes.
func (d *Dispatcher) Serve(ctx context.Context) error {
	msgs, err := d.bus.Subscribe(ctx)
	if err != nil {
		return err
	}

	d.logger.Info().Msg("Notification dispatcher started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				d.logger.Info().Msg("Event bus closed, dispatcher stopping")
				return nil
			}
			d.handleMessage(ctx, msg)
			msg.Ack()
		}
	}
}

// String names the service in supervisor logs.
func (d *Dispatcher) String() string {
	return "notification-dispatcher"
}

func (d *Dispatcher) handleMessage(ctx context.Context, msg *message.Message) {
	evt, err := DeserializeEvent(msg.Payload)
	if err != nil {
		d.logger.Warn().Err(err).Str("message_id", msg.UUID).Msg("Dropping undecodable event")
		return
	}

	switch evt.Type {
	case EventBookingRequested:
		d.sendToHost(ctx, evt, "Booking Approval Required: "+evt.Booking.ClassTitle, hostApprovalRequestTemplate)
	case EventBookingConfirmed:
		d.sendToGuest(ctx, evt, "Booking Confirmed: "+evt.Booking.ClassTitle, guestConfirmedTemplate)
		d.sendToHost(ctx, evt, "New Booking: "+evt.Booking.ClassTitle, hostConfirmedTemplate)
	case EventBookingDenied:
		d.sendToGuest(ctx, evt, "Update on Your Booking: "+evt.Booking.ClassTitle, guestDeniedTemplate)
	default:
		d.logger.Warn().Str("event_type", string(evt.Type)).Msg("Unknown event type, skipping")
	}
}

func (d *Dispatcher) sendToGuest(ctx context.Context, evt *Event, subject, template string) {
	d.send(ctx, evt, evt.Booking.UserEmail, subject, template)
}

func (d *Dispatcher) sendToHost(ctx context.Context, evt *Event, subject, template string) {
	d.send(ctx, evt, evt.Booking.HostEmail, subject, template)
}

func (d *Dispatcher) send(ctx context.Context, evt *Event, to, subject, template string) {
	if to == "" {
		d.logger.Warn().
			Str("booking_id", evt.Booking.ID).
			Str("event_type", string(evt.Type)).
			Msg("No recipient address for notification, skipping")
		return
	}

	html, text := RenderTemplate(template, d.templateVars(evt, subject))

	if err := d.mailer.Send(ctx, to, subject, html, text); err != nil {
		metrics.RecordNotificationFailed(string(evt.Type))
		d.logger.Warn().Err(err).
			Str("booking_id", evt.Booking.ID).
			Str("event_type", string(evt.Type)).
			Msg("Failed to send notification email")
		return
	}

	metrics.RecordNotificationSent(string(evt.Type))
	d.logger.Debug().
		Str("booking_id", evt.Booking.ID).
		Str("event_type", string(evt.Type)).
		Msg("Notification email sent")
}

func (d *Dispatcher) templateVars(evt *Event, subject string) map[string]string {
	b := evt.Booking
	return map[string]string{
		"SUBJECT":         subject,
		"GUEST_NAME":      b.UserName,
		"HOST_NAME":       b.HostName,
		"INSTRUCTOR_NAME": b.HostName,
		"CLASS_TITLE":     b.ClassTitle,
		"CLASS_DATE":      b.ClassDate,
		"CLASS_ADDRESS":   b.ClassAddress,
		"STUDENT_COUNT":   FormatCount(b.StudentCount),
		"STUDENT_NAMES":   strings.Join(b.StudentNames, ", "),
		"TOTAL_AMOUNT":    FormatMoney(b.TotalAmount),
		// The host keeps the subtotal; the platform fee is HERD's
		"HOST_EARNINGS": FormatMoney(b.Subtotal),
		"HOST_MESSAGE":  b.HostMessage,
		"DASHBOARD_URL": d.baseURL + "/dashboard",
		"CLASSES_URL":   d.baseURL + "/classes",
	}
}
