// HERD - Farm Class Marketplace
// Copyright 2026 JP Dougherty (jpdougherty96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jpdougherty96/herd

// Package metrics provides Prometheus instrumentation for the HERD
// server: HTTP traffic, booking lifecycle, settlement outcomes, and
// notification delivery. Metrics are exposed at /metrics in Prometheus
// text format.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// Booking lifecycle metrics
	BookingsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookings_created_total",
			Help: "Total bookings created, by policy path",
		},
		[]string{"path"}, // instant, approval
	)

	BookingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_transitions_total",
			Help: "Total booking status transitions",
		},
		[]string{"status"}, // confirmed, denied, failed
	)

	// Settlement metrics
	SettlementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlements_total",
			Help: "Total settlement attempts by outcome",
		},
		[]string{"outcome"}, // completed, replayed, failed
	)

	SettlementAmount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "settlement_amount_dollars",
			Help:    "Settled booking totals in dollars",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500},
		},
	)

	// Notification metrics
	NotificationsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_published_total",
			Help: "Booking events published to the notification bus",
		},
		[]string{"event_type"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Notification emails delivered",
		},
		[]string{"event_type"},
	)

	NotificationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_failed_total",
			Help: "Notification emails that failed delivery",
		},
		[]string{"event_type"},
	)
)

// RecordHTTPRequest records one completed HTTP request.
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordBookingCreated records a new booking on the given policy path
// ("instant" or "approval").
func RecordBookingCreated(path string) {
	BookingsCreated.WithLabelValues(path).Inc()
}

// RecordBookingTransition records a booking reaching a terminal status.
func RecordBookingTransition(status string) {
	BookingTransitions.WithLabelValues(status).Inc()
}

// RecordSettlement records one settlement attempt.
func RecordSettlement(outcome string, amount float64) {
	SettlementsTotal.WithLabelValues(outcome).Inc()
	if outcome == "completed" {
		SettlementAmount.Observe(amount)
	}
}

// RecordNotificationPublished records an event landing on the bus.
func RecordNotificationPublished(eventType string) {
	NotificationsPublished.WithLabelValues(eventType).Inc()
}

// RecordNotificationSent records a delivered notification email.
func RecordNotificationSent(eventType string) {
	NotificationsSent.WithLabelValues(eventType).Inc()
}

// RecordNotificationFailed records a failed notification email.
func RecordNotificationFailed(eventType string) {
	NotificationsFailed.WithLabelValues(eventType).Inc()
}
