// HERD - Farm Class Marketplace
// Copyright 2026 JP Dougherty (jpdougherty96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jpdougherty96/herd

// Package payments implements booking settlement: capturing the guest's
// total and splitting it into the platform fee and host payout.
//
// Settlement is a simulated capture against a payment processor, but
// its idempotency contract is real: settling the same booking twice
// returns the first settlement's external reference and moves no
// additional money. Clients that time out and retry therefore cannot
// double-charge.
package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jpdougherty96/herd/internal/kvstore"
	"github.com/jpdougherty96/herd/internal/logging"
	"github.com/jpdougherty96/herd/internal/metrics"
	"github.com/jpdougherty96/herd/internal/models"
)

// ErrCaptureFailed wraps processor-side capture failures.
var ErrCaptureFailed = errors.New("payments: capture failed")

// Settlement is the durable record of a completed capture, keyed by
// booking ID. Its presence is what makes Settle idempotent.
type Settlement struct {
	BookingID string `json:"bookingId"`

	// Ref is the external payment reference, minted exactly once per
	// booking.
	Ref string `json:"ref"`

	Amount      float64   `json:"amount"`
	PlatformFee float64   `json:"platformFee"`
	HostPayout  float64   `json:"hostPayout"`
	HostID      string    `json:"hostId"`
	SettledAt   time.Time `json:"settledAt"`
}

// CaptureFunc performs the processor capture. The default always
// succeeds; tests and failure drills inject their own.
type CaptureFunc func(ctx context.Context, b *models.Booking) error

// Service settles bookings against the key-value store.
type Service struct {
	store   *kvstore.Store
	capture CaptureFunc
	now     func() time.Time
}

// NewService creates a settlement service with the default capture.
func NewService(store *kvstore.Store) *Service {
	return &Service{
		store:   store,
		capture: func(ctx context.Context, b *models.Booking) error { return nil },
		now:     time.Now,
	}
}

// SetCapture replaces the processor capture. Call once during setup.
func (s *Service) SetCapture(fn CaptureFunc) {
	if fn != nil {
		s.capture = fn
	}
}

// Settle captures payment for a booking and returns the external
// payment reference.
//
// If a settlement record already exists for the booking, the stored
// reference is returned and no capture runs. The check and the write
// are not atomic; a racing duplicate performs at most one extra
// simulated capture but both callers resolve to a stored reference.
func (s *Service) Settle(ctx context.Context, b *models.Booking) (string, error) {
	key := models.SettlementKey(b.ID)

	var existing Settlement
	err := s.store.Get(ctx, key, &existing)
	if err == nil {
		logging.Ctx(ctx).Debug().
			Str("booking_id", b.ID).
			Str("payment_ref", existing.Ref).
			Msg("Settlement replayed from existing record")
		metrics.RecordSettlement("replayed", 0)
		return existing.Ref, nil
	}
	if !errors.Is(err, kvstore.ErrKeyNotFound) {
		return "", fmt.Errorf("check settlement for booking %s: %w", b.ID, err)
	}

	if err := s.capture(ctx, b); err != nil {
		metrics.RecordSettlement("failed", 0)
		return "", fmt.Errorf("%w: booking %s: %v", ErrCaptureFailed, b.ID, err)
	}

	settlement := Settlement{
		BookingID:   b.ID,
		Ref:         "pay_" + uuid.New().String(),
		Amount:      b.TotalAmount,
		PlatformFee: b.HerdFee,
		HostPayout:  b.Subtotal,
		HostID:      b.HostID,
		SettledAt:   s.now(),
	}

	if err := s.store.Set(ctx, key, &settlement); err != nil {
		return "", fmt.Errorf("persist settlement for booking %s: %w", b.ID, err)
	}

	metrics.RecordSettlement("completed", settlement.Amount)
	logging.Ctx(ctx).Info().
		Str("booking_id", b.ID).
		Str("payment_ref", settlement.Ref).
		Float64("amount", settlement.Amount).
		Float64("host_payout", settlement.HostPayout).
		Msg("Booking settled")

	return settlement.Ref, nil
}

// Get returns the settlement record for a booking, or
// kvstore.ErrKeyNotFound.
func (s *Service) Get(ctx context.Context, bookingID string) (*Settlement, error) {
	var settlement Settlement
	if err := s.store.Get(ctx, models.SettlementKey(bookingID), &settlement); err != nil {
		return nil, err
	}
	return &settlement, nil
}
