// HERD - Farm Class Marketplace
// Copyright 2026 JP Dougherty (jpdougherty96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jpdougherty96/herd

// Package booking implements the marketplace's core state machine:
// creating seat requests against classes, settling payment, and
// applying the single host or automatic transition each booking gets.
//
// A booking's approval status and payment status move independently.
// Capacity is derived from confirmed+paid bookings at read time and is
// never enforced when a booking is written.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jpdougherty96/herd/internal/auth"
	"github.com/jpdougherty96/herd/internal/kvstore"
	"github.com/jpdougherty96/herd/internal/logging"
	"github.com/jpdougherty96/herd/internal/metrics"
	"github.com/jpdougherty96/herd/internal/models"
	"github.com/jpdougherty96/herd/internal/notify"
)

// Settler captures a booking's total and returns the external payment
// reference. Implemented by payments.Service; tests inject fakes.
type Settler interface {
	Settle(ctx context.Context, b *models.Booking) (string, error)
}

// Action is a host's answer to a pending booking request.
type Action string

const (
	ActionApprove Action = "approve"
	ActionDeny    Action = "deny"

	// ActionDecline is accepted as an alias for deny.
	ActionDecline Action = "decline"
)

// CreateRequest is a guest's seat request. Guest identity comes from
// the bearer token, not the body.
type CreateRequest struct {
	ClassID      string   `json:"classId" validate:"required"`
	StudentCount int      `json:"studentCount" validate:"required,min=1"`
	StudentNames []string `json:"studentNames" validate:"required,dive,notblank"`
}

// Service runs the booking lifecycle against the key-value store.
type Service struct {
	store     *kvstore.Store
	settler   Settler
	publisher notify.EventPublisher
	feeRate   float64
	now       func() time.Time
	newID     func() string
}

// NewService wires the booking core. A feeRate at or below zero falls
// back to the platform default.
func NewService(store *kvstore.Store, settler Settler, publisher notify.EventPublisher, feeRate float64) *Service {
	if feeRate <= 0 {
		feeRate = models.DefaultFeeRate
	}
	return &Service{
		store:     store,
		settler:   settler,
		publisher: publisher,
		feeRate:   feeRate,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Create books seats on a class for the authenticated guest.
//
// The class's booking policy is snapshotted onto the booking. With
// auto-approval the booking is persisted tentatively, settled, and then
// finalized as confirmed+completed, or overwritten as failed+failed
// when the capture is rejected. Without auto-approval the booking is
// persisted pending and the host is notified; no money moves until the
// host approves.
func (s *Service) Create(ctx context.Context, ident *auth.Identity, req *CreateRequest) (*models.Booking, error) {
	if ident == nil {
		return nil, ErrForbidden
	}
	if !ident.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	var class models.Class
	if err := s.store.Get(ctx, models.ClassKey(req.ClassID), &class); err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return nil, ErrClassNotFound
		}
		return nil, fmt.Errorf("loading class %s: %w", req.ClassID, err)
	}

	var host models.User
	if err := s.store.Get(ctx, models.UserKey(class.InstructorID), &host); err != nil && !errors.Is(err, kvstore.ErrKeyNotFound) {
		return nil, fmt.Errorf("loading host %s: %w", class.InstructorID, err)
	}
	if !host.PaymentReady() {
		name := host.Name
		if name == "" {
			name = class.InstructorName
		}
		return nil, &HostNotReadyError{Host: name}
	}

	if err := validateSeats(&class, req); err != nil {
		return nil, err
	}

	subtotal, fee, total := models.PriceBooking(class.PricePerPerson, req.StudentCount, s.feeRate)

	b := &models.Booking{
		ID:           s.newID(),
		ClassID:      class.ID,
		ClassTitle:   class.Title,
		ClassDate:    class.Date,
		ClassAddress: class.Address,

		UserID:    ident.UserID,
		UserEmail: ident.Email,
		UserName:  ident.Name,

		HostID:    class.InstructorID,
		HostEmail: host.Email,
		HostName:  host.Name,

		StudentCount: req.StudentCount,
		StudentNames: req.StudentNames,

		Subtotal:    subtotal,
		HerdFee:     fee,
		TotalAmount: total,

		Status:        models.BookingPending,
		PaymentStatus: models.PaymentPending,
		AutoApprove:   class.AutoApproveBookings,
		CreatedAt:     s.now(),
	}

	if !b.AutoApprove {
		if err := s.store.Set(ctx, models.BookingKey(b.ID), b); err != nil {
			return nil, fmt.Errorf("saving booking: %w", err)
		}
		metrics.RecordBookingCreated("approval")
		s.publish(ctx, notify.EventBookingRequested, b)
		return b, nil
	}

	// Instant path. The booking exists in the store before the capture
	// runs, so a crash mid-settlement leaves a record to reconcile
	// instead of a charge with no booking.
	b.Status = models.BookingConfirmed
	if err := s.store.Set(ctx, models.BookingKey(b.ID), b); err != nil {
		return nil, fmt.Errorf("saving booking: %w", err)
	}
	metrics.RecordBookingCreated("instant")

	if err := s.settle(ctx, b); err != nil {
		return b, err
	}
	s.publish(ctx, notify.EventBookingConfirmed, b)
	return b, nil
}

// Respond applies the host's decision to a pending booking. Only the
// booking's host may respond; admins are not granted an override here.
// Approval settles payment before the booking is confirmed, and a
// failed capture leaves the booking failed with nothing charged. Denial
// never touches payment.
func (s *Service) Respond(ctx context.Context, ident *auth.Identity, bookingID string, action Action, message string) (*models.Booking, error) {
	if ident == nil {
		return nil, ErrForbidden
	}

	var b models.Booking
	if err := s.store.Get(ctx, models.BookingKey(bookingID), &b); err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("loading booking %s: %w", bookingID, err)
	}

	if b.HostID != ident.UserID {
		return nil, ErrForbidden
	}
	if b.Status != models.BookingPending {
		return nil, ErrNotPending
	}

	switch action {
	case ActionApprove:
		b.Status = models.BookingConfirmed
		if err := s.settle(ctx, &b); err != nil {
			return &b, err
		}
		s.publish(ctx, notify.EventBookingConfirmed, &b)
		return &b, nil

	case ActionDeny, ActionDecline:
		now := s.now()
		b.Status = models.BookingDenied
		b.DeniedAt = &now
		b.HostMessage = strings.TrimSpace(message)
		if err := s.store.Set(ctx, models.BookingKey(b.ID), &b); err != nil {
			return nil, fmt.Errorf("saving booking: %w", err)
		}
		metrics.RecordBookingTransition(string(models.BookingDenied))
		s.publish(ctx, notify.EventBookingDenied, &b)
		return &b, nil

	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrValidation, action)
	}
}

// Get returns a booking visible to the caller: its guest, its host, or
// an admin.
func (s *Service) Get(ctx context.Context, ident *auth.Identity, bookingID string) (*models.Booking, error) {
	if ident == nil {
		return nil, ErrForbidden
	}

	var b models.Booking
	if err := s.store.Get(ctx, models.BookingKey(bookingID), &b); err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("loading booking %s: %w", bookingID, err)
	}

	if b.UserID != ident.UserID && b.HostID != ident.UserID && !ident.Admin {
		return nil, ErrForbidden
	}
	return &b, nil
}

// ListForUser returns every booking where the given user is the guest
// or the host. Callers may only list their own bookings.
func (s *Service) ListForUser(ctx context.Context, ident *auth.Identity, userID string) ([]models.Booking, error) {
	if ident == nil || ident.UserID != userID {
		return nil, ErrForbidden
	}

	all, err := s.allBookings(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.Booking, 0)
	for _, b := range all {
		if b.UserID == userID || b.HostID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

// ListForClass returns a class's bookings for its host or an admin.
func (s *Service) ListForClass(ctx context.Context, ident *auth.Identity, classID string) ([]models.Booking, error) {
	if ident == nil {
		return nil, ErrForbidden
	}

	var class models.Class
	if err := s.store.Get(ctx, models.ClassKey(classID), &class); err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return nil, ErrClassNotFound
		}
		return nil, fmt.Errorf("loading class %s: %w", classID, err)
	}

	if class.InstructorID != ident.UserID && !ident.Admin {
		return nil, ErrForbidden
	}

	all, err := s.allBookings(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.Booking, 0)
	for _, b := range all {
		if b.ClassID == classID {
			out = append(out, b)
		}
	}
	return out, nil
}

// AvailableSpots recomputes a class's remaining capacity. Public: no
// identity required.
func (s *Service) AvailableSpots(ctx context.Context, classID string) (*models.AvailabilityReport, error) {
	var class models.Class
	if err := s.store.Get(ctx, models.ClassKey(classID), &class); err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return nil, ErrClassNotFound
		}
		return nil, fmt.Errorf("loading class %s: %w", classID, err)
	}

	all, err := s.allBookings(ctx)
	if err != nil {
		return nil, err
	}

	report := Availability(&class, all)
	return &report, nil
}

// StatusMessage is the human-readable outcome line returned alongside a
// freshly transitioned booking.
func StatusMessage(b *models.Booking) string {
	switch b.Status {
	case models.BookingConfirmed:
		return "Booking confirmed! Payment has been processed."
	case models.BookingPending:
		return "Booking request sent! The host will review your request."
	case models.BookingDenied:
		return "Booking request was declined by the host."
	case models.BookingFailed:
		return "Booking failed: payment could not be processed."
	default:
		return ""
	}
}

// settle captures payment for a booking already marked confirmed and
// persists the final state. On capture failure the booking is
// overwritten as failed/failed so a retry creates a fresh booking
// instead of resurrecting this one.
func (s *Service) settle(ctx context.Context, b *models.Booking) error {
	ref, err := s.settler.Settle(ctx, b)
	if err != nil {
		b.Status = models.BookingFailed
		b.PaymentStatus = models.PaymentFailed
		if saveErr := s.store.Set(ctx, models.BookingKey(b.ID), b); saveErr != nil {
			logging.Ctx(ctx).Error().Err(saveErr).Str("booking_id", b.ID).
				Msg("Failed to persist failed booking state")
		}
		metrics.RecordBookingTransition(string(models.BookingFailed))
		return fmt.Errorf("%w: %v", ErrSettlementFailed, err)
	}

	now := s.now()
	b.PaymentStatus = models.PaymentCompleted
	b.PaymentRef = ref
	b.ApprovedAt = &now
	if err := s.store.Set(ctx, models.BookingKey(b.ID), b); err != nil {
		return fmt.Errorf("saving booking: %w", err)
	}
	metrics.RecordBookingTransition(string(models.BookingConfirmed))
	return nil
}

// publish emits a lifecycle event without blocking the request. Publish
// failures are logged and never affect the booking outcome.
func (s *Service) publish(ctx context.Context, eventType notify.EventType, b *models.Booking) {
	evt := &notify.Event{
		Type:       eventType,
		Booking:    *b,
		OccurredAt: s.now(),
	}

	bg := context.WithoutCancel(ctx)
	go func() {
		if err := s.publisher.PublishBookingEvent(bg, evt); err != nil {
			logging.Warn().Err(err).
				Str("event_type", string(eventType)).
				Str("booking_id", b.ID).
				Msg("Failed to publish booking event")
		}
	}()
}

func validateSeats(class *models.Class, req *CreateRequest) error {
	if req.StudentCount < 1 {
		return fmt.Errorf("%w: student count must be at least 1", ErrValidation)
	}
	if class.MaxStudents > 0 && req.StudentCount > class.MaxStudents {
		return fmt.Errorf("%w: student count %d exceeds class capacity %d",
			ErrValidation, req.StudentCount, class.MaxStudents)
	}
	if len(req.StudentNames) != req.StudentCount {
		return fmt.Errorf("%w: expected %d student names, got %d",
			ErrValidation, req.StudentCount, len(req.StudentNames))
	}
	for _, name := range req.StudentNames {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: student names must not be blank", ErrValidation)
		}
	}
	return nil
}

func (s *Service) allBookings(ctx context.Context) ([]models.Booking, error) {
	values, err := s.store.GetByPrefix(ctx, models.BookingKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("scanning bookings: %w", err)
	}
	return kvstore.DecodeAll[models.Booking](values), nil
}
