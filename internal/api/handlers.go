// HERD - Farm Class Marketplace
// Copyright 2026 JP Dougherty (jpdougherty96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jpdougherty96/herd

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jpdougherty96/herd/internal/auth"
	"github.com/jpdougherty96/herd/internal/booking"
	"github.com/jpdougherty96/herd/internal/catalog"
	"github.com/jpdougherty96/herd/internal/logging"
)

// Handler holds the services behind the HTTP surface.
type Handler struct {
	bookings *booking.Service
	catalog  *catalog.Service
	started  time.Time
}

// NewHandler creates the HTTP handler set.
func NewHandler(bookings *booking.Service, cat *catalog.Service) *Handler {
	return &Handler{
		bookings: bookings,
		catalog:  cat,
		started:  time.Now(),
	}
}

// Health reports liveness and uptime.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	})
}

// ListClasses returns every listing. Public.
func (h *Handler) ListClasses(w http.ResponseWriter, r *http.Request) {
	classes, err := h.catalog.ListClasses(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(classes)
}

// AvailableSpots returns a class's derived capacity. Public.
func (h *Handler) AvailableSpots(w http.ResponseWriter, r *http.Request) {
	report, err := h.bookings.AvailableSpots(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(report)
}

// ListPosts returns all bulletin posts. Public.
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.catalog.ListPosts(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(posts)
}

// CreateClass publishes a new listing for the caller.
func (h *Handler) CreateClass(w http.ResponseWriter, r *http.Request) {
	var req catalog.CreateClassRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	class, err := h.catalog.CreateClass(r.Context(), auth.IdentityFromContext(r.Context()), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Created(class)
}

// DeleteClass removes a listing.
func (h *Handler) DeleteClass(w http.ResponseWriter, r *http.Request) {
	err := h.catalog.DeleteClass(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(map[string]string{"status": "deleted"})
}

// ClassBookings lists a class's bookings for its host or an admin.
func (h *Handler) ClassBookings(w http.ResponseWriter, r *http.Request) {
	rows, err := h.bookings.ListForClass(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(rows)
}

// CreateBooking books seats on a class for the caller.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req booking.CreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	b, err := h.bookings.Create(r.Context(), auth.IdentityFromContext(r.Context()), &req)
	if err != nil {
		// A failed settlement still produced a booking record; return
		// it alongside the error so the client can reconcile.
		if errors.Is(err, booking.ErrSettlementFailed) && b != nil {
			NewResponseWriter(w, r).ErrorWithDetails(http.StatusPaymentRequired,
				ErrCodePaymentFailed, booking.StatusMessage(b), b)
			return
		}
		h.writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).SuccessWithMessage(b, booking.StatusMessage(b))
}

// RespondBooking applies a host's decision to a pending booking.
func (h *Handler) RespondBooking(w http.ResponseWriter, r *http.Request) {
	var req respondRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	b, err := h.bookings.Respond(r.Context(), auth.IdentityFromContext(r.Context()),
		chi.URLParam(r, "id"), booking.Action(req.Action), req.Message)
	if err != nil {
		if errors.Is(err, booking.ErrSettlementFailed) && b != nil {
			NewResponseWriter(w, r).ErrorWithDetails(http.StatusPaymentRequired,
				ErrCodePaymentFailed, booking.StatusMessage(b), b)
			return
		}
		h.writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).SuccessWithMessage(b, booking.StatusMessage(b))
}

// UserBookings lists the caller's bookings as guest or host.
func (h *Handler) UserBookings(w http.ResponseWriter, r *http.Request) {
	rows, err := h.bookings.ListForUser(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "userId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(rows)
}

// CreateUser materializes the caller's profile.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req catalog.UpdateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.catalog.CreateUser(r.Context(), auth.IdentityFromContext(r.Context()), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Created(user)
}

// GetUser fetches a profile.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.catalog.GetUser(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(user)
}

// UpdateUser edits the caller's own profile.
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req catalog.UpdateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.catalog.UpdateUser(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "id"), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(user)
}

// CreatePost publishes a bulletin entry.
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req catalog.CreatePostRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	post, err := h.catalog.CreatePost(r.Context(), auth.IdentityFromContext(r.Context()), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Created(post)
}

// StripeStatus reports the caller's own payout readiness.
func (h *Handler) StripeStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.catalog.StripeStatus(r.Context(), auth.IdentityFromContext(r.Context()), chi.URLParam(r, "userId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(status)
}

// writeError maps service errors onto the response envelope.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	rw := NewResponseWriter(w, r)

	var notReady *booking.HostNotReadyError
	if errors.As(err, &notReady) {
		rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeHostNotReady, notReady.Error(),
			map[string]string{"host": notReady.Host})
		return
	}

	switch {
	case errors.Is(err, booking.ErrClassNotFound),
		errors.Is(err, booking.ErrBookingNotFound),
		errors.Is(err, catalog.ErrClassNotFound),
		errors.Is(err, catalog.ErrUserNotFound):
		rw.NotFound(err.Error())

	case errors.Is(err, booking.ErrForbidden),
		errors.Is(err, catalog.ErrForbidden):
		rw.Forbidden(err.Error())

	case errors.Is(err, booking.ErrEmailNotVerified),
		errors.Is(err, catalog.ErrEmailNotVerified):
		rw.Forbidden("Please verify your email address first")

	case errors.Is(err, booking.ErrNotPending):
		rw.Conflict(err.Error())

	case errors.Is(err, booking.ErrValidation),
		errors.Is(err, catalog.ErrValidation):
		rw.BadRequest(err.Error())

	case errors.Is(err, catalog.ErrHasPaidBookings):
		rw.BadRequest(err.Error())

	default:
		logging.Ctx(r.Context()).Error().Err(err).Msg("Unhandled service error")
		rw.InternalError("An internal error occurred")
	}
}
