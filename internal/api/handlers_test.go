// HERD - Farm Class Marketplace
// Copyright 2026 JP Dougherty (jpdougherty96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jpdougherty96/herd

package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/jpdougherty96/herd/internal/auth"
	"github.com/jpdougherty96/herd/internal/booking"
	"github.com/jpdougherty96/herd/internal/catalog"
	"github.com/jpdougherty96/herd/internal/kvstore"
	"github.com/jpdougherty96/herd/internal/models"
	"github.com/jpdougherty96/herd/internal/notify"
	"github.com/jpdougherty96/herd/internal/payments"
)

type noopPublisher struct{}

func (noopPublisher) PublishBookingEvent(ctx context.Context, evt *notify.Event) error { return nil }

type testServer struct {
	srv      *httptest.Server
	store    *kvstore.Store
	jwt      *auth.JWTManager
	payments *payments.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := kvstore.Open(kvstore.Config{InMemory: true})
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	jwt, err := auth.NewJWTManager("api-test-secret-0123456789abcdef", time.Hour)
	if err != nil {
		t.Fatalf("Failed to create JWT manager: %v", err)
	}

	pay := payments.NewService(store)
	bookings := booking.NewService(store, pay, noopPublisher{}, models.DefaultFeeRate)
	handler := NewHandler(bookings, catalog.NewService(store))

	mw := NewMiddleware(&MiddlewareConfig{RateLimitDisabled: true})
	router := NewRouter(handler, mw, jwt)

	srv := httptest.NewServer(router.Setup())
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, store: store, jwt: jwt, payments: pay}
}

func (ts *testServer) token(t *testing.T, ident auth.Identity) string {
	t.Helper()
	token, err := ts.jwt.GenerateToken(ident)
	if err != nil {
		t.Fatalf("Failed to mint token: %v", err)
	}
	return token
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) (*http.Response, APIResponse) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}

	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	var envelope APIResponse
	if resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			t.Fatalf("Failed to decode envelope: %v", err)
		}
	}
	return resp, envelope
}

func decodeData(t *testing.T, envelope APIResponse, dst interface{}) {
	t.Helper()
	raw, err := json.Marshal(envelope.Data)
	if err != nil {
		t.Fatalf("Failed to re-marshal data: %v", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		t.Fatalf("Failed to decode data: %v", err)
	}
}

func hostToken(t *testing.T, ts *testServer) string {
	return ts.token(t, auth.Identity{
		UserID: "host-1", Email: "greta@meadowfarm.example", Name: "Greta", EmailVerified: true,
	})
}

func guestToken(t *testing.T, ts *testServer) string {
	return ts.token(t, auth.Identity{
		UserID: "guest-1", Email: "sam@example.com", Name: "Sam", EmailVerified: true,
	})
}

// seedHost writes a payout-ready host profile directly to the store.
func seedHost(t *testing.T, ts *testServer) {
	t.Helper()
	err := ts.store.Set(context.Background(), models.UserKey("host-1"), &models.User{
		ID: "host-1", Email: "greta@meadowfarm.example", Name: "Greta",
		StripeConnected: true, StripeAccountID: "acct_host1",
	})
	if err != nil {
		t.Fatalf("Failed to seed host: %v", err)
	}
}

func createClass(t *testing.T, ts *testServer, autoApprove bool) models.Class {
	t.Helper()
	resp, envelope := ts.do(t, http.MethodPost, "/api/v1/class", hostToken(t, ts), map[string]interface{}{
		"title":               "Pasture Walk",
		"date":                "2026-10-20",
		"maxStudents":         6,
		"pricePerPerson":      25.0,
		"autoApproveBookings": autoApprove,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("CreateClass status = %d: %+v", resp.StatusCode, envelope.Error)
	}
	var class models.Class
	decodeData(t, envelope, &class)
	return class
}

func bookingBody(classID string, count int) map[string]interface{} {
	names := make([]string, count)
	for i := range names {
		names[i] = fmt.Sprintf("Student %d", i+1)
	}
	return map[string]interface{}{
		"classId": classID, "studentCount": count, "studentNames": names,
	}
}

func TestHealthIsPublic(t *testing.T) {
	ts := newTestServer(t)

	resp, envelope := ts.do(t, http.MethodGet, "/api/v1/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Health status = %d", resp.StatusCode)
	}
	if !envelope.Success {
		t.Error("Health envelope not successful")
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header not set")
	}
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	resp, envelope := ts.do(t, http.MethodPost, "/api/v1/booking", "", bookingBody("x", 1))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Status = %d, want 401", resp.StatusCode)
	}
	if envelope.Error == nil || envelope.Error.Code != ErrCodeUnauthorized {
		t.Errorf("Error = %+v, want UNAUTHORIZED", envelope.Error)
	}

	resp, _ = ts.do(t, http.MethodPost, "/api/v1/booking", "garbage-token", bookingBody("x", 1))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Garbage token status = %d, want 401", resp.StatusCode)
	}
}

func TestInstantBookingFlow(t *testing.T) {
	ts := newTestServer(t)
	seedHost(t, ts)
	class := createClass(t, ts, true)

	resp, envelope := ts.do(t, http.MethodPost, "/api/v1/booking", guestToken(t, ts), bookingBody(class.ID, 2))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("CreateBooking status = %d: %+v", resp.StatusCode, envelope.Error)
	}
	if envelope.Message == "" {
		t.Error("Booking response missing status message")
	}

	var b models.Booking
	decodeData(t, envelope, &b)
	if b.Status != models.BookingConfirmed || b.PaymentStatus != models.PaymentCompleted {
		t.Errorf("Booking = %s/%s, want confirmed/completed", b.Status, b.PaymentStatus)
	}
	if b.TotalAmount != 52.50 {
		t.Errorf("TotalAmount = %.2f, want 52.50", b.TotalAmount)
	}

	// Capacity is derived and public.
	resp, envelope = ts.do(t, http.MethodGet, "/api/v1/class/"+class.ID+"/available-spots", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("AvailableSpots status = %d", resp.StatusCode)
	}
	var report models.AvailabilityReport
	decodeData(t, envelope, &report)
	if report.AvailableSpots != 4 {
		t.Errorf("AvailableSpots = %d, want 4", report.AvailableSpots)
	}
}

func TestApprovalBookingFlow(t *testing.T) {
	ts := newTestServer(t)
	seedHost(t, ts)
	class := createClass(t, ts, false)

	_, envelope := ts.do(t, http.MethodPost, "/api/v1/booking", guestToken(t, ts), bookingBody(class.ID, 1))
	var b models.Booking
	decodeData(t, envelope, &b)
	if b.Status != models.BookingPending {
		t.Fatalf("Status = %s, want pending", b.Status)
	}

	// The guest cannot respond to their own request.
	resp, _ := ts.do(t, http.MethodPost, "/api/v1/booking/"+b.ID+"/respond", guestToken(t, ts),
		map[string]string{"action": "approve"})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("Guest respond status = %d, want 403", resp.StatusCode)
	}

	// The host approves; payment settles and the booking confirms.
	resp, envelope = ts.do(t, http.MethodPost, "/api/v1/booking/"+b.ID+"/respond", hostToken(t, ts),
		map[string]string{"action": "approve"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Host approve status = %d: %+v", resp.StatusCode, envelope.Error)
	}
	decodeData(t, envelope, &b)
	if b.Status != models.BookingConfirmed || b.PaymentRef == "" {
		t.Errorf("Approved booking = %s ref=%q", b.Status, b.PaymentRef)
	}

	// Terminal bookings accept no further decisions.
	resp, envelope = ts.do(t, http.MethodPost, "/api/v1/booking/"+b.ID+"/respond", hostToken(t, ts),
		map[string]string{"action": "deny"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Repeat respond status = %d, want 409", resp.StatusCode)
	}
	if envelope.Error == nil || envelope.Error.Code != ErrCodeConflict {
		t.Errorf("Error code = %+v, want CONFLICT", envelope.Error)
	}
}

func TestDenyFlow(t *testing.T) {
	ts := newTestServer(t)
	seedHost(t, ts)
	class := createClass(t, ts, false)

	_, envelope := ts.do(t, http.MethodPost, "/api/v1/booking", guestToken(t, ts), bookingBody(class.ID, 1))
	var b models.Booking
	decodeData(t, envelope, &b)

	resp, envelope := ts.do(t, http.MethodPost, "/api/v1/booking/"+b.ID+"/respond", hostToken(t, ts),
		map[string]string{"action": "deny", "message": "That date no longer works."})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Deny status = %d: %+v", resp.StatusCode, envelope.Error)
	}
	decodeData(t, envelope, &b)
	if b.Status != models.BookingDenied || b.HostMessage != "That date no longer works." {
		t.Errorf("Denied booking = %s message=%q", b.Status, b.HostMessage)
	}
	if b.PaymentStatus != models.PaymentPending {
		t.Errorf("Denied booking paymentStatus = %s, want pending", b.PaymentStatus)
	}
}

func TestBookingSettlementFailureReturns402(t *testing.T) {
	ts := newTestServer(t)
	seedHost(t, ts)
	class := createClass(t, ts, true)

	ts.payments.SetCapture(func(ctx context.Context, b *models.Booking) error {
		return errors.New("card declined")
	})

	resp, envelope := ts.do(t, http.MethodPost, "/api/v1/booking", guestToken(t, ts), bookingBody(class.ID, 1))
	if resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("Status = %d, want 402", resp.StatusCode)
	}
	if envelope.Error == nil || envelope.Error.Code != ErrCodePaymentFailed {
		t.Fatalf("Error = %+v, want PAYMENT_FAILED", envelope.Error)
	}

	// The failed booking rides along in the error details.
	raw, _ := json.Marshal(envelope.Error.Details)
	var b models.Booking
	if err := json.Unmarshal(raw, &b); err != nil {
		t.Fatalf("Failed to decode booking from details: %v", err)
	}
	if b.Status != models.BookingFailed || b.PaymentStatus != models.PaymentFailed {
		t.Errorf("Booking = %s/%s, want failed/failed", b.Status, b.PaymentStatus)
	}
}

func TestBookingValidationAndUnknownClass(t *testing.T) {
	ts := newTestServer(t)
	seedHost(t, ts)

	// Body fails request validation before any service call.
	resp, envelope := ts.do(t, http.MethodPost, "/api/v1/booking", guestToken(t, ts),
		map[string]interface{}{"studentCount": 0})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Status = %d, want 400", resp.StatusCode)
	}
	if envelope.Error == nil || envelope.Error.Code != ErrCodeValidationFailed {
		t.Errorf("Error = %+v, want VALIDATION_FAILED", envelope.Error)
	}

	resp, envelope = ts.do(t, http.MethodPost, "/api/v1/booking", guestToken(t, ts), bookingBody("missing", 1))
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Unknown class status = %d, want 404", resp.StatusCode)
	}
	if envelope.Error == nil || envelope.Error.Code != ErrCodeNotFound {
		t.Errorf("Error = %+v, want NOT_FOUND", envelope.Error)
	}
}

func TestHostNotReadyReturnsStructuredError(t *testing.T) {
	ts := newTestServer(t)

	// Host profile exists but has not completed payout onboarding.
	if err := ts.store.Set(context.Background(), models.UserKey("host-1"), &models.User{
		ID: "host-1", Email: "greta@meadowfarm.example", Name: "Greta",
	}); err != nil {
		t.Fatalf("Failed to seed host: %v", err)
	}
	class := createClass(t, ts, true)

	resp, envelope := ts.do(t, http.MethodPost, "/api/v1/booking", guestToken(t, ts), bookingBody(class.ID, 1))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Status = %d, want 400", resp.StatusCode)
	}
	if envelope.Error == nil || envelope.Error.Code != ErrCodeHostNotReady {
		t.Fatalf("Error = %+v, want HOST_NOT_READY", envelope.Error)
	}
	details, ok := envelope.Error.Details.(map[string]interface{})
	if !ok || details["host"] != "Greta" {
		t.Errorf("Error details = %+v, want host name", envelope.Error.Details)
	}
}

func TestUserBookingsVisibility(t *testing.T) {
	ts := newTestServer(t)
	seedHost(t, ts)
	class := createClass(t, ts, true)

	if resp, envelope := ts.do(t, http.MethodPost, "/api/v1/booking", guestToken(t, ts), bookingBody(class.ID, 1)); resp.StatusCode != http.StatusOK {
		t.Fatalf("CreateBooking status = %d: %+v", resp.StatusCode, envelope.Error)
	}

	resp, envelope := ts.do(t, http.MethodGet, "/api/v1/bookings/guest-1", guestToken(t, ts), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("UserBookings status = %d", resp.StatusCode)
	}
	var rows []models.Booking
	decodeData(t, envelope, &rows)
	if len(rows) != 1 {
		t.Errorf("Guest sees %d bookings, want 1", len(rows))
	}

	// Another user's rows are off limits.
	resp, _ = ts.do(t, http.MethodGet, "/api/v1/bookings/guest-1", hostToken(t, ts), nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("Cross-user listing status = %d, want 403", resp.StatusCode)
	}

	// The host lists per class instead.
	resp, envelope = ts.do(t, http.MethodGet, "/api/v1/class/"+class.ID+"/bookings", hostToken(t, ts), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ClassBookings status = %d", resp.StatusCode)
	}
	decodeData(t, envelope, &rows)
	if len(rows) != 1 {
		t.Errorf("Host sees %d class bookings, want 1", len(rows))
	}
}

func TestDeleteClassBlockedByPaidBookings(t *testing.T) {
	ts := newTestServer(t)
	seedHost(t, ts)
	class := createClass(t, ts, true)

	if resp, envelope := ts.do(t, http.MethodPost, "/api/v1/booking", guestToken(t, ts), bookingBody(class.ID, 1)); resp.StatusCode != http.StatusOK {
		t.Fatalf("CreateBooking status = %d: %+v", resp.StatusCode, envelope.Error)
	}

	resp, envelope := ts.do(t, http.MethodDelete, "/api/v1/class/"+class.ID, hostToken(t, ts), nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Delete with paid bookings status = %d, want 400: %+v", resp.StatusCode, envelope.Error)
	}

	admin := ts.token(t, auth.Identity{UserID: "admin-1", Email: "admin@herd.example", Admin: true, EmailVerified: true})
	resp, _ = ts.do(t, http.MethodDelete, "/api/v1/class/"+class.ID, admin, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Admin delete status = %d, want 200", resp.StatusCode)
	}
}

func TestUserProfileEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp, envelope := ts.do(t, http.MethodPost, "/api/v1/user", hostToken(t, ts),
		map[string]string{"name": "Greta", "farmName": "Meadow Farm"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("CreateUser status = %d: %+v", resp.StatusCode, envelope.Error)
	}

	resp, envelope = ts.do(t, http.MethodPut, "/api/v1/user/host-1", hostToken(t, ts),
		map[string]string{"name": "Greta H.", "location": "Vermont"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("UpdateUser status = %d: %+v", resp.StatusCode, envelope.Error)
	}
	var user models.User
	decodeData(t, envelope, &user)
	if user.Name != "Greta H." || user.Location != "Vermont" {
		t.Errorf("Updated user = %+v", user)
	}

	// Updating someone else's profile is forbidden.
	resp, _ = ts.do(t, http.MethodPut, "/api/v1/user/host-1", guestToken(t, ts),
		map[string]string{"name": "Hijack"})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("Cross-user update status = %d, want 403", resp.StatusCode)
	}
}

func TestStripeStatusSelfOnly(t *testing.T) {
	ts := newTestServer(t)
	seedHost(t, ts)

	resp, envelope := ts.do(t, http.MethodGet, "/api/v1/stripe/status/host-1", hostToken(t, ts), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("StripeStatus status = %d", resp.StatusCode)
	}
	var status catalog.StripeStatus
	decodeData(t, envelope, &status)
	if !status.Connected {
		t.Error("Expected connected stripe status")
	}

	resp, _ = ts.do(t, http.MethodGet, "/api/v1/stripe/status/host-1", guestToken(t, ts), nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("Cross-user stripe status = %d, want 403", resp.StatusCode)
	}
}

func TestPostsEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp, envelope := ts.do(t, http.MethodPost, "/api/v1/post", hostToken(t, ts),
		map[string]string{"title": "Hay for sale", "content": "First cut."})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("CreatePost status = %d: %+v", resp.StatusCode, envelope.Error)
	}

	resp, envelope = ts.do(t, http.MethodGet, "/api/v1/posts", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ListPosts status = %d", resp.StatusCode)
	}
	var posts []models.Post
	decodeData(t, envelope, &posts)
	if len(posts) != 1 {
		t.Errorf("ListPosts returned %d, want 1", len(posts))
	}
}
