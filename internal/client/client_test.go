// HERD - Farm Class Marketplace
// Copyright 2026 JP Dougherty (jpdougherty96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jpdougherty96/herd

package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"

	"github.com/jpdougherty96/herd/internal/auth"
	"github.com/jpdougherty96/herd/internal/booking"
	"github.com/jpdougherty96/herd/internal/models"
)

func writeEnvelope(w http.ResponseWriter, data interface{}, message string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"data":    data,
		"message": message,
	})
}

func newClientFor(srv *httptest.Server, attempts int) *Client {
	return New(Config{
		BaseURL: srv.URL,
		Token:   "test-token",
		Retry:   fastPolicy(attempts),
	})
}

func TestClassesMergesServerAndCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, []models.Class{
			{ID: "Y", Title: "Server copy"},
			{ID: "Z", Title: "New on server"},
		}, "")
	}))
	defer srv.Close()

	c := newClientFor(srv, 1)
	c.Cache().PutClass(models.Class{ID: "X", Title: "Local only"})
	c.Cache().PutClass(models.Class{ID: "Y", Title: "Stale local copy"})

	classes, fresh, err := c.Classes(context.Background())
	if err != nil {
		t.Fatalf("Classes failed: %v", err)
	}
	if !fresh {
		t.Error("Expected fresh result from reachable server")
	}
	if len(classes) != 3 {
		t.Fatalf("Got %d classes, want 3", len(classes))
	}

	// The cache absorbed the server's copies.
	cached, _ := c.Cache().Class("Y")
	if cached.Title != "Server copy" {
		t.Errorf("Cached Y = %q, want server copy", cached.Title)
	}
	if _, ok := c.Cache().Class("Z"); !ok {
		t.Error("Server-only class not cached")
	}
}

func TestClassesFallsBackToCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newClientFor(srv, 2)
	c.Cache().PutClass(models.Class{ID: "X", Title: "Cached"})

	classes, fresh, err := c.Classes(context.Background())
	if err != nil {
		t.Fatalf("Expected degraded success, got %v", err)
	}
	if fresh {
		t.Error("Result must not be marked fresh when served from cache")
	}
	if len(classes) != 1 || classes[0].ID != "X" {
		t.Errorf("Degraded classes = %+v", classes)
	}
}

func TestClassesErrorsWithEmptyCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newClientFor(srv, 1)
	if _, _, err := c.Classes(context.Background()); err == nil {
		t.Error("Expected error with unreachable server and empty cache")
	}
}

func TestClassesRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		writeEnvelope(w, []models.Class{{ID: "A"}}, "")
	}))
	defer srv.Close()

	c := newClientFor(srv, 3)
	classes, fresh, err := c.Classes(context.Background())
	if err != nil || !fresh {
		t.Fatalf("Classes = fresh=%v err=%v, want fresh success", fresh, err)
	}
	if len(classes) != 1 {
		t.Errorf("Got %d classes, want 1", len(classes))
	}
	if calls.Load() != 3 {
		t.Errorf("Server saw %d calls, want 3", calls.Load())
	}
}

func TestCreateBookingCachesResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var req booking.CreateRequest
		json.NewDecoder(r.Body).Decode(&req)
		writeEnvelope(w, models.Booking{
			ID:            "booking-1",
			ClassID:       req.ClassID,
			Status:        models.BookingConfirmed,
			PaymentStatus: models.PaymentCompleted,
		}, "Booking confirmed! Payment has been processed.")
	}))
	defer srv.Close()

	c := newClientFor(srv, 1)
	b, message, err := c.CreateBooking(context.Background(), &booking.CreateRequest{
		ClassID: "class-1", StudentCount: 1, StudentNames: []string{"Sam"},
	})
	if err != nil {
		t.Fatalf("CreateBooking failed: %v", err)
	}
	if b.Status != models.BookingConfirmed {
		t.Errorf("Status = %s, want confirmed", b.Status)
	}
	if message == "" {
		t.Error("Status message lost in transit")
	}
	if got := c.Cache().Bookings(); len(got) != 1 || got[0].ID != "booking-1" {
		t.Errorf("Cached bookings = %+v", got)
	}
}

func TestCreateBookingDoesNotRetryRejections(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   map[string]string{"code": "HOST_NOT_READY", "message": "host not ready"},
		})
	}))
	defer srv.Close()

	c := newClientFor(srv, 3)
	_, _, err := c.CreateBooking(context.Background(), &booking.CreateRequest{
		ClassID: "class-1", StudentCount: 1, StudentNames: []string{"Sam"},
	})
	if err == nil {
		t.Fatal("Expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("Server saw %d calls, want 1 (4xx must not retry)", calls.Load())
	}
}

func TestProfileFallsBackToSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newClientFor(srv, 2)
	session := &auth.Identity{UserID: "guest-1", Email: "sam@example.com", Name: "Sam"}

	profile, fallback, err := c.Profile(context.Background(), session)
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	if !fallback {
		t.Error("Expected fallback profile")
	}
	if profile.ID != "guest-1" || profile.Email != "sam@example.com" || profile.Name != "Sam" {
		t.Errorf("Fallback profile = %+v", profile)
	}
}

func TestProfileUsesServerCopyWhenReachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, models.User{ID: "guest-1", Name: "Sam Fuller", FarmName: "Fuller Acres"}, "")
	}))
	defer srv.Close()

	c := newClientFor(srv, 1)
	profile, fallback, err := c.Profile(context.Background(), &auth.Identity{UserID: "guest-1"})
	if err != nil || fallback {
		t.Fatalf("Profile = fallback=%v err=%v, want server copy", fallback, err)
	}
	if profile.FarmName != "Fuller Acres" {
		t.Errorf("Profile = %+v", profile)
	}
}

func TestAvailableSpots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/class/class-1/available-spots" {
			http.NotFound(w, r)
			return
		}
		writeEnvelope(w, models.AvailabilityReport{MaxStudents: 6, ConfirmedBookings: 2, AvailableSpots: 4}, "")
	}))
	defer srv.Close()

	c := newClientFor(srv, 1)
	report, err := c.AvailableSpots(context.Background(), "class-1")
	if err != nil {
		t.Fatalf("AvailableSpots failed: %v", err)
	}
	if report.AvailableSpots != 4 {
		t.Errorf("AvailableSpots = %d, want 4", report.AvailableSpots)
	}
}
