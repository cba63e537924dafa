// HERD - Farm Class Marketplace
// Copyright 2026 JP Dougherty (jpdougherty96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jpdougherty96/herd

package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/jpdougherty96/herd/internal/kvstore"
	"github.com/jpdougherty96/herd/internal/models"
)

func setupService(t *testing.T) (*Service, *kvstore.Store, func()) {
	t.Helper()

	store, err := kvstore.Open(kvstore.Config{InMemory: true})
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	return NewService(store), store, func() { store.Close() }
}

func testBooking() *models.Booking {
	return &models.Booking{
		ID:          "b1",
		HostID:      "host1",
		Subtotal:    50.00,
		HerdFee:     2.50,
		TotalAmount: 52.50,
	}
}

func TestSettle_CreatesRecord(t *testing.T) {
	svc, _, cleanup := setupService(t)
	defer cleanup()

	ctx := context.Background()
	ref, err := svc.Settle(ctx, testBooking())
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	if ref == "" {
		t.Fatal("Expected non-empty payment ref")
	}

	settlement, err := svc.Get(ctx, "b1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if settlement.Ref != ref {
		t.Errorf("Stored ref %q != returned ref %q", settlement.Ref, ref)
	}
	if settlement.Amount != 52.50 {
		t.Errorf("Amount = %v, want 52.50", settlement.Amount)
	}
	if settlement.PlatformFee != 2.50 {
		t.Errorf("PlatformFee = %v, want 2.50", settlement.PlatformFee)
	}
	if settlement.HostPayout != 50.00 {
		t.Errorf("HostPayout = %v, want 50.00", settlement.HostPayout)
	}
}

func TestSettle_Idempotent(t *testing.T) {
	svc, _, cleanup := setupService(t)
	defer cleanup()

	ctx := context.Background()
	b := testBooking()

	ref1, err := svc.Settle(ctx, b)
	if err != nil {
		t.Fatalf("First settle failed: %v", err)
	}

	captures := 0
	svc.SetCapture(func(ctx context.Context, b *models.Booking) error {
		captures++
		return nil
	})

	ref2, err := svc.Settle(ctx, b)
	if err != nil {
		t.Fatalf("Second settle failed: %v", err)
	}

	if ref1 != ref2 {
		t.Errorf("Repeat settle minted a new ref: %q vs %q", ref1, ref2)
	}
	if captures != 0 {
		t.Errorf("Repeat settle ran %d captures, want 0", captures)
	}
}

func TestSettle_CaptureFailure(t *testing.T) {
	svc, _, cleanup := setupService(t)
	defer cleanup()

	ctx := context.Background()
	svc.SetCapture(func(ctx context.Context, b *models.Booking) error {
		return errors.New("card declined")
	})

	_, err := svc.Settle(ctx, testBooking())
	if !errors.Is(err, ErrCaptureFailed) {
		t.Fatalf("Expected ErrCaptureFailed, got %v", err)
	}

	// No settlement record may exist after a failed capture
	if _, err := svc.Get(ctx, "b1"); !errors.Is(err, kvstore.ErrKeyNotFound) {
		t.Errorf("Expected no settlement record, got %v", err)
	}
}

func TestSettle_FailureThenSuccess(t *testing.T) {
	svc, _, cleanup := setupService(t)
	defer cleanup()

	ctx := context.Background()
	b := testBooking()

	svc.SetCapture(func(ctx context.Context, b *models.Booking) error {
		return errors.New("processor timeout")
	})
	if _, err := svc.Settle(ctx, b); err == nil {
		t.Fatal("Expected failure")
	}

	svc.SetCapture(nil) // nil is ignored, restore default explicitly
	svc.SetCapture(func(ctx context.Context, b *models.Booking) error { return nil })

	ref, err := svc.Settle(ctx, b)
	if err != nil {
		t.Fatalf("Retry after failure should succeed: %v", err)
	}
	if ref == "" {
		t.Error("Expected payment ref on retry")
	}
}
