// HERD - Farm Class Marketplace
// Copyright 2026 JP Dougherty (jpdougherty96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jpdougherty96/herd

package booking

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the booking service. The api package maps
// these to HTTP status codes; callers should match with errors.Is.
var (
	ErrClassNotFound    = errors.New("class not found")
	ErrBookingNotFound  = errors.New("booking not found")
	ErrEmailNotVerified = errors.New("email address not verified")
	ErrForbidden        = errors.New("not permitted")
	ErrNotPending       = errors.New("booking is not pending")
	ErrValidation       = errors.New("invalid booking request")
	ErrSettlementFailed = errors.New("payment settlement failed")
)

// HostNotReadyError rejects bookings against a class whose host has not
// finished payout onboarding. The host's name is carried so the caller
// can tell the guest who to contact.
type HostNotReadyError struct {
	Host string
}

func (e *HostNotReadyError) Error() string {
	return fmt.Sprintf("the host of this class (%s) hasn't completed their payment setup yet", e.Host)
}
