// HERD - Farm Class Marketplace
// Copyright 2026 JP Dougherty (jpdougherty96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jpdougherty96/herd

package models

import (
	"math"
	"time"
)

// BookingStatus is the approval state of a booking. Pending may move to
// confirmed, denied, or failed; the other three are terminal.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingDenied    BookingStatus = "denied"
	BookingFailed    BookingStatus = "failed"
)

// Terminal reports whether no further status transitions are allowed.
func (s BookingStatus) Terminal() bool {
	return s == BookingConfirmed || s == BookingDenied || s == BookingFailed
}

// PaymentStatus tracks settlement independently of approval status.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// DefaultFeeRate is the platform fee applied to every booking subtotal.
const DefaultFeeRate = 0.05

// Booking is a guest's seat request against a class. Host and class
// fields are copied at creation time and never re-derived, so later
// profile or listing edits do not rewrite history.
type Booking struct {
	ID           string `json:"id"`
	ClassID      string `json:"classId"`
	ClassTitle   string `json:"className"`
	ClassDate    string `json:"classDate,omitempty"`
	ClassAddress string `json:"classAddress,omitempty"`

	UserID    string `json:"userId"`
	UserEmail string `json:"userEmail"`
	UserName  string `json:"userName"`

	HostID    string `json:"hostId"`
	HostEmail string `json:"hostEmail,omitempty"`
	HostName  string `json:"hostName,omitempty"`

	StudentCount int      `json:"studentCount"`
	StudentNames []string `json:"studentNames"`

	Subtotal    float64 `json:"subtotal"`
	HerdFee     float64 `json:"herdFee"`
	TotalAmount float64 `json:"totalAmount"`

	Status        BookingStatus `json:"status"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`

	// AutoApprove is the class policy frozen at creation.
	AutoApprove bool `json:"autoApprove"`

	// PaymentRef is the settlement's external reference, set once
	// settlement succeeds.
	PaymentRef string `json:"paymentRef,omitempty"`

	HostMessage string `json:"hostMessage,omitempty"`

	CreatedAt  time.Time  `json:"createdAt"`
	ApprovedAt *time.Time `json:"approvedAt,omitempty"`
	DeniedAt   *time.Time `json:"deniedAt,omitempty"`
}

// CountsTowardCapacity reports whether this booking consumes seats.
// Only confirmed and fully paid bookings do; pending, denied, and
// failed bookings never reduce availability.
func (b *Booking) CountsTowardCapacity() bool {
	return b.Status == BookingConfirmed && b.PaymentStatus == PaymentCompleted
}

// RoundMoney rounds an amount to cents, half away from zero.
func RoundMoney(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// PriceBooking computes the charge breakdown for a seat request.
// The platform fee is rounded to cents before the total is formed, so
// subtotal + fee always reproduces the stored total exactly.
func PriceBooking(pricePerPerson float64, studentCount int, feeRate float64) (subtotal, fee, total float64) {
	subtotal = RoundMoney(pricePerPerson * float64(studentCount))
	fee = RoundMoney(subtotal * feeRate)
	total = RoundMoney(subtotal + fee)
	return subtotal, fee, total
}
