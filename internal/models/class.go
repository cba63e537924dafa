// HERD - Farm Class Marketplace
// Copyright 2026 JP Dougherty (jpdougherty96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jpdougherty96/herd

// Package models defines the wire and storage records for the HERD
// marketplace: classes, bookings, users, and bulletin posts. Records are
// stored as JSON in the key-value store under namespaced keys and use
// camelCase tags matching the public API.
package models

import "time"

// Key prefixes for the flat key-value store.
const (
	ClassKeyPrefix      = "class:"
	BookingKeyPrefix    = "booking:"
	UserKeyPrefix       = "user:"
	PostKeyPrefix       = "post:"
	SettlementKeyPrefix = "settlement:"
)

// ClassKey returns the storage key for a class ID.
func ClassKey(id string) string { return ClassKeyPrefix + id }

// BookingKey returns the storage key for a booking ID.
func BookingKey(id string) string { return BookingKeyPrefix + id }

// UserKey returns the storage key for a user ID.
func UserKey(id string) string { return UserKeyPrefix + id }

// PostKey returns the storage key for a post ID.
func PostKey(id string) string { return PostKeyPrefix + id }

// SettlementKey returns the storage key for a settlement record,
// keyed by booking ID so repeat settles find the original capture.
func SettlementKey(bookingID string) string { return SettlementKeyPrefix + bookingID }

// Class is a host-listed offering with a fixed seat capacity.
//
// AutoApproveBookings is the listing's booking policy at the moment a
// guest books; each booking freezes its own copy so a host edit never
// changes an in-flight request's path.
type Class struct {
	ID                  string    `json:"id"`
	Title               string    `json:"title"`
	Description         string    `json:"description,omitempty"`
	Date                string    `json:"date"`
	StartTime           string    `json:"startTime,omitempty"`
	Duration            float64   `json:"duration,omitempty"`
	Address             string    `json:"address,omitempty"`
	MaxStudents         int       `json:"maxStudents"`
	PricePerPerson      float64   `json:"pricePerPerson"`
	AutoApproveBookings bool      `json:"autoApproveBookings"`
	InstructorID        string    `json:"instructorId"`
	InstructorName      string    `json:"instructorName,omitempty"`
	Photos              []string  `json:"photos,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
}

// AvailabilityReport is the public capacity view of a class. Spots are
// recomputed from bookings on every request, never stored.
type AvailabilityReport struct {
	MaxStudents       int `json:"maxStudents"`
	ConfirmedBookings int `json:"confirmedBookings"`
	AvailableSpots    int `json:"availableSpots"`
}
