// HERD - Farm Class Marketplace
// Copyright 2026 JP Dougherty (jpdougherty96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jpdougherty96/herd

package booking

import "github.com/jpdougherty96/herd/internal/models"

// Availability derives a class's remaining capacity from its bookings.
// Only confirmed and fully paid bookings consume seats; pending
// requests hold nothing, so two guests can race for the last spot.
// That race is accepted: spots are recomputed on read, never reserved.
func Availability(class *models.Class, bookings []models.Booking) models.AvailabilityReport {
	confirmed := 0
	for i := range bookings {
		b := &bookings[i]
		if b.ClassID == class.ID && b.CountsTowardCapacity() {
			confirmed += b.StudentCount
		}
	}

	available := class.MaxStudents - confirmed
	if available < 0 {
		available = 0
	}

	return models.AvailabilityReport{
		MaxStudents:       class.MaxStudents,
		ConfirmedBookings: confirmed,
		AvailableSpots:    available,
	}
}
