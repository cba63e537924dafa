// HERD - Farm Class Marketplace
// Copyright 2026 JP Dougherty (jpdougherty96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jpdougherty96/herd

package models

import "time"

// User is a marketplace profile. Identity (credentials, email
// verification) lives in the external auth provider; this record holds
// only marketplace-facing fields keyed by the provider's subject ID.
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	FarmName       string    `json:"farmName,omitempty"`
	Bio            string    `json:"bio,omitempty"`
	Location       string    `json:"location,omitempty"`
	ProfilePicture string    `json:"profilePicture,omitempty"`
	IsAdmin        bool      `json:"isAdmin,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`

	// StripeConnected gates hosting: a class whose instructor has not
	// completed payout onboarding cannot take bookings.
	StripeConnected bool   `json:"stripeConnected"`
	StripeAccountID string `json:"stripeAccountId,omitempty"`
}

// PaymentReady reports whether the user can receive booking payouts.
func (u *User) PaymentReady() bool {
	return u.StripeConnected && u.StripeAccountID != ""
}

// Post is a bulletin-board entry. No ranking or feed logic applies;
// listings return posts in store order.
type Post struct {
	ID         string    `json:"id"`
	AuthorID   string    `json:"authorId"`
	AuthorName string    `json:"authorName,omitempty"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}
