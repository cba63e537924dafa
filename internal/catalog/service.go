// HERD - Farm Class Marketplace
// Copyright 2026 JP Dougherty (jpdougherty96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jpdougherty96/herd

// Package catalog manages the marketplace's listings: class offerings,
// user profiles, and bulletin posts. It owns everything that is not
// booking lifecycle; the booking package consumes its records.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jpdougherty96/herd/internal/auth"
	"github.com/jpdougherty96/herd/internal/kvstore"
	"github.com/jpdougherty96/herd/internal/models"
)

// Sentinel errors mapped to HTTP codes by the api package.
var (
	ErrClassNotFound    = errors.New("class not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrEmailNotVerified = errors.New("email address not verified")
	ErrForbidden        = errors.New("not permitted")
	ErrValidation       = errors.New("invalid request")

	// ErrHasPaidBookings blocks non-admin deletion of a class that
	// already has confirmed and paid bookings.
	ErrHasPaidBookings = errors.New("class has confirmed bookings with completed payments")
)

// CreateClassRequest is a host's new listing.
type CreateClassRequest struct {
	Title               string   `json:"title" validate:"required,notblank"`
	Description         string   `json:"description"`
	Date                string   `json:"date" validate:"required"`
	StartTime           string   `json:"startTime"`
	Duration            float64  `json:"duration" validate:"min=0"`
	Address             string   `json:"address"`
	MaxStudents         int      `json:"maxStudents" validate:"required,min=1"`
	PricePerPerson      float64  `json:"pricePerPerson" validate:"min=0"`
	AutoApproveBookings bool     `json:"autoApproveBookings"`
	Photos              []string `json:"photos"`
}

// UpdateUserRequest carries the profile fields a user may edit. Email,
// admin flag, and payout state are never writable through it.
type UpdateUserRequest struct {
	Name           string `json:"name" validate:"required,notblank"`
	FarmName       string `json:"farmName"`
	Bio            string `json:"bio"`
	Location       string `json:"location"`
	ProfilePicture string `json:"profilePicture"`
}

// CreatePostRequest is a new bulletin entry.
type CreatePostRequest struct {
	Title   string `json:"title" validate:"required,notblank"`
	Content string `json:"content" validate:"required,notblank"`
}

// StripeStatus is the stored payment-readiness view of a user. It
// reflects the store only; no processor call is made.
type StripeStatus struct {
	Connected bool   `json:"connected"`
	AccountID string `json:"accountId,omitempty"`
}

// Service runs listing CRUD against the key-value store.
type Service struct {
	store *kvstore.Store
	now   func() time.Time
	newID func() string
}

func NewService(store *kvstore.Store) *Service {
	return &Service{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// CreateClass publishes a listing with the caller as instructor.
func (s *Service) CreateClass(ctx context.Context, ident *auth.Identity, req *CreateClassRequest) (*models.Class, error) {
	if ident == nil {
		return nil, ErrForbidden
	}
	if !ident.EmailVerified {
		return nil, ErrEmailNotVerified
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("%w: title must not be blank", ErrValidation)
	}
	if req.MaxStudents < 1 {
		return nil, fmt.Errorf("%w: maxStudents must be at least 1", ErrValidation)
	}
	if req.PricePerPerson < 0 {
		return nil, fmt.Errorf("%w: pricePerPerson must not be negative", ErrValidation)
	}

	instructorName := ident.Name
	var profile models.User
	if err := s.store.Get(ctx, models.UserKey(ident.UserID), &profile); err == nil && profile.Name != "" {
		instructorName = profile.Name
	}

	class := &models.Class{
		ID:                  s.newID(),
		Title:               strings.TrimSpace(req.Title),
		Description:         req.Description,
		Date:                req.Date,
		StartTime:           req.StartTime,
		Duration:            req.Duration,
		Address:             req.Address,
		MaxStudents:         req.MaxStudents,
		PricePerPerson:      req.PricePerPerson,
		AutoApproveBookings: req.AutoApproveBookings,
		InstructorID:        ident.UserID,
		InstructorName:      instructorName,
		Photos:              req.Photos,
		CreatedAt:           s.now(),
	}

	if err := s.store.Set(ctx, models.ClassKey(class.ID), class); err != nil {
		return nil, fmt.Errorf("saving class: %w", err)
	}
	return class, nil
}

// GetClass fetches one listing. Public.
func (s *Service) GetClass(ctx context.Context, id string) (*models.Class, error) {
	var class models.Class
	if err := s.store.Get(ctx, models.ClassKey(id), &class); err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return nil, ErrClassNotFound
		}
		return nil, fmt.Errorf("loading class %s: %w", id, err)
	}
	return &class, nil
}

// ListClasses returns every listing in store order. Public.
func (s *Service) ListClasses(ctx context.Context) ([]models.Class, error) {
	values, err := s.store.GetByPrefix(ctx, models.ClassKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("scanning classes: %w", err)
	}
	return kvstore.DecodeAll[models.Class](values), nil
}

// DeleteClass removes a listing. The owner may delete only while no
// confirmed+paid bookings exist against it; admins may always delete.
func (s *Service) DeleteClass(ctx context.Context, ident *auth.Identity, id string) error {
	if ident == nil {
		return ErrForbidden
	}

	class, err := s.GetClass(ctx, id)
	if err != nil {
		return err
	}
	if class.InstructorID != ident.UserID && !ident.Admin {
		return ErrForbidden
	}

	if !ident.Admin {
		values, err := s.store.GetByPrefix(ctx, models.BookingKeyPrefix)
		if err != nil {
			return fmt.Errorf("scanning bookings: %w", err)
		}
		for _, b := range kvstore.DecodeAll[models.Booking](values) {
			if b.ClassID == id && b.CountsTowardCapacity() {
				return ErrHasPaidBookings
			}
		}
	}

	if err := s.store.Delete(ctx, models.ClassKey(id)); err != nil {
		return fmt.Errorf("deleting class %s: %w", id, err)
	}
	return nil
}

// CreateUser materializes a profile for the token's subject. Repeat
// calls return the existing profile untouched, so the signup flow can
// safely retry.
func (s *Service) CreateUser(ctx context.Context, ident *auth.Identity, req *UpdateUserRequest) (*models.User, error) {
	if ident == nil {
		return nil, ErrForbidden
	}
	if !ident.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	var existing models.User
	err := s.store.Get(ctx, models.UserKey(ident.UserID), &existing)
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, kvstore.ErrKeyNotFound) {
		return nil, fmt.Errorf("loading user %s: %w", ident.UserID, err)
	}

	name := ident.Name
	if req != nil && strings.TrimSpace(req.Name) != "" {
		name = strings.TrimSpace(req.Name)
	}

	user := &models.User{
		ID:        ident.UserID,
		Email:     ident.Email,
		Name:      name,
		IsAdmin:   ident.Admin,
		CreatedAt: s.now(),
	}
	if req != nil {
		user.FarmName = req.FarmName
		user.Bio = req.Bio
		user.Location = req.Location
		user.ProfilePicture = req.ProfilePicture
	}

	if err := s.store.Set(ctx, models.UserKey(user.ID), user); err != nil {
		return nil, fmt.Errorf("saving user: %w", err)
	}
	return user, nil
}

// GetUser fetches a profile. Any authenticated caller may look up any
// profile; payout identifiers are only exposed through StripeStatus.
func (s *Service) GetUser(ctx context.Context, ident *auth.Identity, id string) (*models.User, error) {
	if ident == nil {
		return nil, ErrForbidden
	}

	var user models.User
	if err := s.store.Get(ctx, models.UserKey(id), &user); err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("loading user %s: %w", id, err)
	}

	if id != ident.UserID {
		user.StripeAccountID = ""
	}
	return &user, nil
}

// UpdateUser edits the caller's own profile.
func (s *Service) UpdateUser(ctx context.Context, ident *auth.Identity, id string, req *UpdateUserRequest) (*models.User, error) {
	if ident == nil || ident.UserID != id {
		return nil, ErrForbidden
	}
	if !ident.EmailVerified {
		return nil, ErrEmailNotVerified
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("%w: name must not be blank", ErrValidation)
	}

	var user models.User
	if err := s.store.Get(ctx, models.UserKey(id), &user); err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("loading user %s: %w", id, err)
	}

	user.Name = strings.TrimSpace(req.Name)
	user.FarmName = req.FarmName
	user.Bio = req.Bio
	user.Location = req.Location
	user.ProfilePicture = req.ProfilePicture

	if err := s.store.Set(ctx, models.UserKey(id), &user); err != nil {
		return nil, fmt.Errorf("saving user: %w", err)
	}
	return &user, nil
}

// StripeStatus reports the caller's own payout readiness from the
// store.
func (s *Service) StripeStatus(ctx context.Context, ident *auth.Identity, userID string) (*StripeStatus, error) {
	if ident == nil || ident.UserID != userID {
		return nil, ErrForbidden
	}

	var user models.User
	if err := s.store.Get(ctx, models.UserKey(userID), &user); err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("loading user %s: %w", userID, err)
	}

	return &StripeStatus{
		Connected: user.PaymentReady(),
		AccountID: user.StripeAccountID,
	}, nil
}

// CreatePost publishes a bulletin entry authored by the caller.
func (s *Service) CreatePost(ctx context.Context, ident *auth.Identity, req *CreatePostRequest) (*models.Post, error) {
	if ident == nil {
		return nil, ErrForbidden
	}
	if !ident.EmailVerified {
		return nil, ErrEmailNotVerified
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("%w: title and content must not be blank", ErrValidation)
	}

	authorName := ident.Name
	var profile models.User
	if err := s.store.Get(ctx, models.UserKey(ident.UserID), &profile); err == nil && profile.Name != "" {
		authorName = profile.Name
	}

	post := &models.Post{
		ID:         s.newID(),
		AuthorID:   ident.UserID,
		AuthorName: authorName,
		Title:      strings.TrimSpace(req.Title),
		Content:    strings.TrimSpace(req.Content),
		CreatedAt:  s.now(),
	}

	if err := s.store.Set(ctx, models.PostKey(post.ID), post); err != nil {
		return nil, fmt.Errorf("saving post: %w", err)
	}
	return post, nil
}

// ListPosts returns all bulletin entries in store order. Public.
func (s *Service) ListPosts(ctx context.Context) ([]models.Post, error) {
	values, err := s.store.GetByPrefix(ctx, models.PostKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("scanning posts: %w", err)
	}
	return kvstore.DecodeAll[models.Post](values), nil
}
