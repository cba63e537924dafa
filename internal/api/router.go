// HERD - Farm Class Marketplace
// Copyright 2026 JP Dougherty (jpdougherty96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jpdougherty96/herd

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jpdougherty96/herd/internal/auth"
)

// Router assembles the HTTP surface from handlers and middleware.
type Router struct {
	handler    *Handler
	middleware *Middleware
	jwt        *auth.JWTManager

	// MetricsEnabled exposes /metrics when set.
	MetricsEnabled bool
}

// NewRouter creates a router over the given handlers.
func NewRouter(handler *Handler, mw *Middleware, jwt *auth.JWTManager) *Router {
	return &Router{
		handler:    handler,
		middleware: mw,
		jwt:        jwt,
	}
}

// Setup configures all routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route in order.
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.middleware.CORS())

	// Public endpoints. Browsing classes and posts needs no account.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.middleware.RateLimit())
		r.Use(PrometheusMetrics())

		r.Get("/health", router.handler.Health)
		r.Get("/classes", router.handler.ListClasses)
		r.Get("/class/{id}/available-spots", router.handler.AvailableSpots)
		r.Get("/posts", router.handler.ListPosts)

		// Everything else requires a valid bearer token.
		r.Group(func(r chi.Router) {
			r.Use(Authenticate(router.jwt))

			r.Post("/user", router.handler.CreateUser)
			r.Get("/user/{id}", router.handler.GetUser)
			r.Put("/user/{id}", router.handler.UpdateUser)

			r.Post("/class", router.handler.CreateClass)
			r.Delete("/class/{id}", router.handler.DeleteClass)
			r.Get("/class/{id}/bookings", router.handler.ClassBookings)

			r.Post("/booking", router.handler.CreateBooking)
			r.Post("/booking/{id}/respond", router.handler.RespondBooking)
			r.Get("/bookings/{userId}", router.handler.UserBookings)

			r.Post("/post", router.handler.CreatePost)

			r.Get("/stripe/status/{userId}", router.handler.StripeStatus)
		})
	})

	if router.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}
