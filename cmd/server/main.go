// HERD - Farm Class Marketplace
// Copyright 2026 JP Dougherty (jpdougherty96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jpdougherty96/herd

// Package main is the entry point for the HERD server.
//
// HERD is a marketplace connecting farm class hosts and guests: hosts
// list capacity-limited classes, guests request seats and pay. The
// server owns the booking lifecycle (request, settlement, host
// response), derived seat availability, and best-effort email
// notifications over an in-process event bus.
//
// Components start in this order:
//
//  1. Configuration: Koanf v2 layered defaults, YAML file, environment
//  2. Logging: zerolog, JSON or console format
//  3. Store: BadgerDB key-value store
//  4. Services: booking, catalog, payments, notification bus
//  5. Supervision: suture tree running the HTTP server and the
//     notification dispatcher
//
// Graceful shutdown on SIGINT/SIGTERM: the HTTP server drains in-flight
// requests with a bounded timeout, then the bus and store close.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpdougherty96/herd/internal/api"
	"github.com/jpdougherty96/herd/internal/auth"
	"github.com/jpdougherty96/herd/internal/booking"
	"github.com/jpdougherty96/herd/internal/catalog"
	"github.com/jpdougherty96/herd/internal/config"
	"github.com/jpdougherty96/herd/internal/kvstore"
	"github.com/jpdougherty96/herd/internal/logging"
	"github.com/jpdougherty96/herd/internal/notify"
	"github.com/jpdougherty96/herd/internal/payments"
	"github.com/jpdougherty96/herd/internal/supervisor"
	"github.com/jpdougherty96/herd/internal/supervisor/services"
)

// tokenLifetime bounds locally issued tokens. Production tokens come
// from the identity provider with their own expiry; this only applies
// to development tooling.
const tokenLifetime = 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("environment", cfg.Server.Environment).
		Str("db_path", cfg.Database.Path).
		Bool("email_enabled", cfg.Email.Enabled).
		Msg("Starting HERD server")

	store, err := kvstore.Open(kvstore.Config{
		Path:     cfg.Database.Path,
		InMemory: cfg.Database.InMemory,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	jwtManager, err := auth.NewJWTManager(cfg.Security.JWTSecret, tokenLifetime)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize token verifier")
	}

	// Event bus and notification pipeline. Email falls back to logging
	// when delivery is not configured.
	bus := notify.NewBus(notify.DefaultBusConfig(), nil)
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()

	var mailer notify.Mailer
	if cfg.Email.Enabled {
		mailer = notify.NewSMTPMailer(cfg.Email)
	} else {
		logging.Info().Msg("Email delivery disabled, notifications will be logged only")
		mailer = notify.LogMailer{}
	}
	dispatcher := notify.NewDispatcher(bus, mailer, cfg.Server.BaseURL)

	// Core services.
	settlements := payments.NewService(store)
	bookings := booking.NewService(store, settlements, bus, cfg.Booking.FeeRate)
	listings := catalog.NewService(store)

	// HTTP surface.
	handler := api.NewHandler(bookings, listings)
	middleware := api.NewMiddleware(&api.MiddlewareConfig{
		CORSAllowedOrigins: cfg.Security.CORSOrigins,
		RateLimitRequests:  cfg.Security.RateLimitReqs,
		RateLimitWindow:    cfg.Security.RateLimitWindow,
		RateLimitDisabled:  cfg.Security.RateLimitDisabled,
	})
	router := api.NewRouter(handler, middleware, jwtManager)
	router.MetricsEnabled = cfg.Metrics.Enabled

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	// Supervision tree: dispatcher in the messaging layer, HTTP server
	// in the api layer.
	treeCfg := supervisor.DefaultTreeConfig()
	tree := supervisor.NewTree(logging.NewSlogLogger(), treeCfg)
	tree.AddMessagingService(dispatcher)
	tree.AddAPIService(services.NewHTTPServerService(server, treeCfg.ShutdownTimeout))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := tree.ServeBackground(ctx)

	logging.Info().
		Str("addr", server.Addr).
		Bool("metrics", cfg.Metrics.Enabled).
		Msg("HERD server listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Shutting down")
		cancel()
		if err := <-errCh; err != nil && err != context.Canceled {
			logging.Error().Err(err).Msg("Supervisor exited with error")
		}
	case err := <-errCh:
		logging.Error().Err(err).Msg("Supervisor exited unexpectedly")
	}

	logging.Info().Msg("Shutdown complete")
}
