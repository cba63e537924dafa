// HERD - Farm Class Marketplace
// Copyright 2026 JP Dougherty (jpdougherty96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jpdougherty96/herd

package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/jpdougherty96/herd/internal/auth"
	"github.com/jpdougherty96/herd/internal/booking"
	"github.com/jpdougherty96/herd/internal/logging"
	"github.com/jpdougherty96/herd/internal/models"
)

// envelope mirrors the server's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Config configures a marketplace client.
type Config struct {
	// BaseURL is the server root, e.g. "https://herd.example".
	BaseURL string

	// Token is the bearer credential attached to authenticated calls.
	Token string

	MaxCacheBytes int
	Retry         RetryPolicy

	// BreakerFailureThreshold trips the transport breaker after this
	// many consecutive failures. Zero disables it.
	BreakerFailureThreshold uint32
	BreakerTimeout          time.Duration
}

// Client talks to a HERD server and keeps the local cache usable when
// the server is not. Reads fall back to cached data; a profile fetch
// that exhausts its retries falls back to a minimal record built from
// the auth session.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	cache      *Cache
	retry      RetryPolicy
	breaker    *gobreaker.CircuitBreaker[[]byte]
}

// New creates a client. The HTTP client carries no global timeout;
// per-attempt deadlines come from the retry policy.
func New(cfg Config) *Client {
	retry := cfg.Retry
	if len(retry.Timeouts) == 0 {
		retry = DefaultRetryPolicy()
	}

	c := &Client{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		cache:      NewCache(cfg.MaxCacheBytes),
		retry:      retry,
	}

	if cfg.BreakerFailureThreshold > 0 {
		timeout := cfg.BreakerTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:    "herd-client",
			Timeout: timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.BreakerFailureThreshold
			},
		})
	}

	return c
}

// Cache exposes the local cache, mainly for persistence hooks and
// tests.
func (c *Client) Cache() *Cache {
	return c.cache
}

// Classes returns the reconciled class list. On a reachable server the
// result is the union of cache and server (server wins per ID) and the
// cache is updated; when every retry fails, the cached copy is
// returned with fresh=false.
func (c *Client) Classes(ctx context.Context) (classes []models.Class, fresh bool, err error) {
	var remote []models.Class
	fetchErr := c.retry.Do(ctx, "list-classes", func(ctx context.Context) error {
		return c.getJSON(ctx, "/api/v1/classes", &remote)
	})

	if fetchErr != nil {
		cached := c.cache.Classes()
		if len(cached) == 0 {
			return nil, false, fmt.Errorf("listing classes: %w", fetchErr)
		}
		logging.Warn().Err(fetchErr).Int("cached", len(cached)).
			Msg("Serving classes from cache after fetch failure")
		return cached, false, nil
	}

	merged := MergeClasses(c.cache.Classes(), remote)
	for _, class := range remote {
		c.cache.PutClass(class)
	}
	return merged, true, nil
}

// AvailableSpots fetches a class's derived capacity. Never cached:
// a stale seat count is worse than a slow one.
func (c *Client) AvailableSpots(ctx context.Context, classID string) (*models.AvailabilityReport, error) {
	var report models.AvailabilityReport
	err := c.retry.Do(ctx, "available-spots", func(ctx context.Context) error {
		return c.getJSON(ctx, "/api/v1/class/"+classID+"/available-spots", &report)
	})
	if err != nil {
		return nil, fmt.Errorf("fetching available spots: %w", err)
	}
	return &report, nil
}

// CreateBooking books seats. Retried attempts may duplicate the create
// call; settlement idempotency on the server keeps money safe, and the
// returned booking is cached for offline display.
func (c *Client) CreateBooking(ctx context.Context, req *booking.CreateRequest) (*models.Booking, string, error) {
	var (
		b       models.Booking
		message string
	)
	err := c.retry.Do(ctx, "create-booking", func(ctx context.Context) error {
		var innerErr error
		message, innerErr = c.postJSON(ctx, "/api/v1/booking", req, &b)
		return innerErr
	})
	if err != nil {
		return nil, "", fmt.Errorf("creating booking: %w", err)
	}

	c.cache.PutBooking(b)
	return &b, message, nil
}

// Bookings lists the session user's bookings, falling back to cache.
func (c *Client) Bookings(ctx context.Context, userID string) (bookings []models.Booking, fresh bool, err error) {
	var remote []models.Booking
	fetchErr := c.retry.Do(ctx, "list-bookings", func(ctx context.Context) error {
		return c.getJSON(ctx, "/api/v1/bookings/"+userID, &remote)
	})

	if fetchErr != nil {
		cached := c.cache.Bookings()
		if len(cached) == 0 {
			return nil, false, fmt.Errorf("listing bookings: %w", fetchErr)
		}
		logging.Warn().Err(fetchErr).Int("cached", len(cached)).
			Msg("Serving bookings from cache after fetch failure")
		return cached, false, nil
	}

	for _, b := range remote {
		c.cache.PutBooking(b)
	}
	return remote, true, nil
}

// Profile fetches the session user's profile. When every retry fails
// it reconstructs a minimal record from the auth session so the app
// stays usable; fallback=true flags the degraded copy.
func (c *Client) Profile(ctx context.Context, session *auth.Identity) (profile *models.User, fallback bool, err error) {
	var user models.User
	fetchErr := c.retry.Do(ctx, "fetch-profile", func(ctx context.Context) error {
		return c.getJSON(ctx, "/api/v1/user/"+session.UserID, &user)
	})

	if fetchErr != nil {
		logging.Warn().Err(fetchErr).Str("user_id", session.UserID).
			Msg("Falling back to minimal profile from auth session")
		return &models.User{
			ID:    session.UserID,
			Email: session.Email,
			Name:  session.Name,
		}, true, nil
	}
	return &user, false, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	data, _, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out interface{}) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	data, message, err := c.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return "", err
	}
	return message, json.Unmarshal(data, out)
}

// do performs one HTTP attempt through the breaker and unwraps the
// response envelope.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (json.RawMessage, string, error) {
	call := func() ([]byte, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, fmt.Errorf("building request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("reading response: %w", err)
		}

		if resp.StatusCode >= 400 {
			statusErr := &StatusError{Code: resp.StatusCode, Status: resp.Status}
			var env envelope
			if json.Unmarshal(raw, &env) == nil && env.Error != nil {
				statusErr.Message = env.Error.Message
			}
			return nil, statusErr
		}
		return raw, nil
	}

	var (
		raw []byte
		err error
	)
	if c.breaker != nil {
		raw, err = c.breaker.Execute(call)
	} else {
		raw, err = call()
	}
	if err != nil {
		return nil, "", err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, "", fmt.Errorf("decoding response envelope: %w", err)
	}
	if !env.Success {
		message := "request failed"
		if env.Error != nil {
			message = env.Error.Message
		}
		return nil, "", fmt.Errorf("server rejected request: %s", message)
	}
	return env.Data, env.Message, nil
}
