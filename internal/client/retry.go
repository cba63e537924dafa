// HERD - Farm Class Marketplace
// Copyright 2026 JP Dougherty (jpdougherty96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jpdougherty96/herd

package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jpdougherty96/herd/internal/logging"
)

// StatusError is a non-2xx server answer. It is a definite outcome,
// unlike a transport failure: the server made a decision. Client errors
// are never retried; server errors are.
type StatusError struct {
	Code    int
	Status  string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("server returned %d %s", e.Code, e.Status)
}

// RetryPolicy runs an operation with one timeout per attempt and a
// capped exponential backoff between attempts. The attempt timeouts
// grow so a momentarily slow server gets more room on each retry.
type RetryPolicy struct {
	// Timeouts holds one entry per attempt. Its length is the attempt
	// count.
	Timeouts []time.Duration

	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetryPolicy allows two retries after the initial attempt,
// with progressively longer timeouts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Timeouts:  []time.Duration{10 * time.Second, 15 * time.Second, 20 * time.Second},
		BaseDelay: 500 * time.Millisecond,
		MaxDelay:  5 * time.Second,
	}
}

// Do executes fn under the policy. A timed-out attempt abandons the
// underlying call, which may still complete server-side; operations
// run this way must therefore be idempotent or tolerate duplicates.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if len(p.Timeouts) == 0 {
		p = DefaultRetryPolicy()
	}

	var err error
	delay := p.BaseDelay

	for attempt, timeout := range p.Timeouts {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		err = fn(attemptCtx)
		cancel()

		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}

		if attempt < len(p.Timeouts)-1 {
			logging.Warn().Err(err).
				Str("operation", op).
				Int("attempt", attempt+1).
				Int("max_attempts", len(p.Timeouts)).
				Dur("delay", delay).
				Msg("Retrying after transient failure")

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}

			delay *= 2
			if delay > p.MaxDelay {
				delay = p.MaxDelay
			}
		}
	}

	return fmt.Errorf("max retry attempts reached: %w", err)
}

// retryable reports whether an error is worth another attempt: yes for
// transport failures, attempt timeouts, and 5xx answers; no for 4xx
// answers and parent-context cancellation.
func retryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= 500
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}
