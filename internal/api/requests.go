// HERD - Farm Class Marketplace
// Copyright 2026 JP Dougherty (jpdougherty96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jpdougherty96/herd

package api

import (
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/jpdougherty96/herd/internal/validation"
)

// maxBodyBytes caps request bodies. Listing photos are URLs, not
// uploads, so nothing legitimate comes close.
const maxBodyBytes = 1 << 20

// respondRequest is the host's decision on a pending booking.
type respondRequest struct {
	Action  string `json:"action" validate:"required,oneof=approve deny decline"`
	Message string `json:"message"`
}

// decodeJSON reads, decodes, and validates a request body. On failure
// it writes the error response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	rw := NewResponseWriter(w, r)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		rw.BadRequest("Failed to read request body")
		return false
	}
	if len(body) > maxBodyBytes {
		rw.BadRequest("Request body too large")
		return false
	}
	if len(body) == 0 {
		rw.BadRequest("Request body is required")
		return false
	}

	if err := json.Unmarshal(body, dst); err != nil {
		rw.BadRequest("Invalid JSON in request body")
		return false
	}

	if verr := validation.ValidateStruct(dst); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return false
	}
	return true
}
