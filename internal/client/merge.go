// HERD - Farm Class Marketplace
// Copyright 2026 JP Dougherty (jpdougherty96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jpdougherty96/herd

package client

import (
	"sort"

	"github.com/jpdougherty96/herd/internal/models"
)

// MergeClasses reconciles a local class list with the server's. The
// result is the union by ID: the server's copy wins on collision, and
// local-only entries are preserved, never deleted on the server's
// behalf. Output order is deterministic (sorted by ID) so repeated
// merges of the same inputs are byte-identical.
func MergeClasses(local, remote []models.Class) []models.Class {
	merged := make(map[string]models.Class, len(local)+len(remote))
	for _, c := range local {
		merged[c.ID] = c
	}
	for _, c := range remote {
		merged[c.ID] = c
	}

	out := make([]models.Class, 0, len(merged))
	for _, c := range merged {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
