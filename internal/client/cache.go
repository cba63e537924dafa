// HERD - Farm Class Marketplace
// Copyright 2026 JP Dougherty (jpdougherty96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jpdougherty96/herd

// Package client is the reconciliation layer for marketplace consumers:
// a size-bounded local cache of classes and bookings, a retry policy
// with progressive timeouts, and a deterministic cache/server merge.
// The goal is that a slow or unreachable server degrades the app to
// cached data, never to a hard failure.
package client

import (
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/jpdougherty96/herd/internal/models"
)

// cacheEntry is a node in the recency list. head.next is the most
// recently written entry; tail.prev the oldest.
type cacheEntry struct {
	key     string
	class   *models.Class
	booking *models.Booking
	size    int
	prev    *cacheEntry
	next    *cacheEntry
}

// Cache is a thread-safe, byte-bounded store of classes and bookings.
// When the budget is exceeded it degrades instead of refusing writes:
// photo payloads are stripped from the oldest entries first, then the
// oldest entries are dropped entirely.
type Cache struct {
	mu sync.Mutex

	maxBytes  int
	usedBytes int

	items map[string]*cacheEntry
	head  *cacheEntry
	tail  *cacheEntry
}

// DefaultCacheBytes is roughly what a few hundred photo-free listings
// occupy.
const DefaultCacheBytes = 1 << 20

// NewCache creates a cache bounded to maxBytes of serialized payload.
func NewCache(maxBytes int) *Cache {
	if maxBytes <= 0 {
		maxBytes = DefaultCacheBytes
	}

	c := &Cache{
		maxBytes: maxBytes,
		items:    make(map[string]*cacheEntry),
		head:     &cacheEntry{},
		tail:     &cacheEntry{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// PutClass stores or overwrites a class.
func (c *Cache) PutClass(class models.Class) {
	c.put(models.ClassKey(class.ID), &cacheEntry{
		key:   models.ClassKey(class.ID),
		class: &class,
		size:  payloadSize(class),
	})
}

// PutBooking stores or overwrites a booking.
func (c *Cache) PutBooking(b models.Booking) {
	c.put(models.BookingKey(b.ID), &cacheEntry{
		key:     models.BookingKey(b.ID),
		booking: &b,
		size:    payloadSize(b),
	})
}

// Class returns a cached class by ID.
func (c *Cache) Class(id string) (models.Class, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.items[models.ClassKey(id)]; ok && entry.class != nil {
		return *entry.class, true
	}
	return models.Class{}, false
}

// Classes returns all cached classes sorted by ID.
func (c *Cache) Classes() []models.Class {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.Class, 0)
	for _, entry := range c.items {
		if entry.class != nil {
			out = append(out, *entry.class)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Bookings returns all cached bookings sorted by ID.
func (c *Cache) Bookings() []models.Booking {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.Booking, 0)
	for _, entry := range c.items {
		if entry.booking != nil {
			out = append(out, *entry.booking)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// SizeBytes returns the current serialized payload size.
func (c *Cache) SizeBytes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usedBytes
}

func (c *Cache) put(key string, entry *cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.items[key]; ok {
		c.removeEntry(old)
	}

	c.items[key] = entry
	c.pushFront(entry)
	c.usedBytes += entry.size

	c.degrade()
}

// degrade brings the cache back under budget. Oldest entries lose
// their photos first; only when every photo is gone do whole entries
// get dropped, oldest first. The entry just written is never dropped.
func (c *Cache) degrade() {
	// Pass 1: strip photos from the oldest entries.
	for e := c.tail.prev; c.usedBytes > c.maxBytes && e != c.head; e = e.prev {
		if e.class == nil || len(e.class.Photos) == 0 {
			continue
		}
		stripped := *e.class
		stripped.Photos = nil
		c.usedBytes -= e.size
		e.class = &stripped
		e.size = payloadSize(stripped)
		c.usedBytes += e.size
	}

	// Pass 2: drop whole entries, oldest first.
	for c.usedBytes > c.maxBytes && len(c.items) > 1 {
		c.removeEntry(c.tail.prev)
	}
}

func (c *Cache) pushFront(entry *cacheEntry) {
	entry.prev = c.head
	entry.next = c.head.next
	c.head.next.prev = entry
	c.head.next = entry
}

func (c *Cache) removeEntry(entry *cacheEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	delete(c.items, entry.key)
	c.usedBytes -= entry.size
}

func payloadSize(v interface{}) int {
	data, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return len(data)
}
