// HERD - Farm Class Marketplace
// Copyright 2026 JP Dougherty (jpdougherty96)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jpdougherty96/herd

// Package kvstore provides the flat key-value persistence layer backed by
// BadgerDB. All domain records are stored as JSON values under namespaced
// string keys (class:, booking:, user:, post:, settlement:). The store
// deliberately exposes no multi-key transactions; callers that need
// read-modify-write across keys accept last-write-wins semantics.
package kvstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// ErrKeyNotFound is returned by Get when no record exists for the key.
var ErrKeyNotFound = errors.New("kvstore: key not found")

// Config controls how the underlying BadgerDB is opened.
type Config struct {
	// Path is the on-disk directory for the database. Ignored when
	// InMemory is set.
	Path string

	// InMemory opens an ephemeral database. Used by tests and dev mode.
	InMemory bool
}

// Store is a BadgerDB-backed key-value store with JSON values.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the database described by cfg.
func Open(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)
	opts.Logger = nil // Suppress BadgerDB logs
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return &Store{db: db}, nil
}

// NewFromDB wraps an already-open BadgerDB. The caller retains ownership
// of the database lifecycle.
func NewFromDB(db *badger.DB) *Store {
	return &Store{db: db}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying BadgerDB handle.
func (s *Store) DB() *badger.DB {
	return s.db
}

// Set marshals v to JSON and stores it under key.
func (s *Store) Set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// Get retrieves the value stored under key and unmarshals it into out.
// Returns ErrKeyNotFound when the key does not exist.
func (s *Store) Get(ctx context.Context, key string, out any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrKeyNotFound
		}
		if err != nil {
			return fmt.Errorf("get %s: %w", key, err)
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
}

// Exists reports whether a record is stored under key.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check %s: %w", key, err)
	}
	return true, nil
}

// Delete removes the record stored under key. Deleting a missing key is
// not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(key)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete %s: %w", key, err)
		}
		return nil
	})
}

// GetByPrefix returns the raw JSON values of every record whose key
// starts with prefix, in key order. The scan walks every key under the
// prefix; cost grows linearly with the keyspace.
func (s *Store) GetByPrefix(ctx context.Context, prefix string) ([][]byte, error) {
	var values [][]byte

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				cp := make([]byte, len(val))
				copy(cp, val)
				values = append(values, cp)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("scan prefix %s: %w", prefix, err)
	}

	return values, nil
}

// CountByPrefix returns the number of records whose key starts with
// prefix, without loading values.
func (s *Store) CountByPrefix(ctx context.Context, prefix string) (int, error) {
	count := 0

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			count++
		}
		return nil
	})

	return count, err
}

// DecodeAll unmarshals each raw value into a T and returns the slice.
// Records that fail to decode are skipped; a store shared with older
// record shapes should not poison a whole listing.
func DecodeAll[T any](values [][]byte) []T {
	out := make([]T, 0, len(values))
	for _, v := range values {
		var t T
		if err := json.Unmarshal(v, &t); err != nil {
			continue
		}
		out = append(out, t)
	}
	return out
}
