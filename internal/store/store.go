// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package store implements an in-memory key-value store with expiring
// entries.
package store

import (
	"context"
	"time"
)

// Store is a generic interface for a key-value store.
type Store interface {
	// Get retrieves a value for a given key.
	// It must return (nil, nil) if the key is not found or has expired.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores a value for a given key. The value expires after ttl, or
	// after the store's default TTL if ttl is zero.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes the value for a given key, if any.
	Delete(ctx context.Context, key string) error
	// Close closes the store and releases any resources.
	Close() error
}
