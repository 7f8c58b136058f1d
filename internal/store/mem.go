// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package store

import (
	"context"
	"sync"
	"time"

	"github.com/learning/dailypush/internal/util/syncx"
)

// MemStore is an in-memory implementation of the Store interface.
type MemStore struct {
	ttl   time.Duration
	now   func() time.Time
	cache syncx.Map[string, cacheEntry]

	stop     context.CancelFunc
	stopOnce sync.Once
}

// NewMemStore creates a new MemStore with the given default TTL. Expired
// entries are swept until ctx is canceled or the store is closed.
func NewMemStore(ctx context.Context, ttl time.Duration) *MemStore {
	return newMemStore(ctx, ttl, time.Now)
}

func newMemStore(ctx context.Context, ttl time.Duration, now func() time.Time) *MemStore {
	ctx, cancel := context.WithCancel(ctx)
	s := &MemStore{
		ttl:  ttl,
		now:  now,
		stop: cancel,
	}
	go s.cleanup(ctx)
	return s
}

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

func (s *MemStore) cleanup(ctx context.Context) {
	ticker := time.NewTicker(s.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := s.now()
			s.cache.Range(func(key string, entry cacheEntry) bool {
				if now.After(entry.expiresAt) {
					s.cache.Delete(key)
				}
				return true
			})
		case <-ctx.Done():
			return
		}
	}
}

// Get retrieves a value for a given key.
func (s *MemStore) Get(_ context.Context, key string) ([]byte, error) {
	entry, ok := s.cache.Load(key)
	if !ok {
		return nil, nil
	}
	if s.now().After(entry.expiresAt) {
		s.cache.Delete(key)
		return nil, nil
	}
	// Return a copy to prevent the caller from mutating the cache.
	return append([]byte(nil), entry.value...), nil
}

// Set stores a value for a given key.
func (s *MemStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.ttl
	}
	s.cache.Store(key, cacheEntry{
		value:     append([]byte(nil), value...),
		expiresAt: s.now().Add(ttl),
	})
	return nil
}

// Delete removes the value for a given key.
func (s *MemStore) Delete(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

// Close stops the background sweeper.
func (s *MemStore) Close() error {
	s.stopOnce.Do(s.stop)
	return nil
}
