// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package syncx contains synchronization helpers shared by the producers,
// the notification senders and the callback dispatcher.
package syncx

import "sync"

// Protect wraps val into a [Protected].
func Protect[T any](val T) *Protected[T] { return &Protected[T]{val: val} }

// Protected guards a value of type T with a read-write mutex.
type Protected[T any] struct {
	mu  sync.RWMutex
	val T
}

// RAccess calls f with the value under a read lock.
func (p *Protected[T]) RAccess(f func(T)) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	f(p.val)
}

// Access calls f with the value under a write lock.
func (p *Protected[T]) Access(f func(T)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f(p.val)
}

// Lazy holds a value computed on first use.
type Lazy[T any] struct {
	once sync.Once
	val  T
	err  error
}

// Get returns the value, calling f to compute it on the first call.
func (l *Lazy[T]) Get(f func() T) T {
	l.once.Do(func() { l.val = f() })
	return l.val
}

// GetErr is like Get, but f may fail. A failed computation is remembered as
// well.
func (l *Lazy[T]) GetErr(f func() (T, error)) (T, error) {
	l.once.Do(func() { l.val, l.err = f() })
	return l.val, l.err
}

// Map is a type-safe wrapper around [sync.Map]. The zero value is ready to
// use.
type Map[K comparable, V any] struct {
	m sync.Map
}

// Load returns the value stored for key.
func (m *Map[K, V]) Load(key K) (value V, ok bool) {
	v, ok := m.m.Load(key)
	if !ok {
		return value, false
	}
	return v.(V), true
}

// Store sets the value for key.
func (m *Map[K, V]) Store(key K, value V) { m.m.Store(key, value) }

// Delete removes the value for key.
func (m *Map[K, V]) Delete(key K) { m.m.Delete(key) }

// Range calls f for each key and value present in the map until f returns
// false.
func (m *Map[K, V]) Range(f func(key K, value V) bool) {
	m.m.Range(func(k, v any) bool { return f(k.(K), v.(V)) })
}

// Len returns the number of entries in the map.
func (m *Map[K, V]) Len() int {
	var n int
	m.m.Range(func(_, _ any) bool { n++; return true })
	return n
}

// LimitedWaitGroup is a [sync.WaitGroup] that allows at most limit
// goroutines to work at once.
type LimitedWaitGroup struct {
	wg  sync.WaitGroup
	sem chan struct{}
}

// NewLimitedWaitGroup returns a new LimitedWaitGroup.
func NewLimitedWaitGroup(limit int) *LimitedWaitGroup {
	return &LimitedWaitGroup{sem: make(chan struct{}, max(limit, 1))}
}

// Go runs f in a new goroutine, blocking while the limit is reached.
func (lwg *LimitedWaitGroup) Go(f func()) {
	lwg.sem <- struct{}{}
	lwg.wg.Add(1)
	go func() {
		defer func() {
			<-lwg.sem
			lwg.wg.Done()
		}()
		f()
	}()
}

// Wait blocks until all goroutines started by Go have returned.
func (lwg *LimitedWaitGroup) Wait() { lwg.wg.Wait() }
