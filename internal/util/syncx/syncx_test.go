// © 2024 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package syncx

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/learning/dailypush/internal/testutil"
)

func TestProtected(t *testing.T) {
	t.Parallel()

	p := Protect(map[string]int{})
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Access(func(m map[string]int) { m["jobs"]++ })
		}()
	}
	wg.Wait()

	var got int
	p.RAccess(func(m map[string]int) { got = m["jobs"] })
	testutil.AssertEqual(t, got, 50)
}

func TestLazy(t *testing.T) {
	t.Parallel()

	var (
		l     Lazy[int]
		calls atomic.Int32
	)
	f := func() int { return int(calls.Add(1)) }

	testutil.AssertEqual(t, l.Get(f), 1)
	testutil.AssertEqual(t, l.Get(f), 1)
	testutil.AssertEqual(t, int(calls.Load()), 1)

	var le Lazy[string]
	errBoom := errors.New("boom")
	for range 2 {
		v, err := le.GetErr(func() (string, error) { return "", errBoom })
		testutil.AssertEqual(t, v, "")
		if !errors.Is(err, errBoom) {
			t.Fatalf("want errBoom, got %v", err)
		}
	}
}

func TestMap(t *testing.T) {
	t.Parallel()

	var m Map[string, int]
	m.Store("a", 1)
	m.Store("b", 2)

	v, ok := m.Load("a")
	testutil.AssertEqual(t, ok, true)
	testutil.AssertEqual(t, v, 1)

	_, ok = m.Load("c")
	testutil.AssertEqual(t, ok, false)
	testutil.AssertEqual(t, m.Len(), 2)

	m.Delete("a")
	var keys []string
	m.Range(func(k string, _ int) bool {
		keys = append(keys, k)
		return true
	})
	sort.Strings(keys)
	testutil.AssertEqual(t, keys, []string{"b"})
}

func TestLimitedWaitGroup(t *testing.T) {
	t.Parallel()

	const limit = 3

	var (
		lwg     = NewLimitedWaitGroup(limit)
		running atomic.Int32
		peak    atomic.Int32
		done    atomic.Int32
	)
	for range 12 {
		lwg.Go(func() {
			cur := running.Add(1)
			defer running.Add(-1)
			for {
				p := peak.Load()
				if cur <= p || peak.CompareAndSwap(p, cur) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			done.Add(1)
		})
	}
	lwg.Wait()

	testutil.AssertEqual(t, int(done.Load()), 12)
	if p := peak.Load(); p > limit {
		t.Fatalf("peak concurrency %d exceeds limit %d", p, limit)
	}
}
