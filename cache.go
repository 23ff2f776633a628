package main

import (
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"
)

// ExpiringCache memoizes the result of an expensive producer for a fixed
// duration, collapsing any number of concurrent callers into at most one
// in-flight refresh. The lock is held across the producer call itself —
// by design, see the note on Get — so callers must
// keep the producer latency bounded and must never call Get reentrantly.
type ExpiringCache struct {
	mu       sync.Mutex
	value    interface{}
	fetchedAt time.Time
	valid    bool

	duration time.Duration
	clock    clock.Clock
}

// NewExpiringCache returns a cache that treats a cached value as fresh for
// up to duration.
func NewExpiringCache(duration time.Duration) *ExpiringCache {
	return &ExpiringCache{
		duration: duration,
		clock:    clock.NewDefaultClock(),
	}
}

// newExpiringCacheWithClock is used by tests to inject a fake clock so the
// expiry scenarios in the testable-properties section run deterministically
// instead of racing real time.
func newExpiringCacheWithClock(duration time.Duration, c clock.Clock) *ExpiringCache {
	return &ExpiringCache{duration: duration, clock: c}
}

// Get returns a cached value if its age is less than the cache's configured
// duration; otherwise it invokes fetch, stores the result with the current
// instant, and returns it. The entire check-and-maybe-refresh is performed
// under a single mutex: concurrent callers during a refresh block on that
// mutex and then observe the fresh value, never the stale one, and the
// producer never runs more than once per window. A producer error is
// returned to the caller and never cached.
func (c *ExpiringCache) Get(fetch func() (interface{}, error)) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid && c.clock.Now().Sub(c.fetchedAt) < c.duration {
		return c.value, nil
	}

	value, err := fetch()
	if err != nil {
		return nil, err
	}

	c.value = value
	c.fetchedAt = c.clock.Now()
	c.valid = true

	return c.value, nil
}
