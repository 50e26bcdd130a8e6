package sweep

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// ThrottleCache deduplicates repeat notifications to the same recipient
// inside a cooldown window. Injected into the sweeps so tests can supply
// their own.
type ThrottleCache interface {
	// ShouldNotify reports whether the last recorded notification for key
	// is older than threshold (or absent).
	ShouldNotify(key string, threshold time.Duration) bool
	// Record stamps key with the time a notification went out.
	Record(key string, t time.Time)
}

type cacheThrottle struct {
	c   *gocache.Cache
	now func() time.Time
}

// NewThrottleCache builds a ThrottleCache over an expiring in-memory
// store. Entries older than retention are evicted, which keeps the map
// bounded over the process lifetime.
func NewThrottleCache(retention time.Duration) ThrottleCache {
	return &cacheThrottle{
		c:   gocache.New(retention, retention/2),
		now: time.Now,
	}
}

func (t *cacheThrottle) ShouldNotify(key string, threshold time.Duration) bool {
	v, ok := t.c.Get(key)
	if !ok {
		return true
	}
	last, ok := v.(time.Time)
	if !ok {
		return true
	}
	return t.now().Sub(last) >= threshold
}

func (t *cacheThrottle) Record(key string, at time.Time) {
	t.c.SetDefault(key, at)
}
