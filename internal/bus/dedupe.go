package bus

import (
	"sync"
	"time"
)

// DedupeCache suppresses re-delivery of an already-seen message ID within
// a TTL window, bounded to max entries — guards against webhook retries
// and platform double-delivery producing duplicate agent turns.
type DedupeCache struct {
	mu          sync.Mutex
	ttlDuration time.Duration
	max         int
	seen        map[string]time.Time
	order       []string // insertion order, for bounded eviction
}

// NewDedupeCache creates a cache evicting entries older than ttl and
// capping total tracked keys at max (oldest-first eviction once full).
func NewDedupeCache(ttl time.Duration, max int) *DedupeCache {
	return &DedupeCache{
		ttlDuration: ttl,
		max:         max,
		seen:        make(map[string]time.Time),
	}
}

// SeenRecently reports whether key was recorded within the TTL window, and
// records it (refreshing its timestamp) as a side effect — callers use it
// as a one-shot "is this a dup, and mark it seen" check.
func (d *DedupeCache) SeenRecently(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	d.evictExpired(now)

	if ts, ok := d.seen[key]; ok && now.Sub(ts) < d.ttlDuration {
		return true
	}

	if _, exists := d.seen[key]; !exists {
		if len(d.order) >= d.max {
			oldest := d.order[0]
			d.order = d.order[1:]
			delete(d.seen, oldest)
		}
		d.order = append(d.order, key)
	}
	d.seen[key] = now
	return false
}

func (d *DedupeCache) evictExpired(now time.Time) {
	if d.ttlDuration <= 0 {
		return
	}
	cut := 0
	for _, k := range d.order {
		if now.Sub(d.seen[k]) >= d.ttlDuration {
			delete(d.seen, k)
			cut++
			continue
		}
		break
	}
	if cut > 0 {
		d.order = d.order[cut:]
	}
}
