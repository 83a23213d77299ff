// Package channeldir resolves human-friendly channel names to platform chat
// IDs (spec §4.B Channel Directory), populated lazily per adapter listing
// and consulted whenever a delivery target names a channel instead of an
// ID (spec §4.H "<platform>:<name> with non-numeric name -> query Channel
// Directory").
package channeldir

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/scarlettdetekelala/hermes-agent/internal/config"
)

// ErrNotFound is returned when a name has no known mapping anywhere in the
// directory's lookup chain (seed file, cache, live listing).
var ErrNotFound = errors.New("channeldir: channel not found")

// Lister is the optional capability an adapter exposes to populate the
// directory's cache: a best-effort name->ID snapshot of the chats the
// adapter currently knows about. Adapters that can't or don't support
// listing simply don't implement it — the directory then relies solely on
// the static seed file and previously cached individual resolutions.
type Lister interface {
	ListChannels(ctx context.Context) (map[string]string, error)
}

func cacheKey(platform config.Platform, name string) string {
	return string(platform) + "\x00" + strings.ToLower(strings.TrimSpace(name))
}

// backend is the pluggable storage behind the in-process LRU cache: either
// nothing (cache-only) or a shared Redis instance so multiple gateway
// processes see each other's resolutions (spec §5 "Channel Directory cache:
// single-writer/many-reader, TTL-bounded").
type backend interface {
	get(ctx context.Context, key string) (string, bool, error)
	set(ctx context.Context, key, id string, ttl time.Duration) error
}

// Directory satisfies internal/delivery.Directory. Resolution order:
// process-local LRU cache -> shared backend (Redis, if configured) ->
// static seed file -> live adapter listing (cached for next time).
type Directory struct {
	ids *lru.Cache[string, string] // cacheKey -> chat id, TTL enforced by backend/seed re-check

	mu   sync.RWMutex
	seed map[string]string // cacheKey -> chat id, loaded once at startup

	backend backend
	ttl     time.Duration

	listersMu sync.RWMutex
	listers   map[config.Platform]Lister
}

// New builds a Directory with an in-process cache of capacity cacheSize and
// the given TTL for entries populated from live listings. backend may be
// nil (cache-only, single-process mode).
func New(cacheSize int, ttl time.Duration, be backend) (*Directory, error) {
	ids, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("channeldir: building lru cache: %w", err)
	}
	return &Directory{
		ids:     ids,
		seed:    make(map[string]string),
		backend: be,
		ttl:     ttl,
		listers: make(map[config.Platform]Lister),
	}, nil
}

// RegisterLister attaches an adapter's best-effort listing capability for a
// platform. Called once per adapter at startup.
func (d *Directory) RegisterLister(platform config.Platform, l Lister) {
	d.listersMu.Lock()
	defer d.listersMu.Unlock()
	d.listers[platform] = l
}

// LoadSeed merges a static name->ID seed map (typically parsed from
// channels.yaml) into the directory. Seed entries never expire and are
// checked before falling back to a live listing.
func (d *Directory) LoadSeed(platform config.Platform, names map[string]string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for name, id := range names {
		d.seed[cacheKey(platform, name)] = id
	}
}

// Resolve implements internal/delivery.Directory. A non-existent or
// unresolvable name returns ErrNotFound, never a panic or silent empty
// string.
func (d *Directory) Resolve(ctx context.Context, platform config.Platform, name string) (string, error) {
	key := cacheKey(platform, name)

	if id, ok := d.ids.Get(key); ok {
		return id, nil
	}

	if d.backend != nil {
		if id, ok, err := d.backend.get(ctx, key); err == nil && ok {
			d.ids.Add(key, id)
			return id, nil
		}
	}

	d.mu.RLock()
	id, ok := d.seed[key]
	d.mu.RUnlock()
	if ok {
		d.ids.Add(key, id)
		return id, nil
	}

	if id, err := d.resolveViaListing(ctx, platform, name); err == nil {
		return id, nil
	}

	return "", fmt.Errorf("%w: %s:%s", ErrNotFound, platform, name)
}

// resolveViaListing asks the platform's registered Lister for a full
// snapshot and populates the cache with every entry it returns, not just
// the one requested — a single listing call usually surfaces many names at
// once, so this amortizes the cost of subsequent lookups against the same
// platform.
func (d *Directory) resolveViaListing(ctx context.Context, platform config.Platform, name string) (string, error) {
	d.listersMu.RLock()
	lister, ok := d.listers[platform]
	d.listersMu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: no listing capability registered for %s", ErrNotFound, platform)
	}

	snapshot, err := lister.ListChannels(ctx)
	if err != nil {
		return "", fmt.Errorf("channeldir: listing %s channels: %w", platform, err)
	}

	var found string
	wantKey := cacheKey(platform, name)
	for n, id := range snapshot {
		k := cacheKey(platform, n)
		d.ids.Add(k, id)
		if d.backend != nil {
			_ = d.backend.set(ctx, k, id, d.ttl)
		}
		if k == wantKey {
			found = id
		}
	}

	if found == "" {
		return "", fmt.Errorf("%w: %s not present in live %s listing", ErrNotFound, name, platform)
	}
	return found, nil
}
