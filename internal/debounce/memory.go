package debounce

import (
	"sync"
	"time"

	"doiver/internal/doiver"
)

// MemoryDebouncer is an in-process implementation of the Debouncer interface.
// Holds live in a map keyed by article ID and expire by timestamp comparison;
// expired entries are reaped lazily on the next acquire for that article and
// swept wholesale when the map is touched. Safe for concurrent use.
//
// The clock is injected so the window is testable without sleeping.
type MemoryDebouncer struct {
	ttl     time.Duration
	clock   doiver.Clock
	mu      sync.Mutex
	expires map[string]time.Time
}

// NewMemoryDebouncer creates a debouncer with the given window.
func NewMemoryDebouncer(ttl time.Duration, clock doiver.Clock) *MemoryDebouncer {
	return &MemoryDebouncer{
		ttl:     ttl,
		clock:   clock,
		expires: make(map[string]time.Time),
	}
}

// TryAcquire starts a hold for the article if none is active.
func (d *MemoryDebouncer) TryAcquire(articleID string) bool {
	now := d.clock.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if expiry, ok := d.expires[articleID]; ok && now.Before(expiry) {
		return false
	}

	d.expires[articleID] = now.Add(d.ttl)
	d.sweep(now)
	return true
}

// sweep drops expired entries so the map doesn't grow with every article
// ever updated. Called with the lock held.
func (d *MemoryDebouncer) sweep(now time.Time) {
	for id, expiry := range d.expires {
		if !now.Before(expiry) {
			delete(d.expires, id)
		}
	}
}

// Compile-time check that MemoryDebouncer implements doiver.Debouncer
var _ doiver.Debouncer = (*MemoryDebouncer)(nil)
