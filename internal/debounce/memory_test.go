package debounce

import (
	"testing"
	"time"

	"doiver/internal/testutil"
)

func TestMemoryDebouncer(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("first acquire succeeds", func(t *testing.T) {
		clock := testutil.NewStubClock(start)
		d := NewMemoryDebouncer(5*time.Second, clock)

		if !d.TryAcquire("a1") {
			t.Error("TryAcquire() = false, want true")
		}
	})

	t.Run("second acquire inside the window fails", func(t *testing.T) {
		clock := testutil.NewStubClock(start)
		d := NewMemoryDebouncer(5*time.Second, clock)

		d.TryAcquire("a1")
		clock.Advance(4 * time.Second)
		if d.TryAcquire("a1") {
			t.Error("TryAcquire() inside window = true, want false")
		}
	})

	t.Run("acquire after expiry succeeds", func(t *testing.T) {
		clock := testutil.NewStubClock(start)
		d := NewMemoryDebouncer(5*time.Second, clock)

		d.TryAcquire("a1")
		clock.Advance(5 * time.Second)
		if !d.TryAcquire("a1") {
			t.Error("TryAcquire() at expiry = false, want true")
		}
	})

	t.Run("holds are per article", func(t *testing.T) {
		clock := testutil.NewStubClock(start)
		d := NewMemoryDebouncer(5*time.Second, clock)

		d.TryAcquire("a1")
		if !d.TryAcquire("a2") {
			t.Error("TryAcquire(a2) = false, want true")
		}
	})

	t.Run("expired entries are swept", func(t *testing.T) {
		clock := testutil.NewStubClock(start)
		d := NewMemoryDebouncer(5*time.Second, clock)

		d.TryAcquire("a1")
		d.TryAcquire("a2")
		clock.Advance(10 * time.Second)
		d.TryAcquire("a3")

		d.mu.Lock()
		defer d.mu.Unlock()
		if _, ok := d.expires["a1"]; ok {
			t.Error("expired hold a1 still present after sweep")
		}
		if _, ok := d.expires["a3"]; !ok {
			t.Error("live hold a3 missing")
		}
	})
}
