package dedup

import (
	"time"

	"github.com/samber/lo"

	"vigil/internal/detect"
)

// Deduplicator suppresses repeated alerts for the same primary entity
// within a time window. It is an in-process cache touched only by the
// orchestrator thread; losing it on restart is acceptable, it only prevents
// alert spam.
type Deduplicator struct {
	window  time.Duration
	entries map[string]time.Time
	now     func() time.Time
}

// New creates a deduplicator with the given suppression window.
func New(window time.Duration) *Deduplicator {
	return &Deduplicator{
		window:  window,
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// SetClock overrides the time source. Used in tests.
func (d *Deduplicator) SetClock(now func() time.Time) { d.now = now }

// PrimaryEntity returns the highest-confidence object of the batch, ties
// broken by first occurrence. ok is false for an empty batch.
func PrimaryEntity(batch *detect.Batch) (detect.Object, bool) {
	if batch == nil || len(batch.Objects) == 0 {
		return detect.Object{}, false
	}
	// Strict > keeps the first of equal-confidence objects.
	primary := lo.MaxBy(batch.Objects, func(a, b detect.Object) bool {
		return a.Confidence > b.Confidence
	})
	return primary, true
}

// ShouldCreateEvent decides whether the batch warrants a new event. A batch
// with no objects never does. A batch whose primary entity was alerted on
// within the window is suppressed without touching the cache. Otherwise the
// entry is recorded, stale entries are purged, and the event is accepted.
func (d *Deduplicator) ShouldCreateEvent(batch *detect.Batch) bool {
	primary, ok := PrimaryEntity(batch)
	if !ok {
		return false
	}

	now := d.now()
	if last, seen := d.entries[primary.Label]; seen && now.Sub(last) < d.window {
		return false
	}

	d.entries[primary.Label] = now
	d.cleanup(now)
	return true
}

// cleanup removes entries older than twice the window.
func (d *Deduplicator) cleanup(now time.Time) {
	for label, last := range d.entries {
		if now.Sub(last) > 2*d.window {
			delete(d.entries, label)
		}
	}
}

// Len returns the number of hot entries. Used in tests.
func (d *Deduplicator) Len() int { return len(d.entries) }
