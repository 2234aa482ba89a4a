// Package history keeps the short context of recently accepted words used
// as a soft layout bias.
package history

import (
	"sync"
	"time"

	"textswitcher/internal/layout"
)

// Defaults for the retention bounds.
const (
	DefaultMaxEntries = 10
	DefaultMaxAge     = 30 * time.Second
)

// Entry is one accepted word.
type Entry struct {
	Word   string
	Layout layout.Layout
	Time   time.Time
}

// Ring is a bounded, time-limited list of entries. It is safe for
// concurrent use.
type Ring struct {
	mu         sync.Mutex
	entries    []Entry
	maxEntries int
	maxAge     time.Duration
	now        func() time.Time
}

// NewRing returns an empty ring. Non-positive bounds select the defaults.
func NewRing(maxEntries int, maxAge time.Duration) *Ring {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Ring{maxEntries: maxEntries, maxAge: maxAge, now: time.Now}
}

// SetClock replaces the time source.
func (r *Ring) SetClock(now func() time.Time) {
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
}

// SetBounds changes the retention bounds and trims immediately.
func (r *Ring) SetBounds(maxEntries int, maxAge time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if maxEntries > 0 {
		r.maxEntries = maxEntries
	}
	if maxAge > 0 {
		r.maxAge = maxAge
	}
	r.trimLocked(r.now())
}

// Add appends an entry. Words without a concrete layout are ignored. A zero
// Time is stamped with the ring's clock.
func (r *Ring) Add(e Entry) {
	if !e.Layout.Valid() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if e.Time.IsZero() {
		e.Time = now
	}
	r.entries = append(r.entries, e)
	r.trimLocked(now)
}

// Snapshot returns the live entries, oldest first.
func (r *Ring) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trimLocked(r.now())
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of live entries.
func (r *Ring) Len() int {
	return len(r.Snapshot())
}

// Reset drops every entry.
func (r *Ring) Reset() {
	r.mu.Lock()
	r.entries = nil
	r.mu.Unlock()
}

func (r *Ring) trimLocked(now time.Time) {
	cutoff := now.Add(-r.maxAge)
	start := 0
	for start < len(r.entries) && r.entries[start].Time.Before(cutoff) {
		start++
	}
	if n := len(r.entries) - start; n > r.maxEntries {
		start += n - r.maxEntries
	}
	if start > 0 {
		r.entries = append(r.entries[:0], r.entries[start:]...)
	}
}

// Majority returns the layout holding a strict majority of entries, provided
// it has at least minCount of them. Otherwise it returns layout.Unknown.
func Majority(entries []Entry, minCount int) layout.Layout {
	var en, ru int
	for _, e := range entries {
		switch e.Layout {
		case layout.English:
			en++
		case layout.Russian:
			ru++
		}
	}
	switch {
	case en > ru && en >= minCount:
		return layout.English
	case ru > en && ru >= minCount:
		return layout.Russian
	}
	return layout.Unknown
}
