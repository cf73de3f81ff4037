package routing

import (
	"time"

	"github.com/benbjohnson/clock"
)

type dupEntry struct {
	value string
	seen  time.Time
}

// DuplicateFilter suppresses re-publication of an unchanged value on a topic
// within a time window.
//
// Times come from the injected clock. clock.New() returns time.Now values,
// which carry a monotonic reading, so wall-clock steps do not shorten or
// stretch the window.
//
// Not safe for concurrent use; the gateway loop owns it.
type DuplicateFilter struct {
	window  time.Duration
	clock   clock.Clock
	entries map[string]dupEntry
}

// NewDuplicateFilter creates a filter. A nil clock uses the real clock.
func NewDuplicateFilter(window time.Duration, clk clock.Clock) *DuplicateFilter {
	if clk == nil {
		clk = clock.New()
	}
	return &DuplicateFilter{
		window:  window,
		clock:   clk,
		entries: make(map[string]dupEntry),
	}
}

// ShouldPublish reports whether value should be published on topic.
//
// It returns false only when the last accepted value on topic is equal and
// was accepted less than the window ago. The entry is updated only when it
// returns true, so a stream of duplicates does not extend the window.
func (f *DuplicateFilter) ShouldPublish(topic, value string) bool {
	now := f.clock.Now()

	if e, ok := f.entries[topic]; ok && e.value == value && now.Sub(e.seen) < f.window {
		return false
	}

	f.entries[topic] = dupEntry{value: value, seen: now}
	return true
}

// Sweep drops entries whose window has elapsed and returns how many were
// removed. An expired entry can no longer suppress anything, so sweeping
// never changes what ShouldPublish returns.
func (f *DuplicateFilter) Sweep() int {
	now := f.clock.Now()
	removed := 0
	for topic, e := range f.entries {
		if now.Sub(e.seen) >= f.window {
			delete(f.entries, topic)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked topics.
func (f *DuplicateFilter) Len() int {
	return len(f.entries)
}
