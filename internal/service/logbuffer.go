package service

import (
	"sync"
	"time"

	"reseller-hub/internal/model"
)

// Log buffer capacities
const (
	PixLogCapacity         = 1000
	FulfillmentLogCapacity = 100
)

// LogBuffer is a bounded FIFO of operation log entries. When full, the
// oldest entry is evicted.
type LogBuffer struct {
	mu       sync.Mutex
	entries  []model.LogEntry
	capacity int
	clock    Clock
}

// NewLogBuffer creates a buffer holding at most capacity entries
func NewLogBuffer(capacity int, clock Clock) *LogBuffer {
	return &LogBuffer{
		entries:  make([]model.LogEntry, 0, capacity),
		capacity: capacity,
		clock:    orDefaultClock(clock),
	}
}

// Add appends an entry, stamping it with the current time if unset
func (b *LogBuffer) Add(entry model.LogEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = b.clock.Now()
	}
	if entry.Data == nil {
		entry.Data = map[string]any{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.entries) >= b.capacity {
		drop := len(b.entries) - b.capacity + 1
		b.entries = append(b.entries[:0], b.entries[drop:]...)
	}
	b.entries = append(b.entries, entry)
}

// All returns a copy of every entry, oldest first
func (b *LogBuffer) All() []model.LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]model.LogEntry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Recent returns up to limit entries, newest first. An empty provider
// matches every entry; limit <= 0 means no limit.
func (b *LogBuffer) Recent(provider model.Provider, limit int) []model.LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]model.LogEntry, 0)
	for i := len(b.entries) - 1; i >= 0; i-- {
		if provider != "" && b.entries[i].Provider != provider {
			continue
		}
		out = append(out, b.entries[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Prune removes entries older than cutoff and returns how many were removed
func (b *LogBuffer) Prune(cutoff time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	kept := b.entries[:0]
	for _, e := range b.entries {
		if e.Timestamp.After(cutoff) {
			kept = append(kept, e)
		}
	}
	removed := len(b.entries) - len(kept)
	b.entries = kept
	return removed
}

// Clear drops every entry
func (b *LogBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = b.entries[:0]
}

// Len returns the number of buffered entries
func (b *LogBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

func durationMS(d time.Duration) *int64 {
	ms := d.Milliseconds()
	return &ms
}
