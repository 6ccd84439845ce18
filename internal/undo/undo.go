// Package undo keeps a short-lived snapshot of the state before each status
// transition so the most recent move of a task can be reverted once.
//
// Entries expire lazily: nothing sweeps the ledger, an expired entry is only
// dropped when [Ledger.Take] finds it. With keys that never repeat the ledger
// grows until the process exits.
package undo

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultWindow is how long a transition stays undoable.
const DefaultWindow = 120 * time.Second

// ErrNotFound is returned when no live entry exists for a key.
var ErrNotFound = errors.New("undo entry not found")

// Entry is the pre-transition state of one task.
type Entry struct {
	PreviousFilename string
	PreviousContent  []byte
	NewFilename      string
	ExpiresAt        time.Time
}

// Ledger maps the post-transition filename to its [Entry].
type Ledger struct {
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]Entry
}

// New returns an empty ledger. A non-positive window uses [DefaultWindow];
// a nil now uses [time.Now].
func New(window time.Duration, now func() time.Time) *Ledger {
	if window <= 0 {
		window = DefaultWindow
	}

	if now == nil {
		now = time.Now
	}

	return &Ledger{window: window, now: now, entries: make(map[string]Entry)}
}

// Record stores entry under key, replacing any previous entry for that key.
func (l *Ledger) Record(key string, entry Entry) Entry {
	entry.ExpiresAt = l.now().Add(l.window)

	l.mu.Lock()
	l.entries[key] = entry
	l.mu.Unlock()

	return entry
}

// Restore puts back an entry returned by [Ledger.Take] with its original
// expiry, unless a newer entry was recorded for key in the meantime.
func (l *Ledger) Restore(key string, entry Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.entries[key]; !ok {
		l.entries[key] = entry
	}
}

// Take removes and returns the entry for key. Expired entries are removed
// and reported as [ErrNotFound].
func (l *Ledger) Take(key string) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	delete(l.entries, key)

	if l.now().After(entry.ExpiresAt) {
		return Entry{}, fmt.Errorf("%w: %s expired", ErrNotFound, key)
	}

	return entry, nil
}

// Len returns the number of stored entries, expired ones included.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.entries)
}
