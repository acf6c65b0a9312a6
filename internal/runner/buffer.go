package runner

import (
	"sync"

	"github.com/scriptdeck/scriptdeck/internal/model"
)

// LogBook keeps per script log history. Each script owns a bounded
// ring of entries; once the cap is reached the oldest entry goes.
// History of a finished run survives until the next run of the same
// script resets it.
type LogBook struct {
	mx    sync.RWMutex
	cap   int
	rings map[string]*ring
}

type ring struct {
	entries []model.LogEntry
	start   int
}

func NewLogBook(cap int) *LogBook {
	if cap <= 0 {
		cap = model.DefaultLogCap
	}
	return &LogBook{
		cap:   cap,
		rings: make(map[string]*ring),
	}
}

// Append adds entry to the history of id.
func (b *LogBook) Append(id string, entry model.LogEntry) {
	b.mx.Lock()
	defer b.mx.Unlock()

	r, ok := b.rings[id]
	if !ok {
		r = &ring{}
		b.rings[id] = r
	}
	if len(r.entries) < b.cap {
		r.entries = append(r.entries, entry)
		return
	}
	r.entries[r.start] = entry
	r.start = (r.start + 1) % len(r.entries)
}

// Read returns a snapshot of the history of id, oldest first. An
// unknown id yields an empty slice, not an error.
func (b *LogBook) Read(id string) []model.LogEntry {
	b.mx.RLock()
	defer b.mx.RUnlock()

	r, ok := b.rings[id]
	if !ok {
		return nil
	}
	out := make([]model.LogEntry, 0, len(r.entries))
	out = append(out, r.entries[r.start:]...)
	out = append(out, r.entries[:r.start]...)
	return out
}

// Reset drops the history of id. Called when a new run of the same
// script begins.
func (b *LogBook) Reset(id string) {
	b.mx.Lock()
	defer b.mx.Unlock()
	delete(b.rings, id)
}
