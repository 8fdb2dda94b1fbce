package transcript

import (
	"context"
	"sync"
	"time"
)

// MemoryRecorder keeps transcripts in process memory.
type MemoryRecorder struct {
	mu      sync.RWMutex
	entries map[string][]Entry
}

// NewMemoryRecorder creates an empty in-memory recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{entries: make(map[string][]Entry)}
}

// Append adds an entry to the call's transcript.
func (r *MemoryRecorder) Append(_ context.Context, callID string, entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[callID] = append(r.entries[callID], entry)
	return nil
}

// Entries returns a copy of the call's transcript in insertion order.
func (r *MemoryRecorder) Entries(_ context.Context, callID string) ([]Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored := r.entries[callID]
	out := make([]Entry, len(stored))
	copy(out, stored)
	return out, nil
}
