package identity

import (
	"context"
	"strings"
	"sync"
)

// MemoryRepository is an in-memory customer table for tests and demo calls.
type MemoryRepository struct {
	mu      sync.RWMutex
	records []CustomerRecord
}

// NewMemoryRepository creates a repository seeded with the given records.
func NewMemoryRepository(records ...CustomerRecord) *MemoryRepository {
	return &MemoryRepository{records: records}
}

// Add appends a customer record.
func (r *MemoryRepository) Add(record CustomerRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
}

// FindCustomer matches the same way the Postgres repository does: last ten
// phone digits, SSN fragment and exact DOB string.
func (r *MemoryRepository) FindCustomer(_ context.Context, phoneLast10, last4, dob string) (*CustomerRecord, error) {
	if phoneLast10 == "" {
		return nil, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rec := range r.records {
		stored := NormalizePhone(rec.Phone)
		if strings.HasSuffix(stored, phoneLast10) && rec.Last4SSN == last4 && rec.DOB == dob {
			out := rec
			return &out, nil
		}
	}
	return nil, nil
}
