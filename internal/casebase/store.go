package casebase

import (
	"context"
	"sync"
)

// Store is the narrow contract of the external case store: append one wire
// record, read them all back in insertion order. Implementations never edit
// or remove records.
type Store interface {
	Append(ctx context.Context, rec Record) error
	ReadAll(ctx context.Context) ([]Record, error)
}

// MemoryStore is an in-process Store used for tests and the memory driver.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append adds a record.
func (s *MemoryStore) Append(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(Record, len(rec))
	copy(cp, rec)
	s.records = append(s.records, cp)
	return nil
}

// ReadAll returns all records in insertion order.
func (s *MemoryStore) ReadAll(ctx context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.records))
	for i, rec := range s.records {
		cp := make(Record, len(rec))
		copy(cp, rec)
		out[i] = cp
	}
	return out, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
