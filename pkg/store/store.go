// Package store accumulates records in arrival order.
package store

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/amosWeiskopf/harvester/internal/models"
)

// Store is an insertion-ordered collection of records bounded by a
// capacity. TryAppend checks the bound and appends under one lock, so the
// bound holds even with several writers.
type Store struct {
	mu       sync.Mutex
	records  []models.Record
	capacity int
}

// New returns a store that never holds more than capacity records. A
// capacity below one means unbounded.
func New(capacity int) *Store {
	return &Store{capacity: capacity}
}

// TryAppend appends r unless the store is full, and reports whether it did.
func (s *Store) TryAppend(r models.Record) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capacity > 0 && len(s.records) >= s.capacity {
		return false
	}
	s.records = append(s.records, r)
	return true
}

// Append appends r, ignoring the capacity check result.
func (s *Store) Append(r models.Record) {
	s.TryAppend(r)
}

// All returns the records in insertion order.
func (s *Store) All() []models.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Record, len(s.records))
	copy(out, s.records)
	return out
}

// Count is the number of records held.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Full reports whether the capacity has been reached.
func (s *Store) Full() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capacity > 0 && len(s.records) >= s.capacity
}

// Capacity is the configured bound.
func (s *Store) Capacity() int {
	return s.capacity
}

// Dedupe returns records with later duplicates removed, where two records
// are duplicates when they agree on every key field. Order is kept. With no
// key fields all configured fields form the key.
func Dedupe(records []models.Record, keyFields []string) []models.Record {
	seen := make(map[uint64][]models.Record)
	out := make([]models.Record, 0, len(records))

	for _, r := range records {
		keys := keyFields
		if len(keys) == 0 {
			keys = r.Fields()
		}
		h := compositeKey(r, keys)

		dup := false
		for _, prev := range seen[h] {
			if sameKey(prev, r, keys) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		seen[h] = append(seen[h], r)
		out = append(out, r)
	}
	return out
}

func compositeKey(r models.Record, keys []string) uint64 {
	d := xxhash.New()
	for _, k := range keys {
		d.WriteString(r.Value(k))
		// Unit separator keeps ("ab","c") apart from ("a","bc").
		d.Write([]byte{0x1f})
	}
	return d.Sum64()
}

func sameKey(a, b models.Record, keys []string) bool {
	for _, k := range keys {
		if a.Value(k) != b.Value(k) {
			return false
		}
	}
	return true
}
