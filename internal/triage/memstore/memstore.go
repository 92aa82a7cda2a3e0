// Package memstore provides an in-memory implementation of triage.Store.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/linnemanlabs/adjuster/internal/triage"
)

// Store holds decision records in memory. Suitable for dev/testing.
type Store struct {
	mu      sync.RWMutex
	records map[string]*triage.Record // record ID -> record
	byClaim map[string][]string       // claim ID -> record IDs
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		records: make(map[string]*triage.Record),
		byClaim: make(map[string][]string),
	}
}

// Get retrieves a record by its ID. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*triage.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, false, nil
	}
	return r.Clone(), true, nil
}

// ListByClaim returns copies of a claim's records ordered by creation time, then ID.
func (s *Store) ListByClaim(_ context.Context, claimID string) ([]*triage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byClaim[claimID]
	out := make([]*triage.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.records[id].Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Insert stores a copy of the record. An existing ID is rejected with triage.ErrDuplicate.
func (s *Store) Insert(_ context.Context, r *triage.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[r.ID]; ok {
		return fmt.Errorf("insert %s: %w", r.ID, triage.ErrDuplicate)
	}
	s.records[r.ID] = r.Clone()
	s.byClaim[r.ClaimID] = append(s.byClaim[r.ClaimID], r.ID)
	return nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
