// Package mock provides a test double for catalog.Store.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/scribe/internal/catalog"
)

// Store is a mock implementation of catalog.Store. Recorded entries are
// appended to Entries and returned by List in insertion order.
type Store struct {
	mu sync.Mutex

	Entries []catalog.Entry

	// RecordErr, if non-nil, is returned from Record.
	RecordErr error

	// ListErr, if non-nil, is returned from List.
	ListErr error
}

var _ catalog.Store = (*Store)(nil)

// Record appends e unless RecordErr is set.
func (s *Store) Record(_ context.Context, e catalog.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.RecordErr != nil {
		return s.RecordErr
	}
	s.Entries = append(s.Entries, e)
	return nil
}

// List returns a copy of Entries.
func (s *Store) List(context.Context) ([]catalog.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	return append([]catalog.Entry(nil), s.Entries...), nil
}
