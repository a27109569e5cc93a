// Package memory implements an in-process spool, used in tests and in
// deployments that accept losing pending reports on restart.
package memory

import (
	"context"
	"sync"

	"github.com/tmcallister/crashkit/internal/core/domain"
	"github.com/tmcallister/crashkit/internal/metrics"
)

// Store is an in-memory FIFO spool.
type Store struct {
	mu      sync.Mutex
	limit   int
	entries []domain.OfflineEntry
}

// New creates a memory spool. limit <= 0 disables the bound.
func New(limit int) *Store {
	return &Store{limit: limit}
}

func (s *Store) Persist(ctx context.Context, rep *domain.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.limit > 0 {
		for len(s.entries) >= s.limit {
			s.entries = s.entries[1:]
			metrics.ReportsEvicted.Inc()
		}
	}
	s.entries = append(s.entries, domain.OfflineEntry{
		ID:        rep.ID,
		CreatedAt: rep.Timestamp,
		Report:    rep,
	})
	return nil
}

func (s *Store) Pending(ctx context.Context) ([]domain.OfflineEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.OfflineEntry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.entries {
		if e.ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}
