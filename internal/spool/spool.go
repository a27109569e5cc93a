// Package spool holds undelivered crash reports in bounded, durable,
// FIFO-ordered storage until a retry pass delivers them.
package spool

import (
	"context"

	"github.com/tmcallister/crashkit/internal/core/domain"
)

// Store is the offline report spool.
//
// Implementations hold at most their configured limit of entries: persisting
// beyond the limit evicts the single oldest entry. Enumeration order is
// stable and equals creation order, so retries deliver reports in the order
// the failures occurred. Each operation is atomic with respect to the others;
// no lock is held across a full drain pass.
type Store interface {
	// Persist durably stores a report keyed by its ID. The write is
	// all-or-nothing: a partially written entry is never visible to Pending.
	Persist(ctx context.Context, rep *domain.Report) error

	// Pending returns completed entries, oldest first.
	Pending(ctx context.Context) ([]domain.OfflineEntry, error)

	// Delete removes an entry. Deleting an absent ID is a no-op.
	Delete(ctx context.Context, id string) error

	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)
}
