// Package postgres implements the offline spool on PostgreSQL, for server
// deployments that already run a database and want pending reports visible
// across hosts.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tmcallister/crashkit/internal/core/domain"
	"github.com/tmcallister/crashkit/internal/metrics"
)

// Store is a PostgreSQL-backed spool.
type Store struct {
	db    *DB
	limit int
}

// New creates a PostgreSQL spool on an open connection. limit <= 0 disables
// the bound.
func New(db *DB, limit int) *Store {
	return &Store{db: db, limit: limit}
}

// Persist inserts the report inside a transaction that also evicts the
// oldest rows when the table is at the limit, so the bound holds even with
// concurrent writers.
func (s *Store) Persist(ctx context.Context, rep *domain.Report) error {
	payload, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("spool: marshal report %s: %w", rep.ID, err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("spool: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if s.limit > 0 {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM crash_reports
			WHERE id IN (
				SELECT id FROM crash_reports
				ORDER BY created_at ASC, id ASC
				LIMIT GREATEST((SELECT COUNT(*) FROM crash_reports) - $1 + 1, 0)
			)
		`, s.limit)
		if err != nil {
			return fmt.Errorf("spool: evict oldest: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			metrics.ReportsEvicted.Add(float64(n))
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO crash_reports (id, created_at, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`, rep.ID, rep.Timestamp, payload)
	if err != nil {
		return fmt.Errorf("spool: insert report %s: %w", rep.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("spool: commit: %w", err)
	}
	return nil
}

// Pending returns entries oldest first.
func (s *Store) Pending(ctx context.Context) ([]domain.OfflineEntry, error) {
	var rows []struct {
		ID        string    `db:"id"`
		CreatedAt time.Time `db:"created_at"`
		Payload   []byte    `db:"payload"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, created_at, payload
		FROM crash_reports
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("spool: list pending: %w", err)
	}

	entries := make([]domain.OfflineEntry, 0, len(rows))
	for _, row := range rows {
		var rep domain.Report
		if err := json.Unmarshal(row.Payload, &rep); err != nil {
			continue
		}
		entries = append(entries, domain.OfflineEntry{
			ID:        row.ID,
			CreatedAt: row.CreatedAt,
			Report:    &rep,
		})
	}
	return entries, nil
}

// Delete removes an entry; absent IDs are a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM crash_reports WHERE id = $1`, id); err != nil {
		return fmt.Errorf("spool: delete %s: %w", id, err)
	}
	return nil
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM crash_reports`); err != nil {
		return 0, fmt.Errorf("spool: count: %w", err)
	}
	return count, nil
}
