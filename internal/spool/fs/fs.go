// Package fs implements the offline spool as one JSON file per report in a
// local directory. This is the default backend: it needs no external service
// and survives process restarts.
package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/tmcallister/crashkit/internal/core/domain"
	"github.com/tmcallister/crashkit/internal/metrics"
)

const reportExt = ".json"

// Store is a filesystem-backed spool. Report IDs are time-ordered, so the
// lexicographic order of file names is creation order.
type Store struct {
	dir   string
	limit int
	mu    sync.Mutex
}

// New creates the spool directory if needed. limit <= 0 disables the bound.
func New(dir string, limit int) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("spool: report directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("spool: create report directory: %w", err)
	}
	return &Store{dir: dir, limit: limit}, nil
}

// Persist writes the report via a temp file plus rename so enumeration never
// sees a partial entry. When the store is at its limit the oldest entry is
// evicted first.
func (s *Store) Persist(ctx context.Context, rep *domain.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.ids()
	if err != nil {
		return err
	}
	if s.limit > 0 {
		for len(ids) >= s.limit {
			oldest := ids[0]
			if err := os.Remove(s.path(oldest)); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("spool: evict %s: %w", oldest, err)
			}
			metrics.ReportsEvicted.Inc()
			ids = ids[1:]
		}
	}

	data, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("spool: marshal report %s: %w", rep.ID, err)
	}

	tmp, err := os.CreateTemp(s.dir, "pending-*")
	if err != nil {
		return fmt.Errorf("spool: create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("spool: write report %s: %w", rep.ID, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("spool: sync report %s: %w", rep.ID, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("spool: close report %s: %w", rep.ID, err)
	}
	if err := os.Rename(tmp.Name(), s.path(rep.ID)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("spool: commit report %s: %w", rep.ID, err)
	}
	return nil
}

// Pending returns completed entries, oldest first. Unreadable or corrupt
// files are skipped rather than failing the whole enumeration.
func (s *Store) Pending(ctx context.Context) ([]domain.OfflineEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.ids()
	if err != nil {
		return nil, err
	}

	entries := make([]domain.OfflineEntry, 0, len(ids))
	for _, id := range ids {
		data, err := os.ReadFile(s.path(id))
		if err != nil {
			continue
		}
		var rep domain.Report
		if err := json.Unmarshal(data, &rep); err != nil {
			continue
		}
		entries = append(entries, domain.OfflineEntry{
			ID:        rep.ID,
			CreatedAt: rep.Timestamp,
			Report:    &rep,
		})
	}
	return entries, nil
}

// Delete removes the entry; absent IDs are a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("spool: delete %s: %w", id, err)
	}
	return nil
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.ids()
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+reportExt)
}

// ids lists stored report IDs sorted ascending, which is creation order.
func (s *Store) ids() ([]string, error) {
	dirents, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("spool: read report directory: %w", err)
	}

	var ids []string
	for _, de := range dirents {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, reportExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, reportExt))
	}
	sort.Strings(ids)
	return ids, nil
}
