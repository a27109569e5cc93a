// Package schedule drives background redelivery of spooled reports.
package schedule

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tmcallister/crashkit/internal/delivery"
	"github.com/tmcallister/crashkit/internal/metrics"
	"github.com/tmcallister/crashkit/internal/spool"
)

// Scheduler states. Transitions: Idle <-> Draining, anything -> Stopped.
const (
	stateIdle int32 = iota
	stateDraining
	stateStopped
)

// Scheduler periodically drains the offline spool through the router.
//
// At most one drain pass runs at a time: a tick that fires while a pass is
// still in flight is skipped, never overlapped. Entries are processed
// sequentially in creation order; a stuck entry is left in place and does not
// block later entries.
type Scheduler struct {
	store    spool.Store
	router   *delivery.Router
	interval time.Duration
	log      *slog.Logger

	state  atomic.Int32
	stop   chan struct{}
	done   chan struct{}
	stopMu sync.Mutex
}

// New creates a Scheduler. The interval is the fixed period between retry
// passes; there is no backoff.
func New(store spool.Store, router *delivery.Router, interval time.Duration, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	// The ticker requires a positive period; a config built in code may
	// leave the interval zero, so fall back to the loader's default.
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Scheduler{
		store:    store,
		router:   router,
		interval: interval,
		log:      log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the tick loop until Stop is called or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.state.Store(stateStopped)
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	// Skip the tick if a previous pass is still draining.
	if !s.state.CompareAndSwap(stateIdle, stateDraining) {
		return
	}
	defer s.state.CompareAndSwap(stateDraining, stateIdle)

	s.drain(ctx)
}

// DrainNow runs one synchronous retry pass, bypassing the ticker. It shares
// the same single-pass guard as the background loop.
func (s *Scheduler) DrainNow(ctx context.Context) {
	if !s.state.CompareAndSwap(stateIdle, stateDraining) {
		return
	}
	defer s.state.CompareAndSwap(stateDraining, stateIdle)

	s.drain(ctx)
}

func (s *Scheduler) drain(ctx context.Context) {
	start := time.Now()

	entries, err := s.store.Pending(ctx)
	if err != nil {
		s.log.Error("failed to list pending reports", "error", err)
		return
	}
	if len(entries) == 0 {
		return
	}

	var delivered int
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}

		if !s.router.Attempt(ctx, entry.Report) {
			// Leave the entry in place; later entries still get their turn.
			continue
		}
		if err := s.store.Delete(ctx, entry.ID); err != nil {
			s.log.Error("failed to delete delivered report", "report_id", entry.ID, "error", err)
			continue
		}
		delivered++
	}

	if count, err := s.store.Count(ctx); err == nil {
		metrics.SpoolPending.Set(float64(count))
	}
	metrics.DrainDuration.Observe(time.Since(start).Seconds())

	s.log.Info("drain pass finished",
		"pending", len(entries),
		"delivered", delivered,
		"duration", time.Since(start),
	)
}

// Stop ends the tick loop. It cancels the pending timer wake-up and returns
// without waiting for an in-flight delivery to finish; no further ticks run
// afterwards. Safe to call multiple times.
func (s *Scheduler) Stop() {
	s.stopMu.Lock()
	defer s.stopMu.Unlock()

	if s.state.Swap(stateStopped) == stateStopped {
		return
	}
	close(s.stop)
}

// Done is closed once the background loop has exited.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Stopped reports whether the scheduler has entered the terminal state.
// A stopped scheduler refuses further drain passes.
func (s *Scheduler) Stopped() bool {
	return s.state.Load() == stateStopped
}
