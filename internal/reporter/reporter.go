// Package reporter wires capture, delivery, spooling and retry into a single
// crash-reporting façade.
package reporter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/tmcallister/crashkit/internal/core/config"
	"github.com/tmcallister/crashkit/internal/core/domain"
	"github.com/tmcallister/crashkit/internal/delivery"
	"github.com/tmcallister/crashkit/internal/metrics"
	"github.com/tmcallister/crashkit/internal/report"
	"github.com/tmcallister/crashkit/internal/schedule"
	"github.com/tmcallister/crashkit/internal/spool"
	fsspool "github.com/tmcallister/crashkit/internal/spool/fs"
	memspool "github.com/tmcallister/crashkit/internal/spool/memory"
	pgspool "github.com/tmcallister/crashkit/internal/spool/postgres"
	redisspool "github.com/tmcallister/crashkit/internal/spool/redis"
)

// ErrAlreadyInstalled is returned by Activate when another Reporter instance
// already owns the process-wide capture slot.
var ErrAlreadyInstalled = errors.New("reporter: another instance is already active")

// installed is the process-wide registration slot. Only one Reporter may be
// active at a time; a second instance must deactivate the first before it can
// take over.
var installed atomic.Pointer[Reporter]

// Installed returns the currently active Reporter, or nil.
func Installed() *Reporter {
	return installed.Load()
}

// Option customizes a Reporter beyond what the config file expresses.
type Option func(*Reporter)

// WithLogger sets the logger used by the reporter, router and scheduler.
func WithLogger(log *slog.Logger) Option {
	return func(r *Reporter) { r.log = log }
}

// WithStore replaces the config-selected spool backend.
func WithStore(store spool.Store) Option {
	return func(r *Reporter) { r.store = store }
}

// WithTransports replaces the config-built transport list. Slice order is
// attempt order.
func WithTransports(transports ...delivery.Transport) Option {
	return func(r *Reporter) {
		r.router = delivery.NewRouter(r.log, transports...)
	}
}

// Reporter is the crash-reporting façade. It owns one delivery router, one
// offline spool and the retry scheduler's lifecycle.
type Reporter struct {
	cfg     config.AppConfig
	builder *report.Builder
	router  *delivery.Router
	store   spool.Store
	sched   *schedule.Scheduler
	log     *slog.Logger

	active atomic.Bool
	cancel context.CancelFunc
}

// New builds a Reporter from configuration. Transports are registered in a
// fixed order (mail, file upload, collector) matching the section order of
// the config file; use WithTransports for a different order.
//
// New does not arm capture; call Activate (or use the config loader's caller
// to decide when).
func New(cfg config.AppConfig, opts ...Option) (*Reporter, error) {
	r := &Reporter{cfg: cfg, log: slog.Default()}

	for _, opt := range opts {
		opt(r)
	}

	b := report.NewBuilder(report.Config{
		ContextBefore:  cfg.General.ContextBefore,
		ContextAfter:   cfg.General.ContextAfter,
		MaxValueLength: cfg.General.MaxValueLength,
		MaxFrames:      32,
	}, nil)
	b.AppName = cfg.General.ApplicationName
	b.AppVersion = cfg.General.ApplicationVersion
	b.User = cfg.General.UserIdentifier
	b.SessionID = uuid.New().String()
	r.builder = b

	if r.router == nil {
		router := delivery.NewRouter(r.log)
		if cfg.SMTP != nil {
			t, err := delivery.NewSMTPTransport(*cfg.SMTP)
			if err != nil {
				return nil, err
			}
			router.Register(t)
		}
		if cfg.FTP != nil {
			t, err := delivery.NewFTPTransport(*cfg.FTP)
			if err != nil {
				return nil, err
			}
			router.Register(t)
		}
		if cfg.Collector != nil {
			t, err := delivery.NewCollectorTransport(*cfg.Collector)
			if err != nil {
				return nil, err
			}
			router.Register(t)
		}
		r.router = router
	}

	if r.store == nil {
		store, err := NewStore(cfg)
		if err != nil {
			return nil, err
		}
		r.store = store
	}

	return r, nil
}

// NewStore builds the spool backend selected by the configuration. The CLI
// uses it to inspect a spool without constructing a full reporter.
func NewStore(cfg config.AppConfig) (spool.Store, error) {
	limit := cfg.General.OfflineReportLimit
	switch cfg.Storage.Backend {
	case "", "fs":
		return fsspool.New(cfg.General.ReportDir, limit)
	case "memory":
		return memspool.New(limit), nil
	case "redis":
		return redisspool.New(cfg.Storage.Redis, "crashkit", limit)
	case "postgres":
		db, err := pgspool.NewDB(context.Background(), cfg.Storage.Database)
		if err != nil {
			return nil, err
		}
		return pgspool.New(db, limit), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// Activate claims the process-wide capture slot and starts the retry
// scheduler. Activating an already-active reporter is a no-op; activating
// while a different instance holds the slot returns ErrAlreadyInstalled.
func (r *Reporter) Activate() error {
	if r.active.Load() {
		return nil
	}
	if !installed.CompareAndSwap(nil, r) {
		if installed.Load() == r {
			return nil
		}
		return ErrAlreadyInstalled
	}
	r.active.Store(true)

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.sched = schedule.New(r.store, r.router, r.cfg.General.CheckInterval, r.log)
	r.sched.Start(ctx)

	// Reports left over from a previous run get an immediate attempt
	// rather than waiting out the first full interval.
	r.sched.DrainNow(ctx)

	r.log.Info("crash reporter activated",
		"session_id", r.builder.SessionID,
		"check_interval", r.cfg.General.CheckInterval,
		"transports", r.router.Len(),
	)
	return nil
}

// Deactivate stops the scheduler and releases the capture slot. It cancels
// the pending timer wake-up without waiting for an in-flight delivery. Safe
// to call multiple times.
func (r *Reporter) Deactivate() {
	if !r.active.CompareAndSwap(true, false) {
		return
	}
	r.sched.Stop()
	r.cancel()
	installed.CompareAndSwap(r, nil)
	r.log.Info("crash reporter deactivated")
}

// Active reports whether this instance currently owns the capture slot.
func (r *Reporter) Active() bool {
	return r.active.Load()
}

// Capture builds and submits a report for a handled error without
// re-raising anything. It is the direct-submission path; panics inside
// monitored scopes go through Scope instead.
func (r *Reporter) Capture(ctx context.Context, cause any, vars ...report.NamedValue) *Result {
	rep := r.builder.FromPanic(cause, 1, vars)
	return r.submit(ctx, rep)
}

// Result describes what happened to a submitted report: delivered on the
// first attempt, spooled for retry, or (if neither) lost.
type Result struct {
	ID        string
	Delivered bool
	Spooled   bool
}

// submit runs the capture-time pipeline: one immediate delivery attempt, then
// spooling on total failure. A persist failure after all transports failed is
// the single true-loss path and is logged as such.
func (r *Reporter) submit(ctx context.Context, rep *domain.Report) *Result {
	metrics.ReportsCaptured.Inc()
	res := &Result{ID: rep.ID}

	if r.router.Attempt(ctx, rep) {
		res.Delivered = true
		return res
	}

	if err := r.store.Persist(ctx, rep); err != nil {
		metrics.ReportsLost.Inc()
		r.log.Error("report lost: delivery failed on all transports and spool persist failed",
			"report_id", rep.ID,
			"error", err,
		)
		return res
	}
	res.Spooled = true
	metrics.ReportsSpooled.Inc()
	if count, err := r.store.Count(ctx); err == nil {
		metrics.SpoolPending.Set(float64(count))
	}
	r.log.Info("report spooled for retry", "report_id", rep.ID)
	return res
}

// DrainNow runs one synchronous retry pass. Exposed for the CLI and for
// hosts that want a final flush before exiting.
func (r *Reporter) DrainNow(ctx context.Context) {
	sched := r.sched
	// The scheduler retained from a deactivated run is stopped and would
	// refuse the pass; a one-shot scheduler drains regardless.
	if sched == nil || sched.Stopped() {
		sched = schedule.New(r.store, r.router, r.cfg.General.CheckInterval, r.log)
	}
	sched.DrainNow(ctx)
}

// Store exposes the offline spool for inspection tooling.
func (r *Reporter) Store() spool.Store {
	return r.store
}
