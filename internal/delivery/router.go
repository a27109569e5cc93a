package delivery

import (
	"context"
	"log/slog"

	"github.com/tmcallister/crashkit/internal/core/domain"
	"github.com/tmcallister/crashkit/internal/metrics"
)

// Router tries transports in registration order until one accepts the report.
type Router struct {
	transports []Transport
	log        *slog.Logger
}

// NewRouter creates a Router. A nil logger falls back to slog.Default.
func NewRouter(log *slog.Logger, transports ...Transport) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{transports: transports, log: log}
}

// Register appends a transport; registration order is attempt order.
func (r *Router) Register(t Transport) {
	r.transports = append(r.transports, t)
}

// Len returns the number of configured transports.
func (r *Router) Len() int { return len(r.transports) }

// Attempt tries each configured transport in order and stops at the first
// success. It returns false only when no transport is configured or every
// one of them failed.
func (r *Router) Attempt(ctx context.Context, rep *domain.Report) bool {
	for _, t := range r.transports {
		ok, detail := t.Send(ctx, rep)
		if ok {
			metrics.DeliveryAttempts.WithLabelValues(t.Name(), "success").Inc()
			r.log.Info("report delivered", "transport", t.Name(), "report_id", rep.ID)
			return true
		}
		metrics.DeliveryAttempts.WithLabelValues(t.Name(), "failure").Inc()
		r.log.Warn("delivery attempt failed",
			"transport", t.Name(),
			"report_id", rep.ID,
			"detail", detail,
		)
	}
	return false
}
