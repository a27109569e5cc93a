package reporter

import (
	"context"

	"github.com/tmcallister/crashkit/internal/report"
)

// Scope bounds a region of code for monitoring. Typical use:
//
//	sc := rep.Scope()
//	defer sc.Close()
//
// A panic propagating out of the region is intercepted exactly once by Close,
// reported, and then re-raised with the identical value; the reporter never
// swallows the original failure, and code that recovers further up observes
// exactly what it would have without monitoring.
type Scope struct {
	r    *Reporter
	vars []report.NamedValue
}

// Scope arms capture for the region ending at the matching Close.
func (r *Reporter) Scope() *Scope {
	return &Scope{r: r}
}

// Set attaches a named diagnostic value to any report captured in this
// scope. Values are rendered at capture time, in insertion order.
func (s *Scope) Set(name string, value any) {
	s.vars = append(s.vars, report.NamedValue{Name: name, Value: value})
}

// Close must be deferred at the top of the monitored region. It calls recover
// directly, so it only intercepts a panic when used as the deferred function
// itself (not wrapped in a closure).
func (s *Scope) Close() {
	cause := recover()
	if cause == nil {
		return
	}

	if s.r.Active() {
		// Capture runs synchronously on the failing goroutine so the
		// report reflects the state before the stack unwinds further.
		rep := s.r.builder.FromPanic(cause, 1, s.vars)
		s.r.submit(context.Background(), rep)
	}

	// Re-raise the original value unchanged.
	panic(cause)
}

// Monitored runs fn inside a scope. Any panic is reported and re-raised.
func (r *Reporter) Monitored(fn func(sc *Scope)) {
	sc := r.Scope()
	defer sc.Close()
	fn(sc)
}
