package delivery

import (
	"context"
	"fmt"

	"github.com/tmcallister/crashkit/internal/core/domain"
)

// Transport delivers a serialized report to one configured endpoint.
//
// Send converts every connection, authentication and protocol failure inside
// the underlying client into ok=false with a human-readable detail; it never
// panics and never returns an error to the caller. A single Send performs no
// retries; retry policy belongs entirely to the scheduler.
type Transport interface {
	Name() string
	Send(ctx context.Context, rep *domain.Report) (ok bool, detail string)
}

// guard runs fn and converts an error or a panic inside a transport client
// into a (false, detail) result.
func guard(fn func() error) (ok bool, detail string) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			detail = fmt.Sprintf("panic in transport: %v", r)
		}
	}()
	if err := fn(); err != nil {
		return false, err.Error()
	}
	return true, ""
}
