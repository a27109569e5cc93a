// Package health provides diagnostics endpoints for long-running deployments.
package health

// Status represents the reporter's operational state.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusCritical Status = "critical"
)

// Report contains the diagnostics snapshot served over HTTP.
type Report struct {
	Status         Status `json:"status"`
	Active         bool   `json:"active"`
	PendingReports int    `json:"pending_reports"`
	SpoolLimit     int    `json:"spool_limit"`
	SpoolError     string `json:"spool_error,omitempty"`
}
