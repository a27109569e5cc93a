// Package crashkit captures unhandled failures, renders them into immutable
// crash reports and delivers them to remote collection endpoints, spooling
// undelivered reports to bounded local storage with background retry.
//
// Typical use:
//
//	rep, err := crashkit.NewFromFile("crashkit.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := rep.Activate(); err != nil {
//		log.Fatal(err)
//	}
//	defer rep.Deactivate()
//
// and in code that should be monitored:
//
//	func handle(order Order) {
//		sc := rep.Scope()
//		defer sc.Close()
//		sc.Set("order_id", order.ID)
//		// ... a panic here is reported and re-raised unchanged
//	}
//
// Only one Reporter may be active per process; a second Activate returns
// ErrAlreadyInstalled until the first instance deactivates.
package crashkit

import (
	"github.com/tmcallister/crashkit/internal/core/config"
	"github.com/tmcallister/crashkit/internal/report"
	"github.com/tmcallister/crashkit/internal/reporter"
)

// Reporter is the crash-reporting façade.
type Reporter = reporter.Reporter

// Scope bounds a region of code for monitoring.
type Scope = reporter.Scope

// Option customizes a Reporter.
type Option = reporter.Option

// NamedValue is a diagnostic name/value pair attached to captured reports.
type NamedValue = report.NamedValue

// Result describes what happened to a submitted report.
type Result = reporter.Result

// ErrAlreadyInstalled is returned by Activate when another Reporter already
// owns the process-wide capture slot.
var ErrAlreadyInstalled = reporter.ErrAlreadyInstalled

// WithLogger sets the logger used by the reporter, router and scheduler.
var WithLogger = reporter.WithLogger

// NewFromFile loads YAML configuration from path and builds a Reporter.
// The reporter is not armed until Activate is called.
func NewFromFile(path string, opts ...Option) (*Reporter, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return reporter.New(*cfg, opts...)
}

// Installed returns the currently active Reporter, or nil.
func Installed() *Reporter {
	return reporter.Installed()
}
