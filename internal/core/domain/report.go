package domain

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Report is an immutable snapshot of a single failure. Once built, the frame
// list and the rendered body never change; re-delivery always reuses the same
// bytes so the receiving endpoint sees idempotent payloads.
type Report struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Kind       string    `json:"kind"`
	Message    string    `json:"message"`
	Frames     []Frame   `json:"frames"`
	AppName    string    `json:"app_name,omitempty"`
	AppVersion string    `json:"app_version,omitempty"`
	User       string    `json:"user,omitempty"`
	SessionID  string    `json:"session_id,omitempty"`
	Body       []byte    `json:"body"`
}

// Frame is one call site in the failure's stack, outermost call first in
// Report.Frames, failure site last.
type Frame struct {
	File     string       `json:"file"`
	Line     int          `json:"line"`
	Function string       `json:"function"`
	Source   []SourceLine `json:"source,omitempty"`
	Vars     []Var        `json:"vars,omitempty"`
}

// SourceLine is one line of source context around the failing line.
type SourceLine struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Var is a named value rendered to bounded text at capture time.
type Var struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

var idSeq atomic.Uint64

// NewReportID returns a time-based identifier that is monotonic within the
// process even when several failures land on the same clock tick. The time
// prefix keeps lexicographic order equal to creation order, which the spool
// backends rely on for FIFO enumeration.
func NewReportID(now time.Time) string {
	return fmt.Sprintf("%s-%06d", now.UTC().Format("20060102T150405.000000000"), idSeq.Add(1))
}
