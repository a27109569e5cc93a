package report

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/tmcallister/crashkit/internal/core/domain"
)

// Config controls how much context a built report carries.
type Config struct {
	ContextBefore  int // source lines above the failing line
	ContextAfter   int // source lines below the failing line
	MaxValueLength int // hard cap on a rendered variable value
	MaxFrames      int // 0 = no limit
}

// DefaultConfig mirrors the builder defaults applied by config.Load.
func DefaultConfig() Config {
	return Config{
		ContextBefore:  2,
		ContextAfter:   2,
		MaxValueLength: 1000,
		MaxFrames:      32,
	}
}

// NamedValue pairs a caller-supplied diagnostic name with its live value.
// Slice order is preserved into the report.
type NamedValue struct {
	Name  string
	Value any
}

// VarProvider lets a failure value expose its own diagnostic variables.
// Values attached this way are rendered with the same bounded, never-panicking
// formatter as everything else.
type VarProvider interface {
	CrashVars() map[string]any
}

// Builder turns a live failure into an immutable domain.Report.
//
// Building must never fail: unreadable source files, unrenderable values and
// renderer errors all degrade per-field instead of aborting the build. The
// builder reads source files already on disk and mutates nothing.
type Builder struct {
	cfg      Config
	renderer Renderer

	// Metadata stamped into every report.
	AppName    string
	AppVersion string
	User       string
	SessionID  string
}

// NewBuilder creates a Builder. A nil renderer falls back to the markdown
// renderer.
func NewBuilder(cfg Config, renderer Renderer) *Builder {
	if cfg.MaxValueLength <= 0 {
		cfg.MaxValueLength = DefaultConfig().MaxValueLength
	}
	if renderer == nil {
		renderer = NewMarkdownRenderer()
	}
	return &Builder{cfg: cfg, renderer: renderer}
}

// Build constructs a report for cause using the given call stack (as returned
// by runtime.Callers). Extra variables are attached to the failure-site frame
// after any CrashVars the cause itself provides.
func (b *Builder) Build(cause any, stack []uintptr, vars []NamedValue) *domain.Report {
	now := time.Now().UTC()

	rep := &domain.Report{
		ID:         domain.NewReportID(now),
		Timestamp:  now,
		Kind:       failureKind(cause),
		Message:    safeRender(cause, b.cfg.MaxValueLength),
		AppName:    b.AppName,
		AppVersion: b.AppVersion,
		User:       b.User,
		SessionID:  b.SessionID,
	}

	rep.Frames = b.buildFrames(stack)

	// Variable snapshots attach to the failure site, innermost frame.
	all := providerVars(cause)
	all = append(all, vars...)
	if len(all) > 0 && len(rep.Frames) > 0 {
		last := &rep.Frames[len(rep.Frames)-1]
		for _, v := range all {
			last.Vars = append(last.Vars, domain.Var{
				Name:  v.Name,
				Value: safeRender(v.Value, b.cfg.MaxValueLength),
			})
		}
	}

	rep.Body = b.renderer.Render(rep)
	return rep
}

// FromPanic builds a report for a value recovered from a panic. skip frames
// are dropped from the top of the stack so the report starts at the caller's
// code rather than inside the reporting machinery.
func (b *Builder) FromPanic(recovered any, skip int, vars []NamedValue) *domain.Report {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(skip+2, pcs)
	return b.Build(recovered, pcs[:n], vars)
}

func (b *Builder) buildFrames(stack []uintptr) []domain.Frame {
	if len(stack) == 0 {
		return nil
	}

	// One source cache per build call so nested frames in the same file
	// read it once.
	cache := newFileCache()

	frames := runtime.CallersFrames(stack)
	var collected []domain.Frame
	for {
		fr, more := frames.Next()
		// Frames inside the runtime (gopanic, goexit, main) are dispatch
		// machinery, not failure sites. Dropping them keeps the innermost
		// frame on the function that actually panicked.
		if fr.File != "" && !strings.HasPrefix(fr.Function, "runtime.") {
			collected = append(collected, domain.Frame{
				File:     fr.File,
				Line:     fr.Line,
				Function: fr.Function,
				Source:   cache.context(fr.File, fr.Line, b.cfg.ContextBefore, b.cfg.ContextAfter),
			})
		}
		if !more {
			break
		}
		if b.cfg.MaxFrames > 0 && len(collected) >= b.cfg.MaxFrames {
			break
		}
	}

	// runtime.CallersFrames yields innermost first; reports want outermost
	// call first, failure site last.
	for i, j := 0, len(collected)-1; i < j; i, j = i+1, j-1 {
		collected[i], collected[j] = collected[j], collected[i]
	}
	return collected
}

func failureKind(cause any) string {
	switch cause.(type) {
	case nil:
		return "nil"
	default:
		return fmt.Sprintf("%T", cause)
	}
}

func providerVars(cause any) []NamedValue {
	p, ok := cause.(VarProvider)
	if !ok {
		return nil
	}
	m := callCrashVars(p)
	if len(m) == 0 {
		return nil
	}
	// Stable order for deterministic payloads.
	keys := sortedKeys(m)
	out := make([]NamedValue, 0, len(keys))
	for _, k := range keys {
		out = append(out, NamedValue{Name: k, Value: m[k]})
	}
	return out
}

// callCrashVars guards against provider implementations that panic.
func callCrashVars(p VarProvider) (m map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			m = nil
		}
	}()
	return p.CrashVars()
}
