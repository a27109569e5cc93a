package report

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/tmcallister/crashkit/internal/core/domain"
)

// =============================================================================
// Safe rendering
// =============================================================================

type explodingStringer struct{}

func (explodingStringer) String() string {
	panic("no representation for you")
}

type nilDereferencer struct{ next *nilDereferencer }

func (n nilDereferencer) String() string {
	return n.next.String() // nil pointer dereference
}

func TestSafeRender_PanickingValue(t *testing.T) {
	got := safeRender(explodingStringer{}, 100)
	if !strings.HasPrefix(got, "<unrepresentable:") {
		t.Errorf("expected placeholder, got %q", got)
	}

	got = safeRender(nilDereferencer{}, 100)
	if !strings.HasPrefix(got, "<unrepresentable:") {
		t.Errorf("expected placeholder for nil deref, got %q", got)
	}
}

func TestSafeRender_Truncation(t *testing.T) {
	long := strings.Repeat("x", 500)
	got := safeRender(long, 100)
	if len(got) != 100+len(truncationMarker) {
		t.Errorf("expected %d chars, got %d", 100+len(truncationMarker), len(got))
	}
	if !strings.HasSuffix(got, truncationMarker) {
		t.Errorf("expected truncation marker, got %q", got[len(got)-10:])
	}
}

func TestSafeRender_TruncationKeepsValidUTF8(t *testing.T) {
	// Each rune is 3 bytes, so a cap of 100 lands mid-rune.
	long := strings.Repeat("日", 100)
	got := safeRender(long, 100)
	if !utf8.ValidString(got) {
		t.Errorf("truncated value is not valid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, truncationMarker) {
		t.Errorf("expected truncation marker, got %q", got)
	}
	if len(got) > 100+len(truncationMarker) {
		t.Errorf("expected at most %d bytes, got %d", 100+len(truncationMarker), len(got))
	}
}

func TestSafeRender_SizeHint(t *testing.T) {
	got := safeRender([]int{1, 2, 3}, 100)
	if !strings.HasPrefix(got, "len 3: ") {
		t.Errorf("expected size hint, got %q", got)
	}
}

func TestSafeRender_Nil(t *testing.T) {
	if got := safeRender(nil, 100); got != "<nil>" {
		t.Errorf("expected <nil>, got %q", got)
	}
}

// =============================================================================
// Source context
// =============================================================================

func writeSourceFile(t *testing.T, lines int) string {
	t.Helper()
	var b strings.Builder
	for i := 1; i <= lines; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	path := filepath.Join(t.TempDir(), "source.go")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write source file: %v", err)
	}
	return path
}

func TestFileCache_ClampAtFileStart(t *testing.T) {
	path := writeSourceFile(t, 5)
	cache := newFileCache()

	// Window (2,2) at line 1 clamps to lines 1..3, never below 1.
	ctx := cache.context(path, 1, 2, 2)
	if len(ctx) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(ctx))
	}
	if ctx[0].Number != 1 || ctx[2].Number != 3 {
		t.Errorf("expected lines 1..3, got %d..%d", ctx[0].Number, ctx[2].Number)
	}
}

func TestFileCache_ClampAtFileEnd(t *testing.T) {
	path := writeSourceFile(t, 5)
	cache := newFileCache()

	ctx := cache.context(path, 5, 2, 2)
	if len(ctx) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(ctx))
	}
	if ctx[0].Number != 3 || ctx[2].Number != 5 {
		t.Errorf("expected lines 3..5, got %d..%d", ctx[0].Number, ctx[2].Number)
	}
}

func TestFileCache_MissingFile(t *testing.T) {
	cache := newFileCache()
	if ctx := cache.context("/does/not/exist.go", 10, 2, 2); ctx != nil {
		t.Errorf("expected nil context for missing file, got %v", ctx)
	}
}

// =============================================================================
// Builder
// =============================================================================

//go:noinline
func captureInner() []uintptr {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(1, pcs)
	return pcs[:n]
}

//go:noinline
func captureOuter() []uintptr {
	return captureInner()
}

func TestBuilder_FrameOrder(t *testing.T) {
	b := NewBuilder(DefaultConfig(), nil)
	rep := b.Build(fmt.Errorf("boom"), captureOuter(), nil)

	if len(rep.Frames) < 2 {
		t.Fatalf("expected at least 2 frames, got %d", len(rep.Frames))
	}
	// Failure site is last.
	last := rep.Frames[len(rep.Frames)-1]
	if !strings.Contains(last.Function, "captureInner") {
		t.Errorf("expected innermost frame last, got %s", last.Function)
	}
	// Its caller sits directly above.
	prev := rep.Frames[len(rep.Frames)-2]
	if !strings.Contains(prev.Function, "captureOuter") {
		t.Errorf("expected captureOuter above captureInner, got %s", prev.Function)
	}
}

//go:noinline
func blowUp() {
	panic("boom")
}

func TestFromPanic_FailureSiteLast(t *testing.T) {
	b := NewBuilder(DefaultConfig(), nil)

	var rep *domain.Report
	func() {
		defer func() {
			if cause := recover(); cause != nil {
				rep = b.FromPanic(cause, 1, nil)
			}
		}()
		blowUp()
	}()

	if rep == nil || len(rep.Frames) == 0 {
		t.Fatal("expected a report with frames")
	}
	// The panicking function must be the innermost frame, not the runtime
	// dispatch that delivered the panic to the deferred handler.
	last := rep.Frames[len(rep.Frames)-1]
	if !strings.Contains(last.Function, "blowUp") {
		t.Errorf("expected blowUp as the innermost frame, got %s", last.Function)
	}
	for _, fr := range rep.Frames {
		if strings.HasPrefix(fr.Function, "runtime.") {
			t.Errorf("unexpected runtime frame in report: %s", fr.Function)
		}
	}
}

func TestBuilder_UniqueIDs(t *testing.T) {
	b := NewBuilder(DefaultConfig(), nil)
	seen := make(map[string]bool)
	var prev string
	for i := 0; i < 100; i++ {
		rep := b.Build("same tick", captureInner(), nil)
		if seen[rep.ID] {
			t.Fatalf("duplicate report ID %s", rep.ID)
		}
		if rep.ID <= prev {
			t.Fatalf("IDs not monotonic: %s after %s", rep.ID, prev)
		}
		seen[rep.ID] = true
		prev = rep.ID
	}
}

type failureWithVars struct{ orderID int }

func (f failureWithVars) Error() string { return "order processing failed" }

func (f failureWithVars) CrashVars() map[string]any {
	return map[string]any{"order_id": f.orderID, "stage": "settle"}
}

func TestBuilder_ProviderAndExtraVars(t *testing.T) {
	b := NewBuilder(DefaultConfig(), nil)
	rep := b.Build(failureWithVars{orderID: 42}, captureInner(), []NamedValue{
		{Name: "retries", Value: 3},
	})

	if len(rep.Frames) == 0 {
		t.Fatal("expected frames")
	}
	vars := rep.Frames[len(rep.Frames)-1].Vars
	if len(vars) != 3 {
		t.Fatalf("expected 3 vars, got %d: %v", len(vars), vars)
	}
	// Provider vars first (sorted), extras appended after.
	if vars[0].Name != "order_id" || vars[0].Value != "42" {
		t.Errorf("unexpected first var: %+v", vars[0])
	}
	if vars[2].Name != "retries" || vars[2].Value != "3" {
		t.Errorf("unexpected last var: %+v", vars[2])
	}
}

func TestBuilder_PanickingProviderDoesNotAbortBuild(t *testing.T) {
	b := NewBuilder(DefaultConfig(), nil)

	rep := b.Build(panickyProvider{}, captureInner(), nil)
	if rep == nil || rep.ID == "" {
		t.Fatal("expected a complete report despite panicking provider")
	}
}

type panickyProvider struct{}

func (panickyProvider) Error() string             { return "bad provider" }
func (panickyProvider) CrashVars() map[string]any { panic("provider exploded") }

func TestBuilder_BodyRenderedOnce(t *testing.T) {
	b := NewBuilder(DefaultConfig(), nil)
	rep := b.Build(fmt.Errorf("boom"), captureInner(), nil)

	if len(rep.Body) == 0 {
		t.Fatal("expected a rendered body")
	}
	if !strings.Contains(string(rep.Body), rep.ID) {
		t.Errorf("body should embed the report ID")
	}
	if !strings.Contains(string(rep.Body), "boom") {
		t.Errorf("body should embed the message")
	}
}

func TestBuilder_SourceContextInFrames(t *testing.T) {
	b := NewBuilder(DefaultConfig(), nil)
	rep := b.Build("boom", captureInner(), nil)

	// This test file is on disk, so its frames should carry source lines.
	found := false
	for _, fr := range rep.Frames {
		if strings.HasSuffix(fr.File, "builder_test.go") && len(fr.Source) > 0 {
			found = true
		}
	}
	if !found {
		t.Error("expected source context for frames in builder_test.go")
	}
}
