package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/tmcallister/crashkit/internal/core/config"
	"github.com/tmcallister/crashkit/internal/core/domain"
	"github.com/tmcallister/crashkit/internal/delivery"
	"github.com/tmcallister/crashkit/internal/reporter"
)

// collectorServer is a scriptable stand-in for the HTTP collector. While
// down it answers 500, so deliveries fall through to the offline spool.
type collectorServer struct {
	mu       sync.Mutex
	up       bool
	received []domain.Report
	srv      *httptest.Server
}

func newCollectorServer() *collectorServer {
	c := &collectorServer{}
	c.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if !c.up {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var rep domain.Report
		if err := json.Unmarshal(body, &rep); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		c.received = append(c.received, rep)
		w.WriteHeader(http.StatusOK)
	}))
	return c
}

func (c *collectorServer) setUp(up bool) {
	c.mu.Lock()
	c.up = up
	c.mu.Unlock()
}

func (c *collectorServer) reports() []domain.Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Report, len(c.received))
	copy(out, c.received)
	return out
}

func pipelineConfig(t *testing.T, collectorURL string) config.AppConfig {
	t.Helper()
	return config.AppConfig{
		General: config.GeneralConfig{
			ApplicationName:    "e2e",
			ApplicationVersion: "0.0.1",
			ReportDir:          t.TempDir(),
			OfflineReportLimit: 10,
			CheckInterval:      50 * time.Millisecond,
			ContextBefore:      2,
			ContextAfter:       2,
			MaxValueLength:     1000,
		},
		Storage: config.StorageConfig{Backend: "fs"},
		Collector: &delivery.CollectorConfig{
			URL:     collectorURL,
			APIKey:  "e2e-key",
			Timeout: time.Second,
		},
	}
}

// TestPipeline_OutageAndRecovery walks the full path: a panic is captured
// while the collector is down, the report lands in the filesystem spool,
// and the background scheduler delivers it once the collector recovers.
func TestPipeline_OutageAndRecovery(t *testing.T) {
	collector := newCollectorServer()
	defer collector.srv.Close()

	rep, err := reporter.New(pipelineConfig(t, collector.srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := rep.Activate(); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	defer rep.Deactivate()

	// Collector is down; the capture must fall back to the spool.
	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected the panic to propagate")
			}
		}()
		rep.Monitored(func(sc *reporter.Scope) {
			sc.Set("stage", "e2e")
			panic("pipeline outage")
		})
	}()

	spooled, err := rep.Store().Pending(context.Background())
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(spooled) != 1 {
		t.Fatalf("expected 1 spooled report, got %d", len(spooled))
	}
	wantID := spooled[0].ID

	// Collector comes back; the scheduler should deliver on its next pass.
	collector.setUp(true)

	deadline := time.After(5 * time.Second)
	for {
		if got := collector.reports(); len(got) > 0 {
			if got[0].ID != wantID {
				t.Fatalf("delivered report ID = %q, want %q", got[0].ID, wantID)
			}
			if got[0].Message != "pipeline outage" {
				t.Fatalf("delivered report message = %q", got[0].Message)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("collector never received the spooled report")
		case <-time.After(10 * time.Millisecond):
		}
	}

	// The spool must end empty and the delivery must not repeat.
	emptyDeadline := time.After(2 * time.Second)
	for {
		pending, err := rep.Store().Pending(context.Background())
		if err != nil {
			t.Fatalf("Pending: %v", err)
		}
		if len(pending) == 0 {
			break
		}
		select {
		case <-emptyDeadline:
			t.Fatalf("spool still holds %d reports after delivery", len(pending))
		case <-time.After(10 * time.Millisecond):
		}
	}
	time.Sleep(150 * time.Millisecond)
	if got := collector.reports(); len(got) != 1 {
		t.Fatalf("expected exactly 1 delivery, got %d", len(got))
	}
}

// TestPipeline_RestartDrainsSpool verifies that reports stranded by a crash
// of the host process are delivered when a fresh reporter activates over
// the same report directory.
func TestPipeline_RestartDrainsSpool(t *testing.T) {
	collector := newCollectorServer()
	defer collector.srv.Close()

	cfg := pipelineConfig(t, collector.srv.URL)

	first, err := reporter.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := first.Activate(); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	func() {
		defer func() { _ = recover() }()
		first.Monitored(func(sc *reporter.Scope) {
			panic("stranded report")
		})
	}()
	first.Deactivate()

	// A new process over the same directory drains on activation.
	collector.setUp(true)
	second, err := reporter.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := second.Activate(); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	defer second.Deactivate()

	// The activation drain is synchronous, but a first tick may have claimed
	// the pass instead, so allow a short grace period.
	deadline := time.After(2 * time.Second)
	for {
		got := collector.reports()
		if len(got) == 1 {
			if got[0].Message != "stranded report" {
				t.Fatalf("delivered report message = %q", got[0].Message)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected the startup drain to deliver 1 report, got %d", len(got))
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// TestPipeline_GracefulShutdown starts the reporter with an aggressive
// retry interval and makes sure Deactivate stops the scheduler cleanly.
func TestPipeline_GracefulShutdown(t *testing.T) {
	collector := newCollectorServer()
	defer collector.srv.Close()
	collector.setUp(true)

	rep, err := reporter.New(pipelineConfig(t, collector.srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := rep.Activate(); err != nil {
		t.Fatalf("Activate: %v", err)
	}

	// Let a few scheduler ticks run.
	time.Sleep(200 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		rep.Deactivate()
		rep.Deactivate() // idempotent
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Deactivate did not return")
	}

	if reporter.Installed() != nil {
		t.Fatal("capture slot still held after Deactivate")
	}
}
