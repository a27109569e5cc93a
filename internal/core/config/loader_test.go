package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_EnvSubstitution(t *testing.T) {
	os.Setenv("TEST_COLLECTOR_URL", "https://hq.example.com")
	defer os.Unsetenv("TEST_COLLECTOR_URL")

	path := writeConfig(t, `
collector:
  url: ${TEST_COLLECTOR_URL}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Collector == nil || cfg.Collector.URL != "https://hq.example.com" {
		t.Errorf("Expected collector URL https://hq.example.com, got %+v", cfg.Collector)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
general:
  application_name: testapp
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.General.OfflineReportLimit != 10 {
		t.Errorf("Expected default limit 10, got %d", cfg.General.OfflineReportLimit)
	}
	if cfg.General.CheckInterval != 5*time.Minute {
		t.Errorf("Expected default interval 5m, got %v", cfg.General.CheckInterval)
	}
	if cfg.General.ContextBefore != 2 || cfg.General.ContextAfter != 2 {
		t.Errorf("Expected default context window (2,2), got (%d,%d)",
			cfg.General.ContextBefore, cfg.General.ContextAfter)
	}
	if cfg.Storage.Backend != "fs" {
		t.Errorf("Expected fs backend default, got %s", cfg.Storage.Backend)
	}
	if cfg.SMTP != nil || cfg.FTP != nil || cfg.Collector != nil {
		t.Error("Expected absent transport sections to stay nil")
	}
}

func TestLoad_TransportSections(t *testing.T) {
	path := writeConfig(t, `
general:
  check_interval: 30s
smtp:
  host: mail.example.com
  port: 465
  user: crash@example.com
  password: secret
  recipients:
    - ops@example.com
ftp:
  host: ftp.example.com
  dir: reports
collector:
  url: https://hq.example.com
  api_key: abc123
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.General.CheckInterval != 30*time.Second {
		t.Errorf("Expected 30s interval, got %v", cfg.General.CheckInterval)
	}
	if cfg.SMTP == nil || cfg.SMTP.Host != "mail.example.com" || len(cfg.SMTP.Recipients) != 1 {
		t.Errorf("Unexpected smtp config: %+v", cfg.SMTP)
	}
	if cfg.FTP == nil || cfg.FTP.Dir != "reports" {
		t.Errorf("Unexpected ftp config: %+v", cfg.FTP)
	}
	if cfg.Collector == nil || cfg.Collector.APIKey != "abc123" {
		t.Errorf("Unexpected collector config: %+v", cfg.Collector)
	}
}

func TestLoad_InvalidTransportFailsAtSetup(t *testing.T) {
	// An smtp section with no recipients is a configuration error at load
	// time, not a deferred send-time failure.
	path := writeConfig(t, `
smtp:
  host: mail.example.com
`)
	if _, err := Load(path); err == nil {
		t.Error("Expected validation error for smtp without recipients")
	}
}

func TestLoad_UnknownBackend(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: floppy
`)
	if _, err := Load(path); err == nil {
		t.Error("Expected error for unknown storage backend")
	}
}
