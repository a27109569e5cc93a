package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tmcallister/crashkit/internal/core/domain"
)

// CollectorConfig holds HTTP collector transport settings.
type CollectorConfig struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// Validate reports configuration problems at setup time.
func (c CollectorConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("collector: url is required")
	}
	return nil
}

// CollectorTransport posts reports to a remote collection endpoint.
type CollectorTransport struct {
	cfg    CollectorConfig
	client *http.Client
}

// NewCollectorTransport validates cfg and applies defaults.
func NewCollectorTransport(cfg CollectorConfig) (*CollectorTransport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	return &CollectorTransport{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (t *CollectorTransport) Name() string { return "collector" }

// Send posts a single report to <url>/reports/upload. The report ID doubles
// as an idempotency key for the endpoint.
func (t *CollectorTransport) Send(ctx context.Context, rep *domain.Report) (bool, string) {
	return guard(func() error {
		return t.post(ctx, t.cfg.URL+"/reports/upload", rep)
	})
}

// SendBatch posts several reports in one request to <url>/reports/upload_many.
// Used by the drain CLI; the scheduler keeps per-report sends for ordering.
func (t *CollectorTransport) SendBatch(ctx context.Context, reports []*domain.Report) (bool, string) {
	return guard(func() error {
		return t.post(ctx, t.cfg.URL+"/reports/upload_many", reports)
	})
}

func (t *CollectorTransport) post(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("collector marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("collector request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", t.cfg.APIKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("collector post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("collector returned status %d", resp.StatusCode)
	}
	return nil
}
