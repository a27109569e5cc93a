package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
//
// Transport sections are validated here so malformed configuration surfaces
// at setup time, never at send time.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.General.ReportDir == "" {
		cfg.General.ReportDir = "crash_reports"
	}
	if cfg.General.OfflineReportLimit == 0 {
		cfg.General.OfflineReportLimit = 10
	}
	if cfg.General.CheckInterval == 0 {
		cfg.General.CheckInterval = 5 * time.Minute
	}
	if cfg.General.ContextBefore == 0 {
		cfg.General.ContextBefore = 2
	}
	if cfg.General.ContextAfter == 0 {
		cfg.General.ContextAfter = 2
	}
	if cfg.General.MaxValueLength == 0 {
		cfg.General.MaxValueLength = 1000
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "fs"
	}
}

func validate(cfg *AppConfig) error {
	switch cfg.Storage.Backend {
	case "fs", "memory":
	case "redis":
		if cfg.Storage.Redis.URL == "" {
			return fmt.Errorf("storage: redis backend requires redis.url")
		}
	case "postgres":
		if cfg.Storage.Database.URL == "" {
			return fmt.Errorf("storage: postgres backend requires database.url")
		}
	default:
		return fmt.Errorf("storage: unknown backend %q", cfg.Storage.Backend)
	}

	if cfg.SMTP != nil {
		if err := cfg.SMTP.Validate(); err != nil {
			return err
		}
	}
	if cfg.FTP != nil {
		if err := cfg.FTP.Validate(); err != nil {
			return err
		}
	}
	if cfg.Collector != nil {
		if err := cfg.Collector.Validate(); err != nil {
			return err
		}
	}
	return nil
}
