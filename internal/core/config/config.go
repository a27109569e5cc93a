package config

import (
	"time"

	"github.com/tmcallister/crashkit/internal/delivery"
	pgspool "github.com/tmcallister/crashkit/internal/spool/postgres"
	redisspool "github.com/tmcallister/crashkit/internal/spool/redis"
)

// AppConfig represents the top-level configuration.
//
// Transport sections are pointers: an absent section means that transport is
// not configured and is simply never registered with the router.
type AppConfig struct {
	General   GeneralConfig             `yaml:"general"`
	Logging   LoggingConfig             `yaml:"logging"`
	Server    ServerConfig              `yaml:"server"`
	Storage   StorageConfig             `yaml:"storage"`
	SMTP      *delivery.SMTPConfig      `yaml:"smtp"`
	FTP       *delivery.FTPConfig       `yaml:"ftp"`
	Collector *delivery.CollectorConfig `yaml:"collector"`
}

// GeneralConfig holds report metadata and pipeline tuning.
type GeneralConfig struct {
	ApplicationName    string        `yaml:"application_name"`
	ApplicationVersion string        `yaml:"application_version"`
	UserIdentifier     string        `yaml:"user_identifier"`
	ReportDir          string        `yaml:"report_dir"`
	OfflineReportLimit int           `yaml:"offline_report_limit"`
	CheckInterval      time.Duration `yaml:"check_interval"`
	ContextBefore      int           `yaml:"source_context_before"`
	ContextAfter       int           `yaml:"source_context_after"`
	MaxValueLength     int           `yaml:"max_value_length"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// ServerConfig holds the diagnostics HTTP server settings. Port 0 disables
// the server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// StorageConfig selects the offline spool backend.
type StorageConfig struct {
	Backend  string            `yaml:"backend"` // fs (default), memory, redis, postgres
	Redis    redisspool.Config `yaml:"redis"`
	Database pgspool.Config    `yaml:"database"`
}
