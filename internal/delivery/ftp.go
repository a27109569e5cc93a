package delivery

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/tmcallister/crashkit/internal/core/domain"
)

// FTPConfig holds file-upload transport settings.
type FTPConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	User     string        `yaml:"user"`
	Password string        `yaml:"password"`
	Dir      string        `yaml:"dir"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Validate reports configuration problems at setup time.
func (c FTPConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("ftp: host is required")
	}
	return nil
}

// FTPTransport uploads reports as files to a remote directory.
type FTPTransport struct {
	cfg FTPConfig
}

// NewFTPTransport validates cfg and applies defaults.
func NewFTPTransport(cfg FTPConfig) (*FTPTransport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Port == 0 {
		cfg.Port = 21
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &FTPTransport{cfg: cfg}, nil
}

func (t *FTPTransport) Name() string { return "ftp" }

// Send stores the report body under <dir>/<report-id>.md. The file name is
// derived from the report ID, so a re-delivered report overwrites its own
// previous upload instead of duplicating it.
func (t *FTPTransport) Send(ctx context.Context, rep *domain.Report) (bool, string) {
	return guard(func() error {
		addr := net.JoinHostPort(t.cfg.Host, fmt.Sprintf("%d", t.cfg.Port))

		conn, err := ftp.Dial(addr,
			ftp.DialWithContext(ctx),
			ftp.DialWithTimeout(t.cfg.Timeout),
		)
		if err != nil {
			return fmt.Errorf("ftp dial: %w", err)
		}
		defer func() { _ = conn.Quit() }()

		user := t.cfg.User
		if user == "" {
			user = "anonymous"
		}
		if err := conn.Login(user, t.cfg.Password); err != nil {
			return fmt.Errorf("ftp login: %w", err)
		}

		if t.cfg.Dir != "" {
			if err := conn.ChangeDir(t.cfg.Dir); err != nil {
				return fmt.Errorf("ftp chdir %s: %w", t.cfg.Dir, err)
			}
		}

		name := rep.ID + ".md"
		if err := conn.Stor(name, bytes.NewReader(rep.Body)); err != nil {
			return fmt.Errorf("ftp stor %s: %w", name, err)
		}
		return nil
	})
}
