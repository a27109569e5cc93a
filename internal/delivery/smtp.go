package delivery

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/tmcallister/crashkit/internal/core/domain"
)

// SMTPConfig holds mail transport settings.
type SMTPConfig struct {
	Host       string        `yaml:"host"`
	Port       int           `yaml:"port"`
	User       string        `yaml:"user"`
	Password   string        `yaml:"password"`
	From       string        `yaml:"from"`
	Recipients []string      `yaml:"recipients"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Validate reports configuration problems at setup time.
func (c SMTPConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("smtp: host is required")
	}
	if len(c.Recipients) == 0 {
		return fmt.Errorf("smtp: at least one recipient is required")
	}
	return nil
}

// SMTPTransport mails reports to a fixed recipient list.
type SMTPTransport struct {
	cfg SMTPConfig
}

// NewSMTPTransport validates cfg and applies defaults.
func NewSMTPTransport(cfg SMTPConfig) (*SMTPTransport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.From == "" {
		cfg.From = cfg.User
	}
	return &SMTPTransport{cfg: cfg}, nil
}

func (t *SMTPTransport) Name() string { return "smtp" }

// Send mails the pre-rendered report body. The body bytes are used verbatim
// so repeated attempts produce identical messages.
func (t *SMTPTransport) Send(ctx context.Context, rep *domain.Report) (bool, string) {
	return guard(func() error {
		addr := net.JoinHostPort(t.cfg.Host, fmt.Sprintf("%d", t.cfg.Port))

		d := net.Dialer{Timeout: t.cfg.Timeout}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return fmt.Errorf("smtp dial: %w", err)
		}
		if deadline, ok := ctx.Deadline(); ok {
			_ = conn.SetDeadline(deadline)
		} else {
			_ = conn.SetDeadline(time.Now().Add(t.cfg.Timeout))
		}

		c, err := smtp.NewClient(conn, t.cfg.Host)
		if err != nil {
			_ = conn.Close()
			return fmt.Errorf("smtp handshake: %w", err)
		}
		defer c.Close()

		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: t.cfg.Host}); err != nil {
				return fmt.Errorf("smtp starttls: %w", err)
			}
		}
		if t.cfg.User != "" {
			auth := smtp.PlainAuth("", t.cfg.User, t.cfg.Password, t.cfg.Host)
			if err := c.Auth(auth); err != nil {
				return fmt.Errorf("smtp auth: %w", err)
			}
		}

		if err := c.Mail(t.cfg.From); err != nil {
			return fmt.Errorf("smtp mail from: %w", err)
		}
		for _, rcpt := range t.cfg.Recipients {
			if err := c.Rcpt(rcpt); err != nil {
				return fmt.Errorf("smtp rcpt %s: %w", rcpt, err)
			}
		}

		w, err := c.Data()
		if err != nil {
			return fmt.Errorf("smtp data: %w", err)
		}
		if _, err := w.Write(t.message(rep)); err != nil {
			return fmt.Errorf("smtp write: %w", err)
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("smtp close data: %w", err)
		}
		return c.Quit()
	})
}

func (t *SMTPTransport) message(rep *domain.Report) []byte {
	subject := "Crash Report"
	if rep.AppName != "" {
		subject = fmt.Sprintf("Crash Report - %s", rep.AppName)
		if rep.AppVersion != "" {
			subject += fmt.Sprintf(" (v%s)", rep.AppVersion)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", t.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(t.cfg.Recipients, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.Write(rep.Body)
	return []byte(b.String())
}
