// Package mailer delivers account emails (verification and password reset links).
package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/nkiryanov/fittrack/internal/logger"
)

const defaultTimeout = 10 * time.Second

type Config struct {
	// SMTP server address host:port
	Addr string

	// Plain auth credentials, auth skipped if both empty
	User     string
	Password string

	// Sender address
	From string

	// Implicit TLS (usually port 465). Otherwise STARTTLS is used if server supports it
	UseTLS bool

	// Dial timeout, 10s if not set
	Timeout time.Duration
}

// SMTP mailer
type SMTP struct {
	cfg  Config
	host string
	auth smtp.Auth
	log  logger.Logger
}

func NewSMTP(cfg Config, l logger.Logger) (*SMTP, error) {
	host, _, err := net.SplitHostPort(cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("invalid smtp address %q. Err: %w", cfg.Addr, err)
	}
	if cfg.From == "" {
		cfg.From = cfg.User
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("smtp sender address must not be empty")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	var auth smtp.Auth
	if cfg.User != "" || cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.User, cfg.Password, host)
	}

	return &SMTP{
		cfg:  cfg,
		host: host,
		auth: auth,
		log:  l.With("component", "mailer"),
	}, nil
}

// Send html email
// Context deadline bounds the whole SMTP conversation
func (m *SMTP) Send(ctx context.Context, to string, subject string, html string) error {
	start := time.Now()
	log := m.log.With("to", to, "subject", subject)

	err := m.send(ctx, to, buildMessage(m.cfg.From, to, subject, html))
	if err != nil {
		log.Error("email not sent", "error", err)
		return err
	}

	log.Info("email sent", "elapsed", time.Since(start))
	return nil
}

func (m *SMTP) send(ctx context.Context, to string, msg []byte) error {
	dialer := &net.Dialer{Timeout: m.cfg.Timeout}

	var (
		conn net.Conn
		err  error
	)
	if m.cfg.UseTLS {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: m.host}}
		conn, err = tlsDialer.DialContext(ctx, "tcp", m.cfg.Addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", m.cfg.Addr)
	}
	if err != nil {
		return fmt.Errorf("smtp dial failed. Err: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, m.host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp client failed. Err: %w", err)
	}
	defer c.Close() // nolint:errcheck

	if !m.cfg.UseTLS {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: m.host}); err != nil {
				return fmt.Errorf("smtp STARTTLS failed. Err: %w", err)
			}
		}
	}

	if m.auth != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(m.auth); err != nil {
				return fmt.Errorf("smtp auth failed. Err: %w", err)
			}
		}
	}

	if err := c.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("smtp MAIL FROM failed. Err: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("smtp RCPT TO failed. Err: %w", err)
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA failed. Err: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write failed. Err: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close failed. Err: %w", err)
	}

	return c.Quit()
}

func buildMessage(from string, to string, subject string, html string) []byte {
	var msg strings.Builder
	msg.WriteString("From: " + from + "\r\n")
	msg.WriteString("To: " + to + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(html)
	msg.WriteString("\r\n")
	return []byte(msg.String())
}

// Mailer that only logs emails
// Used when SMTP is not configured, links can be taken from logs
type Log struct {
	log logger.Logger
}

func NewLog(l logger.Logger) *Log {
	return &Log{log: l.With("component", "mailer")}
}

func (m *Log) Send(_ context.Context, to string, subject string, html string) error {
	m.log.Warn("smtp not configured, email logged instead of sent", "to", to, "subject", subject, "body", html)
	return nil
}
