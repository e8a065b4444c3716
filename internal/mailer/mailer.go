// Package mailer delivers notification emails over a managed SMTP
// connection.
package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// ErrNoRecipients is returned when a message has no addresses.
var ErrNoRecipients = errors.New("message has no recipients")

// Message is a single HTML email.
type Message struct {
	To      []string
	Subject string
	HTML    string
}

// Mailer sends messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Client is the subset of *smtp.Client the transport drives.
type Client interface {
	Noop() error
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Reset() error
	Quit() error
	Close() error
}

// DialFunc opens a ready-to-use (greeted, authenticated) client.
type DialFunc func() (Client, error)

// SMTPConfig configures an SMTP transport.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Transport owns one SMTP connection: it is opened on first use, checked
// by HealthCheck, and replaced whenever it fails. Sends are serialized on
// the connection.
type Transport struct {
	mu     sync.Mutex
	client Client
	dial   DialFunc
	from   string
	log    zerolog.Logger
}

// NewSMTPTransport creates a Transport that dials cfg lazily.
func NewSMTPTransport(cfg SMTPConfig, log zerolog.Logger) *Transport {
	return NewTransport(cfg.From, smtpDialer(cfg), log)
}

// NewTransport creates a Transport with a custom dialer.
func NewTransport(from string, dial DialFunc, log zerolog.Logger) *Transport {
	return &Transport{
		dial: dial,
		from: from,
		log:  log.With().Str("component", "mail_transport").Logger(),
	}
}

func smtpDialer(cfg SMTPConfig) DialFunc {
	return func() (Client, error) {
		addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
		c, err := smtp.Dial(addr)
		if err != nil {
			return nil, fmt.Errorf("dial smtp: %w", err)
		}
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: cfg.Host}); err != nil {
				c.Close()
				return nil, fmt.Errorf("starttls: %w", err)
			}
		}
		if cfg.Username != "" {
			if err := c.Auth(smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)); err != nil {
				c.Close()
				return nil, fmt.Errorf("smtp auth: %w", err)
			}
		}
		return c, nil
	}
}

// Send delivers msg, reconnecting once if the held connection has gone bad.
func (t *Transport) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	err := t.sendLocked(msg)
	if err == nil {
		return nil
	}
	// A protocol reply (e.g. 550 unknown mailbox) means the connection is fine.
	var reply *textproto.Error
	if errors.As(err, &reply) {
		return err
	}

	t.log.Warn().Err(err).Msg("Send failed, replacing connection")
	t.dropLocked()
	return t.sendLocked(msg)
}

func (t *Transport) sendLocked(msg Message) error {
	c, err := t.acquireLocked()
	if err != nil {
		return err
	}

	if err := c.Mail(t.from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range msg.To {
		if err := c.Rcpt(rcpt); err != nil {
			_ = c.Reset()
			return fmt.Errorf("rcpt %s: %w", rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := io.WriteString(w, buildMIME(t.from, msg)); err != nil {
		w.Close()
		return fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish data: %w", err)
	}
	return nil
}

func (t *Transport) acquireLocked() (Client, error) {
	if t.client != nil {
		return t.client, nil
	}
	c, err := t.dial()
	if err != nil {
		return nil, err
	}
	t.client = c
	t.log.Debug().Msg("SMTP connection opened")
	return c, nil
}

func (t *Transport) dropLocked() {
	if t.client == nil {
		return
	}
	_ = t.client.Close()
	t.client = nil
}

// HealthCheck probes the held connection with NOOP and replaces it when the
// probe fails. An idle transport (no connection yet) is left alone.
func (t *Transport) HealthCheck() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client == nil {
		return nil
	}
	if err := t.client.Noop(); err == nil {
		return nil
	}

	t.log.Warn().Msg("SMTP connection unhealthy, reconnecting")
	t.dropLocked()
	_, err := t.acquireLocked()
	return err
}

// Close quits the held connection.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client == nil {
		return nil
	}
	err := t.client.Quit()
	t.client = nil
	return err
}

func buildMIME(from string, msg Message) string {
	var b strings.Builder
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	fmt.Fprintf(&b, "From: ExamVault <%s>\r\n", headerLine(from))
	to := make([]string, len(msg.To))
	for i, addr := range msg.To {
		to[i] = headerLine(addr)
	}
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ","))
	fmt.Fprintf(&b, "Subject: %s\r\n\r\n", mime.QEncoding.Encode("utf-8", headerLine(msg.Subject)))
	b.WriteString(msg.HTML)
	return b.String()
}

// headerLine folds CR and LF into spaces so a value cannot start a new
// header.
func headerLine(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\r' || r == '\n' {
			return ' '
		}
		return r
	}, s)
}

// LogMailer writes messages to the log instead of sending them. Used when
// no SMTP host is configured.
type LogMailer struct {
	log zerolog.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(log zerolog.Logger) *LogMailer {
	return &LogMailer{log: log.With().Str("component", "log_mailer").Logger()}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}
	m.log.Info().Strs("to", msg.To).Str("subject", msg.Subject).Msg("Email (not sent, no SMTP configured)")
	return nil
}
