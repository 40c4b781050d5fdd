package mailserver

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"os"
	"path/filepath"
)

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// implicitTLSPort is the submission port that expects TLS from the first byte.
const implicitTLSPort = 465

// dialSMTP is overridden in tests.
var dialSMTP = func(ctx context.Context, addr string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", addr)
}

// SMTPSender delivers through an SMTP relay. STARTTLS is used when the relay
// offers it and PLAIN auth when a username is set.
type SMTPSender struct {
	Creds Credentials
}

// NewSMTPSender builds a sender for creds.
func NewSMTPSender(creds Credentials) *SMTPSender {
	return &SMTPSender{Creds: creds}
}

// Send delivers msg. The whole exchange is bounded by ctx: its deadline
// becomes the connection deadline and cancellation closes the connection.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := dialSMTP(ctx, s.Creds.Addr())
	if err != nil {
		return fmt.Errorf("smtp: %w", err)
	}
	defer raw.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = raw.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = raw.Close() })
	defer stop()

	conn := raw
	if s.Creds.Port == implicitTLSPort {
		conn = tls.Client(raw, &tls.Config{ServerName: s.Creds.Host})
	}
	if err := s.deliver(conn, msg); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("smtp: %w", ctxErr)
		}
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return fmt.Errorf("smtp: %w: %w", context.DeadlineExceeded, err)
		}
		return fmt.Errorf("smtp: %w", err)
	}
	return nil
}

func (s *SMTPSender) deliver(conn net.Conn, msg Message) error {
	c, err := smtp.NewClient(conn, s.Creds.Host)
	if err != nil {
		return err
	}
	defer c.Close()

	if _, isTLS := conn.(*tls.Conn); !isTLS {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: s.Creds.Host}); err != nil {
				return err
			}
		}
	}
	if s.Creds.Username != "" {
		if ok, _ := c.Extension("AUTH"); !ok {
			return errors.New("server does not support AUTH")
		}
		if err := c.Auth(smtp.PlainAuth("", s.Creds.Username, s.Creds.Password, s.Creds.Host)); err != nil {
			return err
		}
	}

	if err := c.Mail(msg.From); err != nil {
		return err
	}
	for _, rcpt := range msg.Recipients() {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt %s: %w", rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg.Bytes()); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// OutboxSender writes each message to <dir>/<id>.eml instead of delivering it.
type OutboxSender struct {
	Dir string
}

// NewOutboxSender builds a sender writing into dir.
func NewOutboxSender(dir string) *OutboxSender {
	return &OutboxSender{Dir: dir}
}

func (s *OutboxSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create outbox: %w", err)
	}
	path := filepath.Join(s.Dir, msg.ID+".eml")
	if err := os.WriteFile(path, msg.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
