package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"
)

// SMTPConfig configures the SMTP relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// Clock stamps the Date header.
	Clock func() time.Time
}

// SMTP delivers through a plain SMTP relay, upgrading to STARTTLS when offered.
type SMTP struct {
	addr  string
	host  string
	auth  smtp.Auth
	clock func() time.Time
}

// NewSMTP builds an SMTP mailer. Port defaults to 25.
func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		return nil, fmt.Errorf("%w: smtp host missing", ErrNotConfigured)
	}
	port := cfg.Port
	if port <= 0 {
		port = 25
	}
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, host)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &SMTP{
		addr:  net.JoinHostPort(host, strconv.Itoa(port)),
		host:  host,
		auth:  auth,
		clock: clock,
	}, nil
}

// Send implements Mailer.
func (s *SMTP) Send(ctx context.Context, msg Message) error {
	if s == nil {
		return ErrNotConfigured
	}
	msg, err := msg.validate()
	if err != nil {
		return err
	}
	body, err := s.compose(msg)
	if err != nil {
		return err
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("notify: smtp dial: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("notify: smtp handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: s.host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("notify: smtp starttls: %w", err)
		}
	}
	if s.auth != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(s.auth); err != nil {
				return fmt.Errorf("notify: smtp auth: %w", err)
			}
		}
	}
	if err := client.Mail(msg.From.Email); err != nil {
		return fmt.Errorf("notify: smtp mail from: %w", err)
	}
	for _, to := range msg.To {
		if err := client.Rcpt(to.Email); err != nil {
			return fmt.Errorf("notify: smtp rcpt %s: %w", to.Email, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("notify: smtp data: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		w.Close()
		return fmt.Errorf("notify: smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("notify: smtp data close: %w", err)
	}
	return client.Quit()
}

func (s *SMTP) compose(msg Message) ([]byte, error) {
	var buf bytes.Buffer
	to := make([]string, 0, len(msg.To))
	for _, addr := range msg.To {
		to = append(to, addr.String())
	}

	mw := multipart.NewWriter(&buf)
	headers := []string{
		"From: " + msg.From.String(),
		"To: " + strings.Join(to, ", "),
		"Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject),
		"Date: " + s.clock().UTC().Format(time.RFC1123Z),
		"MIME-Version: 1.0",
		"Content-Type: multipart/alternative; boundary=" + mw.Boundary(),
	}
	var head bytes.Buffer
	for _, h := range headers {
		head.WriteString(h)
		head.WriteString("\r\n")
	}
	head.WriteString("\r\n")

	parts := []struct {
		contentType string
		body        string
	}{
		{"text/plain; charset=utf-8", msg.Text},
		{"text/html; charset=utf-8", msg.HTML},
	}
	for _, part := range parts {
		if part.body == "" {
			continue
		}
		pw, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {part.contentType},
			"Content-Transfer-Encoding": {"8bit"},
		})
		if err != nil {
			return nil, fmt.Errorf("notify: compose: %w", err)
		}
		if _, err := pw.Write([]byte(part.body)); err != nil {
			return nil, fmt.Errorf("notify: compose: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("notify: compose: %w", err)
	}
	return append(head.Bytes(), buf.Bytes()...), nil
}
