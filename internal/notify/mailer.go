// Package notify delivers transactional email for order events.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

var (
	// ErrNoRecipients is returned when a message has no deliverable address.
	ErrNoRecipients = errors.New("notify: message has no recipients")
	// ErrNotConfigured is returned by mailers missing credentials or a sender.
	ErrNotConfigured = errors.New("notify: mailer not configured")
)

// Address is a display name and mailbox pair.
type Address struct {
	Name  string
	Email string
}

// String renders the address in RFC 5322 form.
func (a Address) String() string {
	return (&mail.Address{Name: a.Name, Address: a.Email}).String()
}

// Message is a rendered email ready for delivery.
type Message struct {
	From    Address
	To      []Address
	Subject string
	HTML    string
	Text    string
}

// Mailer delivers a single message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// MailerFunc adapts a function into a Mailer.
type MailerFunc func(ctx context.Context, msg Message) error

// Send calls f.
func (f MailerFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// validate drops recipients without a parseable address and reports ErrNoRecipients when none remain.
func (m Message) validate() (Message, error) {
	if strings.TrimSpace(m.From.Email) == "" {
		return Message{}, fmt.Errorf("%w: sender address missing", ErrNotConfigured)
	}
	out := make([]Address, 0, len(m.To))
	for _, to := range m.To {
		email := strings.TrimSpace(to.Email)
		if email == "" {
			continue
		}
		if _, err := mail.ParseAddress(email); err != nil {
			continue
		}
		out = append(out, Address{Name: strings.TrimSpace(to.Name), Email: email})
	}
	if len(out) == 0 {
		return Message{}, ErrNoRecipients
	}
	m.To = out
	return m, nil
}

// Fallback sends through Primary and retries once through Secondary when Primary fails.
type Fallback struct {
	Primary   Mailer
	Secondary Mailer
	// OnPrimaryError observes primary failures that were handed to the secondary.
	OnPrimaryError func(ctx context.Context, err error)
}

// Send implements Mailer.
func (f Fallback) Send(ctx context.Context, msg Message) error {
	if f.Primary == nil && f.Secondary == nil {
		return ErrNotConfigured
	}
	if f.Primary == nil {
		return f.Secondary.Send(ctx, msg)
	}
	err := f.Primary.Send(ctx, msg)
	if err == nil || f.Secondary == nil || errors.Is(err, ErrNoRecipients) {
		return err
	}
	if f.OnPrimaryError != nil {
		f.OnPrimaryError(ctx, err)
	}
	if secErr := f.Secondary.Send(ctx, msg); secErr != nil {
		return fmt.Errorf("notify: primary failed: %v; secondary failed: %w", err, secErr)
	}
	return nil
}
