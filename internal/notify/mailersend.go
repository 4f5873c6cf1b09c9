package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/mailersend/mailersend-go"
)

type mailersendEmailAPI interface {
	Send(ctx context.Context, message *mailersend.Message) (*mailersend.Response, error)
}

// MailerSend delivers through the MailerSend HTTP API.
type MailerSend struct {
	email mailersendEmailAPI
}

// NewMailerSend builds a MailerSend mailer for apiKey.
func NewMailerSend(apiKey string) (*MailerSend, error) {
	key := strings.TrimSpace(apiKey)
	if key == "" {
		return nil, fmt.Errorf("%w: mailersend api key missing", ErrNotConfigured)
	}
	ms := mailersend.NewMailersend(key)
	return &MailerSend{email: ms.Email}, nil
}

// Send implements Mailer.
func (m *MailerSend) Send(ctx context.Context, msg Message) error {
	if m == nil || m.email == nil {
		return ErrNotConfigured
	}
	msg, err := msg.validate()
	if err != nil {
		return err
	}

	recipients := make([]mailersend.Recipient, 0, len(msg.To))
	for _, to := range msg.To {
		recipients = append(recipients, mailersend.Recipient{Name: to.Name, Email: to.Email})
	}
	message := &mailersend.Message{}
	message.SetFrom(mailersend.From{Name: msg.From.Name, Email: msg.From.Email})
	message.SetRecipients(recipients)
	message.SetSubject(msg.Subject)
	message.SetHTML(msg.HTML)
	if msg.Text != "" {
		message.SetText(msg.Text)
	}

	if _, err := m.email.Send(ctx, message); err != nil {
		return fmt.Errorf("notify: mailersend send: %w", err)
	}
	return nil
}
