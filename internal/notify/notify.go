// Package notify delivers alerts for emails the label rules flag. The
// decision of which emails warrant an alert belongs to the caller.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tidymail/tidymail/internal/email"
)

// Notifier delivers an alert for a single email.
type Notifier interface {
	Notify(ctx context.Context, e *email.Email) error
}

// Config selects and configures the delivery channel.
type Config struct {
	// Method is "resend", "smtp", "webhook" or "none".
	Method  string        `yaml:"method"`
	Resend  ResendConfig  `yaml:"resend"`
	SMTP    SMTPConfig    `yaml:"smtp"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// New builds the notifier for the configured method.
func New(cfg Config, logger zerolog.Logger) (Notifier, error) {
	switch cfg.Method {
	case "resend":
		return NewResendNotifier(cfg.Resend, logger), nil
	case "smtp":
		return NewSMTPNotifier(cfg.SMTP, logger), nil
	case "webhook":
		return NewWebhookNotifier(cfg.Webhook, logger), nil
	case "", "none":
		return NoopNotifier{}, nil
	default:
		return nil, fmt.Errorf("unsupported notification method %q", cfg.Method)
	}
}

// NoopNotifier swallows alerts; it is the default when no method is
// configured.
type NoopNotifier struct{}

// Notify implements Notifier.
func (NoopNotifier) Notify(context.Context, *email.Email) error { return nil }

// previewBytes caps how much of the body every channel includes.
const previewBytes = 500

// summary formats the alert subject and body shared by all channels.
func summary(e *email.Email) (subject, body string) {
	subject = "Important Email: " + e.Subject
	preview := e.Body
	if len(preview) > previewBytes {
		preview = strings.ToValidUTF8(preview[:previewBytes], "") + "..."
	}
	body = fmt.Sprintf("From: %s\nSubject: %s\nDate: %s\n\n%s", e.From, e.Subject, e.Date, preview)
	return subject, body
}
