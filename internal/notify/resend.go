package notify

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"

	"github.com/tidymail/tidymail/internal/email"
)

// ResendConfig holds Resend API settings.
type ResendConfig struct {
	APIKey string   `yaml:"api_key"`
	From   string   `yaml:"from"`
	To     []string `yaml:"to"`
}

// ResendNotifier sends alert emails through the Resend API.
type ResendNotifier struct {
	client *resend.Client
	cfg    ResendConfig
	log    zerolog.Logger
}

// NewResendNotifier creates a Resend-backed notifier.
func NewResendNotifier(cfg ResendConfig, logger zerolog.Logger) *ResendNotifier {
	return &ResendNotifier{
		client: resend.NewClient(cfg.APIKey),
		cfg:    cfg,
		log:    logger.With().Str("component", "resend-notifier").Logger(),
	}
}

// Notify implements Notifier.
func (n *ResendNotifier) Notify(ctx context.Context, e *email.Email) error {
	subject, body := summary(e)
	params := &resend.SendEmailRequest{
		From:    n.cfg.From,
		To:      n.cfg.To,
		Subject: subject,
		Text:    body,
	}
	sent, err := n.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	n.log.Debug().Str("resend_id", sent.Id).Str("email_id", e.ID).Msg("Notification sent")
	return nil
}
