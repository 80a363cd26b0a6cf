package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/tidymail/tidymail/internal/email"
)

// WebhookConfig holds webhook settings.
type WebhookConfig struct {
	URL string `yaml:"url"`
}

// WebhookNotifier POSTs a JSON alert to a configured URL, covering
// push-style channels that accept an HTTP hook.
type WebhookNotifier struct {
	cfg    WebhookConfig
	client *http.Client
	log    zerolog.Logger
}

// NewWebhookNotifier creates a webhook-backed notifier.
func NewWebhookNotifier(cfg WebhookConfig, logger zerolog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		log:    logger.With().Str("component", "webhook-notifier").Logger(),
	}
}

// Notify implements Notifier.
func (n *WebhookNotifier) Notify(ctx context.Context, e *email.Email) error {
	subject, body := summary(e)
	payload := map[string]interface{}{
		"event":   "email.matched",
		"title":   subject,
		"message": body,
		"email": map[string]string{
			"id":      e.ID,
			"from":    e.From,
			"subject": e.Subject,
			"date":    e.Date,
		},
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.URL, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	n.log.Debug().Str("email_id", e.ID).Int("status", resp.StatusCode).Msg("Notification sent")
	return nil
}
