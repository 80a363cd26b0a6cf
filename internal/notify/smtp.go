package notify

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/rs/zerolog"

	"github.com/tidymail/tidymail/internal/email"
)

// SMTPConfig holds SMTP submission settings.
type SMTPConfig struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
	// ImplicitTLS uses a TLS connection from the start (port 465)
	// instead of STARTTLS.
	ImplicitTLS bool `yaml:"implicit_tls"`
}

// SMTPNotifier sends alert emails through a plain SMTP submission
// endpoint.
type SMTPNotifier struct {
	cfg SMTPConfig
	log zerolog.Logger
}

// NewSMTPNotifier creates an SMTP-backed notifier.
func NewSMTPNotifier(cfg SMTPConfig, logger zerolog.Logger) *SMTPNotifier {
	return &SMTPNotifier{
		cfg: cfg,
		log: logger.With().Str("component", "smtp-notifier").Logger(),
	}
}

// Notify implements Notifier.
func (n *SMTPNotifier) Notify(ctx context.Context, e *email.Email) error {
	subject, body := summary(e)

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", n.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(n.cfg.To, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	auth := sasl.NewPlainClient("", n.cfg.Username, n.cfg.Password)

	var err error
	if n.cfg.ImplicitTLS {
		err = smtp.SendMailTLS(addr, auth, n.cfg.From, n.cfg.To, &msg)
	} else {
		err = smtp.SendMail(addr, auth, n.cfg.From, n.cfg.To, &msg)
	}
	if err != nil {
		return fmt.Errorf("failed to send notification mail: %w", err)
	}
	n.log.Debug().Str("email_id", e.ID).Msg("Notification sent")
	return nil
}
