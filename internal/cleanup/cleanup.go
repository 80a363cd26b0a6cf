package cleanup

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tidymail/tidymail/internal/email"
)

// Policy describes when an email qualifies for deletion.
type Policy struct {
	DeleteNewsletters bool     `yaml:"delete_newsletters"`
	NewsletterDomains []string `yaml:"newsletter_domains"`
	// DeleteOlderThanDays disables the age check when zero.
	DeleteOlderThanDays int  `yaml:"delete_older_than"`
	DeleteRead          bool `yaml:"delete_read"`
}

// newsletterKeywords are the built-in subject markers that flag a
// message as a newsletter regardless of sender domain.
var newsletterKeywords = []string{"newsletter", "subscribe", "update", "digest", "weekly", "monthly"}

// Mailbox is the slice of the mail store the clean pass drives.
type Mailbox interface {
	AllEmails(ctx context.Context) ([]*email.Email, error)
	DeleteEmail(ctx context.Context, e *email.Email) error
}

// Evaluator decides which emails to delete under a Policy. It holds no
// state between calls.
type Evaluator struct {
	policy Policy
	log    zerolog.Logger

	// Clock is the time source for age checks, overridable in tests.
	Clock func() time.Time
}

// NewEvaluator creates a retention evaluator for the given policy.
func NewEvaluator(policy Policy, logger zerolog.Logger) *Evaluator {
	return &Evaluator{
		policy: policy,
		log:    logger.With().Str("component", "cleaner").Logger(),
		Clock:  time.Now,
	}
}

// ShouldDelete reports whether the email qualifies for deletion under
// any enabled policy check. Checks run in fixed priority order
// (newsletter, age, read state) and short-circuit; the order only
// affects which reason gets logged.
func (ev *Evaluator) ShouldDelete(e *email.Email) bool {
	switch {
	case ev.policy.DeleteNewsletters && ev.isNewsletter(e):
		ev.log.Debug().Str("email_id", e.ID).Str("reason", "newsletter").Msg("Email qualifies for deletion")
	case ev.policy.DeleteOlderThanDays > 0 && ev.tooOld(e, ev.policy.DeleteOlderThanDays):
		ev.log.Debug().Str("email_id", e.ID).Str("reason", "too_old").Msg("Email qualifies for deletion")
	case ev.policy.DeleteRead && e.ReadState == email.ReadStateRead:
		ev.log.Debug().Str("email_id", e.ID).Str("reason", "read").Msg("Email qualifies for deletion")
	default:
		return false
	}
	return true
}

// isNewsletter flags a message when the sender domain contains a
// configured newsletter domain, the subject carries a built-in keyword,
// or the body mentions unsubscribing. The domain check is a substring
// match, deliberately looser than the label matcher's suffix rule.
func (ev *Evaluator) isNewsletter(e *email.Email) bool {
	domain := strings.ToLower(e.SenderDomain())
	for _, d := range ev.policy.NewsletterDomains {
		if d != "" && strings.Contains(domain, strings.ToLower(d)) {
			return true
		}
	}

	subject := strings.ToLower(e.Subject)
	for _, kw := range newsletterKeywords {
		if strings.Contains(subject, kw) {
			return true
		}
	}

	return strings.Contains(strings.ToLower(e.Body), "unsubscribe")
}

// tooOld reports whether the email predates the retention window. A
// date that cannot be parsed keeps the email.
func (ev *Evaluator) tooOld(e *email.Email, maxAgeDays int) bool {
	sentAt, err := e.SentAt()
	if err != nil {
		ev.log.Warn().Err(err).Str("email_id", e.ID).Str("date", e.Date).Msg("Unparseable date, keeping email")
		return false
	}
	cutoff := ev.Clock().AddDate(0, 0, -maxAgeDays)
	return sentAt.Before(cutoff)
}

// Clean walks the full mailbox, deletes every email the policy marks,
// and returns the number of successful deletions. A failed deletion is
// logged and skipped; a failed enumeration returns the count so far.
func (ev *Evaluator) Clean(ctx context.Context, mbox Mailbox) int {
	deleted := 0

	emails, err := mbox.AllEmails(ctx)
	if err != nil {
		ev.log.Error().Err(err).Msg("Failed to enumerate mailbox")
		return deleted
	}
	ev.log.Info().Int("count", len(emails)).Msg("Checking emails for cleanup")

	for _, e := range emails {
		if !ev.ShouldDelete(e) {
			continue
		}
		if err := mbox.DeleteEmail(ctx, e); err != nil {
			ev.log.Warn().Err(err).Str("email_id", e.ID).Str("subject", e.Subject).Msg("Failed to delete email")
			continue
		}
		deleted++
		ev.log.Info().Str("email_id", e.ID).Str("subject", e.Subject).Msg("Deleted email")
	}
	return deleted
}
