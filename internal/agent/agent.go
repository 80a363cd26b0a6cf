// Package agent wires the decision engines to the mail store and the
// notification dispatcher and drives one processing cycle at a time.
package agent

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/tidymail/tidymail/internal/classify"
	"github.com/tidymail/tidymail/internal/cleanup"
	"github.com/tidymail/tidymail/internal/email"
	"github.com/tidymail/tidymail/internal/notify"
	"github.com/tidymail/tidymail/internal/provider"
)

// Agent runs the classify-label-notify pipeline followed by the cleanup
// pass. It holds no state between cycles.
type Agent struct {
	store       provider.Store
	classifiers []classify.Classifier
	rules       []classify.Rule
	notifier    notify.Notifier
	cleaner     *cleanup.Evaluator
	log         zerolog.Logger
}

// New creates an agent.
func New(
	store provider.Store,
	classifiers []classify.Classifier,
	rules []classify.Rule,
	notifier notify.Notifier,
	cleaner *cleanup.Evaluator,
	logger zerolog.Logger,
) *Agent {
	return &Agent{
		store:       store,
		classifiers: classifiers,
		rules:       rules,
		notifier:    notifier,
		cleaner:     cleaner,
		log:         logger.With().Str("component", "agent").Logger(),
	}
}

// RunCycle processes newly arrived mail and then runs the cleanup pass
// over the full mailbox.
func (a *Agent) RunCycle(ctx context.Context) {
	a.ProcessNew(ctx)
	deleted := a.cleaner.Clean(ctx, a.store)
	a.log.Info().Int("deleted", deleted).Msg("Cleanup pass finished")
}

// ProcessNew classifies and labels every unprocessed email. A failure
// on one email never aborts the rest of the batch.
func (a *Agent) ProcessNew(ctx context.Context) {
	emails, err := a.store.UnprocessedEmails(ctx)
	if err != nil {
		a.log.Error().Err(err).Msg("Failed to fetch unprocessed emails")
		return
	}
	a.log.Info().Int("count", len(emails)).Msg("Processing unprocessed emails")

	for _, e := range emails {
		a.processOne(ctx, e)
	}
}

func (a *Agent) processOne(ctx context.Context, e *email.Email) {
	labels := classify.Union(ctx, e, a.log, a.classifiers...)

	if len(labels) > 0 {
		if err := a.store.ApplyLabels(ctx, e, labels); err != nil {
			a.log.Warn().Err(err).Str("email_id", e.ID).Strs("labels", labels).Msg("Failed to apply labels")
		} else {
			a.log.Info().Str("email_id", e.ID).Str("subject", e.Subject).Strs("labels", labels).Msg("Applied labels")
		}
	}

	for _, label := range labels {
		if !a.shouldNotify(label) {
			continue
		}
		if err := a.notifier.Notify(ctx, e); err != nil {
			a.log.Warn().Err(err).Str("email_id", e.ID).Str("label", label).Msg("Failed to send notification")
			continue
		}
		a.log.Info().Str("email_id", e.ID).Str("label", label).Msg("Sent notification")
	}

	if err := a.store.MarkProcessed(ctx, e); err != nil {
		a.log.Warn().Err(err).Str("email_id", e.ID).Msg("Failed to mark email processed")
	}
}

// shouldNotify reports whether the named label belongs to a rule with
// notifications enabled. Labels only a secondary classifier knows never
// trigger notifications.
func (a *Agent) shouldNotify(label string) bool {
	for _, r := range a.rules {
		if r.Name == label {
			return r.Notify
		}
	}
	return false
}
