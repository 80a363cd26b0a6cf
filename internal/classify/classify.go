package classify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/tidymail/tidymail/internal/email"
)

// Classifier assigns label names to an email. Implementations hold no
// state between calls and return a duplicate-free list.
type Classifier interface {
	Classify(ctx context.Context, e *email.Email) ([]string, error)
}

// RuleClassifier applies configured label rules in order.
type RuleClassifier struct {
	rules []Rule
	log   zerolog.Logger
}

// NewRuleClassifier creates a rule-based classifier. Rule names are
// expected unique; config validation enforces this.
func NewRuleClassifier(rules []Rule, logger zerolog.Logger) *RuleClassifier {
	return &RuleClassifier{
		rules: rules,
		log:   logger.With().Str("component", "classifier").Logger(),
	}
}

// Classify returns the name of every rule whose criteria the email
// satisfies, in rule order.
func (c *RuleClassifier) Classify(_ context.Context, e *email.Email) ([]string, error) {
	var labels []string
	for _, r := range c.rules {
		if Matches(e, r.Criteria) {
			labels = append(labels, r.Name)
		}
	}
	if len(labels) > 0 {
		c.log.Debug().Str("email_id", e.ID).Strs("labels", labels).Msg("Rules matched")
	}
	return labels, nil
}

// NoopClassifier is the default secondary classifier; it never assigns
// labels.
type NoopClassifier struct{}

// Classify implements Classifier.
func (NoopClassifier) Classify(context.Context, *email.Email) ([]string, error) {
	return nil, nil
}

// Union runs every classifier against the email and merges the label
// sets, de-duplicating across stages. A failing classifier contributes
// nothing; its error is logged so the remaining stages still apply.
func Union(ctx context.Context, e *email.Email, log zerolog.Logger, classifiers ...Classifier) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, c := range classifiers {
		labels, err := c.Classify(ctx, e)
		if err != nil {
			log.Warn().Err(err).Str("email_id", e.ID).Msg("Classifier failed")
			continue
		}
		for _, l := range labels {
			if _, dup := seen[l]; dup {
				continue
			}
			seen[l] = struct{}{}
			out = append(out, l)
		}
	}
	return out
}
