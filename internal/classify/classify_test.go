package classify

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidymail/tidymail/internal/email"
)

func discardLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestMatchesFromDomain(t *testing.T) {
	c := Criteria{FromDomain: []string{"company.com"}}

	assert.True(t, Matches(&email.Email{From: "a@company.com"}, c))
	assert.True(t, Matches(&email.Email{From: "a@sub.company.com"}, c), "subdomains match the suffix")
	assert.True(t, Matches(&email.Email{From: "A@SUB.COMPANY.COM"}, c), "domain match is case-insensitive")
	assert.False(t, Matches(&email.Email{From: "a@notcompany.com"}, c), "suffix match stops at label boundaries")
	assert.False(t, Matches(&email.Email{From: "no-at-sign"}, c))
}

func TestMatchesFromWithSubject(t *testing.T) {
	c := Criteria{
		From:            []string{"boss@company.com"},
		SubjectContains: []string{"urgent"},
	}

	tests := []struct {
		name string
		e    *email.Email
		want bool
	}{
		{
			name: "both conditions hold",
			e:    &email.Email{From: "Boss <boss@company.com>", Subject: "URGENT meeting"},
			want: true,
		},
		{
			name: "sender matches but subject does not",
			e:    &email.Email{From: "boss@company.com", Subject: "lunch?"},
			want: false,
		},
		{
			name: "subject matches but sender does not",
			e:    &email.Email{From: "peon@company.com", Subject: "urgent request"},
			want: false,
		},
		{
			name: "address comparison ignores case",
			e:    &email.Email{From: "BOSS@Company.com", Subject: "urgent"},
			want: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.e, c))
		})
	}
}

func TestMatchesFromNameRescue(t *testing.T) {
	c := Criteria{
		From:     []string{"boss@company.com"},
		FromName: []string{"big boss"},
	}

	// Address mismatch, but the display name rescues the rule.
	assert.True(t, Matches(&email.Email{From: `"The Big Boss" <boss@personal.org>`}, c))
	// Address mismatch and no display-name match.
	assert.False(t, Matches(&email.Email{From: `"Somebody Else" <other@personal.org>`}, c))
	// Exact address match never consults the name.
	assert.True(t, Matches(&email.Email{From: `"Somebody Else" <boss@company.com>`}, c))
}

func TestMatchesFromNameAloneHasNoEffect(t *testing.T) {
	// FromName is only a rescue path for From; on its own it constrains
	// nothing and the remaining (empty) conjunction matches.
	c := Criteria{FromName: []string{"boss"}}
	assert.True(t, Matches(&email.Email{From: "anyone@anywhere.org"}, c))
}

func TestMatchesBodyAndSubjectKeywords(t *testing.T) {
	c := Criteria{
		SubjectContains: []string{"invoice", "receipt"},
		BodyContains:    []string{"total due"},
	}

	e := &email.Email{Subject: "Your Receipt #42", Body: "The TOTAL DUE is $12."}
	assert.True(t, Matches(e, c))

	e = &email.Email{Subject: "Your Receipt #42", Body: "nothing owed"}
	assert.False(t, Matches(e, c), "every configured field must match")
}

func TestMatchesEmptyCriteria(t *testing.T) {
	// Config validation rejects empty criteria; the engine itself stays
	// total and treats them as a vacuous conjunction.
	assert.True(t, Matches(&email.Email{From: "x@y.z"}, Criteria{}))
	assert.True(t, Criteria{}.Empty())
	assert.False(t, Criteria{From: []string{"a@b.c"}}.Empty())
}

func TestRuleClassifier(t *testing.T) {
	rules := []Rule{
		{Name: "Important", Notify: true, Criteria: Criteria{From: []string{"boss@company.com"}, SubjectContains: []string{"urgent"}}},
		{Name: "Work", Criteria: Criteria{FromDomain: []string{"company.com"}}},
		{Name: "Receipts", Criteria: Criteria{SubjectContains: []string{"receipt"}}},
	}
	rc := NewRuleClassifier(rules, discardLogger())

	labels, err := rc.Classify(context.Background(), &email.Email{
		From:    "boss@company.com",
		Subject: "urgent: numbers",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Important", "Work"}, labels)

	labels, err = rc.Classify(context.Background(), &email.Email{
		From:    "friend@example.com",
		Subject: "hello",
	})
	require.NoError(t, err)
	assert.Empty(t, labels)
}

func TestRuleClassifierResultIsSubsetWithoutDuplicates(t *testing.T) {
	rules := []Rule{
		{Name: "A", Criteria: Criteria{FromDomain: []string{"example.com"}}},
		{Name: "B", Criteria: Criteria{SubjectContains: []string{"x"}}},
	}
	rc := NewRuleClassifier(rules, discardLogger())

	labels, err := rc.Classify(context.Background(), &email.Email{From: "a@example.com", Subject: "x marks the spot"})
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, l := range labels {
		assert.False(t, seen[l], "duplicate label %q", l)
		seen[l] = true
		assert.Contains(t, []string{"A", "B"}, l)
	}
}

type staticClassifier struct {
	labels []string
	err    error
}

func (s staticClassifier) Classify(context.Context, *email.Email) ([]string, error) {
	return s.labels, s.err
}

func TestUnionMergesAndDeduplicates(t *testing.T) {
	got := Union(context.Background(), &email.Email{ID: "1"}, discardLogger(),
		staticClassifier{labels: []string{"Work", "Important"}},
		staticClassifier{labels: []string{"Important", "Travel"}},
	)
	assert.Equal(t, []string{"Work", "Important", "Travel"}, got)
}

func TestUnionSurvivesFailingClassifier(t *testing.T) {
	got := Union(context.Background(), &email.Email{ID: "1"}, discardLogger(),
		staticClassifier{labels: []string{"Work"}},
		staticClassifier{err: errors.New("model unavailable")},
	)
	assert.Equal(t, []string{"Work"}, got)
}

func TestNoopClassifier(t *testing.T) {
	labels, err := NoopClassifier{}.Classify(context.Background(), &email.Email{})
	require.NoError(t, err)
	assert.Empty(t, labels)
}
