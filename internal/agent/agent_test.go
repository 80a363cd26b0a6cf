package agent

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/tidymail/tidymail/internal/classify"
	"github.com/tidymail/tidymail/internal/cleanup"
	"github.com/tidymail/tidymail/internal/email"
)

type fakeStore struct {
	unprocessed []*email.Email
	listErr     error

	labeled   map[string][]string
	labelErr  error
	processed []string
	deleted   []string
}

func newFakeStore(emails ...*email.Email) *fakeStore {
	return &fakeStore{unprocessed: emails, labeled: make(map[string][]string)}
}

func (f *fakeStore) UnprocessedEmails(context.Context) ([]*email.Email, error) {
	return f.unprocessed, f.listErr
}

func (f *fakeStore) AllEmails(context.Context) ([]*email.Email, error) {
	return f.unprocessed, nil
}

func (f *fakeStore) ApplyLabels(_ context.Context, e *email.Email, labels []string) error {
	if f.labelErr != nil {
		return f.labelErr
	}
	f.labeled[e.ID] = append(f.labeled[e.ID], labels...)
	return nil
}

func (f *fakeStore) MarkProcessed(_ context.Context, e *email.Email) error {
	f.processed = append(f.processed, e.ID)
	return nil
}

func (f *fakeStore) DeleteEmail(_ context.Context, e *email.Email) error {
	f.deleted = append(f.deleted, e.ID)
	return nil
}

func (f *fakeStore) MoveToFolder(context.Context, *email.Email, string) error { return nil }

func (f *fakeStore) Close() error { return nil }

type recordingNotifier struct {
	sent []string
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, e *email.Email) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, e.ID)
	return nil
}

func testRules() []classify.Rule {
	return []classify.Rule{
		{
			Name:     "Important",
			Notify:   true,
			Criteria: classify.Criteria{From: []string{"boss@company.com"}},
		},
		{
			Name:     "Work",
			Criteria: classify.Criteria{FromDomain: []string{"company.com"}},
		},
	}
}

func newTestAgent(store *fakeStore, notifier *recordingNotifier, extra ...classify.Classifier) *Agent {
	logger := zerolog.New(io.Discard)
	classifiers := append(
		[]classify.Classifier{classify.NewRuleClassifier(testRules(), logger)},
		extra...,
	)
	cleaner := cleanup.NewEvaluator(cleanup.Policy{}, logger)
	return New(store, classifiers, testRules(), notifier, cleaner, logger)
}

func TestProcessNewAppliesLabelsAndMarksProcessed(t *testing.T) {
	store := newFakeStore(
		&email.Email{ID: "1", From: "boss@company.com", Subject: "numbers"},
		&email.Email{ID: "2", From: "peon@company.com", Subject: "standup"},
		&email.Email{ID: "3", From: "friend@example.com", Subject: "hi"},
	)
	notifier := &recordingNotifier{}
	a := newTestAgent(store, notifier)

	a.ProcessNew(context.Background())

	assert.Equal(t, []string{"Important", "Work"}, store.labeled["1"])
	assert.Equal(t, []string{"Work"}, store.labeled["2"])
	assert.Empty(t, store.labeled["3"])
	assert.Equal(t, []string{"1", "2", "3"}, store.processed, "unmatched emails are still marked processed")
}

func TestProcessNewNotifiesOnlyForNotifyRules(t *testing.T) {
	store := newFakeStore(
		&email.Email{ID: "1", From: "boss@company.com", Subject: "numbers"},
		&email.Email{ID: "2", From: "peon@company.com", Subject: "standup"},
	)
	notifier := &recordingNotifier{}
	a := newTestAgent(store, notifier)

	a.ProcessNew(context.Background())

	assert.Equal(t, []string{"1"}, notifier.sent, "only the Important rule carries notify: true")
}

type staticClassifier struct{ labels []string }

func (s staticClassifier) Classify(context.Context, *email.Email) ([]string, error) {
	return s.labels, nil
}

func TestProcessNewIgnoresClassifierInventedLabels(t *testing.T) {
	store := newFakeStore(&email.Email{ID: "1", From: "friend@example.com"})
	notifier := &recordingNotifier{}
	a := newTestAgent(store, notifier, staticClassifier{labels: []string{"Invented"}})

	a.ProcessNew(context.Background())

	assert.Equal(t, []string{"Invented"}, store.labeled["1"])
	assert.Empty(t, notifier.sent, "labels outside the rule set never notify")
}

func TestProcessNewContinuesAfterLabelFailure(t *testing.T) {
	store := newFakeStore(
		&email.Email{ID: "1", From: "boss@company.com"},
		&email.Email{ID: "2", From: "peon@company.com"},
	)
	store.labelErr = errors.New("quota exceeded")
	notifier := &recordingNotifier{}
	a := newTestAgent(store, notifier)

	a.ProcessNew(context.Background())

	assert.Equal(t, []string{"1", "2"}, store.processed, "a label failure does not abort the batch")
}

func TestProcessNewSurvivesNotifierFailure(t *testing.T) {
	store := newFakeStore(&email.Email{ID: "1", From: "boss@company.com"})
	notifier := &recordingNotifier{err: errors.New("gateway down")}
	a := newTestAgent(store, notifier)

	a.ProcessNew(context.Background())

	assert.Equal(t, []string{"1"}, store.processed, "a notification failure does not block processing")
}

func TestProcessNewStopsOnFetchError(t *testing.T) {
	store := newFakeStore()
	store.listErr = errors.New("connection reset")
	a := newTestAgent(store, &recordingNotifier{})

	a.ProcessNew(context.Background())

	assert.Empty(t, store.processed)
}
