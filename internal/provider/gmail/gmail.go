// Package gmail adapts the Gmail REST API to the provider interface.
package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/tidymail/tidymail/internal/email"
)

// Config holds Gmail adapter settings.
type Config struct {
	CredentialsFile string `yaml:"credentials_file"`
	TokenFile       string `yaml:"token_file"`
	// ProcessedLabel marks messages the agent has already handled.
	ProcessedLabel string `yaml:"processed_label"`
	PageSize       int64  `yaml:"page_size"`
}

// Store is a connected Gmail mailbox.
type Store struct {
	svc            *gmail.Service
	processedLabel string
	pageSize       int64
	log            zerolog.Logger

	labelIDs map[string]string // name -> id, filled lazily
}

// New authenticates against the Gmail API with an installed-app OAuth
// client credentials file and a cached user token, then builds the
// adapter.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (*Store, error) {
	creds, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	oauthCfg, err := google.ConfigFromJSON(creds, gmail.GmailModifyScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	tok, err := tokenFromFile(cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load token, run the auth flow first: %w", err)
	}
	svc, err := gmail.NewService(ctx, option.WithTokenSource(oauthCfg.TokenSource(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("failed to build gmail service: %w", err)
	}
	return &Store{
		svc:            svc,
		processedLabel: cfg.ProcessedLabel,
		pageSize:       cfg.PageSize,
		log:            logger.With().Str("component", "gmail").Logger(),
		labelIDs:       make(map[string]string),
	}, nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	return tok, json.NewDecoder(f).Decode(tok)
}

// UnprocessedEmails implements provider.Store.
func (s *Store) UnprocessedEmails(ctx context.Context) ([]*email.Email, error) {
	return s.list(ctx, fmt.Sprintf("in:inbox -label:%q", s.processedLabel))
}

// AllEmails implements provider.Store.
func (s *Store) AllEmails(ctx context.Context) ([]*email.Email, error) {
	return s.list(ctx, "")
}

func (s *Store) list(ctx context.Context, query string) ([]*email.Email, error) {
	var out []*email.Email
	pageToken := ""
	for {
		call := s.svc.Users.Messages.List("me").MaxResults(s.pageSize)
		if query != "" {
			call = call.Q(query)
		}
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		res, err := call.Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list messages: %w", err)
		}
		for _, m := range res.Messages {
			e, err := s.fetch(ctx, m.Id)
			if err != nil {
				s.log.Warn().Err(err).Str("email_id", m.Id).Msg("Failed to fetch message")
				continue
			}
			out = append(out, e)
		}
		if res.NextPageToken == "" {
			return out, nil
		}
		pageToken = res.NextPageToken
	}
}

func (s *Store) fetch(ctx context.Context, id string) (*email.Email, error) {
	msg, err := s.svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	headers := make(map[string]string)
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			headers[h.Name] = h.Value
		}
	}
	return &email.Email{
		ID:        id,
		Subject:   headers["Subject"],
		From:      headers["From"],
		Date:      headers["Date"],
		Body:      extractBody(msg.Payload),
		ReadState: email.ReadStateFromLabels(msg.LabelIds),
	}, nil
}

// extractBody pulls the first text/plain part from the message payload,
// descending into nested multiparts when needed.
func extractBody(payload *gmail.MessagePart) string {
	if payload == nil {
		return ""
	}
	if len(payload.Parts) == 0 {
		return decodePart(payload)
	}
	for _, part := range payload.Parts {
		if part.MimeType == "text/plain" {
			return decodePart(part)
		}
	}
	for _, part := range payload.Parts {
		if strings.HasPrefix(part.MimeType, "multipart/") {
			if body := extractBody(part); body != "" {
				return body
			}
		}
	}
	return ""
}

// decodePart decodes Gmail's URL-safe base64 transport encoding.
func decodePart(part *gmail.MessagePart) string {
	if part.Body == nil || part.Body.Data == "" {
		return ""
	}
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(part.Body.Data, "="))
	if err != nil {
		return ""
	}
	return string(data)
}

// ApplyLabels implements provider.Store, creating missing labels first.
func (s *Store) ApplyLabels(ctx context.Context, e *email.Email, labels []string) error {
	ids := make([]string, 0, len(labels))
	for _, name := range labels {
		id, err := s.ensureLabel(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to ensure label %q: %w", name, err)
		}
		ids = append(ids, id)
	}
	req := &gmail.ModifyMessageRequest{AddLabelIds: ids}
	if _, err := s.svc.Users.Messages.Modify("me", e.ID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to apply labels: %w", err)
	}
	return nil
}

// MarkProcessed implements provider.Store by adding the processed label.
func (s *Store) MarkProcessed(ctx context.Context, e *email.Email) error {
	id, err := s.ensureLabel(ctx, s.processedLabel)
	if err != nil {
		return fmt.Errorf("failed to ensure processed label: %w", err)
	}
	req := &gmail.ModifyMessageRequest{AddLabelIds: []string{id}}
	if _, err := s.svc.Users.Messages.Modify("me", e.ID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to mark message processed: %w", err)
	}
	return nil
}

// DeleteEmail implements provider.Store by moving the message to trash.
// Trashing an already-trashed message is a no-op failure, not fatal.
func (s *Store) DeleteEmail(ctx context.Context, e *email.Email) error {
	if _, err := s.svc.Users.Messages.Trash("me", e.ID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to trash message: %w", err)
	}
	return nil
}

// MoveToFolder implements provider.Store. Gmail has no folders; moving
// means applying the label and archiving out of the inbox.
func (s *Store) MoveToFolder(ctx context.Context, e *email.Email, folder string) error {
	id, err := s.ensureLabel(ctx, folder)
	if err != nil {
		return fmt.Errorf("failed to ensure label %q: %w", folder, err)
	}
	req := &gmail.ModifyMessageRequest{
		AddLabelIds:    []string{id},
		RemoveLabelIds: []string{"INBOX"},
	}
	if _, err := s.svc.Users.Messages.Modify("me", e.ID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to move message: %w", err)
	}
	return nil
}

// Close implements provider.Store.
func (s *Store) Close() error { return nil }

// ensureLabel resolves a label name to its ID, creating the label on
// first use. The name to ID map is cached for the life of the store.
func (s *Store) ensureLabel(ctx context.Context, name string) (string, error) {
	if id, ok := s.labelIDs[name]; ok {
		return id, nil
	}
	res, err := s.svc.Users.Labels.List("me").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	for _, l := range res.Labels {
		s.labelIDs[l.Name] = l.Id
	}
	if id, ok := s.labelIDs[name]; ok {
		return id, nil
	}
	created, err := s.svc.Users.Labels.Create("me", &gmail.Label{Name: name}).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	s.log.Info().Str("label", name).Msg("Created label")
	s.labelIDs[name] = created.Id
	return created.Id, nil
}
