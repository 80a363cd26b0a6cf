// Package imap adapts a generic IMAP mailbox to the provider interface.
package imap

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/rs/zerolog"

	"github.com/tidymail/tidymail/internal/email"
)

// Config holds IMAP adapter settings.
type Config struct {
	Server   string `yaml:"server"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Folder   string `yaml:"folder"`
	// TrackerPath is the sqlite file recording processed UIDs.
	TrackerPath string `yaml:"tracker_path"`
}

// Store is a connected IMAP mailbox.
type Store struct {
	client  *client.Client
	folder  string
	tracker *Tracker
	parser  *email.Parser
	log     zerolog.Logger

	uidValidity uint32
}

// New dials the server over TLS, logs in, and opens the local processed
// tracker.
func New(cfg Config, logger zerolog.Logger) (*Store, error) {
	c, err := client.DialTLS(fmt.Sprintf("%s:%d", cfg.Server, cfg.Port), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Server, err)
	}
	if err := c.Login(cfg.Username, cfg.Password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("failed to log in as %s: %w", cfg.Username, err)
	}
	tracker, err := NewTracker(cfg.TrackerPath)
	if err != nil {
		_ = c.Logout()
		return nil, err
	}
	return &Store{
		client:  c,
		folder:  cfg.Folder,
		tracker: tracker,
		parser:  email.NewParser(),
		log:     logger.With().Str("component", "imap").Logger(),
	}, nil
}

// UnprocessedEmails implements provider.Store: every message in the
// folder whose UID the tracker has not recorded.
func (s *Store) UnprocessedEmails(ctx context.Context) ([]*email.Email, error) {
	uids, err := s.searchAll()
	if err != nil {
		return nil, err
	}
	processed, err := s.tracker.Processed(ctx, s.folder, s.uidValidity)
	if err != nil {
		return nil, fmt.Errorf("failed to read processed state: %w", err)
	}
	pending := uids[:0]
	for _, uid := range uids {
		if !processed[uid] {
			pending = append(pending, uid)
		}
	}
	return s.fetch(pending)
}

// AllEmails implements provider.Store.
func (s *Store) AllEmails(ctx context.Context) ([]*email.Email, error) {
	uids, err := s.searchAll()
	if err != nil {
		return nil, err
	}
	return s.fetch(uids)
}

func (s *Store) searchAll() ([]uint32, error) {
	if err := s.selectFolder(); err != nil {
		return nil, err
	}
	uids, err := s.client.UidSearch(imap.NewSearchCriteria())
	if err != nil {
		return nil, fmt.Errorf("failed to search folder %s: %w", s.folder, err)
	}
	return uids, nil
}

func (s *Store) selectFolder() error {
	mbox, err := s.client.Select(s.folder, false)
	if err != nil {
		return fmt.Errorf("failed to select folder %s: %w", s.folder, err)
	}
	s.uidValidity = mbox.UidValidity
	return nil
}

// fetch retrieves full messages by UID. Bodies are fetched with
// BODY.PEEK so the fetch itself does not flip the \Seen flag the
// cleanup policy reads.
func (s *Store) fetch(uids []uint32) ([]*email.Email, error) {
	if len(uids) == 0 {
		return nil, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchFlags, section.FetchItem()}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- s.client.UidFetch(seqSet, items, messages)
	}()

	var emails []*email.Email
	for msg := range messages {
		r := msg.GetBody(section)
		if r == nil {
			s.log.Warn().Uint32("uid", msg.Uid).Msg("Message has no body section")
			continue
		}
		raw, err := io.ReadAll(r)
		if err != nil {
			s.log.Warn().Err(err).Uint32("uid", msg.Uid).Msg("Failed to read message body")
			continue
		}
		e, err := s.parser.Parse(strconv.FormatUint(uint64(msg.Uid), 10), raw)
		if err != nil {
			s.log.Warn().Err(err).Uint32("uid", msg.Uid).Msg("Failed to parse message")
			continue
		}
		e.ReadState = email.ReadStateFromFlags(msg.Flags)
		emails = append(emails, e)
	}
	if err := <-done; err != nil {
		return emails, fmt.Errorf("failed to fetch messages: %w", err)
	}
	return emails, nil
}

// ApplyLabels implements provider.Store by storing each label as an
// IMAP keyword flag. Servers that reject custom keywords surface the
// STORE error to the caller.
func (s *Store) ApplyLabels(ctx context.Context, e *email.Email, labels []string) error {
	uid, err := s.uid(e)
	if err != nil {
		return err
	}
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	flags := make([]interface{}, 0, len(labels))
	for _, l := range labels {
		flags = append(flags, toKeyword(l))
	}
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := s.client.UidStore(seqSet, item, flags, nil); err != nil {
		return fmt.Errorf("failed to store keywords: %w", err)
	}
	return nil
}

// MarkProcessed implements provider.Store by recording the UID locally.
func (s *Store) MarkProcessed(ctx context.Context, e *email.Email) error {
	uid, err := s.uid(e)
	if err != nil {
		return err
	}
	if s.uidValidity == 0 {
		if err := s.selectFolder(); err != nil {
			return err
		}
	}
	return s.tracker.MarkProcessed(ctx, s.folder, s.uidValidity, uid)
}

// DeleteEmail implements provider.Store: flag \Deleted, then expunge.
func (s *Store) DeleteEmail(ctx context.Context, e *email.Email) error {
	uid, err := s.uid(e)
	if err != nil {
		return err
	}
	if err := s.expunge(uid); err != nil {
		return err
	}
	if err := s.tracker.Forget(ctx, s.folder, s.uidValidity, uid); err != nil {
		s.log.Warn().Err(err).Uint32("uid", uid).Msg("Failed to drop tracker record")
	}
	return nil
}

// MoveToFolder implements provider.Store: copy, then delete the
// original.
func (s *Store) MoveToFolder(ctx context.Context, e *email.Email, folder string) error {
	uid, err := s.uid(e)
	if err != nil {
		return err
	}
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)
	if err := s.client.UidCopy(seqSet, folder); err != nil {
		return fmt.Errorf("failed to copy message to %s: %w", folder, err)
	}
	if err := s.expunge(uid); err != nil {
		return err
	}
	if err := s.tracker.Forget(ctx, s.folder, s.uidValidity, uid); err != nil {
		s.log.Warn().Err(err).Uint32("uid", uid).Msg("Failed to drop tracker record")
	}
	return nil
}

func (s *Store) expunge(uid uint32) error {
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := s.client.UidStore(seqSet, item, []interface{}{imap.DeletedFlag}, nil); err != nil {
		return fmt.Errorf("failed to flag message deleted: %w", err)
	}
	if err := s.client.Expunge(nil); err != nil {
		return fmt.Errorf("failed to expunge: %w", err)
	}
	return nil
}

// Close implements provider.Store.
func (s *Store) Close() error {
	if err := s.tracker.Close(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to close tracker")
	}
	return s.client.Logout()
}

func (s *Store) uid(e *email.Email) (uint32, error) {
	uid, err := strconv.ParseUint(e.ID, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid message id %q: %w", e.ID, err)
	}
	return uint32(uid), nil
}

// toKeyword maps a label name onto an IMAP keyword atom.
func toKeyword(label string) string {
	var b strings.Builder
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
