// Package provider defines the mail-store adapter contract the agent
// drives. Adapters own all provider protocol details; expected failure
// modes (auth, network) come back as errors the caller logs without
// aborting a cycle.
package provider

import (
	"context"

	"github.com/tidymail/tidymail/internal/email"
)

// Store is a connected mailbox.
type Store interface {
	// UnprocessedEmails returns the emails the agent has not handled yet.
	UnprocessedEmails(ctx context.Context) ([]*email.Email, error)
	// AllEmails returns every email in the configured folder, processed
	// or not; the cleanup pass needs the full set.
	AllEmails(ctx context.Context) ([]*email.Email, error)
	ApplyLabels(ctx context.Context, e *email.Email, labels []string) error
	MarkProcessed(ctx context.Context, e *email.Email) error
	DeleteEmail(ctx context.Context, e *email.Email) error
	MoveToFolder(ctx context.Context, e *email.Email, folder string) error
	Close() error
}
