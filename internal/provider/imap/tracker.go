package imap

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Tracker records which messages the agent has processed. IMAP has no
// label namespace to park a processed marker in, and storing \Seen
// would corrupt the read state the cleanup policy depends on, so
// processed UIDs live in a local sqlite database keyed by folder and
// UIDVALIDITY.
type Tracker struct {
	db *sql.DB
}

// NewTracker opens (and if needed initializes) the tracker database.
func NewTracker(path string) (*Tracker, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tracker database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS processed (
		folder TEXT NOT NULL,
		uidvalidity INTEGER NOT NULL,
		uid INTEGER NOT NULL,
		processed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (folder, uidvalidity, uid)
	)`); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Tracker{db: db}, nil
}

// MarkProcessed records a UID. Marking twice is a no-op.
func (t *Tracker) MarkProcessed(ctx context.Context, folder string, uidValidity, uid uint32) error {
	_, err := t.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO processed (folder, uidvalidity, uid) VALUES (?, ?, ?)`,
		folder, uidValidity, uid)
	return err
}

// Processed returns the set of recorded UIDs for a folder generation.
func (t *Tracker) Processed(ctx context.Context, folder string, uidValidity uint32) (map[uint32]bool, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT uid FROM processed WHERE folder = ? AND uidvalidity = ?`,
		folder, uidValidity)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uint32]bool)
	for rows.Next() {
		var uid uint32
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		out[uid] = true
	}
	return out, rows.Err()
}

// Forget drops the record for a UID, used after a message is deleted or
// moved so the table does not grow unbounded.
func (t *Tracker) Forget(ctx context.Context, folder string, uidValidity, uid uint32) error {
	_, err := t.db.ExecContext(ctx,
		`DELETE FROM processed WHERE folder = ? AND uidvalidity = ? AND uid = ?`,
		folder, uidValidity, uid)
	return err
}

// Close closes the underlying database.
func (t *Tracker) Close() error {
	return t.db.Close()
}
