// Package storage persists rewrite outcomes in a local SQLite database.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Outcome names how a rewrite attempt ended.
type Outcome string

const (
	// OutcomeApplied means the rewritten text landed in the page.
	OutcomeApplied Outcome = "applied"
	// OutcomeManualFallback means the text was preserved out of band; the
	// user retrieves it from the clipboard or this history.
	OutcomeManualFallback Outcome = "manual-fallback"
	// OutcomePreviewed means the text was shown in the preview panel.
	OutcomePreviewed Outcome = "previewed"
	// OutcomeError means the provider call failed.
	OutcomeError Outcome = "error"
)

// RewriteRecord is one rewrite attempt's history row.
type RewriteRecord struct {
	ID        string
	TabID     int
	Provider  string
	Model     string
	Original  string
	Rewritten string
	Outcome   Outcome
	Error     string
	CreatedAt time.Time
}

// HistoryStore records rewrite attempts. Manual-fallback rows double as the
// recovery surface: the rewritten text a user could not get into the page is
// always retrievable from here.
type HistoryStore struct {
	db *sql.DB
}

// NewHistoryStore opens (creating if needed) <dataDir>/history.db.
func NewHistoryStore(dataDir string) (*HistoryStore, error) {
	dbPath := filepath.Join(dataDir, "history.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}

	store := &HistoryStore{db: db}
	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize history database: %w", err)
	}
	return store, nil
}

func (hs *HistoryStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS rewrites (
		id TEXT PRIMARY KEY,
		tab_id INTEGER NOT NULL,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		original TEXT NOT NULL,
		rewritten TEXT NOT NULL,
		outcome TEXT NOT NULL,
		error TEXT,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_rewrites_outcome ON rewrites(outcome);
	CREATE INDEX IF NOT EXISTS idx_rewrites_created_at ON rewrites(created_at);
	`

	_, err := hs.db.Exec(schema)
	return err
}

// Record inserts one rewrite attempt. A zero ID or CreatedAt is filled in.
func (hs *HistoryStore) Record(ctx context.Context, rec RewriteRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	query := `
	INSERT INTO rewrites (id, tab_id, provider, model, original, rewritten, outcome, error, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := hs.db.ExecContext(ctx, query,
		rec.ID,
		rec.TabID,
		rec.Provider,
		rec.Model,
		rec.Original,
		rec.Rewritten,
		string(rec.Outcome),
		rec.Error,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record rewrite: %w", err)
	}
	return nil
}

// Recent returns the latest records, newest first.
func (hs *HistoryStore) Recent(ctx context.Context, limit int) ([]RewriteRecord, error) {
	query := `
	SELECT id, tab_id, provider, model, original, rewritten, outcome, error, created_at
	FROM rewrites
	ORDER BY created_at DESC
	LIMIT ?
	`
	return hs.query(ctx, query, limit)
}

// PendingFallbacks returns manual-fallback rows, newest first. These are the
// results a user may still want to paste by hand.
func (hs *HistoryStore) PendingFallbacks(ctx context.Context, limit int) ([]RewriteRecord, error) {
	query := `
	SELECT id, tab_id, provider, model, original, rewritten, outcome, error, created_at
	FROM rewrites
	WHERE outcome = ?
	ORDER BY created_at DESC
	LIMIT ?
	`
	return hs.query(ctx, query, string(OutcomeManualFallback), limit)
}

func (hs *HistoryStore) query(ctx context.Context, query string, args ...any) ([]RewriteRecord, error) {
	rows, err := hs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []RewriteRecord
	for rows.Next() {
		var rec RewriteRecord
		var outcome string
		err := rows.Scan(
			&rec.ID,
			&rec.TabID,
			&rec.Provider,
			&rec.Model,
			&rec.Original,
			&rec.Rewritten,
			&outcome,
			&rec.Error,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		rec.Outcome = Outcome(outcome)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Prune deletes records older than the cutoff.
func (hs *HistoryStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := hs.db.ExecContext(ctx, `DELETE FROM rewrites WHERE created_at < ?`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (hs *HistoryStore) Close() error {
	if hs.db != nil {
		return hs.db.Close()
	}
	return nil
}
