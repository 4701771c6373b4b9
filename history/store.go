// Package history records each successful poll in SQLite so past rankings can be queried.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/eringen/livepages/beat"
)

// tsLayout is fixed-width so stored timestamps sort lexically.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

// Entry is one rank of one recorded poll.
type Entry struct {
	PolledAt  time.Time       `json:"polled_at"`
	Rank      int             `json:"rank"`
	Title     string          `json:"title"`
	Path      string          `json:"path,omitempty"`
	Visits    int             `json:"visits"`
	Referrers []beat.Referrer `json:"toprefs"`
}

// Store wraps the snapshot database.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at path and ensures the schema.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("history: create data dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	// One poll writes at a time; WAL lets the API read alongside it.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: pragmas: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: ensure schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			polled_at TEXT NOT NULL,
			rank INTEGER NOT NULL,
			title TEXT NOT NULL,
			path TEXT NOT NULL DEFAULT '',
			visits INTEGER NOT NULL,
			referrers TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_snapshots_polled_at ON snapshots(polled_at);
		CREATE INDEX IF NOT EXISTS idx_snapshots_rank ON snapshots(rank, polled_at);
	`)
	return err
}

// Save records pages as the ranking observed at polledAt.
func (s *Store) Save(ctx context.Context, polledAt time.Time, pages []beat.PageInfo) error {
	if len(pages) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO snapshots (polled_at, rank, title, path, visits, referrers) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("history: prepare: %w", err)
	}
	defer stmt.Close()

	ts := polledAt.UTC().Format(tsLayout)
	for rank, p := range pages {
		refs := p.Referrers
		if refs == nil {
			refs = []beat.Referrer{}
		}
		b, err := json.Marshal(refs)
		if err != nil {
			return fmt.Errorf("history: encode referrers: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, ts, rank, p.Title, p.Path, p.Visits, string(b)); err != nil {
			return fmt.Errorf("history: insert rank %d: %w", rank, err)
		}
	}
	return tx.Commit()
}

// RankHistory returns the most recent entries recorded for rank, newest first.
func (s *Store) RankHistory(ctx context.Context, rank, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT polled_at, rank, title, path, visits, referrers FROM snapshots WHERE rank = ? ORDER BY polled_at DESC, id DESC LIMIT ?`, rank, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query rank %d: %w", rank, err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			polledAt, title, path, refs string
			e                           Entry
		)
		if err := rows.Scan(&polledAt, &e.Rank, &title, &path, &e.Visits, &refs); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		e.PolledAt, err = time.Parse(tsLayout, polledAt)
		if err != nil {
			return nil, fmt.Errorf("history: parse polled_at %q: %w", polledAt, err)
		}
		e.Title = title
		e.Path = path
		if err := json.Unmarshal([]byte(refs), &e.Referrers); err != nil {
			return nil, fmt.Errorf("history: decode referrers: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Cleanup removes snapshots older than retention.
func (s *Store) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention).Format(tsLayout)
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE polled_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("history: cleanup: %w", err)
	}
	return res.RowsAffected()
}

// StartCleanupScheduler runs Cleanup every interval. Returns a stop function.
func (s *Store) StartCleanupScheduler(retention, interval time.Duration, onErr func(error)) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				if _, err := s.Cleanup(context.Background(), retention); err != nil && onErr != nil {
					onErr(err)
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() { close(done) }
}
