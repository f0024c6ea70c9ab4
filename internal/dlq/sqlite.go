package dlq

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists dead-letter entries in a local SQLite database
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the dead-letter database
func NewSQLiteStore(databasePath string) (*SQLiteStore, error) {
	if databasePath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := sql.Open("sqlite3", databasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	query := `CREATE TABLE IF NOT EXISTS dead_letters (
		id TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		attempts INTEGER NOT NULL,
		last_error TEXT NOT NULL,
		endpoint TEXT NOT NULL,
		requires_manual_review BOOLEAN NOT NULL DEFAULT 1,
		recorded_at DATETIME NOT NULL
	)`
	if _, err := s.db.Exec(query); err != nil {
		return err
	}

	_, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_dead_letters_recorded_at
		ON dead_letters(recorded_at)`)
	return err
}

// Insert appends one entry
func (s *SQLiteStore) Insert(ctx context.Context, entry *Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dead_letters (id, payload, attempts, last_error, endpoint, requires_manual_review, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Payload, entry.Attempts, entry.LastError,
		entry.Endpoint, entry.RequiresManualReview, entry.RecordedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert dead-letter entry: %w", err)
	}
	return nil
}

// List returns entries newest first
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, payload, attempts, last_error, endpoint, requires_manual_review, recorded_at
		 FROM dead_letters ORDER BY recorded_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list dead-letter entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var entry Entry
		var recordedAt string
		if err := rows.Scan(&entry.ID, &entry.Payload, &entry.Attempts, &entry.LastError,
			&entry.Endpoint, &entry.RequiresManualReview, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dead-letter entry: %w", err)
		}
		if ts, parseErr := time.Parse(time.RFC3339Nano, recordedAt); parseErr == nil {
			entry.RecordedAt = ts
		}
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// Stats returns aggregate statistics
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	var oldest, newest sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(recorded_at), MAX(recorded_at) FROM dead_letters`,
	).Scan(&stats.TotalEntries, &oldest, &newest)
	if err != nil {
		return nil, fmt.Errorf("failed to compute dead-letter stats: %w", err)
	}

	if oldest.Valid {
		if ts, parseErr := time.Parse(time.RFC3339Nano, oldest.String); parseErr == nil {
			stats.OldestEntry = &ts
		}
	}
	if newest.Valid {
		if ts, parseErr := time.Parse(time.RFC3339Nano, newest.String); parseErr == nil {
			stats.NewestEntry = &ts
		}
	}

	return stats, nil
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
