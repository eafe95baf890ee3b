// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/ligant-ai/ligant-client/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrClosed indicates the store has been closed.
	ErrClosed = errors.New("store is closed")

	// ErrNotFound indicates no record matched the query.
	ErrNotFound = errors.New("record not found")
)

// =============================================================================
// SCHEMA
// =============================================================================

const schema = `
CREATE TABLE IF NOT EXISTS visualization_records (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id          TEXT NOT NULL UNIQUE,
	conversation_id TEXT NOT NULL,
	message_id      TEXT NOT NULL,
	created_at      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS visualization_artifacts (
	record_id   INTEGER NOT NULL REFERENCES visualization_records(id) ON DELETE CASCADE,
	artifact_id TEXT NOT NULL,
	position    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_viz_conversation
	ON visualization_records(conversation_id);

CREATE TABLE IF NOT EXISTS conversation_cache (
	conversation_id TEXT PRIMARY KEY,
	title           TEXT NOT NULL,
	preview         TEXT NOT NULL,
	last_activity   TEXT NOT NULL,
	cached_at       INTEGER NOT NULL
);
`

// =============================================================================
// STORE
// =============================================================================

// VisualizationRecord ties an injected visualization message back to the
// job that produced it.
type VisualizationRecord struct {
	JobID          string
	ConversationID string
	MessageID      string
	ArtifactIDs    []string
	CreatedAt      time.Time
}

// Store is a sqlite-backed local store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the store at the given path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the store and releases resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// =============================================================================
// VISUALIZATION RECORDS
// =============================================================================

// SaveVisualizationRecord records which message a completed job's
// visualization landed in. Saving the same job twice replaces the record.
func (s *Store) SaveVisualizationRecord(jobID, conversationID, messageID string, artifactIDs []string) error {
	if s.db == nil {
		return ErrClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM visualization_records WHERE job_id = ?", jobID); err != nil {
		return fmt.Errorf("failed to clear previous record: %w", err)
	}

	res, err := tx.Exec(`
		INSERT INTO visualization_records (job_id, conversation_id, message_id, created_at)
		VALUES (?, ?, ?, ?)
	`, jobID, conversationID, messageID, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}

	recordID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read record id: %w", err)
	}

	for i, artifactID := range artifactIDs {
		if _, err := tx.Exec(`
			INSERT INTO visualization_artifacts (record_id, artifact_id, position)
			VALUES (?, ?, ?)
		`, recordID, artifactID, i); err != nil {
			return fmt.Errorf("failed to insert artifact: %w", err)
		}
	}

	return tx.Commit()
}

// VisualizationRecordExists reports whether a job already has a record,
// without loading its artifacts.
func (s *Store) VisualizationRecordExists(jobID string) (bool, error) {
	if s.db == nil {
		return false, ErrClosed
	}

	var n int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM visualization_records WHERE job_id = ?", jobID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query record: %w", err)
	}
	return n > 0, nil
}

// VisualizationRecord returns the record for a job.
func (s *Store) VisualizationRecord(jobID string) (VisualizationRecord, error) {
	if s.db == nil {
		return VisualizationRecord{}, ErrClosed
	}

	var rec VisualizationRecord
	var recordID int64
	var createdAt int64
	err := s.db.QueryRow(`
		SELECT id, job_id, conversation_id, message_id, created_at
		FROM visualization_records WHERE job_id = ?
	`, jobID).Scan(&recordID, &rec.JobID, &rec.ConversationID, &rec.MessageID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return VisualizationRecord{}, ErrNotFound
	}
	if err != nil {
		return VisualizationRecord{}, fmt.Errorf("failed to query record: %w", err)
	}
	rec.CreatedAt = time.Unix(createdAt, 0)

	rec.ArtifactIDs, err = s.artifactsForRecord(recordID)
	if err != nil {
		return VisualizationRecord{}, err
	}
	return rec, nil
}

// VisualizationRecords returns all records for a conversation, oldest first.
func (s *Store) VisualizationRecords(conversationID string) ([]VisualizationRecord, error) {
	if s.db == nil {
		return nil, ErrClosed
	}

	rows, err := s.db.Query(`
		SELECT id, job_id, conversation_id, message_id, created_at
		FROM visualization_records
		WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var recs []VisualizationRecord
	var ids []int64
	for rows.Next() {
		var rec VisualizationRecord
		var recordID int64
		var createdAt int64
		if err := rows.Scan(&recordID, &rec.JobID, &rec.ConversationID, &rec.MessageID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec.CreatedAt = time.Unix(createdAt, 0)
		recs = append(recs, rec)
		ids = append(ids, recordID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	for i := range recs {
		recs[i].ArtifactIDs, err = s.artifactsForRecord(ids[i])
		if err != nil {
			return nil, err
		}
	}
	return recs, nil
}

func (s *Store) artifactsForRecord(recordID int64) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT artifact_id FROM visualization_artifacts
		WHERE record_id = ? ORDER BY position ASC
	`, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		artifacts = append(artifacts, id)
	}
	return artifacts, rows.Err()
}

// =============================================================================
// CONVERSATION CACHE
// =============================================================================

// CacheConversations replaces the cached conversation list.
func (s *Store) CacheConversations(conversations []model.Conversation) error {
	if s.db == nil {
		return ErrClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM conversation_cache"); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	now := time.Now().Unix()
	for _, conv := range conversations {
		if _, err := tx.Exec(`
			INSERT INTO conversation_cache (conversation_id, title, preview, last_activity, cached_at)
			VALUES (?, ?, ?, ?, ?)
		`, conv.ID, conv.Title, conv.Preview, conv.LastActivity, now); err != nil {
			return fmt.Errorf("failed to insert conversation: %w", err)
		}
	}

	return tx.Commit()
}

// CachedConversations returns the cached conversation list, most recent
// activity first.
func (s *Store) CachedConversations() ([]model.Conversation, error) {
	if s.db == nil {
		return nil, ErrClosed
	}

	rows, err := s.db.Query(`
		SELECT conversation_id, title, preview, last_activity
		FROM conversation_cache
		ORDER BY last_activity DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}
	defer rows.Close()

	var conversations []model.Conversation
	for rows.Next() {
		var conv model.Conversation
		if err := rows.Scan(&conv.ID, &conv.Title, &conv.Preview, &conv.LastActivity); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}
