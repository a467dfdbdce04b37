// SQLite-backed archive: the same Archive contract over one sessions table.
//
// Information Hiding:
// - Schema and SQL hidden behind the Archive interface
// - Thread-safe via sql.DB's built-in connection pooling
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/inkhorn/scribe/history"
)

// SqliteArchive implements Archive over a SQLite database. Each session
// is one row; the transcript is stored as JSON in the contents column.
type SqliteArchive struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSqliteArchive opens or creates a SQLite archive at the given path.
// Creates parent directories if they don't exist.
func OpenSqliteArchive(path string, logger *slog.Logger) (*SqliteArchive, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	return newSqliteArchive(db, logger)
}

// NewSqliteArchiveInMemory creates an in-memory archive (useful for testing).
func NewSqliteArchiveInMemory(logger *slog.Logger) (*SqliteArchive, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}
	return newSqliteArchive(db, logger)
}

func newSqliteArchive(db *sql.DB, logger *slog.Logger) (*SqliteArchive, error) {
	if logger == nil {
		logger = slog.Default()
	}
	archive := &SqliteArchive{db: db, logger: logger.With("component", "storage")}
	if err := archive.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return archive, nil
}

// Close closes the database connection.
func (s *SqliteArchive) Close() error {
	return s.db.Close()
}

func (s *SqliteArchive) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			modified_at INTEGER NOT NULL,
			contents TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_modified
		ON sessions(modified_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// CreateHistory archives a new session row.
func (s *SqliteArchive) CreateHistory(name string, contents []history.Turn) (*ChatSession, error) {
	now := time.Now()
	session := &ChatSession{
		ID:         newSessionID(),
		Name:       sessionName(name, now),
		CreatedAt:  now.UnixMilli(),
		ModifiedAt: now.UnixMilli(),
		Contents:   contents,
	}

	data, err := json.Marshal(session.Contents)
	if err != nil {
		return nil, fmt.Errorf("failed to encode contents: %w", err)
	}

	_, err = s.db.Exec(
		"INSERT INTO sessions (id, name, created_at, modified_at, contents) VALUES (?, ?, ?, ?, ?)",
		session.ID, session.Name, session.CreatedAt, session.ModifiedAt, string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to insert session: %w", err)
	}

	return session, nil
}

// UpdateHistory replaces a session's transcript and bumps modified_at.
// Returns false if no row matched.
func (s *SqliteArchive) UpdateHistory(id string, contents []history.Turn) (bool, error) {
	data, err := json.Marshal(contents)
	if err != nil {
		return false, fmt.Errorf("failed to encode contents: %w", err)
	}

	res, err := s.db.Exec(
		"UPDATE sessions SET contents = ?, modified_at = ? WHERE id = ?",
		string(data), time.Now().UnixMilli(), id)
	if err != nil {
		return false, fmt.Errorf("failed to update session: %w", err)
	}
	return rowTouched(res)
}

// RenameHistory sets a session's display name, trimmed. Returns false if
// no row matched.
func (s *SqliteArchive) RenameHistory(id, newName string) (bool, error) {
	res, err := s.db.Exec(
		"UPDATE sessions SET name = ? WHERE id = ?",
		strings.TrimSpace(newName), id)
	if err != nil {
		return false, fmt.Errorf("failed to rename session: %w", err)
	}
	return rowTouched(res)
}

// DeleteHistory removes a session row. Reports whether a row was purged;
// deleting an absent id is not an error.
func (s *SqliteArchive) DeleteHistory(id string) (bool, error) {
	res, err := s.db.Exec("DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	return rowTouched(res)
}

// GetHistory loads a full session. Returns (nil, nil) when missing; a
// row with corrupt contents also presents as absent, matching the file
// backend's read resilience.
func (s *SqliteArchive) GetHistory(id string) (*ChatSession, error) {
	var (
		session ChatSession
		raw     string
	)
	err := s.db.QueryRow(
		"SELECT id, name, created_at, modified_at, contents FROM sessions WHERE id = ?",
		id).Scan(&session.ID, &session.Name, &session.CreatedAt, &session.ModifiedAt, &raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if err := json.Unmarshal([]byte(raw), &session.Contents); err != nil {
		s.logger.Warn("session contents are corrupt", "id", id, "error", err)
		return nil, nil
	}
	return &session, nil
}

// GetAllHistories returns summaries, newest modified_at first.
func (s *SqliteArchive) GetAllHistories() ([]SessionSummary, error) {
	rows, err := s.db.Query(
		"SELECT id, name, created_at, modified_at FROM sessions ORDER BY modified_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	summaries := []SessionSummary{} // Start with empty slice, not nil
	for rows.Next() {
		var summary SessionSummary
		if err := rows.Scan(&summary.ID, &summary.Name, &summary.CreatedAt, &summary.ModifiedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return summaries, nil
}

// GetHistoryCount reports how many sessions are archived.
func (s *SqliteArchive) GetHistoryCount() (int, error) {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}

// CleanupOldHistories deletes the oldest sessions by modified_at until at
// most maxCount remain. Returns the number evicted.
func (s *SqliteArchive) CleanupOldHistories(maxCount int) (int, error) {
	if maxCount < 0 {
		maxCount = 0
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	// defer tx.Rollback() is safe even after Commit() - it becomes a no-op
	defer func() { _ = tx.Rollback() }()

	var count int
	if err := tx.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	if count <= maxCount {
		return 0, nil
	}

	res, err := tx.Exec(`
		DELETE FROM sessions WHERE id IN (
			SELECT id FROM sessions ORDER BY modified_at ASC LIMIT ?
		)`, count-maxCount)
	if err != nil {
		return 0, fmt.Errorf("failed to evict sessions: %w", err)
	}
	evicted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info("evicted old sessions", "count", evicted, "remaining", maxCount)
	return int(evicted), nil
}

func rowTouched(res sql.Result) (bool, error) {
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}

// Verify SqliteArchive implements Archive
var _ Archive = (*SqliteArchive)(nil)
