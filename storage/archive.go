// Package storage provides the durable session archive.
//
// Information Hiding:
// - Storage backend implementation details hidden behind the Archive interface
// - Allows swapping between file and SQLite backends without API changes
// - Each backend encapsulates its own layout, manifest handling, and schema
package storage

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/inkhorn/scribe/history"
)

// manifestVersion is the current manifest schema version.
const manifestVersion = 1

// ChatSession is one archived conversation: identity, display name,
// timestamps in epoch milliseconds, and the full ordered transcript.
type ChatSession struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	CreatedAt  int64          `json:"createdAt"`
	ModifiedAt int64          `json:"modifiedAt"`
	Contents   []history.Turn `json:"contents"`
}

// SessionSummary is the manifest's lightweight view of a session,
// everything except the transcript itself.
type SessionSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CreatedAt  int64  `json:"createdAt"`
	ModifiedAt int64  `json:"modifiedAt"`
}

// Manifest indexes all archived sessions. Display ordering is computed
// (modifiedAt descending), not a property of storage order.
type Manifest struct {
	Version   int              `json:"version"`
	Histories []SessionSummary `json:"histories"`
}

// Archive is the session store contract.
//
// Reads present missing sessions as (nil, nil) or false rather than errors;
// write failures are returned so callers can retry or surface them. The
// store assumes a single writer per session id.
type Archive interface {
	// CreateHistory archives a new session. An empty name gets a default
	// derived from the current local time. Returns the stored session.
	CreateHistory(name string, contents []history.Turn) (*ChatSession, error)

	// UpdateHistory replaces a session's transcript and bumps modifiedAt.
	// Returns false when the session does not exist.
	UpdateHistory(id string, contents []history.Turn) (bool, error)

	// RenameHistory sets a session's display name (trimmed).
	// Returns false when the session does not exist.
	RenameHistory(id, newName string) (bool, error)

	// DeleteHistory removes a session. A missing transcript is tolerated;
	// the result reports whether an index entry was actually purged.
	DeleteHistory(id string) (bool, error)

	// GetHistory loads a full session. Returns (nil, nil) when missing.
	GetHistory(id string) (*ChatSession, error)

	// GetAllHistories lists summaries, newest modifiedAt first.
	GetAllHistories() ([]SessionSummary, error)

	// GetHistoryCount reports how many sessions are archived.
	GetHistoryCount() (int, error)

	// CleanupOldHistories deletes the oldest sessions by modifiedAt until
	// at most maxCount remain. Returns the number evicted.
	CleanupOldHistories(maxCount int) (int, error)
}

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// newSessionID generates "chat-<epoch-millis>-<7 random base36 chars>".
// Collisions are treated as negligible, not formally prevented.
func newSessionID() string {
	suffix := make([]byte, 7)
	for i := range suffix {
		suffix[i] = base36Alphabet[rand.Intn(len(base36Alphabet))]
	}
	return fmt.Sprintf("chat-%d-%s", time.Now().UnixMilli(), suffix)
}

// defaultSessionName derives a display name from the current local time.
func defaultSessionName(now time.Time) string {
	return "Chat " + now.Format("2006-01-02 15:04")
}

// sessionName returns the trimmed requested name, or a time-derived default.
func sessionName(requested string, now time.Time) string {
	name := strings.TrimSpace(requested)
	if name == "" {
		return defaultSessionName(now)
	}
	return name
}
