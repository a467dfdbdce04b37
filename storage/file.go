// File-backed archive: a manifest index plus one JSON file per session.
//
// Information Hiding:
// - On-disk layout (manifest.json + <id>.json) hidden behind Archive
// - Manifest load resilience (missing, corrupt, version drift) internal
// - Single-writer assumption made explicit via an in-process mutex
package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/inkhorn/scribe/history"
)

// FileArchive implements Archive over a directory of JSON files:
// <dir>/manifest.json indexes the sessions, <dir>/<id>.json holds each
// transcript. Mutating operations are serialized within the process;
// there is no cross-process locking.
type FileArchive struct {
	mu     sync.RWMutex
	dir    string
	logger *slog.Logger
}

// NewFileArchive creates an archive rooted at dir. The directory is
// created lazily on first write, not here.
func NewFileArchive(dir string, logger *slog.Logger) *FileArchive {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileArchive{
		dir:    dir,
		logger: logger.With("component", "storage"),
	}
}

// CreateHistory archives a new session and indexes it in the manifest.
func (a *FileArchive) CreateHistory(name string, contents []history.Turn) (*ChatSession, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	session := &ChatSession{
		ID:         newSessionID(),
		Name:       sessionName(name, now),
		CreatedAt:  now.UnixMilli(),
		ModifiedAt: now.UnixMilli(),
		Contents:   contents,
	}
	if err := a.saveSession(session); err != nil {
		return nil, err
	}

	manifest := a.loadManifest()
	manifest.Histories = append(manifest.Histories, SessionSummary{
		ID:         session.ID,
		Name:       session.Name,
		CreatedAt:  session.CreatedAt,
		ModifiedAt: session.ModifiedAt,
	})
	if err := a.saveManifest(manifest); err != nil {
		return nil, err
	}

	return session, nil
}

// UpdateHistory replaces a session's transcript and bumps modifiedAt in
// both the session file and the manifest. Returns false if the session
// file does not exist.
func (a *FileArchive) UpdateHistory(id string, contents []history.Turn) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	session, ok := a.loadSession(id)
	if !ok {
		return false, nil
	}

	session.Contents = contents
	session.ModifiedAt = time.Now().UnixMilli()
	if err := a.saveSession(session); err != nil {
		return false, err
	}

	manifest := a.loadManifest()
	for i := range manifest.Histories {
		if manifest.Histories[i].ID == id {
			manifest.Histories[i].ModifiedAt = session.ModifiedAt
			break
		}
	}
	if err := a.saveManifest(manifest); err != nil {
		return false, err
	}

	return true, nil
}

// RenameHistory sets a session's display name, trimmed, in both the
// session file and the manifest. Returns false if the session file does
// not exist.
func (a *FileArchive) RenameHistory(id, newName string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	session, ok := a.loadSession(id)
	if !ok {
		return false, nil
	}

	name := strings.TrimSpace(newName)
	session.Name = name
	if err := a.saveSession(session); err != nil {
		return false, err
	}

	manifest := a.loadManifest()
	for i := range manifest.Histories {
		if manifest.Histories[i].ID == id {
			manifest.Histories[i].Name = name
			break
		}
	}
	if err := a.saveManifest(manifest); err != nil {
		return false, err
	}

	return true, nil
}

// DeleteHistory removes the session file if present (absence is
// tolerated) and purges the manifest entry. Reports whether a manifest
// entry was actually removed.
func (a *FileArchive) DeleteHistory(id string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.Remove(a.sessionPath(id)); err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to remove session file: %w", err)
	}

	manifest := a.loadManifest()
	kept := manifest.Histories[:0]
	removed := false
	for _, h := range manifest.Histories {
		if h.ID == id {
			removed = true
			continue
		}
		kept = append(kept, h)
	}
	if !removed {
		return false, nil
	}

	manifest.Histories = kept
	if err := a.saveManifest(manifest); err != nil {
		return false, err
	}
	return true, nil
}

// GetHistory loads a full session. Returns (nil, nil) when missing or
// unreadable.
func (a *FileArchive) GetHistory(id string) (*ChatSession, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	session, ok := a.loadSession(id)
	if !ok {
		return nil, nil
	}
	return session, nil
}

// GetAllHistories returns manifest summaries, newest modifiedAt first.
func (a *FileArchive) GetAllHistories() ([]SessionSummary, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	manifest := a.loadManifest()
	summaries := make([]SessionSummary, len(manifest.Histories))
	copy(summaries, manifest.Histories)
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].ModifiedAt > summaries[j].ModifiedAt
	})
	return summaries, nil
}

// GetHistoryCount reports how many sessions the manifest indexes.
func (a *FileArchive) GetHistoryCount() (int, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return len(a.loadManifest().Histories), nil
}

// CleanupOldHistories deletes the oldest sessions by modifiedAt until at
// most maxCount remain. Returns the number evicted.
func (a *FileArchive) CleanupOldHistories(maxCount int) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if maxCount < 0 {
		maxCount = 0
	}

	manifest := a.loadManifest()
	if len(manifest.Histories) <= maxCount {
		return 0, nil
	}

	sorted := make([]SessionSummary, len(manifest.Histories))
	copy(sorted, manifest.Histories)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ModifiedAt < sorted[j].ModifiedAt
	})

	doomed := make(map[string]bool, len(sorted)-maxCount)
	for _, h := range sorted[:len(sorted)-maxCount] {
		if err := os.Remove(a.sessionPath(h.ID)); err != nil && !os.IsNotExist(err) {
			return len(doomed), fmt.Errorf("failed to remove session file: %w", err)
		}
		doomed[h.ID] = true
	}

	kept := manifest.Histories[:0]
	for _, h := range manifest.Histories {
		if !doomed[h.ID] {
			kept = append(kept, h)
		}
	}
	manifest.Histories = kept
	if err := a.saveManifest(manifest); err != nil {
		return len(doomed), err
	}

	a.logger.Info("evicted old sessions", "count", len(doomed), "remaining", len(kept))
	return len(doomed), nil
}

func (a *FileArchive) manifestPath() string {
	return filepath.Join(a.dir, "manifest.json")
}

func (a *FileArchive) sessionPath(id string) string {
	return filepath.Join(a.dir, id+".json")
}

// ensureDir creates the archive directory. Best effort: failure is only
// logged, the subsequent write reports the real error.
func (a *FileArchive) ensureDir() {
	if err := os.MkdirAll(a.dir, 0755); err != nil {
		a.logger.Warn("failed to create archive directory", "dir", a.dir, "error", err)
	}
}

// loadManifest reads the manifest, recovering to empty on a missing or
// corrupt file. A version mismatch is logged but entries are kept.
func (a *FileArchive) loadManifest() Manifest {
	empty := Manifest{Version: manifestVersion}

	data, err := os.ReadFile(a.manifestPath())
	if err != nil {
		if !os.IsNotExist(err) {
			a.logger.Warn("failed to read manifest", "error", err)
		}
		return empty
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		a.logger.Warn("manifest is corrupt, resetting", "error", err)
		return empty
	}
	if manifest.Version != manifestVersion {
		a.logger.Warn("manifest version mismatch",
			"got", manifest.Version, "want", manifestVersion)
	}
	return manifest
}

func (a *FileArchive) saveManifest(manifest Manifest) error {
	a.ensureDir()

	manifest.Version = manifestVersion
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(a.manifestPath(), data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// loadSession reads one session file. Missing or unreadable files report
// as absent rather than as errors.
func (a *FileArchive) loadSession(id string) (*ChatSession, bool) {
	data, err := os.ReadFile(a.sessionPath(id))
	if err != nil {
		if !os.IsNotExist(err) {
			a.logger.Warn("failed to read session file", "id", id, "error", err)
		}
		return nil, false
	}

	var session ChatSession
	if err := json.Unmarshal(data, &session); err != nil {
		a.logger.Warn("session file is corrupt", "id", id, "error", err)
		return nil, false
	}
	return &session, true
}

func (a *FileArchive) saveSession(session *ChatSession) error {
	a.ensureDir()

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", session.ID, err)
	}
	if err := os.WriteFile(a.sessionPath(session.ID), data, 0644); err != nil {
		return fmt.Errorf("failed to write session %s: %w", session.ID, err)
	}
	return nil
}

// Verify FileArchive implements Archive
var _ Archive = (*FileArchive)(nil)
