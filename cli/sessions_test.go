package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/inkhorn/scribe/history"
	"github.com/inkhorn/scribe/llm"
	"github.com/inkhorn/scribe/storage"
)

// clearOverlayEnv blanks every environment override the config loader
// reads, so tests see only the config file they wrote.
func clearOverlayEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SCRIBE_PROVIDER", "SCRIBE_MODEL", "SCRIBE_SYSTEM_PROMPT",
		"SCRIBE_ARCHIVE_DIR", "SCRIBE_ARCHIVE_BACKEND", "SCRIBE_MAX_SESSIONS",
		"SCRIBE_MCP_CONFIG", "SCRIBE_TOOL_POLICY",
		"LLM_MAX_TOKENS", "LLM_TEMPERATURE",
	} {
		t.Setenv(key, "")
	}
}

// testOptions writes a config file pointing the archive at a temp
// directory and returns options using it plus the archive directory.
func testOptions(t *testing.T) (Options, string) {
	t.Helper()
	clearOverlayEnv(t)

	dir := t.TempDir()
	archiveDir := filepath.Join(dir, "sessions")
	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := fmt.Sprintf("archive:\n  dir: %s\n  backend: file\n", archiveDir)
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return Options{ConfigPath: cfgPath}, archiveDir
}

func seedSession(t *testing.T, dir, name string) *storage.ChatSession {
	t.Helper()
	archive := storage.NewFileArchive(dir, nil)
	session, err := archive.CreateHistory(name, []history.Turn{
		{Role: llm.RoleUser, Text: "hello"},
		{Role: llm.RoleModel, Text: "Hi there."},
	})
	if err != nil {
		t.Fatalf("failed to seed session: %v", err)
	}
	return session
}

func TestListSessionsEmptyArchive(t *testing.T) {
	opts, _ := testOptions(t)
	if err := ListSessions(opts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRenameSession(t *testing.T) {
	opts, dir := testOptions(t)
	session := seedSession(t, dir, "First")

	if err := RenameSession(session.ID, "Renamed", opts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := storage.NewFileArchive(dir, nil).GetHistory(session.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "Renamed" {
		t.Errorf("name = %q, want %q", got.Name, "Renamed")
	}
}

func TestRenameSessionMissing(t *testing.T) {
	opts, _ := testOptions(t)
	err := RenameSession("chat-0-zzzzzzz", "Anything", opts)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("err = %v, want not-found error", err)
	}
}

func TestDeleteSession(t *testing.T) {
	opts, dir := testOptions(t)
	session := seedSession(t, dir, "Doomed")

	if err := DeleteSession(session.ID, opts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := storage.NewFileArchive(dir, nil).GetHistory(session.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Error("expected session gone after delete")
	}

	if err := DeleteSession(session.ID, opts); err == nil {
		t.Error("expected error deleting twice")
	}
}

func TestShowSessionMissing(t *testing.T) {
	opts, _ := testOptions(t)
	err := ShowSession("chat-0-zzzzzzz", opts)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("err = %v, want not-found error", err)
	}
}

func TestExportSessionWritesFile(t *testing.T) {
	opts, dir := testOptions(t)
	session := seedSession(t, dir, "Trip Notes")
	outPath := filepath.Join(t.TempDir(), "out.md")

	if err := ExportSession(session.ID, "md", outPath, opts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("failed to read export: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "# Trip Notes") {
		t.Errorf("export missing title header:\n%s", text)
	}
	if !strings.Contains(text, "Hi there.") {
		t.Errorf("export missing model text:\n%s", text)
	}
}

func TestExportSessionUnknownFormat(t *testing.T) {
	opts, dir := testOptions(t)
	session := seedSession(t, dir, "First")

	if err := ExportSession(session.ID, "xml", "", opts); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestExportSessionMissing(t *testing.T) {
	opts, _ := testOptions(t)
	err := ExportSession("chat-0-zzzzzzz", "md", "", opts)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("err = %v, want not-found error", err)
	}
}

func TestCleanupSessions(t *testing.T) {
	opts, dir := testOptions(t)
	for i := 0; i < 4; i++ {
		seedSession(t, dir, fmt.Sprintf("Session %d", i))
		time.Sleep(5 * time.Millisecond)
	}

	if err := CleanupSessions(2, opts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	count, err := storage.NewFileArchive(dir, nil).GetHistoryCount()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2 after cleanup", count)
	}

	// Negative keep falls back to the configured limit, which defaults
	// far above two sessions.
	if err := CleanupSessions(-1, opts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	count, err = storage.NewFileArchive(dir, nil).GetHistoryCount()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2 when under the configured limit", count)
	}
}

func TestWriteSessionTable(t *testing.T) {
	now := time.Now().UnixMilli()
	summaries := []storage.SessionSummary{
		{ID: "chat-2-bbbbbbb", Name: "Second", CreatedAt: now, ModifiedAt: now},
		{ID: "chat-1-aaaaaaa", Name: "First", CreatedAt: now, ModifiedAt: now},
	}

	var buf bytes.Buffer
	writeSessionTable(&buf, summaries)

	out := buf.String()
	for _, want := range []string{"2 session(s)", "chat-2-bbbbbbb", "chat-1-aaaaaaa", "Second", "First"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestWriteSessionTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	writeSessionTable(&buf, nil)

	if !strings.Contains(buf.String(), "No sessions") {
		t.Errorf("output = %q, want empty notice", buf.String())
	}
}

func TestWriteTranscript(t *testing.T) {
	now := time.Now().UnixMilli()
	session := &storage.ChatSession{
		ID:         "chat-1-aaaaaaa",
		Name:       "Weather",
		CreatedAt:  now,
		ModifiedAt: now,
		Contents: []history.Turn{
			{Role: llm.RoleUser, Text: "weather?"},
			{Role: llm.RoleModel, Text: "Checking.", ToolCalls: []llm.ToolCall{
				{ID: "c1", Name: "web_fetch", Args: map[string]any{"url": "https://example.com"}, Status: llm.CallExecuted},
			}},
			{Role: llm.RoleUser, ToolResponses: []llm.ToolResponse{
				{ID: "c1", Name: "web_fetch", Response: map[string]any{"output": "sunny"}},
			}},
			{Role: llm.RoleModel, Text: "Sunny."},
		},
	}

	var buf bytes.Buffer
	writeTranscript(&buf, session)

	out := buf.String()
	for _, want := range []string{"Weather", "chat-1-aaaaaaa", "you", "weather?", "assistant", "Checking.", "web_fetch", "sunny", "Sunny."} {
		if !strings.Contains(out, want) {
			t.Errorf("transcript missing %q:\n%s", want, out)
		}
	}
}

func TestFormatWhen(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{"recent", now.Add(-1 * time.Hour), now.Add(-1 * time.Hour).Format("Today 15:04")},
		{"this week", now.Add(-3 * 24 * time.Hour), now.Add(-3 * 24 * time.Hour).Format("Mon 15:04")},
		{"this year", now.Add(-40 * 24 * time.Hour), now.Add(-40 * 24 * time.Hour).Format("Jan 02 15:04")},
		{"older", now.Add(-2 * 365 * 24 * time.Hour), now.Add(-2 * 365 * 24 * time.Hour).Format("2006-01-02")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatWhen(tt.t); got != tt.want {
				t.Errorf("formatWhen = %q, want %q", got, tt.want)
			}
		})
	}
}
