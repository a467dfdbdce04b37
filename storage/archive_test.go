package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/inkhorn/scribe/history"
	"github.com/inkhorn/scribe/llm"
)

// forEachBackend runs a contract test against every Archive implementation.
func forEachBackend(t *testing.T, test func(t *testing.T, archive Archive)) {
	t.Run("file", func(t *testing.T) {
		test(t, NewFileArchive(t.TempDir(), nil))
	})
	t.Run("sqlite", func(t *testing.T) {
		archive, err := NewSqliteArchiveInMemory(nil)
		if err != nil {
			t.Fatalf("Failed to create archive: %v", err)
		}
		t.Cleanup(func() { _ = archive.Close() })
		test(t, archive)
	})
}

func sampleTurns() []history.Turn {
	return []history.Turn{
		{Role: llm.RoleUser, Text: "read notes.txt"},
		{
			Role: llm.RoleModel,
			Text: "Reading the file now.",
			ToolCalls: []llm.ToolCall{
				{ID: "call-1", Name: "read_file", Args: map[string]any{"path": "notes.txt"}, Status: llm.CallExecuted},
			},
		},
		{
			Role: llm.RoleUser,
			ToolResponses: []llm.ToolResponse{
				{ID: "call-1", Name: "read_file", Response: map[string]any{"output": "hello"}},
			},
		},
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	forEachBackend(t, func(t *testing.T, archive Archive) {
		created, err := archive.CreateHistory("Notes chat", sampleTurns())
		if err != nil {
			t.Fatalf("CreateHistory failed: %v", err)
		}
		if created.Name != "Notes chat" {
			t.Errorf("name = %q, want 'Notes chat'", created.Name)
		}
		if created.CreatedAt != created.ModifiedAt {
			t.Errorf("fresh session timestamps differ: %d vs %d", created.CreatedAt, created.ModifiedAt)
		}

		loaded, err := archive.GetHistory(created.ID)
		if err != nil {
			t.Fatalf("GetHistory failed: %v", err)
		}
		if loaded == nil {
			t.Fatal("GetHistory returned nil for a stored session")
		}
		if loaded.Name != created.Name || loaded.CreatedAt != created.CreatedAt || loaded.ModifiedAt != created.ModifiedAt {
			t.Errorf("loaded metadata = %+v, want %+v", loaded, created)
		}

		turns := loaded.Contents
		if len(turns) != 3 {
			t.Fatalf("loaded %d turns, want 3", len(turns))
		}
		if turns[0].Role != llm.RoleUser || turns[0].Text != "read notes.txt" {
			t.Errorf("turn 0 = %+v", turns[0])
		}
		if turns[1].Text != "Reading the file now." {
			t.Errorf("turn 1 text = %q", turns[1].Text)
		}
		if len(turns[1].ToolCalls) != 1 {
			t.Fatalf("turn 1 has %d calls, want 1", len(turns[1].ToolCalls))
		}
		call := turns[1].ToolCalls[0]
		if call.Name != "read_file" || call.Status != llm.CallExecuted || call.Args["path"] != "notes.txt" {
			t.Errorf("turn 1 call = %+v", call)
		}
		if len(turns[2].ToolResponses) != 1 || turns[2].ToolResponses[0].Response["output"] != "hello" {
			t.Errorf("turn 2 = %+v", turns[2])
		}
	})
}

func TestArchiveIDFormat(t *testing.T) {
	forEachBackend(t, func(t *testing.T, archive Archive) {
		created, err := archive.CreateHistory("x", nil)
		if err != nil {
			t.Fatalf("CreateHistory failed: %v", err)
		}

		parts := strings.SplitN(created.ID, "-", 3)
		if len(parts) != 3 || parts[0] != "chat" {
			t.Fatalf("id = %q, want chat-<millis>-<suffix>", created.ID)
		}
		if len(parts[2]) != 7 {
			t.Errorf("id suffix = %q, want 7 chars", parts[2])
		}
	})
}

func TestArchiveDefaultName(t *testing.T) {
	forEachBackend(t, func(t *testing.T, archive Archive) {
		created, err := archive.CreateHistory("", nil)
		if err != nil {
			t.Fatalf("CreateHistory failed: %v", err)
		}
		if !strings.HasPrefix(created.Name, "Chat ") {
			t.Errorf("default name = %q, want 'Chat <date>'", created.Name)
		}

		blank, err := archive.CreateHistory("   ", nil)
		if err != nil {
			t.Fatalf("CreateHistory failed: %v", err)
		}
		if !strings.HasPrefix(blank.Name, "Chat ") {
			t.Errorf("whitespace name = %q, want default", blank.Name)
		}
	})
}

func TestArchiveUpdateHistory(t *testing.T) {
	forEachBackend(t, func(t *testing.T, archive Archive) {
		created, err := archive.CreateHistory("chat", sampleTurns())
		if err != nil {
			t.Fatalf("CreateHistory failed: %v", err)
		}

		time.Sleep(5 * time.Millisecond)
		updated := append(sampleTurns(), history.Turn{Role: llm.RoleUser, Text: "and again"})
		ok, err := archive.UpdateHistory(created.ID, updated)
		if err != nil {
			t.Fatalf("UpdateHistory failed: %v", err)
		}
		if !ok {
			t.Fatal("UpdateHistory returned false for an existing session")
		}

		loaded, err := archive.GetHistory(created.ID)
		if err != nil {
			t.Fatalf("GetHistory failed: %v", err)
		}
		if len(loaded.Contents) != 4 {
			t.Errorf("loaded %d turns, want 4", len(loaded.Contents))
		}
		if loaded.ModifiedAt <= created.ModifiedAt {
			t.Errorf("modifiedAt not bumped: %d <= %d", loaded.ModifiedAt, created.ModifiedAt)
		}
		if loaded.CreatedAt != created.CreatedAt {
			t.Errorf("createdAt changed: %d != %d", loaded.CreatedAt, created.CreatedAt)
		}

		summaries, err := archive.GetAllHistories()
		if err != nil {
			t.Fatalf("GetAllHistories failed: %v", err)
		}
		if len(summaries) != 1 || summaries[0].ModifiedAt != loaded.ModifiedAt {
			t.Errorf("summary = %+v, want modifiedAt %d", summaries, loaded.ModifiedAt)
		}
	})
}

func TestArchiveUpdateMissing(t *testing.T) {
	forEachBackend(t, func(t *testing.T, archive Archive) {
		ok, err := archive.UpdateHistory("chat-0-zzzzzzz", sampleTurns())
		if err != nil {
			t.Fatalf("UpdateHistory failed: %v", err)
		}
		if ok {
			t.Error("UpdateHistory returned true for a missing session")
		}
	})
}

func TestArchiveRename(t *testing.T) {
	forEachBackend(t, func(t *testing.T, archive Archive) {
		created, err := archive.CreateHistory("Original", nil)
		if err != nil {
			t.Fatalf("CreateHistory failed: %v", err)
		}

		ok, err := archive.RenameHistory(created.ID, "  Renamed  ")
		if err != nil {
			t.Fatalf("RenameHistory failed: %v", err)
		}
		if !ok {
			t.Fatal("RenameHistory returned false for an existing session")
		}

		loaded, err := archive.GetHistory(created.ID)
		if err != nil {
			t.Fatalf("GetHistory failed: %v", err)
		}
		if loaded.Name != "Renamed" {
			t.Errorf("name = %q, want trimmed 'Renamed'", loaded.Name)
		}

		summaries, _ := archive.GetAllHistories()
		if len(summaries) != 1 || summaries[0].Name != "Renamed" {
			t.Errorf("summaries = %+v, want renamed entry", summaries)
		}

		ok, err = archive.RenameHistory("chat-0-zzzzzzz", "ghost")
		if err != nil {
			t.Fatalf("RenameHistory failed: %v", err)
		}
		if ok {
			t.Error("RenameHistory returned true for a missing session")
		}
	})
}

func TestArchiveDelete(t *testing.T) {
	forEachBackend(t, func(t *testing.T, archive Archive) {
		created, err := archive.CreateHistory("doomed", nil)
		if err != nil {
			t.Fatalf("CreateHistory failed: %v", err)
		}

		removed, err := archive.DeleteHistory(created.ID)
		if err != nil {
			t.Fatalf("DeleteHistory failed: %v", err)
		}
		if !removed {
			t.Error("DeleteHistory returned false for an existing session")
		}

		loaded, err := archive.GetHistory(created.ID)
		if err != nil || loaded != nil {
			t.Errorf("GetHistory after delete = (%+v, %v), want (nil, nil)", loaded, err)
		}
		count, _ := archive.GetHistoryCount()
		if count != 0 {
			t.Errorf("count = %d, want 0", count)
		}

		removed, err = archive.DeleteHistory(created.ID)
		if err != nil {
			t.Fatalf("second DeleteHistory failed: %v", err)
		}
		if removed {
			t.Error("second DeleteHistory returned true")
		}
	})
}

func TestArchiveGetMissing(t *testing.T) {
	forEachBackend(t, func(t *testing.T, archive Archive) {
		loaded, err := archive.GetHistory("chat-0-zzzzzzz")
		if err != nil {
			t.Fatalf("GetHistory failed: %v", err)
		}
		if loaded != nil {
			t.Errorf("GetHistory = %+v, want nil for missing session", loaded)
		}
	})
}

func TestArchiveListNewestFirst(t *testing.T) {
	forEachBackend(t, func(t *testing.T, archive Archive) {
		var ids []string
		for _, name := range []string{"first", "second", "third"} {
			created, err := archive.CreateHistory(name, nil)
			if err != nil {
				t.Fatalf("CreateHistory failed: %v", err)
			}
			ids = append(ids, created.ID)
			time.Sleep(5 * time.Millisecond)
		}

		summaries, err := archive.GetAllHistories()
		if err != nil {
			t.Fatalf("GetAllHistories failed: %v", err)
		}
		if len(summaries) != 3 {
			t.Fatalf("got %d summaries, want 3", len(summaries))
		}
		for i, want := range []string{ids[2], ids[1], ids[0]} {
			if summaries[i].ID != want {
				t.Errorf("summaries[%d].ID = %q, want %q", i, summaries[i].ID, want)
			}
		}
	})
}

func TestArchiveCleanup(t *testing.T) {
	forEachBackend(t, func(t *testing.T, archive Archive) {
		var ids []string
		for i := 0; i < 5; i++ {
			created, err := archive.CreateHistory("chat", nil)
			if err != nil {
				t.Fatalf("CreateHistory failed: %v", err)
			}
			ids = append(ids, created.ID)
			time.Sleep(5 * time.Millisecond)
		}

		evicted, err := archive.CleanupOldHistories(3)
		if err != nil {
			t.Fatalf("CleanupOldHistories failed: %v", err)
		}
		if evicted != 2 {
			t.Errorf("evicted = %d, want 2", evicted)
		}

		count, err := archive.GetHistoryCount()
		if err != nil {
			t.Fatalf("GetHistoryCount failed: %v", err)
		}
		if count != 3 {
			t.Errorf("count = %d, want 3", count)
		}

		// The two oldest are gone, the three newest survive.
		for _, id := range ids[:2] {
			if loaded, _ := archive.GetHistory(id); loaded != nil {
				t.Errorf("evicted session %s still present", id)
			}
		}
		for _, id := range ids[2:] {
			if loaded, _ := archive.GetHistory(id); loaded == nil {
				t.Errorf("surviving session %s is gone", id)
			}
		}

		evicted, err = archive.CleanupOldHistories(3)
		if err != nil {
			t.Fatalf("second CleanupOldHistories failed: %v", err)
		}
		if evicted != 0 {
			t.Errorf("second cleanup evicted %d, want 0", evicted)
		}
	})
}

func TestArchiveCleanupUnderLimit(t *testing.T) {
	forEachBackend(t, func(t *testing.T, archive Archive) {
		if _, err := archive.CreateHistory("only", nil); err != nil {
			t.Fatalf("CreateHistory failed: %v", err)
		}

		evicted, err := archive.CleanupOldHistories(5)
		if err != nil {
			t.Fatalf("CleanupOldHistories failed: %v", err)
		}
		if evicted != 0 {
			t.Errorf("evicted = %d, want 0", evicted)
		}
	})
}
