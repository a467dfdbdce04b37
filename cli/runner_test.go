package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/inkhorn/scribe/agent"
	"github.com/inkhorn/scribe/history"
	"github.com/inkhorn/scribe/llm"
	"github.com/inkhorn/scribe/storage"
)

func TestRunExchangeStreamsText(t *testing.T) {
	provider := &stubProvider{chunks: []llm.StreamChunk{{Text: "Hel"}, {Text: "lo."}}}
	a := agent.NewBuilder(provider).Build()

	var out bytes.Buffer
	if err := runExchange(context.Background(), a, "hi", &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != "Hello.\n" {
		t.Errorf("output = %q, want %q", out.String(), "Hello.\n")
	}
	if a.History().Len() != 2 {
		t.Errorf("history len = %d, want committed exchange", a.History().Len())
	}
}

func TestRunExchangeStreamError(t *testing.T) {
	provider := &stubProvider{chunks: []llm.StreamChunk{{Text: "par"}}, err: errors.New("rate limited")}
	a := agent.NewBuilder(provider).Build()

	var out bytes.Buffer
	err := runExchange(context.Background(), a, "hi", &out)
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("err = %v, want stream error", err)
	}
	if out.String() != "par\n" {
		t.Errorf("output = %q, want partial text", out.String())
	}
	if a.History().Len() != 0 {
		t.Errorf("history len = %d, want no commit on error", a.History().Len())
	}
}

func TestPersistTurns(t *testing.T) {
	archive := storage.NewFileArchive(t.TempDir(), nil)
	turns := []history.Turn{
		{Role: llm.RoleUser, Text: "hi"},
		{Role: llm.RoleModel, Text: "Hello."},
	}

	var session *storage.ChatSession
	created, err := persistTurns(archive, &session, turns)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created || session == nil {
		t.Fatal("expected first persist to create the session")
	}
	firstID := session.ID

	more := append(turns, history.Turn{Role: llm.RoleUser, Text: "more"})
	created, err = persistTurns(archive, &session, more)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Error("expected second persist to update, not create")
	}
	if session.ID != firstID {
		t.Errorf("session id changed: %s -> %s", firstID, session.ID)
	}

	got, err := archive.GetHistory(firstID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Contents) != 3 {
		t.Errorf("contents len = %d, want 3", len(got.Contents))
	}

	// A session deleted underneath the chat is recreated under its name.
	oldName := session.Name
	if _, err := archive.DeleteHistory(firstID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	created, err = persistTurns(archive, &session, more)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Error("expected recreate after underlying delete")
	}
	if session.ID == firstID {
		t.Error("expected a fresh session id")
	}
	if session.Name != oldName {
		t.Errorf("name = %q, want %q preserved", session.Name, oldName)
	}
}
