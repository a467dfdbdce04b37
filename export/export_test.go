package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/inkhorn/scribe/history"
	"github.com/inkhorn/scribe/llm"
	"github.com/inkhorn/scribe/storage"
)

func testSession() *storage.ChatSession {
	return &storage.ChatSession{
		ID:         "chat-1700000000000-abcdefg",
		Name:       "Notes chat",
		CreatedAt:  1700000000000,
		ModifiedAt: 1700000300000,
		Contents: []history.Turn{
			{Role: llm.RoleUser, Text: "read notes.txt"},
			{
				Role: llm.RoleModel,
				Text: "Reading the file now.",
				ToolCalls: []llm.ToolCall{
					{ID: "call-1", Name: "read_file", Args: map[string]any{"path": "notes.txt"}},
				},
			},
			{
				Role: llm.RoleUser,
				ToolResponses: []llm.ToolResponse{
					{ID: "call-1", Name: "read_file", Response: map[string]any{"output": "hello"}},
				},
			},
			{Role: llm.RoleModel, Text: "The file says hello."},
		},
	}
}

func TestNewExporter(t *testing.T) {
	tests := []struct {
		format  string
		wantExt string
		wantErr bool
	}{
		{format: "md", wantExt: "md"},
		{format: "markdown", wantExt: "md"},
		{format: "json", wantExt: "json"},
		{format: "xml", wantErr: true},
		{format: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			exporter, err := NewExporter(tt.format)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("NewExporter(%q) succeeded, want error", tt.format)
				}
				if !strings.Contains(err.Error(), "unsupported format") {
					t.Errorf("error = %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewExporter(%q) failed: %v", tt.format, err)
			}
			if exporter.Extension() != tt.wantExt {
				t.Errorf("extension = %q, want %q", exporter.Extension(), tt.wantExt)
			}
		})
	}
}

func TestMarkdownExporterExport(t *testing.T) {
	var buf bytes.Buffer
	if err := (&MarkdownExporter{}).Export(testSession(), &buf); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	got := buf.String()

	want := []string{
		"# Notes chat",
		"**ID:** chat-1700000000000-abcdefg",
		"**Turns:** 4",
		"**User:**",
		"read notes.txt",
		"**Assistant:**",
		"Reading the file now.",
		"*Tool call:* `read_file` `{\"path\":\"notes.txt\"}`",
		"**Tool results:**",
		"- `read_file`: `{\"output\":\"hello\"}`",
		"The file says hello.",
	}
	for _, w := range want {
		if !strings.Contains(got, w) {
			t.Errorf("output missing %q\n---\n%s", w, got)
		}
	}
}

func TestMarkdownExporterEscapesEmphasis(t *testing.T) {
	session := &storage.ChatSession{
		Name: "escape",
		Contents: []history.Turn{
			{Role: llm.RoleUser, Text: "this is **bold** text"},
			{Role: llm.RoleUser, Text: "```\n**verbatim**\n```"},
		},
	}

	var buf bytes.Buffer
	if err := (&MarkdownExporter{}).Export(session, &buf); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	got := buf.String()

	if !strings.Contains(got, `\*\*bold\*\*`) {
		t.Errorf("emphasis not escaped:\n%s", got)
	}
	if !strings.Contains(got, "**verbatim**") {
		t.Errorf("code block content was escaped:\n%s", got)
	}
}

func TestJSONExporterRoundTrip(t *testing.T) {
	session := testSession()

	var buf bytes.Buffer
	if err := (&JSONExporter{}).Export(session, &buf); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	var decoded storage.ChatSession
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("exported JSON does not parse: %v", err)
	}
	if decoded.ID != session.ID || decoded.Name != session.Name {
		t.Errorf("decoded = %+v", decoded)
	}
	if len(decoded.Contents) != 4 {
		t.Errorf("decoded %d turns, want 4", len(decoded.Contents))
	}
	if decoded.Contents[1].ToolCalls[0].Name != "read_file" {
		t.Errorf("tool call lost: %+v", decoded.Contents[1])
	}
}
