package history

import (
	"testing"

	"github.com/inkhorn/scribe/llm"
)

// TestSerializeForAPI verifies the wire ordering: user turn, model turn with
// text then functionCall parts, then a user-role turn of functionResponses.
func TestSerializeForAPI(t *testing.T) {
	h := New()
	h.AddUserMessage("fetch the page")
	h.AddModelResponse("on it", []llm.ToolCall{
		{ID: "c1", Name: "web_fetch", Args: map[string]any{"url": "https://example.com"}},
	})
	h.AddToolResponses([]llm.ToolResponse{
		{ID: "c1", Name: "web_fetch", Response: map[string]any{"output": "<html>"}},
	})

	contents := h.SerializeForAPI()
	if len(contents) != 3 {
		t.Fatalf("expected 3 contents, got %d", len(contents))
	}

	if contents[0].Role != llm.RoleUser || contents[0].Parts[0].Text != "fetch the page" {
		t.Errorf("unexpected first content: %+v", contents[0])
	}

	model := contents[1]
	if model.Role != llm.RoleModel {
		t.Fatalf("expected model role, got %s", model.Role)
	}
	if len(model.Parts) != 2 {
		t.Fatalf("expected text part + call part, got %d parts", len(model.Parts))
	}
	if model.Parts[0].Text != "on it" {
		t.Errorf("expected text part first, got %+v", model.Parts[0])
	}
	if model.Parts[1].FunctionCall == nil || model.Parts[1].FunctionCall.ID != "c1" {
		t.Errorf("expected functionCall part second, got %+v", model.Parts[1])
	}

	responses := contents[2]
	if responses.Role != llm.RoleUser {
		t.Errorf("tool responses must be user-role on the wire, got %s", responses.Role)
	}
	if len(responses.Parts) != 1 || responses.Parts[0].FunctionResponse == nil {
		t.Fatalf("expected one functionResponse part, got %+v", responses.Parts)
	}
	if responses.Parts[0].FunctionResponse.ID != "c1" {
		t.Errorf("response must answer call c1, got %s", responses.Parts[0].FunctionResponse.ID)
	}
}

// TestModelTurnWithoutText verifies a model turn that only made calls has no
// empty text part.
func TestModelTurnWithoutText(t *testing.T) {
	h := New()
	h.AddModelResponse("", []llm.ToolCall{{ID: "c1", Name: "list_dir"}})

	contents := h.SerializeForAPI()
	if len(contents[0].Parts) != 1 {
		t.Fatalf("expected only the call part, got %d parts", len(contents[0].Parts))
	}
	if contents[0].Parts[0].FunctionCall == nil {
		t.Error("expected functionCall part")
	}
}

// TestLastUserText verifies the duplicate-guard helper distinguishes plain
// user messages from tool-response turns.
func TestLastUserText(t *testing.T) {
	h := New()
	if _, ok := h.LastUserText(); ok {
		t.Error("empty history must report no user text")
	}

	h.AddUserMessage("hello")
	text, ok := h.LastUserText()
	if !ok || text != "hello" {
		t.Errorf("expected (hello, true), got (%q, %v)", text, ok)
	}

	h.AddModelResponse("hi", nil)
	if _, ok := h.LastUserText(); ok {
		t.Error("model turn must not report user text")
	}

	h.AddToolResponses([]llm.ToolResponse{{ID: "c1", Name: "x", Response: map[string]any{}}})
	if _, ok := h.LastUserText(); ok {
		t.Error("tool-response turn must not report user text")
	}
}

// TestTurnsReturnsCopy verifies callers cannot mutate committed history.
func TestTurnsReturnsCopy(t *testing.T) {
	h := New()
	h.AddUserMessage("original")

	turns := h.Turns()
	turns[0].Text = "mutated"

	if got := h.Turns()[0].Text; got != "original" {
		t.Errorf("history mutated through returned slice: %q", got)
	}
}

// TestNewFromTurns verifies resuming preserves order and count.
func TestNewFromTurns(t *testing.T) {
	seed := []Turn{
		{Role: llm.RoleUser, Text: "a"},
		{Role: llm.RoleModel, Text: "b"},
	}
	h := NewFromTurns(seed)
	if h.Len() != 2 {
		t.Fatalf("expected 2 turns, got %d", h.Len())
	}

	seed[0].Text = "mutated"
	if h.Turns()[0].Text != "a" {
		t.Error("seed slice aliased into history")
	}
}
