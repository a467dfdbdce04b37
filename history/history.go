// Package history holds the in-memory context of one live conversation.
//
// A History is an ordered, append-only record of turns. The orchestrator
// appends committed exchanges; SerializeForAPI produces the role-tagged
// contents a provider request needs. Not safe for concurrent use: one
// conversation is driven by one goroutine at a time.
package history

import "github.com/inkhorn/scribe/llm"

// Turn is one committed step of a conversation. A user turn carries Text;
// a model turn carries Text and any ToolCalls it requested; a tool-response
// turn carries the ToolResponses answering the preceding model turn and is
// user-role on the wire.
type Turn struct {
	Role          llm.Role           `json:"role"`
	Text          string             `json:"text,omitempty"`
	ToolCalls     []llm.ToolCall     `json:"toolCalls,omitempty"`
	ToolResponses []llm.ToolResponse `json:"toolResponses,omitempty"`
}

// Content converts the turn to its wire form.
func (t Turn) Content() llm.Content {
	switch {
	case len(t.ToolResponses) > 0:
		return llm.NewFunctionResponseContent(t.ToolResponses)
	case t.Role == llm.RoleModel:
		return llm.NewModelContentWithCalls(t.Text, t.ToolCalls)
	default:
		return llm.NewUserContent(t.Text)
	}
}

// History is the append-only turn record of one conversation.
type History struct {
	turns []Turn
}

// New creates an empty history.
func New() *History {
	return &History{}
}

// NewFromTurns creates a history seeded with previously persisted turns,
// used when resuming an archived session.
func NewFromTurns(turns []Turn) *History {
	h := &History{turns: make([]Turn, len(turns))}
	copy(h.turns, turns)
	return h
}

// AddUserMessage appends a user text turn.
func (h *History) AddUserMessage(text string) {
	h.turns = append(h.turns, Turn{Role: llm.RoleUser, Text: text})
}

// AddModelResponse appends a model turn with its accumulated text and the
// tool calls it made during the exchange.
func (h *History) AddModelResponse(text string, toolCalls []llm.ToolCall) {
	turn := Turn{Role: llm.RoleModel, Text: text}
	if len(toolCalls) > 0 {
		turn.ToolCalls = make([]llm.ToolCall, len(toolCalls))
		copy(turn.ToolCalls, toolCalls)
	}
	h.turns = append(h.turns, turn)
}

// AddToolResponses appends the tool responses answering the preceding model
// turn. They serialize as a user-role turn of functionResponse parts.
func (h *History) AddToolResponses(responses []llm.ToolResponse) {
	if len(responses) == 0 {
		return
	}
	turn := Turn{Role: llm.RoleUser, ToolResponses: make([]llm.ToolResponse, len(responses))}
	copy(turn.ToolResponses, responses)
	h.turns = append(h.turns, turn)
}

// Turns returns a copy of the committed turns.
func (h *History) Turns() []Turn {
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Len returns the number of committed turns.
func (h *History) Len() int {
	return len(h.turns)
}

// LastUserText returns the text of the most recent turn when that turn is a
// plain user message. Tool-response turns are user-role on the wire but do
// not count.
func (h *History) LastUserText() (string, bool) {
	if len(h.turns) == 0 {
		return "", false
	}
	last := h.turns[len(h.turns)-1]
	if last.Role != llm.RoleUser || len(last.ToolResponses) > 0 {
		return "", false
	}
	return last.Text, true
}

// SerializeForAPI converts the history to ordered provider request contents:
// user turns become user contents, model turns become model contents with
// text then functionCall parts, tool-response turns become user-role
// contents of functionResponse parts.
func (h *History) SerializeForAPI() []llm.Content {
	contents := make([]llm.Content, 0, len(h.turns))
	for _, turn := range h.turns {
		contents = append(contents, turn.Content())
	}
	return contents
}
