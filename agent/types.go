// Package agent provides the conversation orchestrator.
//
// Contains the chunk stream type and the collaborator contracts the
// orchestrator drives.
package agent

import (
	"context"

	"github.com/inkhorn/scribe/llm"
)

// Chunk is one element of a conversation stream. Text fragments arrive as
// the model generates them; a chunk carrying ToolCalls precedes each
// execution round; the final chunk has Done set and nothing else.
type Chunk struct {
	Text      string
	ToolCalls []llm.ToolCall
	Done      bool
}

// ToolRunner executes one batch of tool calls and returns one response per
// call. Failures are response payloads, never errors: a failing tool must
// not abort the exchange.
type ToolRunner interface {
	ExecuteToolsWithApproval(ctx context.Context, calls []llm.ToolCall) []llm.ToolResponse
}

// CatalogFunc supplies the tool definitions offered to the model. It is
// consulted once per exchange, so tools discovered mid-conversation appear
// on the next message without rebuilding the agent.
type CatalogFunc func() []llm.ToolDefinition
