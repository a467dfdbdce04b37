// Package llm provides shared data models for LLM providers.
package llm

// Role identifies who produced a piece of conversation content.
// The vocabulary follows the Gemini wire format; adapters for other
// providers translate.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Content is one role-tagged turn of a model request: a sequence of parts.
type Content struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// Part is a union: exactly one of Text, FunctionCall, or FunctionResponse
// is meaningful.
type Part struct {
	Text             string        `json:"text,omitempty"`
	FunctionCall     *ToolCall     `json:"functionCall,omitempty"`
	FunctionResponse *ToolResponse `json:"functionResponse,omitempty"`
}

// ToolCallStatus tracks a tool call through its lifecycle.
type ToolCallStatus string

const (
	CallPending  ToolCallStatus = "pending"
	CallExecuted ToolCallStatus = "executed"
	CallError    ToolCallStatus = "error"
)

// ToolCall is a model request to invoke a named tool.
type ToolCall struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Args   map[string]any `json:"args,omitempty"`
	Status ToolCallStatus `json:"status,omitempty"`
}

// ToolResponse is the structured outcome of one tool call. Failures are
// carried as an "error" key in Response, never as a Go error.
type ToolResponse struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// ToolDefinition declares a tool to the model. Parameters is a JSON Schema.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// GenerateConfig carries per-request generation options. Zero-value fields
// fall back to the provider's construction-time defaults.
type GenerateConfig struct {
	SystemInstruction string
	Temperature       *float32
	MaxOutputTokens   int32
	Tools             []ToolDefinition
	SearchGrounding   bool
}

// StreamChunk is one element of a streamed model response. Text and
// FunctionCall are optional; a chunk may carry only Usage.
type StreamChunk struct {
	Text         string
	FunctionCall *ToolCall
	Usage        *TokenUsage
}

// TokenUsage contains token usage statistics.
type TokenUsage struct {
	PromptTokens     uint32
	CompletionTokens uint32
	TotalTokens      uint32
}

// NewUserContent creates a user turn with a single text part.
func NewUserContent(text string) Content {
	return Content{
		Role:  RoleUser,
		Parts: []Part{{Text: text}},
	}
}

// NewModelContent creates a model turn with a single text part.
func NewModelContent(text string) Content {
	return Content{
		Role:  RoleModel,
		Parts: []Part{{Text: text}},
	}
}

// NewModelContentWithCalls creates a model turn carrying text (when
// non-empty) followed by one functionCall part per tool call.
func NewModelContentWithCalls(text string, calls []ToolCall) Content {
	content := Content{Role: RoleModel}
	if text != "" {
		content.Parts = append(content.Parts, Part{Text: text})
	}
	for i := range calls {
		call := calls[i]
		content.Parts = append(content.Parts, Part{FunctionCall: &call})
	}
	return content
}

// NewFunctionResponseContent creates the user-role turn that answers a model
// turn's function calls, one functionResponse part per response.
func NewFunctionResponseContent(responses []ToolResponse) Content {
	content := Content{Role: RoleUser}
	for i := range responses {
		resp := responses[i]
		content.Parts = append(content.Parts, Part{FunctionResponse: &resp})
	}
	return content
}
