// Anthropic Provider implementation using official anthropic-sdk-go.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for Anthropic Messages API
// - Streaming event protocol (text deltas, input_json_delta reassembly)

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider implements the Provider interface for Anthropic Claude.
type AnthropicProvider struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(apiKey, model string, maxTokens uint32, temperature float32) *AnthropicProvider {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)

	return &AnthropicProvider{
		client:      client,
		model:       model,
		maxTokens:   int64(maxTokens),
		temperature: float64(temperature),
	}
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Model returns the current model.
func (p *AnthropicProvider) Model() string {
	return p.model
}

// Initialize is a no-op: the client cannot fail to construct.
func (p *AnthropicProvider) Initialize(_ context.Context) error {
	return nil
}

// RefreshTokenIfNeeded is a no-op for static API-key auth.
func (p *AnthropicProvider) RefreshTokenIfNeeded(_ context.Context) error {
	return nil
}

// StreamGenerateContent streams a Messages API request.
// Text deltas are yielded as they arrive. Tool-use blocks announce their id
// and name in a start event, stream arguments as input_json_delta fragments,
// and are yielded complete when their block stops.
func (p *AnthropicProvider) StreamGenerateContent(ctx context.Context, contents []Content, cfg *GenerateConfig) iter.Seq2[StreamChunk, error] {
	return func(yield func(StreamChunk, error) bool) {
		params := anthropic.MessageNewParams{
			Model:       anthropic.Model(p.model),
			MaxTokens:   p.maxTokens,
			Messages:    convertToAnthropicContents(contents),
			Temperature: anthropic.Float(p.temperature),
		}
		applyAnthropicOverrides(&params, cfg)

		stream := p.client.Messages.NewStreaming(ctx, params)

		pending := make(map[int64]*anthropicPendingCall)
		var usage *TokenUsage
		for stream.Next() {
			event := stream.Current()

			switch eventVariant := event.AsAny().(type) {
			case anthropic.MessageStartEvent:
				// Capture input tokens from message start
				if eventVariant.Message.Usage.InputTokens > 0 {
					usage = &TokenUsage{
						PromptTokens: uint32(eventVariant.Message.Usage.InputTokens),
					}
				}
			case anthropic.ContentBlockStartEvent:
				if block, ok := eventVariant.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
					pending[eventVariant.Index] = &anthropicPendingCall{
						id:   block.ID,
						name: block.Name,
					}
				}
			case anthropic.ContentBlockDeltaEvent:
				switch deltaVariant := eventVariant.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					if deltaVariant.Text != "" {
						if !yield(StreamChunk{Text: deltaVariant.Text}, nil) {
							return
						}
					}
				case anthropic.InputJSONDelta:
					if pc := pending[eventVariant.Index]; pc != nil {
						pc.argsJSON.WriteString(deltaVariant.PartialJSON)
					}
				}
			case anthropic.ContentBlockStopEvent:
				pc := pending[eventVariant.Index]
				if pc == nil {
					continue
				}
				delete(pending, eventVariant.Index)
				if !yield(StreamChunk{FunctionCall: pc.toolCall()}, nil) {
					return
				}
			case anthropic.MessageDeltaEvent:
				// Capture output tokens from message delta
				if eventVariant.Usage.OutputTokens > 0 {
					if usage == nil {
						usage = &TokenUsage{}
					}
					usage.CompletionTokens = uint32(eventVariant.Usage.OutputTokens)
					usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
				}
			}
		}

		if err := stream.Err(); err != nil {
			yield(StreamChunk{}, fmt.Errorf("stream error: %w", err))
			return
		}

		if usage != nil {
			yield(StreamChunk{Usage: usage}, nil)
		}
	}
}

// anthropicPendingCall collects a tool-use block's streamed argument JSON.
type anthropicPendingCall struct {
	id       string
	name     string
	argsJSON strings.Builder
}

func (pc *anthropicPendingCall) toolCall() *ToolCall {
	args := map[string]any{}
	if raw := pc.argsJSON.String(); raw != "" {
		_ = json.Unmarshal([]byte(raw), &args)
	}
	return &ToolCall{
		ID:     pc.id,
		Name:   pc.name,
		Args:   args,
		Status: CallPending,
	}
}

// applyAnthropicOverrides layers per-request options over provider defaults.
func applyAnthropicOverrides(params *anthropic.MessageNewParams, cfg *GenerateConfig) {
	if cfg == nil {
		return
	}
	if cfg.Temperature != nil {
		params.Temperature = anthropic.Float(float64(*cfg.Temperature))
	}
	if cfg.MaxOutputTokens > 0 {
		params.MaxTokens = int64(cfg.MaxOutputTokens)
	}
	if cfg.SystemInstruction != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: cfg.SystemInstruction},
		}
	}
	if len(cfg.Tools) > 0 {
		params.Tools = convertToAnthropicTools(cfg.Tools)
	}
}

// convertToAnthropicContents converts Content turns to Anthropic messages.
// Model turns with function calls become assistant messages with tool_use
// blocks; functionResponse parts become tool_result blocks in a user message.
func convertToAnthropicContents(contents []Content) []anthropic.MessageParam {
	var result []anthropic.MessageParam

	for _, c := range contents {
		if c.Role == RoleModel {
			msg := anthropic.MessageParam{Role: anthropic.MessageParamRoleAssistant}
			for _, part := range c.Parts {
				switch {
				case part.FunctionCall != nil:
					input := part.FunctionCall.Args
					if input == nil {
						input = map[string]any{}
					}
					msg.Content = append(msg.Content, anthropic.ContentBlockParamUnion{
						OfToolUse: &anthropic.ToolUseBlockParam{
							ID:    part.FunctionCall.ID,
							Name:  part.FunctionCall.Name,
							Input: input,
						},
					})
				case part.Text != "":
					msg.Content = append(msg.Content, anthropic.NewTextBlock(part.Text))
				}
			}
			if len(msg.Content) > 0 {
				result = append(result, msg)
			}
			continue
		}

		var blocks []anthropic.ContentBlockParamUnion
		for _, part := range c.Parts {
			switch {
			case part.FunctionResponse != nil:
				payload, _ := json.Marshal(part.FunctionResponse.Response)
				_, isErr := part.FunctionResponse.Response["error"]
				blocks = append(blocks, anthropic.NewToolResultBlock(part.FunctionResponse.ID, string(payload), isErr))
			case part.Text != "":
				blocks = append(blocks, anthropic.NewTextBlock(part.Text))
			}
		}
		if len(blocks) > 0 {
			result = append(result, anthropic.NewUserMessage(blocks...))
		}
	}

	return result
}

// convertToAnthropicTools converts tool definitions to Anthropic format.
func convertToAnthropicTools(tools []ToolDefinition) []anthropic.ToolUnionParam {
	result := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		// Extract properties and required from the full schema
		properties, _ := t.Parameters["properties"].(map[string]any)
		var required []string
		switch req := t.Parameters["required"].(type) {
		case []string:
			required = req
		case []any:
			for _, r := range req {
				if s, ok := r.(string); ok {
					required = append(required, s)
				}
			}
		}

		toolParam := anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: properties,
				Required:   required,
			},
		}
		result[i] = anthropic.ToolUnionParam{OfTool: &toolParam}
	}
	return result
}

// Verify AnthropicProvider implements Provider
var _ Provider = (*AnthropicProvider)(nil)
