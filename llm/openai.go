// OpenAI Provider implementation using go-openai library.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for OpenAI Chat Completions API
// - Streamed tool-call delta reassembly

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements the Provider interface for OpenAI.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(apiKey, model string, maxTokens uint32, temperature float32) *OpenAIProvider {
	return &OpenAIProvider{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   int(maxTokens),
		temperature: temperature,
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Model returns the current model.
func (p *OpenAIProvider) Model() string {
	return p.model
}

// Initialize is a no-op: the client cannot fail to construct.
func (p *OpenAIProvider) Initialize(_ context.Context) error {
	return nil
}

// RefreshTokenIfNeeded is a no-op for static API-key auth.
func (p *OpenAIProvider) RefreshTokenIfNeeded(_ context.Context) error {
	return nil
}

// StreamGenerateContent streams a chat completion.
// Text deltas are yielded as they arrive. Tool calls arrive as fragments
// spread over many chunks and are reassembled before being yielded.
func (p *OpenAIProvider) StreamGenerateContent(ctx context.Context, contents []Content, cfg *GenerateConfig) iter.Seq2[StreamChunk, error] {
	return func(yield func(StreamChunk, error) bool) {
		req := openai.ChatCompletionRequest{
			Model:       p.model,
			Messages:    convertToOpenAIMessages(contents, systemInstruction(cfg)),
			MaxTokens:   p.maxTokens,
			Temperature: p.temperature,
			Stream:      true,
			StreamOptions: &openai.StreamOptions{
				IncludeUsage: true,
			},
		}
		applyOpenAIOverrides(&req, cfg)

		stream, err := p.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			yield(StreamChunk{}, fmt.Errorf("stream creation failed: %w", err))
			return
		}
		defer stream.Close()

		acc := newCallAccumulator()
		var usage *TokenUsage
		for {
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				for _, call := range acc.flush() {
					if !yield(StreamChunk{FunctionCall: call}, nil) {
						return
					}
				}
				if usage != nil {
					yield(StreamChunk{Usage: usage}, nil)
				}
				return
			}
			if err != nil {
				yield(StreamChunk{}, fmt.Errorf("stream recv failed: %w", err))
				return
			}

			// Token usage rides on a trailing chunk with no choices
			if response.Usage != nil {
				usage = &TokenUsage{
					PromptTokens:     uint32(response.Usage.PromptTokens),
					CompletionTokens: uint32(response.Usage.CompletionTokens),
					TotalTokens:      uint32(response.Usage.TotalTokens),
				}
			}

			if len(response.Choices) == 0 {
				continue
			}
			choice := response.Choices[0]

			if choice.Delta.Content != "" {
				if !yield(StreamChunk{Text: choice.Delta.Content}, nil) {
					return
				}
			}
			for _, tc := range choice.Delta.ToolCalls {
				acc.add(tc)
			}
			if choice.FinishReason == openai.FinishReasonToolCalls {
				for _, call := range acc.flush() {
					if !yield(StreamChunk{FunctionCall: call}, nil) {
						return
					}
				}
			}
		}
	}
}

// callAccumulator reassembles tool calls from streamed deltas. The ID and
// name of a call arrive once; the JSON arguments arrive as string fragments
// keyed by the call's index within the response.
type callAccumulator struct {
	pending map[int]*pendingCall
	order   []int
}

type pendingCall struct {
	id   string
	name string
	args strings.Builder
}

func newCallAccumulator() *callAccumulator {
	return &callAccumulator{pending: make(map[int]*pendingCall)}
}

func (a *callAccumulator) add(tc openai.ToolCall) {
	idx := 0
	if tc.Index != nil {
		idx = *tc.Index
	}
	pc, ok := a.pending[idx]
	if !ok {
		pc = &pendingCall{}
		a.pending[idx] = pc
		a.order = append(a.order, idx)
	}
	if tc.ID != "" {
		pc.id = tc.ID
	}
	if tc.Function.Name != "" {
		pc.name = tc.Function.Name
	}
	pc.args.WriteString(tc.Function.Arguments)
}

// flush returns the completed calls in arrival order and resets the accumulator.
func (a *callAccumulator) flush() []*ToolCall {
	if len(a.order) == 0 {
		return nil
	}
	calls := make([]*ToolCall, 0, len(a.order))
	for _, idx := range a.order {
		pc := a.pending[idx]
		args := map[string]any{}
		if raw := pc.args.String(); raw != "" {
			_ = json.Unmarshal([]byte(raw), &args)
		}
		id := pc.id
		if id == "" {
			id = uuid.NewString()
		}
		calls = append(calls, &ToolCall{
			ID:     id,
			Name:   pc.name,
			Args:   args,
			Status: CallPending,
		})
	}
	a.pending = make(map[int]*pendingCall)
	a.order = nil
	return calls
}

func systemInstruction(cfg *GenerateConfig) string {
	if cfg == nil {
		return ""
	}
	return cfg.SystemInstruction
}

// applyOpenAIOverrides layers per-request options over provider defaults.
func applyOpenAIOverrides(req *openai.ChatCompletionRequest, cfg *GenerateConfig) {
	if cfg == nil {
		return
	}
	if cfg.Temperature != nil {
		req.Temperature = *cfg.Temperature
	}
	if cfg.MaxOutputTokens > 0 {
		req.MaxTokens = int(cfg.MaxOutputTokens)
	}
	if len(cfg.Tools) > 0 {
		req.Tools = convertToOpenAITools(cfg.Tools)
	}
}

// convertToOpenAIMessages converts Content turns to OpenAI chat messages.
// Model turns with function calls become assistant messages with tool_calls;
// functionResponse parts become individual tool-role messages.
func convertToOpenAIMessages(contents []Content, system string) []openai.ChatCompletionMessage {
	var result []openai.ChatCompletionMessage
	if system != "" {
		result = append(result, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for _, c := range contents {
		if c.Role == RoleModel {
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant}
			var text strings.Builder
			for _, part := range c.Parts {
				if part.FunctionCall != nil {
					argsJSON, _ := json.Marshal(part.FunctionCall.Args)
					msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
						ID:   part.FunctionCall.ID,
						Type: openai.ToolTypeFunction,
						Function: openai.FunctionCall{
							Name:      part.FunctionCall.Name,
							Arguments: string(argsJSON),
						},
					})
					continue
				}
				text.WriteString(part.Text)
			}
			msg.Content = text.String()
			result = append(result, msg)
			continue
		}

		var text strings.Builder
		for _, part := range c.Parts {
			if part.FunctionResponse != nil {
				payload, _ := json.Marshal(part.FunctionResponse.Response)
				result = append(result, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    string(payload),
					ToolCallID: part.FunctionResponse.ID,
				})
				continue
			}
			text.WriteString(part.Text)
		}
		if text.Len() > 0 {
			result = append(result, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: text.String(),
			})
		}
	}
	return result
}

// convertToOpenAITools converts tool definitions to OpenAI format.
func convertToOpenAITools(tools []ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, t := range tools {
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return result
}

// Verify OpenAIProvider implements Provider
var _ Provider = (*OpenAIProvider)(nil)
