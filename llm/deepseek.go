// DeepSeek Provider implementation using go-openai library.
//
// Information Hiding:
// - Uses OpenAI-compatible API with different base URL
// - Supports deepseek-chat and deepseek-reasoner models
// - Streaming via go-openai library

package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	openai "github.com/sashabaranov/go-openai"
)

const deepseekBaseURL = "https://api.deepseek.com/v1"

// DeepSeekProvider implements the Provider interface for DeepSeek.
type DeepSeekProvider struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewDeepSeekProvider creates a new DeepSeek provider.
func NewDeepSeekProvider(apiKey, model string, maxTokens uint32, temperature float32) *DeepSeekProvider {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = deepseekBaseURL

	return &DeepSeekProvider{
		client:      openai.NewClientWithConfig(config),
		model:       model,
		maxTokens:   int(maxTokens),
		temperature: temperature,
	}
}

// Name returns the provider name.
func (p *DeepSeekProvider) Name() string {
	return "deepseek"
}

// Model returns the current model.
func (p *DeepSeekProvider) Model() string {
	return p.model
}

// Initialize is a no-op: the client cannot fail to construct.
func (p *DeepSeekProvider) Initialize(_ context.Context) error {
	return nil
}

// RefreshTokenIfNeeded is a no-op for static API-key auth.
func (p *DeepSeekProvider) RefreshTokenIfNeeded(_ context.Context) error {
	return nil
}

// StreamGenerateContent streams a chat completion through the
// OpenAI-compatible endpoint. DeepSeek requires max_completion_tokens
// instead of the deprecated max_tokens field.
func (p *DeepSeekProvider) StreamGenerateContent(ctx context.Context, contents []Content, cfg *GenerateConfig) iter.Seq2[StreamChunk, error] {
	return func(yield func(StreamChunk, error) bool) {
		req := openai.ChatCompletionRequest{
			Model:               p.model,
			Messages:            convertToOpenAIMessages(contents, systemInstruction(cfg)),
			MaxCompletionTokens: p.maxTokens,
			Temperature:         p.temperature,
			Stream:              true,
			StreamOptions: &openai.StreamOptions{
				IncludeUsage: true,
			},
		}
		if cfg != nil {
			if cfg.Temperature != nil {
				req.Temperature = *cfg.Temperature
			}
			if cfg.MaxOutputTokens > 0 {
				req.MaxCompletionTokens = int(cfg.MaxOutputTokens)
			}
			if len(cfg.Tools) > 0 {
				req.Tools = convertToOpenAITools(cfg.Tools)
			}
		}

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

// Verify DeepSeekProvider implements Provider
var _ Provider = (*DeepSeekProvider)(nil)
