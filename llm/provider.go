// Package llm provides LLM provider abstractions.
//
// LLM Provider interface - the abstract interface for LLM providers.
// Each provider implementation hides:
// - API client initialization and authentication
// - Request/response format conversion
// - Provider-specific streaming protocol
//
// All providers stream. A response is an iter.Seq2 of chunks; text arrives
// as it is generated and tool calls surface as soon as the provider has
// assembled them. The sequence is single-use: range it once.

package llm

import (
	"context"
	"iter"
)

// Provider defines the abstract interface for LLM providers.
type Provider interface {
	// Name returns the provider name (for logging/debugging).
	Name() string

	// Model returns the current model being used.
	Model() string

	// Initialize verifies the provider is ready to serve requests.
	// Providers whose client construction can fail report that error here.
	Initialize(ctx context.Context) error

	// RefreshTokenIfNeeded renews short-lived credentials before a request.
	// API-key providers implement this as a no-op.
	RefreshTokenIfNeeded(ctx context.Context) error

	// StreamGenerateContent sends a generation request and streams the
	// response. An error yielded by the sequence terminates it; no further
	// elements follow.
	StreamGenerateContent(ctx context.Context, contents []Content, cfg *GenerateConfig) iter.Seq2[StreamChunk, error]
}
