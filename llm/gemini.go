// Google Gemini Provider implementation using official google.golang.org/genai SDK.
//
// Information Hiding:
// - API authentication and client creation
// - Request/response format for Gemini API
// - System instruction handling via config
// - Streaming via official SDK iterator

package llm

import (
	"context"
	"fmt"
	"iter"

	"github.com/google/uuid"
	"google.golang.org/genai"
)

// GeminiProvider implements the Provider interface for Google Gemini.
type GeminiProvider struct {
	client      *genai.Client
	model       string
	maxTokens   int32
	temperature float32
	initErr     error // Stores client initialization error for deferred reporting
}

// NewGeminiProvider creates a new Gemini provider.
// If client initialization fails, the error is stored and returned on first use.
func NewGeminiProvider(apiKey, model string, maxTokens uint32, temperature float32) *GeminiProvider {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		// Store initialization error to return on first use - preserves constructor signature
		return &GeminiProvider{
			client:      nil,
			model:       model,
			maxTokens:   int32(maxTokens),
			temperature: temperature,
			initErr:     fmt.Errorf("failed to initialize Gemini client: %w", err),
		}
	}

	return &GeminiProvider{
		client:      client,
		model:       model,
		maxTokens:   int32(maxTokens),
		temperature: temperature,
		initErr:     nil,
	}
}

// Name returns the provider name.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Model returns the current model.
func (p *GeminiProvider) Model() string {
	return p.model
}

// Initialize reports any deferred client construction error.
func (p *GeminiProvider) Initialize(_ context.Context) error {
	if p.initErr != nil {
		return p.initErr
	}
	if p.client == nil {
		return fmt.Errorf("gemini client not initialized")
	}
	return nil
}

// RefreshTokenIfNeeded is a no-op: the Gemini client authenticates with a
// static API key.
func (p *GeminiProvider) RefreshTokenIfNeeded(_ context.Context) error {
	return nil
}

// StreamGenerateContent streams a generation request.
// Text parts are yielded as they arrive; each functionCall part is yielded
// as its own chunk with a pending ToolCall.
func (p *GeminiProvider) StreamGenerateContent(ctx context.Context, contents []Content, cfg *GenerateConfig) iter.Seq2[StreamChunk, error] {
	return func(yield func(StreamChunk, error) bool) {
		if err := p.Initialize(ctx); err != nil {
			yield(StreamChunk{}, err)
			return
		}

		geminiContents := convertToGeminiContents(contents)
		config := p.buildGenerateConfig(cfg)

		// GenerateContentStream returns iter.Seq2[*GenerateContentResponse, error]
		for response, err := range p.client.Models.GenerateContentStream(ctx, p.model, geminiContents, config) {
			if err != nil {
				yield(StreamChunk{}, fmt.Errorf("stream error: %w", err))
				return
			}

			var usage *TokenUsage
			if response.UsageMetadata != nil {
				usage = &TokenUsage{
					PromptTokens:     uint32(response.UsageMetadata.PromptTokenCount),
					CompletionTokens: uint32(response.UsageMetadata.CandidatesTokenCount),
					TotalTokens:      uint32(response.UsageMetadata.TotalTokenCount),
				}
			}

			emitted := false
			if len(response.Candidates) > 0 && response.Candidates[0].Content != nil {
				for _, part := range response.Candidates[0].Content.Parts {
					if part.Text != "" {
						chunk := StreamChunk{Text: part.Text}
						if !emitted {
							chunk.Usage = usage
							emitted = true
						}
						if !yield(chunk, nil) {
							return
						}
					}
					if part.FunctionCall != nil {
						chunk := StreamChunk{FunctionCall: convertGeminiFunctionCall(part.FunctionCall)}
						if !emitted {
							chunk.Usage = usage
							emitted = true
						}
						if !yield(chunk, nil) {
							return
						}
					}
				}
			}

			// Usage-only responses still carry the final token counts.
			if !emitted && usage != nil {
				if !yield(StreamChunk{Usage: usage}, nil) {
					return
				}
			}
		}
	}
}

// convertGeminiFunctionCall maps a genai function call to a pending ToolCall.
// Gemini omits call IDs in most responses, so a fresh one is minted when absent.
func convertGeminiFunctionCall(fc *genai.FunctionCall) *ToolCall {
	id := fc.ID
	if id == "" {
		id = uuid.NewString()
	}
	args := fc.Args
	if args == nil {
		args = map[string]any{}
	}
	return &ToolCall{
		ID:     id,
		Name:   fc.Name,
		Args:   args,
		Status: CallPending,
	}
}

// buildGenerateConfig merges per-request options over the provider defaults.
func (p *GeminiProvider) buildGenerateConfig(cfg *GenerateConfig) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(p.temperature),
		MaxOutputTokens: p.maxTokens,
	}
	if cfg == nil {
		return config
	}

	if cfg.Temperature != nil {
		config.Temperature = genai.Ptr(*cfg.Temperature)
	}
	if cfg.MaxOutputTokens > 0 {
		config.MaxOutputTokens = cfg.MaxOutputTokens
	}
	if cfg.SystemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(cfg.SystemInstruction, genai.RoleUser)
	}

	tools := convertToGeminiTools(cfg.Tools)
	if cfg.SearchGrounding {
		tools = append(tools, &genai.Tool{GoogleSearch: &genai.GoogleSearch{}})
	}
	if len(tools) > 0 {
		config.Tools = tools
	}

	return config
}

// convertToGeminiContents converts our Content turns to Gemini format.
// The role vocabulary matches, so only the part unions need mapping.
func convertToGeminiContents(contents []Content) []*genai.Content {
	result := make([]*genai.Content, 0, len(contents))
	for _, c := range contents {
		content := &genai.Content{Role: string(c.Role)}
		for _, part := range c.Parts {
			switch {
			case part.FunctionCall != nil:
				content.Parts = append(content.Parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						Name: part.FunctionCall.Name,
						Args: part.FunctionCall.Args,
					},
				})
			case part.FunctionResponse != nil:
				response := part.FunctionResponse.Response
				if response == nil {
					response = map[string]any{}
				}
				content.Parts = append(content.Parts, &genai.Part{
					FunctionResponse: &genai.FunctionResponse{
						Name:     part.FunctionResponse.Name,
						Response: response,
					},
				})
			default:
				content.Parts = append(content.Parts, &genai.Part{Text: part.Text})
			}
		}
		result = append(result, content)
	}
	return result
}

// convertToGeminiTools converts tool definitions to Gemini format.
func convertToGeminiTools(tools []ToolDefinition) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}

	var declarations []*genai.FunctionDeclaration
	for _, t := range tools {
		schema := convertToGeminiSchema(t.Parameters)
		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  schema,
		})
	}

	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

// convertToGeminiSchema recursively converts a parameter schema to Gemini format.
// Handles arrays by adding required 'items' field.
func convertToGeminiSchema(params map[string]any) *genai.Schema {
	schema := &genai.Schema{
		Type: genai.TypeObject,
	}

	// Get type if present
	if t, ok := params["type"].(string); ok {
		schema.Type = mapToGeminiType(t)
	}

	// Get required fields
	if req, ok := params["required"].([]any); ok {
		for _, r := range req {
			if s, ok := r.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	// Also handle []string
	if req, ok := params["required"].([]string); ok {
		schema.Required = req
	}

	// Convert properties
	if props, ok := params["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema)
		for name, prop := range props {
			propMap, ok := prop.(map[string]any)
			if !ok {
				continue
			}
			schema.Properties[name] = convertPropertyToGeminiSchema(propMap)
		}
	}

	return schema
}

// convertPropertyToGeminiSchema converts a single property to Gemini schema.
func convertPropertyToGeminiSchema(prop map[string]any) *genai.Schema {
	schema := &genai.Schema{}

	// Get type
	if t, ok := prop["type"].(string); ok {
		schema.Type = mapToGeminiType(t)
	}

	// Get description
	if d, ok := prop["description"].(string); ok {
		schema.Description = d
	}

	// Handle array items - Gemini requires 'items' for arrays
	if schema.Type == genai.TypeArray {
		if items, ok := prop["items"].(map[string]any); ok {
			schema.Items = convertPropertyToGeminiSchema(items)
		} else {
			// Default to string items if not specified
			schema.Items = &genai.Schema{Type: genai.TypeString}
		}
	}

	// Handle nested object properties
	if schema.Type == genai.TypeObject {
		if props, ok := prop["properties"].(map[string]any); ok {
			schema.Properties = make(map[string]*genai.Schema)
			for name, p := range props {
				if pMap, ok := p.(map[string]any); ok {
					schema.Properties[name] = convertPropertyToGeminiSchema(pMap)
				}
			}
		}
	}

	return schema
}

// mapToGeminiType maps JSON schema type to Gemini type.
func mapToGeminiType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "integer", "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

// Verify GeminiProvider implements Provider
var _ Provider = (*GeminiProvider)(nil)
