// Agent builder for fluent configuration.
//
// Information Hiding:
// - Builder state management hidden
// - Default value application hidden

package agent

import (
	"log/slog"

	"github.com/inkhorn/scribe/history"
	"github.com/inkhorn/scribe/llm"
)

// Builder provides fluent construction for agents.
// Usage: agent.NewBuilder(provider) - no stutter.
type Builder struct {
	provider     llm.Provider
	history      *history.History
	runner       ToolRunner
	catalog      CatalogFunc
	systemPrompt string
	temperature  *float32
	maxTokens    int32
	grounding    bool
	logger       *slog.Logger
}

// NewBuilder creates a builder around the given provider.
func NewBuilder(provider llm.Provider) *Builder {
	return &Builder{provider: provider}
}

// SystemPrompt sets the conversation's system prompt.
func (b *Builder) SystemPrompt(prompt string) *Builder {
	b.systemPrompt = prompt
	return b
}

// Temperature sets the sampling temperature.
func (b *Builder) Temperature(t float32) *Builder {
	b.temperature = &t
	return b
}

// MaxOutputTokens caps each model turn.
func (b *Builder) MaxOutputTokens(n int32) *Builder {
	b.maxTokens = n
	return b
}

// SearchGrounding toggles provider-side web grounding.
func (b *Builder) SearchGrounding(enabled bool) *Builder {
	b.grounding = enabled
	return b
}

// History seeds the conversation with existing turns (session resume).
func (b *Builder) History(h *history.History) *Builder {
	b.history = h
	return b
}

// ToolRunner attaches the executor for tool-call batches.
func (b *Builder) ToolRunner(runner ToolRunner) *Builder {
	b.runner = runner
	return b
}

// Catalog attaches the tool definition source.
func (b *Builder) Catalog(catalog CatalogFunc) *Builder {
	b.catalog = catalog
	return b
}

// Logger sets the logger.
func (b *Builder) Logger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// Build creates the agent, applying defaults for anything unset.
func (b *Builder) Build() *Agent {
	config := DefaultConfig()
	if b.systemPrompt != "" {
		config.SystemPrompt = b.systemPrompt
	}
	config.Temperature = b.temperature
	config.MaxOutputTokens = b.maxTokens
	config.SearchGrounding = b.grounding

	agent := New(b.provider, config, b.logger)
	if b.history != nil {
		agent.WithHistory(b.history)
	}
	if b.runner != nil {
		agent.WithToolRunner(b.runner)
	}
	if b.catalog != nil {
		agent.WithCatalog(b.catalog)
	}
	return agent
}
