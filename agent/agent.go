// Conversation loop implementation.
//
// This is THE canonical conversation loop. All chat exchanges go through
// this module.
//
// Information Hiding:
// - Streaming accumulation hidden
// - Follow-up request construction hidden
// - Tool execution coordination hidden
// - Commit ordering hidden

package agent

import (
	"context"
	"iter"
	"log/slog"
	"strings"

	"github.com/inkhorn/scribe/history"
	"github.com/inkhorn/scribe/llm"
)

// maxToolTurns caps follow-up rounds within one exchange. Reaching the cap
// truncates the loop; the exchange still commits with whatever accumulated.
const maxToolTurns = 10

// Agent drives one conversation: it streams model responses, routes tool
// call batches through a ToolRunner, and commits each finished exchange to
// its history. Not safe for concurrent use; one conversation is driven by
// one goroutine at a time.
type Agent struct {
	provider llm.Provider
	history  *history.History
	runner   ToolRunner
	catalog  CatalogFunc
	config   Config
	logger   *slog.Logger

	usage    llm.TokenUsage
	llmCalls int
}

// New creates an agent around a provider with an empty history. Attach a
// runner and catalog with the With* chainers when tools are in play.
func New(provider llm.Provider, config Config, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		provider: provider,
		history:  history.New(),
		config:   config,
		logger:   logger.With("component", "agent"),
	}
}

// WithHistory replaces the conversation history (resuming a session).
func (a *Agent) WithHistory(h *history.History) *Agent {
	if h != nil {
		a.history = h
	}
	return a
}

// WithToolRunner attaches the executor for tool-call batches.
func (a *Agent) WithToolRunner(runner ToolRunner) *Agent {
	a.runner = runner
	return a
}

// WithCatalog attaches the tool definition source.
func (a *Agent) WithCatalog(catalog CatalogFunc) *Agent {
	a.catalog = catalog
	return a
}

// History returns the live conversation history.
func (a *Agent) History() *history.History {
	return a.history
}

// Usage returns cumulative token usage across the conversation.
func (a *Agent) Usage() llm.TokenUsage {
	return a.usage
}

// LLMCalls returns the number of provider calls made so far.
func (a *Agent) LLMCalls() int {
	return a.llmCalls
}

// Converse sends a user message and streams the exchange. The returned
// sequence is lazy and single-use: nothing happens until it is ranged, and
// abandoning it mid-stream stops the exchange without committing.
//
// Text fragments are emitted as non-terminal chunks as they arrive. When
// the model requests tools, a chunk carrying the batch is emitted, the
// batch runs to completion, and the loop continues with a follow-up
// request, up to maxToolTurns rounds. The finished exchange commits to
// history exactly once, after the loop; a provider error ends the sequence
// with history untouched. The final chunk has Done set.
func (a *Agent) Converse(ctx context.Context, userMessage string) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		if err := a.provider.Initialize(ctx); err != nil {
			yield(Chunk{}, err)
			return
		}
		if err := a.provider.RefreshTokenIfNeeded(ctx); err != nil {
			yield(Chunk{}, err)
			return
		}

		// A retry of an uncommitted exchange must not duplicate the user
		// turn, neither in the request nor in the commit.
		appendUser := true
		if last, ok := a.history.LastUserText(); ok && last == userMessage {
			appendUser = false
		}

		base := a.history.SerializeForAPI()
		if appendUser {
			base = append(base, llm.NewUserContent(userMessage))
		}

		genCfg := a.generateConfig()

		var (
			text      strings.Builder
			executed  []llm.ToolCall
			responses []llm.ToolResponse
		)

		pending, ok := a.streamTurn(ctx, base, genCfg, yield, &text)
		if !ok {
			return
		}

		for round := 0; len(pending) > 0; round++ {
			if a.runner == nil {
				a.logger.Warn("model requested tools but no runner is attached",
					"calls", len(pending))
				break
			}
			if round == maxToolTurns {
				a.logger.Warn("tool turn cap reached, truncating exchange",
					"cap", maxToolTurns, "dropped", len(pending))
				break
			}

			if !yield(Chunk{ToolCalls: pending}, nil) {
				return
			}

			batch := a.runner.ExecuteToolsWithApproval(ctx, pending)
			executed = append(executed, pending...)
			responses = append(responses, batch...)

			// Follow-up request: prior context, the user message, one
			// synthesized model turn (accumulated text then this batch's
			// calls), then the batch's responses, in that exact order.
			request := make([]llm.Content, 0, len(base)+2)
			request = append(request, base...)
			request = append(request,
				llm.NewModelContentWithCalls(text.String(), pending),
				llm.NewFunctionResponseContent(batch))

			pending, ok = a.streamTurn(ctx, request, genCfg, yield, &text)
			if !ok {
				return
			}
		}

		if appendUser {
			a.history.AddUserMessage(userMessage)
		}
		a.history.AddModelResponse(text.String(), executed)
		a.history.AddToolResponses(responses)

		a.logger.Debug("exchange committed",
			"text_len", text.Len(),
			"tool_calls", len(executed),
			"llm_calls", a.llmCalls)

		yield(Chunk{Done: true}, nil)
	}
}

// streamTurn runs one provider call, yielding text fragments as they
// arrive and collecting tool calls. ok is false when the consumer stopped
// or an error was yielded; the caller must not commit in either case.
func (a *Agent) streamTurn(ctx context.Context, contents []llm.Content, cfg *llm.GenerateConfig, yield func(Chunk, error) bool, text *strings.Builder) (calls []llm.ToolCall, ok bool) {
	a.llmCalls++

	for chunk, err := range a.provider.StreamGenerateContent(ctx, contents, cfg) {
		if err != nil {
			yield(Chunk{}, err)
			return nil, false
		}
		if chunk.Text != "" {
			text.WriteString(chunk.Text)
			if !yield(Chunk{Text: chunk.Text}, nil) {
				return nil, false
			}
		}
		if chunk.FunctionCall != nil {
			call := *chunk.FunctionCall
			call.Status = llm.CallPending
			calls = append(calls, call)
		}
		if chunk.Usage != nil {
			a.usage.PromptTokens += chunk.Usage.PromptTokens
			a.usage.CompletionTokens += chunk.Usage.CompletionTokens
			a.usage.TotalTokens += chunk.Usage.TotalTokens
		}
	}

	return calls, true
}

// generateConfig assembles the per-request options, consulting the tool
// catalog so the definitions reflect current discovery state.
func (a *Agent) generateConfig() *llm.GenerateConfig {
	cfg := &llm.GenerateConfig{
		SystemInstruction: a.config.SystemPrompt,
		Temperature:       a.config.Temperature,
		MaxOutputTokens:   a.config.MaxOutputTokens,
		SearchGrounding:   a.config.SearchGrounding,
	}
	if a.catalog != nil {
		cfg.Tools = a.catalog()
	}
	return cfg
}
