// Agent configuration types.
//
// Information Hiding:
// - Default values hidden

package agent

// Config holds conversation behavior options.
// Use agent.Config, not agent.AgentConfig - no stutter.
type Config struct {
	// SystemPrompt guides the model's behavior for the whole conversation.
	SystemPrompt string

	// Temperature overrides the provider default when non-nil.
	Temperature *float32

	// MaxOutputTokens caps each model turn when non-zero.
	MaxOutputTokens int32

	// SearchGrounding enables provider-side web grounding where supported.
	SearchGrounding bool
}

// DefaultConfig returns a basic conversation configuration.
func DefaultConfig() Config {
	return Config{
		SystemPrompt: "You are a helpful assistant.",
	}
}
