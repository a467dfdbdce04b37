// Batch Tool Executor with Approval Policies.
//
// Information Hiding:
// - Approval policy resolution hidden
// - Parallelism and panic containment hidden
// - Timeout handling abstracted

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/inkhorn/scribe/llm"
)

// Policy controls whether a tool call runs without confirmation.
type Policy string

const (
	// PolicyAsk requires approval before each call.
	PolicyAsk Policy = "ask"
	// PolicyAlways runs calls without confirmation.
	PolicyAlways Policy = "always"
	// PolicyNever rejects calls outright.
	PolicyNever Policy = "never"
)

// ParsePolicy converts a string to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ask", "":
		return PolicyAsk, nil
	case "always", "allow":
		return PolicyAlways, nil
	case "never", "deny":
		return PolicyNever, nil
	default:
		return "", fmt.Errorf("unknown tool policy: %s", s)
	}
}

// Approver decides whether a pending tool call may run.
// Called serially, before any call in the batch executes.
type Approver func(call llm.ToolCall) bool

// Resolver locates tools whose names carry a source prefix
// ("{source}:{tool}"). Plain names go through the registry.
type Resolver interface {
	ResolveTool(qualifiedName string) (Tool, bool)
}

// ExecOptions holds execution limits.
// The zero value is safe: timeout defaults to 30s, parallelism to 4.
type ExecOptions struct {
	CallTimeoutSecs uint64
	MaxParallel     int
}

// Timeout returns the per-call timeout, defaulting to 30 seconds if zero.
func (o *ExecOptions) Timeout() time.Duration {
	if o == nil || o.CallTimeoutSecs == 0 {
		return 30 * time.Second
	}
	return time.Duration(o.CallTimeoutSecs) * time.Second
}

// Parallel returns the max concurrent calls, defaulting to 4 if zero or negative.
func (o *ExecOptions) Parallel() int {
	if o == nil || o.MaxParallel <= 0 {
		return 4
	}
	return o.MaxParallel
}

// Executor runs batches of model-requested tool calls.
type Executor struct {
	registry      *Registry
	resolver      Resolver
	policies      map[string]Policy
	defaultPolicy Policy
	approver      Approver
	opts          ExecOptions
	logger        *slog.Logger
}

// NewExecutor creates an executor backed by the given registry.
func NewExecutor(registry *Registry, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		registry:      registry,
		policies:      make(map[string]Policy),
		defaultPolicy: PolicyAsk,
		logger:        logger.With("component", "tools"),
	}
}

// WithResolver adds a resolver for source-qualified tool names.
func (e *Executor) WithResolver(r Resolver) *Executor {
	e.resolver = r
	return e
}

// WithPolicy sets the policy for a single tool name.
func (e *Executor) WithPolicy(toolName string, p Policy) *Executor {
	e.policies[toolName] = p
	return e
}

// WithPolicies replaces the per-tool policy table.
func (e *Executor) WithPolicies(policies map[string]Policy) *Executor {
	e.policies = make(map[string]Policy, len(policies))
	for name, p := range policies {
		e.policies[name] = p
	}
	return e
}

// WithDefaultPolicy sets the fallback policy for unlisted tools.
func (e *Executor) WithDefaultPolicy(p Policy) *Executor {
	e.defaultPolicy = p
	return e
}

// WithApprover sets the callback consulted for PolicyAsk tools.
// Without an approver, PolicyAsk calls are denied.
func (e *Executor) WithApprover(a Approver) *Executor {
	e.approver = a
	return e
}

// WithOptions sets execution limits.
func (e *Executor) WithOptions(opts ExecOptions) *Executor {
	e.opts = opts
	return e
}

// ExecuteToolsWithApproval runs every call in the batch and returns one
// response per call, in input order. Failures never surface as Go errors;
// they become {"error": ...} payloads the model can read. Each input
// call's Status is updated in place.
func (e *Executor) ExecuteToolsWithApproval(ctx context.Context, calls []llm.ToolCall) []llm.ToolResponse {
	responses := make([]llm.ToolResponse, len(calls))

	// Approval runs serially so interactive prompts do not interleave.
	approved := make([]bool, len(calls))
	for i := range calls {
		call := &calls[i]
		switch e.policyFor(call.Name) {
		case PolicyNever:
			call.Status = llm.CallError
			responses[i] = errorResponse(*call, fmt.Sprintf("tool '%s' is disabled by policy", call.Name))
		case PolicyAsk:
			if e.approver == nil || !e.approver(*call) {
				call.Status = llm.CallError
				responses[i] = errorResponse(*call, fmt.Sprintf("tool call '%s' was denied", call.Name))
				continue
			}
			approved[i] = true
		default:
			approved[i] = true
		}
	}

	// Approved calls fan out with bounded parallelism.
	sem := make(chan struct{}, e.opts.Parallel())
	var wg sync.WaitGroup
	for i := range calls {
		if !approved[i] {
			continue
		}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			responses[idx] = e.executeOne(ctx, &calls[idx])
		}(i)
	}
	wg.Wait()

	return responses
}

// executeOne runs a single approved call with timeout and panic containment.
func (e *Executor) executeOne(ctx context.Context, call *llm.ToolCall) (resp llm.ToolResponse) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("tool panicked", "tool", call.Name, "panic", r)
			call.Status = llm.CallError
			resp = errorResponse(*call, fmt.Sprintf("tool '%s' panicked: %v", call.Name, r))
		}
	}()

	tool, ok := e.lookup(call.Name)
	if !ok {
		call.Status = llm.CallError
		return errorResponse(*call, fmt.Sprintf("unknown tool: %s", call.Name))
	}

	args, err := json.Marshal(call.Args)
	if err != nil {
		call.Status = llm.CallError
		return errorResponse(*call, fmt.Sprintf("failed to encode arguments: %v", err))
	}

	callCtx, cancel := context.WithTimeout(ctx, e.opts.Timeout())
	defer cancel()

	start := time.Now()
	result, err := tool.Execute(callCtx, args)
	elapsed := time.Since(start)

	if err != nil {
		e.logger.Error("tool failed", "tool", call.Name, "duration", elapsed, "error", err)
		call.Status = llm.CallError
		return errorResponse(*call, err.Error())
	}
	if !result.Success() {
		e.logger.Warn("tool returned error", "tool", call.Name, "duration", elapsed, "error", result.Error)
		call.Status = llm.CallError
		return errorResponse(*call, result.Error.Error())
	}

	e.logger.Debug("tool executed", "tool", call.Name, "duration", elapsed)
	call.Status = llm.CallExecuted
	return llm.ToolResponse{
		ID:       call.ID,
		Name:     call.Name,
		Response: map[string]any{"output": result.Output},
	}
}

// lookup finds a tool by plain or source-qualified name.
func (e *Executor) lookup(name string) (Tool, bool) {
	if strings.Contains(name, ":") && e.resolver != nil {
		if tool, ok := e.resolver.ResolveTool(name); ok {
			return tool, true
		}
	}
	if e.registry == nil {
		return nil, false
	}
	return e.registry.Get(name)
}

// policyFor resolves the effective policy for a tool name.
func (e *Executor) policyFor(name string) Policy {
	if p, ok := e.policies[name]; ok {
		return p
	}
	return e.defaultPolicy
}

// errorResponse wraps a failure message in a payload the model can read.
func errorResponse(call llm.ToolCall, msg string) llm.ToolResponse {
	return llm.ToolResponse{
		ID:       call.ID,
		Name:     call.Name,
		Response: map[string]any{"error": msg},
	}
}
