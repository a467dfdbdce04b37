// Component wiring for CLI commands.
//
// Information Hiding:
// - Provider construction hidden
// - Archive backend selection hidden
// - Executor policy assembly hidden

package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/inkhorn/scribe/agent"
	"github.com/inkhorn/scribe/config"
	"github.com/inkhorn/scribe/history"
	"github.com/inkhorn/scribe/llm"
	"github.com/inkhorn/scribe/mcp"
	"github.com/inkhorn/scribe/storage"
	"github.com/inkhorn/scribe/tools"
)

// loadSettings resolves configuration for one command invocation, applying
// the --provider flag on top of file and environment.
func loadSettings(opts Options) (config.Settings, error) {
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Settings{}, err
	}
	if opts.Provider != "" {
		if err := settings.ApplyProviderOverride(opts.Provider); err != nil {
			return config.Settings{}, err
		}
	}
	return settings, nil
}

// newLogger builds the command logger. Chat output owns stdout, so logs go
// to stderr; non-verbose runs only surface warnings.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newProvider creates the configured LLM provider.
func newProvider(settings *config.Settings) (llm.Provider, error) {
	providerType, err := llm.ParseProviderType(settings.LLM.Provider)
	if err != nil {
		return nil, err
	}

	apiKey, err := config.APIKeyFor(settings.LLM.Provider)
	if err != nil {
		return nil, err
	}

	return providerType.
		Model(settings.LLM.Model).
		MaxTokens(settings.LLM.MaxTokens).
		Temperature(float32(settings.LLM.Temperature)).
		APIKey(apiKey)
}

// newArchive opens the configured session archive. The returned close
// function is always non-nil.
func newArchive(settings *config.Settings, logger *slog.Logger) (storage.Archive, func(), error) {
	switch settings.Archive.Backend {
	case "sqlite":
		db, err := storage.OpenSqliteArchive(filepath.Join(settings.Archive.Dir, "scribe.db"), logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open session archive: %w", err)
		}
		return db, func() { _ = db.Close() }, nil
	default:
		return storage.NewFileArchive(settings.Archive.Dir, logger), func() {}, nil
	}
}

// newRegistry builds the built-in tool registry from tool settings.
func newRegistry(settings *config.Settings) (*tools.Registry, error) {
	maxFileSize := settings.Tools.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = tools.DefaultMaxFileSize
	}
	fetchTimeout := settings.Tools.FetchTimeoutSecs
	if fetchTimeout == 0 {
		fetchTimeout = tools.DefaultToolTimeout
	}

	readTool := tools.NewReadFileTool(maxFileSize)
	writeTool := tools.NewWriteFileTool(maxFileSize)
	listTool := tools.NewListDirTool()
	if settings.Tools.WorkDir != "" {
		allowed := []string{settings.Tools.WorkDir}
		readTool = readTool.WithAllowedPaths(allowed)
		writeTool = writeTool.WithAllowedPaths(allowed)
		listTool = listTool.WithAllowedPaths(allowed)
	}

	registry := tools.NewRegistry()
	for _, t := range []tools.Tool{readTool, writeTool, listTool, tools.NewWebFetchTool(fetchTimeout)} {
		if err := registry.Register(t); err != nil {
			return nil, fmt.Errorf("failed to register built-in tools: %w", err)
		}
	}
	return registry, nil
}

// newManager builds the tool source manager and registers every server from
// the configured mcpServers file. Nothing is connected yet; callers that
// need live catalogs run DiscoverAll themselves.
func newManager(settings *config.Settings, logger *slog.Logger) (*mcp.Manager, error) {
	manager := mcp.NewManager(logger)
	if settings.MCPConfigPath == "" {
		return manager, nil
	}
	if err := manager.LoadConfigFile(settings.MCPConfigPath); err != nil {
		return nil, fmt.Errorf("failed to load tool server config: %w", err)
	}
	return manager, nil
}

// newExecutor assembles the tool executor: built-in registry, manager as
// resolver for source-qualified names, and the configured policy table.
func newExecutor(registry *tools.Registry, manager *mcp.Manager, settings *config.Settings, approver tools.Approver, logger *slog.Logger) (*tools.Executor, error) {
	defaultPolicy, err := tools.ParsePolicy(settings.Tools.DefaultPolicy)
	if err != nil {
		return nil, err
	}

	policies := make(map[string]tools.Policy, len(settings.Tools.Policies))
	for name, raw := range settings.Tools.Policies {
		policy, err := tools.ParsePolicy(raw)
		if err != nil {
			return nil, fmt.Errorf("policy for tool %q: %w", name, err)
		}
		policies[name] = policy
	}

	return tools.NewExecutor(registry, logger).
		WithResolver(manager).
		WithDefaultPolicy(defaultPolicy).
		WithPolicies(policies).
		WithApprover(approver), nil
}

// buildAgent assembles the conversation agent. The catalog merges built-in
// and discovered definitions on every exchange, so servers that come up
// mid-conversation are offered on the next message.
func buildAgent(provider llm.Provider, settings *config.Settings, hist *history.History, runner agent.ToolRunner, registry *tools.Registry, manager *mcp.Manager, logger *slog.Logger) *agent.Agent {
	catalog := func() []llm.ToolDefinition {
		defs := registry.Definitions()
		return append(defs, manager.Definitions()...)
	}

	builder := agent.NewBuilder(provider).
		Temperature(float32(settings.LLM.Temperature)).
		MaxOutputTokens(int32(settings.LLM.MaxTokens)).
		SearchGrounding(settings.Chat.SearchGrounding).
		History(hist).
		ToolRunner(runner).
		Catalog(catalog).
		Logger(logger)
	if settings.Chat.SystemPrompt != "" {
		builder = builder.SystemPrompt(settings.Chat.SystemPrompt)
	}
	return builder.Build()
}

// newTerminalApprover prompts on the terminal for each ask-policy call.
// It shares the REPL's scanner so buffered input is never split between
// two readers. EOF denies.
func newTerminalApprover(in *bufio.Scanner, out io.Writer) tools.Approver {
	return func(call llm.ToolCall) bool {
		fmt.Fprintf(out, "%s %s %s [y/N] ", askStyle.Render("approve?"), call.Name, marshalArgs(call.Args))
		if !in.Scan() {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(in.Text())) {
		case "y", "yes":
			return true
		default:
			return false
		}
	}
}

// marshalArgs renders tool arguments as compact JSON for display.
func marshalArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%v", args)
	}
	return string(data)
}
