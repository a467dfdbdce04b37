// MCP Tool Wrapper - Makes discovered tools usable in the agent system.
//
// Information Hiding:
// - Connection lifecycle hidden
// - Schema parsing hidden
// - Result flattening hidden

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/inkhorn/scribe/llm"
	"github.com/inkhorn/scribe/tools"
)

// connectionTool adapts a discovered tool to the tools.Tool interface,
// executing through the owning connection.
type connectionTool struct {
	conn *Connection
	info DiscoveredTool
}

// Metadata returns the tool metadata extracted from the MCP schema.
// The name is qualified with the owning server's id.
func (t *connectionTool) Metadata() tools.ToolMetadata {
	return tools.ToolMetadata{
		Name:        QualifyName(t.conn.ID(), t.info.Name),
		Description: t.info.Description,
		Parameters:  parseParameters(t.info.InputSchema),
	}
}

// Execute calls the tool on its server.
func (t *connectionTool) Execute(ctx context.Context, args json.RawMessage) (tools.ToolResult, error) {
	var arguments map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &arguments); err != nil {
			return tools.FailureResult(fmt.Errorf("invalid JSON arguments: %w", err)), nil
		}
	}

	result, err := t.conn.CallTool(ctx, t.info.Name, arguments)
	if err != nil {
		return tools.ToolResult{}, fmt.Errorf("tool call failed: %w", err)
	}

	return formatCallResult(result), nil
}

// Validate validates that arguments are valid JSON.
// Note: Schema validation is performed by the MCP server.
func (t *connectionTool) Validate(args json.RawMessage) error {
	var v any
	if err := json.Unmarshal(args, &v); err != nil {
		return fmt.Errorf("invalid JSON arguments: %w", err)
	}
	return nil
}

// parseParameters extracts tool parameters from the JSON schema.
// Returns parameters in sorted order for deterministic output.
func parseParameters(inputSchema json.RawMessage) []tools.ToolParameter {
	var schema struct {
		Properties map[string]struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"properties"`
		Required []string `json:"required"`
	}

	if err := json.Unmarshal(inputSchema, &schema); err != nil {
		return nil
	}

	requiredSet := make(map[string]bool)
	for _, r := range schema.Required {
		requiredSet[r] = true
	}

	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	params := make([]tools.ToolParameter, 0, len(names))
	for _, name := range names {
		prop := schema.Properties[name]
		paramType := prop.Type
		if paramType == "" {
			paramType = "string"
		}

		params = append(params, tools.ToolParameter{
			Name:        name,
			Description: prop.Description,
			ParamType:   paramType,
			Required:    requiredSet[name],
		})
	}

	return params
}

// formatCallResult flattens an MCP tool result into a ToolResult.
// Text contents are joined; anything else is rendered as pretty JSON.
// A result the server marked as an error becomes a soft failure.
func formatCallResult(result *ToolCallResult) tools.ToolResult {
	if result == nil {
		return tools.SuccessResult("")
	}

	allText := true
	var combined strings.Builder
	for _, item := range result.Content {
		if item.Type != "text" {
			allText = false
			break
		}
		if item.Text == "" {
			continue
		}
		if combined.Len() > 0 {
			combined.WriteString("\n")
		}
		combined.WriteString(item.Text)
	}

	output := combined.String()
	if !allText || (output == "" && len(result.Content) > 0) {
		pretty, err := json.MarshalIndent(result.Content, "", "  ")
		if err == nil {
			output = string(pretty)
		}
	}

	if result.IsError {
		if output == "" {
			output = "tool reported an error"
		}
		return tools.FailureResultf("%s", output)
	}
	return tools.SuccessResult(output)
}

// ResolveTool finds a tool by its qualified name. Satisfies the executor's
// resolver contract for source-qualified calls.
func (m *Manager) ResolveTool(qualifiedName string) (tools.Tool, bool) {
	serverID, toolName, ok := SplitQualifiedName(qualifiedName)
	if !ok {
		return nil, false
	}

	conn, exists := m.Connection(serverID)
	if !exists {
		return nil, false
	}

	for _, info := range conn.Tools() {
		if info.Name == toolName {
			return &connectionTool{conn: conn, info: info}, true
		}
	}
	return nil, false
}

// Tools wraps every discovered tool as a registry-compatible tool.
func (m *Manager) Tools() []tools.Tool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []tools.Tool
	for _, conn := range m.conns {
		for _, info := range conn.Tools() {
			result = append(result, &connectionTool{conn: conn, info: info})
		}
	}
	return result
}

// Definitions returns provider-ready definitions for every discovered
// tool, sorted by qualified name so request payloads are stable.
func (m *Manager) Definitions() []llm.ToolDefinition {
	wrapped := m.Tools()

	defs := make([]llm.ToolDefinition, 0, len(wrapped))
	for _, tool := range wrapped {
		defs = append(defs, tool.Metadata().Definition())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}
