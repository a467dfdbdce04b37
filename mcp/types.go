// Package mcp provides Model Context Protocol (MCP) client support.
//
// MCP is a protocol for communication between AI models and tool providers.
// This package connects to MCP servers over stdio or HTTP, discovers their
// tools and prompts, and aggregates any number of servers behind one
// namespaced catalog.
//
// Information Hiding:
// - Process management hidden
// - JSON-RPC protocol details hidden
// - Connection state machine hidden

package mcp

import (
	"encoding/json"
	"strings"
)

// Status is the lifecycle state of a server connection.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusDisconnecting
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// Transitional reports whether the status sits between stable states.
func (s Status) Transitional() bool {
	return s == StatusConnecting || s == StatusDisconnecting
}

// DiscoveryState tracks capability discovery on a connected server.
type DiscoveryState int

const (
	DiscoveryNotStarted DiscoveryState = iota
	DiscoveryInProgress
	DiscoveryCompleted
	DiscoveryError
)

// String returns the discovery state name.
func (d DiscoveryState) String() string {
	switch d {
	case DiscoveryNotStarted:
		return "not_started"
	case DiscoveryInProgress:
		return "in_progress"
	case DiscoveryCompleted:
		return "completed"
	case DiscoveryError:
		return "error"
	default:
		return "unknown"
	}
}

// StatusListener receives connection status transitions.
type StatusListener func(serverID string, status Status)

// DiscoveredTool describes a tool exposed by an MCP server.
type DiscoveredTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// DiscoveredPrompt describes a prompt template exposed by an MCP server.
type DiscoveredPrompt struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
}

// PromptArgument describes a parameter for a discovered prompt.
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// ServerInfo identifies a connected MCP server.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult is the server's reply to the initialize handshake.
type InitializeResult struct {
	ProtocolVersion string     `json:"protocolVersion"`
	ServerInfo      ServerInfo `json:"serverInfo"`
}

// ToolCallResult holds the result of tools/call.
type ToolCallResult struct {
	Content []ToolResultContent `json:"content"`
	IsError bool                `json:"isError,omitempty"`
}

// ToolResultContent is one piece of content in a tool result.
type ToolResultContent struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// toolsListResult is the result of tools/list.
type toolsListResult struct {
	Tools []DiscoveredTool `json:"tools"`
}

// promptsListResult is the result of prompts/list.
type promptsListResult struct {
	Prompts []DiscoveredPrompt `json:"prompts"`
}

// QualifyName builds the namespaced catalog key for a server-local name.
func QualifyName(serverID, name string) string {
	return serverID + ":" + name
}

// SplitQualifiedName splits a qualified name on the first ':'.
// Local names may themselves contain ':'.
func SplitQualifiedName(qualified string) (serverID, name string, ok bool) {
	return strings.Cut(qualified, ":")
}
