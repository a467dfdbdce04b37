// MCP server connection with lifecycle tracking.
//
// Information Hiding:
// - Handshake sequence hidden
// - Status transitions and listener dispatch hidden
// - Capability caches hidden

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

const (
	protocolVersion = "2024-11-05"
	clientName      = "scribe"
	clientVersion   = "0.1.0"
)

// Connection manages one MCP server over a Transport.
//
// Lifecycle: disconnected -> connecting -> connected -> disconnecting ->
// disconnected. A failed connect returns to disconnected. Discovery runs
// only while connected.
type Connection struct {
	id        string
	config    ServerConfig
	transport Transport
	logger    *slog.Logger

	mu         sync.Mutex
	status     Status
	discovery  DiscoveryState
	tools      []DiscoveredTool
	prompts    []DiscoveredPrompt
	serverInfo ServerInfo
	listeners  []StatusListener
}

// NewConnection creates a connection for the given server configuration.
// No network or process activity happens until Connect.
func NewConnection(id string, cfg ServerConfig, logger *slog.Logger) *Connection {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("server", id)
	return newConnection(id, cfg, NewTransport(cfg, logger), logger)
}

func newConnection(id string, cfg ServerConfig, transport Transport, logger *slog.Logger) *Connection {
	return &Connection{
		id:        id,
		config:    cfg,
		transport: transport,
		logger:    logger,
	}
}

// ID returns the server id this connection belongs to.
func (c *Connection) ID() string {
	return c.id
}

// Subscribe registers a listener for status transitions. Listeners fire
// synchronously on every transition, outside the state lock.
func (c *Connection) Subscribe(listener StatusListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, listener)
}

// setStatus transitions the status and notifies listeners.
func (c *Connection) setStatus(status Status) {
	c.mu.Lock()
	if c.status == status {
		c.mu.Unlock()
		return
	}
	c.status = status
	listeners := make([]StatusListener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, listener := range listeners {
		listener(c.id, status)
	}
}

// Connect establishes the transport and performs the initialize handshake.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.status != StatusDisconnected {
		status := c.status
		c.mu.Unlock()
		return fmt.Errorf("connection %s is %s, expected disconnected", c.id, status)
	}
	c.mu.Unlock()

	c.setStatus(StatusConnecting)

	if err := c.transport.Connect(ctx); err != nil {
		c.setStatus(StatusDisconnected)
		return fmt.Errorf("transport connect: %w", err)
	}

	result, err := c.transport.Call(ctx, "initialize", map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    clientName,
			"version": clientVersion,
		},
	})
	if err != nil {
		c.transport.Close()
		c.setStatus(StatusDisconnected)
		return fmt.Errorf("initialize: %w", err)
	}

	var init InitializeResult
	if err := json.Unmarshal(result, &init); err != nil {
		c.transport.Close()
		c.setStatus(StatusDisconnected)
		return fmt.Errorf("failed to parse initialize result: %w", err)
	}

	c.mu.Lock()
	c.serverInfo = init.ServerInfo
	c.mu.Unlock()

	if err := c.transport.Notify(ctx, "notifications/initialized", nil); err != nil {
		c.logger.Warn("failed to send initialized notification", "error", err)
	}

	c.setStatus(StatusConnected)
	c.logger.Info("connected to tool server",
		"name", init.ServerInfo.Name,
		"version", init.ServerInfo.Version,
		"protocol", init.ProtocolVersion)

	return nil
}

// DiscoverAll fetches the server's tool and prompt catalogs.
// A tools/list failure marks discovery as errored; prompts are optional
// and a prompts/list failure is tolerated.
func (c *Connection) DiscoverAll(ctx context.Context) error {
	c.mu.Lock()
	if c.status != StatusConnected {
		status := c.status
		c.mu.Unlock()
		return fmt.Errorf("connection %s is %s, discovery requires connected", c.id, status)
	}
	c.discovery = DiscoveryInProgress
	c.mu.Unlock()

	result, err := c.transport.Call(ctx, "tools/list", nil)
	if err != nil {
		c.setDiscovery(DiscoveryError)
		return fmt.Errorf("tools/list: %w", err)
	}
	var tools toolsListResult
	if err := json.Unmarshal(result, &tools); err != nil {
		c.setDiscovery(DiscoveryError)
		return fmt.Errorf("failed to parse tools list: %w", err)
	}

	var prompts []DiscoveredPrompt
	if result, err := c.transport.Call(ctx, "prompts/list", nil); err != nil {
		c.logger.Debug("prompts/list failed", "error", err)
	} else {
		var list promptsListResult
		if err := json.Unmarshal(result, &list); err != nil {
			c.logger.Debug("failed to parse prompts list", "error", err)
		} else {
			prompts = list.Prompts
		}
	}

	c.mu.Lock()
	c.tools = tools.Tools
	c.prompts = prompts
	c.discovery = DiscoveryCompleted
	c.mu.Unlock()

	c.logger.Debug("discovery complete", "tools", len(tools.Tools), "prompts", len(prompts))
	return nil
}

func (c *Connection) setDiscovery(state DiscoveryState) {
	c.mu.Lock()
	c.discovery = state
	c.mu.Unlock()
}

// Disconnect tears the connection down. Disconnecting an already
// disconnected connection is a no-op.
func (c *Connection) Disconnect() error {
	c.mu.Lock()
	if c.status == StatusDisconnected || c.status == StatusDisconnecting {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	c.setStatus(StatusDisconnecting)
	err := c.transport.Close()

	c.mu.Lock()
	c.discovery = DiscoveryNotStarted
	c.tools = nil
	c.prompts = nil
	c.mu.Unlock()

	c.setStatus(StatusDisconnected)

	if err != nil {
		return fmt.Errorf("transport close: %w", err)
	}
	return nil
}

// Status returns the current lifecycle state.
func (c *Connection) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// DiscoveryState returns the current discovery sub-state.
func (c *Connection) DiscoveryState() DiscoveryState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.discovery
}

// ServerInfo returns the identity the server reported at initialize.
func (c *Connection) ServerInfo() ServerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverInfo
}

// Tools returns the discovered tools.
func (c *Connection) Tools() []DiscoveredTool {
	c.mu.Lock()
	defer c.mu.Unlock()

	tools := make([]DiscoveredTool, len(c.tools))
	copy(tools, c.tools)
	return tools
}

// Prompts returns the discovered prompts.
func (c *Connection) Prompts() []DiscoveredPrompt {
	c.mu.Lock()
	defer c.mu.Unlock()

	prompts := make([]DiscoveredPrompt, len(c.prompts))
	copy(prompts, c.prompts)
	return prompts
}

// CallTool invokes a tool by its server-local name.
func (c *Connection) CallTool(ctx context.Context, name string, arguments map[string]any) (*ToolCallResult, error) {
	c.mu.Lock()
	if c.status != StatusConnected {
		status := c.status
		c.mu.Unlock()
		return nil, fmt.Errorf("connection %s is %s", c.id, status)
	}
	c.mu.Unlock()

	params := map[string]any{
		"name": name,
	}
	if arguments != nil {
		params["arguments"] = arguments
	}

	result, err := c.transport.Call(ctx, "tools/call", params)
	if err != nil {
		return nil, err
	}

	var callResult ToolCallResult
	if err := json.Unmarshal(result, &callResult); err != nil {
		return nil, fmt.Errorf("failed to parse tool result: %w", err)
	}

	return &callResult, nil
}
