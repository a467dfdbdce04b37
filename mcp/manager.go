// Tool source manager - aggregates any number of MCP servers behind one
// namespaced catalog.
//
// Information Hiding:
// - Connection bookkeeping hidden
// - Discovery fan-out hidden
// - Qualified-name resolution hidden

package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Manager owns the configured server set and their live connections.
// Discovery and disconnect of different servers may run concurrently;
// failures are isolated per server.
type Manager struct {
	mu      sync.RWMutex
	configs map[string]ServerConfig
	conns   map[string]*Connection
	logger  *slog.Logger

	// newConn builds server connections. Tests replace it to inject
	// stub transports.
	newConn func(id string, cfg ServerConfig, logger *slog.Logger) *Connection
}

// NewManager creates an empty manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		configs: make(map[string]ServerConfig),
		conns:   make(map[string]*Connection),
		logger:  logger.With("component", "mcp"),
		newConn: NewConnection,
	}
}

// LoadConfigFile registers every server from an mcpServers config file.
// Nothing is connected until discovery runs.
func (m *Manager) LoadConfigFile(path string) error {
	config, err := LoadConfig(path)
	if err != nil {
		return err
	}

	for id, serverConfig := range config.MCPServers {
		if err := m.AddServer(id, serverConfig); err != nil {
			return fmt.Errorf("server %q: %w", id, err)
		}
	}
	return nil
}

// AddServer registers a server configuration.
func (m *Manager) AddServer(id string, cfg ServerConfig) error {
	if id == "" {
		return fmt.Errorf("server id is required")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.configs[id]; exists {
		return fmt.Errorf("server %q already configured", id)
	}
	m.configs[id] = cfg
	return nil
}

// RemoveServer drops a server's configuration, disconnecting its live
// connection first if one exists. Removing an unknown id is a no-op.
func (m *Manager) RemoveServer(id string) error {
	m.mu.Lock()
	conn := m.conns[id]
	delete(m.conns, id)
	delete(m.configs, id)
	m.mu.Unlock()

	if conn != nil {
		return conn.Disconnect()
	}
	return nil
}

// UpdateServerConfig replaces a server's configuration. The old connection
// (if present) is disconnected before reconnecting with the new
// configuration, so two live connections never exist for the same id.
func (m *Manager) UpdateServerConfig(ctx context.Context, id string, cfg ServerConfig) error {
	if id == "" {
		return fmt.Errorf("server id is required")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	return m.DiscoverServer(ctx, id, cfg)
}

// Configs returns a copy of the configured server set.
func (m *Manager) Configs() map[string]ServerConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()

	configs := make(map[string]ServerConfig, len(m.configs))
	for id, cfg := range m.configs {
		configs[id] = cfg
	}
	return configs
}

// DiscoverAll connects and discovers every configured server concurrently.
// A failure for one server is logged and does not prevent the others.
func (m *Manager) DiscoverAll(ctx context.Context) {
	configs := m.Configs()

	var wg sync.WaitGroup
	for id, cfg := range configs {
		wg.Add(1)
		go func(id string, cfg ServerConfig) {
			defer wg.Done()
			if err := m.DiscoverServer(ctx, id, cfg); err != nil {
				m.logger.Error("tool server discovery failed", "server", id, "error", err)
			}
		}(id, cfg)
	}
	wg.Wait()
}

// DiscoverServer connects one server and discovers its catalog. Any
// existing live connection for the id is disconnected first. On failure
// the error propagates and no connection is retained.
func (m *Manager) DiscoverServer(ctx context.Context, id string, cfg ServerConfig) error {
	if id == "" {
		return fmt.Errorf("server id is required")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	old := m.conns[id]
	delete(m.conns, id)
	m.configs[id] = cfg
	m.mu.Unlock()

	if old != nil {
		if err := old.Disconnect(); err != nil {
			m.logger.Warn("failed to disconnect replaced connection", "server", id, "error", err)
		}
	}

	conn := m.newConn(id, cfg, m.logger)
	conn.Subscribe(m.onStatusChange)

	if err := conn.Connect(ctx); err != nil {
		return fmt.Errorf("connect %s: %w", id, err)
	}
	if err := conn.DiscoverAll(ctx); err != nil {
		if derr := conn.Disconnect(); derr != nil {
			m.logger.Warn("failed to disconnect after discovery failure", "server", id, "error", derr)
		}
		return fmt.Errorf("discover %s: %w", id, err)
	}

	m.mu.Lock()
	m.conns[id] = conn
	m.mu.Unlock()

	m.logger.Info("discovered tool server",
		"server", id,
		"tools", len(conn.Tools()),
		"prompts", len(conn.Prompts()))

	return nil
}

// onStatusChange observes connection transitions. Disconnects are logged;
// there is no automatic reconnection.
func (m *Manager) onStatusChange(serverID string, status Status) {
	if status == StatusDisconnected {
		m.logger.Info("tool server disconnected", "server", serverID)
	}
}

// DisconnectServer tears down one server's connection. Unknown or already
// disconnected ids are a no-op.
func (m *Manager) DisconnectServer(id string) error {
	m.mu.Lock()
	conn, exists := m.conns[id]
	delete(m.conns, id)
	m.mu.Unlock()

	if !exists {
		return nil
	}
	return conn.Disconnect()
}

// DisconnectAll tears down every connection concurrently and waits for
// all of them, independent of individual outcomes.
func (m *Manager) DisconnectAll() {
	m.mu.Lock()
	conns := m.conns
	m.conns = make(map[string]*Connection)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for id, conn := range conns {
		wg.Add(1)
		go func(id string, conn *Connection) {
			defer wg.Done()
			if err := conn.Disconnect(); err != nil {
				m.logger.Warn("disconnect failed", "server", id, "error", err)
			}
		}(id, conn)
	}
	wg.Wait()
}

// AllTools flattens every live connection's tools into one mapping keyed
// by qualified name. Recomputed from live state on each call.
func (m *Manager) AllTools() map[string]DiscoveredTool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]DiscoveredTool)
	for id, conn := range m.conns {
		for _, tool := range conn.Tools() {
			result[QualifyName(id, tool.Name)] = tool
		}
	}
	return result
}

// AllPrompts flattens every live connection's prompts into one mapping
// keyed by qualified name.
func (m *Manager) AllPrompts() map[string]DiscoveredPrompt {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]DiscoveredPrompt)
	for id, conn := range m.conns {
		for _, prompt := range conn.Prompts() {
			result[QualifyName(id, prompt.Name)] = prompt
		}
	}
	return result
}

// Stats summarizes connection health.
type Stats struct {
	Total        int `json:"total"`
	Connected    int `json:"connected"`
	Disconnected int `json:"disconnected"`
	Transitional int `json:"transitional"`
}

// ServerStats buckets the retained connections by status.
func (m *Manager) ServerStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{Total: len(m.conns)}
	for _, conn := range m.conns {
		switch status := conn.Status(); {
		case status == StatusConnected:
			stats.Connected++
		case status.Transitional():
			stats.Transitional++
		default:
			stats.Disconnected++
		}
	}
	return stats
}

// Connection returns the live connection for a server id.
func (m *Manager) Connection(id string) (*Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, exists := m.conns[id]
	return conn, exists
}

// CallTool dispatches a qualified tool name ("{server}:{tool}", split on
// the first ':') to its owning connection.
func (m *Manager) CallTool(ctx context.Context, qualifiedName string, arguments map[string]any) (*ToolCallResult, error) {
	serverID, toolName, ok := SplitQualifiedName(qualifiedName)
	if !ok {
		return nil, fmt.Errorf("tool name %q is not qualified with a server id", qualifiedName)
	}

	conn, exists := m.Connection(serverID)
	if !exists {
		return nil, fmt.Errorf("server %q not connected", serverID)
	}

	return conn.CallTool(ctx, toolName, arguments)
}
