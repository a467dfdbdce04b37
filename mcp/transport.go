// MCP transports - JSON-RPC 2.0 over stdio or HTTP.
//
// Information Hiding:
// - Subprocess lifecycle hidden
// - Request ID tracking hidden
// - Wire framing hidden

package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
)

// Transport carries JSON-RPC traffic to a single MCP server.
type Transport interface {
	// Connect establishes the transport.
	Connect(ctx context.Context) error

	// Close tears the transport down and releases resources.
	Close() error

	// Call sends a request and returns the matching response's result.
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)

	// Notify sends a notification (no response expected).
	Notify(ctx context.Context, method string, params any) error

	// Connected reports whether the transport is usable.
	Connected() bool
}

// NewTransport selects a transport from the server configuration.
func NewTransport(cfg ServerConfig, logger *slog.Logger) Transport {
	if cfg.URL != "" {
		return newHTTPTransport(cfg, logger)
	}
	return newStdioTransport(cfg, logger)
}

// rpcRequest is a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// rpcMessage is any inbound JSON-RPC message. Method is set on
// notifications and server-initiated requests, ID on responses.
type rpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uint64         `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError is a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// stdioTransport runs the server as a subprocess and exchanges
// line-delimited JSON over its pipes.
type stdioTransport struct {
	config ServerConfig
	logger *slog.Logger

	mu        sync.Mutex
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	requestID uint64
	connected bool
}

func newStdioTransport(cfg ServerConfig, logger *slog.Logger) *stdioTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &stdioTransport{
		config: cfg,
		logger: logger.With("transport", "stdio"),
	}
}

// Connect starts the server process and wires up its pipes.
func (t *stdioTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.connected {
		return fmt.Errorf("already connected")
	}
	if t.config.Command == "" {
		return fmt.Errorf("command is required for stdio transport")
	}

	cmd := exec.CommandContext(ctx, t.config.Command, t.config.Args...)
	cmd.Env = os.Environ()
	for k, v := range t.config.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		return fmt.Errorf("failed to start server process: %w", err)
	}

	t.cmd = cmd
	t.stdin = stdin
	t.stdout = bufio.NewReader(stdout)
	t.connected = true

	t.logger.Debug("started server process", "command", t.config.Command, "pid", cmd.Process.Pid)
	return nil
}

// Close stops the server process.
func (t *stdioTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.connected = false

	if t.stdin != nil {
		t.stdin.Close()
	}
	if t.cmd != nil && t.cmd.Process != nil {
		_ = t.cmd.Process.Kill() // Intentionally ignore - cleanup
		_ = t.cmd.Wait()         // Intentionally ignore - cleanup
	}

	return nil
}

// Call sends a request and reads until the matching response arrives.
// Server notifications and responses to other ids are skipped.
func (t *stdioTransport) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected {
		return nil, fmt.Errorf("not connected")
	}
	// Check context before sending
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	t.requestID++
	request := rpcRequest{
		JSONRPC: "2.0",
		ID:      t.requestID,
		Method:  method,
		Params:  params,
	}

	data, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	if _, err := t.stdin.Write(append(data, '\n')); err != nil {
		return nil, fmt.Errorf("failed to write request: %w", err)
	}

	for {
		line, err := t.stdout.ReadBytes('\n')
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		var msg rpcMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			t.logger.Debug("skipping unparseable line", "error", err)
			continue
		}
		if msg.Method != "" || msg.ID == nil {
			// Notification or server-initiated request
			continue
		}
		if *msg.ID != t.requestID {
			t.logger.Debug("skipping response for unknown id", "id", *msg.ID)
			continue
		}

		if msg.Error != nil {
			return nil, fmt.Errorf("server error %d: %s", msg.Error.Code, msg.Error.Message)
		}
		return msg.Result, nil
	}
}

// Notify sends a notification without waiting for anything back.
func (t *stdioTransport) Notify(ctx context.Context, method string, params any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected {
		return fmt.Errorf("not connected")
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	notification := rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
	}

	data, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	if _, err := t.stdin.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write notification: %w", err)
	}

	return nil
}

// Connected reports whether the subprocess is up.
func (t *stdioTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}
