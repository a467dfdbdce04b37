package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// httpRequestTimeout bounds each JSON-RPC round trip.
const httpRequestTimeout = 30 * time.Second

// httpTransport speaks JSON-RPC over single-endpoint HTTP POST.
type httpTransport struct {
	config    ServerConfig
	logger    *slog.Logger
	client    *http.Client
	connected atomic.Bool
}

func newHTTPTransport(cfg ServerConfig, logger *slog.Logger) *httpTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &httpTransport{
		config: cfg,
		logger: logger.With("transport", "http"),
		client: &http.Client{
			Timeout: httpRequestTimeout,
		},
	}
}

// Connect validates the configuration; HTTP needs no persistent link.
func (t *httpTransport) Connect(ctx context.Context) error {
	if t.config.URL == "" {
		return fmt.Errorf("url is required for http transport")
	}

	t.connected.Store(true)
	t.logger.Debug("http transport ready", "url", t.config.URL)
	return nil
}

// Close marks the transport unusable.
func (t *httpTransport) Close() error {
	t.connected.Store(false)
	return nil
}

// Call posts a request and decodes the response body.
func (t *httpTransport) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if !t.connected.Load() {
		return nil, fmt.Errorf("not connected")
	}

	request := rpcRequest{
		JSONRPC: "2.0",
		ID:      uuid.New().String(),
		Method:  method,
		Params:  params,
	}

	resp, err := t.post(ctx, request)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Result json.RawMessage `json:"result,omitempty"`
		Error  *rpcError       `json:"error,omitempty"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if response.Error != nil {
		return nil, fmt.Errorf("server error %d: %s", response.Error.Code, response.Error.Message)
	}

	return response.Result, nil
}

// Notify posts a notification. The response, if any, is discarded.
func (t *httpTransport) Notify(ctx context.Context, method string, params any) error {
	if !t.connected.Load() {
		return fmt.Errorf("not connected")
	}

	notification := rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
	}

	resp, err := t.post(ctx, notification)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Connected reports whether the transport is open.
func (t *httpTransport) Connected() bool {
	return t.connected.Load()
}

// post sends one JSON-RPC message.
func (t *httpTransport) post(ctx context.Context, message rpcRequest) (*http.Response, error) {
	payload, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.config.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range t.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}

	return resp, nil
}
