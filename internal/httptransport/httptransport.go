// Package httptransport implements the plain HTTP MCP transport: every
// RPC is a single POST answered with a JSON body, routed through the
// shared httpbase engine.
package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	mcperrors "github.com/jamesprial/mcp-client/internal/errors"
	"github.com/jamesprial/mcp-client/internal/httpbase"
	"github.com/jamesprial/mcp-client/internal/jsonrpc"
	"github.com/jamesprial/mcp-client/internal/transport"
)

// Config describes a plain HTTP server connection.
type Config struct {
	BaseURL     string
	Endpoint    string // relative or absolute; defaults to BaseURL
	Headers     map[string]string
	Name        string
	RetryPolicy jsonrpc.RetryPolicy
	Auth        httpbase.AuthProvider
	Client      *http.Client
	Logger      *slog.Logger
}

// Transport is the plain HTTP MCP transport.
type Transport struct {
	cfg    Config
	base   *httpbase.Base
	logger *slog.Logger

	mu          sync.Mutex
	state       transport.State
	initialized bool
	serverInfo  jsonrpc.ServerInfo
	notify      transport.NotificationHandler

	idgen transport.IDGenerator
}

// New constructs a plain HTTP transport from cfg.
func New(cfg Config) *Transport {
	endpoint := httpbase.ResolveEndpoint(cfg.BaseURL, cfg.Endpoint)
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "http", "server", cfg.Name)
	return &Transport{
		cfg: cfg,
		base: httpbase.New(httpbase.Config{
			BaseURL: endpoint,
			Headers: cfg.Headers,
			Auth:    cfg.Auth,
			Client:  cfg.Client,
		}),
		logger: logger,
		state:  transport.Disconnected,
	}
}

func (t *Transport) Name() string { return t.cfg.Name }

func (t *Transport) State() transport.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Transport) ServerInfo() jsonrpc.ServerInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.serverInfo
}

func (t *Transport) SetNotificationHandler(h transport.NotificationHandler) {
	t.mu.Lock()
	t.notify = h
	t.mu.Unlock()
}

// Connect is a no-op beyond marking the transport reachable: plain HTTP has
// no persistent connection to establish.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	t.state = transport.Connecting
	t.mu.Unlock()
	return nil
}

// parseResponse decodes a JSON body and extracts its result.
func (t *Transport) parseResponse(body []byte) (json.RawMessage, error) {
	resp, err := jsonrpc.ParseResponse(body)
	if err != nil {
		return nil, err
	}
	return jsonrpc.ProcessResponse(resp)
}

func (t *Transport) rpcRequest(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := t.idgen.Next()
	req, err := jsonrpc.BuildRequest(id, method, params)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, mcperrors.TransportWrap("http", "rpcRequest", err)
	}
	_, _, body, err := t.base.Post(ctx, "", raw)
	if err != nil {
		return nil, err
	}
	return t.parseResponse(body)
}

func (t *Transport) rpcNotify(ctx context.Context, method string, params any) error {
	n, err := jsonrpc.BuildNotification(method, params)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(n)
	if err != nil {
		return mcperrors.TransportWrap("http", "rpcNotify", err)
	}
	_, _, _, err = t.base.Post(ctx, "", raw)
	return err
}

// EnsureInitialized performs the initialize handshake exactly once per
// connected session.
func (t *Transport) EnsureInitialized(ctx context.Context) error {
	t.mu.Lock()
	if t.initialized {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	var result jsonrpc.InitializeResult
	err := jsonrpc.WithRetry(ctx, t.cfg.RetryPolicy, t.logger, func() error {
		raw, err := t.rpcRequest(ctx, jsonrpc.MethodInitialize, jsonrpc.InitializationParams())
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, &result)
	})
	if err != nil {
		t.mu.Lock()
		t.state = transport.Failed
		t.mu.Unlock()
		return err
	}

	if err := t.rpcNotify(ctx, jsonrpc.NotificationInitialized, nil); err != nil {
		t.mu.Lock()
		t.state = transport.Failed
		t.mu.Unlock()
		return err
	}

	t.mu.Lock()
	t.initialized = true
	t.serverInfo = result.ServerInfo
	t.state = transport.Ready
	t.mu.Unlock()
	return nil
}

// ListTools issues tools/list.
func (t *Transport) ListTools(ctx context.Context) ([]jsonrpc.ToolDescription, error) {
	if err := t.EnsureInitialized(ctx); err != nil {
		return nil, err
	}
	var result jsonrpc.ToolsListResult
	err := jsonrpc.WithRetry(ctx, t.cfg.RetryPolicy, t.logger, func() error {
		raw, err := t.rpcRequest(ctx, jsonrpc.MethodToolsList, nil)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, &result)
	})
	if err != nil {
		return nil, err
	}
	return result.Tools, nil
}

// CallTool issues tools/call.
func (t *Transport) CallTool(ctx context.Context, name string, arguments any) (json.RawMessage, error) {
	if err := t.EnsureInitialized(ctx); err != nil {
		return nil, err
	}
	var out json.RawMessage
	err := jsonrpc.WithRetry(ctx, t.cfg.RetryPolicy, t.logger, func() error {
		raw, err := t.rpcRequest(ctx, jsonrpc.MethodToolsCall, jsonrpc.ToolsCallParams{Name: name, Arguments: arguments})
		if err != nil {
			return err
		}
		out = raw
		return nil
	})
	return out, err
}

// CallToolStreaming yields exactly one chunk: a compatibility shim over
// CallTool, since plain HTTP has no streamed delivery.
func (t *Transport) CallToolStreaming(ctx context.Context, name string, arguments any) (<-chan transport.StreamChunk, error) {
	ch := make(chan transport.StreamChunk, 1)
	result, err := t.CallTool(ctx, name, arguments)
	ch <- transport.StreamChunk{Result: result, Err: err}
	close(ch)
	return ch, nil
}

// Cleanup is a no-op beyond state bookkeeping: plain HTTP holds no
// persistent connection to tear down. Idempotent.
func (t *Transport) Cleanup() error {
	t.mu.Lock()
	t.state = transport.Closing
	t.mu.Unlock()
	return nil
}
