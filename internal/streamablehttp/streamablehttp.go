// Package streamablehttp implements the "streamable HTTP" MCP transport:
// each POST response is either a plain JSON body or a text/event-stream
// body carrying exactly the SSE frames needed to answer that one request,
// with resumability via Last-Event-ID.
package streamablehttp

import (
	"context"
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"sync"

	mcperrors "github.com/jamesprial/mcp-client/internal/errors"
	"github.com/jamesprial/mcp-client/internal/httpbase"
	"github.com/jamesprial/mcp-client/internal/jsonrpc"
	"github.com/jamesprial/mcp-client/internal/ssewire"
	"github.com/jamesprial/mcp-client/internal/transport"
)

// Config describes a streamable HTTP server connection.
type Config struct {
	BaseURL     string
	Endpoint    string
	Headers     map[string]string
	Name        string
	RetryPolicy jsonrpc.RetryPolicy
	Auth        httpbase.AuthProvider
	Client      *http.Client
	Logger      *slog.Logger
}

// Transport is the streamable HTTP MCP transport.
type Transport struct {
	cfg    Config
	base   *httpbase.Base
	logger *slog.Logger

	mu          sync.Mutex
	state       transport.State
	initialized bool
	serverInfo  jsonrpc.ServerInfo
	notify      transport.NotificationHandler
	lastEventID string

	idgen transport.IDGenerator
}

// New constructs a streamable HTTP transport from cfg.
func New(cfg Config) *Transport {
	endpoint := httpbase.ResolveEndpoint(cfg.BaseURL, cfg.Endpoint)
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "streamable_http", "server", cfg.Name)
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

// LastEventID returns the most recently captured SSE "id:" field, used as
// Last-Event-ID on future reconnects for server-side resumability.
func (t *Transport) LastEventID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastEventID
}

func (t *Transport) SetNotificationHandler(h transport.NotificationHandler) {
	t.mu.Lock()
	t.notify = h
	t.mu.Unlock()
}

// Connect is a no-op beyond marking the transport reachable: each request
// opens and closes its own POST.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	t.state = transport.Connecting
	t.mu.Unlock()
	return nil
}

// parseResponse inspects Content-Type: application/json decodes directly;
// text/event-stream is scanned frame by frame, message data lines are
// concatenated, and the final id: is captured.
func (t *Transport) parseResponse(contentType string, body []byte) (json.RawMessage, error) {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	}
	switch mt {
	case "text/event-stream":
		return t.parseSSEBody(body)
	default:
		resp, err := jsonrpc.ParseResponse(body)
		if err != nil {
			return nil, err
		}
		return jsonrpc.ProcessResponse(resp)
	}
}

func (t *Transport) parseSSEBody(body []byte) (json.RawMessage, error) {
	sc := ssewire.NewScanner(strings.NewReader(string(body)))
	var result json.RawMessage
	found := false
	for {
		ev, ok := sc.Next()
		if !ok {
			break
		}
		if ev.ID != "" {
			t.mu.Lock()
			t.lastEventID = ev.ID
			t.mu.Unlock()
		}
		if ev.Event == "ping" {
			continue
		}
		if ev.Data == "" {
			continue
		}
		resp, err := jsonrpc.ParseResponse([]byte(ev.Data))
		if err != nil {
			return nil, err
		}
		out, err := jsonrpc.ProcessResponse(resp)
		if err != nil {
			return nil, err
		}
		result = out
		found = true
	}
	if !found {
		return nil, mcperrors.Transport("streamable_http", "parseSSEBody", "No data found in SSE response")
	}
	return result, nil
}

func (t *Transport) rpcRequest(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := t.idgen.Next()
	req, err := jsonrpc.BuildRequest(id, method, params)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, mcperrors.TransportWrap("streamable_http", "rpcRequest", err)
	}
	_, contentType, body, err := t.base.Post(ctx, "", raw)
	if err != nil {
		return nil, err
	}
	return t.parseResponse(contentType, body)
}

func (t *Transport) rpcNotify(ctx context.Context, method string, params any) error {
	n, err := jsonrpc.BuildNotification(method, params)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(n)
	if err != nil {
		return mcperrors.TransportWrap("streamable_http", "rpcNotify", err)
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

// CallToolStreaming yields exactly one chunk. The protocol does not yet
// define a schema for streamed partial results.
func (t *Transport) CallToolStreaming(ctx context.Context, name string, arguments any) (<-chan transport.StreamChunk, error) {
	ch := make(chan transport.StreamChunk, 1)
	result, err := t.CallTool(ctx, name, arguments)
	ch <- transport.StreamChunk{Result: result, Err: err}
	close(ch)
	return ch, nil
}

// Cleanup is a no-op beyond state bookkeeping. Idempotent.
func (t *Transport) Cleanup() error {
	t.mu.Lock()
	t.state = transport.Closing
	t.mu.Unlock()
	return nil
}
