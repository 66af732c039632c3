// Package sse implements the SSE MCP transport: a long-lived
// GET stream carrying an initial "endpoint" frame that names the URL for
// outbound POSTs, followed by "message" frames correlated against pending
// requests (or fanned out as notifications), plus a reconnect/liveness
// monitor driven by a ping RPC.
package sse

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	mcperrors "github.com/jamesprial/mcp-client/internal/errors"
	"github.com/jamesprial/mcp-client/internal/jsonrpc"
	"github.com/jamesprial/mcp-client/internal/ssewire"
	"github.com/jamesprial/mcp-client/internal/transport"
)

// AuthProvider is the subset of the OAuth provider the SSE transport
// needs, mirroring internal/httpbase.AuthProvider without importing it
// (the SSE transport issues both a GET and POSTs, so it composes headers
// directly rather than going through httpbase.Base).
type AuthProvider interface {
	AuthorizationHeader(ctx context.Context) (string, error)
	InvalidateToken()
}

// Config describes an SSE server connection.
type Config struct {
	BaseURL     string
	Headers     map[string]string
	Name        string
	ReadTimeout time.Duration // default 10s
	PingInterval time.Duration // default 10s
	RetryPolicy jsonrpc.RetryPolicy
	Auth        AuthProvider
	Client      *http.Client
	Logger      *slog.Logger
}

// Transport is the SSE MCP transport.
type Transport struct {
	cfg    Config
	logger *slog.Logger
	client *http.Client

	mu                   sync.Mutex
	cond                 *sync.Cond
	state                transport.State
	rpcEndpoint          string
	connectionEstablished bool // endpoint frame received, POSTs permitted
	initialized          bool
	serverInfo           jsonrpc.ServerInfo
	authError            error
	lastActivity         time.Time
	lastEventID          string
	notify               transport.NotificationHandler
	streamCancel         context.CancelFunc
	streamDone           chan struct{}
	monitorDone          chan struct{}
	closed               bool
	consecutivePingFails int

	pending *pendingTable
	idgen   transport.IDGenerator
}

// pendingTable is a small purpose-built one-shot arena: unlike
// internal/transport.PendingTable it delivers results under a condition
// variable rather than per-waiter channels, because SSE waiters also need
// to observe stream loss and auth latching while blocked.
type pendingTable struct {
	mu      sync.Mutex
	cond    *sync.Cond
	results map[int64]pendingResult
	waiting map[int64]bool
	closed  bool
	closeErr error
}

type pendingResult struct {
	data json.RawMessage
	err  error
	ok   bool
}

func newPendingTable() *pendingTable {
	t := &pendingTable{results: make(map[int64]pendingResult), waiting: make(map[int64]bool)}
	t.cond = sync.NewCond(&t.mu)
	return t
}

func (t *pendingTable) register(id int64) {
	t.mu.Lock()
	t.waiting[id] = true
	t.mu.Unlock()
}

// release discards a registered slot without delivering a result, used
// when the POST response itself answered the request synchronously so no
// SSE "message" frame delivery is expected.
func (t *pendingTable) release(id int64) {
	t.mu.Lock()
	delete(t.waiting, id)
	delete(t.results, id)
	t.mu.Unlock()
}

func (t *pendingTable) deliver(id int64, data json.RawMessage, err error) {
	t.mu.Lock()
	if t.waiting[id] {
		t.results[id] = pendingResult{data: data, err: err, ok: true}
	}
	t.cond.Broadcast()
	t.mu.Unlock()
}

// wait blocks until id's result arrives, the deadline elapses, or the table
// is closed, whichever comes first.
func (t *pendingTable) wait(ctx context.Context, id int64, deadline time.Time) (json.RawMessage, error) {
	defer func() {
		t.mu.Lock()
		delete(t.waiting, id)
		delete(t.results, id)
		t.mu.Unlock()
	}()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			t.mu.Lock()
			t.cond.Broadcast()
			t.mu.Unlock()
		case <-stop:
		}
	}()
	go func() {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		select {
		case <-timer.C:
			t.mu.Lock()
			t.cond.Broadcast()
			t.mu.Unlock()
		case <-stop:
		}
	}()

	t.mu.Lock()
	defer t.mu.Unlock()
	for {
		if res, ok := t.results[id]; ok {
			return res.data, res.err
		}
		if t.closed {
			return nil, t.closeErr
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !time.Now().Before(deadline) {
			return nil, mcperrors.Transport("sse", "wait", "Timeout waiting for response")
		}
		t.cond.Wait()
	}
}

func (t *pendingTable) closeAll(err error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.closeErr = err
	t.cond.Broadcast()
	t.mu.Unlock()
}

// New constructs an SSE transport from cfg. Connect must be called before
// any RPC.
func New(cfg Config) *Transport {
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = 10 * time.Second
	}
	if cfg.RetryPolicy == (jsonrpc.RetryPolicy{}) {
		cfg.RetryPolicy = jsonrpc.DefaultRetryPolicy
	}
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "sse", "server", cfg.Name)
	t := &Transport{
		cfg:     cfg,
		logger:  logger,
		client:  client,
		state:   transport.Disconnected,
		pending: newPendingTable(),
	}
	t.cond = sync.NewCond(&t.mu)
	return t
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

func (t *Transport) setState(s transport.State) {
	t.mu.Lock()
	t.state = s
	t.cond.Broadcast()
	t.mu.Unlock()
}

func (t *Transport) touchActivity() {
	t.mu.Lock()
	t.lastActivity = time.Now()
	t.mu.Unlock()
}

// Connect opens the long-lived GET stream and starts the reader and
// liveness-monitor goroutines.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.state == transport.Ready || t.state == transport.Connecting || t.state == transport.Initializing {
		t.mu.Unlock()
		return nil
	}
	if t.authError != nil {
		err := t.authError
		t.mu.Unlock()
		return err
	}
	t.state = transport.Connecting
	t.closed = false
	t.mu.Unlock()

	streamCtx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, t.cfg.BaseURL, nil)
	if err != nil {
		cancel()
		t.setState(transport.Failed)
		return mcperrors.ConnectionWrap("sse", "Connect", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	for k, v := range t.cfg.Headers {
		req.Header.Set(k, v)
	}
	if t.cfg.Auth != nil {
		authHeader, aerr := t.cfg.Auth.AuthorizationHeader(ctx)
		if aerr != nil {
			cancel()
			t.latchAuthError(aerr)
			return aerr
		}
		req.Header.Set("Authorization", authHeader)
	}
	if lid := t.LastEventID(); lid != "" {
		req.Header.Set("Last-Event-ID", lid)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		cancel()
		t.setState(transport.Disconnected)
		return mcperrors.ConnectionWrap("sse", "Connect", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		resp.Body.Close()
		cancel()
		if t.cfg.Auth != nil {
			t.cfg.Auth.InvalidateToken()
		}
		err := mcperrors.Connection("sse", "Connect", "Authorization failed: HTTP "+httpStatusText(resp.StatusCode))
		t.latchAuthError(err)
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		cancel()
		t.setState(transport.Disconnected)
		return mcperrors.Connection("sse", "Connect", "unexpected status opening SSE stream: "+httpStatusText(resp.StatusCode))
	}

	pending := newPendingTable()
	streamDone := make(chan struct{})
	t.mu.Lock()
	t.streamCancel = cancel
	t.streamDone = streamDone
	t.monitorDone = make(chan struct{})
	t.connectionEstablished = false
	t.initialized = false
	t.lastActivity = time.Now()
	t.pending = pending
	t.mu.Unlock()

	go t.readLoop(resp.Body, pending, streamDone)
	go t.monitorLoop()

	t.touchActivity()
	t.logger.Debug("sse stream opened")
	return nil
}

func httpStatusText(code int) string {
	return http.StatusText(code)
}

func (t *Transport) latchAuthError(err error) {
	t.mu.Lock()
	t.authError = err
	t.state = transport.Failed
	pending := t.pending
	t.cond.Broadcast()
	t.mu.Unlock()
	pending.closeAll(err)
}

// readLoop consumes the SSE stream frame by frame until EOF/error, then
// tears every waiter down.
func (t *Transport) readLoop(body io.ReadCloser, pending *pendingTable, done chan struct{}) {
	defer close(done)
	defer body.Close()
	sc := ssewire.NewScanner(body)
	for {
		ev, ok := sc.Next()
		if !ok {
			break
		}
		t.touchActivity()
		t.handleFrame(ev, pending)
	}
	cause := sc.Err()
	if cause == nil {
		cause = io.EOF
	}
	t.mu.Lock()
	wasClosing := t.state == transport.Closing
	t.connectionEstablished = false
	t.initialized = false
	if !wasClosing {
		t.state = transport.Disconnected
	}
	t.cond.Broadcast()
	t.mu.Unlock()
	if !wasClosing {
		pending.closeAll(mcperrors.ConnectionWrap("sse", "readLoop", cause))
	}
}

func (t *Transport) handleFrame(ev *ssewire.Event, pending *pendingTable) {
	if ev.ID != "" {
		t.mu.Lock()
		t.lastEventID = ev.ID
		t.mu.Unlock()
	}
	switch ev.Event {
	case "ping":
		return
	case "endpoint":
		t.handleEndpoint(ev.Data)
		return
	default:
		// "message" or unlabeled frames carrying a JSON-RPC object.
		if ev.Data == "" {
			return
		}
		t.handleMessage(ev.Data, pending)
	}
}

func (t *Transport) handleEndpoint(data string) {
	resolved := data
	t.mu.Lock()
	base, err := url.Parse(t.cfg.BaseURL)
	t.mu.Unlock()
	if err == nil {
		if ref, rerr := url.Parse(data); rerr == nil {
			resolved = base.ResolveReference(ref).String()
		}
	}
	t.mu.Lock()
	t.rpcEndpoint = resolved
	t.connectionEstablished = true
	t.state = transport.Initializing
	t.cond.Broadcast()
	t.mu.Unlock()
	t.logger.Debug("sse endpoint discovered", "endpoint", resolved)
}

func (t *Transport) handleMessage(data string, pending *pendingTable) {
	env, err := jsonrpc.ParseEnvelope([]byte(data))
	if err != nil {
		t.logger.Warn("discarding malformed sse message frame", "error", err)
		return
	}
	if env.IsResponse() {
		id, ok := jsonrpc.IDFromEnvelope(env)
		if !ok {
			t.logger.Warn("sse response frame with non-integer id, discarding")
			return
		}
		if env.Error != nil {
			pending.deliver(id, nil, mcperrors.Server("sse", "handleMessage", env.Error.Message, env.Error.Code))
			return
		}
		pending.deliver(id, env.Result, nil)
		return
	}
	if env.IsNotification() {
		t.mu.Lock()
		handler := t.notify
		t.mu.Unlock()
		if handler != nil {
			handler(env.Method, env.Params)
		} else {
			t.logger.Debug("unhandled sse notification", "method", env.Method)
		}
		return
	}
	t.logger.Warn("unrecognized sse message frame shape, discarding")
}

// waitForConnection blocks until the endpoint frame has been received (POSTs
// are permitted) or the deadline elapses / auth latches.
func (t *Transport) waitForConnection(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	t.mu.Lock()
	defer t.mu.Unlock()
	for !t.connectionEstablished {
		if t.authError != nil {
			return t.authError
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !time.Now().Before(deadline) {
			return mcperrors.Transport("sse", "waitForConnection", "Timeout waiting for connection")
		}
		waitOnCond(t.cond, deadline)
	}
	return nil
}

// waitOnCond waits on cond for at most until deadline, using a helper
// goroutine to translate the wall-clock deadline into a Broadcast.
func waitOnCond(cond *sync.Cond, deadline time.Time) {
	timer := time.AfterFunc(time.Until(deadline), cond.Broadcast)
	defer timer.Stop()
	cond.Wait()
}

// LastEventID returns the most recently captured SSE "id:" field.
func (t *Transport) LastEventID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastEventID
}

func (t *Transport) rpcEndpointURL() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rpcEndpoint
}

// rpcRequest posts method/params to the discovered endpoint and correlates
// the result either from the POST's own body or from a later SSE "message"
// frame.
func (t *Transport) rpcRequest(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if err := t.waitForConnection(ctx, t.cfg.ReadTimeout); err != nil {
		return nil, err
	}

	id := t.idgen.Next()
	req, err := jsonrpc.BuildRequest(id, method, params)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, mcperrors.TransportWrap("sse", "rpcRequest", err)
	}

	t.mu.Lock()
	pending := t.pending
	t.mu.Unlock()
	pending.register(id)

	status, body, err := t.post(ctx, raw)
	if err != nil {
		pending.release(id)
		return nil, err
	}

	if status != http.StatusAccepted && len(body) > 0 {
		resp, perr := jsonrpc.ParseResponse(body)
		if perr == nil && (resp.Result != nil || resp.Error != nil) {
			out, rerr := jsonrpc.ProcessResponse(resp)
			pending.release(id)
			return out, rerr
		}
	}

	deadline := time.Now().Add(t.cfg.ReadTimeout)
	data, werr := pending.wait(ctx, id, deadline)
	if werr != nil {
		t.mu.Lock()
		established := t.connectionEstablished
		t.mu.Unlock()
		if !established {
			return nil, mcperrors.Connection("sse", "rpcRequest", "SSE connection lost while waiting for result")
		}
	}
	return data, werr
}

func (t *Transport) rpcNotify(ctx context.Context, method string, params any) error {
	n, err := jsonrpc.BuildNotification(method, params)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(n)
	if err != nil {
		return mcperrors.TransportWrap("sse", "rpcNotify", err)
	}
	_, _, err = t.post(ctx, raw)
	return err
}

func (t *Transport) post(ctx context.Context, body []byte) (int, []byte, error) {
	endpoint := t.rpcEndpointURL()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, mcperrors.TransportWrap("sse", "post", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range t.cfg.Headers {
		req.Header.Set(k, v)
	}
	if t.cfg.Auth != nil {
		authHeader, aerr := t.cfg.Auth.AuthorizationHeader(ctx)
		if aerr != nil {
			return 0, nil, aerr
		}
		req.Header.Set("Authorization", authHeader)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, nil, mcperrors.TransportWrap("sse", "post", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, mcperrors.TransportWrap("sse", "post", err)
	}
	t.touchActivity()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		if t.cfg.Auth != nil {
			t.cfg.Auth.InvalidateToken()
		}
		authErr := mcperrors.Connection("sse", "post", "Authorization failed: HTTP "+httpStatusText(resp.StatusCode))
		t.latchAuthError(authErr)
		return resp.StatusCode, data, authErr
	}
	if resp.StatusCode >= 500 {
		return resp.StatusCode, data, mcperrors.ServerRetryable("sse", "post", "Server error: HTTP "+httpStatusText(resp.StatusCode), resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return resp.StatusCode, data, mcperrors.Server("sse", "post", "Client error: HTTP "+httpStatusText(resp.StatusCode), resp.StatusCode)
	}
	return resp.StatusCode, data, nil
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
		t.setState(transport.Failed)
		return err
	}

	if err := t.rpcNotify(ctx, jsonrpc.NotificationInitialized, nil); err != nil {
		t.setState(transport.Failed)
		return err
	}

	t.mu.Lock()
	t.initialized = true
	t.serverInfo = result.ServerInfo
	t.mu.Unlock()
	t.setState(transport.Ready)
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
// define a schema for streamed partial results, so one-shot semantics are
// kept uniform across transports.
func (t *Transport) CallToolStreaming(ctx context.Context, name string, arguments any) (<-chan transport.StreamChunk, error) {
	ch := make(chan transport.StreamChunk, 1)
	result, err := t.CallTool(ctx, name, arguments)
	ch <- transport.StreamChunk{Result: result, Err: err}
	close(ch)
	return ch, nil
}

// monitorLoop is the reconnect/liveness monitor: it pings when the stream
// has been idle past PingInterval, and triggers a bounded reconnect
// sequence on repeated failure.
func (t *Transport) monitorLoop() {
	defer close(t.monitorDone)
	ticker := time.NewTicker(t.cfg.PingInterval)
	defer ticker.Stop()
	for range ticker.C {
		t.mu.Lock()
		closed := t.closed
		idle := time.Since(t.lastActivity)
		established := t.connectionEstablished
		t.mu.Unlock()
		if closed {
			return
		}
		if !established || idle < t.cfg.PingInterval {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), t.cfg.ReadTimeout)
		_, err := t.rpcRequest(ctx, jsonrpc.MethodPing, nil)
		cancel()
		if err != nil {
			t.mu.Lock()
			t.consecutivePingFails++
			fails := t.consecutivePingFails
			t.mu.Unlock()
			t.logger.Warn("liveness ping failed", "consecutive_failures", fails, "error", err)
			if fails >= t.cfg.RetryPolicy.MaxRetries+1 {
				t.attemptReconnect()
				return
			}
			continue
		}
		t.mu.Lock()
		t.consecutivePingFails = 0
		t.mu.Unlock()
	}
}

// attemptReconnect tears the current stream down and reconnects with
// exponential backoff, making up to RetryPolicy.MaxRetries+1 attempts.
func (t *Transport) attemptReconnect() {
	_ = t.Cleanup()
	backoff := t.cfg.RetryPolicy.Backoff
	if backoff == 0 {
		backoff = time.Second
	}
	for attempt := 1; attempt <= t.cfg.RetryPolicy.MaxRetries+1; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), t.cfg.ReadTimeout)
		err := t.Connect(ctx)
		cancel()
		if err == nil {
			t.logger.Info("sse transport reconnected", "attempt", attempt)
			return
		}
		t.logger.Warn("sse reconnect attempt failed", "attempt", attempt, "error", err)
		time.Sleep(backoff * time.Duration(1<<uint(attempt-1)))
	}
	t.logger.Error("sse transport exhausted reconnect attempts")
}

// Cleanup tears down the stream, stops the monitor, and unblocks every
// waiter with a terminal failure. Idempotent.
func (t *Transport) Cleanup() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.state = transport.Closing
	cancel := t.streamCancel
	streamDone := t.streamDone
	pending := t.pending
	t.cond.Broadcast()
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if streamDone != nil {
		select {
		case <-streamDone:
		case <-time.After(5 * time.Second):
		}
	}

	pending.closeAll(mcperrors.Connection("sse", "Cleanup", "transport closed"))
	t.setState(transport.Disconnected)
	return nil
}
