// Package stdio implements the stdio MCP transport: a spawned child
// process exchanging newline-delimited JSON-RPC over its stdin/stdout.
package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	mcperrors "github.com/jamesprial/mcp-client/internal/errors"
	"github.com/jamesprial/mcp-client/internal/jsonrpc"
	"github.com/jamesprial/mcp-client/internal/transport"
)

// Config describes how to spawn and supervise the child process.
type Config struct {
	// Argv is the argument vector: Argv[0] is the executable, the rest
	// are its arguments. There is no shell invocation anywhere in this
	// transport, so shell metacharacters in any element are inert.
	Argv []string
	// Env is merged into the child's environment (on top of the
	// current process environment, not replacing it).
	Env map[string]string
	// Name is this server's logical name, used in logs and for
	// disambiguating tool calls across servers.
	Name string
	// ReadTimeout bounds how long rpcRequest waits for a matching
	// response. Defaults to 30s.
	ReadTimeout time.Duration
	// RetryPolicy governs with_retry around each RPC. Defaults to
	// jsonrpc.DefaultRetryPolicy.
	RetryPolicy jsonrpc.RetryPolicy
	Logger      *slog.Logger
}

// Transport is the stdio MCP transport.
type Transport struct {
	cfg    Config
	logger *slog.Logger

	mu          sync.Mutex
	cond        *sync.Cond
	state       transport.State
	cmd         *exec.Cmd
	stdin       io.WriteCloser
	readerDone  chan struct{}
	initialized bool
	serverInfo  jsonrpc.ServerInfo
	authError   error

	pending *transport.PendingTable
	idgen   transport.IDGenerator
	notify  transport.NotificationHandler
}

// New constructs a stdio transport from cfg. Connect must be called
// before any RPC.
func New(cfg Config) *Transport {
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.RetryPolicy == (jsonrpc.RetryPolicy{}) {
		cfg.RetryPolicy = jsonrpc.DefaultRetryPolicy
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "stdio", "server", cfg.Name)
	t := &Transport{
		cfg:     cfg,
		logger:  logger,
		state:   transport.Disconnected,
		pending: transport.NewPendingTable(),
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

// Connect spawns the child process and starts the background reader.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.state == transport.Ready || t.state == transport.Connecting || t.state == transport.Initializing {
		t.mu.Unlock()
		return nil
	}
	t.state = transport.Connecting
	t.mu.Unlock()

	if len(t.cfg.Argv) == 0 {
		return mcperrors.Connection("stdio", "Connect", "empty command")
	}

	cmd := exec.Command(t.cfg.Argv[0], t.cfg.Argv[1:]...)
	cmd.Env = mergeEnv(os.Environ(), t.cfg.Env)
	cmd.Stderr = nil

	stdin, err := cmd.StdinPipe()
	if err != nil {
		t.setState(transport.Failed)
		return mcperrors.ConnectionWrap("stdio", "Connect", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		t.setState(transport.Failed)
		return mcperrors.ConnectionWrap("stdio", "Connect", err)
	}

	if err := cmd.Start(); err != nil {
		t.setState(transport.Failed)
		return mcperrors.ConnectionWrap("stdio", "Connect", err)
	}

	pending := transport.NewPendingTable()
	readerDone := make(chan struct{})
	t.mu.Lock()
	t.cmd = cmd
	t.stdin = stdin
	t.readerDone = readerDone
	t.initialized = false
	t.pending = pending
	t.mu.Unlock()

	go t.readLoop(stdout, pending, readerDone)

	t.setState(transport.Initializing)
	t.logger.Debug("child process spawned", "argv", t.cfg.Argv)
	return nil
}

func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	out := make([]string, len(base), len(base)+len(extra))
	copy(out, base)
	for k, v := range extra {
		out = append(out, k+"="+v)
	}
	return out
}

// readLoop consumes stdout line by line until EOF or a read error, then
// tears every waiter down with a terminal failure.
func (t *Transport) readLoop(stdout io.Reader, pending *transport.PendingTable, done chan struct{}) {
	defer close(done)
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		env, err := jsonrpc.ParseEnvelope(line)
		if err != nil {
			t.logger.Warn("discarding malformed line", "error", err)
			continue
		}
		t.dispatch(env, pending)
	}
	cause := scanner.Err()
	if cause == nil {
		cause = io.EOF
	}
	t.mu.Lock()
	t.initialized = false
	t.mu.Unlock()
	t.setState(transport.Disconnected)
	pending.CloseAll(mcperrors.ConnectionWrap("stdio", "readLoop", cause))
}

func (t *Transport) dispatch(env *jsonrpc.Envelope, pending *transport.PendingTable) {
	if env.IsResponse() {
		id, ok := jsonrpc.IDFromEnvelope(env)
		if !ok {
			t.logger.Warn("response envelope with non-integer id, discarding")
			return
		}
		if env.Error != nil {
			pending.Deliver(id, nil, mcperrors.Server("stdio", "dispatch", env.Error.Message, env.Error.Code))
			return
		}
		pending.Deliver(id, env.Result, nil)
		return
	}
	if env.IsNotification() {
		t.mu.Lock()
		handler := t.notify
		t.mu.Unlock()
		if handler != nil {
			handler(env.Method, env.Params)
		} else {
			t.logger.Debug("unhandled notification", "method", env.Method)
		}
		return
	}
	t.logger.Warn("unrecognized frame shape, discarding")
}

// writeLine serializes one frame to the child's stdin, holding the
// transport mutex for the duration of the write.
func (t *Transport) writeLine(raw []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stdin == nil {
		return mcperrors.Connection("stdio", "writeLine", "not connected")
	}
	if _, err := t.stdin.Write(append(raw, '\n')); err != nil {
		return mcperrors.TransportWrap("stdio", "writeLine", err)
	}
	return nil
}

// rpcRequest sends method/params as a request and waits up to
// ReadTimeout for the matching response.
func (t *Transport) rpcRequest(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := t.idgen.Next()
	req, err := jsonrpc.BuildRequest(id, method, params)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, mcperrors.TransportWrap("stdio", "rpcRequest", err)
	}

	t.mu.Lock()
	pending := t.pending
	t.mu.Unlock()

	ch, err := pending.Register(id)
	if err != nil {
		return nil, err
	}

	if err := t.writeLine(raw); err != nil {
		pending.Reap(id)
		return nil, err
	}

	timer := time.NewTimer(t.cfg.ReadTimeout)
	defer timer.Stop()
	select {
	case res := <-ch:
		return res.Data, res.Err
	case <-timer.C:
		pending.Reap(id)
		return nil, mcperrors.Transport("stdio", "rpcRequest", "Timeout waiting for response")
	case <-ctx.Done():
		pending.Reap(id)
		return nil, ctx.Err()
	}
}

// rpcNotify writes a notification without waiting for a reply.
func (t *Transport) rpcNotify(method string, params any) error {
	n, err := jsonrpc.BuildNotification(method, params)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(n)
	if err != nil {
		return mcperrors.TransportWrap("stdio", "rpcNotify", err)
	}
	return t.writeLine(raw)
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

	if err := t.rpcNotify(jsonrpc.NotificationInitialized, nil); err != nil {
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

// CallToolStreaming yields exactly one chunk: a compatibility shim over
// CallTool, since stdio has no streamed delivery.
func (t *Transport) CallToolStreaming(ctx context.Context, name string, arguments any) (<-chan transport.StreamChunk, error) {
	ch := make(chan transport.StreamChunk, 1)
	result, err := t.CallTool(ctx, name, arguments)
	ch <- transport.StreamChunk{Result: result, Err: err}
	close(ch)
	return ch, nil
}

// Cleanup closes stdin, waits for the reader to observe EOF (bounded),
// and reaps the child. Idempotent.
func (t *Transport) Cleanup() error {
	t.mu.Lock()
	if t.state == transport.Closing || (t.state == transport.Disconnected && t.cmd == nil) {
		t.mu.Unlock()
		return nil
	}
	t.state = transport.Closing
	stdin := t.stdin
	cmd := t.cmd
	done := t.readerDone
	pending := t.pending
	t.mu.Unlock()

	if stdin != nil {
		_ = stdin.Close()
	}

	if done != nil {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.logger.Warn("reader did not exit within bound, killing child")
		}
	}

	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}

	pending.CloseAll(mcperrors.Connection("stdio", "Cleanup", "transport closed"))
	t.setState(transport.Disconnected)
	return nil
}
