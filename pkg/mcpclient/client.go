package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	mcperrors "github.com/jamesprial/mcp-client/internal/errors"
	"github.com/jamesprial/mcp-client/internal/transport"
)

// Config configures a Client.
type Config struct {
	// Servers are the named transports the Client fans requests across,
	// typically built by internal/serverconfig.Build.
	Servers []transport.Transport
	Logger  *slog.Logger
}

// toolCacheEntry is the atomic.Value payload backing the tool cache.
type toolCacheEntry struct {
	valid bool
	tools []Tool
}

// Client is the aggregating facade fanning a tool catalog and tool calls
// out across every registered server transport.
type Client struct {
	logger  *slog.Logger
	servers map[string]transport.Transport
	order   []string // deterministic iteration order

	toolCache atomic.Value // toolCacheEntry

	mu        sync.Mutex
	listeners []func(serverName, method string, params json.RawMessage)

	cleanupOnce sync.Once
}

// New constructs a Client from cfg. Each server's notification handler is
// wired to the Client's own dispatch before any transport connects, so no
// early notification is lost (per the Transport interface's contract).
func New(cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		logger:  logger,
		servers: make(map[string]transport.Transport, len(cfg.Servers)),
	}
	c.toolCache.Store(toolCacheEntry{})
	for i, t := range cfg.Servers {
		name := t.Name()
		if name == "" {
			name = fmt.Sprintf("server-%d", i)
		}
		if _, taken := c.servers[name]; taken {
			name = fmt.Sprintf("%s-%d", name, i)
		}
		c.servers[name] = t
		c.order = append(c.order, name)
		t.SetNotificationHandler(c.dispatchFor(name))
	}
	return c
}

func (c *Client) dispatchFor(serverName string) transport.NotificationHandler {
	return func(method string, params json.RawMessage) {
		if method == "notifications/tools/list_changed" {
			c.clearCacheLocked()
		}
		c.mu.Lock()
		listeners := append([]func(string, string, json.RawMessage){}, c.listeners...)
		c.mu.Unlock()
		for _, fn := range listeners {
			fn(serverName, method, params)
		}
	}
}

func (c *Client) clearCacheLocked() {
	c.toolCache.Store(toolCacheEntry{})
}

// ClearCache invalidates the cached tool catalog.
func (c *Client) ClearCache() {
	c.clearCacheLocked()
}

// OnNotification registers a listener invoked, serially on whichever
// transport's reader observed it, for every server-originated
// notification.
func (c *Client) OnNotification(fn func(serverName, method string, params json.RawMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Servers returns the configured server names, in registration order.
func (c *Client) Servers() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// ServerStatus reports a server's current connection state.
func (c *Client) ServerStatus(name string) (transport.State, error) {
	t, ok := c.servers[name]
	if !ok {
		return transport.Disconnected, mcperrors.ServerNotFound(name)
	}
	return t.State(), nil
}

func (c *Client) ensureConnected(ctx context.Context, t transport.Transport) error {
	if t.State() == transport.Disconnected {
		if err := t.Connect(ctx); err != nil {
			return err
		}
	}
	return t.EnsureInitialized(ctx)
}

// ListTools ensures every server is connected and merges their tool
// catalogs, caching the result until ClearCache or a
// notifications/tools/list_changed notification arrives.
func (c *Client) ListTools(ctx context.Context, cacheOK bool) ([]Tool, error) {
	if cacheOK {
		if entry, ok := c.toolCache.Load().(toolCacheEntry); ok && entry.valid {
			out := make([]Tool, len(entry.tools))
			copy(out, entry.tools)
			return out, nil
		}
	}

	var all []Tool
	for _, name := range c.order {
		t := c.servers[name]
		if err := c.ensureConnected(ctx, t); err != nil {
			return nil, err
		}
		descs, err := t.ListTools(ctx)
		if err != nil {
			return nil, err
		}
		for _, d := range descs {
			all = append(all, toolFromDescription(name, d))
		}
	}

	c.toolCache.Store(toolCacheEntry{valid: true, tools: all})
	out := make([]Tool, len(all))
	copy(out, all)
	return out, nil
}

// FindTools returns every cached Tool whose name matches pattern as a
// regular expression when pattern compiles as one, and otherwise every
// Tool whose name contains pattern as a substring.
func (c *Client) FindTools(ctx context.Context, pattern string) ([]Tool, error) {
	tools, err := c.ListTools(ctx, true)
	if err != nil {
		return nil, err
	}
	if re, err := regexp.Compile(pattern); err == nil {
		var matches []Tool
		for _, t := range tools {
			if re.MatchString(t.Name) {
				matches = append(matches, t)
			}
		}
		return matches, nil
	}
	var matches []Tool
	for _, t := range tools {
		if strings.Contains(t.Name, pattern) {
			matches = append(matches, t)
		}
	}
	return matches, nil
}

// FindTool returns the first Tool matching pattern, per FindTools.
func (c *Client) FindTool(ctx context.Context, pattern string) (Tool, error) {
	matches, err := c.FindTools(ctx, pattern)
	if err != nil {
		return Tool{}, err
	}
	if len(matches) == 0 {
		return Tool{}, mcperrors.ToolNotFound(pattern)
	}
	return matches[0], nil
}

// resolveServer finds the transport that should handle a tool call,
// disambiguating by serverName when given.
func (c *Client) resolveServer(ctx context.Context, name, serverName string) (transport.Transport, error) {
	if serverName != "" {
		t, ok := c.servers[serverName]
		if !ok {
			return nil, mcperrors.ServerNotFound(serverName)
		}
		return t, nil
	}

	tools, err := c.ListTools(ctx, true)
	if err != nil {
		return nil, err
	}
	var owners []string
	for _, t := range tools {
		if t.Name == name {
			owners = append(owners, t.ServerName)
		}
	}
	switch len(owners) {
	case 0:
		return nil, mcperrors.ToolNotFound(name)
	case 1:
		return c.servers[owners[0]], nil
	default:
		return nil, mcperrors.AmbiguousTool(name, owners)
	}
}

// CallTool issues tools/call against the resolved server.
func (c *Client) CallTool(ctx context.Context, name string, params any, serverName string) (json.RawMessage, error) {
	t, err := c.resolveServer(ctx, name, serverName)
	if err != nil {
		return nil, err
	}
	if err := c.ensureConnected(ctx, t); err != nil {
		return nil, err
	}
	return t.CallTool(ctx, name, params)
}

// ToolCall is one request batched through CallTools.
type ToolCall struct {
	Name       string
	Params     any
	ServerName string
}

// ToolCallResult is one result of a batched CallTools call.
type ToolCallResult struct {
	Result json.RawMessage
	Err    error
}

// CallTools sequentially fans out batch, capturing per-item errors
// alongside successes rather than aborting the batch.
func (c *Client) CallTools(ctx context.Context, batch []ToolCall) []ToolCallResult {
	out := make([]ToolCallResult, len(batch))
	for i, call := range batch {
		result, err := c.CallTool(ctx, call.Name, call.Params, call.ServerName)
		out[i] = ToolCallResult{Result: result, Err: err}
	}
	return out
}

// CallToolStreaming returns a channel yielding the tool call's result
// chunks, delegating to the owning transport.
func (c *Client) CallToolStreaming(ctx context.Context, name string, params any, serverName string) (<-chan transport.StreamChunk, error) {
	t, err := c.resolveServer(ctx, name, serverName)
	if err != nil {
		return nil, err
	}
	if err := c.ensureConnected(ctx, t); err != nil {
		return nil, err
	}
	return t.CallToolStreaming(ctx, name, params)
}

// Cleanup tears down every registered transport. Idempotent.
func (c *Client) Cleanup() error {
	var firstErr error
	c.cleanupOnce.Do(func() {
		for _, name := range c.order {
			if err := c.servers[name].Cleanup(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	})
	return firstErr
}
