// Package transport defines the contracts shared by every concrete
// transport (stdio, sse, http, streamable_http): connection state, the
// pending-request arena, and the Transport interface the Client facade
// and the server factory program against. No transport-specific I/O
// lives here.
package transport

import (
	"context"
	"encoding/json"

	"github.com/jamesprial/mcp-client/internal/jsonrpc"
)

// State is a transport instance's position in the connection lifecycle.
type State int

const (
	Disconnected State = iota
	Connecting
	Initializing
	Ready
	Failed
	Closing
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Connecting:
		return "CONNECTING"
	case Initializing:
		return "INITIALIZING"
	case Ready:
		return "READY"
	case Failed:
		return "FAILED"
	case Closing:
		return "CLOSING"
	default:
		return "UNKNOWN"
	}
}

// NotificationHandler is invoked, serially on the transport's reader, for
// every server-originated notification (including ones this client has no
// built-in handling for — those are simply forwarded).
type NotificationHandler func(method string, params json.RawMessage)

// StreamChunk is one element of a CallToolStreaming sequence.
type StreamChunk struct {
	Result json.RawMessage
	Err    error
}

// Transport is the contract every concrete transport satisfies. The
// Client facade and the server factory depend only on this interface.
type Transport interface {
	// Name returns the configured server name (may be empty).
	Name() string

	// Connect performs transport-level connection establishment (spawn,
	// dial, or open the SSE stream) but not the MCP handshake.
	Connect(ctx context.Context) error

	// EnsureInitialized performs the initialize handshake exactly once
	// per connected session; it is idempotent and safe to call before
	// every RPC.
	EnsureInitialized(ctx context.Context) error

	// ListTools issues tools/list and returns the raw tool descriptions.
	ListTools(ctx context.Context) ([]jsonrpc.ToolDescription, error)

	// CallTool issues tools/call and returns the raw JSON result.
	CallTool(ctx context.Context, name string, arguments any) (json.RawMessage, error)

	// CallToolStreaming returns a channel yielding the tool call's result
	// chunks. Every transport currently yields exactly one chunk (the
	// final result); the channel is closed after that chunk (or after an
	// error chunk). The protocol does not yet define a schema for partial
	// results.
	CallToolStreaming(ctx context.Context, name string, arguments any) (<-chan StreamChunk, error)

	// SetNotificationHandler registers the single listener invoked for
	// every server->client notification. Must be called before Connect to
	// avoid missing early notifications.
	SetNotificationHandler(handler NotificationHandler)

	// State reports the current connection state.
	State() State

	// ServerInfo returns the serverInfo recorded from the last successful
	// initialize handshake. Zero value before one has happened.
	ServerInfo() jsonrpc.ServerInfo

	// Cleanup tears down the transport: closes connections/processes and
	// unblocks every waiter with a terminal failure. Idempotent.
	Cleanup() error
}
