// Package errors provides the error taxonomy shared by every transport and
// by the Client facade. All library-raised errors wrap one of the sentinel
// kinds below inside a *DomainError, so callers can use errors.Is against
// either the sentinel or the exported MCPError marker.
package errors

import (
	"errors"
	"fmt"
)

// MCPError is the root marker. errors.Is(err, MCPError) is true for every
// error this library raises, regardless of its specific kind.
var MCPError = errors.New("mcp error")

// Sentinel kinds.
var (
	// ErrToolNotFound indicates the requested tool name is unknown to any
	// registered server.
	ErrToolNotFound = errors.New("tool not found")

	// ErrAmbiguousTool indicates a tool name matches more than one server
	// and the caller must disambiguate with a server name.
	ErrAmbiguousTool = errors.New("ambiguous tool name")

	// ErrServerNotFound indicates a named server is absent from the
	// registry.
	ErrServerNotFound = errors.New("server not found")

	// ErrToolCallFailed is a generic failure during a tool call not
	// otherwise classified.
	ErrToolCallFailed = errors.New("tool call failed")

	// ErrConnection indicates transport-level loss, auth failure, or an
	// inability to establish a session.
	ErrConnection = errors.New("connection error")

	// ErrServer indicates the peer reported a JSON-RPC error object, or an
	// HTTP 4xx/5xx status not covered by ErrConnection.
	ErrServer = errors.New("server error")

	// ErrTransport indicates malformed framing, a JSON parse failure, or a
	// request timeout.
	ErrTransport = errors.New("transport error")
)

// DomainError is a domain-specific error with context: a Kind sentinel
// for classification, an optional wrapped Err for the underlying cause,
// and free-form Context for debugging attributes (server name, method,
// request id, HTTP status...).
type DomainError struct {
	// Domain identifies the subsystem where the error occurred (e.g.
	// "stdio", "sse", "oauth", "client").
	Domain string

	// Op identifies the operation that failed (e.g. "CallTool", "connect").
	Op string

	// Kind is the sentinel error that categorizes this error.
	Kind error

	// Err is the underlying wrapped error, if any.
	Err error

	// Context provides additional key-value pairs for debugging.
	Context map[string]interface{}
}

// New creates a new DomainError.
func New(domain, op string, kind, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Err:     err,
		Context: make(map[string]interface{}),
	}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %v: %v", e.Domain, e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s.%s: %v", e.Domain, e.Op, e.Kind)
}

// Unwrap returns the underlying wrapped error.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether this error matches target: every DomainError matches
// MCPError, plus its own Kind and wrapped-error chain.
func (e *DomainError) Is(target error) bool {
	if target == MCPError {
		return true
	}
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// WithContext adds a key-value pair to the error's context and returns the
// error, for chaining at the call site.
func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// ToolNotFound builds an ErrToolNotFound DomainError.
func ToolNotFound(name string) *DomainError {
	return New("client", "CallTool", ErrToolNotFound, nil).WithContext("tool", name)
}

// AmbiguousTool builds an ErrAmbiguousTool DomainError listing the
// candidate server names.
func AmbiguousTool(name string, servers []string) *DomainError {
	return New("client", "CallTool", ErrAmbiguousTool, nil).
		WithContext("tool", name).
		WithContext("servers", servers)
}

// ServerNotFound builds an ErrServerNotFound DomainError.
func ServerNotFound(name string) *DomainError {
	return New("client", "resolveServer", ErrServerNotFound, nil).WithContext("server", name)
}

// Connection builds an ErrConnection DomainError from a message. Used both
// for transport loss and for OAuth authorization failures that latch a
// transport into FAILED state.
func Connection(domain, op, message string) *DomainError {
	return New(domain, op, ErrConnection, errors.New(message))
}

// ConnectionWrap builds an ErrConnection DomainError wrapping cause.
func ConnectionWrap(domain, op string, cause error) *DomainError {
	return New(domain, op, ErrConnection, cause)
}

// Server builds an ErrServer DomainError carrying the peer's JSON-RPC code
// (or an HTTP status) in Context["rpc_code"].
func Server(domain, op, message string, code int) *DomainError {
	return New(domain, op, ErrServer, errors.New(message)).WithContext("rpc_code", code)
}

// ServerRetryable builds an ErrServer DomainError for an HTTP 5xx
// response: reported with the ServerError kind but, unlike other
// ServerErrors, retried by WithRetry.
func ServerRetryable(domain, op, message string, code int) *DomainError {
	return Server(domain, op, message, code).WithContext("retryable", true)
}

// Transport builds an ErrTransport DomainError.
func Transport(domain, op, message string) *DomainError {
	return New(domain, op, ErrTransport, errors.New(message))
}

// TransportWrap builds an ErrTransport DomainError wrapping cause.
func TransportWrap(domain, op string, cause error) *DomainError {
	return New(domain, op, ErrTransport, cause)
}

// ToolCallFailed builds a generic ErrToolCallFailed DomainError.
func ToolCallFailed(domain, op string, cause error) *DomainError {
	return New(domain, op, ErrToolCallFailed, cause)
}

// IsRetryable reports whether err is a transient failure with_retry should
// retry: ErrTransport (malformed framing, timeouts, connection resets)
// always, plus an ErrServer built by ServerRetryable (an HTTP 5xx). A
// well-formed JSON-RPC peer error or a latched auth failure (ErrConnection)
// must never be retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConnection) {
		return false
	}
	var de *DomainError
	if errors.As(err, &de) && errors.Is(de.Kind, ErrServer) {
		retryable, _ := de.Context["retryable"].(bool)
		return retryable
	}
	return errors.Is(err, ErrTransport)
}
