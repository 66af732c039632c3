// Package jsonrpc provides the transport-agnostic JSON-RPC 2.0 framing,
// correlation helpers, and MCP handshake constants shared by every
// transport (stdio, sse, http, streamable_http). This package performs no
// I/O; it only builds and parses messages.
package jsonrpc

import (
	"encoding/json"
	"fmt"

	mcperrors "github.com/jamesprial/mcp-client/internal/errors"
)

// ProtocolVersion is the MCP wire protocol version this client speaks.
const ProtocolVersion = "2025-03-26"

// ClientName is the clientInfo.name sent during the initialize handshake.
const ClientName = "mcp-go-client"

// ClientVersion is the clientInfo.version sent during the initialize
// handshake.
const ClientVersion = "1.0.0"

// MCP method and notification names.
const (
	MethodInitialize = "initialize"
	MethodToolsList  = "tools/list"
	MethodToolsCall  = "tools/call"
	MethodPing       = "ping"

	NotificationInitialized     = "notifications/initialized"
	NotificationToolsListChange = "notifications/tools/list_changed"
)

// Standard JSON-RPC 2.0 error codes. The transports in this module do not
// answer server->client requests (they discard them), so no code here
// sends these values.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Request is an outbound or inbound JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Notification is a JSON-RPC 2.0 message with no id: no response is
// expected for one we send, and none is produced for one we receive.
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Response is a JSON-RPC 2.0 response: exactly one of Result or Error is
// set on a well-formed message.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.Number     `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// Envelope is used to sniff an inbound frame before deciding whether it is
// a Response (has "id" and either "result" or "error"), a server->client
// Request (has "id" and "method"), or a Notification (has "method", no
// "id").
type Envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *json.Number    `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// IsResponse reports whether the envelope carries a result or error (i.e.
// is a response to a request this client sent), as opposed to a
// server-originated request or notification.
func (e *Envelope) IsResponse() bool {
	return e.ID != nil && (e.Result != nil || e.Error != nil)
}

// IsNotification reports whether the envelope has a method and no id.
func (e *Envelope) IsNotification() bool {
	return e.ID == nil && e.Method != ""
}

// BuildRequest constructs a JSON-RPC request object for method with the
// given id and params (params may be nil).
func BuildRequest(id int64, method string, params any) (*Request, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, mcperrors.TransportWrap("jsonrpc", "BuildRequest", err)
	}
	return &Request{JSONRPC: "2.0", ID: id, Method: method, Params: raw}, nil
}

// BuildNotification constructs a JSON-RPC notification object (no id) for
// method with the given params.
func BuildNotification(method string, params any) (*Notification, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, mcperrors.TransportWrap("jsonrpc", "BuildNotification", err)
	}
	return &Notification{JSONRPC: "2.0", Method: method, Params: raw}, nil
}

func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	return json.Marshal(params)
}

// ProcessResponse extracts the result from a Response, failing with a
// ServerError if the response carries an error object.
func ProcessResponse(resp *Response) (json.RawMessage, error) {
	if resp.Error != nil {
		return nil, mcperrors.Server("jsonrpc", "ProcessResponse", resp.Error.Message, resp.Error.Code)
	}
	return resp.Result, nil
}

// ClientInfo identifies this client in the initialize handshake.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeParams is the params object sent with the "initialize"
// request.
type InitializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      ClientInfo     `json:"clientInfo"`
}

// InitializationParams builds the standard initialize params: protocol
// version, empty capabilities object, and this client's identity.
func InitializationParams() InitializeParams {
	return InitializeParams{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo:      ClientInfo{Name: ClientName, Version: ClientVersion},
	}
}

// ServerInfo is the serverInfo object returned in an initialize result.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult is the result object of a successful "initialize" call.
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	ServerInfo      ServerInfo     `json:"serverInfo"`
	Capabilities    map[string]any `json:"capabilities"`
}

// ToolsCallParams is the params object for a "tools/call" request.
type ToolsCallParams struct {
	Name      string `json:"name"`
	Arguments any    `json:"arguments"`
}

// ToolDescription is a single element of a tools/list result.
type ToolDescription struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// ToolsListResult is the result object of a "tools/list" call.
type ToolsListResult struct {
	Tools []ToolDescription `json:"tools"`
}

// ParseEnvelope parses a raw frame (one JSON object) into an Envelope,
// failing with a TransportError on malformed JSON.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, mcperrors.TransportWrap("jsonrpc", "ParseEnvelope", err)
	}
	return &e, nil
}

// ParseResponse parses a raw frame expected to be a Response.
func ParseResponse(data []byte) (*Response, error) {
	var r Response
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, mcperrors.TransportWrap("jsonrpc", "ParseResponse", err)
	}
	return &r, nil
}

// IDFromEnvelope extracts the integer request id from an Envelope's id
// field, which arrives as a json.Number.
func IDFromEnvelope(e *Envelope) (int64, bool) {
	if e.ID == nil {
		return 0, false
	}
	n, err := e.ID.Int64()
	if err != nil {
		return 0, false
	}
	return n, true
}

// IDFromResponse extracts the integer request id from a Response.
func IDFromResponse(r *Response) (int64, error) {
	n, err := r.ID.Int64()
	if err != nil {
		return 0, fmt.Errorf("non-integer response id %q: %w", r.ID.String(), err)
	}
	return n, nil
}
