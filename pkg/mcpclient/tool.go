// Package mcpclient is the public surface of the library: Tool, the
// aggregating Client facade, and the constructors applications use to
// build a Client from server-definition records.
package mcpclient

import (
	"encoding/json"

	"github.com/jamesprial/mcp-client/internal/jsonrpc"
)

// Tool is an immutable catalog entry produced by a successful tools/list.
// Tool identity within a Client is (ServerName, Name); Name alone may be
// ambiguous across servers.
type Tool struct {
	Name        string
	Description string
	Schema      map[string]any

	// ServerName is a weak reference to the owning transport: a label,
	// not a pointer, so a Tool value can outlive a reconnect cycle.
	ServerName string
}

func toolFromDescription(serverName string, d jsonrpc.ToolDescription) Tool {
	return Tool{
		Name:        d.Name,
		Description: d.Description,
		Schema:      d.InputSchema,
		ServerName:  serverName,
	}
}

// FunctionSchema is the trivial structural projection into the shape most
// LLM function-calling APIs expect. Anything vendor-specific beyond this
// is left to the embedder.
type FunctionSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// AsFunctionSchema projects t into FunctionSchema.
func (t Tool) AsFunctionSchema() FunctionSchema {
	params, _ := json.Marshal(t.Schema)
	return FunctionSchema{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  params,
	}
}
