package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	mcperrors "github.com/jamesprial/mcp-client/internal/errors"
	"github.com/jamesprial/mcp-client/internal/jsonrpc"
)

// newFakeRPCServer answers initialize/tools/list/tools/call over plain
// JSON POST bodies and counts initialize requests.
func newFakeRPCServer(initCount *atomic.Int64) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req jsonrpc.Request
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		switch req.Method {
		case jsonrpc.MethodInitialize:
			initCount.Add(1)
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"result":{"serverInfo":{"name":"h","version":"1"},"capabilities":{}}}`, req.ID)
		case jsonrpc.NotificationInitialized:
			w.WriteHeader(http.StatusAccepted)
		case jsonrpc.MethodToolsList:
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"result":{"tools":[{"name":"echo","description":"e","inputSchema":{"type":"object"}}]}}`, req.ID)
		case jsonrpc.MethodToolsCall:
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"result":{"content":[{"type":"text","text":"hi"}]}}`, req.ID)
		default:
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"error":{"code":-32601,"message":"method not found"}}`, req.ID)
		}
	}))
}

func TestListToolsAndCallTool(t *testing.T) {
	t.Parallel()

	var initCount atomic.Int64
	srv := newFakeRPCServer(&initCount)
	defer srv.Close()

	tr := New(Config{BaseURL: srv.URL, Name: "h"})
	ctx := context.Background()

	tools, err := tr.ListTools(ctx)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(tools) != 1 || tools[0].Name != "echo" {
		t.Fatalf("ListTools = %+v, want one tool named echo", tools)
	}

	raw, err := tr.CallTool(ctx, "echo", map[string]any{"msg": "hi"})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if len(raw) == 0 {
		t.Fatal("expected non-empty result")
	}

	if got := initCount.Load(); got != 1 {
		t.Errorf("initialize was sent %d times, want exactly 1", got)
	}
}

func TestRelativeEndpointResolvesAgainstBaseURL(t *testing.T) {
	t.Parallel()

	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var req jsonrpc.Request
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"result":{"serverInfo":{"name":"h","version":"1"},"capabilities":{}}}`, req.ID)
	}))
	defer srv.Close()

	tr := New(Config{BaseURL: srv.URL, Endpoint: "/rpc", Name: "rel"})
	if err := tr.EnsureInitialized(context.Background()); err != nil {
		t.Fatalf("EnsureInitialized: %v", err)
	}
	if gotPath != "/rpc" {
		t.Errorf("request path = %q, want /rpc", gotPath)
	}
}

func TestUnauthorizedMapsToConnectionError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	tr := New(Config{BaseURL: srv.URL, Name: "authless"})
	_, err := tr.CallTool(context.Background(), "echo", nil)
	if !errors.Is(err, mcperrors.ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
}

func TestServerJSONRPCErrorIsServerError(t *testing.T) {
	t.Parallel()

	var initCount atomic.Int64
	srv := newFakeRPCServer(&initCount)
	defer srv.Close()

	tr := New(Config{BaseURL: srv.URL, Name: "h"})
	_, err := tr.rpcRequest(context.Background(), "no/such/method", nil)
	if !errors.Is(err, mcperrors.ErrServer) {
		t.Fatalf("expected ErrServer, got %v", err)
	}
}
