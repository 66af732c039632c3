package streamablehttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jamesprial/mcp-client/internal/jsonrpc"
)

// TestSSEBodyResponse exercises a POST response with Content-Type:
// text/event-stream carrying one "message" frame.
func TestSSEBodyResponse(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req jsonrpc.Request
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "text/event-stream")
		switch req.Method {
		case jsonrpc.MethodInitialize:
			fmt.Fprintf(w, "event: message\nid: 1\ndata: {\"jsonrpc\":\"2.0\",\"id\":%d,\"result\":{\"serverInfo\":{\"name\":\"x\",\"version\":\"1\"},\"capabilities\":{}}}\n\n", req.ID)
		case jsonrpc.NotificationInitialized:
			w.WriteHeader(http.StatusAccepted)
		default:
			fmt.Fprintf(w, "event: message\nid: 7\ndata: {\"jsonrpc\":\"2.0\",\"id\":%d,\"result\":{\"ok\":true}}\n\n", req.ID)
		}
	}))
	defer srv.Close()

	tr := New(Config{BaseURL: srv.URL, Name: "sse-body"})
	raw, err := tr.CallTool(context.Background(), "anything", nil)
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if !result.OK {
		t.Errorf("expected ok=true, got %+v", result)
	}
	if got := tr.LastEventID(); got != "7" {
		t.Errorf("LastEventID = %q, want 7", got)
	}
}

func TestJSONBodyResponse(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req jsonrpc.Request
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		switch req.Method {
		case jsonrpc.MethodInitialize:
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"result":{"serverInfo":{"name":"x","version":"1"},"capabilities":{}}}`, req.ID)
		case jsonrpc.NotificationInitialized:
			w.WriteHeader(http.StatusAccepted)
		default:
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"result":{"echo":true}}`, req.ID)
		}
	}))
	defer srv.Close()

	tr := New(Config{BaseURL: srv.URL, Name: "json"})
	raw, err := tr.CallTool(context.Background(), "echo", nil)
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	var result struct {
		Echo bool `json:"echo"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !result.Echo {
		t.Errorf("expected echo=true, got %+v", result)
	}
}

func TestNoDataInSSEResponseFails(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req jsonrpc.Request
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "text/event-stream")
		if req.Method == jsonrpc.MethodInitialize {
			fmt.Fprintf(w, "event: message\ndata: {\"jsonrpc\":\"2.0\",\"id\":%d,\"result\":{}}\n\n", req.ID)
			return
		}
		fmt.Fprint(w, "event: ping\n\n")
	}))
	defer srv.Close()

	tr := New(Config{BaseURL: srv.URL, Name: "nodata"})
	if err := tr.EnsureInitialized(context.Background()); err != nil {
		t.Fatalf("EnsureInitialized: %v", err)
	}
	if _, err := tr.CallTool(context.Background(), "x", nil); err == nil {
		t.Error("expected error for SSE body with no data frames")
	}
}
