package jsonrpc

import (
	"encoding/json"
	"testing"
)

func TestBuildRequest_ThenProcessResponse_RoundTrip(t *testing.T) {
	t.Parallel()

	params := map[string]any{"name": "echo", "arguments": map[string]any{"msg": "hi"}}
	req, err := BuildRequest(7, MethodToolsCall, params)
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}
	if req.ID != 7 || req.Method != MethodToolsCall || req.JSONRPC != "2.0" {
		t.Fatalf("unexpected request: %+v", req)
	}

	// Simulate an echo server that returns params back as the result.
	resp := &Response{JSONRPC: "2.0", ID: json.Number("7"), Result: req.Params}

	result, err := ProcessResponse(resp)
	if err != nil {
		t.Fatalf("ProcessResponse: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(result, &got); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if got["name"] != "echo" {
		t.Errorf("got name = %v, want echo", got["name"])
	}
}

func TestBuildNotification_NoID(t *testing.T) {
	t.Parallel()

	n, err := BuildNotification(NotificationInitialized, nil)
	if err != nil {
		t.Fatalf("BuildNotification: %v", err)
	}
	raw, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := m["id"]; ok {
		t.Errorf("notification must not carry an id field, got %v", m)
	}
	if m["method"] != NotificationInitialized {
		t.Errorf("method = %v, want %v", m["method"], NotificationInitialized)
	}
}

func TestProcessResponse_ServerError(t *testing.T) {
	t.Parallel()

	resp := &Response{
		JSONRPC: "2.0",
		ID:      json.Number("1"),
		Error:   &RPCError{Code: -32601, Message: "Method not found"},
	}
	_, err := ProcessResponse(resp)
	if err == nil {
		t.Fatal("expected error")
	}
	var de interface {
		Error() string
	}
	de = err
	if de.Error() == "" {
		t.Fatal("expected non-empty error message")
	}
}

func TestParseEnvelope_DistinguishesResponseAndNotification(t *testing.T) {
	t.Parallel()

	respBytes := []byte(`{"jsonrpc":"2.0","id":1,"result":{"ok":true}}`)
	env, err := ParseEnvelope(respBytes)
	if err != nil {
		t.Fatalf("ParseEnvelope: %v", err)
	}
	if !env.IsResponse() || env.IsNotification() {
		t.Errorf("expected response-shaped envelope, got %+v", env)
	}

	notifBytes := []byte(`{"jsonrpc":"2.0","method":"notifications/tools/list_changed"}`)
	env2, err := ParseEnvelope(notifBytes)
	if err != nil {
		t.Fatalf("ParseEnvelope: %v", err)
	}
	if env2.IsResponse() || !env2.IsNotification() {
		t.Errorf("expected notification-shaped envelope, got %+v", env2)
	}
}

func TestInitializationParams(t *testing.T) {
	t.Parallel()

	p := InitializationParams()
	if p.ProtocolVersion != "2025-03-26" {
		t.Errorf("ProtocolVersion = %q, want 2025-03-26", p.ProtocolVersion)
	}
	if p.ClientInfo.Name == "" {
		t.Error("ClientInfo.Name must not be empty")
	}
}
