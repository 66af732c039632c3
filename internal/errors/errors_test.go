package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestDomainError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      *DomainError
		contains string
	}{
		{
			name: "formats correctly with wrapped error",
			err: &DomainError{
				Domain: "sse",
				Op:     "rpcRequest",
				Kind:   ErrTransport,
				Err:    errors.New("timeout after 10s"),
			},
			contains: "sse.rpcRequest:",
		},
		{
			name: "formats correctly with Kind only",
			err: &DomainError{
				Domain: "client",
				Op:     "CallTool",
				Kind:   ErrToolNotFound,
			},
			contains: "client.CallTool: tool not found",
		},
		{
			name: "includes wrapped error message",
			err: &DomainError{
				Domain: "sse",
				Op:     "rpcRequest",
				Kind:   ErrTransport,
				Err:    errors.New("timeout after 10s"),
			},
			contains: "timeout after 10s",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := tt.err.Error()
			if !strings.Contains(got, tt.contains) {
				t.Errorf("DomainError.Error() = %q, want to contain %q", got, tt.contains)
			}
		})
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       *DomainError
		wantInner error
	}{
		{
			name: "returns wrapped error",
			err: &DomainError{
				Domain: "stdio",
				Op:     "waitResponse",
				Err:    ErrTransport,
			},
			wantInner: ErrTransport,
		},
		{
			name: "returns nil when no wrapped error",
			err: &DomainError{
				Domain: "client",
				Op:     "CallTool",
				Kind:   ErrToolNotFound,
			},
			wantInner: nil,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := tt.err.Unwrap()
			if got != tt.wantInner {
				t.Errorf("DomainError.Unwrap() = %v, want %v", got, tt.wantInner)
			}
		})
	}
}

func TestDomainError_Is(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    *DomainError
		target error
		want   bool
	}{
		{
			name:   "matches Kind",
			err:    New("client", "CallTool", ErrToolNotFound, nil),
			target: ErrToolNotFound,
			want:   true,
		},
		{
			name:   "matches MCPError marker",
			err:    New("client", "CallTool", ErrToolNotFound, nil),
			target: MCPError,
			want:   true,
		},
		{
			name:   "matches wrapped error",
			err:    New("sse", "rpcRequest", ErrConnection, ErrTransport),
			target: ErrTransport,
			want:   true,
		},
		{
			name:   "does not match different error",
			err:    New("client", "CallTool", ErrToolNotFound, nil),
			target: ErrAmbiguousTool,
			want:   false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Is(tt.target); got != tt.want {
				t.Errorf("DomainError.Is() = %v, want %v", got, tt.want)
			}
			if got := errors.Is(tt.err, tt.target); got != tt.want {
				t.Errorf("errors.Is(DomainError, target) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDomainError_WithContext_Chaining(t *testing.T) {
	t.Parallel()

	err := New("client", "CallTool", ErrToolNotFound, nil)

	result := err.WithContext("k1", "v1").WithContext("k2", "v2").WithContext("k3", "v3")

	if result != err {
		t.Error("WithContext() should return same error for chaining")
	}

	for _, key := range []string{"k1", "k2", "k3"} {
		if _, ok := err.Context[key]; !ok {
			t.Errorf("WithContext() chaining did not add key %q", key)
		}
	}
}

func TestNew_InitializesContext(t *testing.T) {
	t.Parallel()

	err := New("client", "CallTool", ErrToolNotFound, nil)

	if err.Context == nil {
		t.Fatal("New() should initialize Context map")
	}

	err.Context["test"] = "value"
	if err.Context["test"] != "value" {
		t.Error("Context map should be usable after New()")
	}
}

func TestSentinelErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"ErrToolNotFound", ErrToolNotFound, "tool not found"},
		{"ErrAmbiguousTool", ErrAmbiguousTool, "ambiguous tool name"},
		{"ErrServerNotFound", ErrServerNotFound, "server not found"},
		{"ErrToolCallFailed", ErrToolCallFailed, "tool call failed"},
		{"ErrConnection", ErrConnection, "connection error"},
		{"ErrServer", ErrServer, "server error"},
		{"ErrTransport", ErrTransport, "transport error"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("%s.Error() = %q, want %q", tt.name, got, tt.wantMsg)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transport error retries", Transport("sse", "rpcRequest", "timeout"), true},
		{"server error does not retry", Server("sse", "rpcRequest", "boom", -32000), false},
		{"connection error does not retry", Connection("sse", "connect", "auth failed"), false},
		{"plain error does not retry", errors.New("boom"), false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}
