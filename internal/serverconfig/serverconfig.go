// Package serverconfig loads process-wide defaults from environment
// variables and MCP server definitions from server-definition files, and
// builds the concrete transport for each one.
package serverconfig

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Defaults holds process-wide fallback values, loaded from environment
// variables.
type Defaults struct {
	// ReadTimeout is used by http/streamable_http/stdio transports when a
	// record omits read_timeout.
	ReadTimeout time.Duration
	// SSEReadTimeout is the SSE transport's read_timeout default (10s,
	// distinct from the HTTP family's 30s).
	SSEReadTimeout time.Duration
	// SSEPingInterval is the SSE transport's ping default (10s).
	SSEPingInterval time.Duration
	// Retries is the HTTP-family retry count default (3). SSE entries
	// that omit retries get 0 instead.
	Retries int
	// RetryBackoff is the initial backoff delay default (1s).
	RetryBackoff time.Duration
	// InsecureAllowHTTP opts OAuth discovery out of the HTTPS-only
	// invariant, for pointing every server at a local test stack.
	InsecureAllowHTTP bool
}

// LoadDefaults reads MCP_CLIENT_* environment variables, falling back to
// the per-transport defaults when unset.
func LoadDefaults() (Defaults, error) {
	readTimeout, err := parseDurationWithDefault("MCP_CLIENT_READ_TIMEOUT", "30s")
	if err != nil {
		return Defaults{}, fmt.Errorf("invalid MCP_CLIENT_READ_TIMEOUT: %w", err)
	}
	sseReadTimeout, err := parseDurationWithDefault("MCP_CLIENT_SSE_READ_TIMEOUT", "10s")
	if err != nil {
		return Defaults{}, fmt.Errorf("invalid MCP_CLIENT_SSE_READ_TIMEOUT: %w", err)
	}
	ssePing, err := parseDurationWithDefault("MCP_CLIENT_SSE_PING_INTERVAL", "10s")
	if err != nil {
		return Defaults{}, fmt.Errorf("invalid MCP_CLIENT_SSE_PING_INTERVAL: %w", err)
	}
	retries, err := parseIntWithDefault("MCP_CLIENT_RETRIES", 3)
	if err != nil {
		return Defaults{}, fmt.Errorf("invalid MCP_CLIENT_RETRIES: %w", err)
	}
	retryBackoff, err := parseDurationWithDefault("MCP_CLIENT_RETRY_BACKOFF", "1s")
	if err != nil {
		return Defaults{}, fmt.Errorf("invalid MCP_CLIENT_RETRY_BACKOFF: %w", err)
	}

	return Defaults{
		ReadTimeout:       readTimeout,
		SSEReadTimeout:    sseReadTimeout,
		SSEPingInterval:   ssePing,
		Retries:           retries,
		RetryBackoff:      retryBackoff,
		InsecureAllowHTTP: getEnvWithDefault("MCP_CLIENT_INSECURE_ALLOW_HTTP", "") == "true",
	}, nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationWithDefault(key, defaultValue string) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("cannot parse duration %q: %w", value, err)
	}
	return d, nil
}

func parseIntWithDefault(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("cannot parse integer %q: %w", value, err)
	}
	return n, nil
}
