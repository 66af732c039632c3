package serverconfig

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jamesprial/mcp-client/internal/httpbase"
	"github.com/jamesprial/mcp-client/internal/httptransport"
	"github.com/jamesprial/mcp-client/internal/jsonrpc"
	"github.com/jamesprial/mcp-client/internal/oauthclient"
	"github.com/jamesprial/mcp-client/internal/sse"
	"github.com/jamesprial/mcp-client/internal/stdio"
	"github.com/jamesprial/mcp-client/internal/streamablehttp"
	"github.com/jamesprial/mcp-client/internal/transport"
)

// AuthFor builds the OAuth provider a server's transport should use, or
// nil if the server has no base_url to discover against (stdio). Callers
// that want to share one Provider per server across reconnects should
// build it themselves and skip this helper.
func AuthFor(spec ServerSpec, defaults Defaults) oauthclient.AuthAttacher {
	if spec.BaseURL == "" {
		return nil
	}
	return oauthclient.New(oauthclient.Config{
		ServerURL:         spec.BaseURL,
		InsecureAllowHTTP: defaults.InsecureAllowHTTP,
	})
}

// Build constructs the concrete transport named by spec.Type, applying
// defaults for any field the record left at its zero value.
func Build(spec ServerSpec, defaults Defaults, logger *slog.Logger) (transport.Transport, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch spec.Type {
	case "stdio":
		argv, err := spec.Argv()
		if err != nil {
			return nil, err
		}
		return stdio.New(stdio.Config{
			Argv:        argv,
			Env:         spec.Env,
			Name:        spec.Name,
			ReadTimeout: durationOrDefault(spec.ReadTimeoutSeconds, defaults.ReadTimeout),
			RetryPolicy: jsonrpc.DefaultRetryPolicy,
			Logger:      logger,
		}), nil

	case "sse":
		if spec.BaseURL == "" {
			return nil, fmt.Errorf("serverconfig: sse entry %q requires base_url", spec.Name)
		}
		policy := retryPolicyFor(spec, defaults)
		if spec.Retries == nil {
			policy.MaxRetries = 0
		}
		return sse.New(sse.Config{
			BaseURL:      spec.BaseURL,
			Headers:      spec.Headers,
			Name:         spec.Name,
			ReadTimeout:  durationOrDefault(spec.ReadTimeoutSeconds, defaults.SSEReadTimeout),
			PingInterval: durationOrDefault(spec.PingSeconds, defaults.SSEPingInterval),
			RetryPolicy:  policy,
			Auth:         AuthFor(spec, defaults),
			Client:       http.DefaultClient,
			Logger:       logger,
		}), nil

	case "http":
		if spec.BaseURL == "" {
			return nil, fmt.Errorf("serverconfig: http entry %q requires base_url", spec.Name)
		}
		endpoint := spec.Endpoint
		if endpoint == "" {
			endpoint = "/rpc"
		}
		return httptransport.New(httptransport.Config{
			BaseURL:     spec.BaseURL,
			Endpoint:    endpoint,
			Headers:     spec.Headers,
			Name:        spec.Name,
			RetryPolicy: retryPolicyFor(spec, defaults),
			Auth:        authAsHTTPBase(AuthFor(spec, defaults)),
			Client:      &http.Client{Timeout: durationOrDefault(spec.ReadTimeoutSeconds, defaults.ReadTimeout)},
			Logger:      logger,
		}), nil

	case "streamable_http":
		if spec.BaseURL == "" {
			return nil, fmt.Errorf("serverconfig: streamable_http entry %q requires base_url", spec.Name)
		}
		endpoint := spec.Endpoint
		if endpoint == "" {
			endpoint = "/rpc"
		}
		return streamablehttp.New(streamablehttp.Config{
			BaseURL:     spec.BaseURL,
			Endpoint:    endpoint,
			Headers:     spec.Headers,
			Name:        spec.Name,
			RetryPolicy: retryPolicyFor(spec, defaults),
			Auth:        authAsHTTPBase(AuthFor(spec, defaults)),
			Client:      &http.Client{Timeout: durationOrDefault(spec.ReadTimeoutSeconds, defaults.ReadTimeout)},
			Logger:      logger,
		}), nil

	default:
		return nil, fmt.Errorf("serverconfig: unknown server type %q", spec.Type)
	}
}

func durationOrDefault(seconds float64, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds * float64(time.Second))
}

func retryPolicyFor(spec ServerSpec, defaults Defaults) jsonrpc.RetryPolicy {
	policy := jsonrpc.RetryPolicy{
		MaxRetries: defaults.Retries,
		Backoff:    defaults.RetryBackoff,
	}
	if spec.Retries != nil {
		policy.MaxRetries = *spec.Retries
	}
	if spec.RetryBackoffSeconds > 0 {
		policy.Backoff = time.Duration(spec.RetryBackoffSeconds * float64(time.Second))
	}
	return policy
}

// authAsHTTPBase adapts an AuthAttacher (which may be nil) to
// httpbase.AuthProvider without the serverconfig package importing
// oauthclient's concrete type into every transport's Config field.
func authAsHTTPBase(a oauthclient.AuthAttacher) httpbase.AuthProvider {
	if a == nil {
		return nil
	}
	return a
}
