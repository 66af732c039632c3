// Package httpbase provides the shared POST/JSON-RPC engine used by the
// plain HTTP and streamable HTTP transports: header composition, OAuth
// Authorization injection, session-id capture/echo, and HTTP-status to
// error-taxonomy mapping.
package httpbase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	mcperrors "github.com/jamesprial/mcp-client/internal/errors"
)

// AuthProvider is the subset of the OAuth provider the HTTP base needs:
// composing an Authorization header value and being told a token was
// rejected so it can latch or force a refresh on the next call.
type AuthProvider interface {
	AuthorizationHeader(ctx context.Context) (string, error)
	InvalidateToken()
}

// Config configures a Base engine.
type Config struct {
	BaseURL string
	Headers map[string]string
	Auth    AuthProvider
	Client  *http.Client
}

// Base is the shared POST engine. Concrete transports embed it and
// supply their own ParseResponse for the response body/content-type.
type Base struct {
	cfg Config

	mu        sync.Mutex
	sessionID string
}

// New constructs a Base engine from cfg.
func New(cfg Config) *Base {
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}
	return &Base{cfg: cfg}
}

// ResolveEndpoint resolves a possibly-relative endpoint against baseURL.
// An empty endpoint means baseURL itself; an absolute endpoint is returned
// unchanged.
func ResolveEndpoint(baseURL, endpoint string) string {
	if endpoint == "" {
		return baseURL
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return endpoint
	}
	ref, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	return base.ResolveReference(ref).String()
}

// SessionID returns the last captured session-id header, or "".
func (b *Base) SessionID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessionID
}

const sessionHeaderName = "Mcp-Session-Id"

// Post issues one POST of body to url (defaults to cfg.BaseURL when
// empty) with the configured and computed headers, and returns the raw
// response alongside its status code and content type. It does not
// interpret the body; callers (ParseResponse implementations) do that.
func (b *Base) Post(ctx context.Context, url string, body []byte) (status int, contentType string, respBody []byte, err error) {
	if url == "" {
		url = b.cfg.BaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, "", nil, mcperrors.TransportWrap("httpbase", "Post", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	for k, v := range b.cfg.Headers {
		req.Header.Set(k, v)
	}

	b.mu.Lock()
	sid := b.sessionID
	b.mu.Unlock()
	if sid != "" {
		req.Header.Set(sessionHeaderName, sid)
	}

	if b.cfg.Auth != nil {
		authHeader, aerr := b.cfg.Auth.AuthorizationHeader(ctx)
		if aerr != nil {
			return 0, "", nil, aerr
		}
		req.Header.Set("Authorization", authHeader)
	}

	resp, err := b.cfg.Client.Do(req)
	if err != nil {
		return 0, "", nil, mcperrors.TransportWrap("httpbase", "Post", err)
	}
	defer resp.Body.Close()

	if newSID := resp.Header.Get(sessionHeaderName); newSID != "" {
		b.mu.Lock()
		b.sessionID = newSID
		b.mu.Unlock()
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, resp.Header.Get("Content-Type"), nil, mcperrors.TransportWrap("httpbase", "Post", err)
	}

	if classErr := classifyStatus(resp.StatusCode, b.cfg.Auth); classErr != nil {
		return resp.StatusCode, resp.Header.Get("Content-Type"), data, classErr
	}

	return resp.StatusCode, resp.Header.Get("Content-Type"), data, nil
}

// classifyStatus maps an HTTP status code to the error taxonomy. A nil
// return means the status is in 200-299 and the caller should proceed to
// parse the body.
func classifyStatus(status int, auth AuthProvider) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == 401 || status == 403:
		if auth != nil {
			auth.InvalidateToken()
		}
		return mcperrors.Connection("httpbase", "classifyStatus", fmt.Sprintf("Authorization failed: HTTP %d", status))
	case status >= 400 && status < 500:
		return mcperrors.Server("httpbase", "classifyStatus", fmt.Sprintf("Client error: HTTP %d", status), status)
	case status >= 500:
		return mcperrors.ServerRetryable("httpbase", "classifyStatus", fmt.Sprintf("Server error: HTTP %d", status), status)
	default:
		return mcperrors.Server("httpbase", "classifyStatus", fmt.Sprintf("unexpected HTTP status %d", status), status)
	}
}
