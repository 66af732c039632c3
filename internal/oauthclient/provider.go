package oauthclient

import (
	"context"
	"net/http"
	"net/url"
	"time"

	mcperrors "github.com/jamesprial/mcp-client/internal/errors"
	"github.com/jamesprial/mcp-client/pkg/oauth"
)

// AuthAttacher is the method set a Provider exposes to transports:
// matches both internal/httpbase.AuthProvider and internal/sse.AuthProvider
// without either package importing this one.
type AuthAttacher interface {
	AuthorizationHeader(ctx context.Context) (string, error)
	InvalidateToken()
}

// Config configures a Provider for a single MCP server URL.
type Config struct {
	// ServerURL is the MCP server's endpoint; its origin is used for
	// discovery and the URL itself is sent as the RFC 8707 "resource"
	// parameter.
	ServerURL string

	// RedirectURI is this embedder's OAuth callback URI. The library does
	// not host a callback server; the embedder owns it.
	RedirectURI string

	// Scope is the space-separated scope string requested at
	// authorization time, e.g. "mcp:read mcp:write".
	Scope string

	// ClientName is sent as client_name during dynamic registration.
	ClientName string

	// SoftwareID is sent as software_id during dynamic registration.
	// Defaults to the per-process instance id when unset.
	SoftwareID string

	// StaticClientInfo, when set, is used instead of dynamic registration.
	StaticClientInfo *ClientInfo

	// InsecureAllowHTTP opts out of the HTTPS-only requirement for
	// pointing at a local test authorization server. Defaults to false.
	InsecureAllowHTTP bool

	Storage Storage
	Client  *http.Client
}

// Provider implements the OAuth 2.1 + PKCE authorization flow.
type Provider struct {
	cfg   Config
	clock func() time.Time
}

// New constructs a Provider from cfg, defaulting Storage to a fresh
// process-local MemStorage.
func New(cfg Config) *Provider {
	if cfg.Storage == nil {
		cfg.Storage = NewMemStorage()
	}
	return &Provider{cfg: cfg, clock: time.Now}
}

func (p *Provider) httpClient() *http.Client {
	if p.cfg.Client != nil {
		return p.cfg.Client
	}
	return http.DefaultClient
}

func (p *Provider) now() time.Time {
	if p.clock != nil {
		return p.clock()
	}
	return time.Now()
}

// requireHTTPS enforces the "HTTPS is required for all OAuth endpoints"
// invariant unless InsecureAllowHTTP is set.
func (p *Provider) requireHTTPS(endpoint string) error {
	if p.cfg.InsecureAllowHTTP {
		return nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return mcperrors.ConnectionWrap("oauth", "requireHTTPS", err)
	}
	if u.Scheme != "https" {
		return mcperrors.Connection("oauth", "requireHTTPS", "OAuth endpoint "+endpoint+" is not HTTPS (set InsecureAllowHTTP for local testing only)")
	}
	return nil
}

// ensureClientInfo returns stored credentials, or the configured static
// ones, or performs RFC 7591 dynamic client registration and persists the
// result so future runs reuse the same client_id instead of accumulating
// registrations on the authorization server.
func (p *Provider) ensureClientInfo(ctx context.Context, metadata ServerMetadata) (ClientInfo, error) {
	if info, ok := p.cfg.Storage.GetClientInfo(p.cfg.ServerURL); ok {
		return info, nil
	}
	if p.cfg.StaticClientInfo != nil {
		p.cfg.Storage.SetClientInfo(p.cfg.ServerURL, *p.cfg.StaticClientInfo)
		return *p.cfg.StaticClientInfo, nil
	}
	if metadata.RegistrationEndpoint == "" {
		return ClientInfo{}, mcperrors.Connection("oauth", "ensureClientInfo", "server advertises no registration_endpoint and no static client credentials were configured")
	}
	info, err := p.register(ctx, metadata)
	if err != nil {
		return ClientInfo{}, err
	}
	p.cfg.Storage.SetClientInfo(p.cfg.ServerURL, info)
	return info, nil
}

// StartAuthorizationFlow runs discovery, client-info resolution, and
// fresh PKCE+state generation, and returns the authorization URL to send
// the user's browser to.
func (p *Provider) StartAuthorizationFlow(ctx context.Context) (string, error) {
	metadata, err := p.discover(ctx, p.cfg.ServerURL)
	if err != nil {
		return "", err
	}
	if err := p.requireHTTPS(metadata.AuthorizationEndpoint); err != nil {
		return "", err
	}
	if err := p.requireHTTPS(metadata.TokenEndpoint); err != nil {
		return "", err
	}
	p.cfg.Storage.SetServerMetadata(p.cfg.ServerURL, metadata)

	clientInfo, err := p.ensureClientInfo(ctx, metadata)
	if err != nil {
		return "", err
	}

	pkce, err := newPKCEParams()
	if err != nil {
		return "", err
	}
	p.cfg.Storage.SetPKCE(p.cfg.ServerURL, pkce)

	state, err := newStateToken()
	if err != nil {
		return "", err
	}
	p.cfg.Storage.SetState(p.cfg.ServerURL, state)

	u, err := url.Parse(metadata.AuthorizationEndpoint)
	if err != nil {
		return "", mcperrors.ConnectionWrap("oauth", "StartAuthorizationFlow", err)
	}
	q := u.Query()
	q.Set("response_type", oauth.ResponseTypeCode)
	q.Set("client_id", clientInfo.ClientID)
	q.Set("redirect_uri", p.cfg.RedirectURI)
	if p.cfg.Scope != "" {
		q.Set("scope", p.cfg.Scope)
	}
	q.Set("state", string(state))
	q.Set("code_challenge", pkce.Challenge)
	q.Set("code_challenge_method", pkce.Method)
	q.Set("resource", p.cfg.ServerURL) // RFC 8707
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// CompleteAuthorizationFlow verifies the one-shot state, exchanges the
// code for a token with the stored PKCE verifier, and persists the
// result.
func (p *Provider) CompleteAuthorizationFlow(ctx context.Context, code, state string) error {
	storedState, ok := p.cfg.Storage.GetState(p.cfg.ServerURL)
	p.cfg.Storage.DeleteState(p.cfg.ServerURL)
	pkce, pkceOK := p.cfg.Storage.GetPKCE(p.cfg.ServerURL)
	p.cfg.Storage.DeletePKCE(p.cfg.ServerURL)
	if !ok || string(storedState) != state {
		return mcperrors.Connection("oauth", "CompleteAuthorizationFlow", "state parameter mismatch or missing")
	}
	if !pkceOK {
		return mcperrors.Connection("oauth", "CompleteAuthorizationFlow", "no pending PKCE verifier for this server")
	}

	metadata, ok := p.cfg.Storage.GetServerMetadata(p.cfg.ServerURL)
	if !ok {
		return mcperrors.Connection("oauth", "CompleteAuthorizationFlow", "no discovered server metadata; call StartAuthorizationFlow first")
	}
	clientInfo, ok := p.cfg.Storage.GetClientInfo(p.cfg.ServerURL)
	if !ok {
		return mcperrors.Connection("oauth", "CompleteAuthorizationFlow", "no client credentials; call StartAuthorizationFlow first")
	}

	form := url.Values{}
	form.Set("grant_type", oauth.GrantTypeAuthorizationCode)
	form.Set("code", code)
	form.Set("redirect_uri", p.cfg.RedirectURI)
	form.Set("client_id", clientInfo.ClientID)
	if clientInfo.ClientSecret != "" {
		form.Set("client_secret", clientInfo.ClientSecret)
	}
	form.Set("code_verifier", pkce.Verifier)
	form.Set("resource", p.cfg.ServerURL)

	token, err := p.exchangeToken(ctx, metadata.TokenEndpoint, form)
	if err != nil {
		return err
	}
	p.cfg.Storage.SetToken(p.cfg.ServerURL, token)
	return nil
}

// AuthorizationHeader refreshes a soon-to-expire token first, then
// returns "Bearer <token>".
func (p *Provider) AuthorizationHeader(ctx context.Context) (string, error) {
	token, ok := p.cfg.Storage.GetToken(p.cfg.ServerURL)
	if !ok {
		return "", mcperrors.Connection("oauth", "AuthorizationHeader", "OAuth authorization required")
	}
	if token.ExpiresSoon(p.now()) && token.RefreshToken != "" {
		refreshed, err := p.refresh(ctx, token)
		if err != nil {
			p.cfg.Storage.DeleteToken(p.cfg.ServerURL)
			return "", mcperrors.Connection("oauth", "AuthorizationHeader", "OAuth authorization required")
		}
		token = refreshed
		p.cfg.Storage.SetToken(p.cfg.ServerURL, token)
	}
	if !token.Valid(p.now()) {
		p.cfg.Storage.DeleteToken(p.cfg.ServerURL)
		return "", mcperrors.Connection("oauth", "AuthorizationHeader", "OAuth authorization required")
	}
	return oauth.BearerToken + " " + token.AccessToken, nil
}

// InvalidateToken clears the stored token, e.g. after an HTTP 401/403.
func (p *Provider) InvalidateToken() {
	p.cfg.Storage.DeleteToken(p.cfg.ServerURL)
}

// ValidToken reports whether a non-expired token is currently stored.
func (p *Provider) ValidToken() bool {
	token, ok := p.cfg.Storage.GetToken(p.cfg.ServerURL)
	return ok && token.Valid(p.now())
}

var _ AuthAttacher = (*Provider)(nil)

func (p *Provider) refresh(ctx context.Context, token Token) (Token, error) {
	metadata, ok := p.cfg.Storage.GetServerMetadata(p.cfg.ServerURL)
	if !ok {
		return Token{}, mcperrors.Connection("oauth", "refresh", "no discovered server metadata")
	}
	clientInfo, ok := p.cfg.Storage.GetClientInfo(p.cfg.ServerURL)
	if !ok {
		return Token{}, mcperrors.Connection("oauth", "refresh", "no client credentials")
	}
	form := url.Values{}
	form.Set("grant_type", oauth.GrantTypeRefreshToken)
	form.Set("refresh_token", token.RefreshToken)
	form.Set("client_id", clientInfo.ClientID)
	if clientInfo.ClientSecret != "" {
		form.Set("client_secret", clientInfo.ClientSecret)
	}
	form.Set("resource", p.cfg.ServerURL)
	return p.exchangeToken(ctx, metadata.TokenEndpoint, form)
}
