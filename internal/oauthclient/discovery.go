package oauthclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	mcperrors "github.com/jamesprial/mcp-client/internal/errors"
)

const (
	protectedResourceWellKnown = "/.well-known/oauth-protected-resource"
	authServerWellKnown        = "/.well-known/oauth-authorization-server"
)

// protectedResourceDoc is the subset of RFC 9728 this client reads: which
// authorization server(s) issue tokens for the resource.
type protectedResourceDoc struct {
	AuthorizationServers []string `json:"authorization_servers"`
}

// authServerMetadataDoc is the subset of RFC 8414 this client reads.
type authServerMetadataDoc struct {
	Issuer                 string `json:"issuer"`
	AuthorizationEndpoint  string `json:"authorization_endpoint"`
	TokenEndpoint          string `json:"token_endpoint"`
	RegistrationEndpoint   string `json:"registration_endpoint"`
}

// discover tries the protected-resource document, falls back to the
// authorization-server document, and falls back again to origin-relative
// defaults when the server advertises nothing at all.
func (p *Provider) discover(ctx context.Context, serverURL string) (ServerMetadata, error) {
	origin, err := originOf(serverURL)
	if err != nil {
		return ServerMetadata{}, mcperrors.ConnectionWrap("oauth", "discover", err)
	}
	if err := p.requireHTTPS(origin); err != nil {
		return ServerMetadata{}, err
	}

	authOrigin := origin
	if doc, ok := p.fetchProtectedResource(ctx, origin+protectedResourceWellKnown); ok && len(doc.AuthorizationServers) > 0 {
		authOrigin = doc.AuthorizationServers[0]
	}

	if meta, ok := p.fetchAuthServerMetadata(ctx, authOrigin+authServerWellKnown); ok {
		return ServerMetadata{
			Issuer:                meta.Issuer,
			AuthorizationEndpoint: meta.AuthorizationEndpoint,
			TokenEndpoint:         meta.TokenEndpoint,
			RegistrationEndpoint:  meta.RegistrationEndpoint,
		}, nil
	}

	return ServerMetadata{
		Issuer:                authOrigin,
		AuthorizationEndpoint: authOrigin + "/authorize",
		TokenEndpoint:         authOrigin + "/token",
	}, nil
}

func (p *Provider) fetchProtectedResource(ctx context.Context, u string) (protectedResourceDoc, bool) {
	var doc protectedResourceDoc
	if !p.fetchJSON(ctx, u, &doc) {
		return protectedResourceDoc{}, false
	}
	return doc, true
}

func (p *Provider) fetchAuthServerMetadata(ctx context.Context, u string) (authServerMetadataDoc, bool) {
	var doc authServerMetadataDoc
	if !p.fetchJSON(ctx, u, &doc) {
		return authServerMetadataDoc{}, false
	}
	if doc.AuthorizationEndpoint == "" || doc.TokenEndpoint == "" {
		return authServerMetadataDoc{}, false
	}
	return doc, true
}

func (p *Provider) fetchJSON(ctx context.Context, u string, out any) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Accept", "application/json")
	resp, err := p.httpClient().Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, out) == nil
}

// originOf returns scheme+host(+port) of serverURL, dropping path and
// query: discovery documents live on the origin regardless of the MCP
// endpoint's path.
func originOf(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", err
	}
	return u.Scheme + "://" + u.Host, nil
}
