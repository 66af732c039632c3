package oauthclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jamesprial/mcp-client/internal/clientid"
	mcperrors "github.com/jamesprial/mcp-client/internal/errors"
	"github.com/jamesprial/mcp-client/pkg/oauth"
)

// registrationRequest is the RFC 7591 dynamic client registration request
// body this client sends.
type registrationRequest struct {
	ClientName              string   `json:"client_name,omitempty"`
	RedirectURIs            []string `json:"redirect_uris"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	SoftwareID              string   `json:"software_id,omitempty"`
}

// registrationResponse is the subset of the RFC 7591 response this client
// reads.
type registrationResponse struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret,omitempty"`
}

// register performs RFC 7591 dynamic client registration against
// metadata.RegistrationEndpoint and returns the resulting ClientInfo.
func (p *Provider) register(ctx context.Context, metadata ServerMetadata) (ClientInfo, error) {
	softwareID := p.cfg.SoftwareID
	if softwareID == "" {
		softwareID = clientid.Current()
	}
	body := registrationRequest{
		ClientName:              p.cfg.ClientName,
		RedirectURIs:            []string{p.cfg.RedirectURI},
		GrantTypes:              []string{oauth.GrantTypeAuthorizationCode, oauth.GrantTypeRefreshToken},
		ResponseTypes:           []string{oauth.ResponseTypeCode},
		TokenEndpointAuthMethod: "none",
		SoftwareID:              softwareID,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return ClientInfo{}, mcperrors.TransportWrap("oauth", "register", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, metadata.RegistrationEndpoint, bytes.NewReader(raw))
	if err != nil {
		return ClientInfo{}, mcperrors.ConnectionWrap("oauth", "register", err)
	}
	req.Header.Set(oauth.HeaderContentType, oauth.ContentTypeJSON)

	resp, err := p.httpClient().Do(req)
	if err != nil {
		return ClientInfo{}, mcperrors.ConnectionWrap("oauth", "register", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return ClientInfo{}, mcperrors.TransportWrap("oauth", "register", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ClientInfo{}, mcperrors.Connection("oauth", "register", fmt.Sprintf("dynamic client registration failed: HTTP %d", resp.StatusCode))
	}

	var out registrationResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return ClientInfo{}, mcperrors.TransportWrap("oauth", "register", err)
	}
	return ClientInfo{
		ClientID:     out.ClientID,
		ClientSecret: out.ClientSecret,
		RedirectURIs: []string{p.cfg.RedirectURI},
	}, nil
}
