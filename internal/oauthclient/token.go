package oauthclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	mcperrors "github.com/jamesprial/mcp-client/internal/errors"
	"github.com/jamesprial/mcp-client/pkg/oauth"
)

// tokenResponse is the RFC 6749 §5.1 token response body.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
	RefreshToken string `json:"refresh_token"`
}

// exchangeToken POSTs form to tokenEndpoint and builds a Token, falling
// back to the JWT "exp" claim when the access token is JWT-shaped and the
// server response omits expires_in.
func (p *Provider) exchangeToken(ctx context.Context, tokenEndpoint string, form url.Values) (Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, mcperrors.ConnectionWrap("oauth", "exchangeToken", err)
	}
	req.Header.Set(oauth.HeaderContentType, oauth.ContentTypeFormURLEncoded)
	req.Header.Set("Accept", oauth.ContentTypeJSON)

	resp, err := p.httpClient().Do(req)
	if err != nil {
		return Token{}, mcperrors.ConnectionWrap("oauth", "exchangeToken", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Token{}, mcperrors.TransportWrap("oauth", "exchangeToken", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Token{}, mcperrors.Server("oauth", "exchangeToken", "token endpoint returned HTTP "+resp.Status, resp.StatusCode)
	}

	var out tokenResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return Token{}, mcperrors.TransportWrap("oauth", "exchangeToken", err)
	}
	if out.AccessToken == "" {
		return Token{}, mcperrors.Connection("oauth", "exchangeToken", "token endpoint response has no access_token")
	}

	now := p.now()
	var expiresAt time.Time
	switch {
	case out.ExpiresIn > 0:
		expiresAt = now.Add(time.Duration(out.ExpiresIn) * time.Second)
	default:
		if exp, ok := jwtExpiry(out.AccessToken); ok {
			expiresAt = exp
		} else {
			expiresAt = now.Add(1 * time.Hour)
		}
	}

	tokenType := out.TokenType
	if tokenType == "" {
		tokenType = oauth.BearerToken
	}

	return Token{
		AccessToken:  out.AccessToken,
		TokenType:    tokenType,
		ExpiresAt:    expiresAt,
		Scope:        out.Scope,
		RefreshToken: out.RefreshToken,
	}, nil
}
