package oauthclient

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"

	mcperrors "github.com/jamesprial/mcp-client/internal/errors"
	"github.com/jamesprial/mcp-client/pkg/oauth"
)

// verifierBytes is the amount of entropy behind the code verifier (43-128
// chars once base64url-encoded per RFC 7636; 32 raw bytes -> 43 chars).
const verifierBytes = 32

// newPKCEParams generates a fresh verifier and its S256 challenge, one
// shot per authorization attempt. PKCE is mandatory and the plain method
// is never offered.
func newPKCEParams() (PKCEParams, error) {
	raw := make([]byte, verifierBytes)
	if _, err := rand.Read(raw); err != nil {
		return PKCEParams{}, mcperrors.ConnectionWrap("oauth", "newPKCEParams", err)
	}
	verifier := base64.RawURLEncoding.EncodeToString(raw)
	sum := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(sum[:])
	return PKCEParams{Verifier: verifier, Challenge: challenge, Method: oauth.CodeChallengeMethodS256}, nil
}

// newStateToken generates a fresh CSRF nonce, one shot per attempt.
func newStateToken() (StateToken, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", mcperrors.ConnectionWrap("oauth", "newStateToken", err)
	}
	return StateToken(base64.RawURLEncoding.EncodeToString(raw)), nil
}
