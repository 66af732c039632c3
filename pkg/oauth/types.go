// Package oauth provides shared OAuth 2.1 constants used when acquiring
// and presenting tokens for MCP servers.
package oauth

// OAuth 2.1 scope constants for MCP operations. Embedders pass these
// (space-joined) as the requested scope when starting an authorization
// flow.
const (
	// ScopeRead allows reading MCP resources.
	ScopeRead = "mcp:read"

	// ScopeWrite allows modifying MCP resources.
	ScopeWrite = "mcp:write"

	// ScopeAdmin allows administrative operations on MCP resources.
	ScopeAdmin = "mcp:admin"
)

// Token type constants as defined in RFC 6750.
const (
	// BearerToken is the OAuth 2.1 Bearer token type.
	BearerToken = "Bearer"
)

// Grant types as defined in OAuth 2.1. This client requests only the
// authorization code and refresh token grants; the implicit and password
// grants are removed in 2.1 and client credentials has no place in a
// user-delegated tool client.
const (
	// GrantTypeAuthorizationCode is the authorization code grant type.
	GrantTypeAuthorizationCode = "authorization_code"

	// GrantTypeRefreshToken is the refresh token grant type.
	GrantTypeRefreshToken = "refresh_token"
)

// Response types as defined in OAuth 2.1.
const (
	// ResponseTypeCode is the authorization code response type.
	// OAuth 2.1 only supports the code response type (implicit grant is removed).
	ResponseTypeCode = "code"
)

// PKCE code challenge methods as defined in RFC 7636.
// OAuth 2.1 requires S256 only (plain method is prohibited).
const (
	// CodeChallengeMethodS256 is the SHA-256 code challenge method.
	// This is the only allowed method in OAuth 2.1.
	CodeChallengeMethodS256 = "S256"
)

// HTTP header names.
const (
	// HeaderAuthorization is the Authorization HTTP header name.
	HeaderAuthorization = "Authorization"

	// HeaderContentType is the Content-Type HTTP header name.
	HeaderContentType = "Content-Type"
)

// Content type constants.
const (
	// ContentTypeJSON is the application/json content type.
	ContentTypeJSON = "application/json"

	// ContentTypeFormURLEncoded is the application/x-www-form-urlencoded content type.
	ContentTypeFormURLEncoded = "application/x-www-form-urlencoded"
)
