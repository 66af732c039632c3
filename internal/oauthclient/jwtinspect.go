package oauthclient

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// jwtExpiry opportunistically extracts the "exp" claim from a JWT-shaped
// access token, without verifying its signature: this client is not the
// token's audience-side validator, it just wants a precise expiry when the
// token endpoint response omits expires_in.
func jwtExpiry(accessToken string) (time.Time, bool) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
