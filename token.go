package bmauth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenExpiresWithin peeks at an access token's exp claim without
// verifying the signature. The client holds no verification key; the
// peek only decides whether sending the token is pointless.
//
// Tokens that do not parse as JWTs or carry no exp claim are treated as
// live: the server is the authority, and a 401 will say so.
func tokenExpiresWithin(token string, now time.Time, leeway time.Duration) bool {
	var claims jwt.RegisteredClaims
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !claims.ExpiresAt.Time.After(now.Add(leeway))
}
