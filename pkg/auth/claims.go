// Package auth authenticates agents. Tokens are HS256 JWTs issued by the
// platform's auth service; the subject is the agent id.
package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsKey is the context key for storing JWT claims.
	ClaimsKey contextKey = "claims"
	// AgentIDKey is the context key for the authenticated agent's id.
	AgentIDKey contextKey = "agent_id"
)

// Claims is the token payload. Only registered claims are used.
type Claims struct {
	jwt.RegisteredClaims
}

// GetClaims retrieves JWT claims from the request context.
// Returns nil and false if claims are not present, which is also the case
// for requests authenticated by the trusted agent header.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}
