package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// TokenValidator validates a raw JWT and returns its claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// HMACValidator verifies HS256 tokens signed with a shared secret.
type HMACValidator struct {
	secret []byte
	parser *jwt.Parser
}

// NewHMACValidator creates a validator for secret. A non-empty issuer is
// required to match the token's "iss" claim.
func NewHMACValidator(secret, issuer string) *HMACValidator {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &HMACValidator{
		secret: []byte(secret),
		parser: jwt.NewParser(opts...),
	}
}

// ValidateToken checks signature, expiry and issuer.
func (v *HMACValidator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := v.parser.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}

	return claims, nil
}

// Ensure HMACValidator implements TokenValidator at compile time.
var _ TokenValidator = (*HMACValidator)(nil)
