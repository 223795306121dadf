// Package testhelpers provides utilities for testing match-engine components.
package testhelpers

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// GenerateTestJWT signs an HS256 token whose subject is agentID.
func GenerateTestJWT(secret, agentID, issuer string) string {
	claims := jwt.RegisteredClaims{
		Subject:   agentID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		panic(err) // only fails on an unusable key type
	}
	return token
}

// GenerateTestJWTWithBearer returns token with "Bearer " prefix for Authorization header.
func GenerateTestJWTWithBearer(secret, agentID, issuer string) string {
	return "Bearer " + GenerateTestJWT(secret, agentID, issuer)
}
