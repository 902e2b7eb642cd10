// Package identity resolves the current actor for engine operations.
package identity

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Provider reports the authenticated user id, if any. Every engine
// operation resolves the actor through a Provider rather than reading
// ambient state.
type Provider interface {
	CurrentUserID() (string, bool)
}

// Static is a fixed-identity provider, used once the auth collaborator has
// resolved a session, and in tests.
type Static struct {
	UserID string
}

// CurrentUserID implements Provider.
func (s Static) CurrentUserID() (string, bool) {
	return s.UserID, s.UserID != ""
}

// FromToken validates an HS256 bearer token from the auth collaborator and
// returns a provider carrying the token's subject as the user id.
func FromToken(secret []byte, token string) (Provider, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse bearer token: %w", err)
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return nil, fmt.Errorf("bearer token has no subject")
	}
	return Static{UserID: claims.Subject}, nil
}
