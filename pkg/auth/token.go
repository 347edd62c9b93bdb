package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is what the terminal needs from its API token: who the cashier
// is (local state is keyed by username) and when the token lapses.
type Identity struct {
	Username  string
	ExpiresAt time.Time
}

// IdentityFromToken extracts identity claims from the configured API token.
// The signature belongs to the backend; the terminal only reads claims, so
// the token is parsed unverified. The backend still rejects tampered tokens
// on every call.
func IdentityFromToken(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, fmt.Errorf("api token is empty")
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Identity{}, fmt.Errorf("parsing api token: %w", err)
	}

	identity := Identity{}
	if username, ok := claims["username"].(string); ok && username != "" {
		identity.Username = username
	} else if sub, _ := claims.GetSubject(); sub != "" {
		identity.Username = sub
	}
	if identity.Username == "" {
		return Identity{}, fmt.Errorf("api token carries no username or subject claim")
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		identity.ExpiresAt = exp.Time
	}

	return identity, nil
}
