// Package auth provides bearer-token authentication and scope-based
// authorization for the control API.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Scope constants. Read covers state and capability queries; control
// covers connect/disconnect and the set* commands.
const (
	ScopeRead    = "read"
	ScopeControl = "control"
)

// Claims are the verified token claims the API cares about.
type Claims struct {
	Subject string
	Scopes  []string
}

// HasScope reports whether the claims grant the named scope.
func (c *Claims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// ErrInvalidToken covers expired, malformed, and wrongly signed tokens.
var ErrInvalidToken = errors.New("invalid token")

// Verifier validates HMAC-signed bearer tokens.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier for tokens signed with the given
// shared secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates a token string, returning its claims.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	type rawClaims struct {
		jwt.RegisteredClaims
		Scopes []string `json:"scopes"`
	}

	var raw rawClaims
	token, err := jwt.ParseWithClaims(tokenString, &raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return &Claims{Subject: raw.Subject, Scopes: raw.Scopes}, nil
}
