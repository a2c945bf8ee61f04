package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rig-control/rigproxy/internal/audit"
)

type contextKey string

// claimsKey stores verified claims in the request context.
const claimsKey contextKey = "claims"

// Middleware attaches bearer-token checks to handlers. A nil *Middleware
// (auth disabled) passes every request through unchanged.
type Middleware struct {
	verifier *Verifier
}

// NewMiddleware creates middleware around the given verifier.
func NewMiddleware(verifier *Verifier) *Middleware {
	return &Middleware{verifier: verifier}
}

// RequireScope wraps a handler so it runs only for requests bearing a
// valid token carrying the scope. The authenticated subject is placed in
// the context for audit attribution.
func (m *Middleware) RequireScope(scope string, next http.HandlerFunc) http.HandlerFunc {
	if m == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
			return
		}
		claims, err := m.verifier.Verify(token)
		if err != nil {
			writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
			return
		}
		if !claims.HasScope(scope) {
			writeAuthError(w, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		ctx = audit.WithUser(ctx, claims.Subject)
		next(w, r.WithContext(ctx))
	}
}

// ClaimsFrom returns the verified claims stored by RequireScope, or nil.
func ClaimsFrom(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey).(*Claims)
	return claims
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"result":  "error",
		"code":    code,
		"message": message,
	})
}
