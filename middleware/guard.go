// Package middleware provides net/http guards for resource servers that
// validate access tokens issued by the lifecycle manager. Validation is
// codec-only (no cache round trip), matching the stateless access-token
// contract.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/sessionlab/authcore/token"
)

// Validator is the slice of the manager the guard needs.
type Validator interface {
	ValidateAccess(accessToken string) (*token.AccessClaims, error)
}

type claimsContextKey struct{}

// ClaimsFromContext returns the access claims stored by [RequireAccess].
func ClaimsFromContext(ctx context.Context) (*token.AccessClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*token.AccessClaims)
	return claims, ok
}

// RequireAccess rejects requests without a valid bearer access token and
// exposes the verified claims to downstream handlers via the request
// context. All failures collapse to 401 without detail.
func RequireAccess(v Validator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			raw, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := v.ValidateAccess(raw)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}
	raw := value[len(bearer):]
	if raw == "" {
		return "", false
	}
	return raw, true
}
