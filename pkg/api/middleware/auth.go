// Package middleware holds admin API middleware.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/marmos91/mediaforge/internal/logger"
	"github.com/marmos91/mediaforge/pkg/api/auth"
)

// TokenValidator checks a bearer token. *auth.JWTService implements it.
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

type claimsKey struct{}

// ClaimsFromContext returns the claims stored by RequireBearer, or nil.
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey{}).(*auth.Claims)
	return claims
}

// RequireBearer rejects requests without a valid "Authorization: Bearer"
// token with 401 and a JSON error envelope.
func RequireBearer(v TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, token, _ := strings.Cut(r.Header.Get("Authorization"), " ")
			if !strings.EqualFold(scheme, "Bearer") || token == "" {
				unauthorized(w, "", "bearer token required")
				return
			}

			claims, err := v.ValidateToken(strings.TrimSpace(token))
			if err != nil {
				logger.Debug("Rejected API token", logger.KeyClient, r.RemoteAddr, logger.KeyError, err)
				unauthorized(w, "invalid_token", "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
		})
	}
}

func unauthorized(w http.ResponseWriter, code, msg string) {
	challenge := `Bearer realm="mediaforge"`
	if code != "" {
		challenge += fmt.Sprintf(`, error=%q`, code)
	}
	w.Header().Set("WWW-Authenticate", challenge)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = fmt.Fprintf(w, `{"status":"error","error":%q}`+"\n", msg)
}
