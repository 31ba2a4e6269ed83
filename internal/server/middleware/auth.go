package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/minmin-app/minmin/internal/auth"
)

// Revoker reports whether a validated token has been revoked since issue.
// *auth.Service satisfies this interface.
type Revoker interface {
	CheckRevoked(ctx context.Context, claims *auth.Claims) error
}

// KeyValidator checks the client application key. *auth.Service satisfies
// this interface.
type KeyValidator interface {
	ValidateClientKey(ctx context.Context, rawKey string) error
}

// Auth validates the bearer access token (or the access_token query
// parameter used by WebSocket clients) and stores the caller in the request
// context. revoker may be nil.
func Auth(jwtSecret string, revoker Revoker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := extractBearer(r)
			if tok == "" {
				tok = r.URL.Query().Get("access_token")
			}
			if tok == "" {
				writeProblem(w, http.StatusUnauthorized, "missing or invalid credentials")
				return
			}

			claims, err := auth.ValidateToken(jwtSecret, tok)
			if err != nil || claims.TokenType != auth.TokenTypeAccess {
				writeProblem(w, http.StatusUnauthorized, "missing or invalid credentials")
				return
			}

			if revoker != nil {
				if err := revoker.CheckRevoked(r.Context(), claims); err != nil {
					if errors.Is(err, auth.ErrTokenRevoked) {
						writeProblem(w, http.StatusUnauthorized, "token has been revoked")
						return
					}
					log.Error().Err(err).Str("component", "auth").Msg("revocation check failed")
					writeProblem(w, http.StatusServiceUnavailable, "authentication temporarily unavailable")
					return
				}
			}

			ctx := context.WithValue(r.Context(), ContextKeyClaims, claims)
			ctx = WithPrincipal(ctx, PrincipalFromClaims(claims))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAPIKey rejects requests without a valid X-API-Key header.
func RequireAPIKey(v KeyValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := v.ValidateClientKey(r.Context(), r.Header.Get("X-API-Key")); err != nil {
				writeProblem(w, http.StatusUnauthorized, "invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
