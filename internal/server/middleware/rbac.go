package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/minmin-app/minmin/internal/domain"
)

type problem struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

func writeProblem(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(problem{Title: http.StatusText(status), Status: status, Detail: detail})
}

// RequireUserType returns middleware that checks if the authenticated user has
// one of the allowed user types. It must be chained after Auth.
//
// Returns 401 Unauthorized when no principal is found in context and 403
// Forbidden when the user type does not match.
func RequireUserType(types ...domain.UserType) func(http.Handler) http.Handler {
	allowed := make(map[domain.UserType]struct{}, len(types))
	for _, t := range types {
		allowed[t] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok || p.UserType == "" {
				writeProblem(w, http.StatusUnauthorized, "authentication required")
				return
			}

			if _, match := allowed[p.UserType]; !match {
				writeProblem(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin is a convenience wrapper for RequireUserType(admin).
func RequireAdmin() func(http.Handler) http.Handler {
	return RequireUserType(domain.UserTypeAdmin)
}
