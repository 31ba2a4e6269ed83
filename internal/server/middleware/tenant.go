package middleware

import (
	"net/http"

	"github.com/minmin-app/minmin/internal/domain"
)

// RequireConfiguredStaff rejects restaurant and branch users whose token
// carries no tenant, and branch users without a branch.
func RequireConfiguredStaff() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if ok && p.UserType.IsStaff() {
				if p.TenantID == nil || (p.UserType == domain.UserTypeBranch && p.BranchID == nil) {
					writeProblem(w, http.StatusForbidden, "account is not fully configured")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
