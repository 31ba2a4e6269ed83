package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/minmin-app/minmin/internal/auth"
	"github.com/minmin-app/minmin/internal/domain"
)

type contextKey string

const (
	ContextKeyPrincipal contextKey = "principal"
	ContextKeyClaims    contextKey = "claims"
)

// Principal is the authenticated caller as described by its access token.
type Principal struct {
	UserID   uuid.UUID
	Email    string
	UserType domain.UserType
	TenantID *uuid.UUID
	BranchID *uuid.UUID
}

func (p Principal) IsAdmin() bool {
	return p.UserType == domain.UserTypeAdmin
}

// ManagesTenant reports whether the caller is an admin or staff of tenantID.
func (p Principal) ManagesTenant(tenantID uuid.UUID) bool {
	if p.IsAdmin() {
		return true
	}
	return p.UserType.IsStaff() && p.TenantID != nil && *p.TenantID == tenantID
}

// PrincipalFromClaims maps validated access token claims to a Principal.
func PrincipalFromClaims(c *auth.Claims) Principal {
	return Principal{
		UserID:   c.UserID(),
		Email:    c.Email,
		UserType: domain.UserType(c.UserType),
		TenantID: c.Tenant(),
		BranchID: c.Branch(),
	}
}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ContextKeyPrincipal, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	v, ok := ctx.Value(ContextKeyPrincipal).(Principal)
	return v, ok
}

func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	v, ok := ctx.Value(ContextKeyClaims).(*auth.Claims)
	return v, ok && v != nil
}
