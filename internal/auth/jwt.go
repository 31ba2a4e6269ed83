package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/minmin-app/minmin/internal/domain"
)

// Claims holds the JWT token payload. The subject is the user ID; tenant and
// branch are empty for customers and admins.
type Claims struct {
	jwt.RegisteredClaims
	Email     string `json:"email"`
	UserType  string `json:"user_type"`
	TenantID  string `json:"tenant,omitempty"`
	BranchID  string `json:"branch,omitempty"`
	TokenType string `json:"typ"` // "access" or "refresh"
}

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"

	tokenIssuer = "minmin"
)

// ErrInvalidToken is returned when a JWT cannot be parsed or has expired.
var ErrInvalidToken = errors.New("auth: invalid or expired token")

// IssueAccessToken creates a signed JWT access token for u.
func IssueAccessToken(secret string, u *domain.User, ttl time.Duration) (string, error) {
	return issueToken(secret, u, TokenTypeAccess, ttl)
}

// IssueRefreshToken creates a signed JWT refresh token for u.
func IssueRefreshToken(secret string, u *domain.User, ttl time.Duration) (string, error) {
	return issueToken(secret, u, TokenTypeRefresh, ttl)
}

func issueToken(secret string, u *domain.User, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    tokenIssuer,
		},
		Email:     u.Email,
		UserType:  string(u.UserType),
		TokenType: tokenType,
	}
	if u.TenantID != nil {
		claims.TenantID = u.TenantID.String()
	}
	if u.BranchID != nil {
		claims.BranchID = u.BranchID.String()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("auth.issueToken: %w", err)
	}

	return signed, nil
}

// ValidateToken parses and validates a JWT token string. Returns the embedded claims.
func ValidateToken(secret, tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, fmt.Errorf("auth.ValidateToken: %w", ErrInvalidToken)
	}

	if !token.Valid {
		return nil, fmt.Errorf("auth.ValidateToken: %w", ErrInvalidToken)
	}

	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, fmt.Errorf("auth.ValidateToken: subject: %w", ErrInvalidToken)
	}

	return claims, nil
}

// UserID returns the subject as a UUID. ValidateToken guarantees it parses.
func (c *Claims) UserID() uuid.UUID {
	id, _ := uuid.Parse(c.Subject)
	return id
}

// Tenant returns the tenant claim, or nil when absent or malformed.
func (c *Claims) Tenant() *uuid.UUID {
	return optionalUUID(c.TenantID)
}

// Branch returns the branch claim, or nil when absent or malformed.
func (c *Claims) Branch() *uuid.UUID {
	return optionalUUID(c.BranchID)
}

// Remaining returns how long the token stays valid.
func (c *Claims) Remaining() time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return time.Until(c.ExpiresAt.Time)
}

func optionalUUID(s string) *uuid.UUID {
	if s == "" {
		return nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil
	}
	return &id
}
