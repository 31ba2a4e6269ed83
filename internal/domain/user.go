package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserType distinguishes customers from restaurant staff and platform admins.
type UserType string

const (
	UserTypeCustomer   UserType = "customer"
	UserTypeRestaurant UserType = "restaurant"
	UserTypeBranch     UserType = "branch"
	UserTypeAdmin      UserType = "admin"
)

// Valid reports whether t is one of the known user types.
func (t UserType) Valid() bool {
	switch t {
	case UserTypeCustomer, UserTypeRestaurant, UserTypeBranch, UserTypeAdmin:
		return true
	}
	return false
}

// IsStaff reports whether t manages a tenant (restaurant owner or branch operator).
func (t UserType) IsStaff() bool {
	return t == UserTypeRestaurant || t == UserTypeBranch
}

type User struct {
	ID                       uuid.UUID  `json:"id"`
	Email                    string     `json:"email"`
	PasswordHash             string     `json:"-"` // argon2id, or legacy bcrypt until the next login
	FullName                 string     `json:"full_name"`
	Phone                    string     `json:"phone,omitempty"`
	UserType                 UserType   `json:"user_type"`
	Image                    string     `json:"image,omitempty"`
	PushToken                string     `json:"-"`
	PushTokenSyncedAt        *time.Time `json:"push_token_synced_at,omitempty"`
	Birthday                 *time.Time `json:"birthday,omitempty"`
	TenantID                 *uuid.UUID `json:"tenant_id,omitempty"`
	BranchID                 *uuid.UUID `json:"branch_id,omitempty"`
	OTPHash                  string     `json:"-"` // SHA-256 of the pending one-time password
	OTPExpiry                *time.Time `json:"-"`
	FailedAttempts           int        `json:"-"`
	LockedUntil              *time.Time `json:"-"`
	OptInPromotions          bool       `json:"opt_in_promotions"`
	EnableEmailNotifications bool       `json:"enable_email_notifications"`
	EnableInAppNotifications bool       `json:"enable_in_app_notifications"`
	TINNo                    string     `json:"tin_no,omitempty"`
	IsStaff                  bool       `json:"is_staff"`
	IsActive                 bool       `json:"is_active"`
	RefreshTokenHash         string     `json:"-"`
	CreatedAt                time.Time  `json:"created_at"`
	UpdatedAt                time.Time  `json:"updated_at"`
}

// IsAdmin reports whether the user has platform-wide privileges.
func (u *User) IsAdmin() bool {
	return u.UserType == UserTypeAdmin
}

// HasPendingOTP reports whether the account still waits for OTP verification.
func (u *User) HasPendingOTP() bool {
	return u.OTPHash != ""
}

// LockedAt reports whether the account is locked at the given instant.
func (u *User) LockedAt(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

// ProfileComplete reports whether the optional profile fields used for the
// profile completion reward have been filled in.
func (u *User) ProfileComplete() bool {
	return u.Phone != "" && u.Birthday != nil
}

// ClearOTP resets the OTP and lockout state after a successful verification.
func (u *User) ClearOTP() {
	u.OTPHash = ""
	u.OTPExpiry = nil
	u.FailedAttempts = 0
	u.LockedUntil = nil
}

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByBranch(ctx context.Context, branchID uuid.UUID) (*User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*User, error)

	// ListPushRecipients returns users that registered a push token and
	// accept in-app notifications.
	ListPushRecipients(ctx context.Context) ([]*User, error)
}

// APIKey identifies a client application allowed to call the API.
type APIKey struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	KeyHash    string     `json:"-"`      // SHA-256
	Prefix     string     `json:"prefix"` // first 8 chars for identification
	CreatedBy  uuid.UUID  `json:"created_by"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

type APIKeyRepository interface {
	Create(ctx context.Context, key *APIKey) error
	GetByPrefix(ctx context.Context, prefix string) (*APIKey, error)
	List(ctx context.Context) ([]*APIKey, error)
	Delete(ctx context.Context, id uuid.UUID) error
	UpdateLastUsed(ctx context.Context, id uuid.UUID) error
}
