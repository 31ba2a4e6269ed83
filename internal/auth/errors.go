package auth

import (
	"errors"
	"math"
	"time"
)

// Sentinel errors for the auth package.
var (
	ErrInvalidCredentials   = errors.New("auth: invalid credentials")
	ErrUserAlreadyExists    = errors.New("auth: user already exists")
	ErrUserNotFound         = errors.New("auth: user not found")
	ErrAccountLocked        = errors.New("auth: account locked")
	ErrTooManyAttempts      = errors.New("auth: too many failed attempts")
	ErrAccountNotVerified   = errors.New("auth: account not verified")
	ErrAccountNotConfigured = errors.New("auth: account not fully configured")
	ErrNoPendingOTP         = errors.New("auth: no otp pending")
	ErrOTPExpired           = errors.New("auth: otp expired")
	ErrInvalidOTP           = errors.New("auth: invalid otp")
	ErrInvalidRefreshToken  = errors.New("auth: invalid refresh token")
	ErrTenantNotFound       = errors.New("auth: tenant not found")
	ErrBranchNotFound       = errors.New("auth: branch not found")
	ErrBranchTaken          = errors.New("auth: branch already has an assigned user")
	ErrBranchRequired       = errors.New("auth: branch accounts require a branch")
	ErrAdminRegistration    = errors.New("auth: admin accounts cannot self-register")
	ErrTokenRevoked         = errors.New("auth: token revoked")
)

// LockedError reports a login attempt against a locked account.
type LockedError struct {
	Remaining time.Duration
}

func (e *LockedError) Error() string {
	return "auth: account locked"
}

func (e *LockedError) Unwrap() error {
	return ErrAccountLocked
}

// Minutes returns the remaining lock time rounded up to whole minutes.
func (e *LockedError) Minutes() int {
	return int(math.Ceil(e.Remaining.Minutes()))
}
