package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/minmin-app/minmin/internal/domain"
	"github.com/minmin-app/minmin/internal/mail"
)

// TokenBlacklist revokes tokens before they expire.
type TokenBlacklist interface {
	AddToBlacklist(ctx context.Context, jti string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
	AddUserTokensToBlacklist(ctx context.Context, userID string, ttl time.Duration) error
	IsUserTokenInvalidated(ctx context.Context, userID string, issuedAt time.Time) (bool, error)
}

// ProfileRewarder is notified when a customer completes their profile.
type ProfileRewarder interface {
	AwardProfileCompletion(ctx context.Context, user *domain.User) error
}

// Repositories groups the stores the service reads and writes.
type Repositories struct {
	Users    domain.UserRepository
	Tenants  domain.TenantRepository
	Branches domain.BranchRepository
	APIKeys  domain.APIKeyRepository
}

// Config tunes token lifetimes and the lockout policy.
type Config struct {
	AccessSecret      string
	RefreshSecret     string
	AccessTTL         time.Duration
	RefreshTTL        time.Duration
	MaxFailedAttempts int
	LockoutDuration   time.Duration
	OTPTTL            time.Duration
	StaticAPIKeys     []string
}

// Service provides account and authentication operations.
type Service struct {
	repos     Repositories
	mailer    mail.Mailer
	blacklist TokenBlacklist
	rewarder  ProfileRewarder
	cfg       Config
	validate  *validator.Validate
	now       func() time.Time
}

// NewService creates a new auth service. blacklist may be nil, in which case
// logout only clears the stored refresh token.
func NewService(repos Repositories, mailer mail.Mailer, blacklist TokenBlacklist, cfg Config) *Service {
	return &Service{
		repos:     repos,
		mailer:    mailer,
		blacklist: blacklist,
		cfg:       cfg,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		now:       time.Now,
	}
}

// SetProfileRewarder registers the hook run after a customer's profile
// becomes complete.
func (s *Service) SetProfileRewarder(r ProfileRewarder) {
	s.rewarder = r
}

// Tokens is the result of a successful login, OTP verification or refresh.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	User         *domain.User
}

// RegisterParams is the public registration payload.
type RegisterParams struct {
	Email                    string          `validate:"required,email"`
	Password                 string          `validate:"required,min=8"`
	FullName                 string          `validate:"max=255"`
	Phone                    string          `validate:"max=32"`
	UserType                 domain.UserType `validate:"required"`
	TenantID                 *uuid.UUID
	BranchID                 *uuid.UUID
	Birthday                 *time.Time
	TINNo                    string `validate:"max=15"`
	OptInPromotions          *bool
	EnableEmailNotifications *bool
	EnableInAppNotifications *bool
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// Register creates an account. Customers receive a one-time password by mail
// and must verify it before logging in.
func (s *Service) Register(ctx context.Context, p RegisterParams) (*domain.User, error) {
	p.Email = normalizeEmail(p.Email)
	if err := s.validate.Struct(p); err != nil {
		return nil, fmt.Errorf("auth.Register: %w: %w", domain.ErrInvalidInput, err)
	}
	if !p.UserType.Valid() {
		return nil, fmt.Errorf("auth.Register: user type %q: %w", p.UserType, domain.ErrInvalidInput)
	}
	if p.UserType == domain.UserTypeAdmin {
		return nil, fmt.Errorf("auth.Register: %w", ErrAdminRegistration)
	}

	if _, err := s.repos.Users.GetByEmail(ctx, p.Email); err == nil {
		return nil, fmt.Errorf("auth.Register: %w", ErrUserAlreadyExists)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("auth.Register: %w", err)
	}

	tenantID := p.TenantID
	if tenantID != nil {
		if _, err := s.repos.Tenants.GetByID(ctx, *tenantID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("auth.Register: %w", ErrTenantNotFound)
			}
			return nil, fmt.Errorf("auth.Register: %w", err)
		}
	}

	if p.BranchID != nil {
		branch, err := s.repos.Branches.GetByID(ctx, *p.BranchID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("auth.Register: %w", ErrBranchNotFound)
			}
			return nil, fmt.Errorf("auth.Register: %w", err)
		}
		if _, err := s.repos.Users.GetByBranch(ctx, branch.ID); err == nil {
			return nil, fmt.Errorf("auth.Register: %w", ErrBranchTaken)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("auth.Register: %w", err)
		}
		tenantID = &branch.TenantID
	}

	if p.UserType == domain.UserTypeBranch && p.BranchID == nil {
		return nil, fmt.Errorf("auth.Register: %w", ErrBranchRequired)
	}

	hash, err := hashPassword(p.Password)
	if err != nil {
		return nil, fmt.Errorf("auth.Register: %w", err)
	}

	now := s.now()
	user := &domain.User{
		ID:                       uuid.New(),
		Email:                    p.Email,
		PasswordHash:             hash,
		FullName:                 strings.TrimSpace(p.FullName),
		Phone:                    strings.TrimSpace(p.Phone),
		UserType:                 p.UserType,
		Birthday:                 p.Birthday,
		TenantID:                 tenantID,
		BranchID:                 p.BranchID,
		TINNo:                    p.TINNo,
		OptInPromotions:          boolOr(p.OptInPromotions, true),
		EnableEmailNotifications: boolOr(p.EnableEmailNotifications, true),
		EnableInAppNotifications: boolOr(p.EnableInAppNotifications, true),
		IsStaff:                  p.UserType.IsStaff(),
		IsActive:                 true,
		CreatedAt:                now,
		UpdatedAt:                now,
	}

	var otp string
	if p.UserType == domain.UserTypeCustomer {
		otp, err = generateOTP()
		if err != nil {
			return nil, fmt.Errorf("auth.Register: %w", err)
		}
		expiry := now.Add(s.cfg.OTPTTL)
		user.OTPHash = sha256Hex(otp)
		user.OTPExpiry = &expiry
	}

	if err := s.repos.Users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("auth.Register: %w", ErrUserAlreadyExists)
		}
		return nil, fmt.Errorf("auth.Register: %w", err)
	}

	if otp != "" {
		msg := mail.Message{
			To:      user.Email,
			Subject: "Your OTP for Registration",
			Text:    fmt.Sprintf("Your OTP is %s. It is valid for %d minutes.", otp, s.otpMinutes()),
		}
		if err := s.mailer.Send(ctx, msg); err != nil {
			if delErr := s.repos.Users.Delete(ctx, user.ID); delErr != nil {
				log.Error().Err(delErr).Str("user_id", user.ID.String()).Msg("auth.Register: rollback after mail failure")
			}
			return nil, fmt.Errorf("auth.Register: sending otp: %w", err)
		}
	}

	return user, nil
}

func (s *Service) otpMinutes() int {
	return int(s.cfg.OTPTTL / time.Minute)
}

// checkPendingOTP validates otp against the user's pending code.
func (s *Service) checkPendingOTP(u *domain.User, otp string) error {
	if !u.HasPendingOTP() || u.OTPExpiry == nil {
		return ErrNoPendingOTP
	}
	if u.OTPExpiry.Before(s.now()) {
		return ErrOTPExpired
	}
	if !hashMatches(otp, u.OTPHash) {
		return ErrInvalidOTP
	}
	return nil
}

// VerifyOTP completes registration and logs the user in.
func (s *Service) VerifyOTP(ctx context.Context, email, otp string) (*Tokens, error) {
	user, err := s.repos.Users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("auth.VerifyOTP: %w", ErrUserNotFound)
		}
		return nil, fmt.Errorf("auth.VerifyOTP: %w", err)
	}

	if err := s.checkPendingOTP(user, otp); err != nil {
		return nil, fmt.Errorf("auth.VerifyOTP: %w", err)
	}

	user.ClearOTP()

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("auth.VerifyOTP: %w", err)
	}
	return tokens, nil
}

// CheckOTP reports whether otp is the user's current, unexpired code. It has
// no side effects and never reveals whether the account exists.
func (s *Service) CheckOTP(ctx context.Context, email, otp string) bool {
	user, err := s.repos.Users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return false
	}
	return s.checkPendingOTP(user, otp) == nil
}

// Login validates email/password and returns access + refresh JWT tokens.
func (s *Service) Login(ctx context.Context, email, password string) (*Tokens, error) {
	user, err := s.repos.Users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("auth.Login: %w", ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("auth.Login: %w", err)
	}

	now := s.now()
	if user.LockedAt(now) {
		return nil, fmt.Errorf("auth.Login: %w", &LockedError{Remaining: user.LockedUntil.Sub(now)})
	}

	if user.HasPendingOTP() {
		return nil, fmt.Errorf("auth.Login: %w", ErrAccountNotVerified)
	}

	if (user.UserType == domain.UserTypeRestaurant && user.TenantID == nil) ||
		(user.UserType == domain.UserTypeBranch && user.BranchID == nil) {
		return nil, fmt.Errorf("auth.Login: %w", ErrAccountNotConfigured)
	}

	ok, rehash := verifyPassword(password, user.PasswordHash)
	if !ok {
		user.FailedAttempts++
		failure := ErrInvalidCredentials
		if user.FailedAttempts >= s.cfg.MaxFailedAttempts {
			until := now.Add(s.cfg.LockoutDuration)
			user.LockedUntil = &until
			failure = ErrTooManyAttempts
		}
		user.UpdatedAt = now
		if err := s.repos.Users.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("auth.Login: %w", err)
		}
		return nil, fmt.Errorf("auth.Login: %w", failure)
	}

	if rehash {
		if upgraded, err := hashPassword(password); err == nil {
			user.PasswordHash = upgraded
		}
	}
	user.FailedAttempts = 0
	user.LockedUntil = nil

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("auth.Login: %w", err)
	}
	return tokens, nil
}

// Logout forgets the user's refresh token and revokes the presented access token.
func (s *Service) Logout(ctx context.Context, claims *Claims) error {
	user, err := s.repos.Users.GetByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("auth.Logout: %w", ErrUserNotFound)
		}
		return fmt.Errorf("auth.Logout: %w", err)
	}

	user.RefreshTokenHash = ""
	user.UpdatedAt = s.now()
	if err := s.repos.Users.Update(ctx, user); err != nil {
		return fmt.Errorf("auth.Logout: %w", err)
	}

	if s.blacklist != nil && claims.ID != "" {
		if ttl := claims.Remaining(); ttl > 0 {
			if err := s.blacklist.AddToBlacklist(ctx, claims.ID, ttl); err != nil {
				return fmt.Errorf("auth.Logout: %w", err)
			}
		}
	}
	return nil
}

// Refresh exchanges a valid refresh token for a new token pair. The previous
// refresh token stops working.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	claims, err := ValidateToken(s.cfg.RefreshSecret, refreshToken)
	if err != nil || claims.TokenType != TokenTypeRefresh {
		return nil, fmt.Errorf("auth.Refresh: %w", ErrInvalidRefreshToken)
	}

	user, err := s.repos.Users.GetByID(ctx, claims.UserID())
	if err != nil || user.RefreshTokenHash == "" {
		return nil, fmt.Errorf("auth.Refresh: %w", ErrInvalidRefreshToken)
	}

	if !hashMatches(refreshToken, user.RefreshTokenHash) {
		return nil, fmt.Errorf("auth.Refresh: %w", ErrInvalidRefreshToken)
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("auth.Refresh: %w", err)
	}
	return tokens, nil
}

// RequestPasswordReset mails a fresh OTP to the account owner.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.repos.Users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("auth.RequestPasswordReset: %w", ErrUserNotFound)
		}
		return fmt.Errorf("auth.RequestPasswordReset: %w", err)
	}

	otp, err := generateOTP()
	if err != nil {
		return fmt.Errorf("auth.RequestPasswordReset: %w", err)
	}
	now := s.now()
	expiry := now.Add(s.cfg.OTPTTL)
	user.OTPHash = sha256Hex(otp)
	user.OTPExpiry = &expiry
	user.UpdatedAt = now
	if err := s.repos.Users.Update(ctx, user); err != nil {
		return fmt.Errorf("auth.RequestPasswordReset: %w", err)
	}

	msg := mail.Message{
		To:      user.Email,
		Subject: "Password reset OTP",
		Text:    fmt.Sprintf("Use OTP %s to reset your password. It expires in %d minutes.", otp, s.otpMinutes()),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("auth.RequestPasswordReset: sending otp: %w", err)
	}
	return nil
}

// ResetPassword sets a new password after OTP verification and revokes every
// token issued to the user so far.
func (s *Service) ResetPassword(ctx context.Context, email, otp, newPassword string) error {
	if err := s.validate.Var(newPassword, "required,min=8"); err != nil {
		return fmt.Errorf("auth.ResetPassword: %w: %w", domain.ErrInvalidInput, err)
	}

	user, err := s.repos.Users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("auth.ResetPassword: %w", ErrNoPendingOTP)
		}
		return fmt.Errorf("auth.ResetPassword: %w", err)
	}

	if err := s.checkPendingOTP(user, otp); err != nil {
		return fmt.Errorf("auth.ResetPassword: %w", err)
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("auth.ResetPassword: %w", err)
	}
	user.PasswordHash = hash
	user.ClearOTP()
	user.RefreshTokenHash = ""
	user.UpdatedAt = s.now()
	if err := s.repos.Users.Update(ctx, user); err != nil {
		return fmt.Errorf("auth.ResetPassword: %w", err)
	}

	if s.blacklist != nil {
		if err := s.blacklist.AddUserTokensToBlacklist(ctx, user.ID.String(), s.cfg.RefreshTTL); err != nil {
			log.Warn().Err(err).Str("user_id", user.ID.String()).Msg("auth.ResetPassword: revoking outstanding tokens")
		}
	}
	return nil
}

// CheckRevoked reports whether a validated access token has been revoked by
// logout or by a password reset.
func (s *Service) CheckRevoked(ctx context.Context, claims *Claims) error {
	if s.blacklist == nil {
		return nil
	}
	if claims.ID != "" {
		revoked, err := s.blacklist.IsBlacklisted(ctx, claims.ID)
		if err != nil {
			return fmt.Errorf("auth.CheckRevoked: %w", err)
		}
		if revoked {
			return fmt.Errorf("auth.CheckRevoked: %w", ErrTokenRevoked)
		}
	}
	if claims.IssuedAt != nil {
		invalidated, err := s.blacklist.IsUserTokenInvalidated(ctx, claims.Subject, claims.IssuedAt.Time)
		if err != nil {
			return fmt.Errorf("auth.CheckRevoked: %w", err)
		}
		if invalidated {
			return fmt.Errorf("auth.CheckRevoked: %w", ErrTokenRevoked)
		}
	}
	return nil
}

// ListUsers returns a page of accounts.
func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	users, err := s.repos.Users.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("auth.ListUsers: %w", err)
	}
	return users, nil
}

// GetUser returns a user by ID.
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := s.repos.Users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("auth.GetUser: %w", ErrUserNotFound)
		}
		return nil, fmt.Errorf("auth.GetUser: %w", err)
	}
	return user, nil
}

// UpdateUserParams holds the profile fields a user may change. Nil fields
// are left untouched.
type UpdateUserParams struct {
	FullName                 *string `validate:"omitnil,max=255"`
	Phone                    *string `validate:"omitnil,max=32"`
	Birthday                 *time.Time
	ClearBirthday            bool
	TINNo                    *string `validate:"omitnil,max=15"`
	Image                    *string `validate:"omitnil,max=1024"`
	OptInPromotions          *bool
	EnableEmailNotifications *bool
	EnableInAppNotifications *bool
}

// UpdateUser applies a partial profile update. A customer whose profile
// becomes complete is handed to the ProfileRewarder.
func (s *Service) UpdateUser(ctx context.Context, id uuid.UUID, p UpdateUserParams) (*domain.User, error) {
	if err := s.validate.Struct(p); err != nil {
		return nil, fmt.Errorf("auth.UpdateUser: %w: %w", domain.ErrInvalidInput, err)
	}

	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("auth.UpdateUser: %w", err)
	}
	wasComplete := user.ProfileComplete()

	if p.FullName != nil {
		user.FullName = strings.TrimSpace(*p.FullName)
	}
	if p.Phone != nil {
		user.Phone = strings.TrimSpace(*p.Phone)
	}
	if p.ClearBirthday {
		user.Birthday = nil
	} else if p.Birthday != nil {
		user.Birthday = p.Birthday
	}
	if p.TINNo != nil {
		user.TINNo = *p.TINNo
	}
	if p.Image != nil {
		user.Image = *p.Image
	}
	if p.OptInPromotions != nil {
		user.OptInPromotions = *p.OptInPromotions
	}
	if p.EnableEmailNotifications != nil {
		user.EnableEmailNotifications = *p.EnableEmailNotifications
	}
	if p.EnableInAppNotifications != nil {
		user.EnableInAppNotifications = *p.EnableInAppNotifications
	}
	user.UpdatedAt = s.now()

	if err := s.repos.Users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("auth.UpdateUser: %w", err)
	}

	if s.rewarder != nil && user.UserType == domain.UserTypeCustomer && !wasComplete && user.ProfileComplete() {
		if err := s.rewarder.AwardProfileCompletion(ctx, user); err != nil {
			log.Warn().Err(err).Str("user_id", user.ID.String()).Msg("auth.UpdateUser: profile completion reward")
		}
	}

	return user, nil
}

// DeleteUser removes an account.
func (s *Service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if err := s.repos.Users.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("auth.DeleteUser: %w", ErrUserNotFound)
		}
		return fmt.Errorf("auth.DeleteUser: %w", err)
	}
	return nil
}

// UpdatePushToken stores the Expo push token of the user's device.
func (s *Service) UpdatePushToken(ctx context.Context, id uuid.UUID, token string) (*domain.User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("auth.UpdatePushToken: %w", err)
	}

	now := s.now()
	user.PushToken = strings.TrimSpace(token)
	user.PushTokenSyncedAt = &now
	user.UpdatedAt = now
	if err := s.repos.Users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("auth.UpdatePushToken: %w", err)
	}
	return user, nil
}

// CreateAdminParams bootstraps a platform administrator.
type CreateAdminParams struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=12"`
	FullName string `validate:"required,max=255"`
}

// CreateAdmin creates an already verified admin account. It is only reachable
// from the command line.
func (s *Service) CreateAdmin(ctx context.Context, p CreateAdminParams) (*domain.User, error) {
	p.Email = normalizeEmail(p.Email)
	if err := s.validate.Struct(p); err != nil {
		return nil, fmt.Errorf("auth.CreateAdmin: %w: %w", domain.ErrInvalidInput, err)
	}

	hash, err := hashPassword(p.Password)
	if err != nil {
		return nil, fmt.Errorf("auth.CreateAdmin: %w", err)
	}

	now := s.now()
	user := &domain.User{
		ID:                       uuid.New(),
		Email:                    p.Email,
		PasswordHash:             hash,
		FullName:                 p.FullName,
		UserType:                 domain.UserTypeAdmin,
		EnableEmailNotifications: true,
		EnableInAppNotifications: true,
		IsStaff:                  true,
		IsActive:                 true,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	if err := s.repos.Users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("auth.CreateAdmin: %w", ErrUserAlreadyExists)
		}
		return nil, fmt.Errorf("auth.CreateAdmin: %w", err)
	}
	return user, nil
}

// issueTokens signs a new token pair, stores the refresh token hash and
// persists any pending changes to user.
func (s *Service) issueTokens(ctx context.Context, user *domain.User) (*Tokens, error) {
	access, err := IssueAccessToken(s.cfg.AccessSecret, user, s.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}

	refresh, err := IssueRefreshToken(s.cfg.RefreshSecret, user, s.cfg.RefreshTTL)
	if err != nil {
		return nil, err
	}

	user.RefreshTokenHash = sha256Hex(refresh)
	user.UpdatedAt = s.now()
	if err := s.repos.Users.Update(ctx, user); err != nil {
		return nil, err
	}

	return &Tokens{AccessToken: access, RefreshToken: refresh, User: user}, nil
}
