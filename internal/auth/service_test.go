package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/minmin-app/minmin/internal/auth"
	"github.com/minmin-app/minmin/internal/domain"
)

func activeUser(t *testing.T, email, password string, userType domain.UserType) *domain.User {
	t.Helper()

	hash, err := auth.HashPassword(password)
	require.NoError(t, err)

	return &domain.User{
		ID:                       uuid.New(),
		Email:                    email,
		PasswordHash:             hash,
		FullName:                 "Test User",
		UserType:                 userType,
		EnableInAppNotifications: true,
		IsActive:                 true,
	}
}

func ptr[T any](v T) *T { return &v }

// ---------------------------------------------------------------------------
// Register
// ---------------------------------------------------------------------------

func TestService_Register(t *testing.T) {
	t.Parallel()

	t.Run("customer receives otp", func(t *testing.T) {
		t.Parallel()
		h := newHarness()

		user, err := h.svc.Register(t.Context(), auth.RegisterParams{
			Email:    "  Abebe@Example.COM ",
			Password: "password123",
			FullName: "Abebe Bikila",
			UserType: domain.UserTypeCustomer,
		})
		require.NoError(t, err)

		assert.Equal(t, "abebe@example.com", user.Email)
		assert.True(t, user.HasPendingOTP())
		assert.True(t, user.OptInPromotions)
		assert.True(t, user.EnableEmailNotifications)
		assert.True(t, user.EnableInAppNotifications)
		assert.True(t, user.IsActive)

		require.Len(t, h.mailer.sent, 1)
		assert.Equal(t, "abebe@example.com", h.mailer.sent[0].To)
		assert.Equal(t, "Your OTP for Registration", h.mailer.sent[0].Subject)
		assert.Contains(t, h.mailer.sent[0].Text, "It is valid for 10 minutes.")

		otp := h.mailer.lastOTP()
		require.Len(t, otp, 6)
		assert.Equal(t, auth.SHA256Hex(otp), h.users.get(user.ID).OTPHash)
	})

	t.Run("restaurant gets no otp", func(t *testing.T) {
		t.Parallel()
		h := newHarness()

		user, err := h.svc.Register(t.Context(), auth.RegisterParams{
			Email: "owner@habesha.et", Password: "password123", UserType: domain.UserTypeRestaurant,
			OptInPromotions: ptr(false),
		})
		require.NoError(t, err)
		assert.False(t, user.HasPendingOTP())
		assert.False(t, user.OptInPromotions)
		assert.True(t, user.IsStaff)
		assert.Empty(t, h.mailer.sent)
	})

	t.Run("duplicate email", func(t *testing.T) {
		t.Parallel()
		h := newHarness(activeUser(t, "taken@example.com", "password123", domain.UserTypeCustomer))

		_, err := h.svc.Register(t.Context(), auth.RegisterParams{
			Email: "TAKEN@example.com", Password: "password123", UserType: domain.UserTypeCustomer,
		})
		assert.ErrorIs(t, err, auth.ErrUserAlreadyExists)
	})

	t.Run("unknown tenant", func(t *testing.T) {
		t.Parallel()
		h := newHarness()

		_, err := h.svc.Register(t.Context(), auth.RegisterParams{
			Email: "a@b.co", Password: "password123", UserType: domain.UserTypeRestaurant, TenantID: ptr(uuid.New()),
		})
		assert.ErrorIs(t, err, auth.ErrTenantNotFound)
	})

	t.Run("branch user inherits branch tenant", func(t *testing.T) {
		t.Parallel()
		h := newHarness()
		branch := &domain.Branch{ID: uuid.New(), TenantID: uuid.New()}
		h.branches.branches[branch.ID] = branch

		user, err := h.svc.Register(t.Context(), auth.RegisterParams{
			Email: "branch@b.co", Password: "password123", UserType: domain.UserTypeBranch, BranchID: &branch.ID,
		})
		require.NoError(t, err)
		require.NotNil(t, user.TenantID)
		assert.Equal(t, branch.TenantID, *user.TenantID)
		assert.Equal(t, branch.ID, *user.BranchID)
	})

	t.Run("branch already assigned", func(t *testing.T) {
		t.Parallel()
		branch := &domain.Branch{ID: uuid.New(), TenantID: uuid.New()}
		existing := activeUser(t, "first@b.co", "password123", domain.UserTypeBranch)
		existing.BranchID = &branch.ID
		h := newHarness(existing)
		h.branches.branches[branch.ID] = branch

		_, err := h.svc.Register(t.Context(), auth.RegisterParams{
			Email: "second@b.co", Password: "password123", UserType: domain.UserTypeBranch, BranchID: &branch.ID,
		})
		assert.ErrorIs(t, err, auth.ErrBranchTaken)
	})

	t.Run("unknown branch", func(t *testing.T) {
		t.Parallel()
		h := newHarness()

		_, err := h.svc.Register(t.Context(), auth.RegisterParams{
			Email: "x@b.co", Password: "password123", UserType: domain.UserTypeBranch, BranchID: ptr(uuid.New()),
		})
		assert.ErrorIs(t, err, auth.ErrBranchNotFound)
	})

	t.Run("branch type requires branch", func(t *testing.T) {
		t.Parallel()
		h := newHarness()

		_, err := h.svc.Register(t.Context(), auth.RegisterParams{
			Email: "x@b.co", Password: "password123", UserType: domain.UserTypeBranch,
		})
		assert.ErrorIs(t, err, auth.ErrBranchRequired)
	})

	t.Run("admin cannot self-register", func(t *testing.T) {
		t.Parallel()
		h := newHarness()

		_, err := h.svc.Register(t.Context(), auth.RegisterParams{
			Email: "root@b.co", Password: "password123", UserType: domain.UserTypeAdmin,
		})
		assert.ErrorIs(t, err, auth.ErrAdminRegistration)
	})

	t.Run("validation", func(t *testing.T) {
		t.Parallel()
		h := newHarness()

		tests := []auth.RegisterParams{
			{Email: "not-an-email", Password: "password123", UserType: domain.UserTypeCustomer},
			{Email: "a@b.co", Password: "short", UserType: domain.UserTypeCustomer},
			{Email: "a@b.co", Password: "password123", UserType: "waiter"},
			{Email: "a@b.co", Password: "password123", UserType: domain.UserTypeCustomer, TINNo: "1234567890123456"},
		}
		for _, p := range tests {
			_, err := h.svc.Register(t.Context(), p)
			assert.ErrorIs(t, err, domain.ErrInvalidInput, "%+v", p)
		}
	})

	t.Run("mail failure removes the user", func(t *testing.T) {
		t.Parallel()
		h := newHarness()
		h.mailer.err = errors.New("smtp down")

		_, err := h.svc.Register(t.Context(), auth.RegisterParams{
			Email: "c@b.co", Password: "password123", UserType: domain.UserTypeCustomer,
		})
		require.Error(t, err)
		require.Len(t, h.users.deleted, 1)

		_, err = h.users.GetByEmail(context.Background(), "c@b.co")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

// ---------------------------------------------------------------------------
// OTP verification
// ---------------------------------------------------------------------------

func TestService_VerifyOTP(t *testing.T) {
	t.Parallel()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()
		h := newHarness()

		user, err := h.svc.Register(t.Context(), auth.RegisterParams{
			Email: "new@b.co", Password: "password123", UserType: domain.UserTypeCustomer,
		})
		require.NoError(t, err)
		otp := h.mailer.lastOTP()

		assert.True(t, h.svc.CheckOTP(t.Context(), "new@b.co", otp))

		tokens, err := h.svc.VerifyOTP(t.Context(), "NEW@b.co", otp)
		require.NoError(t, err)
		assert.NotEmpty(t, tokens.AccessToken)
		assert.NotEmpty(t, tokens.RefreshToken)

		stored := h.users.get(user.ID)
		assert.False(t, stored.HasPendingOTP())
		assert.Equal(t, auth.SHA256Hex(tokens.RefreshToken), stored.RefreshTokenHash)
		assert.False(t, h.svc.CheckOTP(t.Context(), "new@b.co", otp), "otp is single use")
	})

	t.Run("failures", func(t *testing.T) {
		t.Parallel()

		past := time.Now().Add(-time.Minute)
		future := time.Now().Add(time.Minute)

		expired := activeUser(t, "expired@b.co", "password123", domain.UserTypeCustomer)
		expired.OTPHash, expired.OTPExpiry = auth.SHA256Hex("123456"), &past

		pending := activeUser(t, "pending@b.co", "password123", domain.UserTypeCustomer)
		pending.OTPHash, pending.OTPExpiry = auth.SHA256Hex("123456"), &future

		verified := activeUser(t, "verified@b.co", "password123", domain.UserTypeCustomer)

		h := newHarness(expired, pending, verified)

		tests := []struct {
			name  string
			email string
			otp   string
			want  error
		}{
			{"unknown account", "ghost@b.co", "123456", auth.ErrUserNotFound},
			{"no otp", "verified@b.co", "123456", auth.ErrNoPendingOTP},
			{"expired", "expired@b.co", "123456", auth.ErrOTPExpired},
			{"wrong code", "pending@b.co", "654321", auth.ErrInvalidOTP},
		}
		for _, tc := range tests {
			_, err := h.svc.VerifyOTP(t.Context(), tc.email, tc.otp)
			assert.ErrorIs(t, err, tc.want, tc.name)
			assert.False(t, h.svc.CheckOTP(t.Context(), tc.email, tc.otp), tc.name)
		}
	})
}

// ---------------------------------------------------------------------------
// Login
// ---------------------------------------------------------------------------

func TestService_Login(t *testing.T) {
	t.Parallel()

	t.Run("happy_path resets counters", func(t *testing.T) {
		t.Parallel()
		u := activeUser(t, "eat@b.co", "password123", domain.UserTypeCustomer)
		u.FailedAttempts = 2
		h := newHarness(u)

		tokens, err := h.svc.Login(t.Context(), " EAT@b.co", "password123")
		require.NoError(t, err)

		claims, err := auth.ValidateToken(testAccessSecret, tokens.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, u.ID, claims.UserID())
		assert.Equal(t, "customer", claims.UserType)

		assert.Zero(t, h.users.get(u.ID).FailedAttempts)
		assert.Nil(t, h.users.get(u.ID).LockedUntil)
	})

	t.Run("unknown email", func(t *testing.T) {
		t.Parallel()
		h := newHarness()

		_, err := h.svc.Login(t.Context(), "ghost@b.co", "password123")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("locked account reports minutes", func(t *testing.T) {
		t.Parallel()
		u := activeUser(t, "locked@b.co", "password123", domain.UserTypeCustomer)
		until := time.Now().Add(90 * time.Second)
		u.LockedUntil = &until
		h := newHarness(u)

		_, err := h.svc.Login(t.Context(), "locked@b.co", "password123")
		require.ErrorIs(t, err, auth.ErrAccountLocked)

		var locked *auth.LockedError
		require.ErrorAs(t, err, &locked)
		assert.Equal(t, 2, locked.Minutes())
	})

	t.Run("pending otp", func(t *testing.T) {
		t.Parallel()
		u := activeUser(t, "otp@b.co", "password123", domain.UserTypeCustomer)
		u.OTPHash = "abc"
		h := newHarness(u)

		_, err := h.svc.Login(t.Context(), "otp@b.co", "password123")
		assert.ErrorIs(t, err, auth.ErrAccountNotVerified)
	})

	t.Run("restaurant without tenant", func(t *testing.T) {
		t.Parallel()
		h := newHarness(activeUser(t, "resto@b.co", "password123", domain.UserTypeRestaurant))

		_, err := h.svc.Login(t.Context(), "resto@b.co", "password123")
		assert.ErrorIs(t, err, auth.ErrAccountNotConfigured)
	})

	t.Run("failed attempts lock the account", func(t *testing.T) {
		t.Parallel()
		u := activeUser(t, "brute@b.co", "password123", domain.UserTypeCustomer)
		h := newHarness(u)

		for i := 1; i < 3; i++ {
			_, err := h.svc.Login(t.Context(), "brute@b.co", "bad")
			require.ErrorIs(t, err, auth.ErrInvalidCredentials)
			assert.Equal(t, i, h.users.get(u.ID).FailedAttempts)
		}

		_, err := h.svc.Login(t.Context(), "brute@b.co", "bad")
		require.ErrorIs(t, err, auth.ErrTooManyAttempts)
		require.NotNil(t, h.users.get(u.ID).LockedUntil)

		_, err = h.svc.Login(t.Context(), "brute@b.co", "password123")
		assert.ErrorIs(t, err, auth.ErrAccountLocked)
	})

	t.Run("legacy bcrypt hash is upgraded", func(t *testing.T) {
		t.Parallel()
		legacy, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
		require.NoError(t, err)
		u := activeUser(t, "old@b.co", "unused", domain.UserTypeCustomer)
		u.PasswordHash = string(legacy)
		h := newHarness(u)

		_, err = h.svc.Login(t.Context(), "old@b.co", "password123")
		require.NoError(t, err)

		upgraded := h.users.get(u.ID).PasswordHash
		assert.NotEqual(t, string(legacy), upgraded)
		ok, rehash := auth.VerifyPassword("password123", upgraded)
		assert.True(t, ok)
		assert.False(t, rehash)
	})
}

// ---------------------------------------------------------------------------
// Refresh / Logout
// ---------------------------------------------------------------------------

func TestService_RefreshRotation(t *testing.T) {
	t.Parallel()

	u := activeUser(t, "r@b.co", "password123", domain.UserTypeCustomer)
	h := newHarness(u)

	first, err := h.svc.Login(t.Context(), "r@b.co", "password123")
	require.NoError(t, err)

	second, err := h.svc.Refresh(t.Context(), first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = h.svc.Refresh(t.Context(), first.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrInvalidRefreshToken, "rotated token must be rejected")

	_, err = h.svc.Refresh(t.Context(), second.AccessToken)
	assert.ErrorIs(t, err, auth.ErrInvalidRefreshToken, "access token is not a refresh token")

	_, err = h.svc.Refresh(t.Context(), "garbage")
	assert.ErrorIs(t, err, auth.ErrInvalidRefreshToken)
}

func TestService_Logout(t *testing.T) {
	t.Parallel()

	u := activeUser(t, "bye@b.co", "password123", domain.UserTypeCustomer)
	h := newHarness(u)

	tokens, err := h.svc.Login(t.Context(), "bye@b.co", "password123")
	require.NoError(t, err)
	claims, err := auth.ValidateToken(testAccessSecret, tokens.AccessToken)
	require.NoError(t, err)

	require.NoError(t, h.svc.CheckRevoked(t.Context(), claims))
	require.NoError(t, h.svc.Logout(t.Context(), claims))

	assert.Empty(t, h.users.get(u.ID).RefreshTokenHash)
	assert.ErrorIs(t, h.svc.CheckRevoked(t.Context(), claims), auth.ErrTokenRevoked)

	_, err = h.svc.Refresh(t.Context(), tokens.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrInvalidRefreshToken)
}

// ---------------------------------------------------------------------------
// Password reset
// ---------------------------------------------------------------------------

func TestService_PasswordReset(t *testing.T) {
	t.Parallel()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()
		u := activeUser(t, "forgot@b.co", "password123", domain.UserTypeCustomer)
		h := newHarness(u)

		before, err := h.svc.Login(t.Context(), "forgot@b.co", "password123")
		require.NoError(t, err)

		require.NoError(t, h.svc.RequestPasswordReset(t.Context(), "forgot@b.co"))
		require.Len(t, h.mailer.sent, 1)
		assert.Equal(t, "Password reset OTP", h.mailer.sent[0].Subject)
		assert.Contains(t, h.mailer.sent[0].Text, "It expires in 10 minutes.")

		require.NoError(t, h.svc.ResetPassword(t.Context(), "forgot@b.co", h.mailer.lastOTP(), "new-password-1"))

		_, err = h.svc.Login(t.Context(), "forgot@b.co", "password123")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

		oldClaims, err := auth.ValidateToken(testAccessSecret, before.AccessToken)
		require.NoError(t, err)
		assert.ErrorIs(t, h.svc.CheckRevoked(t.Context(), oldClaims), auth.ErrTokenRevoked)
	})

	t.Run("unknown account", func(t *testing.T) {
		t.Parallel()
		h := newHarness()

		assert.ErrorIs(t, h.svc.RequestPasswordReset(t.Context(), "ghost@b.co"), auth.ErrUserNotFound)
		assert.ErrorIs(t, h.svc.ResetPassword(t.Context(), "ghost@b.co", "123456", "new-password-1"), auth.ErrNoPendingOTP)
	})

	t.Run("wrong otp", func(t *testing.T) {
		t.Parallel()
		h := newHarness(activeUser(t, "w@b.co", "password123", domain.UserTypeCustomer))
		require.NoError(t, h.svc.RequestPasswordReset(t.Context(), "w@b.co"))

		otp := h.mailer.lastOTP()
		wrong := "100000"
		if otp == wrong {
			wrong = "100001"
		}
		assert.ErrorIs(t, h.svc.ResetPassword(t.Context(), "w@b.co", wrong, "new-password-1"), auth.ErrInvalidOTP)
	})

	t.Run("weak password", func(t *testing.T) {
		t.Parallel()
		h := newHarness()
		assert.ErrorIs(t, h.svc.ResetPassword(t.Context(), "w@b.co", "123456", "short"), domain.ErrInvalidInput)
	})
}

// ---------------------------------------------------------------------------
// Profile
// ---------------------------------------------------------------------------

type rewarderFunc func(ctx context.Context, u *domain.User) error

func (f rewarderFunc) AwardProfileCompletion(ctx context.Context, u *domain.User) error { return f(ctx, u) }

func TestService_UpdateUser(t *testing.T) {
	t.Parallel()

	u := activeUser(t, "p@b.co", "password123", domain.UserTypeCustomer)
	h := newHarness(u)

	var rewarded []uuid.UUID
	h.svc.SetProfileRewarder(rewarderFunc(func(_ context.Context, u *domain.User) error {
		rewarded = append(rewarded, u.ID)
		return nil
	}))

	updated, err := h.svc.UpdateUser(t.Context(), u.ID, auth.UpdateUserParams{Phone: ptr(" +251911000000 ")})
	require.NoError(t, err)
	assert.Equal(t, "+251911000000", updated.Phone)
	assert.Empty(t, rewarded, "birthday still missing")

	bday := time.Date(1992, 3, 2, 0, 0, 0, 0, time.UTC)
	_, err = h.svc.UpdateUser(t.Context(), u.ID, auth.UpdateUserParams{Birthday: &bday, EnableInAppNotifications: ptr(false)})
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{u.ID}, rewarded)
	assert.False(t, h.users.get(u.ID).EnableInAppNotifications)

	_, err = h.svc.UpdateUser(t.Context(), u.ID, auth.UpdateUserParams{FullName: ptr("Renamed")})
	require.NoError(t, err)
	assert.Len(t, rewarded, 1, "reward only on the transition to complete")

	_, err = h.svc.UpdateUser(t.Context(), uuid.New(), auth.UpdateUserParams{})
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}

func TestService_UpdatePushToken(t *testing.T) {
	t.Parallel()

	u := activeUser(t, "push@b.co", "password123", domain.UserTypeCustomer)
	h := newHarness(u)

	got, err := h.svc.UpdatePushToken(t.Context(), u.ID, "ExponentPushToken[abc]")
	require.NoError(t, err)
	assert.Equal(t, "ExponentPushToken[abc]", got.PushToken)
	assert.NotNil(t, got.PushTokenSyncedAt)
}

func TestService_DeleteUser(t *testing.T) {
	t.Parallel()

	u := activeUser(t, "del@b.co", "password123", domain.UserTypeCustomer)
	h := newHarness(u)

	require.NoError(t, h.svc.DeleteUser(t.Context(), u.ID))
	assert.ErrorIs(t, h.svc.DeleteUser(t.Context(), u.ID), auth.ErrUserNotFound)
}

func TestService_CreateAdmin(t *testing.T) {
	t.Parallel()

	h := newHarness()

	admin, err := h.svc.CreateAdmin(t.Context(), auth.CreateAdminParams{
		Email: "Root@MinMin.app", Password: "a-very-long-password", FullName: "Root",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.UserTypeAdmin, admin.UserType)
	assert.Equal(t, "root@minmin.app", admin.Email)

	_, err = h.svc.Login(t.Context(), "root@minmin.app", "a-very-long-password")
	require.NoError(t, err)

	_, err = h.svc.CreateAdmin(t.Context(), auth.CreateAdminParams{Email: "x@y.z", Password: "short", FullName: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
