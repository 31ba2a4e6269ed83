package v1

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/minmin-app/minmin/internal/auth"
	"github.com/minmin-app/minmin/internal/domain"
	"github.com/minmin-app/minmin/internal/server/middleware"
)

const dateLayout = "2006-01-02"

type RegisterInput struct {
	Body struct {
		Email                    string     `json:"email" format:"email" maxLength:"255" doc:"User email"`
		Password                 string     `json:"password" minLength:"8" maxLength:"128" doc:"Password"` //nolint:gosec // G117: registration credential DTO
		FullName                 string     `json:"full_name,omitempty" maxLength:"255" doc:"Display name"`
		Phone                    string     `json:"phone,omitempty" maxLength:"32" doc:"Phone number"`
		UserType                 string     `json:"user_type" enum:"customer,restaurant,branch" doc:"Account type"`
		TenantID                 *uuid.UUID `json:"tenant_id,omitempty" doc:"Restaurant the account belongs to"`
		BranchID                 *uuid.UUID `json:"branch_id,omitempty" doc:"Branch operated by a branch account"`
		Birthday                 string     `json:"birthday,omitempty" format:"date" doc:"Birthday (YYYY-MM-DD)"`
		TINNo                    string     `json:"tin_no,omitempty" maxLength:"15" doc:"Tax identification number"`
		OptInPromotions          *bool      `json:"opt_in_promotions,omitempty"`
		EnableEmailNotifications *bool      `json:"enable_email_notifications,omitempty"`
		EnableInAppNotifications *bool      `json:"enable_in_app_notifications,omitempty"`
	}
}

type RegisterOutput struct {
	Body struct {
		Message string       `json:"message"`
		User    *domain.User `json:"user"`
	}
}

type OTPInput struct {
	Body struct {
		Email string `json:"email" format:"email" maxLength:"255" doc:"Account email"`
		OTP   string `json:"otp" minLength:"6" maxLength:"6" pattern:"^[0-9]{6}$" doc:"One-time password"`
	}
}

type CheckOTPOutput struct {
	Body struct {
		Valid bool `json:"valid"`
	}
}

type LoginInput struct {
	Body struct {
		Email    string `json:"email" minLength:"3" maxLength:"255" doc:"User email"`
		Password string `json:"password" minLength:"1" maxLength:"128" doc:"Password"` //nolint:gosec // G117: login credential DTO
	}
}

type RefreshInput struct {
	Body struct {
		RefreshToken string `json:"refresh_token" minLength:"1" doc:"Refresh token"` //nolint:gosec // G117: token refresh DTO
	}
}

type TokenUser struct {
	ID       uuid.UUID       `json:"id"`
	Email    string          `json:"email"`
	FullName string          `json:"full_name"`
	UserType domain.UserType `json:"user_type"`
}

type TokensOutput struct {
	Body struct {
		AccessToken  string    `json:"access_token"`  //nolint:gosec // G117: auth response DTO
		RefreshToken string    `json:"refresh_token"` //nolint:gosec // G117: auth response DTO
		User         TokenUser `json:"user"`
	}
}

func tokensOutput(t *auth.Tokens) *TokensOutput {
	out := &TokensOutput{}
	out.Body.AccessToken = t.AccessToken
	out.Body.RefreshToken = t.RefreshToken
	out.Body.User = TokenUser{ID: t.User.ID, Email: t.User.Email, FullName: t.User.FullName, UserType: t.User.UserType}
	return out
}

type PasswordResetRequestInput struct {
	Body struct {
		Email string `json:"email" format:"email" maxLength:"255" doc:"Account email"`
	}
}

type PasswordResetInput struct {
	Body struct {
		Email       string `json:"email" format:"email" maxLength:"255" doc:"Account email"`
		OTP         string `json:"otp" minLength:"6" maxLength:"6" doc:"One-time password"`
		NewPassword string `json:"new_password" minLength:"8" maxLength:"128" doc:"New password"` //nolint:gosec // G117: password reset DTO
	}
}

type ListUsersInput struct {
	Limit  int `query:"limit" minimum:"1" maximum:"200" default:"50" doc:"Max results"`
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Offset for pagination"`
}

type ListUsersOutput struct {
	Body []*domain.User
}

type UserIDInput struct {
	ID uuid.UUID `path:"id" doc:"User ID"`
}

type UserOutput struct {
	Body *domain.User
}

type UpdateUserInput struct {
	ID   uuid.UUID `path:"id" doc:"User ID"`
	Body struct {
		FullName                 *string `json:"full_name,omitempty" maxLength:"255"`
		Phone                    *string `json:"phone,omitempty" maxLength:"32"`
		Birthday                 *string `json:"birthday,omitempty" doc:"YYYY-MM-DD, empty string clears it"`
		TINNo                    *string `json:"tin_no,omitempty" maxLength:"15"`
		Image                    *string `json:"image,omitempty" maxLength:"1024" doc:"Image URL returned by /uploads"`
		OptInPromotions          *bool   `json:"opt_in_promotions,omitempty"`
		EnableEmailNotifications *bool   `json:"enable_email_notifications,omitempty"`
		EnableInAppNotifications *bool   `json:"enable_in_app_notifications,omitempty"`
	}
}

type PushTokenInput struct {
	ID   uuid.UUID `path:"id" doc:"User ID"`
	Body struct {
		PushToken string `json:"push_token" minLength:"1" maxLength:"255" doc:"Expo push token of the device"`
	}
}

type CreateAPIKeyInput struct {
	Body struct {
		Name      string     `json:"name" minLength:"1" maxLength:"255" doc:"Client application name"`
		ExpiresAt *time.Time `json:"expires_at,omitempty" doc:"Optional expiry"`
	}
}

type CreateAPIKeyOutput struct {
	Body struct {
		Key    string         `json:"key" doc:"Raw key, shown only once"`
		APIKey *domain.APIKey `json:"api_key"`
	}
}

type ListAPIKeysOutput struct {
	Body []*domain.APIKey
}

type APIKeyIDInput struct {
	ID uuid.UUID `path:"id" doc:"API key ID"`
}

// accountError maps auth service failures to HTTP problems.
func accountError(err error, fallback string) error {
	var locked *auth.LockedError
	switch {
	case errors.As(err, &locked):
		return huma.Error403Forbidden(fmt.Sprintf("Account is locked. Try again in %d minutes.", locked.Minutes()))
	case errors.Is(err, auth.ErrTooManyAttempts):
		return huma.Error403Forbidden("Account locked due to multiple failed attempts. Try again later.")
	case errors.Is(err, auth.ErrInvalidCredentials):
		return huma.Error401Unauthorized("Invalid credentials.")
	case errors.Is(err, auth.ErrAccountNotVerified):
		return huma.Error403Forbidden("Account not verified. Please verify your OTP.")
	case errors.Is(err, auth.ErrAccountNotConfigured):
		return huma.Error403Forbidden("Account is not fully configured.")
	case errors.Is(err, auth.ErrUserAlreadyExists):
		return huma.Error400BadRequest("A user with this email already exists.")
	case errors.Is(err, auth.ErrAdminRegistration):
		return huma.Error403Forbidden("Admin accounts cannot be registered.")
	case errors.Is(err, auth.ErrTenantNotFound):
		return huma.Error404NotFound("Tenant not found")
	case errors.Is(err, auth.ErrBranchNotFound):
		return huma.Error404NotFound("Branch not found")
	case errors.Is(err, auth.ErrBranchTaken):
		return huma.Error400BadRequest("This branch already has an assigned user.")
	case errors.Is(err, auth.ErrBranchRequired):
		return huma.Error400BadRequest("Branch accounts require a branchId.")
	case errors.Is(err, auth.ErrUserNotFound):
		return huma.Error404NotFound("Account not found")
	case errors.Is(err, auth.ErrNoPendingOTP):
		return huma.Error400BadRequest("No OTP is associated with this account.")
	case errors.Is(err, auth.ErrOTPExpired):
		return huma.Error400BadRequest("OTP expired.")
	case errors.Is(err, auth.ErrInvalidOTP):
		return huma.Error400BadRequest("Invalid OTP.")
	case errors.Is(err, auth.ErrInvalidRefreshToken):
		return huma.Error401Unauthorized("Invalid refresh token.")
	}
	if he := badInput(err); he != nil {
		return he
	}
	return huma.Error500InternalServerError(fallback, err)
}

// selfOrAdmin allows a user to act on their own account and admins on any.
func selfOrAdmin(ctx context.Context, id uuid.UUID) (middleware.Principal, error) {
	p, err := caller(ctx)
	if err != nil {
		return p, err
	}
	if p.UserID != id && !p.IsAdmin() {
		return p, huma.Error403Forbidden("You can only access your own account.")
	}
	return p, nil
}

// RegisterPublicAccountRoutes mounts the unauthenticated account endpoints.
func RegisterPublicAccountRoutes(api huma.API, authSvc AuthService) {
	huma.Register(api, huma.Operation{
		OperationID: "register",
		Method:      http.MethodPost,
		Path:        "/accounts/register",
		Summary:     "Register a new account",
		Tags:        []string{"Accounts"},
	}, func(ctx context.Context, input *RegisterInput) (*RegisterOutput, error) {
		b := input.Body
		params := auth.RegisterParams{
			Email:                    b.Email,
			Password:                 b.Password,
			FullName:                 b.FullName,
			Phone:                    b.Phone,
			UserType:                 domain.UserType(b.UserType),
			TenantID:                 b.TenantID,
			BranchID:                 b.BranchID,
			TINNo:                    b.TINNo,
			OptInPromotions:          b.OptInPromotions,
			EnableEmailNotifications: b.EnableEmailNotifications,
			EnableInAppNotifications: b.EnableInAppNotifications,
		}
		if b.Birthday != "" {
			day, err := time.Parse(dateLayout, b.Birthday)
			if err != nil {
				return nil, huma.Error400BadRequest("birthday must be YYYY-MM-DD")
			}
			params.Birthday = &day
		}

		user, err := authSvc.Register(ctx, params)
		if err != nil {
			return nil, accountError(err, "failed to register user")
		}

		out := &RegisterOutput{}
		out.Body.User = user
		out.Body.Message = "Registration successful."
		if user.UserType == domain.UserTypeCustomer {
			out.Body.Message = "Registration successful. Please verify your OTP."
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "verify-otp",
		Method:      http.MethodPost,
		Path:        "/accounts/verify-otp",
		Summary:     "Verify the registration OTP and log in",
		Tags:        []string{"Accounts"},
	}, func(ctx context.Context, input *OTPInput) (*TokensOutput, error) {
		tokens, err := authSvc.VerifyOTP(ctx, input.Body.Email, input.Body.OTP)
		if err != nil {
			return nil, accountError(err, "failed to verify otp")
		}
		return tokensOutput(tokens), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "check-otp",
		Method:      http.MethodPost,
		Path:        "/accounts/check-otp",
		Summary:     "Check an OTP without consuming it",
		Tags:        []string{"Accounts"},
	}, func(ctx context.Context, input *OTPInput) (*CheckOTPOutput, error) {
		out := &CheckOTPOutput{}
		out.Body.Valid = authSvc.CheckOTP(ctx, input.Body.Email, input.Body.OTP)
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/accounts/login",
		Summary:     "Login with email and password",
		Tags:        []string{"Accounts"},
	}, func(ctx context.Context, input *LoginInput) (*TokensOutput, error) {
		tokens, err := authSvc.Login(ctx, input.Body.Email, input.Body.Password)
		if err != nil {
			return nil, accountError(err, "login failed")
		}
		return tokensOutput(tokens), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "refresh-token",
		Method:      http.MethodPost,
		Path:        "/accounts/token/refresh",
		Summary:     "Exchange a refresh token for a new token pair",
		Tags:        []string{"Accounts"},
	}, func(ctx context.Context, input *RefreshInput) (*TokensOutput, error) {
		tokens, err := authSvc.Refresh(ctx, input.Body.RefreshToken)
		if err != nil {
			return nil, accountError(err, "failed to refresh token")
		}
		return tokensOutput(tokens), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "request-password-reset",
		Method:      http.MethodPost,
		Path:        "/accounts/password-reset/request",
		Summary:     "Mail a password reset OTP",
		Tags:        []string{"Accounts"},
	}, func(ctx context.Context, input *PasswordResetRequestInput) (*MessageOutput, error) {
		if err := authSvc.RequestPasswordReset(ctx, input.Body.Email); err != nil {
			return nil, accountError(err, "failed to send otp")
		}
		return message("OTP sent successfully."), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reset-password",
		Method:      http.MethodPost,
		Path:        "/accounts/password-reset/verify",
		Summary:     "Reset the password with a mailed OTP",
		Tags:        []string{"Accounts"},
	}, func(ctx context.Context, input *PasswordResetInput) (*MessageOutput, error) {
		err := authSvc.ResetPassword(ctx, input.Body.Email, input.Body.OTP, input.Body.NewPassword)
		if errors.Is(err, auth.ErrNoPendingOTP) {
			return nil, huma.Error404NotFound("Account not found or no OTP set.")
		}
		if err != nil {
			return nil, accountError(err, "failed to reset password")
		}
		return message("Password reset successful."), nil
	})
}

// RegisterAccountRoutes mounts the account endpoints that need a bearer token.
func RegisterAccountRoutes(api huma.API, store DataStore, authSvc AuthService) {
	huma.Register(api, huma.Operation{
		OperationID: "logout",
		Method:      http.MethodPost,
		Path:        "/accounts/logout",
		Summary:     "Revoke the current tokens",
		Tags:        []string{"Accounts"},
	}, func(ctx context.Context, _ *struct{}) (*MessageOutput, error) {
		claims, ok := middleware.ClaimsFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("authentication required")
		}
		if err := authSvc.Logout(ctx, claims); err != nil {
			return nil, accountError(err, "logout failed")
		}
		return message("Logged out successfully."), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/accounts/users",
		Summary:     "List user accounts",
		Tags:        []string{"Accounts"},
	}, func(ctx context.Context, input *ListUsersInput) (*ListUsersOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		if !p.IsAdmin() {
			return nil, huma.Error403Forbidden("admin role required")
		}

		users, err := authSvc.ListUsers(ctx, input.Limit, input.Offset)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list users", err)
		}
		return &ListUsersOutput{Body: users}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-user",
		Method:      http.MethodGet,
		Path:        "/accounts/user/{id}",
		Summary:     "Get a user account",
		Tags:        []string{"Accounts"},
	}, func(ctx context.Context, input *UserIDInput) (*UserOutput, error) {
		if _, err := selfOrAdmin(ctx, input.ID); err != nil {
			return nil, err
		}
		user, err := authSvc.GetUser(ctx, input.ID)
		if err != nil {
			return nil, accountError(err, "failed to get user")
		}
		return &UserOutput{Body: user}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-user",
		Method:      http.MethodPut,
		Path:        "/accounts/user/{id}",
		Summary:     "Update a user profile",
		Tags:        []string{"Accounts"},
	}, func(ctx context.Context, input *UpdateUserInput) (*UserOutput, error) {
		if _, err := selfOrAdmin(ctx, input.ID); err != nil {
			return nil, err
		}

		b := input.Body
		params := auth.UpdateUserParams{
			FullName:                 b.FullName,
			Phone:                    b.Phone,
			TINNo:                    b.TINNo,
			Image:                    b.Image,
			OptInPromotions:          b.OptInPromotions,
			EnableEmailNotifications: b.EnableEmailNotifications,
			EnableInAppNotifications: b.EnableInAppNotifications,
		}
		if b.Birthday != nil {
			if *b.Birthday == "" {
				params.ClearBirthday = true
			} else {
				day, err := time.Parse(dateLayout, *b.Birthday)
				if err != nil {
					return nil, huma.Error400BadRequest("birthday must be YYYY-MM-DD")
				}
				params.Birthday = &day
			}
		}

		user, err := authSvc.UpdateUser(ctx, input.ID, params)
		if err != nil {
			return nil, accountError(err, "failed to update user")
		}
		return &UserOutput{Body: user}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-user",
		Method:      http.MethodDelete,
		Path:        "/accounts/user/{id}",
		Summary:     "Delete a user account",
		Tags:        []string{"Accounts"},
	}, func(ctx context.Context, input *UserIDInput) (*struct{}, error) {
		p, err := selfOrAdmin(ctx, input.ID)
		if err != nil {
			return nil, err
		}
		if err := authSvc.DeleteUser(ctx, input.ID); err != nil {
			return nil, accountError(err, "failed to delete user")
		}
		recordAudit(ctx, store, p, nil, "user.delete", "user", input.ID, nil)
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-push-token",
		Method:      http.MethodPut,
		Path:        "/accounts/user/{id}/push-token",
		Summary:     "Register the device push token",
		Tags:        []string{"Accounts"},
	}, func(ctx context.Context, input *PushTokenInput) (*UserOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		if p.UserID != input.ID {
			return nil, huma.Error403Forbidden("You can only access your own account.")
		}
		user, err := authSvc.UpdatePushToken(ctx, input.ID, input.Body.PushToken)
		if err != nil {
			return nil, accountError(err, "failed to store push token")
		}
		return &UserOutput{Body: user}, nil
	})
}

// RegisterAPIKeyRoutes mounts client key management. The server also gates
// these behind middleware.RequireAdmin.
func RegisterAPIKeyRoutes(api huma.API, store DataStore, authSvc AuthService) {
	huma.Register(api, huma.Operation{
		OperationID: "create-api-key",
		Method:      http.MethodPost,
		Path:        "/accounts/api-keys",
		Summary:     "Create a client API key",
		Tags:        []string{"Accounts"},
	}, func(ctx context.Context, input *CreateAPIKeyInput) (*CreateAPIKeyOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		if !p.IsAdmin() {
			return nil, huma.Error403Forbidden("admin role required")
		}

		raw, key, err := authSvc.GenerateAPIKey(ctx, p.UserID, input.Body.Name, input.Body.ExpiresAt)
		if err != nil {
			return nil, accountError(err, "failed to create api key")
		}
		recordAudit(ctx, store, p, nil, "api_key.create", "api_key", key.ID, map[string]any{"name": key.Name})

		out := &CreateAPIKeyOutput{}
		out.Body.Key = raw
		out.Body.APIKey = key
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-api-keys",
		Method:      http.MethodGet,
		Path:        "/accounts/api-keys",
		Summary:     "List client API keys",
		Tags:        []string{"Accounts"},
	}, func(ctx context.Context, _ *struct{}) (*ListAPIKeysOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		if !p.IsAdmin() {
			return nil, huma.Error403Forbidden("admin role required")
		}

		keys, err := authSvc.ListAPIKeys(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list api keys", err)
		}
		return &ListAPIKeysOutput{Body: keys}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "revoke-api-key",
		Method:      http.MethodDelete,
		Path:        "/accounts/api-keys/{id}",
		Summary:     "Revoke a client API key",
		Tags:        []string{"Accounts"},
	}, func(ctx context.Context, input *APIKeyIDInput) (*struct{}, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		if !p.IsAdmin() {
			return nil, huma.Error403Forbidden("admin role required")
		}

		if err := authSvc.RevokeAPIKey(ctx, input.ID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("API key not found")
			}
			return nil, huma.Error500InternalServerError("failed to revoke api key", err)
		}
		recordAudit(ctx, store, p, nil, "api_key.revoke", "api_key", input.ID, nil)
		return nil, nil
	})
}
