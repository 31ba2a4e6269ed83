package v1

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/minmin-app/minmin/internal/auth"
	"github.com/minmin-app/minmin/internal/domain"
	"github.com/minmin-app/minmin/internal/loyalty"
	"github.com/minmin-app/minmin/internal/pricing"
	"github.com/minmin-app/minmin/internal/storage"
)

// DataStore abstracts the repository accessor pattern for handler testing.
// *postgres.Store satisfies this interface.
type DataStore interface {
	Users() domain.UserRepository
	Tenants() domain.TenantRepository
	Branches() domain.BranchRepository
	Addresses() domain.AddressRepository
	Feed() domain.FeedRepository
	Notifications() domain.PushNotificationRepository
	Inbox() domain.NotificationRepository
	Audit() domain.AuditRepository
}

// AuthService abstracts account operations for handler testing.
// *auth.Service satisfies this interface.
type AuthService interface {
	Register(ctx context.Context, p auth.RegisterParams) (*domain.User, error)
	VerifyOTP(ctx context.Context, email, otp string) (*auth.Tokens, error)
	CheckOTP(ctx context.Context, email, otp string) bool
	Login(ctx context.Context, email, password string) (*auth.Tokens, error)
	Logout(ctx context.Context, claims *auth.Claims) error
	Refresh(ctx context.Context, refreshToken string) (*auth.Tokens, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, otp, newPassword string) error

	ListUsers(ctx context.Context, limit, offset int) ([]*domain.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
	UpdateUser(ctx context.Context, id uuid.UUID, p auth.UpdateUserParams) (*domain.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
	UpdatePushToken(ctx context.Context, id uuid.UUID, token string) (*domain.User, error)

	GenerateAPIKey(ctx context.Context, createdBy uuid.UUID, name string, expiresAt *time.Time) (string, *domain.APIKey, error)
	ListAPIKeys(ctx context.Context) ([]*domain.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID) error
}

// LoyaltyService abstracts point balances and loyalty settings.
// *loyalty.Service satisfies this interface.
type LoyaltyService interface {
	UpdatePoints(ctx context.Context, actor loyalty.Actor, p loyalty.UpdatePointsParams) (*domain.PointsBalance, error)
	CustomerSummary(ctx context.Context, customerID uuid.UUID) (*loyalty.CustomerSummary, error)
	TenantSummary(ctx context.Context, tenantID uuid.UUID) (*loyalty.TenantSummary, error)
	ListTransactions(ctx context.Context, actor loyalty.Actor, customerID *uuid.UUID, limit, offset int) ([]*domain.LoyaltyTransaction, error)
	ListGlobalSettings(ctx context.Context) ([]*domain.GlobalLoyaltySetting, error)
	UpsertGlobalSetting(ctx context.Context, actor loyalty.Actor, p loyalty.GlobalSettingParams) (*domain.GlobalLoyaltySetting, error)
	RestaurantSettings(ctx context.Context, tenantID uuid.UUID) (*domain.RestaurantLoyaltySettings, error)
	SetRestaurantThreshold(ctx context.Context, actor loyalty.Actor, tenantID uuid.UUID, threshold int) (*domain.RestaurantLoyaltySettings, error)
	ConversionRate(ctx context.Context, tenantID uuid.UUID) (*domain.LoyaltyConversionRate, error)
	SetConversionRate(ctx context.Context, actor loyalty.Actor, tenantID uuid.UUID, rate decimal.Decimal) (*domain.LoyaltyConversionRate, error)
}

// PricingService abstracts discount management and checkout pricing.
// *pricing.Service satisfies this interface.
type PricingService interface {
	CreateDiscount(ctx context.Context, actor pricing.Actor, p pricing.DiscountParams) (*domain.Discount, error)
	UpdateDiscount(ctx context.Context, actor pricing.Actor, id uuid.UUID, p pricing.DiscountParams) (*domain.Discount, error)
	GetDiscount(ctx context.Context, actor pricing.Actor, id uuid.UUID) (*domain.Discount, error)
	ListDiscounts(ctx context.Context, actor pricing.Actor, tenantID uuid.UUID) ([]*domain.Discount, error)
	DeleteDiscount(ctx context.Context, actor pricing.Actor, id uuid.UUID) error

	CreateRule(ctx context.Context, actor pricing.Actor, p pricing.RuleParams) (*domain.DiscountRule, error)
	UpdateRule(ctx context.Context, actor pricing.Actor, id uuid.UUID, p pricing.RuleParams) (*domain.DiscountRule, error)
	GetRule(ctx context.Context, actor pricing.Actor, id uuid.UUID) (*domain.DiscountRule, error)
	DeleteRule(ctx context.Context, actor pricing.Actor, id uuid.UUID) error

	CreateCoupon(ctx context.Context, actor pricing.Actor, p pricing.CouponParams) (*domain.Coupon, error)
	UpdateCoupon(ctx context.Context, actor pricing.Actor, id uuid.UUID, p pricing.CouponParams) (*domain.Coupon, error)
	ListCoupons(ctx context.Context, actor pricing.Actor, tenantID uuid.UUID) ([]*domain.Coupon, error)
	DeleteCoupon(ctx context.Context, actor pricing.Actor, id uuid.UUID) error

	BigItems(ctx context.Context, tenantID *uuid.UUID) ([]string, error)
	Checkout(ctx context.Context, p pricing.CheckoutParams) (*pricing.Checkout, error)
}

// Uploader issues presigned image uploads. *storage.S3 satisfies this interface.
type Uploader interface {
	PresignUpload(ctx context.Context, key, contentType string) (*storage.Upload, error)
}

// Notifier schedules delivery of a stored push notification.
// *notify.Dispatcher satisfies this interface.
type Notifier interface {
	Enqueue(n *domain.PushNotification, tenantName string) error
}
