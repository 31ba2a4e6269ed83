package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionEarning    TransactionType = "earning"
	TransactionRedemption TransactionType = "redemption"
)

func (t TransactionType) Valid() bool {
	return t == TransactionEarning || t == TransactionRedemption
}

// Loyalty events that award global points.
const (
	LoyaltyEventOrder   = "order"
	LoyaltyEventPayment = "payment"
	LoyaltyEventProfile = "profile"
)

// CustomerLoyalty holds a customer's platform-wide point balance.
type CustomerLoyalty struct {
	CustomerID   uuid.UUID `json:"customer_id"`
	GlobalPoints int       `json:"global_points"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TenantLoyalty holds a customer's balance at one restaurant.
type TenantLoyalty struct {
	TenantID      uuid.UUID `json:"tenant_id"`
	TenantName    string    `json:"tenant_name"`
	CustomerID    uuid.UUID `json:"customer_id"`
	CustomerEmail string    `json:"email"`
	Points        int       `json:"points"`
}

type LoyaltyTransaction struct {
	ID         uuid.UUID       `json:"id"`
	TenantID   *uuid.UUID      `json:"tenant_id,omitempty"`
	CustomerID uuid.UUID       `json:"customer_id"`
	Points     int             `json:"points"`
	Type       TransactionType `json:"transaction_type"`
	CreatedAt  time.Time       `json:"created_at"`
}

// TransactionFilter narrows a transaction listing. Nil fields match everything.
type TransactionFilter struct {
	CustomerID *uuid.UUID
	TenantID   *uuid.UUID
}

type GlobalLoyaltySetting struct {
	Event        string    `json:"event"`
	GlobalPoints int       `json:"global_points"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RestaurantLoyaltySettings sets the minimum balance before tenant points can be redeemed.
type RestaurantLoyaltySettings struct {
	TenantID  uuid.UUID `json:"tenant_id"`
	Threshold int       `json:"threshold"`
	UpdatedAt time.Time `json:"updated_at"`
}

type LoyaltyConversionRate struct {
	TenantID               uuid.UUID       `json:"tenant_id"`
	GlobalToRestaurantRate decimal.Decimal `json:"global_to_restaurant_rate"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// PointsAdjustment is a signed change to either the global balance (TenantID nil)
// or one tenant balance.
type PointsAdjustment struct {
	CustomerID uuid.UUID
	TenantID   *uuid.UUID
	Delta      int
	Type       TransactionType
}

// PointsBalance is the state after an adjustment.
type PointsBalance struct {
	CustomerID   uuid.UUID `json:"customer_id"`
	GlobalPoints int       `json:"global_points"`
	TenantPoints *int      `json:"tenant_points,omitempty"`
}

type LoyaltyRepository interface {
	// ApplyAdjustment clamps the affected balance at zero, records the
	// transaction and returns the balances, in one transaction.
	ApplyAdjustment(ctx context.Context, adj PointsAdjustment) (*PointsBalance, error)
	// AwardEvent applies a global earning once per (customer, event).
	AwardEvent(ctx context.Context, customerID uuid.UUID, event string, points int) (awarded bool, err error)

	GetCustomerLoyalty(ctx context.Context, customerID uuid.UUID) (*CustomerLoyalty, error)
	ListTenantBalancesByCustomer(ctx context.Context, customerID uuid.UUID) ([]*TenantLoyalty, error)
	ListTenantBalancesByTenant(ctx context.Context, tenantID uuid.UUID) ([]*TenantLoyalty, error)
	GetTenantBalance(ctx context.Context, tenantID, customerID uuid.UUID) (int, error)
	ListTransactions(ctx context.Context, f TransactionFilter, limit, offset int) ([]*LoyaltyTransaction, error)

	ListGlobalSettings(ctx context.Context) ([]*GlobalLoyaltySetting, error)
	GetGlobalSetting(ctx context.Context, event string) (*GlobalLoyaltySetting, error)
	UpsertGlobalSetting(ctx context.Context, s *GlobalLoyaltySetting) error

	GetRestaurantSettings(ctx context.Context, tenantID uuid.UUID) (*RestaurantLoyaltySettings, error)
	UpsertRestaurantSettings(ctx context.Context, s *RestaurantLoyaltySettings) error

	// GetOrCreateConversionRate returns the tenant's rate, inserting a zero rate first if missing.
	GetOrCreateConversionRate(ctx context.Context, tenantID uuid.UUID) (*LoyaltyConversionRate, error)
	UpsertConversionRate(ctx context.Context, r *LoyaltyConversionRate) error
}
