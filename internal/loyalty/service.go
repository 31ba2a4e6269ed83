// Package loyalty manages customer point balances, both the platform-wide
// balance and the per-restaurant balances, plus the settings that drive them.
package loyalty

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/minmin-app/minmin/internal/domain"
)

var (
	ErrNotAllowed       = errors.New("loyalty: not allowed to manage loyalty points")
	ErrCustomerNotFound = errors.New("loyalty: user not found")
	ErrTenantNotFound   = errors.New("loyalty: tenant not found")
)

// Actor is the authenticated caller of a mutating operation.
type Actor struct {
	UserID   uuid.UUID
	UserType domain.UserType
	TenantID *uuid.UUID
}

// CanManage reports whether the actor may adjust balances or settings of
// tenantID. A nil tenantID refers to the global balance.
func (a Actor) CanManage(tenantID *uuid.UUID) bool {
	switch a.UserType {
	case domain.UserTypeAdmin:
		return true
	case domain.UserTypeRestaurant, domain.UserTypeBranch:
		return tenantID == nil || (a.TenantID != nil && *a.TenantID == *tenantID)
	}
	return false
}

type Service struct {
	loyalty  domain.LoyaltyRepository
	users    domain.UserRepository
	tenants  domain.TenantRepository
	validate *validator.Validate
	now      func() time.Time
}

func NewService(loyalty domain.LoyaltyRepository, users domain.UserRepository, tenants domain.TenantRepository) *Service {
	return &Service{
		loyalty:  loyalty,
		users:    users,
		tenants:  tenants,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
}

type UpdatePointsParams struct {
	CustomerID uuid.UUID `validate:"required"`
	TenantID   *uuid.UUID
	Delta      int
	Type       domain.TransactionType `validate:"required,oneof=earning redemption"`
}

// UpdatePoints applies a signed change to the customer's global balance, or
// to the tenant balance when TenantID is set. Redemptions always subtract.
func (s *Service) UpdatePoints(ctx context.Context, actor Actor, p UpdatePointsParams) (*domain.PointsBalance, error) {
	if !actor.UserType.IsStaff() && actor.UserType != domain.UserTypeAdmin {
		return nil, fmt.Errorf("loyalty.UpdatePoints: %w", ErrNotAllowed)
	}
	if err := s.validate.Struct(p); err != nil {
		return nil, fmt.Errorf("loyalty.UpdatePoints: %w: %w", domain.ErrInvalidInput, err)
	}
	if !actor.CanManage(p.TenantID) {
		return nil, fmt.Errorf("loyalty.UpdatePoints: tenant scope: %w", ErrNotAllowed)
	}

	if _, err := s.users.GetByID(ctx, p.CustomerID); err != nil {
		return nil, fmt.Errorf("loyalty.UpdatePoints: %w", notFound(err, ErrCustomerNotFound))
	}
	if p.TenantID != nil {
		if _, err := s.tenants.GetByID(ctx, *p.TenantID); err != nil {
			return nil, fmt.Errorf("loyalty.UpdatePoints: %w", notFound(err, ErrTenantNotFound))
		}
	}

	delta := p.Delta
	if p.Type == domain.TransactionRedemption && delta > 0 {
		delta = -delta
	}

	bal, err := s.loyalty.ApplyAdjustment(ctx, domain.PointsAdjustment{
		CustomerID: p.CustomerID,
		TenantID:   p.TenantID,
		Delta:      delta,
		Type:       p.Type,
	})
	if err != nil {
		return nil, fmt.Errorf("loyalty.UpdatePoints: %w", err)
	}

	return bal, nil
}

func notFound(err, sentinel error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return sentinel
	}
	return err
}

// CustomerSummary is a customer's global balance plus every restaurant balance.
type CustomerSummary struct {
	CustomerID   uuid.UUID               `json:"customer_id"`
	GlobalPoints int                     `json:"global_points"`
	Tenants      []*domain.TenantLoyalty `json:"tenants"`
}

func (s *Service) CustomerSummary(ctx context.Context, customerID uuid.UUID) (*CustomerSummary, error) {
	if _, err := s.users.GetByID(ctx, customerID); err != nil {
		return nil, fmt.Errorf("loyalty.CustomerSummary: %w", notFound(err, ErrCustomerNotFound))
	}

	out := &CustomerSummary{CustomerID: customerID}

	cl, err := s.loyalty.GetCustomerLoyalty(ctx, customerID)
	switch {
	case err == nil:
		out.GlobalPoints = cl.GlobalPoints
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("loyalty.CustomerSummary: %w", err)
	}

	out.Tenants, err = s.loyalty.ListTenantBalancesByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("loyalty.CustomerSummary: %w", err)
	}

	return out, nil
}

// TenantSummary lists every customer balance held at a restaurant.
type TenantSummary struct {
	TenantID   uuid.UUID               `json:"tenant_id"`
	TenantName string                  `json:"tenant_name"`
	Customers  []*domain.TenantLoyalty `json:"customers"`
}

func (s *Service) TenantSummary(ctx context.Context, tenantID uuid.UUID) (*TenantSummary, error) {
	t, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("loyalty.TenantSummary: %w", notFound(err, ErrTenantNotFound))
	}

	customers, err := s.loyalty.ListTenantBalancesByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("loyalty.TenantSummary: %w", err)
	}

	return &TenantSummary{TenantID: t.ID, TenantName: t.RestaurantName, Customers: customers}, nil
}

// ListTransactions lists point transactions newest first. Admins see every
// transaction, optionally of one customer. Restaurant and branch staff are
// limited to their own tenant; everyone else only sees their own.
func (s *Service) ListTransactions(ctx context.Context, actor Actor, customerID *uuid.UUID, limit, offset int) ([]*domain.LoyaltyTransaction, error) {
	f := domain.TransactionFilter{CustomerID: customerID}
	switch {
	case actor.UserType == domain.UserTypeAdmin:
	case actor.UserType.IsStaff():
		if actor.TenantID == nil {
			return nil, fmt.Errorf("loyalty.ListTransactions: %w", ErrNotAllowed)
		}
		f.TenantID = actor.TenantID
	default:
		self := actor.UserID
		f.CustomerID = &self
	}

	txs, err := s.loyalty.ListTransactions(ctx, f, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("loyalty.ListTransactions: %w", err)
	}
	return txs, nil
}

func (s *Service) ListGlobalSettings(ctx context.Context) ([]*domain.GlobalLoyaltySetting, error) {
	out, err := s.loyalty.ListGlobalSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("loyalty.ListGlobalSettings: %w", err)
	}
	return out, nil
}

type GlobalSettingParams struct {
	Event        string `validate:"required,max=64"`
	GlobalPoints int    `validate:"gte=0"`
}

// UpsertGlobalSetting sets the points awarded for an event. Admin only.
func (s *Service) UpsertGlobalSetting(ctx context.Context, actor Actor, p GlobalSettingParams) (*domain.GlobalLoyaltySetting, error) {
	if actor.UserType != domain.UserTypeAdmin {
		return nil, fmt.Errorf("loyalty.UpsertGlobalSetting: %w", ErrNotAllowed)
	}
	if err := s.validate.Struct(p); err != nil {
		return nil, fmt.Errorf("loyalty.UpsertGlobalSetting: %w: %w", domain.ErrInvalidInput, err)
	}

	setting := &domain.GlobalLoyaltySetting{Event: p.Event, GlobalPoints: p.GlobalPoints, UpdatedAt: s.now().UTC()}
	if err := s.loyalty.UpsertGlobalSetting(ctx, setting); err != nil {
		return nil, fmt.Errorf("loyalty.UpsertGlobalSetting: %w", err)
	}
	return setting, nil
}

// RestaurantSettings returns the tenant's threshold, zero when never set.
func (s *Service) RestaurantSettings(ctx context.Context, tenantID uuid.UUID) (*domain.RestaurantLoyaltySettings, error) {
	rs, err := s.loyalty.GetRestaurantSettings(ctx, tenantID)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.RestaurantLoyaltySettings{TenantID: tenantID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loyalty.RestaurantSettings: %w", err)
	}
	return rs, nil
}

func (s *Service) SetRestaurantThreshold(ctx context.Context, actor Actor, tenantID uuid.UUID, threshold int) (*domain.RestaurantLoyaltySettings, error) {
	if !actor.CanManage(&tenantID) || actor.UserType == domain.UserTypeBranch {
		return nil, fmt.Errorf("loyalty.SetRestaurantThreshold: %w", ErrNotAllowed)
	}
	if threshold < 0 {
		return nil, fmt.Errorf("loyalty.SetRestaurantThreshold: threshold: %w", domain.ErrInvalidInput)
	}

	rs := &domain.RestaurantLoyaltySettings{TenantID: tenantID, Threshold: threshold, UpdatedAt: s.now().UTC()}
	if err := s.loyalty.UpsertRestaurantSettings(ctx, rs); err != nil {
		return nil, fmt.Errorf("loyalty.SetRestaurantThreshold: %w", notFound(err, ErrTenantNotFound))
	}
	return rs, nil
}

// ConversionRate returns the tenant's global-to-restaurant rate, creating a
// zero rate on first access.
func (s *Service) ConversionRate(ctx context.Context, tenantID uuid.UUID) (*domain.LoyaltyConversionRate, error) {
	rate, err := s.loyalty.GetOrCreateConversionRate(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("loyalty.ConversionRate: %w", notFound(err, ErrTenantNotFound))
	}
	return rate, nil
}

func (s *Service) SetConversionRate(ctx context.Context, actor Actor, tenantID uuid.UUID, rate decimal.Decimal) (*domain.LoyaltyConversionRate, error) {
	if !actor.CanManage(&tenantID) || actor.UserType == domain.UserTypeBranch {
		return nil, fmt.Errorf("loyalty.SetConversionRate: %w", ErrNotAllowed)
	}
	if rate.IsNegative() {
		return nil, fmt.Errorf("loyalty.SetConversionRate: rate: %w", domain.ErrInvalidInput)
	}

	r := &domain.LoyaltyConversionRate{TenantID: tenantID, GlobalToRestaurantRate: rate, UpdatedAt: s.now().UTC()}
	if err := s.loyalty.UpsertConversionRate(ctx, r); err != nil {
		return nil, fmt.Errorf("loyalty.SetConversionRate: %w", notFound(err, ErrTenantNotFound))
	}
	return r, nil
}

// RedeemableAmount returns the customer's tenant balance when it reaches the
// restaurant threshold, zero otherwise.
func (s *Service) RedeemableAmount(ctx context.Context, customerID, tenantID uuid.UUID) (int, error) {
	points, err := s.loyalty.GetTenantBalance(ctx, tenantID, customerID)
	if err != nil {
		return 0, fmt.Errorf("loyalty.RedeemableAmount: %w", err)
	}

	rs, err := s.RestaurantSettings(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	if points < rs.Threshold {
		return 0, nil
	}
	return points, nil
}

// AwardEvent credits the configured global points for event once per customer.
func (s *Service) AwardEvent(ctx context.Context, customerID uuid.UUID, event string) (bool, error) {
	setting, err := s.loyalty.GetGlobalSetting(ctx, event)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("loyalty.AwardEvent: %w", err)
	}
	if setting.GlobalPoints <= 0 {
		return false, nil
	}

	awarded, err := s.loyalty.AwardEvent(ctx, customerID, event, setting.GlobalPoints)
	if err != nil {
		return false, fmt.Errorf("loyalty.AwardEvent: %w", err)
	}
	if awarded {
		log.Info().
			Str("component", "loyalty").
			Str("customer_id", customerID.String()).
			Str("event", event).
			Int("points", setting.GlobalPoints).
			Msg("event points awarded")
	}
	return awarded, nil
}

// AwardProfileCompletion implements auth.ProfileRewarder.
func (s *Service) AwardProfileCompletion(ctx context.Context, user *domain.User) error {
	if user.UserType != domain.UserTypeCustomer || !user.ProfileComplete() {
		return nil
	}
	_, err := s.AwardEvent(ctx, user.ID, domain.LoyaltyEventProfile)
	return err
}
