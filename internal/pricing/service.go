package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/minmin-app/minmin/internal/domain"
)

var (
	ErrNotAllowed        = errors.New("pricing: not allowed to manage discounts of this restaurant")
	ErrDiscountInUse     = errors.New("pricing: discount cannot be deleted because it has related records")
	ErrCouponUnavailable = errors.New("pricing: coupon is invalid, expired or already used")
	ErrBranchMismatch    = errors.New("pricing: branch does not belong to the restaurant")
)

// Actor is the authenticated caller of a management operation.
type Actor struct {
	UserID   uuid.UUID
	UserType domain.UserType
	TenantID *uuid.UUID
}

// CanManage reports whether the actor administers tenantID.
func (a Actor) CanManage(tenantID uuid.UUID) bool {
	if a.UserType == domain.UserTypeAdmin {
		return true
	}
	return a.UserType.IsStaff() && a.TenantID != nil && *a.TenantID == tenantID
}

// RedeemSource reports how many loyalty points a customer may spend at a
// restaurant. loyalty.Service implements it.
type RedeemSource interface {
	RedeemableAmount(ctx context.Context, customerID, tenantID uuid.UUID) (int, error)
}

type Service struct {
	discounts domain.DiscountRepository
	tenants   domain.TenantRepository
	branches  domain.BranchRepository
	redeem    RedeemSource
	validate  *validator.Validate
	now       func() time.Time
}

func NewService(discounts domain.DiscountRepository, tenants domain.TenantRepository, branches domain.BranchRepository, redeem RedeemSource) *Service {
	return &Service{
		discounts: discounts,
		tenants:   tenants,
		branches:  branches,
		redeem:    redeem,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		now:       time.Now,
	}
}

func (s *Service) authorize(actor Actor, tenantID uuid.UUID) error {
	if !actor.CanManage(tenantID) {
		return ErrNotAllowed
	}
	return nil
}

// --- Discounts ---

type DiscountParams struct {
	TenantID     uuid.UUID `validate:"required"`
	IsGlobal     bool
	BranchIDs    []uuid.UUID
	Name         string              `validate:"required,max=255"`
	Description  string              `validate:"max=2000"`
	Type         domain.DiscountType `validate:"required,oneof=volume combo bogo freeItem"`
	OffPeakHours bool
	Priority     int
	IsStackable  bool
	CouponID     *uuid.UUID
	ValidFrom    *time.Time
	ValidUntil   *time.Time
}

func (s *Service) checkDiscount(ctx context.Context, p DiscountParams) error {
	if err := s.validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	if p.ValidFrom != nil && p.ValidUntil != nil && p.ValidUntil.Before(*p.ValidFrom) {
		return fmt.Errorf("valid_until before valid_from: %w", domain.ErrInvalidInput)
	}
	if p.CouponID != nil {
		c, err := s.discounts.GetCoupon(ctx, *p.CouponID)
		if err != nil {
			return fmt.Errorf("coupon: %w", err)
		}
		if c.TenantID != p.TenantID {
			return fmt.Errorf("coupon of another restaurant: %w", domain.ErrInvalidInput)
		}
	}
	return nil
}

func (s *Service) CreateDiscount(ctx context.Context, actor Actor, p DiscountParams) (*domain.Discount, error) {
	if err := s.authorize(actor, p.TenantID); err != nil {
		return nil, fmt.Errorf("pricing.CreateDiscount: %w", err)
	}
	if err := s.checkDiscount(ctx, p); err != nil {
		return nil, fmt.Errorf("pricing.CreateDiscount: %w", err)
	}

	now := s.now()
	d := &domain.Discount{ID: uuid.New(), CreatedAt: now}
	fillDiscount(d, p, now)

	if err := s.discounts.CreateDiscount(ctx, d); err != nil {
		return nil, fmt.Errorf("pricing.CreateDiscount: %w", err)
	}
	return d, nil
}

func (s *Service) UpdateDiscount(ctx context.Context, actor Actor, id uuid.UUID, p DiscountParams) (*domain.Discount, error) {
	d, err := s.discounts.GetDiscount(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("pricing.UpdateDiscount: %w", err)
	}
	if err := s.authorize(actor, d.TenantID); err != nil {
		return nil, fmt.Errorf("pricing.UpdateDiscount: %w", err)
	}
	p.TenantID = d.TenantID
	if err := s.checkDiscount(ctx, p); err != nil {
		return nil, fmt.Errorf("pricing.UpdateDiscount: %w", err)
	}

	fillDiscount(d, p, s.now())
	if err := s.discounts.UpdateDiscount(ctx, d); err != nil {
		return nil, fmt.Errorf("pricing.UpdateDiscount: %w", err)
	}
	return d, nil
}

func fillDiscount(d *domain.Discount, p DiscountParams, now time.Time) {
	d.TenantID = p.TenantID
	d.IsGlobal = p.IsGlobal
	d.BranchIDs = p.BranchIDs
	if d.BranchIDs == nil {
		d.BranchIDs = []uuid.UUID{}
	}
	d.Name = strings.TrimSpace(p.Name)
	d.Description = p.Description
	d.Type = p.Type
	d.OffPeakHours = p.OffPeakHours
	d.Priority = p.Priority
	d.IsStackable = p.IsStackable
	d.CouponID = p.CouponID
	d.ValidFrom = now
	if p.ValidFrom != nil {
		d.ValidFrom = *p.ValidFrom
	}
	d.ValidUntil = p.ValidUntil
	d.UpdatedAt = now
}

func (s *Service) GetDiscount(ctx context.Context, actor Actor, id uuid.UUID) (*domain.Discount, error) {
	d, err := s.discounts.GetDiscount(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("pricing.GetDiscount: %w", err)
	}
	if err := s.authorize(actor, d.TenantID); err != nil {
		return nil, fmt.Errorf("pricing.GetDiscount: %w", err)
	}
	return d, nil
}

func (s *Service) ListDiscounts(ctx context.Context, actor Actor, tenantID uuid.UUID) ([]*domain.Discount, error) {
	if err := s.authorize(actor, tenantID); err != nil {
		return nil, fmt.Errorf("pricing.ListDiscounts: %w", err)
	}
	ds, err := s.discounts.ListDiscounts(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("pricing.ListDiscounts: %w", err)
	}
	return ds, nil
}

// DeleteDiscount refuses while rules still reference the discount.
func (s *Service) DeleteDiscount(ctx context.Context, actor Actor, id uuid.UUID) error {
	d, err := s.discounts.GetDiscount(ctx, id)
	if err != nil {
		return fmt.Errorf("pricing.DeleteDiscount: %w", err)
	}
	if err := s.authorize(actor, d.TenantID); err != nil {
		return fmt.Errorf("pricing.DeleteDiscount: %w", err)
	}
	if len(d.Rules) > 0 {
		return fmt.Errorf("pricing.DeleteDiscount: %w", ErrDiscountInUse)
	}

	err = s.discounts.DeleteDiscount(ctx, id)
	if errors.Is(err, domain.ErrConflict) {
		return fmt.Errorf("pricing.DeleteDiscount: %w", ErrDiscountInUse)
	}
	if err != nil {
		return fmt.Errorf("pricing.DeleteDiscount: %w", err)
	}
	return nil
}

// --- Rules ---

type RuleParams struct {
	DiscountID        uuid.UUID `validate:"required"`
	MinItems          *int      `validate:"omitempty,min=0"`
	MinPrice          *decimal.Decimal
	ApplicableItems   []string
	ExcludedItems     []string
	ComboSize         *int `validate:"omitempty,min=1"`
	BuyQuantity       *int `validate:"omitempty,min=1"`
	GetQuantity       *int `validate:"omitempty,min=1"`
	IsPercentage      bool
	MaxDiscountAmount decimal.Decimal
}

// checkRule enforces the fields each discount kind needs.
func (s *Service) checkRule(kind domain.DiscountType, p RuleParams) error {
	if err := s.validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	if p.MaxDiscountAmount.IsNegative() || (p.MinPrice != nil && p.MinPrice.IsNegative()) {
		return fmt.Errorf("negative amount: %w", domain.ErrInvalidInput)
	}
	if p.IsPercentage && p.MaxDiscountAmount.GreaterThan(hundred) {
		return fmt.Errorf("percentage above 100: %w", domain.ErrInvalidInput)
	}

	switch kind {
	case domain.DiscountVolume:
		if p.MinItems == nil {
			return fmt.Errorf("volume rule needs min_items: %w", domain.ErrInvalidInput)
		}
	case domain.DiscountCombo:
		if p.ComboSize == nil {
			return fmt.Errorf("combo rule needs combo_size: %w", domain.ErrInvalidInput)
		}
	case domain.DiscountBOGO:
		if p.BuyQuantity == nil || p.GetQuantity == nil {
			return fmt.Errorf("bogo rule needs buy_quantity and get_quantity: %w", domain.ErrInvalidInput)
		}
	case domain.DiscountFreeItem:
		if p.BuyQuantity == nil || p.GetQuantity == nil || len(p.ExcludedItems) == 0 {
			return fmt.Errorf("freeItem rule needs buy_quantity, get_quantity and excluded_items: %w", domain.ErrInvalidInput)
		}
	}
	return nil
}

func (s *Service) CreateRule(ctx context.Context, actor Actor, p RuleParams) (*domain.DiscountRule, error) {
	d, err := s.discounts.GetDiscount(ctx, p.DiscountID)
	if err != nil {
		return nil, fmt.Errorf("pricing.CreateRule: discount: %w", err)
	}
	if err := s.authorize(actor, d.TenantID); err != nil {
		return nil, fmt.Errorf("pricing.CreateRule: %w", err)
	}
	if err := s.checkRule(d.Type, p); err != nil {
		return nil, fmt.Errorf("pricing.CreateRule: %w", err)
	}

	r := &domain.DiscountRule{ID: uuid.New(), TenantID: d.TenantID, CreatedAt: s.now()}
	fillRule(r, p)
	if err := s.discounts.CreateRule(ctx, r); err != nil {
		return nil, fmt.Errorf("pricing.CreateRule: %w", err)
	}
	return r, nil
}

func (s *Service) UpdateRule(ctx context.Context, actor Actor, id uuid.UUID, p RuleParams) (*domain.DiscountRule, error) {
	r, err := s.discounts.GetRule(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("pricing.UpdateRule: %w", err)
	}
	if err := s.authorize(actor, r.TenantID); err != nil {
		return nil, fmt.Errorf("pricing.UpdateRule: %w", err)
	}
	p.DiscountID = r.DiscountID
	d, err := s.discounts.GetDiscount(ctx, r.DiscountID)
	if err != nil {
		return nil, fmt.Errorf("pricing.UpdateRule: discount: %w", err)
	}
	if err := s.checkRule(d.Type, p); err != nil {
		return nil, fmt.Errorf("pricing.UpdateRule: %w", err)
	}

	fillRule(r, p)
	if err := s.discounts.UpdateRule(ctx, r); err != nil {
		return nil, fmt.Errorf("pricing.UpdateRule: %w", err)
	}
	return r, nil
}

func fillRule(r *domain.DiscountRule, p RuleParams) {
	r.DiscountID = p.DiscountID
	r.MinItems = p.MinItems
	r.MinPrice = p.MinPrice
	r.ApplicableItems = orEmpty(p.ApplicableItems)
	r.ExcludedItems = orEmpty(p.ExcludedItems)
	r.ComboSize = p.ComboSize
	r.BuyQuantity = p.BuyQuantity
	r.GetQuantity = p.GetQuantity
	r.IsPercentage = p.IsPercentage
	r.MaxDiscountAmount = p.MaxDiscountAmount
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (s *Service) GetRule(ctx context.Context, actor Actor, id uuid.UUID) (*domain.DiscountRule, error) {
	r, err := s.discounts.GetRule(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("pricing.GetRule: %w", err)
	}
	if err := s.authorize(actor, r.TenantID); err != nil {
		return nil, fmt.Errorf("pricing.GetRule: %w", err)
	}
	return r, nil
}

func (s *Service) DeleteRule(ctx context.Context, actor Actor, id uuid.UUID) error {
	r, err := s.discounts.GetRule(ctx, id)
	if err != nil {
		return fmt.Errorf("pricing.DeleteRule: %w", err)
	}
	if err := s.authorize(actor, r.TenantID); err != nil {
		return fmt.Errorf("pricing.DeleteRule: %w", err)
	}
	if err := s.discounts.DeleteRule(ctx, id); err != nil {
		return fmt.Errorf("pricing.DeleteRule: %w", err)
	}
	return nil
}

// --- Coupons ---

type CouponParams struct {
	TenantID       uuid.UUID `validate:"required"`
	DiscountCode   string    `validate:"required,max=255"`
	IsPercentage   bool
	DiscountAmount decimal.Decimal
	IsValid        bool
	ValidFrom      *time.Time
	ValidUntil     *time.Time
}

func (s *Service) checkCoupon(p CouponParams) error {
	if err := s.validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	if !p.DiscountAmount.IsPositive() || (p.IsPercentage && p.DiscountAmount.GreaterThan(hundred)) {
		return fmt.Errorf("discount_amount out of range: %w", domain.ErrInvalidInput)
	}
	return nil
}

func (s *Service) CreateCoupon(ctx context.Context, actor Actor, p CouponParams) (*domain.Coupon, error) {
	if err := s.authorize(actor, p.TenantID); err != nil {
		return nil, fmt.Errorf("pricing.CreateCoupon: %w", err)
	}
	if err := s.checkCoupon(p); err != nil {
		return nil, fmt.Errorf("pricing.CreateCoupon: %w", err)
	}

	now := s.now()
	c := &domain.Coupon{ID: uuid.New(), CreatedAt: now}
	fillCoupon(c, p, now)
	if err := s.discounts.CreateCoupon(ctx, c); err != nil {
		return nil, fmt.Errorf("pricing.CreateCoupon: %w", err)
	}
	return c, nil
}

func (s *Service) UpdateCoupon(ctx context.Context, actor Actor, id uuid.UUID, p CouponParams) (*domain.Coupon, error) {
	c, err := s.discounts.GetCoupon(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("pricing.UpdateCoupon: %w", err)
	}
	if err := s.authorize(actor, c.TenantID); err != nil {
		return nil, fmt.Errorf("pricing.UpdateCoupon: %w", err)
	}
	p.TenantID = c.TenantID
	if err := s.checkCoupon(p); err != nil {
		return nil, fmt.Errorf("pricing.UpdateCoupon: %w", err)
	}

	fillCoupon(c, p, s.now())
	if err := s.discounts.UpdateCoupon(ctx, c); err != nil {
		return nil, fmt.Errorf("pricing.UpdateCoupon: %w", err)
	}
	return c, nil
}

func fillCoupon(c *domain.Coupon, p CouponParams, now time.Time) {
	c.TenantID = p.TenantID
	c.DiscountCode = strings.TrimSpace(p.DiscountCode)
	c.IsPercentage = p.IsPercentage
	c.DiscountAmount = p.DiscountAmount
	c.IsValid = p.IsValid
	c.ValidFrom = now
	if p.ValidFrom != nil {
		c.ValidFrom = *p.ValidFrom
	}
	c.ValidUntil = p.ValidUntil
}

func (s *Service) ListCoupons(ctx context.Context, actor Actor, tenantID uuid.UUID) ([]*domain.Coupon, error) {
	if err := s.authorize(actor, tenantID); err != nil {
		return nil, fmt.Errorf("pricing.ListCoupons: %w", err)
	}
	cs, err := s.discounts.ListCoupons(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("pricing.ListCoupons: %w", err)
	}
	return cs, nil
}

func (s *Service) DeleteCoupon(ctx context.Context, actor Actor, id uuid.UUID) error {
	c, err := s.discounts.GetCoupon(ctx, id)
	if err != nil {
		return fmt.Errorf("pricing.DeleteCoupon: %w", err)
	}
	if err := s.authorize(actor, c.TenantID); err != nil {
		return fmt.Errorf("pricing.DeleteCoupon: %w", err)
	}
	if err := s.discounts.DeleteCoupon(ctx, id); err != nil {
		return fmt.Errorf("pricing.DeleteCoupon: %w", err)
	}
	return nil
}

// --- Storefront ---

// BigItems returns the menu item ids promoted by active discounts, highest
// priority first and without duplicates. A nil tenantID spans every tenant.
func (s *Service) BigItems(ctx context.Context, tenantID *uuid.UUID) ([]string, error) {
	ds, err := s.discounts.ListActiveDiscounts(ctx, tenantID, s.now())
	if err != nil {
		return nil, fmt.Errorf("pricing.BigItems: %w", err)
	}

	items := []string{}
	seen := make(map[string]bool)
	add := func(ids []string) {
		for _, id := range ids {
			if id != "" && !seen[id] {
				seen[id] = true
				items = append(items, id)
			}
		}
	}
	for _, d := range ds {
		for _, r := range d.Rules {
			add(r.ApplicableItems)
			if d.Type == domain.DiscountFreeItem {
				add(r.ExcludedItems)
			}
		}
	}
	return items, nil
}

type CheckoutParams struct {
	CustomerID uuid.UUID `validate:"required"`
	TenantID   uuid.UUID `validate:"required"`
	BranchID   *uuid.UUID
	Lines      []CartLine `validate:"required,min=1,dive"`
	CouponCode string
	Redeem     bool
	// Commit records the coupon as used by the customer.
	Commit bool
}

// Checkout is the reconciled cart with its price breakdown.
type Checkout struct {
	Evaluation Evaluation   `json:"evaluation"`
	Changes    []LineChange `json:"changes"`
	Lines      []CartLine   `json:"lines"`
	Quote      Breakdown    `json:"quote"`
}

// Checkout evaluates the tenant's active discounts and the optional coupon
// for the cart, then prices the reconciled cart.
func (s *Service) Checkout(ctx context.Context, p CheckoutParams) (*Checkout, error) {
	if err := s.validate.Struct(p); err != nil {
		return nil, fmt.Errorf("pricing.Checkout: %w: %w", domain.ErrInvalidInput, err)
	}
	for _, l := range p.Lines {
		if l.Price.IsNegative() || l.Quantity < 0 {
			return nil, fmt.Errorf("pricing.Checkout: line %s: %w", l.ItemID, domain.ErrInvalidInput)
		}
	}

	tenant, err := s.tenants.GetByID(ctx, p.TenantID)
	if err != nil {
		return nil, fmt.Errorf("pricing.Checkout: tenant: %w", err)
	}
	if p.BranchID != nil {
		b, err := s.branches.GetByID(ctx, *p.BranchID)
		if err != nil {
			return nil, fmt.Errorf("pricing.Checkout: branch: %w", err)
		}
		if b.TenantID != tenant.ID {
			return nil, fmt.Errorf("pricing.Checkout: %w", ErrBranchMismatch)
		}
	}

	now := s.now()
	discounts, err := s.discounts.ListActiveDiscounts(ctx, &tenant.ID, now)
	if err != nil {
		return nil, fmt.Errorf("pricing.Checkout: %w", err)
	}

	coupon, err := s.lookupCoupon(ctx, p, now)
	if err != nil {
		return nil, fmt.Errorf("pricing.Checkout: %w", err)
	}

	cart := Cart{BranchID: p.BranchID, Lines: p.Lines, DiscountLimit: tenant.MaxDiscountLimit}
	ev := Evaluate(discounts, cart, coupon, now)

	redeem := decimal.Zero
	if p.Redeem && s.redeem != nil {
		points, err := s.redeem.RedeemableAmount(ctx, p.CustomerID, tenant.ID)
		if err != nil {
			return nil, fmt.Errorf("pricing.Checkout: redeem: %w", err)
		}
		redeem = decimal.NewFromInt(int64(points))
	}

	if p.Commit && ev.CouponID != nil {
		err := s.discounts.RecordCouponUsage(ctx, *ev.CouponID, p.CustomerID)
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("pricing.Checkout: %w", ErrCouponUnavailable)
		}
		if err != nil {
			return nil, fmt.Errorf("pricing.Checkout: coupon usage: %w", err)
		}
		log.Info().
			Str("component", "pricing").
			Str("coupon_id", ev.CouponID.String()).
			Str("customer_id", p.CustomerID.String()).
			Msg("coupon consumed")
	}

	reconciled := Apply(cart, ev)
	return &Checkout{
		Evaluation: ev,
		Changes:    Reconcile(cart, ev),
		Lines:      reconciled.Lines,
		Quote:      Quote(tenant, reconciled, ev, redeem),
	}, nil
}

// lookupCoupon resolves the code for the customer. An empty code yields nil.
func (s *Service) lookupCoupon(ctx context.Context, p CheckoutParams, now time.Time) (*domain.Coupon, error) {
	code := strings.TrimSpace(p.CouponCode)
	if code == "" {
		return nil, nil //nolint:nilnil // no coupon requested
	}

	c, err := s.discounts.GetCouponByCode(ctx, p.TenantID, code)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, ErrCouponUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("coupon: %w", err)
	}
	if !c.UsableAt(now) {
		return nil, ErrCouponUnavailable
	}

	used, err := s.discounts.HasUsedCoupon(ctx, c.ID, p.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("coupon usage: %w", err)
	}
	if used {
		return nil, ErrCouponUnavailable
	}
	return c, nil
}
