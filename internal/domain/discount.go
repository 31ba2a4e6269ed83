package domain

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountVolume   DiscountType = "volume"
	DiscountCombo    DiscountType = "combo"
	DiscountBOGO     DiscountType = "bogo"
	DiscountFreeItem DiscountType = "freeItem"
)

func (t DiscountType) Valid() bool {
	switch t {
	case DiscountVolume, DiscountCombo, DiscountBOGO, DiscountFreeItem:
		return true
	}
	return false
}

// Discount is a promotion owned by a tenant. It applies to every branch when
// IsGlobal is set, otherwise only to BranchIDs.
type Discount struct {
	ID           uuid.UUID       `json:"id"`
	TenantID     uuid.UUID       `json:"tenant_id"`
	IsGlobal     bool            `json:"is_global"`
	BranchIDs    []uuid.UUID     `json:"branch_ids"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Type         DiscountType    `json:"type"`
	OffPeakHours bool            `json:"off_peak_hours"`
	Priority     int             `json:"priority"`
	IsStackable  bool            `json:"is_stackable"`
	CouponID     *uuid.UUID      `json:"coupon_id,omitempty"`
	ValidFrom    time.Time       `json:"valid_from"`
	ValidUntil   *time.Time      `json:"valid_until,omitempty"`
	Rules        []*DiscountRule `json:"rules,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ActiveAt reports whether now falls inside the validity window.
func (d *Discount) ActiveAt(now time.Time) bool {
	if now.Before(d.ValidFrom) {
		return false
	}
	return d.ValidUntil == nil || !now.After(*d.ValidUntil)
}

// AppliesToBranch reports whether the discount covers branchID. A nil branch
// (tenant-level checkout) matches every discount of the tenant.
func (d *Discount) AppliesToBranch(branchID *uuid.UUID) bool {
	if d.IsGlobal || branchID == nil {
		return true
	}
	return slices.Contains(d.BranchIDs, *branchID)
}

type DiscountRule struct {
	ID                uuid.UUID        `json:"id"`
	TenantID          uuid.UUID        `json:"tenant_id"`
	DiscountID        uuid.UUID        `json:"discount_id"`
	MinItems          *int             `json:"min_items,omitempty"`
	MinPrice          *decimal.Decimal `json:"min_price,omitempty"`
	ApplicableItems   []string         `json:"applicable_items"`
	ExcludedItems     []string         `json:"excluded_items"`
	ComboSize         *int             `json:"combo_size,omitempty"`
	BuyQuantity       *int             `json:"buy_quantity,omitempty"`
	GetQuantity       *int             `json:"get_quantity,omitempty"`
	IsPercentage      bool             `json:"is_percentage"`
	MaxDiscountAmount decimal.Decimal  `json:"max_discount_amount"`
	CreatedAt         time.Time        `json:"created_at"`
}

type Coupon struct {
	ID             uuid.UUID       `json:"id"`
	TenantID       uuid.UUID       `json:"tenant_id"`
	DiscountCode   string          `json:"discount_code"`
	IsPercentage   bool            `json:"is_percentage"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	IsValid        bool            `json:"is_valid"`
	ValidFrom      time.Time       `json:"valid_from"`
	ValidUntil     *time.Time      `json:"valid_until,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// UsableAt reports whether the coupon is enabled and inside its validity window.
func (c *Coupon) UsableAt(now time.Time) bool {
	if !c.IsValid || now.Before(c.ValidFrom) {
		return false
	}
	return c.ValidUntil == nil || !now.After(*c.ValidUntil)
}

type DiscountRepository interface {
	CreateDiscount(ctx context.Context, d *Discount) error
	// GetDiscount loads the discount with its rules.
	GetDiscount(ctx context.Context, id uuid.UUID) (*Discount, error)
	// ListDiscounts loads every discount of the tenant with its rules, by priority.
	ListDiscounts(ctx context.Context, tenantID uuid.UUID) ([]*Discount, error)
	// ListActiveDiscounts returns the tenant's discounts valid at now, highest
	// priority first. A nil tenantID spans every tenant.
	ListActiveDiscounts(ctx context.Context, tenantID *uuid.UUID, now time.Time) ([]*Discount, error)
	UpdateDiscount(ctx context.Context, d *Discount) error
	// DeleteDiscount fails with ErrConflict while rules still reference the discount.
	DeleteDiscount(ctx context.Context, id uuid.UUID) error

	CreateRule(ctx context.Context, r *DiscountRule) error
	GetRule(ctx context.Context, id uuid.UUID) (*DiscountRule, error)
	UpdateRule(ctx context.Context, r *DiscountRule) error
	DeleteRule(ctx context.Context, id uuid.UUID) error

	CreateCoupon(ctx context.Context, c *Coupon) error
	GetCoupon(ctx context.Context, id uuid.UUID) (*Coupon, error)
	GetCouponByCode(ctx context.Context, tenantID uuid.UUID, code string) (*Coupon, error)
	ListCoupons(ctx context.Context, tenantID uuid.UUID) ([]*Coupon, error)
	UpdateCoupon(ctx context.Context, c *Coupon) error
	DeleteCoupon(ctx context.Context, id uuid.UUID) error
	// RecordCouponUsage fails with ErrConflict when the customer already used the coupon.
	RecordCouponUsage(ctx context.Context, couponID, customerID uuid.UUID) error
	HasUsedCoupon(ctx context.Context, couponID, customerID uuid.UUID) (bool, error)
}
