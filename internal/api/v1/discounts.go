package v1

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/minmin-app/minmin/internal/domain"
	"github.com/minmin-app/minmin/internal/pricing"
)

type DiscountBody struct {
	TenantID     uuid.UUID   `json:"tenant_id" doc:"Owning restaurant"`
	IsGlobal     bool        `json:"is_global" doc:"Applies to every branch"`
	BranchIDs    []uuid.UUID `json:"branch_ids,omitempty" doc:"Branches covered when not global"`
	Name         string      `json:"name" minLength:"1" maxLength:"255"`
	Description  string      `json:"description,omitempty" maxLength:"2000"`
	Type         string      `json:"type" enum:"volume,combo,bogo,freeItem"`
	OffPeakHours bool        `json:"off_peak_hours,omitempty"`
	Priority     int         `json:"priority" doc:"Higher priorities are evaluated first"`
	IsStackable  bool        `json:"is_stackable,omitempty"`
	CouponID     *uuid.UUID  `json:"coupon_id,omitempty"`
	ValidFrom    *time.Time  `json:"valid_from,omitempty" doc:"Defaults to now"`
	ValidUntil   *time.Time  `json:"valid_until,omitempty"`
}

func (b DiscountBody) params() pricing.DiscountParams {
	return pricing.DiscountParams{
		TenantID:     b.TenantID,
		IsGlobal:     b.IsGlobal,
		BranchIDs:    b.BranchIDs,
		Name:         b.Name,
		Description:  b.Description,
		Type:         domain.DiscountType(b.Type),
		OffPeakHours: b.OffPeakHours,
		Priority:     b.Priority,
		IsStackable:  b.IsStackable,
		CouponID:     b.CouponID,
		ValidFrom:    b.ValidFrom,
		ValidUntil:   b.ValidUntil,
	}
}

type CreateDiscountInput struct {
	Body DiscountBody
}

type UpdateDiscountInput struct {
	ID   uuid.UUID `path:"id" doc:"Discount ID"`
	Body DiscountBody
}

type DiscountIDInput struct {
	ID uuid.UUID `path:"id" doc:"Discount ID"`
}

type DiscountOutput struct {
	Body *domain.Discount
}

type TenantQueryInput struct {
	TenantID uuid.UUID `query:"tenant_id" required:"true" doc:"Tenant ID"`
}

type ListDiscountsOutput struct {
	Body []*domain.Discount
}

type BigItemsInput struct {
	TenantID string `query:"tenant_id" doc:"Restrict to one restaurant"`
}

type BigItemsOutput struct {
	Body struct {
		Items []string `json:"items"`
	}
}

type RuleBody struct {
	DiscountID        uuid.UUID `json:"discount_id"`
	MinItems          *int      `json:"min_items,omitempty" minimum:"0"`
	MinPrice          *string   `json:"min_price,omitempty" pattern:"^[0-9]+(\\.[0-9]+)?$"`
	ApplicableItems   []string  `json:"applicable_items,omitempty" doc:"Menu item ids the rule counts; empty means all"`
	ExcludedItems     []string  `json:"excluded_items,omitempty" doc:"Items never counted, or the free items of a freeItem rule"`
	ComboSize         *int      `json:"combo_size,omitempty" minimum:"1"`
	BuyQuantity       *int      `json:"buy_quantity,omitempty" minimum:"1"`
	GetQuantity       *int      `json:"get_quantity,omitempty" minimum:"1"`
	IsPercentage      bool      `json:"is_percentage,omitempty"`
	MaxDiscountAmount string    `json:"max_discount_amount" pattern:"^[0-9]+(\\.[0-9]+)?$" doc:"Percentage or fixed amount"`
}

func (b RuleBody) params() (pricing.RuleParams, error) {
	p := pricing.RuleParams{
		DiscountID:      b.DiscountID,
		MinItems:        b.MinItems,
		ApplicableItems: b.ApplicableItems,
		ExcludedItems:   b.ExcludedItems,
		ComboSize:       b.ComboSize,
		BuyQuantity:     b.BuyQuantity,
		GetQuantity:     b.GetQuantity,
		IsPercentage:    b.IsPercentage,
	}
	amount, err := decimal.NewFromString(b.MaxDiscountAmount)
	if err != nil {
		return p, huma.Error400BadRequest("max_discount_amount must be a decimal")
	}
	p.MaxDiscountAmount = amount
	if b.MinPrice != nil {
		minPrice, err := decimal.NewFromString(*b.MinPrice)
		if err != nil {
			return p, huma.Error400BadRequest("min_price must be a decimal")
		}
		p.MinPrice = &minPrice
	}
	return p, nil
}

type CreateRuleInput struct {
	Body RuleBody
}

type UpdateRuleInput struct {
	ID   uuid.UUID `path:"id" doc:"Rule ID"`
	Body RuleBody
}

type RuleIDInput struct {
	ID uuid.UUID `path:"id" doc:"Rule ID"`
}

type RuleOutput struct {
	Body *domain.DiscountRule
}

type CouponBody struct {
	TenantID       uuid.UUID  `json:"tenant_id"`
	DiscountCode   string     `json:"discount_code" minLength:"1" maxLength:"255"`
	IsPercentage   bool       `json:"is_percentage,omitempty"`
	DiscountAmount string     `json:"discount_amount" pattern:"^[0-9]+(\\.[0-9]+)?$"`
	IsValid        *bool      `json:"is_valid,omitempty" doc:"Defaults to true"`
	ValidFrom      *time.Time `json:"valid_from,omitempty"`
	ValidUntil     *time.Time `json:"valid_until,omitempty"`
}

func (b CouponBody) params() (pricing.CouponParams, error) {
	amount, err := decimal.NewFromString(b.DiscountAmount)
	if err != nil {
		return pricing.CouponParams{}, huma.Error400BadRequest("discount_amount must be a decimal")
	}
	return pricing.CouponParams{
		TenantID:       b.TenantID,
		DiscountCode:   b.DiscountCode,
		IsPercentage:   b.IsPercentage,
		DiscountAmount: amount,
		IsValid:        b.IsValid == nil || *b.IsValid,
		ValidFrom:      b.ValidFrom,
		ValidUntil:     b.ValidUntil,
	}, nil
}

type CreateCouponInput struct {
	Body CouponBody
}

type UpdateCouponInput struct {
	ID   uuid.UUID `path:"id" doc:"Coupon ID"`
	Body CouponBody
}

type CouponIDInput struct {
	ID uuid.UUID `path:"id" doc:"Coupon ID"`
}

type CouponOutput struct {
	Body *domain.Coupon
}

type ListCouponsOutput struct {
	Body []*domain.Coupon
}

type QuoteLine struct {
	ItemID   string `json:"item_id" minLength:"1" maxLength:"100"`
	Quantity int    `json:"quantity" minimum:"0"`
	Price    string `json:"price" pattern:"^[0-9]+(\\.[0-9]+)?$" doc:"Unit price, 0 for free items"`
}

type QuoteInput struct {
	Body struct {
		TenantID   uuid.UUID   `json:"tenant_id"`
		BranchID   *uuid.UUID  `json:"branch_id,omitempty"`
		Lines      []QuoteLine `json:"lines" minItems:"1" maxItems:"200"`
		CouponCode string      `json:"coupon_code,omitempty" maxLength:"255"`
		Redeem     bool        `json:"redeem,omitempty" doc:"Spend restaurant loyalty points"`
		Commit     bool        `json:"commit,omitempty" doc:"Mark the coupon as used"`
	}
}

type QuoteOutput struct {
	Body *pricing.Checkout
}

// pricingError maps pricing failures to HTTP problems; resource names the
// entity for 404 messages.
func pricingError(err error, resource, fallback string) error {
	switch {
	case errors.Is(err, pricing.ErrNotAllowed):
		return huma.Error403Forbidden("You are not allowed to manage discounts of this restaurant.")
	case errors.Is(err, pricing.ErrDiscountInUse):
		return huma.Error400BadRequest("This discount cannot be deleted because it has related records.")
	case errors.Is(err, pricing.ErrCouponUnavailable):
		return huma.Error400BadRequest("Coupon is invalid, expired or already used.")
	case errors.Is(err, pricing.ErrBranchMismatch):
		return huma.Error400BadRequest("Branch does not belong to this restaurant.")
	case errors.Is(err, domain.ErrNotFound):
		return huma.Error404NotFound(resource + " not found")
	case errors.Is(err, domain.ErrConflict):
		return huma.Error409Conflict(resource + " already exists")
	}
	if he := badInput(err); he != nil {
		return he
	}
	return huma.Error500InternalServerError(fallback, err)
}

func RegisterDiscountRoutes(api huma.API, store DataStore, svc PricingService) {
	huma.Register(api, huma.Operation{
		OperationID: "list-discounts",
		Method:      http.MethodGet,
		Path:        "/discounts",
		Summary:     "List a restaurant's discounts with their rules",
		Tags:        []string{"Discounts"},
	}, func(ctx context.Context, input *TenantQueryInput) (*ListDiscountsOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		ds, err := svc.ListDiscounts(ctx, pricingActor(p), input.TenantID)
		if err != nil {
			return nil, pricingError(err, "Discount", "failed to list discounts")
		}
		return &ListDiscountsOutput{Body: ds}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-discount",
		Method:      http.MethodPost,
		Path:        "/discounts",
		Summary:     "Create a discount",
		Tags:        []string{"Discounts"},
	}, func(ctx context.Context, input *CreateDiscountInput) (*DiscountOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		d, err := svc.CreateDiscount(ctx, pricingActor(p), input.Body.params())
		if err != nil {
			return nil, pricingError(err, "Tenant or coupon", "failed to create discount")
		}
		recordAudit(ctx, store, p, &d.TenantID, "discount.create", "discount", d.ID, map[string]any{"name": d.Name})
		return &DiscountOutput{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "big-discount-items",
		Method:      http.MethodGet,
		Path:        "/discounts/big-items",
		Summary:     "Menu items promoted by active discounts, by priority",
		Tags:        []string{"Discounts"},
	}, func(ctx context.Context, input *BigItemsInput) (*BigItemsOutput, error) {
		var tenant *uuid.UUID
		if input.TenantID != "" {
			id, err := uuid.Parse(input.TenantID)
			if err != nil {
				return nil, huma.Error400BadRequest("tenant_id must be a UUID")
			}
			tenant = &id
		}
		items, err := svc.BigItems(ctx, tenant)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list discount items", err)
		}
		out := &BigItemsOutput{}
		out.Body.Items = items
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-discount",
		Method:      http.MethodGet,
		Path:        "/discounts/{id}",
		Summary:     "Get a discount with its rules",
		Tags:        []string{"Discounts"},
	}, func(ctx context.Context, input *DiscountIDInput) (*DiscountOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		d, err := svc.GetDiscount(ctx, pricingActor(p), input.ID)
		if err != nil {
			return nil, pricingError(err, "Discount", "failed to get discount")
		}
		return &DiscountOutput{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-discount",
		Method:      http.MethodPut,
		Path:        "/discounts/{id}",
		Summary:     "Update a discount",
		Tags:        []string{"Discounts"},
	}, func(ctx context.Context, input *UpdateDiscountInput) (*DiscountOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		d, err := svc.UpdateDiscount(ctx, pricingActor(p), input.ID, input.Body.params())
		if err != nil {
			return nil, pricingError(err, "Discount", "failed to update discount")
		}
		recordAudit(ctx, store, p, &d.TenantID, "discount.update", "discount", d.ID, nil)
		return &DiscountOutput{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-discount",
		Method:      http.MethodDelete,
		Path:        "/discounts/{id}",
		Summary:     "Delete a discount without rules",
		Tags:        []string{"Discounts"},
	}, func(ctx context.Context, input *DiscountIDInput) (*struct{}, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		if err := svc.DeleteDiscount(ctx, pricingActor(p), input.ID); err != nil {
			return nil, pricingError(err, "Discount", "failed to delete discount")
		}
		recordAudit(ctx, store, p, p.TenantID, "discount.delete", "discount", input.ID, nil)
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-discount-rule",
		Method:      http.MethodPost,
		Path:        "/discount-rules",
		Summary:     "Add a rule to a discount",
		Tags:        []string{"Discounts"},
	}, func(ctx context.Context, input *CreateRuleInput) (*RuleOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		params, err := input.Body.params()
		if err != nil {
			return nil, err
		}
		r, err := svc.CreateRule(ctx, pricingActor(p), params)
		if err != nil {
			return nil, pricingError(err, "Discount", "failed to create rule")
		}
		return &RuleOutput{Body: r}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-discount-rule",
		Method:      http.MethodGet,
		Path:        "/discount-rules/{id}",
		Summary:     "Get a discount rule",
		Tags:        []string{"Discounts"},
	}, func(ctx context.Context, input *RuleIDInput) (*RuleOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		r, err := svc.GetRule(ctx, pricingActor(p), input.ID)
		if err != nil {
			return nil, pricingError(err, "Rule", "failed to get rule")
		}
		return &RuleOutput{Body: r}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-discount-rule",
		Method:      http.MethodPut,
		Path:        "/discount-rules/{id}",
		Summary:     "Update a discount rule",
		Tags:        []string{"Discounts"},
	}, func(ctx context.Context, input *UpdateRuleInput) (*RuleOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		params, err := input.Body.params()
		if err != nil {
			return nil, err
		}
		r, err := svc.UpdateRule(ctx, pricingActor(p), input.ID, params)
		if err != nil {
			return nil, pricingError(err, "Rule", "failed to update rule")
		}
		return &RuleOutput{Body: r}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-discount-rule",
		Method:      http.MethodDelete,
		Path:        "/discount-rules/{id}",
		Summary:     "Delete a discount rule",
		Tags:        []string{"Discounts"},
	}, func(ctx context.Context, input *RuleIDInput) (*struct{}, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		if err := svc.DeleteRule(ctx, pricingActor(p), input.ID); err != nil {
			return nil, pricingError(err, "Rule", "failed to delete rule")
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-coupons",
		Method:      http.MethodGet,
		Path:        "/coupons",
		Summary:     "List a restaurant's coupons",
		Tags:        []string{"Discounts"},
	}, func(ctx context.Context, input *TenantQueryInput) (*ListCouponsOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		cs, err := svc.ListCoupons(ctx, pricingActor(p), input.TenantID)
		if err != nil {
			return nil, pricingError(err, "Coupon", "failed to list coupons")
		}
		return &ListCouponsOutput{Body: cs}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-coupon",
		Method:      http.MethodPost,
		Path:        "/coupons",
		Summary:     "Create a coupon",
		Tags:        []string{"Discounts"},
	}, func(ctx context.Context, input *CreateCouponInput) (*CouponOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		params, err := input.Body.params()
		if err != nil {
			return nil, err
		}
		c, err := svc.CreateCoupon(ctx, pricingActor(p), params)
		if err != nil {
			return nil, pricingError(err, "Coupon", "failed to create coupon")
		}
		recordAudit(ctx, store, p, &c.TenantID, "coupon.create", "coupon", c.ID, map[string]any{"code": c.DiscountCode})
		return &CouponOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-coupon",
		Method:      http.MethodPut,
		Path:        "/coupons/{id}",
		Summary:     "Update a coupon",
		Tags:        []string{"Discounts"},
	}, func(ctx context.Context, input *UpdateCouponInput) (*CouponOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		params, err := input.Body.params()
		if err != nil {
			return nil, err
		}
		c, err := svc.UpdateCoupon(ctx, pricingActor(p), input.ID, params)
		if err != nil {
			return nil, pricingError(err, "Coupon", "failed to update coupon")
		}
		return &CouponOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-coupon",
		Method:      http.MethodDelete,
		Path:        "/coupons/{id}",
		Summary:     "Delete a coupon",
		Tags:        []string{"Discounts"},
	}, func(ctx context.Context, input *CouponIDInput) (*struct{}, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		if err := svc.DeleteCoupon(ctx, pricingActor(p), input.ID); err != nil {
			return nil, pricingError(err, "Coupon", "failed to delete coupon")
		}
		recordAudit(ctx, store, p, p.TenantID, "coupon.delete", "coupon", input.ID, nil)
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "checkout-quote",
		Method:      http.MethodPost,
		Path:        "/checkout/quote",
		Summary:     "Apply discounts to a cart and price it",
		Description: "Returns the free-item changes the client must apply to its cart and the price breakdown.",
		Tags:        []string{"Checkout"},
	}, func(ctx context.Context, input *QuoteInput) (*QuoteOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}

		lines := make([]pricing.CartLine, 0, len(input.Body.Lines))
		for _, l := range input.Body.Lines {
			price, err := decimal.NewFromString(l.Price)
			if err != nil {
				return nil, huma.Error400BadRequest("price must be a decimal")
			}
			lines = append(lines, pricing.CartLine{ItemID: l.ItemID, Quantity: l.Quantity, Price: price})
		}

		checkout, err := svc.Checkout(ctx, pricing.CheckoutParams{
			CustomerID: p.UserID,
			TenantID:   input.Body.TenantID,
			BranchID:   input.Body.BranchID,
			Lines:      lines,
			CouponCode: input.Body.CouponCode,
			Redeem:     input.Body.Redeem,
			Commit:     input.Body.Commit,
		})
		if err != nil {
			return nil, pricingError(err, "Tenant or branch", "failed to price cart")
		}
		return &QuoteOutput{Body: checkout}, nil
	})
}
