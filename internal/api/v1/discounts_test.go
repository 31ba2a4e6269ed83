package v1_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/minmin-app/minmin/internal/api/v1"
	"github.com/minmin-app/minmin/internal/domain"
	"github.com/minmin-app/minmin/internal/pricing"
)

// ---------------------------------------------------------------------------
// Discounts
// ---------------------------------------------------------------------------

func TestCreateDiscount(t *testing.T) {
	t.Parallel()

	tenantID := uuid.New()

	t.Run("owner_creates", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		audit := &mockAuditRepo{}
		svc := &mockPricingService{
			createDiscountFunc: func(_ context.Context, actor pricing.Actor, p pricing.DiscountParams) (*domain.Discount, error) {
				assert.True(t, actor.CanManage(tenantID))
				assert.Equal(t, domain.DiscountType("bogo"), p.Type)
				assert.Equal(t, "Buy one get one", p.Name)
				assert.Equal(t, 5, p.Priority)
				assert.True(t, p.IsGlobal)
				return &domain.Discount{ID: uuid.New(), TenantID: p.TenantID, Name: p.Name, Type: p.Type, Priority: p.Priority}, nil
			},
		}
		v1.RegisterDiscountRoutes(api, &mockDataStore{audit: audit}, svc)

		resp := api.PostCtx(ownerCtx(tenantID), "/discounts", map[string]any{
			"tenant_id": tenantID,
			"is_global": true,
			"name":      "Buy one get one",
			"type":      "bogo",
			"priority":  5,
		})
		require.Equal(t, http.StatusOK, resp.Code)

		var body domain.Discount
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "Buy one get one", body.Name)
		assert.Equal(t, []string{"discount.create"}, audit.actions())
	})

	t.Run("unknown_type", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterDiscountRoutes(api, &mockDataStore{}, &mockPricingService{})

		resp := api.PostCtx(ownerCtx(tenantID), "/discounts", map[string]any{
			"tenant_id": tenantID,
			"is_global": true,
			"name":      "Mystery",
			"type":      "lottery",
			"priority":  1,
		})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	})

	errCases := []struct {
		name   string
		err    error
		status int
	}{
		{"other_tenant", pricing.ErrNotAllowed, http.StatusForbidden},
		{"branch_outside_tenant", pricing.ErrBranchMismatch, http.StatusBadRequest},
		{"invalid", fmt.Errorf("pricing.CreateDiscount: %w", domain.ErrInvalidInput), http.StatusBadRequest},
		{"missing_coupon", domain.ErrNotFound, http.StatusNotFound},
		{"internal", fmt.Errorf("pg: boom"), http.StatusInternalServerError},
	}
	for _, tc := range errCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, api := humatest.New(t)
			svc := &mockPricingService{
				createDiscountFunc: func(context.Context, pricing.Actor, pricing.DiscountParams) (*domain.Discount, error) {
					return nil, tc.err
				},
			}
			v1.RegisterDiscountRoutes(api, &mockDataStore{}, svc)

			resp := api.PostCtx(ownerCtx(tenantID), "/discounts", map[string]any{
				"tenant_id": tenantID,
				"is_global": false,
				"name":      "Combo",
				"type":      "combo",
				"priority":  1,
			})
			assert.Equal(t, tc.status, resp.Code)
		})
	}
}

func TestDeleteDiscount(t *testing.T) {
	t.Parallel()

	t.Run("in_use", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		svc := &mockPricingService{
			deleteDiscountFunc: func(context.Context, pricing.Actor, uuid.UUID) error { return pricing.ErrDiscountInUse },
		}
		v1.RegisterDiscountRoutes(api, &mockDataStore{}, svc)

		resp := api.DeleteCtx(adminCtx(), "/discounts/"+uuid.NewString())
		assert.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Contains(t, resp.Body.String(), "This discount cannot be deleted because it has related records.")
	})

	t.Run("deleted", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		audit := &mockAuditRepo{}
		svc := &mockPricingService{
			deleteDiscountFunc: func(context.Context, pricing.Actor, uuid.UUID) error { return nil },
		}
		v1.RegisterDiscountRoutes(api, &mockDataStore{audit: audit}, svc)

		resp := api.DeleteCtx(adminCtx(), "/discounts/"+uuid.NewString())
		assert.Equal(t, http.StatusNoContent, resp.Code)
		assert.Equal(t, []string{"discount.delete"}, audit.actions())
	})
}

func TestListDiscounts(t *testing.T) {
	t.Parallel()

	tenantID := uuid.New()

	t.Run("requires_tenant", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterDiscountRoutes(api, &mockDataStore{}, &mockPricingService{})

		resp := api.GetCtx(adminCtx(), "/discounts")
		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	})

	t.Run("lists", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		svc := &mockPricingService{
			listDiscountsFunc: func(_ context.Context, _ pricing.Actor, id uuid.UUID) ([]*domain.Discount, error) {
				assert.Equal(t, tenantID, id)
				return []*domain.Discount{{ID: uuid.New(), TenantID: id, Name: "Lunch combo"}}, nil
			},
		}
		v1.RegisterDiscountRoutes(api, &mockDataStore{}, svc)

		resp := api.GetCtx(ownerCtx(tenantID), "/discounts?tenant_id="+tenantID.String())
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Contains(t, resp.Body.String(), "Lunch combo")
	})
}

func TestBigItems(t *testing.T) {
	t.Parallel()

	t.Run("all_tenants", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		svc := &mockPricingService{
			bigItemsFunc: func(_ context.Context, tenantID *uuid.UUID) ([]string, error) {
				assert.Nil(t, tenantID)
				return []string{"kitfo", "shiro"}, nil
			},
		}
		v1.RegisterDiscountRoutes(api, &mockDataStore{}, svc)

		resp := api.Get("/discounts/big-items")
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Contains(t, resp.Body.String(), `"items":["kitfo","shiro"]`)
	})

	t.Run("bad_tenant", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterDiscountRoutes(api, &mockDataStore{}, &mockPricingService{})

		resp := api.Get("/discounts/big-items?tenant_id=not-a-uuid")
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})
}

// ---------------------------------------------------------------------------
// Rules and coupons
// ---------------------------------------------------------------------------

func TestCreateRule(t *testing.T) {
	t.Parallel()

	discountID := uuid.New()

	t.Run("decimals_parsed", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		svc := &mockPricingService{
			createRuleFunc: func(_ context.Context, _ pricing.Actor, p pricing.RuleParams) (*domain.DiscountRule, error) {
				assert.Equal(t, discountID, p.DiscountID)
				require.NotNil(t, p.MinPrice)
				assert.True(t, p.MinPrice.Equal(decimal.RequireFromString("250.50")))
				assert.True(t, p.MaxDiscountAmount.Equal(decimal.NewFromInt(10)))
				assert.True(t, p.IsPercentage)
				require.NotNil(t, p.MinItems)
				assert.Equal(t, 3, *p.MinItems)
				return &domain.DiscountRule{ID: uuid.New(), DiscountID: p.DiscountID, MaxDiscountAmount: p.MaxDiscountAmount}, nil
			},
		}
		v1.RegisterDiscountRoutes(api, &mockDataStore{}, svc)

		resp := api.PostCtx(adminCtx(), "/discount-rules", map[string]any{
			"discount_id":         discountID,
			"min_items":           3,
			"min_price":           "250.50",
			"is_percentage":       true,
			"max_discount_amount": "10",
		})
		assert.Equal(t, http.StatusOK, resp.Code)
	})

	t.Run("malformed_amount", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterDiscountRoutes(api, &mockDataStore{}, &mockPricingService{})

		resp := api.PostCtx(adminCtx(), "/discount-rules", map[string]any{
			"discount_id":         discountID,
			"max_discount_amount": "ten",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	})

	t.Run("unknown_discount", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		svc := &mockPricingService{
			createRuleFunc: func(context.Context, pricing.Actor, pricing.RuleParams) (*domain.DiscountRule, error) {
				return nil, fmt.Errorf("pricing.CreateRule: %w", domain.ErrNotFound)
			},
		}
		v1.RegisterDiscountRoutes(api, &mockDataStore{}, svc)

		resp := api.PostCtx(adminCtx(), "/discount-rules", map[string]any{
			"discount_id":         discountID,
			"max_discount_amount": "10",
		})
		assert.Equal(t, http.StatusNotFound, resp.Code)
		assert.Contains(t, resp.Body.String(), "Discount not found")
	})
}

func TestCoupons(t *testing.T) {
	t.Parallel()

	tenantID := uuid.New()

	t.Run("valid_by_default", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		audit := &mockAuditRepo{}
		svc := &mockPricingService{
			createCouponFunc: func(_ context.Context, _ pricing.Actor, p pricing.CouponParams) (*domain.Coupon, error) {
				assert.True(t, p.IsValid)
				assert.Equal(t, "MESKEL25", p.DiscountCode)
				assert.True(t, p.DiscountAmount.Equal(decimal.NewFromInt(25)))
				return &domain.Coupon{ID: uuid.New(), TenantID: p.TenantID, DiscountCode: p.DiscountCode}, nil
			},
		}
		v1.RegisterDiscountRoutes(api, &mockDataStore{audit: audit}, svc)

		resp := api.PostCtx(ownerCtx(tenantID), "/coupons", map[string]any{
			"tenant_id":       tenantID,
			"discount_code":   "MESKEL25",
			"is_percentage":   true,
			"discount_amount": "25",
		})
		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, []string{"coupon.create"}, audit.actions())
	})

	t.Run("disabled_explicitly", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		svc := &mockPricingService{
			updateCouponFunc: func(_ context.Context, _ pricing.Actor, _ uuid.UUID, p pricing.CouponParams) (*domain.Coupon, error) {
				assert.False(t, p.IsValid)
				return &domain.Coupon{ID: uuid.New(), TenantID: p.TenantID, IsValid: p.IsValid}, nil
			},
		}
		v1.RegisterDiscountRoutes(api, &mockDataStore{}, svc)

		resp := api.PutCtx(ownerCtx(tenantID), "/coupons/"+uuid.NewString(), map[string]any{
			"tenant_id":       tenantID,
			"discount_code":   "MESKEL25",
			"discount_amount": "25",
			"is_valid":        false,
		})
		assert.Equal(t, http.StatusOK, resp.Code)
	})

	t.Run("duplicate_code", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		svc := &mockPricingService{
			createCouponFunc: func(context.Context, pricing.Actor, pricing.CouponParams) (*domain.Coupon, error) {
				return nil, domain.ErrConflict
			},
		}
		v1.RegisterDiscountRoutes(api, &mockDataStore{}, svc)

		resp := api.PostCtx(ownerCtx(tenantID), "/coupons", map[string]any{
			"tenant_id":       tenantID,
			"discount_code":   "MESKEL25",
			"discount_amount": "25",
		})
		assert.Equal(t, http.StatusConflict, resp.Code)
	})
}

// ---------------------------------------------------------------------------
// POST /checkout/quote
// ---------------------------------------------------------------------------

func TestCheckoutQuote(t *testing.T) {
	t.Parallel()

	customer := uuid.New()
	tenantID := uuid.New()

	t.Run("prices_cart", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		svc := &mockPricingService{
			checkoutFunc: func(_ context.Context, p pricing.CheckoutParams) (*pricing.Checkout, error) {
				assert.Equal(t, customer, p.CustomerID)
				assert.Equal(t, tenantID, p.TenantID)
				assert.Equal(t, "MESKEL25", p.CouponCode)
				assert.True(t, p.Commit)
				require.Len(t, p.Lines, 2)
				assert.Equal(t, "tibs", p.Lines[0].ItemID)
				assert.True(t, p.Lines[0].Price.Equal(decimal.RequireFromString("320.00")))
				assert.True(t, p.Lines[1].Price.IsZero())

				return &pricing.Checkout{
					Evaluation: pricing.Evaluation{Amount: decimal.NewFromInt(80), Type: "bogo", DiscountIDs: []uuid.UUID{}},
					Changes:    []pricing.LineChange{{ItemID: "tibs", Quantity: 1, IsNew: false}},
					Lines:      p.Lines,
					Quote: pricing.Breakdown{
						Subtotal: decimal.NewFromInt(320),
						Discount: decimal.NewFromInt(80),
						Total:    decimal.NewFromInt(240),
					},
				}, nil
			},
		}
		v1.RegisterDiscountRoutes(api, &mockDataStore{}, svc)

		resp := api.PostCtx(customerCtx(customer), "/checkout/quote", map[string]any{
			"tenant_id": tenantID,
			"lines": []map[string]any{
				{"item_id": "tibs", "quantity": 1, "price": "320.00"},
				{"item_id": "tibs", "quantity": 0, "price": "0"},
			},
			"coupon_code": "MESKEL25",
			"commit":      true,
		})
		require.Equal(t, http.StatusOK, resp.Code)

		var body struct {
			Quote struct {
				Total decimal.Decimal `json:"total"`
			} `json:"quote"`
			Changes []pricing.LineChange `json:"changes"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.True(t, body.Quote.Total.Equal(decimal.NewFromInt(240)))
		require.Len(t, body.Changes, 1)
		assert.Equal(t, "tibs", body.Changes[0].ItemID)
	})

	t.Run("empty_cart", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterDiscountRoutes(api, &mockDataStore{}, &mockPricingService{})

		resp := api.PostCtx(customerCtx(customer), "/checkout/quote", map[string]any{
			"tenant_id": tenantID,
			"lines":     []map[string]any{},
		})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	})

	t.Run("coupon_used", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		svc := &mockPricingService{
			checkoutFunc: func(context.Context, pricing.CheckoutParams) (*pricing.Checkout, error) {
				return nil, pricing.ErrCouponUnavailable
			},
		}
		v1.RegisterDiscountRoutes(api, &mockDataStore{}, svc)

		resp := api.PostCtx(customerCtx(customer), "/checkout/quote", map[string]any{
			"tenant_id":   tenantID,
			"lines":       []map[string]any{{"item_id": "tibs", "quantity": 1, "price": "320"}},
			"coupon_code": "MESKEL25",
		})
		assert.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Contains(t, resp.Body.String(), "Coupon is invalid")
	})

	t.Run("unauthenticated", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterDiscountRoutes(api, &mockDataStore{}, &mockPricingService{})

		resp := api.Post("/checkout/quote", map[string]any{
			"tenant_id": tenantID,
			"lines":     []map[string]any{{"item_id": "tibs", "quantity": 1, "price": "320"}},
		})
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})
}
