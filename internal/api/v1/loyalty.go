package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/minmin-app/minmin/internal/domain"
	"github.com/minmin-app/minmin/internal/loyalty"
)

type UpdatePointsInput struct {
	Body struct {
		CustomerID      uuid.UUID  `json:"customer_id" doc:"Customer whose balance changes"`
		TenantID        *uuid.UUID `json:"tenant_id,omitempty" doc:"Restaurant balance to change; omit for the global balance"`
		Points          int        `json:"points" doc:"Signed point change"`
		TransactionType string     `json:"transaction_type" enum:"earning,redemption"`
	}
}

type PointsBalanceOutput struct {
	Body *domain.PointsBalance
}

type CustomerIDInput struct {
	ID uuid.UUID `path:"id" doc:"Customer ID"`
}

type CustomerSummaryOutput struct {
	Body *loyalty.CustomerSummary
}

type LoyaltyTenantInput struct {
	TenantID uuid.UUID `path:"tenantId" doc:"Tenant ID"`
}

type TenantSummaryOutput struct {
	Body *loyalty.TenantSummary
}

type ListTransactionsInput struct {
	CustomerID string `query:"customer_id" doc:"Filter by customer. Staff only see their tenant's transactions; customers only their own."`
	Limit      int    `query:"limit" minimum:"1" maximum:"200" default:"50" doc:"Max results"`
	Offset     int    `query:"offset" minimum:"0" default:"0" doc:"Offset for pagination"`
}

type ListTransactionsOutput struct {
	Body []*domain.LoyaltyTransaction
}

type GlobalSettingsOutput struct {
	Body []*domain.GlobalLoyaltySetting
}

type UpsertGlobalSettingInput struct {
	Body struct {
		Event        string `json:"event" minLength:"1" maxLength:"64" doc:"Event name such as order, payment or profile"`
		GlobalPoints int    `json:"global_points" minimum:"0" doc:"Points awarded once per customer"`
	}
}

type GlobalSettingOutput struct {
	Body *domain.GlobalLoyaltySetting
}

type RestaurantSettingsOutput struct {
	Body *domain.RestaurantLoyaltySettings
}

type SetThresholdInput struct {
	TenantID uuid.UUID `path:"tenantId" doc:"Tenant ID"`
	Body     struct {
		Threshold int `json:"threshold" minimum:"0" doc:"Minimum balance before points can be redeemed"`
	}
}

type ConversionRateOutput struct {
	Body *domain.LoyaltyConversionRate
}

type SetConversionRateInput struct {
	TenantID uuid.UUID `path:"tenantId" doc:"Tenant ID"`
	Body     struct {
		Rate string `json:"global_to_restaurant_rate" pattern:"^[0-9]+(\\.[0-9]+)?$" doc:"Restaurant points per global point"`
	}
}

func loyaltyError(err error, fallback string) error {
	switch {
	case errors.Is(err, loyalty.ErrNotAllowed):
		return huma.Error403Forbidden("You are not allowed to manage loyalty points")
	case errors.Is(err, loyalty.ErrCustomerNotFound):
		return huma.Error404NotFound("User not found")
	case errors.Is(err, loyalty.ErrTenantNotFound):
		return huma.Error404NotFound("Tenant not found")
	}
	if he := badInput(err); he != nil {
		return he
	}
	return huma.Error500InternalServerError(fallback, err)
}

func RegisterLoyaltyRoutes(api huma.API, store DataStore, svc LoyaltyService) {
	huma.Register(api, huma.Operation{
		OperationID: "update-points",
		Method:      http.MethodPost,
		Path:        "/loyalty/points",
		Summary:     "Adjust a customer's loyalty points",
		Description: "Send an Idempotency-Key header to make retries safe.",
		Tags:        []string{"Loyalty"},
	}, func(ctx context.Context, input *UpdatePointsInput) (*PointsBalanceOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}

		bal, err := svc.UpdatePoints(ctx, loyaltyActor(p), loyalty.UpdatePointsParams{
			CustomerID: input.Body.CustomerID,
			TenantID:   input.Body.TenantID,
			Delta:      input.Body.Points,
			Type:       domain.TransactionType(input.Body.TransactionType),
		})
		if err != nil {
			return nil, loyaltyError(err, "failed to update points")
		}

		recordAudit(ctx, store, p, input.Body.TenantID, "loyalty.adjust", "loyalty", input.Body.CustomerID, map[string]any{
			"points":           input.Body.Points,
			"transaction_type": input.Body.TransactionType,
		})
		return &PointsBalanceOutput{Body: bal}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "my-loyalty",
		Method:      http.MethodGet,
		Path:        "/loyalty/customer",
		Summary:     "Loyalty balances of the caller",
		Tags:        []string{"Loyalty"},
	}, func(ctx context.Context, _ *struct{}) (*CustomerSummaryOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		sum, err := svc.CustomerSummary(ctx, p.UserID)
		if err != nil {
			return nil, loyaltyError(err, "failed to load loyalty summary")
		}
		return &CustomerSummaryOutput{Body: sum}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "customer-loyalty",
		Method:      http.MethodGet,
		Path:        "/loyalty/customer/{id}",
		Summary:     "Loyalty balances of a customer",
		Tags:        []string{"Loyalty"},
	}, func(ctx context.Context, input *CustomerIDInput) (*CustomerSummaryOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		if p.UserType == domain.UserTypeCustomer && p.UserID != input.ID {
			return nil, huma.Error403Forbidden("You can only view your own loyalty points.")
		}
		sum, err := svc.CustomerSummary(ctx, input.ID)
		if err != nil {
			return nil, loyaltyError(err, "failed to load loyalty summary")
		}
		return &CustomerSummaryOutput{Body: sum}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "tenant-loyalty",
		Method:      http.MethodGet,
		Path:        "/loyalty/tenant/{tenantId}",
		Summary:     "Customer balances held at a restaurant",
		Tags:        []string{"Loyalty"},
	}, func(ctx context.Context, input *LoyaltyTenantInput) (*TenantSummaryOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		if !p.ManagesTenant(input.TenantID) {
			return nil, huma.Error403Forbidden("You do not have access to this tenant.")
		}
		sum, err := svc.TenantSummary(ctx, input.TenantID)
		if err != nil {
			return nil, loyaltyError(err, "failed to load tenant loyalty")
		}
		return &TenantSummaryOutput{Body: sum}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-loyalty-transactions",
		Method:      http.MethodGet,
		Path:        "/loyalty/transactions",
		Summary:     "List point transactions, newest first",
		Tags:        []string{"Loyalty"},
	}, func(ctx context.Context, input *ListTransactionsInput) (*ListTransactionsOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}

		var customer *uuid.UUID
		if input.CustomerID != "" {
			id, err := uuid.Parse(input.CustomerID)
			if err != nil {
				return nil, huma.Error400BadRequest("customer_id must be a UUID")
			}
			customer = &id
		}

		txs, err := svc.ListTransactions(ctx, loyaltyActor(p), customer, input.Limit, input.Offset)
		if err != nil {
			return nil, loyaltyError(err, "failed to list transactions")
		}
		return &ListTransactionsOutput{Body: txs}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-global-loyalty-settings",
		Method:      http.MethodGet,
		Path:        "/loyalty/settings/global",
		Summary:     "Points awarded per platform event",
		Tags:        []string{"Loyalty"},
	}, func(ctx context.Context, _ *struct{}) (*GlobalSettingsOutput, error) {
		settings, err := svc.ListGlobalSettings(ctx)
		if err != nil {
			return nil, loyaltyError(err, "failed to list settings")
		}
		return &GlobalSettingsOutput{Body: settings}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "upsert-global-loyalty-setting",
		Method:      http.MethodPut,
		Path:        "/loyalty/settings/global",
		Summary:     "Set the points awarded for an event",
		Tags:        []string{"Loyalty"},
	}, func(ctx context.Context, input *UpsertGlobalSettingInput) (*GlobalSettingOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		setting, err := svc.UpsertGlobalSetting(ctx, loyaltyActor(p), loyalty.GlobalSettingParams{
			Event:        input.Body.Event,
			GlobalPoints: input.Body.GlobalPoints,
		})
		if err != nil {
			return nil, loyaltyError(err, "failed to save setting")
		}
		return &GlobalSettingOutput{Body: setting}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-restaurant-loyalty-settings",
		Method:      http.MethodGet,
		Path:        "/loyalty/settings/tenant/{tenantId}",
		Summary:     "Redemption threshold of a restaurant",
		Tags:        []string{"Loyalty"},
	}, func(ctx context.Context, input *LoyaltyTenantInput) (*RestaurantSettingsOutput, error) {
		rs, err := svc.RestaurantSettings(ctx, input.TenantID)
		if err != nil {
			return nil, loyaltyError(err, "failed to load settings")
		}
		return &RestaurantSettingsOutput{Body: rs}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-restaurant-loyalty-threshold",
		Method:      http.MethodPut,
		Path:        "/loyalty/settings/tenant/{tenantId}",
		Summary:     "Set the redemption threshold of a restaurant",
		Tags:        []string{"Loyalty"},
	}, func(ctx context.Context, input *SetThresholdInput) (*RestaurantSettingsOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		rs, err := svc.SetRestaurantThreshold(ctx, loyaltyActor(p), input.TenantID, input.Body.Threshold)
		if err != nil {
			return nil, loyaltyError(err, "failed to save settings")
		}
		recordAudit(ctx, store, p, &input.TenantID, "loyalty.threshold", "tenant", input.TenantID, map[string]any{"threshold": rs.Threshold})
		return &RestaurantSettingsOutput{Body: rs}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-conversion-rate",
		Method:      http.MethodGet,
		Path:        "/loyalty/conversion-rate/{tenantId}",
		Summary:     "Global to restaurant point conversion rate",
		Tags:        []string{"Loyalty"},
	}, func(ctx context.Context, input *LoyaltyTenantInput) (*ConversionRateOutput, error) {
		rate, err := svc.ConversionRate(ctx, input.TenantID)
		if err != nil {
			return nil, loyaltyError(err, "failed to load conversion rate")
		}
		return &ConversionRateOutput{Body: rate}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-conversion-rate",
		Method:      http.MethodPut,
		Path:        "/loyalty/conversion-rate/{tenantId}",
		Summary:     "Set the point conversion rate of a restaurant",
		Tags:        []string{"Loyalty"},
	}, func(ctx context.Context, input *SetConversionRateInput) (*ConversionRateOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		rate, err := decimal.NewFromString(input.Body.Rate)
		if err != nil {
			return nil, huma.Error400BadRequest("global_to_restaurant_rate must be a decimal")
		}
		out, err := svc.SetConversionRate(ctx, loyaltyActor(p), input.TenantID, rate)
		if err != nil {
			return nil, loyaltyError(err, "failed to save conversion rate")
		}
		recordAudit(ctx, store, p, &input.TenantID, "loyalty.conversion_rate", "tenant", input.TenantID, map[string]any{"rate": rate.String()})
		return &ConversionRateOutput{Body: out}, nil
	})
}
