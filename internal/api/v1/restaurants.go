package v1

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/minmin-app/minmin/internal/domain"
	"github.com/minmin-app/minmin/internal/server/middleware"
)

type TenantFields struct {
	Image            *string `json:"image,omitempty" maxLength:"1024" doc:"Logo URL"`
	RestaurantName   *string `json:"restaurant_name,omitempty" minLength:"1" maxLength:"255" doc:"Restaurant name"`
	Profile          *string `json:"profile,omitempty" maxLength:"5000" doc:"Public profile text"`
	ChapaAPIKey      *string `json:"chapa_api_key,omitempty" maxLength:"255"`
	ChapaPublicKey   *string `json:"chapa_public_key,omitempty" maxLength:"255"`
	Tax              *string `json:"tax,omitempty" pattern:"^[0-9]+(\\.[0-9]+)?$" doc:"Tax percentage"`
	ServiceCharge    *string `json:"service_charge,omitempty" pattern:"^[0-9]+(\\.[0-9]+)?$" doc:"Service charge percentage"`
	MaxDiscountLimit *string `json:"max_discount_limit,omitempty" pattern:"^[0-9]+(\\.[0-9]+)?$" doc:"Cap on automatic discounts, 0 for none"`
}

// apply copies the set fields onto t.
func (f TenantFields) apply(t *domain.Tenant) error {
	if f.Image != nil {
		t.Image = *f.Image
	}
	if f.RestaurantName != nil {
		t.RestaurantName = strings.TrimSpace(*f.RestaurantName)
	}
	if f.Profile != nil {
		t.Profile = *f.Profile
	}
	if f.ChapaAPIKey != nil {
		t.ChapaAPIKey = f.ChapaAPIKey
	}
	if f.ChapaPublicKey != nil {
		t.ChapaPublicKey = f.ChapaPublicKey
	}
	for _, m := range []struct {
		raw *string
		dst *decimal.Decimal
	}{
		{f.Tax, &t.Tax},
		{f.ServiceCharge, &t.ServiceCharge},
		{f.MaxDiscountLimit, &t.MaxDiscountLimit},
	} {
		if m.raw == nil {
			continue
		}
		d, err := decimal.NewFromString(*m.raw)
		if err != nil || d.IsNegative() {
			return huma.Error400BadRequest("amounts must be non-negative decimals")
		}
		*m.dst = d
	}
	return nil
}

type CreateTenantInput struct {
	Body struct {
		AdminID uuid.UUID `json:"admin_id" doc:"User that will own the restaurant"`
		TenantFields
	}
}

type TenantOutput struct {
	Body *domain.Tenant
}

type ListTenantsOutput struct {
	Body []*domain.Tenant
}

type TenantIDInput struct {
	ID uuid.UUID `path:"id" doc:"Tenant ID"`
}

type UpdateTenantInput struct {
	ID   uuid.UUID `path:"id" doc:"Tenant ID"`
	Body TenantFields
}

type BranchFields struct {
	Address   *string          `json:"address,omitempty" minLength:"1" maxLength:"500" doc:"Street address"`
	Location  *domain.GeoPoint `json:"location,omitempty" doc:"WGS84 coordinates"`
	IsDefault *bool            `json:"is_default,omitempty" doc:"Default branch of the restaurant"`
}

type CreateBranchInput struct {
	Body struct {
		TenantID uuid.UUID `json:"tenant_id" doc:"Owning tenant"`
		BranchFields
	}
}

type BranchOutput struct {
	Body *domain.Branch
}

type ListBranchesInput struct {
	TenantID uuid.UUID `path:"tenantId" doc:"Tenant ID"`
}

type ListBranchesOutput struct {
	Body []*domain.Branch
}

type BranchIDInput struct {
	ID uuid.UUID `path:"id" doc:"Branch ID"`
}

type UpdateBranchInput struct {
	ID   uuid.UUID `path:"id" doc:"Branch ID"`
	Body BranchFields
}

// canView reports whether p may read tenantID. Staff only see their own.
func canView(p middleware.Principal, tenantID uuid.UUID) bool {
	if p.UserType.IsStaff() {
		return p.TenantID != nil && *p.TenantID == tenantID
	}
	return true
}

// canOwn reports whether p may change the restaurant itself: admins, or the
// restaurant owner.
func canOwn(p middleware.Principal, tenantID uuid.UUID) bool {
	return p.IsAdmin() || (p.UserType == domain.UserTypeRestaurant && p.ManagesTenant(tenantID))
}

func loadTenant(ctx context.Context, store DataStore, id uuid.UUID) (*domain.Tenant, error) {
	t, err := store.Tenants().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, huma.Error404NotFound("Tenant not found")
		}
		return nil, huma.Error500InternalServerError("failed to get tenant", err)
	}
	return t, nil
}

func loadBranch(ctx context.Context, store DataStore, id uuid.UUID) (*domain.Branch, error) {
	b, err := store.Branches().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, huma.Error404NotFound("Branch not found")
		}
		return nil, huma.Error500InternalServerError("failed to get branch", err)
	}
	return b, nil
}

func RegisterRestaurantRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "create-tenant",
		Method:      http.MethodPost,
		Path:        "/restaurants/tenants",
		Summary:     "Register a restaurant",
		Tags:        []string{"Restaurants"},
	}, func(ctx context.Context, input *CreateTenantInput) (*TenantOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		if !p.IsAdmin() {
			return nil, huma.Error403Forbidden("Only administrators can create tenants.")
		}

		admin, err := store.Users().GetByID(ctx, input.Body.AdminID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("Admin user not found")
			}
			return nil, huma.Error500InternalServerError("failed to get admin user", err)
		}
		if admin.TenantID != nil {
			return nil, huma.Error400BadRequest("User already manages another tenant.")
		}
		if _, err := store.Tenants().GetByAdmin(ctx, admin.ID); err == nil {
			return nil, huma.Error400BadRequest("User already manages another tenant.")
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, huma.Error500InternalServerError("failed to check admin tenant", err)
		}

		now := time.Now()
		t := &domain.Tenant{
			ID:               uuid.New(),
			Tax:              decimal.Zero,
			ServiceCharge:    decimal.Zero,
			MaxDiscountLimit: decimal.Zero,
			Branches:         []*domain.Branch{},
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := input.Body.apply(t); err != nil {
			return nil, err
		}
		if t.RestaurantName == "" {
			return nil, huma.Error400BadRequest("restaurant_name is required")
		}

		if err := store.Tenants().CreateWithAdmin(ctx, t, admin.ID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("Admin user not found")
			}
			if errors.Is(err, domain.ErrConflict) {
				return nil, huma.Error400BadRequest("User already manages another tenant.")
			}
			return nil, huma.Error500InternalServerError("failed to create tenant", err)
		}

		recordAudit(ctx, store, p, &t.ID, "tenant.create", "tenant", t.ID, map[string]any{"admin_id": admin.ID.String()})
		return &TenantOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tenants",
		Method:      http.MethodGet,
		Path:        "/restaurants/tenants",
		Summary:     "List restaurants visible to the caller",
		Tags:        []string{"Restaurants"},
	}, func(ctx context.Context, _ *struct{}) (*ListTenantsOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}

		if p.UserType.IsStaff() {
			if p.TenantID == nil {
				return &ListTenantsOutput{Body: []*domain.Tenant{}}, nil
			}
			t, err := store.Tenants().GetByID(ctx, *p.TenantID)
			if errors.Is(err, domain.ErrNotFound) {
				return &ListTenantsOutput{Body: []*domain.Tenant{}}, nil
			}
			if err != nil {
				return nil, huma.Error500InternalServerError("failed to list tenants", err)
			}
			return &ListTenantsOutput{Body: []*domain.Tenant{t}}, nil
		}

		tenants, err := store.Tenants().List(ctx)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list tenants", err)
		}
		return &ListTenantsOutput{Body: tenants}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-tenant",
		Method:      http.MethodGet,
		Path:        "/restaurants/tenants/{id}",
		Summary:     "Get a restaurant with its branches",
		Tags:        []string{"Restaurants"},
	}, func(ctx context.Context, input *TenantIDInput) (*TenantOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		t, err := loadTenant(ctx, store, input.ID)
		if err != nil {
			return nil, err
		}
		if !canView(p, t.ID) {
			return nil, huma.Error403Forbidden("You do not have access to this tenant.")
		}
		return &TenantOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-tenant",
		Method:      http.MethodPut,
		Path:        "/restaurants/tenants/{id}",
		Summary:     "Update a restaurant",
		Tags:        []string{"Restaurants"},
	}, func(ctx context.Context, input *UpdateTenantInput) (*TenantOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		t, err := loadTenant(ctx, store, input.ID)
		if err != nil {
			return nil, err
		}
		if !canOwn(p, t.ID) {
			return nil, huma.Error403Forbidden("You do not have access to this tenant.")
		}

		if err := input.Body.apply(t); err != nil {
			return nil, err
		}
		t.UpdatedAt = time.Now()
		if err := store.Tenants().Update(ctx, t); err != nil {
			return nil, huma.Error500InternalServerError("failed to update tenant", err)
		}

		recordAudit(ctx, store, p, &t.ID, "tenant.update", "tenant", t.ID, nil)
		return &TenantOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-tenant",
		Method:      http.MethodDelete,
		Path:        "/restaurants/tenants/{id}",
		Summary:     "Delete a restaurant without branches",
		Tags:        []string{"Restaurants"},
	}, func(ctx context.Context, input *TenantIDInput) (*struct{}, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		t, err := loadTenant(ctx, store, input.ID)
		if err != nil {
			return nil, err
		}
		if !canOwn(p, t.ID) {
			return nil, huma.Error403Forbidden("You do not have access to this tenant.")
		}

		n, err := store.Tenants().CountBranches(ctx, t.ID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to count branches", err)
		}
		if n > 0 {
			return nil, huma.Error400BadRequest("This tenant cannot be deleted because it has related branches.")
		}

		if err := store.Tenants().Delete(ctx, t.ID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("Tenant not found")
			}
			if errors.Is(err, domain.ErrConflict) {
				return nil, huma.Error400BadRequest("This tenant cannot be deleted because it has related branches.")
			}
			return nil, huma.Error500InternalServerError("failed to delete tenant", err)
		}

		recordAudit(ctx, store, p, nil, "tenant.delete", "tenant", t.ID, map[string]any{"restaurant_name": t.RestaurantName})
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-branches",
		Method:      http.MethodGet,
		Path:        "/restaurants/tenants/{tenantId}/branches",
		Summary:     "List the branches of a restaurant",
		Tags:        []string{"Restaurants"},
	}, func(ctx context.Context, input *ListBranchesInput) (*ListBranchesOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		if _, err := loadTenant(ctx, store, input.TenantID); err != nil {
			return nil, err
		}
		if !canView(p, input.TenantID) {
			return nil, huma.Error403Forbidden("You do not have access to this tenant.")
		}

		branches, err := store.Branches().ListByTenant(ctx, input.TenantID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list branches", err)
		}
		return &ListBranchesOutput{Body: branches}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-branch",
		Method:      http.MethodPost,
		Path:        "/restaurants/branches",
		Summary:     "Create a branch",
		Tags:        []string{"Restaurants"},
	}, func(ctx context.Context, input *CreateBranchInput) (*BranchOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		if _, err := loadTenant(ctx, store, input.Body.TenantID); err != nil {
			return nil, err
		}
		if !canOwn(p, input.Body.TenantID) {
			return nil, huma.Error403Forbidden("You do not have access to this tenant.")
		}
		if input.Body.Address == nil {
			return nil, huma.Error400BadRequest("address is required")
		}

		now := time.Now()
		b := &domain.Branch{
			ID:        uuid.New(),
			TenantID:  input.Body.TenantID,
			Address:   strings.TrimSpace(*input.Body.Address),
			Location:  input.Body.Location,
			IsDefault: input.Body.IsDefault != nil && *input.Body.IsDefault,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := store.Branches().Create(ctx, b); err != nil {
			return nil, huma.Error500InternalServerError("failed to create branch", err)
		}

		recordAudit(ctx, store, p, &b.TenantID, "branch.create", "branch", b.ID, nil)
		return &BranchOutput{Body: b}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-branch",
		Method:      http.MethodGet,
		Path:        "/restaurants/branches/{id}",
		Summary:     "Get a branch",
		Tags:        []string{"Restaurants"},
	}, func(ctx context.Context, input *BranchIDInput) (*BranchOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		b, err := loadBranch(ctx, store, input.ID)
		if err != nil {
			return nil, err
		}
		if !canView(p, b.TenantID) {
			return nil, huma.Error403Forbidden("You do not have access to this branch.")
		}
		return &BranchOutput{Body: b}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-branch",
		Method:      http.MethodPut,
		Path:        "/restaurants/branches/{id}",
		Summary:     "Update a branch",
		Tags:        []string{"Restaurants"},
	}, func(ctx context.Context, input *UpdateBranchInput) (*BranchOutput, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		b, err := loadBranch(ctx, store, input.ID)
		if err != nil {
			return nil, err
		}
		ownBranch := p.UserType == domain.UserTypeBranch && p.BranchID != nil && *p.BranchID == b.ID
		if !canOwn(p, b.TenantID) && !ownBranch {
			return nil, huma.Error403Forbidden("You do not have access to this branch.")
		}

		if input.Body.Address != nil {
			b.Address = strings.TrimSpace(*input.Body.Address)
		}
		if input.Body.Location != nil {
			b.Location = input.Body.Location
		}
		if input.Body.IsDefault != nil {
			b.IsDefault = *input.Body.IsDefault
		}
		b.UpdatedAt = time.Now()
		if err := store.Branches().Update(ctx, b); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("Branch not found")
			}
			return nil, huma.Error500InternalServerError("failed to update branch", err)
		}

		recordAudit(ctx, store, p, &b.TenantID, "branch.update", "branch", b.ID, nil)
		return &BranchOutput{Body: b}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-branch",
		Method:      http.MethodDelete,
		Path:        "/restaurants/branches/{id}",
		Summary:     "Delete a branch",
		Tags:        []string{"Restaurants"},
	}, func(ctx context.Context, input *BranchIDInput) (*struct{}, error) {
		p, err := caller(ctx)
		if err != nil {
			return nil, err
		}
		b, err := loadBranch(ctx, store, input.ID)
		if err != nil {
			return nil, err
		}
		if !canOwn(p, b.TenantID) {
			return nil, huma.Error403Forbidden("You do not have access to this branch.")
		}

		if err := store.Branches().Delete(ctx, b.ID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("Branch not found")
			}
			return nil, huma.Error500InternalServerError("failed to delete branch", err)
		}

		recordAudit(ctx, store, p, &b.TenantID, "branch.delete", "branch", b.ID, nil)
		return nil, nil
	})
}
