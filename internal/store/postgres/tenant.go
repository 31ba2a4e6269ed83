package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minmin-app/minmin/internal/domain"
)

type TenantRepo struct {
	pool     *pgxpool.Pool
	branches *BranchRepo
}

func NewTenantRepo(pool *pgxpool.Pool, branches *BranchRepo) *TenantRepo {
	return &TenantRepo{pool: pool, branches: branches}
}

const tenantColumns = `id, image, restaurant_name, profile, chapa_api_key, chapa_public_key,
	tax::text, service_charge::text, max_discount_limit::text, admin_id, created_at, updated_at`

func scanTenant(row pgx.Row) (*domain.Tenant, error) {
	var t domain.Tenant
	var image *string
	var tax, service, maxDiscount string

	if err := row.Scan(
		&t.ID, &image, &t.RestaurantName, &t.Profile, &t.ChapaAPIKey, &t.ChapaPublicKey,
		&tax, &service, &maxDiscount, &t.AdminID, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	t.Image = derefStr(image)
	if t.Tax, err = parseDecimal(tax); err != nil {
		return nil, fmt.Errorf("tax: %w", err)
	}
	if t.ServiceCharge, err = parseDecimal(service); err != nil {
		return nil, fmt.Errorf("service_charge: %w", err)
	}
	if t.MaxDiscountLimit, err = parseDecimal(maxDiscount); err != nil {
		return nil, fmt.Errorf("max_discount_limit: %w", err)
	}

	return &t, nil
}

// CreateWithAdmin inserts the tenant and turns adminID into its restaurant owner.
func (r *TenantRepo) CreateWithAdmin(ctx context.Context, t *domain.Tenant, adminID uuid.UUID) error {
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO tenants (id, image, restaurant_name, profile, chapa_api_key, chapa_public_key,
			                      tax, service_charge, max_discount_limit, admin_id, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9::numeric, $10, $11, $12)`,
			t.ID, nilIfEmpty(t.Image), t.RestaurantName, t.Profile, t.ChapaAPIKey, t.ChapaPublicKey,
			t.Tax.String(), t.ServiceCharge.String(), t.MaxDiscountLimit.String(), adminID, t.CreatedAt, t.UpdatedAt,
		); err != nil {
			return mapErr(err)
		}

		tag, err := tx.Exec(ctx,
			`UPDATE users SET user_type = 'restaurant', tenant_id = $1, is_staff = TRUE, updated_at = now()
			 WHERE id = $2`,
			t.ID, adminID,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tenantRepo.CreateWithAdmin: %w", err)
	}

	t.AdminID = &adminID
	return nil
}

func (r *TenantRepo) getOne(ctx context.Context, caller, where string, arg any) (*domain.Tenant, error) {
	t, err := scanTenant(r.pool.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE `+where, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", caller, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", caller, err)
	}

	t.Branches, err = r.branches.ListByTenant(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", caller, err)
	}
	return t, nil
}

// GetByID loads the tenant with its branches.
func (r *TenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	return r.getOne(ctx, "tenantRepo.GetByID", "id = $1", id)
}

func (r *TenantRepo) GetByAdmin(ctx context.Context, adminID uuid.UUID) (*domain.Tenant, error) {
	return r.getOne(ctx, "tenantRepo.GetByAdmin", "admin_id = $1", adminID)
}

// List loads every tenant with its branches, newest first.
func (r *TenantRepo) List(ctx context.Context) ([]*domain.Tenant, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+tenantColumns+` FROM tenants ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("tenantRepo.List: %w", err)
	}
	defer rows.Close()

	tenants := []*domain.Tenant{}
	byID := map[uuid.UUID]*domain.Tenant{}
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("tenantRepo.List: scan: %w", err)
		}
		t.Branches = []*domain.Branch{}
		tenants = append(tenants, t)
		byID[t.ID] = t
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tenantRepo.List: rows: %w", err)
	}

	branches, err := r.branches.listWhere(ctx, "TRUE")
	if err != nil {
		return nil, fmt.Errorf("tenantRepo.List: %w", err)
	}
	for _, b := range branches {
		if t, ok := byID[b.TenantID]; ok {
			t.Branches = append(t.Branches, b)
		}
	}

	return tenants, nil
}

func (r *TenantRepo) Update(ctx context.Context, t *domain.Tenant) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tenants SET image = $1, restaurant_name = $2, profile = $3, chapa_api_key = $4,
		        chapa_public_key = $5, tax = $6::numeric, service_charge = $7::numeric,
		        max_discount_limit = $8::numeric, updated_at = now()
		 WHERE id = $9`,
		nilIfEmpty(t.Image), t.RestaurantName, t.Profile, t.ChapaAPIKey,
		t.ChapaPublicKey, t.Tax.String(), t.ServiceCharge.String(),
		t.MaxDiscountLimit.String(), t.ID,
	)
	if err != nil {
		return fmt.Errorf("tenantRepo.Update: %w", mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tenantRepo.Update: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *TenantRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tenants WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("tenantRepo.Delete: %w", mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tenantRepo.Delete: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *TenantRepo) CountBranches(ctx context.Context, id uuid.UUID) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM branches WHERE tenant_id = $1`, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("tenantRepo.CountBranches: %w", err)
	}
	return n, nil
}
