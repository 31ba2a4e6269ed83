package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minmin-app/minmin/internal/domain"
)

type DiscountRepo struct {
	pool *pgxpool.Pool
}

func NewDiscountRepo(pool *pgxpool.Pool) *DiscountRepo {
	return &DiscountRepo{pool: pool}
}

const discountSelect = `SELECT d.id, d.tenant_id, d.is_global,
	COALESCE((SELECT array_agg(db.branch_id::text) FROM discount_branches db WHERE db.discount_id = d.id), '{}'),
	d.name, d.description, d.type, d.off_peak_hours, d.priority, d.is_stackable, d.coupon_id,
	d.valid_from, d.valid_until, d.created_at, d.updated_at
	FROM discounts d`

func scanDiscount(row pgx.Row) (*domain.Discount, error) {
	var d domain.Discount
	var branchIDs []string
	var typ string

	if err := row.Scan(
		&d.ID, &d.TenantID, &d.IsGlobal, &branchIDs,
		&d.Name, &d.Description, &typ, &d.OffPeakHours, &d.Priority, &d.IsStackable, &d.CouponID,
		&d.ValidFrom, &d.ValidUntil, &d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return nil, err
	}

	d.Type = domain.DiscountType(typ)
	d.BranchIDs = make([]uuid.UUID, 0, len(branchIDs))
	for _, s := range branchIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("branch id %q: %w", s, err)
		}
		d.BranchIDs = append(d.BranchIDs, id)
	}
	d.Rules = []*domain.DiscountRule{}

	return &d, nil
}

func setDiscountBranches(ctx context.Context, tx pgx.Tx, d *domain.Discount) error {
	if _, err := tx.Exec(ctx, `DELETE FROM discount_branches WHERE discount_id = $1`, d.ID); err != nil {
		return err
	}
	if d.IsGlobal {
		return nil
	}
	for _, branchID := range d.BranchIDs {
		tag, err := tx.Exec(ctx,
			`INSERT INTO discount_branches (discount_id, branch_id)
			 SELECT $1, id FROM branches WHERE id = $2 AND tenant_id = $3
			 ON CONFLICT DO NOTHING`,
			d.ID, branchID, d.TenantID,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("branch %s: %w", branchID, domain.ErrNotFound)
		}
	}
	return nil
}

func (r *DiscountRepo) CreateDiscount(ctx context.Context, d *domain.Discount) error {
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO discounts (id, tenant_id, is_global, name, description, type, off_peak_hours,
			                        priority, is_stackable, coupon_id, valid_from, valid_until, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			d.ID, d.TenantID, d.IsGlobal, d.Name, d.Description, string(d.Type), d.OffPeakHours,
			d.Priority, d.IsStackable, d.CouponID, d.ValidFrom, d.ValidUntil, d.CreatedAt, d.UpdatedAt,
		); err != nil {
			return notFoundOnFK(err)
		}
		return setDiscountBranches(ctx, tx, d)
	})
	if err != nil {
		return fmt.Errorf("discountRepo.CreateDiscount: %w", err)
	}

	return nil
}

func (r *DiscountRepo) GetDiscount(ctx context.Context, id uuid.UUID) (*domain.Discount, error) {
	d, err := scanDiscount(r.pool.QueryRow(ctx, discountSelect+` WHERE d.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("discountRepo.GetDiscount: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("discountRepo.GetDiscount: %w", err)
	}

	if err := r.attachRules(ctx, []*domain.Discount{d}); err != nil {
		return nil, fmt.Errorf("discountRepo.GetDiscount: %w", err)
	}
	return d, nil
}

func (r *DiscountRepo) ListDiscounts(ctx context.Context, tenantID uuid.UUID) ([]*domain.Discount, error) {
	out, err := r.listDiscounts(ctx, discountSelect+` WHERE d.tenant_id = $1 ORDER BY d.priority DESC, d.created_at`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("discountRepo.ListDiscounts: %w", err)
	}
	return out, nil
}

func (r *DiscountRepo) ListActiveDiscounts(ctx context.Context, tenantID *uuid.UUID, now time.Time) ([]*domain.Discount, error) {
	out, err := r.listDiscounts(ctx, discountSelect+`
		WHERE ($1::uuid IS NULL OR d.tenant_id = $1)
		  AND d.valid_from <= $2 AND (d.valid_until IS NULL OR d.valid_until >= $2)
		ORDER BY d.priority DESC, d.created_at`, tenantID, now)
	if err != nil {
		return nil, fmt.Errorf("discountRepo.ListActiveDiscounts: %w", err)
	}
	return out, nil
}

func (r *DiscountRepo) listDiscounts(ctx context.Context, query string, args ...any) ([]*domain.Discount, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.Discount{}
	for rows.Next() {
		d, err := scanDiscount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	rows.Close()

	if err := r.attachRules(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

const ruleColumns = `id, tenant_id, discount_id, min_items, min_price::text, applicable_items, excluded_items,
	combo_size, buy_quantity, get_quantity, is_percentage, max_discount_amount::text, created_at`

func scanRule(row pgx.Row) (*domain.DiscountRule, error) {
	var rule domain.DiscountRule
	var minPrice *string
	var maxAmount string

	if err := row.Scan(
		&rule.ID, &rule.TenantID, &rule.DiscountID, &rule.MinItems, &minPrice,
		&rule.ApplicableItems, &rule.ExcludedItems,
		&rule.ComboSize, &rule.BuyQuantity, &rule.GetQuantity, &rule.IsPercentage, &maxAmount, &rule.CreatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if rule.MinPrice, err = parseDecimalPtr(minPrice); err != nil {
		return nil, fmt.Errorf("min_price: %w", err)
	}
	if rule.MaxDiscountAmount, err = parseDecimal(maxAmount); err != nil {
		return nil, fmt.Errorf("max_discount_amount: %w", err)
	}
	if rule.ApplicableItems == nil {
		rule.ApplicableItems = []string{}
	}
	if rule.ExcludedItems == nil {
		rule.ExcludedItems = []string{}
	}

	return &rule, nil
}

func (r *DiscountRepo) attachRules(ctx context.Context, discounts []*domain.Discount) error {
	if len(discounts) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*domain.Discount, len(discounts))
	ids := make([]string, 0, len(discounts))
	for _, d := range discounts {
		byID[d.ID] = d
		ids = append(ids, d.ID.String())
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+ruleColumns+` FROM discount_rules
		 WHERE discount_id IN (SELECT unnest($1::text[])::uuid)
		 ORDER BY created_at`, ids)
	if err != nil {
		return fmt.Errorf("rules: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return fmt.Errorf("rules: scan: %w", err)
		}
		d := byID[rule.DiscountID]
		d.Rules = append(d.Rules, rule)
	}
	return rows.Err()
}

func (r *DiscountRepo) UpdateDiscount(ctx context.Context, d *domain.Discount) error {
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE discounts SET is_global = $2, name = $3, description = $4, type = $5, off_peak_hours = $6,
			        priority = $7, is_stackable = $8, coupon_id = $9, valid_from = $10, valid_until = $11,
			        updated_at = $12
			 WHERE id = $1`,
			d.ID, d.IsGlobal, d.Name, d.Description, string(d.Type), d.OffPeakHours,
			d.Priority, d.IsStackable, d.CouponID, d.ValidFrom, d.ValidUntil, d.UpdatedAt,
		)
		if err != nil {
			return notFoundOnFK(err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		return setDiscountBranches(ctx, tx, d)
	})
	if err != nil {
		return fmt.Errorf("discountRepo.UpdateDiscount: %w", err)
	}

	return nil
}

func (r *DiscountRepo) DeleteDiscount(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM discounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("discountRepo.DeleteDiscount: %w", mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("discountRepo.DeleteDiscount: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *DiscountRepo) CreateRule(ctx context.Context, rule *domain.DiscountRule) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO discount_rules (id, tenant_id, discount_id, min_items, min_price, applicable_items, excluded_items,
		                             combo_size, buy_quantity, get_quantity, is_percentage, max_discount_amount, created_at)
		 VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10, $11, $12::numeric, $13)`,
		rule.ID, rule.TenantID, rule.DiscountID, rule.MinItems, decimalArg(rule.MinPrice),
		nonNil(rule.ApplicableItems), nonNil(rule.ExcludedItems),
		rule.ComboSize, rule.BuyQuantity, rule.GetQuantity, rule.IsPercentage,
		rule.MaxDiscountAmount.String(), rule.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("discountRepo.CreateRule: %w", notFoundOnFK(err))
	}

	return nil
}

func (r *DiscountRepo) GetRule(ctx context.Context, id uuid.UUID) (*domain.DiscountRule, error) {
	rule, err := scanRule(r.pool.QueryRow(ctx, `SELECT `+ruleColumns+` FROM discount_rules WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("discountRepo.GetRule: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("discountRepo.GetRule: %w", err)
	}

	return rule, nil
}

func (r *DiscountRepo) UpdateRule(ctx context.Context, rule *domain.DiscountRule) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE discount_rules SET discount_id = $2, min_items = $3, min_price = $4::numeric,
		        applicable_items = $5, excluded_items = $6, combo_size = $7, buy_quantity = $8,
		        get_quantity = $9, is_percentage = $10, max_discount_amount = $11::numeric
		 WHERE id = $1`,
		rule.ID, rule.DiscountID, rule.MinItems, decimalArg(rule.MinPrice),
		nonNil(rule.ApplicableItems), nonNil(rule.ExcludedItems),
		rule.ComboSize, rule.BuyQuantity, rule.GetQuantity, rule.IsPercentage,
		rule.MaxDiscountAmount.String(),
	)
	if err != nil {
		return fmt.Errorf("discountRepo.UpdateRule: %w", notFoundOnFK(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("discountRepo.UpdateRule: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *DiscountRepo) DeleteRule(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM discount_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("discountRepo.DeleteRule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("discountRepo.DeleteRule: %w", domain.ErrNotFound)
	}

	return nil
}

const couponColumns = `id, tenant_id, discount_code, is_percentage, discount_amount::text,
	is_valid, valid_from, valid_until, created_at`

func scanCoupon(row pgx.Row) (*domain.Coupon, error) {
	var c domain.Coupon
	var amount string

	if err := row.Scan(
		&c.ID, &c.TenantID, &c.DiscountCode, &c.IsPercentage, &amount,
		&c.IsValid, &c.ValidFrom, &c.ValidUntil, &c.CreatedAt,
	); err != nil {
		return nil, err
	}

	d, err := parseDecimal(amount)
	if err != nil {
		return nil, fmt.Errorf("discount_amount: %w", err)
	}
	c.DiscountAmount = d

	return &c, nil
}

func (r *DiscountRepo) CreateCoupon(ctx context.Context, c *domain.Coupon) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO coupons (id, tenant_id, discount_code, is_percentage, discount_amount, is_valid,
		                      valid_from, valid_until, created_at)
		 VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9)`,
		c.ID, c.TenantID, c.DiscountCode, c.IsPercentage, c.DiscountAmount.String(), c.IsValid,
		c.ValidFrom, c.ValidUntil, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("discountRepo.CreateCoupon: %w", mapErr(err))
	}

	return nil
}

func (r *DiscountRepo) getCoupon(ctx context.Context, where string, args ...any) (*domain.Coupon, error) {
	c, err := scanCoupon(r.pool.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE `+where, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return c, err
}

func (r *DiscountRepo) GetCoupon(ctx context.Context, id uuid.UUID) (*domain.Coupon, error) {
	c, err := r.getCoupon(ctx, `id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("discountRepo.GetCoupon: %w", err)
	}
	return c, nil
}

// GetCouponByCode matches codes case-insensitively within the tenant.
func (r *DiscountRepo) GetCouponByCode(ctx context.Context, tenantID uuid.UUID, code string) (*domain.Coupon, error) {
	c, err := r.getCoupon(ctx, `tenant_id = $1 AND upper(discount_code) = $2`, tenantID, strings.ToUpper(code))
	if err != nil {
		return nil, fmt.Errorf("discountRepo.GetCouponByCode: %w", err)
	}
	return c, nil
}

func (r *DiscountRepo) ListCoupons(ctx context.Context, tenantID uuid.UUID) ([]*domain.Coupon, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE tenant_id = $1 ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("discountRepo.ListCoupons: %w", err)
	}
	defer rows.Close()

	out := []*domain.Coupon{}
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("discountRepo.ListCoupons: scan: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("discountRepo.ListCoupons: rows: %w", err)
	}

	return out, nil
}

func (r *DiscountRepo) UpdateCoupon(ctx context.Context, c *domain.Coupon) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE coupons SET discount_code = $2, is_percentage = $3, discount_amount = $4::numeric,
		        is_valid = $5, valid_from = $6, valid_until = $7
		 WHERE id = $1`,
		c.ID, c.DiscountCode, c.IsPercentage, c.DiscountAmount.String(), c.IsValid, c.ValidFrom, c.ValidUntil,
	)
	if err != nil {
		return fmt.Errorf("discountRepo.UpdateCoupon: %w", mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("discountRepo.UpdateCoupon: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *DiscountRepo) DeleteCoupon(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM coupons WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("discountRepo.DeleteCoupon: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("discountRepo.DeleteCoupon: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *DiscountRepo) RecordCouponUsage(ctx context.Context, couponID, customerID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO coupon_usages (coupon_id, customer_id) VALUES ($1, $2)`, couponID, customerID)
	if err != nil {
		return fmt.Errorf("discountRepo.RecordCouponUsage: %w", mapErr(err))
	}

	return nil
}

func (r *DiscountRepo) HasUsedCoupon(ctx context.Context, couponID, customerID uuid.UUID) (bool, error) {
	var used bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM coupon_usages WHERE coupon_id = $1 AND customer_id = $2)`,
		couponID, customerID,
	).Scan(&used)
	if err != nil {
		return false, fmt.Errorf("discountRepo.HasUsedCoupon: %w", err)
	}

	return used, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
