package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minmin-app/minmin/internal/domain"
)

type LoyaltyRepo struct {
	pool *pgxpool.Pool
}

func NewLoyaltyRepo(pool *pgxpool.Pool) *LoyaltyRepo {
	return &LoyaltyRepo{pool: pool}
}

func (r *LoyaltyRepo) ApplyAdjustment(ctx context.Context, adj domain.PointsAdjustment) (*domain.PointsBalance, error) {
	var bal *domain.PointsBalance
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		bal, err = applyAdjustment(ctx, tx, adj)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("loyaltyRepo.ApplyAdjustment: %w", err)
	}

	return bal, nil
}

// applyAdjustment locks the affected balance row, clamps the new value at
// zero and records the transaction.
func applyAdjustment(ctx context.Context, tx pgx.Tx, adj domain.PointsAdjustment) (*domain.PointsBalance, error) {
	now := time.Now().UTC()
	bal := &domain.PointsBalance{CustomerID: adj.CustomerID}

	if _, err := tx.Exec(ctx,
		`INSERT INTO customer_loyalty (customer_id, global_points, updated_at) VALUES ($1, 0, $2)
		 ON CONFLICT (customer_id) DO NOTHING`,
		adj.CustomerID, now,
	); err != nil {
		return nil, notFoundOnFK(err)
	}

	if err := tx.QueryRow(ctx,
		`SELECT global_points FROM customer_loyalty WHERE customer_id = $1 FOR UPDATE`,
		adj.CustomerID,
	).Scan(&bal.GlobalPoints); err != nil {
		return nil, err
	}

	if adj.TenantID == nil {
		bal.GlobalPoints = max(0, bal.GlobalPoints+adj.Delta)
		if _, err := tx.Exec(ctx,
			`UPDATE customer_loyalty SET global_points = $2, updated_at = $3 WHERE customer_id = $1`,
			adj.CustomerID, bal.GlobalPoints, now,
		); err != nil {
			return nil, err
		}
	} else {
		if _, err := tx.Exec(ctx,
			`INSERT INTO tenant_loyalty (tenant_id, customer_id, points, updated_at) VALUES ($1, $2, 0, $3)
			 ON CONFLICT (tenant_id, customer_id) DO NOTHING`,
			*adj.TenantID, adj.CustomerID, now,
		); err != nil {
			return nil, notFoundOnFK(err)
		}

		var points int
		if err := tx.QueryRow(ctx,
			`SELECT points FROM tenant_loyalty WHERE tenant_id = $1 AND customer_id = $2 FOR UPDATE`,
			*adj.TenantID, adj.CustomerID,
		).Scan(&points); err != nil {
			return nil, err
		}

		points = max(0, points+adj.Delta)
		if _, err := tx.Exec(ctx,
			`UPDATE tenant_loyalty SET points = $3, updated_at = $4 WHERE tenant_id = $1 AND customer_id = $2`,
			*adj.TenantID, adj.CustomerID, points, now,
		); err != nil {
			return nil, err
		}
		bal.TenantPoints = &points
	}

	delta := adj.Delta
	if delta < 0 {
		delta = -delta
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO loyalty_transactions (id, tenant_id, customer_id, points, transaction_type, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New(), adj.TenantID, adj.CustomerID, delta, string(adj.Type), now,
	); err != nil {
		return nil, err
	}

	return bal, nil
}

func notFoundOnFK(err error) error {
	if errors.Is(mapErr(err), domain.ErrConflict) {
		return domain.ErrNotFound
	}
	return err
}

// AwardEvent credits points to the global balance the first time a customer
// triggers event. Later calls are no-ops.
func (r *LoyaltyRepo) AwardEvent(ctx context.Context, customerID uuid.UUID, event string, points int) (bool, error) {
	var awarded bool
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`INSERT INTO loyalty_event_awards (customer_id, event) VALUES ($1, $2)
			 ON CONFLICT (customer_id, event) DO NOTHING`,
			customerID, event,
		)
		if err != nil {
			return notFoundOnFK(err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}

		awarded = true
		_, err = applyAdjustment(ctx, tx, domain.PointsAdjustment{
			CustomerID: customerID,
			Delta:      points,
			Type:       domain.TransactionEarning,
		})
		return err
	})
	if err != nil {
		return false, fmt.Errorf("loyaltyRepo.AwardEvent: %w", err)
	}

	return awarded, nil
}

func (r *LoyaltyRepo) GetCustomerLoyalty(ctx context.Context, customerID uuid.UUID) (*domain.CustomerLoyalty, error) {
	var cl domain.CustomerLoyalty
	err := r.pool.QueryRow(ctx,
		`SELECT customer_id, global_points, updated_at FROM customer_loyalty WHERE customer_id = $1`,
		customerID,
	).Scan(&cl.CustomerID, &cl.GlobalPoints, &cl.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("loyaltyRepo.GetCustomerLoyalty: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loyaltyRepo.GetCustomerLoyalty: %w", err)
	}

	return &cl, nil
}

const tenantBalanceSelect = `SELECT tl.tenant_id, t.name, tl.customer_id, u.email, tl.points
	FROM tenant_loyalty tl
	JOIN tenants t ON t.id = tl.tenant_id
	JOIN users u ON u.id = tl.customer_id`

func (r *LoyaltyRepo) ListTenantBalancesByCustomer(ctx context.Context, customerID uuid.UUID) ([]*domain.TenantLoyalty, error) {
	out, err := r.listBalances(ctx, tenantBalanceSelect+` WHERE tl.customer_id = $1 ORDER BY t.name`, customerID)
	if err != nil {
		return nil, fmt.Errorf("loyaltyRepo.ListTenantBalancesByCustomer: %w", err)
	}
	return out, nil
}

func (r *LoyaltyRepo) ListTenantBalancesByTenant(ctx context.Context, tenantID uuid.UUID) ([]*domain.TenantLoyalty, error) {
	out, err := r.listBalances(ctx, tenantBalanceSelect+` WHERE tl.tenant_id = $1 ORDER BY tl.points DESC, u.email`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("loyaltyRepo.ListTenantBalancesByTenant: %w", err)
	}
	return out, nil
}

func (r *LoyaltyRepo) listBalances(ctx context.Context, query string, arg uuid.UUID) ([]*domain.TenantLoyalty, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.TenantLoyalty{}
	for rows.Next() {
		var tl domain.TenantLoyalty
		if err := rows.Scan(&tl.TenantID, &tl.TenantName, &tl.CustomerID, &tl.CustomerEmail, &tl.Points); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, &tl)
	}
	return out, rows.Err()
}

// GetTenantBalance returns zero when the customer has no balance at the tenant.
func (r *LoyaltyRepo) GetTenantBalance(ctx context.Context, tenantID, customerID uuid.UUID) (int, error) {
	var points int
	err := r.pool.QueryRow(ctx,
		`SELECT points FROM tenant_loyalty WHERE tenant_id = $1 AND customer_id = $2`,
		tenantID, customerID,
	).Scan(&points)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("loyaltyRepo.GetTenantBalance: %w", err)
	}

	return points, nil
}

func (r *LoyaltyRepo) ListTransactions(ctx context.Context, f domain.TransactionFilter, limit, offset int) ([]*domain.LoyaltyTransaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, tenant_id, customer_id, points, transaction_type, created_at
		 FROM loyalty_transactions
		 WHERE ($1::uuid IS NULL OR customer_id = $1) AND ($2::uuid IS NULL OR tenant_id = $2)
		 ORDER BY created_at DESC
		 LIMIT $3 OFFSET $4`,
		f.CustomerID, f.TenantID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("loyaltyRepo.ListTransactions: %w", err)
	}
	defer rows.Close()

	out := []*domain.LoyaltyTransaction{}
	for rows.Next() {
		var tx domain.LoyaltyTransaction
		var typ string
		if err := rows.Scan(&tx.ID, &tx.TenantID, &tx.CustomerID, &tx.Points, &typ, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("loyaltyRepo.ListTransactions: scan: %w", err)
		}
		tx.Type = domain.TransactionType(typ)
		out = append(out, &tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loyaltyRepo.ListTransactions: rows: %w", err)
	}

	return out, nil
}

func (r *LoyaltyRepo) ListGlobalSettings(ctx context.Context) ([]*domain.GlobalLoyaltySetting, error) {
	rows, err := r.pool.Query(ctx, `SELECT event, global_points, updated_at FROM global_loyalty_settings ORDER BY event`)
	if err != nil {
		return nil, fmt.Errorf("loyaltyRepo.ListGlobalSettings: %w", err)
	}
	defer rows.Close()

	out := []*domain.GlobalLoyaltySetting{}
	for rows.Next() {
		var s domain.GlobalLoyaltySetting
		if err := rows.Scan(&s.Event, &s.GlobalPoints, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("loyaltyRepo.ListGlobalSettings: scan: %w", err)
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loyaltyRepo.ListGlobalSettings: rows: %w", err)
	}

	return out, nil
}

func (r *LoyaltyRepo) GetGlobalSetting(ctx context.Context, event string) (*domain.GlobalLoyaltySetting, error) {
	var s domain.GlobalLoyaltySetting
	err := r.pool.QueryRow(ctx,
		`SELECT event, global_points, updated_at FROM global_loyalty_settings WHERE event = $1`, event,
	).Scan(&s.Event, &s.GlobalPoints, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("loyaltyRepo.GetGlobalSetting: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loyaltyRepo.GetGlobalSetting: %w", err)
	}

	return &s, nil
}

func (r *LoyaltyRepo) UpsertGlobalSetting(ctx context.Context, s *domain.GlobalLoyaltySetting) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO global_loyalty_settings (event, global_points, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (event) DO UPDATE SET global_points = EXCLUDED.global_points, updated_at = EXCLUDED.updated_at`,
		s.Event, s.GlobalPoints, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("loyaltyRepo.UpsertGlobalSetting: %w", err)
	}

	return nil
}

func (r *LoyaltyRepo) GetRestaurantSettings(ctx context.Context, tenantID uuid.UUID) (*domain.RestaurantLoyaltySettings, error) {
	var s domain.RestaurantLoyaltySettings
	err := r.pool.QueryRow(ctx,
		`SELECT tenant_id, threshold, updated_at FROM restaurant_loyalty_settings WHERE tenant_id = $1`, tenantID,
	).Scan(&s.TenantID, &s.Threshold, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("loyaltyRepo.GetRestaurantSettings: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loyaltyRepo.GetRestaurantSettings: %w", err)
	}

	return &s, nil
}

func (r *LoyaltyRepo) UpsertRestaurantSettings(ctx context.Context, s *domain.RestaurantLoyaltySettings) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO restaurant_loyalty_settings (tenant_id, threshold, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (tenant_id) DO UPDATE SET threshold = EXCLUDED.threshold, updated_at = EXCLUDED.updated_at`,
		s.TenantID, s.Threshold, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("loyaltyRepo.UpsertRestaurantSettings: %w", notFoundOnFK(err))
	}

	return nil
}

func (r *LoyaltyRepo) GetOrCreateConversionRate(ctx context.Context, tenantID uuid.UUID) (*domain.LoyaltyConversionRate, error) {
	if _, err := r.pool.Exec(ctx,
		`INSERT INTO loyalty_conversion_rates (tenant_id) VALUES ($1) ON CONFLICT (tenant_id) DO NOTHING`, tenantID,
	); err != nil {
		return nil, fmt.Errorf("loyaltyRepo.GetOrCreateConversionRate: %w", notFoundOnFK(err))
	}

	var rate domain.LoyaltyConversionRate
	var raw string
	if err := r.pool.QueryRow(ctx,
		`SELECT tenant_id, global_to_restaurant_rate::text, updated_at FROM loyalty_conversion_rates WHERE tenant_id = $1`,
		tenantID,
	).Scan(&rate.TenantID, &raw, &rate.UpdatedAt); err != nil {
		return nil, fmt.Errorf("loyaltyRepo.GetOrCreateConversionRate: %w", err)
	}

	d, err := parseDecimal(raw)
	if err != nil {
		return nil, fmt.Errorf("loyaltyRepo.GetOrCreateConversionRate: rate: %w", err)
	}
	rate.GlobalToRestaurantRate = d

	return &rate, nil
}

func (r *LoyaltyRepo) UpsertConversionRate(ctx context.Context, rate *domain.LoyaltyConversionRate) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO loyalty_conversion_rates (tenant_id, global_to_restaurant_rate, updated_at) VALUES ($1, $2::numeric, $3)
		 ON CONFLICT (tenant_id) DO UPDATE
		 SET global_to_restaurant_rate = EXCLUDED.global_to_restaurant_rate, updated_at = EXCLUDED.updated_at`,
		rate.TenantID, rate.GlobalToRestaurantRate.String(), rate.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("loyaltyRepo.UpsertConversionRate: %w", notFoundOnFK(err))
	}

	return nil
}
