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

type PushNotificationRepo struct {
	pool *pgxpool.Pool
}

func NewPushNotificationRepo(pool *pgxpool.Pool) *PushNotificationRepo {
	return &PushNotificationRepo{pool: pool}
}

func (r *PushNotificationRepo) Create(ctx context.Context, n *domain.PushNotification) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO push_notifications (id, tenant_id, title, message, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		n.ID, n.TenantID, n.Title, n.Message, n.CreatedAt, n.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("pushNotificationRepo.Create: %w", mapErr(err))
	}

	return nil
}

func (r *PushNotificationRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*domain.PushNotification, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, tenant_id, title, message, created_at, updated_at
		 FROM push_notifications WHERE tenant_id = $1
		 ORDER BY created_at DESC`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("pushNotificationRepo.ListByTenant: %w", err)
	}
	defer rows.Close()

	out := []*domain.PushNotification{}
	for rows.Next() {
		var n domain.PushNotification
		if err := rows.Scan(&n.ID, &n.TenantID, &n.Title, &n.Message, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("pushNotificationRepo.ListByTenant: scan: %w", err)
		}
		out = append(out, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pushNotificationRepo.ListByTenant: rows: %w", err)
	}

	return out, nil
}

const inboxColumns = `id, customer_id, message, notification_type, is_read, created_at, updated_at`

// InboxRepo stores per-customer in-app notifications.
type InboxRepo struct {
	pool *pgxpool.Pool
}

func NewInboxRepo(pool *pgxpool.Pool) *InboxRepo {
	return &InboxRepo{pool: pool}
}

func scanInbox(row pgx.Row) (*domain.Notification, error) {
	var n domain.Notification
	if err := row.Scan(&n.ID, &n.CustomerID, &n.Message, &n.Type, &n.IsRead, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *InboxRepo) CreateForCustomers(ctx context.Context, customerIDs []uuid.UUID, message string, t domain.NotificationType, at time.Time) (int64, error) {
	if !t.Valid() {
		return 0, fmt.Errorf("inboxRepo.CreateForCustomers: type %q: %w", t, domain.ErrInvalidInput)
	}
	if len(customerIDs) == 0 {
		return 0, nil
	}
	ids := make([]string, len(customerIDs))
	for i, id := range customerIDs {
		ids[i] = id.String()
	}

	tag, err := r.pool.Exec(ctx,
		`INSERT INTO notifications (id, customer_id, message, notification_type, is_read, created_at, updated_at)
		 SELECT gen_random_uuid(), c::uuid, $2, $3, false, $4, $4
		 FROM unnest($1::text[]) AS c`,
		ids, message, string(t), at,
	)
	if err != nil {
		return 0, fmt.Errorf("inboxRepo.CreateForCustomers: %w", mapErr(err))
	}

	return tag.RowsAffected(), nil
}

func (r *InboxRepo) List(ctx context.Context, customerID *uuid.UUID, limit, offset int) ([]*domain.Notification, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+inboxColumns+` FROM notifications
		 WHERE ($1::uuid IS NULL OR customer_id = $1)
		 ORDER BY created_at DESC, id
		 LIMIT $2 OFFSET $3`,
		customerID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("inboxRepo.List: %w", err)
	}
	defer rows.Close()

	out := []*domain.Notification{}
	for rows.Next() {
		n, err := scanInbox(rows)
		if err != nil {
			return nil, fmt.Errorf("inboxRepo.List: scan: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("inboxRepo.List: rows: %w", err)
	}

	return out, nil
}

func (r *InboxRepo) UnreadCount(ctx context.Context, customerID *uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM notifications WHERE NOT is_read AND ($1::uuid IS NULL OR customer_id = $1)`,
		customerID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("inboxRepo.UnreadCount: %w", err)
	}
	return n, nil
}

func (r *InboxRepo) MarkRead(ctx context.Context, id uuid.UUID, customerID *uuid.UUID) (*domain.Notification, error) {
	n, err := scanInbox(r.pool.QueryRow(ctx,
		`UPDATE notifications SET is_read = true, updated_at = now()
		 WHERE id = $1 AND ($2::uuid IS NULL OR customer_id = $2)
		 RETURNING `+inboxColumns,
		id, customerID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("inboxRepo.MarkRead: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("inboxRepo.MarkRead: %w", err)
	}
	return n, nil
}
