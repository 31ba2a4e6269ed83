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

// FieldCipher encrypts personal data columns. *secrets.Vault satisfies this
// interface.
type FieldCipher interface {
	Seal(plaintext string) (string, error)
	Open(value string) (string, error)
}

type UserRepo struct {
	pool   *pgxpool.Pool
	cipher FieldCipher // nil stores tin_no in clear
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

const userColumns = `id, email, password_hash, full_name, phone, user_type, image, push_token,
	push_token_synced_at, birthday, tenant_id, branch_id, otp_hash, otp_expiry, failed_attempts,
	locked_until, opt_in_promotions, enable_email_notifications, enable_in_app_notifications,
	tin_no, is_staff, is_active, refresh_token_hash, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var phone, image, pushToken, otpHash, tinNo, refreshHash *string

	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &phone, &u.UserType, &image, &pushToken,
		&u.PushTokenSyncedAt, &u.Birthday, &u.TenantID, &u.BranchID, &otpHash, &u.OTPExpiry, &u.FailedAttempts,
		&u.LockedUntil, &u.OptInPromotions, &u.EnableEmailNotifications, &u.EnableInAppNotifications,
		&tinNo, &u.IsStaff, &u.IsActive, &refreshHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.Phone = derefStr(phone)
	u.Image = derefStr(image)
	u.PushToken = derefStr(pushToken)
	u.OTPHash = derefStr(otpHash)
	u.TINNo = derefStr(tinNo)
	u.RefreshTokenHash = derefStr(refreshHash)

	return &u, nil
}

func (r *UserRepo) sealTIN(tin string) (*string, error) {
	if r.cipher == nil {
		return nilIfEmpty(tin), nil
	}
	sealed, err := r.cipher.Seal(tin)
	if err != nil {
		return nil, err
	}
	return nilIfEmpty(sealed), nil
}

func (r *UserRepo) openTIN(u *domain.User) error {
	if r.cipher == nil || u.TINNo == "" {
		return nil
	}
	tin, err := r.cipher.Open(u.TINNo)
	if err != nil {
		return fmt.Errorf("tin_no: %w", err)
	}
	u.TINNo = tin
	return nil
}

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	tin, err := r.sealTIN(u.TINNo)
	if err != nil {
		return fmt.Errorf("userRepo.Create: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)`,
		u.ID, u.Email, u.PasswordHash, u.FullName, nilIfEmpty(u.Phone), u.UserType, nilIfEmpty(u.Image), nilIfEmpty(u.PushToken),
		u.PushTokenSyncedAt, u.Birthday, u.TenantID, u.BranchID, nilIfEmpty(u.OTPHash), u.OTPExpiry, u.FailedAttempts,
		u.LockedUntil, u.OptInPromotions, u.EnableEmailNotifications, u.EnableInAppNotifications,
		tin, u.IsStaff, u.IsActive, nilIfEmpty(u.RefreshTokenHash), u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("userRepo.Create: %w", mapErr(err))
	}

	return nil
}

func (r *UserRepo) getOne(ctx context.Context, caller, where string, arg any) (*domain.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", caller, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", caller, err)
	}
	if err := r.openTIN(u); err != nil {
		return nil, fmt.Errorf("%s: %w", caller, err)
	}
	return u, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.getOne(ctx, "userRepo.GetByID", "id = $1", id)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, "userRepo.GetByEmail", "email = $1", email)
}

func (r *UserRepo) GetByBranch(ctx context.Context, branchID uuid.UUID) (*domain.User, error) {
	return r.getOne(ctx, "userRepo.GetByBranch", "branch_id = $1", branchID)
}

func (r *UserRepo) Update(ctx context.Context, u *domain.User) error {
	tin, err := r.sealTIN(u.TINNo)
	if err != nil {
		return fmt.Errorf("userRepo.Update: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET email = $1, password_hash = $2, full_name = $3, phone = $4, user_type = $5,
		        image = $6, push_token = $7, push_token_synced_at = $8, birthday = $9, tenant_id = $10,
		        branch_id = $11, otp_hash = $12, otp_expiry = $13, failed_attempts = $14, locked_until = $15,
		        opt_in_promotions = $16, enable_email_notifications = $17, enable_in_app_notifications = $18,
		        tin_no = $19, is_staff = $20, is_active = $21, refresh_token_hash = $22, updated_at = now()
		 WHERE id = $23`,
		u.Email, u.PasswordHash, u.FullName, nilIfEmpty(u.Phone), u.UserType,
		nilIfEmpty(u.Image), nilIfEmpty(u.PushToken), u.PushTokenSyncedAt, u.Birthday, u.TenantID,
		u.BranchID, nilIfEmpty(u.OTPHash), u.OTPExpiry, u.FailedAttempts, u.LockedUntil,
		u.OptInPromotions, u.EnableEmailNotifications, u.EnableInAppNotifications,
		tin, u.IsStaff, u.IsActive, nilIfEmpty(u.RefreshTokenHash),
		u.ID,
	)
	if err != nil {
		return fmt.Errorf("userRepo.Update: %w", mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("userRepo.Update: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *UserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("userRepo.Delete: %w", mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("userRepo.Delete: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *UserRepo) List(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("userRepo.List: %w", err)
	}
	defer rows.Close()

	return r.collect(rows, "userRepo.List")
}

func (r *UserRepo) ListPushRecipients(ctx context.Context) ([]*domain.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE push_token IS NOT NULL AND push_token <> '' AND enable_in_app_notifications AND is_active
		 ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("userRepo.ListPushRecipients: %w", err)
	}
	defer rows.Close()

	return r.collect(rows, "userRepo.ListPushRecipients")
}

func (r *UserRepo) collect(rows pgx.Rows, caller string) ([]*domain.User, error) {
	users := []*domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", caller, err)
		}
		if err := r.openTIN(u); err != nil {
			return nil, fmt.Errorf("%s: %w", caller, err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", caller, err)
	}

	return users, nil
}
