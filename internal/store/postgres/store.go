package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minmin-app/minmin/internal/domain"
)

type Store struct {
	pool          *pgxpool.Pool
	users         *UserRepo
	apiKeys       *APIKeyRepo
	tenants       *TenantRepo
	branches      *BranchRepo
	addresses     *AddressRepo
	feed          *FeedRepo
	loyalty       *LoyaltyRepo
	notifications *PushNotificationRepo
	inbox         *InboxRepo
	discounts     *DiscountRepo
	audit         *AuditRepo
}

func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w", err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	return NewWithPool(pool), nil
}

// NewWithPool wires the repositories around an existing pool.
func NewWithPool(pool *pgxpool.Pool) *Store {
	branches := NewBranchRepo(pool)
	return &Store{
		pool:          pool,
		users:         NewUserRepo(pool),
		apiKeys:       NewAPIKeyRepo(pool),
		tenants:       NewTenantRepo(pool, branches),
		branches:      branches,
		addresses:     NewAddressRepo(pool),
		feed:          NewFeedRepo(pool),
		loyalty:       NewLoyaltyRepo(pool),
		notifications: NewPushNotificationRepo(pool),
		inbox:         NewInboxRepo(pool),
		discounts:     NewDiscountRepo(pool),
		audit:         NewAuditRepo(pool),
	}
}

// EncryptFields makes the user repository seal personal data columns with c.
// Call it before serving requests.
func (s *Store) EncryptFields(c FieldCipher) {
	s.users.cipher = c
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Users() domain.UserRepository                     { return s.users }
func (s *Store) APIKeys() domain.APIKeyRepository                 { return s.apiKeys }
func (s *Store) Tenants() domain.TenantRepository                 { return s.tenants }
func (s *Store) Branches() domain.BranchRepository                { return s.branches }
func (s *Store) Addresses() domain.AddressRepository              { return s.addresses }
func (s *Store) Feed() domain.FeedRepository                      { return s.feed }
func (s *Store) Loyalty() domain.LoyaltyRepository                { return s.loyalty }
func (s *Store) Notifications() domain.PushNotificationRepository { return s.notifications }
func (s *Store) Inbox() domain.NotificationRepository             { return s.inbox }
func (s *Store) Discounts() domain.DiscountRepository             { return s.discounts }
func (s *Store) Audit() domain.AuditRepository                    { return s.audit }
