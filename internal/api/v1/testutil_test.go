package v1_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/minmin-app/minmin/internal/auth"
	"github.com/minmin-app/minmin/internal/domain"
	"github.com/minmin-app/minmin/internal/loyalty"
	"github.com/minmin-app/minmin/internal/pricing"
	"github.com/minmin-app/minmin/internal/server/middleware"
	"github.com/minmin-app/minmin/internal/storage"
)

// ---------------------------------------------------------------------------
// Context helpers: inject the authenticated principal for DoCtx
// ---------------------------------------------------------------------------

func principalCtx(p middleware.Principal) context.Context {
	return middleware.WithPrincipal(context.Background(), p)
}

func adminCtx() context.Context {
	return principalCtx(middleware.Principal{UserID: uuid.New(), UserType: domain.UserTypeAdmin})
}

func customerCtx(userID uuid.UUID) context.Context {
	return principalCtx(middleware.Principal{UserID: userID, UserType: domain.UserTypeCustomer})
}

func ownerCtx(tenantID uuid.UUID) context.Context {
	return principalCtx(middleware.Principal{UserID: uuid.New(), UserType: domain.UserTypeRestaurant, TenantID: &tenantID})
}

func branchCtx(tenantID, branchID uuid.UUID) context.Context {
	return principalCtx(middleware.Principal{
		UserID:   uuid.New(),
		UserType: domain.UserTypeBranch,
		TenantID: &tenantID,
		BranchID: &branchID,
	})
}

// ---------------------------------------------------------------------------
// Mock DataStore
// ---------------------------------------------------------------------------

type mockDataStore struct {
	users         domain.UserRepository
	tenants       domain.TenantRepository
	branches      domain.BranchRepository
	addresses     domain.AddressRepository
	feed          domain.FeedRepository
	notifications domain.PushNotificationRepository
	inbox         domain.NotificationRepository
	audit         *mockAuditRepo
}

func (m *mockDataStore) Users() domain.UserRepository                     { return m.users }
func (m *mockDataStore) Tenants() domain.TenantRepository                 { return m.tenants }
func (m *mockDataStore) Branches() domain.BranchRepository                { return m.branches }
func (m *mockDataStore) Addresses() domain.AddressRepository              { return m.addresses }
func (m *mockDataStore) Feed() domain.FeedRepository                      { return m.feed }
func (m *mockDataStore) Notifications() domain.PushNotificationRepository { return m.notifications }
func (m *mockDataStore) Inbox() domain.NotificationRepository             { return m.inbox }

// Audit falls back to a recorder so handlers that audit mutations work in
// tests that do not care about the entries.
func (m *mockDataStore) Audit() domain.AuditRepository {
	if m.audit == nil {
		return &mockAuditRepo{}
	}
	return m.audit
}

// ---------------------------------------------------------------------------
// Mock AuditRepository
// ---------------------------------------------------------------------------

type mockAuditRepo struct {
	mu        sync.Mutex
	entries   []*domain.AuditEntry
	recordErr error
	listFunc  func(ctx context.Context, tenantID *uuid.UUID, limit, offset int) ([]*domain.AuditEntry, error)
}

func (m *mockAuditRepo) Record(_ context.Context, entry *domain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return m.recordErr
}

func (m *mockAuditRepo) ListByTenant(ctx context.Context, tenantID *uuid.UUID, limit, offset int) ([]*domain.AuditEntry, error) {
	return m.listFunc(ctx, tenantID, limit, offset)
}

func (m *mockAuditRepo) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

// ---------------------------------------------------------------------------
// Mock UserRepository
// ---------------------------------------------------------------------------

type mockUserRepo struct {
	createFunc             func(ctx context.Context, u *domain.User) error
	getByIDFunc            func(ctx context.Context, id uuid.UUID) (*domain.User, error)
	getByEmailFunc         func(ctx context.Context, email string) (*domain.User, error)
	getByBranchFunc        func(ctx context.Context, branchID uuid.UUID) (*domain.User, error)
	updateFunc             func(ctx context.Context, u *domain.User) error
	deleteFunc             func(ctx context.Context, id uuid.UUID) error
	listFunc               func(ctx context.Context, limit, offset int) ([]*domain.User, error)
	listPushRecipientsFunc func(ctx context.Context) ([]*domain.User, error)
}

func (m *mockUserRepo) Create(ctx context.Context, u *domain.User) error {
	return m.createFunc(ctx, u)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return m.getByEmailFunc(ctx, email)
}

func (m *mockUserRepo) GetByBranch(ctx context.Context, branchID uuid.UUID) (*domain.User, error) {
	return m.getByBranchFunc(ctx, branchID)
}

func (m *mockUserRepo) Update(ctx context.Context, u *domain.User) error {
	return m.updateFunc(ctx, u)
}

func (m *mockUserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFunc(ctx, id)
}

func (m *mockUserRepo) List(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	return m.listFunc(ctx, limit, offset)
}

func (m *mockUserRepo) ListPushRecipients(ctx context.Context) ([]*domain.User, error) {
	return m.listPushRecipientsFunc(ctx)
}

// ---------------------------------------------------------------------------
// Mock TenantRepository
// ---------------------------------------------------------------------------

type mockTenantRepo struct {
	createWithAdminFunc func(ctx context.Context, t *domain.Tenant, adminID uuid.UUID) error
	getByIDFunc         func(ctx context.Context, id uuid.UUID) (*domain.Tenant, error)
	getByAdminFunc      func(ctx context.Context, adminID uuid.UUID) (*domain.Tenant, error)
	listFunc            func(ctx context.Context) ([]*domain.Tenant, error)
	updateFunc          func(ctx context.Context, t *domain.Tenant) error
	deleteFunc          func(ctx context.Context, id uuid.UUID) error
	countBranchesFunc   func(ctx context.Context, id uuid.UUID) (int, error)
}

func (m *mockTenantRepo) CreateWithAdmin(ctx context.Context, t *domain.Tenant, adminID uuid.UUID) error {
	return m.createWithAdminFunc(ctx, t, adminID)
}

func (m *mockTenantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockTenantRepo) GetByAdmin(ctx context.Context, adminID uuid.UUID) (*domain.Tenant, error) {
	return m.getByAdminFunc(ctx, adminID)
}

func (m *mockTenantRepo) List(ctx context.Context) ([]*domain.Tenant, error) {
	return m.listFunc(ctx)
}

func (m *mockTenantRepo) Update(ctx context.Context, t *domain.Tenant) error {
	return m.updateFunc(ctx, t)
}

func (m *mockTenantRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFunc(ctx, id)
}

func (m *mockTenantRepo) CountBranches(ctx context.Context, id uuid.UUID) (int, error) {
	return m.countBranchesFunc(ctx, id)
}

// tenantRepoWith returns a repository that serves t by ID.
func tenantRepoWith(t *domain.Tenant) *mockTenantRepo {
	return &mockTenantRepo{
		getByIDFunc: func(_ context.Context, id uuid.UUID) (*domain.Tenant, error) {
			if id != t.ID {
				return nil, domain.ErrNotFound
			}
			return t, nil
		},
	}
}

// ---------------------------------------------------------------------------
// Mock BranchRepository
// ---------------------------------------------------------------------------

type mockBranchRepo struct {
	createFunc       func(ctx context.Context, b *domain.Branch) error
	getByIDFunc      func(ctx context.Context, id uuid.UUID) (*domain.Branch, error)
	listByTenantFunc func(ctx context.Context, tenantID uuid.UUID) ([]*domain.Branch, error)
	updateFunc       func(ctx context.Context, b *domain.Branch) error
	deleteFunc       func(ctx context.Context, id uuid.UUID) error
}

func (m *mockBranchRepo) Create(ctx context.Context, b *domain.Branch) error {
	return m.createFunc(ctx, b)
}

func (m *mockBranchRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Branch, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockBranchRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*domain.Branch, error) {
	return m.listByTenantFunc(ctx, tenantID)
}

func (m *mockBranchRepo) Update(ctx context.Context, b *domain.Branch) error {
	return m.updateFunc(ctx, b)
}

func (m *mockBranchRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFunc(ctx, id)
}

// ---------------------------------------------------------------------------
// Mock AddressRepository
// ---------------------------------------------------------------------------

type mockAddressRepo struct {
	createFunc     func(ctx context.Context, a *domain.Address) error
	getByIDFunc    func(ctx context.Context, id uuid.UUID) (*domain.Address, error)
	listFunc       func(ctx context.Context) ([]*domain.Address, error)
	listByUserFunc func(ctx context.Context, userID uuid.UUID) ([]*domain.Address, error)
	updateFunc     func(ctx context.Context, a *domain.Address) error
	deleteFunc     func(ctx context.Context, id uuid.UUID) error
}

func (m *mockAddressRepo) Create(ctx context.Context, a *domain.Address) error {
	return m.createFunc(ctx, a)
}

func (m *mockAddressRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Address, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockAddressRepo) List(ctx context.Context) ([]*domain.Address, error) {
	return m.listFunc(ctx)
}

func (m *mockAddressRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Address, error) {
	return m.listByUserFunc(ctx, userID)
}

func (m *mockAddressRepo) Update(ctx context.Context, a *domain.Address) error {
	return m.updateFunc(ctx, a)
}

func (m *mockAddressRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFunc(ctx, id)
}

// ---------------------------------------------------------------------------
// Mock FeedRepository
// ---------------------------------------------------------------------------

type mockFeedRepo struct {
	createPostFunc     func(ctx context.Context, p *domain.Post) error
	getPostFunc        func(ctx context.Context, id uuid.UUID) (*domain.Post, error)
	listPostsFunc      func(ctx context.Context, limit, offset int) ([]*domain.Post, error)
	toggleLikeFunc     func(ctx context.Context, postID, userID uuid.UUID) (bool, error)
	toggleBookmarkFunc func(ctx context.Context, postID, userID uuid.UUID) (bool, error)
	addCommentFunc     func(ctx context.Context, c *domain.Comment) error
	getCommentFunc     func(ctx context.Context, id uuid.UUID) (*domain.Comment, error)
	deleteCommentFunc  func(ctx context.Context, id uuid.UUID) error
	sharePostFunc      func(ctx context.Context, s *domain.Share) error
}

func (m *mockFeedRepo) CreatePost(ctx context.Context, p *domain.Post) error {
	return m.createPostFunc(ctx, p)
}

func (m *mockFeedRepo) GetPost(ctx context.Context, id uuid.UUID) (*domain.Post, error) {
	return m.getPostFunc(ctx, id)
}

func (m *mockFeedRepo) ListPosts(ctx context.Context, limit, offset int) ([]*domain.Post, error) {
	return m.listPostsFunc(ctx, limit, offset)
}

func (m *mockFeedRepo) ToggleLike(ctx context.Context, postID, userID uuid.UUID) (bool, error) {
	return m.toggleLikeFunc(ctx, postID, userID)
}

func (m *mockFeedRepo) ToggleBookmark(ctx context.Context, postID, userID uuid.UUID) (bool, error) {
	return m.toggleBookmarkFunc(ctx, postID, userID)
}

func (m *mockFeedRepo) AddComment(ctx context.Context, c *domain.Comment) error {
	return m.addCommentFunc(ctx, c)
}

func (m *mockFeedRepo) GetComment(ctx context.Context, id uuid.UUID) (*domain.Comment, error) {
	return m.getCommentFunc(ctx, id)
}

func (m *mockFeedRepo) DeleteComment(ctx context.Context, id uuid.UUID) error {
	return m.deleteCommentFunc(ctx, id)
}

func (m *mockFeedRepo) SharePost(ctx context.Context, s *domain.Share) error {
	return m.sharePostFunc(ctx, s)
}

// ---------------------------------------------------------------------------
// Mock PushNotificationRepository
// ---------------------------------------------------------------------------

type mockNotificationRepo struct {
	createFunc       func(ctx context.Context, n *domain.PushNotification) error
	listByTenantFunc func(ctx context.Context, tenantID uuid.UUID) ([]*domain.PushNotification, error)
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *domain.PushNotification) error {
	return m.createFunc(ctx, n)
}

func (m *mockNotificationRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]*domain.PushNotification, error) {
	return m.listByTenantFunc(ctx, tenantID)
}

// ---------------------------------------------------------------------------
// Mock NotificationRepository (inbox)
// ---------------------------------------------------------------------------

type mockInboxRepo struct {
	listFunc     func(ctx context.Context, customerID *uuid.UUID, limit, offset int) ([]*domain.Notification, error)
	unreadFunc   func(ctx context.Context, customerID *uuid.UUID) (int, error)
	markReadFunc func(ctx context.Context, id uuid.UUID, customerID *uuid.UUID) (*domain.Notification, error)
}

func (m *mockInboxRepo) CreateForCustomers(context.Context, []uuid.UUID, string, domain.NotificationType, time.Time) (int64, error) {
	return 0, nil
}

func (m *mockInboxRepo) List(ctx context.Context, customerID *uuid.UUID, limit, offset int) ([]*domain.Notification, error) {
	return m.listFunc(ctx, customerID, limit, offset)
}

func (m *mockInboxRepo) UnreadCount(ctx context.Context, customerID *uuid.UUID) (int, error) {
	return m.unreadFunc(ctx, customerID)
}

func (m *mockInboxRepo) MarkRead(ctx context.Context, id uuid.UUID, customerID *uuid.UUID) (*domain.Notification, error) {
	return m.markReadFunc(ctx, id, customerID)
}

// ---------------------------------------------------------------------------
// Mock AuthService
// ---------------------------------------------------------------------------

type mockAuthService struct {
	registerFunc             func(ctx context.Context, p auth.RegisterParams) (*domain.User, error)
	verifyOTPFunc            func(ctx context.Context, email, otp string) (*auth.Tokens, error)
	checkOTPFunc             func(ctx context.Context, email, otp string) bool
	loginFunc                func(ctx context.Context, email, password string) (*auth.Tokens, error)
	logoutFunc               func(ctx context.Context, claims *auth.Claims) error
	refreshFunc              func(ctx context.Context, refreshToken string) (*auth.Tokens, error)
	requestPasswordResetFunc func(ctx context.Context, email string) error
	resetPasswordFunc        func(ctx context.Context, email, otp, newPassword string) error
	listUsersFunc            func(ctx context.Context, limit, offset int) ([]*domain.User, error)
	getUserFunc              func(ctx context.Context, id uuid.UUID) (*domain.User, error)
	updateUserFunc           func(ctx context.Context, id uuid.UUID, p auth.UpdateUserParams) (*domain.User, error)
	deleteUserFunc           func(ctx context.Context, id uuid.UUID) error
	updatePushTokenFunc      func(ctx context.Context, id uuid.UUID, token string) (*domain.User, error)
	generateAPIKeyFunc       func(ctx context.Context, createdBy uuid.UUID, name string, expiresAt *time.Time) (string, *domain.APIKey, error)
	listAPIKeysFunc          func(ctx context.Context) ([]*domain.APIKey, error)
	revokeAPIKeyFunc         func(ctx context.Context, id uuid.UUID) error
}

func (m *mockAuthService) Register(ctx context.Context, p auth.RegisterParams) (*domain.User, error) {
	return m.registerFunc(ctx, p)
}

func (m *mockAuthService) VerifyOTP(ctx context.Context, email, otp string) (*auth.Tokens, error) {
	return m.verifyOTPFunc(ctx, email, otp)
}

func (m *mockAuthService) CheckOTP(ctx context.Context, email, otp string) bool {
	return m.checkOTPFunc(ctx, email, otp)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*auth.Tokens, error) {
	return m.loginFunc(ctx, email, password)
}

func (m *mockAuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	return m.logoutFunc(ctx, claims)
}

func (m *mockAuthService) Refresh(ctx context.Context, refreshToken string) (*auth.Tokens, error) {
	return m.refreshFunc(ctx, refreshToken)
}

func (m *mockAuthService) RequestPasswordReset(ctx context.Context, email string) error {
	return m.requestPasswordResetFunc(ctx, email)
}

func (m *mockAuthService) ResetPassword(ctx context.Context, email, otp, newPassword string) error {
	return m.resetPasswordFunc(ctx, email, otp, newPassword)
}

func (m *mockAuthService) ListUsers(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	return m.listUsersFunc(ctx, limit, offset)
}

func (m *mockAuthService) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return m.getUserFunc(ctx, id)
}

func (m *mockAuthService) UpdateUser(ctx context.Context, id uuid.UUID, p auth.UpdateUserParams) (*domain.User, error) {
	return m.updateUserFunc(ctx, id, p)
}

func (m *mockAuthService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return m.deleteUserFunc(ctx, id)
}

func (m *mockAuthService) UpdatePushToken(ctx context.Context, id uuid.UUID, token string) (*domain.User, error) {
	return m.updatePushTokenFunc(ctx, id, token)
}

func (m *mockAuthService) GenerateAPIKey(ctx context.Context, createdBy uuid.UUID, name string, expiresAt *time.Time) (string, *domain.APIKey, error) {
	return m.generateAPIKeyFunc(ctx, createdBy, name, expiresAt)
}

func (m *mockAuthService) ListAPIKeys(ctx context.Context) ([]*domain.APIKey, error) {
	return m.listAPIKeysFunc(ctx)
}

func (m *mockAuthService) RevokeAPIKey(ctx context.Context, id uuid.UUID) error {
	return m.revokeAPIKeyFunc(ctx, id)
}

// ---------------------------------------------------------------------------
// Mock LoyaltyService
// ---------------------------------------------------------------------------

type mockLoyaltyService struct {
	updatePointsFunc           func(ctx context.Context, actor loyalty.Actor, p loyalty.UpdatePointsParams) (*domain.PointsBalance, error)
	customerSummaryFunc        func(ctx context.Context, customerID uuid.UUID) (*loyalty.CustomerSummary, error)
	tenantSummaryFunc          func(ctx context.Context, tenantID uuid.UUID) (*loyalty.TenantSummary, error)
	listTransactionsFunc       func(ctx context.Context, actor loyalty.Actor, customerID *uuid.UUID, limit, offset int) ([]*domain.LoyaltyTransaction, error)
	listGlobalSettingsFunc     func(ctx context.Context) ([]*domain.GlobalLoyaltySetting, error)
	upsertGlobalSettingFunc    func(ctx context.Context, actor loyalty.Actor, p loyalty.GlobalSettingParams) (*domain.GlobalLoyaltySetting, error)
	restaurantSettingsFunc     func(ctx context.Context, tenantID uuid.UUID) (*domain.RestaurantLoyaltySettings, error)
	setRestaurantThresholdFunc func(ctx context.Context, actor loyalty.Actor, tenantID uuid.UUID, threshold int) (*domain.RestaurantLoyaltySettings, error)
	conversionRateFunc         func(ctx context.Context, tenantID uuid.UUID) (*domain.LoyaltyConversionRate, error)
	setConversionRateFunc      func(ctx context.Context, actor loyalty.Actor, tenantID uuid.UUID, rate decimal.Decimal) (*domain.LoyaltyConversionRate, error)
}

func (m *mockLoyaltyService) UpdatePoints(ctx context.Context, actor loyalty.Actor, p loyalty.UpdatePointsParams) (*domain.PointsBalance, error) {
	return m.updatePointsFunc(ctx, actor, p)
}

func (m *mockLoyaltyService) CustomerSummary(ctx context.Context, customerID uuid.UUID) (*loyalty.CustomerSummary, error) {
	return m.customerSummaryFunc(ctx, customerID)
}

func (m *mockLoyaltyService) TenantSummary(ctx context.Context, tenantID uuid.UUID) (*loyalty.TenantSummary, error) {
	return m.tenantSummaryFunc(ctx, tenantID)
}

func (m *mockLoyaltyService) ListTransactions(ctx context.Context, actor loyalty.Actor, customerID *uuid.UUID, limit, offset int) ([]*domain.LoyaltyTransaction, error) {
	return m.listTransactionsFunc(ctx, actor, customerID, limit, offset)
}

func (m *mockLoyaltyService) ListGlobalSettings(ctx context.Context) ([]*domain.GlobalLoyaltySetting, error) {
	return m.listGlobalSettingsFunc(ctx)
}

func (m *mockLoyaltyService) UpsertGlobalSetting(ctx context.Context, actor loyalty.Actor, p loyalty.GlobalSettingParams) (*domain.GlobalLoyaltySetting, error) {
	return m.upsertGlobalSettingFunc(ctx, actor, p)
}

func (m *mockLoyaltyService) RestaurantSettings(ctx context.Context, tenantID uuid.UUID) (*domain.RestaurantLoyaltySettings, error) {
	return m.restaurantSettingsFunc(ctx, tenantID)
}

func (m *mockLoyaltyService) SetRestaurantThreshold(ctx context.Context, actor loyalty.Actor, tenantID uuid.UUID, threshold int) (*domain.RestaurantLoyaltySettings, error) {
	return m.setRestaurantThresholdFunc(ctx, actor, tenantID, threshold)
}

func (m *mockLoyaltyService) ConversionRate(ctx context.Context, tenantID uuid.UUID) (*domain.LoyaltyConversionRate, error) {
	return m.conversionRateFunc(ctx, tenantID)
}

func (m *mockLoyaltyService) SetConversionRate(ctx context.Context, actor loyalty.Actor, tenantID uuid.UUID, rate decimal.Decimal) (*domain.LoyaltyConversionRate, error) {
	return m.setConversionRateFunc(ctx, actor, tenantID, rate)
}

// ---------------------------------------------------------------------------
// Mock PricingService
// ---------------------------------------------------------------------------

type mockPricingService struct {
	createDiscountFunc func(ctx context.Context, actor pricing.Actor, p pricing.DiscountParams) (*domain.Discount, error)
	updateDiscountFunc func(ctx context.Context, actor pricing.Actor, id uuid.UUID, p pricing.DiscountParams) (*domain.Discount, error)
	getDiscountFunc    func(ctx context.Context, actor pricing.Actor, id uuid.UUID) (*domain.Discount, error)
	listDiscountsFunc  func(ctx context.Context, actor pricing.Actor, tenantID uuid.UUID) ([]*domain.Discount, error)
	deleteDiscountFunc func(ctx context.Context, actor pricing.Actor, id uuid.UUID) error

	createRuleFunc func(ctx context.Context, actor pricing.Actor, p pricing.RuleParams) (*domain.DiscountRule, error)
	updateRuleFunc func(ctx context.Context, actor pricing.Actor, id uuid.UUID, p pricing.RuleParams) (*domain.DiscountRule, error)
	getRuleFunc    func(ctx context.Context, actor pricing.Actor, id uuid.UUID) (*domain.DiscountRule, error)
	deleteRuleFunc func(ctx context.Context, actor pricing.Actor, id uuid.UUID) error

	createCouponFunc func(ctx context.Context, actor pricing.Actor, p pricing.CouponParams) (*domain.Coupon, error)
	updateCouponFunc func(ctx context.Context, actor pricing.Actor, id uuid.UUID, p pricing.CouponParams) (*domain.Coupon, error)
	listCouponsFunc  func(ctx context.Context, actor pricing.Actor, tenantID uuid.UUID) ([]*domain.Coupon, error)
	deleteCouponFunc func(ctx context.Context, actor pricing.Actor, id uuid.UUID) error

	bigItemsFunc func(ctx context.Context, tenantID *uuid.UUID) ([]string, error)
	checkoutFunc func(ctx context.Context, p pricing.CheckoutParams) (*pricing.Checkout, error)
}

func (m *mockPricingService) CreateDiscount(ctx context.Context, actor pricing.Actor, p pricing.DiscountParams) (*domain.Discount, error) {
	return m.createDiscountFunc(ctx, actor, p)
}

func (m *mockPricingService) UpdateDiscount(ctx context.Context, actor pricing.Actor, id uuid.UUID, p pricing.DiscountParams) (*domain.Discount, error) {
	return m.updateDiscountFunc(ctx, actor, id, p)
}

func (m *mockPricingService) GetDiscount(ctx context.Context, actor pricing.Actor, id uuid.UUID) (*domain.Discount, error) {
	return m.getDiscountFunc(ctx, actor, id)
}

func (m *mockPricingService) ListDiscounts(ctx context.Context, actor pricing.Actor, tenantID uuid.UUID) ([]*domain.Discount, error) {
	return m.listDiscountsFunc(ctx, actor, tenantID)
}

func (m *mockPricingService) DeleteDiscount(ctx context.Context, actor pricing.Actor, id uuid.UUID) error {
	return m.deleteDiscountFunc(ctx, actor, id)
}

func (m *mockPricingService) CreateRule(ctx context.Context, actor pricing.Actor, p pricing.RuleParams) (*domain.DiscountRule, error) {
	return m.createRuleFunc(ctx, actor, p)
}

func (m *mockPricingService) UpdateRule(ctx context.Context, actor pricing.Actor, id uuid.UUID, p pricing.RuleParams) (*domain.DiscountRule, error) {
	return m.updateRuleFunc(ctx, actor, id, p)
}

func (m *mockPricingService) GetRule(ctx context.Context, actor pricing.Actor, id uuid.UUID) (*domain.DiscountRule, error) {
	return m.getRuleFunc(ctx, actor, id)
}

func (m *mockPricingService) DeleteRule(ctx context.Context, actor pricing.Actor, id uuid.UUID) error {
	return m.deleteRuleFunc(ctx, actor, id)
}

func (m *mockPricingService) CreateCoupon(ctx context.Context, actor pricing.Actor, p pricing.CouponParams) (*domain.Coupon, error) {
	return m.createCouponFunc(ctx, actor, p)
}

func (m *mockPricingService) UpdateCoupon(ctx context.Context, actor pricing.Actor, id uuid.UUID, p pricing.CouponParams) (*domain.Coupon, error) {
	return m.updateCouponFunc(ctx, actor, id, p)
}

func (m *mockPricingService) ListCoupons(ctx context.Context, actor pricing.Actor, tenantID uuid.UUID) ([]*domain.Coupon, error) {
	return m.listCouponsFunc(ctx, actor, tenantID)
}

func (m *mockPricingService) DeleteCoupon(ctx context.Context, actor pricing.Actor, id uuid.UUID) error {
	return m.deleteCouponFunc(ctx, actor, id)
}

func (m *mockPricingService) BigItems(ctx context.Context, tenantID *uuid.UUID) ([]string, error) {
	return m.bigItemsFunc(ctx, tenantID)
}

func (m *mockPricingService) Checkout(ctx context.Context, p pricing.CheckoutParams) (*pricing.Checkout, error) {
	return m.checkoutFunc(ctx, p)
}

// ---------------------------------------------------------------------------
// Mock Uploader and Notifier
// ---------------------------------------------------------------------------

type mockUploader struct {
	presignFunc func(ctx context.Context, key, contentType string) (*storage.Upload, error)
}

func (m *mockUploader) PresignUpload(ctx context.Context, key, contentType string) (*storage.Upload, error) {
	return m.presignFunc(ctx, key, contentType)
}

type mockNotifier struct {
	mu      sync.Mutex
	queued  []*domain.PushNotification
	tenants []string
	err     error
}

func (m *mockNotifier) Enqueue(n *domain.PushNotification, tenantName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.queued = append(m.queued, n)
	m.tenants = append(m.tenants, tenantName)
	return nil
}
