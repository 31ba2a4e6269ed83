package auth_test

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/minmin-app/minmin/internal/auth"
	"github.com/minmin-app/minmin/internal/domain"
	"github.com/minmin-app/minmin/internal/mail"
)

// fakeUsers is an in-memory domain.UserRepository with error injection.
type fakeUsers struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*domain.User
	updates int

	createErr error
	updateErr error
	deleted   []uuid.UUID
}

func newFakeUsers(users ...*domain.User) *fakeUsers {
	f := &fakeUsers{byID: make(map[uuid.UUID]*domain.User)}
	for _, u := range users {
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsers) Create(_ context.Context, u *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	cp := *u
	f.byID[u.ID] = &cp
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeUsers) GetByBranch(_ context.Context, branchID uuid.UUID) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.BranchID != nil && *u.BranchID == branchID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeUsers) Update(_ context.Context, u *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.byID[u.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *u
	f.byID[u.ID] = &cp
	f.updates++
	return nil
}

func (f *fakeUsers) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.byID, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeUsers) List(context.Context, int, int) ([]*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.User, 0, len(f.byID))
	for _, u := range f.byID {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeUsers) ListPushRecipients(context.Context) ([]*domain.User, error) { return nil, nil }

func (f *fakeUsers) get(id uuid.UUID) *domain.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id]
}

type fakeTenants struct {
	domain.TenantRepository
	tenants map[uuid.UUID]*domain.Tenant
}

func (f *fakeTenants) GetByID(_ context.Context, id uuid.UUID) (*domain.Tenant, error) {
	if t, ok := f.tenants[id]; ok {
		return t, nil
	}
	return nil, domain.ErrNotFound
}

type fakeBranches struct {
	domain.BranchRepository
	branches map[uuid.UUID]*domain.Branch
}

func (f *fakeBranches) GetByID(_ context.Context, id uuid.UUID) (*domain.Branch, error) {
	if b, ok := f.branches[id]; ok {
		return b, nil
	}
	return nil, domain.ErrNotFound
}

// mockAPIKeys captures created keys and returns a preconfigured lookup result.
type mockAPIKeys struct {
	createErr   error
	createdKeys []*domain.APIKey

	getByPrefixResult *domain.APIKey
	getByPrefixErr    error
	lookedUpPrefix    string

	updateLastUsedErr error
	lastUsedCalls     int
}

func (m *mockAPIKeys) Create(_ context.Context, key *domain.APIKey) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.createdKeys = append(m.createdKeys, key)
	return nil
}

func (m *mockAPIKeys) GetByPrefix(_ context.Context, prefix string) (*domain.APIKey, error) {
	m.lookedUpPrefix = prefix
	if m.getByPrefixErr != nil {
		return nil, m.getByPrefixErr
	}
	return m.getByPrefixResult, nil
}

func (m *mockAPIKeys) List(context.Context) ([]*domain.APIKey, error) { return m.createdKeys, nil }
func (m *mockAPIKeys) Delete(context.Context, uuid.UUID) error     { return nil }

func (m *mockAPIKeys) UpdateLastUsed(context.Context, uuid.UUID) error {
	m.lastUsedCalls++
	return m.updateLastUsedErr
}

// recordingMailer keeps every message it was asked to send.
type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

var otpPattern = regexp.MustCompile(`\b\d{6}\b`)

func (m *recordingMailer) lastOTP() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return ""
	}
	return otpPattern.FindString(m.sent[len(m.sent)-1].Text)
}

type memBlacklist struct {
	mu    sync.Mutex
	jtis  map[string]time.Duration
	users map[string]time.Time
}

func newMemBlacklist() *memBlacklist {
	return &memBlacklist{jtis: map[string]time.Duration{}, users: map[string]time.Time{}}
}

func (b *memBlacklist) AddToBlacklist(_ context.Context, jti string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.jtis[jti] = ttl
	return nil
}

func (b *memBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.jtis[jti]
	return ok, nil
}

func (b *memBlacklist) AddUserTokensToBlacklist(_ context.Context, userID string, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[userID] = time.Now().Add(time.Second)
	return nil
}

func (b *memBlacklist) IsUserTokenInvalidated(_ context.Context, userID string, issuedAt time.Time) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	at, ok := b.users[userID]
	return ok && issuedAt.Before(at), nil
}

const (
	testAccessSecret  = "access-secret-access-secret-0123"
	testRefreshSecret = "refresh-secret-refresh-secret-01"
)

func testConfig() auth.Config {
	return auth.Config{
		AccessSecret:      testAccessSecret,
		RefreshSecret:     testRefreshSecret,
		AccessTTL:         15 * time.Minute,
		RefreshTTL:        24 * time.Hour,
		MaxFailedAttempts: 3,
		LockoutDuration:   15 * time.Minute,
		OTPTTL:            10 * time.Minute,
		StaticAPIKeys:     []string{"static-mobile-key"},
	}
}

type harness struct {
	svc       *auth.Service
	users     *fakeUsers
	tenants   *fakeTenants
	branches  *fakeBranches
	apiKeys   *mockAPIKeys
	mailer    *recordingMailer
	blacklist *memBlacklist
}

func newHarness(users ...*domain.User) *harness {
	h := &harness{
		users:     newFakeUsers(users...),
		tenants:   &fakeTenants{tenants: map[uuid.UUID]*domain.Tenant{}},
		branches:  &fakeBranches{branches: map[uuid.UUID]*domain.Branch{}},
		apiKeys:   &mockAPIKeys{},
		mailer:    &recordingMailer{},
		blacklist: newMemBlacklist(),
	}
	h.svc = auth.NewService(auth.Repositories{
		Users:    h.users,
		Tenants:  h.tenants,
		Branches: h.branches,
		APIKeys:  h.apiKeys,
	}, h.mailer, h.blacklist, testConfig())
	return h
}
