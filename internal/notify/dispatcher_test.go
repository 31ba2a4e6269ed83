package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minmin-app/minmin/internal/domain"
	"github.com/minmin-app/minmin/internal/messenger"
	"github.com/minmin-app/minmin/internal/notify"
)

// --- mocks ---

type mockChannel struct {
	platform string
	err      error

	mu    sync.Mutex
	sent  []messenger.Push
	block chan struct{}
}

func (m *mockChannel) Platform() string { return m.platform }

func (m *mockChannel) Send(ctx context.Context, p messenger.Push) error {
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, p)
	return m.err
}

func (m *mockChannel) pushes() []messenger.Push {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]messenger.Push(nil), m.sent...)
}

type recipientsFunc func(ctx context.Context) ([]*domain.User, error)

func (f recipientsFunc) ListPushRecipients(ctx context.Context) ([]*domain.User, error) {
	return f(ctx)
}

func staticRecipients(users ...*domain.User) recipientsFunc {
	return func(context.Context) ([]*domain.User, error) { return users, nil }
}

func recipient(token string, inApp bool) *domain.User {
	return &domain.User{ID: uuid.New(), PushToken: token, EnableInAppNotifications: inApp, IsActive: true}
}

func sampleNotification() *domain.PushNotification {
	return &domain.PushNotification{
		ID:       uuid.New(),
		TenantID: uuid.New(),
		Title:    "Weekend brunch",
		Message:  "Firfir and coffee ceremony from 9am",
	}
}

// --- tests ---

func TestDispatcher_Deliver(t *testing.T) {
	t.Parallel()

	t.Run("fans out to every channel with deduplicated tokens", func(t *testing.T) {
		t.Parallel()

		reg := notify.NewRegistry()
		expo := &mockChannel{platform: "expo"}
		slack := &mockChannel{platform: "slack"}
		reg.Register(expo)
		reg.Register(slack)

		d := notify.NewDispatcher(reg, staticRecipients(
			recipient("tok-a", true),
			recipient("tok-b", true),
			recipient("tok-a", true),
			recipient("tok-muted", false),
			recipient("", true),
		), notify.Options{})

		n := sampleNotification()
		require.NoError(t, d.Deliver(t.Context(), n, "Injera House"))

		for _, ch := range []*mockChannel{expo, slack} {
			pushes := ch.pushes()
			require.Len(t, pushes, 1, ch.platform)
			p := pushes[0]
			assert.Equal(t, n.ID, p.NotificationID)
			assert.Equal(t, n.TenantID, p.TenantID)
			assert.Equal(t, "Injera House", p.TenantName)
			assert.Equal(t, n.Title, p.Title)
			assert.Equal(t, n.Message, p.Body)
			assert.Equal(t, []string{"tok-a", "tok-b"}, p.Tokens)
		}
	})

	t.Run("one failing channel does not block others", func(t *testing.T) {
		t.Parallel()

		reg := notify.NewRegistry()
		broken := &mockChannel{platform: "expo", err: errors.New("expo down")}
		ok := &mockChannel{platform: "realtime"}
		reg.Register(broken)
		reg.Register(ok)

		d := notify.NewDispatcher(reg, staticRecipients(recipient("t", true)), notify.Options{})
		err := d.Deliver(t.Context(), sampleNotification(), "")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "expo: expo down")
		assert.Len(t, ok.pushes(), 1)
	})

	t.Run("recipient lookup failure aborts", func(t *testing.T) {
		t.Parallel()

		reg := notify.NewRegistry()
		ch := &mockChannel{platform: "expo"}
		reg.Register(ch)

		d := notify.NewDispatcher(reg, recipientsFunc(func(context.Context) ([]*domain.User, error) {
			return nil, errors.New("db down")
		}), notify.Options{})

		err := d.Deliver(t.Context(), sampleNotification(), "")
		require.Error(t, err)
		assert.Empty(t, ch.pushes())
	})
}

type fakeInbox struct {
	mu      sync.Mutex
	ids     []uuid.UUID
	message string
	kind    domain.NotificationType
	err     error
}

func (f *fakeInbox) CreateForCustomers(_ context.Context, ids []uuid.UUID, message string, t domain.NotificationType, _ time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, ids...)
	f.message, f.kind = message, t
	return int64(len(ids)), f.err
}

func TestDispatcher_Inbox(t *testing.T) {
	t.Parallel()

	t.Run("files a promotion for each in-app recipient", func(t *testing.T) {
		t.Parallel()

		reg := notify.NewRegistry()
		reg.Register(&mockChannel{platform: "expo"})

		a := recipient("tok-a", true)
		muted := recipient("tok-m", false)
		tokenless := recipient("", true)
		inbox := &fakeInbox{}
		d := notify.NewDispatcher(reg, staticRecipients(a, muted, tokenless, a), notify.Options{}).WithInbox(inbox)

		require.NoError(t, d.Deliver(t.Context(), sampleNotification(), "Injera House"))

		assert.Equal(t, []uuid.UUID{a.ID, tokenless.ID}, inbox.ids)
		assert.Equal(t, "Weekend brunch: Firfir and coffee ceremony from 9am", inbox.message)
		assert.Equal(t, domain.NotificationPromotion, inbox.kind)
	})

	t.Run("inbox failure is reported but channels still deliver", func(t *testing.T) {
		t.Parallel()

		reg := notify.NewRegistry()
		ch := &mockChannel{platform: "expo"}
		reg.Register(ch)

		inbox := &fakeInbox{err: errors.New("db down")}
		d := notify.NewDispatcher(reg, staticRecipients(recipient("t", true)), notify.Options{}).WithInbox(inbox)

		err := d.Deliver(t.Context(), sampleNotification(), "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "inbox: db down")
		assert.Len(t, ch.pushes(), 1)
	})

	t.Run("no in-app recipients skips the inbox", func(t *testing.T) {
		t.Parallel()

		inbox := &fakeInbox{}
		d := notify.NewDispatcher(notify.NewRegistry(), staticRecipients(recipient("t", false)), notify.Options{}).WithInbox(inbox)

		require.NoError(t, d.Deliver(t.Context(), sampleNotification(), ""))
		assert.Empty(t, inbox.ids)
	})
}

func TestDispatcher_Queue(t *testing.T) {
	t.Parallel()

	t.Run("workers deliver enqueued notifications and drain on stop", func(t *testing.T) {
		t.Parallel()

		reg := notify.NewRegistry()
		ch := &mockChannel{platform: "expo"}
		reg.Register(ch)

		d := notify.NewDispatcher(reg, staticRecipients(recipient("t", true)), notify.Options{Workers: 2, QueueSize: 8})
		d.Start(t.Context())

		for range 5 {
			require.NoError(t, d.Enqueue(sampleNotification(), "Injera House"))
		}
		d.Stop()

		assert.Len(t, ch.pushes(), 5)
		assert.ErrorIs(t, d.Enqueue(sampleNotification(), ""), notify.ErrStopped)
	})

	t.Run("full queue rejects", func(t *testing.T) {
		t.Parallel()

		reg := notify.NewRegistry()
		ch := &mockChannel{platform: "expo", block: make(chan struct{})}
		reg.Register(ch)

		d := notify.NewDispatcher(reg, staticRecipients(), notify.Options{Workers: 1, QueueSize: 1})

		require.NoError(t, d.Enqueue(sampleNotification(), ""))
		assert.ErrorIs(t, d.Enqueue(sampleNotification(), ""), notify.ErrQueueFull)

		d.Start(t.Context())
		close(ch.block)
		d.Stop()
		assert.Len(t, ch.pushes(), 1)
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		t.Parallel()

		d := notify.NewDispatcher(notify.NewRegistry(), staticRecipients(), notify.Options{})
		d.Start(t.Context())
		d.Stop()
		d.Stop()
	})
}

type fakePublisher struct {
	channel string
	payload []byte
	err     error
}

func (f *fakePublisher) Publish(_ context.Context, channel string, payload []byte) error {
	f.channel = channel
	f.payload = payload
	return f.err
}

func TestRealtime_Send(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	rt := notify.NewRealtime(pub)
	p := messenger.Push{
		NotificationID: uuid.New(), TenantID: uuid.New(),
		Title: "Open late", Body: "Kitchen open until midnight", Tokens: []string{"secret-token"},
	}

	require.NoError(t, rt.Send(t.Context(), p))
	assert.Equal(t, "realtime", rt.Platform())
	assert.Equal(t, "tenant:"+p.TenantID.String()+":notifications", pub.channel)

	var got map[string]any
	require.NoError(t, json.Unmarshal(pub.payload, &got))
	assert.Equal(t, "Open late", got["title"])
	assert.Equal(t, "Kitchen open until midnight", got["message"])
	assert.NotContains(t, string(pub.payload), "secret-token")

	pub.err = errors.New("redis gone")
	assert.Error(t, rt.Send(t.Context(), p))
}

func TestDispatcher_SendTimeout(t *testing.T) {
	t.Parallel()

	reg := notify.NewRegistry()
	reg.Register(&mockChannel{platform: "expo", block: make(chan struct{})})

	d := notify.NewDispatcher(reg, staticRecipients(), notify.Options{SendTimeout: 20 * time.Millisecond})
	err := d.Deliver(t.Context(), sampleNotification(), "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
