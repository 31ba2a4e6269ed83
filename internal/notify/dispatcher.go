// Package notify fans tenant announcements out to every registered delivery
// channel in the background.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/minmin-app/minmin/internal/domain"
	"github.com/minmin-app/minmin/internal/messenger"
)

var (
	ErrQueueFull = errors.New("notify: delivery queue is full")                //nolint:gochecknoglobals // sentinel error
	ErrStopped   = errors.New("notify: dispatcher is not accepting deliveries") //nolint:gochecknoglobals // sentinel error
)

// RecipientSource lists the users an announcement is pushed to.
type RecipientSource interface {
	ListPushRecipients(ctx context.Context) ([]*domain.User, error)
}

// InboxWriter files announcements in the recipients' in-app inboxes.
type InboxWriter interface {
	CreateForCustomers(ctx context.Context, customerIDs []uuid.UUID, message string, t domain.NotificationType, at time.Time) (int64, error)
}

type Options struct {
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
}

type job struct {
	notification *domain.PushNotification
	tenantName   string
}

// Dispatcher delivers persisted push notifications with a bounded queue and
// a fixed pool of workers.
type Dispatcher struct {
	registry   *Registry
	recipients RecipientSource
	inbox      InboxWriter
	opts       Options

	mu      sync.RWMutex
	queue   chan job
	started bool
	stopped bool
	wg      sync.WaitGroup
}

func NewDispatcher(registry *Registry, recipients RecipientSource, opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 30 * time.Second
	}
	return &Dispatcher{
		registry:   registry,
		recipients: recipients,
		opts:       opts,
		queue:      make(chan job, opts.QueueSize),
	}
}

// WithInbox makes every delivery also leave a Promotion entry in the inbox of
// each recipient with in-app notifications enabled. Call before Start.
func (d *Dispatcher) WithInbox(w InboxWriter) *Dispatcher {
	d.inbox = w
	return d
}

// Start launches the workers. They exit when ctx is cancelled or Stop drains the queue.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.started = true

	for i := range d.opts.Workers {
		d.wg.Add(1)
		go d.work(ctx, i)
	}
	log.Info().Str("component", "notify").Int("workers", d.opts.Workers).Msg("dispatcher started")
}

func (d *Dispatcher) work(ctx context.Context, id int) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-d.queue:
			if !ok {
				return
			}
			if err := d.Deliver(ctx, j.notification, j.tenantName); err != nil {
				log.Warn().Err(err).
					Str("component", "notify").
					Int("worker", id).
					Str("notification_id", j.notification.ID.String()).
					Msg("delivery incomplete")
			}
		}
	}
}

// Enqueue schedules n for delivery without blocking.
func (d *Dispatcher) Enqueue(n *domain.PushNotification, tenantName string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrStopped
	}

	select {
	case d.queue <- job{notification: n, tenantName: tenantName}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop refuses new work, lets the workers drain the queue and waits for them.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}

// Deliver sends n through every registered channel. Channel failures are
// collected; one failing channel does not prevent the others.
func (d *Dispatcher) Deliver(ctx context.Context, n *domain.PushNotification, tenantName string) error {
	ctx, cancel := context.WithTimeout(ctx, d.opts.SendTimeout)
	defer cancel()

	users, err := d.recipients.ListPushRecipients(ctx)
	if err != nil {
		return fmt.Errorf("notify.Deliver: recipients: %w", err)
	}

	tokens := make([]string, 0, len(users))
	seen := make(map[string]struct{}, len(users))
	inboxIDs := make([]uuid.UUID, 0, len(users))
	filed := make(map[uuid.UUID]struct{}, len(users))
	for _, u := range users {
		if !u.EnableInAppNotifications {
			continue
		}
		if _, dup := filed[u.ID]; !dup {
			filed[u.ID] = struct{}{}
			inboxIDs = append(inboxIDs, u.ID)
		}
		if u.PushToken == "" {
			continue
		}
		if _, dup := seen[u.PushToken]; dup {
			continue
		}
		seen[u.PushToken] = struct{}{}
		tokens = append(tokens, u.PushToken)
	}

	push := messenger.Push{
		NotificationID: n.ID,
		TenantID:       n.TenantID,
		TenantName:     tenantName,
		Title:          n.Title,
		Body:           n.Message,
		Tokens:         tokens,
	}

	var errs []error
	if d.inbox != nil && len(inboxIDs) > 0 {
		if _, err := d.inbox.CreateForCustomers(ctx, inboxIDs, inboxMessage(n), domain.NotificationPromotion, time.Now()); err != nil {
			errs = append(errs, fmt.Errorf("inbox: %w", err))
		}
	}
	for _, ch := range d.registry.Channels() {
		if err := ch.Send(ctx, push); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch.Platform(), err))
			continue
		}
		log.Debug().
			Str("component", "notify").
			Str("platform", ch.Platform()).
			Str("notification_id", n.ID.String()).
			Int("recipients", len(tokens)).
			Msg("delivered")
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify.Deliver: %w", errors.Join(errs...))
	}
	return nil
}

func inboxMessage(n *domain.PushNotification) string {
	if n.Title == "" {
		return n.Message
	}
	return n.Title + ": " + n.Message
}
