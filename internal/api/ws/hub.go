// Package ws streams Redis pub/sub channels to WebSocket clients.
package ws

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/minmin-app/minmin/internal/server/middleware"
	redisstore "github.com/minmin-app/minmin/internal/store/redis"
)

// Subscriber is the pub/sub side of the Redis client.
// *redisstore.Client satisfies this interface.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error)
}

// Hub manages WebSocket connections backed by Redis pub/sub.
type Hub struct {
	sub            Subscriber
	originPatterns []string
}

// NewHub creates a hub. originPatterns are the cross-origin hosts browsers
// may connect from; same-origin requests are always accepted.
func NewHub(sub Subscriber, originPatterns []string) *Hub {
	return &Hub{sub: sub, originPatterns: originPatterns}
}

// ServeTenantNotifications streams the announcements a restaurant sends to
// any authenticated client. Each Redis message becomes one text frame.
func (h *Hub) ServeTenantNotifications(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.PrincipalFromContext(r.Context()); !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	tenantID, err := uuid.Parse(chi.URLParam(r, "tenantID"))
	if err != nil {
		http.Error(w, "invalid tenant id", http.StatusBadRequest)
		return
	}

	h.stream(w, r, redisstore.TenantNotificationsChannel(tenantID))
}

func (h *Hub) stream(w http.ResponseWriter, r *http.Request, channel string) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		log.Error().Err(err).Str("component", "ws").Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	// Clients never send; CloseRead handles control frames and cancels ctx
	// when the peer goes away.
	ctx := conn.CloseRead(r.Context())

	messages, cleanup, err := h.sub.Subscribe(ctx, channel)
	if err != nil {
		log.Error().Err(err).Str("component", "ws").Str("channel", channel).Msg("websocket subscribe")
		_ = conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}
	defer cleanup()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
			return
		case msg, msgOK := <-messages:
			if !msgOK {
				_ = conn.Close(websocket.StatusNormalClosure, "channel closed")
				return
			}
			if writeErr := conn.Write(ctx, websocket.MessageText, msg); writeErr != nil {
				log.Debug().Err(writeErr).Str("component", "ws").Msg("websocket write")
				return
			}
		}
	}
}
