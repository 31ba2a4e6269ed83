package middleware

import (
	"context"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// IdempotencyHeader carries the client-chosen key of a mutating request.
const IdempotencyHeader = "Idempotency-Key"

// IdempotencyStore claims request keys. *redis.IdempotencyStore satisfies
// this interface.
type IdempotencyStore interface {
	MarkProcessed(ctx context.Context, scope, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, scope, key string) error
}

// Idempotency rejects a repeated mutating request carrying the same
// Idempotency-Key from the same user within ttl with 409. The claim is
// released when the handler answers with any error status, so a corrected or
// retried request can reuse the key. Requests without the header are not
// tracked.
func Idempotency(store IdempotencyStore, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyHeader)
			if key == "" || r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > 255 {
				writeProblem(w, http.StatusBadRequest, "idempotency key too long")
				return
			}

			scope := r.Method + " " + r.URL.Path
			if p, ok := PrincipalFromContext(r.Context()); ok {
				scope = p.UserID.String() + ":" + scope
			}

			fresh, err := store.MarkProcessed(r.Context(), scope, key, ttl)
			if err != nil {
				log.Warn().Err(err).Str("component", "idempotency").Msg("claim failed, processing without it")
				next.ServeHTTP(w, r)
				return
			}
			if !fresh {
				writeProblem(w, http.StatusConflict, "request with this idempotency key was already processed")
				return
			}

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if ww.Status() >= http.StatusBadRequest {
				if err := store.Release(context.WithoutCancel(r.Context()), scope, key); err != nil {
					log.Warn().Err(err).Str("component", "idempotency").Msg("release failed")
				}
			}
		})
	}
}
