package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RequestLogger logs one line per request with method, path, status, size
// and latency. Server errors are logged at error level.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		var ev *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			ev = log.Error()
		case status >= http.StatusBadRequest:
			ev = log.Warn()
		default:
			ev = log.Info()
		}

		ev = ev.Str("component", "http").
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start))
		if id := chimw.GetReqID(r.Context()); id != "" {
			ev = ev.Str("request_id", id)
		}
		ev.Msgf("[%s] %s - %dms", r.Method, r.URL.Path, time.Since(start).Milliseconds())
	})
}
