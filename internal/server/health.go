package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// Pinger is a backing service the health check pings.
type Pinger interface {
	Ping(ctx context.Context) error
}

const healthTimeout = 2 * time.Second

// healthHandler reports 200 when every dependency answers and 503 otherwise.
// The body lists each dependency as "ok" or "down".
func healthHandler(deps map[string]Pinger) http.HandlerFunc {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		status := http.StatusOK
		checks := make(map[string]string, len(deps))
		for _, name := range names {
			if err := deps[name].Ping(ctx); err != nil {
				log.Warn().Err(err).Str("component", "health").Str("dependency", name).Msg("health check failed")
				checks[name] = "down"
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": overall, "checks": checks})
	}
}
