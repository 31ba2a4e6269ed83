package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	t.Parallel()

	up := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name       string
		deps       map[string]Pinger
		wantStatus int
		wantBody   string
		wantChecks map[string]string
	}{
		{
			name:       "all_up",
			deps:       map[string]Pinger{"postgres": up, "redis": up},
			wantStatus: http.StatusOK,
			wantBody:   "ok",
			wantChecks: map[string]string{"postgres": "ok", "redis": "ok"},
		},
		{
			name:       "redis_down",
			deps:       map[string]Pinger{"postgres": up, "redis": down},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "degraded",
			wantChecks: map[string]string{"postgres": "ok", "redis": "down"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			healthHandler(tc.deps).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body struct {
				Status string            `json:"status"`
				Checks map[string]string `json:"checks"`
			}
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tc.wantBody, body.Status)
			assert.Equal(t, tc.wantChecks, body.Checks)
		})
	}
}

func TestAPIConfig(t *testing.T) {
	t.Parallel()

	primary := apiConfig("MinMin API", "")
	assert.Equal(t, "/openapi", primary.OpenAPIPath)
	assert.Equal(t, "/docs", primary.DocsPath)

	admin := apiConfig("MinMin Admin API", "admin")
	assert.Equal(t, "/openapi-admin", admin.OpenAPIPath)
	assert.Equal(t, "/docs-admin", admin.DocsPath)
	assert.Equal(t, "/schemas-admin", admin.SchemasPath)
	require.Len(t, admin.Servers, 1)
	assert.Equal(t, "/api/v1", admin.Servers[0].URL)
}
