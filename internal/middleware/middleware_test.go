package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"example.com/chirp/internal/auth"
	"example.com/chirp/internal/logger"
	"example.com/chirp/internal/metrics"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoUser(w http.ResponseWriter, r *http.Request) {
	id, ok := UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "no user", http.StatusInternalServerError)
		return
	}
	_, _ = w.Write([]byte(id))
}

func TestAuthToken(t *testing.T) {
	tm, err := auth.NewTokenManager("test-secret", time.Hour)
	require.NoError(t, err)
	other, err := auth.NewTokenManager("other-secret", time.Hour)
	require.NoError(t, err)

	good, err := tm.Issue("user-1")
	require.NoError(t, err)
	forged, err := other.Issue("user-1")
	require.NoError(t, err)

	tests := []struct {
		name     string
		token    string
		wantCode int
		wantBody string
	}{
		{"valid", good, http.StatusOK, "user-1"},
		{"missing", "", http.StatusUnauthorized, "Access Denied."},
		{"garbage", "not-a-jwt", http.StatusUnauthorized, "Session Expired. Please Login Again."},
		{"wrong secret", forged, http.StatusUnauthorized, "Session Expired. Please Login Again."},
	}

	h := AuthToken(tm)(http.HandlerFunc(echoUser))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/user", nil)
			if tt.token != "" {
				req.Header.Set(TokenHeader, tt.token)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestPrometheusMetrics_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics)
	r.Get("/tweets/{createdAt}/{byUser}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	counter := metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, "/tweets/{createdAt}/{byUser}", "418")
	before := testutil.ToFloat64(counter)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tweets/123/abc", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	orig := logg
	logg = logger.NewWithWriter(&buf)
	t.Cleanup(func() { logg = orig })

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(RequestLogger)
	r.Patch("/user/{email}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/user/bob@example.com", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "http", entry["module"])
	assert.NotEmpty(t, entry["request_id"])
	assert.Contains(t, entry["message"], "PATCH /user/[REDACTED_EMAIL] 404")
	assert.NotContains(t, buf.String(), "bob@example.com")
}
