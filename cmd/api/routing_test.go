package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shelfscan/internal/capture"
	"shelfscan/internal/httpx"
	"shelfscan/internal/logger"
	"shelfscan/internal/scan"
	"shelfscan/internal/testutil"
)

type stubVerifier map[string]string

func (s stubVerifier) VerifyToken(_ context.Context, token string) (string, string, error) {
	role, ok := s[token]
	if !ok {
		return "", "", errors.New("bad token")
	}
	return "acct-" + token, role, nil
}

func newTestRouter(t *testing.T, ready error) http.Handler {
	t.Helper()
	controller := capture.NewController(capture.OpenerFunc(func(ctx context.Context) (capture.Device, error) {
		return nil, errors.New("no scanner")
	}), logger.Nop())
	events := scan.NewBroadcaster(4)
	orch := scan.NewOrchestrator(controller, nil, nil, events, scan.WithLogger(logger.Nop()))

	limiter := httpx.NewRateLimiter(100, 100)
	t.Cleanup(limiter.Stop)

	rt := &router{
		handlers: handlers{
			scan: scan.NewHTTPHandler(context.Background(), orch, events),
		},
		verifier:       stubVerifier{"lib": "librarian", "adm": "admin", "mem": "member", "new": ""},
		authLimiter:    limiter,
		ready:          func(context.Context) error { return ready },
		scannerPresent: func() bool { return false },
		log:            logger.Nop(),
	}
	return rt.handler()
}

func do(t *testing.T, h http.Handler, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	r := testutil.NewRequestWithAuth(method, path, nil, token)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestHealthRoutes(t *testing.T) {
	h := newTestRouter(t, nil)

	w := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/readyz", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/healthz/scanner", "").Code)

	down := newTestRouter(t, errors.New("db down"))
	assert.Equal(t, http.StatusServiceUnavailable, do(t, down, http.MethodGet, "/readyz", "").Code)
}

func TestScanRoutes_RequireScannerRole(t *testing.T) {
	h := newTestRouter(t, nil)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"bad token", "forged", http.StatusUnauthorized},
		{"member", "mem", http.StatusForbidden},
		{"no profile yet", "new", http.StatusForbidden},
		{"librarian", "lib", http.StatusNotFound},
		{"admin", "adm", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodGet, "/v1/scans/current", tt.token)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestScanRoutes_MethodAndPrefix(t *testing.T) {
	h := newTestRouter(t, nil)

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodDelete, "/v1/scans/current", "lib").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/scans/current", "lib").Code)
}

func TestAdminOnlyProfileRoute(t *testing.T) {
	h := newTestRouter(t, nil)
	w := do(t, h, http.MethodPut, "/v1/profiles/acct-2", "lib")
	require.Equal(t, http.StatusForbidden, w.Code)
	body := testutil.DecodeBody(t, w)
	assert.Equal(t, false, body["success"])
	errBody, ok := body["error"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "FORBIDDEN", errBody["code"])
}

func TestRedactDSN(t *testing.T) {
	assert.Equal(t, "postgres://***@localhost:5432/shelfscan", redactDSN("postgres://u:p@localhost:5432/shelfscan"))
	assert.Equal(t, "shelfscan.db", redactDSN("shelfscan.db"))
}
