package main

import (
	"context"
	"net/http"
	"time"

	"shelfscan/internal/auth"
	"shelfscan/internal/catalog"
	"shelfscan/internal/httpx"
	"shelfscan/internal/logger"
	"shelfscan/internal/profile"
	"shelfscan/internal/scan"
)

const maxRequestBytes = 1 << 20

type handlers struct {
	auth    *auth.HTTPHandler
	profile *profile.HTTPHandler
	catalog *catalog.HTTPHandler
	scan    *scan.HTTPHandler
}

type router struct {
	handlers
	verifier       httpx.TokenVerifier
	authLimiter    *httpx.RateLimiter
	ready          func(ctx context.Context) error
	scannerPresent func() bool
	log            *logger.Logger
	enableHSTS     bool
}

func (rt *router) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := rt.ready(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	mux.HandleFunc("GET /healthz/scanner", func(w http.ResponseWriter, r *http.Request) {
		if !rt.scannerPresent() {
			http.Error(w, "scanner not present", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("present"))
	})

	limited := func(h http.HandlerFunc) http.Handler {
		return rt.authLimiter.Middleware(h)
	}
	mux.Handle("POST /v1/auth/signup", limited(rt.auth.Signup))
	mux.Handle("POST /v1/auth/login", limited(rt.auth.Login))

	signedIn := func(h http.HandlerFunc) http.Handler {
		return httpx.AuthMiddleware(rt.verifier)(h)
	}
	withRole := func(h http.HandlerFunc, roles ...string) http.Handler {
		return httpx.Chain(h, httpx.AuthMiddleware(rt.verifier), httpx.RequireRole(roles...))
	}
	scanners := []string{string(profile.RoleLibrarian), string(profile.RoleAdmin)}

	mux.Handle("POST /v1/auth/logout", signedIn(rt.auth.Logout))
	mux.Handle("GET /v1/me", signedIn(rt.profile.GetOwnProfile))
	mux.Handle("PUT /v1/me/profile", signedIn(rt.profile.UpdateOwnProfile))
	mux.Handle("PUT /v1/profiles/{id}", withRole(rt.profile.SetProfile, string(profile.RoleAdmin)))

	mux.Handle("GET /v1/catalog/recent", withRole(rt.catalog.Recent, scanners...))

	mux.Handle("POST /v1/scans", withRole(rt.scan.Start, scanners...))
	mux.Handle("POST /v1/scans/manual", withRole(rt.scan.Manual, scanners...))
	mux.Handle("POST /v1/scans/cancel", withRole(rt.scan.Cancel, scanners...))
	mux.Handle("GET /v1/scans/current", withRole(rt.scan.Current, scanners...))
	mux.Handle("GET /v1/scans/events", withRole(rt.scan.Events, scanners...))

	return httpx.Chain(mux,
		httpx.RecoveryMiddleware(rt.log),
		httpx.RequestIDMiddleware,
		httpx.AccessLogMiddleware(rt.log),
		httpx.SecurityHeadersMiddleware(rt.enableHSTS),
		httpx.RequestSizeLimitMiddleware(maxRequestBytes),
	)
}
