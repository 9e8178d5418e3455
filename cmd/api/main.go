package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"shelfscan/internal/auth"
	"shelfscan/internal/capture"
	"shelfscan/internal/catalog"
	"shelfscan/internal/config"
	"shelfscan/internal/httpx"
	"shelfscan/internal/logger"
	"shelfscan/internal/lookup"
	"shelfscan/internal/platform/openlibrary"
	"shelfscan/internal/profile"
	"shelfscan/internal/scan"
)

const (
	dbTimeout       = 3 * time.Second
	shutdownTimeout = 10 * time.Second
	pruneInterval   = time.Hour
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.RequireJWTSecret(); err != nil {
		return err
	}
	if cfg.DBDriver != config.DriverPostgres {
		return fmt.Errorf("api server requires DB_DRIVER=postgres, got %q", cfg.DBDriver)
	}
	policy, err := catalog.ParseDuplicatePolicy(cfg.DuplicatePolicy)
	if err != nil {
		return err
	}

	logger.Setup(logger.Config{Level: cfg.LogLevel, Format: logger.ParseLogFormat(cfg.LogFormat)})
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := openDB(ctx, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer dbPool.Close()
	log.Info("database connection OK", map[string]interface{}{"dsn": redactDSN(cfg.DBDSN)})

	profiles := profile.NewService(profile.NewPostgresRepo(dbPool, dbTimeout), log)
	accounts := auth.NewService(auth.NewPostgresRepo(dbPool, dbTimeout), profiles, cfg.JWTSecret, cfg.SessionTTL, log)
	writer := catalog.NewWriter(catalog.NewPostgresRepo(dbPool, dbTimeout), policy, log)

	olClient := openlibrary.NewClient(cfg.OpenLibraryUserAgent, cfg.OpenLibraryRPS,
		openlibrary.WithBaseURL(cfg.OpenLibraryBaseURL),
		openlibrary.WithTimeout(cfg.OpenLibraryTimeout))
	controller := capture.NewController(&capture.LineOpener{
		Path:    cfg.ScannerDevice,
		LockDir: cfg.ScannerLockDir,
	}, log)

	events := scan.NewBroadcaster(32)
	orch := scan.NewOrchestrator(controller, lookup.NewClient(olClient, log), writer, events,
		scan.WithLogger(log),
		scan.WithRetryPolicy(scan.RetryPolicy{LookupAttempts: cfg.LookupAttempts, Backoff: cfg.LookupBackoff}))

	hotplug := capture.NewHotplugWatcher(cfg.ScannerDevice, log)
	if err := hotplug.Start(ctx); err != nil {
		return err
	}
	defer hotplug.Stop()

	authLimiter := httpx.NewRateLimiter(5, 10)
	defer authLimiter.Stop()

	go pruneRevoked(ctx, accounts)

	rt := &router{
		handlers: handlers{
			auth:    auth.NewHTTPHandler(accounts),
			profile: profile.NewHTTPHandler(profiles),
			catalog: catalog.NewHTTPHandler(writer),
			scan:    scan.NewHTTPHandler(ctx, orch, events),
		},
		verifier:       accounts,
		authLimiter:    authLimiter,
		ready:          dbPool.Ping,
		scannerPresent: hotplug.Present,
		log:            log,
		enableHSTS:     os.Getenv("ENABLE_HSTS") == "true",
	}

	// WriteTimeout stays unset: /v1/scans/events is a long-lived stream.
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           rt.handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", map[string]interface{}{"addr": cfg.Addr})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	orch.Cancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func pruneRevoked(ctx context.Context, accounts *auth.Service) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = accounts.PruneRevoked(ctx)
		}
	}
}

func openDB(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot create db pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("cannot ping database (%s): %w", redactDSN(dsn), err)
	}
	return pool, nil
}

func redactDSN(dsn string) string {
	const marker = "://"
	start := strings.Index(dsn, marker)
	if start < 0 {
		return dsn
	}
	start += len(marker)
	end := strings.Index(dsn[start:], "@")
	if end < 0 {
		return dsn
	}
	return dsn[:start] + "***" + dsn[start+end:]
}
