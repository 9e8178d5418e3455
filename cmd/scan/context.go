package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"shelfscan/internal/auth"
	"shelfscan/internal/capture"
	"shelfscan/internal/catalog"
	"shelfscan/internal/config"
	"shelfscan/internal/logger"
	"shelfscan/internal/lookup"
	"shelfscan/internal/platform/openlibrary"
	"shelfscan/internal/presenter"
	"shelfscan/internal/profile"
	"shelfscan/internal/scan"
)

const (
	passwordEnv = "SHELFSCAN_PASSWORD"
	dbTimeout   = 3 * time.Second
)

var errCannotScan = errors.New("your role cannot scan books")

type stationOptions struct {
	email  string
	role   string
	device string
}

type commandContext struct {
	opts *stationOptions

	configOnce sync.Once
	config     config.Config
	configErr  error
}

func newCommandContext(opts *stationOptions) *commandContext {
	return &commandContext{opts: opts}
}

func (c *commandContext) ensureConfig() (config.Config, error) {
	c.configOnce.Do(func() {
		c.config, c.configErr = config.Load()
	})
	return c.config, c.configErr
}

// station is everything one scan command needs, opened against the
// configured catalog backend.
type station struct {
	orch      *scan.Orchestrator
	events    *scan.ChannelSink
	writer    *catalog.Writer
	presenter *presenter.Presenter
	role      profile.Role
	log       *logger.Logger

	closers []func()
}

func (s *station) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func (c *commandContext) openStation(cmd *cobra.Command) (*station, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	policy, err := catalog.ParseDuplicatePolicy(cfg.DuplicatePolicy)
	if err != nil {
		return nil, err
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: logger.ParseLogFormat(cfg.LogFormat),
		Output: cmd.ErrOrStderr(),
	})
	st := &station{log: log}

	ctx := cmd.Context()
	var repo catalog.Repository
	switch cfg.DBDriver {
	case config.DriverSQLite:
		sqliteRepo, err := catalog.OpenSQLite(cfg.DBDSN)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, func() { _ = sqliteRepo.Close() })
		repo = sqliteRepo

		role, err := profile.ParseRole(c.opts.role)
		if err != nil {
			st.Close()
			return nil, err
		}
		st.role = role
	default:
		pool, err := pgxpool.New(ctx, cfg.DBDSN)
		if err != nil {
			return nil, fmt.Errorf("cannot create db pool: %w", err)
		}
		st.closers = append(st.closers, pool.Close)
		repo = catalog.NewPostgresRepo(pool, dbTimeout)

		role, err := c.signIn(ctx, cfg, pool, log)
		if err != nil {
			st.Close()
			return nil, err
		}
		st.role = role
	}

	st.presenter = presenter.New(cmd.OutOrStdout(), st.role)
	fmt.Fprintln(cmd.OutOrStdout(), presenter.Welcome(st.role))
	if !st.role.CanScan() {
		st.Close()
		return nil, errCannotScan
	}

	device := cfg.ScannerDevice
	if c.opts.device != "" {
		device = c.opts.device
	}
	opener := &capture.LineOpener{Path: device, LockDir: cfg.ScannerLockDir}
	if device == capture.StdinPath {
		opener.Stdin = cmd.InOrStdin()
	}

	olClient := openlibrary.NewClient(cfg.OpenLibraryUserAgent, cfg.OpenLibraryRPS,
		openlibrary.WithBaseURL(cfg.OpenLibraryBaseURL),
		openlibrary.WithTimeout(cfg.OpenLibraryTimeout))

	st.writer = catalog.NewWriter(repo, policy, log)
	st.events = scan.NewChannelSink(16)
	st.orch = scan.NewOrchestrator(
		capture.NewController(opener, log),
		lookup.NewClient(olClient, log),
		st.writer,
		st.events,
		scan.WithLogger(log),
		scan.WithRetryPolicy(scan.RetryPolicy{LookupAttempts: cfg.LookupAttempts, Backoff: cfg.LookupBackoff}),
	)
	return st, nil
}

func (c *commandContext) signIn(ctx context.Context, cfg config.Config, pool *pgxpool.Pool, log *logger.Logger) (profile.Role, error) {
	email := strings.TrimSpace(c.opts.email)
	password := os.Getenv(passwordEnv)
	if email == "" || password == "" {
		return "", fmt.Errorf("sign in with --email and %s", passwordEnv)
	}
	if err := cfg.RequireJWTSecret(); err != nil {
		return "", err
	}

	profiles := profile.NewService(profile.NewPostgresRepo(pool, dbTimeout), log)
	accounts := auth.NewService(auth.NewPostgresRepo(pool, dbTimeout), profiles, cfg.JWTSecret, cfg.SessionTTL, log)
	sess, err := accounts.SignIn(ctx, email, password)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			return "", errors.New("invalid email or password")
		}
		return "", err
	}
	if sess.Role == "" {
		return "", errors.New("no profile for this account; ask an admin to assign a role")
	}
	return profile.ParseRole(sess.Role)
}

// follow renders events for s until it finishes, then returns its outcome.
func (st *station) follow(ctx context.Context, s *scan.Session) (scan.Result, error) {
	for {
		select {
		case ev := <-st.events.Events():
			_ = st.presenter.Render(ev)
		case <-s.Done():
			st.drain()
			return s.Wait(ctx)
		}
	}
}

func (st *station) drain() {
	for {
		select {
		case ev := <-st.events.Events():
			_ = st.presenter.Render(ev)
		default:
			return
		}
	}
}
