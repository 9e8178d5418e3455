package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"shelfscan/internal/auth"
	"shelfscan/internal/barcode"
	"shelfscan/internal/catalog"
	"shelfscan/internal/config"
	"shelfscan/internal/logger"
	"shelfscan/internal/lookup"
	"shelfscan/internal/platform/openlibrary"
	"shelfscan/internal/profile"
)

const dbTimeout = 5 * time.Second

func main() {
	var (
		email = flag.String("email", "", "Account email to create or reuse")
		name  = flag.String("name", "Station Librarian", "Display name for the profile")
		role  = flag.String("role", "librarian", "Profile role: admin, librarian, member")
		isbns = flag.String("isbns", "", "Comma-separated ISBNs to look up and add to the catalog")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger.Setup(logger.Config{Level: cfg.LogLevel, Format: logger.ParseLogFormat(cfg.LogFormat)})
	log := logger.Get().WithComponent("seed")

	if err := run(context.Background(), cfg, log, *email, *name, *role, *isbns); err != nil {
		log.Error("seed failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *logger.Logger, email, name, role, isbns string) error {
	if cfg.DBDriver != config.DriverPostgres {
		return fmt.Errorf("seed requires DB_DRIVER=postgres, got %q", cfg.DBDriver)
	}
	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	if email != "" {
		if err := cfg.RequireJWTSecret(); err != nil {
			return err
		}
		profiles := profile.NewService(profile.NewPostgresRepo(pool, dbTimeout), log)
		accounts := auth.NewService(auth.NewPostgresRepo(pool, dbTimeout), profiles, cfg.JWTSecret, cfg.SessionTTL, log)
		userID, err := seedAccount(ctx, accounts, profiles, email, os.Getenv("SEED_PASSWORD"), name, role)
		if err != nil {
			return err
		}
		log.Info("account ready", map[string]interface{}{"user_id": userID, "email": email, "role": role})
	}

	if isbns != "" {
		policy, err := catalog.ParseDuplicatePolicy(cfg.DuplicatePolicy)
		if err != nil {
			return err
		}
		olClient := openlibrary.NewClient(cfg.OpenLibraryUserAgent, cfg.OpenLibraryRPS,
			openlibrary.WithBaseURL(cfg.OpenLibraryBaseURL),
			openlibrary.WithTimeout(cfg.OpenLibraryTimeout))
		writer := catalog.NewWriter(catalog.NewPostgresRepo(pool, dbTimeout), policy, log)
		added := seedCatalog(ctx, lookup.NewClient(olClient, log), writer, log, strings.Split(isbns, ","))
		log.Info("catalog seeded", map[string]interface{}{"added": added})
	}
	return nil
}

// seedAccount creates the account, or reuses it when the password matches,
// and stores its profile with the given role.
func seedAccount(ctx context.Context, accounts *auth.Service, profiles *profile.Service, email, password, name, role string) (string, error) {
	if password == "" {
		return "", errors.New("SEED_PASSWORD is required to seed an account")
	}

	sess, err := accounts.CreateAccount(ctx, email, password)
	if errors.Is(err, auth.ErrAccountExists) {
		sess, err = accounts.SignIn(ctx, email, password)
	}
	if err != nil {
		return "", err
	}

	_, err = profiles.SetProfile(ctx, sess.UserID, profile.Profile{
		Role:    profile.Role(role),
		Display: profile.DisplayFields{Name: name, Email: email},
	})
	if err != nil {
		return "", err
	}
	return sess.UserID, nil
}

type bookLooker interface {
	Lookup(ctx context.Context, id barcode.Identifier) (catalog.BookRecord, error)
}

type bookSaver interface {
	Save(ctx context.Context, rec catalog.BookRecord) (catalog.Entry, error)
}

func seedCatalog(ctx context.Context, looker bookLooker, saver bookSaver, log *logger.Logger, isbns []string) int {
	added := 0
	for _, raw := range isbns {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := barcode.ParseIdentifier(raw)
		if err != nil {
			log.Warn("skipping invalid isbn", map[string]interface{}{"isbn": raw, "error": err.Error()})
			continue
		}
		rec, err := looker.Lookup(ctx, id)
		if err != nil {
			log.Warn("lookup failed", map[string]interface{}{"isbn": id.String(), "kind": string(lookup.KindOf(err))})
			continue
		}
		if _, err := saver.Save(ctx, rec); err != nil {
			log.Warn("save failed", map[string]interface{}{"isbn": id.String(), "error": err.Error()})
			continue
		}
		added++
	}
	return added
}
