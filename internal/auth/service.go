package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shelfscan/internal/logger"
)

// RoleSource resolves the role stored in an account's profile.
type RoleSource interface {
	RoleOf(ctx context.Context, userID string) (string, error)
	Authorize(ctx context.Context, userID, role string) error
}

type Service struct {
	repo   Repository
	roles  RoleSource
	secret string
	ttl    time.Duration
	log    *logger.Logger
}

func NewService(repo Repository, roles RoleSource, secret string, ttl time.Duration, log *logger.Logger) *Service {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	if log == nil {
		log = logger.Get()
	}
	return &Service{
		repo:   repo,
		roles:  roles,
		secret: secret,
		ttl:    ttl,
		log:    log.WithComponent("auth"),
	}
}

// CreateAccount registers a new account and signs it in. The account has no
// role until a profile is stored for it.
func (s *Service) CreateAccount(ctx context.Context, email, password string) (Session, error) {
	email = normalizeEmail(email)
	if err := ValidatePasswordStrength(password); err != nil {
		return Session{}, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return Session{}, err
	}

	acct, err := s.repo.Create(ctx, email, hash)
	if err != nil {
		return Session{}, err
	}
	s.log.Info("account created", map[string]interface{}{"user_id": acct.ID})
	return s.issue(acct, "")
}

// SignIn checks the credentials and issues a session carrying the account's
// profile role.
func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	acct, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, ErrUnauthorized
		}
		return Session{}, err
	}
	if !VerifyPassword(acct.PasswordHash, password) {
		return Session{}, ErrUnauthorized
	}

	role, err := s.roles.RoleOf(ctx, acct.ID)
	if err != nil {
		// accounts without a profile may still sign in, with no role
		s.log.Debug("no role for account", map[string]interface{}{"user_id": acct.ID, "error": err.Error()})
		role = ""
	}
	return s.issue(acct, role)
}

// SignInAs is SignIn for a caller that picked a role up front. The pick must
// match the stored role.
func (s *Service) SignInAs(ctx context.Context, email, password, role string) (Session, error) {
	sess, err := s.SignIn(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	if err := s.roles.Authorize(ctx, sess.UserID, role); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrRoleMismatch, err)
	}
	return sess, nil
}

// SignOut revokes the token until it would have expired anyway.
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := ParseToken(s.secret, token)
	if err != nil {
		return ErrUnauthorized
	}
	expiresAt := time.Now().Add(s.ttl)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	return s.repo.RevokeToken(ctx, claims.ID, claims.Sub, expiresAt)
}

// VerifyToken validates a bearer token for the HTTP middleware.
func (s *Service) VerifyToken(ctx context.Context, token string) (string, string, error) {
	claims, err := ParseToken(s.secret, token)
	if err != nil {
		return "", "", ErrUnauthorized
	}
	revoked, err := s.repo.IsRevoked(ctx, claims.ID)
	if err != nil {
		return "", "", err
	}
	if revoked {
		return "", "", ErrUnauthorized
	}
	return claims.Sub, claims.Role, nil
}

// PruneRevoked drops revocations whose tokens have expired on their own.
func (s *Service) PruneRevoked(ctx context.Context) error {
	if err := s.repo.CleanupRevoked(ctx); err != nil {
		s.log.Warn("revoked token cleanup failed", map[string]interface{}{"error": err.Error()})
		return err
	}
	return nil
}

func (s *Service) issue(acct Account, role string) (Session, error) {
	token, _, err := GenerateToken(s.secret, acct.ID, acct.Email, role, s.ttl)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		UserID:    acct.ID,
		Email:     acct.Email,
		Role:      role,
		ExpiresAt: time.Now().Add(s.ttl),
	}, nil
}
