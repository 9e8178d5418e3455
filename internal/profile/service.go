package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"shelfscan/internal/logger"
)

type Service struct {
	repo     Repository
	validate *validator.Validate
	log      *logger.Logger
}

func NewService(repo Repository, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Get()
	}
	return &Service{
		repo:     repo,
		validate: validator.New(),
		log:      log.WithComponent("profile"),
	}
}

func (s *Service) GetProfile(ctx context.Context, userID string) (Profile, error) {
	return s.repo.Get(ctx, userID)
}

// SetProfile validates and stores p for userID, replacing any existing profile.
func (s *Service) SetProfile(ctx context.Context, userID string, p Profile) (Profile, error) {
	p.UserID = userID
	p.Display.Name = strings.TrimSpace(p.Display.Name)
	p.Display.Email = strings.TrimSpace(p.Display.Email)
	if p.Role != "" {
		role, err := ParseRole(string(p.Role))
		if err != nil {
			return Profile{}, err
		}
		p.Role = role
	}

	if err := s.validate.Struct(p); err != nil {
		return Profile{}, fmt.Errorf("invalid profile: %w", err)
	}

	saved, err := s.repo.Upsert(ctx, p)
	if err != nil {
		return Profile{}, err
	}
	s.log.Info("profile stored", map[string]interface{}{"user_id": userID, "role": string(saved.Role)})
	return saved, nil
}

// UpdateOwn is SetProfile for the account itself. The role can be chosen once,
// when the first profile is stored; later changes keep the stored role unless
// it is repeated unchanged.
func (s *Service) UpdateOwn(ctx context.Context, userID string, p Profile) (Profile, error) {
	current, err := s.repo.Get(ctx, userID)
	switch {
	case errors.Is(err, ErrNotFound):
		return s.SetProfile(ctx, userID, p)
	case err != nil:
		return Profile{}, err
	}

	if p.Role == "" {
		p.Role = current.Role
	}
	role, err := ParseRole(string(p.Role))
	if err != nil {
		return Profile{}, err
	}
	if role != current.Role {
		return Profile{}, ErrRoleChange
	}
	return s.SetProfile(ctx, userID, p)
}

// RoleOf returns the stored role as a string.
func (s *Service) RoleOf(ctx context.Context, userID string) (string, error) {
	p, err := s.repo.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	return string(p.Role), nil
}

// Authorize checks that the stored role for userID is role.
func (s *Service) Authorize(ctx context.Context, userID, role string) error {
	want, err := ParseRole(role)
	if err != nil {
		return err
	}
	p, err := s.repo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if p.Role != want {
		s.log.Warn("role mismatch at sign-in", map[string]interface{}{
			"user_id": userID,
			"stored":  string(p.Role),
			"wanted":  string(want),
		})
		return ErrRoleMismatch
	}
	return nil
}

// IsValidation reports whether err came from field validation.
func IsValidation(err error) bool {
	var verrs validator.ValidationErrors
	return errors.As(err, &verrs) || errors.Is(err, ErrInvalidRole)
}
