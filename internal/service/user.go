package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/set-night/chatapp/internal/config"
	"github.com/set-night/chatapp/internal/domain"
)

type UserRepository interface {
	Get(ctx context.Context, id string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	TouchLastLogin(ctx context.Context, id string) error
}

type UserService struct {
	users         UserRepository
	defaultUserID string
}

func NewUserService(users UserRepository, defaultUserID string) *UserService {
	return &UserService{users: users, defaultUserID: defaultUserID}
}

func (s *UserService) DefaultUserID() string { return s.defaultUserID }

// EnsureDefault creates the default user on first start.
func (s *UserService) EnsureDefault(ctx context.Context) (*domain.User, error) {
	u, created, err := s.findOrCreate(ctx, s.defaultUserID, config.DefaultUserEmail, config.DefaultUserName)
	if err != nil {
		return nil, err
	}
	if created {
		slog.Info("default user created", "user_id", u.ID)
	}
	return u, nil
}

// FindOrCreate returns the user with the given id, creating a bare record for
// ids seen for the first time. An empty id resolves to the default user.
func (s *UserService) FindOrCreate(ctx context.Context, id string) (*domain.User, error) {
	if id == "" || id == s.defaultUserID {
		return s.EnsureDefault(ctx)
	}
	u, _, err := s.findOrCreate(ctx, id, "", id)
	return u, err
}

func (s *UserService) findOrCreate(ctx context.Context, id, email, name string) (*domain.User, bool, error) {
	// Try to find existing user
	u, err := s.users.Get(ctx, id)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, false, fmt.Errorf("get user: %w", err)
	}

	u = &domain.User{ID: id, Email: email, Name: name, Preferences: map[string]any{}}
	if err := s.users.Create(ctx, u); err != nil {
		// Lost a race with a concurrent request for the same id.
		if existing, getErr := s.users.Get(ctx, id); getErr == nil {
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("create user: %w", err)
	}
	return u, true, nil
}

func (s *UserService) Touch(ctx context.Context, id string) {
	if err := s.users.TouchLastLogin(ctx, id); err != nil {
		slog.Error("update last login", "error", err, "user_id", id)
	}
}
