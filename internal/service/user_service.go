package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// UserStore is the persistence the user service needs
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
	UpdateUserProfile(ctx context.Context, id int64, name, image string) error
}

// SignInProfile is the identity provider's view of a user
type SignInProfile struct {
	Email string
	Name  string
	Image string
}

// UserService creates accounts on first sign-in
type UserService struct {
	store  UserStore
	logger *zap.Logger
}

// NewUserService creates a new user service
func NewUserService(store UserStore) *UserService {
	return &UserService{store: store, logger: util.GetLogger()}
}

// SignIn returns the account for the profile's email, creating it when needed.
// The first account ever created is ADMIN, every later one USER.
func (s *UserService) SignIn(ctx context.Context, p SignInProfile) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "UserService.SignIn")
	defer span.End()

	email := strings.ToLower(strings.TrimSpace(p.Email))
	if email == "" {
		return nil, apperr.MissingFields("email")
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if user.Name != p.Name || user.Image != p.Image {
			if err := s.store.UpdateUserProfile(ctx, user.ID, p.Name, p.Image); err != nil {
				s.logger.Warn("Failed to refresh user profile", zap.Int64("user_id", user.ID), zap.Error(err))
			} else {
				user.Name, user.Image = p.Name, p.Image
			}
		}
		util.SignInsTotal.WithLabelValues(string(user.Role)).Inc()
		return user, nil
	case !errors.Is(err, store.ErrNotFound):
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	user = &models.User{Email: email, Name: p.Name, Image: p.Image}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if !errors.Is(err, store.ErrDuplicate) {
			util.RecordError(span, err)
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		// a concurrent first sign-in with the same email won
		if user, err = s.store.GetUserByEmail(ctx, email); err != nil {
			return nil, fmt.Errorf("failed to look up user: %w", err)
		}
	} else {
		s.logger.Info("User created", zap.Int64("user_id", user.ID), zap.String("role", string(user.Role)))
	}

	util.SignInsTotal.WithLabelValues(string(user.Role)).Inc()
	return user, nil
}

// Get returns a user by id
func (s *UserService) Get(ctx context.Context, id int64) (*models.User, error) {
	u, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.NotFound, "user not found: %d", id)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}
