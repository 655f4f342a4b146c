package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tokengate/auth-service/internal/auth"
	"github.com/tokengate/auth-service/internal/config"
	"github.com/tokengate/auth-service/internal/domain"
	"github.com/tokengate/auth-service/internal/events"
	"github.com/tokengate/auth-service/internal/repository"
	apperrors "github.com/tokengate/auth-service/pkg/util/errorutil"
)

const (
	MsgUserUpdated       = "User updated successfully"
	MsgEmailExists       = "Email already exists"
	MsgPasswordUnchanged = "New password must be different"
	MsgInvalidUserID     = "Invalid user id"
)

// IdentityInvalidator drops cached identity data after a user changes.
type IdentityInvalidator interface {
	Invalidate(ctx context.Context, username string) error
}

// UserUpdate carries optional changes; nil fields are left alone.
type UserUpdate struct {
	Email    *string
	Password *string
}

// UserService exposes the user directory.
type UserService struct {
	users       repository.UserRepository
	invalidator IdentityInvalidator
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	bcryptCost  int
}

// UserDependencies encapsulates requirements for the user service.
type UserDependencies struct {
	UserRepo    repository.UserRepository
	Invalidator IdentityInvalidator
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewUserService builds the service.
func NewUserService(cfg config.AuthConfig, deps UserDependencies) *UserService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		users:       deps.UserRepo,
		invalidator: deps.Invalidator,
		dispatcher:  deps.Dispatcher,
		logger:      logger,
		bcryptCost:  cfg.BcryptCost,
	}
}

// List returns every user, optionally restricted to one role.
func (s *UserService) List(ctx context.Context, role *domain.UserRole) ([]*domain.User, error) {
	if role != nil && !role.Valid() {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": string(*role)})
	}
	users, err := s.users.List(ctx, role)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return users, nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NewValidationError(MsgInvalidUserID, nil)
	}
	return s.lookup(s.users.GetByID(ctx, id))
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.lookup(s.users.GetByUsername(ctx, username))
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.lookup(s.users.GetByEmail(ctx, email))
}

func (s *UserService) lookup(user *domain.User, err error) (*domain.User, error) {
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("user")
		}
		return nil, apperrors.NewInternalError(err)
	}
	return user, nil
}

// Update changes a user's email and/or password.
func (s *UserService) Update(ctx context.Context, id string, upd UserUpdate) error {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	var payload events.UserUpdatedPayload

	if upd.Email != nil {
		email := strings.TrimSpace(*upd.Email)
		if email != "" && email != user.Email {
			taken, err := s.users.ExistsByEmail(ctx, email)
			if err != nil {
				return apperrors.NewInternalError(err)
			}
			if taken {
				return apperrors.NewValidationError(MsgEmailExists, nil)
			}
			user.Email = email
			payload.EmailChanged = true
		}
	}

	if upd.Password != nil && strings.TrimSpace(*upd.Password) != "" {
		if auth.ComparePassword(user.PasswordHash, *upd.Password) == nil {
			return apperrors.NewValidationError(MsgPasswordUnchanged, nil)
		}
		hash, err := auth.HashPassword(*upd.Password, s.bcryptCost)
		if err != nil {
			return apperrors.NewInternalError(err)
		}
		user.PasswordHash = hash
		payload.PasswordChanged = true
	}

	if !payload.EmailChanged && !payload.PasswordChanged {
		return nil
	}

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return apperrors.NewValidationError(MsgEmailExists, nil)
		}
		return apperrors.NewInternalError(err)
	}

	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx, user.Username); err != nil {
			s.logger.Warn("identity cache invalidation failed", zap.String("username", user.Username), zap.Error(err))
		}
	}

	publish(ctx, s.dispatcher, s.logger, events.NewEvent(events.EventUserUpdated, user.Username, payload))
	return nil
}
