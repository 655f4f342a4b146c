package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/tokengate/auth-service/internal/auth"
	"github.com/tokengate/auth-service/internal/config"
	"github.com/tokengate/auth-service/internal/domain"
	"github.com/tokengate/auth-service/internal/events"
	"github.com/tokengate/auth-service/internal/repository"
	apperrors "github.com/tokengate/auth-service/pkg/util/errorutil"
)

const (
	MsgUserRegistered   = "User registered successfully!"
	MsgUserExists       = "User already exists!"
	MsgEmailTaken       = "Email is already taken!"
	MsgLoginSuccessful  = "User login successful!"
	MsgInvalidLogin     = "Invalid username or password"
	MsgRegisterRequired = "Username and password are required"
)

// AuthService coordinates registration and login flows.
type AuthService struct {
	users      repository.UserRepository
	tokens     *auth.TokenManager
	dispatcher events.Dispatcher
	logger     *zap.Logger
	bcryptCost int
}

// AuthDependencies encapsulates requirements for the auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	Tokens     *auth.TokenManager
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      deps.UserRepo,
		tokens:     deps.Tokens,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		bcryptCost: cfg.BcryptCost,
	}
}

// Register creates a new account with the USER role.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || password == "" {
		return nil, apperrors.NewValidationError(MsgRegisterRequired, nil)
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, apperrors.NewConflict(MsgUserExists)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewInternalError(err)
	}

	if email != "" {
		taken, err := s.users.ExistsByEmail(ctx, email)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		if taken {
			return nil, apperrors.NewConflict(MsgEmailTaken)
		}
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.UserRoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict(MsgUserExists)
		}
		return nil, apperrors.NewInternalError(err)
	}

	publish(ctx, s.dispatcher, s.logger, events.NewEvent(events.EventUserRegistered, user.Username, nil))
	return user, nil
}

// Login verifies credentials and returns a refresh token.
//
// Only a refresh token is issued here; clients exchange it for an access token
// through the refresh endpoint.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", apperrors.NewValidationError(MsgInvalidLogin, nil)
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.loginFailed(ctx, username, "unknown user")
			return "", apperrors.NewNotFound("user")
		}
		return "", apperrors.NewInternalError(err)
	}

	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		s.loginFailed(ctx, username, "bad password")
		return "", apperrors.NewUnauthorized(MsgInvalidLogin)
	}

	token, err := s.tokens.IssueRefreshToken(user.Identity())
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}

	publish(ctx, s.dispatcher, s.logger, events.NewEvent(events.EventUserLoggedIn, user.Username, nil))
	return token, nil
}

func (s *AuthService) loginFailed(ctx context.Context, username, reason string) {
	publish(ctx, s.dispatcher, s.logger, events.NewEvent(events.EventLoginFailed, username,
		events.LoginFailedPayload{Reason: reason}))
}
