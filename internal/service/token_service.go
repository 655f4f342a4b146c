package service

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/tokengate/auth-service/internal/auth"
	"github.com/tokengate/auth-service/internal/domain"
	"github.com/tokengate/auth-service/internal/events"
	"github.com/tokengate/auth-service/internal/repository"
)

const (
	MsgTokenRefreshed    = "Token refreshed successful!"
	MsgTokenInvalidBang  = "Token is invalid!"
	MsgTokenRefreshError = "Token refresh failed"
	MsgTokenValid        = "Token is valid"
	MsgTokenInvalid      = "Token is invalid"
)

// RefreshResult is the outcome of a refresh exchange.
type RefreshResult struct {
	Status  int
	Token   string
	Message string
}

// ValidateResult is the outcome of a validate exchange.
type ValidateResult struct {
	Status  int
	Valid   bool
	Message string
}

// TokenService implements the refresh and validate exchanges.
type TokenService struct {
	tokens     *auth.TokenManager
	identities repository.IdentityStore
	dispatcher events.Dispatcher
	logger     *zap.Logger
	permissive bool
}

// TokenServiceOptions configures a TokenService.
type TokenServiceOptions struct {
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	// PermissiveRefresh accepts a refresh token whose subject does not match
	// the resolved identity.
	PermissiveRefresh bool
}

// NewTokenService builds the service.
func NewTokenService(tokens *auth.TokenManager, identities repository.IdentityStore, opts TokenServiceOptions) *TokenService {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenService{
		tokens:     tokens,
		identities: identities,
		dispatcher: opts.Dispatcher,
		logger:     logger,
		permissive: opts.PermissiveRefresh,
	}
}

type resolution struct {
	identity domain.Identity
	claims   *auth.Claims
	ok       bool
}

// resolve decodes the token and loads the identity named by its subject.
func (s *TokenService) resolve(ctx context.Context, token string) resolution {
	if strings.TrimSpace(token) == "" {
		return resolution{}
	}
	claims, err := s.tokens.Decode(token)
	if err != nil || !claims.Kind.Valid() {
		return resolution{}
	}
	identity, err := s.identities.LoadIdentity(ctx, claims.Username())
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("identity lookup failed", zap.String("username", claims.Username()), zap.Error(err))
		}
		return resolution{}
	}
	return resolution{identity: *identity, claims: claims, ok: true}
}

// Refresh returns a new token of the requested kind when token has expired,
// or token itself while it is still live.
func (s *TokenService) Refresh(ctx context.Context, token, requestedKind string) RefreshResult {
	rejected := RefreshResult{Status: http.StatusUnauthorized, Token: token, Message: MsgTokenInvalidBang}

	res := s.resolve(ctx, token)
	if !res.ok {
		return rejected
	}

	subjectOK := res.claims.Username() == res.identity.Username
	if s.permissive {
		if !subjectOK && res.claims.Kind != domain.TokenKindRefresh {
			return rejected
		}
	} else if !subjectOK {
		return rejected
	}

	if !s.tokens.IsExpired(token) {
		return RefreshResult{Status: http.StatusOK, Token: token, Message: MsgTokenRefreshed}
	}

	kind := domain.ParseTokenKind(requestedKind)
	fresh, err := s.tokens.Issue(res.identity, kind)
	if err != nil {
		s.logger.Error("token issue failed", zap.String("username", res.identity.Username), zap.Error(err))
		return RefreshResult{Status: http.StatusInternalServerError, Token: token, Message: MsgTokenRefreshError}
	}

	expiresAt, _ := s.tokens.ExtractExpiration(fresh)
	publish(ctx, s.dispatcher, s.logger, events.NewEvent(events.EventTokenRefreshed, res.identity.Username,
		events.TokenRefreshedPayload{Kind: kind, ExpiresAt: expiresAt}))

	return RefreshResult{Status: http.StatusOK, Token: fresh, Message: MsgTokenRefreshed}
}

// Validate reports whether token is live and belongs to a known identity.
func (s *TokenService) Validate(ctx context.Context, token string) ValidateResult {
	res := s.resolve(ctx, token)
	if !res.ok {
		return ValidateResult{Status: http.StatusUnauthorized, Valid: false, Message: MsgTokenInvalid}
	}

	valid := s.tokens.IsValid(token, res.identity)
	msg := MsgTokenInvalid
	if valid {
		msg = MsgTokenValid
	}
	return ValidateResult{Status: http.StatusOK, Valid: valid, Message: msg}
}
