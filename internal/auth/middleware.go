package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/tokengate/auth-service/internal/domain"
	"github.com/tokengate/auth-service/internal/repository"
)

const principalKey = "auth_principal"

type principalCtxKey struct{}

// Principal represents the authenticated caller.
type Principal struct {
	domain.Identity
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, p)
}

// PrincipalFromCtx retrieves the principal carried by ctx.
func PrincipalFromCtx(ctx context.Context) (*Principal, bool) {
	if ctx == nil {
		return nil, false
	}
	p, ok := ctx.Value(principalCtxKey{}).(*Principal)
	return p, ok && p != nil
}

// PrincipalFromContext retrieves the authenticated entity for the request.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	if p, ok := c.Locals(principalKey).(*Principal); ok && p != nil {
		return p, true
	}
	return PrincipalFromCtx(c.UserContext())
}

// AuthMiddleware resolves bearer access tokens into principals. It never rejects
// a request; protected routes add RequireAuthenticated or RequireRole.
type AuthMiddleware struct {
	tokens     *TokenManager
	identities repository.IdentityStore
	logger     *zap.Logger
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, identities repository.IdentityStore, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{tokens: tokens, identities: identities, logger: logger}
}

// Handle attaches the caller's principal when a valid access token is presented.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	token, ok := BearerToken(c.Get(fiber.HeaderAuthorization))
	if !ok {
		return c.Next()
	}

	claims, err := m.tokens.Decode(token)
	// refresh tokens only buy new tokens, never resource access
	if err != nil || claims.Kind != domain.TokenKindAccess {
		return c.Next()
	}
	username := claims.Username()

	identity, err := m.identities.LoadIdentity(c.UserContext(), username)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			m.logger.Warn("identity lookup failed", zap.String("username", username), zap.Error(err))
		}
		return c.Next()
	}

	if _, authenticated := PrincipalFromContext(c); authenticated {
		return c.Next()
	}

	if err := m.tokens.CheckClaims(claims, *identity); err != nil {
		m.logger.Debug("access token rejected", zap.String("username", username), zap.Error(err))
		return c.Next()
	}

	principal := &Principal{Identity: *identity}
	c.Locals(principalKey, principal)
	c.SetUserContext(WithPrincipal(c.UserContext(), principal))
	return c.Next()
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
