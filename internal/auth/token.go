package auth

import (
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/tokengate/auth-service/internal/domain"
)

const (
	DefaultAccessTTL  = 5 * time.Minute
	DefaultRefreshTTL = 15 * time.Minute
)

// TokenManager handles issuing and inspecting access and refresh tokens.
type TokenManager struct {
	codec      *Codec
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// Option customizes a TokenManager.
type Option func(*TokenManager)

// WithClock overrides the wall clock used for issuing and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(tm *TokenManager) {
		if now != nil {
			tm.now = now
		}
	}
}

// NewTokenManager builds a new manager. Non-positive TTLs fall back to the defaults.
func NewTokenManager(secret []byte, accessTTL, refreshTTL time.Duration, opts ...Option) *TokenManager {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	tm := &TokenManager{
		codec:      NewCodec(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(tm)
	}
	return tm
}

// IssueAccessToken mints a short-lived access token for the identity.
func (tm *TokenManager) IssueAccessToken(identity domain.Identity) (string, error) {
	return tm.issue(identity, domain.TokenKindAccess, tm.accessTTL)
}

// IssueRefreshToken mints a refresh token for the identity.
func (tm *TokenManager) IssueRefreshToken(identity domain.Identity) (string, error) {
	return tm.issue(identity, domain.TokenKindRefresh, tm.refreshTTL)
}

// Issue mints a token of the given kind.
func (tm *TokenManager) Issue(identity domain.Identity, kind domain.TokenKind) (string, error) {
	switch kind {
	case domain.TokenKindAccess:
		return tm.IssueAccessToken(identity)
	case domain.TokenKindRefresh:
		return tm.IssueRefreshToken(identity)
	}
	return "", ErrClaimsMalformed
}

func (tm *TokenManager) issue(identity domain.Identity, kind domain.TokenKind, ttl time.Duration) (string, error) {
	now := tm.now()
	return tm.codec.Sign(Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
}

// Decode verifies the token and returns its claims without checking expiry.
func (tm *TokenManager) Decode(token string) (*Claims, error) {
	return tm.codec.Verify(token)
}

// ExtractUsername returns the token subject.
func (tm *TokenManager) ExtractUsername(token string) (string, error) {
	claims, err := tm.codec.Verify(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// ExtractExpiration returns the token's expires-at.
func (tm *TokenManager) ExtractExpiration(token string) (time.Time, error) {
	claims, err := tm.codec.Verify(token)
	if err != nil {
		return time.Time{}, err
	}
	return claims.Expiry(), nil
}

// Kind classifies the token. ok is false when the token does not verify.
func (tm *TokenManager) Kind(token string) (kind domain.TokenKind, ok bool) {
	claims, err := tm.codec.Verify(token)
	if err != nil {
		return "", false
	}
	return claims.Kind, true
}

// IsAccessToken reports whether the token verifies and is an access token.
func (tm *TokenManager) IsAccessToken(token string) bool {
	kind, ok := tm.Kind(token)
	return ok && kind == domain.TokenKindAccess
}

// IsRefreshToken reports whether the token verifies and is a refresh token.
func (tm *TokenManager) IsRefreshToken(token string) bool {
	kind, ok := tm.Kind(token)
	return ok && kind == domain.TokenKindRefresh
}

// IsExpired reports whether the token is past its expiry. Undecodable tokens count as expired.
func (tm *TokenManager) IsExpired(token string) bool {
	claims, err := tm.codec.Verify(token)
	if err != nil {
		return true
	}
	return tm.expired(claims)
}

// IsSubjectValid reports whether the token subject is the identity's username.
func (tm *TokenManager) IsSubjectValid(token string, identity domain.Identity) bool {
	claims, err := tm.codec.Verify(token)
	return err == nil && claims.Subject == identity.Username
}

// IsValid reports whether the token belongs to identity and has not expired.
func (tm *TokenManager) IsValid(token string, identity domain.Identity) bool {
	return tm.Check(token, identity) == nil
}

// Check returns the reason token is not valid for identity, or nil.
func (tm *TokenManager) Check(token string, identity domain.Identity) error {
	claims, err := tm.codec.Verify(token)
	if err != nil {
		return err
	}
	return tm.CheckClaims(claims, identity)
}

// CheckClaims is Check for claims that were already decoded.
func (tm *TokenManager) CheckClaims(claims *Claims, identity domain.Identity) error {
	if claims.Subject != identity.Username {
		return ErrSubjectMismatch
	}
	if tm.expired(claims) {
		return ErrTokenExpired
	}
	return nil
}

// CheckKind returns ErrKindMismatch unless the token verifies and is of kind want.
func (tm *TokenManager) CheckKind(token string, want domain.TokenKind) error {
	claims, err := tm.codec.Verify(token)
	if err != nil {
		return err
	}
	if claims.Kind != want {
		return ErrKindMismatch
	}
	return nil
}

func (tm *TokenManager) expired(c *Claims) bool {
	return tm.now().After(c.Expiry())
}

// Now exposes the manager's clock.
func (tm *TokenManager) Now() time.Time {
	return tm.now()
}
