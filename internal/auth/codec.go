package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/tokengate/auth-service/internal/domain"
)

// Claims is the signed token payload.
type Claims struct {
	Kind domain.TokenKind `json:"type"`
	jwt.RegisteredClaims
}

// Username returns the token subject.
func (c *Claims) Username() string {
	return c.Subject
}

// Expiry returns the expires-at instant.
func (c *Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Codec signs and verifies HS256 tokens with one process-wide key.
type Codec struct {
	key    []byte
	parser *jwt.Parser
}

// NewCodec builds a codec around the given key. The key is copied.
func NewCodec(key []byte) *Codec {
	k := make([]byte, len(key))
	copy(k, key)
	return &Codec{
		key: k,
		// Expiry is the validator's concern; expired tokens must still decode.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
			// reject non-canonical base64 so trailing signature bits cannot be edited
			jwt.WithStrictDecoding(),
		),
	}
}

// Sign encodes the claims and signs them.
func (c *Codec) Sign(claims Claims) (string, error) {
	if err := checkClaims(&claims); err != nil {
		return "", err
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	signed, err := token.SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and structure of tokenStr and returns its claims.
func (c *Codec) Verify(tokenStr string) (*Claims, error) {
	parsed, err := c.parser.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return c.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, ErrSignatureInvalid
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenMalformed
	}
	if err := checkClaims(claims); err != nil {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

func checkClaims(c *Claims) error {
	switch {
	case c.Subject == "":
		return fmt.Errorf("%w: empty subject", ErrClaimsMalformed)
	case !c.Kind.Valid():
		return fmt.Errorf("%w: unknown kind %q", ErrClaimsMalformed, c.Kind)
	case c.IssuedAt == nil || c.ExpiresAt == nil:
		return fmt.Errorf("%w: missing timestamps", ErrClaimsMalformed)
	}
	return nil
}
