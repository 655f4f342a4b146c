package domain

import "strings"

// TokenKind differentiates access tokens from refresh tokens.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// Valid reports whether k is one of the two known kinds.
func (k TokenKind) Valid() bool {
	return k == TokenKindAccess || k == TokenKindRefresh
}

// ParseTokenKind maps a requested kind to a TokenKind. Only "access" selects
// an access token; blank and unrecognized values mean refresh.
func ParseTokenKind(s string) TokenKind {
	if TokenKind(strings.TrimSpace(s)) == TokenKindAccess {
		return TokenKindAccess
	}
	return TokenKindRefresh
}
